// elPart: a high-performance tool for partitioning reads into clonal families.
// Copyright (c) 2021 imec vzw.

// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version, and Additional Terms
// (see below).

// This program is distributed in the hope that it will be useful, but
// WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Affero General Public License for more details.

// You should have received a copy of the GNU Affero General Public
// License and Additional Terms along with this program. If not, see
// <https://github.com/ExaScience/elprep/blob/master/LICENSE.txt>.

package seeds

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/exascience/elpart/utils"
)

// Usage maps each region to the empirical relative frequency with
// which each of its segments is used.
type Usage [NRegions]map[utils.Symbol]float64

// Freq returns the usage frequency of the given segment. Segments that
// were never observed have frequency 0.
func (u *Usage) Freq(region Region, segment utils.Symbol) float64 {
	if u == nil || region < 0 || region >= NRegions || u[region] == nil {
		return 0
	}
	return u[region][segment]
}

// Set sets the usage frequency of the given segment.
func (u *Usage) Set(region Region, segment string, freq float64) {
	if u[region] == nil {
		u[region] = make(map[utils.Symbol]float64)
	}
	u[region][utils.Intern(segment)] = freq
}

// UsageFilename returns the name of the gene-usage table of the given
// region in dir.
func UsageFilename(dir string, region Region) string {
	return filepath.Join(dir, region.String()+"_gene-probs.csv")
}

// ParseUsage reads one gene-usage count table per region from dir, and
// normalizes the counts into frequencies. Each table is a CSV file with
// a header that names at least the columns "count" and "<region>_gene".
// Counts of rows that name the same segment are added up.
func ParseUsage(dir string) (usage Usage, err error) {
	for _, region := range Regions {
		filename := UsageFilename(dir, region)
		counts, total, err := parseUsageCounts(filename, region.String()+"_gene")
		if err != nil {
			return usage, err
		}
		if total <= 0 {
			return usage, fmt.Errorf("gene usage table %v has no counts", filename)
		}
		for segment, count := range counts {
			usage.Set(region, segment, float64(count)/float64(total))
		}
	}
	return usage, nil
}

func parseUsageCounts(filename, geneColumn string) (counts map[string]int64, total int64, err error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, 0, err
	}
	defer func() {
		if nerr := f.Close(); err == nil {
			err = nerr
		}
	}()
	reader := csv.NewReader(f)
	header, err := reader.Read()
	if err != nil {
		return nil, 0, fmt.Errorf("invalid gene usage table %v: %w", filename, err)
	}
	geneIndex, countIndex := -1, -1
	for i, column := range header {
		switch column {
		case geneColumn:
			geneIndex = i
		case "count":
			countIndex = i
		}
	}
	if geneIndex < 0 || countIndex < 0 {
		return nil, 0, fmt.Errorf("invalid gene usage table %v - missing %v or count column", filename, geneColumn)
	}
	counts = make(map[string]int64)
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, 0, fmt.Errorf("invalid gene usage table %v: %w", filename, err)
		}
		count, err := strconv.ParseInt(record[countIndex], 10, 64)
		if err != nil {
			return nil, 0, fmt.Errorf("invalid count in gene usage table %v: %w", filename, err)
		}
		if count < 0 {
			return nil, 0, fmt.Errorf("invalid count in gene usage table %v: %v is negative", filename, count)
		}
		counts[record[geneIndex]] += count
		total += count
	}
	return counts, total, nil
}
