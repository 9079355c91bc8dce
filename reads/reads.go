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

// Package reads loads the read set that is partitioned.
package reads

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode"

	"github.com/exascience/elpart/fasta"
	"github.com/exascience/elpart/internal"
)

// A Record is one input read. RecoID is the identifier of the true
// recombination event, if known, and is only used for evaluation.
type Record struct {
	ID     string
	Seq    string
	RecoID string
}

// IDs returns the identifiers of the given records, in order.
func IDs(records []Record) []string {
	ids := make([]string, len(records))
	for i, record := range records {
		ids[i] = record.ID
	}
	return ids
}

func validate(records []Record) error {
	seen := make(map[string]bool, len(records))
	for _, record := range records {
		if record.ID == "" {
			return fmt.Errorf("%w: read with empty identifier", internal.ErrFatalPrecondition)
		}
		if strings.IndexFunc(record.ID, unicode.IsSpace) >= 0 {
			return fmt.Errorf("%w: read identifier %q contains whitespace", internal.ErrFatalPrecondition, record.ID)
		}
		if record.ID == internal.UnpairedField {
			return fmt.Errorf("%w: read identifier %q is reserved", internal.ErrFatalPrecondition, record.ID)
		}
		if seen[record.ID] {
			return fmt.Errorf("%w: duplicate read identifier %v", internal.ErrFatalPrecondition, record.ID)
		}
		seen[record.ID] = true
		if record.Seq == "" {
			return fmt.Errorf("%w: read %v has an empty sequence", internal.ErrFatalPrecondition, record.ID)
		}
		for i := 0; i < len(record.Seq); i++ {
			switch record.Seq[i] {
			case 'A', 'C', 'G', 'T':
			default:
				return fmt.Errorf("%w: read %v contains invalid base %q at position %v", internal.ErrFatalPrecondition, record.ID, record.Seq[i], i)
			}
		}
	}
	return nil
}

// ParseCSV parses a simulation file with the columns unique_id and seq,
// and optionally reco_id. If limit is positive, at most limit reads are
// returned.
func ParseCSV(r io.Reader, limit int) ([]Record, error) {
	reader := csv.NewReader(r)
	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("invalid read file header: %w", err)
	}
	idIndex, seqIndex, recoIndex := -1, -1, -1
	for i, column := range header {
		switch column {
		case "unique_id":
			idIndex = i
		case "seq":
			seqIndex = i
		case "reco_id":
			recoIndex = i
		}
	}
	if idIndex < 0 || seqIndex < 0 {
		return nil, fmt.Errorf("invalid read file - missing unique_id or seq column")
	}
	var records []Record
	for limit <= 0 || len(records) < limit {
		line, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("invalid read file: %w", err)
		}
		record := Record{ID: line[idIndex], Seq: strings.ToUpper(line[seqIndex])}
		if recoIndex >= 0 {
			record.RecoID = line[recoIndex]
		}
		records = append(records, record)
	}
	return records, validate(records)
}

// FromFasta converts FASTA entries to reads. If limit is positive, at
// most limit reads are returned.
func FromFasta(entries []fasta.Entry, limit int) ([]Record, error) {
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	records := make([]Record, len(entries))
	for i, entry := range entries {
		records[i] = Record{ID: entry.Name, Seq: string(entry.Seq)}
	}
	return records, validate(records)
}

// Load reads the given file, which is either a FASTA file (.fa, .fasta,
// .fna) or a CSV simulation file.
func Load(filename string, limit int) (records []Record, err error) {
	switch lower := strings.ToLower(filename); {
	case strings.HasSuffix(lower, ".fa"), strings.HasSuffix(lower, ".fasta"), strings.HasSuffix(lower, ".fna"):
		entries, err := fasta.ParseFastaFile(filename, true)
		if err != nil {
			return nil, err
		}
		return FromFasta(entries, limit)
	}
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer func() {
		if nerr := f.Close(); err == nil {
			err = nerr
		}
	}()
	return ParseCSV(f, limit)
}
