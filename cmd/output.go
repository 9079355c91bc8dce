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

package cmd

import (
	"encoding/csv"
	"io"
	"os"
	"sort"
	"strconv"

	"github.com/exascience/elpart/cluster"
	"github.com/exascience/elpart/internal"
	"github.com/exascience/elpart/partition"
	"github.com/exascience/elpart/reads"
	"github.com/exascience/elpart/scorer"
)

// writePartition writes one unique_id,cluster_id row per clustered
// read, in read order. Clusters are numbered in the order in which
// their first member occurs.
func writePartition(w io.Writer, records []reads.Record, assignment *cluster.Assignment) error {
	out := csv.NewWriter(w)
	if err := out.Write([]string{"unique_id", "cluster_id"}); err != nil {
		return err
	}
	numbers := make(map[int]int)
	for _, record := range records {
		c, ok := assignment.ClusterOf(record.ID)
		if !ok {
			continue
		}
		number, ok := numbers[c]
		if !ok {
			number = len(numbers)
			numbers[c] = number
		}
		if err := out.Write([]string{record.ID, strconv.Itoa(number)}); err != nil {
			return err
		}
	}
	out.Flush()
	return out.Error()
}

// writeSingletons writes one stage,unique_id row per singleton of each
// stage.
func writeSingletons(w io.Writer, reports []partition.StageReport) error {
	out := csv.NewWriter(w)
	if err := out.Write([]string{"stage", "unique_id"}); err != nil {
		return err
	}
	for _, report := range reports {
		for _, id := range report.Singletons {
			if err := out.Write([]string{report.Stage.String(), id}); err != nil {
				return err
			}
		}
	}
	out.Flush()
	return out.Error()
}

// writeAnnotations writes the best paths of single reads. The columns
// other than unique_id and score are sorted by name.
func writeAnnotations(w io.Writer, responses []scorer.Response) error {
	seen := make(map[string]bool)
	var columns []string
	for _, response := range responses {
		for column := range response.Fields {
			if !seen[column] {
				seen[column] = true
				columns = append(columns, column)
			}
		}
	}
	sort.Strings(columns)
	out := csv.NewWriter(w)
	if err := out.Write(append([]string{"unique_id", "score"}, columns...)); err != nil {
		return err
	}
	row := make([]string, 2+len(columns))
	for _, response := range responses {
		row[0] = response.ID
		row[1] = strconv.FormatFloat(response.Score, 'g', -1, 64)
		for i, column := range columns {
			row[2+i] = response.Fields[column]
		}
		if err := out.Write(row); err != nil {
			return err
		}
	}
	out.Flush()
	return out.Error()
}

func writeFile(filename string, write func(w io.Writer) error) (err error) {
	f, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer internal.Close(f, &err)
	return write(f)
}
