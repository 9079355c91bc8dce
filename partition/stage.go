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

package partition

import (
	"fmt"

	"github.com/exascience/elpart/cluster"
)

// A Stage is one step of a partitioning run. Stages run in the order
// in which they are declared.
type Stage int

// The stages of a partitioning run.
const (
	SeedIngest Stage = iota
	CoarsePrecluster
	StrippedScore
	FullScore
	Cleanup
)

func (s Stage) String() string {
	switch s {
	case SeedIngest:
		return "seed-ingest"
	case CoarsePrecluster:
		return "coarse"
	case StrippedScore:
		return "stripped"
	case FullScore:
		return "full"
	case Cleanup:
		return "cleanup"
	default:
		return fmt.Sprintf("stage(%d)", int(s))
	}
}

// A StageReport summarizes one clustering stage.
type StageReport struct {
	Stage Stage

	// Pairs is the number of distinct pairs scored in the stage.
	Pairs    int
	Clusters int

	// Singletons are the reads that did not join any cluster.
	Singletons []string
}

// A Result is the outcome of a complete partitioning run.
type Result struct {
	// Assignment is the final partition.
	Assignment *cluster.Assignment

	// Reports has one entry for each clustering stage, in stage order.
	Reports []StageReport
}

// Singletons returns the final singleton reads.
func (r *Result) Singletons() []string {
	if len(r.Reports) == 0 {
		return nil
	}
	return r.Reports[len(r.Reports)-1].Singletons
}
