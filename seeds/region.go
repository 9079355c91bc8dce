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

// Package seeds turns the raw local-alignment hits of a read into a
// compact annotation: a best segment per region, a bounded list of
// candidate segments, and window hints for the HMM scorer.
package seeds

import (
	"fmt"
	"strings"

	"github.com/exascience/elpart/internal"
	"github.com/exascience/elpart/utils"
)

// A Region is one of the structural segments a recombined sequence is
// composed of.
type Region int

// The regions in the order in which they occur in a read. V is the
// anchor region.
const (
	V Region = iota
	D
	J
	NRegions
)

// Regions lists all regions in read order.
var Regions = []Region{V, D, J}

func (r Region) String() string {
	switch r {
	case V:
		return "v"
	case D:
		return "d"
	case J:
		return "j"
	default:
		return fmt.Sprintf("region(%d)", int(r))
	}
}

const locusPrefix = "IGH"

// RegionOf returns the region of the given segment identifier, which
// is encoded by the letter following the locus prefix, as in
// IGHV3-23*01.
func RegionOf(segment string) (Region, error) {
	if len(segment) > len(locusPrefix) && strings.HasPrefix(segment, locusPrefix) {
		switch segment[len(locusPrefix)] {
		case 'V', 'v':
			return V, nil
		case 'D', 'd':
			return D, nil
		case 'J', 'j':
			return J, nil
		}
	}
	return NRegions, fmt.Errorf("%w: cannot determine region of segment %v", internal.ErrFatalPrecondition, segment)
}

// A Hit is one local alignment of a read against a reference segment,
// as reported by the aligner. Coordinates are zero-based and half-open.
type Hit struct {
	ReadID     string
	Region     Region
	Segment    utils.Symbol
	Score      float64
	QueryStart int
	QueryEnd   int
	RefStart   int
	RefEnd     int
	RefLength  int
	Secondary  bool
}
