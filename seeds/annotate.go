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
	"fmt"
	"regexp"
	"sort"

	"github.com/exascience/elpart/internal"
	"github.com/exascience/elpart/utils"
)

const (
	// MinKD is the smallest window hint for the D region. Shorter D
	// alignments are an artifact of the aligner matching the longest
	// possible J, which then swallows most of the D.
	MinKD = 5

	// ShortDFuzz is the smallest d_fuzz used when k_d had to be
	// clamped to MinKD.
	ShortDFuzz = 10
)

// DefectiveSegments matches the identifiers of reference segments
// that are never used as candidates, regardless of their score.
var DefectiveSegments = regexp.MustCompile(`J[123]P`)

// A Window carries the boundary hints for the HMM scorer: k_v is the
// end of the V region in the read, k_d the length of the D region, and
// the fuzz values bound how far the scorer searches around them.
type Window struct {
	KV, KD       int
	VFuzz, DFuzz int
}

// An Annotation is the compact per-read result of seed annotation. It
// is never modified after Annotate returns it.
type Annotation struct {
	ReadID string

	// Anchor is the segment of the highest raw-scoring hit per region,
	// which determines the window hints.
	Anchor [NRegions]utils.Symbol

	// Best is the top candidate per region after reweighting by usage
	// frequency and excluding defective segments.
	Best [NRegions]utils.Symbol

	// Candidates are the ranked candidate segments per region, at most
	// MaxCandidatesPerRegion each. Best[r] == Candidates[r][0].
	Candidates [NRegions][]utils.Symbol

	Window

	// RemainingLength is the length of the anchor V segment from the
	// start of its match to its end.
	RemainingLength int
}

// BestSegments returns the best segment of each region.
func (a *Annotation) BestSegments() []utils.Symbol {
	return []utils.Symbol{a.Best[V], a.Best[D], a.Best[J]}
}

// AllSegments returns the candidate segments of all regions.
func (a *Annotation) AllSegments() []utils.Symbol {
	result := make([]utils.Symbol, 0, len(a.Candidates[V])+len(a.Candidates[D])+len(a.Candidates[J]))
	for _, region := range Regions {
		result = append(result, a.Candidates[region]...)
	}
	return result
}

// SegmentUnion returns the segments of all given lists without
// duplicates, in order of first occurrence.
func SegmentUnion(lists ...[]utils.Symbol) []utils.Symbol {
	var result []utils.Symbol
	seen := make(map[utils.Symbol]bool)
	for _, list := range lists {
		for _, segment := range list {
			if !seen[segment] {
				seen[segment] = true
				result = append(result, segment)
			}
		}
	}
	return result
}

// An Annotator turns the hits of a read into an Annotation.
type Annotator struct {
	Usage                  *Usage
	MaxCandidatesPerRegion int
	DefaultVFuzz           int
	DefaultDFuzz           int
}

type rankedHit struct {
	Hit
	adjusted float64
}

// rawBest returns the hit with the highest raw score. Ties go to the
// hit that comes first.
func rawBest(hits []Hit) Hit {
	best := hits[0]
	for _, hit := range hits[1:] {
		if hit.Score > best.Score {
			best = hit
		}
	}
	return best
}

// rank returns the non-defective hits of one region, sorted by
// decreasing usage-adjusted score, with one hit per segment and at most
// MaxCandidatesPerRegion hits.
func (a *Annotator) rank(region Region, hits []Hit) []rankedHit {
	ranked := make([]rankedHit, 0, len(hits))
	for _, hit := range hits {
		if DefectiveSegments.MatchString(utils.SymbolString(hit.Segment)) {
			continue
		}
		ranked = append(ranked, rankedHit{hit, a.Usage.Freq(region, hit.Segment) * hit.Score})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].adjusted > ranked[j].adjusted
	})
	seen := make(map[utils.Symbol]bool, len(ranked))
	result := ranked[:0]
	for _, hit := range ranked {
		if len(result) == a.MaxCandidatesPerRegion {
			break
		}
		if seen[hit.Segment] {
			continue
		}
		seen[hit.Segment] = true
		result = append(result, hit)
	}
	return result
}

func fatalf(readID, format string, v ...interface{}) error {
	return fmt.Errorf("%w: read %v: %v", internal.ErrFatalPrecondition, readID, fmt.Sprintf(format, v...))
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

/*
Annotate computes the Annotation of one read from its alignment hits.

Hits are ranked per region by their raw score multiplied by the usage
frequency of their segment, defective segments are excluded, and the
top MaxCandidatesPerRegion become the candidates. The window hints are
derived from the anchor hits, the highest raw-scoring hits per region,
because these determine which bases the aligner consumed.

Annotate returns an error wrapping internal.ErrFatalPrecondition if a
region has no hits or no acceptable candidate, or if any derived value
is not strictly positive.
*/
func (a *Annotator) Annotate(readID string, hits []Hit) (*Annotation, error) {
	var byRegion [NRegions][]Hit
	for _, hit := range hits {
		if hit.Region < 0 || hit.Region >= NRegions {
			return nil, fatalf(readID, "hit against %v has an invalid region", utils.SymbolString(hit.Segment))
		}
		byRegion[hit.Region] = append(byRegion[hit.Region], hit)
	}

	annotation := &Annotation{ReadID: readID}
	var anchors [NRegions]Hit
	var candidates [NRegions][]rankedHit
	for _, region := range Regions {
		group := byRegion[region]
		if len(group) == 0 {
			return nil, fatalf(readID, "no alignment hits in region %v", region)
		}
		anchors[region] = rawBest(group)
		candidates[region] = a.rank(region, group)
		if len(candidates[region]) == 0 {
			return nil, fatalf(readID, "no acceptable candidate segment in region %v", region)
		}
		annotation.Anchor[region] = anchors[region].Segment
		annotation.Best[region] = candidates[region][0].Segment
		segments := make([]utils.Symbol, len(candidates[region]))
		for i, hit := range candidates[region] {
			segments[i] = hit.Segment
		}
		annotation.Candidates[region] = segments
	}

	vAnchor := anchors[V]
	window := Window{
		KV:    vAnchor.QueryEnd,
		KD:    anchors[D].QueryEnd - vAnchor.QueryEnd,
		VFuzz: a.DefaultVFuzz,
		DFuzz: a.DefaultDFuzz,
	}
	if window.KD < MinKD {
		window.KD = MinKD
		if window.DFuzz < ShortDFuzz {
			window.DFuzz = ShortDFuzz
		}
	}
	// the scorer runs with one k_v, so its window must reach the end of every V candidate
	for _, hit := range candidates[V] {
		if necessary := abs(hit.QueryEnd-vAnchor.QueryEnd) + 1; necessary > window.VFuzz {
			window.VFuzz = necessary
		}
	}
	annotation.Window = window
	annotation.RemainingLength = vAnchor.RefLength - vAnchor.RefStart

	switch {
	case window.KV <= 0:
		return nil, fatalf(readID, "k_v is %v", window.KV)
	case window.KD <= 0:
		return nil, fatalf(readID, "k_d is %v", window.KD)
	case window.VFuzz <= 0:
		return nil, fatalf(readID, "v_fuzz is %v", window.VFuzz)
	case window.DFuzz <= 0:
		return nil, fatalf(readID, "d_fuzz is %v", window.DFuzz)
	case annotation.RemainingLength <= 0:
		return nil, fatalf(readID, "remaining V length is %v", annotation.RemainingLength)
	}
	return annotation, nil
}
