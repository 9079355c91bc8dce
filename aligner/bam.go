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

package aligner

import (
	"fmt"
	"io"

	"github.com/biogo/hts/bam"
	"github.com/biogo/hts/sam"

	"github.com/exascience/elpart/internal"
	"github.com/exascience/elpart/seeds"
	"github.com/exascience/elpart/utils"
)

var scoreTag = sam.NewTag("AS")

// Decoding errors are external tool failures, since the aligner
// produced output that cannot be used.
func decodeError(format string, v ...interface{}) error {
	return fmt.Errorf("%w: %v", internal.ErrExternalTool, fmt.Sprintf(format, v...))
}

// DecodeBAM reads aligner output in BAM format and returns the hits of
// all mapped records, grouped by read name.
func DecodeBAM(r io.Reader) (map[string][]seeds.Hit, error) {
	br, err := bam.NewReader(r, 0)
	if err != nil {
		return nil, decodeError("invalid aligner output: %v", err)
	}
	defer func() {
		_ = br.Close()
	}()
	hits := make(map[string][]seeds.Hit)
	for {
		rec, err := br.Read()
		if err == io.EOF {
			return hits, nil
		}
		if err != nil {
			return nil, decodeError("invalid aligner output: %v", err)
		}
		if rec.Flags&sam.Unmapped != 0 || rec.Ref == nil {
			continue
		}
		hit, err := decodeRecord(rec)
		if err != nil {
			return nil, err
		}
		hits[hit.ReadID] = append(hits[hit.ReadID], hit)
	}
}

func auxScore(rec *sam.Record) (float64, bool) {
	aux := rec.AuxFields.Get(scoreTag)
	if aux == nil {
		return 0, false
	}
	switch v := aux.Value().(type) {
	case int8:
		return float64(v), true
	case uint8:
		return float64(v), true
	case int16:
		return float64(v), true
	case uint16:
		return float64(v), true
	case int32:
		return float64(v), true
	case uint32:
		return float64(v), true
	case float32:
		return float64(v), true
	default:
		return 0, false
	}
}

// querySpan returns the half-open span of the read that the alignment
// covers. Soft-clipped bases are part of the read, hard-clipped bases
// are not.
func querySpan(cigar sam.Cigar) (start, end int, err error) {
	pos := 0
	started := false
	for _, co := range cigar {
		switch co.Type() {
		case sam.CigarMatch, sam.CigarEqual, sam.CigarMismatch, sam.CigarInsertion:
			if !started {
				start, started = pos, true
			}
			pos += co.Len()
			end = pos
		case sam.CigarSoftClipped:
			pos += co.Len()
		case sam.CigarDeletion, sam.CigarSkipped, sam.CigarHardClipped, sam.CigarPadded:
		default:
			return 0, 0, fmt.Errorf("unexpected CIGAR operation %v", co)
		}
	}
	if !started {
		return 0, 0, fmt.Errorf("CIGAR %v aligns no bases", cigar)
	}
	return start, end, nil
}

func decodeRecord(rec *sam.Record) (seeds.Hit, error) {
	segment := rec.Ref.Name()
	region, err := seeds.RegionOf(segment)
	if err != nil {
		return seeds.Hit{}, fmt.Errorf("read %v: %w", rec.Name, err)
	}
	score, ok := auxScore(rec)
	if !ok {
		return seeds.Hit{}, decodeError("record of read %v against %v has no numeric AS tag", rec.Name, segment)
	}
	queryStart, queryEnd, err := querySpan(rec.Cigar)
	if err != nil {
		return seeds.Hit{}, decodeError("record of read %v against %v: %v", rec.Name, segment, err)
	}
	return seeds.Hit{
		ReadID:     rec.Name,
		Region:     region,
		Segment:    utils.Intern(segment),
		Score:      score,
		QueryStart: queryStart,
		QueryEnd:   queryEnd,
		RefStart:   rec.Pos,
		RefEnd:     rec.End(),
		RefLength:  rec.Ref.Len(),
		Secondary:  rec.Flags&sam.Secondary != 0,
	}, nil
}
