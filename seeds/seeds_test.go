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
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/exascience/elpart/internal"
	"github.com/exascience/elpart/utils"
)

func hit(segment string, score float64, qstart, qend, rstart, rlength int) Hit {
	region, err := RegionOf(segment)
	if err != nil {
		panic(err)
	}
	return Hit{
		ReadID:     "r",
		Region:     region,
		Segment:    utils.Intern(segment),
		Score:      score,
		QueryStart: qstart,
		QueryEnd:   qend,
		RefStart:   rstart,
		RefEnd:     rstart + qend - qstart,
		RefLength:  rlength,
	}
}

func testUsage() *Usage {
	var usage Usage
	usage.Set(V, "IGHV1-2*02", 0.5)
	usage.Set(V, "IGHV3-23*01", 0.25)
	usage.Set(V, "IGHV4-34*01", 0.25)
	usage.Set(D, "IGHD3-10*01", 1)
	usage.Set(J, "IGHJ4*02", 0.9)
	usage.Set(J, "IGHJ6*02", 0.1)
	return &usage
}

func testAnnotator() *Annotator {
	return &Annotator{
		Usage:                  testUsage(),
		MaxCandidatesPerRegion: 2,
		DefaultVFuzz:           5,
		DefaultDFuzz:           10,
	}
}

func symbolsEqual(s1, s2 []utils.Symbol) bool {
	if len(s1) != len(s2) {
		return false
	}
	for i, s := range s1 {
		if s != s2[i] {
			return false
		}
	}
	return true
}

func symbols(names ...string) (result []utils.Symbol) {
	for _, name := range names {
		result = append(result, utils.Intern(name))
	}
	return result
}

func TestRegionOf(t *testing.T) {
	for segment, expected := range map[string]Region{"IGHV1-2*02": V, "IGHD3-10*01": D, "IGHJ4*02": J} {
		if region, err := RegionOf(segment); err != nil || region != expected {
			t.Errorf("RegionOf(%v) failed", segment)
		}
	}
	for _, segment := range []string{"", "IGH", "IGKV1-5*01", "TRBV5-1*01"} {
		if _, err := RegionOf(segment); !errors.Is(err, internal.ErrFatalPrecondition) {
			t.Errorf("RegionOf(%q) should fail", segment)
		}
	}
}

func TestAnnotate(t *testing.T) {
	hits := []Hit{
		hit("IGHV3-23*01", 300, 0, 96, 0, 296),
		hit("IGHV1-2*02", 290, 0, 94, 2, 296),
		hit("IGHV4-34*01", 200, 0, 90, 0, 293),
		hit("IGHD3-10*01", 40, 100, 112, 3, 31),
		hit("IGHJ4*02", 120, 120, 160, 8, 48),
	}
	a, err := testAnnotator().Annotate("r", hits)
	if err != nil {
		t.Fatal(err)
	}
	if a.Anchor[V] != utils.Intern("IGHV3-23*01") {
		t.Error("anchor is not the raw best hit")
	}
	if a.Best[V] != utils.Intern("IGHV1-2*02") {
		t.Error("best is not the usage-adjusted best hit")
	}
	if !symbolsEqual(a.Candidates[V], symbols("IGHV1-2*02", "IGHV3-23*01")) {
		t.Errorf("V candidates failed: %v", utils.JoinSymbols(a.Candidates[V], ":"))
	}
	if a.KV != 96 || a.KD != 16 {
		t.Errorf("window hints failed: %+v", a.Window)
	}
	if a.VFuzz != 5 || a.DFuzz != 10 {
		t.Errorf("fuzz failed: %+v", a.Window)
	}
	if a.RemainingLength != 296 {
		t.Errorf("remaining length failed: %v", a.RemainingLength)
	}
	if !symbolsEqual(a.BestSegments(), symbols("IGHV1-2*02", "IGHD3-10*01", "IGHJ4*02")) {
		t.Error("BestSegments failed")
	}
	if !symbolsEqual(a.AllSegments(), symbols("IGHV1-2*02", "IGHV3-23*01", "IGHD3-10*01", "IGHJ4*02")) {
		t.Error("AllSegments failed")
	}
}

func TestAnnotateWidensVFuzz(t *testing.T) {
	hits := []Hit{
		hit("IGHV3-23*01", 300, 0, 96, 0, 296),
		hit("IGHV1-2*02", 290, 0, 84, 0, 296),
		hit("IGHD3-10*01", 40, 100, 112, 3, 31),
		hit("IGHJ4*02", 120, 120, 160, 8, 48),
	}
	a, err := testAnnotator().Annotate("r", hits)
	if err != nil {
		t.Fatal(err)
	}
	if a.VFuzz != 13 {
		t.Errorf("v_fuzz is %v, expected 13", a.VFuzz)
	}
}

func TestAnnotateShortD(t *testing.T) {
	hits := []Hit{
		hit("IGHV3-23*01", 300, 0, 96, 0, 296),
		hit("IGHD3-10*01", 10, 96, 99, 3, 31),
		hit("IGHJ4*02", 120, 99, 150, 0, 48),
	}
	annotator := testAnnotator()
	annotator.DefaultDFuzz = 2
	a, err := annotator.Annotate("r", hits)
	if err != nil {
		t.Fatal(err)
	}
	if a.KD != MinKD || a.DFuzz < ShortDFuzz {
		t.Errorf("short D clamp failed: %+v", a.Window)
	}
}

func TestAnnotateExcludesDefectiveSegments(t *testing.T) {
	hits := []Hit{
		hit("IGHV3-23*01", 300, 0, 96, 0, 296),
		hit("IGHD3-10*01", 40, 100, 112, 3, 31),
		hit("IGHJ1P*01", 500, 120, 160, 0, 48),
		hit("IGHJ6*02", 100, 120, 158, 0, 63),
	}
	a, err := testAnnotator().Annotate("r", hits)
	if err != nil {
		t.Fatal(err)
	}
	if a.Anchor[J] != utils.Intern("IGHJ1P*01") {
		t.Error("anchor should ignore the denylist")
	}
	if !symbolsEqual(a.Candidates[J], symbols("IGHJ6*02")) {
		t.Error("defective segment was not excluded")
	}
}

func TestAnnotateUnknownSegmentHasZeroWeight(t *testing.T) {
	hits := []Hit{
		hit("IGHV7-81*01", 400, 0, 96, 0, 296),
		hit("IGHV4-34*01", 100, 0, 96, 0, 296),
		hit("IGHD3-10*01", 40, 100, 112, 3, 31),
		hit("IGHJ4*02", 120, 120, 160, 8, 48),
	}
	a, err := testAnnotator().Annotate("r", hits)
	if err != nil {
		t.Fatal(err)
	}
	if !symbolsEqual(a.Candidates[V], symbols("IGHV4-34*01", "IGHV7-81*01")) {
		t.Errorf("V candidates failed: %v", utils.JoinSymbols(a.Candidates[V], ":"))
	}
}

func TestAnnotateStableTies(t *testing.T) {
	hits := []Hit{
		hit("IGHV4-34*01", 100, 0, 96, 0, 296),
		hit("IGHV3-23*01", 100, 0, 96, 0, 296),
		hit("IGHD3-10*01", 40, 100, 112, 3, 31),
		hit("IGHJ4*02", 120, 120, 160, 8, 48),
	}
	for i := 0; i < 10; i++ {
		a, err := testAnnotator().Annotate("r", hits)
		if err != nil {
			t.Fatal(err)
		}
		if !symbolsEqual(a.Candidates[V], symbols("IGHV4-34*01", "IGHV3-23*01")) {
			t.Fatal("ties are not broken by hit order")
		}
	}
}

func TestAnnotateMissingAnchorRegion(t *testing.T) {
	hits := []Hit{
		hit("IGHD3-10*01", 40, 100, 112, 3, 31),
		hit("IGHJ4*02", 120, 120, 160, 8, 48),
	}
	if _, err := testAnnotator().Annotate("r", hits); !errors.Is(err, internal.ErrFatalPrecondition) {
		t.Errorf("expected fatal precondition, got %v", err)
	}
	if _, err := testAnnotator().Annotate("r", nil); !errors.Is(err, internal.ErrFatalPrecondition) {
		t.Errorf("expected fatal precondition, got %v", err)
	}
}

func TestAnnotatePostcondition(t *testing.T) {
	hits := []Hit{
		hit("IGHV3-23*01", 300, 0, 96, 296, 296),
		hit("IGHD3-10*01", 40, 100, 112, 3, 31),
		hit("IGHJ4*02", 120, 120, 160, 8, 48),
	}
	if _, err := testAnnotator().Annotate("r", hits); !errors.Is(err, internal.ErrFatalPrecondition) {
		t.Errorf("expected fatal precondition for remaining length, got %v", err)
	}
}

func TestPositiveFields(t *testing.T) {
	for qend := 1; qend < 120; qend += 7 {
		for dend := 0; dend < 130; dend += 11 {
			hits := []Hit{
				hit("IGHV3-23*01", 300, 0, qend, 0, 296),
				hit("IGHV1-2*02", 250, 0, qend/2+1, 0, 296),
				hit("IGHD3-10*01", 40, 0, dend, 3, 31),
				hit("IGHJ4*02", 120, 120, 160, 8, 48),
			}
			a, err := testAnnotator().Annotate("r", hits)
			if err != nil {
				t.Fatal(err)
			}
			if a.KV <= 0 || a.KD <= 0 || a.VFuzz <= 0 || a.DFuzz <= 0 || a.RemainingLength <= 0 {
				t.Fatalf("non-positive field: %+v", a)
			}
			if dend-qend < MinKD && (a.KD != MinKD || a.DFuzz < ShortDFuzz) {
				t.Fatalf("short D clamp failed: %+v", a.Window)
			}
		}
	}
}

func TestSegmentUnion(t *testing.T) {
	u := SegmentUnion(symbols("a", "b"), symbols("b", "c", "a"), nil)
	if !symbolsEqual(u, symbols("a", "b", "c")) {
		t.Error("SegmentUnion failed")
	}
}

func TestParseUsageNegativeCount(t *testing.T) {
	dir := t.TempDir()
	tables := map[Region]string{
		V: "v_gene,count\nIGHV1-2*02,3\nIGHV3-23*01,-1\n",
		D: "d_gene,count\nIGHD3-10*01,5\n",
		J: "j_gene,count\nIGHJ4*02,1\n",
	}
	for region, content := range tables {
		if err := os.WriteFile(UsageFilename(dir, region), []byte(content), 0600); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := ParseUsage(dir); err == nil {
		t.Error("ParseUsage with a negative count should fail")
	}
}

func TestParseUsage(t *testing.T) {
	dir := t.TempDir()
	tables := map[Region]string{
		V: "v_gene,count\nIGHV1-2*02,3\nIGHV3-23*01,1\nIGHV1-2*02,4\n",
		D: "count,d_gene,other\n5,IGHD3-10*01,x\n",
		J: "j_gene,count\nIGHJ4*02,1\nIGHJ6*02,3\n",
	}
	for region, content := range tables {
		if err := os.WriteFile(UsageFilename(dir, region), []byte(content), 0600); err != nil {
			t.Fatal(err)
		}
	}
	usage, err := ParseUsage(dir)
	if err != nil {
		t.Fatal(err)
	}
	if f := usage.Freq(V, utils.Intern("IGHV1-2*02")); f != 7.0/8.0 {
		t.Errorf("V frequency is %v", f)
	}
	if f := usage.Freq(D, utils.Intern("IGHD3-10*01")); f != 1 {
		t.Errorf("D frequency is %v", f)
	}
	if f := usage.Freq(J, utils.Intern("IGHJ6*02")); f != 0.75 {
		t.Errorf("J frequency is %v", f)
	}
	if f := usage.Freq(J, utils.Intern("IGHJ1*01")); f != 0 {
		t.Error("absent segment must have frequency 0")
	}
	if err := os.Remove(filepath.Join(dir, "j_gene-probs.csv")); err != nil {
		t.Fatal(err)
	}
	if _, err := ParseUsage(dir); err == nil {
		t.Error("ParseUsage with missing table should fail")
	}
}
