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
	"bytes"
	"errors"
	"fmt"
	"log"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/exascience/elpart/internal"
	"github.com/exascience/elpart/pairs"
	"github.com/exascience/elpart/reads"
	"github.com/exascience/elpart/scorer"
	"github.com/exascience/elpart/seeds"
	"github.com/exascience/elpart/utils"
)

func validHits(id string) []seeds.Hit {
	return []seeds.Hit{
		{ReadID: id, Region: seeds.V, Segment: utils.Intern("IGHV1-2*01"), Score: 250, QueryEnd: 96, RefStart: 200, RefEnd: 296, RefLength: 296},
		{ReadID: id, Region: seeds.V, Segment: utils.Intern("IGHV1-3*01"), Score: 240, QueryEnd: 94, RefStart: 202, RefEnd: 296, RefLength: 296},
		{ReadID: id, Region: seeds.D, Segment: utils.Intern("IGHD3-10*01"), Score: 36, QueryStart: 100, QueryEnd: 112, RefStart: 4, RefEnd: 16, RefLength: 31},
		{ReadID: id, Region: seeds.J, Segment: utils.Intern("IGHJ4*02"), Score: 90, QueryStart: 120, QueryEnd: 150, RefStart: 18, RefEnd: 48, RefLength: 48},
	}
}

type fakeAligner struct {
	hits    map[string][]seeds.Hit
	err     error
	workdir string
}

func (a *fakeAligner) Align(workdir string, records []reads.Record) (map[string][]seeds.Hit, error) {
	a.workdir = workdir
	if err := os.WriteFile(filepath.Join(workdir, "query-seqs.fa"), []byte(">A\nACGT\n"), 0600); err != nil {
		return nil, err
	}
	if a.err != nil {
		return nil, a.err
	}
	result := make(map[string][]seeds.Hit)
	for _, record := range records {
		if hits, ok := a.hits[record.ID]; ok {
			result[record.ID] = hits
		} else {
			result[record.ID] = validHits(record.ID)
		}
	}
	return result, nil
}

type fakeScorer struct {
	mutex    sync.Mutex
	scores   map[pairs.Key]float64
	fallback float64
	err      error
	stripped []scorer.Request
	full     []scorer.Request
	single   []scorer.Request
}

func (s *fakeScorer) Score(_ string, requests []scorer.Request) ([]scorer.Response, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	responses := make([]scorer.Response, 0, len(requests))
	for i := len(requests) - 1; i >= 0; i-- {
		request := requests[i]
		switch {
		case !request.Paired():
			s.single = append(s.single, request)
		case request.Window.VFuzz == 1:
			s.stripped = append(s.stripped, request)
		default:
			s.full = append(s.full, request)
		}
		score, ok := s.scores[request.Key()]
		if !ok {
			score = s.fallback
		}
		response := scorer.Response{
			ID:     request.ID,
			Score:  score,
			Fields: utils.StringMap{"genes": utils.JoinSymbols(request.Segments, ":")},
		}
		if request.Paired() {
			response.ID, response.SecondID = request.SecondID, request.ID
		}
		responses = append(responses, response)
	}
	return responses, nil
}

func testConfig() Config {
	config := DefaultConfig()
	config.CoarseThreshold = 0.1
	config.StrippedThreshold = 0
	config.FullThreshold = 0
	config.WorkdirRoot = os.TempDir()
	return config
}

func newTestDriver(t *testing.T, config Config, al *fakeAligner, sc *fakeScorer) *Driver {
	d, err := NewDriver(config, al, sc, nil)
	if err != nil {
		t.Fatal(err)
	}
	return d
}

func workdirRemoved(t *testing.T, al *fakeAligner) {
	if al.workdir == "" {
		t.Fatal("aligner was not run")
	}
	if _, err := os.Stat(al.workdir); !os.IsNotExist(err) {
		t.Errorf("working directory %v was not removed", al.workdir)
	}
}

func TestConfigValidate(t *testing.T) {
	config := DefaultConfig()
	if config.Validate() == nil {
		t.Error("a config without thresholds should be invalid")
	}
	config = testConfig()
	if err := config.Validate(); err != nil {
		t.Error(err)
	}
	config.ScorerBatches = 0
	if config.Validate() == nil {
		t.Error("a config without scorer batches should be invalid")
	}
	config = testConfig()
	config.FullThreshold = math.Inf(1)
	if config.Validate() == nil {
		t.Error("an infinite threshold should be invalid")
	}
}

func TestMismatchFraction(t *testing.T) {
	if MismatchFraction("AAAACCCC", "AAAACCCC") != 0 {
		t.Error("MismatchFraction of equal sequences failed")
	}
	if MismatchFraction("AAAACCCC", "TTTTGGGG") != 1 {
		t.Error("MismatchFraction of disjoint sequences failed")
	}
	if MismatchFraction("AAAACCCC", "AAAACCCG") != 0.125 {
		t.Error("MismatchFraction of one mismatch failed")
	}
}

func TestCoarse(t *testing.T) {
	records := []reads.Record{
		{ID: "A", Seq: "AAAACCCC"},
		{ID: "B", Seq: "AAAACCCC"},
		{ID: "C", Seq: "TTTTGGGG"},
		{ID: "D", Seq: "AAAACCC"},
	}
	d := newTestDriver(t, testConfig(), &fakeAligner{}, &fakeScorer{})
	assignment, report := d.coarse(records)
	if !assignment.SameCluster("A", "B") {
		t.Error("A and B should be preclustered")
	}
	if _, ok := assignment.ClusterOf("C"); ok {
		t.Error("C should be a singleton")
	}
	if report.Pairs != 3 {
		t.Errorf("coarse scored %v pairs, expected 3", report.Pairs)
	}
	if len(report.Singletons) != 2 || report.Singletons[0] != "C" || report.Singletons[1] != "D" {
		t.Errorf("coarse singletons failed: %v", report.Singletons)
	}
}

func TestRun(t *testing.T) {
	records := []reads.Record{
		{ID: "A", Seq: "AAAACCCC", RecoID: "1"},
		{ID: "B", Seq: "AAAACCCC", RecoID: "1"},
		{ID: "C", Seq: "AAAACCCC", RecoID: "2"},
	}
	al := &fakeAligner{}
	sc := &fakeScorer{
		scores: map[pairs.Key]float64{
			pairs.NewKey("A", "B"): 5,
			pairs.NewKey("A", "C"): -3,
			pairs.NewKey("B", "C"): -3,
		},
	}
	var logs bytes.Buffer
	log.SetOutput(&logs)
	defer log.SetOutput(os.Stderr)
	result, err := newTestDriver(t, testConfig(), al, sc).Run(records)
	if err != nil {
		t.Fatal(err)
	}
	workdirRemoved(t, al)
	clusters := result.Assignment.Clusters()
	if len(clusters) != 1 || strings.Join(clusters[0], ",") != "A,B" {
		t.Errorf("final clusters failed: %v", clusters)
	}
	if singletons := result.Singletons(); len(singletons) != 1 || singletons[0] != "C" {
		t.Errorf("final singletons failed: %v", singletons)
	}
	if len(result.Reports) != 3 || result.Reports[0].Stage != CoarsePrecluster || result.Reports[2].Stage != FullScore {
		t.Error("stage reports failed")
	}
	if len(sc.stripped) != 3 || len(sc.full) != 1 {
		t.Errorf("scorer saw %v stripped and %v full requests, expected 3 and 1", len(sc.stripped), len(sc.full))
	}
	for _, request := range sc.stripped {
		if len(request.Segments) != 3 || request.Window.DFuzz != 1 || request.SecondWindow.VFuzz != 1 {
			t.Errorf("stripped request failed: %+v", request)
		}
	}
	full := sc.full[0]
	if full.ID != "A" || full.SecondID != "B" || len(full.Segments) != 4 ||
		full.Window != (seeds.Window{KV: 96, KD: 16, VFuzz: 5, DFuzz: 10}) {
		t.Errorf("full request failed: %+v", full)
	}
	if !strings.Contains(logs.String(), "Evaluation: 1 of 1 clustered pairs") {
		t.Error("evaluation was not logged")
	}
	if !strings.Contains(logs.String(), "singleton C") {
		t.Error("singleton was not logged")
	}
}

func TestRunStrippedPrunes(t *testing.T) {
	records := []reads.Record{
		{ID: "A", Seq: "AAAACCCC"},
		{ID: "B", Seq: "AAAACCCC"},
		{ID: "C", Seq: "AAAACCCC"},
	}
	al := &fakeAligner{}
	sc := &fakeScorer{fallback: -1, scores: map[pairs.Key]float64{pairs.NewKey("B", "C"): 2}}
	result, err := newTestDriver(t, testConfig(), al, sc).Run(records)
	if err != nil {
		t.Fatal(err)
	}
	if len(sc.full) != 1 || sc.full[0].Key() != pairs.NewKey("B", "C") {
		t.Error("full stage should only score pairs of stripped clusters")
	}
	if singletons := result.Reports[1].Singletons; len(singletons) != 1 || singletons[0] != "A" {
		t.Errorf("stripped singletons failed: %v", singletons)
	}
}

func TestRunNoRescore(t *testing.T) {
	var records []reads.Record
	for i := 0; i < 12; i++ {
		records = append(records, reads.Record{ID: fmt.Sprint("r", i), Seq: "ACGTACGTAC"})
	}
	config := testConfig()
	config.ScorerBatches = 3
	sc := &fakeScorer{fallback: 1}
	result, err := newTestDriver(t, config, &fakeAligner{}, sc).Run(records)
	if err != nil {
		t.Fatal(err)
	}
	for _, stage := range [][]scorer.Request{sc.stripped, sc.full} {
		if len(stage) != 66 {
			t.Errorf("stage scored %v requests, expected 66", len(stage))
		}
		seen := make(map[pairs.Key]bool)
		for _, request := range stage {
			if seen[request.Key()] {
				t.Errorf("pair %v scored twice", request.Key())
			}
			seen[request.Key()] = true
		}
	}
	if result.Assignment.Len() != 1 || result.Assignment.Size() != 12 {
		t.Error("all reads should end up in one cluster")
	}
}

func TestRunMissingAnchor(t *testing.T) {
	hits := validHits("B")[2:]
	al := &fakeAligner{hits: map[string][]seeds.Hit{"B": hits}}
	sc := &fakeScorer{}
	result, err := newTestDriver(t, testConfig(), al, sc).Run([]reads.Record{{ID: "A", Seq: "ACGT"}, {ID: "B", Seq: "ACGT"}})
	if !errors.Is(err, internal.ErrFatalPrecondition) || !strings.Contains(err.Error(), "B") {
		t.Errorf("missing anchor hits should be fatal, got %v", err)
	}
	if result != nil {
		t.Error("a failed run should return no result")
	}
	if len(sc.stripped)+len(sc.full) != 0 {
		t.Error("no scoring should happen after a failed ingest")
	}
	workdirRemoved(t, al)
}

func TestRunAlignerFailure(t *testing.T) {
	al := &fakeAligner{err: fmt.Errorf("%w: aligner crashed", internal.ErrExternalTool)}
	if _, err := newTestDriver(t, testConfig(), al, &fakeScorer{}).Run([]reads.Record{{ID: "A", Seq: "ACGT"}}); !errors.Is(err, internal.ErrExternalTool) {
		t.Error("aligner failure should propagate")
	}
	workdirRemoved(t, al)
}

func TestRunScorerFailure(t *testing.T) {
	al := &fakeAligner{}
	sc := &fakeScorer{err: fmt.Errorf("%w: scorer crashed", internal.ErrExternalTool)}
	result, err := newTestDriver(t, testConfig(), al, sc).Run([]reads.Record{{ID: "A", Seq: "ACGT"}, {ID: "B", Seq: "ACGT"}})
	if !errors.Is(err, internal.ErrExternalTool) || result != nil {
		t.Error("scorer failure should abort the run")
	}
	workdirRemoved(t, al)
}

func TestRunWithoutThresholds(t *testing.T) {
	al := &fakeAligner{}
	result, err := newTestDriver(t, DefaultConfig(), al, &fakeScorer{}).Run([]reads.Record{{ID: "A", Seq: "ACGT"}})
	if err == nil || result != nil {
		t.Error("a run without thresholds should fail")
	}
	if al.workdir != "" {
		t.Error("the aligner should not run without thresholds")
	}
}

func TestRunNoReads(t *testing.T) {
	if _, err := newTestDriver(t, testConfig(), &fakeAligner{}, &fakeScorer{}).Run(nil); !errors.Is(err, internal.ErrFatalPrecondition) {
		t.Error("a run without reads should fail")
	}
}

func TestAnnotate(t *testing.T) {
	al := &fakeAligner{}
	sc := &fakeScorer{}
	records := []reads.Record{{ID: "A", Seq: "ACGT"}, {ID: "B", Seq: "GGTT"}}
	responses, err := newTestDriver(t, testConfig(), al, sc).Annotate(records)
	if err != nil {
		t.Fatal(err)
	}
	workdirRemoved(t, al)
	if len(responses) != 2 || responses[0].ID != "A" || responses[1].ID != "B" {
		t.Errorf("Annotate responses failed: %+v", responses)
	}
	if len(sc.single) != 2 || len(sc.single[0].Segments) != 4 || sc.single[0].Window.VFuzz != 5 {
		t.Errorf("Annotate requests failed: %+v", sc.single)
	}
	if responses[0].Fields["genes"] != "IGHV1-2*01:IGHV1-3*01:IGHD3-10*01:IGHJ4*02" {
		t.Errorf("Annotate fields failed: %v", responses[0].Fields)
	}
}

func TestWarnStale(t *testing.T) {
	config := testConfig()
	config.ModelLength = 200
	var logs bytes.Buffer
	log.SetOutput(&logs)
	defer log.SetOutput(os.Stderr)
	if _, err := newTestDriver(t, config, &fakeAligner{}, &fakeScorer{}).Annotate([]reads.Record{{ID: "A", Seq: "ACGT"}}); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(logs.String(), "Warning: read A has a remaining V length of 96") {
		t.Error("stale model warning missing")
	}
}

func BenchmarkCoarse(b *testing.B) {
	var records []reads.Record
	for i := 0; i < 500; i++ {
		seq := []byte(strings.Repeat("ACGT", 100))
		seq[i%len(seq)] = 'T'
		records = append(records, reads.Record{ID: fmt.Sprint("r", i), Seq: string(seq)})
	}
	d, err := NewDriver(testConfig(), &fakeAligner{}, &fakeScorer{}, nil)
	if err != nil {
		b.Fatal(err)
	}
	log.SetOutput(&bytes.Buffer{})
	defer log.SetOutput(os.Stderr)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		d.coarse(records)
	}
}
