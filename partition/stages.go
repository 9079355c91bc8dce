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
	"log"
	"sort"

	"github.com/exascience/pargo/parallel"
	"github.com/exascience/pargo/pipeline"

	"github.com/exascience/elpart/cluster"
	"github.com/exascience/elpart/internal"
	"github.com/exascience/elpart/pairs"
	"github.com/exascience/elpart/reads"
	"github.com/exascience/elpart/scorer"
	"github.com/exascience/elpart/seeds"
)

// ingest runs the aligner once over all reads and annotates each read
// from its hits. The annotations are in the order of the reads.
func (d *Driver) ingest(workdir string, records []reads.Record) ([]*seeds.Annotation, error) {
	log.Println("Stage", SeedIngest)
	hits, err := d.Aligner.Align(workdir, records)
	if err != nil {
		return nil, fmt.Errorf("%v stage: %w", SeedIngest, err)
	}

	annotations := make([]*seeds.Annotation, len(records))
	next := 0
	var p pipeline.Pipeline
	p.Source(pipeline.NewFunc(len(records), func(size int) (interface{}, int, error) {
		if next >= len(records) {
			return nil, 0, nil
		}
		end := next + size
		if end > len(records) {
			end = len(records)
			size = end - next
		}
		result := [2]int{next, end}
		next = end
		return result, size, nil
	}))
	p.SetVariableBatchSize(64, 1024)
	nofHits := 0
	p.Add(
		pipeline.LimitedPar(0, pipeline.Receive(func(_ int, data interface{}) interface{} {
			span := data.([2]int)
			count := 0
			for i := span[0]; i < span[1]; i++ {
				readHits := hits[records[i].ID]
				annotation, err := d.annotator.Annotate(records[i].ID, readHits)
				if err != nil {
					p.SetErr(err)
					return 0
				}
				annotations[i] = annotation
				count += len(readHits)
			}
			return count
		})),
		pipeline.StrictOrd(pipeline.Receive(func(_ int, data interface{}) interface{} {
			nofHits += data.(int)
			return nil
		})),
	)
	if err := internal.RunPipeline(&p); err != nil {
		return nil, fmt.Errorf("%v stage: %w", SeedIngest, err)
	}
	log.Printf("Annotated %v reads from %v alignment hits.\n", len(records), nofHits)
	return annotations, nil
}

// MismatchFraction returns the fraction of positions at which two
// sequences of equal length differ.
func MismatchFraction(seq1, seq2 string) float64 {
	if len(seq1) == 0 {
		return 0
	}
	mismatches := 0
	for i := 0; i < len(seq1); i++ {
		if seq1[i] != seq2[i] {
			mismatches++
		}
	}
	return float64(mismatches) / float64(len(seq1))
}

func clusterScores(clusterer cluster.Clusterer, cache *pairs.Cache) *cluster.Assignment {
	scores := cache.Scores()
	return clusterer.ClusterFunc(func(add func(a, b string, score float64)) {
		for _, score := range scores {
			a, b := score.Key.IDs()
			add(a, b, score.Score)
		}
	})
}

func report(stage Stage, records []reads.Record, cache *pairs.Cache, assignment *cluster.Assignment) StageReport {
	singletons := assignment.Singletons(reads.IDs(records))
	log.Printf("Stage %v: %v pairs scored, %v clusters, %v singletons.\n", stage, cache.Len(), assignment.Len(), len(singletons))
	for _, id := range singletons {
		log.Println("singleton", id)
	}
	return StageReport{
		Stage:      stage,
		Pairs:      cache.Len(),
		Clusters:   assignment.Len(),
		Singletons: singletons,
	}
}

// coarse preclusters all pairs of reads of equal length by their
// mismatch fraction. Pairs of reads of different length are skipped.
func (d *Driver) coarse(records []reads.Record) (*cluster.Assignment, StageReport) {
	log.Println("Stage", CoarsePrecluster)
	cache := pairs.NewCache()
	parallel.Range(0, len(records), 0, func(low, high int) {
		for i := low; i < high; i++ {
			record := &records[i]
			for j := range records {
				other := &records[j]
				if i == j || len(record.Seq) != len(other.Seq) {
					continue
				}
				key := pairs.NewKey(record.ID, other.ID)
				if cache.MarkScored(key) {
					cache.Record(key, MismatchFraction(record.Seq, other.Seq))
				}
			}
		}
	})
	assignment := clusterScores(cluster.Clusterer{Threshold: d.Config.CoarseThreshold, Keep: cluster.AtMost}, cache)
	return assignment, report(CoarsePrecluster, records, cache, assignment)
}

// pairRequest builds the scoring request for a pair. A stripped request
// is restricted to the best segments of both reads, without fuzz. A
// full request uses all candidates of both reads. In both cases, each
// read keeps its own window hints.
func pairRequest(stage Stage, record, other *reads.Record, annotation, otherAnnotation *seeds.Annotation) scorer.Request {
	request := scorer.Request{
		ID:           record.ID,
		SecondID:     other.ID,
		Seq:          record.Seq,
		SecondSeq:    other.Seq,
		Window:       annotation.Window,
		SecondWindow: otherAnnotation.Window,
	}
	if stage == StrippedScore {
		request.Segments = seeds.SegmentUnion(annotation.BestSegments(), otherAnnotation.BestSegments())
		request.Window.VFuzz, request.Window.DFuzz = 1, 1
		request.SecondWindow.VFuzz, request.SecondWindow.DFuzz = 1, 1
	} else {
		request.Segments = seeds.SegmentUnion(annotation.AllSegments(), otherAnnotation.AllSegments())
	}
	return request
}

// pairRequests returns one request for each pair of reads in the same
// cluster of previous. Requests are ordered by their read identifiers.
func pairRequests(stage Stage, records []reads.Record, annotations []*seeds.Annotation, previous *cluster.Assignment, cache *pairs.Cache) []scorer.Request {
	index := make(map[string]int, len(records))
	for i := range records {
		index[records[i].ID] = i
	}
	rows := make([][]scorer.Request, len(records))
	parallel.Range(0, len(records), 0, func(low, high int) {
		for i := low; i < high; i++ {
			c, ok := previous.ClusterOf(records[i].ID)
			if !ok {
				continue
			}
			for _, member := range previous.Members(c) {
				if member == records[i].ID {
					continue
				}
				key := pairs.NewKey(records[i].ID, member)
				if !cache.MarkScored(key) {
					continue
				}
				first, second := key.IDs()
				x, y := index[first], index[second]
				rows[i] = append(rows[i], pairRequest(stage, &records[x], &records[y], annotations[x], annotations[y]))
			}
		}
	})
	var requests []scorer.Request
	for _, row := range rows {
		requests = append(requests, row...)
	}
	sort.Slice(requests, func(i, j int) bool {
		if requests[i].ID != requests[j].ID {
			return requests[i].ID < requests[j].ID
		}
		return requests[i].SecondID < requests[j].SecondID
	})
	return requests
}

func (d *Driver) threshold(stage Stage) float64 {
	if stage == StrippedScore {
		return d.Config.StrippedThreshold
	}
	return d.Config.FullThreshold
}

// scoreStage scores all pairs of reads that share a cluster in
// previous, and clusters them by their scores.
func (d *Driver) scoreStage(workdir string, stage Stage, records []reads.Record, annotations []*seeds.Annotation, previous *cluster.Assignment) (*cluster.Assignment, StageReport, error) {
	log.Println("Stage", stage)
	cache := pairs.NewCache()
	requests := pairRequests(stage, records, annotations, previous, cache)
	responses, err := scorer.ScoreAll(d.Scorer, workdir, requests, d.Config.ScorerBatches)
	if err == nil {
		responses, err = scorer.Correlate(requests, responses)
	}
	if err != nil {
		return nil, StageReport{}, fmt.Errorf("%v stage: %w", stage, err)
	}
	for i := range responses {
		cache.Record(requests[i].Key(), responses[i].Score)
	}
	assignment := clusterScores(cluster.Clusterer{Threshold: d.threshold(stage), Keep: cluster.AtLeast}, cache)
	return assignment, report(stage, records, cache, assignment), nil
}

func choose2(n int) int {
	return n * (n - 1) / 2
}

// evaluate logs how well the final clusters match the known
// recombination events, if all reads carry one.
func evaluate(records []reads.Record, assignment *cluster.Assignment) {
	recoOf := make(map[string]string, len(records))
	events := make(map[string]int)
	for _, record := range records {
		if record.RecoID == "" {
			return
		}
		recoOf[record.ID] = record.RecoID
		events[record.RecoID]++
	}
	truePairs := 0
	for _, n := range events {
		truePairs += choose2(n)
	}
	clusteredPairs, correctPairs := 0, 0
	for _, members := range assignment.Clusters() {
		clusteredPairs += choose2(len(members))
		perEvent := make(map[string]int)
		for _, id := range members {
			perEvent[recoOf[id]]++
		}
		for _, n := range perEvent {
			correctPairs += choose2(n)
		}
	}
	log.Printf("Evaluation: %v of %v clustered pairs share a recombination event, %v of %v pairs from the same event are clustered.\n",
		correctPairs, clusteredPairs, correctPairs, truePairs)
}
