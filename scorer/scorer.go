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

// Package scorer is the boundary to the probabilistic scorer that
// rates how compatible two reads are with a shared recombination event.
package scorer

import (
	"fmt"

	"github.com/exascience/pargo/parallel"

	"github.com/exascience/elpart/internal"
	"github.com/exascience/elpart/pairs"
	"github.com/exascience/elpart/seeds"
	"github.com/exascience/elpart/utils"
)

// A Request asks for the score of a pair of reads, or for the best
// path of a single read when SecondID is empty.
type Request struct {
	ID, SecondID   string
	Seq, SecondSeq string

	// Window holds the hints passed to the scorer. SecondWindow holds
	// the second read's own hints, for scorers that can use both.
	Window, SecondWindow seeds.Window

	// Segments restricts the scorer to these reference segments.
	Segments []utils.Symbol
}

// Paired reports whether r is a request for a pair of reads.
func (r *Request) Paired() bool {
	return r.SecondID != ""
}

// Key returns the pair key of the request.
func (r *Request) Key() pairs.Key {
	if !r.Paired() {
		return pairs.UnpairedKey(r.ID)
	}
	return pairs.NewKey(r.ID, r.SecondID)
}

// A Response is the scorer's answer to one Request.
type Response struct {
	ID, SecondID string
	Score        float64

	// Fields holds the remaining output columns, for example the best
	// path annotation of a single read.
	Fields utils.StringMap
}

// Key returns the pair key of the response.
func (r *Response) Key() pairs.Key {
	if r.SecondID == "" {
		return pairs.UnpairedKey(r.ID)
	}
	return pairs.NewKey(r.ID, r.SecondID)
}

// A Scorer scores a batch of requests. The responses are in the same
// order as the requests. The workdir is owned by the caller.
type Scorer interface {
	Score(workdir string, requests []Request) ([]Response, error)
}

// Correlate orders responses by the requests they answer. Missing,
// unrequested and duplicate responses are external tool failures.
func Correlate(requests []Request, responses []Response) ([]Response, error) {
	index := make(map[pairs.Key]int, len(requests))
	for i := range requests {
		index[requests[i].Key()] = i
	}
	result := make([]Response, len(requests))
	answered := make([]bool, len(requests))
	for _, response := range responses {
		key := response.Key()
		i, ok := index[key]
		if !ok {
			return nil, fmt.Errorf("%w: scorer returned unrequested pair %v", internal.ErrExternalTool, key)
		}
		if answered[i] {
			return nil, fmt.Errorf("%w: scorer returned pair %v twice", internal.ErrExternalTool, key)
		}
		answered[i] = true
		result[i] = response
	}
	for i, ok := range answered {
		if !ok {
			return nil, fmt.Errorf("%w: scorer returned no score for pair %v", internal.ErrExternalTool, requests[i].Key())
		}
	}
	return result, nil
}

// AssertDistinct checks in pedantic mode that no pair occurs twice in
// a batch of requests.
func AssertDistinct(requests []Request) {
	if internal.PedanticMode {
		keys := make([]interface{}, len(requests))
		for i := range requests {
			keys[i] = requests[i].Key()
		}
		internal.AssertDistinct(keys)
	}
}

// ScoreAll splits the requests into at most batches shards, scores the
// shards concurrently, and returns all responses in request order.
func ScoreAll(s Scorer, workdir string, requests []Request, batches int) ([]Response, error) {
	if len(requests) == 0 {
		return nil, nil
	}
	AssertDistinct(requests)
	if batches > len(requests) {
		batches = len(requests)
	}
	if batches <= 1 {
		return s.Score(workdir, requests)
	}
	bounds := make([]int, batches+1)
	for i := range bounds {
		bounds[i] = i * len(requests) / batches
	}
	results := make([][]Response, batches)
	errs := make([]error, batches)
	parallel.Range(0, batches, batches, func(low, high int) {
		for i := low; i < high; i++ {
			results[i], errs[i] = s.Score(workdir, requests[bounds[i]:bounds[i+1]])
		}
	})
	responses := make([]Response, 0, len(requests))
	for i, err := range errs {
		if err != nil {
			return nil, err
		}
		responses = append(responses, results[i]...)
	}
	return responses, nil
}
