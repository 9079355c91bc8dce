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

// Package partition infers which reads originate from the same
// recombination event, by successively narrowing the pairs of reads
// that are scored.
package partition

import (
	"fmt"
	"log"
	"os"

	"github.com/exascience/elpart/aligner"
	"github.com/exascience/elpart/internal"
	"github.com/exascience/elpart/pairs"
	"github.com/exascience/elpart/reads"
	"github.com/exascience/elpart/scorer"
	"github.com/exascience/elpart/seeds"
)

// A Driver runs the stages of a partitioning run. A Driver keeps no
// state between runs.
type Driver struct {
	Config    Config
	Aligner   aligner.Aligner
	Scorer    scorer.Scorer
	annotator seeds.Annotator
}

// NewDriver returns a Driver for the given configuration. The usage
// table may be nil, in which case all segments have frequency 0.
func NewDriver(config Config, al aligner.Aligner, sc scorer.Scorer, usage *seeds.Usage) (*Driver, error) {
	if err := config.ValidateBounds(); err != nil {
		return nil, err
	}
	if al == nil || sc == nil {
		return nil, fmt.Errorf("a driver needs both an aligner and a scorer")
	}
	return &Driver{
		Config:  config,
		Aligner: al,
		Scorer:  sc,
		annotator: seeds.Annotator{
			Usage:                  usage,
			MaxCandidatesPerRegion: config.MaxCandidatesPerRegion,
			DefaultVFuzz:           config.DefaultVFuzz,
			DefaultDFuzz:           config.DefaultDFuzz,
		},
	}, nil
}

func (d *Driver) makeWorkdir(records []reads.Record) (string, error) {
	if len(records) == 0 {
		return "", fmt.Errorf("%w: no reads to process", internal.ErrFatalPrecondition)
	}
	workdir, err := internal.MakeWorkdir(d.Config.WorkdirRoot, "elpart")
	if err != nil {
		return "", err
	}
	log.Println("Working directory", workdir)
	return workdir, nil
}

// removeWorkdir is the cleanup stage. It runs on both success and
// failure.
func removeWorkdir(workdir string, err *error) {
	log.Println("Stage", Cleanup)
	if rerr := os.RemoveAll(workdir); rerr != nil && *err == nil {
		*err = rerr
	}
}

// warnStale logs the reads for which the cached scorer models are
// built for a substantially different remaining V length.
func (d *Driver) warnStale(annotations []*seeds.Annotation) {
	for _, annotation := range annotations {
		difference := annotation.RemainingLength - d.Config.ModelLength
		if difference < 0 {
			difference = -difference
		}
		if difference >= d.Config.ModelBuffer {
			log.Printf("Warning: read %v has a remaining V length of %v, but the scorer models assume %v.\n",
				annotation.ReadID, annotation.RemainingLength, d.Config.ModelLength)
		}
	}
}

/*
Run partitions the given reads into clusters of reads that stem from
the same recombination event. The stages are seed ingestion, coarse
preclustering by mismatch fraction, a stripped scorer pass restricted
to the coarse clusters, and a full scorer pass restricted to the
stripped clusters. The clusters of the full pass are the result.

Any failure aborts the run without a result. The run's working
directory is removed in all cases.
*/
func (d *Driver) Run(records []reads.Record) (result *Result, err error) {
	if err := d.Config.Validate(); err != nil {
		return nil, err
	}
	workdir, err := d.makeWorkdir(records)
	if err != nil {
		return nil, err
	}
	defer func() {
		removeWorkdir(workdir, &err)
		if err != nil {
			result = nil
		}
	}()

	annotations, err := d.ingest(workdir, records)
	if err != nil {
		return nil, err
	}

	coarse, coarseReport := d.coarse(records)

	stripped, strippedReport, err := d.scoreStage(workdir, StrippedScore, records, annotations, coarse)
	if err != nil {
		return nil, err
	}

	d.warnStale(annotations)
	full, fullReport, err := d.scoreStage(workdir, FullScore, records, annotations, stripped)
	if err != nil {
		return nil, err
	}

	evaluate(records, full)
	return &Result{
		Assignment: full,
		Reports:    []StageReport{coarseReport, strippedReport, fullReport},
	}, nil
}

/*
Annotate determines the best path for each single read. It runs seed
ingestion, and then submits one request per read to the scorer, with
the read's full candidate list and its own window. The responses are
in the order of the reads.
*/
func (d *Driver) Annotate(records []reads.Record) (responses []scorer.Response, err error) {
	workdir, err := d.makeWorkdir(records)
	if err != nil {
		return nil, err
	}
	defer func() {
		removeWorkdir(workdir, &err)
		if err != nil {
			responses = nil
		}
	}()

	annotations, err := d.ingest(workdir, records)
	if err != nil {
		return nil, err
	}
	d.warnStale(annotations)

	cache := pairs.NewCache()
	requests := make([]scorer.Request, 0, len(records))
	for i := range records {
		if !cache.MarkScored(pairs.UnpairedKey(records[i].ID)) {
			continue
		}
		requests = append(requests, scorer.Request{
			ID:       records[i].ID,
			Seq:      records[i].Seq,
			Window:   annotations[i].Window,
			Segments: annotations[i].AllSegments(),
		})
	}
	responses, err = scorer.ScoreAll(d.Scorer, workdir, requests, d.Config.ScorerBatches)
	if err != nil {
		return nil, err
	}
	return scorer.Correlate(requests, responses)
}
