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

// Package aligner runs the local aligner that produces per-read
// alignment hits against the reference segments.
package aligner

import (
	"bufio"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"

	"github.com/exascience/elpart/fasta"
	"github.com/exascience/elpart/internal"
	"github.com/exascience/elpart/reads"
	"github.com/exascience/elpart/seeds"
)

// An Aligner aligns a set of reads against the reference segments and
// returns the hits grouped by read identifier. Reads without any hit
// are absent from the result. The workdir is owned by the caller.
type Aligner interface {
	Align(workdir string, records []reads.Record) (map[string][]seeds.Hit, error)
}

// Options are the arguments passed to the external aligner.
type Options struct {
	JSubset  string `yaml:"j-subset"`
	MaxDrop  int    `yaml:"max-drop"`
	Match    int    `yaml:"match"`
	Mismatch int    `yaml:"mismatch"`
	GapOpen  int    `yaml:"gap-open"`
	Threads  int    `yaml:"threads"`
}

// DefaultOptions returns the options the aligner is normally run with.
func DefaultOptions() Options {
	return Options{
		JSubset:  "adaptive",
		MaxDrop:  50,
		Match:    3,
		Mismatch: 1,
		GapOpen:  100,
	}
}

func (o Options) args(input, output string) []string {
	args := []string{
		"align-fastq",
		"--j-subset", o.JSubset,
		"--max-drop", strconv.Itoa(o.MaxDrop),
		"--match", strconv.Itoa(o.Match),
		"--mismatch", strconv.Itoa(o.Mismatch),
		"--gap-open", strconv.Itoa(o.GapOpen),
	}
	if o.Threads > 0 {
		args = append(args, "--threads", strconv.Itoa(o.Threads))
	}
	return append(args, input, output)
}

// A Process runs the aligner as an external program.
type Process struct {
	Path    string
	Options Options
}

const (
	queryFilename  = "query-seqs.fa"
	outputFilename = "query-seqs.bam"
)

// Align writes the reads to a FASTA file in workdir, runs the aligner
// on it, and decodes its BAM output. Both files are removed before
// Align returns.
func (p *Process) Align(workdir string, records []reads.Record) (hits map[string][]seeds.Hit, err error) {
	input := filepath.Join(workdir, queryFilename)
	output := filepath.Join(workdir, outputFilename)
	defer func() {
		for _, filename := range []string{input, output} {
			if rerr := os.Remove(filename); rerr != nil && !os.IsNotExist(rerr) && err == nil {
				err = rerr
			}
		}
	}()

	if err = writeQueries(input, records); err != nil {
		return nil, err
	}
	cmd := exec.Command(p.Path, p.Options.args(input, output)...)
	log.Println("Running aligner:", cmd.String())
	if err = internal.RunCmd(cmd); err != nil {
		return nil, err
	}
	f, err := os.Open(output)
	if err != nil {
		return nil, fmt.Errorf("%w: aligner produced no output: %v", internal.ErrExternalTool, err)
	}
	defer internal.Close(f, &err)
	return DecodeBAM(bufio.NewReader(f))
}

func writeQueries(filename string, records []reads.Record) (err error) {
	f, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer internal.Close(f, &err)
	entries := make([]fasta.Entry, len(records))
	for i, record := range records {
		entries[i] = fasta.Entry{Name: record.ID, Description: "NUKES", Seq: []byte(record.Seq)}
	}
	return fasta.WriteFasta(f, entries)
}
