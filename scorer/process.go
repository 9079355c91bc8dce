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

package scorer

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"log"
	"math"
	"os"
	"os/exec"
	"strconv"

	"github.com/exascience/elpart/internal"
	"github.com/exascience/elpart/utils"
)

// Options are the arguments passed to the external scorer.
type Options struct {
	// Algorithm is forward for pair scores, viterbi for best paths.
	Algorithm   string `yaml:"algorithm"`
	NBestEvents int    `yaml:"n-best-events"`
	Debug       int    `yaml:"debug"`
	HMMDir      string `yaml:"hmm-dir"`
	DataDir     string `yaml:"data-dir"`
}

// DefaultOptions returns the options for pair scoring.
func DefaultOptions() Options {
	return Options{
		Algorithm:   "forward",
		NBestEvents: 3,
	}
}

func (o Options) args(paired bool, input, output string) []string {
	args := []string{
		"--algorithm", o.Algorithm,
		"--n_best_events", strconv.Itoa(o.NBestEvents),
		"--debug", strconv.Itoa(o.Debug),
		"--hmmdir", o.HMMDir,
	}
	if o.DataDir != "" {
		args = append(args, "--datadir", o.DataDir)
	}
	if paired {
		args = append(args, "--pair", "1")
	}
	return append(args, "--infile", input, "--outfile", output)
}

// A Process runs the scorer as an external program, once per batch.
type Process struct {
	Path    string
	Options Options
}

// Score writes the requests to a uniquely named file in workdir, runs
// the scorer on it, and parses its output. A batch must consist of
// either only pairs or only single reads.
func (p *Process) Score(workdir string, requests []Request) (responses []Response, err error) {
	if len(requests) == 0 {
		return nil, nil
	}
	paired := requests[0].Paired()
	for i := range requests {
		if requests[i].Paired() != paired {
			return nil, fmt.Errorf("scorer batch mixes pairs and single reads")
		}
	}
	input := internal.UniqueFilename(workdir, "scorer-input", ".csv")
	output := internal.UniqueFilename(workdir, "scorer-output", ".csv")
	defer func() {
		for _, filename := range []string{input, output} {
			if rerr := os.Remove(filename); rerr != nil && !os.IsNotExist(rerr) && err == nil {
				err = rerr
			}
		}
	}()

	if err = writeRequestFile(input, requests); err != nil {
		return nil, err
	}
	cmd := exec.Command(p.Path, p.Options.args(paired, input, output)...)
	log.Printf("Running scorer on %v requests: %v\n", len(requests), cmd.String())
	if err = internal.RunCmd(cmd); err != nil {
		return nil, err
	}
	f, err := os.Open(output)
	if err != nil {
		return nil, fmt.Errorf("%w: scorer produced no output: %v", internal.ErrExternalTool, err)
	}
	defer internal.Close(f, &err)
	responses, err = ReadResponses(bufio.NewReader(f))
	if err != nil {
		return nil, err
	}
	return Correlate(requests, responses)
}

func writeRequestFile(filename string, requests []Request) (err error) {
	f, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer internal.Close(f, &err)
	return WriteRequests(f, requests)
}

// RequestHeader is the header line of the scorer input.
const RequestHeader = "name second_name k_v_guess k_d_guess v_fuzz d_fuzz only_genes seq second_seq"

// WriteRequests writes the requests in the scorer's space-separated
// input format. Single reads use placeholders for the second read.
func WriteRequests(w io.Writer, requests []Request) error {
	out := bufio.NewWriter(w)
	if _, err := out.WriteString(RequestHeader + "\n"); err != nil {
		return err
	}
	buf := internal.ReserveByteBuffer()
	defer func() {
		internal.ReleaseByteBuffer(buf)
	}()
	for i := range requests {
		request := &requests[i]
		secondID, secondSeq := internal.UnpairedField, internal.UnpairedField
		if request.Paired() {
			secondID, secondSeq = request.SecondID, request.SecondSeq
		}
		buf = buf[:0]
		buf = append(buf, request.ID...)
		buf = append(buf, ' ')
		buf = append(buf, secondID...)
		for _, n := range [...]int{request.Window.KV, request.Window.KD, request.Window.VFuzz, request.Window.DFuzz} {
			buf = append(buf, ' ')
			buf = strconv.AppendInt(buf, int64(n), 10)
		}
		buf = append(buf, ' ')
		buf = append(buf, utils.JoinSymbols(request.Segments, ":")...)
		buf = append(buf, ' ')
		buf = append(buf, request.Seq...)
		buf = append(buf, ' ')
		buf = append(buf, secondSeq...)
		buf = append(buf, '\n')
		if _, err := out.Write(buf); err != nil {
			return err
		}
	}
	return out.Flush()
}

const (
	idColumn       = "unique_id"
	secondIDColumn = "second_unique_id"
	scoreColumn    = "score"
)

func responseError(format string, v ...interface{}) error {
	return fmt.Errorf("%w: %v", internal.ErrExternalTool, fmt.Sprintf(format, v...))
}

// ReadResponses parses the scorer's CSV output. Columns other than
// unique_id, second_unique_id and score are kept in Response.Fields.
func ReadResponses(r io.Reader) ([]Response, error) {
	reader := csv.NewReader(r)
	header, err := reader.Read()
	if err == io.EOF {
		return nil, responseError("empty scorer output")
	}
	if err != nil {
		return nil, responseError("invalid scorer output header: %v", err)
	}
	columns := make(utils.StringMap, len(header))
	idIndex, secondIndex, scoreIndex := -1, -1, -1
	for i, column := range header {
		if !columns.SetUniqueEntry(column, "") {
			return nil, responseError("duplicate scorer output column %v", column)
		}
		switch column {
		case idColumn:
			idIndex = i
		case secondIDColumn:
			secondIndex = i
		case scoreColumn:
			scoreIndex = i
		}
	}
	if idIndex < 0 || scoreIndex < 0 {
		return nil, responseError("scorer output lacks %v or %v column", idColumn, scoreColumn)
	}
	var responses []Response
	for {
		line, err := reader.Read()
		if err == io.EOF {
			return responses, nil
		}
		if err != nil {
			return nil, responseError("invalid scorer output: %v", err)
		}
		response := Response{ID: line[idIndex], Fields: make(utils.StringMap)}
		if response.ID == "" {
			return nil, responseError("scorer output line without %v", idColumn)
		}
		if secondIndex >= 0 && line[secondIndex] != internal.UnpairedField {
			response.SecondID = line[secondIndex]
		}
		if response.Score, err = strconv.ParseFloat(line[scoreIndex], 64); err != nil {
			return nil, responseError("invalid score for %v: %v", response.Key(), err)
		}
		if math.IsNaN(response.Score) || math.IsInf(response.Score, 0) {
			return nil, responseError("invalid score for %v: %v", response.Key(), line[scoreIndex])
		}
		for i, value := range line {
			if i != idIndex && i != secondIndex && i != scoreIndex {
				response.Fields[header[i]] = value
			}
		}
		responses = append(responses, response)
	}
}
