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

package cmd

import (
	"bytes"
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/exascience/elpart/scorer"
)

// AnnotateHelp is the help string for this command.
const AnnotateHelp = "\nannotate parameters:\n" +
	"elpart annotate reads-file csv-output-file\n" +
	"[--config yaml-file]\n" +
	"[--algorithm viterbi | forward]\n" +
	commonHelp

// Annotate implements the elpart annotate command.
func Annotate() error {
	var common commonFlags
	config := DefaultRunConfig()
	config.Scorer.Algorithm = "viterbi"
	config.Scorer.NBestEvents = 1

	var flags flag.FlagSet

	common.add(&flags)
	flags.StringVar(&config.Scorer.Algorithm, "algorithm", config.Scorer.Algorithm, "scorer algorithm")
	addRunConfigFlags(&flags, &config)

	parseFlags(&flags, 4, AnnotateHelp)

	input := getFilename(os.Args[2], AnnotateHelp)
	output := getFilename(os.Args[3], AnnotateHelp)

	setLogOutput(common.logPath)

	// sanity checks

	var sanityChecksFailed bool

	if !checkExist("", input) {
		sanityChecksFailed = true
	}
	if !checkCreate("", output) {
		sanityChecksFailed = true
	}
	if common.configFile != "" {
		if err := applyConfigFile(&flags, common.configFile, &config); err != nil {
			sanityChecksFailed = true
			log.Println("Error:", err)
		}
	}
	if !common.check(&config) {
		sanityChecksFailed = true
	}
	if err := config.ValidateBounds(); err != nil {
		sanityChecksFailed = true
		log.Printf("Error: Invalid configuration: %v.\n", err)
	}
	switch config.Scorer.Algorithm {
	case "viterbi", "forward":
	default:
		sanityChecksFailed = true
		log.Println("Error: Invalid algorithm: ", config.Scorer.Algorithm)
	}
	if config.Scorer.NBestEvents != 1 {
		log.Println("Warning: Single reads are annotated with their best event only.")
		config.Scorer.NBestEvents = 1
	}

	if sanityChecksFailed {
		fmt.Fprint(os.Stderr, AnnotateHelp)
		os.Exit(1)
	}

	var command bytes.Buffer
	fmt.Fprint(&command, os.Args[0], " annotate ", input, " ", output)
	fmt.Fprint(&command, " --algorithm ", config.Scorer.Algorithm)
	common.echo(&command, &config)

	// executing command

	common.setThreads()

	log.Println("Executing command:\n", command.String())

	records, err := loadReads(&common, input, 1)
	if err != nil {
		return err
	}
	driver, err := newDriver(&config)
	if err != nil {
		return err
	}
	var responses []scorer.Response
	err = timedRun(common.timed, common.profile, "Annotating reads.", 2, func() (err error) {
		responses, err = driver.Annotate(records)
		return err
	})
	if err != nil {
		return err
	}
	return timedRun(common.timed, common.profile, "Write to file.", 3, func() error {
		return writeFile(output, func(w io.Writer) error {
			return writeAnnotations(w, responses)
		})
	})
}
