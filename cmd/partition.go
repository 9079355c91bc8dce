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
	"runtime"

	"github.com/exascience/elpart/aligner"
	"github.com/exascience/elpart/internal"
	"github.com/exascience/elpart/partition"
	"github.com/exascience/elpart/reads"
	"github.com/exascience/elpart/scorer"
	"github.com/exascience/elpart/seeds"
)

// PartitionHelp is the help string for this command.
const PartitionHelp = "\npartition parameters:\n" +
	"elpart partition reads-file csv-output-file\n" +
	"[--config yaml-file]\n" +
	"[--coarse-threshold fraction]\n" +
	"[--stripped-threshold score]\n" +
	"[--full-threshold score]\n" +
	"[--singletons csv-file]\n" +
	commonHelp

const commonHelp = "[--usage-dir path]\n" +
	"[--max-candidates-per-region nr]\n" +
	"[--v-fuzz nr]\n" +
	"[--d-fuzz nr]\n" +
	"[--scorer-batches nr]\n" +
	"[--model-length nr]\n" +
	"[--model-buffer nr]\n" +
	"[--workdir path]\n" +
	"[--aligner executable]\n" +
	"[--aligner-threads nr]\n" +
	"[--scorer executable]\n" +
	"[--hmm-dir path]\n" +
	"[--data-dir path]\n" +
	"[--debug level]\n" +
	"[--n-reads nr]\n" +
	"[--nr-of-threads nr]\n" +
	"[--timed]\n" +
	"[--profile file]\n" +
	"[--log-path path]\n"

// commonFlags are the flags of all commands that are not part of a
// RunConfig.
type commonFlags struct {
	configFile  string
	nReads      int
	nrOfThreads int
	timed       bool
	profile     string
	logPath     string
}

func (c *commonFlags) add(flags *flag.FlagSet) {
	flags.StringVar(&c.configFile, "config", "", "YAML run configuration")
	flags.IntVar(&c.nReads, "n-reads", 0, "only process the first n reads")
	flags.IntVar(&c.nrOfThreads, "nr-of-threads", 0, "number of worker threads")
	flags.BoolVar(&c.timed, "timed", false, "measure the runtime")
	flags.StringVar(&c.profile, "profile", "", "write a runtime profile to the specified file(s)")
	flags.StringVar(&c.logPath, "log-path", "", "write log files to the specified directory")
}

// check performs the sanity checks for the common flags and the files
// named in config.
func (c *commonFlags) check(config *RunConfig) bool {
	ok := true
	if c.configFile != "" && !checkExist("--config", c.configFile) {
		ok = false
	}
	if config.UsageDir != "" && !checkExist("--usage-dir", config.UsageDir) {
		ok = false
	}
	if c.profile != "" && !checkCreate("--profile", c.profile) {
		ok = false
	}
	if config.WorkdirRoot != "" {
		if root, err := internal.FullPathname(config.WorkdirRoot); err != nil {
			ok = false
			log.Println("Error: Invalid workdir: ", err)
		} else {
			config.WorkdirRoot = root
		}
	}
	if c.nReads < 0 {
		ok = false
		log.Println("Error: Invalid n-reads: ", c.nReads)
	}
	if c.nrOfThreads < 0 {
		ok = false
		log.Println("Error: Invalid nr-of-threads: ", c.nrOfThreads)
	}
	return ok
}

func (c *commonFlags) echo(command io.Writer, config *RunConfig) {
	if c.configFile != "" {
		fmt.Fprint(command, " --config ", c.configFile)
	}
	if config.UsageDir != "" {
		fmt.Fprint(command, " --usage-dir ", config.UsageDir)
	}
	fmt.Fprint(command, " --max-candidates-per-region ", config.MaxCandidatesPerRegion)
	fmt.Fprint(command, " --v-fuzz ", config.DefaultVFuzz)
	fmt.Fprint(command, " --d-fuzz ", config.DefaultDFuzz)
	fmt.Fprint(command, " --scorer-batches ", config.ScorerBatches)
	fmt.Fprint(command, " --model-length ", config.ModelLength)
	fmt.Fprint(command, " --model-buffer ", config.ModelBuffer)
	if config.WorkdirRoot != "" {
		fmt.Fprint(command, " --workdir ", config.WorkdirRoot)
	}
	fmt.Fprint(command, " --aligner ", config.Aligner.Path)
	if config.Aligner.Threads > 0 {
		fmt.Fprint(command, " --aligner-threads ", config.Aligner.Threads)
	}
	fmt.Fprint(command, " --scorer ", config.Scorer.Path)
	fmt.Fprint(command, " --hmm-dir ", config.Scorer.HMMDir)
	if config.Scorer.DataDir != "" {
		fmt.Fprint(command, " --data-dir ", config.Scorer.DataDir)
	}
	if config.Scorer.Debug != 0 {
		fmt.Fprint(command, " --debug ", config.Scorer.Debug)
	}
	if c.nReads > 0 {
		fmt.Fprint(command, " --n-reads ", c.nReads)
	}
	if c.nrOfThreads > 0 {
		fmt.Fprint(command, " --nr-of-threads ", c.nrOfThreads)
	}
	if c.timed {
		fmt.Fprint(command, " --timed")
	}
	if c.profile != "" {
		fmt.Fprint(command, " --profile ", c.profile)
	}
	if c.logPath != "" {
		fmt.Fprint(command, " --log-path ", c.logPath)
	}
}

func (c *commonFlags) setThreads() {
	if c.nrOfThreads > 0 {
		runtime.GOMAXPROCS(c.nrOfThreads)
	}
}

func newDriver(config *RunConfig) (*partition.Driver, error) {
	var usage *seeds.Usage
	if config.UsageDir != "" {
		u, err := seeds.ParseUsage(config.UsageDir)
		if err != nil {
			return nil, err
		}
		usage = &u
	} else {
		log.Println("Warning: No usage tables given, candidates are ranked as if all segments were unused.")
	}
	return partition.NewDriver(
		config.Config,
		&aligner.Process{Path: config.Aligner.Path, Options: config.Aligner.Options},
		&scorer.Process{Path: config.Scorer.Path, Options: config.Scorer.Options},
		usage,
	)
}

func loadReads(c *commonFlags, input string, phase int64) (records []reads.Record, err error) {
	err = timedRun(c.timed, c.profile, "Loading reads.", phase, func() (err error) {
		records, err = reads.Load(input, c.nReads)
		return err
	})
	if err == nil {
		log.Printf("Loaded %v reads.\n", len(records))
	}
	return records, err
}

// Partition implements the elpart partition command.
func Partition() error {
	var (
		common     commonFlags
		singletons string
	)
	config := DefaultRunConfig()

	var flags flag.FlagSet

	common.add(&flags)
	flags.Float64Var(&config.CoarseThreshold, "coarse-threshold", config.CoarseThreshold, "largest mismatch fraction for preclustering two reads")
	flags.Float64Var(&config.StrippedThreshold, "stripped-threshold", config.StrippedThreshold, "smallest stripped score for clustering two reads")
	flags.Float64Var(&config.FullThreshold, "full-threshold", config.FullThreshold, "smallest full score for clustering two reads")
	flags.StringVar(&singletons, "singletons", "", "write the singletons of each stage to the specified file")
	addRunConfigFlags(&flags, &config)

	parseFlags(&flags, 4, PartitionHelp)

	input := getFilename(os.Args[2], PartitionHelp)
	output := getFilename(os.Args[3], PartitionHelp)

	setLogOutput(common.logPath)

	// sanity checks

	var sanityChecksFailed bool

	if !checkExist("", input) {
		sanityChecksFailed = true
	}
	if !checkCreate("", output) {
		sanityChecksFailed = true
	}
	if singletons != "" && !checkCreate("--singletons", singletons) {
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
	if err := config.Validate(); err != nil {
		sanityChecksFailed = true
		log.Printf("Error: Invalid configuration: %v.\n", err)
	}
	if config.Scorer.Algorithm != "forward" {
		log.Printf("Warning: Pair scores are computed with the forward algorithm, ignoring algorithm %v.\n", config.Scorer.Algorithm)
		config.Scorer.Algorithm = "forward"
	}

	if sanityChecksFailed {
		fmt.Fprint(os.Stderr, PartitionHelp)
		os.Exit(1)
	}

	var command bytes.Buffer
	fmt.Fprint(&command, os.Args[0], " partition ", input, " ", output)
	fmt.Fprint(&command, " --coarse-threshold ", config.CoarseThreshold)
	fmt.Fprint(&command, " --stripped-threshold ", config.StrippedThreshold)
	fmt.Fprint(&command, " --full-threshold ", config.FullThreshold)
	if singletons != "" {
		fmt.Fprint(&command, " --singletons ", singletons)
	}
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
	var result *partition.Result
	err = timedRun(common.timed, common.profile, "Partitioning reads.", 2, func() (err error) {
		result, err = driver.Run(records)
		return err
	})
	if err != nil {
		return err
	}
	log.Printf("Found %v clusters and %v singletons.\n", result.Assignment.Len(), len(result.Singletons()))
	return timedRun(common.timed, common.profile, "Write to file.", 3, func() error {
		if err := writeFile(output, func(w io.Writer) error {
			return writePartition(w, records, result.Assignment)
		}); err != nil {
			return err
		}
		if singletons == "" {
			return nil
		}
		return writeFile(singletons, func(w io.Writer) error {
			return writeSingletons(w, result.Reports)
		})
	})
}
