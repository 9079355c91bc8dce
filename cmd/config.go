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
	"flag"
	"fmt"
	"os"

	"github.com/goccy/go-yaml"

	"github.com/exascience/elpart/aligner"
	"github.com/exascience/elpart/partition"
	"github.com/exascience/elpart/scorer"
)

// AlignerConfig configures the external aligner.
type AlignerConfig struct {
	Path            string `yaml:"path"`
	aligner.Options `yaml:",inline"`
}

// ScorerConfig configures the external scorer.
type ScorerConfig struct {
	Path           string `yaml:"path"`
	scorer.Options `yaml:",inline"`
}

// A RunConfig is the complete configuration of a run, as read from a
// --config file and the command line.
type RunConfig struct {
	partition.Config `yaml:",inline"`

	UsageDir string        `yaml:"usage-dir"`
	Aligner  AlignerConfig `yaml:"aligner"`
	Scorer   ScorerConfig  `yaml:"scorer"`
}

// DefaultRunConfig returns the configuration used when neither a
// config file nor the command line sets a value.
func DefaultRunConfig() RunConfig {
	return RunConfig{
		Config:  partition.DefaultConfig(),
		Aligner: AlignerConfig{Path: "vdjalign", Options: aligner.DefaultOptions()},
		Scorer:  ScorerConfig{Path: "stochhmm", Options: scorer.DefaultOptions()},
	}
}

// ParseRunConfig parses a YAML run configuration into config. Keys
// that are absent leave the corresponding fields unchanged. Unknown
// keys are an error.
func ParseRunConfig(data []byte, config *RunConfig) error {
	return yaml.UnmarshalWithOptions(data, config, yaml.Strict())
}

// addRunConfigFlags defines the command line flags that are shared by
// all commands, bound to the fields of config.
func addRunConfigFlags(flags *flag.FlagSet, config *RunConfig) {
	flags.StringVar(&config.UsageDir, "usage-dir", config.UsageDir, "directory with the v_gene-probs.csv, d_gene-probs.csv and j_gene-probs.csv tables")
	flags.IntVar(&config.MaxCandidatesPerRegion, "max-candidates-per-region", config.MaxCandidatesPerRegion, "maximum number of candidate segments per region")
	flags.IntVar(&config.DefaultVFuzz, "v-fuzz", config.DefaultVFuzz, "default v fuzz")
	flags.IntVar(&config.DefaultDFuzz, "d-fuzz", config.DefaultDFuzz, "default d fuzz")
	flags.IntVar(&config.ScorerBatches, "scorer-batches", config.ScorerBatches, "number of concurrent scorer runs per stage")
	flags.IntVar(&config.ModelLength, "model-length", config.ModelLength, "remaining v length of the cached scorer models")
	flags.IntVar(&config.ModelBuffer, "model-buffer", config.ModelBuffer, "tolerated difference to the model length")
	flags.StringVar(&config.WorkdirRoot, "workdir", config.WorkdirRoot, "directory for intermediate files")
	flags.StringVar(&config.Aligner.Path, "aligner", config.Aligner.Path, "aligner executable")
	flags.IntVar(&config.Aligner.Threads, "aligner-threads", config.Aligner.Threads, "number of aligner threads")
	flags.StringVar(&config.Scorer.Path, "scorer", config.Scorer.Path, "scorer executable")
	flags.StringVar(&config.Scorer.HMMDir, "hmm-dir", config.Scorer.HMMDir, "directory with the scorer models")
	flags.StringVar(&config.Scorer.DataDir, "data-dir", config.Scorer.DataDir, "directory with the germline data")
	flags.IntVar(&config.Scorer.Debug, "debug", config.Scorer.Debug, "scorer debug level")
}

// applyConfigFile reads the config file into config, and then applies
// the flags that were explicitly set on the command line again, so
// that these take precedence over the file.
func applyConfigFile(flags *flag.FlagSet, filename string, config *RunConfig) error {
	if filename == "" {
		return nil
	}
	set := make(map[string]string)
	flags.Visit(func(f *flag.Flag) {
		set[f.Name] = f.Value.String()
	})
	data, err := os.ReadFile(filename)
	if err != nil {
		return err
	}
	if err := ParseRunConfig(data, config); err != nil {
		return fmt.Errorf("invalid config file %v: %w", filename, err)
	}
	for name, value := range set {
		if err := flags.Set(name, value); err != nil {
			return err
		}
	}
	return nil
}
