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
	"math"
)

const (
	// DefaultModelLength is the remaining V length the cached scorer
	// models are built for.
	DefaultModelLength = 90

	// DefaultModelBuffer is how far a read's remaining V length may
	// differ from the model length before a warning is logged.
	DefaultModelBuffer = 15
)

// Config holds the parameters of one partitioning run. The three
// thresholds have no defaults and must be set explicitly.
type Config struct {
	// CoarseThreshold is the largest mismatch fraction for which two
	// reads are preclustered together.
	CoarseThreshold float64 `yaml:"coarse-threshold"`

	// StrippedThreshold and FullThreshold are the smallest scores for
	// which two reads are clustered together in the respective stage.
	StrippedThreshold float64 `yaml:"stripped-threshold"`
	FullThreshold     float64 `yaml:"full-threshold"`

	MaxCandidatesPerRegion int `yaml:"max-candidates-per-region"`
	DefaultVFuzz           int `yaml:"v-fuzz"`
	DefaultDFuzz           int `yaml:"d-fuzz"`

	// ScorerBatches is the number of concurrent scorer invocations per
	// stage.
	ScorerBatches int `yaml:"scorer-batches"`

	ModelLength int `yaml:"model-length"`
	ModelBuffer int `yaml:"model-buffer"`

	// WorkdirRoot is the directory below which the run's working
	// directory is created. The system temporary directory is used
	// when it is empty.
	WorkdirRoot string `yaml:"workdir"`
}

// DefaultConfig returns a Config with default values for everything
// but the thresholds, which are NaN.
func DefaultConfig() Config {
	return Config{
		CoarseThreshold:        math.NaN(),
		StrippedThreshold:      math.NaN(),
		FullThreshold:          math.NaN(),
		MaxCandidatesPerRegion: 5,
		DefaultVFuzz:           5,
		DefaultDFuzz:           10,
		ScorerBatches:          1,
		ModelLength:            DefaultModelLength,
		ModelBuffer:            DefaultModelBuffer,
	}
}

// Validate checks that all thresholds are set and all bounds are
// positive.
func (config *Config) Validate() error {
	if err := config.validateThresholds(); err != nil {
		return err
	}
	return config.ValidateBounds()
}

func (config *Config) validateThresholds() error {
	for _, threshold := range []struct {
		name  string
		value float64
	}{
		{"coarse threshold", config.CoarseThreshold},
		{"stripped threshold", config.StrippedThreshold},
		{"full threshold", config.FullThreshold},
	} {
		if math.IsNaN(threshold.value) || math.IsInf(threshold.value, 0) {
			return fmt.Errorf("the %v is not set", threshold.name)
		}
	}
	if config.CoarseThreshold < 0 {
		return fmt.Errorf("the coarse threshold %v is negative", config.CoarseThreshold)
	}
	return nil
}

// ValidateBounds checks all parameters except the thresholds, which
// are only needed for partitioning.
func (config *Config) ValidateBounds() error {
	switch {
	case config.MaxCandidatesPerRegion < 1:
		return fmt.Errorf("the maximum number of candidates per region must be at least 1, got %v", config.MaxCandidatesPerRegion)
	case config.DefaultVFuzz < 1:
		return fmt.Errorf("the default v fuzz must be at least 1, got %v", config.DefaultVFuzz)
	case config.DefaultDFuzz < 1:
		return fmt.Errorf("the default d fuzz must be at least 1, got %v", config.DefaultDFuzz)
	case config.ScorerBatches < 1:
		return fmt.Errorf("the number of scorer batches must be at least 1, got %v", config.ScorerBatches)
	case config.ModelLength < 1:
		return fmt.Errorf("the model length must be at least 1, got %v", config.ModelLength)
	case config.ModelBuffer < 0:
		return fmt.Errorf("the model buffer %v is negative", config.ModelBuffer)
	}
	return nil
}
