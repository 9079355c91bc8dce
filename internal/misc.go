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

package internal

import (
	"bytes"
	"fmt"
	"os/exec"
	"strings"

	"github.com/exascience/pargo/pipeline"
)

// UnpairedField is the placeholder the scorer file formats use for the
// missing second read of a single-read row. It is never a read
// identifier.
const UnpairedField = "x"

// RunPipeline is p.Run() followed by p.Err()
func RunPipeline(p *pipeline.Pipeline) error {
	p.Run()
	return p.Err()
}

// RunCmd is cmd.Run() with the external command's standard error
// attached to the returned error, which wraps ErrExternalTool.
func RunCmd(cmd *exec.Cmd) error {
	var stderr bytes.Buffer
	if cmd.Stderr == nil {
		cmd.Stderr = &stderr
	}
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			return fmt.Errorf("%w: %v: %v", ErrExternalTool, cmd.Path, err)
		}
		return fmt.Errorf("%w: %v: %v\n%v", ErrExternalTool, cmd.Path, err, msg)
	}
	return nil
}
