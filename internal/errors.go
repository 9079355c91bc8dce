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

import "errors"

var (
	// ErrFatalPrecondition is returned when upstream data violates a
	// requirement that cannot be repaired, for example a read without
	// any alignment hit in a region.
	ErrFatalPrecondition = errors.New("fatal precondition")

	// ErrExternalTool is returned when the aligner or the scorer exits
	// with a non-zero status or produces unparsable output.
	ErrExternalTool = errors.New("external tool failure")

	// ErrDuplicateScore signals that a pair was scored twice within one
	// stage. This is a logic error.
	ErrDuplicateScore = errors.New("duplicate score attempt")
)
