//go:build pedantic
// +build pedantic

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

import "fmt"

const (
	// PedanticMode is a Boolean flag for conditional compilation
	PedanticMode = true

	// PedanticMessage can be added to the overall program message
	PedanticMessage = "pedantic mode "
)

// AssertDistinct panics when keys contains the same key twice. In
// pedantic mode, every scoring batch is checked before it is handed to
// an external scorer.
// Keys must be comparable.
func AssertDistinct(keys []interface{}) {
	seen := make(map[interface{}]struct{}, len(keys))
	for _, key := range keys {
		if _, found := seen[key]; found {
			panic(fmt.Errorf("%w: %v", ErrDuplicateScore, key))
		}
		seen[key] = struct{}{}
	}
}
