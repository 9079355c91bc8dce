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

// Package pairs identifies unordered pairs of reads and remembers which
// of them have already been scored.
package pairs

import (
	"fmt"

	"github.com/exascience/elpart/internal"
)

// A Key canonically identifies an unordered pair of read identifiers,
// or a single read that is scored without a partner. NewKey(a, b) and
// NewKey(b, a) are equal.
type Key struct {
	first, second string
	unpaired      bool
}

// NewKey returns the Key for the unordered pair of a and b.
func NewKey(a, b string) Key {
	if b < a {
		a, b = b, a
	}
	return Key{first: a, second: b}
}

// UnpairedKey returns the Key for read a scored on its own. It never
// equals a Key returned by NewKey, not even NewKey(a, a) or NewKey(a, "").
func UnpairedKey(a string) Key {
	return Key{first: a, unpaired: true}
}

// IDs returns the read identifiers of the key in canonical order. For
// unpaired keys, second is "".
func (k Key) IDs() (first, second string) {
	return k.first, k.second
}

// Unpaired reports whether the key stands for a single read.
func (k Key) Unpaired() bool {
	return k.unpaired
}

// Hash implements the pargo sync.Hasher interface.
func (k Key) Hash() uint64 {
	return internal.CombineHash(internal.StringHash(k.first), internal.StringHash(k.second)) ^ internal.BoolHash(k.unpaired)
}

func (k Key) String() string {
	if k.unpaired {
		return fmt.Sprintf("%q", k.first)
	}
	return fmt.Sprintf("%q %q", k.first, k.second)
}
