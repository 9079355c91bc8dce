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

package fasta

import (
	"bufio"
	"fmt"
	"io"
	"os"
)

// An Entry is one named sequence of a FASTA file. Description is the
// remainder of the header line after the name.
type Entry struct {
	Name        string
	Description string
	Seq         []byte
}

func splitHeader(b []byte) (name, description string) {
	i := 1
	for ; i < len(b); i++ {
		if c := b[i]; c >= '!' && c <= '~' {
			break
		}
	}
	j := i + 1
	for ; j < len(b); j++ {
		if c := b[j]; c < '!' || c > '~' {
			break
		}
	}
	if j > len(b) {
		j = len(b)
	}
	k := j
	for ; k < len(b); k++ {
		if c := b[k]; c >= '!' && c <= '~' {
			break
		}
	}
	return string(b[i:j]), string(b[k:])
}

var iupacUpperTable = map[byte]byte{
	'A': 'A', 'a': 'A',
	'C': 'C', 'c': 'C',
	'G': 'G', 'g': 'G',
	'T': 'T', 't': 'T',
	'N': 'N', 'n': 'N',
	'R': 'N', 'r': 'N',
	'Y': 'N', 'y': 'N',
	'M': 'N', 'm': 'N',
	'K': 'N', 'k': 'N',
	'W': 'N', 'w': 'N',
	'S': 'N', 's': 'N',
	'B': 'N', 'b': 'N',
	'D': 'N', 'd': 'N',
	'H': 'N', 'h': 'N',
	'V': 'N', 'v': 'N',
}

// ToUpperAndN can be used to normalize ambiguity codes in FASTA sequences,
// and convert all codes to upper case.
func ToUpperAndN(base byte) byte {
	if n, ok := iupacUpperTable[base]; ok {
		return n
	}
	return base
}

// ParseFasta sequentially parses FASTA entries, in file order.
//
// If normalize is true, the sequences are converted to upper case,
// and ambiguity codes are normalized to N.
func ParseFasta(r io.Reader, normalize bool) (entries []Entry, err error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(nil, 1<<26)

	current := -1
	for scanner.Scan() {
		b := scanner.Bytes()
		if len(b) == 0 {
			continue
		}
		if b[0] == '>' {
			name, description := splitHeader(b)
			if name == "" {
				return nil, fmt.Errorf("invalid fasta entry %v - missing name", len(entries)+1)
			}
			entries = append(entries, Entry{Name: name, Description: description})
			current = len(entries) - 1
			continue
		}
		if current < 0 {
			return nil, fmt.Errorf("invalid fasta data - missing first header")
		}
		entry := &entries[current]
		if normalize {
			for _, c := range b {
				entry.Seq = append(entry.Seq, ToUpperAndN(c))
			}
		} else {
			entry.Seq = append(entry.Seq, b...)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("empty fasta data")
	}
	return entries, nil
}

// ParseFastaFile parses the FASTA file with the given name.
func ParseFastaFile(filename string, normalize bool) (entries []Entry, err error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer func() {
		if nerr := f.Close(); err == nil {
			err = nerr
		}
	}()
	entries, err = ParseFasta(f, normalize)
	if err != nil {
		return nil, fmt.Errorf("%v: %w", filename, err)
	}
	return entries, nil
}

// WriteFasta writes the given entries, one sequence line per entry.
func WriteFasta(w io.Writer, entries []Entry) error {
	out := bufio.NewWriter(w)
	for _, entry := range entries {
		out.WriteByte('>')
		out.WriteString(entry.Name)
		if entry.Description != "" {
			out.WriteByte(' ')
			out.WriteString(entry.Description)
		}
		out.WriteByte('\n')
		out.Write(entry.Seq)
		out.WriteByte('\n')
	}
	return out.Flush()
}
