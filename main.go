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

// elPart is a high-performance tool for partitioning immunoglobulin
// heavy chain reads into clonal families, that is, into sets of reads
// that stem from the same recombination event.
//
// A run aligns all reads against the reference segments, annotates
// each read with its best segments and window hints, preclusters the
// reads by mismatch fraction, and then narrows the clusters down with
// a stripped and a full pass of an external HMM scorer.
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/exascience/elpart/cmd"
)

func printHelp() {
	fmt.Fprintln(os.Stderr, "Available commands: partition, annotate")
	fmt.Fprint(os.Stderr, "\n", cmd.PartitionHelp)
	fmt.Fprint(os.Stderr, "\n", cmd.AnnotateHelp)
}

func main() {
	fmt.Fprintln(os.Stderr, cmd.ProgramMessage)
	if len(os.Args) < 2 {
		log.Println("Incorrect number of parameters.")
		fmt.Fprint(os.Stderr, cmd.HelpMessage, "\n")
		printHelp()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "partition":
		err = cmd.Partition()
	case "annotate":
		err = cmd.Annotate()
	case "help", "-help", "--help", "-h", "--h":
		printHelp()
	default:
		log.Println("Unknown command:", os.Args[1])
		printHelp()
		os.Exit(1)
	}
	if err != nil {
		log.Fatal(err)
	}
}
