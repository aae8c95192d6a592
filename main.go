// elPrep: a high-performance tool for preparing SAM/BAM files.
// Copyright (c) 2017-2019 imec vzw.

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

// gecore processes sequencing reads through an external-memory sort,
// local realignment near indels, and mate-fixing, reading and writing
// SAM/BAM.
//
// Please see https://github.com/vbi-informatics/gecore for documentation.
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/vbi-informatics/gecore/cmd"
	"github.com/vbi-informatics/gecore/gerrors"
)

func printHelp() {
	fmt.Fprintln(os.Stderr, "Available commands: sort, realign, merge, view")
	fmt.Fprint(os.Stderr, "\n", cmd.SortHelp)
	fmt.Fprint(os.Stderr, "\n", cmd.RealignHelp)
	fmt.Fprint(os.Stderr, "\n", cmd.MergeHelp)
	fmt.Fprint(os.Stderr, "\n", cmd.ViewHelp)
}

// formatMismatchExitCode is returned instead of 1 when a run fails
// because of a detected SAM/BAM format mismatch, so callers can tell
// "the data is bad" apart from "a stage errored" without parsing logs.
const formatMismatchExitCode = 2

func main() {
	fmt.Fprintln(os.Stderr, cmd.ProgramMessage)
	if len(os.Args) < 2 {
		log.Println("Incorrect number of parameters.")
		fmt.Fprintln(os.Stderr, cmd.HelpMessage)
		printHelp()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "sort":
		err = cmd.Sort()
	case "realign":
		err = cmd.Realign()
	case "merge":
		err = cmd.Merge()
	case "view":
		err = cmd.View()
	case "help", "-help", "--help", "-h", "--h":
		printHelp()
	default:
		log.Println("Unknown command:", os.Args[1])
		printHelp()
		os.Exit(1)
	}
	if err != nil {
		log.Println(err)
		if gerrors.Is(err, gerrors.FormatMismatch) {
			os.Exit(formatMismatchExitCode)
		}
		os.Exit(1)
	}
}
