// elMix: allele-specific copy-number preprocessing for tumour samples.
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
// <https://github.com/ExaScience/elmix/blob/master/LICENSE.txt>.

// elMix prepares the allele-specific copy-number analysis of tumour
// samples: it models GC and mappability bias of read counts, infers
// haplotype blocks, counts allele-specific reads per segment, and
// derives candidate haploid read depths.
//
// Please see https://github.com/exascience/elmix for a documentation
// of the tool.
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/exascience/elmix/cmd"
)

func printHelp() {
	fmt.Fprintln(os.Stderr, "Available commands: sample-gc, gc-lowess, gc-map-bias, infer-haps, count-alleles, phase-segments, candidate-h, fasta-to-elfasta")
	fmt.Fprint(os.Stderr, "\n", cmd.SampleGCHelp)
	fmt.Fprint(os.Stderr, "\n", cmd.GCLowessHelp)
	fmt.Fprint(os.Stderr, "\n", cmd.GCMapBiasHelp)
	fmt.Fprint(os.Stderr, "\n", cmd.InferHapsHelp)
	fmt.Fprint(os.Stderr, "\n", cmd.CountAllelesHelp)
	fmt.Fprint(os.Stderr, "\n", cmd.PhaseSegmentsHelp)
	fmt.Fprint(os.Stderr, "\n", cmd.CandidateHHelp)
	fmt.Fprint(os.Stderr, "\n", cmd.FastaToElfastaHelp)
}

func main() {
	fmt.Fprintln(os.Stderr, cmd.ProgramMessage)
	if len(os.Args) < 2 {
		log.Println("Incorrect number of parameters.")
		fmt.Fprint(os.Stderr, cmd.HelpMessage)
		printHelp()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "sample-gc":
		err = cmd.SampleGC()
	case "gc-lowess":
		err = cmd.GCLowess()
	case "gc-map-bias":
		err = cmd.GCMapBias()
	case "infer-haps":
		err = cmd.InferHaps()
	case "count-alleles":
		err = cmd.CountAlleles()
	case "phase-segments":
		err = cmd.PhaseSegments()
	case "candidate-h":
		err = cmd.CandidateH()
	case "fasta-to-elfasta":
		err = cmd.FastaToElfasta()
	case "help", "-help", "--help", "-h", "--h":
		printHelp()
	default:
		log.Println("Unknown command", os.Args[1])
		printHelp()
		os.Exit(1)
	}
	if err != nil {
		log.Fatal(err)
	}
}
