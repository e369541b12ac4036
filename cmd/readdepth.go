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

package cmd

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/exascience/elmix/internal"
	"github.com/exascience/elmix/readdepth"
)

// CandidateHHelp is the help string for this command.
const CandidateHHelp = "candidate-h parameters:\n" +
	"elmix candidate-h segment-counts-file read-depth-file candidates-file\n" +
	"[--modes-file file]\n" +
	"[--num-clones nr]\n" +
	"[--seed nr]\n" +
	"[--config file]\n" +
	"[--log-path path]\n"

// CandidateH implements the elmix candidate-h command.
func CandidateH() error {
	var (
		modesFile           string
		numClones           int
		seed                uint64
		configFile, logPath string
	)

	var flags flag.FlagSet
	flags.StringVar(&modesFile, "modes-file", "", "write the minor read depth modes to a file")
	flags.IntVar(&numClones, "num-clones", 0, "only generate candidates for 2 or 3 clones, default both")
	flags.Uint64Var(&seed, "seed", 1, "seed for resampling and clustering read depths")
	configFlag(&flags, &configFile)
	flags.StringVar(&logPath, "log-path", "", "write log files to the specified directory")
	parseFlags(flags, 5, CandidateHHelp)

	input := getFilename(os.Args[2], CandidateHHelp)
	depthFile := getFilename(os.Args[3], CandidateHHelp)
	output := getFilename(os.Args[4], CandidateHHelp)

	setLogOutput(logPath)

	cfg, err := loadConfig(configFile)
	if err != nil {
		return err
	}
	if numClones != 0 && numClones != 2 && numClones != 3 {
		return fmt.Errorf("--num-clones must be 2 or 3, not %v", numClones)
	}
	if !checkExist("", input) || !checkCreate("", depthFile) || !checkCreate("", output) ||
		(modesFile != "" && !checkCreate("--modes-file", modesFile)) {
		return fmt.Errorf("invalid candidate-h parameters")
	}

	counts, err := readdepth.ReadSegmentCounts(input)
	if err != nil {
		return err
	}
	depths := readdepth.CalculateDepth(counts, readdepth.EstimatePhi)
	log.Printf("%v of %v segments have a read depth\n", len(depths), len(counts))
	if err := readdepth.WriteDepths(depthFile, depths); err != nil {
		return err
	}
	modes, err := readdepth.CalculateModes(depths, cfg.NumModes, internal.NewRand(seed))
	if err != nil {
		return err
	}
	log.Println("Minor read depth modes:", modes)
	if modesFile != "" {
		if err := writeVectors(modesFile, [][]float64{modes}); err != nil {
			return err
		}
	}
	candidates := readdepth.CalculateCandidateH(modes, cfg.MixFracResolution, numClones)
	log.Printf("Writing %v candidate haploid depths to %v\n", len(candidates), output)
	return writeVectors(output, candidates)
}

func writeVectors(filename string, vectors [][]float64) (err error) {
	output, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer func() {
		if nerr := output.Close(); err == nil {
			err = nerr
		}
	}()
	return readdepth.WriteVectors(output, vectors)
}
