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
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"runtime"

	"github.com/exascience/elmix/allelecount"
	"github.com/exascience/elmix/haplotype"
	"github.com/exascience/elmix/segments"
	"github.com/exascience/elmix/seqdata"
)

// CountAllelesHelp is the help string for this command.
const CountAllelesHelp = "count-alleles parameters:\n" +
	"elmix count-alleles seqdata-dir haps-file segment-file allele-counts-file\n" +
	"[--nr-of-threads nr]\n" +
	"[--config file]\n" +
	"[--log-path path]\n" +
	"[--timed]\n"

// CountAlleles implements the elmix count-alleles command.
func CountAlleles() error {
	var (
		nrOfThreads         int
		configFile, logPath string
		timed               bool
	)

	var flags flag.FlagSet
	flags.IntVar(&nrOfThreads, "nr-of-threads", 0, "number of chromosomes counted in parallel")
	configFlag(&flags, &configFile)
	flags.StringVar(&logPath, "log-path", "", "write log files to the specified directory")
	flags.BoolVar(&timed, "timed", false, "measure the runtime")
	parseFlags(flags, 6, CountAllelesHelp)

	storeDir := getFilename(os.Args[2], CountAllelesHelp)
	hapsFile := getFilename(os.Args[3], CountAllelesHelp)
	segmentFile := getFilename(os.Args[4], CountAllelesHelp)
	output := getFilename(os.Args[5], CountAllelesHelp)

	setLogOutput(logPath)

	cfg, err := loadConfig(configFile)
	if err != nil {
		return err
	}
	if nrOfThreads <= 0 {
		nrOfThreads = runtime.GOMAXPROCS(0)
	}
	if !checkExist("", storeDir) || !checkExist("", hapsFile) || !checkExist("", segmentFile) || !checkCreate("", output) {
		return fmt.Errorf("invalid count-alleles parameters")
	}

	store, err := seqdata.Open(storeDir)
	if err != nil {
		return err
	}
	blocks, err := haplotype.ReadBlocks(hapsFile)
	if err != nil {
		return err
	}
	segs, err := segments.Read(segmentFile)
	if err != nil {
		return err
	}

	var counts []allelecount.Count
	if err := timedRun(timed, "Counting allele reads.", 1, func() (err error) {
		counts, err = allelecount.CreateAlleleCounts(context.Background(), store, blocks, segs, cfg.ChunkSize, nrOfThreads)
		return err
	}); err != nil {
		return err
	}
	log.Printf("Writing %v allele counts to %v\n", len(counts), output)
	return allelecount.Write(output, counts, false)
}

// PhaseSegmentsHelp is the help string for this command.
const PhaseSegmentsHelp = "phase-segments parameters:\n" +
	"elmix phase-segments allele-counts-file phased-allele-counts-file [allele-counts-file phased-allele-counts-file ...]\n" +
	"[--log-path path]\n"

// PhaseSegments implements the elmix phase-segments command.
func PhaseSegments() error {
	var logPath string

	filenames := getFilenames(2, PhaseSegmentsHelp)
	if len(filenames) == 0 || len(filenames)%2 != 0 {
		fmt.Fprintln(os.Stderr, "Expected pairs of input and output allele count files.")
		fmt.Fprint(os.Stderr, PhaseSegmentsHelp)
		os.Exit(1)
	}

	var flags flag.FlagSet
	flags.StringVar(&logPath, "log-path", "", "write log files to the specified directory")
	parseFlags(flags, 2+len(filenames), PhaseSegmentsHelp)

	setLogOutput(logPath)

	var tables [][]allelecount.Count
	var outputs []string
	for i := 0; i < len(filenames); i += 2 {
		input, output := filenames[i], filenames[i+1]
		if !checkExist("", input) || !checkCreate("", output) {
			return fmt.Errorf("invalid phase-segments parameters")
		}
		counts, _, err := allelecount.Read(input)
		if err != nil {
			return err
		}
		tables = append(tables, counts)
		outputs = append(outputs, output)
	}

	for i, phased := range allelecount.PhaseSegments(tables...) {
		log.Printf("Writing %v phased allele counts to %v\n", len(phased), outputs[i])
		if err := allelecount.Write(outputs[i], phased, true); err != nil {
			return err
		}
	}
	return nil
}
