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

	"github.com/exascience/elmix/gcbias"
	"github.com/exascience/elmix/internal"
	"github.com/exascience/elmix/segments"
	"github.com/exascience/elmix/seqdata"
)

// SampleGCHelp is the help string for this command.
const SampleGCHelp = "sample-gc parameters:\n" +
	"elmix sample-gc seqdata-dir gc-samples-file\n" +
	"--fragment-length nr\n" +
	"[--config file]\n" +
	"[--seed nr]\n" +
	"[--log-path path]\n" +
	"[--timed]\n"

// SampleGC implements the elmix sample-gc command.
func SampleGC() error {
	var (
		fragmentLength int
		seed           uint64
		configFile     string
		logPath        string
		timed          bool
	)

	var flags flag.FlagSet
	flags.IntVar(&fragmentLength, "fragment-length", 0, "mean fragment length of the sequencing library")
	flags.Uint64Var(&seed, "seed", 1, "seed for sampling genome positions")
	configFlag(&flags, &configFile)
	flags.StringVar(&logPath, "log-path", "", "write log files to the specified directory")
	flags.BoolVar(&timed, "timed", false, "measure the runtime")
	parseFlags(flags, 4, SampleGCHelp)

	storeDir := getFilename(os.Args[2], SampleGCHelp)
	output := getFilename(os.Args[3], SampleGCHelp)

	setLogOutput(logPath)

	cfg, err := loadConfig(configFile)
	if err != nil {
		return err
	}
	if fragmentLength <= 2*cfg.SampleGCOffset {
		return fmt.Errorf("--fragment-length %v must exceed twice the position offset %v", fragmentLength, cfg.SampleGCOffset)
	}
	if !checkExist("", storeDir) || !checkExist("mappability_filename", cfg.MappabilityFilename) || !checkCreate("", output) {
		return fmt.Errorf("invalid sample-gc parameters")
	}

	fmt.Fprint(os.Stderr, "Executing command:\n elmix sample-gc ", storeDir, " ", output,
		" --fragment-length ", fragmentLength, " --seed ", seed, "\n")

	store, err := seqdata.Open(storeDir)
	if err != nil {
		return err
	}
	genome, lengths, closeGenome, err := openGenome(cfg)
	if err != nil {
		return err
	}
	defer closeGenome()

	var samples []gcbias.Sample
	if err := timedRun(timed, "Sampling GC content and read counts.", 1, func() (err error) {
		samples, err = gcbias.SampleGC(gcbias.SampleOptions{
			Chromosomes:     cfg.Chromosomes,
			NumSamples:      cfg.SampleGCNumPositions,
			Offset:          cfg.SampleGCOffset,
			FragmentLength:  fragmentLength,
			MappabilityFile: cfg.MappabilityFilename,
			ChunkSize:       cfg.ChunkSize,
		}, lengths, genome, store, internal.NewRand(seed))
		return err
	}); err != nil {
		return err
	}
	log.Printf("Writing %v gc samples to %v\n", len(samples), output)
	return gcbias.WriteSamples(output, samples)
}

// GCLowessHelp is the help string for this command.
const GCLowessHelp = "gc-lowess parameters:\n" +
	"elmix gc-lowess gc-samples-file gc-curve-file gc-table-file\n" +
	"[--config file]\n" +
	"[--log-path path]\n"

// GCLowess implements the elmix gc-lowess command.
func GCLowess() error {
	var configFile, logPath string

	var flags flag.FlagSet
	configFlag(&flags, &configFile)
	flags.StringVar(&logPath, "log-path", "", "write log files to the specified directory")
	parseFlags(flags, 5, GCLowessHelp)

	input := getFilename(os.Args[2], GCLowessHelp)
	curveFile := getFilename(os.Args[3], GCLowessHelp)
	tableFile := getFilename(os.Args[4], GCLowessHelp)

	setLogOutput(logPath)

	cfg, err := loadConfig(configFile)
	if err != nil {
		return err
	}
	if !checkExist("", input) || !checkCreate("", curveFile) || !checkCreate("", tableFile) {
		return fmt.Errorf("invalid gc-lowess parameters")
	}

	samples, err := gcbias.ReadSamples(input)
	if err != nil {
		return err
	}
	table := gcbias.GCLowess(samples, cfg.GCResolution)
	if err := table.WriteCurve(curveFile); err != nil {
		return err
	}
	return table.Write(tableFile)
}

// GCMapBiasHelp is the help string for this command.
const GCMapBiasHelp = "gc-map-bias parameters:\n" +
	"elmix gc-map-bias segment-file gc-curve-file bias-file\n" +
	"--fragment-mean nr\n" +
	"--fragment-stddev nr\n" +
	"--read-length nr\n" +
	"[--config file]\n" +
	"[--log-path path]\n" +
	"[--timed]\n"

// GCMapBias implements the elmix gc-map-bias command.
func GCMapBias() error {
	var (
		fragmentMean, fragmentStddev float64
		readLength                   int
		configFile, logPath          string
		timed                        bool
	)

	var flags flag.FlagSet
	flags.Float64Var(&fragmentMean, "fragment-mean", 0, "mean fragment length")
	flags.Float64Var(&fragmentStddev, "fragment-stddev", 0, "standard deviation of the fragment length")
	flags.IntVar(&readLength, "read-length", 0, "read length")
	configFlag(&flags, &configFile)
	flags.StringVar(&logPath, "log-path", "", "write log files to the specified directory")
	flags.BoolVar(&timed, "timed", false, "measure the runtime")
	parseFlags(flags, 5, GCMapBiasHelp)

	segmentFile := getFilename(os.Args[2], GCMapBiasHelp)
	curveFile := getFilename(os.Args[3], GCMapBiasHelp)
	output := getFilename(os.Args[4], GCMapBiasHelp)

	setLogOutput(logPath)

	cfg, err := loadConfig(configFile)
	if err != nil {
		return err
	}
	if !checkExist("", segmentFile) || !checkExist("", curveFile) ||
		!checkExist("mappability_filename", cfg.MappabilityFilename) || !checkCreate("", output) {
		return fmt.Errorf("invalid gc-map-bias parameters")
	}

	segs, err := segments.Read(segmentFile)
	if err != nil {
		return err
	}
	curve, err := gcbias.ReadCurve(curveFile)
	if err != nil {
		return err
	}
	model, err := gcbias.NewBiasModel(curve, fragmentMean, fragmentStddev, cfg.SampleGCOffset, readLength)
	if err != nil {
		return err
	}
	genome, _, closeGenome, err := openGenome(cfg)
	if err != nil {
		return err
	}
	defer closeGenome()

	if err := timedRun(timed, "Calculating gc and mappability bias.", 1, func() error {
		return gcbias.CalculateGCMapBias(segs, genome, cfg.MappabilityFilename, model)
	}); err != nil {
		return err
	}
	return segments.WriteBiases(output, segs)
}
