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
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/exascience/elmix/haplotype"
	"github.com/exascience/elmix/internal"
	"github.com/exascience/elmix/seqdata"
)

// InferHapsHelp is the help string for this command.
const InferHapsHelp = "infer-haps parameters:\n" +
	"elmix infer-haps seqdata-dir haps-file\n" +
	"[--chromosomes list]\n" +
	"[--tmp-path path]\n" +
	"[--nr-of-threads nr]\n" +
	"[--config file]\n" +
	"[--log-path path]\n" +
	"[--timed]\n"

// InferHaps implements the elmix infer-haps command.
func InferHaps() error {
	var (
		chromosomes, tmpPath string
		nrOfThreads          int
		configFile, logPath  string
		timed                bool
	)

	var flags flag.FlagSet
	flags.StringVar(&chromosomes, "chromosomes", "", "comma-separated chromosomes to phase, default all configured chromosomes")
	flags.StringVar(&tmpPath, "tmp-path", "", "directory for temporary phasing files")
	flags.IntVar(&nrOfThreads, "nr-of-threads", 0, "number of chromosomes phased in parallel")
	configFlag(&flags, &configFile)
	flags.StringVar(&logPath, "log-path", "", "write log files to the specified directory")
	flags.BoolVar(&timed, "timed", false, "measure the runtime")
	parseFlags(flags, 4, InferHapsHelp)

	storeDir := getFilename(os.Args[2], InferHapsHelp)
	output := getFilename(os.Args[3], InferHapsHelp)

	setLogOutput(logPath)

	cfg, err := loadConfig(configFile)
	if err != nil {
		return err
	}
	chroms := cfg.Chromosomes
	if chromosomes != "" {
		chroms = parseChromosomes(chromosomes)
	}
	if tmpPath == "" {
		tmpPath = os.TempDir()
	}
	if nrOfThreads <= 0 {
		nrOfThreads = runtime.GOMAXPROCS(0)
	}
	if !checkExist("", storeDir) || !checkCreate("", output) {
		return fmt.Errorf("invalid infer-haps parameters")
	}

	fmt.Fprint(os.Stderr, "Executing command:\n elmix infer-haps ", storeDir, " ", output,
		" --chromosomes ", strings.Join(chroms, ","), " --tmp-path ", tmpPath, " --nr-of-threads ", nrOfThreads, "\n")

	store, err := seqdata.Open(storeDir)
	if err != nil {
		return err
	}
	fullTmpPath, err := internal.FullPathname(tmpPath)
	if err != nil {
		return err
	}
	phaser := &haplotype.Shapeit{Executable: cfg.Shapeit, TempDir: fullTmpPath}

	results := make([][]haplotype.Block, len(chroms))
	if err := timedRun(timed, "Inferring haplotype blocks.", 1, func() error {
		g, ctx := errgroup.WithContext(context.Background())
		g.SetLimit(nrOfThreads)
		for i, chrom := range chroms {
			i, chrom := i, chrom
			g.Go(func() error {
				blocks, err := haplotype.InferHaps(ctx, chrom, store, phaser, haplotype.Options{
					ChromosomeX:         chrom == "X",
					GeneticMap:          cfg.GeneticMap(chrom),
					Haplotypes:          cfg.Haplotypes(chrom),
					Legend:              cfg.Legend(chrom),
					SampleFile:          cfg.SampleFilename,
					BaseCallError:       cfg.SequencingBaseCallError,
					CallThreshold:       cfg.HetSNPCallThreshold,
					NumSamples:          cfg.ShapeitNumSamples,
					ConfidenceThreshold: cfg.ShapeitConfidenceThreshold,
					ChunkSize:           cfg.ChunkSize,
				})
				if err != nil {
					return fmt.Errorf("inferring haplotype blocks of chromosome %v: %w", chrom, err)
				}
				results[i] = blocks
				return nil
			})
		}
		return g.Wait()
	}); err != nil {
		return err
	}

	var all []haplotype.Block
	for _, blocks := range results {
		all = append(all, blocks...)
	}
	log.Printf("Writing %v haplotype block rows to %v\n", len(all), output)
	return haplotype.WriteBlocks(output, all)
}
