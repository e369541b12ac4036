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

package haplotype

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"

	"github.com/google/uuid"

	"github.com/exascience/elmix/internal"
)

// PhasingInput describes one chromosome to phase against a reference
// panel.
type PhasingInput struct {
	Chromosome  string
	ChromosomeX bool
	GeneticMap  string
	Haplotypes  string
	Legend      string
	SampleFile  string
	SNPs        []GenotypedSNP
}

// A Phaser builds a phased haplotype graph from genotype calls and a
// reference panel.
type Phaser interface {
	Phase(ctx context.Context, input *PhasingInput) (Graph, error)
}

// A Graph draws concrete haplotype samples from a phased haplotype
// graph. Close releases the graph.
type Graph interface {
	Sample(ctx context.Context, seed int) ([]PhasedSNP, error)
	Close() error
}

// Shapeit is a Phaser that runs the shapeit executable. Each phased
// chromosome gets its own subdirectory of TempDir, so that several
// chromosomes can be phased concurrently.
type Shapeit struct {
	Executable string
	TempDir    string
}

func (s *Shapeit) executable() string {
	if s.Executable == "" {
		return "shapeit"
	}
	return s.Executable
}

type shapeitGraph struct {
	executable string
	dir        string
	graph      string
}

// Phase writes the genotypes in .gen/.sample format and runs shapeit
// to build the haplotype graph. If shapeit fails, the namespace
// directory is removed and only the shapeit log is kept, next to it.
func (s *Shapeit) Phase(ctx context.Context, input *PhasingInput) (Graph, error) {
	dir := filepath.Join(s.TempDir, "shapeit-"+input.Chromosome+"-"+uuid.NewString())
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, err
	}
	genFile := filepath.Join(dir, "snps.gen")
	if err := writeGenFile(genFile, input.Chromosome, input.SNPs); err != nil {
		_ = os.RemoveAll(dir)
		return nil, err
	}
	sampleFile := filepath.Join(dir, "snps.sample")
	if err := os.WriteFile(sampleFile, []byte(SingleSample), 0666); err != nil {
		_ = os.RemoveAll(dir)
		return nil, err
	}
	graph := filepath.Join(dir, "phased.hgraph")
	logFile := graph + ".log"
	args := []string{
		"-M", input.GeneticMap,
		"-R", input.Haplotypes, input.Legend, input.SampleFile,
		"-G", genFile, sampleFile,
		"--output-graph", graph,
	}
	if input.ChromosomeX {
		args = append(args, "--chrX")
	}
	args = append(args, "--no-mcmc", "-L", logFile)
	log.Printf("phasing %v heterozygous of %v SNPs on chromosome %v", Heterozygous(input.SNPs), len(input.SNPs), input.Chromosome)
	if err := internal.RunCmd(exec.CommandContext(ctx, s.executable(), args...), logFile); err != nil {
		err = keepLog(err, dir)
		_ = os.RemoveAll(dir)
		return nil, err
	}
	return &shapeitGraph{executable: s.executable(), dir: dir, graph: graph}, nil
}

// keepLog moves the log file of a failed shapeit run out of the
// namespace directory dir, next to it, so that it survives the removal
// of dir. The error is updated to point at the new location.
func keepLog(err error, dir string) error {
	var cmdErr *internal.CommandError
	if !errors.As(err, &cmdErr) || cmdErr.LogFile == "" {
		return err
	}
	kept := dir + "." + filepath.Base(cmdErr.LogFile)
	if rerr := os.Rename(cmdErr.LogFile, kept); rerr != nil {
		if !os.IsNotExist(rerr) {
			log.Printf("could not keep shapeit log %v: %v", cmdErr.LogFile, rerr)
		}
		cmdErr.LogFile = ""
		return err
	}
	cmdErr.LogFile = kept
	return err
}

// Sample runs shapeit to draw one haplotype sample with the given
// seed. The files of the sample are removed before Sample returns.
// The log of a failed run is moved next to the namespace directory.
func (g *shapeitGraph) Sample(ctx context.Context, seed int) (sample []PhasedSNP, err error) {
	prefix := filepath.Join(g.dir, fmt.Sprintf("sampled.%v", seed))
	logFile, hapsFile, sampleFile := prefix+".log", prefix+".haps", prefix+".sample"
	cmd := exec.CommandContext(ctx, g.executable,
		"-convert",
		"--input-graph", g.graph,
		"--output-sample", prefix,
		"--seed", strconv.Itoa(seed),
		"-L", logFile)
	if err := internal.RunCmd(cmd, logFile); err != nil {
		_ = internal.RemoveFiles(hapsFile, sampleFile)
		return nil, keepLog(err, g.dir)
	}
	defer func() {
		if nerr := internal.RemoveFiles(logFile, hapsFile, sampleFile); err == nil {
			err = nerr
		}
	}()
	return ReadHaps(hapsFile)
}

func (g *shapeitGraph) Close() error {
	return os.RemoveAll(g.dir)
}
