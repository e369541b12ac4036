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

// Package haplotype infers haplotype blocks of heterozygous SNPs by
// taking a consensus over many phasings sampled from a reference
// panel based phasing tool.
package haplotype

import (
	"context"
	"log"
	"strconv"

	"github.com/exascience/elmix/genotype"
	"github.com/exascience/elmix/seqdata"
)

// Options configures InferHaps.
type Options struct {
	// ChromosomeX marks the chromosome as the X chromosome.
	ChromosomeX bool

	GeneticMap string
	Haplotypes string
	Legend     string
	SampleFile string

	BaseCallError       float64
	CallThreshold       float64
	NumSamples          int
	ConfidenceThreshold float64
	ChunkSize           int
}

// Supported reports whether a chromosome can be phased against the
// reference panel: the autosomes 1 to 22 and X.
func Supported(chromosome string) bool {
	if chromosome == "X" {
		return true
	}
	n, err := strconv.Atoi(chromosome)
	return err == nil && n >= 1 && n <= 22 && strconv.Itoa(n) == chromosome
}

// InferHaps calls the SNP genotypes of a chromosome, phases them
// opts.NumSamples times, and splits the heterozygous positions into
// haplotype blocks wherever the phase between consecutive positions
// is ambiguous across the samples.
//
// Unsupported chromosomes, chromosomes without any SNP reads and
// chromosomes without a heterozygous SNP in the reference panel yield
// no blocks.
func InferHaps(ctx context.Context, chromosome string, store *seqdata.Store, phaser Phaser, opts Options) (blocks []Block, err error) {
	if !Supported(chromosome) {
		log.Printf("chromosome %v is not supported for phasing", chromosome)
		return nil, nil
	}
	snps, err := genotype.ReadSNPCounts(store, chromosome, opts.ChunkSize)
	if err != nil {
		return nil, err
	}
	if len(snps) == 0 {
		log.Printf("no SNP reads on chromosome %v", chromosome)
		return nil, nil
	}
	genotype.Call(snps, opts.BaseCallError, opts.CallThreshold)
	panel, err := ReadLegend(opts.Legend)
	if err != nil {
		return nil, err
	}
	genotyped := MergePanel(panel, genotype.Called(snps))
	if Heterozygous(genotyped) == 0 {
		log.Printf("no heterozygous reference panel SNPs on chromosome %v", chromosome)
		return nil, nil
	}

	graph, err := phaser.Phase(ctx, &PhasingInput{
		Chromosome:  chromosome,
		ChromosomeX: opts.ChromosomeX,
		GeneticMap:  opts.GeneticMap,
		Haplotypes:  opts.Haplotypes,
		Legend:      opts.Legend,
		SampleFile:  opts.SampleFile,
		SNPs:        genotyped,
	})
	if err != nil {
		return nil, err
	}
	defer func() {
		if nerr := graph.Close(); err == nil && nerr != nil {
			blocks, err = nil, nerr
		}
	}()
	changepoints := NewChangepoints(opts.NumSamples)
	var last []PhasedSNP
	for seed := 0; seed < opts.NumSamples; seed++ {
		sample, err := graph.Sample(ctx, seed)
		if err != nil {
			return nil, err
		}
		changepoints.Add(sample)
		last = sample
	}

	confidence := ChangepointConfidence(changepoints.Mean(last))
	labels := AssignBlocks(confidence, opts.ConfidenceThreshold)
	blocks = ExpandAlleles(chromosome, last, labels)
	log.Printf("%v heterozygous positions in %v haplotype blocks on chromosome %v", len(last), numBlocks(labels), chromosome)
	return blocks, nil
}

func numBlocks(labels []int64) int64 {
	if len(labels) == 0 {
		return 0
	}
	return labels[len(labels)-1] + 1
}
