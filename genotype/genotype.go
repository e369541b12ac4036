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

// Package genotype calls SNP genotypes from reference and alternate
// read counts.
package genotype

import (
	"log"
	"math"
	"sort"

	"github.com/exascience/pargo/parallel"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/exascience/elmix/seqdata"
)

// Genotype is the called genotype of a SNP.
type Genotype int8

// Genotypes. AA is homozygous reference, BB homozygous alternate.
const (
	Uncalled Genotype = iota - 1
	AA
	AB
	BB
)

func (g Genotype) String() string {
	switch g {
	case AA:
		return "AA"
	case AB:
		return "AB"
	case BB:
		return "BB"
	default:
		return "uncalled"
	}
}

// SNP holds the read counts of one SNP position and, after
// InferSNPGenotype, its genotype likelihoods, posteriors and call.
// Likelihood and Posterior are indexed by AA, AB and BB.
type SNP struct {
	Position   int64
	RefCount   int64
	AltCount   int64
	TotalCount int64
	Likelihood [3]float64
	Posterior  [3]float64
	Call       Genotype
}

// Indicator returns 1 if the SNP was called as g, and 0 otherwise.
func (snp *SNP) Indicator(g Genotype) int {
	if snp.Call == g {
		return 1
	}
	return 0
}

// InferSNPGenotype computes the binomial likelihoods of the three
// genotypes, normalizes them to posteriors, and calls the genotype
// whose posterior reaches callThreshold, if any.
//
// The homozygous genotypes assume the given per-base sequencing
// error, the heterozygous genotype an allele rate of 0.5. SNPs without
// any reads must be filtered out beforehand.
func InferSNPGenotype(snp *SNP, baseCallError, callThreshold float64) {
	snp.TotalCount = snp.RefCount + snp.AltCount
	if snp.TotalCount <= 0 {
		log.Panicf("genotype of SNP at position %v requested without any reads", snp.Position)
	}
	n := float64(snp.TotalCount)
	logLikelihood := [3]float64{
		distuv.Binomial{N: n, P: baseCallError}.LogProb(float64(snp.AltCount)),
		distuv.Binomial{N: n, P: 0.5}.LogProb(float64(snp.AltCount)),
		distuv.Binomial{N: n, P: baseCallError}.LogProb(float64(snp.RefCount)),
	}
	maxLog := math.Max(logLikelihood[AA], math.Max(logLikelihood[AB], logLikelihood[BB]))
	var evidence float64
	for g, l := range logLikelihood {
		snp.Likelihood[g] = math.Exp(l)
		snp.Posterior[g] = math.Exp(l - maxLog)
		evidence += snp.Posterior[g]
	}
	best := AA
	for g := range snp.Posterior {
		snp.Posterior[g] /= evidence
		if snp.Posterior[g] > snp.Posterior[best] {
			best = Genotype(g)
		}
	}
	if snp.Posterior[best] >= callThreshold {
		snp.Call = best
	} else {
		snp.Call = Uncalled
	}
}

// Call infers the genotypes of all SNPs in parallel.
func Call(snps []SNP, baseCallError, callThreshold float64) {
	parallel.Range(0, len(snps), 0, func(low, high int) {
		for i := low; i < high; i++ {
			InferSNPGenotype(&snps[i], baseCallError, callThreshold)
		}
	})
}

// Called returns the SNPs with a genotype call, in order.
func Called(snps []SNP) []SNP {
	var result []SNP
	for _, snp := range snps {
		if snp.Call != Uncalled {
			result = append(result, snp)
		}
	}
	return result
}

// ReadSNPCounts counts the reference and alternate reads observed at
// each SNP position of a chromosome, streaming the allele
// observations in chunks. The result is sorted by position, and
// every SNP has at least one read.
func ReadSNPCounts(store *seqdata.Store, chromosome string, chunkSize int) ([]SNP, error) {
	counts := make(map[int64]*[2]int64)
	err := store.ReadAlleles(chromosome, chunkSize, func(alleles []seqdata.AlleleObservation) error {
		for _, a := range alleles {
			c, ok := counts[a.Position]
			if !ok {
				c = new([2]int64)
				counts[a.Position] = c
			}
			c[a.IsAlt]++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	snps := make([]SNP, 0, len(counts))
	for position, c := range counts {
		snps = append(snps, SNP{
			Position:   position,
			RefCount:   c[0],
			AltCount:   c[1],
			TotalCount: c[0] + c[1],
			Call:       Uncalled,
		})
	}
	sort.Slice(snps, func(i, j int) bool {
		return snps[i].Position < snps[j].Position
	})
	return snps, nil
}
