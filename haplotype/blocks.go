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
	"bufio"
	"fmt"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/exascience/elmix/internal"
	"github.com/exascience/elmix/utils"
)

// Changepoints averages, over phasing samples, whether the phase
// flips between consecutive heterozygous positions.
type Changepoints struct {
	numSamples int
	sums       map[int64]float64
	counts     map[int64]int
}

// NewChangepoints returns an accumulator for numSamples samples.
func NewChangepoints(numSamples int) *Changepoints {
	return &Changepoints{
		numSamples: numSamples,
		sums:       make(map[int64]float64),
		counts:     make(map[int64]int),
	}
}

// SampleChangepoints returns, for each position of a sample, 1 if its
// allele differs from the allele at the previous position and 0
// otherwise. The first position is never a changepoint.
func SampleChangepoints(sample []PhasedSNP) []float64 {
	changepoints := make([]float64, len(sample))
	for i := 1; i < len(sample); i++ {
		if sample[i].Allele != sample[i-1].Allele {
			changepoints[i] = 1
		}
	}
	return changepoints
}

// Add accumulates the changepoints of one sample.
func (c *Changepoints) Add(sample []PhasedSNP) {
	for i, x := range SampleChangepoints(sample) {
		pos := sample[i].Position
		c.sums[pos] += x
		c.counts[pos]++
	}
}

// Mean returns the averaged changepoint of each position of sample.
// Positions that were not present in every sample are undefined
// (NaN).
func (c *Changepoints) Mean(sample []PhasedSNP) []float64 {
	mean := make([]float64, len(sample))
	for i, snp := range sample {
		if c.counts[snp.Position] != c.numSamples {
			mean[i] = math.NaN()
			continue
		}
		mean[i] = c.sums[snp.Position] / float64(c.numSamples)
	}
	return mean
}

// ChangepointConfidence returns max(m, 1-m) for each averaged
// changepoint m. Consistently flipping and consistently not flipping
// are equally confident.
func ChangepointConfidence(mean []float64) []float64 {
	confidence := make([]float64, len(mean))
	for i, m := range mean {
		confidence[i] = math.Max(m, 1-m)
	}
	return confidence
}

// AssignBlocks labels positions with haplotype blocks. The label
// starts at 0 and is incremented at every position whose confidence
// is below threshold. Undefined confidences never start a block.
func AssignBlocks(confidence []float64, threshold float64) []int64 {
	labels := make([]int64, len(confidence))
	var label int64
	for i, x := range confidence {
		if x < threshold {
			label++
		}
		labels[i] = label
	}
	return labels
}

// Block is one row of a haplotype block table: the allele carried at
// a heterozygous position by one of the two haplotypes of a block.
type Block struct {
	Chromosome string
	Position   int64
	Allele     uint8
	HapLabel   int64
	AlleleID   uint8
}

// ExpandAlleles emits two rows per position, allele id 0 with the
// allele of the sample and allele id 1 with the other allele, sorted
// by position and allele id.
func ExpandAlleles(chromosome string, sample []PhasedSNP, labels []int64) []Block {
	blocks := make([]Block, 0, 2*len(sample))
	for i, snp := range sample {
		blocks = append(blocks,
			Block{Chromosome: chromosome, Position: snp.Position, Allele: snp.Allele, HapLabel: labels[i], AlleleID: 0},
			Block{Chromosome: chromosome, Position: snp.Position, Allele: 1 - snp.Allele, HapLabel: labels[i], AlleleID: 1},
		)
	}
	sort.SliceStable(blocks, func(i, j int) bool {
		if blocks[i].Position != blocks[j].Position {
			return blocks[i].Position < blocks[j].Position
		}
		return blocks[i].AlleleID < blocks[j].AlleleID
	})
	return blocks
}

// BlocksHeader is the header line of a haplotype block table.
const BlocksHeader = "chromosome\tposition\tallele\thap_label\tallele_id\n"

// WriteBlocks writes a tab-separated haplotype block table with
// header. An empty table consists of the header only.
func WriteBlocks(filename string, blocks []Block) (err error) {
	output, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer func() {
		if nerr := output.Close(); err == nil {
			err = nerr
		}
	}()
	w := bufio.NewWriter(output)
	if _, err := w.WriteString(BlocksHeader); err != nil {
		return err
	}
	var buf []byte
	for _, b := range blocks {
		buf = buf[:0]
		buf = append(buf, b.Chromosome...)
		buf = append(buf, '\t')
		buf = strconv.AppendInt(buf, b.Position, 10)
		buf = append(buf, '\t')
		buf = strconv.AppendUint(buf, uint64(b.Allele), 10)
		buf = append(buf, '\t')
		buf = strconv.AppendInt(buf, b.HapLabel, 10)
		buf = append(buf, '\t')
		buf = strconv.AppendUint(buf, uint64(b.AlleleID), 10)
		buf = append(buf, '\n')
		if _, err := w.Write(buf); err != nil {
			return err
		}
	}
	return w.Flush()
}

// ReadBlocks reads a haplotype block table written by WriteBlocks.
// Tables of several chromosomes may be concatenated, in which case
// repeated header lines are skipped.
func ReadBlocks(filename string) (blocks []Block, err error) {
	input, err := utils.OpenText(filename)
	if err != nil {
		return nil, err
	}
	defer func() {
		if nerr := input.Close(); err == nil {
			err = nerr
		}
	}()
	scanner := bufio.NewScanner(input)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("empty haplotype block file %v", filename)
	}
	header := scanner.Text()
	columns, err := internal.ParseHeader(header, "\t", "chromosome", "position", "allele", "hap_label", "allele_id")
	if err != nil {
		return nil, fmt.Errorf("%v: %w", filename, err)
	}
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" || line == header {
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) < len(columns) {
			return nil, fmt.Errorf("invalid haplotype block line %q in %v", line, filename)
		}
		blocks = append(blocks, Block{
			Chromosome: fields[columns["chromosome"]],
			Position:   internal.ParseInt(fields[columns["position"]], 10, 64),
			Allele:     internal.ParseBit(fields[columns["allele"]]),
			HapLabel:   internal.ParseInt(fields[columns["hap_label"]], 10, 64),
			AlleleID:   internal.ParseBit(fields[columns["allele_id"]]),
		})
	}
	return blocks, scanner.Err()
}
