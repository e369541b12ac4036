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

// Package gcbias models the GC-content and mappability bias of
// fragment detection, and computes the resulting bias of genomic
// segments.
//
// The model is built in three steps. SampleGC draws random genome
// positions and records the GC content of the fragment interior
// starting at each position together with the number of fragments
// that start there. GCLowess bins these samples by GC content and
// smooths the mean read count per bin into a curve. SegmentBias
// convolves that curve with the fragment length distribution and
// the mappability of both mates over every fragment placement in a
// segment.
package gcbias

import (
	"bufio"
	"fmt"
	"log"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/exascience/elmix/fasta"
	"github.com/exascience/elmix/internal"
	"github.com/exascience/elmix/intervals"
	"github.com/exascience/elmix/mappability"
	"github.com/exascience/elmix/seqdata"
	"github.com/exascience/elmix/utils"
)

// Sample is one randomly sampled genome position.
type Sample struct {
	Chromosome string
	Position   int64
	GCPercent  float64
	ReadCount  int64
}

// SampleOptions configures SampleGC.
type SampleOptions struct {
	Chromosomes     []string
	NumSamples      int
	Offset          int
	FragmentLength  int
	MappabilityFile string
	ChunkSize       int
}

// genome lays out the selected chromosomes end to end.
type genome struct {
	chromosomes []string
	starts      []int64
	ends        []int64
	index       map[string]int
}

func newGenome(chromosomes []string, lengths map[string]int64) (*genome, error) {
	g := &genome{
		chromosomes: chromosomes,
		starts:      make([]int64, len(chromosomes)),
		ends:        make([]int64, len(chromosomes)),
		index:       make(map[string]int, len(chromosomes)),
	}
	var offset int64
	for i, chrom := range chromosomes {
		length, ok := lengths[chrom]
		if !ok {
			return nil, fmt.Errorf("no length known for chromosome %v", chrom)
		}
		g.starts[i] = offset
		offset += length
		g.ends[i] = offset
		g.index[chrom] = i
	}
	return g, nil
}

func (g *genome) length() int64 {
	if len(g.ends) == 0 {
		return 0
	}
	return g.ends[len(g.ends)-1]
}

// locate returns the chromosome index of a concatenated position.
func (g *genome) locate(pos int64) int {
	return sort.Search(len(g.ends), func(i int) bool {
		return g.ends[i] > pos
	})
}

// GCCumsum returns the inclusive prefix sum of G/C bases in seq:
// element i counts the G and C bases in seq[0..i].
func GCCumsum(seq []byte) []int32 {
	cumsum := make([]int32, len(seq))
	var count int32
	for i, c := range seq {
		if c == 'G' || c == 'C' || c == 'g' || c == 'c' {
			count++
		}
		cumsum[i] = count
	}
	return cumsum
}

func samplePositions(g *genome, n int, rng *internal.Rand) []int64 {
	positions := make([]int64, n)
	total := g.length()
	for i := range positions {
		positions[i] = rng.Int63n(total)
	}
	sort.Slice(positions, func(i, j int) bool { return positions[i] < positions[j] })
	return positions
}

// mappableFilter keeps the positions that overlap at least one
// perfectly mappable interval.
func mappableFilter(g *genome, positions []int64, filename string, chunkSize int) ([]int64, error) {
	counts := make([]int, len(positions))
	err := mappability.ReadChunks(filename, chunkSize, func(records []mappability.Record) error {
		var chunk []intervals.Interval
		for _, r := range records {
			i, ok := g.index[r.Chromosome]
			if !ok || !r.Perfect() {
				continue
			}
			chunk = append(chunk, intervals.Interval{Start: r.Start + g.starts[i], End: r.End + g.starts[i]})
		}
		for i, c := range intervals.OverlappingCounts(positions, chunk) {
			counts[i] += c
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	result := positions[:0]
	for i, pos := range positions {
		if counts[i] > 0 {
			result = append(result, pos)
		}
	}
	return result, nil
}

// gcCounts computes, for each position, the number of G/C bases in the
// fragment interior that starts offset bases after it. Positions whose
// window runs past the end of the chromosome get NaN.
func gcCounts(g *genome, positions []int64, source fasta.SequenceSource, fragmentLength, offset int) ([]float64, error) {
	gcWindow := int64(fragmentLength - 2*offset)
	counts := make([]float64, len(positions))
	for i := range counts {
		counts[i] = math.NaN()
	}
	for c, chrom := range g.chromosomes {
		low := sort.Search(len(positions), func(i int) bool { return positions[i] >= g.starts[c] })
		high := sort.Search(len(positions), func(i int) bool { return positions[i] >= g.ends[c] })
		if low == high {
			continue
		}
		seq, err := source.Seq(chrom)
		if err != nil {
			return nil, err
		}
		cumsum := GCCumsum(seq)
		for i := low; i < high; i++ {
			windowEnd := positions[i] - g.starts[c] + int64(fragmentLength-offset-1)
			if windowEnd >= int64(len(cumsum)) {
				continue
			}
			count := cumsum[windowEnd]
			if windowEnd >= gcWindow {
				count -= cumsum[windowEnd-gcWindow]
			}
			counts[i] = float64(count)
		}
	}
	return counts, nil
}

// readStartCounts counts the fragments that start exactly at each of
// the given positions.
func readStartCounts(g *genome, positions []int64, store *seqdata.Store, chunkSize int) ([]int64, error) {
	wanted := make(map[int64]int64, len(positions))
	for _, pos := range positions {
		wanted[pos] = 0
	}
	for c, chrom := range g.chromosomes {
		start := g.starts[c]
		err := store.ReadFragments(chrom, chunkSize, func(fragments []seqdata.Fragment) error {
			for _, f := range fragments {
				pos := f.Start + start
				if n, ok := wanted[pos]; ok {
					wanted[pos] = n + 1
				}
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	counts := make([]int64, len(positions))
	for i, pos := range positions {
		counts[i] = wanted[pos]
	}
	return counts, nil
}

// SampleGC samples random positions of the concatenated chromosomes,
// keeps those that are perfectly mappable and far enough from the
// chromosome end, and records their fragment-interior GC fraction and
// read start count.
func SampleGC(
	opts SampleOptions,
	lengths map[string]int64,
	source fasta.SequenceSource,
	store *seqdata.Store,
	rng *internal.Rand,
) ([]Sample, error) {
	if opts.FragmentLength-2*opts.Offset <= 0 {
		return nil, fmt.Errorf("fragment length %v too short for position offset %v", opts.FragmentLength, opts.Offset)
	}
	g, err := newGenome(opts.Chromosomes, lengths)
	if err != nil {
		return nil, err
	}
	if g.length() == 0 {
		return nil, nil
	}
	positions := samplePositions(g, opts.NumSamples, rng)
	positions, err = mappableFilter(g, positions, opts.MappabilityFile, opts.ChunkSize)
	if err != nil {
		return nil, err
	}
	log.Printf("%v of %v sampled positions are mappable", len(positions), opts.NumSamples)

	gc, err := gcCounts(g, positions, source, opts.FragmentLength, opts.Offset)
	if err != nil {
		return nil, err
	}
	kept := positions[:0]
	var keptGC []float64
	for i, pos := range positions {
		if !math.IsNaN(gc[i]) {
			kept = append(kept, pos)
			keptGC = append(keptGC, gc[i])
		}
	}
	positions = kept

	readCounts, err := readStartCounts(g, positions, store, opts.ChunkSize)
	if err != nil {
		return nil, err
	}

	gcWindow := float64(opts.FragmentLength - 2*opts.Offset)
	samples := make([]Sample, len(positions))
	for i, pos := range positions {
		c := g.locate(pos)
		samples[i] = Sample{
			Chromosome: g.chromosomes[c],
			Position:   pos - g.starts[c],
			GCPercent:  keptGC[i] / gcWindow,
			ReadCount:  readCounts[i],
		}
	}
	return samples, nil
}

// WriteSamples writes samples as a tab-separated table without header:
// chromosome, position, gc_percent, read_count.
func WriteSamples(filename string, samples []Sample) (err error) {
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
	var buf []byte
	for _, s := range samples {
		buf = buf[:0]
		buf = append(buf, s.Chromosome...)
		buf = append(buf, '\t')
		buf = strconv.AppendInt(buf, s.Position, 10)
		buf = append(buf, '\t')
		buf = strconv.AppendFloat(buf, s.GCPercent, 'g', -1, 64)
		buf = append(buf, '\t')
		buf = strconv.AppendInt(buf, s.ReadCount, 10)
		buf = append(buf, '\n')
		if _, err := w.Write(buf); err != nil {
			return err
		}
	}
	return w.Flush()
}

// ReadSamples reads a table written by WriteSamples.
func ReadSamples(filename string) (samples []Sample, err error) {
	input, err := utils.OpenText(filename)
	if err != nil {
		return nil, err
	}
	defer func() {
		if nerr := input.Close(); err == nil {
			err = nerr
		}
	}()
	parse := func(lines []string) (interface{}, error) {
		chunk := make([]Sample, 0, len(lines))
		for _, line := range lines {
			if line == "" {
				continue
			}
			fields := strings.Split(line, "\t")
			if len(fields) != 4 {
				return nil, fmt.Errorf("invalid gc sample line %q in %v", line, filename)
			}
			chunk = append(chunk, Sample{
				Chromosome: fields[0],
				Position:   internal.ParseInt(fields[1], 10, 64),
				GCPercent:  internal.ParseFloat(fields[2], 64),
				ReadCount:  internal.ParseInt(fields[3], 10, 64),
			})
		}
		return chunk, nil
	}
	err = internal.ScanChunks(input, internal.DefaultChunkSize, parse, func(chunk interface{}) error {
		samples = append(samples, chunk.([]Sample)...)
		return nil
	})
	return samples, err
}
