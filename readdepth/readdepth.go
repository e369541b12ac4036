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

// Package readdepth turns per-segment read counts into haploid read
// depths and derives candidate haploid depths of the normal and
// tumour clones from the modes of the minor allele depth.
package readdepth

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/exascience/elmix/internal"
	"github.com/exascience/elmix/utils"
)

// SegmentCounts holds the read counts of one segment. Length is the
// effective length of the segment, that is its length multiplied by
// its bias when the table provides one.
type SegmentCounts struct {
	Chromosome string
	Start, End int64
	Major      int64
	Minor      int64
	Total      int64
	Length     float64
}

// ReadSegmentCounts reads a tab-separated table with header and at
// least the columns chromosome, start, end, major, minor, total and
// length. An optional bias column scales the length.
func ReadSegmentCounts(filename string) (counts []SegmentCounts, err error) {
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
		return nil, fmt.Errorf("empty segment count file %v", filename)
	}
	columns, err := internal.ParseHeader(scanner.Text(), "\t", "chromosome", "start", "end", "major", "minor", "total", "length")
	if err != nil {
		return nil, fmt.Errorf("%v: %w", filename, err)
	}
	hasBias := columns.Has("bias")
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) < len(columns) {
			return nil, fmt.Errorf("invalid segment count line %q in %v", line, filename)
		}
		c := SegmentCounts{
			Chromosome: fields[columns["chromosome"]],
			Start:      internal.ParseInt(fields[columns["start"]], 10, 64),
			End:        internal.ParseInt(fields[columns["end"]], 10, 64),
			Major:      internal.ParseInt(fields[columns["major"]], 10, 64),
			Minor:      internal.ParseInt(fields[columns["minor"]], 10, 64),
			Total:      internal.ParseInt(fields[columns["total"]], 10, 64),
			Length:     internal.ParseFloat(fields[columns["length"]], 64),
		}
		if hasBias {
			c.Length *= internal.ParseFloat(fields[columns["bias"]], 64)
		}
		counts = append(counts, c)
	}
	return counts, scanner.Err()
}

// PhiEstimator estimates the fraction of the reads of a segment whose
// allele could be measured.
type PhiEstimator func(c *SegmentCounts) float64

// EstimatePhi is the default PhiEstimator: the fraction of reads
// assigned to either allele, with one pseudo-count added to the
// total.
func EstimatePhi(c *SegmentCounts) float64 {
	return float64(c.Major+c.Minor) / float64(c.Total+1)
}

// Depth is the haploid read depth of one segment, sorted so that
// Minor <= Major <= Total.
type Depth struct {
	Chromosome string
	Start, End int64
	Minor      float64
	Major      float64
	Total      float64
	Length     float64
}

// CalculateDepth divides the allele read counts of each segment by
// phi, and all read counts by the effective length. Segments with a
// non-positive length or phi are skipped. The three depths of each
// segment are sorted.
func CalculateDepth(counts []SegmentCounts, phi PhiEstimator) []Depth {
	if phi == nil {
		phi = EstimatePhi
	}
	depths := make([]Depth, 0, len(counts))
	for i := range counts {
		c := &counts[i]
		p := phi(c)
		if !(c.Length > 0) || !(p > 0) {
			continue
		}
		rd := []float64{
			float64(c.Major) / p / c.Length,
			float64(c.Minor) / p / c.Length,
			float64(c.Total) / c.Length,
		}
		sort.Float64s(rd)
		depths = append(depths, Depth{
			Chromosome: c.Chromosome,
			Start:      c.Start,
			End:        c.End,
			Minor:      rd[0],
			Major:      rd[1],
			Total:      rd[2],
			Length:     c.Length,
		})
	}
	return depths
}

// WriteDepths writes a tab-separated read depth table with header.
func WriteDepths(filename string, depths []Depth) (err error) {
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
	if _, err := w.WriteString("chromosome\tstart\tend\tminor\tmajor\ttotal\tlength\n"); err != nil {
		return err
	}
	var buf []byte
	for _, d := range depths {
		buf = buf[:0]
		buf = append(buf, d.Chromosome...)
		buf = append(buf, '\t')
		buf = strconv.AppendInt(buf, d.Start, 10)
		buf = append(buf, '\t')
		buf = strconv.AppendInt(buf, d.End, 10)
		for _, v := range [...]float64{d.Minor, d.Major, d.Total, d.Length} {
			buf = append(buf, '\t')
			buf = strconv.AppendFloat(buf, v, 'g', -1, 64)
		}
		buf = append(buf, '\n')
		if _, err := w.Write(buf); err != nil {
			return err
		}
	}
	return w.Flush()
}

// WriteVectors writes one vector per line, tab separated.
func WriteVectors(w io.Writer, vectors [][]float64) error {
	bw := bufio.NewWriter(w)
	var buf []byte
	for _, v := range vectors {
		buf = buf[:0]
		for i, x := range v {
			if i > 0 {
				buf = append(buf, '\t')
			}
			buf = strconv.AppendFloat(buf, x, 'g', -1, 64)
		}
		buf = append(buf, '\n')
		if _, err := bw.Write(buf); err != nil {
			return err
		}
	}
	return bw.Flush()
}
