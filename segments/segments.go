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

// Package segments reads and writes genomic segment tables.
package segments

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/exascience/elmix/internal"
	"github.com/exascience/elmix/intervals"
	"github.com/exascience/elmix/utils"
)

// Segment is a genomic interval on one chromosome, with the
// GC/mappability bias computed for it (0 until computed).
type Segment struct {
	Chromosome string
	Start, End int64
	Bias       float64
}

// Length returns the length of the segment in bases.
func (s Segment) Length() int64 {
	return s.End - s.Start
}

// Interval returns the segment as an interval.
func (s Segment) Interval() intervals.Interval {
	return intervals.Interval{Start: s.Start, End: s.End}
}

// Read parses a tab-separated segment table with at least the columns
// chromosome, start and end. A bias column is read when present.
func Read(filename string) (segs []Segment, err error) {
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
		return nil, fmt.Errorf("empty segment file %v", filename)
	}
	columns, err := internal.ParseHeader(scanner.Text(), "\t", "chromosome", "start", "end")
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
			return nil, fmt.Errorf("invalid segment line %q in %v", line, filename)
		}
		seg := Segment{
			Chromosome: fields[columns["chromosome"]],
			Start:      internal.ParseInt(fields[columns["start"]], 10, 64),
			End:        internal.ParseInt(fields[columns["end"]], 10, 64),
		}
		if hasBias {
			seg.Bias = internal.ParseFloat(fields[columns["bias"]], 64)
		}
		segs = append(segs, seg)
	}
	return segs, scanner.Err()
}

// WriteBiases writes segments with their bias as a tab-separated
// table with header chromosome, start, end, bias.
func WriteBiases(filename string, segs []Segment) (err error) {
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
	if _, err := w.WriteString("chromosome\tstart\tend\tbias\n"); err != nil {
		return err
	}
	var buf []byte
	for _, seg := range segs {
		buf = buf[:0]
		buf = append(buf, seg.Chromosome...)
		buf = append(buf, '\t')
		buf = strconv.AppendInt(buf, seg.Start, 10)
		buf = append(buf, '\t')
		buf = strconv.AppendInt(buf, seg.End, 10)
		buf = append(buf, '\t')
		buf = strconv.AppendFloat(buf, seg.Bias, 'g', -1, 64)
		buf = append(buf, '\n')
		if _, err := w.Write(buf); err != nil {
			return err
		}
	}
	return w.Flush()
}

// GroupByChromosome splits segments by chromosome. The chromosomes
// are returned in order of first appearance.
func GroupByChromosome(segs []Segment) (chromosomes []string, groups map[string][]Segment) {
	groups = make(map[string][]Segment)
	for _, seg := range segs {
		if _, ok := groups[seg.Chromosome]; !ok {
			chromosomes = append(chromosomes, seg.Chromosome)
		}
		groups[seg.Chromosome] = append(groups[seg.Chromosome], seg)
	}
	return chromosomes, groups
}
