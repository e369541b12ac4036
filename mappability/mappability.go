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

// Package mappability streams mappability tracks and turns them into
// per-base indicators of perfectly mappable positions.
//
// Mappability files are tab-separated with columns chromosome, start,
// end, score, and no header. Only rows with score 1 are trusted.
package mappability

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/bits-and-blooms/bitset"

	"github.com/exascience/elmix/internal"
	"github.com/exascience/elmix/intervals"
	"github.com/exascience/elmix/utils"
)

// Record is one row of a mappability file.
type Record struct {
	Chromosome string
	Start, End int64
	Score      float64
}

// Perfect reports whether the record describes perfectly mappable
// sequence.
func (r Record) Perfect() bool {
	return r.Score == 1
}

func parseRecords(lines []string) (interface{}, error) {
	records := make([]Record, 0, len(lines))
	for _, line := range lines {
		if line == "" {
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) != 4 {
			return nil, fmt.Errorf("invalid mappability line %q - expected 4 columns", line)
		}
		start, err := strconv.ParseInt(fields[1], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%v, while parsing mappability line %q", err, line)
		}
		end, err := strconv.ParseInt(fields[2], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%v, while parsing mappability line %q", err, line)
		}
		score, err := strconv.ParseFloat(fields[3], 64)
		if err != nil {
			return nil, fmt.Errorf("%v, while parsing mappability line %q", err, line)
		}
		records = append(records, Record{Chromosome: fields[0], Start: start, End: end, Score: score})
	}
	return records, nil
}

// ReadChunks streams a mappability file in chunks of at most
// chunkSize records, calling fn on each chunk in file order.
func ReadChunks(filename string, chunkSize int, fn func([]Record) error) (err error) {
	input, err := utils.OpenText(filename)
	if err != nil {
		return err
	}
	defer func() {
		if nerr := input.Close(); err == nil {
			err = nerr
		}
	}()
	return internal.ScanChunks(input, chunkSize, parseRecords, func(chunk interface{}) error {
		return fn(chunk.([]Record))
	})
}

// Indicator is a per-base indicator of perfect mappability for one
// chromosome.
type Indicator struct {
	bits   *bitset.BitSet
	length int64
}

// NewIndicator returns an indicator with all positions unmappable.
func NewIndicator(length int64) *Indicator {
	return &Indicator{bits: bitset.New(uint(length)), length: length}
}

// Len returns the chromosome length covered by the indicator.
func (ind *Indicator) Len() int64 {
	return ind.length
}

// SetRange marks positions start..end-1 as mappable. The range is
// clipped to the indicator.
func (ind *Indicator) SetRange(start, end int64) {
	if start < 0 {
		start = 0
	}
	if end > ind.length {
		end = ind.length
	}
	for i := start; i < end; i++ {
		ind.bits.Set(uint(i))
	}
}

// Test reports whether pos is mappable.
func (ind *Indicator) Test(pos int64) bool {
	if pos < 0 || pos >= ind.length {
		return false
	}
	return ind.bits.Test(uint(pos))
}

// Count returns the number of mappable positions.
func (ind *Indicator) Count() int64 {
	return int64(ind.bits.Count())
}

// Slice returns the indicator for positions start..end-1 as 0/1
// values. Positions outside the chromosome are unmappable.
func (ind *Indicator) Slice(start, end int64) []uint8 {
	if end < start {
		end = start
	}
	result := make([]uint8, end-start)
	for i := range result {
		if ind.Test(start + int64(i)) {
			result[i] = 1
		}
	}
	return result
}

// ReadIndicator builds the mappability indicator of one chromosome
// by streaming the mappability file.
func ReadIndicator(filename, chromosome string, length int64) (*Indicator, error) {
	var mappable []intervals.Interval
	err := ReadChunks(filename, internal.DefaultChunkSize, func(records []Record) error {
		for _, r := range records {
			if r.Chromosome == chromosome && r.Perfect() {
				mappable = append(mappable, intervals.Interval{Start: r.Start, End: r.End})
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	intervals.ParallelSortByStart(mappable)
	ind := NewIndicator(length)
	for _, interval := range intervals.Flatten(mappable) {
		ind.SetRange(interval.Start, interval.End)
	}
	return ind, nil
}
