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

package gcbias

import (
	"bufio"
	"fmt"
	"log"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/exascience/pargo/parallel"
	"gonum.org/v1/gonum/floats"

	"github.com/exascience/elmix/internal"
	"github.com/exascience/elmix/utils"
)

// LowessFraction is the bandwidth of the smoother, as a fraction of
// the number of GC bins.
const LowessFraction = 0.2

// LowessIterations is the number of robustifying iterations of the
// smoother.
const LowessIterations = 3

// Table holds the binned GC samples and the smoothed curve. Bin i
// covers GC fractions that round to i/resolution.
type Table struct {
	Sum      []int64
	Len      []int64
	Mean     []float64
	Smoothed []float64
}

// GCLowess bins samples into resolution+1 GC bins, smooths the mean
// read count per bin, and rescales the means and smoothed values so
// that the maximum smoothed value is 1.
func GCLowess(samples []Sample, resolution int) *Table {
	if resolution <= 0 {
		log.Panicf("invalid gc resolution %v", resolution)
	}
	n := resolution + 1
	table := &Table{
		Sum:      make([]int64, n),
		Len:      make([]int64, n),
		Mean:     make([]float64, n),
		Smoothed: make([]float64, n),
	}
	for _, s := range samples {
		bin := int(math.Round(s.GCPercent * float64(resolution)))
		if bin < 0 || bin > resolution {
			log.Panicf("gc fraction %v out of range at %v:%v", s.GCPercent, s.Chromosome, s.Position)
		}
		table.Sum[bin] += s.ReadCount
		table.Len[bin]++
	}
	bins := make([]float64, n)
	parallel.Range(0, n, 0, func(low, high int) {
		for i := low; i < high; i++ {
			bins[i] = float64(i)
			if table.Len[i] > 0 {
				table.Mean[i] = float64(table.Sum[i]) / float64(table.Len[i])
			}
		}
	})
	smoothed := Lowess(bins, table.Mean, LowessFraction, LowessIterations)
	for i, v := range smoothed {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			log.Panicf("gc curve smoothing produced undefined value in bin %v", i)
		}
		if v < 0 {
			smoothed[i] = 0
		}
	}
	maxValue := floats.Max(smoothed)
	if maxValue <= 0 {
		log.Panic("gc curve smoothing produced no positive value")
	}
	for i := range smoothed {
		table.Smoothed[i] = smoothed[i] / maxValue
		table.Mean[i] /= maxValue
	}
	return table
}

// Write writes the full binned table with header
// gc_bin, sum, len, mean, smoothed.
func (table *Table) Write(filename string) (err error) {
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
	if _, err := w.WriteString("gc_bin\tsum\tlen\tmean\tsmoothed\n"); err != nil {
		return err
	}
	var buf []byte
	for i := range table.Smoothed {
		buf = buf[:0]
		buf = strconv.AppendInt(buf, int64(i), 10)
		buf = append(buf, '\t')
		buf = strconv.AppendInt(buf, table.Sum[i], 10)
		buf = append(buf, '\t')
		buf = strconv.AppendInt(buf, table.Len[i], 10)
		buf = append(buf, '\t')
		buf = strconv.AppendFloat(buf, table.Mean[i], 'g', -1, 64)
		buf = append(buf, '\t')
		buf = strconv.AppendFloat(buf, table.Smoothed[i], 'g', -1, 64)
		buf = append(buf, '\n')
		if _, err := w.Write(buf); err != nil {
			return err
		}
	}
	return w.Flush()
}

// WriteCurve writes the smoothed values, one per line.
func (table *Table) WriteCurve(filename string) (err error) {
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
	for _, v := range table.Smoothed {
		buf = strconv.AppendFloat(buf[:0], v, 'g', -1, 64)
		buf = append(buf, '\n')
		if _, err := w.Write(buf); err != nil {
			return err
		}
	}
	return w.Flush()
}

// Curve is a GC bias curve: the relative probability of observing a
// fragment as a piecewise constant function of its GC fraction.
type Curve []float64

// NewCurve normalizes values to sum 1.
func NewCurve(values []float64) (Curve, error) {
	sum := floats.Sum(values)
	if len(values) == 0 || !(sum > 0) {
		return nil, fmt.Errorf("gc curve with %v values does not have a positive sum", len(values))
	}
	curve := make(Curve, len(values))
	copy(curve, values)
	floats.Scale(1/sum, curve)
	return curve, nil
}

// ReadCurve reads a curve written by Table.WriteCurve and normalizes
// it to sum 1.
func ReadCurve(filename string) (curve Curve, err error) {
	input, err := utils.OpenText(filename)
	if err != nil {
		return nil, err
	}
	defer func() {
		if nerr := input.Close(); err == nil {
			err = nerr
		}
	}()
	var values []float64
	scanner := bufio.NewScanner(input)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		values = append(values, internal.ParseFloat(line, 64))
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return NewCurve(values)
}

// Predict returns the curve value for GC fraction x in [0, 1].
// Out-of-range fractions are clipped to the nearest bin, and negative
// values are reported as 0.
func (curve Curve) Predict(x float64) float64 {
	last := len(curve) - 1
	idx := int(x * float64(last))
	if idx < 0 {
		idx = 0
	} else if idx > last {
		idx = last
	}
	return math.Max(curve[idx], 0)
}

// Table returns the curve value for each possible G/C base count 0..l
// of a window of l bases.
func (curve Curve) Table(l int) []float64 {
	table := make([]float64, l+1)
	for x := range table {
		table[x] = curve.Predict(float64(x) / float64(l))
	}
	return table
}
