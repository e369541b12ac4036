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
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/exascience/elmix/internal"
	"github.com/exascience/elmix/segments"
	"github.com/exascience/elmix/seqdata"
)

type testGenome map[string][]byte

func (g testGenome) Seq(contig string) ([]byte, error) {
	seq, ok := g[contig]
	if !ok {
		return nil, fmt.Errorf("unknown contig %v", contig)
	}
	return seq, nil
}

func writeFile(t *testing.T, dir, name, contents string) string {
	filename := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(filename, []byte(contents), 0666))
	return filename
}

func TestGCCumsum(t *testing.T) {
	assert.Equal(t, []int32{0, 1, 2, 2, 3, 3}, GCCumsum([]byte("AGCTgN")))
	assert.Empty(t, GCCumsum(nil))
}

func TestLowessLinear(t *testing.T) {
	x := make([]float64, 21)
	y := make([]float64, 21)
	for i := range x {
		x[i] = float64(i)
		y[i] = 2*float64(i) + 1
	}
	fitted := Lowess(x, y, 0.2, 3)
	for i := range fitted {
		assert.InDelta(t, y[i], fitted[i], 1e-9)
	}
}

func TestGCLowess(t *testing.T) {
	var samples []Sample
	for i := 0; i <= 100; i++ {
		gc := float64(i) / 100
		// read counts peak at 50% GC
		count := int64(100 - math.Abs(float64(i-50))*1.5)
		for j := 0; j < 3; j++ {
			samples = append(samples, Sample{Chromosome: "1", Position: int64(i*3 + j), GCPercent: gc, ReadCount: count + int64(j)})
		}
	}
	table := GCLowess(samples, 100)
	require.Len(t, table.Smoothed, 101)
	max := 0.0
	for _, v := range table.Smoothed {
		assert.GreaterOrEqual(t, v, 0.0)
		assert.LessOrEqual(t, v, 1.0)
		max = math.Max(max, v)
	}
	assert.Equal(t, 1.0, max)
	assert.Equal(t, int64(3), table.Len[50])
	assert.Equal(t, int64(303), table.Sum[50])

	dir := t.TempDir()
	require.NoError(t, table.Write(filepath.Join(dir, "table.tsv")))
	require.NoError(t, table.WriteCurve(filepath.Join(dir, "curve.txt")))
	contents, err := os.ReadFile(filepath.Join(dir, "table.tsv"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(contents), "gc_bin\tsum\tlen\tmean\tsmoothed\n0\t"))

	curve, err := ReadCurve(filepath.Join(dir, "curve.txt"))
	require.NoError(t, err)
	require.Len(t, curve, 101)
	sum := 0.0
	for _, v := range curve {
		sum += v
	}
	assert.InDelta(t, 1, sum, 1e-9)
}

func TestGCLowessEmptyBins(t *testing.T) {
	samples := []Sample{
		{Chromosome: "1", Position: 1, GCPercent: 0.4, ReadCount: 2},
		{Chromosome: "1", Position: 2, GCPercent: 0.5, ReadCount: 4},
		{Chromosome: "1", Position: 3, GCPercent: 0.6, ReadCount: 2},
	}
	table := GCLowess(samples, 10)
	for i, v := range table.Smoothed {
		assert.False(t, math.IsNaN(v), "bin %v", i)
		assert.GreaterOrEqual(t, v, 0.0)
		assert.LessOrEqual(t, v, 1.0)
	}
	assert.Equal(t, 0.0, table.Mean[0])
}

func TestCurve(t *testing.T) {
	curve, err := NewCurve([]float64{1, 2, 1, -4, 4})
	require.NoError(t, err)
	assert.InDelta(t, 0.25, curve.Predict(0), 1e-12)
	assert.InDelta(t, 0.5, curve.Predict(0.3), 1e-12)
	assert.Equal(t, 0.0, curve.Predict(0.75))
	assert.InDelta(t, 1, curve.Predict(1), 1e-12)
	assert.InDelta(t, 1, curve.Predict(2), 1e-12)
	assert.InDelta(t, 0.25, curve.Predict(-1), 1e-12)
	assert.Len(t, curve.Table(10), 11)

	_, err = NewCurve([]float64{0, 0})
	assert.Error(t, err)
}

func TestSegmentBias(t *testing.T) {
	model := &BiasModel{
		Offset:        0,
		ReadLength:    1,
		MinLength:     3,
		MaxLength:     3,
		gcTables:      [][]float64{{0.5, 0.5, 0.5, 0.5}},
		lengthDensity: []float64{1},
	}
	cumsum := GCCumsum([]byte("ACGTACGTAC"))
	mapp := make([]uint8, 10)
	assert.Equal(t, 0.0, model.SegmentBias(cumsum, mapp))
	for i := range mapp {
		mapp[i] = 1
	}
	assert.InDelta(t, 3.5, model.SegmentBias(cumsum, mapp), 1e-12)
	// the placement starting at 0 needs its mate at 2
	mapp[2] = 0
	assert.InDelta(t, 2.5, model.SegmentBias(cumsum, mapp), 1e-12)
}

func TestNewBiasModel(t *testing.T) {
	curve, err := NewCurve([]float64{1, 1, 1})
	require.NoError(t, err)
	model, err := NewBiasModel(curve, 200, 20, 25, 100)
	require.NoError(t, err)
	dist := distuv.Normal{Mu: 200, Sigma: 20}
	assert.Equal(t, int(dist.Quantile(0.01)-1), model.MinLength)
	assert.Equal(t, int(dist.Quantile(0.99)+1), model.MaxLength)
	assert.Equal(t, 152, model.MinLength)
	assert.Equal(t, 247, model.MaxLength)
	assert.Len(t, model.gcTables, model.MaxLength-model.MinLength+1)
	assert.Len(t, model.gcTables[0], model.MinLength-50+1)

	model, err = NewBiasModel(curve, 10, 5, 4, 6)
	require.NoError(t, err)
	assert.Equal(t, 9, model.MinLength)

	_, err = NewBiasModel(curve, 10, 0, 4, 6)
	assert.Error(t, err)
}

func TestCalculateGCMapBias(t *testing.T) {
	dir := t.TempDir()
	mapFile := writeFile(t, dir, "map.tsv", "1\t0\t100\t1\n1\t100\t200\t0.5\n")
	genome := testGenome{"1": []byte(strings.Repeat("ACGT", 50))}
	curve, err := NewCurve([]float64{1, 1, 1, 1, 1})
	require.NoError(t, err)
	model, err := NewBiasModel(curve, 20, 2, 2, 5)
	require.NoError(t, err)

	segs := []segments.Segment{
		{Chromosome: "1", Start: 0, End: 100},
		{Chromosome: "1", Start: 100, End: 200},
		{Chromosome: "1", Start: 150, End: 260},
	}
	require.NoError(t, CalculateGCMapBias(segs, genome, mapFile, model))
	assert.Greater(t, segs[0].Bias, 0.0)
	assert.Equal(t, 0.0, segs[1].Bias)
	assert.Equal(t, 0.0, segs[2].Bias)
	assert.Equal(t, int64(100), segs[1].Start)

	err = CalculateGCMapBias([]segments.Segment{{Chromosome: "2", Start: 0, End: 10}}, genome, mapFile, model)
	assert.Error(t, err)
}

func TestSampleGC(t *testing.T) {
	dir := t.TempDir()
	mapFile := writeFile(t, dir, "map.tsv", "1\t0\t100\t1\n2\t0\t100\t0\n")
	var reads strings.Builder
	reads.WriteString("fragment_id\tstart\tend\n")
	for i := 0; i < 100; i++ {
		fmt.Fprintf(&reads, "%v\t%v\t%v\n", 2*i, i, i+10)
		if i%2 == 0 {
			fmt.Fprintf(&reads, "%v\t%v\t%v\n", 2*i+1, i, i+12)
		}
	}
	storeDir := filepath.Join(dir, "store")
	require.NoError(t, os.Mkdir(storeDir, 0777))
	writeFile(t, storeDir, "reads.1.tsv", reads.String())
	store, err := seqdata.Open(storeDir)
	require.NoError(t, err)

	genome := testGenome{
		"1": []byte(strings.Repeat("GC", 50)),
		"2": []byte(strings.Repeat("AT", 50)),
	}
	opts := SampleOptions{
		Chromosomes:     []string{"1", "2"},
		NumSamples:      200,
		Offset:          2,
		FragmentLength:  10,
		MappabilityFile: mapFile,
		ChunkSize:       1,
	}
	lengths := map[string]int64{"1": 100, "2": 100}
	samples, err := SampleGC(opts, lengths, genome, store, internal.NewRand(42))
	require.NoError(t, err)
	require.NotEmpty(t, samples)
	for _, s := range samples {
		assert.Equal(t, "1", s.Chromosome)
		assert.LessOrEqual(t, s.Position, int64(100-10+2))
		assert.Equal(t, 1.0, s.GCPercent)
		if s.Position%2 == 0 {
			assert.Equal(t, int64(2), s.ReadCount)
		} else {
			assert.Equal(t, int64(1), s.ReadCount)
		}
	}

	filename := filepath.Join(dir, "samples.tsv")
	require.NoError(t, WriteSamples(filename, samples))
	read, err := ReadSamples(filename)
	require.NoError(t, err)
	assert.Equal(t, samples, read)

	opts.Offset = 5
	_, err = SampleGC(opts, lengths, genome, store, internal.NewRand(42))
	assert.Error(t, err)
}
