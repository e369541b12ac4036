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
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/exascience/elmix/genotype"
	"github.com/exascience/elmix/internal"
	"github.com/exascience/elmix/seqdata"
)

const testLegend = "id position a0 a1\n" +
	"rs1 100 A G\n" +
	"rs2 200 C T\n" +
	"rs3 300 C CT\n" +
	"rs4 400 G A\n"

func writeLegend(t *testing.T, dir string) string {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	_, err := gz.Write([]byte(testLegend))
	require.NoError(t, err)
	require.NoError(t, gz.Close())
	filename := filepath.Join(dir, "legend.gz")
	require.NoError(t, os.WriteFile(filename, buf.Bytes(), 0666))
	return filename
}

// writeStore creates a store with SNP 100 (ref 10, alt 0), SNP 200
// (ref 5, alt 5) and SNP 300 (ref 0, alt 5) on chromosome 1.
func writeStore(t *testing.T, dir string) *seqdata.Store {
	var alleles strings.Builder
	alleles.WriteString("fragment_id\tposition\tis_alt\n")
	id := 0
	add := func(position, isAlt, n int) {
		for i := 0; i < n; i++ {
			fmt.Fprintf(&alleles, "%v\t%v\t%v\n", id, position, isAlt)
			id++
		}
	}
	add(100, 0, 10)
	add(200, 0, 5)
	add(200, 1, 5)
	add(300, 1, 5)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "alleles.1.tsv"), []byte(alleles.String()), 0666))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "reads.1.tsv"), []byte("fragment_id\tstart\tend\n"), 0666))
	store, err := seqdata.Open(dir)
	require.NoError(t, err)
	return store
}

type stubPhaser struct {
	input   *PhasingInput
	samples [][]PhasedSNP
	seeds   []int
	closed  bool
	err     error
}

func (p *stubPhaser) Phase(_ context.Context, input *PhasingInput) (Graph, error) {
	p.input = input
	return p, nil
}

func (p *stubPhaser) Sample(_ context.Context, seed int) ([]PhasedSNP, error) {
	p.seeds = append(p.seeds, seed)
	if p.err != nil {
		return nil, p.err
	}
	return p.samples[seed%len(p.samples)], nil
}

func (p *stubPhaser) Close() error {
	p.closed = true
	return nil
}

func TestSupported(t *testing.T) {
	for _, chrom := range []string{"1", "9", "22", "X"} {
		assert.True(t, Supported(chrom), chrom)
	}
	for _, chrom := range []string{"0", "23", "Y", "MT", "chr1", "01", ""} {
		assert.False(t, Supported(chrom), chrom)
	}
}

func TestReadLegend(t *testing.T) {
	snps, err := ReadLegend(writeLegend(t, t.TempDir()))
	require.NoError(t, err)
	assert.Equal(t, []PanelSNP{
		{Position: 100, A0: "A", A1: "G"},
		{Position: 200, A0: "C", A1: "T"},
		{Position: 400, A0: "G", A1: "A"},
	}, snps)

	filename := filepath.Join(t.TempDir(), "legend")
	require.NoError(t, os.WriteFile(filename, []byte("id pos a0 a1\n"), 0666))
	_, err = ReadLegend(filename)
	assert.Error(t, err)
}

func TestMergePanel(t *testing.T) {
	panel := []PanelSNP{
		{Position: 400, A0: "G", A1: "A"},
		{Position: 100, A0: "A", A1: "G"},
		{Position: 200, A0: "C", A1: "T"},
	}
	snps := []genotype.SNP{
		{Position: 100, Call: genotype.AA},
		{Position: 200, Call: genotype.AB},
		{Position: 300, Call: genotype.BB},
		{Position: 400, Call: genotype.Uncalled},
	}
	merged := MergePanel(panel, snps)
	require.Len(t, merged, 2)
	assert.Equal(t, int64(100), merged[0].Position)
	assert.Equal(t, genotype.AB, merged[1].Call)
	assert.Equal(t, 1, Heterozygous(merged))

	var buf bytes.Buffer
	require.NoError(t, WriteGen(&buf, "X", merged))
	assert.Equal(t, "X X:100 100 A G 1 0 0\nX X:200 200 C T 0 1 0\n", buf.String())
}

func TestReadHaps(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "sample.haps")
	require.NoError(t, os.WriteFile(filename, []byte(
		"1 rs1 100 A G 0 1\n"+
			"1 rs2 150 A G 1 1\n"+
			"1 rs3 200 C T 1 0\n"), 0666))
	snps, err := ReadHaps(filename)
	require.NoError(t, err)
	assert.Equal(t, []PhasedSNP{{100, 0}, {200, 1}}, snps)
}

func TestChangepoints(t *testing.T) {
	samples := [][]PhasedSNP{
		{{10, 0}, {20, 1}, {30, 1}, {40, 0}},
		{{10, 1}, {20, 0}, {30, 0}, {40, 0}},
		{{10, 0}, {20, 1}, {30, 0}, {40, 1}},
		{{10, 1}, {20, 0}, {30, 0}},
	}
	assert.Equal(t, []float64{0, 1, 0, 1}, SampleChangepoints(samples[0]))

	changepoints := NewChangepoints(len(samples))
	for _, s := range samples {
		changepoints.Add(s)
	}
	mean := changepoints.Mean(samples[2])
	assert.Equal(t, []float64{0, 1, 0.25}, mean[:3])
	assert.True(t, math.IsNaN(mean[3]))

	confidence := ChangepointConfidence(mean)
	assert.Equal(t, []float64{1, 1, 0.75}, confidence[:3])
	assert.True(t, math.IsNaN(confidence[3]))

	assert.Equal(t, []int64{0, 0, 1, 1}, AssignBlocks(confidence, 0.95))
}

func TestAssignBlocks(t *testing.T) {
	confidence := []float64{1, 0.99, 0.6, 0.97, 0.94, 0.5, 1}
	labels := AssignBlocks(confidence, 0.95)
	assert.Equal(t, []int64{0, 0, 1, 1, 2, 3, 3}, labels)
	for i := 1; i < len(labels); i++ {
		assert.GreaterOrEqual(t, labels[i], labels[i-1])
		assert.Equal(t, confidence[i] < 0.95, labels[i] > labels[i-1])
	}
}

func TestExpandAlleles(t *testing.T) {
	sample := []PhasedSNP{{100, 1}, {200, 0}, {300, 1}}
	blocks := ExpandAlleles("3", sample, []int64{0, 0, 1})
	require.Len(t, blocks, 6)
	for i := 0; i < len(blocks); i += 2 {
		a, b := blocks[i], blocks[i+1]
		assert.Equal(t, a.Position, b.Position)
		assert.Equal(t, uint8(0), a.AlleleID)
		assert.Equal(t, uint8(1), b.AlleleID)
		assert.Equal(t, uint8(1), a.Allele+b.Allele)
		assert.Equal(t, a.HapLabel, b.HapLabel)
		assert.Equal(t, "3", a.Chromosome)
	}
	assert.Equal(t, Block{"3", 300, 0, 1, 1}, blocks[5])

	filename := filepath.Join(t.TempDir(), "haps.tsv")
	require.NoError(t, WriteBlocks(filename, blocks))
	read, err := ReadBlocks(filename)
	require.NoError(t, err)
	assert.Equal(t, blocks, read)

	require.NoError(t, WriteBlocks(filename, nil))
	contents, err := os.ReadFile(filename)
	require.NoError(t, err)
	assert.Equal(t, BlocksHeader, string(contents))
	read, err = ReadBlocks(filename)
	require.NoError(t, err)
	assert.Empty(t, read)
}

func testOptions(legend string) Options {
	return Options{
		Legend:              legend,
		BaseCallError:       0.005,
		CallThreshold:       0.9,
		NumSamples:          1,
		ConfidenceThreshold: 0.95,
		ChunkSize:           3,
	}
}

func TestInferHaps(t *testing.T) {
	dir := t.TempDir()
	store := writeStore(t, dir)
	phaser := &stubPhaser{samples: [][]PhasedSNP{{{200, 1}}}}
	blocks, err := InferHaps(context.Background(), "1", store, phaser, testOptions(writeLegend(t, dir)))
	require.NoError(t, err)

	require.NotNil(t, phaser.input)
	assert.Equal(t, "1", phaser.input.Chromosome)
	require.Len(t, phaser.input.SNPs, 2)
	assert.Equal(t, int64(100), phaser.input.SNPs[0].Position)
	assert.Equal(t, genotype.AA, phaser.input.SNPs[0].Call)
	assert.Equal(t, int64(200), phaser.input.SNPs[1].Position)
	assert.Equal(t, genotype.AB, phaser.input.SNPs[1].Call)
	assert.Equal(t, []int{0}, phaser.seeds)
	assert.True(t, phaser.closed)

	assert.Equal(t, []Block{
		{Chromosome: "1", Position: 200, Allele: 1, HapLabel: 0, AlleleID: 0},
		{Chromosome: "1", Position: 200, Allele: 0, HapLabel: 0, AlleleID: 1},
	}, blocks)
}

func TestInferHapsConsensus(t *testing.T) {
	dir := t.TempDir()
	store := writeStore(t, dir)
	phaser := &stubPhaser{samples: [][]PhasedSNP{
		{{100, 0}, {200, 1}, {300, 1}},
		{{100, 1}, {200, 0}, {300, 1}},
	}}
	opts := testOptions(writeLegend(t, dir))
	opts.NumSamples = 4
	blocks, err := InferHaps(context.Background(), "1", store, phaser, opts)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2, 3}, phaser.seeds)
	require.Len(t, blocks, 6)
	assert.Equal(t, int64(0), blocks[0].HapLabel)
	assert.Equal(t, int64(0), blocks[2].HapLabel)
	assert.Equal(t, int64(1), blocks[4].HapLabel)
	assert.Equal(t, uint8(1), blocks[4].Allele)
}

func TestInferHapsEmpty(t *testing.T) {
	dir := t.TempDir()
	store := writeStore(t, dir)
	phaser := &stubPhaser{}
	legend := writeLegend(t, dir)

	blocks, err := InferHaps(context.Background(), "MT", store, phaser, testOptions(legend))
	require.NoError(t, err)
	assert.Empty(t, blocks)

	blocks, err = InferHaps(context.Background(), "2", store, phaser, testOptions(legend))
	require.NoError(t, err)
	assert.Empty(t, blocks)
	assert.Nil(t, phaser.input)
}

const fakeShapeit = `#!/bin/sh
if [ "$1" = "-convert" ]; then
	if [ "$7" = "13" ]; then
		echo "sampling failed" > "$9"
		exit 3
	fi
	printf '1 rs1 100 A G 0 1\n1 rs2 200 C T 1 1\n1 rs3 300 G A 1 0\n' > "$5.haps"
	: > "$5.sample"
	: > "$9"
	exit 0
fi
status=0
while [ $# -gt 0 ]; do
	case "$1" in
	--output-graph) : > "$2"; shift ;;
	-L) echo "phasing log" > "$2"; shift ;;
	--chrX) status=7 ;;
	esac
	shift
done
exit $status
`

func writeExecutable(t *testing.T, dir, contents string) string {
	filename := filepath.Join(dir, "shapeit")
	require.NoError(t, os.WriteFile(filename, []byte(contents), 0755))
	return filename
}

func TestShapeit(t *testing.T) {
	dir := t.TempDir()
	tempDir := filepath.Join(dir, "tmp")
	shapeit := &Shapeit{Executable: writeExecutable(t, dir, fakeShapeit), TempDir: tempDir}
	input := &PhasingInput{
		Chromosome: "1",
		SNPs:       []GenotypedSNP{{PanelSNP{100, "A", "G"}, genotype.AB}},
	}
	graph, err := shapeit.Phase(context.Background(), input)
	require.NoError(t, err)

	entries, err := os.ReadDir(tempDir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	namespace := filepath.Join(tempDir, entries[0].Name())
	gen, err := os.ReadFile(filepath.Join(namespace, "snps.gen"))
	require.NoError(t, err)
	assert.Equal(t, "1 1:100 100 A G 0 1 0\n", string(gen))

	sample, err := graph.Sample(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, []PhasedSNP{{100, 0}, {300, 1}}, sample)
	leftovers, err := filepath.Glob(filepath.Join(namespace, "sampled.*"))
	require.NoError(t, err)
	assert.Empty(t, leftovers)

	require.NoError(t, graph.Close())
	_, err = os.Stat(namespace)
	assert.True(t, os.IsNotExist(err))
}

func TestShapeitFailure(t *testing.T) {
	dir := t.TempDir()
	tempDir := filepath.Join(dir, "tmp")
	shapeit := &Shapeit{Executable: writeExecutable(t, dir, fakeShapeit), TempDir: tempDir}
	_, err := shapeit.Phase(context.Background(), &PhasingInput{Chromosome: "X", ChromosomeX: true})
	var cmdErr *internal.CommandError
	require.True(t, errors.As(err, &cmdErr))
	assert.Equal(t, 7, cmdErr.ExitCode)
	assert.True(t, strings.HasSuffix(cmdErr.LogFile, "phased.hgraph.log"))
	assert.Equal(t, tempDir, filepath.Dir(cmdErr.LogFile))
	contents, err := os.ReadFile(cmdErr.LogFile)
	require.NoError(t, err)
	assert.Equal(t, "phasing log\n", string(contents))

	entries, err := os.ReadDir(tempDir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.False(t, entries[0].IsDir())
}

func TestShapeitSampleFailure(t *testing.T) {
	dir := t.TempDir()
	tempDir := filepath.Join(dir, "tmp")
	shapeit := &Shapeit{Executable: writeExecutable(t, dir, fakeShapeit), TempDir: tempDir}
	graph, err := shapeit.Phase(context.Background(), &PhasingInput{Chromosome: "2"})
	require.NoError(t, err)

	_, err = graph.Sample(context.Background(), 13)
	var cmdErr *internal.CommandError
	require.True(t, errors.As(err, &cmdErr))
	assert.Equal(t, 3, cmdErr.ExitCode)
	assert.True(t, strings.HasSuffix(cmdErr.LogFile, "sampled.13.log"))
	assert.Equal(t, tempDir, filepath.Dir(cmdErr.LogFile))

	require.NoError(t, graph.Close())
	entries, err := os.ReadDir(tempDir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, filepath.Base(cmdErr.LogFile), entries[0].Name())
}

func TestInferHapsReleasesGraphOnSampleError(t *testing.T) {
	dir := t.TempDir()
	store := writeStore(t, dir)
	phaser := &stubPhaser{err: context.Canceled}
	blocks, err := InferHaps(context.Background(), "1", store, phaser, testOptions(writeLegend(t, dir)))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, blocks)
	assert.True(t, phaser.closed)
}
