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

package segments

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadWrite(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "segments.tsv")
	require.NoError(t, os.WriteFile(input, []byte("chromosome\tstart\tend\tname\n1\t0\t100\ta\n2\t5\t50\tb\n1\t100\t300\tc\n"), 0666))

	segs, err := Read(input)
	require.NoError(t, err)
	require.Len(t, segs, 3)
	assert.Equal(t, Segment{Chromosome: "2", Start: 5, End: 50}, segs[1])
	assert.Equal(t, int64(200), segs[2].Length())

	chromosomes, groups := GroupByChromosome(segs)
	assert.Equal(t, []string{"1", "2"}, chromosomes)
	assert.Len(t, groups["1"], 2)

	segs[0].Bias = 0.25
	output := filepath.Join(dir, "biases.tsv")
	require.NoError(t, WriteBiases(output, segs))
	again, err := Read(output)
	require.NoError(t, err)
	assert.Equal(t, segs, again)
}

func TestReadMissingColumn(t *testing.T) {
	input := filepath.Join(t.TempDir(), "segments.tsv")
	require.NoError(t, os.WriteFile(input, []byte("chromosome\tstart\n1\t0\n"), 0666))
	_, err := Read(input)
	assert.Error(t, err)
}
