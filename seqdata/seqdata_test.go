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

package seqdata

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/exascience/elmix/intervals"
)

func writeStore(t *testing.T) string {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "reads.1.tsv"),
		[]byte("fragment_id\tstart\tend\n0\t100\t400\n1\t150\t450\n2\t900\t1200\n"), 0666))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "alleles.1.tsv"),
		[]byte("fragment_id\tposition\tis_alt\n0\t200\t0\n1\t200\t1\n1\t300\t1\n"), 0666))

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	_, err := gz.Write([]byte("start\tend\tfragment_id\n10\t20\t7\n"))
	require.NoError(t, err)
	require.NoError(t, gz.Close())
	require.NoError(t, os.WriteFile(filepath.Join(dir, "reads.X.tsv.gz"), buf.Bytes(), 0666))
	return dir
}

func TestChromosomes(t *testing.T) {
	store, err := Open(writeStore(t))
	require.NoError(t, err)
	chromosomes, err := store.Chromosomes()
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "X"}, chromosomes)
}

func TestReadFragments(t *testing.T) {
	store, err := Open(writeStore(t))
	require.NoError(t, err)
	var fragments []Fragment
	err = store.ReadFragments("1", 2, func(chunk []Fragment) error {
		assert.LessOrEqual(t, len(chunk), 2)
		fragments = append(fragments, chunk...)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []Fragment{{0, 100, 400}, {1, 150, 450}, {2, 900, 1200}}, fragments)

	table, err := store.FragmentTable("X")
	require.NoError(t, err)
	assert.Equal(t, map[int64]intervals.Interval{7: {Start: 10, End: 20}}, table)

	called := false
	err = store.ReadFragments("22", 2, func([]Fragment) error {
		called = true
		return nil
	})
	assert.NoError(t, err)
	assert.False(t, called)
}

func TestReadAlleles(t *testing.T) {
	store, err := Open(writeStore(t))
	require.NoError(t, err)
	var alleles []AlleleObservation
	err = store.ReadAlleles("1", 0, func(chunk []AlleleObservation) error {
		alleles = append(alleles, chunk...)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []AlleleObservation{{0, 200, 0}, {1, 200, 1}, {1, 300, 1}}, alleles)
}

func TestMissingColumn(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "alleles.1.tsv"),
		[]byte("fragment_id\tposition\n0\t200\n"), 0666))
	store, err := Open(dir)
	require.NoError(t, err)
	err = store.ReadAlleles("1", 0, func([]AlleleObservation) error { return nil })
	assert.Error(t, err)
}
