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

package mappability

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testMappability = "1\t0\t5\t1\n" +
	"1\t5\t8\t0.5\n" +
	"1\t10\t12\t1\n" +
	"2\t0\t4\t1\n" +
	"1\t18\t25\t1\n"

func writeMappability(t *testing.T, contents string) string {
	filename := filepath.Join(t.TempDir(), "map.tsv")
	require.NoError(t, os.WriteFile(filename, []byte(contents), 0666))
	return filename
}

func TestReadChunks(t *testing.T) {
	filename := writeMappability(t, testMappability)
	var nrecords, nperfect int
	err := ReadChunks(filename, 2, func(records []Record) error {
		assert.LessOrEqual(t, len(records), 2)
		nrecords += len(records)
		for _, r := range records {
			if r.Perfect() {
				nperfect++
			}
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 5, nrecords)
	assert.Equal(t, 4, nperfect)
}

func TestReadChunksMalformed(t *testing.T) {
	filename := writeMappability(t, "1\t0\t5\n")
	err := ReadChunks(filename, 10, func([]Record) error { return nil })
	assert.Error(t, err)
}

func TestReadIndicator(t *testing.T) {
	filename := writeMappability(t, testMappability)
	ind, err := ReadIndicator(filename, "1", 20)
	require.NoError(t, err)
	assert.Equal(t, int64(20), ind.Len())
	assert.Equal(t, int64(5+2+2), ind.Count())
	assert.True(t, ind.Test(0))
	assert.True(t, ind.Test(4))
	assert.False(t, ind.Test(5))
	assert.False(t, ind.Test(7))
	assert.True(t, ind.Test(11))
	assert.True(t, ind.Test(19))
	assert.False(t, ind.Test(20))
	assert.Equal(t, []uint8{1, 0, 0, 0, 0, 0, 1, 1}, ind.Slice(4, 12))
}
