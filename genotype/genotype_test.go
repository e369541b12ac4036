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

package genotype

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/exascience/elmix/seqdata"
)

func TestInferSNPGenotype(t *testing.T) {
	hom := SNP{Position: 100, RefCount: 10, AltCount: 0}
	het := SNP{Position: 200, RefCount: 5, AltCount: 5}
	InferSNPGenotype(&hom, 0.005, 0.9)
	InferSNPGenotype(&het, 0.005, 0.9)

	assert.Equal(t, AA, hom.Call)
	assert.Equal(t, int64(10), hom.TotalCount)
	assert.Equal(t, AB, het.Call)
	assert.InDelta(t, 0.995*0.995*0.995*0.995*0.995*0.995*0.995*0.995*0.995*0.995, hom.Likelihood[AA], 1e-12)
	assert.InDelta(t, 1.0/1024, hom.Likelihood[AB], 1e-12)
}

func TestPosteriorsSumToOne(t *testing.T) {
	for ref := int64(0); ref < 40; ref += 3 {
		for alt := int64(0); alt < 40; alt += 5 {
			if ref+alt == 0 {
				continue
			}
			snp := SNP{RefCount: ref, AltCount: alt}
			InferSNPGenotype(&snp, 0.005, 0.9)
			assert.InDelta(t, 1.0, snp.Posterior[AA]+snp.Posterior[AB]+snp.Posterior[BB], 1e-9)
			assert.LessOrEqual(t, snp.Indicator(AA)+snp.Indicator(AB)+snp.Indicator(BB), 1)
		}
	}
}

func TestDeepSNP(t *testing.T) {
	snp := SNP{RefCount: 1700, AltCount: 300}
	InferSNPGenotype(&snp, 0.005, 0.9)
	assert.InDelta(t, 1.0, snp.Posterior[AA]+snp.Posterior[AB]+snp.Posterior[BB], 1e-9)
	assert.Equal(t, AB, snp.Call)
}

func TestUncalled(t *testing.T) {
	snp := SNP{RefCount: 1, AltCount: 0}
	InferSNPGenotype(&snp, 0.005, 0.9)
	assert.Equal(t, Uncalled, snp.Call)
	assert.Empty(t, Called([]SNP{snp}))
}

func TestZeroDepthPanics(t *testing.T) {
	assert.Panics(t, func() {
		InferSNPGenotype(&SNP{}, 0.005, 0.9)
	})
}

func TestReadSNPCounts(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "alleles.1.tsv"),
		[]byte("fragment_id\tposition\tis_alt\n0\t300\t1\n1\t200\t0\n2\t200\t1\n3\t200\t0\n4\t300\t1\n"), 0666))
	store, err := seqdata.Open(dir)
	require.NoError(t, err)
	snps, err := ReadSNPCounts(store, "1", 2)
	require.NoError(t, err)
	require.Len(t, snps, 2)
	assert.Equal(t, int64(200), snps[0].Position)
	assert.Equal(t, int64(2), snps[0].RefCount)
	assert.Equal(t, int64(1), snps[0].AltCount)
	assert.Equal(t, int64(300), snps[1].Position)
	assert.Equal(t, int64(2), snps[1].TotalCount)

	Call(snps, 0.005, 0.9)
	for _, snp := range snps {
		assert.InDelta(t, 1.0, snp.Posterior[AA]+snp.Posterior[AB]+snp.Posterior[BB], 1e-9)
	}
}
