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

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Len(t, cfg.Chromosomes, 23)
	assert.Equal(t, "1", cfg.Chromosomes[0])
	assert.Equal(t, "X", cfg.Chromosomes[22])
	assert.Equal(t, 0.005, cfg.SequencingBaseCallError)
	assert.Equal(t, 100, cfg.ShapeitNumSamples)
}

func TestLoad(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "elmix.yml")
	require.NoError(t, os.WriteFile(filename, []byte(
		"chromosomes: ['21', '22', X]\n"+
			"legend_template: /panel/legend_chr{0}.gz\n"+
			"genetic_map_template: /panel/map_%s.txt\n"+
			"phased_chromosome_x: X_NONPAR\n"+
			"shapeit_num_samples: 10\n"), 0666))
	t.Setenv("ELMIX_SHAPEIT_NUM_SAMPLES", "20")
	t.Setenv("ELMIX_GC_RESOLUTION", "50")

	cfg, err := Load(filename)
	require.NoError(t, err)
	assert.Equal(t, []string{"21", "22", "X"}, cfg.Chromosomes)
	assert.Equal(t, 20, cfg.ShapeitNumSamples)
	assert.Equal(t, 50, cfg.GCResolution)
	assert.Equal(t, 0.9, cfg.HetSNPCallThreshold)
	assert.Equal(t, "/panel/legend_chr21.gz", cfg.Legend("21"))
	assert.Equal(t, "/panel/legend_chrX_NONPAR.gz", cfg.Legend("X"))
	assert.Equal(t, "/panel/map_X_NONPAR.txt", cfg.GeneticMap("X"))
	assert.Equal(t, "", cfg.Haplotypes("1"))
}

func TestLoadInvalid(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "elmix.yml")
	require.NoError(t, os.WriteFile(filename, []byte("het_snp_call_threshold: 1.5\n"), 0666))
	_, err := Load(filename)
	assert.Error(t, err)

	empty := filepath.Join(t.TempDir(), "empty.yml")
	require.NoError(t, os.WriteFile(empty, nil, 0666))
	cfg, err := Load(empty)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yml"))
	assert.Error(t, err)
}
