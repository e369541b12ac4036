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

// Package config holds the options shared by the elmix commands.
// Options are read from a YAML file and can be overridden with
// ELMIX_* environment variables.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/kelseyhightower/envconfig"
	yaml "gopkg.in/yaml.v2"
)

// EnvPrefix is the prefix of the environment variables that override
// configuration options.
const EnvPrefix = "elmix"

// Config holds all elmix options.
type Config struct {
	Chromosomes []string `yaml:"chromosomes" envconfig:"CHROMOSOMES"`

	GenomeFasta         string `yaml:"genome_fasta" envconfig:"GENOME_FASTA"`
	GenomeFai           string `yaml:"genome_fai" envconfig:"GENOME_FAI"`
	MappabilityFilename string `yaml:"mappability_filename" envconfig:"MAPPABILITY_FILENAME"`

	// Reference panel files. Templates contain {0}, {} or %s where the
	// chromosome name goes.
	GeneticMapTemplate string `yaml:"genetic_map_template" envconfig:"GENETIC_MAP_TEMPLATE"`
	HaplotypesTemplate string `yaml:"haplotypes_template" envconfig:"HAPLOTYPES_TEMPLATE"`
	LegendTemplate     string `yaml:"legend_template" envconfig:"LEGEND_TEMPLATE"`
	SampleFilename     string `yaml:"sample_filename" envconfig:"SAMPLE_FILENAME"`
	PhasedChromosomeX  string `yaml:"phased_chromosome_x" envconfig:"PHASED_CHROMOSOME_X"`

	SequencingBaseCallError    float64 `yaml:"sequencing_base_call_error" envconfig:"SEQUENCING_BASE_CALL_ERROR"`
	HetSNPCallThreshold        float64 `yaml:"het_snp_call_threshold" envconfig:"HET_SNP_CALL_THRESHOLD"`
	ShapeitNumSamples          int     `yaml:"shapeit_num_samples" envconfig:"SHAPEIT_NUM_SAMPLES"`
	ShapeitConfidenceThreshold float64 `yaml:"shapeit_confidence_threshold" envconfig:"SHAPEIT_CONFIDENCE_THRESHOLD"`
	Shapeit                    string  `yaml:"shapeit" envconfig:"SHAPEIT"`

	SampleGCNumPositions int `yaml:"sample_gc_num_positions" envconfig:"SAMPLE_GC_NUM_POSITIONS"`
	SampleGCOffset       int `yaml:"sample_gc_offset" envconfig:"SAMPLE_GC_OFFSET"`
	GCResolution         int `yaml:"gc_resolution" envconfig:"GC_RESOLUTION"`

	MixFracResolution int `yaml:"mix_frac_resolution" envconfig:"MIX_FRAC_RESOLUTION"`
	NumModes          int `yaml:"num_modes" envconfig:"NUM_MODES"`

	ChunkSize int `yaml:"chunk_size" envconfig:"CHUNK_SIZE"`
}

// Default returns the default configuration.
func Default() *Config {
	chromosomes := make([]string, 0, 23)
	for i := 1; i <= 22; i++ {
		chromosomes = append(chromosomes, strconv.Itoa(i))
	}
	chromosomes = append(chromosomes, "X")
	return &Config{
		Chromosomes:                chromosomes,
		PhasedChromosomeX:          "X",
		SequencingBaseCallError:    0.005,
		HetSNPCallThreshold:        0.9,
		ShapeitNumSamples:          100,
		ShapeitConfidenceThreshold: 0.95,
		Shapeit:                    "shapeit",
		SampleGCNumPositions:       10000000,
		SampleGCOffset:             25,
		GCResolution:               100,
		MixFracResolution:          20,
		NumModes:                   5,
		ChunkSize:                  10000,
	}
}

// Load returns the default configuration, overridden by the YAML file
// filename if it is not empty, and then by the environment. The
// result is validated.
func Load(filename string) (*Config, error) {
	cfg := Default()
	if filename != "" {
		f, err := os.Open(filename)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		if err := yaml.NewDecoder(f).Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%v: %w", filename, err)
		}
	}
	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that all numeric options are in range.
func (cfg *Config) Validate() error {
	switch {
	case len(cfg.Chromosomes) == 0:
		return errors.New("no chromosomes configured")
	case !(cfg.SequencingBaseCallError > 0 && cfg.SequencingBaseCallError < 0.5):
		return fmt.Errorf("sequencing_base_call_error %v not in (0, 0.5)", cfg.SequencingBaseCallError)
	case !(cfg.HetSNPCallThreshold > 0 && cfg.HetSNPCallThreshold <= 1):
		return fmt.Errorf("het_snp_call_threshold %v not in (0, 1]", cfg.HetSNPCallThreshold)
	case cfg.ShapeitNumSamples <= 0:
		return fmt.Errorf("shapeit_num_samples %v must be positive", cfg.ShapeitNumSamples)
	case !(cfg.ShapeitConfidenceThreshold >= 0.5 && cfg.ShapeitConfidenceThreshold <= 1):
		return fmt.Errorf("shapeit_confidence_threshold %v not in [0.5, 1]", cfg.ShapeitConfidenceThreshold)
	case cfg.SampleGCNumPositions <= 0:
		return fmt.Errorf("sample_gc_num_positions %v must be positive", cfg.SampleGCNumPositions)
	case cfg.SampleGCOffset < 0:
		return fmt.Errorf("sample_gc_offset %v must not be negative", cfg.SampleGCOffset)
	case cfg.GCResolution <= 0:
		return fmt.Errorf("gc_resolution %v must be positive", cfg.GCResolution)
	case cfg.MixFracResolution < 2:
		return fmt.Errorf("mix_frac_resolution %v must be at least 2", cfg.MixFracResolution)
	case cfg.NumModes <= 0:
		return fmt.Errorf("num_modes %v must be positive", cfg.NumModes)
	case cfg.ChunkSize <= 0:
		return fmt.Errorf("chunk_size %v must be positive", cfg.ChunkSize)
	}
	return nil
}

// Expand substitutes chromosome into a filename template.
func Expand(template, chromosome string) string {
	return strings.NewReplacer("{0}", chromosome, "{}", chromosome, "%s", chromosome).Replace(template)
}

// PhasedChromosome returns the name of a chromosome in the reference
// panel files.
func (cfg *Config) PhasedChromosome(chromosome string) string {
	if chromosome == "X" && cfg.PhasedChromosomeX != "" {
		return cfg.PhasedChromosomeX
	}
	return chromosome
}

// GeneticMap returns the genetic map file of a chromosome.
func (cfg *Config) GeneticMap(chromosome string) string {
	return Expand(cfg.GeneticMapTemplate, cfg.PhasedChromosome(chromosome))
}

// Haplotypes returns the reference haplotypes file of a chromosome.
func (cfg *Config) Haplotypes(chromosome string) string {
	return Expand(cfg.HaplotypesTemplate, cfg.PhasedChromosome(chromosome))
}

// Legend returns the reference legend file of a chromosome.
func (cfg *Config) Legend(chromosome string) string {
	return Expand(cfg.LegendTemplate, cfg.PhasedChromosome(chromosome))
}
