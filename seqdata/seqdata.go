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

// Package seqdata reads the per-chromosome sequence-read store.
//
// A store is a directory with two tab-separated tables per chromosome,
// each starting with a header line and optionally gzip compressed:
//
//	reads.<chromosome>.tsv    fragment_id  start  end
//	alleles.<chromosome>.tsv  fragment_id  position  is_alt
//
// Tables are always streamed in bounded chunks, so that no
// genome-wide table needs to be held in memory.
package seqdata

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/exascience/elmix/internal"
	"github.com/exascience/elmix/intervals"
	"github.com/exascience/elmix/utils"
)

// Fragment is the genomic interval of one sequenced fragment.
type Fragment struct {
	ID         int64
	Start, End int64
}

// AlleleObservation records that a fragment covers a SNP position
// with either the reference (IsAlt == 0) or alternate (IsAlt == 1)
// allele.
type AlleleObservation struct {
	FragmentID int64
	Position   int64
	IsAlt      uint8
}

const (
	readsPrefix   = "reads."
	allelesPrefix = "alleles."
	tableExt      = ".tsv"
)

// Store is a sequence-read store rooted at a directory.
type Store struct {
	Dir string
}

// Open returns the store in the given directory.
func Open(dir string) (*Store, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%v is not a sequence data directory", dir)
	}
	return &Store{Dir: dir}, nil
}

func (s *Store) tableFilename(prefix, chromosome string) string {
	name := filepath.Join(s.Dir, prefix+chromosome+tableExt)
	if _, err := os.Stat(name); err != nil {
		if _, gzErr := os.Stat(name + ".gz"); gzErr == nil {
			return name + ".gz"
		}
	}
	return name
}

// Chromosomes returns the chromosomes for which the store holds reads.
func (s *Store) Chromosomes() ([]string, error) {
	names, err := internal.Directory(s.Dir)
	if err != nil {
		return nil, err
	}
	var chromosomes []string
	for _, name := range names {
		if !strings.HasPrefix(name, readsPrefix) {
			continue
		}
		name = strings.TrimSuffix(name, ".gz")
		if !strings.HasSuffix(name, tableExt) {
			continue
		}
		chromosomes = append(chromosomes, strings.TrimSuffix(strings.TrimPrefix(name, readsPrefix), tableExt))
	}
	sort.Strings(chromosomes)
	return chromosomes, nil
}

// openTable opens one table of the store and parses its header. A
// missing table yields a nil input and no error.
func (s *Store) openTable(prefix, chromosome string, required ...string) (*utils.InputFile, internal.Columns, error) {
	filename := s.tableFilename(prefix, chromosome)
	input, err := utils.OpenText(filename)
	if os.IsNotExist(err) {
		return nil, nil, nil
	} else if err != nil {
		return nil, nil, err
	}
	header, err := input.ReadString('\n')
	if err != nil && header == "" {
		_ = input.Close()
		return nil, nil, nil
	}
	columns, err := internal.ParseHeader(header, "\t", required...)
	if err != nil {
		_ = input.Close()
		return nil, nil, fmt.Errorf("%v: %w", filename, err)
	}
	return input, columns, nil
}

// ReadFragments streams the fragments of one chromosome in chunks of
// at most chunkSize fragments.
func (s *Store) ReadFragments(chromosome string, chunkSize int, fn func([]Fragment) error) (err error) {
	input, columns, err := s.openTable(readsPrefix, chromosome, "fragment_id", "start", "end")
	if err != nil || input == nil {
		return err
	}
	defer func() {
		if nerr := input.Close(); err == nil {
			err = nerr
		}
	}()
	parse := func(lines []string) (interface{}, error) {
		fragments := make([]Fragment, 0, len(lines))
		for _, line := range lines {
			if line == "" {
				continue
			}
			fields := strings.Split(line, "\t")
			var f Fragment
			var err error
			if f.ID, err = column(fields, columns, "fragment_id", line); err != nil {
				return nil, err
			}
			if f.Start, err = column(fields, columns, "start", line); err != nil {
				return nil, err
			}
			if f.End, err = column(fields, columns, "end", line); err != nil {
				return nil, err
			}
			fragments = append(fragments, f)
		}
		return fragments, nil
	}
	return internal.ScanChunks(input, chunkSize, parse, func(chunk interface{}) error {
		return fn(chunk.([]Fragment))
	})
}

// ReadAlleles streams the allele observations of one chromosome in
// chunks of at most chunkSize observations.
func (s *Store) ReadAlleles(chromosome string, chunkSize int, fn func([]AlleleObservation) error) (err error) {
	input, columns, err := s.openTable(allelesPrefix, chromosome, "fragment_id", "position", "is_alt")
	if err != nil || input == nil {
		return err
	}
	defer func() {
		if nerr := input.Close(); err == nil {
			err = nerr
		}
	}()
	parse := func(lines []string) (interface{}, error) {
		alleles := make([]AlleleObservation, 0, len(lines))
		for _, line := range lines {
			if line == "" {
				continue
			}
			fields := strings.Split(line, "\t")
			var a AlleleObservation
			var err error
			if a.FragmentID, err = column(fields, columns, "fragment_id", line); err != nil {
				return nil, err
			}
			if a.Position, err = column(fields, columns, "position", line); err != nil {
				return nil, err
			}
			isAlt, err := column(fields, columns, "is_alt", line)
			if err != nil {
				return nil, err
			}
			if isAlt != 0 && isAlt != 1 {
				return nil, fmt.Errorf("invalid is_alt value in line %q", line)
			}
			a.IsAlt = uint8(isAlt)
			alleles = append(alleles, a)
		}
		return alleles, nil
	}
	return internal.ScanChunks(input, chunkSize, parse, func(chunk interface{}) error {
		return fn(chunk.([]AlleleObservation))
	})
}

// FragmentTable loads the intervals of all fragments of one
// chromosome, keyed by fragment id.
func (s *Store) FragmentTable(chromosome string) (map[int64]intervals.Interval, error) {
	table := make(map[int64]intervals.Interval)
	err := s.ReadFragments(chromosome, internal.DefaultChunkSize, func(fragments []Fragment) error {
		for _, f := range fragments {
			table[f.ID] = f.Interval()
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return table, nil
}

func column(fields []string, columns internal.Columns, name, line string) (int64, error) {
	i := columns[name]
	if i >= len(fields) {
		return 0, fmt.Errorf("missing %v value in line %q", name, line)
	}
	value, err := strconv.ParseInt(fields[i], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%v, while parsing %v in line %q", err, name, line)
	}
	return value, nil
}

// Interval returns the fragment's interval.
func (f Fragment) Interval() intervals.Interval {
	return intervals.Interval{Start: f.Start, End: f.End}
}
