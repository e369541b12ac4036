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

// Package allelecount counts the reads that support each allele of
// each haplotype block within genomic segments, and phases the
// blocks of a segment consistently across sequencing libraries.
package allelecount

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/exascience/elmix/haplotype"
	"github.com/exascience/elmix/internal"
	"github.com/exascience/elmix/intervals"
	"github.com/exascience/elmix/segments"
	"github.com/exascience/elmix/seqdata"
	"github.com/exascience/elmix/utils"
)

// Count is the number of reads of one allele of a haplotype block
// within a segment. IsAlleleA is only meaningful after PhaseSegments.
type Count struct {
	Chromosome string
	Start, End int64
	HapLabel   int64
	AlleleID   uint8
	ReadCount  int64
	IsAlleleA  uint8
}

type alleleKey struct {
	position int64
	allele   uint8
}

type blockAllele struct {
	hapLabel int64
	alleleID uint8
}

type countKey struct {
	segment  int
	hapLabel int64
	alleleID uint8
}

// CountAlleleReads counts the reads of one chromosome per segment,
// haplotype block and block allele.
//
// An allele observation is assigned to the block allele carrying the
// observed allele at its position. Each fragment contributes at most
// one observation, the first one in the store. A fragment is counted
// for a segment only if both its start and its end fall in that
// segment. segs must not overlap.
func CountAlleleReads(
	store *seqdata.Store,
	chromosome string,
	blocks []haplotype.Block,
	segs []segments.Segment,
	chunkSize int,
) ([]Count, error) {
	haps := make(map[alleleKey]blockAllele, len(blocks))
	for _, b := range blocks {
		if b.Chromosome == chromosome {
			haps[alleleKey{b.Position, b.Allele}] = blockAllele{b.HapLabel, b.AlleleID}
		}
	}
	if len(haps) == 0 || len(segs) == 0 {
		return nil, nil
	}

	fragments := make(map[int64]blockAllele)
	var order []int64
	err := store.ReadAlleles(chromosome, chunkSize, func(alleles []seqdata.AlleleObservation) error {
		for _, a := range alleles {
			hap, ok := haps[alleleKey{a.Position, a.IsAlt}]
			if !ok {
				continue
			}
			if _, seen := fragments[a.FragmentID]; !seen {
				fragments[a.FragmentID] = hap
				order = append(order, a.FragmentID)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	reads, err := store.FragmentTable(chromosome)
	if err != nil {
		return nil, err
	}

	sorted := make([]segments.Segment, len(segs))
	copy(sorted, segs)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Start < sorted[j].Start })
	segmentIntervals := make([]intervals.Interval, len(sorted))
	for i, seg := range sorted {
		segmentIntervals[i] = seg.Interval()
	}

	var ids []int64
	var starts, ends []int64
	for _, id := range order {
		if read, ok := reads[id]; ok {
			ids = append(ids, id)
			starts = append(starts, read.Start)
			ends = append(ends, read.End)
		}
	}
	startSegments := intervals.FindContained(segmentIntervals, starts)
	endSegments := intervals.FindContained(segmentIntervals, ends)

	counts := make(map[countKey]int64)
	for i, id := range ids {
		seg := startSegments[i]
		if seg < 0 || seg != endSegments[i] {
			continue
		}
		hap := fragments[id]
		counts[countKey{seg, hap.hapLabel, hap.alleleID}]++
	}

	result := make([]Count, 0, len(counts))
	for key, n := range counts {
		seg := sorted[key.segment]
		result = append(result, Count{
			Chromosome: chromosome,
			Start:      seg.Start,
			End:        seg.End,
			HapLabel:   key.hapLabel,
			AlleleID:   key.alleleID,
			ReadCount:  n,
		})
	}
	sort.Slice(result, func(i, j int) bool {
		a, b := result[i], result[j]
		switch {
		case a.Start != b.Start:
			return a.Start < b.Start
		case a.End != b.End:
			return a.End < b.End
		case a.HapLabel != b.HapLabel:
			return a.HapLabel < b.HapLabel
		default:
			return a.AlleleID < b.AlleleID
		}
	})
	return result, nil
}

// CreateAlleleCounts runs CountAlleleReads for every chromosome of
// segs, with at most parallelism chromosomes at a time. The counts
// are concatenated in order of first appearance of the chromosomes
// in segs.
func CreateAlleleCounts(
	ctx context.Context,
	store *seqdata.Store,
	blocks []haplotype.Block,
	segs []segments.Segment,
	chunkSize, parallelism int,
) ([]Count, error) {
	chromosomes, groups := segments.GroupByChromosome(segs)
	results := make([][]Count, len(chromosomes))
	g, ctx := errgroup.WithContext(ctx)
	if parallelism > 0 {
		g.SetLimit(parallelism)
	}
	for i, chrom := range chromosomes {
		i, chrom := i, chrom
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			counts, err := CountAlleleReads(store, chrom, blocks, groups[chrom], chunkSize)
			if err != nil {
				return fmt.Errorf("counting allele reads on chromosome %v: %w", chrom, err)
			}
			log.Printf("%v allele counts on chromosome %v", len(counts), chrom)
			results[i] = counts
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	var all []Count
	for _, counts := range results {
		all = append(all, counts...)
	}
	return all, nil
}

// Write writes a tab-separated allele count table with header. The
// is_allele_a column is only written for phased tables.
func Write(filename string, counts []Count, phased bool) (err error) {
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
	header := "chromosome\tstart\tend\thap_label\tallele_id\treadcount"
	if phased {
		header += "\tis_allele_a"
	}
	if _, err := w.WriteString(header + "\n"); err != nil {
		return err
	}
	var buf []byte
	for _, c := range counts {
		buf = buf[:0]
		buf = append(buf, c.Chromosome...)
		buf = append(buf, '\t')
		buf = strconv.AppendInt(buf, c.Start, 10)
		buf = append(buf, '\t')
		buf = strconv.AppendInt(buf, c.End, 10)
		buf = append(buf, '\t')
		buf = strconv.AppendInt(buf, c.HapLabel, 10)
		buf = append(buf, '\t')
		buf = strconv.AppendUint(buf, uint64(c.AlleleID), 10)
		buf = append(buf, '\t')
		buf = strconv.AppendInt(buf, c.ReadCount, 10)
		if phased {
			buf = append(buf, '\t')
			buf = strconv.AppendUint(buf, uint64(c.IsAlleleA), 10)
		}
		buf = append(buf, '\n')
		if _, err := w.Write(buf); err != nil {
			return err
		}
	}
	return w.Flush()
}

// Read reads an allele count table, and reports whether it carries
// the is_allele_a column.
func Read(filename string) (counts []Count, phased bool, err error) {
	input, err := utils.OpenText(filename)
	if err != nil {
		return nil, false, err
	}
	defer func() {
		if nerr := input.Close(); err == nil {
			err = nerr
		}
	}()
	scanner := bufio.NewScanner(input)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return nil, false, err
		}
		return nil, false, fmt.Errorf("empty allele count file %v", filename)
	}
	columns, err := internal.ParseHeader(scanner.Text(), "\t", "chromosome", "start", "end", "hap_label", "allele_id", "readcount")
	if err != nil {
		return nil, false, fmt.Errorf("%v: %w", filename, err)
	}
	phased = columns.Has("is_allele_a")
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) < len(columns) {
			return nil, false, fmt.Errorf("invalid allele count line %q in %v", line, filename)
		}
		c := Count{
			Chromosome: fields[columns["chromosome"]],
			Start:      internal.ParseInt(fields[columns["start"]], 10, 64),
			End:        internal.ParseInt(fields[columns["end"]], 10, 64),
			HapLabel:   internal.ParseInt(fields[columns["hap_label"]], 10, 64),
			AlleleID:   internal.ParseBit(fields[columns["allele_id"]]),
			ReadCount:  internal.ParseInt(fields[columns["readcount"]], 10, 64),
		}
		if phased {
			c.IsAlleleA = internal.ParseBit(fields[columns["is_allele_a"]])
		}
		counts = append(counts, c)
	}
	return counts, phased, scanner.Err()
}
