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
	"log"

	"github.com/exascience/pargo/parallel"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/exascience/elmix/fasta"
	"github.com/exascience/elmix/mappability"
	"github.com/exascience/elmix/segments"
)

// BiasModel holds everything SegmentBias needs that does not depend
// on the segment: per fragment length, the GC lookup table of the
// fragment interior and the probability of that length.
type BiasModel struct {
	Offset        int
	ReadLength    int
	MinLength     int
	MaxLength     int
	gcTables      [][]float64
	lengthDensity []float64
}

// NewBiasModel derives the fragment length range from the 1st and
// 99th percentile of a normal model of the fragment length, widened
// by one base at each end. Lengths too short to hold both reads or
// a non-empty interior are skipped.
func NewBiasModel(curve Curve, fragmentMean, fragmentStddev float64, offset, readLength int) (*BiasModel, error) {
	if !(fragmentStddev > 0) {
		return nil, fmt.Errorf("invalid fragment length standard deviation %v", fragmentStddev)
	}
	if readLength <= 0 {
		return nil, fmt.Errorf("invalid read length %v", readLength)
	}
	if offset < 0 {
		return nil, fmt.Errorf("invalid position offset %v", offset)
	}
	dist := distuv.Normal{Mu: fragmentMean, Sigma: fragmentStddev}
	model := &BiasModel{
		Offset:     offset,
		ReadLength: readLength,
		MinLength:  int(dist.Quantile(0.01) - 1),
		MaxLength:  int(dist.Quantile(0.99) + 1),
	}
	if model.MinLength <= 2*offset {
		model.MinLength = 2*offset + 1
	}
	if model.MinLength < readLength {
		model.MinLength = readLength
	}
	for l := model.MinLength; l <= model.MaxLength; l++ {
		model.gcTables = append(model.gcTables, curve.Table(l-2*offset))
		model.lengthDensity = append(model.lengthDensity, dist.Prob(float64(l)))
	}
	return model, nil
}

// SegmentBias sums, over every fragment length of the model and every
// placement of a fragment inside the segment, the GC probability of
// the fragment interior times the mappability of both reads times the
// probability of the fragment length. gcCumsum and mapp are the
// segment's slices of the chromosome's GC prefix sum and mappability
// indicator.
func (model *BiasModel) SegmentBias(gcCumsum []int32, mapp []uint8) float64 {
	n := len(gcCumsum)
	if len(mapp) < n {
		n = len(mapp)
	}
	offset := model.Offset
	readLength := model.ReadLength
	return parallel.RangeReduceFloat64Sum(0, len(model.gcTables), 0, func(low, high int) (bias float64) {
		for i := low; i < high; i++ {
			l := model.MinLength + i
			gcTable := model.gcTables[i]
			mate := l - readLength
			var sum float64
			for p := 0; p < n-l; p++ {
				if mapp[p] == 0 || mapp[p+mate] == 0 {
					continue
				}
				sum += gcTable[gcCumsum[p+l-offset]-gcCumsum[p+offset]]
			}
			bias += sum * model.lengthDensity[i]
		}
		return bias
	})
}

// CalculateGCMapBias sets the Bias of every segment, one chromosome
// at a time. The GC prefix sum and mappability indicator of a
// chromosome are released before the next one is loaded.
func CalculateGCMapBias(
	segs []segments.Segment,
	source fasta.SequenceSource,
	mappabilityFile string,
	model *BiasModel,
) error {
	chromosomes, groups := segments.GroupByChromosome(segs)
	for _, chrom := range chromosomes {
		group := groups[chrom]
		var length int64
		for _, seg := range group {
			if seg.End > length {
				length = seg.End
			}
		}
		seq, err := source.Seq(chrom)
		if err != nil {
			return fmt.Errorf("reading sequence of chromosome %v: %w", chrom, err)
		}
		gcCumsum := GCCumsum(seq)
		mapp, err := mappability.ReadIndicator(mappabilityFile, chrom, length)
		if err != nil {
			return err
		}
		log.Printf("calculating gc and mappability bias of %v segments on chromosome %v", len(group), chrom)
		parallel.Range(0, len(group), 0, func(low, high int) {
			for i := low; i < high; i++ {
				seg := &group[i]
				start, end := clip(seg.Start, seg.End, int64(len(gcCumsum)))
				seg.Bias = model.SegmentBias(gcCumsum[start:end], mapp.Slice(start, end))
			}
		})
	}
	index := make(map[string]int, len(chromosomes))
	for i := range segs {
		chrom := segs[i].Chromosome
		segs[i].Bias = groups[chrom][index[chrom]].Bias
		index[chrom]++
	}
	return nil
}

func clip(start, end, length int64) (int64, int64) {
	if start < 0 {
		start = 0
	}
	if end > length {
		end = length
	}
	if start > end {
		start = end
	}
	return start, end
}
