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

package allelecount

type segmentKey struct {
	chromosome string
	start, end int64
}

type blockKey struct {
	segmentKey
	hapLabel int64
}

func (c *Count) segment() segmentKey {
	return segmentKey{c.Chromosome, c.Start, c.End}
}

func (c *Count) block() blockKey {
	return blockKey{c.segment(), c.HapLabel}
}

// libraryPhase holds, for one library, the major allele of every
// block and the normalized difference between major and minor read
// counts of every segment.
type libraryPhase struct {
	major    map[blockKey]uint8
	normDiff map[segmentKey]float64
}

func phaseLibrary(counts []Count) libraryPhase {
	readCounts := make(map[blockKey]*[2]float64)
	for i := range counts {
		c := &counts[i]
		rc, ok := readCounts[c.block()]
		if !ok {
			rc = new([2]float64)
			readCounts[c.block()] = rc
		}
		rc[c.AlleleID&1] += float64(c.ReadCount)
	}
	phase := libraryPhase{
		major:    make(map[blockKey]uint8, len(readCounts)),
		normDiff: make(map[segmentKey]float64),
	}
	diffs := make(map[segmentKey]*[2]float64)
	for key, rc := range readCounts {
		major, minor := rc[0], rc[1]
		if rc[1] > rc[0] {
			phase.major[key] = 1
			major, minor = minor, major
		} else {
			phase.major[key] = 0
		}
		d, ok := diffs[key.segmentKey]
		if !ok {
			d = new([2]float64)
			diffs[key.segmentKey] = d
		}
		d[0] += major - minor
		d[1] += major + minor
	}
	for key, d := range diffs {
		if d[1] > 0 {
			phase.normDiff[key] = d[0] / d[1]
		} else {
			phase.normDiff[key] = 0
		}
	}
	return phase
}

// PhaseSegments decides, per segment and haplotype block, which
// block allele is allele A, and returns the tables with IsAlleleA
// set.
//
// For every segment, the library with the largest normalized
// difference between major and minor read counts is chosen, the
// first one on ties, and the major allele of each block in that
// library becomes allele A in all libraries. Rows of blocks that the
// chosen library did not observe in the segment are dropped. Any
// IsAlleleA values already present in the input are ignored, so
// phasing phased tables gives the same result.
func PhaseSegments(tables ...[]Count) [][]Count {
	phases := make([]libraryPhase, len(tables))
	for i, counts := range tables {
		phases[i] = phaseLibrary(counts)
	}

	bestLibrary := make(map[segmentKey]int)
	bestDiff := make(map[segmentKey]float64)
	for i, phase := range phases {
		for key, diff := range phase.normDiff {
			if best, ok := bestDiff[key]; !ok || diff > best {
				bestDiff[key] = diff
				bestLibrary[key] = i
			}
		}
	}

	result := make([][]Count, len(tables))
	for i, counts := range tables {
		phased := make([]Count, 0, len(counts))
		for _, c := range counts {
			library, ok := bestLibrary[c.segment()]
			if !ok {
				continue
			}
			alleleA, ok := phases[library].major[c.block()]
			if !ok {
				continue
			}
			if c.AlleleID == alleleA {
				c.IsAlleleA = 1
			} else {
				c.IsAlleleA = 0
			}
			phased = append(phased, c)
		}
		result[i] = phased
	}
	return result
}
