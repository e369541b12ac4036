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

package readdepth

// Mixture is a pair of mixture fractions A/Resolution and
// B/Resolution of two tumour clones.
type Mixture struct {
	A, B, Resolution int
}

// Mixtures enumerates the mixtures (a, b) with a >= b >= 1 and
// a+b == resolution, in order of increasing a.
func Mixtures(resolution int) []Mixture {
	var mixtures []Mixture
	for a := 1; a <= resolution; a++ {
		b := resolution - a
		if b >= 1 && a >= b {
			mixtures = append(mixtures, Mixture{a, b, resolution})
		}
	}
	return mixtures
}

// CalculateCandidateH derives candidate haploid depth vectors from
// the modes of the minor depth. The smallest mode is the haploid
// depth of the normal clone. Every larger mode minus the normal depth,
// and half of that for a mode of two minor copies, is a candidate
// tumour depth.
//
// Two-clone candidates are (normal, tumour). Three-clone candidates
// are (normal, tumour*a/r, tumour*b/r) for every mixture of
// Mixtures(mixFracResolution). numClones 2 or 3 restricts the result
// to that number of clones, any other value yields both, the two-clone
// candidates first.
func CalculateCandidateH(modes []float64, mixFracResolution int, numClones int) [][]float64 {
	if len(modes) == 0 {
		return nil
	}
	normal := modes[0]
	for _, m := range modes[1:] {
		if m < normal {
			normal = m
		}
	}
	both := numClones != 2 && numClones != 3

	var tumours []float64
	var candidates [][]float64
	for _, m := range modes {
		if m <= normal {
			continue
		}
		for _, scale := range [...]float64{1, 0.5} {
			tumour := (m - normal) * scale
			tumours = append(tumours, tumour)
			if both || numClones == 2 {
				candidates = append(candidates, []float64{normal, tumour})
			}
		}
	}
	if both || numClones == 3 {
		for _, mix := range Mixtures(mixFracResolution) {
			r := float64(mix.Resolution)
			for _, tumour := range tumours {
				candidates = append(candidates, []float64{
					normal,
					tumour * float64(mix.A) / r,
					tumour * float64(mix.B) / r,
				})
			}
		}
	}
	return candidates
}
