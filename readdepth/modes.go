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

import (
	"errors"
	"math"
	"sort"

	"github.com/muesli/clusters"
	"github.com/muesli/kmeans"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/exascience/elmix/internal"
)

// ResampleSize is the number of weighted samples drawn from the minor
// depths before clustering.
const ResampleSize = 10000

// OutlierQuantile is the quantile of the minor depths above which
// segments are not used for finding modes.
const OutlierQuantile = 0.95

// kmeansRuns is the number of independently initialized k-means
// runs, of which the one with the smallest within-cluster sum of
// squares is kept.
const kmeansRuns = 10

// WeightedResample draws n values with replacement, each with a
// probability proportional to its weight.
func WeightedResample(values, weights []float64, n int, rng *internal.Rand) []float64 {
	if len(values) != len(weights) {
		panic("WeightedResample: values and weights differ in length")
	}
	categorical := distuv.NewCategorical(weights, rng)
	samples := make([]float64, n)
	for i := range samples {
		samples[i] = values[int(categorical.Rand())]
	}
	return samples
}

// CalculateModes finds numModes modes of the minor depth. The
// segments with the highest minor depths are discarded, the others
// are resampled proportionally to their length, and the resampled
// depths are clustered with k-means. The cluster centers are
// returned in increasing order.
func CalculateModes(depths []Depth, numModes int, rng *internal.Rand) ([]float64, error) {
	if len(depths) == 0 {
		return nil, errors.New("no read depths to calculate modes from")
	}
	minors := make([]float64, len(depths))
	for i, d := range depths {
		minors[i] = d.Minor
	}
	sort.Float64s(minors)
	threshold := stat.Quantile(OutlierQuantile, stat.LinInterp, minors, nil)

	var values, weights []float64
	for _, d := range depths {
		if d.Minor < threshold {
			values = append(values, d.Minor)
			weights = append(weights, d.Length)
		}
	}
	if len(values) == 0 || !(floats.Sum(weights) > 0) {
		return nil, errors.New("no read depths left after removing outliers")
	}
	samples := WeightedResample(values, weights, ResampleSize, rng)
	return KMeans(samples, numModes)
}

// KMeans clusters one-dimensional values into at most k groups, and
// returns the cluster centers in increasing order. The clustering is
// repeated, and the run with the smallest within-cluster sum of
// squares is kept. Fewer than k centers are returned when there are
// fewer than k distinct values.
func KMeans(values []float64, k int) ([]float64, error) {
	distinct := make(map[float64]struct{}, k)
	for _, v := range values {
		distinct[v] = struct{}{}
	}
	if k > len(distinct) {
		k = len(distinct)
	}
	if k == 0 {
		return nil, nil
	}
	observations := make(clusters.Observations, len(values))
	for i, v := range values {
		observations[i] = clusters.Coordinates{v}
	}
	// a tiny delta threshold iterates until no observation changes cluster
	km, err := kmeans.NewWithOptions(1e-12, nil)
	if err != nil {
		return nil, err
	}
	var best []float64
	bestInertia := math.Inf(1)
	for run := 0; run < kmeansRuns; run++ {
		partition, err := km.Partition(observations, k)
		if err != nil {
			return nil, err
		}
		centers, inertia := clusterMeans(partition)
		if inertia < bestInertia {
			best, bestInertia = centers, inertia
		}
	}
	sort.Float64s(best)
	return best, nil
}

// clusterMeans returns the mean of each non-empty cluster and the
// within-cluster sum of squares.
func clusterMeans(partition clusters.Clusters) (centers []float64, inertia float64) {
	for _, c := range partition {
		if len(c.Observations) == 0 {
			continue
		}
		var sum float64
		for _, o := range c.Observations {
			sum += o.Coordinates()[0]
		}
		mean := sum / float64(len(c.Observations))
		for _, o := range c.Observations {
			d := o.Coordinates()[0] - mean
			inertia += d * d
		}
		centers = append(centers, mean)
	}
	return centers, inertia
}
