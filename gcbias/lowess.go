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
	"log"
	"math"
	"sort"
)

// Lowess smooths y as a function of x with locally weighted linear
// regression (Cleveland 1979). x must be sorted in increasing order.
// Each fit uses the int(frac*n) nearest neighbours with tricube
// weights, followed by the given number of robustifying iterations
// with bisquare weights on the residuals.
func Lowess(x, y []float64, frac float64, iterations int) []float64 {
	n := len(x)
	if n != len(y) {
		log.Panicf("lowess called with %v x values and %v y values", n, len(y))
	}
	fitted := make([]float64, n)
	if n == 0 {
		return fitted
	}
	k := int(frac*float64(n) + 1e-10)
	if k < 2 {
		k = 2
	}
	if k > n {
		k = n
	}
	robustness := make([]float64, n)
	for i := range robustness {
		robustness[i] = 1
	}
	weights := make([]float64, n)
	residuals := make([]float64, n)
	for iteration := 0; iteration <= iterations; iteration++ {
		left := 0
		for i := 0; i < n; i++ {
			// slide the neighbourhood [left, left+k) so that it holds the k points nearest to x[i]
			for left+k < n && x[i]-x[left] > x[left+k]-x[i] {
				left++
			}
			right := left + k - 1
			radius := math.Max(x[i]-x[left], x[right]-x[i])
			fitted[i] = localFit(x, y, i, left, right, radius, robustness, weights)
		}
		if iteration == iterations {
			break
		}
		for i := range residuals {
			residuals[i] = math.Abs(y[i] - fitted[i])
		}
		scale := 6 * median(residuals)
		if scale == 0 {
			break
		}
		for i, r := range residuals {
			u := r / scale
			if u < 1 {
				robustness[i] = (1 - u*u) * (1 - u*u)
			} else {
				robustness[i] = 0
			}
		}
	}
	return fitted
}

func localFit(x, y []float64, i, left, right int, radius float64, robustness, weights []float64) float64 {
	var sumWeights float64
	for j := left; j <= right; j++ {
		w := robustness[j]
		if radius > 0 {
			d := math.Abs(x[j]-x[i]) / radius
			if d >= 1 {
				w = 0
			} else {
				c := 1 - d*d*d
				w *= c * c * c
			}
		}
		weights[j] = w
		sumWeights += w
	}
	if sumWeights <= 0 {
		return math.NaN()
	}
	var meanX, meanY float64
	for j := left; j <= right; j++ {
		meanX += weights[j] * x[j]
		meanY += weights[j] * y[j]
	}
	meanX /= sumWeights
	meanY /= sumWeights
	var sxx, sxy float64
	for j := left; j <= right; j++ {
		dx := x[j] - meanX
		sxx += weights[j] * dx * dx
		sxy += weights[j] * dx * (y[j] - meanY)
	}
	if sxx <= 1e-12*sumWeights*math.Max(1, meanX*meanX) {
		return meanY
	}
	return meanY + sxy/sxx*(x[i]-meanX)
}

func median(values []float64) float64 {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}
