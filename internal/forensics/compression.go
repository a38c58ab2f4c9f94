// Copyright 2026 Dominik Schlosser
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package forensics

import (
	"math"

	"github.com/dominikschlosser/certverify/internal/imaging"
)

// detectDoubleCompression looks for periodic structure in the histogram of
// 8x8 DCT coefficients of the luminance plane. An image JPEG-compressed
// twice at different qualities quantizes its coefficients twice, leaving a
// comb pattern that shows up as autocorrelation peaks.
func detectDoubleCompression(r *imaging.Raster) (float64, error) {
	if r.Width < 8 || r.Height < 8 {
		return 0, nil
	}

	// Histogram of coefficient magnitudes in [-50, 50), 100 bins.
	hist := make([]float64, 100)
	block := make([]float64, 64)
	coeffs := make([]float64, 64)

	for by := 0; by+8 <= r.Height; by += 8 {
		for bx := 0; bx+8 <= r.Width; bx += 8 {
			for y := 0; y < 8; y++ {
				for x := 0; x < 8; x++ {
					block[y*8+x] = r.GrayAt(bx+x, by+y)
				}
			}
			dct8x8(block, coeffs)
			for _, c := range coeffs {
				bin := int(c) + 50
				if bin >= 0 && bin < 100 {
					hist[bin]++
				}
			}
		}
	}

	return clamp01(histogramPeriodicity(hist)), nil
}

// dct8x8 computes the type-II DCT of an 8x8 block (row-major src into dst).
func dct8x8(src, dst []float64) {
	for v := 0; v < 8; v++ {
		for u := 0; u < 8; u++ {
			var sum float64
			for y := 0; y < 8; y++ {
				for x := 0; x < 8; x++ {
					sum += src[y*8+x] *
						math.Cos((2*float64(x)+1)*float64(u)*math.Pi/16) *
						math.Cos((2*float64(y)+1)*float64(v)*math.Pi/16)
				}
			}
			cu, cv := 1.0, 1.0
			if u == 0 {
				cu = math.Sqrt2 / 2
			}
			if v == 0 {
				cv = math.Sqrt2 / 2
			}
			dst[v*8+u] = 0.25 * cu * cv * sum
		}
	}
}

// histogramPeriodicity scores secondary autocorrelation peaks of the
// coefficient histogram. Strong, regular peaks indicate double quantization.
func histogramPeriodicity(hist []float64) float64 {
	n := len(hist)
	autocorr := make([]float64, n)
	for lag := 0; lag < n; lag++ {
		var s float64
		for i := 0; i+lag < n; i++ {
			s += hist[i] * hist[i+lag]
		}
		autocorr[lag] = s
	}

	if n < 10 || autocorr[0] <= 0 {
		return 0
	}
	for i := range autocorr {
		autocorr[i] /= autocorr[0]
	}

	var peaks []float64
	limit := 20
	if n-1 < limit {
		limit = n - 1
	}
	for i := 1; i < limit; i++ {
		if autocorr[i] > autocorr[i-1] && autocorr[i] > autocorr[i+1] && autocorr[i] > 0.1 {
			peaks = append(peaks, autocorr[i])
		}
	}
	if len(peaks) == 0 {
		return 0
	}

	var sum float64
	for _, p := range peaks {
		sum += p
	}
	return clamp01(sum / float64(len(peaks)) * 2.0)
}
