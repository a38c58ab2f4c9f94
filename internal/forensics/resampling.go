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
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/stat"

	"github.com/dominikschlosser/certverify/internal/imaging"
)

// detectResampling looks for interpolation artifacts in the frequency
// domain. Resampling introduces correlated pixel grids whose spectrum shows
// ridges along radial lines from the center; the variance of samples along
// those lines approximates the evidence.
func detectResampling(r *imaging.Raster) (float64, error) {
	if r.Width < 16 || r.Height < 16 {
		return 0, nil
	}

	spectrum := magnitudeSpectrum(r)

	h, w := r.Height, r.Width
	centerY, centerX := h/2, w/2
	maxR := centerY
	if centerX < maxR {
		maxR = centerX
	}

	var profile []float64
	for angle := 0; angle < 180; angle += 15 {
		rad := float64(angle) * math.Pi / 180
		for rr := 1; rr < maxR; rr++ {
			y := centerY + int(float64(rr)*math.Sin(rad))
			x := centerX + int(float64(rr)*math.Cos(rad))
			if y >= 0 && y < h && x >= 0 && x < w {
				profile = append(profile, spectrum[y*w+x])
			}
		}
	}
	if len(profile) == 0 {
		return 0, nil
	}

	variance := stat.Variance(profile, nil)
	return clamp01(variance / 1000.0), nil
}

// magnitudeSpectrum computes the centered log-magnitude spectrum of the
// luminance plane via a row-column 2D FFT.
func magnitudeSpectrum(r *imaging.Raster) []float64 {
	h, w := r.Height, r.Width

	data := make([]complex128, w*h)
	for i, v := range r.Gray {
		data[i] = complex(v, 0)
	}

	rowFFT := fourier.NewCmplxFFT(w)
	rowBuf := make([]complex128, w)
	for y := 0; y < h; y++ {
		copy(rowBuf, data[y*w:(y+1)*w])
		rowFFT.Coefficients(data[y*w:(y+1)*w], rowBuf)
	}

	colFFT := fourier.NewCmplxFFT(h)
	colIn := make([]complex128, h)
	colOut := make([]complex128, h)
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			colIn[y] = data[y*w+x]
		}
		colFFT.Coefficients(colOut, colIn)
		for y := 0; y < h; y++ {
			data[y*w+x] = colOut[y]
		}
	}

	// Shift the zero frequency to the center and take 20*log(|F|+1).
	out := make([]float64, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			sy := (y + h/2) % h
			sx := (x + w/2) % w
			out[sy*w+sx] = 20 * math.Log(cmplx.Abs(data[y*w+x])+1)
		}
	}
	return out
}
