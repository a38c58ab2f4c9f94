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

// Package imaging decodes certificate images into an immutable raster that
// all forensic detectors can share without copying or locking.
package imaging

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
)

// Raster is a decoded certificate image. It is read-only after construction;
// concurrent detector tasks share it freely.
type Raster struct {
	Img    image.Image
	Width  int
	Height int

	// Gray is the 8-bit luminance plane as float64, row-major.
	Gray []float64
}

// Decode parses encoded image bytes (JPEG or PNG) into a Raster.
func Decode(data []byte) (*Raster, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decoding image: %w", err)
	}
	return FromImage(img), nil
}

// FromImage builds a Raster from an already decoded image.
func FromImage(img image.Image) *Raster {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()

	gray := make([]float64, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, bl, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
			// ITU-R BT.601 luma over 8-bit channels
			gray[y*w+x] = 0.299*float64(r>>8) + 0.587*float64(g>>8) + 0.114*float64(bl>>8)
		}
	}

	return &Raster{Img: img, Width: w, Height: h, Gray: gray}
}

// GrayAt returns the luminance at (x, y). Out-of-bounds reads return 0.
func (r *Raster) GrayAt(x, y int) float64 {
	if x < 0 || y < 0 || x >= r.Width || y >= r.Height {
		return 0
	}
	return r.Gray[y*r.Width+x]
}
