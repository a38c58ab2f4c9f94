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
	"bytes"
	"fmt"
	"image/jpeg"
	"math"

	"github.com/dominikschlosser/certverify/internal/imaging"
)

// elaQuality is the fixed lossy quality used for the re-encoding pass.
const elaQuality = 90

// detectELA performs error-level analysis: re-encode the image at a fixed
// JPEG quality and measure the mean per-pixel difference. Regions that were
// edited after the original compression re-encode with a different error
// level, raising the mean.
func detectELA(r *imaging.Raster) (float64, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, r.Img, &jpeg.Options{Quality: elaQuality}); err != nil {
		return 0, fmt.Errorf("re-encoding image: %w", err)
	}

	recompressed, err := jpeg.Decode(&buf)
	if err != nil {
		return 0, fmt.Errorf("decoding re-encoded image: %w", err)
	}

	ob := r.Img.Bounds()
	rb := recompressed.Bounds()
	if ob.Dx() != rb.Dx() || ob.Dy() != rb.Dy() {
		return 0, nil
	}

	var total float64
	var count int
	for y := 0; y < ob.Dy(); y++ {
		for x := 0; x < ob.Dx(); x++ {
			or, og, obl, _ := r.Img.At(ob.Min.X+x, ob.Min.Y+y).RGBA()
			rr, rg, rbl, _ := recompressed.At(rb.Min.X+x, rb.Min.Y+y).RGBA()

			total += math.Abs(float64(or>>8) - float64(rr>>8))
			total += math.Abs(float64(og>>8) - float64(rg>>8))
			total += math.Abs(float64(obl>>8) - float64(rbl>>8))
			count += 3
		}
	}

	if count == 0 {
		return 0, nil
	}

	meanError := total / float64(count)
	return clamp01(meanError / 50.0), nil
}
