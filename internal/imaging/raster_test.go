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

package imaging

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"
)

func TestDecode(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 8, 4))
	img.Set(0, 0, color.White)
	img.Set(7, 3, color.Black)
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encoding image: %v", err)
	}

	r, err := Decode(buf.Bytes())
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if r.Width != 8 || r.Height != 4 {
		t.Errorf("dimensions %dx%d, want 8x4", r.Width, r.Height)
	}
	if len(r.Gray) != 32 {
		t.Errorf("gray plane has %d samples, want 32", len(r.Gray))
	}
	if got := r.GrayAt(0, 0); got < 254 {
		t.Errorf("white pixel luminance = %f, want ~255", got)
	}
	if got := r.GrayAt(7, 3); got != 0 {
		t.Errorf("black pixel luminance = %f, want 0", got)
	}
}

func TestDecode_Invalid(t *testing.T) {
	if _, err := Decode([]byte("not an image")); err == nil {
		t.Error("garbage bytes decoded")
	}
}

func TestGrayAt_OutOfBounds(t *testing.T) {
	r := FromImage(image.NewRGBA(image.Rect(0, 0, 2, 2)))

	for _, pt := range [][2]int{{-1, 0}, {0, -1}, {2, 0}, {0, 2}} {
		if got := r.GrayAt(pt[0], pt[1]); got != 0 {
			t.Errorf("GrayAt(%d, %d) = %f, want 0", pt[0], pt[1], got)
		}
	}
}

func TestFromImage_NonZeroOrigin(t *testing.T) {
	img := image.NewRGBA(image.Rect(10, 20, 14, 24))
	img.Set(10, 20, color.White)

	r := FromImage(img)
	if r.Width != 4 || r.Height != 4 {
		t.Errorf("dimensions %dx%d, want 4x4", r.Width, r.Height)
	}
	if got := r.GrayAt(0, 0); got < 254 {
		t.Errorf("origin pixel luminance = %f, want ~255", got)
	}
}
