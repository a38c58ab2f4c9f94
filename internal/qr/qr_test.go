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

package qr

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"path/filepath"
	"testing"
)

func TestEncodeScan_RoundTrip(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"url", "https://verify.example.edu/attest/tok-123"},
		{"json envelope", `{"payload":{"data":{"certificate_id":"CERT-2026-001"}},"signature":"abc"}`},
		{"unicode", "证书验证 CERT-2026-001"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := EncodePNG(tt.content, 256)
			if err != nil {
				t.Fatalf("EncodePNG: %v", err)
			}

			got, err := ScanBytes(data)
			if err != nil {
				t.Fatalf("ScanBytes: %v", err)
			}
			if got != tt.content {
				t.Errorf("scanned %q, want %q", got, tt.content)
			}
		})
	}
}

func TestEncodePNG_DefaultSize(t *testing.T) {
	data, err := EncodePNG("hello", 0)
	if err != nil {
		t.Fatalf("EncodePNG: %v", err)
	}

	cfg, err := png.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decoding PNG header: %v", err)
	}
	if cfg.Width != DefaultSize || cfg.Height != DefaultSize {
		t.Errorf("image is %dx%d, want %dx%d", cfg.Width, cfg.Height, DefaultSize, DefaultSize)
	}
}

func TestWriteFile_ScanFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "code.png")
	const content = "https://verify.example.edu/attest/tok-456"

	if err := WriteFile(path, content, 256); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	got, err := ScanFile(path)
	if err != nil {
		t.Fatalf("ScanFile: %v", err)
	}
	if got != content {
		t.Errorf("scanned %q, want %q", got, content)
	}
}

func TestScanBytes_NoCode(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 64, 64))
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			img.Set(x, y, color.White)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encoding image: %v", err)
	}

	if _, err := ScanBytes(buf.Bytes()); err == nil {
		t.Error("blank image decoded as a QR code")
	}
}

func TestScanBytes_NotAnImage(t *testing.T) {
	if _, err := ScanBytes([]byte("not an image")); err == nil {
		t.Error("garbage bytes decoded as an image")
	}
}

func TestScanFile_Missing(t *testing.T) {
	if _, err := ScanFile(filepath.Join(t.TempDir(), "missing.png")); err == nil {
		t.Error("missing file opened")
	}
}
