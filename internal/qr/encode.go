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
	"fmt"
	"image/png"
	"os"

	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/qrcode"
)

// DefaultSize is the pixel edge length of generated QR images.
const DefaultSize = 512

// EncodePNG renders content as a QR code and returns it PNG-encoded.
func EncodePNG(content string, size int) ([]byte, error) {
	if size <= 0 {
		size = DefaultSize
	}

	matrix, err := qrcode.NewQRCodeWriter().Encode(content, gozxing.BarcodeFormat_QR_CODE, size, size, nil)
	if err != nil {
		return nil, fmt.Errorf("encoding QR code: %w", err)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, matrix); err != nil {
		return nil, fmt.Errorf("rendering QR image: %w", err)
	}
	return buf.Bytes(), nil
}

// WriteFile renders content as a QR code and writes it to a PNG file.
func WriteFile(path, content string, size int) error {
	data, err := EncodePNG(content, size)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing QR image: %w", err)
	}
	return nil
}
