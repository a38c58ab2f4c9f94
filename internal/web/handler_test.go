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

package web

import (
	"bytes"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dominikschlosser/certverify/internal/attest"
	"github.com/dominikschlosser/certverify/internal/pipeline"
	"github.com/dominikschlosser/certverify/internal/qr"
)

// newTestServer wires a server with a generated issuer key and no record
// store.
func newTestServer(t *testing.T) *Server {
	t.Helper()
	registry, err := attest.NewRegistry()
	if err != nil {
		t.Fatalf("creating registry: %v", err)
	}
	service := attest.NewService(registry, nil)
	p := pipeline.New(nil, service, nil, nil)
	return NewServer(p, service)
}

// apiPost is a test helper that posts JSON to a given path.
func apiPost(t *testing.T, s *Server, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.Mux().ServeHTTP(w, req)
	return w
}

// decodeResponse unmarshals the response body into a map.
func decodeResponse(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var result map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &result); err != nil {
		t.Fatalf("invalid JSON response: %v\nbody: %s", err, w.Body.String())
	}
	return result
}

// signedEnvelope returns a JSON attestation envelope signed by the server's
// default issuer.
func signedEnvelope(t *testing.T, s *Server) string {
	t.Helper()
	signed, err := s.service.Sign(attest.Payload{
		Data: attest.CertificateFields{
			CertificateID: "CERT-2026-001",
			StudentName:   "Jane Doe",
		},
	}, attest.DefaultIssuerID)
	if err != nil {
		t.Fatalf("signing: %v", err)
	}
	env, err := attest.EncodeEnvelope(signed)
	if err != nil {
		t.Fatalf("encoding envelope: %v", err)
	}
	return string(env)
}

func TestHandleScan_ValidEnvelope(t *testing.T) {
	s := newTestServer(t)
	body, _ := json.Marshal(map[string]any{
		"content": signedEnvelope(t, s),
		"fields":  map[string]string{"certificate_id": "CERT-2026-001"},
	})

	w := apiPost(t, s, "/api/scan", string(body))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	result := decodeResponse(t, w)
	if result["signature_valid"] != true {
		t.Errorf("signature_valid = %v, want true", result["signature_valid"])
	}
	if result["issuer_verified"] != true {
		t.Errorf("issuer_verified = %v, want true", result["issuer_verified"])
	}
	if result["certificate_id_match"] != true {
		t.Errorf("certificate_id_match = %v, want true", result["certificate_id_match"])
	}
}

func TestHandleScan_EmptyContent(t *testing.T) {
	s := newTestServer(t)

	w := apiPost(t, s, "/api/scan", `{"content":""}`)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	result := decodeResponse(t, w)
	if result["error"] != "content is required" {
		t.Errorf("expected 'content is required', got %v", result["error"])
	}
}

func TestHandleScan_InvalidJSON(t *testing.T) {
	s := newTestServer(t)

	w := apiPost(t, s, "/api/scan", "not json")

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestHandleScan_MalformedEnvelope(t *testing.T) {
	s := newTestServer(t)

	w := apiPost(t, s, "/api/scan", `{"content":"{broken"}`)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	result := decodeResponse(t, w)
	if result["signature_valid"] != false {
		t.Errorf("signature_valid = %v for malformed content, want false", result["signature_valid"])
	}
	if result["qr_decoded"] != false {
		t.Errorf("qr_decoded = %v for malformed content, want false", result["qr_decoded"])
	}
}

func TestHandleScan_WrongMethod(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/scan", nil)
	w := httptest.NewRecorder()

	s.Mux().ServeHTTP(w, req)

	if w.Code == http.StatusOK {
		t.Fatal("expected non-200 for GET /api/scan")
	}
}

func TestHandleQR_RoundTrip(t *testing.T) {
	s := newTestServer(t)

	w := apiPost(t, s, "/api/qr", `{"content":"https://verify.example.edu/attest/tok-1","size":256}`)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "image/png" {
		t.Errorf("Content-Type = %q, want image/png", ct)
	}

	content, err := qr.ScanBytes(w.Body.Bytes())
	if err != nil {
		t.Fatalf("scanning generated image: %v", err)
	}
	if content != "https://verify.example.edu/attest/tok-1" {
		t.Errorf("scanned %q", content)
	}
}

func TestHandleQR_EmptyContent(t *testing.T) {
	s := newTestServer(t)

	w := apiPost(t, s, "/api/qr", `{"content":""}`)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestHandleIssuerKey(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/issuers/default/key", nil)
	w := httptest.NewRecorder()

	s.Mux().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/x-pem-file" {
		t.Errorf("Content-Type = %q, want application/x-pem-file", ct)
	}
	if !strings.Contains(w.Body.String(), "BEGIN PUBLIC KEY") {
		t.Errorf("body is not a PEM public key: %s", w.Body.String())
	}
}

func TestHandleIssuerKey_Unknown(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/issuers/nobody/key", nil)
	w := httptest.NewRecorder()

	s.Mux().ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
	result := decodeResponse(t, w)
	if result["error"] != "unknown issuer" {
		t.Errorf("expected 'unknown issuer', got %v", result["error"])
	}
}

// multipartVerify posts an image plus optional form fields to /api/verify.
func multipartVerify(t *testing.T, s *Server, imageData []byte, fields map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if imageData != nil {
		fw, err := mw.CreateFormFile("image", "certificate.png")
		if err != nil {
			t.Fatalf("creating form file: %v", err)
		}
		fw.Write(imageData)
	}
	for k, v := range fields {
		mw.WriteField(k, v)
	}
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/verify", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	s.Mux().ServeHTTP(w, req)
	return w
}

func testImagePNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 64, 64))
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			img.Set(x, y, color.RGBA{uint8(x * 4), uint8(y * 4), 200, 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encoding image: %v", err)
	}
	return buf.Bytes()
}

func TestHandleVerify(t *testing.T) {
	s := newTestServer(t)
	extraction := `{"fields":{"certificate_id":"CERT-2026-001","student_name":"Jane Doe"},` +
		`"field_confidences":{"certificate_id":0.9,"student_name":0.9}}`

	w := multipartVerify(t, s, testImagePNG(t), map[string]string{"extraction": extraction})

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	result := decodeResponse(t, w)
	if result["verification_id"] == "" || result["verification_id"] == nil {
		t.Error("verification_id missing from response")
	}
	decision, ok := result["decision"].(map[string]any)
	if !ok {
		t.Fatalf("decision missing or wrong type: %T", result["decision"])
	}
	if decision["status"] == "" || decision["status"] == nil {
		t.Error("decision.status missing")
	}
	if _, ok := result["risk_assessment"]; !ok {
		t.Error("risk_assessment missing from response")
	}
}

func TestHandleVerify_MissingImage(t *testing.T) {
	s := newTestServer(t)

	w := multipartVerify(t, s, nil, map[string]string{"extraction": "{}"})

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	result := decodeResponse(t, w)
	if result["error"] != "image file is required" {
		t.Errorf("expected 'image file is required', got %v", result["error"])
	}
}

func TestHandleVerify_InvalidExtraction(t *testing.T) {
	s := newTestServer(t)

	w := multipartVerify(t, s, testImagePNG(t), map[string]string{"extraction": "{broken"})

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestHandleVerify_NotMultipart(t *testing.T) {
	s := newTestServer(t)

	w := apiPost(t, s, "/api/verify", `{"image":"x"}`)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}
