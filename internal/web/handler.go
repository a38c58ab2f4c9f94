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

// Package web exposes the verification pipeline over HTTP.
package web

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/dominikschlosser/certverify/internal/attest"
	"github.com/dominikschlosser/certverify/internal/fusion"
	"github.com/dominikschlosser/certverify/internal/keys"
	"github.com/dominikschlosser/certverify/internal/pipeline"
	"github.com/dominikschlosser/certverify/internal/qr"
)

const maxUploadBytes = 16 << 20 // 16MB

// Server holds the verification components behind the HTTP surface.
type Server struct {
	pipeline *pipeline.Pipeline
	service  *attest.Service
}

func NewServer(p *pipeline.Pipeline, service *attest.Service) *Server {
	return &Server{pipeline: p, service: service}
}

// ListenAndServe starts the HTTP server on the given port.
func (s *Server) ListenAndServe(port int) error {
	return http.ListenAndServe(fmt.Sprintf(":%d", port), s.Mux())
}

// Mux creates the HTTP handler with the API routes.
func (s *Server) Mux() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/verify", s.handleVerify)
	mux.HandleFunc("POST /api/scan", s.handleScan)
	mux.HandleFunc("POST /api/qr", s.handleQR)
	mux.HandleFunc("GET /api/issuers/{id}/key", s.handleIssuerKey)

	return mux
}

// handleVerify runs the full pipeline over an uploaded certificate image.
// Extracted fields may accompany the upload as a JSON form value.
func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart request")
		return
	}

	file, _, err := r.FormFile("image")
	if err != nil {
		writeError(w, http.StatusBadRequest, "image file is required")
		return
	}
	defer file.Close()

	image, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "reading image upload")
		return
	}

	var extraction *fusion.Extraction
	if raw := r.FormValue("extraction"); raw != "" {
		extraction = &fusion.Extraction{}
		if err := json.Unmarshal([]byte(raw), extraction); err != nil {
			writeError(w, http.StatusBadRequest, "invalid extraction payload")
			return
		}
	}

	var seals *fusion.SealSignature
	if raw := r.FormValue("seals"); raw != "" {
		seals = &fusion.SealSignature{}
		if err := json.Unmarshal([]byte(raw), seals); err != nil {
			writeError(w, http.StatusBadRequest, "invalid seals payload")
			return
		}
	}

	result := s.pipeline.Verify(r.Context(), image, extraction, seals)
	writeJSON(w, result)
}

type scanRequest struct {
	Content string            `json:"content"`
	Fields  map[string]string `json:"fields"`
}

// handleScan validates already-decoded QR content against the extracted
// fields, without running image forensics.
func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

	var req scanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Content == "" {
		writeError(w, http.StatusBadRequest, "content is required")
		return
	}

	check := s.service.VerifyScan(req.Content, req.Fields)
	writeJSON(w, check)
}

// handleIssuerKey serves an issuer's public key as PEM so external
// verifiers can pin it.
func (s *Server) handleIssuerKey(w http.ResponseWriter, r *http.Request) {
	issuerID := r.PathValue("id")

	key, ok := s.service.Registry().Lookup(issuerID)
	if !ok || key.Public == nil {
		writeError(w, http.StatusNotFound, "unknown issuer")
		return
	}

	pem, err := keys.MarshalPublicPEM(key.Public)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "encoding public key")
		return
	}

	w.Header().Set("Content-Type", "application/x-pem-file")
	w.Write([]byte(pem))
}

type qrRequest struct {
	Content string `json:"content"`
	Size    int    `json:"size"`
}

// handleQR renders arbitrary attestation content as a QR PNG.
func (s *Server) handleQR(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

	var req qrRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Content == "" {
		writeError(w, http.StatusBadRequest, "content is required")
		return
	}

	data, err := qr.EncodePNG(req.Content, req.Size)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Write(data)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
