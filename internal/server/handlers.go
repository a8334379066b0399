package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/zombor/docscan/internal/apperr"
	"github.com/zombor/docscan/internal/extraction"
	"github.com/zombor/docscan/internal/ocr"
	"github.com/zombor/docscan/internal/scanning"
)

// scanResponse is the body returned for a successful scan
type scanResponse struct {
	Data       any                 `json:"data"`
	Confidence scanning.Confidence `json:"confidence"`
	Signals    []string            `json:"signals,omitempty"`
	Provider   string              `json:"provider,omitempty"`
	RequestID  string              `json:"requestId"`
}

// errorResponse is the body returned for every failure
type errorResponse struct {
	Error     string         `json:"error"`
	Code      string         `json:"code"`
	RequestID string         `json:"requestId"`
	Retryable bool           `json:"retryable"`
	Issues    []apperr.Issue `json:"issues,omitempty"`
}

// badRequest is an upload problem detected before the pipeline runs
type badRequest struct {
	status int
	code   string
	msg    string
}

func (e *badRequest) Error() string {
	return e.msg
}

// handleScanCheck handles POST /api/checks/scan
func (s *Server) handleScanCheck(w http.ResponseWriter, r *http.Request) {
	image, mimeType, err := s.readUpload(w, r)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}

	result, err := s.scanner.ScanCheck(r.Context(), image, mimeType)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, scanResponse{
		Data:       result.Data,
		Confidence: result.Confidence,
		Signals:    result.Signals,
		Provider:   result.Provider,
		RequestID:  requestIDFrom(r.Context()),
	})
}

// handleScanReceipt handles POST /api/receipts/scan
func (s *Server) handleScanReceipt(w http.ResponseWriter, r *http.Request) {
	image, mimeType, err := s.readUpload(w, r)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}

	result, err := s.scanner.ScanReceipt(r.Context(), image, mimeType)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, scanResponse{
		Data:       result.Data,
		Confidence: result.Confidence,
		Signals:    result.Signals,
		Provider:   result.Provider,
		RequestID:  requestIDFrom(r.Context()),
	})
}

// handleHealth handles GET /health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), s.opts.HealthTimeout)
	defer cancel()

	extractors := map[string]bool{}
	available := 0
	for _, e := range extraction.Providers(s.scanner.Extractor()) {
		err := e.Available(ctx)
		extractors[e.Name()] = err == nil
		if err != nil {
			s.log.Warn("health.extractor_unavailable", "extractor", e.Name(), "error", err)
			continue
		}
		available++
	}

	status, code := "ok", http.StatusOK
	if available == 0 {
		status, code = "degraded", http.StatusServiceUnavailable
	}

	writeJSON(w, code, map[string]any{
		"status":     status,
		"version":    s.opts.Version,
		"extractors": extractors,
	})
}

// readUpload pulls the document out of a multipart form or a raw image body
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) ([]byte, string, error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes)

	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		return nil, "", &badRequest{http.StatusBadRequest, "bad_request", "Missing or invalid Content-Type"}
	}

	var (
		data     []byte
		mimeType string
	)
	if mediaType == "multipart/form-data" {
		data, mimeType, err = s.readMultipart(r)
	} else {
		mimeType = mediaType
		if !ocr.Supported(mimeType) {
			return nil, "", unsupported(mimeType)
		}
		data, err = io.ReadAll(r.Body)
		if err != nil {
			err = readError(err)
		}
	}
	if err != nil {
		return nil, "", err
	}

	if len(data) == 0 {
		return nil, "", &badRequest{http.StatusBadRequest, "bad_request", "Uploaded file is empty"}
	}
	if !ocr.Supported(mimeType) {
		return nil, "", unsupported(mimeType)
	}
	return data, ocr.NormalizeMIMEType(mimeType), nil
}

func (s *Server) readMultipart(r *http.Request) ([]byte, string, error) {
	if err := r.ParseMultipartForm(s.opts.MaxUploadBytes); err != nil {
		return nil, "", readError(err)
	}

	file, header, err := r.FormFile("file")
	if errors.Is(err, http.ErrMissingFile) {
		file, header, err = r.FormFile("image")
	}
	if err != nil {
		return nil, "", &badRequest{http.StatusBadRequest, "bad_request", "Missing file"}
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, "", readError(err)
	}

	// Detect content type from the part header, then the file extension
	contentType := ocr.NormalizeMIMEType(header.Header.Get("Content-Type"))
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = contentTypeFromExt(header.Filename)
	}
	return data, contentType, nil
}

func contentTypeFromExt(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	case ".tif", ".tiff":
		return "image/tiff"
	case ".avif":
		return "image/avif"
	case ".pdf":
		return "application/pdf"
	case ".heic":
		return "image/heic"
	}
	return "application/octet-stream"
}

func unsupported(mimeType string) error {
	return &badRequest{
		status: http.StatusUnsupportedMediaType,
		code:   "unsupported_media_type",
		msg:    fmt.Sprintf("Unsupported content type %q", mimeType),
	}
}

func readError(err error) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return &badRequest{http.StatusRequestEntityTooLarge, "too_large", fmt.Sprintf("Upload exceeds %d bytes", tooLarge.Limit)}
	}
	return &badRequest{http.StatusBadRequest, "bad_request", "Failed to read upload"}
}

// writeFailure maps an error onto its HTTP status and body
func (s *Server) writeFailure(w http.ResponseWriter, r *http.Request, err error) {
	var br *badRequest
	if errors.As(err, &br) {
		writeError(w, r, br.status, br.code, br.msg)
		return
	}

	resp := errorResponse{
		Error:     "Internal server error",
		Code:      "internal_error",
		RequestID: requestIDFrom(r.Context()),
	}
	status := http.StatusInternalServerError

	if appErr, ok := apperr.As(err); ok {
		resp.Code = string(appErr.Kind)
		resp.Retryable = appErr.Retryable
		switch appErr.Kind {
		case apperr.KindOCR, apperr.KindExtraction:
			status = http.StatusBadGateway
			if appErr.Retryable {
				status = http.StatusServiceUnavailable
			}
			resp.Error = "Upstream provider failed"
		case apperr.KindValidation:
			status = http.StatusUnprocessableEntity
			resp.Error = appErr.Message
			resp.Issues = appErr.Issues
		case apperr.KindConfiguration:
			resp.Error = "Service misconfigured"
		}
	}

	s.log.Error("http.scan_failed", "req_id", resp.RequestID, "status", status, "error", err)
	writeJSON(w, status, resp)
}

func writeError(w http.ResponseWriter, r *http.Request, status int, code, msg string) {
	writeJSON(w, status, errorResponse{
		Error:     msg,
		Code:      code,
		RequestID: requestIDFrom(r.Context()),
		Retryable: status == http.StatusServiceUnavailable,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
