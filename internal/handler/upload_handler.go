package handler

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/prn-tf/pictor/internal/domain"
	"github.com/prn-tf/pictor/internal/service"
)

// failMarker labels a per-file storage failure in the response body.
const failMarker = "FAIL"

// UploadHandler accepts multipart image uploads.
type UploadHandler struct {
	uploads *service.UploadService

	basePath    string
	trustProxy  bool
	maxBodySize int64
	logger      zerolog.Logger
}

// UploadConfig contains configuration for the upload handler.
type UploadConfig struct {
	Uploads           *service.UploadService
	BasePath          string
	TrustProxyHeaders bool

	// MaxBodySize caps the request body in bytes. Zero means no cap.
	MaxBodySize int64

	Logger zerolog.Logger
}

// NewUploadHandler creates a new UploadHandler.
func NewUploadHandler(cfg UploadConfig) *UploadHandler {
	return &UploadHandler{
		uploads:     cfg.Uploads,
		basePath:    normalizeBasePath(cfg.BasePath),
		trustProxy:  cfg.TrustProxyHeaders,
		maxBodySize: cfg.MaxBodySize,
		logger:      cfg.Logger.With().Str("handler", "upload").Logger(),
	}
}

// HandleUpload stores every file part of the request and reports one result
// line per file, in the order the client sent them.
func (h *UploadHandler) HandleUpload(w http.ResponseWriter, r *http.Request) {
	if h.maxBodySize > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxBodySize)
	}

	files, err := readFileParts(r)
	if err != nil {
		http.Error(w, "upload your image please", http.StatusBadRequest)
		return
	}

	results, err := h.uploads.Upload(r.Context(), clientIP(r.RemoteAddr), files)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrNoFiles):
			http.Error(w, "upload your image please", http.StatusBadRequest)
		case errors.Is(err, domain.ErrAccessDenied):
			http.Error(w, "You are on our blacklist.", http.StatusForbidden)
		default:
			h.logger.Error().Err(err).Msg("upload failed")
			http.Error(w, "internal server error", http.StatusInternalServerError)
		}
		return
	}

	status := http.StatusOK
	for _, res := range results {
		if res.Failed {
			status = http.StatusInternalServerError
			break
		}
	}

	base := requestBaseURL(r, h.trustProxy) + h.basePath
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	writeResults(w, base, results)
}

// readFileParts drains the multipart body in wire order. Parts without a
// filename are form fields and get skipped.
func readFileParts(r *http.Request) ([]service.FileUpload, error) {
	mr, err := r.MultipartReader()
	if err != nil {
		return nil, err
	}

	var files []service.FileUpload
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if part.FileName() == "" {
			part.Close()
			continue
		}
		data, err := io.ReadAll(part)
		part.Close()
		if err != nil {
			return nil, err
		}
		files = append(files, service.FileUpload{Filename: part.FileName(), Data: data})
	}
	return files, nil
}

// writeResults renders the plain-text response body. A single file gets a
// bare line so shell pipelines can consume the URL directly.
func writeResults(w io.Writer, base string, results []service.FileResult) {
	value := func(res service.FileResult) string {
		if res.Failed {
			return failMarker
		}
		return base + "/" + res.Path
	}

	if len(results) == 1 {
		fmt.Fprintf(w, "%s\n", value(results[0]))
		return
	}
	for _, res := range results {
		fmt.Fprintf(w, "%s: %s\n", res.Filename, value(res))
	}
}
