package handler

import (
	"errors"
	"net"
	"net/http"
	"os"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/prn-tf/pictor/internal/domain"
	"github.com/prn-tf/pictor/internal/service"
	"github.com/prn-tf/pictor/internal/storage"
)

// ImageHandler serves stored images and canonicalizes hash URLs.
type ImageHandler struct {
	images   *service.ImageService
	basePath string
	logger   zerolog.Logger
}

// NewImageHandler creates a new ImageHandler.
func NewImageHandler(images *service.ImageService, basePath string, logger zerolog.Logger) *ImageHandler {
	return &ImageHandler{
		images:   images,
		basePath: normalizeBasePath(basePath),
		logger:   logger.With().Str("handler", "image").Logger(),
	}
}

// ServeImage handles GET and HEAD for the canonical sharded form
// /{2-hex}/{38-hex}[.ext].
func (h *ImageHandler) ServeImage(w http.ResponseWriter, r *http.Request) {
	prefix := chi.URLParam(r, "prefix")
	suffix, ext := splitExtension(chi.URLParam(r, "file"))

	out, err := h.images.Resolve(r.Context(), service.ResolveInput{
		Prefix:    prefix,
		Suffix:    suffix,
		Ext:       ext,
		Method:    r.Method,
		Accept:    r.Header.Get("Accept"),
		UserAgent: r.Header.Get("User-Agent"),
	})
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrMalformedHash):
			http.NotFound(w, r)
		case errors.Is(err, domain.ErrTranscodeFailed):
			h.logger.Error().Err(err).Str("prefix", prefix).Str("suffix", suffix).Msg("transcode failed")
			http.Error(w, "internal server error", http.StatusInternalServerError)
		default:
			h.logger.Error().Err(err).Msg("resolve failed")
			http.Error(w, "internal server error", http.StatusInternalServerError)
		}
		return
	}

	f, err := os.Open(out.Path)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	if out.Vary != "" {
		w.Header().Set("Vary", out.Vary)
	}
	if out.ContentType != "" {
		w.Header().Set("Content-Type", out.ContentType)
	}
	if out.ContentEncoding != "" {
		w.Header().Set("Content-Encoding", out.ContentEncoding)
	}

	// ServeContent would sniff the type from the name; the sniffed header
	// above wins because it is already set. Ranges, conditional requests
	// and HEAD short-circuiting all come for free.
	http.ServeContent(w, r, "", info.ModTime(), f)
}

// RedirectCanonical turns any flat 40-hex path, with or without interior
// slashes or an extension, into a permanent redirect to the sharded form.
func (h *ImageHandler) RedirectCanonical(w http.ResponseWriter, r *http.Request) {
	rest := chi.URLParam(r, "*")

	hash, ext := splitExtension(rest)
	hash = strings.ReplaceAll(hash, "/", "")
	if storage.ValidateHash(hash) != nil || !validExtension(ext) {
		http.NotFound(w, r)
		return
	}

	target := h.basePath + "/" + hash[:2] + "/" + hash[2:] + ext
	http.Redirect(w, r, target, http.StatusMovedPermanently)
}

// validExtension accepts an empty extension or a dot followed by word
// characters only. Anything else, a second path segment in particular, must
// not end up in a redirect target.
func validExtension(ext string) bool {
	if ext == "" {
		return true
	}
	for i := 1; i < len(ext); i++ {
		c := ext[i]
		switch {
		case c >= '0' && c <= '9':
		case c >= 'a' && c <= 'z':
		case c >= 'A' && c <= 'Z':
		case c == '_':
		default:
			return false
		}
	}
	return ext[0] == '.'
}

// splitExtension separates the optional extension at the first dot. The
// returned extension keeps its leading dot.
func splitExtension(s string) (name, ext string) {
	if i := strings.IndexByte(s, '.'); i >= 0 {
		return s[:i], s[i:]
	}
	return s, ""
}

// clientIP strips the port from an address if one is present.
func clientIP(remoteAddr string) string {
	if host, _, err := net.SplitHostPort(remoteAddr); err == nil {
		return host
	}
	return remoteAddr
}

// requestBaseURL reconstructs the external scheme and host of a request.
func requestBaseURL(r *http.Request, trustProxy bool) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if trustProxy {
		if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
			scheme = proto
		}
	}
	return scheme + "://" + r.Host
}
