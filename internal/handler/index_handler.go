package handler

import (
	"embed"
	"html/template"
	"net/http"

	"github.com/rs/zerolog"
)

//go:embed templates/*.html
var templateFS embed.FS

// IndexHandler renders the landing page with usage instructions.
type IndexHandler struct {
	templates  *template.Template
	basePath   string
	trustProxy bool
	logger     zerolog.Logger
}

// NewIndexHandler creates a new IndexHandler.
func NewIndexHandler(basePath string, trustProxy bool, logger zerolog.Logger) (*IndexHandler, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, err
	}
	return &IndexHandler{
		templates:  tmpl,
		basePath:   normalizeBasePath(basePath),
		trustProxy: trustProxy,
		logger:     logger.With().Str("handler", "index").Logger(),
	}, nil
}

// indexPageData feeds the landing page template.
type indexPageData struct {
	// URL is the externally visible upload endpoint.
	URL string
}

// ServeIndex renders the landing page.
func (h *IndexHandler) ServeIndex(w http.ResponseWriter, r *http.Request) {
	data := indexPageData{
		URL: requestBaseURL(r, h.trustProxy) + h.basePath + "/",
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := h.templates.ExecuteTemplate(w, "index.html", data); err != nil {
		h.logger.Error().Err(err).Msg("failed to render index")
	}
}
