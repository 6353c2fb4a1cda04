package handlers

import (
	"context"
	"embed"
	"encoding/json"
	"html/template"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/nijaru/yt-summary/db"
	apperrors "github.com/nijaru/yt-summary/errors"
	"github.com/nijaru/yt-summary/middleware"
	"github.com/nijaru/yt-summary/pipeline"
	"github.com/nijaru/yt-summary/utils"
	"github.com/nijaru/yt-summary/validation"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const (
	maxRequestBytes  = 1 << 20
	defaultRunsLimit = 20
	maxRunsLimit     = 200
)

//go:embed templates/index.html
var templatesFS embed.FS

type Runner interface {
	Run(ctx context.Context, rawURL string) (*pipeline.Result, error)
}

type RunLister interface {
	RecentRuns(ctx context.Context, limit int) ([]db.Run, error)
}

type Handlers struct {
	runner    Runner
	extractor pipeline.Extractor
	runs      RunLister
	page      *template.Template
	model     string
}

type summarizeRequest struct {
	URL string `json:"url"`
}

type videoIDResponse struct {
	VideoID      string `json:"video_id"`
	ThumbnailURL string `json:"thumbnail_url"`
}

// New builds the HTTP handlers. runs may be nil when history is disabled.
func New(runner Runner, extractor pipeline.Extractor, runs RunLister, model string) (*Handlers, error) {
	page, err := template.ParseFS(templatesFS, "templates/index.html")
	if err != nil {
		return nil, errors.Wrap(err, "parse page template")
	}
	return &Handlers{
		runner:    runner,
		extractor: extractor,
		runs:      runs,
		page:      page,
		model:     model,
	}, nil
}

func (h *Handlers) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", h.IndexHandler)
	mux.HandleFunc("POST /api/summarize", h.SummarizeHandler)
	mux.HandleFunc("GET /api/video-id", h.VideoIDHandler)
	mux.HandleFunc("GET /api/runs", h.RunsHandler)
	mux.HandleFunc("GET /health", h.HealthHandler)
}

func (h *Handlers) IndexHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := h.page.Execute(w, struct{ Model string }{h.model}); err != nil {
		middleware.GetLogger(r.Context()).WithError(err).Error("Failed to render page")
	}
}

func (h *Handlers) SummarizeHandler(w http.ResponseWriter, r *http.Request) {
	const op = "Handlers.Summarize"
	logger := middleware.GetLogger(r.Context())

	rawURL, err := readURL(w, r)
	if err != nil {
		respondError(w, r, apperrors.InvalidInput(op, err, "Request must carry a url field"))
		return
	}

	result, err := h.runner.Run(r.Context(), rawURL)
	if err != nil {
		respondError(w, r, err)
		return
	}

	logger.WithFields(logrus.Fields{
		"video_id": result.VideoID,
		"model":    result.Model,
	}).Info("Summary generation successful")
	utils.RespondWithJSON(w, http.StatusOK, result)
}

// VideoIDHandler lets the page show a thumbnail as soon as a link is entered.
func (h *Handlers) VideoIDHandler(w http.ResponseWriter, r *http.Request) {
	const op = "Handlers.VideoID"

	id, ok := h.extractor.Extract(r.URL.Query().Get("url"))
	if !ok {
		respondError(w, r, apperrors.IdentifierNotFound(op, "Please enter a valid YouTube URL."))
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, videoIDResponse{
		VideoID:      id,
		ThumbnailURL: validation.ThumbnailURL(id),
	})
}

func (h *Handlers) RunsHandler(w http.ResponseWriter, r *http.Request) {
	const op = "Handlers.Runs"

	if h.runs == nil {
		utils.HandleError(w, "Run history is disabled", http.StatusNotFound)
		return
	}

	limit := defaultRunsLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxRunsLimit {
			respondError(w, r, apperrors.InvalidInput(op, err, "limit must be between 1 and 200"))
			return
		}
		limit = n
	}

	runs, err := h.runs.RecentRuns(r.Context(), limit)
	if err != nil {
		respondError(w, r, apperrors.Internal(op, err, "Failed to load run history"))
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

func (h *Handlers) HealthHandler(w http.ResponseWriter, r *http.Request) {
	utils.RespondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// readURL accepts either a JSON body or a form field named url.
func readURL(w http.ResponseWriter, r *http.Request) (string, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBytes)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		var req summarizeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return "", errors.Wrap(err, "decode request body")
		}
		return req.URL, nil
	}

	if err := r.ParseForm(); err != nil {
		return "", errors.Wrap(err, "parse form")
	}
	return strings.TrimSpace(r.FormValue("url")), nil
}

func respondError(w http.ResponseWriter, r *http.Request, err error) {
	appErr, ok := apperrors.As(err)
	if !ok {
		appErr = apperrors.Internal("Handlers", err, "An error occurred while processing your request. Please try again later.")
	}

	entry := middleware.GetLogger(r.Context()).WithError(err).WithFields(logrus.Fields{
		"op":   appErr.Op,
		"kind": appErr.Kind,
	})
	if appErr.Severity() == apperrors.SeverityWarning {
		entry.Warn("Request failed")
	} else {
		entry.Error("Request failed")
	}

	utils.RespondWithAppError(w, appErr, middleware.RequestID(r.Context()))
}
