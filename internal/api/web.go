package api

import (
	"bytes"
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/kalambet/edumood/internal/feedback"
	"github.com/kalambet/edumood/internal/metrics"
)

const maxRequestBodySize = 1 << 20 // 1MB

const (
	msgEmptyFeedback = "No feedback text provided."
	msgUnavailable   = "AI service temporarily unavailable."
	msgUnexpected    = "An unexpected error occurred during processing."
	msgNoData        = "No data available to download."
)

//go:embed templates/*.html
var templateFS embed.FS

// FeedbackService is the submit and read surface the handlers need.
type FeedbackService interface {
	Submit(ctx context.Context, text string) (feedback.Record, error)
	Records() ([]feedback.Record, error)
	Trend() ([]feedback.TrendPoint, error)
	Summary() (feedback.Summary, error)
	Snapshot() (feedback.Snapshot, error)
}

// WebDeps holds dependencies for the web handler.
type WebDeps struct {
	Service FeedbackService
	// Metrics is optional; when nil, /metrics is not mounted.
	Metrics *metrics.Collector
	// APIToken, when set, guards /api/feedback with bearer auth.
	APIToken string
	// Location formats timestamps on the dashboard. Defaults to time.Local.
	Location *time.Location
	// AllowedOrigins for CORS on /api. Defaults to any origin.
	AllowedOrigins []string
}

type pages map[string]*template.Template

func parsePages(loc *time.Location) (pages, error) {
	funcs := template.FuncMap{
		"formatTime": func(ts int64) string {
			return time.Unix(ts, 0).In(loc).Format("2006-01-02 15:04")
		},
	}
	p := make(pages)
	for _, name := range []string{"index.html", "submit.html", "about.html", "dashboard.html"} {
		t, err := template.New(name).Funcs(funcs).ParseFS(templateFS, "templates/base.html", "templates/"+name)
		if err != nil {
			return nil, fmt.Errorf("parsing template %s: %w", name, err)
		}
		p[name] = t
	}
	return p, nil
}

func (p pages) render(w http.ResponseWriter, name string, data any) {
	var buf bytes.Buffer
	if err := p[name].ExecuteTemplate(&buf, "base", data); err != nil {
		slog.Error("rendering template", "template", name, "error", err)
		http.Error(w, "template error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(buf.Bytes())
}

// NewWebHandler returns the EduMood HTTP handler: HTML pages, submission,
// CSV export and the JSON API.
func NewWebHandler(deps WebDeps) (http.Handler, error) {
	if deps.Location == nil {
		deps.Location = time.Local
	}
	tmpl, err := parsePages(deps.Location)
	if err != nil {
		return nil, err
	}

	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(RequestLogger)
	r.Use(middleware.Recoverer)
	if deps.Metrics != nil {
		r.Use(deps.Metrics.Middleware)
		r.Handle("/metrics", deps.Metrics.Handler())
	}

	r.Get("/", handleIndex(tmpl))
	r.Get("/home", handleIndex(tmpl))
	r.Get("/about", handleAbout(tmpl))
	r.Get("/submit_feedback", handleSubmitForm(tmpl))
	r.Post("/submit_feedback", handleSubmit(deps.Service))
	r.Get("/dashboard", handleDashboard(tmpl, deps.Service))
	r.Get("/download_csv", handleDownloadCSV(deps.Service))
	r.Get("/health", handleHealth)

	origins := deps.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Route("/api", func(r chi.Router) {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: origins,
			AllowedMethods: []string{http.MethodGet, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", RequestIDHeader},
			ExposedHeaders: []string{RequestIDHeader},
			MaxAge:         300,
		}))
		r.Get("/time_series_data", handleTimeSeries(deps.Service))
		r.Group(func(r chi.Router) {
			if deps.APIToken != "" {
				r.Use(BearerAuth(deps.APIToken))
			}
			r.Get("/feedback", handleListFeedback(deps.Service))
		})
	})

	return r, nil
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

func handleIndex(tmpl pages) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tmpl.render(w, "index.html", nil)
	}
}

func handleAbout(tmpl pages) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tmpl.render(w, "about.html", map[string]any{"Emotions": feedback.Emotions()})
	}
}

func handleSubmitForm(tmpl pages) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tmpl.render(w, "submit.html", nil)
	}
}

func handleSubmit(svc FeedbackService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		text, err := feedbackText(r)
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}

		rec, err := svc.Submit(r.Context(), text)
		if err != nil {
			writeSubmitError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, rec)
	}
}

// feedbackText reads the feedback field from a form or a JSON body.
func feedbackText(r *http.Request) (string, error) {
	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if ct == "application/json" {
		var body struct {
			Feedback string `json:"feedback"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			return "", err
		}
		return body.Feedback, nil
	}
	if ct == "multipart/form-data" {
		if err := r.ParseMultipartForm(maxRequestBodySize); err != nil {
			return "", err
		}
	} else if err := r.ParseForm(); err != nil {
		return "", err
	}
	return r.FormValue("feedback"), nil
}

// writeSubmitError maps submission failures to status codes. Outages are
// 503; anything else from the classifier or the store is a generic 500.
func writeSubmitError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, feedback.ErrEmptyFeedback):
		httpError(w, http.StatusBadRequest, "invalid_request_error", msgEmptyFeedback)
	case errors.Is(err, feedback.ErrClassifierTimeout), errors.Is(err, feedback.ErrClassifierUnavailable):
		slog.Warn("classifier unavailable", "request_id", RequestIDFrom(r.Context()), "error", err)
		httpError(w, http.StatusServiceUnavailable, "service_unavailable", msgUnavailable)
	default:
		slog.Error("submission failed", "request_id", RequestIDFrom(r.Context()), "error", err)
		httpError(w, http.StatusInternalServerError, "api_error", msgUnexpected)
	}
}

type distributionRow struct {
	Emotion feedback.Emotion
	Count   int
	Percent float64
}

type dashboardView struct {
	Records      []feedback.Record
	Summary      feedback.Summary
	Distribution []distributionRow
	Latest       *feedback.TrendPoint
}

func handleDashboard(tmpl pages, svc FeedbackService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap, err := svc.Snapshot()
		if err != nil {
			slog.Error("loading feedback", "error", err)
			http.Error(w, msgUnexpected, http.StatusInternalServerError)
			return
		}

		view := dashboardView{Records: snap.Records, Summary: snap.Summary}
		for _, e := range feedback.Emotions() {
			row := distributionRow{Emotion: e, Count: snap.Summary.Counts[e]}
			if snap.Summary.Total > 0 {
				row.Percent = float64(row.Count) / float64(snap.Summary.Total) * 100
			}
			view.Distribution = append(view.Distribution, row)
		}
		if n := len(snap.Trend); n > 0 {
			view.Latest = &snap.Trend[n-1]
		}
		tmpl.render(w, "dashboard.html", view)
	}
}

func handleDownloadCSV(svc FeedbackService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		records, err := svc.Records()
		if err != nil {
			slog.Error("loading feedback", "error", err)
			http.Error(w, msgUnexpected, http.StatusInternalServerError)
			return
		}
		if len(records) == 0 {
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(msgNoData))
			return
		}

		var buf bytes.Buffer
		if err := feedback.WriteCSV(&buf, records); err != nil {
			slog.Error("writing csv", "error", err)
			http.Error(w, msgUnexpected, http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Disposition", "attachment; filename="+feedback.CSVFilename)
		w.Header().Set("Content-Type", "text/csv")
		w.Write(buf.Bytes())
	}
}

func handleTimeSeries(svc FeedbackService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		trend, err := svc.Trend()
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", msgUnexpected)
			return
		}
		if trend == nil {
			trend = []feedback.TrendPoint{}
		}
		writeJSON(w, http.StatusOK, trend)
	}
}

func handleListFeedback(svc FeedbackService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		records, err := svc.Records()
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", msgUnexpected)
			return
		}
		if records == nil {
			records = []feedback.Record{}
		}
		writeJSON(w, http.StatusOK, records)
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	msg := format
	if len(args) > 0 {
		msg = fmt.Sprintf(format, args...)
	}
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": strings.TrimSpace(msg),
			"type":    errType,
		},
	})
}
