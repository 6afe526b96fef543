package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/kalambet/edumood/internal/feedback"
	"github.com/kalambet/edumood/internal/metrics"
)

func newTestHandler(t *testing.T, deps WebDeps) http.Handler {
	t.Helper()
	if deps.Location == nil {
		deps.Location = time.UTC
	}
	h, err := NewWebHandler(deps)
	if err != nil {
		t.Fatalf("NewWebHandler: %v", err)
	}
	return h
}

func postForm(h http.Handler, text string) *httptest.ResponseRecorder {
	form := url.Values{"feedback": {text}}
	req := httptest.NewRequest(http.MethodPost, "/submit_feedback", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func get(h http.Handler, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

type errorBody struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var body errorBody
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decoding error body: %v (%s)", err, rec.Body.String())
	}
	return body
}

func TestSubmit_Form(t *testing.T) {
	clf := &mockClassifier{result: feedback.Classification{Emotion: feedback.Confused, Reasoning: "lost on pointers"}}
	svc, store := newTestService(t, clf)
	h := newTestHandler(t, WebDeps{Service: svc})

	rec := postForm(h, "  pointers lost me  ")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var got map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	if len(got) != 4 {
		t.Errorf("response fields = %v, want exactly timestamp/feedback/emotion/reasoning", got)
	}
	if got["feedback"] != "pointers lost me" || got["emotion"] != "Confused" || got["reasoning"] != "lost on pointers" {
		t.Errorf("response = %v", got)
	}
	if got["timestamp"] != float64(time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC).Unix()) {
		t.Errorf("timestamp = %v", got["timestamp"])
	}

	records, _ := store.Load()
	if len(records) != 1 {
		t.Errorf("stored %d records, want 1", len(records))
	}
	if rec.Header().Get(RequestIDHeader) == "" {
		t.Error("missing X-Request-ID header")
	}
}

func TestSubmit_JSONAndMultipart(t *testing.T) {
	clf := &mockClassifier{result: feedback.Classification{Emotion: feedback.HappyEngaged, Reasoning: "r"}}
	svc, store := newTestService(t, clf)
	h := newTestHandler(t, WebDeps{Service: svc})

	req := httptest.NewRequest(http.MethodPost, "/submit_feedback", strings.NewReader(`{"feedback":"great pace"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("json status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	mw.WriteField("feedback", "loved the demo")
	mw.Close()
	req = httptest.NewRequest(http.MethodPost, "/submit_feedback", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("multipart status = %d, body = %s", rec.Code, rec.Body.String())
	}

	records, _ := store.Load()
	if len(records) != 2 || records[0].Feedback != "great pace" || records[1].Feedback != "loved the demo" {
		t.Errorf("records = %+v", records)
	}
}

func TestSubmit_EmptyFeedback(t *testing.T) {
	clf := &mockClassifier{result: feedback.Classification{Emotion: feedback.Confused}}
	svc, store := newTestService(t, clf)
	h := newTestHandler(t, WebDeps{Service: svc})

	for _, text := range []string{"", "   ", "\n\t"} {
		rec := postForm(h, text)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("Submit(%q) status = %d, want 400", text, rec.Code)
			continue
		}
		body := decodeError(t, rec)
		if body.Error.Message != "No feedback text provided." {
			t.Errorf("message = %q", body.Error.Message)
		}
	}
	if clf.callCount() != 0 {
		t.Errorf("classifier called %d times, want 0", clf.callCount())
	}
	records, _ := store.Load()
	if len(records) != 0 {
		t.Errorf("stored %d records, want 0", len(records))
	}
}

func TestSubmit_ClassifierFailures(t *testing.T) {
	tests := []struct {
		name     string
		clf      *mockClassifier
		wantCode int
		wantMsg  string
	}{
		{"timeout", &mockClassifier{err: feedback.ErrClassifierTimeout}, http.StatusServiceUnavailable, "AI service temporarily unavailable."},
		{"unavailable", &mockClassifier{err: fmt.Errorf("wrapped: %w", feedback.ErrClassifierUnavailable)}, http.StatusServiceUnavailable, "AI service temporarily unavailable."},
		{"malformed", &mockClassifier{err: feedback.ErrMalformedClassification}, http.StatusInternalServerError, "An unexpected error occurred during processing."},
		{"invalid emotion", &mockClassifier{result: feedback.Classification{Emotion: "Angry"}}, http.StatusInternalServerError, "An unexpected error occurred during processing."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, store := newTestService(t, tt.clf)
			h := newTestHandler(t, WebDeps{Service: svc})

			rec := postForm(h, "something")
			if rec.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantCode)
			}
			if body := decodeError(t, rec); body.Error.Message != tt.wantMsg {
				t.Errorf("message = %q, want %q", body.Error.Message, tt.wantMsg)
			}
			records, _ := store.Load()
			if len(records) != 0 {
				t.Errorf("stored %d records after failure, want 0", len(records))
			}
		})
	}
}

func TestSubmit_StorageFailure(t *testing.T) {
	clf := &mockClassifier{result: feedback.Classification{Emotion: feedback.NeutralCalm, Reasoning: "r"}}
	svc := feedback.NewService(failingStore{err: errors.New("read-only fs")}, clf)
	h := newTestHandler(t, WebDeps{Service: svc})

	rec := postForm(h, "fine")
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}

func TestDownloadCSV(t *testing.T) {
	svc, store := newTestService(t, &mockClassifier{})
	h := newTestHandler(t, WebDeps{Service: svc})

	rec := get(h, "/download_csv")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("empty store status = %d, want 404", rec.Code)
	}
	if rec.Body.String() != "No data available to download." {
		t.Errorf("empty store body = %q", rec.Body.String())
	}

	seed(t, store, feedback.Record{Timestamp: 1700000000, Feedback: "slow, but clear", Emotion: feedback.BoredDrowsy, Reasoning: "pace"})

	rec = get(h, "/download_csv")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := rec.Header().Get("Content-Disposition"); got != "attachment; filename=EduMood_Feedback_Data.csv" {
		t.Errorf("Content-Disposition = %q", got)
	}
	if got := rec.Header().Get("Content-Type"); got != "text/csv" {
		t.Errorf("Content-Type = %q", got)
	}
	want := "timestamp,feedback,emotion,reasoning\n1700000000,\"slow, but clear\",Bored/Drowsy,pace\n"
	if rec.Body.String() != want {
		t.Errorf("body = %q, want %q", rec.Body.String(), want)
	}
}

func TestTimeSeriesData(t *testing.T) {
	svc, store := newTestService(t, &mockClassifier{})
	h := newTestHandler(t, WebDeps{Service: svc})

	rec := get(h, "/api/time_series_data")
	if rec.Code != http.StatusOK || strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Fatalf("empty trend = %d %q, want 200 []", rec.Code, rec.Body.String())
	}

	seed(t, store,
		feedback.Record{Timestamp: day(2024, 3, 2), Emotion: feedback.HappyEngaged},
		feedback.Record{Timestamp: day(2024, 3, 1), Emotion: feedback.Confused},
		feedback.Record{Timestamp: day(2024, 3, 1), Emotion: feedback.FrustratedStressed},
		feedback.Record{Timestamp: day(2024, 3, 1), Emotion: feedback.HappyEngaged},
		feedback.Record{Timestamp: day(2024, 3, 1), Emotion: feedback.NeutralCalm},
	)

	rec = get(h, "/api/time_series_data")
	var got []feedback.TrendPoint
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	want := []feedback.TrendPoint{
		{Date: "2024-03-01", ConfusionIndex: 0.5},
		{Date: "2024-03-02", ConfusionIndex: 0},
	}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("trend = %+v, want %+v", got, want)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("Access-Control-Allow-Origin = %q without an Origin header", got)
	}
}

func TestAPI_CORS(t *testing.T) {
	svc, _ := newTestService(t, &mockClassifier{})
	h := newTestHandler(t, WebDeps{Service: svc})

	req := httptest.NewRequest(http.MethodGet, "/api/time_series_data", nil)
	req.Header.Set("Origin", "https://lms.example.edu")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Access-Control-Allow-Origin = %q, want *", got)
	}
}

func TestListFeedback_Auth(t *testing.T) {
	svc, store := newTestService(t, &mockClassifier{})
	seed(t, store, feedback.Record{Timestamp: 1, Feedback: "a", Emotion: feedback.Confused, Reasoning: "r"})
	h := newTestHandler(t, WebDeps{Service: svc, APIToken: "s3cret"})

	rec := get(h, "/api/feedback")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("no token status = %d, want 401", rec.Code)
	}
	if body := decodeError(t, rec); body.Error.Type != "authentication_error" {
		t.Errorf("error type = %q", body.Error.Type)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/feedback", nil)
	req.Header.Set("Authorization", "Bearer s3cret")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("with token status = %d", rec.Code)
	}
	var got []feedback.Record
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Feedback != "a" {
		t.Errorf("records = %+v", got)
	}

	// The trend endpoint feeds the public dashboard and stays open.
	if rec := get(h, "/api/time_series_data"); rec.Code != http.StatusOK {
		t.Errorf("trend status with token configured = %d, want 200", rec.Code)
	}
}

func TestListFeedback_EmptyIsArray(t *testing.T) {
	svc, _ := newTestService(t, &mockClassifier{})
	h := newTestHandler(t, WebDeps{Service: svc})

	rec := get(h, "/api/feedback")
	if strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Errorf("body = %q, want []", rec.Body.String())
	}
}

func TestPages(t *testing.T) {
	svc, store := newTestService(t, &mockClassifier{})
	seed(t, store,
		feedback.Record{Timestamp: day(2024, 3, 1), Feedback: "<b>what</b> is a closure", Emotion: feedback.Confused, Reasoning: "question"},
	)
	h := newTestHandler(t, WebDeps{Service: svc})

	tests := []struct {
		path string
		want string
	}{
		{"/", "EduMood"},
		{"/home", "Give feedback"},
		{"/about", "Frustrated/Stressed"},
		{"/submit_feedback", `name="feedback"`},
		{"/dashboard", "&lt;b&gt;what&lt;/b&gt; is a closure"},
		{"/dashboard", "2024-03-01 12:00"},
		{"/dashboard", "Download CSV"},
		{"/dashboard", "1.000"},
	}
	for _, tt := range tests {
		rec := get(h, tt.path)
		if rec.Code != http.StatusOK {
			t.Errorf("GET %s status = %d", tt.path, rec.Code)
			continue
		}
		if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
			t.Errorf("GET %s Content-Type = %q", tt.path, ct)
		}
		if !strings.Contains(rec.Body.String(), tt.want) {
			t.Errorf("GET %s body missing %q", tt.path, tt.want)
		}
	}
}

func TestDashboard_Empty(t *testing.T) {
	svc, _ := newTestService(t, &mockClassifier{})
	h := newTestHandler(t, WebDeps{Service: svc})

	rec := get(h, "/dashboard")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "No feedback yet.") {
		t.Error("empty dashboard should say there is no feedback")
	}
}

func TestDashboard_SingleSnapshot(t *testing.T) {
	store := &growingStore{}
	svc := feedback.NewService(store, &mockClassifier{}, feedback.WithLocation(time.UTC))
	h := newTestHandler(t, WebDeps{Service: svc})

	rec := get(h, "/dashboard")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if n := store.loads(); n != 1 {
		t.Errorf("store loaded %d times, want 1", n)
	}
	body := rec.Body.String()
	for _, want := range []string{"1 comments collected", "<strong>1.000</strong>"} {
		if !strings.Contains(body, want) {
			t.Errorf("dashboard missing %q", want)
		}
	}
}

func TestHealthAndRequestID(t *testing.T) {
	svc, _ := newTestService(t, &mockClassifier{})
	h := newTestHandler(t, WebDeps{Service: svc})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK || rec.Body.String() != `{"status":"ok"}` {
		t.Errorf("health = %d %q", rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get(RequestIDHeader); got != "abc-123" {
		t.Errorf("X-Request-ID = %q, want propagated abc-123", got)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	clf := &mockClassifier{result: feedback.Classification{Emotion: feedback.Confused, Reasoning: "r"}}
	m := metrics.NewCollector()
	svc := feedback.NewService(failingStore{err: errors.New("x")}, clf, feedback.WithRecorder(m))
	h := newTestHandler(t, WebDeps{Service: svc, Metrics: m})

	postForm(h, "hello")

	rec := get(h, "/metrics")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{
		`edumood_http_requests_total{method="POST",route="/submit_feedback",status="500"} 1`,
		"edumood_classification_duration_seconds_count 1",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics missing %q", want)
		}
	}

	svc2, _ := newTestService(t, clf)
	if rec := get(newTestHandler(t, WebDeps{Service: svc2}), "/metrics"); rec.Code != http.StatusNotFound {
		t.Errorf("metrics without collector status = %d, want 404", rec.Code)
	}
}
