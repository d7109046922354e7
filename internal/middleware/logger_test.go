package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

func TestAccessLogRecordsRouteAndSize(t *testing.T) {
	var buf bytes.Buffer
	r := chi.NewRouter()
	r.Use(RequestID, AccessLog(zerolog.New(&buf)))
	r.Get("/v1/invoices/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("short and stout"))
	})

	req := httptest.NewRequest(http.MethodGet, "/v1/invoices/inv_42", nil)
	req.Header.Set(RequestIDHeader, "trace-1")
	req.RemoteAddr = "203.0.113.9:5123"
	r.ServeHTTP(httptest.NewRecorder(), req)

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("decode log line %q: %v", buf.String(), err)
	}
	want := map[string]any{
		"level":      "warn",
		"route":      "/v1/invoices/{id}",
		"path":       "/v1/invoices/inv_42",
		"status":     float64(http.StatusTeapot),
		"bytes":      float64(len("short and stout")),
		"remote":     "203.0.113.9",
		"request_id": "trace-1",
	}
	for k, v := range want {
		if line[k] != v {
			t.Fatalf("%s = %v, want %v (line %s)", k, line[k], v, buf.String())
		}
	}
}
