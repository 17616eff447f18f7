package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/wolfman30/patient-portal/pkg/logging"
)

func TestRequestLoggerRecordsStatusAndRequestID(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.NewWithWriter("info", &buf)

	handler := chimiddleware.RequestID(RequestLogger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})))
	req := httptest.NewRequest(http.MethodGet, "/api/catalog", nil)
	req.Header.Set("X-Request-Id", "req-123")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	out := buf.String()
	if !strings.Contains(out, `"msg":"request completed"`) {
		t.Fatalf("expected completion log, got %s", out)
	}
	if !strings.Contains(out, `"status":418`) {
		t.Fatalf("expected status in log, got %s", out)
	}
	if !strings.Contains(out, `"request_id":"req-123"`) {
		t.Fatalf("expected request id in log, got %s", out)
	}
	if strings.Contains(out, "request started") {
		t.Fatalf("expected start line only at debug level, got %s", out)
	}
}
