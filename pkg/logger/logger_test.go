package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

func TestTraceIDRoundTrip(t *testing.T) {
	ctx := WithTraceID(context.Background(), "abc")
	if got := TraceID(ctx); got != "abc" {
		t.Fatalf("TraceID() = %q, want abc", got)
	}
	if got := TraceID(context.Background()); got != "" {
		t.Fatalf("TraceID() on empty ctx = %q", got)
	}
	if NewTraceID() == NewTraceID() {
		t.Fatal("NewTraceID() returned duplicates")
	}
}

func TestLogRequestCarriesTraceID(t *testing.T) {
	var buf bytes.Buffer
	l := New(LoggingConfig{Level: "debug", Format: "json"})
	l.Logger.SetOutput(&buf)

	ctx := WithTraceID(context.Background(), "trace-1")
	l.Named("web").LogRequest(ctx, http.MethodGet, "/p/1", http.StatusOK, 12*time.Millisecond)

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode log line: %v (%s)", err, buf.String())
	}
	if entry["trace_id"] != "trace-1" {
		t.Errorf("trace_id = %v", entry["trace_id"])
	}
	if entry["component"] != "web" {
		t.Errorf("component = %v", entry["component"])
	}
	if entry["status"] != float64(200) {
		t.Errorf("status = %v", entry["status"])
	}
}

func TestNewUnknownLevelDefaultsToInfo(t *testing.T) {
	l := New(LoggingConfig{Level: "loud"})
	if l.Logger.GetLevel() != logrus.InfoLevel {
		t.Fatalf("level = %v, want info", l.Logger.GetLevel())
	}
}
