package notify

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"perfaudit/internal/domain"
)

func TestSlackPublisher_PostsResult(t *testing.T) {
	var gotChannel, gotText string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat.postMessage") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := r.ParseForm(); err != nil {
			t.Error(err)
		}
		gotChannel = r.PostForm.Get("channel")
		gotText = r.PostForm.Get("text")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ok":true,"channel":"C123","ts":"1700000000.000100"}`))
	}))
	defer srv.Close()

	p := NewSlackPublisher("xoxb-test", "C123", srv.URL+"/")
	err := p.Publish(context.Background(), domain.AuditResult{
		Programme: "Programme 2",
		Pass:      domain.AuditMeasurability,
		Text:      "| Indicator | SMART |",
		Followup:  "Revised indicators",
	})
	if err != nil {
		t.Fatal(err)
	}

	if gotChannel != "C123" {
		t.Errorf("expected channel C123, got %q", gotChannel)
	}
	for _, want := range []string{"Measurability Analysis Report: Programme 2", "| Indicator | SMART |", "Revised indicators"} {
		if !strings.Contains(gotText, want) {
			t.Errorf("message missing %q: %q", want, gotText)
		}
	}
}

func TestSlackPublisher_ReportsAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ok":false,"error":"channel_not_found"}`))
	}))
	defer srv.Close()

	p := NewSlackPublisher("xoxb-test", "C404", srv.URL+"/")
	err := p.Publish(context.Background(), domain.AuditResult{Programme: "Programme 1", Pass: domain.AuditRelevance})
	if err == nil || !strings.Contains(err.Error(), "channel_not_found") {
		t.Errorf("expected channel_not_found error, got %v", err)
	}
}

func TestFormatResult_Truncates(t *testing.T) {
	text := formatResult(domain.AuditResult{Pass: domain.AuditRelevance, Text: strings.Repeat("x", slackTextLimit+10)})
	if !strings.HasSuffix(text, "(truncated)") {
		t.Error("long result should be truncated")
	}
}
