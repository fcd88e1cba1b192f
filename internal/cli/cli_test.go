package cli

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"perfaudit/internal/domain"
)

func TestParsePasses(t *testing.T) {
	all, err := parsePasses("all")
	if err != nil || len(all) != 4 || all[0] != domain.AuditConsistency {
		t.Fatalf("unexpected passes for all: %v %v", all, err)
	}

	one, err := parsePasses("relevance")
	if err != nil || len(one) != 1 || one[0] != domain.AuditRelevance {
		t.Errorf("unexpected passes for relevance: %v %v", one, err)
	}

	if _, err := parsePasses("style"); !errors.Is(err, domain.ErrUnsupportedInput) {
		t.Errorf("expected unsupported input, got %v", err)
	}
}

func TestNoticeText(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{fmt.Errorf("x: %w", domain.ErrRateLimitExceeded), "The model service is rate limiting requests. Try again shortly."},
		{domain.ErrClassificationAmbiguous, "Could not tell what kind of document this is."},
		{fmt.Errorf("%w: no programmes in scope", domain.ErrMissingPrerequisite), "missing prerequisite: no programmes in scope"},
	}
	for _, tt := range tests {
		if got := noticeText(tt.err); got != tt.want {
			t.Errorf("noticeText(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{500 * time.Millisecond, "<1s"},
		{42 * time.Second, "42s"},
		{3*time.Minute + 5*time.Second, "3m5s"},
		{2*time.Hour + 10*time.Minute, "2h10m"},
	}
	for _, tt := range tests {
		if got := formatDuration(tt.d); got != tt.want {
			t.Errorf("formatDuration(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}
