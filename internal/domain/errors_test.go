package domain

import (
	"context"
	"fmt"
	"testing"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Code
	}{
		{"nil", nil, CodeUnknown},
		{"cancelled", fmt.Errorf("stream: %w", ErrCancelled), CodeCancel},
		{"context", fmt.Errorf("send: %w", context.Canceled), CodeCancel},
		{"rate limit hint", &RateLimitError{}, CodeRateLimit},
		{"rate limit exhausted", fmt.Errorf("classify: %w", ErrRateLimitExceeded), CodeRateLimit},
		{"upstream", fmt.Errorf("x: %w", &UpstreamError{Status: 500, Message: "boom"}), CodeUpstream},
		{"ambiguous", ErrClassificationAmbiguous, CodeAmbiguous},
		{"prerequisite", ErrMissingPrerequisite, CodePrerequisite},
		{"input", ErrUnsupportedInput, CodeInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.err); got != tt.want {
				t.Errorf("Classify(%v) = %s, want %s", tt.err, got, tt.want)
			}
		})
	}
}

func TestAuditKindRequires(t *testing.T) {
	for _, k := range AuditKinds {
		if len(k.Requires()) == 0 {
			t.Errorf("%s requires no extraction kinds", k)
		}
	}
	if got := AuditConsistency.Requires(); len(got) != 2 {
		t.Errorf("expected consistency to need 2 kinds, got %v", got)
	}
}

func TestExtractionKindSource(t *testing.T) {
	if KindPlanTechnical.Source() != RolePlan {
		t.Error("plan-technical should read the plan")
	}
	if KindReportOutcome.Source() != RoleReport {
		t.Error("report-outcome should read the report")
	}
}
