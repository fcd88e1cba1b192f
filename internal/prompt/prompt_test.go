package prompt

import (
	"strings"
	"testing"

	"perfaudit/internal/domain"
)

func TestExtractionTemplatesKeepPlaceholder(t *testing.T) {
	set := MustLoad()
	for _, kind := range domain.ExtractionPhases {
		text, err := set.Extraction(kind, "Programme 2: Health")
		if err != nil {
			t.Fatalf("%s: %v", kind, err)
		}
		if !strings.Contains(text, ChunkPlaceholder) {
			t.Errorf("%s: missing chunk placeholder", kind)
		}
		if !strings.Contains(text, "Programme 2: Health") {
			t.Errorf("%s: programme not rendered", kind)
		}
	}
}

func TestAuditTemplatesRender(t *testing.T) {
	set := MustLoad()
	data := map[string]string{
		"Programme": "Programme 1", "Plan": "P", "Report": "R",
		"Technical": "T", "Previous": "X", "Outcomes": "O", "Deviation": "D",
	}
	for _, name := range []string{
		"audit_consistency", "audit_measurability", "audit_measurability_followup",
		"audit_relevance", "audit_presentation",
	} {
		if _, err := set.Render(name, data); err != nil {
			t.Errorf("%s: %v", name, err)
		}
	}
}

func TestDiscoverTemplateNumbersPassages(t *testing.T) {
	set := MustLoad()
	text, err := set.Render("discover_programmes", struct{ Passages []string }{[]string{"a", "b"}})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(text, "Passage 2") {
		t.Errorf("expected numbered passages, got %q", text)
	}
}

func TestVersionStable(t *testing.T) {
	if MustLoad().Version() != MustLoad().Version() {
		t.Error("template version should be deterministic")
	}
}
