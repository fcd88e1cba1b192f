package domain

import "time"

// Role is the logical role a classified document plays in an engagement.
type Role string

const (
	RoleUnclassified  Role = "Unclassified"
	RoleStrategicPlan Role = "Strategic Plan"
	RolePlan          Role = "Annual Performance Plan"
	RoleReport        Role = "Annual Performance Report"
)

// FileType returns the persisted file type for a role.
func (r Role) FileType() string {
	switch r {
	case RolePlan:
		return "Plan"
	case RoleReport:
		return "Report"
	default:
		return "Other"
	}
}

// Document is an immutable classified text. Re-uploads create a new Document.
type Document struct {
	ID        string
	UserID    string
	Filename  string
	Role      Role
	Text      string
	CreatedAt time.Time
}

// Chunk is a contiguous slice of a document plus its ordinal.
type Chunk struct {
	ID    string
	DocID string
	Index int
	Text  string
}

// ExtractionKind names one of the five extraction templates.
type ExtractionKind string

const (
	KindPlanIndicators   ExtractionKind = "plan-indicators"
	KindReportIndicators ExtractionKind = "report-indicators"
	KindReportDeviation  ExtractionKind = "report-deviation"
	KindReportOutcome    ExtractionKind = "report-outcome"
	KindPlanTechnical    ExtractionKind = "plan-technical"
)

// ExtractionPhases is the fixed phase order of the extraction orchestrator.
var ExtractionPhases = []ExtractionKind{
	KindPlanIndicators,
	KindReportIndicators,
	KindReportDeviation,
	KindReportOutcome,
	KindPlanTechnical,
}

// Source reports which document an extraction kind reads.
func (k ExtractionKind) Source() Role {
	switch k {
	case KindPlanIndicators, KindPlanTechnical:
		return RolePlan
	default:
		return RoleReport
	}
}

// ExtractionRecord is the concatenated chunk-level output for one programme and kind.
// Partial marks a record where some chunks produced no answer.
type ExtractionRecord struct {
	Programme string
	Kind      ExtractionKind
	Text      string
	Failed    bool
	Partial   bool
}

// AuditKind names one of the four audit passes.
type AuditKind string

const (
	AuditConsistency   AuditKind = "consistency"
	AuditMeasurability AuditKind = "measurability"
	AuditRelevance     AuditKind = "relevance"
	AuditPresentation  AuditKind = "presentation"
)

// AuditKinds lists the passes in the order "audit all" runs them.
var AuditKinds = []AuditKind{
	AuditConsistency,
	AuditMeasurability,
	AuditRelevance,
	AuditPresentation,
}

// Requires returns the extraction kinds a pass reads.
func (a AuditKind) Requires() []ExtractionKind {
	switch a {
	case AuditConsistency:
		return []ExtractionKind{KindPlanIndicators, KindReportIndicators}
	case AuditMeasurability:
		return []ExtractionKind{KindPlanTechnical}
	case AuditRelevance:
		return []ExtractionKind{KindReportOutcome}
	case AuditPresentation:
		return []ExtractionKind{KindReportDeviation}
	}
	return nil
}

// Title is the heading used when exporting a pass.
func (a AuditKind) Title() string {
	switch a {
	case AuditConsistency:
		return "Consistency Analysis Report"
	case AuditMeasurability:
		return "Measurability Analysis Report"
	case AuditRelevance:
		return "Relevance Analysis Report"
	case AuditPresentation:
		return "Presentation Analysis Report"
	}
	return "Chat Export"
}

// ParseAuditKind maps a name to an AuditKind.
func ParseAuditKind(s string) (AuditKind, bool) {
	for _, k := range AuditKinds {
		if string(k) == s {
			return k, true
		}
	}
	return "", false
}

// AuditResult is the final text of one pass for one programme.
type AuditResult struct {
	Programme string
	Pass      AuditKind
	Text      string
	Followup  string // measurability second call
	Blocks    []string
	CreatedAt time.Time
}

// Passage is a chunk ranked against a query.
type Passage struct {
	Chunk Chunk
	Score float64
}
