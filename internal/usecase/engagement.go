package usecase

import (
	"errors"
	"sync"

	"perfaudit/internal/domain"
)

// ErrBusy is returned when a pass is started while another one holds the
// engagement.
var ErrBusy = errors.New("another audit action is running")

// Engagement is the explicit state of one audit: the classified documents,
// the programme scope, and every extraction record and audit result derived
// from them. Changing the scope or replacing a document clears all derived
// state in one step and bumps the generation, so writers holding an older
// generation are ignored.
type Engagement struct {
	mu         sync.RWMutex
	userID     string
	docs       map[domain.Role]domain.Document
	programmes []string
	candidates []string
	records    map[domain.ExtractionKind]map[string]domain.ExtractionRecord
	results    map[domain.AuditKind]map[string]domain.AuditResult
	generation uint64
	busy       bool
}

func NewEngagement(userID string) *Engagement {
	e := &Engagement{
		userID: userID,
		docs:   make(map[domain.Role]domain.Document),
	}
	e.resetLocked()
	return e
}

func (e *Engagement) UserID() string {
	return e.userID
}

func (e *Engagement) resetLocked() {
	e.records = make(map[domain.ExtractionKind]map[string]domain.ExtractionRecord)
	e.results = make(map[domain.AuditKind]map[string]domain.AuditResult)
	e.generation++
}

// SetDocument stores doc in its role slot. A new Plan or Report invalidates
// everything extracted from the previous one.
func (e *Engagement) SetDocument(doc domain.Document) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.docs[doc.Role] = doc
	if doc.Role == domain.RolePlan || doc.Role == domain.RoleReport {
		e.resetLocked()
	}
	if doc.Role == domain.RolePlan {
		e.candidates = nil
	}
}

// Document returns the document held for role.
func (e *Engagement) Document(role domain.Role) (domain.Document, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	doc, ok := e.docs[role]
	return doc, ok
}

// Ready reports whether both a Plan and a Report are classified.
func (e *Engagement) Ready() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	_, plan := e.docs[domain.RolePlan]
	_, report := e.docs[domain.RoleReport]
	return plan && report
}

// Rescope replaces the programme list and clears all records and results.
func (e *Engagement) Rescope(programmes []string) uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.programmes = dedupe(programmes)
	e.resetLocked()
	return e.generation
}

// Programmes returns the current scope in order.
func (e *Engagement) Programmes() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return append([]string(nil), e.programmes...)
}

// SetCandidates stores the programme names discovered in the plan.
func (e *Engagement) SetCandidates(names []string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.candidates = append([]string(nil), names...)
}

func (e *Engagement) Candidates() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return append([]string(nil), e.candidates...)
}

// Generation identifies the current scope.
func (e *Engagement) Generation() uint64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.generation
}

// PutRecord stores rec in its programme slot unless gen is stale.
func (e *Engagement) PutRecord(gen uint64, rec domain.ExtractionRecord) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if gen != e.generation {
		return false
	}
	slots, ok := e.records[rec.Kind]
	if !ok {
		slots = make(map[string]domain.ExtractionRecord)
		e.records[rec.Kind] = slots
	}
	slots[rec.Programme] = rec
	return true
}

// Record returns the record for (kind, programme).
func (e *Engagement) Record(kind domain.ExtractionKind, programme string) (domain.ExtractionRecord, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	rec, ok := e.records[kind][programme]
	return rec, ok
}

// HasRecords reports whether every kind has a record for programme. Empty or
// failed records count as present.
func (e *Engagement) HasRecords(programme string, kinds []domain.ExtractionKind) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	for _, k := range kinds {
		if _, ok := e.records[k][programme]; !ok {
			return false
		}
	}
	return true
}

// RecordCount returns the number of stored records across all kinds.
func (e *Engagement) RecordCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	n := 0
	for _, slots := range e.records {
		n += len(slots)
	}
	return n
}

// PutResult stores res unless gen is stale.
func (e *Engagement) PutResult(gen uint64, res domain.AuditResult) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if gen != e.generation {
		return false
	}
	slots, ok := e.results[res.Pass]
	if !ok {
		slots = make(map[string]domain.AuditResult)
		e.results[res.Pass] = slots
	}
	slots[res.Programme] = res
	return true
}

// Results returns pass results in programme order.
func (e *Engagement) Results(pass domain.AuditKind) []domain.AuditResult {
	e.mu.RLock()
	defer e.mu.RUnlock()
	var out []domain.AuditResult
	for _, p := range e.programmes {
		if res, ok := e.results[pass][p]; ok {
			out = append(out, res)
		}
	}
	return out
}

// ResultCount returns the number of stored results across all passes.
func (e *Engagement) ResultCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	n := 0
	for _, slots := range e.results {
		n += len(slots)
	}
	return n
}

// Begin disables new passes until End. It returns false if one is running.
func (e *Engagement) Begin() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.busy {
		return false
	}
	e.busy = true
	return true
}

func (e *Engagement) End() {
	e.mu.Lock()
	e.busy = false
	e.mu.Unlock()
}

// Snapshot captures the state that outlives one CLI invocation. Audit results
// are persisted as chat messages instead.
func (e *Engagement) Snapshot() domain.EngagementSnapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()

	snap := domain.EngagementSnapshot{
		UserID:     e.userID,
		Programmes: append([]string(nil), e.programmes...),
		Candidates: append([]string(nil), e.candidates...),
		Records:    make(map[domain.ExtractionKind]map[string]string),
		Generation: e.generation,
	}
	if d, ok := e.docs[domain.RolePlan]; ok {
		snap.PlanDocID = d.ID
	}
	if d, ok := e.docs[domain.RoleReport]; ok {
		snap.ReportDocID = d.ID
	}
	if d, ok := e.docs[domain.RoleStrategicPlan]; ok {
		snap.StrategicID = d.ID
	}
	for kind, slots := range e.records {
		m := make(map[string]string, len(slots))
		for p, rec := range slots {
			m[p] = rec.Text
		}
		snap.Records[kind] = m
	}
	return snap
}

// Restore loads a snapshot; docs supplies the documents it references.
func (e *Engagement) Restore(snap domain.EngagementSnapshot, docs []domain.Document) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, d := range docs {
		e.docs[d.Role] = d
	}
	e.programmes = append([]string(nil), snap.Programmes...)
	e.candidates = append([]string(nil), snap.Candidates...)
	e.records = make(map[domain.ExtractionKind]map[string]domain.ExtractionRecord)
	e.results = make(map[domain.AuditKind]map[string]domain.AuditResult)
	for kind, slots := range snap.Records {
		m := make(map[string]domain.ExtractionRecord, len(slots))
		for p, text := range slots {
			m[p] = domain.ExtractionRecord{Programme: p, Kind: kind, Text: text}
		}
		e.records[kind] = m
	}
	if snap.Generation > e.generation {
		e.generation = snap.Generation
	}
}

func dedupe(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
