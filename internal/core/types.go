// Package core provides the business logic for clash triage.
// This package has no UI dependencies and can be used by any frontend.
package core

import (
	"context"
	"strings"
	"time"
)

// ClashStatus is the triage state of a single clash.
type ClashStatus string

const (
	StatusPending    ClashStatus = "PENDING"
	StatusProcessing ClashStatus = "PROCESSING"
	StatusCompleted  ClashStatus = "COMPLETED"
	StatusFailed     ClashStatus = "FAILED"
)

// Severity is the AI-assigned clash severity.
type Severity string

const (
	SeverityCritical       Severity = "Critical"
	SeverityDesignIssue    Severity = "Design Issue"
	SeverityToleranceIssue Severity = "Tolerance Issue"
	SeverityFalseClash     Severity = "False Clash"
	SeverityUnknown        Severity = "Unknown"
)

// Severities lists every severity in display order.
var Severities = []Severity{
	SeverityCritical,
	SeverityDesignIssue,
	SeverityToleranceIssue,
	SeverityFalseClash,
	SeverityUnknown,
}

// SeverityColors is the dashboard palette, one hex colour per severity.
var SeverityColors = map[Severity]string{
	SeverityCritical:       "#ef4444",
	SeverityDesignIssue:    "#f97316",
	SeverityToleranceIssue: "#3b82f6",
	SeverityFalseClash:     "#22c55e",
	SeverityUnknown:        "#9ca3af",
}

// ParseSeverity matches s case-insensitively against the known severities.
// Anything unrecognised maps to SeverityUnknown.
func ParseSeverity(s string) Severity {
	s = strings.TrimSpace(s)
	for _, sev := range Severities {
		if strings.EqualFold(s, string(sev)) {
			return sev
		}
	}
	return SeverityUnknown
}

// Discipline is the engineering trade responsible for resolving a clash.
type Discipline string

const (
	DisciplineArchitecture Discipline = "Architecture"
	DisciplineStructure    Discipline = "Structure"
	DisciplineMEP          Discipline = "MEP"
	DisciplineUnknown      Discipline = "Unknown"
)

// Disciplines lists every discipline in display order.
var Disciplines = []Discipline{
	DisciplineArchitecture,
	DisciplineStructure,
	DisciplineMEP,
	DisciplineUnknown,
}

// DisciplineColors is the dashboard palette, one hex colour per discipline.
var DisciplineColors = map[Discipline]string{
	DisciplineArchitecture: "#8b5cf6",
	DisciplineStructure:    "#64748b",
	DisciplineMEP:          "#0ea5e9",
	DisciplineUnknown:      "#d1d5db",
}

// ParseDiscipline matches s case-insensitively against the known disciplines.
// Anything unrecognised maps to DisciplineUnknown.
func ParseDiscipline(s string) Discipline {
	s = strings.TrimSpace(s)
	for _, d := range Disciplines {
		if strings.EqualFold(s, string(d)) {
			return d
		}
	}
	return DisciplineUnknown
}

// RawClash is one parsed row of a clash-detection export. Distance is kept
// as text exactly as exported.
type RawClash struct {
	ID        string `json:"id"`
	TestName  string `json:"testName"`
	ClashName string `json:"clashName"`
	Item1     string `json:"item1"`
	Item2     string `json:"item2"`
	Distance  string `json:"distance"`
	Layer1    string `json:"layer1"`
	Layer2    string `json:"layer2"`
}

// EnrichedClash is a RawClash plus its triage fields.
type EnrichedClash struct {
	RawClash
	Status           ClashStatus `json:"status"`
	AISeverity       Severity    `json:"aiSeverity"`
	AIResponsibility Discipline  `json:"aiResponsibility"`
	AIDescription    string      `json:"aiDescription"`
	AIReasoning      string      `json:"aiReasoning,omitempty"`
}

// NewEnrichedClash wraps a parsed clash in its initial PENDING state.
func NewEnrichedClash(raw RawClash) EnrichedClash {
	return EnrichedClash{
		RawClash:         raw,
		Status:           StatusPending,
		AISeverity:       SeverityUnknown,
		AIResponsibility: DisciplineUnknown,
	}
}

// ClassificationResult is the classifier's verdict for one clash id.
type ClassificationResult struct {
	ID             string     `json:"id"`
	Severity       Severity   `json:"severity"`
	Responsibility Discipline `json:"responsibility"`
	Description    string     `json:"description"`
	Reasoning      string     `json:"reasoning,omitempty"`
}

// Classifier classifies a batch of clashes in a single request.
//
// Implementations return results for a subset of the submitted ids; a missing
// id means that clash failed. An error means the whole call failed.
type Classifier interface {
	Name() string
	ClassifyBatch(ctx context.Context, clashes []RawClash) ([]ClassificationResult, error)
}

// RunPhase indicates the current stage of a triage run.
type RunPhase string

const (
	PhaseStarting    RunPhase = "starting"
	PhaseClassifying RunPhase = "classifying"
	PhaseCooldown    RunPhase = "cooldown"
	PhaseComplete    RunPhase = "complete"
	PhaseCancelled   RunPhase = "cancelled"
)

// RunProgress represents the current state of a triage run.
type RunProgress struct {
	RunID      string   `json:"run_id"`
	Phase      RunPhase `json:"phase"`
	Total      int      `json:"total"`
	Selected   int      `json:"selected"`
	Dispatched int      `json:"dispatched"`
	Completed  int      `json:"completed"`
	Failed     int      `json:"failed"`
	Batch      int      `json:"batch"`
	Batches    int      `json:"batches"`
	Percent    int      `json:"percent"`
}

// Done reports whether the run has stopped.
func (p RunProgress) Done() bool {
	return p.Phase == PhaseComplete || p.Phase == PhaseCancelled
}

// RunSummary contains the final result of a triage run.
type RunSummary struct {
	RunID      string        `json:"run_id"`
	Selected   int           `json:"selected"`
	Dispatched int           `json:"dispatched"`
	Completed  int           `json:"completed"`
	Failed     int           `json:"failed"`
	Batches    int           `json:"batches"`
	Cancelled  bool          `json:"cancelled"`
	Duration   time.Duration `json:"duration"`
}
