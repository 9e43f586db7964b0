package core

import "math"

// Stats summarizes a dataset for the dashboard.
type Stats struct {
	Total            int                 `json:"total"`
	ByStatus         map[ClashStatus]int `json:"byStatus"`
	BySeverity       map[Severity]int    `json:"bySeverity"`
	ByResponsibility map[Discipline]int  `json:"byResponsibility"`
	Critical         int                 `json:"critical"`
	CriticalPercent  int                 `json:"criticalPercent"`
	Progress         int                 `json:"progress"`
}

// ComputeStats counts clashes by status, severity and responsibility.
// Progress is the share of clashes that have left PENDING and PROCESSING.
func ComputeStats(clashes []EnrichedClash) Stats {
	s := Stats{
		Total:            len(clashes),
		ByStatus:         make(map[ClashStatus]int, 4),
		BySeverity:       make(map[Severity]int, len(Severities)),
		ByResponsibility: make(map[Discipline]int, len(Disciplines)),
	}
	for _, c := range clashes {
		s.ByStatus[c.Status]++
		s.BySeverity[c.AISeverity]++
		s.ByResponsibility[c.AIResponsibility]++
	}

	s.Critical = s.BySeverity[SeverityCritical]
	if s.Total > 0 {
		s.CriticalPercent = int(math.Round(100 * float64(s.Critical) / float64(s.Total)))
		settled := s.ByStatus[StatusCompleted] + s.ByStatus[StatusFailed]
		s.Progress = percent(settled, s.Total)
	}
	return s
}

// ClashFilter selects clashes by severity and status. Empty fields match all.
type ClashFilter struct {
	Severity Severity
	Status   ClashStatus
}

// Match reports whether c passes the filter.
func (f ClashFilter) Match(c EnrichedClash) bool {
	if f.Severity != "" && c.AISeverity != f.Severity {
		return false
	}
	if f.Status != "" && c.Status != f.Status {
		return false
	}
	return true
}

// FilterClashes returns the clashes matching f in their original order.
func FilterClashes(clashes []EnrichedClash, f ClashFilter) []EnrichedClash {
	if f == (ClashFilter{}) {
		return clashes
	}
	out := make([]EnrichedClash, 0, len(clashes))
	for _, c := range clashes {
		if f.Match(c) {
			out = append(out, c)
		}
	}
	return out
}
