package core

import "time"

// DefaultPreviewRows is how many parsed rows a preview returns.
const DefaultPreviewRows = 5

// PreviewSummary contains the counts for an import preview.
type PreviewSummary struct {
	Lines       int `json:"lines"`
	DataRows    int `json:"dataRows"`
	SkippedRows int `json:"skippedRows"`
}

// ColumnPreview is one header token and the role inferred for it.
type ColumnPreview struct {
	Index  int        `json:"index"`
	Header string     `json:"header"`
	Role   ColumnRole `json:"role,omitempty"`
}

// PreviewResponse is a read-only analysis of a clash report.
type PreviewResponse struct {
	Summary          PreviewSummary  `json:"summary"`
	Columns          []ColumnPreview `json:"columns"`
	UnmappedRoles    []ColumnRole    `json:"unmappedRoles"`
	Samples          []RawClash      `json:"samples"`
	ProcessingTimeMs int64           `json:"processingTimeMs"`
}

var allRoles = []ColumnRole{
	RoleClashName,
	RoleDistance,
	RoleItem1,
	RoleItem2,
	RoleLayer1,
	RoleLayer2,
}

// AnalyzeImport parses text without loading it and reports how columns were
// inferred. Roles missing from the header fall back to fixed positions.
func AnalyzeImport(text string, sampleRows int) *PreviewResponse {
	start := time.Now()
	if sampleRows <= 0 {
		sampleRows = DefaultPreviewRows
	}

	resp := &PreviewResponse{
		Columns:       []ColumnPreview{},
		UnmappedRoles: []ColumnRole{},
		Samples:       []RawClash{},
	}

	lines := nonBlankLines(text)
	resp.Summary.Lines = len(lines)

	headers := HeaderTokens(text)
	cols := InferColumns(headers)
	byIndex := make(map[int]ColumnRole, len(cols))
	for role, idx := range cols {
		byIndex[idx] = role
	}
	for i, h := range headers {
		resp.Columns = append(resp.Columns, ColumnPreview{Index: i, Header: h, Role: byIndex[i]})
	}
	for _, role := range allRoles {
		if cols.Index(role) < 0 {
			resp.UnmappedRoles = append(resp.UnmappedRoles, role)
		}
	}

	clashes := ParseClashCSV(text)
	resp.Summary.DataRows = len(clashes)
	if len(lines) > 1 {
		resp.Summary.SkippedRows = len(lines) - 1 - len(clashes)
	}
	if len(clashes) > sampleRows {
		clashes = clashes[:sampleRows]
	}
	resp.Samples = append(resp.Samples, clashes...)

	resp.ProcessingTimeMs = time.Since(start).Milliseconds()
	return resp
}
