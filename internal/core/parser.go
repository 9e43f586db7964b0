package core

import (
	"fmt"
	"regexp"
	"strings"
)

// ImportedTestName is the test name given to every imported clash.
const ImportedTestName = "Imported Test"

// minDataLines is a header plus at least one data row.
const minDataLines = 2

// lineSplit splits on LF or CRLF.
var lineSplit = regexp.MustCompile(`\r?\n`)

// bareToken is an unquoted field: no quotes, commas or whitespace.
var bareToken = regexp.MustCompile(`^[^",\s]+$`)

// fieldRule resolves one RawClash field: semantic column first, then the
// positional fallbacks in order, then the placeholder.
type fieldRule struct {
	role        ColumnRole
	fallbacks   []int
	placeholder string
}

var (
	clashNameRule = fieldRule{RoleClashName, []int{0}, "Unknown"}
	distanceRule  = fieldRule{RoleDistance, []int{1}, "Unknown"}
	item1Rule     = fieldRule{RoleItem1, []int{2, 3}, "Unknown Item 1"}
	item2Rule     = fieldRule{RoleItem2, []int{5, 6}, "Unknown Item 2"}
	layer1Rule    = fieldRule{RoleLayer1, []int{4}, "Layer 1"}
	layer2Rule    = fieldRule{RoleLayer2, []int{7}, "Layer 2"}
)

// ParseClashCSV turns raw export text into clashes.
//
// Blank lines are dropped. The first remaining line is the header; fewer
// than two lines yields an empty result. Rows with fewer than two tokens are
// skipped. IDs are "clash-<n>" where n is the 1-based data line index, so
// skipped rows leave gaps.
//
// Unquoted fields containing whitespace are not recognised as tokens and
// shift the columns after them. This is a known limitation of the export
// heuristic.
func ParseClashCSV(text string) []RawClash {
	lines := nonBlankLines(text)
	if len(lines) < minDataLines {
		return []RawClash{}
	}

	cols := InferColumns(strings.Split(lines[0], ","))

	clashes := make([]RawClash, 0, len(lines)-1)
	for i := 1; i < len(lines); i++ {
		row := TokenizeRow(lines[i])
		if len(row) < 2 {
			continue
		}
		clashes = append(clashes, buildClash(fmt.Sprintf("clash-%d", i), row, cols))
	}
	return clashes
}

// HeaderTokens returns the normalized header tokens of text, or nil when the
// text has no header line.
func HeaderTokens(text string) []string {
	lines := nonBlankLines(text)
	if len(lines) == 0 {
		return nil
	}
	raw := strings.Split(lines[0], ",")
	out := make([]string, len(raw))
	for i, h := range raw {
		out[i] = NormalizeHeader(h)
	}
	return out
}

func nonBlankLines(text string) []string {
	var lines []string
	for _, line := range lineSplit.Split(text, -1) {
		if strings.TrimSpace(line) != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

// TokenizeRow splits a data line into field values.
//
// Each comma-separated field (commas inside double quotes do not split) is
// kept when it is a double-quoted span or a bare run without whitespace;
// other fields, including empty ones, are dropped. When nothing survives the
// line falls back to a plain comma split.
func TokenizeRow(line string) []string {
	var tokens []string
	for _, field := range splitQuoted(line) {
		f := strings.TrimSpace(field)
		switch {
		case isQuotedSpan(f):
			tokens = append(tokens, strings.TrimSpace(f[1:len(f)-1]))
		case bareToken.MatchString(f):
			tokens = append(tokens, f)
		}
	}
	if len(tokens) > 0 {
		return tokens
	}

	parts := strings.Split(line, ",")
	for i, p := range parts {
		p = strings.TrimSpace(p)
		p = strings.TrimPrefix(strings.TrimSuffix(p, `"`), `"`)
		parts[i] = strings.TrimSpace(p)
	}
	return parts
}

// isQuotedSpan reports whether f is "..." with no quote inside.
func isQuotedSpan(f string) bool {
	if len(f) < 2 || f[0] != '"' || f[len(f)-1] != '"' {
		return false
	}
	return !strings.Contains(f[1:len(f)-1], `"`)
}

// splitQuoted splits on commas outside double quotes.
func splitQuoted(line string) []string {
	var fields []string
	var b strings.Builder
	inQuotes := false
	for _, r := range line {
		switch {
		case r == '"':
			inQuotes = !inQuotes
			b.WriteRune(r)
		case r == ',' && !inQuotes:
			fields = append(fields, b.String())
			b.Reset()
		default:
			b.WriteRune(r)
		}
	}
	return append(fields, b.String())
}

func buildClash(id string, row []string, cols ColumnMap) RawClash {
	return RawClash{
		ID:        id,
		TestName:  ImportedTestName,
		ClashName: resolve(row, cols, clashNameRule),
		Distance:  resolve(row, cols, distanceRule),
		Item1:     resolve(row, cols, item1Rule),
		Item2:     resolve(row, cols, item2Rule),
		Layer1:    resolve(row, cols, layer1Rule),
		Layer2:    resolve(row, cols, layer2Rule),
	}
}

func resolve(row []string, cols ColumnMap, rule fieldRule) string {
	if v := cell(row, cols.Index(rule.role)); v != "" {
		return v
	}
	for _, idx := range rule.fallbacks {
		if v := cell(row, idx); v != "" {
			return v
		}
	}
	return rule.placeholder
}

func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return row[idx]
}
