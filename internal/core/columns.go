package core

import (
	"regexp"
	"strings"
)

// ColumnRole is the semantic meaning inferred for a CSV column.
type ColumnRole string

const (
	RoleClashName ColumnRole = "clashName"
	RoleDistance  ColumnRole = "distance"
	RoleItem1     ColumnRole = "item1"
	RoleItem2     ColumnRole = "item2"
	RoleLayer1    ColumnRole = "layer1"
	RoleLayer2    ColumnRole = "layer2"
)

// ColumnMap maps a semantic role to its column index. Roles with no matching
// header are absent.
type ColumnMap map[ColumnRole]int

// Index returns the column index for role, or -1 when the role is unmapped.
func (m ColumnMap) Index(role ColumnRole) int {
	if idx, ok := m[role]; ok {
		return idx
	}
	return -1
}

// roleRule assigns role when a header contains every one of its terms.
type roleRule struct {
	role  ColumnRole
	terms []string
}

// roleRules are evaluated in order; the first match for a header wins.
var roleRules = []roleRule{
	{RoleClashName, []string{"clash", "name"}},
	{RoleDistance, []string{"distance"}},
	{RoleItem1, []string{"item 1", "name"}},
	{RoleItem2, []string{"item 2", "name"}},
	{RoleLayer1, []string{"item 1", "layer"}},
	{RoleLayer2, []string{"item 2", "layer"}},
}

// itemDigit splits "item1" into "item 1" so both spellings match the rules.
var itemDigit = regexp.MustCompile(`item\s*(\d)`)

// NormalizeHeader lower-cases, trims and strips quote characters from a
// header token.
func NormalizeHeader(h string) string {
	h = strings.ToLower(strings.TrimSpace(h))
	h = strings.NewReplacer(`"`, "", `'`, "").Replace(h)
	h = itemDigit.ReplaceAllString(h, "item $1")
	return strings.TrimSpace(h)
}

// InferColumns assigns semantic roles to header tokens by substring matching.
// Unmatched headers are ignored. A bare "name" header is taken as the clash
// name when no header mentions "clash".
func InferColumns(headers []string) ColumnMap {
	cols := make(ColumnMap)
	bareName := -1

	for i, raw := range headers {
		h := NormalizeHeader(raw)
		if h == "name" && bareName < 0 {
			bareName = i
			continue
		}
		for _, rule := range roleRules {
			if containsAll(h, rule.terms) {
				cols[rule.role] = i
				break
			}
		}
	}

	if _, ok := cols[RoleClashName]; !ok && bareName >= 0 {
		cols[RoleClashName] = bareName
	}
	return cols
}

func containsAll(s string, terms []string) bool {
	for _, t := range terms {
		if !strings.Contains(s, t) {
			return false
		}
	}
	return true
}
