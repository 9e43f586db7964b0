package classify

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/JonMunkholm/clashtriage/internal/core"
)

func TestBuildPrompt(t *testing.T) {
	batch := []core.RawClash{{
		ID:        "clash-1",
		TestName:  "Imported Test",
		ClashName: "Secret name",
		Item1:     "Duct A",
		Item2:     `Beam "W12"`,
		Distance:  "-0.05",
		Layer1:    "L1",
		Layer2:    "L2",
	}}

	prompt, err := BuildPrompt(batch)
	if err != nil {
		t.Fatalf("BuildPrompt() error = %v", err)
	}

	if !strings.HasPrefix(prompt, "Analyze the following list of BIM clashes.") {
		t.Errorf("prompt missing preamble:\n%s", prompt)
	}
	if strings.Contains(prompt, "Secret name") || strings.Contains(prompt, "Imported Test") {
		t.Error("prompt leaks clash or test name")
	}

	start := strings.Index(prompt, "[")
	var got []map[string]string
	if err := json.Unmarshal([]byte(prompt[start:]), &got); err != nil {
		t.Fatalf("prompt payload is not JSON: %v\n%s", err, prompt)
	}
	want := []map[string]string{{
		"id":       "clash-1",
		"item1":    "Duct A",
		"item2":    `Beam "W12"`,
		"distance": "-0.05",
		"layer1":   "L1",
		"layer2":   "L2",
	}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("payload mismatch (-want +got):\n%s", diff)
	}
}

func TestParseResponse(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		want    []core.ClassificationResult
		wantErr bool
	}{
		{
			name: "results envelope",
			text: `{"results":[{"id":"clash-1","severity":"Critical","responsibility":"MEP","description":"Duct hits beam","reasoning":"hard"}]}`,
			want: []core.ClassificationResult{{
				ID: "clash-1", Severity: core.SeverityCritical, Responsibility: core.DisciplineMEP,
				Description: "Duct hits beam", Reasoning: "hard",
			}},
		},
		{
			name: "code fence and case-insensitive enums",
			text: "```json\n{\"results\":[{\"id\":\"clash-2\",\"severity\":\"design issue\",\"responsibility\":\"structure\",\"description\":\" Move door \"}]}\n```",
			want: []core.ClassificationResult{{
				ID: "clash-2", Severity: core.SeverityDesignIssue, Responsibility: core.DisciplineStructure,
				Description: "Move door",
			}},
		},
		{
			name: "bare array",
			text: `[{"id":"clash-3","severity":"False Clash","responsibility":"Architecture","description":"Penetration"}]`,
			want: []core.ClassificationResult{{
				ID: "clash-3", Severity: core.SeverityFalseClash, Responsibility: core.DisciplineArchitecture,
				Description: "Penetration",
			}},
		},
		{
			name: "unknown enums and missing ids",
			text: `{"results":[{"id":"clash-4","severity":"Severe","responsibility":"Plumbing"},{"severity":"Critical"}]}`,
			want: []core.ClassificationResult{{
				ID: "clash-4", Severity: core.SeverityUnknown, Responsibility: core.DisciplineUnknown,
			}},
		},
		{
			name: "empty results",
			text: `{"results":[]}`,
			want: []core.ClassificationResult{},
		},
		{
			name:    "empty text",
			text:    "  ",
			wantErr: true,
		},
		{
			name:    "not json",
			text:    "I could not classify these clashes.",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseResponse(tt.text)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseResponse() = %v, want error", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseResponse() error = %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("ParseResponse() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
