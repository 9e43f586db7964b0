package classify

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/JonMunkholm/clashtriage/internal/core"
)

// SystemInstruction is sent with every batch.
const SystemInstruction = `You are Zaki, an expert BIM Coordination Manager with 20 years of experience in Navisworks and Clash Detection.
Your goal is to triage raw clash data from Navisworks into actionable categories.

Classify each clash into one of these Severities:
- Critical: Hard clashes (e.g., Duct hitting Beam, Pipe hitting Column). Immediate action required.
- Design Issue: Layout conflicts, access issues, or logical errors (e.g., Door opening into wall).
- Tolerance Issue: Minor overlaps (less than 25mm) or insulation clashes that can be resolved onsite or ignored.
- False Clash: Metadata errors, intentional overlaps (e.g., Pipe inside Slab penetration), or phantom clashes.

Assign Responsibility to:
- Architecture
- Structure
- MEP

Provide a concise, technical description (max 15 words) suitable for a BIM report.
`

// formatInstruction spells out the response shape for providers without a
// response schema.
const formatInstruction = `
Respond with JSON only, no prose and no code fences, in exactly this shape:
{"results":[{"id":"<clash id>","severity":"Critical|Design Issue|Tolerance Issue|False Clash","responsibility":"Architecture|Structure|MEP","description":"<max 15 words>","reasoning":"<short justification>"}]}
Return one result per clash id.`

var errEmptyResponse = errors.New("empty classification response")

// promptClash is the subset of a clash the model sees. Clash and test names
// are not sent.
type promptClash struct {
	ID       string `json:"id"`
	Item1    string `json:"item1"`
	Item2    string `json:"item2"`
	Distance string `json:"distance"`
	Layer1   string `json:"layer1"`
	Layer2   string `json:"layer2"`
}

// BuildPrompt renders the user prompt for one batch.
func BuildPrompt(batch []core.RawClash) (string, error) {
	items := make([]promptClash, len(batch))
	for i, c := range batch {
		items[i] = promptClash{
			ID:       c.ID,
			Item1:    c.Item1,
			Item2:    c.Item2,
			Distance: c.Distance,
			Layer1:   c.Layer1,
			Layer2:   c.Layer2,
		}
	}

	data, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal clashes: %w", err)
	}

	var b strings.Builder
	b.WriteString("Analyze the following list of BIM clashes. Return a JSON object with a 'results' array.\n\n")
	b.WriteString("Clashes to analyze:\n")
	b.Write(data)
	b.WriteString("\n")
	return b.String(), nil
}

type wireResult struct {
	ID             string `json:"id"`
	Severity       string `json:"severity"`
	Responsibility string `json:"responsibility"`
	Description    string `json:"description"`
	Reasoning      string `json:"reasoning"`
}

// ParseResponse decodes a model response into classification results.
//
// Markdown code fences are tolerated, as is a bare array instead of the
// {"results": [...]} object. Enum values match case-insensitively and
// unrecognised values become Unknown. Results without an id are dropped.
func ParseResponse(text string) ([]core.ClassificationResult, error) {
	text = stripCodeFence(text)
	if text == "" {
		return nil, errEmptyResponse
	}

	var wire []wireResult
	var envelope struct {
		Results []wireResult `json:"results"`
	}
	if err := json.Unmarshal([]byte(text), &envelope); err == nil {
		wire = envelope.Results
	} else if arrErr := json.Unmarshal([]byte(text), &wire); arrErr != nil {
		return nil, fmt.Errorf("decode classification response: %w", err)
	}

	results := make([]core.ClassificationResult, 0, len(wire))
	for _, w := range wire {
		id := strings.TrimSpace(w.ID)
		if id == "" {
			continue
		}
		results = append(results, core.ClassificationResult{
			ID:             id,
			Severity:       core.ParseSeverity(w.Severity),
			Responsibility: core.ParseDiscipline(w.Responsibility),
			Description:    strings.TrimSpace(w.Description),
			Reasoning:      strings.TrimSpace(w.Reasoning),
		})
	}
	return results, nil
}

func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```JSON")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
