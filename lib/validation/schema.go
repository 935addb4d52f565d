package validation

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// ExplanationSchema is the JSON shape expected back from the explanation model.
var ExplanationSchema = `{
	"type": "object",
	"properties": {
		"summary": {"type": "string", "minLength": 1, "maxLength": 600},
		"movies": {
			"type": "array",
			"items": {
				"type": "object",
				"properties": {
					"movie_id": {"type": "integer", "minimum": 1},
					"reason": {"type": "string", "minLength": 1, "maxLength": 300}
				},
				"required": ["movie_id", "reason"],
				"additionalProperties": false
			},
			"maxItems": 100
		}
	},
	"required": ["summary"],
	"additionalProperties": false
}`

var explanationSchema = gojsonschema.NewStringLoader(ExplanationSchema)

// MovieReason is a per-movie explanation line.
type MovieReason struct {
	MovieID int    `json:"movie_id"`
	Reason  string `json:"reason"`
}

// Explanation is a validated explanation response.
type Explanation struct {
	Summary string        `json:"summary"`
	Movies  []MovieReason `json:"movies,omitempty"`
}

// ValidateExplanation checks raw JSON against ExplanationSchema.
func ValidateExplanation(jsonData []byte) error {
	result, err := gojsonschema.Validate(explanationSchema, gojsonschema.NewBytesLoader(jsonData))
	if err != nil {
		return fmt.Errorf("failed to validate JSON schema: %w", err)
	}

	if !result.Valid() {
		var msgs []string
		for _, desc := range result.Errors() {
			msgs = append(msgs, desc.String())
		}
		return fmt.Errorf("JSON validation failed: %s", strings.Join(msgs, "; "))
	}
	return nil
}

// ParseExplanation validates, decodes and tidies an explanation response.
// Reasons for movies outside allowed are dropped.
func ParseExplanation(jsonData []byte, allowed map[int]bool) (*Explanation, error) {
	if err := ValidateExplanation(jsonData); err != nil {
		return nil, err
	}

	var exp Explanation
	if err := json.Unmarshal(jsonData, &exp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal JSON: %w", err)
	}

	exp.Summary = strings.TrimSpace(exp.Summary)
	kept := exp.Movies[:0]
	for _, m := range exp.Movies {
		m.Reason = strings.TrimSpace(m.Reason)
		if m.Reason == "" || !allowed[m.MovieID] {
			continue
		}
		kept = append(kept, m)
	}
	exp.Movies = kept
	return &exp, nil
}
