package recorder

import (
	"bytes"
	"encoding/json"
	"strconv"

	"github.com/mind-engage/dsat-sync/internal/attempt"
	"github.com/mind-engage/dsat-sync/internal/grading"
)

// Session is the finalized state handed over by the practice-session engine.
type Session struct {
	SetID       string                `json:"setId"`
	ParentID    string                `json:"parentId,omitempty"`
	Title       string                `json:"title,omitempty"`
	CurvePreset string                `json:"curvePreset,omitempty"`
	Review      bool                  `json:"review,omitempty"`
	Mode        attempt.Mode          `json:"mode,omitempty"`
	UserID      string                `json:"userId,omitempty"`
	Modules     []Module              `json:"modules"`
	Responses   map[string]FlexString `json:"responses"`
}

// Module is one timed block; Section is "rw" or "math".
type Module struct {
	Section   string     `json:"section"`
	Questions []Question `json:"questions"`
}

type Question struct {
	ID            string       `json:"id"`
	Type          string       `json:"type"`
	Answer        FlexString   `json:"answer,omitempty"`
	AnswerNumeric *float64     `json:"answerNumeric,omitempty"`
	Tolerance     float64      `json:"tolerance,omitempty"`
	AltNumeric    []FlexString `json:"altNumeric,omitempty"`
	Skills        []string     `json:"skills,omitempty"`
	Tags          []string     `json:"tags,omitempty"`
	Topics        []string     `json:"topics,omitempty"`
}

func (q Question) gradingQ() grading.Q {
	alts := make([]string, len(q.AltNumeric))
	for i, a := range q.AltNumeric {
		alts[i] = string(a)
	}
	return grading.Q{
		Type:          q.Type,
		Answer:        string(q.Answer),
		AnswerNumeric: q.AnswerNumeric,
		Tolerance:     q.Tolerance,
		AltNumeric:    alts,
	}
}

// SkillCodes returns the question's skill tags, first non-empty list of
// skills, tags, topics; trimmed and deduplicated.
func (q Question) SkillCodes() []string {
	raw := q.Skills
	if len(raw) == 0 {
		raw = q.Tags
	}
	if len(raw) == 0 {
		raw = q.Topics
	}
	seen := make(map[string]bool, len(raw))
	out := make([]string, 0, len(raw))
	for _, s := range raw {
		code := attempt.SkillCode(s)
		if code == "" || seen[code] {
			continue
		}
		seen[code] = true
		out = append(out, code)
	}
	return out
}

// FlexString accepts a JSON string or number. Choice keys and responses
// show up as both.
type FlexString string

func (f *FlexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*f = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = FlexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = FlexString(n.String())
	return nil
}

func (f FlexString) MarshalJSON() ([]byte, error) {
	if _, err := strconv.ParseFloat(string(f), 64); err == nil && json.Valid([]byte(f)) {
		return []byte(f), nil
	}
	return json.Marshal(string(f))
}
