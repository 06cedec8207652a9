package attempt

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
)

// ErrMalformed marks a remote or imported record that cannot be turned into
// an Attempt. Callers drop such records and keep going.
var ErrMalformed = errors.New("malformed attempt")

// DefaultPreset is the curve preset recorded when none was chosen.
const DefaultPreset = "default"

// UnknownSet is the base id given to records that carry none.
const UnknownSet = "UNKNOWN_SET"

// Normalize turns one remote or legacy JSON record into the local shape.
// Older server payloads used setId/runMode/finishedAt/rawScore; those are
// absorbed here and nowhere else.
func Normalize(raw []byte) (Attempt, error) {
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return Attempt{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if m == nil {
		return Attempt{}, fmt.Errorf("%w: not an object", ErrMalformed)
	}
	return NormalizeMap(m)
}

func NormalizeMap(m map[string]any) (Attempt, error) {
	ts, ok := number(m["ts"])
	if !ok || ts <= 0 {
		ts, ok = seconds(m["finishedAt"])
	}
	if !ok || ts <= 0 {
		ts, ok = seconds(m["createdAt"])
	}
	if !ok || ts <= 0 {
		return Attempt{}, fmt.Errorf("%w: no timestamp", ErrMalformed)
	}

	a := Attempt{
		TS:          ts,
		UserID:      str(m, "userId"),
		BaseID:      str(m, "baseId", "setId", "set_id"),
		Title:       str(m, "title", "setTitle"),
		Kind:        Kind(str(m, "kind")),
		Mode:        Mode(str(m, "mode", "runMode")),
		CurvePreset: str(m, "curvePreset"),
		Skills:      map[string]Tally{},
		Version:     SchemaVersion,
	}
	if a.BaseID == "" {
		a.BaseID = UnknownSet
	}
	if a.Title == "" {
		a.Title = a.BaseID
	}
	if a.Kind == "" {
		a.Kind = KindBase
	}
	if !a.Kind.Valid() {
		return Attempt{}, fmt.Errorf("%w: kind %q", ErrMalformed, a.Kind)
	}
	if a.Mode == "" {
		a.Mode = ModeFull
	}
	if !a.Mode.Valid() {
		return Attempt{}, fmt.Errorf("%w: mode %q", ErrMalformed, a.Mode)
	}
	if a.CurvePreset == "" {
		a.CurvePreset = DefaultPreset
	}

	sec := firstMap(m, "sections", "rawScore", "raw")
	if sec != nil {
		rw, err := tally(sec[SectionRW])
		if err != nil {
			return Attempt{}, fmt.Errorf("%w: sections.rw: %v", ErrMalformed, err)
		}
		mt, err := tally(sec[SectionMath])
		if err != nil {
			return Attempt{}, fmt.Errorf("%w: sections.math: %v", ErrMalformed, err)
		}
		a.Sections.RW = SectionResult{Correct: rw.Correct, Total: rw.Total}
		a.Sections.Math = SectionResult{Correct: mt.Correct, Total: mt.Total}
	}

	if sk, ok := m["skills"].(map[string]any); ok {
		for code, v := range sk {
			t, err := tally(v)
			if err != nil {
				return Attempt{}, fmt.Errorf("%w: skills.%s: %v", ErrMalformed, code, err)
			}
			if code = SkillCode(code); code != "" {
				a.Skills[code] = t
			}
		}
	}

	a.UpdatedAt, ok = number(m["updatedAt"])
	if !ok || a.UpdatedAt <= 0 {
		a.UpdatedAt = a.TS
	}
	a.ID = str(m, "id")
	a.RemoteID = str(m, "_remoteId", "id")
	if a.ID == "" {
		a.ID = fmt.Sprintf("%s_%s_%d", a.BaseID, a.Kind, a.TS)
	}
	return a, nil
}

func str(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := m[k].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

func firstMap(m map[string]any, keys ...string) map[string]any {
	for _, k := range keys {
		if v, ok := m[k].(map[string]any); ok {
			return v
		}
	}
	return nil
}

func number(v any) (int64, bool) {
	switch n := v.(type) {
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return 0, false
		}
		return int64(n), true
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0, false
		}
		return int64(f), true
	case int:
		return int64(n), true
	case int64:
		return n, true
	}
	return 0, false
}

// seconds reads a {seconds: n} timestamp object and returns epoch millis.
func seconds(v any) (int64, bool) {
	m, ok := v.(map[string]any)
	if !ok {
		return 0, false
	}
	s, ok := number(m["seconds"])
	if !ok {
		s, ok = number(m["_seconds"])
	}
	if !ok {
		return 0, false
	}
	return s * 1000, true
}

func tally(v any) (Tally, error) {
	if v == nil {
		return Tally{}, nil
	}
	m, ok := v.(map[string]any)
	if !ok {
		return Tally{}, errors.New("not an object")
	}
	var t Tally
	for _, f := range []struct {
		key string
		dst *int
	}{{"correct", &t.Correct}, {"total", &t.Total}} {
		raw, present := m[f.key]
		if !present || raw == nil {
			continue
		}
		n, ok := number(raw)
		if !ok || n < 0 {
			return Tally{}, fmt.Errorf("%s is not a count", f.key)
		}
		*f.dst = int(n)
	}
	if t.Correct > t.Total {
		return Tally{}, errors.New("correct exceeds total")
	}
	return t, nil
}
