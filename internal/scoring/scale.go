package scoring

import "github.com/mind-engage/dsat-sync/internal/attempt"

// Scaled is an attempt with scaled section scores filled in for display.
// Total is only set for full-mode runs where both sections scored.
type Scaled struct {
	Attempt attempt.Attempt `json:"attempt"`
	Preset  string          `json:"preset"`
	RW      *int            `json:"rw"`
	Math    *int            `json:"math"`
	Total   *int            `json:"total"`
}

// Scale evaluates an attempt's raw tallies under the preset chosen for view.
// The attempt itself is not modified.
func (r *Registry) Scale(a attempt.Attempt, view string) Scaled {
	p := r.Choose(view, a)
	out := Scaled{Attempt: a.Clone(), Preset: p.Name}
	out.RW = scaledSection(p.RW, a.Sections.RW)
	out.Math = scaledSection(p.Math, a.Sections.Math)
	out.Attempt.Sections.RW.Scaled = out.RW
	out.Attempt.Sections.Math.Scaled = out.Math
	out.Total = Total(a.Mode, out.RW, out.Math)
	return out
}

func scaledSection(c Curve, s attempt.SectionResult) *int {
	v, ok := ScaledFromCurve(c, s.Correct, s.Total)
	if !ok {
		return nil
	}
	return &v
}

// Total is the composite score. It exists only for full runs with both
// sections scored.
func Total(mode attempt.Mode, rw, math *int) *int {
	if mode == "" {
		mode = attempt.ModeFull
	}
	if mode != attempt.ModeFull || rw == nil || math == nil {
		return nil
	}
	t := *rw + *math
	return &t
}
