package attempt

// Wire is the record as exchanged with the remote store. It carries no sync
// metadata.
type Wire struct {
	ID          string           `json:"id"`
	TS          int64            `json:"ts"`
	UserID      string           `json:"userId,omitempty"`
	BaseID      string           `json:"baseId"`
	Title       string           `json:"title,omitempty"`
	Kind        Kind             `json:"kind"`
	Mode        Mode             `json:"mode,omitempty"`
	Sections    *WireSections    `json:"sections"`
	Skills      map[string]Tally `json:"skills,omitempty"`
	CurvePreset string           `json:"curvePreset,omitempty"`
	UpdatedAt   int64            `json:"updatedAt,omitempty"`
}

type WireSections struct {
	RW   Tally `json:"rw"`
	Math Tally `json:"math"`
}

// Stamp mirrors Attempt.Stamp for wire records.
func (w Wire) Stamp() int64 {
	if w.UpdatedAt > 0 {
		return w.UpdatedAt
	}
	return w.TS
}

// ToWire strips sync metadata and scaled values.
func (a Attempt) ToWire() Wire {
	w := Wire{
		ID:          a.ID,
		TS:          a.TS,
		UserID:      a.UserID,
		BaseID:      a.BaseID,
		Title:       a.Title,
		Kind:        a.Kind,
		Mode:        a.Mode,
		Sections:    &WireSections{RW: a.Sections.RW.Tally(), Math: a.Sections.Math.Tally()},
		CurvePreset: a.CurvePreset,
		UpdatedAt:   a.UpdatedAt,
	}
	if len(a.Skills) > 0 {
		w.Skills = make(map[string]Tally, len(a.Skills))
		for k, v := range a.Skills {
			w.Skills[k] = v
		}
	}
	return w
}

// ToAttempt converts a wire record into a clean local record bound to its id.
func (w Wire) ToAttempt() Attempt {
	a := Attempt{
		ID:          w.ID,
		TS:          w.TS,
		UpdatedAt:   w.UpdatedAt,
		UserID:      w.UserID,
		BaseID:      w.BaseID,
		Title:       w.Title,
		Kind:        w.Kind,
		Mode:        w.Mode,
		CurvePreset: w.CurvePreset,
		Skills:      map[string]Tally{},
		Version:     SchemaVersion,
		RemoteID:    w.ID,
	}
	if a.UpdatedAt == 0 {
		a.UpdatedAt = a.TS
	}
	if w.Sections != nil {
		a.Sections.RW = SectionResult{Correct: w.Sections.RW.Correct, Total: w.Sections.RW.Total}
		a.Sections.Math = SectionResult{Correct: w.Sections.Math.Correct, Total: w.Sections.Math.Total}
	}
	for k, v := range w.Skills {
		a.Skills[k] = v
	}
	return a
}
