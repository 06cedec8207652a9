package recorder

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mind-engage/dsat-sync/internal/attempt"
	"github.com/mind-engage/dsat-sync/internal/grading"
)

// Appender is the slice of the local store the recorder writes to.
type Appender interface {
	Append(ctx context.Context, a attempt.Attempt) error
}

type Clock func() time.Time

// Recorder turns a finished session into a dirty Attempt. It stores raw
// tallies only; scaling happens when attempts are read.
type Recorder struct {
	Store  Appender
	Grader grading.Grader
	Now    Clock
}

func New(store Appender) *Recorder {
	return &Recorder{Store: store, Grader: grading.NewDefaultGrader(), Now: time.Now}
}

// Record builds the attempt and appends it to the store.
func (r *Recorder) Record(ctx context.Context, s Session) (attempt.Attempt, error) {
	a := r.Build(s)
	if err := r.Store.Append(ctx, a); err != nil {
		return attempt.Attempt{}, fmt.Errorf("record attempt %s: %w", a.ID, err)
	}
	return a, nil
}

// Build is Record without the write.
func (r *Recorder) Build(s Session) attempt.Attempt {
	g := r.Grader
	if g == nil {
		g = grading.NewDefaultGrader()
	}
	now := time.Now
	if r.Now != nil {
		now = r.Now
	}
	ts := now().UnixMilli()

	kind := attempt.KindBase
	if s.Review {
		kind = attempt.KindReview
	}
	mode := s.Mode
	if mode == "" {
		mode = attempt.ModeFull
	}
	preset := s.CurvePreset
	if preset == "" {
		preset = attempt.DefaultPreset
	}
	baseID := BaseID(s)

	a := attempt.Attempt{
		ID:          attempt.CompositeID(s.UserID, baseID, kind, ts),
		TS:          ts,
		UpdatedAt:   ts,
		UserID:      s.UserID,
		BaseID:      baseID,
		Title:       s.Title,
		Kind:        kind,
		Mode:        mode,
		Skills:      map[string]attempt.Tally{},
		CurvePreset: preset,
		Version:     attempt.SchemaVersion,
		Dirty:       true,
	}

	for _, m := range s.Modules {
		var sec *attempt.SectionResult
		switch strings.ToLower(strings.TrimSpace(m.Section)) {
		case attempt.SectionRW:
			sec = &a.Sections.RW
		case attempt.SectionMath:
			sec = &a.Sections.Math
		}
		for _, q := range m.Questions {
			ok := g.Grade(q.gradingQ(), string(s.Responses[q.ID])).Correct
			if sec != nil {
				sec.Total++
				if ok {
					sec.Correct++
				}
			}
			for _, code := range q.SkillCodes() {
				t := a.Skills[code]
				t.Total++
				if ok {
					t.Correct++
				}
				a.Skills[code] = t
			}
		}
	}
	return a
}

// BaseID names the practice set an attempt belongs to. Review sessions
// report under their parent set.
func BaseID(s Session) string {
	if s.Review {
		if s.ParentID != "" {
			return s.ParentID
		}
		return "base"
	}
	if s.SetID != "" {
		return s.SetID
	}
	if s.Title != "" {
		return s.Title
	}
	return "base"
}
