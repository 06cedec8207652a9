package attempt

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// SchemaVersion is the current on-disk record version.
const SchemaVersion = 1

type Kind string

const (
	KindBase   Kind = "base"
	KindReview Kind = "review"
)

func (k Kind) Valid() bool { return k == KindBase || k == KindReview }

// Mode says which sections were in scope for the run.
type Mode string

const (
	ModeFull Mode = "full"
	ModeRW   Mode = "rw"
	ModeMath Mode = "math"
)

func (m Mode) Valid() bool { return m == ModeFull || m == ModeRW || m == ModeMath }

// Section tags used by modules and skills.
const (
	SectionRW   = "rw"
	SectionMath = "math"
)

type Tally struct {
	Correct int `json:"correct"`
	Total   int `json:"total"`
}

// SectionResult holds the raw tally for one section. Scaled is only set on
// read; it stays nil when nothing was answered.
type SectionResult struct {
	Correct int  `json:"correct"`
	Total   int  `json:"total"`
	Scaled  *int `json:"scaled,omitempty"`
}

func (s SectionResult) Tally() Tally { return Tally{Correct: s.Correct, Total: s.Total} }

type Sections struct {
	RW   SectionResult `json:"rw"`
	Math SectionResult `json:"math"`
}

// Attempt is one finalized practice session as kept on the device.
type Attempt struct {
	ID          string           `json:"id"`
	TS          int64            `json:"ts"`
	UpdatedAt   int64            `json:"updatedAt"`
	UserID      string           `json:"userId,omitempty"`
	BaseID      string           `json:"baseId"`
	Title       string           `json:"title,omitempty"`
	Kind        Kind             `json:"kind"`
	Mode        Mode             `json:"mode"`
	Sections    Sections         `json:"sections"`
	Skills      map[string]Tally `json:"skills"`
	CurvePreset string           `json:"curvePreset,omitempty"`
	Version     int              `json:"version,omitempty"`

	// sync metadata
	Dirty        bool   `json:"_dirty"`
	RemoteID     string `json:"_remoteId,omitempty"`
	LastPushedAt int64  `json:"_lastPushedAt,omitempty"`
}

// Stamp is the record's conflict timestamp: updatedAt, or ts when unset.
func (a Attempt) Stamp() int64 {
	if a.UpdatedAt > 0 {
		return a.UpdatedAt
	}
	return a.TS
}

// Bound reports whether the record is already tied to a remote id.
func (a Attempt) Bound() bool { return a.RemoteID != "" }

// Owner returns the record's user, falling back to the given one.
func (a Attempt) Owner(fallback string) string {
	if a.UserID != "" {
		return a.UserID
	}
	return fallback
}

// NewID returns a fresh random attempt id.
func NewID() string { return uuid.NewString() }

var unsafeIDChars = regexp.MustCompile(`[^\w-]`)

// CompositeID builds the fallback id for a record that somehow lost its own.
func CompositeID(userID, baseID string, kind Kind, ts int64) string {
	if userID == "" {
		userID = "u"
	}
	return fmt.Sprintf("loc_%s_%s_%s_%d", userID, unsafeIDChars.ReplaceAllString(baseID, "_"), kind, ts)
}

// CompositeKey identifies a record by content when no remote id is bound.
func CompositeKey(a Attempt, userID string) string {
	return fmt.Sprintf("u:%s|b:%s|k:%s|ts:%d", a.Owner(userID), a.BaseID, a.Kind, a.TS)
}

// MergeKey is the identity used to match local and remote copies.
func MergeKey(a Attempt, userID string) string {
	if a.RemoteID != "" {
		return "rid:" + a.RemoteID
	}
	return CompositeKey(a, userID)
}

// Clone returns a copy that shares no maps or pointers with a.
func (a Attempt) Clone() Attempt {
	out := a
	if a.Skills != nil {
		out.Skills = make(map[string]Tally, len(a.Skills))
		for k, v := range a.Skills {
			out.Skills[k] = v
		}
	}
	out.Sections.RW.Scaled = cloneInt(a.Sections.RW.Scaled)
	out.Sections.Math.Scaled = cloneInt(a.Sections.Math.Scaled)
	return out
}

func cloneInt(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// SkillCode normalizes a tag into a skill key; empty means skip.
func SkillCode(tag string) string { return strings.TrimSpace(tag) }
