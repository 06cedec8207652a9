package scoring

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/mind-engage/dsat-sync/internal/attempt"
)

func TestScaleFullModeTotal(t *testing.T) {
	r := NewRegistry()
	a := attempt.Attempt{
		Mode:        attempt.ModeFull,
		CurvePreset: "default",
		Sections: attempt.Sections{
			RW:   attempt.SectionResult{Correct: 20, Total: 27},
			Math: attempt.SectionResult{Correct: 15, Total: 22},
		},
	}
	s := r.Scale(a, "")
	if s.RW == nil || *s.RW != 656 {
		t.Fatalf("rw scaled = %v; want 656", s.RW)
	}
	if s.Math == nil || *s.Math != 649 {
		t.Fatalf("math scaled = %v; want 649", s.Math)
	}
	if s.Total == nil || *s.Total != 1305 {
		t.Fatalf("total = %v; want 1305", s.Total)
	}
	if a.Sections.RW.Scaled != nil {
		t.Fatalf("Scale must not modify the input attempt")
	}
	if s.Attempt.Sections.RW.Scaled == nil {
		t.Fatalf("scaled copy should carry section scores")
	}
}

func TestScaleNoTotalOutsideFullMode(t *testing.T) {
	r := NewRegistry()
	for _, mode := range []attempt.Mode{attempt.ModeRW, attempt.ModeMath} {
		a := attempt.Attempt{
			Mode: mode,
			Sections: attempt.Sections{
				RW:   attempt.SectionResult{Correct: 10, Total: 10},
				Math: attempt.SectionResult{Correct: 10, Total: 10},
			},
		}
		if s := r.Scale(a, ""); s.Total != nil {
			t.Fatalf("mode %s produced total %d", mode, *s.Total)
		}
	}
}

func TestScaleMissingSection(t *testing.T) {
	r := NewRegistry()
	a := attempt.Attempt{Mode: attempt.ModeFull, Sections: attempt.Sections{RW: attempt.SectionResult{Correct: 5, Total: 10}}}
	s := r.Scale(a, "")
	if s.Math != nil {
		t.Fatalf("math with no questions must have no score")
	}
	if s.Total != nil {
		t.Fatalf("total needs both sections")
	}
}

func TestChoosePrecedence(t *testing.T) {
	r := NewRegistry()
	hard := Preset{Name: "hard", RW: C([2]float64{0, 200}, [2]float64{100, 700}), Math: C([2]float64{0, 200}, [2]float64{100, 700})}
	if err := r.Register(hard); err != nil {
		t.Fatal(err)
	}
	a := attempt.Attempt{CurvePreset: "hard"}

	if got := r.Choose("", a).Name; got != "hard" {
		t.Fatalf("attempt preset: got %s", got)
	}
	if got := r.Choose("default", a).Name; got != "default" {
		t.Fatalf("view preset: got %s", got)
	}
	if got := r.Choose("nope", attempt.Attempt{CurvePreset: "gone"}).Name; got != "default" {
		t.Fatalf("fallback: got %s", got)
	}
}

func TestRegistryDeleteAndNames(t *testing.T) {
	r := NewRegistry()
	if err := r.Delete("default"); !errors.Is(err, ErrProtectedPreset) {
		t.Fatalf("want ErrProtectedPreset, got %v", err)
	}
	if err := r.Delete("missing"); !errors.Is(err, ErrUnknownPreset) {
		t.Fatalf("want ErrUnknownPreset, got %v", err)
	}
	_ = r.Register(Preset{Name: "b", RW: Linear.RW, Math: Linear.Math})
	_ = r.Register(Preset{Name: "a", RW: Linear.RW, Math: Linear.Math})
	names := r.Names()
	if len(names) != 3 || names[0] != "default" || names[1] != "a" || names[2] != "b" {
		t.Fatalf("names = %v", names)
	}
	if err := r.Register(Preset{Name: "empty"}); err == nil {
		t.Fatalf("empty curves should be rejected")
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "curves.json")
	body := `{"june": {"rw": [[0,200],[100,790]], "math": [[0,210],[100,800]]}}`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	r := NewRegistry()
	n, err := r.LoadFile(path)
	if err != nil || n != 1 {
		t.Fatalf("LoadFile = %d, %v", n, err)
	}
	p, ok := r.Get("june")
	if !ok || p.RW[1].Y != 790 {
		t.Fatalf("june preset = %+v", p)
	}
}
