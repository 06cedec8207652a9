package scoring

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/mind-engage/dsat-sync/internal/attempt"
)

// Preset pairs the two section curves under one name.
type Preset struct {
	Name string `json:"-"`
	RW   Curve  `json:"rw"`
	Math Curve  `json:"math"`
}

func (p Preset) Validate() error {
	if p.Name == "" {
		return errors.New("preset name is empty")
	}
	if err := p.RW.Validate(); err != nil {
		return fmt.Errorf("preset %s rw: %w", p.Name, err)
	}
	if err := p.Math.Validate(); err != nil {
		return fmt.Errorf("preset %s math: %w", p.Name, err)
	}
	return nil
}

// DefaultCurves is the built-in "default" preset.
var DefaultCurves = Preset{
	Name: attempt.DefaultPreset,
	RW:   C([2]float64{0, 200}, [2]float64{20, 300}, [2]float64{40, 400}, [2]float64{60, 550}, [2]float64{80, 700}, [2]float64{100, 800}),
	Math: C([2]float64{0, 200}, [2]float64{20, 300}, [2]float64{40, 450}, [2]float64{60, 600}, [2]float64{80, 720}, [2]float64{100, 800}),
}

// Linear is the last-resort preset used if "default" is ever missing.
var Linear = Preset{
	Name: "linear",
	RW:   C([2]float64{0, 200}, [2]float64{100, 800}),
	Math: C([2]float64{0, 200}, [2]float64{100, 800}),
}

var (
	ErrUnknownPreset   = errors.New("unknown curve preset")
	ErrProtectedPreset = errors.New("default preset cannot be removed")
)

// Registry holds named presets. The zero value is not usable; call NewRegistry.
type Registry struct {
	mu      sync.RWMutex
	presets map[string]Preset
}

func NewRegistry() *Registry {
	return &Registry{presets: map[string]Preset{DefaultCurves.Name: DefaultCurves}}
}

func (r *Registry) Register(p Preset) error {
	if err := p.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.presets[p.Name] = p
	return nil
}

func (r *Registry) Delete(name string) error {
	if name == attempt.DefaultPreset {
		return ErrProtectedPreset
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.presets[name]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownPreset, name)
	}
	delete(r.presets, name)
	return nil
}

func (r *Registry) Get(name string) (Preset, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.presets[name]
	return p, ok
}

// Names returns preset names sorted, "default" first.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.presets))
	for n := range r.presets {
		if n != attempt.DefaultPreset {
			out = append(out, n)
		}
	}
	sort.Strings(out)
	if _, ok := r.presets[attempt.DefaultPreset]; ok {
		out = append([]string{attempt.DefaultPreset}, out...)
	}
	return out
}

// Choose picks the curves for an attempt: the view's preset when it is known,
// else the preset recorded on the attempt, else "default".
func (r *Registry) Choose(view string, a attempt.Attempt) Preset {
	for _, name := range []string{view, a.CurvePreset, attempt.DefaultPreset} {
		if name == "" {
			continue
		}
		if p, ok := r.Get(name); ok {
			return p
		}
	}
	return Linear
}

// LoadFile registers every preset in a JSON file shaped as
// {"name": {"rw": [[x,y],...], "math": [[x,y],...]}}.
func (r *Registry) LoadFile(path string) (int, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	var doc map[string]Preset
	if err := json.Unmarshal(b, &doc); err != nil {
		return 0, fmt.Errorf("parse %s: %w", path, err)
	}
	names := make([]string, 0, len(doc))
	for n := range doc {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		p := doc[n]
		p.Name = n
		if err := r.Register(p); err != nil {
			return 0, err
		}
	}
	return len(names), nil
}
