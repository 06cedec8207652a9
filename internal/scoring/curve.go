package scoring

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
)

// Point is one (raw, scaled) pair. It encodes as a two-element JSON array.
type Point struct {
	X float64
	Y float64
}

func (p Point) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]float64{p.X, p.Y})
}

func (p *Point) UnmarshalJSON(b []byte) error {
	var pair []float64
	if err := json.Unmarshal(b, &pair); err != nil {
		return fmt.Errorf("curve point: %w", err)
	}
	if len(pair) != 2 {
		return fmt.Errorf("curve point: want [x,y], got %d values", len(pair))
	}
	p.X, p.Y = pair[0], pair[1]
	return nil
}

// Curve is a piecewise-linear raw to scaled lookup table. Points may be given
// in any order.
type Curve []Point

var ErrEmptyCurve = errors.New("curve has no points")

// C builds a curve from literal pairs.
func C(pairs ...[2]float64) Curve {
	c := make(Curve, len(pairs))
	for i, p := range pairs {
		c[i] = Point{X: p[0], Y: p[1]}
	}
	return c
}

func (c Curve) Validate() error {
	if len(c) == 0 {
		return ErrEmptyCurve
	}
	for _, p := range c {
		if math.IsNaN(p.X) || math.IsNaN(p.Y) || math.IsInf(p.X, 0) || math.IsInf(p.Y, 0) {
			return fmt.Errorf("curve point [%v,%v] is not finite", p.X, p.Y)
		}
	}
	return nil
}

func (c Curve) sorted() Curve {
	out := make(Curve, len(c))
	copy(out, c)
	sort.SliceStable(out, func(i, j int) bool { return out[i].X < out[j].X })
	return out
}

// MaxX is the largest raw key on the curve.
func (c Curve) MaxX() float64 {
	m := math.Inf(-1)
	for _, p := range c {
		if p.X > m {
			m = p.X
		}
	}
	return m
}

// Interp evaluates the curve at x: flat below the first point and above the
// last, linear in between, rounded half up.
func Interp(c Curve, x float64) int {
	if len(c) == 0 {
		return 0
	}
	pts := c.sorted()
	if x <= pts[0].X {
		return round(pts[0].Y)
	}
	last := pts[len(pts)-1]
	if x >= last.X {
		return round(last.Y)
	}
	for i := 0; i < len(pts)-1; i++ {
		a, b := pts[i], pts[i+1]
		if x >= a.X && x <= b.X {
			if b.X == a.X {
				return round(b.Y)
			}
			t := (x - a.X) / (b.X - a.X)
			return round(a.Y + t*(b.Y-a.Y))
		}
	}
	return round(last.Y)
}

// ScaledFromCurve maps correct/total onto the curve. The second result is
// false when there is no score: nothing was answered or the curve is empty.
//
// Curves keyed at or below 100 are read as percentages; larger keys are raw
// correct counts.
func ScaledFromCurve(c Curve, correct, total int) (int, bool) {
	if total <= 0 || len(c) == 0 {
		return 0, false
	}
	x := float64(correct)
	if c.MaxX() <= 100 {
		x = float64(correct) / float64(total) * 100
	}
	return Interp(c, x), true
}

func round(v float64) int { return int(math.Floor(v + 0.5)) }
