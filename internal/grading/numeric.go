package grading

import (
	"math"
	"strconv"
	"strings"
)

// gridInStrategy accepts a numeric response within tolerance of AnswerNumeric,
// or a response matching one of AltNumeric with whitespace ignored.
type gridInStrategy struct{}

func (gridInStrategy) Grade(q Q, response string) Result {
	if strings.TrimSpace(response) == "" {
		return Result{}
	}
	res := Result{Answered: true}

	if q.AnswerNumeric != nil {
		if rv, ok := parseFloatLoose(response); ok {
			tol := q.Tolerance
			if tol < 0 {
				tol = 0
			}
			if math.Abs(rv-*q.AnswerNumeric) <= tol {
				res.Correct = true
				return res
			}
		}
	}

	want := stripSpace(response)
	for _, alt := range q.AltNumeric {
		if stripSpace(alt) == want {
			res.Correct = true
			return res
		}
	}
	return res
}

func parseFloatLoose(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if v, err := strconv.ParseFloat(s, 64); err == nil {
		return v, true
	}
	if sp := strings.Fields(s); len(sp) > 0 {
		if v, err := strconv.ParseFloat(sp[0], 64); err == nil {
			return v, true
		}
	}
	return 0, false
}

func stripSpace(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '\n', '\r', '\v', '\f':
			return -1
		}
		return r
	}, s)
}
