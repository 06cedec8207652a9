package grading

import (
	"strconv"
	"strings"
)

// Q is the slice of a question needed to decide correctness.
type Q struct {
	Type string

	// Answer is the key for choice questions, usually a choice index.
	Answer string

	// Grid-in keys. AnswerNumeric is compared within Tolerance; AltNumeric
	// lists accepted spellings such as "3/4".
	AnswerNumeric *float64
	Tolerance     float64
	AltNumeric    []string
}

// Result is the outcome of grading a single response.
type Result struct {
	Answered    bool
	Correct     bool
	NeedsManual bool
}

// Strategy grades one question type.
type Strategy interface {
	Grade(q Q, response string) Result
}

// Grader routes by question type to the correct Strategy.
type Grader interface {
	Grade(q Q, response string) Result
}

type defaultGrader struct {
	strategies map[string]Strategy
}

func (g *defaultGrader) Grade(q Q, response string) Result {
	s, ok := g.strategies[strings.ToLower(q.Type)]
	if !ok {
		return Result{Answered: strings.TrimSpace(response) != "", NeedsManual: true}
	}
	return s.Grade(q, response)
}

// NewDefaultGrader installs built-in strategies.
func NewDefaultGrader() Grader {
	return &defaultGrader{
		strategies: map[string]Strategy{
			"mcq":        choiceStrategy{},
			"mcq_single": choiceStrategy{},
			"true_false": choiceStrategy{},
			"gridin":     gridInStrategy{},
			"grid_in":    gridInStrategy{},
			"numeric":    gridInStrategy{},
		},
	}
}

// --- Strategies ---

type choiceStrategy struct{}

func (choiceStrategy) Grade(q Q, response string) Result {
	resp := strings.TrimSpace(response)
	if resp == "" {
		return Result{}
	}
	res := Result{Answered: true}
	key := strings.TrimSpace(q.Answer)
	if resp == key {
		res.Correct = true
		return res
	}
	// "2" and "2.0" name the same choice
	rv, rErr := strconv.ParseFloat(resp, 64)
	kv, kErr := strconv.ParseFloat(key, 64)
	res.Correct = rErr == nil && kErr == nil && rv == kv
	return res
}
