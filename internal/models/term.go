package models

import "fmt"

// Term identifies one of the three academic terms. The annual rollup is a
// separate, explicitly requested report and is never inferred from a term
// value.
type Term string

const (
	TermFirst  Term = "FIRST"
	TermSecond Term = "SECOND"
	TermThird  Term = "THIRD"
)

// Terms lists all terms in academic order.
func Terms() []Term {
	return []Term{TermFirst, TermSecond, TermThird}
}

// ParseTerm validates a raw term value.
func ParseTerm(raw string) (Term, error) {
	switch Term(raw) {
	case TermFirst, TermSecond, TermThird:
		return Term(raw), nil
	default:
		return "", fmt.Errorf("unknown term %q", raw)
	}
}
