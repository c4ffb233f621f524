package models

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// WeightPolicy defines the maximum raw marks each component may carry.
// Raw inputs are expected on these maxima; the combined total lives on a
// 100-point scale.
type WeightPolicy struct {
	CAMax   float64
	ExamMax float64
}

// DefaultWeightPolicy is the conventional 40/60 split.
func DefaultWeightPolicy() WeightPolicy {
	return WeightPolicy{CAMax: 40, ExamMax: 60}
}

// Validate checks the policy is usable.
func (p WeightPolicy) Validate() error {
	if p.CAMax <= 0 || p.ExamMax <= 0 {
		return fmt.Errorf("component maxima must be positive")
	}
	return nil
}

// GradeBand is one letter with its inclusive lower bound.
type GradeBand struct {
	Letter   string
	MinScore float64
}

// GradeScale is an ordered letter threshold table, highest bound first.
type GradeScale struct {
	Bands []GradeBand
}

// DefaultGradeScale returns the conventional A-F thresholds.
func DefaultGradeScale() GradeScale {
	return GradeScale{Bands: []GradeBand{
		{Letter: "A", MinScore: 70},
		{Letter: "B", MinScore: 60},
		{Letter: "C", MinScore: 50},
		{Letter: "D", MinScore: 40},
		{Letter: "F", MinScore: 0},
	}}
}

// ParseGradeScale reads a "A:70,B:60,..." specification. Bands are sorted
// by bound descending; the lowest band catches everything below it.
func ParseGradeScale(raw string) (GradeScale, error) {
	if strings.TrimSpace(raw) == "" {
		return DefaultGradeScale(), nil
	}
	parts := strings.Split(raw, ",")
	bands := make([]GradeBand, 0, len(parts))
	for _, part := range parts {
		pair := strings.SplitN(strings.TrimSpace(part), ":", 2)
		if len(pair) != 2 {
			return GradeScale{}, fmt.Errorf("malformed grade band %q", part)
		}
		bound, err := strconv.ParseFloat(strings.TrimSpace(pair[1]), 64)
		if err != nil {
			return GradeScale{}, fmt.Errorf("malformed grade bound %q: %w", pair[1], err)
		}
		bands = append(bands, GradeBand{Letter: strings.TrimSpace(pair[0]), MinScore: bound})
	}
	sort.Slice(bands, func(i, j int) bool { return bands[i].MinScore > bands[j].MinScore })
	return GradeScale{Bands: bands}, nil
}

// LetterFor maps a 0-100 score to its letter.
func (s GradeScale) LetterFor(score float64) string {
	for _, band := range s.Bands {
		if score >= band.MinScore {
			return band.Letter
		}
	}
	if len(s.Bands) == 0 {
		return ""
	}
	return s.Bands[len(s.Bands)-1].Letter
}
