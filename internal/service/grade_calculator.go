package service

import (
	"fmt"
	"math"

	"github.com/rcplaneboss/gradebook-api/internal/models"
	appErrors "github.com/rcplaneboss/gradebook-api/pkg/errors"
)

// CombinedGrade is the output of combining a CA and an exam score.
type CombinedGrade struct {
	TotalScore *float64
	Grade      *string
}

// ComputeSubjectGrade combines a continuous-assessment score and an exam
// score under the weighting policy. A nil component leaves the subject
// pending: the total and letter stay nil so "not yet graded" can never be
// mistaken for zero. Out-of-range component inputs are rejected; only the
// combined total is clamped to [0, 100], as a guard against upstream
// rounding drift.
func ComputeSubjectGrade(ca, exam *float64, policy models.WeightPolicy, scale models.GradeScale) (CombinedGrade, error) {
	if err := policy.Validate(); err != nil {
		return CombinedGrade{}, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid weight policy")
	}
	if ca != nil {
		if *ca < 0 || *ca > policy.CAMax {
			return CombinedGrade{}, appErrors.Clone(appErrors.ErrValidation,
				fmt.Sprintf("continuous assessment %.2f outside [0, %.2f]", *ca, policy.CAMax))
		}
	}
	if exam != nil {
		if *exam < 0 || *exam > policy.ExamMax {
			return CombinedGrade{}, appErrors.Clone(appErrors.ErrValidation,
				fmt.Sprintf("examination %.2f outside [0, %.2f]", *exam, policy.ExamMax))
		}
	}
	if ca == nil || exam == nil {
		return CombinedGrade{}, nil
	}

	total := roundScore(math.Min(math.Max(*ca+*exam, 0), 100))
	letter := scale.LetterFor(total)
	return CombinedGrade{TotalScore: &total, Grade: &letter}, nil
}

// RescaleComponent maps a raw component sum onto the policy maximum for
// that component. Raw scores come from question maxima which rarely add up
// to the configured component maximum.
func RescaleComponent(raw, rawMax float64, component models.GradeComponent, policy models.WeightPolicy) (float64, error) {
	if rawMax <= 0 {
		return 0, appErrors.Clone(appErrors.ErrValidation, "raw maximum must be positive")
	}
	if raw < 0 || raw > rawMax {
		return 0, appErrors.Clone(appErrors.ErrValidation,
			fmt.Sprintf("raw score %.2f outside [0, %.2f]", raw, rawMax))
	}
	var target float64
	switch component {
	case models.ComponentCA:
		target = policy.CAMax
	case models.ComponentExam:
		target = policy.ExamMax
	default:
		return 0, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown component %q", component))
	}
	return roundScore(raw / rawMax * target), nil
}

func roundScore(v float64) float64 {
	return math.RoundToEven(v*100) / 100
}
