package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// AnswerMap maps question IDs to the submitted answer text or option ID.
// Stored as a JSONB column.
type AnswerMap map[string]string

// Value implements driver.Valuer.
func (a AnswerMap) Value() (driver.Value, error) {
	if a == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(a)
}

// Scan implements sql.Scanner.
func (a *AnswerMap) Scan(src interface{}) error {
	if src == nil {
		*a = AnswerMap{}
		return nil
	}
	raw, ok := src.([]byte)
	if !ok {
		return fmt.Errorf("answer map: unexpected type %T", src)
	}
	return json.Unmarshal(raw, a)
}

// Attempt is one student's sitting of an exam. Answers are frozen on
// submission; the coarse score stays nil until graded.
type Attempt struct {
	ID             string     `db:"id" json:"id"`
	StudentID      string     `db:"student_id" json:"student_id"`
	ExamID         string     `db:"exam_id" json:"exam_id"`
	Answers        AnswerMap  `db:"answers" json:"answers"`
	Score          *float64   `db:"score" json:"score,omitempty"`
	TabSwitchCount int        `db:"tab_switch_count" json:"tab_switch_count"`
	StartedAt      time.Time  `db:"started_at" json:"started_at"`
	SubmittedAt    *time.Time `db:"submitted_at" json:"submitted_at,omitempty"`
}

// Submitted reports whether the attempt's answers are frozen.
func (a *Attempt) Submitted() bool {
	return a.SubmittedAt != nil
}
