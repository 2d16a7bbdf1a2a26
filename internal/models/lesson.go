package models

import "time"

// LessonState tracks one concrete occurrence of a contract.
type LessonState string

const (
	LessonIdle      LessonState = "IDLE"
	LessonHeld      LessonState = "HELD"
	LessonPostponed LessonState = "POSTPONED"
)

// ParseLessonState converts a raw string, rejecting unknown values.
func ParseLessonState(s string) (LessonState, bool) {
	st := LessonState(s)
	switch st {
	case LessonIdle, LessonHeld, LessonPostponed:
		return st, true
	}
	return "", false
}

// Lesson is one calendar occurrence of a contract, unique per
// (contract_id, date). Occurrences are materialized by recurrence
// expansion and cancelled (never deleted) when the contract's dates stop
// covering them.
type Lesson struct {
	ID         int64       `db:"id" json:"id"`
	ContractID int64       `db:"contract_id" json:"contract_id"`
	Date       time.Time   `db:"date" json:"date"`
	State      LessonState `db:"state" json:"state"`
	Notes      *string     `db:"notes" json:"notes,omitempty"`
	CreatedAt  time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time   `db:"updated_at" json:"updated_at"`
}

// LessonFilter narrows lesson listings.
type LessonFilter struct {
	ContractID *int64
	TeacherID  *int64
	DateFrom   *time.Time
	DateTo     *time.Time
	State      *LessonState
}
