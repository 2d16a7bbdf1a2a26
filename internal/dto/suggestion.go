package dto

import "github.com/MichelBusse/erp-system-schuelertreff-sub001/internal/schedule"

// SuggestionRequest asks the availability matcher for feasible weekly
// windows per candidate teacher. Dates use "2006-01-02", clock times
// "HH:MM". When StartTime/EndTime are set, only windows containing that
// exact sub-window are returned (validation of a manual choice).
type SuggestionRequest struct {
	SubjectID         int64   `json:"subject_id" validate:"required"`
	CustomerIDs       []int64 `json:"customer_ids" validate:"required,min=1"`
	StartTime         string  `json:"start_time,omitempty"`
	EndTime           string  `json:"end_time,omitempty"`
	Weekday           int     `json:"weekday,omitempty" validate:"omitempty,min=1,max=5"`
	IntervalWeeks     int     `json:"interval_weeks,omitempty" validate:"omitempty,min=1,max=4"`
	StartDate         string  `json:"start_date,omitempty"`
	EndDate           string  `json:"end_date,omitempty"`
	ExcludeContracts  []int64 `json:"exclude_contracts,omitempty"`
	OriginalTeacherID *int64  `json:"original_teacher_id,omitempty"`
}

// TeacherSuggestion groups the feasible windows of one candidate. The
// unassigned candidate uses teacher id -1 and is always present.
type TeacherSuggestion struct {
	TeacherID int64               `json:"teacher_id"`
	FirstName string              `json:"first_name,omitempty"`
	LastName  string              `json:"last_name,omitempty"`
	Windows   []schedule.TimeSlot `json:"windows"`
}
