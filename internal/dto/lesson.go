package dto

// UpdateLessonRequest records the outcome of one occurrence.
type UpdateLessonRequest struct {
	State string  `json:"state" validate:"required,oneof=IDLE HELD POSTPONED"`
	Notes *string `json:"notes,omitempty"`
}
