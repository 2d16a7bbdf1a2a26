package dto

// CreateLeaveRequest files an absence. UserID may be omitted when a
// teacher files for themselves; admins set it explicitly.
type CreateLeaveRequest struct {
	UserID    int64  `json:"user_id,omitempty"`
	Type      string `json:"type" validate:"required,oneof=REGULAR SICK"`
	StartDate string `json:"start_date" validate:"required"`
	EndDate   string `json:"end_date" validate:"required"`
}

// UpdateLeaveRequest edits a pending leave.
type UpdateLeaveRequest struct {
	Type      string `json:"type" validate:"required,oneof=REGULAR SICK"`
	StartDate string `json:"start_date" validate:"required"`
	EndDate   string `json:"end_date" validate:"required"`
}
