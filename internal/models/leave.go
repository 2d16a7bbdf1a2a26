package models

import "time"

// LeaveType distinguishes planned absence from sickness.
type LeaveType string

const (
	LeaveRegular LeaveType = "REGULAR"
	LeaveSick    LeaveType = "SICK"
)

// LeaveState gates the leave approval flow. A leave is editable only
// while pending; acceptance triggers the lesson cancellation cascade.
type LeaveState string

const (
	LeavePending  LeaveState = "PENDING"
	LeaveAccepted LeaveState = "ACCEPTED"
	LeaveDeclined LeaveState = "DECLINED"
)

// ParseLeaveState converts a raw string, rejecting unknown values.
func ParseLeaveState(s string) (LeaveState, bool) {
	st := LeaveState(s)
	switch st {
	case LeavePending, LeaveAccepted, LeaveDeclined:
		return st, true
	}
	return "", false
}

// Leave is a user's absence over an inclusive date range.
type Leave struct {
	ID             int64      `db:"id" json:"id"`
	UserID         int64      `db:"user_id" json:"user_id"`
	Type           LeaveType  `db:"type" json:"type"`
	State          LeaveState `db:"state" json:"state"`
	StartDate      time.Time  `db:"start_date" json:"start_date"`
	EndDate        time.Time  `db:"end_date" json:"end_date"`
	AttachmentPath *string    `db:"attachment_path" json:"attachment_path,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updated_at"`
}
