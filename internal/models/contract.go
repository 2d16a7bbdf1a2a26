package models

import "time"

// ContractState gates a recurring teaching engagement.
//
//	PENDING ──► ACCEPTED
//	    │
//	    └─────► DECLINED
//
// ACCEPTED and DECLINED are terminal; a substitute child contract is
// created instead of reopening a settled one.
type ContractState string

const (
	ContractPending  ContractState = "PENDING"
	ContractAccepted ContractState = "ACCEPTED"
	ContractDeclined ContractState = "DECLINED"
)

var contractTransitions = map[ContractState][]ContractState{
	ContractPending: {ContractAccepted, ContractDeclined},
	// ACCEPTED and DECLINED have no outgoing transitions.
}

// ParseContractState converts a raw string, rejecting unknown values.
func ParseContractState(s string) (ContractState, bool) {
	st := ContractState(s)
	switch st {
	case ContractPending, ContractAccepted, ContractDeclined:
		return st, true
	}
	return "", false
}

// CanTransition reports whether moving from s to the target is permitted.
// Staying in place is always allowed.
func (s ContractState) CanTransition(to ContractState) bool {
	if s == to {
		return true
	}
	for _, allowed := range contractTransitions[s] {
		if allowed == to {
			return true
		}
	}
	return false
}

// UnassignedTeacherID is the payload sentinel for "accept now, assign a
// teacher later"; it maps to a NULL teacher column.
const UnassignedTeacherID int64 = -1

// ContractType distinguishes in-person from online engagements.
type ContractType string

const (
	ContractStandard ContractType = "STANDARD"
	ContractOnline   ContractType = "ONLINE"
)

// Contract is a recurring teaching engagement. Weekday is derived from
// StartDate (Monday=1..Friday=5); TeacherID stays nil while the contract
// waits for assignment. Rows are only soft-deleted once every occurrence
// lies in the past.
type Contract struct {
	ID               int64         `db:"id" json:"id"`
	SubjectID        int64         `db:"subject_id" json:"subject_id"`
	TeacherID        *int64        `db:"teacher_id" json:"teacher_id,omitempty"`
	Weekday          int           `db:"weekday" json:"weekday"`
	StartTime        string        `db:"start_time" json:"start_time"`
	EndTime          string        `db:"end_time" json:"end_time"`
	StartDate        time.Time     `db:"start_date" json:"start_date"`
	EndDate          *time.Time    `db:"end_date" json:"end_date,omitempty"`
	IntervalWeeks    int           `db:"interval_weeks" json:"interval_weeks"`
	State            ContractState `db:"state" json:"state"`
	ContractType     ContractType  `db:"contract_type" json:"contract_type"`
	ParentContractID *int64        `db:"parent_contract_id" json:"parent_contract_id,omitempty"`
	SchoolID         *int64        `db:"school_id" json:"school_id,omitempty"`
	Deleted          bool          `db:"deleted" json:"deleted"`
	CreatedAt        time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time     `db:"updated_at" json:"updated_at"`

	// CustomerIDs come from the contract_customers join table.
	CustomerIDs []int64 `db:"-" json:"customer_ids"`
}

// ContractFilter narrows contract listings.
type ContractFilter struct {
	TeacherID  *int64
	CustomerID *int64
	SubjectID  *int64
	State      *ContractState
	Deleted    *bool
	Page       int
	PageSize   int
}
