package dto

import "github.com/MichelBusse/erp-system-schuelertreff-sub001/internal/schedule"

// PersonPayload carries the shared fields of every user variant.
type PersonPayload struct {
	Salutation *string `json:"salutation,omitempty"`
	FirstName  string  `json:"first_name" validate:"required"`
	LastName   string  `json:"last_name" validate:"required"`
	Email      string  `json:"email" validate:"required,email"`
	Phone      *string `json:"phone,omitempty"`
	Street     *string `json:"street,omitempty"`
	City       *string `json:"city,omitempty"`
	PostalCode *string `json:"postal_code,omitempty"`
}

// CreateTeacherRequest registers a teacher applicant.
type CreateTeacherRequest struct {
	PersonPayload
	Fee        *float64 `json:"fee,omitempty"`
	SubjectIDs []int64  `json:"subject_ids,omitempty"`
}

// UpdateTeacherRequest replaces a teacher's profile. Availability is
// replaced wholesale on every update; an empty slot list means "always
// available".
type UpdateTeacherRequest struct {
	PersonPayload
	Fee          *float64            `json:"fee,omitempty"`
	SubjectIDs   []int64             `json:"subject_ids,omitempty"`
	Availability []schedule.TimeSlot `json:"availability"`
}

// ApplicationStateRequest advances a teacher applicant.
type ApplicationStateRequest struct {
	State string `json:"state" validate:"required"`
}

// CreateCustomerRequest registers a private or class customer.
type CreateCustomerRequest struct {
	PersonPayload
	Role       string `json:"role" validate:"required,oneof=PRIVATE_CUSTOMER CLASS_CUSTOMER"`
	SchoolID   *int64 `json:"school_id,omitempty"`
	GradeLevel *int   `json:"grade_level,omitempty"`
}

// UpdateCustomerRequest replaces a customer's profile and availability.
type UpdateCustomerRequest struct {
	PersonPayload
	SchoolID     *int64              `json:"school_id,omitempty"`
	GradeLevel   *int                `json:"grade_level,omitempty"`
	Availability []schedule.TimeSlot `json:"availability"`
}

// CreateSchoolRequest registers a school account.
type CreateSchoolRequest struct {
	PersonPayload
	SchoolName string `json:"school_name" validate:"required"`
}

// SubjectPayload creates or updates a subject.
type SubjectPayload struct {
	Name      string `json:"name" validate:"required"`
	Shorthand string `json:"shorthand" validate:"required"`
	Color     string `json:"color,omitempty"`
}
