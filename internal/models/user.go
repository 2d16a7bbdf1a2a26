package models

import "time"

// UserRole discriminates the single-table user hierarchy. Every row shares
// the embedded Person fields; role-specific columns stay nullable.
type UserRole string

const (
	RoleAdmin           UserRole = "ADMIN"
	RoleTeacher         UserRole = "TEACHER"
	RolePrivateCustomer UserRole = "PRIVATE_CUSTOMER"
	RoleClassCustomer   UserRole = "CLASS_CUSTOMER"
	RoleSchool          UserRole = "SCHOOL"
)

// IsCustomer reports whether the role books lessons (and therefore carries
// availability that constrains suggestions).
func (r UserRole) IsCustomer() bool {
	return r == RolePrivateCustomer || r == RoleClassCustomer
}

// Person is the shared value object of every user variant.
type Person struct {
	Salutation *string `db:"salutation" json:"salutation,omitempty"`
	FirstName  string  `db:"first_name" json:"first_name"`
	LastName   string  `db:"last_name" json:"last_name"`
	Email      string  `db:"email" json:"email"`
	Phone      *string `db:"phone" json:"phone,omitempty"`
	Street     *string `db:"street" json:"street,omitempty"`
	City       *string `db:"city" json:"city,omitempty"`
	PostalCode *string `db:"postal_code" json:"postal_code,omitempty"`
}

// User is a row of the role-tagged users table. Availability holds the
// canonical interval-set literal; new users start with the full-week
// sentinel and the value is replaced wholesale on every profile update.
type User struct {
	ID           int64    `db:"id" json:"id"`
	Role         UserRole `db:"role" json:"role"`
	Person       `json:"person"`
	PasswordHash *string `db:"password_hash" json:"-"`
	Availability string  `db:"availability" json:"availability"`
	Deleted      bool    `db:"deleted" json:"deleted"`

	// Teacher-only columns.
	ApplicationState *ApplicationState `db:"application_state" json:"application_state,omitempty"`
	Fee              *float64          `db:"fee" json:"fee,omitempty"`

	// Customer-only columns.
	SchoolID   *int64 `db:"school_id" json:"school_id,omitempty"`
	GradeLevel *int   `db:"grade_level" json:"grade_level,omitempty"`

	// School-only columns.
	SchoolName *string `db:"school_name" json:"school_name,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// UserFilter captures filtering criteria for listing users.
type UserFilter struct {
	Role      *UserRole
	Search    string
	Deleted   *bool
	SchoolID  *int64
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}

// ApplicationState tracks a teacher applicant through hiring.
//
// Allowed forward path, no skipping, no going back:
//
//	CREATED ──► INTERVIEW ──► APPLIED ──► CONTRACT ──► EMPLOYED
//
// Every state additionally permits staying in place (idempotent re-save).
type ApplicationState string

const (
	ApplicationCreated   ApplicationState = "CREATED"
	ApplicationInterview ApplicationState = "INTERVIEW"
	ApplicationApplied   ApplicationState = "APPLIED"
	ApplicationContract  ApplicationState = "CONTRACT"
	ApplicationEmployed  ApplicationState = "EMPLOYED"
)

var applicationTransitions = map[ApplicationState]ApplicationState{
	ApplicationCreated:   ApplicationInterview,
	ApplicationInterview: ApplicationApplied,
	ApplicationApplied:   ApplicationContract,
	ApplicationContract:  ApplicationEmployed,
	// EMPLOYED is terminal.
}

// ParseApplicationState converts a raw string, rejecting unknown values.
func ParseApplicationState(s string) (ApplicationState, bool) {
	st := ApplicationState(s)
	switch st {
	case ApplicationCreated, ApplicationInterview, ApplicationApplied, ApplicationContract, ApplicationEmployed:
		return st, true
	}
	return "", false
}

// CanTransition reports whether moving from s to the target is permitted.
func (s ApplicationState) CanTransition(to ApplicationState) bool {
	if s == to {
		return true
	}
	return applicationTransitions[s] == to
}

// AtLeast reports whether s has reached the given stage of the pipeline.
func (s ApplicationState) AtLeast(stage ApplicationState) bool {
	order := map[ApplicationState]int{
		ApplicationCreated:   0,
		ApplicationInterview: 1,
		ApplicationApplied:   2,
		ApplicationContract:  3,
		ApplicationEmployed:  4,
	}
	return order[s] >= order[stage]
}

// Effect is a side effect the core emits for the calling layer to execute;
// the state machines themselves perform no I/O.
type Effect string

const (
	EffectGrantAuthentication   Effect = "GRANT_AUTHENTICATION"
	EffectSendHiredNotification Effect = "SEND_HIRED_NOTIFICATION"
	EffectReissueCredentials    Effect = "REISSUE_CREDENTIALS"
)

// ApplicationEffects lists the effects bound to an application transition.
func ApplicationEffects(from, to ApplicationState) []Effect {
	if from == to {
		return nil
	}
	var effects []Effect
	if to == ApplicationContract {
		effects = append(effects, EffectGrantAuthentication)
	}
	if to == ApplicationEmployed {
		effects = append(effects, EffectSendHiredNotification)
	}
	return effects
}

// EmailChangeEffects lists the effects of changing a teacher's contact
// email in the given application state.
func EmailChangeEffects(state ApplicationState) []Effect {
	if state.AtLeast(ApplicationContract) {
		return []Effect{EffectReissueCredentials}
	}
	return nil
}
