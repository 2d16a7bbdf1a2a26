package dto

// ContractPayload creates or replaces a contract. TeacherID -1 means
// "accept now, assign later". Dates use "2006-01-02", times "HH:MM" on a
// 5-minute grid with a minimum duration of 30 minutes; the weekday is
// derived from StartDate and must fall on Monday through Friday.
type ContractPayload struct {
	SubjectID         int64   `json:"subject_id" validate:"required"`
	CustomerIDs       []int64 `json:"customer_ids" validate:"required,min=1"`
	TeacherID         int64   `json:"teacher_id" validate:"required"`
	IntervalWeeks     int     `json:"interval_weeks" validate:"required,min=1,max=4"`
	StartDate         string  `json:"start_date" validate:"required"`
	EndDate           string  `json:"end_date,omitempty"`
	StartTime         string  `json:"start_time" validate:"required"`
	EndTime           string  `json:"end_time" validate:"required"`
	ContractType      string  `json:"contract_type,omitempty"`
	ParentContractID  *int64  `json:"parent_contract_id,omitempty"`
	InitialContractID *int64  `json:"initial_contract_id,omitempty"`
	SchoolID          *int64  `json:"school_id,omitempty"`
}

// ContractStateRequest triggers an explicit accept/decline.
type ContractStateRequest struct {
	State string `json:"state" validate:"required"`
}
