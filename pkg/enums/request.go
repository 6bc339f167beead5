package enums

import "fmt"

// RequestKind maps to the request_kind enum in Postgres.
type RequestKind string

const (
	RequestKindDeposit             RequestKind = "deposit"
	RequestKindWithdrawal          RequestKind = "withdrawal"
	RequestKindHospitalWithdrawal  RequestKind = "hospital_withdrawal"
	RequestKindDoctorApplication   RequestKind = "doctor_application"
	RequestKindHospitalApplication RequestKind = "hospital_application"
	RequestKindLoan                RequestKind = "loan"
)

var validRequestKinds = []RequestKind{
	RequestKindDeposit,
	RequestKindWithdrawal,
	RequestKindHospitalWithdrawal,
	RequestKindDoctorApplication,
	RequestKindHospitalApplication,
	RequestKindLoan,
}

// String implements fmt.Stringer.
func (k RequestKind) String() string {
	return string(k)
}

// IsValid reports whether the value matches the canonical request_kind enum.
func (k RequestKind) IsValid() bool {
	for _, candidate := range validRequestKinds {
		if candidate == k {
			return true
		}
	}
	return false
}

// MovesMoney reports whether approving a request of this kind touches a balance.
func (k RequestKind) MovesMoney() bool {
	switch k {
	case RequestKindDeposit, RequestKindWithdrawal, RequestKindHospitalWithdrawal:
		return true
	default:
		return false
	}
}

// HasAmount reports whether a request of this kind carries a requested
// amount. Loans do but never touch a balance on approval.
func (k RequestKind) HasAmount() bool {
	return k.MovesMoney() || k == RequestKindLoan
}

// ParseRequestKind converts raw input into RequestKind.
func ParseRequestKind(value string) (RequestKind, error) {
	for _, candidate := range validRequestKinds {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid request kind %q", value)
}

// RequestStatus maps to the request_status enum in Postgres.
type RequestStatus string

const (
	RequestStatusPending  RequestStatus = "pending"
	RequestStatusApproved RequestStatus = "approved"
	RequestStatusRejected RequestStatus = "rejected"
)

var validRequestStatuses = []RequestStatus{
	RequestStatusPending,
	RequestStatusApproved,
	RequestStatusRejected,
}

// String implements fmt.Stringer.
func (s RequestStatus) String() string {
	return string(s)
}

// IsValid reports whether the value matches the canonical request_status enum.
func (s RequestStatus) IsValid() bool {
	for _, candidate := range validRequestStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transition is allowed.
func (s RequestStatus) IsTerminal() bool {
	return s == RequestStatusApproved || s == RequestStatusRejected
}

// ParseRequestStatus converts raw input into RequestStatus.
func ParseRequestStatus(value string) (RequestStatus, error) {
	for _, candidate := range validRequestStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid request status %q", value)
}

// RequestDecision is the moderator verdict applied to a pending request.
type RequestDecision string

const (
	RequestDecisionApprove RequestDecision = "approve"
	RequestDecisionReject  RequestDecision = "reject"
)

// IsValid reports whether the decision is supported.
func (d RequestDecision) IsValid() bool {
	return d == RequestDecisionApprove || d == RequestDecisionReject
}

// Status returns the terminal status the decision produces.
func (d RequestDecision) Status() RequestStatus {
	if d == RequestDecisionApprove {
		return RequestStatusApproved
	}
	return RequestStatusRejected
}
