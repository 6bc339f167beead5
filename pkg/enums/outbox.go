package enums

import "fmt"

// OutboxAggregateType maps to the aggregate_type enum in Postgres.
type OutboxAggregateType string

const (
	AggregateModeratedRequest OutboxAggregateType = "moderated_request"
	AggregateTransaction      OutboxAggregateType = "transaction"
	AggregateHospitalBooking  OutboxAggregateType = "hospital_booking"
	AggregateEvidence         OutboxAggregateType = "evidence"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateModeratedRequest,
	AggregateTransaction,
	AggregateHospitalBooking,
	AggregateEvidence,
}

// IsValid reports whether the value matches the canonical aggregate_type enum.
func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	for _, candidate := range validAggregateTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid aggregate type %q", value)
}

// OutboxEventType maps to the event_type enum in Postgres.
type OutboxEventType string

const (
	EventRequestSubmitted    OutboxEventType = "request.submitted"
	EventRequestDecided      OutboxEventType = "request.decided"
	EventTransferCompleted   OutboxEventType = "transfer.completed"
	EventConsultationPaid    OutboxEventType = "consultation.paid"
	EventHospitalBookingPaid OutboxEventType = "booking.paid"
	EventEvidenceReleased    OutboxEventType = "evidence.released"
)

var validOutboxEventTypes = []OutboxEventType{
	EventRequestSubmitted,
	EventRequestDecided,
	EventTransferCompleted,
	EventConsultationPaid,
	EventHospitalBookingPaid,
	EventEvidenceReleased,
}

// IsValid reports whether the value matches the canonical event_type enum.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event type %q", value)
}
