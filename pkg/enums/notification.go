package enums

import "fmt"

// NotificationType maps to the notification_type enum in Postgres.
type NotificationType string

const (
	NotificationTypeRequestUpdate  NotificationType = "request_update"
	NotificationTypeWalletActivity NotificationType = "wallet_activity"
	NotificationTypeBooking        NotificationType = "booking"
	NotificationTypeSystem         NotificationType = "system"
)

var validNotificationTypes = []NotificationType{
	NotificationTypeRequestUpdate,
	NotificationTypeWalletActivity,
	NotificationTypeBooking,
	NotificationTypeSystem,
}

// IsValid checks whether the given type matches the canonical enum.
func (n NotificationType) IsValid() bool {
	for _, candidate := range validNotificationTypes {
		if candidate == n {
			return true
		}
	}
	return false
}

// ParseNotificationType converts raw strings into NotificationType.
func ParseNotificationType(value string) (NotificationType, error) {
	for _, candidate := range validNotificationTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid notification type %q", value)
}

// EmailType names the template the external email dispatcher renders.
type EmailType string

const (
	EmailDepositReceived       EmailType = "deposit_received"
	EmailDepositApproved       EmailType = "deposit_approved"
	EmailDepositRejected       EmailType = "deposit_rejected"
	EmailWithdrawReceived      EmailType = "withdraw_received"
	EmailWithdrawApproved      EmailType = "withdraw_approved"
	EmailWithdrawRejected      EmailType = "withdraw_rejected"
	EmailDoctorRequestReceived EmailType = "doctor_request_received"
	EmailDoctorRequestApproved EmailType = "doctor_request_approved"
	EmailDoctorRequestRejected EmailType = "doctor_request_rejected"
	EmailTransferSent          EmailType = "transfer_sent"
	EmailTransferReceived      EmailType = "transfer_received"
)

var validEmailTypes = []EmailType{
	EmailDepositReceived,
	EmailDepositApproved,
	EmailDepositRejected,
	EmailWithdrawReceived,
	EmailWithdrawApproved,
	EmailWithdrawRejected,
	EmailDoctorRequestReceived,
	EmailDoctorRequestApproved,
	EmailDoctorRequestRejected,
	EmailTransferSent,
	EmailTransferReceived,
}

// IsValid checks whether the email type is one the dispatcher understands.
func (e EmailType) IsValid() bool {
	for _, candidate := range validEmailTypes {
		if candidate == e {
			return true
		}
	}
	return false
}
