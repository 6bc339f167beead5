package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/angelmondragon/medledger-backend/pkg/db/models"
	"github.com/angelmondragon/medledger-backend/pkg/enums"
	"github.com/angelmondragon/medledger-backend/pkg/logger"
	"github.com/angelmondragon/medledger-backend/pkg/money"
	"github.com/angelmondragon/medledger-backend/pkg/outbox"
	"github.com/angelmondragon/medledger-backend/pkg/outbox/payloads"
)

const ledgerNotificationConsumer = "ledger-notifications"

type repository interface {
	Create(ctx context.Context, notification *models.Notification) error
}

type recipientDirectory interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// EmailSender delivers templated emails. *Mailer implements it.
type EmailSender interface {
	Send(ctx context.Context, emailType enums.EmailType, recipient string, data map[string]any) error
}

type processedTracker interface {
	CheckAndMarkProcessed(ctx context.Context, consumer string, eventID uuid.UUID) (bool, error)
	Delete(ctx context.Context, consumer string, eventID uuid.UUID) error
}

// Consumer turns ledger events into in-app notifications and emails.
type Consumer struct {
	repo         repository
	users        recipientDirectory
	mail         EmailSender
	subscription *pubsub.Subscriber
	idempotency  processedTracker
	logg         *logger.Logger
}

// NewConsumer builds the ledger notification consumer. mail may be nil, in
// which case only in-app notifications are written.
func NewConsumer(repo repository, users recipientDirectory, mail EmailSender, subscription *pubsub.Subscriber, tracker processedTracker, logg *logger.Logger) (*Consumer, error) {
	if repo == nil {
		return nil, fmt.Errorf("notifications repository required")
	}
	if users == nil {
		return nil, fmt.Errorf("user directory required")
	}
	if subscription == nil {
		return nil, fmt.Errorf("notification subscription required")
	}
	if tracker == nil {
		return nil, fmt.Errorf("idempotency manager required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Consumer{
		repo:         repo,
		users:        users,
		mail:         mail,
		subscription: subscription,
		idempotency:  tracker,
		logg:         logg,
	}, nil
}

// Run starts the consumer loop until the context is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		result := c.process(ctx, msg)
		if result.nack {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

type processResult struct {
	ack  bool
	nack bool
}

// notice is one recipient's view of an event.
type notice struct {
	userID    uuid.UUID
	kind      enums.NotificationType
	title     string
	message   string
	link      string
	email     enums.EmailType
	emailData map[string]any
}

func (c *Consumer) process(ctx context.Context, msg *pubsub.Message) processResult {
	eventType := enums.OutboxEventType(msg.Attributes["event_type"])
	logCtx := c.logg.WithFields(ctx, map[string]any{
		"message_id": msg.ID,
		"event_type": eventType,
	})

	if !handled(eventType) {
		c.logg.Debug(logCtx, "skipping event without notifications")
		return processResult{ack: true}
	}

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(msg.Data, &envelope); err != nil {
		c.logg.Error(logCtx, "failed to decode envelope", err)
		return processResult{ack: true}
	}

	eventID, err := uuid.Parse(envelope.EventID)
	if err != nil {
		c.logg.Error(logCtx, "invalid event id", err)
		return processResult{ack: true}
	}
	logCtx = c.logg.WithField(logCtx, "event_id", eventID.String())

	already, err := c.idempotency.CheckAndMarkProcessed(ctx, ledgerNotificationConsumer, eventID)
	if err != nil {
		c.logg.Error(logCtx, "idempotency check failed", err)
		return processResult{nack: true}
	}
	if already {
		c.logg.Info(logCtx, "event already processed")
		return processResult{ack: true}
	}

	notices, err := buildNotices(eventType, envelope.Data)
	if err != nil {
		// Malformed payloads will never decode; keep the mark so redelivery is skipped.
		c.logg.Error(logCtx, "failed to parse payload", err)
		return processResult{ack: true}
	}

	for _, n := range notices {
		if err := c.deliver(ctx, logCtx, n); err != nil {
			c.logg.Error(logCtx, "notification handling failed", err)
			if delErr := c.idempotency.Delete(ctx, ledgerNotificationConsumer, eventID); delErr != nil {
				c.logg.Error(logCtx, "failed to clear idempotency key", delErr)
			}
			return processResult{nack: true}
		}
	}
	return processResult{ack: true}
}

// deliver writes the in-app row and then sends the email. Email failures are
// logged only; the row is the record of the notice.
func (c *Consumer) deliver(ctx, logCtx context.Context, n notice) error {
	if n.userID == uuid.Nil {
		return errors.New("recipient missing")
	}
	notification := &models.Notification{
		UserID:  n.userID,
		Type:    n.kind,
		Title:   n.title,
		Message: n.message,
	}
	if n.link != "" {
		notification.Link = stringPtr(n.link)
	}
	if err := c.repo.Create(ctx, notification); err != nil {
		return err
	}

	if n.email == "" || c.mail == nil {
		return nil
	}
	recipientCtx := c.logg.WithFields(logCtx, map[string]any{
		"user_id":    n.userID.String(),
		"email_type": n.email,
	})
	user, err := c.users.FindByID(ctx, n.userID)
	if err != nil {
		c.logg.Warn(c.logg.WithField(recipientCtx, "error", err.Error()), "email recipient lookup failed")
		return nil
	}
	if err := c.mail.Send(ctx, n.email, user.Email, n.emailData); err != nil {
		c.logg.Warn(c.logg.WithField(recipientCtx, "error", err.Error()), "email dispatch failed")
	}
	return nil
}

func handled(eventType enums.OutboxEventType) bool {
	switch eventType {
	case enums.EventRequestSubmitted,
		enums.EventRequestDecided,
		enums.EventTransferCompleted,
		enums.EventConsultationPaid,
		enums.EventHospitalBookingPaid:
		return true
	default:
		return false
	}
}

func buildNotices(eventType enums.OutboxEventType, data json.RawMessage) ([]notice, error) {
	switch eventType {
	case enums.EventRequestSubmitted:
		var payload payloads.RequestSubmittedEvent
		if err := json.Unmarshal(data, &payload); err != nil {
			return nil, err
		}
		return submittedNotices(payload), nil
	case enums.EventRequestDecided:
		var payload payloads.RequestDecidedEvent
		if err := json.Unmarshal(data, &payload); err != nil {
			return nil, err
		}
		return decidedNotices(payload), nil
	case enums.EventTransferCompleted:
		var payload payloads.TransferCompletedEvent
		if err := json.Unmarshal(data, &payload); err != nil {
			return nil, err
		}
		return transferNotices(payload), nil
	case enums.EventConsultationPaid:
		var payload payloads.ConsultationPaidEvent
		if err := json.Unmarshal(data, &payload); err != nil {
			return nil, err
		}
		return consultationNotices(payload), nil
	case enums.EventHospitalBookingPaid:
		var payload payloads.HospitalBookingPaidEvent
		if err := json.Unmarshal(data, &payload); err != nil {
			return nil, err
		}
		return bookingNotices(payload), nil
	}
	return nil, nil
}

func submittedNotices(p payloads.RequestSubmittedEvent) []notice {
	n := notice{
		userID: p.SubmittedBy,
		kind:   enums.NotificationTypeRequestUpdate,
		title:  fmt.Sprintf("%s received", requestLabel(p.Kind)),
		link:   requestLink(p.RequestID),
		emailData: map[string]any{
			"code":       p.Code,
			"amount":     money.Format(p.AmountCents),
			"net_amount": money.Format(p.NetAmountCents),
		},
	}
	switch p.Kind {
	case enums.RequestKindDeposit:
		n.message = fmt.Sprintf("Your deposit of %s (%s) is awaiting review.", money.Format(p.AmountCents), p.Code)
		n.email = enums.EmailDepositReceived
	case enums.RequestKindWithdrawal, enums.RequestKindHospitalWithdrawal:
		n.message = fmt.Sprintf("Your withdrawal of %s (%s) is awaiting review. You will receive %s after commission.",
			money.Format(p.AmountCents), p.Code, money.Format(p.NetAmountCents))
		n.email = enums.EmailWithdrawReceived
	case enums.RequestKindDoctorApplication:
		n.message = fmt.Sprintf("Your doctor application (%s) is awaiting review.", p.Code)
		n.email = enums.EmailDoctorRequestReceived
	case enums.RequestKindLoan:
		n.message = fmt.Sprintf("Your loan request for %s (%s) is awaiting review.", money.Format(p.AmountCents), p.Code)
	default:
		n.message = fmt.Sprintf("Your request %s is awaiting review.", p.Code)
	}
	return []notice{n}
}

func decidedNotices(p payloads.RequestDecidedEvent) []notice {
	approved := p.Status == enums.RequestStatusApproved
	n := notice{
		userID: p.SubmittedBy,
		kind:   enums.NotificationTypeRequestUpdate,
		link:   requestLink(p.RequestID),
		emailData: map[string]any{
			"code":       p.Code,
			"amount":     money.Format(p.AmountCents),
			"net_amount": money.Format(p.NetAmountCents),
		},
	}
	if p.AdminNotes != "" {
		n.emailData["notes"] = p.AdminNotes
	}
	if p.TransactionCode != "" {
		n.emailData["transaction_code"] = p.TransactionCode
	}

	label := requestLabel(p.Kind)
	if approved {
		n.title = fmt.Sprintf("%s approved", label)
		n.message = fmt.Sprintf("Your request %s was approved.", p.Code)
	} else {
		n.title = fmt.Sprintf("%s rejected", label)
		n.message = fmt.Sprintf("Your request %s was rejected.", p.Code)
		if p.AdminNotes != "" {
			n.message = fmt.Sprintf("Your request %s was rejected. Reason: %s", p.Code, p.AdminNotes)
		}
	}

	switch p.Kind {
	case enums.RequestKindDeposit:
		n.kind = enums.NotificationTypeWalletActivity
		n.email = pick(approved, enums.EmailDepositApproved, enums.EmailDepositRejected)
		if approved {
			n.message = fmt.Sprintf("%s was credited to your wallet (%s).", money.Format(p.AmountCents), p.Code)
		}
	case enums.RequestKindWithdrawal, enums.RequestKindHospitalWithdrawal:
		n.kind = enums.NotificationTypeWalletActivity
		n.email = pick(approved, enums.EmailWithdrawApproved, enums.EmailWithdrawRejected)
		if approved {
			n.message = fmt.Sprintf("Your withdrawal %s was approved. %s is on its way.", p.Code, money.Format(p.NetAmountCents))
		}
	case enums.RequestKindDoctorApplication:
		n.email = pick(approved, enums.EmailDoctorRequestApproved, enums.EmailDoctorRequestRejected)
	}
	return []notice{n}
}

func transferNotices(p payloads.TransferCompletedEvent) []notice {
	amount := money.Format(p.AmountCents)
	data := map[string]any{"code": p.Code, "amount": amount}
	return []notice{
		{
			userID:    p.SenderID,
			kind:      enums.NotificationTypeWalletActivity,
			title:     "Transfer sent",
			message:   fmt.Sprintf("You sent %s (%s).", amount, p.Code),
			link:      transactionLink(p.Code),
			email:     enums.EmailTransferSent,
			emailData: data,
		},
		{
			userID:    p.ReceiverID,
			kind:      enums.NotificationTypeWalletActivity,
			title:     "Transfer received",
			message:   fmt.Sprintf("You received %s (%s).", amount, p.Code),
			link:      transactionLink(p.Code),
			email:     enums.EmailTransferReceived,
			emailData: data,
		},
	}
}

func consultationNotices(p payloads.ConsultationPaidEvent) []notice {
	price := money.Format(p.PriceCents)
	return []notice{
		{
			userID:  p.PatientID,
			kind:    enums.NotificationTypeBooking,
			title:   "Consultation paid",
			message: fmt.Sprintf("You paid %s for your consultation (%s).", price, p.Code),
			link:    transactionLink(p.Code),
		},
		{
			userID:  p.DoctorUserID,
			kind:    enums.NotificationTypeBooking,
			title:   "New paid consultation",
			message: fmt.Sprintf("A patient paid %s for a consultation (%s).", price, p.Code),
			link:    transactionLink(p.Code),
		},
	}
}

func bookingNotices(p payloads.HospitalBookingPaidEvent) []notice {
	price := money.Format(p.PriceCents)
	return []notice{
		{
			userID:  p.PatientID,
			kind:    enums.NotificationTypeBooking,
			title:   "Booking confirmed",
			message: fmt.Sprintf("Your hospital booking was paid (%s).", price),
			link:    fmt.Sprintf("/bookings/%s", p.BookingID),
		},
		{
			userID:  p.OwnerUserID,
			kind:    enums.NotificationTypeBooking,
			title:   "New hospital booking",
			message: fmt.Sprintf("A patient paid %s for a booking.", price),
			link:    fmt.Sprintf("/hospitals/%s/bookings/%s", p.HospitalID, p.BookingID),
		},
	}
}

func requestLabel(kind enums.RequestKind) string {
	switch kind {
	case enums.RequestKindDeposit:
		return "Deposit"
	case enums.RequestKindWithdrawal:
		return "Withdrawal"
	case enums.RequestKindHospitalWithdrawal:
		return "Hospital withdrawal"
	case enums.RequestKindDoctorApplication:
		return "Doctor application"
	case enums.RequestKindHospitalApplication:
		return "Hospital application"
	case enums.RequestKindLoan:
		return "Loan request"
	default:
		return "Request"
	}
}

func pick(approved bool, yes, no enums.EmailType) enums.EmailType {
	if approved {
		return yes
	}
	return no
}

func requestLink(id uuid.UUID) string {
	return fmt.Sprintf("/requests/%s", id)
}

func transactionLink(code string) string {
	return fmt.Sprintf("/transactions/%s", code)
}

func stringPtr(value string) *string {
	return &value
}
