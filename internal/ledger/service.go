package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/medledger-backend/internal/accounts"
	"github.com/angelmondragon/medledger-backend/pkg/db/models"
	"github.com/angelmondragon/medledger-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/medledger-backend/pkg/errors"
	"github.com/angelmondragon/medledger-backend/pkg/logger"
	"github.com/angelmondragon/medledger-backend/pkg/outbox"
	"github.com/angelmondragon/medledger-backend/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type transactionRecorder interface {
	Append(ctx context.Context, tx *gorm.DB, record *models.Transaction) (uuid.UUID, error)
}

// Directory resolves priced providers inside the ledger transaction.
type Directory interface {
	FindDoctor(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.Doctor, error)
	FindHospital(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.Hospital, error)
	FindRosterDoctor(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.HospitalDoctor, error)
}

// Observer receives one call per completed or failed mutation.
type Observer interface {
	ObserveMutation(action string, amountCents int64, err error)
}

// Service is the only component allowed to move money between accounts.
// Approval effects run inside the caller's transaction; direct actions open
// their own.
type Service interface {
	ApplyDeposit(ctx context.Context, tx *gorm.DB, req *models.ModeratedRequest) (*models.Transaction, error)
	ApplyWithdrawal(ctx context.Context, tx *gorm.DB, req *models.ModeratedRequest) (*models.Transaction, error)
	ApplyHospitalWithdrawal(ctx context.Context, tx *gorm.DB, req *models.ModeratedRequest) error
	Transfer(ctx context.Context, input TransferInput) (*models.Transaction, error)
	PayConsultation(ctx context.Context, input ConsultationInput) (*ConsultationResult, error)
	BookHospital(ctx context.Context, input BookingInput) (*models.HospitalBooking, error)
}

// Actions reported to the Observer.
const (
	ActionDeposit            = "deposit"
	ActionWithdrawal         = "withdrawal"
	ActionHospitalWithdrawal = "hospital_withdrawal"
	ActionTransfer           = "transfer"
	ActionConsultation       = "consultation"
	ActionHospitalBooking    = "hospital_booking"
)

// TransferInput moves money between two user wallets.
type TransferInput struct {
	SenderID    uuid.UUID
	ReceiverID  uuid.UUID
	AmountCents int64
	Description string
	ActorRole   string
}

// ConsultationInput pays a doctor the consultation price on record.
type ConsultationInput struct {
	PatientID uuid.UUID
	DoctorID  uuid.UUID
	Notes     *string
	ActorRole string
}

// ConsultationResult bundles the consultation row with its transaction.
type ConsultationResult struct {
	Consultation *models.Consultation
	Transaction  *models.Transaction
}

// BookingInput reserves a visit with one of a hospital's roster doctors.
type BookingInput struct {
	PatientID        uuid.UUID
	HospitalID       uuid.UUID
	HospitalDoctorID uuid.UUID
	PaymentMethod    enums.BookingPaymentMethod
	ScheduledFor     *time.Time
	Notes            *string
	ActorRole        string
}

// Options configures a ledger service.
type Options struct {
	DB               txRunner
	Accounts         accounts.Store
	Transactions     transactionRecorder
	Outbox           outboxEmitter
	Directory        Directory
	Logger           *logger.Logger
	Observer         Observer
	MaxTransferCents int64
}

type service struct {
	db               txRunner
	accounts         accounts.Store
	transactions     transactionRecorder
	outbox           outboxEmitter
	directory        Directory
	logg             *logger.Logger
	observer         Observer
	maxTransferCents int64
}

// NewService wires the ledger with its collaborators.
func NewService(opts Options) (Service, error) {
	if opts.DB == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if opts.Accounts == nil {
		return nil, fmt.Errorf("account store required")
	}
	if opts.Transactions == nil {
		return nil, fmt.Errorf("transaction recorder required")
	}
	if opts.Outbox == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	if opts.Directory == nil {
		return nil, fmt.Errorf("provider directory required")
	}
	if opts.MaxTransferCents < 0 {
		return nil, fmt.Errorf("max transfer must not be negative")
	}
	return &service{
		db:               opts.DB,
		accounts:         opts.Accounts,
		transactions:     opts.Transactions,
		outbox:           opts.Outbox,
		directory:        opts.Directory,
		logg:             opts.Logger,
		observer:         opts.Observer,
		maxTransferCents: opts.MaxTransferCents,
	}, nil
}

func (s *service) ApplyDeposit(ctx context.Context, tx *gorm.DB, req *models.ModeratedRequest) (record *models.Transaction, err error) {
	defer func() { s.observe(ActionDeposit, requestAmount(req), err) }()

	if err := requireRequest(tx, req, enums.RequestKindDeposit); err != nil {
		return nil, err
	}
	store := s.accounts.WithTx(tx)
	if err := post(ctx, store, leg{ref: accounts.WalletOf(req.SubjectID), delta: req.AmountCents}); err != nil {
		return nil, err
	}

	description := fmt.Sprintf("Deposit %s", req.Code)
	record = &models.Transaction{
		Type:        enums.TransactionTypeDeposit,
		UserID:      req.SubjectID,
		AmountCents: req.AmountCents,
		Description: &description,
	}
	if _, err := s.transactions.Append(ctx, tx, record); err != nil {
		return nil, err
	}
	s.logMutation(ctx, ActionDeposit, record.Code, req.AmountCents)
	return record, nil
}

// ApplyWithdrawal debits the gross amount and records the net payout.
func (s *service) ApplyWithdrawal(ctx context.Context, tx *gorm.DB, req *models.ModeratedRequest) (record *models.Transaction, err error) {
	defer func() { s.observe(ActionWithdrawal, requestAmount(req), err) }()

	if err := requireRequest(tx, req, enums.RequestKindWithdrawal); err != nil {
		return nil, err
	}
	store := s.accounts.WithTx(tx)
	if err := post(ctx, store, leg{ref: accounts.WalletOf(req.SubjectID), delta: -req.AmountCents}); err != nil {
		return nil, err
	}

	description := fmt.Sprintf("Withdrawal %s", req.Code)
	record = &models.Transaction{
		Type:        enums.TransactionTypeWithdraw,
		UserID:      req.SubjectID,
		AmountCents: req.NetAmountCents,
		Description: &description,
	}
	if _, err := s.transactions.Append(ctx, tx, record); err != nil {
		return nil, err
	}
	s.logMutation(ctx, ActionWithdrawal, record.Code, req.AmountCents)
	return record, nil
}

// ApplyHospitalWithdrawal debits the hospital balance. No transaction row is
// written; the request itself is the audit record.
func (s *service) ApplyHospitalWithdrawal(ctx context.Context, tx *gorm.DB, req *models.ModeratedRequest) (err error) {
	defer func() { s.observe(ActionHospitalWithdrawal, requestAmount(req), err) }()

	if err := requireRequest(tx, req, enums.RequestKindHospitalWithdrawal); err != nil {
		return err
	}
	store := s.accounts.WithTx(tx)
	if err := post(ctx, store, leg{ref: accounts.HospitalAccountOf(req.SubjectID), delta: -req.AmountCents}); err != nil {
		return err
	}
	s.logMutation(ctx, ActionHospitalWithdrawal, req.Code, req.AmountCents)
	return nil
}

func (s *service) Transfer(ctx context.Context, input TransferInput) (record *models.Transaction, err error) {
	defer func() { s.observe(ActionTransfer, input.AmountCents, err) }()

	if input.SenderID == uuid.Nil || input.ReceiverID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "sender and receiver required")
	}
	if input.SenderID == input.ReceiverID {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cannot transfer to yourself")
	}
	if input.AmountCents <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive")
	}
	if s.maxTransferCents > 0 && input.AmountCents > s.maxTransferCents {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount exceeds transfer limit").
			WithDetails(map[string]any{"max_cents": s.maxTransferCents})
	}

	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		store := s.accounts.WithTx(tx)
		if err := post(ctx, store,
			leg{ref: accounts.WalletOf(input.SenderID), delta: -input.AmountCents},
			leg{ref: accounts.WalletOf(input.ReceiverID), delta: input.AmountCents},
		); err != nil {
			return err
		}

		receiver := input.ReceiverID
		record = &models.Transaction{
			Type:        enums.TransactionTypeTransfer,
			UserID:      input.SenderID,
			ReceiverID:  &receiver,
			AmountCents: input.AmountCents,
			Description: optionalString(input.Description),
		}
		if _, err := s.transactions.Append(ctx, tx, record); err != nil {
			return err
		}

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventTransferCompleted,
			AggregateType: enums.AggregateTransaction,
			AggregateID:   record.ID,
			Actor:         &outbox.ActorRef{UserID: input.SenderID, Role: input.ActorRole},
			Data: payloads.TransferCompletedEvent{
				TransactionID: record.ID,
				Code:          record.Code,
				SenderID:      input.SenderID,
				ReceiverID:    input.ReceiverID,
				AmountCents:   input.AmountCents,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	s.logMutation(ctx, ActionTransfer, record.Code, input.AmountCents)
	return record, nil
}

// PayConsultation charges the patient the doctor's listed price and credits
// the wallet of the doctor's user.
func (s *service) PayConsultation(ctx context.Context, input ConsultationInput) (result *ConsultationResult, err error) {
	var price int64
	defer func() { s.observe(ActionConsultation, price, err) }()

	if input.PatientID == uuid.Nil || input.DoctorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "patient and doctor required")
	}

	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		doctor, err := s.directory.FindDoctor(ctx, tx, input.DoctorID)
		if err != nil {
			return err
		}
		if !doctor.Verified {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "doctor is not verified")
		}
		if doctor.UserID == input.PatientID {
			return pkgerrors.New(pkgerrors.CodeValidation, "doctors cannot pay themselves")
		}
		price = doctor.ConsultationPriceCents
		if price <= 0 {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "doctor has no consultation price")
		}

		store := s.accounts.WithTx(tx)
		if err := post(ctx, store,
			leg{ref: accounts.WalletOf(input.PatientID), delta: -price},
			leg{ref: accounts.WalletOf(doctor.UserID), delta: price},
		); err != nil {
			return err
		}

		description := fmt.Sprintf("Consultation with %s", doctor.FullName)
		doctorID := doctor.ID
		receiver := doctor.UserID
		record := &models.Transaction{
			Type:        enums.TransactionTypeConsultation,
			UserID:      input.PatientID,
			ReceiverID:  &receiver,
			DoctorID:    &doctorID,
			AmountCents: price,
			Description: &description,
		}
		if _, err := s.transactions.Append(ctx, tx, record); err != nil {
			return err
		}

		consultation := &models.Consultation{
			DoctorID:      doctor.ID,
			PatientID:     input.PatientID,
			TransactionID: record.ID,
			PriceCents:    price,
			Notes:         input.Notes,
		}
		if err := tx.WithContext(ctx).Create(consultation).Error; err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create consultation")
		}

		result = &ConsultationResult{Consultation: consultation, Transaction: record}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventConsultationPaid,
			AggregateType: enums.AggregateTransaction,
			AggregateID:   record.ID,
			Actor:         &outbox.ActorRef{UserID: input.PatientID, Role: input.ActorRole},
			Data: payloads.ConsultationPaidEvent{
				ConsultationID: consultation.ID,
				TransactionID:  record.ID,
				Code:           record.Code,
				DoctorID:       doctor.ID,
				DoctorUserID:   doctor.UserID,
				PatientID:      input.PatientID,
				PriceCents:     price,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	s.logMutation(ctx, ActionConsultation, result.Transaction.Code, price)
	return result, nil
}

// BookHospital creates a booking. Cash bookings are settled at the desk and
// never touch the ledger; wallet bookings pay the hospital account up front.
func (s *service) BookHospital(ctx context.Context, input BookingInput) (booking *models.HospitalBooking, err error) {
	var price int64
	if input.PaymentMethod == enums.BookingPaymentMethodWallet {
		defer func() { s.observe(ActionHospitalBooking, price, err) }()
	}

	if input.PatientID == uuid.Nil || input.HospitalID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "patient and hospital required")
	}
	if input.HospitalDoctorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "hospital doctor required")
	}
	if !input.PaymentMethod.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid payment method")
	}

	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		hospital, err := s.directory.FindHospital(ctx, tx, input.HospitalID)
		if err != nil {
			return err
		}
		if hospital.OwnerUserID == input.PatientID {
			return pkgerrors.New(pkgerrors.CodeValidation, "hospital owners cannot book their own hospital")
		}
		doctor, err := s.directory.FindRosterDoctor(ctx, tx, input.HospitalDoctorID)
		if err != nil {
			return err
		}
		if doctor.HospitalID != hospital.ID {
			return pkgerrors.New(pkgerrors.CodeNotFound, "roster doctor not found")
		}
		if !doctor.Available {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "doctor is not taking bookings")
		}
		price = doctor.ConsultationPriceCents

		booking = &models.HospitalBooking{
			HospitalID:       hospital.ID,
			HospitalDoctorID: doctor.ID,
			DoctorName:       doctor.FullName,
			Specialty:        doctor.Specialty,
			PatientID:        input.PatientID,
			PriceCents:       price,
			PaymentMethod:    input.PaymentMethod,
			ScheduledFor:     input.ScheduledFor,
			Notes:            input.Notes,
		}
		if input.PaymentMethod == enums.BookingPaymentMethodCash {
			return createBooking(ctx, tx, booking)
		}

		if price <= 0 {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "doctor has no consultation price")
		}
		store := s.accounts.WithTx(tx)
		if err := post(ctx, store,
			leg{ref: accounts.WalletOf(input.PatientID), delta: -price},
			leg{ref: accounts.HospitalAccountOf(hospital.ID), delta: price},
		); err != nil {
			return err
		}
		paidAt := time.Now().UTC()
		booking.PaidAt = &paidAt
		if err := createBooking(ctx, tx, booking); err != nil {
			return err
		}

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventHospitalBookingPaid,
			AggregateType: enums.AggregateHospitalBooking,
			AggregateID:   booking.ID,
			Actor:         &outbox.ActorRef{UserID: input.PatientID, Role: input.ActorRole},
			Data: payloads.HospitalBookingPaidEvent{
				BookingID:        booking.ID,
				HospitalID:       hospital.ID,
				HospitalDoctorID: doctor.ID,
				OwnerUserID:      hospital.OwnerUserID,
				PatientID:        input.PatientID,
				PriceCents:       price,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	if booking.PaidAt != nil {
		s.logMutation(ctx, ActionHospitalBooking, booking.ID.String(), price)
	}
	return booking, nil
}

func createBooking(ctx context.Context, tx *gorm.DB, booking *models.HospitalBooking) error {
	if err := tx.WithContext(ctx).Create(booking).Error; err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create hospital booking")
	}
	return nil
}

func requireRequest(tx *gorm.DB, req *models.ModeratedRequest, kind enums.RequestKind) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeInternal, "ledger effect requires a transaction")
	}
	if req == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "request required")
	}
	if req.Kind != kind {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("request kind %s cannot apply as %s", req.Kind, kind))
	}
	if req.SubjectID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "request subject required")
	}
	if req.AmountCents <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "request amount must be positive")
	}
	return nil
}

func requestAmount(req *models.ModeratedRequest) int64 {
	if req == nil {
		return 0
	}
	return req.AmountCents
}

func optionalString(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}

func (s *service) observe(action string, amountCents int64, err error) {
	if s.observer == nil {
		return
	}
	s.observer.ObserveMutation(action, amountCents, err)
}

func (s *service) logMutation(ctx context.Context, action, code string, amountCents int64) {
	if s.logg == nil {
		return
	}
	ctx = s.logg.WithFields(ctx, map[string]any{
		"action":       action,
		"tx_code":      code,
		"amount_cents": amountCents,
	})
	s.logg.Info(ctx, "ledger mutation applied")
}
