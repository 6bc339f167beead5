package requests

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/medledger-backend/internal/accounts"
	"github.com/angelmondragon/medledger-backend/internal/providers"
	"github.com/angelmondragon/medledger-backend/pkg/db"
	"github.com/angelmondragon/medledger-backend/pkg/db/models"
	"github.com/angelmondragon/medledger-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/medledger-backend/pkg/errors"
	"github.com/angelmondragon/medledger-backend/pkg/logger"
	"github.com/angelmondragon/medledger-backend/pkg/money"
	"github.com/angelmondragon/medledger-backend/pkg/outbox"
	"github.com/angelmondragon/medledger-backend/pkg/outbox/payloads"
	pkgpagination "github.com/angelmondragon/medledger-backend/pkg/pagination"
	"github.com/angelmondragon/medledger-backend/pkg/refcode"
)

const (
	maxCodeAttempts     = 5
	maxPaymentMethodLen = 64
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type ledgerEffects interface {
	ApplyDeposit(ctx context.Context, tx *gorm.DB, req *models.ModeratedRequest) (*models.Transaction, error)
	ApplyWithdrawal(ctx context.Context, tx *gorm.DB, req *models.ModeratedRequest) (*models.Transaction, error)
	ApplyHospitalWithdrawal(ctx context.Context, tx *gorm.DB, req *models.ModeratedRequest) error
}

type providerEffects interface {
	ApproveDoctor(ctx context.Context, tx *gorm.DB, req *models.ModeratedRequest) (*models.Doctor, error)
	ApproveHospital(ctx context.Context, tx *gorm.DB, req *models.ModeratedRequest) (*models.Hospital, error)
	HospitalForOwner(ctx context.Context, ownerID uuid.UUID) (*models.Hospital, error)
	DoctorForUser(ctx context.Context, userID uuid.UUID) (*models.Doctor, error)
}

type evidenceBinder interface {
	Attach(ctx context.Context, tx *gorm.DB, ownerID, evidenceID uuid.UUID, purpose enums.EvidencePurpose) (*models.Evidence, error)
	Release(ctx context.Context, tx *gorm.DB, key, reason string) error
}

// Service runs the moderated request lifecycle: pending until exactly one
// admin decision, with the approval effect applied in the same transaction
// as the status change.
type Service interface {
	Submit(ctx context.Context, input SubmitInput) (*models.ModeratedRequest, error)
	Transition(ctx context.Context, input TransitionInput) (*TransitionResult, error)
	Get(ctx context.Context, input GetInput) (*models.ModeratedRequest, error)
	List(ctx context.Context, params ListParams) (*ListResult, error)
	ListForSubmitter(ctx context.Context, submitterID uuid.UUID, params ListParams) (*ListResult, error)
}

// SubmitInput carries a new request. Which fields are required depends on Kind.
type SubmitInput struct {
	Kind          enums.RequestKind
	SubmittedBy   uuid.UUID
	AmountCents   int64
	PaymentMethod string
	EvidenceID    uuid.UUID
	Details       json.RawMessage
	ActorRole     string
}

// TransitionInput is an admin decision on a pending request.
type TransitionInput struct {
	RequestID  uuid.UUID
	Outcome    enums.RequestDecision
	AdminNotes string
	ActorID    uuid.UUID
}

// TransitionResult holds the decided request and the transaction its
// approval recorded, if any.
type TransitionResult struct {
	Request     *models.ModeratedRequest
	Transaction *models.Transaction
}

type GetInput struct {
	RequestID   uuid.UUID
	RequesterID uuid.UUID
	IsAdmin     bool
}

// Options configures the request service.
type Options struct {
	DB             txRunner
	Repo           *Repository
	Accounts       accounts.Store
	Ledger         ledgerEffects
	Providers      providerEffects
	Evidence       evidenceBinder
	Outbox         outboxEmitter
	Codes          refcode.Generator
	Logger         *logger.Logger
	CommissionRate decimal.Decimal
	// MaxAmountCents caps the amount of a single money request. Zero
	// disables the cap.
	MaxAmountCents int64
}

type service struct {
	db             txRunner
	repo           *Repository
	accounts       accounts.Store
	ledger         ledgerEffects
	providers      providerEffects
	evidence       evidenceBinder
	outbox         outboxEmitter
	codes          refcode.Generator
	logg           *logger.Logger
	commissionRate decimal.Decimal
	maxAmountCents int64
	now            func() time.Time
}

// NewService wires the lifecycle with its effect handlers. A zero commission
// rate falls back to money.CommissionRate.
func NewService(opts Options) (Service, error) {
	if opts.DB == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if opts.Repo == nil {
		return nil, fmt.Errorf("request repository required")
	}
	if opts.Accounts == nil {
		return nil, fmt.Errorf("account store required")
	}
	if opts.Ledger == nil {
		return nil, fmt.Errorf("ledger required")
	}
	if opts.Providers == nil {
		return nil, fmt.Errorf("provider service required")
	}
	if opts.Evidence == nil {
		return nil, fmt.Errorf("evidence service required")
	}
	if opts.Outbox == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	codes := opts.Codes
	if codes == nil {
		codes = refcode.Random
	}
	if opts.MaxAmountCents < 0 {
		return nil, fmt.Errorf("max amount must not be negative")
	}
	rate := opts.CommissionRate
	if rate.IsZero() {
		rate = money.CommissionRate
	}
	return &service{
		db:             opts.DB,
		repo:           opts.Repo,
		accounts:       opts.Accounts,
		ledger:         opts.Ledger,
		providers:      opts.Providers,
		evidence:       opts.Evidence,
		outbox:         opts.Outbox,
		codes:          codes,
		logg:           opts.Logger,
		commissionRate: rate,
		maxAmountCents: opts.MaxAmountCents,
		now:            time.Now,
	}, nil
}

func (s *service) Submit(ctx context.Context, input SubmitInput) (*models.ModeratedRequest, error) {
	if input.SubmittedBy == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user identity missing")
	}
	if !input.Kind.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid request kind")
	}

	req := &models.ModeratedRequest{
		Kind:        input.Kind,
		Status:      enums.RequestStatusPending,
		SubjectID:   input.SubmittedBy,
		SubmittedBy: input.SubmittedBy,
	}
	purpose, err := s.prepare(ctx, req, input)
	if err != nil {
		return nil, err
	}

	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.checkSubmittable(ctx, tx, req); err != nil {
			return err
		}
		if purpose != "" {
			ev, err := s.evidence.Attach(ctx, tx, input.SubmittedBy, input.EvidenceID, purpose)
			if err != nil {
				return err
			}
			key := ev.GCSKey
			req.EvidenceRef = &key
		}
		if err := s.create(ctx, tx, req); err != nil {
			return err
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventRequestSubmitted,
			AggregateType: enums.AggregateModeratedRequest,
			AggregateID:   req.ID,
			Actor:         &outbox.ActorRef{UserID: input.SubmittedBy, Role: input.ActorRole},
			Data: payloads.RequestSubmittedEvent{
				RequestID:       req.ID,
				Code:            req.Code,
				Kind:            req.Kind,
				SubjectID:       req.SubjectID,
				SubmittedBy:     req.SubmittedBy,
				AmountCents:     req.AmountCents,
				CommissionCents: req.CommissionCents,
				NetAmountCents:  req.NetAmountCents,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	s.logState(ctx, req, "submitted", "")
	return req, nil
}

// prepare validates kind-specific input and fills in the amounts. It returns
// the evidence purpose the request must attach, if any.
func (s *service) prepare(ctx context.Context, req *models.ModeratedRequest, input SubmitInput) (enums.EvidencePurpose, error) {
	switch input.Kind {
	case enums.RequestKindDeposit:
		if err := s.checkAmount(input.AmountCents); err != nil {
			return "", err
		}
		method := strings.TrimSpace(input.PaymentMethod)
		if method == "" {
			return "", pkgerrors.New(pkgerrors.CodeValidation, "payment_method is required")
		}
		if len(method) > maxPaymentMethodLen {
			return "", pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("payment_method must be at most %d characters", maxPaymentMethodLen))
		}
		if input.EvidenceID == uuid.Nil {
			return "", pkgerrors.New(pkgerrors.CodeValidation, "deposit receipt is required")
		}
		req.AmountCents = input.AmountCents
		req.NetAmountCents = input.AmountCents
		req.PaymentMethod = &method
		return enums.EvidencePurposeDepositReceipt, nil

	case enums.RequestKindWithdrawal:
		if err := s.checkAmount(input.AmountCents); err != nil {
			return "", err
		}
		if _, err := s.providers.DoctorForUser(ctx, input.SubmittedBy); err != nil {
			if pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
				return "", pkgerrors.New(pkgerrors.CodeForbidden, "only doctors can withdraw wallet funds")
			}
			return "", err
		}
		commission, net := money.Commission(input.AmountCents, s.commissionRate)
		req.AmountCents = input.AmountCents
		req.CommissionCents = commission
		req.NetAmountCents = net
		return "", nil

	case enums.RequestKindHospitalWithdrawal:
		if err := s.checkAmount(input.AmountCents); err != nil {
			return "", err
		}
		hospital, err := s.providers.HospitalForOwner(ctx, input.SubmittedBy)
		if err != nil {
			if pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
				return "", pkgerrors.New(pkgerrors.CodeForbidden, "only hospital owners can withdraw hospital funds")
			}
			return "", err
		}
		req.SubjectID = hospital.ID
		req.AmountCents = input.AmountCents
		req.NetAmountCents = input.AmountCents
		return "", nil

	case enums.RequestKindDoctorApplication:
		app, err := providers.ParseDoctorApplication(input.Details)
		if err != nil {
			return "", err
		}
		return enums.EvidencePurposeCredential, s.setDetails(req, app, input.EvidenceID)

	case enums.RequestKindHospitalApplication:
		app, err := providers.ParseHospitalApplication(input.Details)
		if err != nil {
			return "", err
		}
		return enums.EvidencePurposeCredential, s.setDetails(req, app, input.EvidenceID)

	case enums.RequestKindLoan:
		if err := s.checkAmount(input.AmountCents); err != nil {
			return "", err
		}
		details, err := ParseLoanDetails(input.Details)
		if err != nil {
			return "", err
		}
		if input.EvidenceID == uuid.Nil {
			return "", pkgerrors.New(pkgerrors.CodeValidation, "id card image is required")
		}
		raw, err := json.Marshal(details)
		if err != nil {
			return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode loan details")
		}
		req.AmountCents = input.AmountCents
		req.NetAmountCents = input.AmountCents
		req.Details = raw
		return enums.EvidencePurposeIDCard, nil
	}
	return "", pkgerrors.New(pkgerrors.CodeValidation, "invalid request kind")
}

func (s *service) checkAmount(amountCents int64) error {
	if amountCents <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive")
	}
	if s.maxAmountCents > 0 && amountCents > s.maxAmountCents {
		return pkgerrors.New(pkgerrors.CodeValidation, "amount exceeds request limit").
			WithDetails(map[string]any{"max_cents": s.maxAmountCents})
	}
	return nil
}

func (s *service) setDetails(req *models.ModeratedRequest, app any, evidenceID uuid.UUID) error {
	if evidenceID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "supporting documents are required")
	}
	raw, err := json.Marshal(app)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode application details")
	}
	req.Details = raw
	return nil
}

// checkSubmittable runs the checks that read current state.
func (s *service) checkSubmittable(ctx context.Context, tx *gorm.DB, req *models.ModeratedRequest) error {
	switch req.Kind {
	case enums.RequestKindWithdrawal, enums.RequestKindHospitalWithdrawal:
		ref := accounts.WalletOf(req.SubjectID)
		if req.Kind == enums.RequestKindHospitalWithdrawal {
			ref = accounts.HospitalAccountOf(req.SubjectID)
		}
		balance, err := s.accounts.WithTx(tx).GetBalance(ctx, ref)
		if err != nil {
			return err
		}
		if req.AmountCents > balance {
			return pkgerrors.New(pkgerrors.CodeInsufficientFunds, "amount exceeds available balance").
				WithDetails(map[string]any{"balance_cents": balance, "amount_cents": req.AmountCents})
		}
	case enums.RequestKindDoctorApplication, enums.RequestKindHospitalApplication, enums.RequestKindLoan:
		pending, err := s.repo.HasPending(ctx, tx, req.SubjectID, req.Kind)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check pending requests")
		}
		if pending {
			return pkgerrors.New(pkgerrors.CodeConflict, fmt.Sprintf("a %s request is already awaiting review", req.Kind))
		}
	}
	return nil
}

func (s *service) create(ctx context.Context, tx *gorm.DB, req *models.ModeratedRequest) error {
	var lastErr error
	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		code, err := s.codes.New()
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate request code")
		}
		req.ID = uuid.Nil
		req.Code = code
		err = s.repo.Create(ctx, tx, req)
		if err == nil {
			return nil
		}
		if !db.IsUniqueViolation(err, "") {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create request")
		}
		lastErr = err
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, lastErr, fmt.Sprintf("request code collided %d times", maxCodeAttempts))
}

func (s *service) Transition(ctx context.Context, input TransitionInput) (*TransitionResult, error) {
	if input.RequestID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "request id is required")
	}
	if !input.Outcome.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid decision")
	}
	if input.ActorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "admin identity missing")
	}

	result := &TransitionResult{}
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		req, err := s.repo.FindForUpdate(ctx, tx, input.RequestID)
		if err != nil {
			return err
		}
		if req.Status != enums.RequestStatusPending {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "request already decided").
				WithDetails(map[string]any{"status": req.Status})
		}

		if input.Outcome == enums.RequestDecisionApprove {
			record, err := s.applyEffect(ctx, tx, req)
			if err != nil {
				return err
			}
			result.Transaction = record
		}

		status := input.Outcome.Status()
		release := req.EvidenceRef != nil && releasesEvidence(req.Kind, status)
		decidedAt := s.now().UTC()
		notes := optionalString(strings.TrimSpace(input.AdminNotes))

		ok, err := s.repo.Decide(ctx, tx, decision{
			id:            req.ID,
			status:        status,
			adminNotes:    notes,
			decidedBy:     input.ActorID,
			decidedAt:     decidedAt,
			clearEvidence: release,
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update request status")
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "request already decided")
		}

		if release {
			if err := s.evidence.Release(ctx, tx, *req.EvidenceRef, releaseReason(req.Kind, status)); err != nil {
				return err
			}
			req.EvidenceRef = nil
		}

		req.Status = status
		req.AdminNotes = notes
		req.DecidedBy = &input.ActorID
		req.DecidedAt = &decidedAt
		result.Request = req

		data := payloads.RequestDecidedEvent{
			RequestID:      req.ID,
			Code:           req.Code,
			Kind:           req.Kind,
			Status:         status,
			SubjectID:      req.SubjectID,
			SubmittedBy:    req.SubmittedBy,
			DecidedBy:      input.ActorID,
			AmountCents:    req.AmountCents,
			NetAmountCents: req.NetAmountCents,
		}
		if notes != nil {
			data.AdminNotes = *notes
		}
		if result.Transaction != nil {
			data.TransactionCode = result.Transaction.Code
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventRequestDecided,
			AggregateType: enums.AggregateModeratedRequest,
			AggregateID:   req.ID,
			Actor:         &outbox.ActorRef{UserID: input.ActorID, Role: string(enums.UserRoleAdmin)},
			Data:          data,
		})
	})
	if err != nil {
		if s.logg != nil && !pkgerrors.IsCode(err, pkgerrors.CodeStateConflict) {
			logCtx := s.logg.WithFields(ctx, map[string]any{
				"request_id": input.RequestID.String(),
				"outcome":    string(input.Outcome),
			})
			s.logg.Warn(logCtx, fmt.Sprintf("request transition aborted: %v", err))
		}
		return nil, err
	}

	txCode := ""
	if result.Transaction != nil {
		txCode = result.Transaction.Code
	}
	s.logState(ctx, result.Request, string(result.Request.Status), txCode)
	return result, nil
}

// applyEffect runs the approval side effect of req inside tx.
func (s *service) applyEffect(ctx context.Context, tx *gorm.DB, req *models.ModeratedRequest) (*models.Transaction, error) {
	switch req.Kind {
	case enums.RequestKindDeposit:
		return s.ledger.ApplyDeposit(ctx, tx, req)
	case enums.RequestKindWithdrawal:
		return s.ledger.ApplyWithdrawal(ctx, tx, req)
	case enums.RequestKindHospitalWithdrawal:
		return nil, s.ledger.ApplyHospitalWithdrawal(ctx, tx, req)
	case enums.RequestKindDoctorApplication:
		_, err := s.providers.ApproveDoctor(ctx, tx, req)
		return nil, err
	case enums.RequestKindHospitalApplication:
		_, err := s.providers.ApproveHospital(ctx, tx, req)
		return nil, err
	case enums.RequestKindLoan:
		// Disbursement happens outside the platform.
		return nil, nil
	}
	return nil, pkgerrors.New(pkgerrors.CodeInternal, fmt.Sprintf("no approval effect for kind %s", req.Kind))
}

func (s *service) Get(ctx context.Context, input GetInput) (*models.ModeratedRequest, error) {
	if input.RequestID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "request id is required")
	}
	req, err := s.repo.FindByID(ctx, input.RequestID)
	if err != nil {
		return nil, err
	}
	if !input.IsAdmin && req.SubmittedBy != input.RequesterID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "request not found")
	}
	return req, nil
}

func (s *service) List(ctx context.Context, params ListParams) (*ListResult, error) {
	if params.Kind != "" && !params.Kind.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid request kind")
	}
	if params.Status != "" && !params.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid request status")
	}

	query := listQuery{
		kind:        params.Kind,
		status:      params.Status,
		subjectID:   params.SubjectID,
		submittedBy: params.SubmittedBy,
		limit:       pkgpagination.LimitWithBuffer(params.Limit),
	}
	cursor, err := pkgpagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	query.cursor = cursor

	rows, err := s.repo.List(ctx, query)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list requests")
	}

	rows, nextCursor := pkgpagination.Trim(rows, params.Limit, func(r models.ModeratedRequest) pkgpagination.Cursor {
		return pkgpagination.Cursor{CreatedAt: r.CreatedAt, ID: r.ID}
	})

	items := make([]ListItem, len(rows))
	for i, row := range rows {
		items[i] = toListItem(row)
	}
	return &ListResult{Items: items, Cursor: nextCursor}, nil
}

// ListForSubmitter scopes a listing to what submitterID sent.
func (s *service) ListForSubmitter(ctx context.Context, submitterID uuid.UUID, params ListParams) (*ListResult, error) {
	if submitterID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user identity missing")
	}
	params.SubmittedBy = submitterID
	params.SubjectID = uuid.Nil
	return s.List(ctx, params)
}

// releasesEvidence reports whether a decision frees the attached file.
// Credentials stay bound to approved applications.
func releasesEvidence(kind enums.RequestKind, status enums.RequestStatus) bool {
	if status == enums.RequestStatusRejected {
		return true
	}
	return kind == enums.RequestKindDeposit || kind == enums.RequestKindLoan
}

func releaseReason(kind enums.RequestKind, status enums.RequestStatus) string {
	if status == enums.RequestStatusRejected {
		return "request_rejected"
	}
	return string(kind) + "_approved"
}

func optionalString(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}

func (s *service) logState(ctx context.Context, req *models.ModeratedRequest, outcome, txCode string) {
	if s.logg == nil || req == nil {
		return
	}
	fields := map[string]any{
		"request_id":   req.ID.String(),
		"request_code": req.Code,
		"kind":         string(req.Kind),
		"outcome":      outcome,
	}
	if txCode != "" {
		fields["tx_code"] = txCode
	}
	s.logg.Info(s.logg.WithFields(ctx, fields), "request state changed")
}
