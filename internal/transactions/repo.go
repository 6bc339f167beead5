package transactions

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/medledger-backend/pkg/db"
	"github.com/angelmondragon/medledger-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/medledger-backend/pkg/errors"
	pkgpagination "github.com/angelmondragon/medledger-backend/pkg/pagination"
	"github.com/angelmondragon/medledger-backend/pkg/refcode"
)

// maxCodeAttempts bounds how many fresh codes Append tries after collisions.
const maxCodeAttempts = 5

// Recorder appends and reads immutable transaction records. There is no
// update or delete.
type Recorder interface {
	Append(ctx context.Context, tx *gorm.DB, record *models.Transaction) (uuid.UUID, error)
	FindByID(ctx context.Context, code string) (*models.Transaction, error)
	ListForUser(ctx context.Context, userID uuid.UUID, params pkgpagination.Params) (*ListResult, error)
}

// ListResult is one page of wallet history.
type ListResult struct {
	Items  []models.Transaction `json:"items"`
	Cursor string               `json:"cursor"`
}

type repository struct {
	db    *gorm.DB
	codes refcode.Generator
}

// NewRepository returns a recorder bound to conn. A nil generator falls back
// to refcode.Random.
func NewRepository(conn *gorm.DB, codes refcode.Generator) Recorder {
	if codes == nil {
		codes = refcode.Random
	}
	return &repository{db: conn, codes: codes}
}

// Append assigns a fresh external code and inserts record inside tx. A code
// collision is retried with a new code; every other failure is reported as a
// dependency error so the caller's unit of work aborts.
func (r *repository) Append(ctx context.Context, tx *gorm.DB, record *models.Transaction) (uuid.UUID, error) {
	if record == nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "transaction required")
	}
	if !record.Type.IsValid() {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid transaction type")
	}
	if record.UserID == uuid.Nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "transaction user required")
	}
	if record.AmountCents <= 0 {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "transaction amount must be positive")
	}
	if tx == nil {
		tx = r.db
	}

	var lastErr error
	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		code, err := r.codes.New()
		if err != nil {
			return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate transaction code")
		}
		record.ID = uuid.Nil
		record.Code = code

		// A savepoint keeps a collision from poisoning the enclosing
		// postgres transaction.
		err = tx.WithContext(ctx).Transaction(func(inner *gorm.DB) error {
			return inner.Create(record).Error
		})
		if err == nil {
			return record.ID, nil
		}
		if !db.IsUniqueViolation(err, "") {
			return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append transaction")
		}
		lastErr = err
	}
	return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeDependency, lastErr, fmt.Sprintf("transaction code collided %d times", maxCodeAttempts))
}

func (r *repository) FindByID(ctx context.Context, code string) (*models.Transaction, error) {
	normalized := refcode.Normalize(code)
	if normalized == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "transaction code required")
	}

	var record models.Transaction
	err := r.db.WithContext(ctx).Where("code = ?", normalized).First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "transaction not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup transaction")
	}
	return &record, nil
}

// ListForUser returns transactions the user sent or received, newest first.
func (r *repository) ListForUser(ctx context.Context, userID uuid.UUID, params pkgpagination.Params) (*ListResult, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}

	query := r.db.WithContext(ctx).
		Model(&models.Transaction{}).
		Where("(user_id = ? OR receiver_id = ?)", userID, userID)

	cursor, err := pkgpagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	if cursor != nil {
		query = query.Where("(created_at < ?) OR (created_at = ? AND id < ?)", cursor.CreatedAt, cursor.CreatedAt, cursor.ID)
	}

	var rows []models.Transaction
	if err := query.
		Order("created_at DESC").
		Order("id DESC").
		Limit(pkgpagination.LimitWithBuffer(params.Limit)).
		Find(&rows).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list transactions")
	}

	items, next := pkgpagination.Trim(rows, params.Limit, func(t models.Transaction) pkgpagination.Cursor {
		return pkgpagination.Cursor{CreatedAt: t.CreatedAt, ID: t.ID}
	})
	return &ListResult{Items: items, Cursor: next}, nil
}
