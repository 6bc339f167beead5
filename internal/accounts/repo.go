package accounts

import (
	"context"
	"errors"
	"sort"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/medledger-backend/pkg/db"
	"github.com/angelmondragon/medledger-backend/pkg/db/models"
	"github.com/angelmondragon/medledger-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/medledger-backend/pkg/errors"
)

// Ref identifies an account by owner instead of by row id.
type Ref struct {
	Kind    enums.AccountKind
	OwnerID uuid.UUID
}

// WalletOf returns the wallet ref for a user. Doctors are paid into the
// wallet of their user.
func WalletOf(userID uuid.UUID) Ref {
	return Ref{Kind: enums.AccountKindUserWallet, OwnerID: userID}
}

// HospitalAccountOf returns the balance ref for a hospital.
func HospitalAccountOf(hospitalID uuid.UUID) Ref {
	return Ref{Kind: enums.AccountKindHospital, OwnerID: hospitalID}
}

// Store is the only writer of account balances.
type Store interface {
	WithTx(tx *gorm.DB) Store
	Resolve(ctx context.Context, ref Ref) (*models.Account, error)
	GetBalance(ctx context.Context, ref Ref) (int64, error)
	ApplyDelta(ctx context.Context, ref Ref, delta int64) (int64, error)
	Lock(ctx context.Context, ids ...uuid.UUID) ([]models.Account, error)
	Open(ctx context.Context, ref Ref) (*models.Account, error)
	TotalBalance(ctx context.Context, kind enums.AccountKind) (int64, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns an account store bound to the provided database.
func NewRepository(conn *gorm.DB) Store {
	return &repository{db: conn}
}

func (r *repository) WithTx(tx *gorm.DB) Store {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Resolve(ctx context.Context, ref Ref) (*models.Account, error) {
	var account models.Account
	err := r.db.WithContext(ctx).
		Where("kind = ? AND owner_id = ?", ref.Kind, ref.OwnerID).
		First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "account not found").
				WithDetails(map[string]any{"kind": ref.Kind, "owner_id": ref.OwnerID})
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup account")
	}
	return &account, nil
}

func (r *repository) GetBalance(ctx context.Context, ref Ref) (int64, error) {
	account, err := r.Resolve(ctx, ref)
	if err != nil {
		return 0, err
	}
	return account.BalanceCents, nil
}

// ApplyDelta adds delta to the balance in a single guarded statement so that
// concurrent writers can never drive it below zero.
func (r *repository) ApplyDelta(ctx context.Context, ref Ref, delta int64) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Account{}).
		Where("kind = ? AND owner_id = ? AND balance_cents + ? >= 0", ref.Kind, ref.OwnerID, delta).
		Updates(map[string]any{
			"balance_cents": gorm.Expr("balance_cents + ?", delta),
			"updated_at":    gorm.Expr("CURRENT_TIMESTAMP"),
		})
	if res.Error != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "apply balance delta")
	}
	if res.RowsAffected == 0 {
		if _, err := r.Resolve(ctx, ref); err != nil {
			return 0, err
		}
		return 0, pkgerrors.New(pkgerrors.CodeInsufficientFunds, "insufficient funds").
			WithDetails(map[string]any{"kind": ref.Kind, "owner_id": ref.OwnerID})
	}
	return r.GetBalance(ctx, ref)
}

// Lock takes row locks in ascending id order so that two transactions touching
// the same pair of accounts always queue instead of deadlocking.
func (r *repository) Lock(ctx context.Context, ids ...uuid.UUID) ([]models.Account, error) {
	ordered := SortIDs(ids)
	locked := make([]models.Account, 0, len(ordered))
	for _, id := range ordered {
		var account models.Account
		err := r.db.WithContext(ctx).
			Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", id).
			First(&account).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, pkgerrors.New(pkgerrors.CodeNotFound, "account not found")
			}
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock account")
		}
		locked = append(locked, account)
	}
	return locked, nil
}

// Open creates a zero-balance account for ref, or returns the existing one.
func (r *repository) Open(ctx context.Context, ref Ref) (*models.Account, error) {
	if !ref.Kind.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid account kind")
	}
	if ref.OwnerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "account owner required")
	}

	existing, err := r.Resolve(ctx, ref)
	if err == nil {
		return existing, nil
	}
	if !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		return nil, err
	}

	account := &models.Account{Kind: ref.Kind, OwnerID: ref.OwnerID}
	if err := r.db.WithContext(ctx).Create(account).Error; err != nil {
		if db.IsUniqueViolation(err, "") {
			return r.Resolve(ctx, ref)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "open account")
	}
	return account, nil
}

func (r *repository) TotalBalance(ctx context.Context, kind enums.AccountKind) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).
		Model(&models.Account{}).
		Where("kind = ?", kind).
		Select("COALESCE(SUM(balance_cents), 0)").
		Scan(&total).Error
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sum balances")
	}
	return total, nil
}

// SortIDs returns a de-duplicated copy of ids in ascending byte order.
func SortIDs(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].String() < out[j].String()
	})
	return out
}
