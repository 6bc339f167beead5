package accounts

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/medledger-backend/pkg/db/dbtest"
	"github.com/angelmondragon/medledger-backend/pkg/db/models"
	"github.com/angelmondragon/medledger-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/medledger-backend/pkg/errors"
)

func seedWallet(t *testing.T, conn *gorm.DB, balance int64) Ref {
	t.Helper()
	ref := WalletOf(uuid.New())
	require.NoError(t, conn.Create(&models.Account{
		Kind:         ref.Kind,
		OwnerID:      ref.OwnerID,
		BalanceCents: balance,
	}).Error)
	return ref
}

func TestOpenIsIdempotent(t *testing.T) {
	conn := dbtest.Open(t)
	store := NewRepository(conn)
	ctx := context.Background()
	ref := HospitalAccountOf(uuid.New())

	first, err := store.Open(ctx, ref)
	require.NoError(t, err)
	second, err := store.Open(ctx, ref)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Zero(t, second.BalanceCents)
	assert.Equal(t, enums.AccountKindHospital, second.Kind)
}

func TestOpenValidatesRef(t *testing.T) {
	store := NewRepository(dbtest.Open(t))

	_, err := store.Open(context.Background(), Ref{Kind: "bogus", OwnerID: uuid.New()})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = store.Open(context.Background(), WalletOf(uuid.Nil))
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestApplyDelta(t *testing.T) {
	conn := dbtest.Open(t)
	store := NewRepository(conn)
	ctx := context.Background()
	ref := seedWallet(t, conn, 10000)

	balance, err := store.ApplyDelta(ctx, ref, 5000)
	require.NoError(t, err)
	assert.Equal(t, int64(15000), balance)

	balance, err = store.ApplyDelta(ctx, ref, -15000)
	require.NoError(t, err)
	assert.Zero(t, balance)

	_, err = store.ApplyDelta(ctx, ref, -1)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInsufficientFunds))

	got, err := store.GetBalance(ctx, ref)
	require.NoError(t, err)
	assert.Zero(t, got)
}

func TestApplyDeltaMissingAccount(t *testing.T) {
	store := NewRepository(dbtest.Open(t))

	_, err := store.ApplyDelta(context.Background(), WalletOf(uuid.New()), 100)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	_, err = store.GetBalance(context.Background(), WalletOf(uuid.New()))
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestApplyDeltaConcurrentDebitsNeverOverdraw(t *testing.T) {
	conn := dbtest.Open(t)
	store := NewRepository(conn)
	ref := seedWallet(t, conn, 1000)

	const workers = 20
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := store.ApplyDelta(context.Background(), ref, -100); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			} else if !pkgerrors.IsCode(err, pkgerrors.CodeInsufficientFunds) {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, succeeded)
	balance, err := store.GetBalance(context.Background(), ref)
	require.NoError(t, err)
	assert.Zero(t, balance)
}

func TestLockReturnsAccountsInIDOrder(t *testing.T) {
	conn := dbtest.Open(t)
	store := NewRepository(conn)
	ctx := context.Background()

	a, err := store.Open(ctx, WalletOf(uuid.New()))
	require.NoError(t, err)
	b, err := store.Open(ctx, WalletOf(uuid.New()))
	require.NoError(t, err)

	var locked []models.Account
	err = conn.Transaction(func(tx *gorm.DB) error {
		var lockErr error
		locked, lockErr = store.WithTx(tx).Lock(ctx, b.ID, a.ID, b.ID)
		return lockErr
	})
	require.NoError(t, err)
	require.Len(t, locked, 2)
	assert.Equal(t, SortIDs([]uuid.UUID{a.ID, b.ID}), []uuid.UUID{locked[0].ID, locked[1].ID})

	_, err = store.Lock(ctx, uuid.New())
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestTotalBalance(t *testing.T) {
	conn := dbtest.Open(t)
	store := NewRepository(conn)
	seedWallet(t, conn, 300)
	seedWallet(t, conn, 700)
	require.NoError(t, conn.Create(&models.Account{
		Kind:         enums.AccountKindHospital,
		OwnerID:      uuid.New(),
		BalanceCents: 5000,
	}).Error)

	wallets, err := store.TotalBalance(context.Background(), enums.AccountKindUserWallet)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), wallets)

	hospitals, err := store.TotalBalance(context.Background(), enums.AccountKindHospital)
	require.NoError(t, err)
	assert.Equal(t, int64(5000), hospitals)
}

func TestSortIDsDeduplicates(t *testing.T) {
	a := uuid.MustParse("00000000-0000-0000-0000-000000000001")
	b := uuid.MustParse("00000000-0000-0000-0000-000000000002")
	assert.Equal(t, []uuid.UUID{a, b}, SortIDs([]uuid.UUID{b, a, b}))
}
