package ledger

import (
	"context"

	"github.com/google/uuid"

	"github.com/angelmondragon/medledger-backend/internal/accounts"
)

// leg is one side of a balance movement.
type leg struct {
	ref   accounts.Ref
	delta int64
}

// post resolves every account touched by legs, locks them in ascending id
// order and applies the deltas in that same order. Any failure is returned
// untouched so the enclosing transaction rolls back every leg.
func post(ctx context.Context, store accounts.Store, legs ...leg) error {
	byID := make(map[uuid.UUID]leg, len(legs))
	ids := make([]uuid.UUID, 0, len(legs))
	for _, l := range legs {
		account, err := store.Resolve(ctx, l.ref)
		if err != nil {
			return err
		}
		if existing, ok := byID[account.ID]; ok {
			existing.delta += l.delta
			byID[account.ID] = existing
			continue
		}
		byID[account.ID] = l
		ids = append(ids, account.ID)
	}

	locked, err := store.Lock(ctx, ids...)
	if err != nil {
		return err
	}
	for _, account := range locked {
		l := byID[account.ID]
		if l.delta == 0 {
			continue
		}
		if _, err := store.ApplyDelta(ctx, l.ref, l.delta); err != nil {
			return err
		}
	}
	return nil
}
