package ledger

import (
	"context"
	"fmt"

	sdkmath "cosmossdk.io/math"

	"y8u-distributor/internal/domain"
	"y8u-distributor/internal/storage"
)

// capEnforcer rejects a sale claim whose delta would push the pool total past
// its cap. There is no partial payout. The store repeats the check atomically
// in its commit; this pre-check keeps the failure cheap.
type capEnforcer struct {
	store storage.LedgerStore
}

func (c capEnforcer) check(ctx context.Context, pool domain.Pool, delta, poolCap sdkmath.Int) error {
	total, err := c.store.PoolClaimed(ctx, pool)
	if err != nil {
		return fmt.Errorf("read %s total: %w", pool, err)
	}
	if total.Add(delta).GT(poolCap) {
		return domain.ErrPoolExhausted
	}
	return nil
}
