package distributor

import (
	"context"

	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"

	"y8u-distributor/internal/domain"
)

// ClaimTeam claims the Team pool.
func (d *Distributor) ClaimTeam(ctx context.Context, caller common.Address) (*domain.ClaimRecord, error) {
	return d.ClaimPool(ctx, caller, domain.PoolTeam)
}

// ClaimTreasury claims the Treasury pool.
func (d *Distributor) ClaimTreasury(ctx context.Context, caller common.Address) (*domain.ClaimRecord, error) {
	return d.ClaimPool(ctx, caller, domain.PoolTreasury)
}

// ClaimMarketing claims the Marketing pool.
func (d *Distributor) ClaimMarketing(ctx context.Context, caller common.Address) (*domain.ClaimRecord, error) {
	return d.ClaimPool(ctx, caller, domain.PoolMarketing)
}

// ClaimDevelopment claims the Development pool.
func (d *Distributor) ClaimDevelopment(ctx context.Context, caller common.Address) (*domain.ClaimRecord, error) {
	return d.ClaimPool(ctx, caller, domain.PoolDevelopment)
}

// ClaimEcosystem claims the Ecosystem pool.
func (d *Distributor) ClaimEcosystem(ctx context.Context, caller common.Address) (*domain.ClaimRecord, error) {
	return d.ClaimPool(ctx, caller, domain.PoolEcosystem)
}

// ClaimAIMining claims the AI-Mining pool.
func (d *Distributor) ClaimAIMining(ctx context.Context, caller common.Address) (*domain.ClaimRecord, error) {
	return d.ClaimPool(ctx, caller, domain.PoolAIMining)
}

// ClaimAirdrop claims the Airdrop pool.
func (d *Distributor) ClaimAirdrop(ctx context.Context, caller common.Address) (*domain.ClaimRecord, error) {
	return d.ClaimPool(ctx, caller, domain.PoolAirdrop)
}

// ClaimPrivateSale claims the caller's Private Sale share.
func (d *Distributor) ClaimPrivateSale(ctx context.Context, caller common.Address, allocation sdkmath.Int, proof []common.Hash) (*domain.ClaimRecord, error) {
	return d.ClaimSale(ctx, caller, domain.PoolPrivateSale, allocation, proof)
}

// ClaimStrategicSale2 claims the caller's Strategic Sale 2 share.
func (d *Distributor) ClaimStrategicSale2(ctx context.Context, caller common.Address, allocation sdkmath.Int, proof []common.Hash) (*domain.ClaimRecord, error) {
	return d.ClaimSale(ctx, caller, domain.PoolStrategicSale2, allocation, proof)
}

// SetMerkleRootPrivateSale sets the Private Sale root.
func (d *Distributor) SetMerkleRootPrivateSale(ctx context.Context, caller common.Address, root common.Hash) error {
	return d.SetMerkleRoot(ctx, caller, domain.PoolPrivateSale, root)
}

// SetMerkleRootStrategicSale2 sets the Strategic Sale 2 root.
func (d *Distributor) SetMerkleRootStrategicSale2(ctx context.Context, caller common.Address, root common.Hash) error {
	return d.SetMerkleRoot(ctx, caller, domain.PoolStrategicSale2, root)
}
