package domain

import (
	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
)

// ClaimRecord is the audit entry written for every committed claim.
type ClaimRecord struct {
	ClaimID       string         // deterministic receipt id
	Pool          Pool           // pool the tokens were released from
	Account       common.Address // recipient of the minted delta
	Amount        sdkmath.Int    // delta released by this claim
	AccountTotal  sdkmath.Int    // account (or fixed pool) claimed total after this claim
	PoolTotal     sdkmath.Int    // pool-wide claimed total after this claim
	ElapsedMonths int64          // whole months since TGE at claim time
	ClaimedAt     int64          // unix seconds
}

// PoolStatus is a point-in-time view of one pool.
type PoolStatus struct {
	Pool     Pool
	Sale     bool
	Unlocked *sdkmath.Int // nil for sale pools, where unlocked is per account
	Fraction *int64       // unlocked numerator for sale pools
	Denom    int64
	Claimed  sdkmath.Int
	Cap      sdkmath.Int
	Root     *common.Hash // nil for fixed pools or unset roots
}

// PoolSnapshot is a periodic record of a pool's vesting progress.
type PoolSnapshot struct {
	Pool          Pool
	TakenAt       int64       // unix seconds
	ElapsedMonths int64       // whole months since TGE
	Unlocked      sdkmath.Int // fixed pools: unlocked amount; sale pools: unlocked share of the cap
	Claimed       sdkmath.Int
	Cap           sdkmath.Int
}
