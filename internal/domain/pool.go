package domain

import (
	"fmt"
	"strings"
)

// Pool identifies one of the nine allocation pools.
type Pool string

const (
	PoolTeam           Pool = "TEAM"
	PoolTreasury       Pool = "TREASURY"
	PoolMarketing      Pool = "MARKETING"
	PoolDevelopment    Pool = "DEVELOPMENT"
	PoolEcosystem      Pool = "ECOSYSTEM"
	PoolAIMining       Pool = "AI_MINING"
	PoolAirdrop        Pool = "AIRDROP"
	PoolPrivateSale    Pool = "PRIVATE_SALE"
	PoolStrategicSale2 Pool = "STRATEGIC_SALE_2"
)

// FixedPools are claimed by the owner against a static schedule.
var FixedPools = []Pool{
	PoolTeam,
	PoolTreasury,
	PoolMarketing,
	PoolDevelopment,
	PoolEcosystem,
	PoolAIMining,
	PoolAirdrop,
}

// SalePools are claimed by enrolled accounts with a Merkle proof.
var SalePools = []Pool{
	PoolPrivateSale,
	PoolStrategicSale2,
}

// AllPools lists every pool, fixed pools first.
var AllPools = append(append([]Pool{}, FixedPools...), SalePools...)

// String returns the string representation of Pool.
func (p Pool) String() string {
	return string(p)
}

// IsValid checks if the pool is one of the known pools.
func (p Pool) IsValid() bool {
	for _, known := range AllPools {
		if p == known {
			return true
		}
	}
	return false
}

// IsSale reports whether the pool is authorized by Merkle proofs.
func (p Pool) IsSale() bool {
	return p == PoolPrivateSale || p == PoolStrategicSale2
}

// DisplayName returns the human readable pool name.
func (p Pool) DisplayName() string {
	switch p {
	case PoolTeam:
		return "Team"
	case PoolTreasury:
		return "Treasury"
	case PoolMarketing:
		return "Marketing"
	case PoolDevelopment:
		return "Development"
	case PoolEcosystem:
		return "Ecosystem"
	case PoolAIMining:
		return "AI Mining"
	case PoolAirdrop:
		return "Airdrop"
	case PoolPrivateSale:
		return "Private sale"
	case PoolStrategicSale2:
		return "Strategic sale 2"
	}
	return string(p)
}

// ParsePool resolves a pool from its identifier. Matching is case-insensitive
// and accepts '-' in place of '_' so URL paths like "ai-mining" work.
func ParsePool(s string) (Pool, error) {
	normalized := Pool(strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(s), "-", "_")))
	if !normalized.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownPool, s)
	}
	return normalized, nil
}
