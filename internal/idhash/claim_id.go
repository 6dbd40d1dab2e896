// Package idhash derives deterministic identifiers for claim receipts.
package idhash

import (
	"crypto/sha256"
	"fmt"

	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
	"github.com/mr-tron/base58"

	"y8u-distributor/internal/domain"
)

// ComputeClaimID computes a deterministic claim_id.
// Formula: base58(SHA256(pool|account|account_total|elapsed_months))
//
// account_total strictly increases with every claim on the same entry, so the
// ID is unique per claim and identical when a claim is replayed from its record.
func ComputeClaimID(pool domain.Pool, account common.Address, accountTotal sdkmath.Int, elapsedMonths int64) string {
	data := fmt.Sprintf("%s|%s|%s|%d",
		string(pool),
		account.Hex(),
		accountTotal.String(),
		elapsedMonths,
	)

	hash := sha256.Sum256([]byte(data))
	return base58.Encode(hash[:])
}
