// Package merkle builds and verifies allocation trees whose leaves and
// proofs are compatible with OpenZeppelin's StandardMerkleTree for the
// leaf encoding (address, uint256).
package merkle

import (
	"bytes"
	"fmt"

	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"golang.org/x/crypto/sha3"
)

// Allocation binds an account to its total entitlement in base units.
type Allocation struct {
	Account common.Address
	Amount  sdkmath.Int
}

func keccak(chunks ...[]byte) common.Hash {
	h := sha3.NewLegacyKeccak256()
	for _, c := range chunks {
		h.Write(c)
	}
	var out common.Hash
	h.Sum(out[:0])
	return out
}

// encodeLeaf returns abi.encode(address, uint256).
func encodeLeaf(account common.Address, amount sdkmath.Int) ([]byte, error) {
	if amount.IsNil() || amount.IsNegative() {
		return nil, fmt.Errorf("allocation for %s: amount must be non-negative", account.Hex())
	}
	if amount.BigInt().BitLen() > 256 {
		return nil, fmt.Errorf("allocation for %s: amount exceeds uint256", account.Hex())
	}
	buf := make([]byte, 64)
	copy(buf[12:32], account.Bytes())
	amount.BigInt().FillBytes(buf[32:])
	return buf, nil
}

// LeafHash returns keccak256(keccak256(abi.encode(account, amount))).
func LeafHash(account common.Address, amount sdkmath.Int) (common.Hash, error) {
	enc, err := encodeLeaf(account, amount)
	if err != nil {
		return common.Hash{}, err
	}
	inner := keccak(enc)
	return keccak(inner[:]), nil
}

// hashPair hashes two nodes in ascending byte order, so proofs carry no
// left/right flags.
func hashPair(a, b common.Hash) common.Hash {
	if bytes.Compare(a[:], b[:]) > 0 {
		a, b = b, a
	}
	return keccak(a[:], b[:])
}

// ProcessProof folds proof into leaf and returns the implied root.
func ProcessProof(leaf common.Hash, proof []common.Hash) common.Hash {
	computed := leaf
	for _, sibling := range proof {
		computed = hashPair(computed, sibling)
	}
	return computed
}

// Verify reports whether proof binds leaf to root.
func Verify(root, leaf common.Hash, proof []common.Hash) bool {
	return ProcessProof(leaf, proof) == root
}

// VerifyAllocation reports whether proof binds (account, amount) to root.
// A zero root never verifies.
func VerifyAllocation(root common.Hash, account common.Address, amount sdkmath.Int, proof []common.Hash) bool {
	if root == (common.Hash{}) {
		return false
	}
	leaf, err := LeafHash(account, amount)
	if err != nil {
		return false
	}
	return Verify(root, leaf, proof)
}

// ParseHash decodes a 0x-prefixed 32-byte hex string.
func ParseHash(s string) (common.Hash, error) {
	b, err := hexutil.Decode(s)
	if err != nil {
		return common.Hash{}, fmt.Errorf("invalid hash %q: %w", s, err)
	}
	if len(b) != common.HashLength {
		return common.Hash{}, fmt.Errorf("invalid hash %q: %d bytes", s, len(b))
	}
	return common.BytesToHash(b), nil
}

// ParseProof decodes a list of 0x-prefixed sibling hashes.
func ParseProof(items []string) ([]common.Hash, error) {
	proof := make([]common.Hash, len(items))
	for i, s := range items {
		h, err := ParseHash(s)
		if err != nil {
			return nil, fmt.Errorf("proof[%d]: %w", i, err)
		}
		proof[i] = h
	}
	return proof, nil
}
