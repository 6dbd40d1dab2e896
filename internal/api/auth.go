package api

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// Request signing headers.
const (
	HeaderSignature = "X-Signature"
	HeaderTimestamp = "X-Timestamp"
)

// DefaultMaxSkew bounds how far a signed timestamp may drift from server time.
const DefaultMaxSkew = 5 * time.Minute

var (
	errMissingSignature = errors.New("missing signature")
	errStaleSignature   = errors.New("signature timestamp outside allowed window")
)

// SigningPayload is the message a caller signs with personal_sign:
// "<METHOD> <path>\n<unix timestamp>\n<body>".
func SigningPayload(method, path string, ts int64, body []byte) []byte {
	head := fmt.Sprintf("%s %s\n%d\n", method, path, ts)
	return append([]byte(head), body...)
}

// Sign produces a 65-byte personal_sign signature with V in {27, 28}.
func Sign(key *ecdsa.PrivateKey, payload []byte) (string, error) {
	sig, err := crypto.Sign(accounts.TextHash(payload), key)
	if err != nil {
		return "", err
	}
	sig[crypto.RecoveryIDOffset] += 27
	return hexutil.Encode(sig), nil
}

// RecoverSigner returns the address that signed payload. Both the {0,1} and
// the {27,28} recovery id conventions are accepted.
func RecoverSigner(payload []byte, signature string) (common.Address, error) {
	sig, err := hexutil.Decode(signature)
	if err != nil {
		return common.Address{}, fmt.Errorf("decode signature: %w", err)
	}
	if len(sig) != crypto.SignatureLength {
		return common.Address{}, fmt.Errorf("signature must be %d bytes, got %d", crypto.SignatureLength, len(sig))
	}
	if sig[crypto.RecoveryIDOffset] >= 27 {
		sig[crypto.RecoveryIDOffset] -= 27
	}

	pub, err := crypto.SigToPub(accounts.TextHash(payload), sig)
	if err != nil {
		return common.Address{}, fmt.Errorf("recover signer: %w", err)
	}
	return crypto.PubkeyToAddress(*pub), nil
}

// verifier authenticates signed requests.
type verifier struct {
	now     func() time.Time
	maxSkew time.Duration
}

func (v verifier) signer(method, path, tsHeader, sigHeader string, body []byte) (common.Address, error) {
	if sigHeader == "" || tsHeader == "" {
		return common.Address{}, errMissingSignature
	}

	ts, err := strconv.ParseInt(tsHeader, 10, 64)
	if err != nil {
		return common.Address{}, fmt.Errorf("invalid %s: %w", HeaderTimestamp, err)
	}
	skew := v.now().Sub(time.Unix(ts, 0))
	if skew > v.maxSkew || skew < -v.maxSkew {
		return common.Address{}, errStaleSignature
	}

	return RecoverSigner(SigningPayload(method, path, ts, body), sigHeader)
}
