package api

import (
	"fmt"

	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"

	"y8u-distributor/internal/distributor"
	"y8u-distributor/internal/domain"
	"y8u-distributor/internal/merkle"
)

// Amounts travel as base-unit decimal strings.

// TGEResponse is returned by POST /v1/tge.
type TGEResponse struct {
	TGE int64 `json:"tge"`
}

// RootRequest is the body of PUT /v1/pools/{pool}/root.
type RootRequest struct {
	Root string `json:"root"`
}

// ClaimRequest is the body of POST /v1/pools/{pool}/claim. Fixed pools take
// an empty body.
type ClaimRequest struct {
	Allocation string   `json:"allocation,omitempty"`
	Proof      []string `json:"proof,omitempty"`
}

func (r ClaimRequest) parse() (sdkmath.Int, []common.Hash, error) {
	if r.Allocation == "" {
		return sdkmath.Int{}, nil, badRequest{fmt.Errorf("allocation is required")}
	}
	alloc, err := domain.ParseAmount(r.Allocation)
	if err != nil {
		return sdkmath.Int{}, nil, badRequest{err}
	}
	proof, err := merkle.ParseProof(r.Proof)
	if err != nil {
		return sdkmath.Int{}, nil, badRequest{err}
	}
	return alloc, proof, nil
}

// AmountResponse reports a single pool amount.
type AmountResponse struct {
	Pool   string `json:"pool"`
	Amount string `json:"amount"`
}

// PoolStatusResponse is one pool in GET /v1/status.
type PoolStatusResponse struct {
	Pool        string  `json:"pool"`
	Name        string  `json:"name"`
	Sale        bool    `json:"sale"`
	Unlocked    *string `json:"unlocked,omitempty"`
	Fraction    *int64  `json:"fraction,omitempty"`
	Denominator int64   `json:"denominator,omitempty"`
	Claimed     string  `json:"claimed"`
	Cap         string  `json:"cap"`
	Root        *string `json:"root,omitempty"`
}

// StatusResponse is returned by GET /v1/status.
type StatusResponse struct {
	Owner         string               `json:"owner"`
	Started       bool                 `json:"started"`
	TGE           int64                `json:"tge,omitempty"`
	ElapsedMonths int64                `json:"elapsed_months"`
	Pools         []PoolStatusResponse `json:"pools"`
}

func newStatusResponse(owner common.Address, st *distributor.Status) StatusResponse {
	resp := StatusResponse{
		Owner:         owner.Hex(),
		Started:       st.Started,
		TGE:           st.TGE,
		ElapsedMonths: st.ElapsedMonths,
		Pools:         make([]PoolStatusResponse, 0, len(st.Pools)),
	}
	for _, ps := range st.Pools {
		p := PoolStatusResponse{
			Pool:        string(ps.Pool),
			Name:        ps.Pool.DisplayName(),
			Sale:        ps.Sale,
			Fraction:    ps.Fraction,
			Denominator: ps.Denom,
			Claimed:     ps.Claimed.String(),
			Cap:         ps.Cap.String(),
		}
		if ps.Unlocked != nil {
			s := ps.Unlocked.String()
			p.Unlocked = &s
		}
		if ps.Root != nil {
			s := ps.Root.Hex()
			p.Root = &s
		}
		resp.Pools = append(resp.Pools, p)
	}
	return resp
}
