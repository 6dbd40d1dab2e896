// Package api exposes the distributor over HTTP.
//
// State-changing requests are authenticated by a personal_sign signature
// over SigningPayload, carried in the X-Signature and X-Timestamp headers.
// The recovered signer is the caller: the owner for TGE, roots and fixed
// pools, the claiming account for sale pools. Reads are unauthenticated.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"y8u-distributor/internal/distributor"
	"y8u-distributor/internal/domain"
	"y8u-distributor/internal/feed"
	"y8u-distributor/internal/merkle"
	"y8u-distributor/internal/observability"
	"y8u-distributor/internal/verification"
)

const maxBodyBytes = 1 << 20

// Server serves the HTTP API.
type Server struct {
	dist   *distributor.Distributor
	feed   http.Handler
	audit  *verification.Auditor
	auth   verifier
	logger *log.Logger
}

// Options contains configuration for creating a Server.
type Options struct {
	Distributor *distributor.Distributor
	Feed        *feed.Hub             // optional websocket claim feed
	Auditor     *verification.Auditor // optional, serves GET /v1/audit
	Now         func() time.Time      // Default: time.Now
	MaxSkew     time.Duration         // Default: DefaultMaxSkew
	Logger      *log.Logger
}

// NewServer creates an API server.
func NewServer(opts Options) *Server {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	skew := opts.MaxSkew
	if skew == 0 {
		skew = DefaultMaxSkew
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	s := &Server{
		dist:   opts.Distributor,
		audit:  opts.Auditor,
		auth:   verifier{now: now, maxSkew: skew},
		logger: logger,
	}
	if opts.Feed != nil {
		s.feed = opts.Feed
	}
	return s
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("GET /metrics", observability.Handler())

	mux.HandleFunc("POST /v1/tge", s.handleSetTGE)
	mux.HandleFunc("PUT /v1/pools/{pool}/root", s.handleSetRoot)
	mux.HandleFunc("POST /v1/pools/{pool}/claim", s.handleClaim)
	mux.HandleFunc("GET /v1/pools/{pool}/claimed", s.handleClaimed)
	mux.HandleFunc("GET /v1/pools/{pool}/claimable", s.handleClaimable)
	mux.HandleFunc("GET /v1/pools/{pool}/claims", s.handlePoolClaims)
	mux.HandleFunc("GET /v1/accounts/{account}/claims", s.handleAccountClaims)
	mux.HandleFunc("GET /v1/claims/{id}", s.handleReceipt)
	mux.HandleFunc("GET /v1/status", s.handleStatus)
	if s.audit != nil {
		mux.HandleFunc("GET /v1/audit", s.handleAudit)
	}
	if s.feed != nil {
		mux.Handle("GET /v1/ws/claims", s.feed)
	}

	return mux
}

// caller reads the body and recovers its signer.
func (s *Server) caller(w http.ResponseWriter, r *http.Request) (common.Address, []byte, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return common.Address{}, nil, badRequest{fmt.Errorf("read body: %w", err)}
	}

	addr, err := s.auth.signer(r.Method, r.URL.Path,
		r.Header.Get(HeaderTimestamp), r.Header.Get(HeaderSignature), body)
	if err != nil {
		if errors.Is(err, errMissingSignature) || errors.Is(err, errStaleSignature) {
			return common.Address{}, nil, err
		}
		return common.Address{}, nil, badRequest{err}
	}
	return addr, body, nil
}

func pathPool(r *http.Request) (domain.Pool, error) {
	return domain.ParsePool(r.PathValue("pool"))
}

func (s *Server) handleSetTGE(w http.ResponseWriter, r *http.Request) {
	caller, _, err := s.caller(w, r)
	if err != nil {
		writeError(w, err)
		return
	}

	ts, err := s.dist.SetTGE(r.Context(), caller)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, TGEResponse{TGE: ts})
}

func (s *Server) handleSetRoot(w http.ResponseWriter, r *http.Request) {
	pool, err := pathPool(r)
	if err != nil {
		writeError(w, err)
		return
	}
	caller, body, err := s.caller(w, r)
	if err != nil {
		writeError(w, err)
		return
	}

	var req RootRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, badRequest{fmt.Errorf("decode body: %w", err)})
		return
	}
	root, err := merkle.ParseHash(req.Root)
	if err != nil {
		writeError(w, badRequest{err})
		return
	}

	if err := s.dist.SetMerkleRoot(r.Context(), caller, pool, root); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, RootRequest{Root: root.Hex()})
}

func (s *Server) handleClaim(w http.ResponseWriter, r *http.Request) {
	pool, err := pathPool(r)
	if err != nil {
		writeError(w, err)
		return
	}
	caller, body, err := s.caller(w, r)
	if err != nil {
		writeError(w, err)
		return
	}

	var rec *domain.ClaimRecord
	if pool.IsSale() {
		rec, err = s.claimSale(r, caller, pool, body)
	} else {
		rec, err = s.dist.ClaimPool(r.Context(), caller, pool)
	}
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, feed.EventFromRecord(rec))
}

func (s *Server) claimSale(r *http.Request, caller common.Address, pool domain.Pool, body []byte) (*domain.ClaimRecord, error) {
	var req ClaimRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, badRequest{fmt.Errorf("decode body: %w", err)}
	}
	alloc, proof, err := req.parse()
	if err != nil {
		return nil, err
	}
	return s.dist.ClaimSale(r.Context(), caller, pool, alloc, proof)
}

func (s *Server) handleClaimed(w http.ResponseWriter, r *http.Request) {
	pool, err := pathPool(r)
	if err != nil {
		writeError(w, err)
		return
	}

	total, err := s.dist.TotalClaimed(r.Context(), pool)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, AmountResponse{Pool: string(pool), Amount: total.String()})
}

// handleClaimable previews a claim. Sale pools take account, allocation and
// a comma-separated proof as query parameters.
func (s *Server) handleClaimable(w http.ResponseWriter, r *http.Request) {
	pool, err := pathPool(r)
	if err != nil {
		writeError(w, err)
		return
	}

	if !pool.IsSale() {
		amount, err := s.dist.Claimable(r.Context(), pool)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, AmountResponse{Pool: string(pool), Amount: amount.String()})
		return
	}

	q := r.URL.Query()
	account := q.Get("account")
	if !common.IsHexAddress(account) {
		writeError(w, badRequest{fmt.Errorf("invalid account %q", account)})
		return
	}
	var proof []string
	if p := q.Get("proof"); p != "" {
		proof = strings.Split(p, ",")
	}
	alloc, hashes, err := ClaimRequest{Allocation: q.Get("allocation"), Proof: proof}.parse()
	if err != nil {
		writeError(w, err)
		return
	}

	amount, err := s.dist.ClaimableSale(r.Context(), pool, common.HexToAddress(account), alloc, hashes)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, AmountResponse{Pool: string(pool), Amount: amount.String()})
}

func (s *Server) handlePoolClaims(w http.ResponseWriter, r *http.Request) {
	pool, err := pathPool(r)
	if err != nil {
		writeError(w, err)
		return
	}

	recs, err := s.dist.Claims(r.Context(), pool)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toEvents(recs))
}

func (s *Server) handleAccountClaims(w http.ResponseWriter, r *http.Request) {
	account := r.PathValue("account")
	if !common.IsHexAddress(account) {
		writeError(w, badRequest{fmt.Errorf("invalid account %q", account)})
		return
	}

	recs, err := s.dist.ClaimsOf(r.Context(), common.HexToAddress(account))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toEvents(recs))
}

func (s *Server) handleReceipt(w http.ResponseWriter, r *http.Request) {
	rec, err := s.dist.Receipt(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, feed.EventFromRecord(rec))
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	st, err := s.dist.Status(r.Context())
	if err != nil {
		s.logger.Printf("status: %v", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newStatusResponse(s.dist.Owner(), st))
}

func (s *Server) handleAudit(w http.ResponseWriter, r *http.Request) {
	report, err := s.audit.VerifyAll(r.Context())
	if err != nil {
		s.logger.Printf("audit: %v", err)
		writeError(w, err)
		return
	}
	if report.DivergentPools > 0 {
		s.logger.Printf("audit: %d of %d pools diverge from claim history", report.DivergentPools, report.TotalPools)
	}
	writeJSON(w, http.StatusOK, report)
}

func toEvents(recs []*domain.ClaimRecord) []feed.Event {
	out := make([]feed.Event, 0, len(recs))
	for _, r := range recs {
		out = append(out, feed.EventFromRecord(r))
	}
	return out
}
