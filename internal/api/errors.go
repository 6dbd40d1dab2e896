package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"y8u-distributor/internal/distributor"
	"y8u-distributor/internal/domain"
	"y8u-distributor/internal/storage"
)

// Error codes carried in error responses.
const (
	CodeTgeNotStarted = "tge_not_started"
	CodeAlreadySet    = "already_set"
	CodeInvalidProof  = "invalid_proof"
	CodeNoClaimable   = "no_claimable"
	CodePoolExhausted = "pool_exhausted"
	CodeUnauthorized  = "unauthorized"
	CodeUnknownPool   = "unknown_pool"
	CodeNotFound      = "not_found"
	CodeBadRequest    = "bad_request"
	CodeUnauthentic   = "unauthenticated"
	CodeMintFailed    = "mint_failed"
	CodeConflict      = "conflict"
	CodeInternal      = "internal"
)

// codeErrors maps response codes back to the sentinel they stand for.
var codeErrors = map[string]error{
	CodeTgeNotStarted: domain.ErrTgeNotStarted,
	CodeAlreadySet:    domain.ErrAlreadySet,
	CodeInvalidProof:  domain.ErrInvalidProof,
	CodeNoClaimable:   domain.ErrNoClaimable,
	CodePoolExhausted: domain.ErrPoolExhausted,
	CodeUnauthorized:  domain.ErrUnauthorized,
	CodeUnknownPool:   domain.ErrUnknownPool,
	CodeNotFound:      storage.ErrNotFound,
	CodeMintFailed:    distributor.ErrMintFailed,
	CodeConflict:      storage.ErrConflict,
}

// ErrorResponse is the JSON body of every non-2xx response.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// badRequest marks input validation failures.
type badRequest struct{ err error }

func (b badRequest) Error() string { return b.err.Error() }
func (b badRequest) Unwrap() error { return b.err }

// classify maps an error to an HTTP status and response code.
func classify(err error) (int, string) {
	var br badRequest
	switch {
	case errors.As(err, &br):
		return http.StatusBadRequest, CodeBadRequest
	case errors.Is(err, errMissingSignature), errors.Is(err, errStaleSignature):
		return http.StatusUnauthorized, CodeUnauthentic
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusForbidden, CodeUnauthorized
	case errors.Is(err, domain.ErrInvalidProof):
		return http.StatusBadRequest, CodeInvalidProof
	case errors.Is(err, domain.ErrUnknownPool):
		return http.StatusNotFound, CodeUnknownPool
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound, CodeNotFound
	case errors.Is(err, domain.ErrTgeNotStarted):
		return http.StatusConflict, CodeTgeNotStarted
	case errors.Is(err, domain.ErrAlreadySet):
		return http.StatusConflict, CodeAlreadySet
	case errors.Is(err, domain.ErrNoClaimable):
		return http.StatusConflict, CodeNoClaimable
	case errors.Is(err, domain.ErrPoolExhausted):
		return http.StatusConflict, CodePoolExhausted
	case errors.Is(err, storage.ErrConflict):
		return http.StatusConflict, CodeConflict
	case errors.Is(err, distributor.ErrMintFailed):
		return http.StatusBadGateway, CodeMintFailed
	}
	return http.StatusInternalServerError, CodeInternal
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	status, code := classify(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "internal error"
	}
	writeJSON(w, status, ErrorResponse{Code: code, Message: msg})
}

// APIError is a non-2xx response received by Client. It unwraps to the
// matching sentinel so callers can use errors.Is across the wire.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	return e.Code + ": " + e.Message
}

func (e *APIError) Unwrap() error {
	return codeErrors[e.Code]
}
