package api

import (
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"y8u-distributor/internal/distributor"
	"y8u-distributor/internal/domain"
	"y8u-distributor/internal/feed"
	"y8u-distributor/internal/merkle"
	"y8u-distributor/internal/storage"
	"y8u-distributor/internal/storage/memory"
	"y8u-distributor/internal/token"
	"y8u-distributor/internal/verification"
	"y8u-distributor/internal/vesting"
)

var quiet = log.New(io.Discard, "", 0)

type fixture struct {
	server   *httptest.Server
	hub      *feed.Hub
	now      *vesting.ManualTime
	ownerKey *ecdsa.PrivateKey
	userKey  *ecdsa.PrivateKey
	owner    *Client
	user     *Client
}

func mustKey(t *testing.T) *ecdsa.PrivateKey {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	return key
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		now:      vesting.NewManualTime(time.Now()),
		ownerKey: mustKey(t),
		userKey:  mustKey(t),
	}

	f.hub = feed.NewHub(nil, quiet)
	ledger := memory.NewLedgerStore()
	events := memory.NewClaimEventStore()
	dist, err := distributor.New(distributor.Options{
		Owner:     crypto.PubkeyToAddress(f.ownerKey.PublicKey),
		Time:      f.now,
		State:     memory.NewStateStore(),
		Ledger:    ledger,
		Events:    events,
		Minter:    token.NewLedger(vesting.DefaultTable().MaxSupply()),
		Publisher: f.hub,
		Logger:    quiet,
	})
	require.NoError(t, err)

	auditor, err := verification.NewAuditor(verification.AuditorOptions{Ledger: ledger, Events: events})
	require.NoError(t, err)

	srv := NewServer(Options{Distributor: dist, Feed: f.hub, Auditor: auditor, Logger: quiet})
	f.server = httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		f.hub.Close()
		f.server.Close()
	})

	f.owner = NewClient(f.server.URL, WithSigner(f.ownerKey), WithMaxRetries(0))
	f.user = NewClient(f.server.URL, WithSigner(f.userKey), WithMaxRetries(0))
	return f
}

func TestSignAndRecover(t *testing.T) {
	key := mustKey(t)
	payload := SigningPayload(http.MethodPost, "/v1/tge", 1_700_000_000, nil)

	sig, err := Sign(key, payload)
	require.NoError(t, err)

	got, err := RecoverSigner(payload, sig)
	require.NoError(t, err)
	assert.Equal(t, crypto.PubkeyToAddress(key.PublicKey), got)

	// Raw {0,1} recovery ids are accepted too.
	raw, err := crypto.Sign(accounts.TextHash(payload), key)
	require.NoError(t, err)
	got, err = RecoverSigner(payload, hexutil.Encode(raw))
	require.NoError(t, err)
	assert.Equal(t, crypto.PubkeyToAddress(key.PublicKey), got)

	// A different payload recovers a different address.
	other, err := RecoverSigner(SigningPayload(http.MethodPost, "/v1/tge", 1_700_000_001, nil), sig)
	require.NoError(t, err)
	assert.NotEqual(t, crypto.PubkeyToAddress(key.PublicKey), other)

	_, err = RecoverSigner(payload, "0x1234")
	assert.Error(t, err)
}

func TestServer_FixedPoolFlow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.owner.ClaimPool(ctx, domain.PoolAirdrop)
	assert.ErrorIs(t, err, domain.ErrTgeNotStarted)

	_, err = f.user.SetTGE(ctx)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	ts, err := f.owner.SetTGE(ctx)
	require.NoError(t, err)
	assert.Equal(t, f.now.Now().Unix(), ts)

	_, err = f.owner.SetTGE(ctx)
	assert.ErrorIs(t, err, domain.ErrAlreadySet)

	rec, err := f.owner.ClaimPool(ctx, domain.PoolAirdrop)
	require.NoError(t, err)
	assert.Equal(t, domain.Tokens(1_000_000).String(), rec.Amount.String())

	_, err = f.owner.ClaimPool(ctx, domain.PoolAirdrop)
	assert.ErrorIs(t, err, domain.ErrNoClaimable)

	_, err = f.user.ClaimPool(ctx, domain.PoolAirdrop)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusForbidden, apiErr.Status)

	total, err := f.owner.TotalClaimed(ctx, domain.PoolAirdrop)
	require.NoError(t, err)
	assert.Equal(t, domain.Tokens(1_000_000).String(), total.String())

	st, err := f.owner.Status(ctx)
	require.NoError(t, err)
	assert.True(t, st.Started)
	assert.Len(t, st.Pools, len(domain.AllPools))
}

func TestServer_SalePoolFlow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := crypto.PubkeyToAddress(f.userKey.PublicKey)

	tree, err := merkle.Build([]merkle.Allocation{
		{Account: user, Amount: domain.Tokens(100_000)},
		{Account: common.HexToAddress("0x0000000000000000000000000000000000000a02"), Amount: domain.Tokens(5_000)},
	})
	require.NoError(t, err)

	_, err = f.owner.SetTGE(ctx)
	require.NoError(t, err)

	assert.ErrorIs(t, f.user.SetRoot(ctx, domain.PoolStrategicSale2, tree.Root()), domain.ErrUnauthorized)
	require.NoError(t, f.owner.SetRoot(ctx, domain.PoolStrategicSale2, tree.Root()))

	alloc, proof, err := tree.Proof(user)
	require.NoError(t, err)

	// Preview before claiming.
	var proofHex []string
	for _, h := range proof {
		proofHex = append(proofHex, h.Hex())
	}
	resp, err := http.Get(f.server.URL + "/v1/pools/strategic-sale-2/claimable?account=" + user.Hex() +
		"&allocation=" + alloc.Amount.String() + "&proof=" + strings.Join(proofHex, ","))
	require.NoError(t, err)
	var preview AmountResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&preview))
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, domain.Tokens(1_000).String(), preview.Amount)

	// The owner cannot claim with the user's leaf.
	_, err = f.owner.ClaimSale(ctx, domain.PoolStrategicSale2, alloc.Amount, proof)
	assert.ErrorIs(t, err, domain.ErrInvalidProof)

	rec, err := f.user.ClaimSale(ctx, domain.PoolStrategicSale2, alloc.Amount, proof)
	require.NoError(t, err)
	assert.Equal(t, user, rec.Account)
	assert.Equal(t, domain.Tokens(1_000).String(), rec.Amount.String())

	_, err = f.user.ClaimSale(ctx, domain.PoolStrategicSale2, alloc.Amount, proof)
	assert.ErrorIs(t, err, domain.ErrNoClaimable)

	// History endpoints.
	resp, err = http.Get(f.server.URL + "/v1/accounts/" + user.Hex() + "/claims")
	require.NoError(t, err)
	var events []feed.Event
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&events))
	resp.Body.Close()
	require.Len(t, events, 1)
	assert.Equal(t, rec.ClaimID, events[0].ClaimID)

	resp, err = http.Get(f.server.URL + "/v1/claims/" + rec.ClaimID)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(f.server.URL + "/v1/claims/unknown")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestServer_Authentication(t *testing.T) {
	f := newFixture(t)

	post := func(t *testing.T, ts string, sig string) (*http.Response, ErrorResponse) {
		t.Helper()
		req, err := http.NewRequest(http.MethodPost, f.server.URL+"/v1/tge", nil)
		require.NoError(t, err)
		if ts != "" {
			req.Header.Set(HeaderTimestamp, ts)
		}
		if sig != "" {
			req.Header.Set(HeaderSignature, sig)
		}
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		var er ErrorResponse
		json.NewDecoder(resp.Body).Decode(&er)
		return resp, er
	}

	resp, er := post(t, "", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, CodeUnauthentic, er.Code)

	stale := time.Now().Add(-time.Hour).Unix()
	sig, err := Sign(f.ownerKey, SigningPayload(http.MethodPost, "/v1/tge", stale, nil))
	require.NoError(t, err)
	resp, er = post(t, strconv.FormatInt(stale, 10), sig)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, CodeUnauthentic, er.Code)

	resp, er = post(t, strconv.FormatInt(time.Now().Unix(), 10), "0xzz")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, CodeBadRequest, er.Code)

	// Signature over another path belongs to some other address.
	now := time.Now().Unix()
	sig, err = Sign(f.ownerKey, SigningPayload(http.MethodPost, "/v1/other", now, nil))
	require.NoError(t, err)
	resp, er = post(t, strconv.FormatInt(now, 10), sig)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, CodeUnauthorized, er.Code)
}

func TestServer_UnknownPool(t *testing.T) {
	f := newFixture(t)

	resp, err := http.Get(f.server.URL + "/v1/pools/nope/claimed")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	var er ErrorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&er))
	assert.Equal(t, CodeUnknownPool, er.Code)
}

func TestServer_ClaimFeed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	wsURL := "ws" + strings.TrimPrefix(f.server.URL, "http") + "/v1/ws/claims?pool=airdrop"
	sub, err := feed.Dial(ctx, wsURL, nil, quiet)
	require.NoError(t, err)
	defer sub.Close()

	require.Eventually(t, func() bool { return f.hub.Len() == 1 }, 2*time.Second, 10*time.Millisecond)

	_, err = f.owner.SetTGE(ctx)
	require.NoError(t, err)
	rec, err := f.owner.ClaimPool(ctx, domain.PoolAirdrop)
	require.NoError(t, err)

	select {
	case ev := <-sub.Events():
		assert.Equal(t, rec.ClaimID, ev.ClaimID)
	case <-time.After(2 * time.Second):
		t.Fatal("no claim event received")
	}
}

func TestServer_HealthAndMetrics(t *testing.T) {
	f := newFixture(t)

	resp, err := http.Get(f.server.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(f.server.URL + "/metrics")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestServer_Audit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.owner.SetTGE(ctx)
	require.NoError(t, err)
	_, err = f.owner.ClaimPool(ctx, domain.PoolAirdrop)
	require.NoError(t, err)

	report, err := f.user.Audit(ctx)
	require.NoError(t, err)
	assert.Equal(t, len(domain.AllPools), report.TotalPools)
	assert.Equal(t, 0, report.DivergentPools)
	for _, r := range report.Results {
		if r.Pool == domain.PoolAirdrop {
			assert.Equal(t, 1, r.Claims)
			assert.Equal(t, domain.Tokens(1_000_000).String(), r.Claimed)
		}
	}
}

func TestClient_RetriesServerErrors(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) < 3 {
			writeJSON(w, http.StatusServiceUnavailable, ErrorResponse{Code: CodeInternal, Message: "busy"})
			return
		}
		writeJSON(w, http.StatusOK, AmountResponse{Pool: "TEAM", Amount: "42"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, WithRetryDelay(time.Millisecond))
	total, err := c.TotalClaimed(context.Background(), domain.PoolTeam)
	require.NoError(t, err)
	assert.Equal(t, "42", total.String())
	assert.Equal(t, int32(3), attempts.Load())
}

func TestClient_DoesNotRetryConflicts(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		writeError(w, domain.ErrNoClaimable)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, WithSigner(mustKey(t)), WithRetryDelay(time.Millisecond))
	_, err := c.ClaimPool(context.Background(), domain.PoolTeam)
	assert.ErrorIs(t, err, domain.ErrNoClaimable)
	assert.Equal(t, int32(1), attempts.Load())
}

func TestClassify(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{domain.ErrNoClaimable, http.StatusConflict, CodeNoClaimable},
		{fmt.Errorf("commit AIRDROP claim: %w", storage.ErrConflict), http.StatusConflict, CodeConflict},
		{fmt.Errorf("%w: token unavailable", distributor.ErrMintFailed), http.StatusBadGateway, CodeMintFailed},
		{badRequest{fmt.Errorf("allocation is required")}, http.StatusBadRequest, CodeBadRequest},
		{fmt.Errorf("disk full"), http.StatusInternalServerError, CodeInternal},
	}

	for _, tt := range tests {
		status, code := classify(tt.err)
		assert.Equal(t, tt.status, status, tt.err.Error())
		assert.Equal(t, tt.code, code, tt.err.Error())
	}

	// Conflicts unwrap on the client side like every other sentinel.
	apiErr := decodeError(http.StatusConflict, []byte(`{"code":"conflict","message":"stale claimed value"}`))
	assert.ErrorIs(t, apiErr, storage.ErrConflict)
}

func TestClient_RequiresKeyForWrites(t *testing.T) {
	c := NewClient("http://127.0.0.1:0")
	_, err := c.SetTGE(context.Background())
	assert.Error(t, err)
}
