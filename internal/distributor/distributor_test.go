package distributor

import (
	"context"
	"errors"
	"io"
	"log"
	"sync"
	"testing"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"y8u-distributor/internal/domain"
	"y8u-distributor/internal/idhash"
	"y8u-distributor/internal/merkle"
	"y8u-distributor/internal/storage/memory"
	"y8u-distributor/internal/token"
	"y8u-distributor/internal/vesting"
)

var (
	owner = common.HexToAddress("0x00000000000000000000000000000000000000f0")
	addr1 = common.HexToAddress("0x0000000000000000000000000000000000000a01")
	addr2 = common.HexToAddress("0x0000000000000000000000000000000000000a02")
	addr3 = common.HexToAddress("0x0000000000000000000000000000000000000a03")
	addr4 = common.HexToAddress("0x0000000000000000000000000000000000000a04")
	addr5 = common.HexToAddress("0x0000000000000000000000000000000000000a05")
	// addrOver's leaf pushes the Strategic Sale 2 tree past the pool cap.
	addrOver = common.HexToAddress("0x0000000000000000000000000000000000000a06")
)

type recorder struct {
	mu   sync.Mutex
	recs []*domain.ClaimRecord
}

func (r *recorder) Publish(rec *domain.ClaimRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recs = append(r.recs, rec)
}

func (r *recorder) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.recs)
}

type testEnv struct {
	d      *Distributor
	now    *vesting.ManualTime
	token  *token.Ledger
	state  *memory.StateStore
	ledger *memory.LedgerStore
	events *memory.ClaimEventStore
	pub    *recorder
}

func newEnv(t *testing.T) *testEnv {
	t.Helper()

	e := &testEnv{
		now:    vesting.NewManualTime(time.Unix(1_700_000_000, 0)),
		token:  token.NewLedger(vesting.DefaultTable().MaxSupply()),
		state:  memory.NewStateStore(),
		ledger: memory.NewLedgerStore(),
		events: memory.NewClaimEventStore(),
		pub:    &recorder{},
	}

	d, err := New(Options{
		Owner:     owner,
		Time:      e.now,
		State:     e.state,
		Ledger:    e.ledger,
		Events:    e.events,
		Minter:    e.token,
		Publisher: e.pub,
		Logger:    log.New(io.Discard, "", 0),
	})
	require.NoError(t, err)
	e.d = d
	return e
}

// advance moves time forward n months plus a few seconds.
func (e *testEnv) advance(n int64) {
	e.now.AdvanceMonths(n, 10*time.Second)
}

func (e *testEnv) startTGE(t *testing.T) {
	t.Helper()
	_, err := e.d.SetTGE(context.Background(), owner)
	require.NoError(t, err)
}

func assertAmount(t *testing.T, want, got sdkmath.Int, msgAndArgs ...interface{}) {
	t.Helper()
	assert.Equal(t, want.String(), got.String(), msgAndArgs...)
}

// share is allocation * numerator / 10^7, the sale fraction arithmetic.
func share(allocation sdkmath.Int, numerator int64) sdkmath.Int {
	return allocation.MulRaw(numerator).QuoRaw(vesting.SaleDenominator)
}

func TestNew_Validation(t *testing.T) {
	_, err := New(Options{Owner: owner})
	assert.Error(t, err)

	_, err = New(Options{
		State:  memory.NewStateStore(),
		Ledger: memory.NewLedgerStore(),
		Minter: token.NewLedger(vesting.DefaultTable().MaxSupply()),
	})
	assert.Error(t, err, "zero owner")

	_, err = New(Options{
		Owner:  owner,
		State:  memory.NewStateStore(),
		Ledger: memory.NewLedgerStore(),
		Minter: token.NewLedger(domain.Tokens(1)),
	})
	assert.Error(t, err, "max supply below caps")
}

func TestSetTGE(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	_, err := e.d.SetTGE(ctx, addr1)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	ts, err := e.d.SetTGE(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, e.now.Now().Unix(), ts)

	e.advance(1)
	_, err = e.d.SetTGE(ctx, owner)
	assert.ErrorIs(t, err, domain.ErrAlreadySet)

	stored, err := e.state.GetTGE(ctx)
	require.NoError(t, err)
	assert.Equal(t, ts, stored)
}

func TestLoad_RestoresPersistedTGE(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	// Nothing persisted yet.
	require.NoError(t, e.d.Load(ctx))

	e.startTGE(t)
	e.advance(4)

	other, err := New(Options{
		Owner:  owner,
		Time:   e.now,
		State:  e.state,
		Ledger: e.ledger,
		Minter: e.token,
		Logger: log.New(io.Discard, "", 0),
	})
	require.NoError(t, err)
	require.NoError(t, other.Load(ctx))

	_, err = other.SetTGE(ctx, owner)
	assert.ErrorIs(t, err, domain.ErrAlreadySet)

	rec, err := other.ClaimAirdrop(ctx, owner)
	require.NoError(t, err)
	assertAmount(t, domain.Tokens(5_000_000), rec.Amount)
}

func TestClaims_BeforeTGE(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	for _, pool := range domain.FixedPools {
		_, err := e.d.ClaimPool(ctx, owner, pool)
		assert.ErrorIs(t, err, domain.ErrTgeNotStarted, pool)
	}

	tree, err := merkle.Build([]merkle.Allocation{{Account: addr1, Amount: domain.Tokens(1_000)}})
	require.NoError(t, err)
	_, proof, err := tree.Proof(addr1)
	require.NoError(t, err)

	_, err = e.d.ClaimStrategicSale2(ctx, addr1, domain.Tokens(1_000), proof)
	assert.ErrorIs(t, err, domain.ErrTgeNotStarted)

	_, err = e.d.Claimable(ctx, domain.PoolTeam)
	assert.ErrorIs(t, err, domain.ErrTgeNotStarted)
}

func TestClaimPool_OwnerOnly(t *testing.T) {
	e := newEnv(t)
	e.startTGE(t)
	e.advance(100)

	for _, pool := range domain.FixedPools {
		_, err := e.d.ClaimPool(context.Background(), addr1, pool)
		assert.ErrorIs(t, err, domain.ErrUnauthorized, pool)
	}
	assert.True(t, e.token.TotalSupply().IsZero())
}

func TestClaimPool_RejectsSalePool(t *testing.T) {
	e := newEnv(t)
	e.startTGE(t)

	_, err := e.d.ClaimPool(context.Background(), owner, domain.PoolPrivateSale)
	assert.ErrorIs(t, err, domain.ErrUnknownPool)
}

func TestClaimPool_Vectors(t *testing.T) {
	type step struct {
		advance int64 // months to move forward before claiming
		total   int64 // expected pool total in whole tokens after the claim
	}

	tests := []struct {
		name  string
		pool  domain.Pool
		steps []step
	}{
		{"team", domain.PoolTeam, []step{{10, 2_777_778}, {5, 2_777_778 * 6}, {100, 100_000_000}}},
		{"team at 44 months", domain.PoolTeam, []step{{44, 2_777_778 * 35}, {1, 100_000_000}}},
		{"treasury", domain.PoolTreasury, []step{{16, 4_166_667 * 5}, {5, 4_166_667 * 10}, {100, 100_000_000}}},
		{"treasury at final boundary", domain.PoolTreasury, []step{{35, 100_000_000}}},
		{"marketing", domain.PoolMarketing, []step{{10, 2_638_889 * 5}, {5, 2_638_889 * 10}, {100, 95_000_000}}},
		{"marketing at final boundary", domain.PoolMarketing, []step{{41, 95_000_000}}},
		{"development", domain.PoolDevelopment, []step{{3, 2_083_333 * 3}, {2, 2_083_333 * 5}, {100, 100_000_000}}},
		{"development at 48 months", domain.PoolDevelopment, []step{{48, 2_083_333 * 48}, {1, 100_000_000}}},
		{"ecosystem", domain.PoolEcosystem, []step{{0, 7_200_000}, {4, 7_200_000 + 9_800_000}, {1, 7_200_000 + 9_800_000*2}, {100, 360_000_000}}},
		{"ecosystem at 10 months", domain.PoolEcosystem, []step{{10, 7_200_000 + 9_800_000*7}, {5, 7_200_000 + 9_800_000*12}}},
		{"ecosystem at final boundary", domain.PoolEcosystem, []step{{39, 360_000_000}}},
		{"ai mining", domain.PoolAIMining, []step{{3, 2_777_778}, {2, 2_777_778 * 3}, {100, 100_000_000}}},
		{"ai mining at 9 months", domain.PoolAIMining, []step{{9, 2_777_778 * 7}}},
		{"ai mining at final boundary", domain.PoolAIMining, []step{{38, 100_000_000}}},
		{"airdrop", domain.PoolAirdrop, []step{{0, 1_000_000}, {2, 3_000_000}, {5, 5_000_000}}},
		{"airdrop monthly", domain.PoolAirdrop, []step{{0, 1_000_000}, {1, 2_000_000}, {1, 3_000_000}, {1, 4_000_000}, {1, 5_000_000}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEnv(t)
			ctx := context.Background()
			e.startTGE(t)

			for i, s := range tt.steps {
				e.advance(s.advance)

				_, err := e.d.ClaimPool(ctx, owner, tt.pool)
				require.NoError(t, err, "step %d", i)

				total, err := e.d.TotalClaimed(ctx, tt.pool)
				require.NoError(t, err)
				assertAmount(t, domain.Tokens(s.total), total, "step %d", i)

				_, err = e.d.ClaimPool(ctx, owner, tt.pool)
				assert.ErrorIs(t, err, domain.ErrNoClaimable, "step %d repeat", i)
			}

			total, err := e.d.TotalClaimed(ctx, tt.pool)
			require.NoError(t, err)
			assertAmount(t, total, e.token.BalanceOf(owner))
		})
	}
}

func TestClaimPool_CliffPaysNothing(t *testing.T) {
	cliffs := map[domain.Pool]int64{
		domain.PoolTeam:        10,
		domain.PoolTreasury:    12,
		domain.PoolMarketing:   6,
		domain.PoolDevelopment: 1,
		domain.PoolAIMining:    3,
	}

	for pool, months := range cliffs {
		e := newEnv(t)
		ctx := context.Background()
		e.startTGE(t)

		for m := int64(0); m < months; m++ {
			_, err := e.d.ClaimPool(ctx, owner, pool)
			assert.ErrorIs(t, err, domain.ErrNoClaimable, "%s month %d", pool, m)
			e.advance(1)
		}
		_, err := e.d.ClaimPool(ctx, owner, pool)
		assert.NoError(t, err, "%s first tranche", pool)
	}
}

func strategicSale2Tree(t *testing.T) *merkle.Tree {
	t.Helper()
	tree, err := merkle.Build([]merkle.Allocation{
		{Account: addr1, Amount: domain.Tokens(100_000)},
		{Account: addr2, Amount: domain.Tokens(5_000)},
		{Account: addr3, Amount: domain.Tokens(5)},
		{Account: addr4, Amount: domain.Tokens(195)},
		{Account: addr5, Amount: domain.Tokens(9_894_800)},
		{Account: addrOver, Amount: domain.Tokens(1_234)},
	})
	require.NoError(t, err)
	return tree
}

func claimFromTree(ctx context.Context, t *testing.T, d *Distributor, tree *merkle.Tree, pool domain.Pool, account common.Address) (*domain.ClaimRecord, error) {
	t.Helper()
	alloc, proof, err := tree.Proof(account)
	require.NoError(t, err)
	return d.ClaimSale(ctx, account, pool, alloc.Amount, proof)
}

func TestClaimSale_InvalidProof(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	tree := strategicSale2Tree(t)
	e.startTGE(t)

	// No root installed yet.
	_, err := claimFromTree(ctx, t, e.d, tree, domain.PoolStrategicSale2, addr1)
	assert.ErrorIs(t, err, domain.ErrInvalidProof)

	// Replacing the root with the same value is allowed.
	require.NoError(t, e.d.SetMerkleRootStrategicSale2(ctx, owner, tree.Root()))
	require.NoError(t, e.d.SetMerkleRootStrategicSale2(ctx, owner, tree.Root()))

	// addr2's leaf presented by addr1.
	alloc2, proof2, err := tree.Proof(addr2)
	require.NoError(t, err)
	_, err = e.d.ClaimStrategicSale2(ctx, addr1, alloc2.Amount, proof2)
	assert.ErrorIs(t, err, domain.ErrInvalidProof)

	// Right proof, wrong amount.
	_, proof1, err := tree.Proof(addr1)
	require.NoError(t, err)
	_, err = e.d.ClaimStrategicSale2(ctx, addr1, domain.Tokens(100_001), proof1)
	assert.ErrorIs(t, err, domain.ErrInvalidProof)

	// Valid leaf against the other sale pool, whose root is unset.
	_, err = e.d.ClaimPrivateSale(ctx, addr1, domain.Tokens(100_000), proof1)
	assert.ErrorIs(t, err, domain.ErrInvalidProof)

	assert.True(t, e.token.TotalSupply().IsZero())
}

func TestSetMerkleRoot_Gate(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	root := common.HexToHash("0x01")

	assert.ErrorIs(t, e.d.SetMerkleRoot(ctx, addr1, domain.PoolPrivateSale, root), domain.ErrUnauthorized)
	assert.ErrorIs(t, e.d.SetMerkleRoot(ctx, owner, domain.PoolTeam, root), domain.ErrUnknownPool)

	// Roots may be installed before TGE.
	require.NoError(t, e.d.SetMerkleRootPrivateSale(ctx, owner, root))
	got, err := e.state.GetRoot(ctx, domain.PoolPrivateSale)
	require.NoError(t, err)
	assert.Equal(t, root, got)
}

func TestClaimSale_StrategicSale2Monthly(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	tree := strategicSale2Tree(t)
	alloc := domain.Tokens(100_000)

	e.startTGE(t)
	require.NoError(t, e.d.SetMerkleRootStrategicSale2(ctx, owner, tree.Root()))

	steps := []struct {
		advance   int64
		numerator int64
	}{
		{0, 100_000},
		{1, 200_000},
		{1, 300_000},
		{1, 300_000 + 485_000},
		{1, 300_000 + 2*485_000},
		{1, 300_000 + 3*485_000},
		{1, 300_000 + 4*485_000},
		{10, 300_000 + 14*485_000},
		{4, 300_000 + 18*485_000},
		{1, 300_000 + 19*485_000},
		{1, 300_000 + 20*485_000},
	}

	for i, s := range steps {
		e.advance(s.advance)
		_, err := claimFromTree(ctx, t, e.d, tree, domain.PoolStrategicSale2, addr1)
		require.NoError(t, err, "step %d", i)
		assertAmount(t, share(alloc, s.numerator), e.token.BalanceOf(addr1), "step %d", i)
	}
	assertAmount(t, alloc, e.token.BalanceOf(addr1))

	for i := 0; i < 2; i++ {
		e.advance(1)
		_, err := claimFromTree(ctx, t, e.d, tree, domain.PoolStrategicSale2, addr1)
		assert.ErrorIs(t, err, domain.ErrNoClaimable)
	}
	assertAmount(t, alloc, e.token.BalanceOf(addr1))
}

func TestClaimSale_FirstClaimLate(t *testing.T) {
	tests := []struct {
		months    int64
		numerator int64
	}{
		{2, 300_000},
		{3, 300_000 + 485_000},
		{9, 300_000 + 7*485_000},
		{23, vesting.SaleDenominator},
		{90, vesting.SaleDenominator},
	}

	for _, tt := range tests {
		e := newEnv(t)
		ctx := context.Background()
		tree := strategicSale2Tree(t)
		e.startTGE(t)
		require.NoError(t, e.d.SetMerkleRootStrategicSale2(ctx, owner, tree.Root()))

		e.advance(tt.months)
		_, err := claimFromTree(ctx, t, e.d, tree, domain.PoolStrategicSale2, addr1)
		require.NoError(t, err)
		assertAmount(t, share(domain.Tokens(100_000), tt.numerator), e.token.BalanceOf(addr1), "after %d months", tt.months)
	}
}

func TestClaimSale_OverAllocatedLeafExhaustsPool(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	tree := strategicSale2Tree(t)
	e.startTGE(t)
	require.NoError(t, e.d.SetMerkleRootStrategicSale2(ctx, owner, tree.Root()))

	e.advance(90)
	for _, a := range []common.Address{addr1, addr2, addr3, addr4, addr5} {
		_, err := claimFromTree(ctx, t, e.d, tree, domain.PoolStrategicSale2, a)
		require.NoError(t, err, a.Hex())
	}

	_, err := claimFromTree(ctx, t, e.d, tree, domain.PoolStrategicSale2, addrOver)
	assert.ErrorIs(t, err, domain.ErrPoolExhausted)

	total, err := e.d.TotalClaimed(ctx, domain.PoolStrategicSale2)
	require.NoError(t, err)
	assertAmount(t, domain.Tokens(10_000_000), total)
	assertAmount(t, domain.Tokens(100_000), e.token.BalanceOf(addr1))
	assert.True(t, e.token.BalanceOf(addrOver).IsZero())
}

func TestClaimSale_MixedAccountsConvergeToCap(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	tree := strategicSale2Tree(t)
	e.startTGE(t)
	require.NoError(t, e.d.SetMerkleRootStrategicSale2(ctx, owner, tree.Root()))

	claim := func(a common.Address) error {
		_, err := claimFromTree(ctx, t, e.d, tree, domain.PoolStrategicSale2, a)
		return err
	}

	require.NoError(t, claim(addr1))
	e.advance(1)
	require.NoError(t, claim(addr1))
	e.advance(2)
	require.NoError(t, claim(addr1))
	require.NoError(t, claim(addr3))
	assertAmount(t, share(domain.Tokens(5), 300_000+485_000), e.token.BalanceOf(addr3))

	e.advance(3)
	require.NoError(t, claim(addr1))
	require.NoError(t, claim(addr3))
	require.NoError(t, claim(addr5))
	assertAmount(t, share(domain.Tokens(9_894_800), 300_000+4*485_000), e.token.BalanceOf(addr5))

	e.advance(10)
	require.NoError(t, claim(addr1))
	e.advance(6)
	require.NoError(t, claim(addr1))
	require.NoError(t, claim(addr2))
	assertAmount(t, domain.Tokens(100_000), e.token.BalanceOf(addr1))
	assertAmount(t, domain.Tokens(5_000), e.token.BalanceOf(addr2))

	e.advance(1)
	assert.ErrorIs(t, claim(addr1), domain.ErrNoClaimable)
	e.advance(1)
	assert.ErrorIs(t, claim(addr2), domain.ErrNoClaimable)

	require.NoError(t, claim(addr4))
	require.NoError(t, claim(addr5))
	require.NoError(t, claim(addr3))
	assertAmount(t, domain.Tokens(195), e.token.BalanceOf(addr4))
	assertAmount(t, domain.Tokens(9_894_800), e.token.BalanceOf(addr5))
	assertAmount(t, domain.Tokens(5), e.token.BalanceOf(addr3))

	e.advance(1)
	assert.ErrorIs(t, claim(addr4), domain.ErrNoClaimable)
	assert.ErrorIs(t, claim(addrOver), domain.ErrPoolExhausted)

	total, err := e.d.TotalClaimed(ctx, domain.PoolStrategicSale2)
	require.NoError(t, err)
	assertAmount(t, domain.Tokens(10_000_000), total)
}

func TestClaimSale_PrivateSale(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	tree, err := merkle.Build([]merkle.Allocation{
		{Account: addr1, Amount: domain.Tokens(1_000)},
		{Account: addr2, Amount: domain.Tokens(500)},
	})
	require.NoError(t, err)
	require.NoError(t, e.d.SetMerkleRootPrivateSale(ctx, owner, tree.Root()))
	e.startTGE(t)

	_, err = claimFromTree(ctx, t, e.d, tree, domain.PoolPrivateSale, addr1)
	require.NoError(t, err)
	assertAmount(t, domain.Tokens(10), e.token.BalanceOf(addr1))

	_, err = claimFromTree(ctx, t, e.d, tree, domain.PoolPrivateSale, addr1)
	assert.ErrorIs(t, err, domain.ErrNoClaimable)

	_, err = claimFromTree(ctx, t, e.d, tree, domain.PoolPrivateSale, addr2)
	require.NoError(t, err)

	total, err := e.d.TotalClaimed(ctx, domain.PoolPrivateSale)
	require.NoError(t, err)
	assertAmount(t, domain.Tokens(15), total)

	// Thirty months in, the whole allocation is out.
	e.advance(30)
	_, err = claimFromTree(ctx, t, e.d, tree, domain.PoolPrivateSale, addr1)
	require.NoError(t, err)
	assertAmount(t, domain.Tokens(1_000), e.token.BalanceOf(addr1))
}

func TestClaimSale_ConcurrentSameAccount(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	tree := strategicSale2Tree(t)
	e.startTGE(t)
	require.NoError(t, e.d.SetMerkleRootStrategicSale2(ctx, owner, tree.Root()))
	e.advance(5)

	alloc, proof, err := tree.Proof(addr1)
	require.NoError(t, err)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		success int
		noClaim int
	)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := e.d.ClaimStrategicSale2(ctx, addr1, alloc.Amount, proof)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				success++
			case errors.Is(err, domain.ErrNoClaimable):
				noClaim++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, success)
	assert.Equal(t, 15, noClaim)
	assertAmount(t, share(alloc.Amount, 300_000+3*485_000), e.token.BalanceOf(addr1))
}

func TestClaimable(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	tree := strategicSale2Tree(t)
	e.startTGE(t)
	require.NoError(t, e.d.SetMerkleRootStrategicSale2(ctx, owner, tree.Root()))

	got, err := e.d.Claimable(ctx, domain.PoolAirdrop)
	require.NoError(t, err)
	assertAmount(t, domain.Tokens(1_000_000), got)

	_, err = e.d.ClaimAirdrop(ctx, owner)
	require.NoError(t, err)
	got, err = e.d.Claimable(ctx, domain.PoolAirdrop)
	require.NoError(t, err)
	assert.True(t, got.IsZero())

	alloc, proof, err := tree.Proof(addr2)
	require.NoError(t, err)
	got, err = e.d.ClaimableSale(ctx, domain.PoolStrategicSale2, addr2, alloc.Amount, proof)
	require.NoError(t, err)
	assertAmount(t, domain.Tokens(50), got)

	_, err = e.d.ClaimableSale(ctx, domain.PoolStrategicSale2, addr1, alloc.Amount, proof)
	assert.ErrorIs(t, err, domain.ErrInvalidProof)

	// Previews never mutate.
	total, err := e.d.TotalClaimed(ctx, domain.PoolStrategicSale2)
	require.NoError(t, err)
	assert.True(t, total.IsZero())
}

func TestClaimRecords(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.startTGE(t)
	e.advance(1)

	rec, err := e.d.ClaimAirdrop(ctx, owner)
	require.NoError(t, err)

	assert.Equal(t, idhash.ComputeClaimID(domain.PoolAirdrop, owner, domain.Tokens(2_000_000), 1), rec.ClaimID)
	assert.Equal(t, domain.PoolAirdrop, rec.Pool)
	assert.Equal(t, owner, rec.Account)
	assert.Equal(t, int64(1), rec.ElapsedMonths)
	assertAmount(t, domain.Tokens(2_000_000), rec.Amount)
	assertAmount(t, domain.Tokens(2_000_000), rec.PoolTotal)

	stored, err := e.d.Receipt(ctx, rec.ClaimID)
	require.NoError(t, err)
	assert.Equal(t, rec.ClaimID, stored.ClaimID)

	byPool, err := e.d.Claims(ctx, domain.PoolAirdrop)
	require.NoError(t, err)
	assert.Len(t, byPool, 1)

	byAccount, err := e.d.ClaimsOf(ctx, owner)
	require.NoError(t, err)
	assert.Len(t, byAccount, 1)

	assert.Equal(t, 1, e.pub.len())

	// Failed claims leave no record.
	_, err = e.d.ClaimAirdrop(ctx, owner)
	assert.ErrorIs(t, err, domain.ErrNoClaimable)
	assert.Equal(t, 1, e.pub.len())
}

// flakyMinter fails the first n mints, then delegates to a token ledger.
type flakyMinter struct {
	*token.Ledger
	mu    sync.Mutex
	fails int
}

func (f *flakyMinter) Mint(ctx context.Context, account common.Address, amount sdkmath.Int) error {
	f.mu.Lock()
	if f.fails > 0 {
		f.fails--
		f.mu.Unlock()
		return errors.New("token unavailable")
	}
	f.mu.Unlock()
	return f.Ledger.Mint(ctx, account, amount)
}

func newFlakyEnv(t *testing.T, fails int) (*Distributor, *flakyMinter, *memory.ClaimEventStore) {
	t.Helper()
	minter := &flakyMinter{Ledger: token.NewLedger(vesting.DefaultTable().MaxSupply()), fails: fails}
	events := memory.NewClaimEventStore()
	d, err := New(Options{
		Owner:  owner,
		Time:   vesting.NewManualTime(time.Unix(1_700_000_000, 0)),
		State:  memory.NewStateStore(),
		Ledger: memory.NewLedgerStore(),
		Events: events,
		Minter: minter,
		Logger: log.New(io.Discard, "", 0),
	})
	require.NoError(t, err)
	_, err = d.SetTGE(context.Background(), owner)
	require.NoError(t, err)
	return d, minter, events
}

func TestClaimPool_MintFailureRevertsAndRetries(t *testing.T) {
	d, minter, events := newFlakyEnv(t, 1)
	ctx := context.Background()

	_, err := d.ClaimAirdrop(ctx, owner)
	assert.ErrorIs(t, err, ErrMintFailed)

	total, err := d.TotalClaimed(ctx, domain.PoolAirdrop)
	require.NoError(t, err)
	assert.True(t, total.IsZero(), "claimed %s after failed mint", total)
	recs, err := events.GetByPool(ctx, domain.PoolAirdrop)
	require.NoError(t, err)
	assert.Empty(t, recs)

	rec, err := d.ClaimAirdrop(ctx, owner)
	require.NoError(t, err)
	assertAmount(t, domain.Tokens(1_000_000), rec.Amount)
	assertAmount(t, domain.Tokens(1_000_000), minter.BalanceOf(owner))

	total, err = d.TotalClaimed(ctx, domain.PoolAirdrop)
	require.NoError(t, err)
	assertAmount(t, domain.Tokens(1_000_000), total)
}

func TestClaimSale_MintFailureRevertsAndRetries(t *testing.T) {
	d, minter, _ := newFlakyEnv(t, 1)
	ctx := context.Background()

	tree, err := merkle.Build([]merkle.Allocation{
		{Account: addr1, Amount: domain.Tokens(100_000)},
		{Account: addr2, Amount: domain.Tokens(50_000)},
	})
	require.NoError(t, err)
	require.NoError(t, d.SetMerkleRootStrategicSale2(ctx, owner, tree.Root()))

	alloc, proof, err := tree.Proof(addr1)
	require.NoError(t, err)

	_, err = d.ClaimStrategicSale2(ctx, addr1, alloc.Amount, proof)
	assert.ErrorIs(t, err, ErrMintFailed)

	total, err := d.TotalClaimed(ctx, domain.PoolStrategicSale2)
	require.NoError(t, err)
	assert.True(t, total.IsZero())

	rec, err := d.ClaimStrategicSale2(ctx, addr1, alloc.Amount, proof)
	require.NoError(t, err)
	assertAmount(t, domain.Tokens(1_000), rec.Amount)
	assertAmount(t, domain.Tokens(1_000), rec.PoolTotal)
	assertAmount(t, domain.Tokens(1_000), minter.BalanceOf(addr1))
}

func TestStatusAndSnapshot(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	st, err := e.d.Status(ctx)
	require.NoError(t, err)
	assert.False(t, st.Started)
	require.Len(t, st.Pools, len(domain.AllPools))
	for _, ps := range st.Pools {
		if ps.Sale {
			require.NotNil(t, ps.Fraction)
			assert.Zero(t, *ps.Fraction)
		} else {
			require.NotNil(t, ps.Unlocked)
			assert.True(t, ps.Unlocked.IsZero())
		}
	}

	_, err = e.d.Snapshot(ctx)
	assert.ErrorIs(t, err, domain.ErrTgeNotStarted)

	tree := strategicSale2Tree(t)
	require.NoError(t, e.d.SetMerkleRootStrategicSale2(ctx, owner, tree.Root()))
	e.startTGE(t)
	e.advance(4)
	_, err = e.d.ClaimEcosystem(ctx, owner)
	require.NoError(t, err)

	st, err = e.d.Status(ctx)
	require.NoError(t, err)
	assert.True(t, st.Started)
	assert.Equal(t, int64(4), st.ElapsedMonths)

	byPool := make(map[domain.Pool]domain.PoolStatus)
	for _, ps := range st.Pools {
		byPool[ps.Pool] = ps
	}
	eco := byPool[domain.PoolEcosystem]
	assertAmount(t, domain.Tokens(17_000_000), *eco.Unlocked)
	assertAmount(t, domain.Tokens(17_000_000), eco.Claimed)

	ss2 := byPool[domain.PoolStrategicSale2]
	require.NotNil(t, ss2.Root)
	assert.Equal(t, tree.Root(), *ss2.Root)
	assert.Equal(t, int64(300_000+2*485_000), *ss2.Fraction)
	assert.Nil(t, byPool[domain.PoolPrivateSale].Root)

	snaps, err := e.d.Snapshot(ctx)
	require.NoError(t, err)
	require.Len(t, snaps, len(domain.AllPools))
	for _, s := range snaps {
		assert.Equal(t, int64(4), s.ElapsedMonths)
		if s.Pool == domain.PoolStrategicSale2 {
			assertAmount(t, share(domain.Tokens(10_000_000), 300_000+2*485_000), s.Unlocked)
		}
	}
}
