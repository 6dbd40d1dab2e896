// Package distributor releases vested tokens from the allocation pools.
//
// Every claim runs the same pipeline: TGE lookup, proof verification for
// sale pools, schedule evaluation, ledger commit, then mint. A failure at any
// step before the commit leaves no trace; the mint and the audit record
// follow a committed claim.
package distributor

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"

	"y8u-distributor/internal/domain"
	"y8u-distributor/internal/idhash"
	"y8u-distributor/internal/ledger"
	"y8u-distributor/internal/merkle"
	"y8u-distributor/internal/observability"
	"y8u-distributor/internal/storage"
	"y8u-distributor/internal/vesting"
)

// ErrMintFailed is returned when a claim could not be minted. The claim is
// reverted and may be retried.
var ErrMintFailed = errors.New("mint failed")

// Minter is the token capability the distributor pays out through.
type Minter interface {
	Mint(ctx context.Context, account common.Address, amount sdkmath.Int) error
	MaxSupply() sdkmath.Int
}

// Publisher receives every committed claim.
type Publisher interface {
	Publish(r *domain.ClaimRecord)
}

// Distributor is the claim aggregate.
type Distributor struct {
	owner  common.Address
	table  *vesting.Table
	clock  *vesting.Clock
	time   vesting.TimeSource
	state  storage.StateStore
	ledger *ledger.Ledger
	events storage.ClaimEventStore
	minter Minter
	pub    Publisher
	logger *log.Logger

	tgeMu sync.Mutex
}

// Options contains configuration for creating a Distributor.
type Options struct {
	Owner     common.Address
	Table     *vesting.Table      // Default: vesting.DefaultTable()
	Clock     *vesting.Clock      // Default: unset clock
	Time      vesting.TimeSource  // Default: vesting.SystemTime
	State     storage.StateStore  // required
	Ledger    storage.LedgerStore // required
	Events    storage.ClaimEventStore
	Minter    Minter // required
	Publisher Publisher
	Logger    *log.Logger
}

// New creates a distributor.
func New(opts Options) (*Distributor, error) {
	if opts.State == nil || opts.Ledger == nil || opts.Minter == nil {
		return nil, errors.New("distributor: state, ledger and minter are required")
	}
	if opts.Owner == (common.Address{}) {
		return nil, errors.New("distributor: owner is required")
	}

	table := opts.Table
	if table == nil {
		table = vesting.DefaultTable()
	}
	if err := table.Validate(); err != nil {
		return nil, fmt.Errorf("distributor: %w", err)
	}
	if opts.Minter.MaxSupply().LT(table.MaxSupply()) {
		return nil, fmt.Errorf("distributor: max supply %s below pool caps %s",
			opts.Minter.MaxSupply(), table.MaxSupply())
	}

	clock := opts.Clock
	if clock == nil {
		clock = vesting.NewClock()
	}

	ts := opts.Time
	if ts == nil {
		ts = vesting.SystemTime{}
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	return &Distributor{
		owner:  opts.Owner,
		table:  table,
		clock:  clock,
		time:   ts,
		state:  opts.State,
		ledger: ledger.New(opts.Ledger),
		events: opts.Events,
		minter: opts.Minter,
		pub:    opts.Publisher,
		logger: logger,
	}, nil
}

// Owner returns the account allowed to run owner-gated operations.
func (d *Distributor) Owner() common.Address {
	return d.owner
}

// Table returns the schedules in force.
func (d *Distributor) Table() *vesting.Table {
	return d.table
}

// Load restores a persisted TGE. A store without one is not an error.
func (d *Distributor) Load(ctx context.Context) error {
	_, err := d.tge(ctx)
	if errors.Is(err, domain.ErrTgeNotStarted) {
		return nil
	}
	return err
}

// SetTGE starts vesting at the current time. Only the owner may call it,
// and only once.
func (d *Distributor) SetTGE(ctx context.Context, caller common.Address) (int64, error) {
	if caller != d.owner {
		return 0, domain.ErrUnauthorized
	}

	d.tgeMu.Lock()
	defer d.tgeMu.Unlock()

	if _, err := d.tge(ctx); err == nil {
		return 0, domain.ErrAlreadySet
	} else if !errors.Is(err, domain.ErrTgeNotStarted) {
		return 0, err
	}

	ts := d.time.Now().Unix()
	if err := d.state.SetTGE(ctx, ts); err != nil {
		if errors.Is(err, storage.ErrAlreadySet) {
			return 0, domain.ErrAlreadySet
		}
		return 0, fmt.Errorf("persist TGE: %w", err)
	}
	if err := d.clock.Restore(ts); err != nil {
		return 0, err
	}

	observability.SetTGE(ts)
	d.logger.Printf("TGE set at %d", ts)
	return ts, nil
}

// tge returns the TGE timestamp, falling back to the state store when this
// process has not seen it yet.
func (d *Distributor) tge(ctx context.Context) (int64, error) {
	if ts, ok := d.clock.TGE(); ok {
		return ts, nil
	}

	ts, err := d.state.GetTGE(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return 0, domain.ErrTgeNotStarted
		}
		return 0, fmt.Errorf("load TGE: %w", err)
	}
	if err := d.clock.Restore(ts); err != nil {
		return 0, err
	}
	observability.SetTGE(ts)
	return ts, nil
}

func (d *Distributor) elapsedMonths(ctx context.Context) (int64, error) {
	tge, err := d.tge(ctx)
	if err != nil {
		return 0, err
	}
	return vesting.ElapsedMonths(tge, d.time.Now().Unix()), nil
}

// SetMerkleRoot installs or replaces the entitlement root of a sale pool.
func (d *Distributor) SetMerkleRoot(ctx context.Context, caller common.Address, pool domain.Pool, root common.Hash) error {
	if caller != d.owner {
		return domain.ErrUnauthorized
	}
	if !pool.IsSale() {
		return fmt.Errorf("%w: %s has no Merkle root", domain.ErrUnknownPool, pool)
	}

	if err := d.state.SetRoot(ctx, pool, root); err != nil {
		return fmt.Errorf("persist %s root: %w", pool, err)
	}

	observability.RecordRootUpdate(pool)
	d.logger.Printf("%s root set to %s", pool, root.Hex())
	return nil
}

// ClaimPool releases everything newly unlocked in a fixed pool to the owner.
func (d *Distributor) ClaimPool(ctx context.Context, caller common.Address, pool domain.Pool) (rec *domain.ClaimRecord, err error) {
	defer d.observe(pool, time.Now(), &err)

	if caller != d.owner {
		return nil, domain.ErrUnauthorized
	}
	sched, err := d.table.Schedule(pool)
	if err != nil {
		return nil, err
	}

	elapsed, err := d.elapsedMonths(ctx)
	if err != nil {
		return nil, err
	}

	commit, err := d.ledger.ClaimFixed(ctx, pool, vesting.Unlocked(sched, elapsed), d.payer(pool, d.owner))
	if err != nil {
		return nil, err
	}
	return d.settle(ctx, pool, d.owner, commit, elapsed)
}

// ClaimSale releases the caller's newly unlocked share of a sale pool.
// allocation and proof must match a leaf under the pool's current root.
func (d *Distributor) ClaimSale(ctx context.Context, caller common.Address, pool domain.Pool, allocation sdkmath.Int, proof []common.Hash) (rec *domain.ClaimRecord, err error) {
	defer d.observe(pool, time.Now(), &err)

	sched, err := d.table.SaleSchedule(pool)
	if err != nil {
		return nil, err
	}

	elapsed, err := d.elapsedMonths(ctx)
	if err != nil {
		return nil, err
	}

	if err := d.verify(ctx, pool, caller, allocation, proof); err != nil {
		return nil, err
	}

	unlocked := vesting.UnlockedFor(sched, elapsed, allocation)
	commit, err := d.ledger.ClaimAccount(ctx, pool, caller, unlocked, sched.Cap, d.payer(pool, caller))
	if err != nil {
		return nil, err
	}
	return d.settle(ctx, pool, caller, commit, elapsed)
}

func (d *Distributor) verify(ctx context.Context, pool domain.Pool, account common.Address, allocation sdkmath.Int, proof []common.Hash) error {
	root, err := d.state.GetRoot(ctx, pool)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("%w: %s root not set", domain.ErrInvalidProof, pool)
		}
		return fmt.Errorf("load %s root: %w", pool, err)
	}
	if allocation.IsNil() || !merkle.VerifyAllocation(root, account, allocation, proof) {
		return fmt.Errorf("%w: %s", domain.ErrInvalidProof, pool)
	}
	return nil
}

// payer mints a claim's delta while its ledger entry is still locked. A mint
// error reverts the ledger commit, so the claim can be retried in full.
func (d *Distributor) payer(pool domain.Pool, account common.Address) ledger.Payer {
	return func(ctx context.Context, delta sdkmath.Int) error {
		if err := d.minter.Mint(ctx, account, delta); err != nil {
			observability.RecordMintFailure(pool)
			d.logger.Printf("%s mint of %s to %s failed, claim reverted: %v",
				pool, domain.FormatTokens(delta), account.Hex(), err)
			return fmt.Errorf("%w: %v", ErrMintFailed, err)
		}
		return nil
	}
}

// settle records and publishes a minted claim.
func (d *Distributor) settle(ctx context.Context, pool domain.Pool, account common.Address, c ledger.Commit, elapsed int64) (*domain.ClaimRecord, error) {
	rec := &domain.ClaimRecord{
		ClaimID:       idhash.ComputeClaimID(pool, account, c.AccountTotal, elapsed),
		Pool:          pool,
		Account:       account,
		Amount:        c.Delta,
		AccountTotal:  c.AccountTotal,
		PoolTotal:     c.PoolTotal,
		ElapsedMonths: elapsed,
		ClaimedAt:     d.time.Now().Unix(),
	}

	if d.events != nil {
		if err := d.events.Insert(ctx, rec); err != nil {
			d.logger.Printf("record claim %s: %v", rec.ClaimID, err)
		}
	}
	if d.pub != nil {
		d.pub.Publish(rec)
	}

	observability.RecordClaimedAmount(pool, c.Delta)
	d.logger.Printf("%s claim %s: %s to %s (total %s)",
		pool, rec.ClaimID, domain.FormatTokens(c.Delta), account.Hex(), domain.FormatTokens(c.PoolTotal))
	return rec, nil
}

func (d *Distributor) observe(pool domain.Pool, start time.Time, errp *error) {
	observability.RecordClaim(pool, resultOf(*errp), time.Since(start).Seconds())
}

func resultOf(err error) string {
	switch {
	case err == nil:
		return observability.ResultOK
	case errors.Is(err, domain.ErrTgeNotStarted):
		return observability.ResultNotStarted
	case errors.Is(err, domain.ErrInvalidProof):
		return observability.ResultInvalidProof
	case errors.Is(err, domain.ErrNoClaimable):
		return observability.ResultNoClaimable
	case errors.Is(err, domain.ErrPoolExhausted):
		return observability.ResultPoolExhausted
	case errors.Is(err, domain.ErrUnauthorized):
		return observability.ResultUnauthorized
	}
	return observability.ResultError
}

// TotalClaimed returns the pool-wide claimed total.
func (d *Distributor) TotalClaimed(ctx context.Context, pool domain.Pool) (sdkmath.Int, error) {
	if !pool.IsValid() {
		return sdkmath.Int{}, fmt.Errorf("%w: %q", domain.ErrUnknownPool, pool)
	}
	return d.ledger.PoolClaimed(ctx, pool)
}

// Claimable returns what ClaimPool would release right now.
func (d *Distributor) Claimable(ctx context.Context, pool domain.Pool) (sdkmath.Int, error) {
	sched, err := d.table.Schedule(pool)
	if err != nil {
		return sdkmath.Int{}, err
	}
	elapsed, err := d.elapsedMonths(ctx)
	if err != nil {
		return sdkmath.Int{}, err
	}
	return d.ledger.Pending(ctx, pool, nil, vesting.Unlocked(sched, elapsed))
}

// ClaimableSale returns what ClaimSale would release to account right now,
// bounded by the pool's remaining headroom.
func (d *Distributor) ClaimableSale(ctx context.Context, pool domain.Pool, account common.Address, allocation sdkmath.Int, proof []common.Hash) (sdkmath.Int, error) {
	sched, err := d.table.SaleSchedule(pool)
	if err != nil {
		return sdkmath.Int{}, err
	}
	elapsed, err := d.elapsedMonths(ctx)
	if err != nil {
		return sdkmath.Int{}, err
	}
	if err := d.verify(ctx, pool, account, allocation, proof); err != nil {
		return sdkmath.Int{}, err
	}

	pending, err := d.ledger.Pending(ctx, pool, &account, vesting.UnlockedFor(sched, elapsed, allocation))
	if err != nil {
		return sdkmath.Int{}, err
	}
	claimed, err := d.ledger.PoolClaimed(ctx, pool)
	if err != nil {
		return sdkmath.Int{}, err
	}
	if pending.Add(claimed).GT(sched.Cap) {
		return sdkmath.ZeroInt(), domain.ErrPoolExhausted
	}
	return pending, nil
}

// Claims returns the recorded claims of a pool, oldest first.
func (d *Distributor) Claims(ctx context.Context, pool domain.Pool) ([]*domain.ClaimRecord, error) {
	if d.events == nil {
		return nil, nil
	}
	return d.events.GetByPool(ctx, pool)
}

// ClaimsOf returns the recorded claims paid to account, oldest first.
func (d *Distributor) ClaimsOf(ctx context.Context, account common.Address) ([]*domain.ClaimRecord, error) {
	if d.events == nil {
		return nil, nil
	}
	return d.events.GetByAccount(ctx, account)
}

// Receipt returns one recorded claim.
func (d *Distributor) Receipt(ctx context.Context, claimID string) (*domain.ClaimRecord, error) {
	if d.events == nil {
		return nil, storage.ErrNotFound
	}
	return d.events.GetByID(ctx, claimID)
}
