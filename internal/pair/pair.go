/*

The pair engine. One Pair owns one constant-product market: its reserve
accounting, share supply, cumulative price oracle, and fee policy. Every
mutating operation (Swap, AddLiquidity, RemoveLiquidity, FlashLoan, Sync)
runs under the same discipline:

 1. Reentrancy check against the context, then the operation mutex. The
    flash-loan callback receives a context tagged with this pair's guard,
    so a nested mutating call fails fast instead of deadlocking.
 2. All balance movement happens inside a single ledger transaction; the
    pair state is mutated on a scratch copy.
 3. Only after every step succeeds is the transaction committed and the
    scratch state swapped in. Any error aborts the transaction and the
    committed state is never touched.

Views read the committed state through an RWMutex and never block behind a
running operation.

*/

package pair

import (
	"context"
	"sync"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/rs/zerolog"

	"github.com/meridian-dex/paircore/internal/fees"
	"github.com/meridian-dex/paircore/internal/logger"
	"github.com/meridian-dex/paircore/internal/oracle"
	"github.com/meridian-dex/paircore/internal/safemath"
	"github.com/meridian-dex/paircore/internal/types"
)

// UnixNow is the default clock: wall time in unix seconds.
func UnixNow() uint64 {
	return uint64(time.Now().Unix())
}

// Lender is the transfer capability handed to flash-loan receivers. The
// receiver repays by transferring through it; repayment made any other way
// is invisible to the verification step and the loan rolls back.
type Lender interface {
	Transfer(asset, from, to string, amount sdkmath.Int) error
	BalanceOf(asset, account string) (sdkmath.Int, error)
}

// LedgerTx is one atomic batch of balance mutations.
type LedgerTx interface {
	Lender
	Mint(asset, account string, amount sdkmath.Int) error
	Burn(asset, account string, amount sdkmath.Int) error
	Commit() error
	Abort() error
}

// AssetLedger opens ledger transactions. internal/assets implements the
// concrete ledger; wiring code adapts it to this interface.
type AssetLedger interface {
	Begin(ctx context.Context) (LedgerTx, error)
}

// Recorder archives receipts after commit. Implementations must never block
// trading on persistence problems; errors are theirs to log.
type Recorder interface {
	RecordSwap(types.SwapReceipt)
	RecordLiquidity(types.LiquidityReceipt)
	RecordFlashLoan(types.FlashLoanReceipt)
}

// Config carries everything a Pair needs. Recorder may be nil.
type Config struct {
	TokenA    types.Token
	TokenB    types.Token
	FeeParams types.FeeParameters
	Ledger    AssetLedger
	Recorder  Recorder
	// Now returns the current unix time in seconds. Defaults to the wall
	// clock; injected in tests to drive the oracle and fee decay.
	Now func() uint64
}

func (c *Config) validate() error {
	if c.TokenA == "" || c.TokenB == "" {
		return types.ErrInsufficientInput.Wrap("both pair tokens must be named")
	}
	if c.TokenA == c.TokenB {
		return types.ErrInsufficientInput.Wrapf("pair tokens must differ, got %s twice", c.TokenA)
	}
	if c.Ledger == nil {
		return types.ErrInsufficientInput.Wrap("pair requires an asset ledger")
	}
	return nil
}

// Pair is the engine for a single market. Safe for concurrent use.
type Pair struct {
	log    zerolog.Logger
	ledger AssetLedger
	rec    Recorder
	fees   *fees.Controller
	now    func() uint64

	id          types.PairID
	account     string // ledger account owning the reserves
	shareSymbol string // ledger asset for pool shares

	// opMu serializes mutating operations; stateMu guards the committed
	// state for views.
	opMu    sync.Mutex
	stateMu sync.RWMutex
	state   types.PairState
}

// guardKey tags a context while one of this pair's operations is on the
// stack. Value type keeps the key comparable and private to this package.
type guardKey struct{ id types.PairID }

// New builds an empty (unseeded) pair.
func New(cfg Config) (*Pair, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	ctl, err := fees.New(cfg.FeeParams)
	if err != nil {
		return nil, err
	}
	if cfg.Now == nil {
		cfg.Now = UnixNow
	}

	state := types.NewPairState(cfg.TokenA, cfg.TokenB, cfg.FeeParams.BaselineFeeBps)
	id := state.ID()
	return &Pair{
		log:         logger.GetForPair("pair_engine", string(id)),
		ledger:      cfg.Ledger,
		rec:         cfg.Recorder,
		fees:        ctl,
		now:         cfg.Now,
		id:          id,
		account:     "pair:" + string(id),
		shareSymbol: "PAIR-" + string(cfg.TokenA) + "-" + string(cfg.TokenB),
		state:       state,
	}, nil
}

// normalizeAmount treats an unset Int as zero, rejects negatives, and
// enforces the 128-bit amount bound.
func normalizeAmount(v sdkmath.Int) (sdkmath.Int, error) {
	if v.IsNil() {
		return sdkmath.ZeroInt(), nil
	}
	if v.IsNegative() {
		return sdkmath.ZeroInt(), types.ErrInsufficientInput.Wrap("amount cannot be negative")
	}
	if err := safemath.CheckAmount(v); err != nil {
		return sdkmath.ZeroInt(), err
	}
	return v, nil
}

// enter performs the reentrancy check and takes the operation mutex. The
// returned context carries the pair's guard tag; release undoes the lock.
func (p *Pair) enter(ctx context.Context) (context.Context, func(), error) {
	if ctx.Value(guardKey{p.id}) != nil {
		return nil, nil, types.ErrReentrancy.Wrapf("pair %s is already mid-operation on this call path", p.id)
	}
	p.opMu.Lock()
	return context.WithValue(ctx, guardKey{p.id}, struct{}{}), p.opMu.Unlock, nil
}

// snapshot returns a copy of the committed state. Int fields share
// underlying storage but are never mutated in place.
func (p *Pair) snapshot() types.PairState {
	p.stateMu.RLock()
	defer p.stateMu.RUnlock()
	return p.state
}

// commit swaps the scratch state in as the committed state.
func (p *Pair) commit(next types.PairState) {
	p.stateMu.Lock()
	p.state = next
	p.stateMu.Unlock()
}

// observe folds the pre-update reserves into the cumulative price sums and
// advances the observation timestamp. Mutating operations call this right
// before overwriting reserves; the flash-loan path calls it after
// settlement instead, so the accrued fee is part of the observed price.
func observe(scratch *types.PairState, now uint64) {
	scratch.PriceACumulative, scratch.PriceBCumulative, _ = oracle.Accumulate(
		scratch.PriceACumulative, scratch.PriceBCumulative,
		scratch.ReserveA, scratch.ReserveB,
		scratch.LastUpdateTimestamp, now,
	)
	scratch.LastUpdateTimestamp = now
}

// ID returns the market identifier, e.g. "ATOM-USDC".
func (p *Pair) ID() types.PairID { return p.id }

// Tokens returns the pair's asset symbols in storage order.
func (p *Pair) Tokens() (types.Token, types.Token) {
	s := p.snapshot()
	return s.TokenA, s.TokenB
}

// Account is the ledger account holding the pool reserves.
func (p *Pair) Account() string { return p.account }

// ShareSymbol is the ledger asset under which pool shares are tracked.
func (p *Pair) ShareSymbol() string { return p.shareSymbol }

// State returns a copy of the full committed pair state.
func (p *Pair) State() types.PairState { return p.snapshot() }

// GetReserves returns the committed reserves and the last observation time.
func (p *Pair) GetReserves() (sdkmath.Int, sdkmath.Int, uint64) {
	s := p.snapshot()
	return s.ReserveA, s.ReserveB, s.LastUpdateTimestamp
}

// GetCumulativePrices returns the committed UQ64.64 price accumulators and
// the last observation time.
func (p *Pair) GetCumulativePrices() (sdkmath.Int, sdkmath.Int, uint64) {
	s := p.snapshot()
	return s.PriceACumulative, s.PriceBCumulative, s.LastUpdateTimestamp
}

// Snapshot returns the committed oracle observation for TWAP consumers.
func (p *Pair) Snapshot() oracle.Snapshot {
	s := p.snapshot()
	return oracle.Snapshot{
		PriceACumulative: s.PriceACumulative,
		PriceBCumulative: s.PriceBCumulative,
		Timestamp:        s.LastUpdateTimestamp,
	}
}

// ObservationAt projects the committed accumulators forward to now, as if an
// observation happened at that instant, without mutating anything. TWAP
// consumers diff this against an older snapshot so quiet markets still report
// prices weighted over the idle stretch.
func (p *Pair) ObservationAt(now uint64) oracle.Snapshot {
	s := p.snapshot()
	if now < s.LastUpdateTimestamp {
		now = s.LastUpdateTimestamp
	}
	cumA, cumB, _ := oracle.Accumulate(
		s.PriceACumulative, s.PriceBCumulative,
		s.ReserveA, s.ReserveB,
		s.LastUpdateTimestamp, now,
	)
	return oracle.Snapshot{PriceACumulative: cumA, PriceBCumulative: cumB, Timestamp: now}
}

// TotalShares returns the committed share supply, locked minimum included.
func (p *Pair) TotalShares() sdkmath.Int {
	return p.snapshot().TotalShares
}

// CurrentFeeBps returns the effective swap fee at now, decay-adjusted in
// dynamic mode. Read-only.
func (p *Pair) CurrentFeeBps(now uint64) uint32 {
	return p.fees.CurrentFeeBps(now)
}

// FeeParams returns the pair's fee configuration.
func (p *Pair) FeeParams() types.FeeParameters {
	return p.fees.Params()
}

// FeeState returns the raw volatility EMA state.
func (p *Pair) FeeState() fees.State {
	return p.fees.State()
}

// Sync forces the reserves to match the pair's actual ledger balances,
// folding in anything transferred to the pool account outside an operation.
// The oracle observes the pre-sync reserves first.
func (p *Pair) Sync(ctx context.Context) error {
	guardCtx, release, err := p.enter(ctx)
	if err != nil {
		return err
	}
	defer release()

	now := p.now()
	scratch := p.snapshot()

	tx, err := p.ledger.Begin(guardCtx)
	if err != nil {
		return err
	}
	defer tx.Abort()

	balA, err := tx.BalanceOf(string(scratch.TokenA), p.account)
	if err != nil {
		return err
	}
	balB, err := tx.BalanceOf(string(scratch.TokenB), p.account)
	if err != nil {
		return err
	}
	if err := safemath.CheckAmount(balA); err != nil {
		return err
	}
	if err := safemath.CheckAmount(balB); err != nil {
		return err
	}

	observe(&scratch, now)
	scratch.ReserveA = balA
	scratch.ReserveB = balB

	if err := tx.Commit(); err != nil {
		return err
	}
	p.commit(scratch)

	p.log.Info().
		Str("reserve_a", balA.String()).
		Str("reserve_b", balB.String()).
		Msg("Reserves synced to ledger balances")
	return nil
}

// recordSwap forwards a receipt to the recorder when one is configured.
func (p *Pair) recordSwap(r types.SwapReceipt) {
	if p.rec != nil {
		p.rec.RecordSwap(r)
	}
}

func (p *Pair) recordLiquidity(r types.LiquidityReceipt) {
	if p.rec != nil {
		p.rec.RecordLiquidity(r)
	}
}

func (p *Pair) recordFlashLoan(r types.FlashLoanReceipt) {
	if p.rec != nil {
		p.rec.RecordFlashLoan(r)
	}
}
