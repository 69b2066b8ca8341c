/*

In-memory asset ledger. Balances are the source of truth the pair engine
trades against; pool shares live here too, under each pair's share symbol.

Writes go through a transaction: Begin claims the ledger (one open
transaction at a time, context-aware while waiting), mutations land in a
pending overlay, and Commit folds the overlay into the committed map in one
step. Abort drops the overlay. Readers outside a transaction always see
committed state, so a balance query during an open flash loan reports
pre-loan figures.

*/

package assets

import (
	"context"
	"sync"

	errorsmod "cosmossdk.io/errors"
	sdkmath "cosmossdk.io/math"
	"github.com/rs/zerolog"

	"github.com/meridian-dex/paircore/internal/logger"
	"github.com/meridian-dex/paircore/internal/safemath"
	"github.com/meridian-dex/paircore/internal/types"
)

// ErrClosed reports a mutation on a transaction that already committed or
// aborted, matching database/sql's ErrTxDone behavior.
var ErrClosed = errorsmod.Register("assets", 2, "transaction closed")

type balanceKey struct {
	asset   string
	account string
}

// Ledger maps (asset, account) to a balance. Safe for concurrent use.
type Ledger struct {
	log zerolog.Logger

	// sem serializes transactions; held from Begin to Commit/Abort.
	sem chan struct{}

	mu        sync.RWMutex
	committed map[balanceKey]sdkmath.Int
}

func NewLedger() *Ledger {
	return &Ledger{
		log:       logger.GetForComponent("asset_ledger"),
		sem:       make(chan struct{}, 1),
		committed: make(map[balanceKey]sdkmath.Int),
	}
}

// BalanceOf returns the committed balance, zero for unknown accounts.
func (l *Ledger) BalanceOf(asset, account string) sdkmath.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if bal, ok := l.committed[balanceKey{asset, account}]; ok {
		return bal
	}
	return sdkmath.ZeroInt()
}

// AccountBalances returns every non-zero committed balance held by account,
// keyed by asset.
func (l *Ledger) AccountBalances(account string) map[string]sdkmath.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make(map[string]sdkmath.Int)
	for key, bal := range l.committed {
		if key.account == account && !bal.IsZero() {
			out[key.asset] = bal
		}
	}
	return out
}

// TotalSupply sums every committed balance of asset.
func (l *Ledger) TotalSupply(asset string) sdkmath.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	total := sdkmath.ZeroInt()
	for key, bal := range l.committed {
		if key.asset == asset {
			total = total.Add(bal)
		}
	}
	return total
}

// Seed writes a committed balance directly, bypassing the transaction path.
// Bootstrap only: the host funds sandbox accounts with it before serving.
func (l *Ledger) Seed(asset, account string, amount sdkmath.Int) error {
	if err := safemath.CheckAmount(amount); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if amount.IsZero() {
		delete(l.committed, balanceKey{asset, account})
		return nil
	}
	l.committed[balanceKey{asset, account}] = amount
	return nil
}

// Begin opens a transaction, waiting for any open one to finish first. The
// context cancels the wait.
func (l *Ledger) Begin(ctx context.Context) (*Tx, error) {
	select {
	case l.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return &Tx{
		ledger:  l,
		pending: make(map[balanceKey]sdkmath.Int),
	}, nil
}

// Tx is one atomic batch of balance mutations. Not safe for concurrent use
// by multiple goroutines.
type Tx struct {
	ledger  *Ledger
	pending map[balanceKey]sdkmath.Int
	done    bool
}

// read returns the in-transaction view of one balance: pending overlay
// first, then committed state.
func (t *Tx) read(key balanceKey) sdkmath.Int {
	if bal, ok := t.pending[key]; ok {
		return bal
	}
	return t.ledger.BalanceOf(key.asset, key.account)
}

// BalanceOf returns the balance as this transaction sees it, including its
// own uncommitted writes.
func (t *Tx) BalanceOf(asset, account string) (sdkmath.Int, error) {
	if t.done {
		return sdkmath.ZeroInt(), ErrClosed
	}
	return t.read(balanceKey{asset, account}), nil
}

// Transfer moves amount of asset from one account to another. Zero amounts
// are a no-op. Fails without touching state when the sender cannot cover
// the amount or the receiver's balance would leave the representable range.
func (t *Tx) Transfer(asset, from, to string, amount sdkmath.Int) error {
	if t.done {
		return ErrClosed
	}
	if err := safemath.CheckAmount(amount); err != nil {
		return err
	}
	if amount.IsZero() {
		return nil
	}

	fromKey := balanceKey{asset, from}
	toKey := balanceKey{asset, to}

	fromBal := t.read(fromKey)
	if fromBal.LT(amount) {
		return types.ErrInsufficientFunds.Wrapf("%s holds %s %s, transfer needs %s", from, fromBal, asset, amount)
	}
	if from == to {
		return nil
	}
	debited, err := safemath.Sub(fromBal, amount)
	if err != nil {
		return err
	}
	credited, err := safemath.Add(t.read(toKey), amount)
	if err != nil {
		return err
	}
	if err := safemath.CheckAmount(credited); err != nil {
		return err
	}

	t.pending[fromKey] = debited
	t.pending[toKey] = credited
	return nil
}

// Mint creates amount of asset in account. Used for pool shares.
func (t *Tx) Mint(asset, account string, amount sdkmath.Int) error {
	if t.done {
		return ErrClosed
	}
	if err := safemath.CheckAmount(amount); err != nil {
		return err
	}
	key := balanceKey{asset, account}
	next, err := safemath.Add(t.read(key), amount)
	if err != nil {
		return err
	}
	if err := safemath.CheckAmount(next); err != nil {
		return err
	}
	t.pending[key] = next
	return nil
}

// Burn destroys amount of asset held by account.
func (t *Tx) Burn(asset, account string, amount sdkmath.Int) error {
	if t.done {
		return ErrClosed
	}
	if err := safemath.CheckAmount(amount); err != nil {
		return err
	}
	key := balanceKey{asset, account}
	bal := t.read(key)
	if bal.LT(amount) {
		return types.ErrInsufficientFunds.Wrapf("%s holds %s %s, burn needs %s", account, bal, asset, amount)
	}
	next, err := safemath.Sub(bal, amount)
	if err != nil {
		return err
	}
	t.pending[key] = next
	return nil
}

// Commit folds the pending overlay into committed state and releases the
// ledger.
func (t *Tx) Commit() error {
	if t.done {
		return ErrClosed
	}
	t.ledger.mu.Lock()
	for key, bal := range t.pending {
		if bal.IsZero() {
			delete(t.ledger.committed, key)
			continue
		}
		t.ledger.committed[key] = bal
	}
	t.ledger.mu.Unlock()

	t.ledger.log.Debug().Int("mutations", len(t.pending)).Msg("Ledger transaction committed")
	t.close()
	return nil
}

// Abort discards every pending mutation and releases the ledger. Safe to
// defer after Commit; the second call reports ErrClosed.
func (t *Tx) Abort() error {
	if t.done {
		return ErrClosed
	}
	t.ledger.log.Debug().Int("mutations", len(t.pending)).Msg("Ledger transaction aborted")
	t.close()
	return nil
}

func (t *Tx) close() {
	t.done = true
	t.pending = nil
	<-t.ledger.sem
}
