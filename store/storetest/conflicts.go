// Package storetest wraps a store.Store with failures that are hard to
// provoke against a real database.
package storetest

import (
	"context"
	"sync"
	"time"

	"github.com/anjiri1684/fee_ledger/models"
	"github.com/anjiri1684/fee_ledger/store"
)

// Conflicts fails UpdateFeeStatus with store.ErrConflict as if another
// writer had bumped the fee version first. The counter is shared with the
// transactional views handed out by WithinTx.
type Conflicts struct {
	store.Store
	state *conflictState
}

type conflictState struct {
	mu      sync.Mutex
	pending int
}

func WithConflicts(s store.Store) *Conflicts {
	return &Conflicts{Store: s, state: &conflictState{}}
}

// Inject makes the next n status updates lose the race.
func (c *Conflicts) Inject(n int) {
	c.state.mu.Lock()
	defer c.state.mu.Unlock()
	c.state.pending = n
}

// Remaining reports how many injected conflicts have not fired yet.
func (c *Conflicts) Remaining() int {
	c.state.mu.Lock()
	defer c.state.mu.Unlock()
	return c.state.pending
}

func (c *Conflicts) WithinTx(ctx context.Context, fn func(tx store.Store) error) error {
	return c.Store.WithinTx(ctx, func(tx store.Store) error {
		return fn(&Conflicts{Store: tx, state: c.state})
	})
}

func (c *Conflicts) UpdateFeeStatus(ctx context.Context, f *models.Fee, status models.FeeStatus, paidAt *time.Time) error {
	c.state.mu.Lock()
	if c.state.pending > 0 {
		c.state.pending--
		c.state.mu.Unlock()
		return store.ErrConflict
	}
	c.state.mu.Unlock()
	return c.Store.UpdateFeeStatus(ctx, f, status, paidAt)
}
