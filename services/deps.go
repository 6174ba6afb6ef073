package services

import (
	"context"
	"time"

	"github.com/anjiri1684/fee_ledger/cache"
	"github.com/anjiri1684/fee_ledger/store"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Deps are the collaborators shared by the ledger services. Only Store is
// required.
type Deps struct {
	Store  store.Store
	Cache  cache.Cache
	Events Publisher
	Logger *zap.Logger
	Now    func() time.Time
}

func (d Deps) withDefaults() Deps {
	if d.Cache == nil {
		d.Cache = cache.Nop{}
	}
	if d.Events == nil {
		d.Events = nopPublisher{}
	}
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	return d
}

// invalidateStats drops the cached business projection after a write. The
// generation bump stops a summary computed before the write from being
// stored after the delete.
func (d Deps) invalidateStats(ctx context.Context, businessID uuid.UUID) {
	if _, err := d.Cache.Incr(ctx, cache.BusinessStatsGenerationKey(businessID)); err != nil {
		d.Logger.Warn("failed to bump finance stats generation",
			zap.Stringer("business_id", businessID), zap.Error(err))
	}
	if err := d.Cache.Delete(ctx, cache.BusinessStatsKey(businessID)); err != nil {
		d.Logger.Warn("failed to invalidate finance stats cache",
			zap.Stringer("business_id", businessID), zap.Error(err))
	}
}

func (d Deps) publish(e Event) {
	if e.At.IsZero() {
		e.At = d.Now()
	}
	d.Events.Publish(e)
}
