package source

import (
	"context"

	"taiwan-calendar/internal/cache"
	"taiwan-calendar/internal/logger"
	"taiwan-calendar/internal/model"
)

// CachedLister serves a listing from the disk cache while it is fresh.
type CachedLister struct {
	lister Lister
	cache  *cache.Cache
}

// NewCachedLister wraps lister with c.
func NewCachedLister(lister Lister, c *cache.Cache) *CachedLister {
	return &CachedLister{lister: lister, cache: c}
}

func (l *CachedLister) Name() string {
	return l.lister.Name()
}

func (l *CachedLister) List(ctx context.Context) ([]model.ResourceRef, error) {
	if refs, ok := l.cache.Get(l.lister.Name()); ok {
		return refs, nil
	}

	refs, err := l.lister.List(ctx)
	if err != nil {
		return nil, err
	}
	if err := l.cache.Set(l.lister.Name(), refs); err != nil {
		logger.FromContext(ctx).Warn("failed to cache resource listing", "lister", l.lister.Name(), "err", err)
	}
	return refs, nil
}
