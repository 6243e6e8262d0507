package snapshot

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/cory-johannsen/encounter/internal/game/combat"
)

// CachedRepository writes through to a primary repository and keeps a copy
// in a cache repository. Cache failures are logged and never fail a call.
type CachedRepository struct {
	primary Repository
	cache   Repository
	logger  *zap.Logger
}

// NewCachedRepository creates a CachedRepository.
//
// Precondition: primary and cache must be non-nil.
func NewCachedRepository(primary, cache Repository, logger *zap.Logger) *CachedRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedRepository{primary: primary, cache: cache, logger: logger}
}

var _ Repository = (*CachedRepository)(nil)

// Load serves from the cache when possible and fills it on a miss.
func (c *CachedRepository) Load(ctx context.Context, id string) (combat.Snapshot, error) {
	snap, err := c.cache.Load(ctx, id)
	if err == nil {
		return snap, nil
	}
	if !errors.Is(err, ErrCombatNotFound) {
		c.logger.Warn("snapshot cache read failed", zap.String("combat_id", id), zap.Error(err))
	}
	snap, err = c.primary.Load(ctx, id)
	if err != nil {
		return combat.Snapshot{}, err
	}
	if err := c.cache.Save(ctx, snap); err != nil {
		c.logger.Warn("snapshot cache fill failed", zap.String("combat_id", id), zap.Error(err))
	}
	return snap, nil
}

// Save writes to the primary and then refreshes the cache.
func (c *CachedRepository) Save(ctx context.Context, snap combat.Snapshot) error {
	if err := c.primary.Save(ctx, snap); err != nil {
		return err
	}
	if err := c.cache.Save(ctx, snap); err != nil {
		c.logger.Warn("snapshot cache write failed", zap.String("combat_id", snap.ID), zap.Error(err))
		// A stale entry would shadow the write just made.
		_ = c.cache.Delete(ctx, snap.ID)
	}
	return nil
}

// ListByCampaign always reads the primary.
func (c *CachedRepository) ListByCampaign(ctx context.Context, campaignID string) ([]Summary, error) {
	return c.primary.ListByCampaign(ctx, campaignID)
}

// Delete removes the combat from the primary and evicts it from the cache.
func (c *CachedRepository) Delete(ctx context.Context, id string) error {
	if err := c.primary.Delete(ctx, id); err != nil {
		return err
	}
	if err := c.cache.Delete(ctx, id); err != nil && !errors.Is(err, ErrCombatNotFound) {
		c.logger.Warn("snapshot cache evict failed", zap.String("combat_id", id), zap.Error(err))
	}
	return nil
}
