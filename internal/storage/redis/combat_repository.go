package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/cory-johannsen/encounter/internal/clock"
	"github.com/cory-johannsen/encounter/internal/game/combat"
	"github.com/cory-johannsen/encounter/internal/snapshot"
)

const (
	// combat:{id} holds an envelope; campaign:{id}:combats indexes them.
	combatKeyPrefix   = "combat:"
	campaignKeyPrefix = "campaign:"
	campaignKeySuffix = ":combats"
)

type envelope struct {
	Snapshot  combat.Snapshot `json:"snapshot"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Config holds the dependencies of a CombatRepository.
type Config struct {
	Client Client
	Clock  clock.Clock
	// TTL expires snapshots; 0 keeps them until overwritten or deleted.
	TTL time.Duration
}

// Validate reports missing dependencies.
func (c *Config) Validate() error {
	var errs []error
	if c.Client == nil {
		errs = append(errs, errors.New("redis client is required"))
	}
	if c.Clock == nil {
		errs = append(errs, errors.New("clock is required"))
	}
	if c.TTL < 0 {
		errs = append(errs, errors.New("ttl must not be negative"))
	}
	return errors.Join(errs...)
}

// CombatRepository stores each snapshot as JSON under combat:{id}.
type CombatRepository struct {
	client Client
	clock  clock.Clock
	ttl    time.Duration
}

// NewCombatRepository creates a CombatRepository from cfg.
func NewCombatRepository(cfg Config) (*CombatRepository, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid redis repository config: %w", err)
	}
	return &CombatRepository{client: cfg.Client, clock: cfg.Clock, ttl: cfg.TTL}, nil
}

var _ snapshot.Repository = (*CombatRepository)(nil)

func combatKey(id string) string { return combatKeyPrefix + id }

func campaignKey(id string) string { return campaignKeyPrefix + id + campaignKeySuffix }

// Load returns the snapshot stored under id.
//
// Postcondition: Returns snapshot.ErrCombatNotFound for missing or expired keys.
func (r *CombatRepository) Load(ctx context.Context, id string) (combat.Snapshot, error) {
	env, err := r.get(ctx, id)
	if err != nil {
		return combat.Snapshot{}, err
	}
	return env.Snapshot, nil
}

func (r *CombatRepository) get(ctx context.Context, id string) (envelope, error) {
	raw, err := r.client.Get(ctx, combatKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return envelope{}, snapshot.ErrCombatNotFound
		}
		return envelope{}, fmt.Errorf("reading combat %q from redis: %w", id, err)
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return envelope{}, fmt.Errorf("decoding combat %q: %w", id, err)
	}
	return env, nil
}

// Save overwrites the snapshot and indexes it under its campaign. A combat
// moved to another campaign is removed from the old index.
func (r *CombatRepository) Save(ctx context.Context, snap combat.Snapshot) error {
	if snap.ID == "" {
		return fmt.Errorf("saving combat: empty id")
	}
	blob, err := json.Marshal(envelope{Snapshot: snap, UpdatedAt: r.clock.Now()})
	if err != nil {
		return fmt.Errorf("encoding combat %q: %w", snap.ID, err)
	}

	prev, err := r.get(ctx, snap.ID)
	if err != nil && !errors.Is(err, snapshot.ErrCombatNotFound) {
		// A corrupt previous value is overwritten below.
		prev = envelope{}
	}

	_, err = r.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.Set(ctx, combatKey(snap.ID), blob, r.ttl)
		pipe.SAdd(ctx, campaignKey(snap.CampaignID), snap.ID)
		if prev.Snapshot.ID != "" && prev.Snapshot.CampaignID != snap.CampaignID {
			pipe.SRem(ctx, campaignKey(prev.Snapshot.CampaignID), snap.ID)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("writing combat %q to redis: %w", snap.ID, err)
	}
	return nil
}

// ListByCampaign returns summaries of the campaign's combats, most recently
// updated first. Index entries whose snapshot has expired are pruned.
func (r *CombatRepository) ListByCampaign(ctx context.Context, campaignID string) ([]snapshot.Summary, error) {
	ids, err := r.client.SMembers(ctx, campaignKey(campaignID)).Result()
	if err != nil {
		return nil, fmt.Errorf("listing campaign %q: %w", campaignID, err)
	}
	out := []snapshot.Summary{}
	if len(ids) == 0 {
		return out, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = combatKey(id)
	}
	vals, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("reading campaign %q combats: %w", campaignID, err)
	}

	var stale []any
	for i, v := range vals {
		s, ok := v.(string)
		if !ok {
			stale = append(stale, ids[i])
			continue
		}
		var env envelope
		if err := json.Unmarshal([]byte(s), &env); err != nil {
			return nil, fmt.Errorf("decoding combat %q: %w", ids[i], err)
		}
		out = append(out, snapshot.SummaryOf(env.Snapshot, env.UpdatedAt))
	}
	if len(stale) > 0 {
		if err := r.client.SRem(ctx, campaignKey(campaignID), stale...).Err(); err != nil {
			return nil, fmt.Errorf("pruning campaign %q index: %w", campaignID, err)
		}
	}
	snapshot.SortSummaries(out)
	return out, nil
}

// Delete removes the snapshot and its index entry.
//
// Postcondition: Returns snapshot.ErrCombatNotFound if nothing was stored.
func (r *CombatRepository) Delete(ctx context.Context, id string) error {
	env, err := r.get(ctx, id)
	if err != nil {
		return err
	}
	_, err = r.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.Del(ctx, combatKey(id))
		pipe.SRem(ctx, campaignKey(env.Snapshot.CampaignID), id)
		return nil
	})
	if err != nil {
		return fmt.Errorf("deleting combat %q from redis: %w", id, err)
	}
	return nil
}
