package snapshot

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/encounter/internal/clock"
	"github.com/cory-johannsen/encounter/internal/game/combat"
)

// Config holds the collaborators of a Synchronizer.
type Config struct {
	Store      *combat.Store
	Scheduler  *combat.Scheduler
	Repository Repository
	Clock      clock.Clock
	Logger     *zap.Logger
	// SaveTimeout bounds a single repository write; zero means no bound
	// beyond the caller's context.
	SaveTimeout time.Duration
}

// Validate ensures all required dependencies are provided.
func (c *Config) Validate() error {
	var errs []error
	if c.Store == nil {
		errs = append(errs, errors.New("store is required"))
	}
	if c.Scheduler == nil {
		errs = append(errs, errors.New("scheduler is required"))
	}
	if c.Repository == nil {
		errs = append(errs, errors.New("repository is required"))
	}
	if c.SaveTimeout < 0 {
		errs = append(errs, fmt.Errorf("save timeout must be >= 0, got %s", c.SaveTimeout))
	}
	return errors.Join(errs...)
}

// Synchronizer moves snapshots between one Store and a Repository.
//
// Invariant: at most one Save runs at a time.
type Synchronizer struct {
	store       *combat.Store
	scheduler   *combat.Scheduler
	repo        Repository
	clock       clock.Clock
	logger      *zap.Logger
	saveTimeout time.Duration

	mu     sync.Mutex
	saving bool
}

// NewSynchronizer creates a Synchronizer from cfg.
func NewSynchronizer(cfg Config) (*Synchronizer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid synchronizer config: %w", err)
	}
	clk := cfg.Clock
	if clk == nil {
		clk = clock.New()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Synchronizer{
		store:       cfg.Store,
		scheduler:   cfg.Scheduler,
		repo:        cfg.Repository,
		clock:       clk,
		logger:      logger,
		saveTimeout: cfg.SaveTimeout,
	}, nil
}

// Load fetches combat id and replaces the store's state with it.
//
// Postcondition: on any error the store is left exactly as it was.
func (s *Synchronizer) Load(ctx context.Context, id string) error {
	snap, err := s.repo.Load(ctx, id)
	if err != nil {
		return fmt.Errorf("loading combat %q: %w", id, err)
	}
	if err := s.store.Load(snap); err != nil {
		return fmt.Errorf("loading combat %q: %w", id, err)
	}
	return nil
}

// Save writes the store's current state as a full overwrite.
//
// The snapshot is taken up front and the store lock is not held during the
// write. Dirty is cleared only if nothing changed meanwhile. On failure the
// store keeps its state and stays dirty.
//
// Postcondition: returns ErrSaveInProgress without writing if another Save
// has not finished.
func (s *Synchronizer) Save(ctx context.Context) error {
	s.mu.Lock()
	if s.saving {
		s.mu.Unlock()
		return ErrSaveInProgress
	}
	s.saving = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.saving = false
		s.mu.Unlock()
	}()

	cp, err := s.store.Checkpoint()
	if err != nil {
		return err
	}
	id := cp.Snapshot.ID
	if s.saveTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.saveTimeout)
		defer cancel()
	}

	start := s.clock.Now()
	if err := s.repo.Save(ctx, cp.Snapshot); err != nil {
		s.logger.Warn("combat save failed", zap.String("combat_id", id), zap.Error(err))
		return fmt.Errorf("saving combat %q: %w", id, err)
	}
	savedAt := s.clock.Now()
	clean := s.store.MarkSaved(cp, savedAt)
	s.logger.Info("combat saved",
		zap.String("combat_id", id),
		zap.Bool("clean", clean),
		zap.Duration("elapsed", savedAt.Sub(start)),
	)
	return nil
}

// IsSaving reports whether a Save is in flight.
func (s *Synchronizer) IsSaving() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saving
}

// EndCombat marks the combat completed and saves it.
func (s *Synchronizer) EndCombat(ctx context.Context) error {
	if err := s.scheduler.EndCombat(); err != nil {
		return err
	}
	return s.Save(ctx)
}
