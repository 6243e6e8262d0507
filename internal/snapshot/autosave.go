package snapshot

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/encounter/internal/game/combat"
)

// Saver is the part of a Synchronizer the AutoSaver drives.
type Saver interface {
	Save(ctx context.Context) error
}

// DirtyChecker reports unsaved changes.
type DirtyChecker interface {
	Dirty() bool
}

// AutoSaver periodically saves a dirty store. It satisfies server.Service.
type AutoSaver struct {
	saver    Saver
	store    DirtyChecker
	interval time.Duration
	logger   *zap.Logger

	stopOnce sync.Once
	stop     chan struct{}
}

// NewAutoSaver creates an AutoSaver. An interval of zero disables it: Start
// blocks until Stop without saving.
func NewAutoSaver(saver Saver, store DirtyChecker, interval time.Duration, logger *zap.Logger) *AutoSaver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AutoSaver{
		saver:    saver,
		store:    store,
		interval: interval,
		logger:   logger,
		stop:     make(chan struct{}),
	}
}

// Start runs until Stop is called.
func (a *AutoSaver) Start() error {
	if a.interval <= 0 {
		<-a.stop
		return nil
	}
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()
	for {
		select {
		case <-a.stop:
			return nil
		case <-ticker.C:
			a.Tick(context.Background())
		}
	}
}

// Stop ends Start. Safe to call more than once.
func (a *AutoSaver) Stop() {
	a.stopOnce.Do(func() { close(a.stop) })
}

// Tick saves once if the store is dirty. Failures are logged; the next tick
// retries.
func (a *AutoSaver) Tick(ctx context.Context) {
	if !a.store.Dirty() {
		return
	}
	err := a.saver.Save(ctx)
	switch {
	case err == nil:
		a.logger.Debug("autosave complete")
	case errors.Is(err, ErrSaveInProgress), errors.Is(err, combat.ErrNotLoaded):
		a.logger.Debug("autosave skipped", zap.Error(err))
	default:
		a.logger.Warn("autosave failed", zap.Error(err))
	}
}
