package session

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cory-johannsen/encounter/internal/clock"
	"github.com/cory-johannsen/encounter/internal/game/combat"
	"github.com/cory-johannsen/encounter/internal/game/dice"
	"github.com/cory-johannsen/encounter/internal/snapshot"
)

// ErrAlreadyOpen is returned when creating a combat whose ID is already open.
var ErrAlreadyOpen = errors.New("combat already open")

// Rules are the policy points applied to every combat a Manager opens.
type Rules struct {
	TieBreak     combat.TieBreak
	SavePolicy   combat.SavePolicy
	RollLogLimit int
}

// Config holds the collaborators shared by every session.
type Config struct {
	Repository snapshot.Repository
	Sheets     combat.Sheets
	Conditions combat.ConditionCatalog
	Roller     *dice.Roller
	Clock      clock.Clock
	Logger     *zap.Logger
	Rules      Rules

	SaveTimeout      time.Duration
	AutosaveInterval time.Duration
}

// Validate ensures all required dependencies are provided.
func (c *Config) Validate() error {
	var errs []error
	if c.Repository == nil {
		errs = append(errs, errors.New("repository is required"))
	}
	if c.Roller == nil {
		errs = append(errs, errors.New("roller is required"))
	}
	if c.Rules.RollLogLimit < 0 {
		errs = append(errs, fmt.Errorf("roll log limit must be >= 0, got %d", c.Rules.RollLogLimit))
	}
	return errors.Join(errs...)
}

// Manager tracks all open combats and their campaign membership.
// All methods are safe for concurrent use.
type Manager struct {
	cfg Config

	mu        sync.RWMutex
	sessions  map[string]*Session        // combat ID → session
	campaigns map[string]map[string]bool // campaign ID → set of combat IDs
}

// NewManager creates an empty Manager.
func NewManager(cfg Config) (*Manager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid session manager config: %w", err)
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.New()
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Manager{
		cfg:       cfg,
		sessions:  make(map[string]*Session),
		campaigns: make(map[string]map[string]bool),
	}, nil
}

func (m *Manager) build(id string) (*Session, error) {
	logger := m.cfg.Logger.With(zap.String("combat_id", id))
	store := combat.NewStore(combat.StoreConfig{
		Logger:       logger,
		Clock:        m.cfg.Clock,
		RollLogLimit: m.cfg.Rules.RollLogLimit,
	})
	sched := combat.NewScheduler(store, m.cfg.Sheets, m.cfg.Roller, m.cfg.Rules.TieBreak, logger)
	res := combat.NewResolver(store, m.cfg.Sheets, m.cfg.Conditions, m.cfg.Roller, m.cfg.Rules.SavePolicy, logger)
	syncer, err := snapshot.NewSynchronizer(snapshot.Config{
		Store:       store,
		Scheduler:   sched,
		Repository:  m.cfg.Repository,
		Clock:       m.cfg.Clock,
		Logger:      logger,
		SaveTimeout: m.cfg.SaveTimeout,
	})
	if err != nil {
		return nil, err
	}
	return &Session{
		ID:        id,
		Store:     store,
		Scheduler: sched,
		Resolver:  res,
		Sync:      syncer,
		AutoSaver: snapshot.NewAutoSaver(syncer, store, m.cfg.AutosaveInterval, logger),
	}, nil
}

// Create starts a new empty combat in round 1, saves it, and opens it.
//
// Precondition: campaignID must be non-empty.
// Postcondition: The combat is persisted and open, or nothing is registered.
func (m *Manager) Create(ctx context.Context, campaignID, name string) (*Session, error) {
	if campaignID == "" {
		return nil, fmt.Errorf("%w: campaign id is required", combat.ErrMalformedSnapshot)
	}
	id := uuid.NewString()
	sess, err := m.build(id)
	if err != nil {
		return nil, err
	}
	snap := combat.Snapshot{
		ID:           id,
		CampaignID:   campaignID,
		Name:         name,
		Status:       combat.StatusActive,
		CurrentRound: 1,
		Participants: []combat.Participant{},
	}
	if err := sess.Store.Load(snap); err != nil {
		return nil, err
	}
	if err := sess.Sync.Save(ctx); err != nil {
		return nil, err
	}
	sess.CampaignID = campaignID
	if err := m.register(sess); err != nil {
		return nil, err
	}
	m.cfg.Logger.Info("combat created",
		zap.String("combat_id", id),
		zap.String("campaign_id", campaignID),
		zap.String("name", name),
	)
	return sess, nil
}

// Open loads combat id from the repository, or returns it if already open.
//
// Postcondition: On error nothing is registered.
func (m *Manager) Open(ctx context.Context, id string) (*Session, error) {
	if sess, ok := m.Get(id); ok {
		return sess, nil
	}
	sess, err := m.build(id)
	if err != nil {
		return nil, err
	}
	if err := sess.Sync.Load(ctx, id); err != nil {
		return nil, err
	}
	sess.CampaignID = sess.Store.Snapshot().CampaignID
	if err := m.register(sess); err != nil {
		// Lost a race with another Open of the same combat.
		if existing, ok := m.Get(id); ok {
			return existing, nil
		}
		return nil, err
	}
	m.cfg.Logger.Info("combat opened", zap.String("combat_id", id))
	return sess, nil
}

func (m *Manager) register(sess *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.sessions[sess.ID]; exists {
		return fmt.Errorf("%w: %q", ErrAlreadyOpen, sess.ID)
	}
	m.sessions[sess.ID] = sess
	if m.campaigns[sess.CampaignID] == nil {
		m.campaigns[sess.CampaignID] = make(map[string]bool)
	}
	m.campaigns[sess.CampaignID][sess.ID] = true
	return nil
}

// Get returns the open session for id.
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sess, ok := m.sessions[id]
	return sess, ok
}

// Close saves combat id if it has unsaved changes and forgets it.
//
// Postcondition: The closed session's store is reset to unloaded. If the save
// fails the session stays open and dirty. Closing an unknown id is a no-op.
func (m *Manager) Close(ctx context.Context, id string) error {
	sess, ok := m.Get(id)
	if !ok {
		return nil
	}
	if sess.Store.Dirty() {
		if err := sess.Sync.Save(ctx); err != nil {
			return err
		}
	}
	sess.AutoSaver.Stop()

	m.mu.Lock()
	delete(m.sessions, id)
	if rs, ok := m.campaigns[sess.CampaignID]; ok {
		delete(rs, id)
		if len(rs) == 0 {
			delete(m.campaigns, sess.CampaignID)
		}
	}
	m.mu.Unlock()

	sess.Store.Reset()
	m.cfg.Logger.Info("combat closed", zap.String("combat_id", id))
	return nil
}

// CloseAll closes every open combat, attempting all of them even when some
// saves fail.
func (m *Manager) CloseAll(ctx context.Context) error {
	var errs []error
	for _, id := range m.IDs() {
		if err := m.Close(ctx, id); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// IDs returns the open combat IDs in sorted order.
func (m *Manager) IDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// InCampaign returns the open combat IDs of campaignID in sorted order.
func (m *Manager) InCampaign(campaignID string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	set := m.campaigns[campaignID]
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Count returns the number of open combats.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
