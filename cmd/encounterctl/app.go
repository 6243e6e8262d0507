package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/encounter/internal/clock"
	"github.com/cory-johannsen/encounter/internal/config"
	"github.com/cory-johannsen/encounter/internal/game/combat"
	"github.com/cory-johannsen/encounter/internal/game/condition"
	"github.com/cory-johannsen/encounter/internal/game/dice"
	"github.com/cory-johannsen/encounter/internal/game/session"
	"github.com/cory-johannsen/encounter/internal/game/sheet"
	"github.com/cory-johannsen/encounter/internal/observability"
	"github.com/cory-johannsen/encounter/internal/snapshot"
	"github.com/cory-johannsen/encounter/internal/storage/postgres"
	"github.com/cory-johannsen/encounter/internal/storage/redis"
)

// app holds everything a subcommand needs. close releases connections.
type app struct {
	cfg        config.Config
	logger     *zap.Logger
	sheets     *sheet.Registry
	conditions *condition.Registry
	repo       snapshot.Repository
	manager    *session.Manager

	closers []func()
}

// newApp loads configuration and content and connects to the configured
// persistence backend.
func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	logger, err := observability.NewLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("initializing logger: %w", err)
	}
	a := &app{cfg: cfg, logger: logger}
	a.closers = append(a.closers, func() { _ = logger.Sync() })

	contentStart := time.Now()
	if a.sheets, err = sheet.LoadDirectory(cfg.Content.SheetsDir); err != nil {
		a.close()
		return nil, fmt.Errorf("loading sheets: %w", err)
	}
	if a.conditions, err = condition.LoadDirectory(cfg.Content.ConditionsDir); err != nil {
		a.close()
		return nil, fmt.Errorf("loading conditions: %w", err)
	}
	logger.Info("content loaded",
		zap.Int("sheets", len(a.sheets.All())),
		zap.Int("conditions", len(a.conditions.All())),
		zap.Duration("elapsed", time.Since(contentStart)),
	)

	if a.repo, err = a.openRepository(ctx); err != nil {
		a.close()
		return nil, err
	}

	a.manager, err = session.NewManager(session.Config{
		Repository: a.repo,
		Sheets:     a.sheets,
		Conditions: a.conditions,
		Roller:     dice.NewLoggedRoller(diceSource(cfg.Engine), logger),
		Clock:      clock.New(),
		Logger:     logger,
		Rules: session.Rules{
			TieBreak:     combat.TieBreak(cfg.Engine.TieBreak),
			SavePolicy:   combat.SavePolicy(cfg.Engine.SavePolicy),
			RollLogLimit: cfg.Engine.RollLogLimit,
		},
		SaveTimeout:      cfg.Persistence.SaveTimeout,
		AutosaveInterval: cfg.Persistence.AutosaveInterval,
	})
	if err != nil {
		a.close()
		return nil, err
	}
	return a, nil
}

func diceSource(e config.EngineConfig) dice.Source {
	if e.DiceSeed != 0 {
		return dice.NewSeededSource(e.DiceSeed)
	}
	return dice.NewCryptoSource()
}

func (a *app) openRepository(ctx context.Context) (snapshot.Repository, error) {
	p := a.cfg.Persistence
	switch p.Backend {
	case config.BackendMemory:
		a.logger.Warn("using in-memory persistence; combats are lost on exit")
		return snapshot.NewMemoryRepository(clock.New()), nil

	case config.BackendRedis:
		return a.openRedis(ctx)

	case config.BackendPostgres:
		dbStart := time.Now()
		pool, err := postgres.NewPool(ctx, a.cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("connecting to database: %w", err)
		}
		a.closers = append(a.closers, pool.Close)
		a.logger.Info("database connected",
			zap.String("host", a.cfg.Database.Host),
			zap.Duration("elapsed", time.Since(dbStart)),
		)
		var repo snapshot.Repository = postgres.NewCombatRepository(pool.DB(), clock.New())
		if p.Cache {
			cache, err := a.openRedis(ctx)
			if err != nil {
				return nil, err
			}
			repo = snapshot.NewCachedRepository(repo, cache, a.logger)
		}
		return repo, nil

	default:
		return nil, fmt.Errorf("unknown persistence backend %q", p.Backend)
	}
}

func (a *app) openRedis(ctx context.Context) (*redis.CombatRepository, error) {
	client, err := redis.NewClient(a.cfg.Redis)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, func() { _ = client.Close() })
	if err := redis.Ping(ctx, client); err != nil {
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}
	a.logger.Info("redis connected", zap.String("addr", a.cfg.Redis.Addr))
	return redis.NewCombatRepository(redis.Config{
		Client: client,
		Clock:  clock.New(),
		TTL:    a.cfg.Redis.TTL,
	})
}

// close saves and closes open combats, then releases connections in
// reverse order.
func (a *app) close() {
	if a.manager != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := a.manager.CloseAll(ctx); err != nil {
			a.logger.Error("saving open combats", zap.Error(err))
		}
		cancel()
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// withApp runs fn with a fresh app and closes it afterwards.
func withApp(ctx context.Context, fn func(*app) error) error {
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()
	return fn(a)
}

// errMemoryBackend is returned by commands that need state to outlive the
// process.
var errMemoryBackend = errors.New("the memory backend does not outlive this command; use 'console --campaign' or configure postgres or redis")
