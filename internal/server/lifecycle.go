// Package server runs the long-lived parts of an encounter process, such as
// the operator console and the autosaver, and shuts them down together.
package server

import (
	"context"
	"fmt"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"
)

// Service is a long-running component.
type Service interface {
	// Start runs the service and blocks until it finishes or Stop is called.
	Start() error
	// Stop asks Start to return. It must be safe to call more than once and
	// after Start has already returned.
	Stop()
}

// FuncService adapts a start/stop function pair into a Service. A nil StopFn
// is a no-op.
type FuncService struct {
	StartFn func() error
	StopFn  func()
}

// Start calls StartFn.
func (f *FuncService) Start() error { return f.StartFn() }

// Stop calls StopFn if set.
func (f *FuncService) Stop() {
	if f.StopFn != nil {
		f.StopFn()
	}
}

// Lifecycle starts a group of services and stops them together as soon as
// any one of them finishes.
type Lifecycle struct {
	logger   *zap.Logger
	mu       sync.Mutex
	services []namedService
}

type namedService struct {
	name    string
	service Service
}

type exit struct {
	name   string
	err    error
	uptime time.Duration
}

// NewLifecycle creates an empty Lifecycle. A nil logger discards output.
func NewLifecycle(logger *zap.Logger) *Lifecycle {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Lifecycle{logger: logger}
}

// Add registers svc under name. Services start in the order they are added
// and stop in reverse.
//
// Precondition: name must be non-empty; svc must be non-nil.
func (l *Lifecycle) Add(name string, svc Service) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.services = append(l.services, namedService{name: name, service: svc})
}

// Run starts every service and blocks until one of them returns, ctx is
// done, or SIGINT or SIGTERM arrives. Then every service is stopped.
//
// Postcondition: every Start has returned. The error is that of the first
// service to fail; a service finishing cleanly or a shutdown request
// returns nil.
func (l *Lifecycle) Run(ctx context.Context) error {
	l.mu.Lock()
	services := append([]namedService(nil), l.services...)
	l.mu.Unlock()
	if len(services) == 0 {
		return nil
	}

	start := time.Now()
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	exits := make(chan exit, len(services))
	var wg sync.WaitGroup
	for _, ns := range services {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l.logger.Debug("starting service", zap.String("service", ns.name))
			began := time.Now()
			err := ns.service.Start()
			exits <- exit{name: ns.name, err: err, uptime: time.Since(began)}
		}()
	}
	l.logger.Info("services started", zap.Int("count", len(services)))

	var runErr error
	select {
	case e := <-exits:
		if e.err != nil {
			l.logger.Error("service failed, shutting down",
				zap.String("service", e.name),
				zap.Error(e.err),
				zap.Duration("uptime", e.uptime),
			)
			runErr = fmt.Errorf("service %s: %w", e.name, e.err)
		} else {
			l.logger.Info("service finished, shutting down", zap.String("service", e.name))
		}
	case <-ctx.Done():
		l.logger.Info("shutdown requested", zap.Error(context.Cause(ctx)))
	}

	l.shutdown(services)
	wg.Wait()
	close(exits)
	for e := range exits {
		if e.err != nil {
			l.logger.Warn("service returned error during shutdown",
				zap.String("service", e.name),
				zap.Error(e.err),
			)
		}
	}

	l.logger.Info("shutdown complete", zap.Duration("uptime", time.Since(start)))
	return runErr
}

func (l *Lifecycle) shutdown(services []namedService) {
	for i := len(services) - 1; i >= 0; i-- {
		ns := services[i]
		began := time.Now()
		ns.service.Stop()
		l.logger.Debug("service stopped",
			zap.String("service", ns.name),
			zap.Duration("elapsed", time.Since(began)),
		)
	}
}
