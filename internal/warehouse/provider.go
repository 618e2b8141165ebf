package warehouse

import (
	"context"
	"errors"
	"fmt"
	"sync"

	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// DefaultHandle is the well-known name the shared warehouse handle is cached under.
const DefaultHandle = "default"

var (
	ErrNoConfiguration = errors.New("no warehouse connection configured")
	ErrConnection      = errors.New("warehouse connection failed")
	ErrQuery           = errors.New("warehouse query failed")
)

// Opener creates a fresh warehouse handle.
type Opener func(ctx context.Context) (*gorm.DB, error)

// Option configures a Provider.
type Option func(p *Provider)

// WithPrepare runs fn on every freshly opened handle before it is cached.
// A failing fn discards the handle, so the next Acquire tries again.
func WithPrepare(fn func(db *gorm.DB) error) Option {
	return func(p *Provider) {
		p.prepare = fn
	}
}

// Provider hands out a validated warehouse handle, recreating it when the
// cached one stops answering.
type Provider struct {
	mu      sync.Mutex
	open    Opener
	prepare func(db *gorm.DB) error
	handles map[string]*gorm.DB
}

// NewProvider returns a provider; a nil opener means no configuration is
// available and Acquire always fails with ErrNoConfiguration.
func NewProvider(open Opener, opts ...Option) *Provider {
	p := &Provider{
		open:    open,
		handles: make(map[string]*gorm.DB),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Provider) Acquire(ctx context.Context) (*gorm.DB, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.open == nil {
		return nil, ErrNoConfiguration
	}
	if db, ok := p.handles[DefaultHandle]; ok {
		probeErr := Probe(ctx, db)
		if probeErr == nil {
			return db, nil
		}
		log.WithError(probeErr).Warn("cached warehouse handle failed probe, reconnecting")
		delete(p.handles, DefaultHandle)
		closeHandle(db)
	}

	db, err := p.open(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnection, err)
	}
	if err := Probe(ctx, db); err != nil {
		closeHandle(db)
		return nil, fmt.Errorf("%w: %w", ErrConnection, err)
	}
	if p.prepare != nil {
		if err := p.prepare(db.WithContext(ctx)); err != nil {
			closeHandle(db)
			return nil, fmt.Errorf("%w: prepare handle: %w", ErrConnection, err)
		}
	}
	p.handles[DefaultHandle] = db
	return db, nil
}

// Run executes fn against a validated handle. When fn fails and the handle
// no longer answers the probe, the handle is replaced and fn runs once more.
func (p *Provider) Run(ctx context.Context, fn func(db *gorm.DB) error) error {
	db, err := p.Acquire(ctx)
	if err != nil {
		return err
	}
	runErr := fn(db.WithContext(ctx))
	if runErr == nil {
		return nil
	}
	if probeErr := Probe(ctx, db); probeErr == nil {
		return fmt.Errorf("%w: %w", ErrQuery, runErr)
	}

	log.WithError(runErr).Warn("warehouse handle expired during query, retrying once")
	p.invalidate(db)
	db, err = p.Acquire(ctx)
	if err != nil {
		return err
	}
	if err := fn(db.WithContext(ctx)); err != nil {
		return fmt.Errorf("%w: %w", ErrQuery, err)
	}
	return nil
}

// Ping reports whether a usable handle can be obtained.
func (p *Provider) Ping(ctx context.Context) error {
	_, err := p.Acquire(ctx)
	return err
}

func (p *Provider) Invalidate() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if db, ok := p.handles[DefaultHandle]; ok {
		delete(p.handles, DefaultHandle)
		closeHandle(db)
	}
}

func (p *Provider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	var closeErr error
	for name, db := range p.handles {
		sqlDB, err := db.DB()
		if err == nil {
			if err := sqlDB.Close(); err != nil {
				closeErr = err
			}
		}
		delete(p.handles, name)
	}
	return closeErr
}

// invalidate drops db only if it is still the cached handle.
func (p *Provider) invalidate(db *gorm.DB) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if current, ok := p.handles[DefaultHandle]; ok && current == db {
		delete(p.handles, DefaultHandle)
		closeHandle(db)
	}
}

// Probe runs the trivial round trip used to validate a handle.
func Probe(ctx context.Context, db *gorm.DB) error {
	var one int
	return db.WithContext(ctx).Raw("SELECT 1").Scan(&one).Error
}

func closeHandle(db *gorm.DB) {
	sqlDB, err := db.DB()
	if err != nil {
		return
	}
	_ = sqlDB.Close()
}
