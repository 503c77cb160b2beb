package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/smartsupply/agent/internal/database"
	"github.com/smartsupply/agent/pkg/logger"
)

var (
	// ErrStorageUnavailable reports that the local database could not be opened
	// or has been closed.
	ErrStorageUnavailable = errors.New("cache: storage unavailable")
	// ErrStorageIO reports a failed read or write against an open store.
	ErrStorageIO = errors.New("cache: storage i/o error")
)

const defaultPhoneRegion = "PK"

// Opener opens and migrates the backing database.
type Opener func(cfg database.Config) (*gorm.DB, error)

// Option customises a CustomerStore.
type Option func(*CustomerStore)

// WithLogger overrides the store logger.
func WithLogger(log *zap.Logger) Option {
	return func(s *CustomerStore) {
		if log != nil {
			s.log = log
		}
	}
}

// WithPhoneRegion sets the region used to normalise numbers without a country prefix.
func WithPhoneRegion(region string) Option {
	return func(s *CustomerStore) {
		if region = strings.ToUpper(strings.TrimSpace(region)); region != "" {
			s.region = region
		}
	}
}

// WithOpener replaces the database opener, primarily for testing.
func WithOpener(open Opener) Option {
	return func(s *CustomerStore) {
		if open != nil {
			s.open = open
		}
	}
}

// WithNow overrides the clock used to stamp cached rows.
func WithNow(now func() time.Time) Option {
	return func(s *CustomerStore) {
		if now != nil {
			s.now = now
		}
	}
}

// CustomerStore is the on-device cache of the customer directory and the
// bottle price list. It is safe for concurrent use; writers follow
// last-write-wins semantics.
type CustomerStore struct {
	cfg    database.Config
	open   Opener
	region string
	now    func() time.Time
	log    *zap.Logger

	mu     sync.Mutex
	db     *gorm.DB
	closed bool
}

// NewCustomerStore constructs a store for the given database. No connection is
// made until Initialize or the first operation.
func NewCustomerStore(cfg database.Config, opts ...Option) *CustomerStore {
	s := &CustomerStore{
		cfg:    cfg,
		open:   database.OpenAndMigrate,
		region: defaultPhoneRegion,
		now:    time.Now,
		log:    logger.WithModule("cache"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Initialize opens the database and applies pending schema versions. It is
// idempotent; concurrent callers share one connection, and a failed attempt
// may be retried.
func (s *CustomerStore) Initialize(ctx context.Context) error {
	if ctx != nil {
		if err := ctx.Err(); err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = false
	if s.db != nil {
		return nil
	}

	db, err := s.open(s.cfg)
	if err != nil {
		s.log.Error("local cache open failed", zap.Error(err))
		return fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}

	s.db = db
	version, _ := database.SchemaVersion(db)
	s.log.Info("local cache opened", zap.String("driver", s.cfg.Driver), zap.Int("schema_version", version))
	return nil
}

// Close releases the connection. Later operations fail with
// ErrStorageUnavailable until Initialize is called again.
func (s *CustomerStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	if s.db == nil {
		return nil
	}
	err := database.Close(s.db)
	s.db = nil
	return err
}

// Ping verifies the underlying connection, for readiness probes.
func (s *CustomerStore) Ping(ctx context.Context) error {
	db, err := s.conn(ctx)
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return ioError("ping", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return ioError("ping", err)
	}
	return nil
}

// conn returns the live connection, opening it on first use.
func (s *CustomerStore) conn(ctx context.Context) (*gorm.DB, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	s.mu.Lock()
	db, closed := s.db, s.closed
	s.mu.Unlock()

	if closed {
		return nil, fmt.Errorf("%w: store closed", ErrStorageUnavailable)
	}
	if db != nil {
		return db.WithContext(ctx), nil
	}

	if err := s.Initialize(ctx); err != nil {
		return nil, err
	}

	s.mu.Lock()
	db = s.db
	s.mu.Unlock()
	if db == nil {
		return nil, fmt.Errorf("%w: store closed", ErrStorageUnavailable)
	}
	return db.WithContext(ctx), nil
}

func ioError(op string, err error) error {
	return fmt.Errorf("cache: %s: %w: %w", op, ErrStorageIO, err)
}

// Optimize lets SQLite refresh its query planner statistics. Other drivers
// maintain their own.
func (s *CustomerStore) Optimize(ctx context.Context) error {
	if s.cfg.Driver != "" && s.cfg.Driver != "sqlite" {
		return nil
	}
	db, err := s.conn(ctx)
	if err != nil {
		return err
	}
	if err := db.Exec("PRAGMA optimize").Error; err != nil {
		return ioError("optimize", err)
	}
	return nil
}
