package session

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/supabase-community/supabase-go"
)

// Store is the persistence contract for sessions. All methods are safe for
// concurrent use. Get returns a deep copy the caller owns.
type Store interface {
	// Create persists a new session. Fails with ErrAlreadyExists when the
	// ID is taken.
	Create(ctx context.Context, s *Session) error

	// Get loads a session by ID or returns ErrNotFound.
	Get(ctx context.Context, id string) (*Session, error)

	// Patch applies a partial update atomically.
	Patch(ctx context.Context, id string, p Patch) error

	// TransitionStatus moves the session from one status to another,
	// failing with ErrStatusConflict when the stored status differs from
	// the expected one.
	TransitionStatus(ctx context.Context, id string, from, to Status) error

	// Close releases any resources held by the store.
	Close() error
}

// Driver selects a Store implementation.
type Driver string

const (
	DriverMemory   Driver = "memory"
	DriverRedis    Driver = "redis"
	DriverLibSQL   Driver = "libsql"
	DriverSupabase Driver = "supabase"
)

// storeConfig collects the options the drivers draw from.
type storeConfig struct {
	logger         zerolog.Logger
	redisClient    *redis.Client
	redisTTL       time.Duration
	keyPrefix      string
	db             *sql.DB
	supabaseClient *supabase.Client
	table          string
	cacheCapacity  int
	cacheTTL       time.Duration
}

// Option configures a Store during Open.
type Option func(*storeConfig) error

// WithLogger sets the store logger. Defaults to a no-op logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *storeConfig) error {
		c.logger = logger
		return nil
	}
}

// WithRedisClient supplies the redis client for DriverRedis.
func WithRedisClient(client *redis.Client) Option {
	return func(c *storeConfig) error {
		if client == nil {
			return fmt.Errorf("%w: nil redis client", ErrInvalidConfig)
		}
		c.redisClient = client
		return nil
	}
}

// WithRedisTTL bounds how long redis keeps idle sessions. Zero means keys
// never expire.
func WithRedisTTL(ttl time.Duration) Option {
	return func(c *storeConfig) error {
		if ttl < 0 {
			return fmt.Errorf("%w: negative redis TTL", ErrInvalidConfig)
		}
		c.redisTTL = ttl
		return nil
	}
}

// WithKeyPrefix overrides the redis key prefix. Defaults to "qf:session:".
func WithKeyPrefix(prefix string) Option {
	return func(c *storeConfig) error {
		c.keyPrefix = prefix
		return nil
	}
}

// WithDB supplies the database handle for DriverLibSQL.
func WithDB(db *sql.DB) Option {
	return func(c *storeConfig) error {
		if db == nil {
			return fmt.Errorf("%w: nil database handle", ErrInvalidConfig)
		}
		c.db = db
		return nil
	}
}

// WithSupabaseClient supplies the client for DriverSupabase.
func WithSupabaseClient(client *supabase.Client) Option {
	return func(c *storeConfig) error {
		if client == nil {
			return fmt.Errorf("%w: nil supabase client", ErrInvalidConfig)
		}
		c.supabaseClient = client
		return nil
	}
}

// WithTable overrides the table name for SQL-backed drivers. Defaults to
// "sessions".
func WithTable(table string) Option {
	return func(c *storeConfig) error {
		if table == "" {
			return fmt.Errorf("%w: empty table name", ErrInvalidConfig)
		}
		c.table = table
		return nil
	}
}

// WithReadCache wraps the store in an LRU read cache. Writes invalidate the
// cached entry so readers never see a stale status.
func WithReadCache(capacity int, ttl time.Duration) Option {
	return func(c *storeConfig) error {
		if capacity <= 0 {
			return fmt.Errorf("%w: cache capacity must be positive", ErrInvalidConfig)
		}
		c.cacheCapacity = capacity
		c.cacheTTL = ttl
		return nil
	}
}

// Open builds the Store for the given driver.
func Open(driver Driver, opts ...Option) (Store, error) {
	cfg := &storeConfig{
		logger:    zerolog.Nop(),
		keyPrefix: "qf:session:",
		table:     "sessions",
	}
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	var (
		store Store
		err   error
	)
	switch driver {
	case DriverMemory:
		store = newMemoryStore()
	case DriverRedis:
		store, err = newRedisStore(cfg)
	case DriverLibSQL:
		store, err = newLibSQLStore(cfg)
	case DriverSupabase:
		store, err = newSupabaseStore(cfg)
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidDriver, driver)
	}
	if err != nil {
		return nil, err
	}

	if cfg.cacheCapacity > 0 {
		store = newCachedStore(store, cfg.cacheCapacity, cfg.cacheTTL)
	}
	return store, nil
}

// checkTransition validates a requested status change against the stored
// status. Shared by every driver so they agree on conflict semantics.
func checkTransition(current, from, to Status) error {
	if current != from {
		return fmt.Errorf("%w: session is %s, expected %s", ErrStatusConflict, current, from)
	}
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	return nil
}
