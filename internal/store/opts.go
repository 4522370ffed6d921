package store

import "strings"

// Opts holds configuration for store backends.
type Opts struct {
	DSN       string // SQLite path or PostgreSQL DSN
	RedisAddr string // Redis host:port
	RedisDB   int
}

// Option configures a store backend.
type Option func(*Opts)

// WithSQLiteDSN sets a SQLite database file path.
func WithSQLiteDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// WithPostgresDSN sets a PostgreSQL connection string.
func WithPostgresDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// WithRedisAddr sets the Redis address for the Redis backend.
func WithRedisAddr(addr string) Option {
	return func(o *Opts) { o.RedisAddr = addr }
}

// WithRedisDB selects the Redis logical database.
func WithRedisDB(db int) Option {
	return func(o *Opts) { o.RedisDB = db }
}

// DetectDSNType classifies a DSN string as "postgres", "redis", or "sqlite".
// File paths default to SQLite.
func DetectDSNType(dsn string) string {
	switch {
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"), strings.Contains(dsn, "host="):
		return "postgres"
	case strings.HasPrefix(dsn, "redis://"):
		return "redis"
	default:
		return "sqlite"
	}
}
