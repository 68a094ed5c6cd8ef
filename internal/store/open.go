package store

import (
	"log/slog"
	"strings"
)

// DSN types returned by DetectDSNType.
const (
	DSNTypeMemory   = "memory"
	DSNTypeSQLite   = "sqlite"
	DSNTypePostgres = "postgres"
)

// DetectDSNType classifies a DSN: empty means in-memory, a postgres URL or
// key/value connection string means PostgreSQL, anything else is a SQLite path.
func DetectDSNType(dsn string) string {
	dsn = strings.TrimSpace(dsn)
	switch {
	case dsn == "" || dsn == ":memory:":
		return DSNTypeMemory
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		return DSNTypePostgres
	case strings.Contains(dsn, "host=") && strings.Contains(dsn, "dbname="):
		return DSNTypePostgres
	default:
		return DSNTypeSQLite
	}
}

// Open returns the backend matching dsn.
func Open(dsn string) (Store, error) {
	switch DetectDSNType(dsn) {
	case DSNTypePostgres:
		slog.Debug("store.Open: using PostgreSQL store")
		return NewPostgresStore(WithPostgresDSN(dsn))
	case DSNTypeSQLite:
		slog.Debug("store.Open: using SQLite store", "path", dsn)
		return NewSQLiteStore(WithSQLiteDSN(dsn))
	default:
		slog.Debug("store.Open: using in-memory store")
		return NewInMemoryStore(), nil
	}
}
