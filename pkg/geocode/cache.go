package geocode

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// Cache is a SQLite-backed geocode result cache keyed by a hash of the
// standardized address. Misses are cached too: re-asking a provider for
// an unresolvable address is the expensive path.
type Cache struct {
	db *sql.DB
}

const cacheMigration = `
CREATE TABLE IF NOT EXISTS geocode_cache (
	address_hash TEXT PRIMARY KEY,
	address      TEXT NOT NULL,
	latitude     REAL,
	longitude    REAL,
	source       TEXT,
	matched      INTEGER NOT NULL,
	cached_at    DATETIME NOT NULL DEFAULT (datetime('now'))
);`

// OpenCache opens (or creates) a cache database at the given path and
// configures WAL mode.
func OpenCache(path string) (*Cache, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: open cache")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "geocode: exec %s", pragma)
		}
	}
	if _, err := db.Exec(cacheMigration); err != nil {
		db.Close()
		return nil, eris.Wrap(err, "geocode: migrate cache")
	}
	return &Cache{db: db}, nil
}

// Close releases the underlying database.
func (c *Cache) Close() error {
	return c.db.Close()
}

func cacheKey(address string) string {
	sum := sha256.Sum256([]byte(address))
	return hex.EncodeToString(sum[:])
}

// Get returns the cached result for an address, if any.
func (c *Cache) Get(ctx context.Context, address string) (*Result, bool) {
	var r Result
	var matched int
	err := c.db.QueryRowContext(ctx,
		`SELECT latitude, longitude, source, matched FROM geocode_cache WHERE address_hash = ?`,
		cacheKey(address),
	).Scan(&r.Latitude, &r.Longitude, &r.Source, &matched)
	if err == sql.ErrNoRows {
		return nil, false
	}
	if err != nil {
		zap.L().Debug("geocode: cache read failed", zap.Error(err))
		return nil, false
	}
	r.Matched = matched != 0
	return &r, true
}

// Put stores a result for an address, replacing any previous entry.
func (c *Cache) Put(ctx context.Context, address string, r *Result) error {
	matched := 0
	if r.Matched {
		matched = 1
	}
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO geocode_cache (address_hash, address, latitude, longitude, source, matched, cached_at)
		VALUES (?, ?, ?, ?, ?, ?, datetime('now'))
		ON CONFLICT (address_hash) DO UPDATE SET
			latitude  = excluded.latitude,
			longitude = excluded.longitude,
			source    = excluded.source,
			matched   = excluded.matched,
			cached_at = excluded.cached_at`,
		cacheKey(address), address, r.Latitude, r.Longitude, r.Source, matched,
	)
	if err != nil {
		return eris.Wrap(err, "geocode: cache write")
	}
	return nil
}
