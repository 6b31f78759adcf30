// Package cache implements a content-hash-keyed store of compiled
// chunks, backed by a local SQLite file. The compiler's bytecode
// determinism property (identical source always compiles to
// byte-identical output) is what makes this safe: a cache hit on a
// source's hash can never serve stale bytecode for that source.
package cache

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/dust-lang/dust/internal/bytecode"
	"github.com/dust-lang/dust/internal/container"
)

// Cache wraps a SQLite-backed table mapping source hash -> encoded
// bytecode container.
type Cache struct {
	db *sql.DB
}

// Open creates (if necessary) and opens the cache database at path.
// An empty path opens an in-memory cache, useful for tests and for
// `dust run` invocations that don't want to touch the filesystem.
func Open(path string) (*Cache, error) {
	dsn := path
	if dsn == "" {
		dsn = ":memory:"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("cache: opening %s: %w", path, err)
	}
	const schema = `
		CREATE TABLE IF NOT EXISTS chunks (
			hash TEXT PRIMARY KEY,
			version INTEGER NOT NULL,
			data BLOB NOT NULL
		);
	`
	if _, err := db.ExecContext(context.Background(), schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("cache: creating schema: %w", err)
	}
	return &Cache{db: db}, nil
}

func (c *Cache) Close() error { return c.db.Close() }

// Key hashes src to the cache key this package uses. Exposed so a
// caller can check for a hit before doing any compilation work.
func Key(src string) string {
	sum := sha256.Sum256([]byte(src))
	return hex.EncodeToString(sum[:])
}

// Lookup returns the cached top-level chunk for src's hash, or
// (nil, false) on a miss.
func (c *Cache) Lookup(ctx context.Context, src string) (*bytecode.Chunk, bool, error) {
	key := Key(src)
	var version int
	var data []byte
	err := c.db.QueryRowContext(ctx, `SELECT version, data FROM chunks WHERE hash = ?`, key).Scan(&version, &data)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache: querying %s: %w", key, err)
	}
	if version != container.FormatVersion {
		// A stale cache entry from an older format version is treated
		// as a miss rather than an error — the caller just recompiles.
		return nil, false, nil
	}
	chunks, err := container.Decode(data)
	if err != nil {
		return nil, false, fmt.Errorf("cache: decoding %s: %w", key, err)
	}
	if len(chunks) == 0 {
		return nil, false, nil
	}
	return chunks[0], true, nil
}

// Store encodes chunk and records it under src's hash, replacing any
// existing entry for that hash (identical source always compiles to
// an identical chunk, so an overwrite is always a no-op in content,
// never a correctness concern).
func (c *Cache) Store(ctx context.Context, src string, chunk *bytecode.Chunk) error {
	data, err := container.Encode([]*bytecode.Chunk{chunk})
	if err != nil {
		return fmt.Errorf("cache: encoding: %w", err)
	}
	key := Key(src)
	_, err = c.db.ExecContext(ctx,
		`INSERT INTO chunks (hash, version, data) VALUES (?, ?, ?)
		 ON CONFLICT(hash) DO UPDATE SET version = excluded.version, data = excluded.data`,
		key, container.FormatVersion, data)
	if err != nil {
		return fmt.Errorf("cache: storing %s: %w", key, err)
	}
	return nil
}
