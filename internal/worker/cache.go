package worker

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/vmihailenco/msgpack/v5"
	_ "modernc.org/sqlite"
)

// ResultCache persists worker diagnostics keyed by a hash of the validated
// content, so re-validating unchanged content skips the worker round-trip.
// It is an optional collaborator: a nil *ResultCache is a valid "no cache".
type ResultCache struct {
	db     *sql.DB
	mu     sync.RWMutex
	dbPath string
}

// NewResultCache opens (or creates) the cache database at dbPath
func NewResultCache(dbPath string) (*ResultCache, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	// _txlock=immediate acquires locks early and avoids SQLITE_BUSY
	db, err := sql.Open("sqlite", dbPath+"?_txlock=immediate")
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to set pragma %s: %w", pragma, err)
		}
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS results (
			content_hash TEXT PRIMARY KEY,
			value BLOB NOT NULL
		);
	`)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize cache table: %w", err)
	}

	return &ResultCache{db: db, dbPath: dbPath}, nil
}

// Get returns the cached diagnostics for content, if any
func (c *ResultCache) Get(content string) ([]Diagnostic, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var data []byte
	err := c.db.QueryRow("SELECT value FROM results WHERE content_hash = ?", hashContent(content)).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to query cache: %w", err)
	}

	var diagnostics []Diagnostic
	if err := msgpack.Unmarshal(data, &diagnostics); err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal cached diagnostics: %w", err)
	}
	return diagnostics, true, nil
}

// Put stores the diagnostics for content, replacing any previous entry
func (c *ResultCache) Put(content string, diagnostics []Diagnostic) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, err := msgpack.Marshal(diagnostics)
	if err != nil {
		return fmt.Errorf("failed to marshal diagnostics: %w", err)
	}

	_, err = c.db.Exec(
		"INSERT INTO results (content_hash, value) VALUES (?, ?) ON CONFLICT(content_hash) DO UPDATE SET value = excluded.value",
		hashContent(content), data)
	if err != nil {
		return fmt.Errorf("failed to store diagnostics: %w", err)
	}
	return nil
}

// Clear removes all cached results
func (c *ResultCache) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, err := c.db.Exec("DELETE FROM results")
	return err
}

// Close closes the cache database
func (c *ResultCache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, _ = c.db.Exec("PRAGMA optimize")
	_, _ = c.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	return c.db.Close()
}

func hashContent(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}
