package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Document is one persisted cache entry: (key, payload, created_at) plus
// the TTL it was written with so a stale read can be classified as a miss
// without a second lookup.
type Document struct {
	Key       string          `json:"key"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
	TTL       time.Duration   `json:"ttl_ns"`
}

func (d Document) expired() bool {
	if d.TTL <= 0 {
		return false
	}
	return time.Since(d.CreatedAt) > d.TTL
}

var keySanitizer = regexp.MustCompile(`[^a-zA-Z0-9_.:-]`)

// PersistentStore is the process-external key/value tier, a hybrid vault:
// a pgxpool table when a pool is configured, and/or a directory of
// one-file-per-key JSON documents when it is not (or as a secondary write
// alongside the database). Failures of this tier degrade to "miss", never
// fatal: every method swallows backend errors into a zero value, with a DB
// miss falling through to the file vault.
type PersistentStore struct {
	pool    *pgxpool.Pool
	fileDir string
	degraded bool
}

// NewPersistentStore builds a hybrid store. Either argument may be zero; a
// nil pool with an empty dir defaults the dir to .cache/aoc/artifacts.
func NewPersistentStore(pool *pgxpool.Pool, dir string) *PersistentStore {
	if pool == nil && dir == "" {
		dir = ".cache/aoc/artifacts"
	}
	if dir != "" {
		_ = os.MkdirAll(dir, 0o755)
	}
	return &PersistentStore{pool: pool, fileDir: dir}
}

// Degraded reports whether the persistent tier is currently unable to
// reach its backing store, exposed as an observability marker.
func (p *PersistentStore) Degraded() bool {
	return p.degraded
}

func (p *PersistentStore) path(key string) string {
	safe := keySanitizer.ReplaceAllString(key, "_")
	return filepath.Join(p.fileDir, safe+".json")
}

// Get returns the stored document, or ok=false on miss, expiry, or backend
// failure (all three degrade identically).
func (p *PersistentStore) Get(ctx context.Context, key string) (Document, bool) {
	if p.pool != nil {
		doc, ok, err := p.getFromDB(ctx, key)
		if err != nil {
			p.degraded = true
		} else {
			p.degraded = false
			if ok {
				if doc.expired() {
					return Document{}, false
				}
				return doc, true
			}
		}
	}
	if p.fileDir == "" {
		return Document{}, false
	}
	doc, ok := p.getFromFile(key)
	if !ok || doc.expired() {
		return Document{}, false
	}
	return doc, true
}

// Put idempotently replaces a key's document in whichever tiers are
// configured, writing to both the DB and the file vault when both are
// present.
func (p *PersistentStore) Put(ctx context.Context, key string, payload json.RawMessage, ttl time.Duration) error {
	doc := Document{Key: key, Payload: payload, CreatedAt: time.Now(), TTL: ttl}

	var dbErr, fileErr error
	if p.pool != nil {
		dbErr = p.putToDB(ctx, doc)
		p.degraded = dbErr != nil
	}
	if p.fileDir != "" {
		fileErr = p.putToFile(doc)
	}
	if dbErr != nil && fileErr != nil {
		return fmt.Errorf("persistent store: both tiers failed: db=%v file=%v", dbErr, fileErr)
	}
	return nil
}

// Invalidate explicitly deletes a key from every configured tier.
func (p *PersistentStore) Invalidate(ctx context.Context, key string) {
	if p.pool != nil {
		_, _ = p.pool.Exec(ctx, `DELETE FROM cache_entries WHERE key = $1`, key)
	}
	if p.fileDir != "" {
		_ = os.Remove(p.path(key))
	}
}

func (p *PersistentStore) getFromDB(ctx context.Context, key string) (Document, bool, error) {
	row := p.pool.QueryRow(ctx, `
		SELECT key, payload, created_at, ttl_ns FROM cache_entries WHERE key = $1
	`, key)

	var doc Document
	var ttlNS int64
	if err := row.Scan(&doc.Key, &doc.Payload, &doc.CreatedAt, &ttlNS); err != nil {
		if strings.Contains(err.Error(), "no rows") {
			return Document{}, false, nil
		}
		return Document{}, false, fmt.Errorf("cache: db query failed: %w", err)
	}
	doc.TTL = time.Duration(ttlNS)
	return doc, true, nil
}

func (p *PersistentStore) putToDB(ctx context.Context, doc Document) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO cache_entries (key, payload, created_at, ttl_ns)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (key) DO UPDATE SET payload = $2, created_at = $3, ttl_ns = $4
	`, doc.Key, doc.Payload, doc.CreatedAt, int64(doc.TTL))
	if err != nil {
		return fmt.Errorf("cache: db write failed: %w", err)
	}
	return nil
}

func (p *PersistentStore) getFromFile(key string) (Document, bool) {
	raw, err := os.ReadFile(p.path(key))
	if err != nil {
		return Document{}, false
	}
	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return Document{}, false
	}
	return doc, true
}

func (p *PersistentStore) putToFile(doc Document) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("cache: marshal for file write failed: %w", err)
	}
	if err := os.WriteFile(p.path(doc.Key), raw, 0o644); err != nil {
		return fmt.Errorf("cache: file write failed: %w", err)
	}
	return nil
}
