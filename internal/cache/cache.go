// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/jeranaias/phoenixlens/internal/phoenix"
)

// schema creates the cache tables. fetches records when a project was
// last fetched (freshness); spans holds the cached rows.
const schema = `
CREATE TABLE IF NOT EXISTS fetches (
	endpoint   TEXT NOT NULL,
	project    TEXT NOT NULL,
	since_ns   INTEGER NOT NULL,
	fetched_ns INTEGER NOT NULL,
	PRIMARY KEY (endpoint, project)
);

CREATE TABLE IF NOT EXISTS spans (
	endpoint   TEXT NOT NULL,
	project    TEXT NOT NULL,
	span_id    TEXT NOT NULL,
	trace_id   TEXT NOT NULL DEFAULT '',
	name       TEXT NOT NULL DEFAULT '',
	span_kind  TEXT NOT NULL DEFAULT '',
	start_ns   INTEGER NOT NULL,
	end_ns     INTEGER NOT NULL DEFAULT 0,
	status     TEXT NOT NULL DEFAULT '',
	attributes TEXT NOT NULL DEFAULT '{}',
	PRIMARY KEY (endpoint, project, span_id)
);

CREATE INDEX IF NOT EXISTS idx_spans_start ON spans(endpoint, project, start_ns);
`

// Cache is a SQLite-backed span cache. Safe for concurrent use through
// database/sql's connection pooling.
type Cache struct {
	db *sql.DB
}

// Open opens (creating if needed) the cache database at path.
func Open(path string) (*Cache, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening cache database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing cache schema: %w", err)
	}
	return &Cache{db: db}, nil
}

// Close releases the database handle.
func (c *Cache) Close() error {
	return c.db.Close()
}

// Get returns cached spans for the project that started at or after
// since. The cache hits only when the last fetch is younger than ttl
// and covered at least the requested window.
func (c *Cache) Get(ctx context.Context, endpoint, project string, since time.Time, ttl time.Duration) ([]phoenix.Span, bool, error) {
	var sinceNS, fetchedNS int64
	err := c.db.QueryRowContext(ctx,
		`SELECT since_ns, fetched_ns FROM fetches WHERE endpoint = ? AND project = ?`,
		endpoint, project).Scan(&sinceNS, &fetchedNS)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("querying fetch marker: %w", err)
	}

	if time.Since(time.Unix(0, fetchedNS)) > ttl {
		return nil, false, nil
	}
	// A cached fetch that started later than the requested window
	// would be missing older spans; treat it as a miss.
	if sinceNS > since.UnixNano() {
		return nil, false, nil
	}

	rows, err := c.db.QueryContext(ctx,
		`SELECT span_id, trace_id, name, span_kind, start_ns, end_ns, status, attributes
		 FROM spans
		 WHERE endpoint = ? AND project = ? AND start_ns >= ?
		 ORDER BY start_ns`,
		endpoint, project, since.UnixNano())
	if err != nil {
		return nil, false, fmt.Errorf("querying cached spans: %w", err)
	}
	defer rows.Close()

	var spans []phoenix.Span
	for rows.Next() {
		var (
			s            phoenix.Span
			startNS      int64
			endNS        int64
			attrsJSON    string
		)
		if err := rows.Scan(&s.Context.SpanID, &s.Context.TraceID, &s.Name, &s.SpanKind,
			&startNS, &endNS, &s.StatusCode, &attrsJSON); err != nil {
			return nil, false, fmt.Errorf("scanning cached span: %w", err)
		}
		s.StartTime = time.Unix(0, startNS).UTC()
		if endNS > 0 {
			s.EndTime = time.Unix(0, endNS).UTC()
		}
		if err := json.Unmarshal([]byte(attrsJSON), &s.Attributes); err != nil {
			// Corrupt attribute blobs degrade to an attribute-less span
			// rather than failing the whole read.
			s.Attributes = nil
		}
		spans = append(spans, s)
	}
	if err := rows.Err(); err != nil {
		return nil, false, fmt.Errorf("iterating cached spans: %w", err)
	}
	return spans, true, nil
}

// Put replaces the cached spans for a project and stamps the fetch
// marker. The swap is transactional so readers never see a half
// replaced window.
func (c *Cache) Put(ctx context.Context, endpoint, project string, since time.Time, spans []phoenix.Span) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning cache transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM spans WHERE endpoint = ? AND project = ?`, endpoint, project); err != nil {
		return fmt.Errorf("clearing stale spans: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR REPLACE INTO spans
		 (endpoint, project, span_id, trace_id, name, span_kind, start_ns, end_ns, status, attributes)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing span insert: %w", err)
	}
	defer stmt.Close()

	for i := range spans {
		s := &spans[i]
		attrs, err := json.Marshal(s.Attributes)
		if err != nil {
			attrs = []byte("{}")
		}
		var endNS int64
		if !s.EndTime.IsZero() {
			endNS = s.EndTime.UnixNano()
		}
		if _, err := stmt.ExecContext(ctx,
			endpoint, project, s.Context.SpanID, s.Context.TraceID, s.Name, s.SpanKind,
			s.StartTime.UnixNano(), endNS, s.StatusCode, string(attrs)); err != nil {
			return fmt.Errorf("caching span %s: %w", s.Context.SpanID, err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO fetches (endpoint, project, since_ns, fetched_ns) VALUES (?, ?, ?, ?)`,
		endpoint, project, since.UnixNano(), time.Now().UnixNano()); err != nil {
		return fmt.Errorf("stamping fetch marker: %w", err)
	}
	return tx.Commit()
}

// Purge drops every cached span and fetch marker.
func (c *Cache) Purge(ctx context.Context) error {
	if _, err := c.db.ExecContext(ctx, `DELETE FROM spans`); err != nil {
		return fmt.Errorf("purging spans: %w", err)
	}
	if _, err := c.db.ExecContext(ctx, `DELETE FROM fetches`); err != nil {
		return fmt.Errorf("purging fetch markers: %w", err)
	}
	return nil
}

// Stats describes cache contents for the status command.
type Stats struct {
	Spans    int `json:"spans"`
	Projects int `json:"projects"`
}

// Stats reports how much the cache currently holds.
func (c *Cache) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	if err := c.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM spans`).Scan(&st.Spans); err != nil {
		return Stats{}, fmt.Errorf("counting cached spans: %w", err)
	}
	if err := c.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM fetches`).Scan(&st.Projects); err != nil {
		return Stats{}, fmt.Errorf("counting cached projects: %w", err)
	}
	return st, nil
}
