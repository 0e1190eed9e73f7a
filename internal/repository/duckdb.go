// Mediafeed - Personalized Media Feed Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mediafeed

package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/duckdb/duckdb-go/v2" // DuckDB driver

	"github.com/tomtom215/mediafeed/internal/feed"
	"github.com/tomtom215/mediafeed/internal/logging"
	"github.com/tomtom215/mediafeed/internal/metrics"
)

const backendDuckDB = "duckdb"

var _ feed.ContentRepository = (*DuckDBRepository)(nil)

const createContentTable = `
CREATE TABLE IF NOT EXISTS content_items (
	id               VARCHAR PRIMARY KEY,
	channel_id       VARCHAR NOT NULL,
	uploaded_at      TIMESTAMP NOT NULL,
	view_count       BIGINT NOT NULL DEFAULT 0,
	duration_seconds INTEGER NOT NULL DEFAULT 0,
	title            VARCHAR,
	channel_name     VARCHAR,
	thumbnail_url    VARCHAR
)`

const createChannelIndex = `CREATE INDEX IF NOT EXISTS idx_content_items_channel ON content_items (channel_id)`

// DuckDBRepository serves items from a DuckDB table.
type DuckDBRepository struct {
	db     *sql.DB
	ownsDB bool
}

// OpenDuckDB opens (or creates) the database at path and ensures the
// schema exists. An empty path opens an in-memory database.
func OpenDuckDB(ctx context.Context, path string) (*DuckDBRepository, error) {
	if path == "" {
		path = ":memory:"
	}
	// Extension autoload can hang in locked down networks; nothing here needs one.
	connStr := path + "?autoinstall_known_extensions=false&autoload_known_extensions=false"

	db, err := sql.Open("duckdb", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open duckdb: %w", err)
	}

	r := &DuckDBRepository{db: db, ownsDB: true}
	if err := r.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	logging.Info().Str("path", path).Msg("DuckDB content repository ready")
	return r, nil
}

// NewDuckDBRepository wraps an existing connection. The schema is created
// if missing; the caller keeps ownership of db.
func NewDuckDBRepository(ctx context.Context, db *sql.DB) (*DuckDBRepository, error) {
	r := &DuckDBRepository{db: db}
	if err := r.migrate(ctx); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *DuckDBRepository) migrate(ctx context.Context) error {
	for _, stmt := range []string{createContentTable, createChannelIndex} {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create content schema: %w", err)
		}
	}
	return nil
}

// Upsert inserts items, replacing rows with the same id.
func (r *DuckDBRepository) Upsert(ctx context.Context, items ...feed.ContentItem) error {
	if len(items) == 0 {
		return nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin upsert: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO content_items
			(id, channel_id, uploaded_at, view_count, duration_seconds, title, channel_name, thumbnail_url)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare upsert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for i := range items {
		it := &items[i]
		if _, err := stmt.ExecContext(ctx, it.ID, it.ChannelID, it.UploadedAt.UTC(), it.ViewCount,
			it.DurationSeconds, it.Title, it.ChannelName, it.ThumbnailURL); err != nil {
			return fmt.Errorf("upsert item %s: %w", it.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit upsert: %w", err)
	}
	return nil
}

// FetchPage implements feed.ContentRepository.
func (r *DuckDBRepository) FetchPage(ctx context.Context, scope feed.ScopeKey, offset, limit int) (result feed.FetchResult, err error) {
	start := time.Now()
	defer func() { metrics.RecordRepositoryFetch(backendDuckDB, time.Since(start), err) }()

	if err := checkRange(offset, limit); err != nil {
		return feed.FetchResult{}, err
	}
	scope = scope.Normalize()

	where := ""
	var args []any
	if scope.ChannelID != "" {
		where = " WHERE channel_id = ?"
		args = append(args, scope.ChannelID)
	}

	var total int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM content_items"+where, args...).Scan(&total); err != nil {
		return feed.FetchResult{}, fmt.Errorf("count content items: %w", err)
	}

	//nolint:gosec // ORDER BY comes from a fixed set, values are bound
	query := `SELECT id, channel_id, uploaded_at, view_count, duration_seconds,
			COALESCE(title, ''), COALESCE(channel_name, ''), COALESCE(thumbnail_url, '')
		FROM content_items` + where + ` ORDER BY ` + orderClause(scope.Sort) + ` LIMIT ? OFFSET ?`

	rows, err := r.db.QueryContext(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return feed.FetchResult{}, fmt.Errorf("query content items: %w", err)
	}
	defer func() { _ = rows.Close() }()

	items := make([]feed.ContentItem, 0, limit)
	for rows.Next() {
		var it feed.ContentItem
		if err := rows.Scan(&it.ID, &it.ChannelID, &it.UploadedAt, &it.ViewCount, &it.DurationSeconds,
			&it.Title, &it.ChannelName, &it.ThumbnailURL); err != nil {
			return feed.FetchResult{}, fmt.Errorf("scan content item: %w", err)
		}
		it.UploadedAt = it.UploadedAt.UTC()
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return feed.FetchResult{}, fmt.Errorf("iterate content items: %w", err)
	}
	return feed.FetchResult{Items: items, TotalKnown: total}, nil
}

// Close closes the connection if the repository opened it.
func (r *DuckDBRepository) Close() error {
	if !r.ownsDB {
		return nil
	}
	return r.db.Close()
}
