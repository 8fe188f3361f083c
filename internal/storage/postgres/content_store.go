// Package postgres provides the Postgres-backed content store.
package postgres

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/curation-crawler/internal/crawler"
	"github.com/JakeFAU/curation-crawler/internal/retry"
)

const (
	// contentIDAttempts bounds how many random content IDs are drawn before giving up.
	contentIDAttempts = 5
	uniqueViolation   = "23505"
	sourceURLKey      = "contents_source_url_key"
	tagRetryBackoff   = 200 * time.Millisecond
)

// errTagRace marks a tag that was neither inserted nor visible yet.
var errTagRace = errors.New("tag upsert raced")

// ContentStoreConfig controls the Postgres connection pool.
type ContentStoreConfig struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

// querier is the statement surface shared by pools and transactions.
type querier interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	QueryRow(context.Context, string, ...any) pgx.Row
}

type pool interface {
	querier
	Begin(context.Context) (pgx.Tx, error)
	Close()
}

// ContentStore persists content packages and their reference data.
type ContentStore struct {
	pool      pool
	ids       crawler.IDGenerator
	contentID func() (string, error)
	tagRetry  retry.Policy
}

// Option customizes a ContentStore.
type Option func(*ContentStore)

// WithClock routes retry waits through clock.
func WithClock(clock crawler.Clock) Option {
	return func(s *ContentStore) {
		if clock != nil {
			s.tagRetry.Sleep = clock.Sleep
		}
	}
}

// NewContentStore connects a pool using cfg.
func NewContentStore(ctx context.Context, cfg ContentStoreConfig, ids crawler.IDGenerator, opts ...Option) (*ContentStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database.url is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	p, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return NewContentStoreWithPool(p, ids, opts...)
}

// NewContentStoreWithPool constructs a store from an existing pool (primarily for testing).
func NewContentStoreWithPool(p pool, ids crawler.IDGenerator, opts ...Option) (*ContentStore, error) {
	if p == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if ids == nil {
		return nil, fmt.Errorf("id generator is required")
	}
	s := &ContentStore{
		pool:      p,
		ids:       ids,
		contentID: randomContentID,
		tagRetry: retry.Policy{
			MaxAttempts: 3,
			Backoff:     retry.Constant(tagRetryBackoff),
			Retryable:   func(err error) bool { return errors.Is(err, errTagRace) },
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Close releases the underlying pool resources.
func (s *ContentStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// Ping verifies connectivity.
func (s *ContentStore) Ping(ctx context.Context) error {
	var one int
	if err := s.pool.QueryRow(ctx, "SELECT 1").Scan(&one); err != nil {
		return fmt.Errorf("ping postgres: %w", err)
	}
	return nil
}

// randomContentID draws a human-readable ID such as content-00421337.
func randomContentID() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(100_000_000))
	if err != nil {
		return "", fmt.Errorf("draw content id: %w", err)
	}
	return fmt.Sprintf("content-%08d", n.Int64()), nil
}

// WithTransaction runs fn inside a transaction, rolling back on error and committing otherwise.
func (s *ContentStore) WithTransaction(ctx context.Context, fn func(pgx.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			return fmt.Errorf("%w (rollback failed: %v)", err, rbErr)
		}
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// CheckDuplicate reports whether a content row already uses sourceURL.
func (s *ContentStore) CheckDuplicate(ctx context.Context, sourceURL string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM contents WHERE source_url = $1)`, sourceURL).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check duplicate content: %w", err)
	}
	return exists, nil
}

// ExistingToolSlugs returns which of slugs already have an ai_tools row.
func (s *ContentStore) ExistingToolSlugs(ctx context.Context, slugs []string) (map[string]bool, error) {
	existing := make(map[string]bool, len(slugs))
	if len(slugs) == 0 {
		return existing, nil
	}
	rows, err := s.pool.Query(ctx, `SELECT slug FROM ai_tools WHERE slug = ANY($1)`, slugs)
	if err != nil {
		return nil, fmt.Errorf("query tool slugs: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var slug string
		if err := rows.Scan(&slug); err != nil {
			return nil, fmt.Errorf("scan tool slug: %w", err)
		}
		existing[slug] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tool slugs: %w", err)
	}
	return existing, nil
}

// SavePackage writes the content row and every relation in one transaction and returns the
// allocated content ID.
func (s *ContentStore) SavePackage(ctx context.Context, rec crawler.ContentRecord) (string, error) {
	var contentID string
	err := s.WithTransaction(ctx, func(tx pgx.Tx) error {
		id, err := s.allocateContentID(ctx, tx)
		if err != nil {
			return err
		}
		if err := insertContent(ctx, tx, id, rec); err != nil {
			return err
		}
		for _, categoryID := range rec.Categories {
			if _, err := s.UpsertCategory(ctx, tx, categoryID); err != nil {
				return err
			}
			if err := link(ctx, tx, "content_categories", "category_id", id, categoryID); err != nil {
				return err
			}
		}
		for _, slug := range rec.Tools {
			toolID, err := s.UpsertTool(ctx, tx, slug, rec.ToolLogos[slug])
			if err != nil {
				return err
			}
			if err := link(ctx, tx, "content_ai_tools", "ai_tool_id", id, toolID); err != nil {
				return err
			}
		}
		// Tags are upserted one at a time so two names in one package never race each other.
		for _, name := range rec.Tags {
			tagID, err := s.UpsertTag(ctx, tx, name)
			if err != nil {
				return err
			}
			if err := link(ctx, tx, "content_tags", "tag_id", id, tagID); err != nil {
				return err
			}
		}
		if err := insertEstimatedTime(ctx, tx, id, rec.EstimatedTime); err != nil {
			return err
		}
		if err := insertPreviews(ctx, tx, id, rec.ResultPreviews); err != nil {
			return err
		}
		contentID = id
		return nil
	})
	if err != nil {
		return "", err
	}
	return contentID, nil
}

// allocateContentID draws random IDs until one is unused, up to contentIDAttempts.
func (s *ContentStore) allocateContentID(ctx context.Context, q querier) (string, error) {
	for attempt := 0; attempt < contentIDAttempts; attempt++ {
		id, err := s.contentID()
		if err != nil {
			return "", err
		}
		var taken bool
		if err := q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM contents WHERE id = $1)`, id).Scan(&taken); err != nil {
			return "", fmt.Errorf("check content id: %w", err)
		}
		if !taken {
			return id, nil
		}
	}
	return "", crawler.NewError(crawler.ErrDuplicateEntity, "allocate content id",
		fmt.Errorf("no free id after %d attempts", contentIDAttempts))
}

func insertContent(ctx context.Context, q querier, id string, rec crawler.ContentRecord) error {
	var thumbnail any
	if rec.ThumbnailRef != "" {
		thumbnail = rec.ThumbnailRef
	}
	_, err := q.Exec(ctx, `
INSERT INTO contents (
	id,
	title,
	description,
	author,
	source_url,
	published_at,
	language,
	thumbnail_url,
	difficulty,
	view_count,
	scrap_count,
	created_at,
	updated_at
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9,0,0,$10,$10
)`,
		id,
		rec.Title,
		rec.Description,
		rec.Author,
		rec.SourceURL,
		rec.PublishedAt,
		string(rec.Language),
		thumbnail,
		string(rec.Difficulty),
		rec.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation && pgErr.ConstraintName == sourceURLKey {
			return crawler.NewError(crawler.ErrDuplicateEntity, "insert content", err)
		}
		return fmt.Errorf("insert content: %w", err)
	}
	return nil
}

// UpsertCategory ensures the category row exists. Its ID is the canonical vocabulary key.
func (s *ContentStore) UpsertCategory(ctx context.Context, q querier, categoryID string) (string, error) {
	category, ok := crawler.CategoryByID(categoryID)
	if !ok {
		return "", crawler.NewError(crawler.ErrValidationFailed, "upsert category",
			fmt.Errorf("unknown category %q", categoryID))
	}
	_, err := q.Exec(ctx,
		`INSERT INTO categories (id, name, slug) VALUES ($1, $2, $3) ON CONFLICT (id) DO NOTHING`,
		category.ID, category.Name, category.Slug)
	if err != nil {
		return "", fmt.Errorf("upsert category %s: %w", category.ID, err)
	}
	return category.ID, nil
}

// UpsertTool finds or creates a tool by slug. A logo URL only fills an empty logo.
func (s *ContentStore) UpsertTool(ctx context.Context, q querier, slug, logoURL string) (string, error) {
	newID, err := s.ids.NewID()
	if err != nil {
		return "", fmt.Errorf("generate tool id: %w", err)
	}
	var logo any
	if logoURL != "" {
		logo = logoURL
	}
	var id string
	err = q.QueryRow(ctx, `
INSERT INTO ai_tools (id, name, slug, logo_url) VALUES ($1, $2, $3, $4)
ON CONFLICT (slug) DO UPDATE SET logo_url = COALESCE(ai_tools.logo_url, EXCLUDED.logo_url)
RETURNING id`,
		newID, crawler.ToolDisplayName(slug), slug, logo).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("upsert tool %s: %w", slug, err)
	}
	return id, nil
}

// UpsertTag finds or creates a tag by cleaned name, re-reading the winning row when a
// concurrent writer inserted it first.
func (s *ContentStore) UpsertTag(ctx context.Context, q querier, rawName string) (string, error) {
	name := crawler.CleanTagName(rawName)
	if name == "" {
		return "", crawler.NewError(crawler.ErrValidationFailed, "upsert tag", errors.New("empty tag name"))
	}
	var id string
	err := s.tagRetry.Do(ctx, func(ctx context.Context) error {
		newID, err := s.ids.NewID()
		if err != nil {
			return fmt.Errorf("generate tag id: %w", err)
		}
		err = q.QueryRow(ctx,
			`INSERT INTO tags (id, name, slug) VALUES ($1, $2, $3) ON CONFLICT (name) DO NOTHING RETURNING id`,
			newID, name, crawler.TagSlug(name)).Scan(&id)
		if err == nil {
			return nil
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("insert tag %s: %w", name, err)
		}
		err = q.QueryRow(ctx, `SELECT id FROM tags WHERE name = $1`, name).Scan(&id)
		if errors.Is(err, pgx.ErrNoRows) {
			return errTagRace
		}
		if err != nil {
			return fmt.Errorf("select tag %s: %w", name, err)
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("upsert tag %s: %w", name, err)
	}
	return id, nil
}

var linkStatements = map[string]string{
	"content_categories": `INSERT INTO content_categories (content_id, category_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
	"content_ai_tools":   `INSERT INTO content_ai_tools (content_id, ai_tool_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
	"content_tags":       `INSERT INTO content_tags (content_id, tag_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
}

func link(ctx context.Context, q querier, table, column, contentID, refID string) error {
	stmt, ok := linkStatements[table]
	if !ok {
		return fmt.Errorf("unknown link table %q", table)
	}
	if _, err := q.Exec(ctx, stmt, contentID, refID); err != nil {
		return fmt.Errorf("link %s %s: %w", column, refID, err)
	}
	return nil
}

func insertEstimatedTime(ctx context.Context, q querier, contentID string, et *crawler.EstimatedTime) error {
	if et == nil {
		return nil
	}
	_, err := q.Exec(ctx,
		`INSERT INTO estimated_times (content_id, type, value) VALUES ($1, $2, $3)`,
		contentID, string(et.Type), et.Value)
	if err != nil {
		return fmt.Errorf("insert estimated time: %w", err)
	}
	return nil
}

func insertPreviews(ctx context.Context, q querier, contentID string, previews []crawler.ResultPreview) error {
	for _, p := range previews {
		_, err := q.Exec(ctx,
			`INSERT INTO result_previews (content_id, "order", type, description) VALUES ($1, $2, $3, $4)`,
			contentID, p.Order, string(p.Type), p.Description)
		if err != nil {
			return fmt.Errorf("insert result preview %d: %w", p.Order, err)
		}
	}
	return nil
}
