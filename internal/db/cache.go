package db

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/felo/mail-render/internal/pipeline"
	"github.com/felo/mail-render/internal/sanitize"
)

// RenderCache stores pipeline results keyed by message and options. Entries
// expire ttl after they are written.
type RenderCache struct {
	db  *DB
	ttl time.Duration
	now func() time.Time
}

// NewRenderCache creates a cache backed by db
func NewRenderCache(db *DB, ttl time.Duration) *RenderCache {
	return &RenderCache{db: db, ttl: ttl, now: time.Now}
}

// WithClock replaces the time source
func (c *RenderCache) WithClock(now func() time.Time) *RenderCache {
	c.now = now
	return c
}

// Source names the ID namespace a cached message belongs to
type Source string

const (
	// SourceUpload is a message stored in the messages table
	SourceUpload Source = "upload"
	// SourceAPI is a client-supplied payload rendered by the JSON API
	SourceAPI Source = "api"
)

// CacheKey identifies one rendering of a message. The source keeps upload
// and client IDs apart, digest identifies client-supplied content (empty for
// uploads, whose content never changes) and every option that changes the
// output is part of the key.
func CacheKey(source Source, messageID, digest string, opts sanitize.Options) string {
	theme := opts.Theme
	if theme == "" {
		theme = sanitize.ThemeLight
	}
	parts := []string{string(source), messageID, digest, string(theme), strconv.FormatBool(opts.LoadExternalImages)}
	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])
}

// Get returns the cached result for key. Expired entries are misses.
func (c *RenderCache) Get(key string) (pipeline.Result, bool, error) {
	var res pipeline.Result
	err := c.db.QueryRow(`
		SELECT processed_html, plain_text, has_blocked_images
		FROM render_cache WHERE cache_key = ? AND expires_at > ?
	`, key, c.now().Unix()).Scan(&res.ProcessedHTML, &res.PlainText, &res.HasBlockedImages)
	if errors.Is(err, sql.ErrNoRows) {
		return pipeline.Result{}, false, nil
	}
	if err != nil {
		return pipeline.Result{}, false, fmt.Errorf("failed to read render cache: %w", err)
	}
	return res, true, nil
}

// Put stores res under key, replacing any previous entry
func (c *RenderCache) Put(key, messageID string, res pipeline.Result) error {
	expires := c.now().Add(c.ttl).Unix()
	_, err := c.db.Exec(`
		INSERT INTO render_cache (cache_key, message_id, processed_html, plain_text, has_blocked_images, expires_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(cache_key) DO UPDATE SET
			processed_html = excluded.processed_html,
			plain_text = excluded.plain_text,
			has_blocked_images = excluded.has_blocked_images,
			expires_at = excluded.expires_at
	`, key, messageID, res.ProcessedHTML, res.PlainText, res.HasBlockedImages, expires)
	if err != nil {
		return fmt.Errorf("failed to write render cache: %w", err)
	}
	return nil
}

// Invalidate drops every cached rendering of a message
func (c *RenderCache) Invalidate(messageID string) error {
	if _, err := c.db.Exec("DELETE FROM render_cache WHERE message_id = ?", messageID); err != nil {
		return fmt.Errorf("failed to invalidate render cache: %w", err)
	}
	return nil
}

// PurgeExpired deletes expired entries and reports how many were removed
func (c *RenderCache) PurgeExpired() (int64, error) {
	res, err := c.db.Exec("DELETE FROM render_cache WHERE expires_at <= ?", c.now().Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to purge render cache: %w", err)
	}
	return res.RowsAffected()
}
