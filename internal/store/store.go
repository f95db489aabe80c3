package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// Topic ingestion modes.
const (
	ModeBackfill = "backfill_ru"
	ModeRSS      = "rss"
)

// Queue item statuses.
const (
	StatusNew      = "new"
	StatusPosting  = "posting"
	StatusPosted   = "posted"
	StatusRejected = "rejected"
)

// SourceKindDiscovery marks seen-ledger entries that expire after the
// discovery TTL; every other kind blocks its identity forever.
const SourceKindDiscovery = "discovery"

// Queue item types. Discovery links come out of the backfill query
// cycle; RSS links come out of feed polling.
const (
	ItemTypeDiscovery = "discovery_link"
	ItemTypeRSS       = "rss_link"
)

// Topic is one publish destination: a forum topic inside a chat.
type Topic struct {
	ID              int64        `db:"id"`
	ChatID          int64        `db:"chat_id"`
	MessageThreadID int64        `db:"message_thread_id"`
	Name            string       `db:"name"`
	RegionKey       string       `db:"region_key"`
	Mode            string       `db:"mode"`
	Enabled         bool         `db:"enabled"`
	CreatedAt       time.Time    `db:"created_at"`
	LastPostAt      sql.NullTime `db:"last_post_at"`
}

// QueueItem is one discovered candidate queued for a specific topic.
// For discovery items the snippet carries the originating query string.
type QueueItem struct {
	ID          int64        `db:"id"`
	TopicID     int64        `db:"topic_id"`
	ItemType    string       `db:"item_type"`
	Source      string       `db:"source"`
	ExternalID  string       `db:"external_id"`
	Title       string       `db:"title"`
	Snippet     string       `db:"snippet"`
	URL         string       `db:"url"`
	Score       int          `db:"score"`
	Reasons     []string     `db:"-"`
	ReasonsJSON string       `db:"reasons_json"`
	Status      string       `db:"status"`
	CreatedAt   time.Time    `db:"created_at"`
	PostedAt    sql.NullTime `db:"posted_at"`
}

// Store is the persistence interface for topics, the content queue and
// the global seen ledger.
type Store interface {
	UpsertTopic(ctx context.Context, chatID, threadID int64, name string) (*Topic, error)
	GetTopic(ctx context.Context, chatID, threadID int64) (*Topic, error)
	ListTopics(ctx context.Context, chatID int64, enabledOnly bool) ([]Topic, error)
	SetRegionKey(ctx context.Context, topicID int64, regionKey string) error
	SetMode(ctx context.Context, topicID int64, mode string) error
	SetEnabled(ctx context.Context, topicID int64, enabled bool) error
	TouchLastPost(ctx context.Context, topicID int64, at time.Time) error
	DeleteTopic(ctx context.Context, topicID int64) error

	Enqueue(ctx context.Context, item *QueueItem) (bool, error)
	CountNew(ctx context.Context, topicID int64) (int, error)
	ClaimBestNew(ctx context.Context, topicID int64) (*QueueItem, error)
	PeekBestNew(ctx context.Context, topicID int64) (*QueueItem, error)
	MarkPosted(ctx context.Context, itemID int64, at time.Time) error
	MarkRejected(ctx context.Context, itemID int64) error
	ReleasePosting(ctx context.Context, itemID int64) (bool, error)
	SeenExists(ctx context.Context, externalID, sourceKind string) (bool, error)

	Close() error
}

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db      *sqlx.DB
	seenTTL time.Duration
	now     func() time.Time
}

// New opens a SQLite database, enables foreign keys and runs migrations.
// seenTTLDays is the re-discovery window for discovery-kind identities.
func New(path string, seenTTLDays int) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteStore{
		db:      db,
		seenTTL: time.Duration(seenTTLDays) * 24 * time.Hour,
		now:     func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) UpsertTopic(ctx context.Context, chatID, threadID int64, name string) (*Topic, error) {
	name = strings.TrimSpace(name)

	var existing Topic
	err := s.db.GetContext(ctx, &existing,
		"SELECT * FROM topics WHERE chat_id = ? AND message_thread_id = ?", chatID, threadID)
	if err == sql.ErrNoRows {
		finalName := name
		if finalName == "" {
			finalName = "unknown"
		}
		res, err := s.db.ExecContext(ctx, `
			INSERT INTO topics (chat_id, message_thread_id, name, created_at)
			VALUES (?, ?, ?, ?)
		`, chatID, threadID, finalName, s.now())
		if err != nil {
			return nil, fmt.Errorf("insert topic %d/%d: %w", chatID, threadID, err)
		}
		id, _ := res.LastInsertId()
		return s.getTopicByID(ctx, id)
	}
	if err != nil {
		return nil, fmt.Errorf("lookup topic %d/%d: %w", chatID, threadID, err)
	}

	// A later upsert never erases an already-known name with an empty
	// or placeholder one.
	if name != "" && name != "unknown" {
		if _, err := s.db.ExecContext(ctx,
			"UPDATE topics SET name = ? WHERE id = ?", name, existing.ID); err != nil {
			return nil, fmt.Errorf("update topic name %d: %w", existing.ID, err)
		}
	}
	return s.getTopicByID(ctx, existing.ID)
}

func (s *SQLiteStore) getTopicByID(ctx context.Context, id int64) (*Topic, error) {
	var t Topic
	if err := s.db.GetContext(ctx, &t, "SELECT * FROM topics WHERE id = ?", id); err != nil {
		return nil, fmt.Errorf("get topic %d: %w", id, err)
	}
	return &t, nil
}

func (s *SQLiteStore) GetTopic(ctx context.Context, chatID, threadID int64) (*Topic, error) {
	var t Topic
	err := s.db.GetContext(ctx, &t,
		"SELECT * FROM topics WHERE chat_id = ? AND message_thread_id = ?", chatID, threadID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get topic %d/%d: %w", chatID, threadID, err)
	}
	return &t, nil
}

func (s *SQLiteStore) ListTopics(ctx context.Context, chatID int64, enabledOnly bool) ([]Topic, error) {
	builder := sq.Select("*").From("topics").
		Where(sq.Eq{"chat_id": chatID}).
		OrderBy("id ASC")
	if enabledOnly {
		builder = builder.Where(sq.Eq{"enabled": 1})
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list topics query: %w", err)
	}

	var topics []Topic
	if err := s.db.SelectContext(ctx, &topics, query, args...); err != nil {
		return nil, fmt.Errorf("list topics %d: %w", chatID, err)
	}
	return topics, nil
}

func (s *SQLiteStore) SetRegionKey(ctx context.Context, topicID int64, regionKey string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE topics SET region_key = ? WHERE id = ?", regionKey, topicID)
	if err != nil {
		return fmt.Errorf("set region key %d: %w", topicID, err)
	}
	return nil
}

func (s *SQLiteStore) SetMode(ctx context.Context, topicID int64, mode string) error {
	if mode != ModeBackfill && mode != ModeRSS {
		return fmt.Errorf("unknown topic mode %q", mode)
	}
	_, err := s.db.ExecContext(ctx,
		"UPDATE topics SET mode = ? WHERE id = ?", mode, topicID)
	if err != nil {
		return fmt.Errorf("set mode %d: %w", topicID, err)
	}
	return nil
}

func (s *SQLiteStore) SetEnabled(ctx context.Context, topicID int64, enabled bool) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE topics SET enabled = ? WHERE id = ?", enabled, topicID)
	if err != nil {
		return fmt.Errorf("set enabled %d: %w", topicID, err)
	}
	return nil
}

func (s *SQLiteStore) TouchLastPost(ctx context.Context, topicID int64, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE topics SET last_post_at = ? WHERE id = ?", at.UTC(), topicID)
	if err != nil {
		return fmt.Errorf("touch last post %d: %w", topicID, err)
	}
	return nil
}

func (s *SQLiteStore) DeleteTopic(ctx context.Context, topicID int64) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM topics WHERE id = ?", topicID)
	if err != nil {
		return fmt.Errorf("delete topic %d: %w", topicID, err)
	}
	return nil
}

// Enqueue inserts a queue item under the dedup rules. It returns false
// when the item's identity is blocked by a live seen record or by the
// (topic, identity) uniqueness constraint. On success the queue insert
// and the seen-ledger upsert commit as one transaction; partial
// application is never observable.
func (s *SQLiteStore) Enqueue(ctx context.Context, item *QueueItem) (bool, error) {
	sourceKind := ""
	if item.ItemType == ItemTypeDiscovery || strings.HasPrefix(item.Source, "discovery:") {
		sourceKind = SourceKindDiscovery
	}

	blocked, err := s.SeenExists(ctx, item.ExternalID, sourceKind)
	if err != nil {
		return false, err
	}
	if blocked {
		return false, nil
	}

	reasonsJSON, _ := json.Marshal(item.Reasons)

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin enqueue tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO content_queue (
			topic_id, item_type, source, external_id, title, snippet, url,
			score, reasons_json, status, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, item.TopicID, item.ItemType, item.Source, item.ExternalID, item.Title,
		item.Snippet, item.URL, item.Score, string(reasonsJSON), StatusNew,
		item.CreatedAt.UTC())
	if err != nil {
		if isUniqueViolation(err) {
			return false, nil
		}
		return false, fmt.Errorf("insert queue item %s: %w", item.ExternalID, err)
	}

	now := s.now()
	var expiresAt any
	if sourceKind == SourceKindDiscovery {
		expiresAt = now.Add(s.seenTTL)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO seen (external_id, first_seen_at, source_kind, expires_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(external_id) DO UPDATE SET
			first_seen_at = excluded.first_seen_at,
			source_kind = excluded.source_kind,
			expires_at = excluded.expires_at
	`, item.ExternalID, now, sourceKind, expiresAt); err != nil {
		return false, fmt.Errorf("upsert seen %s: %w", item.ExternalID, err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit enqueue: %w", err)
	}

	item.ID, _ = res.LastInsertId()
	item.Status = StatusNew
	return true, nil
}

func (s *SQLiteStore) CountNew(ctx context.Context, topicID int64) (int, error) {
	var count int
	err := s.db.GetContext(ctx, &count,
		"SELECT COUNT(*) FROM content_queue WHERE topic_id = ? AND status = ?",
		topicID, StatusNew)
	if err != nil {
		return 0, fmt.Errorf("count new %d: %w", topicID, err)
	}
	return count, nil
}

func bestNewQuery(topicID int64) sq.SelectBuilder {
	return sq.Select("*").From("content_queue").
		Where(sq.Eq{"topic_id": topicID, "status": StatusNew}).
		OrderBy("score DESC", "created_at ASC", "id ASC").
		Limit(1)
}

// ClaimBestNew atomically selects the best new item (score descending,
// oldest first on ties) and flips it to posting, so no concurrent worker
// can claim the same row. Returns nil when no new item exists.
func (s *SQLiteStore) ClaimBestNew(ctx context.Context, topicID int64) (*QueueItem, error) {
	query, args, err := bestNewQuery(topicID).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build claim query: %w", err)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin claim tx: %w", err)
	}
	defer tx.Rollback()

	var item QueueItem
	if err := tx.GetContext(ctx, &item, query, args...); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("select best new %d: %w", topicID, err)
	}

	// The status guard makes the flip a no-op if another worker got
	// here first.
	res, err := tx.ExecContext(ctx,
		"UPDATE content_queue SET status = ? WHERE id = ? AND status = ?",
		StatusPosting, item.ID, StatusNew)
	if err != nil {
		return nil, fmt.Errorf("claim item %d: %w", item.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, nil
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit claim: %w", err)
	}

	item.Status = StatusPosting
	decodeReasons(&item)
	return &item, nil
}

// PeekBestNew returns the item ClaimBestNew would pick, without mutating
// anything. Used by the dry-run publish path.
func (s *SQLiteStore) PeekBestNew(ctx context.Context, topicID int64) (*QueueItem, error) {
	query, args, err := bestNewQuery(topicID).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build peek query: %w", err)
	}

	var item QueueItem
	if err := s.db.GetContext(ctx, &item, query, args...); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("peek best new %d: %w", topicID, err)
	}
	decodeReasons(&item)
	return &item, nil
}

func (s *SQLiteStore) MarkPosted(ctx context.Context, itemID int64, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE content_queue SET status = ?, posted_at = ? WHERE id = ?",
		StatusPosted, at.UTC(), itemID)
	if err != nil {
		return fmt.Errorf("mark posted %d: %w", itemID, err)
	}
	return nil
}

func (s *SQLiteStore) MarkRejected(ctx context.Context, itemID int64) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE content_queue SET status = ? WHERE id = ?", StatusRejected, itemID)
	if err != nil {
		return fmt.Errorf("mark rejected %d: %w", itemID, err)
	}
	return nil
}

// ReleasePosting reverts a claim (posting back to new) after a failed
// delivery. Reports whether a row actually reverted.
func (s *SQLiteStore) ReleasePosting(ctx context.Context, itemID int64) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		"UPDATE content_queue SET status = ? WHERE id = ? AND status = ?",
		StatusNew, itemID, StatusPosting)
	if err != nil {
		return false, fmt.Errorf("release posting %d: %w", itemID, err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// SeenExists implements the TTL predicate: a non-discovery identity
// blocks forever; a discovery identity blocks only while its expiry is
// in the future. A discovery row without an expiry is a legacy record
// and blocks.
func (s *SQLiteStore) SeenExists(ctx context.Context, externalID, sourceKind string) (bool, error) {
	var row struct {
		SourceKind string       `db:"source_kind"`
		ExpiresAt  sql.NullTime `db:"expires_at"`
	}
	err := s.db.GetContext(ctx, &row,
		"SELECT source_kind, expires_at FROM seen WHERE external_id = ?", externalID)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("seen lookup %s: %w", externalID, err)
	}

	if sourceKind == SourceKindDiscovery || row.SourceKind == SourceKindDiscovery {
		if !row.ExpiresAt.Valid {
			return true, nil
		}
		return s.now().Before(row.ExpiresAt.Time), nil
	}

	return true, nil
}

func decodeReasons(item *QueueItem) {
	if item.ReasonsJSON != "" {
		_ = json.Unmarshal([]byte(item.ReasonsJSON), &item.Reasons)
	}
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
