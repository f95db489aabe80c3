package publish

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/geotherm/geopress/internal/store"
	"github.com/geotherm/geopress/pkg/notify"
)

// captureNotifier records sent messages and can be told to fail.
type captureNotifier struct {
	sent []notify.Message
	fail bool
}

func (c *captureNotifier) Send(ctx context.Context, msg notify.Message) error {
	if c.fail {
		return errors.New("send failed")
	}
	c.sent = append(c.sent, msg)
	return nil
}

func newTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	s, err := store.New(filepath.Join(t.TempDir(), "test.db"), 30)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func enqueueItem(t *testing.T, s *store.SQLiteStore, topicID int64, externalID string, score int) {
	t.Helper()
	ok, err := s.Enqueue(context.Background(), &store.QueueItem{
		TopicID:    topicID,
		ItemType:   store.ItemTypeDiscovery,
		Source:     "discovery:cyberleninka",
		ExternalID: externalID,
		Title:      "title " + externalID,
		Snippet:    `"Нарзан" AND минерализация`,
		URL:        "https://example.org/" + externalID,
		Score:      score,
		Reasons:    []string{"review"},
		CreatedAt:  time.Now().UTC(),
	})
	if err != nil || !ok {
		t.Fatalf("enqueue %s: ok=%v err=%v", externalID, ok, err)
	}
}

func TestCyclePostsAndTouchesTopic(t *testing.T) {
	t.Parallel()
	db := newTestStore(t)
	ctx := context.Background()

	topic, err := db.UpsertTopic(ctx, 100, 1, "КМВ")
	if err != nil {
		t.Fatalf("upsert topic: %v", err)
	}
	enqueueItem(t, db, topic.ID, "ext-1", 7)

	notifier := &captureNotifier{}
	svc := NewService(db, notifier, false, zerolog.Nop())

	res, err := svc.Cycle(ctx, 100)
	if err != nil {
		t.Fatalf("cycle: %v", err)
	}
	if res.Posted != 1 {
		t.Fatalf("posted = %d", res.Posted)
	}
	if len(notifier.sent) != 1 {
		t.Fatalf("sent = %d messages", len(notifier.sent))
	}

	msg := notifier.sent[0]
	if msg.ChatID != 100 || msg.MessageThreadID != 1 {
		t.Fatalf("message routed to %d/%d", msg.ChatID, msg.MessageThreadID)
	}
	if !strings.Contains(msg.Text, "Score: 7") {
		t.Fatalf("message text: %q", msg.Text)
	}

	got, err := db.GetTopic(ctx, 100, 1)
	if err != nil {
		t.Fatalf("get topic: %v", err)
	}
	if !got.LastPostAt.Valid {
		t.Fatal("last_post_at not touched")
	}

	count, err := db.CountNew(ctx, topic.ID)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 0 {
		t.Fatalf("count = %d after posting", count)
	}
}

func TestCycleFairnessPrefersNeverPosted(t *testing.T) {
	t.Parallel()
	db := newTestStore(t)
	ctx := context.Background()

	served, err := db.UpsertTopic(ctx, 100, 1, "КМВ")
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	starved, err := db.UpsertTopic(ctx, 100, 2, "Алтай")
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}

	enqueueItem(t, db, served.ID, "a", 9)
	enqueueItem(t, db, starved.ID, "b", 1)

	if err := db.TouchLastPost(ctx, served.ID, time.Now().UTC()); err != nil {
		t.Fatalf("touch: %v", err)
	}

	notifier := &captureNotifier{}
	svc := NewService(db, notifier, false, zerolog.Nop())

	if _, err := svc.Cycle(ctx, 100); err != nil {
		t.Fatalf("cycle: %v", err)
	}
	if len(notifier.sent) != 1 || notifier.sent[0].MessageThreadID != 2 {
		t.Fatalf("expected never-posted topic to win, got %+v", notifier.sent)
	}
}

func TestCycleFairnessOldestLastPostWins(t *testing.T) {
	t.Parallel()
	db := newTestStore(t)
	ctx := context.Background()

	recent, err := db.UpsertTopic(ctx, 100, 1, "КМВ")
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	stale, err := db.UpsertTopic(ctx, 100, 2, "Алтай")
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}

	enqueueItem(t, db, recent.ID, "a", 9)
	enqueueItem(t, db, stale.ID, "b", 1)

	now := time.Now().UTC()
	if err := db.TouchLastPost(ctx, recent.ID, now); err != nil {
		t.Fatalf("touch: %v", err)
	}
	if err := db.TouchLastPost(ctx, stale.ID, now.Add(-48*time.Hour)); err != nil {
		t.Fatalf("touch: %v", err)
	}

	notifier := &captureNotifier{}
	svc := NewService(db, notifier, false, zerolog.Nop())

	if _, err := svc.Cycle(ctx, 100); err != nil {
		t.Fatalf("cycle: %v", err)
	}
	if len(notifier.sent) != 1 || notifier.sent[0].MessageThreadID != 2 {
		t.Fatalf("expected longest-unserved topic to win, got %+v", notifier.sent)
	}
}

func TestCycleConsidersOnlyTopicsWithBacklog(t *testing.T) {
	t.Parallel()
	db := newTestStore(t)
	ctx := context.Background()

	if _, err := db.UpsertTopic(ctx, 100, 1, "КМВ"); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	full, err := db.UpsertTopic(ctx, 100, 2, "Алтай")
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	enqueueItem(t, db, full.ID, "only", 3)

	notifier := &captureNotifier{}
	svc := NewService(db, notifier, false, zerolog.Nop())

	res, err := svc.Cycle(ctx, 100)
	if err != nil {
		t.Fatalf("cycle: %v", err)
	}
	// The empty topic is filtered out before fairness, not skipped after.
	if res.TopicsConsidered != 1 {
		t.Fatalf("considered = %d, want 1", res.TopicsConsidered)
	}
	if res.Posted != 1 || res.Skipped != 0 {
		t.Fatalf("res = %+v", res)
	}
	if notifier.sent[0].MessageThreadID != 2 {
		t.Fatalf("posted to thread %d", notifier.sent[0].MessageThreadID)
	}
}

func TestCycleAllQueuesEmpty(t *testing.T) {
	t.Parallel()
	db := newTestStore(t)
	ctx := context.Background()

	if _, err := db.UpsertTopic(ctx, 100, 1, "КМВ"); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	notifier := &captureNotifier{}
	svc := NewService(db, notifier, false, zerolog.Nop())

	res, err := svc.Cycle(ctx, 100)
	if err != nil {
		t.Fatalf("cycle: %v", err)
	}
	if res.TopicsConsidered != 0 || res.Posted != 0 {
		t.Fatalf("res = %+v", res)
	}
	if len(notifier.sent) != 0 {
		t.Fatal("sent without backlog")
	}
}

func TestCycleDryRunMutatesNothing(t *testing.T) {
	t.Parallel()
	db := newTestStore(t)
	ctx := context.Background()

	topic, err := db.UpsertTopic(ctx, 100, 1, "КМВ")
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	enqueueItem(t, db, topic.ID, "ext-1", 7)

	notifier := &captureNotifier{}
	svc := NewService(db, notifier, true, zerolog.Nop())

	res, err := svc.Cycle(ctx, 100)
	if err != nil {
		t.Fatalf("cycle: %v", err)
	}
	if res.Posted != 1 {
		t.Fatalf("dry-run posted = %d", res.Posted)
	}
	if len(notifier.sent) != 0 {
		t.Fatal("dry-run sent a message")
	}

	count, err := db.CountNew(ctx, topic.ID)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Fatalf("dry-run consumed the queue: count = %d", count)
	}

	got, err := db.GetTopic(ctx, 100, 1)
	if err != nil {
		t.Fatalf("get topic: %v", err)
	}
	if got.LastPostAt.Valid {
		t.Fatal("dry-run touched last_post_at")
	}
}

// shrinkingCountStore reports a smaller queue on the read after the
// peek, as if the peek had consumed an item.
type shrinkingCountStore struct {
	store.Store
	calls int
}

func (s *shrinkingCountStore) CountNew(ctx context.Context, topicID int64) (int, error) {
	s.calls++
	if s.calls >= 3 {
		return 0, nil
	}
	return 1, nil
}

func TestCycleDryRunDetectsQueueSizeChange(t *testing.T) {
	t.Parallel()
	db := newTestStore(t)
	ctx := context.Background()

	topic, err := db.UpsertTopic(ctx, 100, 1, "КМВ")
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	enqueueItem(t, db, topic.ID, "ext-1", 7)

	var buf strings.Builder
	svc := NewService(&shrinkingCountStore{Store: db}, &captureNotifier{}, true, zerolog.New(&buf))

	if _, err := svc.Cycle(ctx, 100); err != nil {
		t.Fatalf("cycle: %v", err)
	}
	if !strings.Contains(buf.String(), "dry-run peek changed the queue size") {
		t.Fatalf("missing invariant violation log: %q", buf.String())
	}
}

func TestCycleDryRunQuietWhenCountsStable(t *testing.T) {
	t.Parallel()
	db := newTestStore(t)
	ctx := context.Background()

	topic, err := db.UpsertTopic(ctx, 100, 1, "КМВ")
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	enqueueItem(t, db, topic.ID, "ext-1", 7)

	var buf strings.Builder
	svc := NewService(db, &captureNotifier{}, true, zerolog.New(&buf))

	if _, err := svc.Cycle(ctx, 100); err != nil {
		t.Fatalf("cycle: %v", err)
	}
	if strings.Contains(buf.String(), "changed the queue size") {
		t.Fatalf("false invariant violation: %q", buf.String())
	}
}

func TestCycleFailedSendReleasesItem(t *testing.T) {
	t.Parallel()
	db := newTestStore(t)
	ctx := context.Background()

	topic, err := db.UpsertTopic(ctx, 100, 1, "КМВ")
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	enqueueItem(t, db, topic.ID, "ext-1", 7)

	notifier := &captureNotifier{fail: true}
	svc := NewService(db, notifier, false, zerolog.Nop())

	if _, err := svc.Cycle(ctx, 100); err == nil {
		t.Fatal("expected cycle error on failed send")
	}

	// The item must be back in new for the next cycle.
	count, err := db.CountNew(ctx, topic.ID)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Fatalf("count = %d, item not released", count)
	}

	notifier.fail = false
	res, err := svc.Cycle(ctx, 100)
	if err != nil {
		t.Fatalf("retry cycle: %v", err)
	}
	if res.Posted != 1 {
		t.Fatalf("retry posted = %d", res.Posted)
	}
}
