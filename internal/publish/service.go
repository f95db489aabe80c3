package publish

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/geotherm/geopress/internal/store"
	"github.com/geotherm/geopress/pkg/notify"
)

// Result summarizes one publish cycle.
type Result struct {
	TopicsConsidered int
	Posted           int
	Skipped          int
	Failed           int
}

// Service runs the publish cycle: pick the least recently served topic,
// claim its best queued item and deliver it. Dry-run mode only peeks.
type Service struct {
	store    store.Store
	notifier notify.Notifier
	dryRun   bool

	now func() time.Time
	log zerolog.Logger
}

// NewService creates a publish service. With dryRun set the cycle reads
// but never claims, delivers or mutates.
func NewService(st store.Store, notifier notify.Notifier, dryRun bool, log zerolog.Logger) *Service {
	return &Service{
		store:    st,
		notifier: notifier,
		dryRun:   dryRun,
		now:      func() time.Time { return time.Now().UTC() },
		log:      log,
	}
}

// Cycle publishes at most one item into the fairest eligible topic of
// the chat. Eligible means enabled with a non-empty queue. Topics that
// have never been posted to come first; otherwise the longest-unserved
// topic wins. If the claim on the chosen topic comes up empty (raced by
// another worker), the cycle ends without trying the next topic.
func (s *Service) Cycle(ctx context.Context, chatID int64) (Result, error) {
	var res Result

	topics, err := s.store.ListTopics(ctx, chatID, true)
	if err != nil {
		return res, fmt.Errorf("list topics for chat %d: %w", chatID, err)
	}

	var eligible []store.Topic
	for i := range topics {
		count, err := s.store.CountNew(ctx, topics[i].ID)
		if err != nil {
			return res, fmt.Errorf("count new %d: %w", topics[i].ID, err)
		}
		if count > 0 {
			eligible = append(eligible, topics[i])
		}
	}
	res.TopicsConsidered = len(eligible)

	if len(eligible) == 0 {
		s.log.Debug().Int64("chat_id", chatID).Msg("no topic had queued items")
		return res, nil
	}

	sortByFairness(eligible)

	posted, err := s.publishOne(ctx, &eligible[0])
	if err != nil {
		res.Failed++
		return res, err
	}
	if posted {
		res.Posted++
	} else {
		res.Skipped++
	}
	return res, nil
}

func (s *Service) publishOne(ctx context.Context, topic *store.Topic) (bool, error) {
	if s.dryRun {
		before, err := s.store.CountNew(ctx, topic.ID)
		if err != nil {
			return false, fmt.Errorf("count before peek %d: %w", topic.ID, err)
		}

		item, err := s.store.PeekBestNew(ctx, topic.ID)
		if err != nil {
			return false, fmt.Errorf("peek topic %d: %w", topic.ID, err)
		}

		// The peek must not consume anything; a queue size change here
		// means the read path mutated state.
		after, err := s.store.CountNew(ctx, topic.ID)
		if err != nil {
			return false, fmt.Errorf("count after peek %d: %w", topic.ID, err)
		}
		if before != after {
			s.log.Error().
				Int64("topic_id", topic.ID).
				Int("before", before).
				Int("after", after).
				Msg("dry-run peek changed the queue size")
		}

		if item == nil {
			return false, nil
		}
		s.log.Info().
			Int64("topic_id", topic.ID).
			Str("topic", topic.Name).
			Int64("item_id", item.ID).
			Int("score", item.Score).
			Str("title", item.Title).
			Msg("dry-run: would post")
		return true, nil
	}

	item, err := s.store.ClaimBestNew(ctx, topic.ID)
	if err != nil {
		return false, fmt.Errorf("claim topic %d: %w", topic.ID, err)
	}
	if item == nil {
		return false, nil
	}

	msg := notify.Message{
		ChatID:          topic.ChatID,
		MessageThreadID: topic.MessageThreadID,
		Text:            Render(topic, item),
	}

	if err := s.notifier.Send(ctx, msg); err != nil {
		// Put the item back so the next cycle retries it.
		if _, relErr := s.store.ReleasePosting(ctx, item.ID); relErr != nil {
			s.log.Error().Err(relErr).Int64("item_id", item.ID).Msg("release after failed send")
		}
		return false, fmt.Errorf("send item %d to topic %d: %w", item.ID, topic.ID, err)
	}

	now := s.now()
	if err := s.store.MarkPosted(ctx, item.ID, now); err != nil {
		return false, fmt.Errorf("mark posted %d: %w", item.ID, err)
	}
	if err := s.store.TouchLastPost(ctx, topic.ID, now); err != nil {
		return false, fmt.Errorf("touch last post %d: %w", topic.ID, err)
	}

	s.log.Info().
		Int64("topic_id", topic.ID).
		Str("topic", topic.Name).
		Int64("item_id", item.ID).
		Int("score", item.Score).
		Msg("item posted")
	return true, nil
}

func sortByFairness(topics []store.Topic) {
	sort.Slice(topics, func(i, j int) bool {
		a, b := topics[i], topics[j]
		if a.LastPostAt.Valid != b.LastPostAt.Valid {
			return !a.LastPostAt.Valid
		}
		if a.LastPostAt.Valid && !a.LastPostAt.Time.Equal(b.LastPostAt.Time) {
			return a.LastPostAt.Time.Before(b.LastPostAt.Time)
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
}
