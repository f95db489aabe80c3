package refresh

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/geotherm/geopress/internal/store"
	"github.com/geotherm/geopress/pkg/pub"
	"github.com/geotherm/geopress/pkg/region"
	"github.com/geotherm/geopress/pkg/source"
)

// Caps bound the work one refresh cycle may do per topic.
type Caps struct {
	QueueMax      int // skip the topic entirely above this many new items
	EnqueuePerRun int // stop enqueuing for the topic after this many inserts
	MaxCandidates int // stop fetching once this many publications are collected
	MaxQueries    int // run at most this many queries per topic
}

// DefaultCaps are the production limits.
func DefaultCaps() Caps {
	return Caps{
		QueueMax:      80,
		EnqueuePerRun: 30,
		MaxCandidates: 200,
		MaxQueries:    12,
	}
}

// Stats summarizes one refresh cycle.
type Stats struct {
	TopicsSeen        int
	TopicsSkippedFull int
	QueriesBuilt      int
	PubsFetched       int
	PubsPassed        int
	ItemsEnqueued     int
	ItemsDeduped      int
}

// Service runs the discovery cycle: for each enabled backfill topic it
// resolves the region, builds the query set, fetches candidates, scores
// and filters them and enqueues survivors under dedup.
type Service struct {
	store     store.Store
	resolver  *region.Resolver
	builder   *region.QueryBuilder
	providers []source.Provider

	include        []string
	exclude        []string
	maxAgeDays     int
	scoreThreshold int
	caps           Caps

	now func() time.Time
	log zerolog.Logger
}

// NewService creates a refresh service.
func NewService(st store.Store, providers []source.Provider, include, exclude []string,
	maxAgeDays, scoreThreshold int, caps Caps, log zerolog.Logger) *Service {
	return &Service{
		store:          st,
		resolver:       region.NewResolver(),
		builder:        region.NewQueryBuilder(),
		providers:      providers,
		include:        include,
		exclude:        exclude,
		maxAgeDays:     maxAgeDays,
		scoreThreshold: scoreThreshold,
		caps:           caps,
		now:            func() time.Time { return time.Now().UTC() },
		log:            log,
	}
}

// RefreshChat runs one discovery cycle over every enabled topic in the
// chat.
func (s *Service) RefreshChat(ctx context.Context, chatID int64) (Stats, error) {
	var stats Stats

	topics, err := s.store.ListTopics(ctx, chatID, true)
	if err != nil {
		return stats, fmt.Errorf("list topics for chat %d: %w", chatID, err)
	}

	for i := range topics {
		topic := &topics[i]
		stats.TopicsSeen++

		var err error
		switch topic.Mode {
		case store.ModeBackfill:
			err = s.refreshTopic(ctx, topic, &stats)
		case store.ModeRSS:
			err = s.refreshRSSTopic(ctx, topic, &stats)
		default:
			stats.TopicsSeen--
			continue
		}
		if err != nil {
			s.log.Warn().Err(err).
				Int64("topic_id", topic.ID).
				Str("topic", topic.Name).
				Msg("topic refresh failed")
		}

		if ctx.Err() != nil {
			return stats, ctx.Err()
		}
	}

	return stats, nil
}

func (s *Service) refreshTopic(ctx context.Context, topic *store.Topic, stats *Stats) error {
	regionKey := topic.RegionKey
	if regionKey == "" {
		regionKey = s.resolver.InferRegionKey(topic.Name)
		if err := s.store.SetRegionKey(ctx, topic.ID, regionKey); err != nil {
			return fmt.Errorf("persist region key: %w", err)
		}
		topic.RegionKey = regionKey
	}

	backlog, err := s.store.CountNew(ctx, topic.ID)
	if err != nil {
		return fmt.Errorf("count backlog: %w", err)
	}
	if backlog >= s.caps.QueueMax {
		stats.TopicsSkippedFull++
		s.log.Debug().
			Int64("topic_id", topic.ID).
			Int("backlog", backlog).
			Msg("queue full, topic skipped")
		return nil
	}

	specs := s.builder.BuildBackfillQueries(regionKey, topic.Name)
	if len(specs) > s.caps.MaxQueries {
		specs = specs[:s.caps.MaxQueries]
	}
	stats.QueriesBuilt += len(specs)

	candidates := s.fetchCandidates(ctx, specs, stats)

	enqueued := 0
	for i := range candidates {
		if enqueued >= s.caps.EnqueuePerRun {
			break
		}
		p := &candidates[i]

		if !pub.IsRelevant(p, s.include, s.exclude) {
			continue
		}
		if !pub.IsFresh(p, s.maxAgeDays, s.now()) {
			continue
		}
		result := pub.Score(p)
		if result.Score < s.scoreThreshold {
			continue
		}
		stats.PubsPassed++

		item := s.toQueueItem(topic, regionKey, store.ItemTypeDiscovery, p, result)
		ok, err := s.store.Enqueue(ctx, item)
		if err != nil {
			return fmt.Errorf("enqueue %s: %w", item.ExternalID, err)
		}
		if !ok {
			stats.ItemsDeduped++
			continue
		}
		enqueued++
		stats.ItemsEnqueued++
	}

	s.log.Info().
		Int64("topic_id", topic.ID).
		Str("region", regionKey).
		Int("queries", len(specs)).
		Int("candidates", len(candidates)).
		Int("enqueued", enqueued).
		Msg("topic refreshed")
	return nil
}

// refreshRSSTopic feeds an RSS-mode topic from the feed provider. The
// same relevance, freshness, score and dedup gates apply; identity
// falls back to the concrete record fields since feed entries carry no
// originating query.
func (s *Service) refreshRSSTopic(ctx context.Context, topic *store.Topic, stats *Stats) error {
	var rss source.Provider
	for _, p := range s.providers {
		if p.Name() == "rss" {
			rss = p
			break
		}
	}
	if rss == nil {
		return nil
	}

	regionKey := topic.RegionKey
	if regionKey == "" {
		regionKey = s.resolver.InferRegionKey(topic.Name)
		if err := s.store.SetRegionKey(ctx, topic.ID, regionKey); err != nil {
			return fmt.Errorf("persist region key: %w", err)
		}
		topic.RegionKey = regionKey
	}

	backlog, err := s.store.CountNew(ctx, topic.ID)
	if err != nil {
		return fmt.Errorf("count backlog: %w", err)
	}
	if backlog >= s.caps.QueueMax {
		stats.TopicsSkippedFull++
		return nil
	}

	result, err := rss.Fetch(ctx, pub.QuerySpec{MaxResults: s.caps.MaxCandidates})
	if err != nil {
		return fmt.Errorf("fetch feeds: %w", err)
	}
	stats.PubsFetched += len(result.Pubs)

	enqueued := 0
	for i := range result.Pubs {
		if enqueued >= s.caps.EnqueuePerRun {
			break
		}
		p := &result.Pubs[i]

		if !pub.IsRelevant(p, s.include, s.exclude) {
			continue
		}
		if !pub.IsFresh(p, s.maxAgeDays, s.now()) {
			continue
		}
		scored := pub.Score(p)
		if scored.Score < s.scoreThreshold {
			continue
		}
		stats.PubsPassed++

		item := s.toQueueItem(topic, regionKey, store.ItemTypeRSS, p, scored)
		ok, err := s.store.Enqueue(ctx, item)
		if err != nil {
			return fmt.Errorf("enqueue %s: %w", item.ExternalID, err)
		}
		if !ok {
			stats.ItemsDeduped++
			continue
		}
		enqueued++
		stats.ItemsEnqueued++
	}

	return nil
}

func (s *Service) fetchCandidates(ctx context.Context, specs []pub.QuerySpec, stats *Stats) []pub.Publication {
	var candidates []pub.Publication

	for _, spec := range specs {
		if len(candidates) >= s.caps.MaxCandidates {
			break
		}
		for _, provider := range s.providers {
			result, err := provider.Fetch(ctx, spec)
			if err != nil {
				s.log.Warn().Err(err).
					Str("provider", provider.Name()).
					Str("query", spec.Name).
					Msg("provider fetch failed")
				continue
			}
			if result.NotSupported {
				s.log.Warn().
					Str("provider", provider.Name()).
					Str("query", spec.Name).
					Msg("query not supported by provider")
				continue
			}
			stats.PubsFetched += len(result.Pubs)
			candidates = append(candidates, result.Pubs...)
		}
	}

	if len(candidates) > s.caps.MaxCandidates {
		candidates = candidates[:s.caps.MaxCandidates]
	}
	return candidates
}

func (s *Service) toQueueItem(topic *store.Topic, regionKey, itemType string, p *pub.Publication, result pub.ScoreResult) *store.QueueItem {
	// Discovery items carry the originating query in the snippet so the
	// published post shows what found them.
	snippet := p.Abstract
	if p.Prov.Query != "" {
		snippet = p.Prov.Query
	}

	src := p.Source
	if p.Prov.Site != "" {
		src = "discovery:" + p.Prov.Site
	}

	return &store.QueueItem{
		TopicID:    topic.ID,
		ItemType:   itemType,
		Source:     src,
		ExternalID: ExternalID(regionKey, p),
		Title:      p.Title,
		Snippet:    snippet,
		URL:        p.URL,
		Score:      result.Score,
		Reasons:    result.Reasons,
		CreatedAt:  s.now(),
	}
}
