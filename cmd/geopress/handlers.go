package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/geotherm/geopress/internal/config"
	"github.com/geotherm/geopress/internal/logging"
	"github.com/geotherm/geopress/internal/publish"
	"github.com/geotherm/geopress/internal/refresh"
	"github.com/geotherm/geopress/internal/scheduler"
	"github.com/geotherm/geopress/internal/store"
	"github.com/geotherm/geopress/pkg/notify"
	"github.com/geotherm/geopress/pkg/region"
	"github.com/geotherm/geopress/pkg/source"
)

func loadConfig() (*config.Config, error) {
	// .env is optional; real environments set variables directly.
	_ = godotenv.Load()

	path := cfgFile
	if path == "" {
		if _, err := os.Stat("config.yaml"); err == nil {
			path = "config.yaml"
		}
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

func openStore(cfg *config.Config) (*store.SQLiteStore, error) {
	db, err := store.New(cfg.Database.Path, cfg.Refresh.SeenTTLDays)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	return db, nil
}

func buildProviders(cfg *config.Config) []source.Provider {
	var providers []source.Provider

	if cfg.Sources.CyberLeninka.Enabled {
		providers = append(providers, source.NewCyberLeninka(cfg.Sources.CyberLeninka.BaseURL))
	}
	if cfg.Sources.EuropePMC.Enabled {
		providers = append(providers, source.NewEuropePMC(cfg.Sources.EuropePMC.BaseURL))
	}
	if cfg.Sources.RSS.Enabled {
		feeds := make([]source.RSSFeed, len(cfg.Sources.RSS.Feeds))
		for i, f := range cfg.Sources.RSS.Feeds {
			feeds[i] = source.RSSFeed{Name: f.Name, URL: f.URL}
		}
		providers = append(providers, source.NewRSS(feeds))
	}

	return providers
}

func buildRefresh(cfg *config.Config, db store.Store, log zerolog.Logger) *refresh.Service {
	caps := refresh.Caps{
		QueueMax:      cfg.Refresh.QueueMax,
		EnqueuePerRun: cfg.Refresh.EnqueuePerRun,
		MaxCandidates: cfg.Refresh.MaxCandidates,
		MaxQueries:    cfg.Refresh.MaxQueries,
	}
	return refresh.NewService(db, buildProviders(cfg),
		cfg.Filter.IncludeTerms, cfg.Filter.ExcludeTerms,
		cfg.Refresh.MaxAgeDays, cfg.Refresh.ScoreThreshold, caps,
		log.With().Str("component", "refresh").Logger())
}

func buildPublish(cfg *config.Config, db store.Store, dryRun bool, log zerolog.Logger) *publish.Service {
	var notifier notify.Notifier = notify.Noop{}
	if !dryRun {
		notifier = notify.NewTelegram(cfg.Telegram.Token)
	}
	return publish.NewService(db, notifier, dryRun,
		log.With().Str("component", "publish").Logger())
}

func runDaemon() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := logging.New(cfg.LogLevel)

	db, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	refresher := buildRefresh(cfg, db, log)
	publisher := buildPublish(cfg, db, cfg.Publish.DryRun, log)

	jobs := []scheduler.Job{
		{
			Name:     "refresh",
			Interval: cfg.Refresh.ParseInterval(),
			Run: func(ctx context.Context) error {
				stats, err := refresher.RefreshChat(ctx, cfg.Telegram.ChatID)
				if err != nil {
					return err
				}
				log.Info().
					Int("topics", stats.TopicsSeen).
					Int("queries", stats.QueriesBuilt).
					Int("fetched", stats.PubsFetched).
					Int("enqueued", stats.ItemsEnqueued).
					Int("deduped", stats.ItemsDeduped).
					Msg("refresh cycle done")
				return nil
			},
		},
	}

	if cfg.Publish.Enabled {
		jobs = append(jobs, scheduler.Job{
			Name:     "publish",
			Interval: cfg.Publish.ParseInterval(),
			Run: func(ctx context.Context) error {
				res, err := publisher.Cycle(ctx, cfg.Telegram.ChatID)
				if err != nil {
					return err
				}
				log.Info().
					Int("considered", res.TopicsConsidered).
					Int("posted", res.Posted).
					Msg("publish cycle done")
				return nil
			},
		})
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	log.Info().
		Bool("dry_run", cfg.Publish.DryRun).
		Int64("chat_id", cfg.Telegram.ChatID).
		Msg("daemon starting")

	err = scheduler.New(log, jobs...).Run(ctx)
	if err == context.Canceled {
		return nil
	}
	return err
}

func runRefresh() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := logging.New(cfg.LogLevel)

	db, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	stats, err := buildRefresh(cfg, db, log).RefreshChat(context.Background(), cfg.Telegram.ChatID)
	if err != nil {
		return fmt.Errorf("refresh: %w", err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TOPICS\tSKIPPED FULL\tQUERIES\tFETCHED\tPASSED\tENQUEUED\tDEDUPED")
	fmt.Fprintf(w, "%d\t%d\t%d\t%d\t%d\t%d\t%d\n",
		stats.TopicsSeen, stats.TopicsSkippedFull, stats.QueriesBuilt,
		stats.PubsFetched, stats.PubsPassed, stats.ItemsEnqueued, stats.ItemsDeduped)
	return w.Flush()
}

func runPublish(flagSet, flagValue bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := logging.New(cfg.LogLevel)

	dryRun := cfg.Publish.DryRun
	if flagSet {
		dryRun = flagValue
	}
	if !dryRun && !cfg.Publish.Apply {
		return fmt.Errorf("publishing with dry-run off requires the apply flag in config")
	}

	db, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	res, err := buildPublish(cfg, db, dryRun, log).Cycle(context.Background(), cfg.Telegram.ChatID)
	if err != nil {
		return fmt.Errorf("publish: %w", err)
	}

	fmt.Printf("considered %d topics, posted %d, skipped %d\n",
		res.TopicsConsidered, res.Posted, res.Skipped)
	return nil
}

func runTopicsAdd(threadID int64, name, mode string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	db, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx := context.Background()
	topic, err := db.UpsertTopic(ctx, cfg.Telegram.ChatID, threadID, name)
	if err != nil {
		return fmt.Errorf("upsert topic: %w", err)
	}

	if topic.RegionKey == "" {
		regionKey := region.NewResolver().InferRegionKey(topic.Name)
		if err := db.SetRegionKey(ctx, topic.ID, regionKey); err != nil {
			return fmt.Errorf("set region key: %w", err)
		}
		topic.RegionKey = regionKey
	}

	if mode != "" {
		if err := db.SetMode(ctx, topic.ID, mode); err != nil {
			return fmt.Errorf("set mode: %w", err)
		}
		topic.Mode = mode
	}

	fmt.Printf("topic %d: %q (region %s, mode %s, thread %d)\n",
		topic.ID, topic.Name, topic.RegionKey, topic.Mode, topic.MessageThreadID)
	return nil
}

func runTopicsList() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	db, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	topics, err := db.ListTopics(context.Background(), cfg.Telegram.ChatID, false)
	if err != nil {
		return fmt.Errorf("list topics: %w", err)
	}

	if len(topics) == 0 {
		fmt.Println("no topics registered (add one: geopress topics add)")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTHREAD\tNAME\tREGION\tMODE\tENABLED\tLAST POST")
	for _, t := range topics {
		lastPost := "never"
		if t.LastPostAt.Valid {
			lastPost = t.LastPostAt.Time.Format(time.RFC3339)
		}
		fmt.Fprintf(w, "%d\t%d\t%s\t%s\t%s\t%t\t%s\n",
			t.ID, t.MessageThreadID, t.Name, t.RegionKey, t.Mode, t.Enabled, lastPost)
	}
	return w.Flush()
}

func runTopicsSetEnabled(topicID int64, enabled bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	db, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.SetEnabled(context.Background(), topicID, enabled); err != nil {
		return fmt.Errorf("set enabled: %w", err)
	}
	fmt.Printf("topic %d enabled=%t\n", topicID, enabled)
	return nil
}

func runQueue() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	db, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx := context.Background()
	topics, err := db.ListTopics(ctx, cfg.Telegram.ChatID, false)
	if err != nil {
		return fmt.Errorf("list topics: %w", err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TOPIC\tNAME\tNEW\tNEXT UP")
	for _, t := range topics {
		count, err := db.CountNew(ctx, t.ID)
		if err != nil {
			return fmt.Errorf("count new %d: %w", t.ID, err)
		}

		nextUp := "-"
		if item, err := db.PeekBestNew(ctx, t.ID); err == nil && item != nil {
			nextUp = fmt.Sprintf("[%d] %s", item.Score, item.Title)
		}
		fmt.Fprintf(w, "%d\t%s\t%d\t%s\n", t.ID, t.Name, count, nextUp)
	}
	return w.Flush()
}
