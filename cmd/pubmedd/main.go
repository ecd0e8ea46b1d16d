// Package main wires together the PubMed enrichment pipeline service.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	gpubsub "cloud.google.com/go/pubsub"
	gstorage "cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/F8ai/formulation-pubmed/internal/api"
	"github.com/F8ai/formulation-pubmed/internal/checkpoint"
	"github.com/F8ai/formulation-pubmed/internal/clock/system"
	"github.com/F8ai/formulation-pubmed/internal/config"
	"github.com/F8ai/formulation-pubmed/internal/enrich"
	"github.com/F8ai/formulation-pubmed/internal/feeds"
	"github.com/F8ai/formulation-pubmed/internal/fulltext"
	"github.com/F8ai/formulation-pubmed/internal/logging"
	"github.com/F8ai/formulation-pubmed/internal/metrics"
	"github.com/F8ai/formulation-pubmed/internal/pipeline"
	"github.com/F8ai/formulation-pubmed/internal/pubmed"
	"github.com/F8ai/formulation-pubmed/internal/publisher/pubsub"
	"github.com/F8ai/formulation-pubmed/internal/replicate"
	"github.com/F8ai/formulation-pubmed/internal/replicate/archive"
	"github.com/F8ai/formulation-pubmed/internal/replicate/gitrepo"
	replmemory "github.com/F8ai/formulation-pubmed/internal/replicate/memory"
	"github.com/F8ai/formulation-pubmed/internal/search/entrez"
	"github.com/F8ai/formulation-pubmed/internal/status"
	"github.com/F8ai/formulation-pubmed/internal/store"
	"github.com/F8ai/formulation-pubmed/internal/store/gcs"
	"github.com/F8ai/formulation-pubmed/internal/store/local"
	storememory "github.com/F8ai/formulation-pubmed/internal/store/memory"
)

func main() {
	cfgPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		if syncErr := logger.Sync(); syncErr != nil {
			fmt.Fprintf(os.Stderr, "logger sync failed: %v\n", syncErr)
		}
	}()
	zap.ReplaceGlobals(logger)
	metrics.Init()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("service failed", zap.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	clock := system.New()

	st, err := buildStore(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("build store: %w", err)
	}
	repl, err := buildReplicator(cfg, st, clock, logger)
	if err != nil {
		return fmt.Errorf("build replicator: %w", err)
	}
	checkpoints := checkpoint.New(repl, clock, checkpointConfig(cfg.Checkpoint), logger)

	searcher := entrez.New(entrez.Config{
		BaseURL: cfg.Search.BaseURL,
		APIKey:  cfg.Search.APIKey,
	}, logger)
	enricher := enrich.New(cfg.Pipeline.RelevanceThreshold, logger)
	fetcher := fulltext.NewChain(clock, logger,
		fulltext.NewPMC("", cfg.Pipeline.FulltextTimeout()),
		fulltext.NewArxiv("", cfg.Pipeline.FulltextTimeout()),
		fulltext.NewDirectPDF("", cfg.Pipeline.FulltextTimeout()),
	)

	var publisher pubmed.Publisher
	if cfg.PubSub.Enabled {
		client, err := gpubsub.NewClient(ctx, cfg.PubSub.ProjectID)
		if err != nil {
			return fmt.Errorf("pubsub client: %w", err)
		}
		defer func() {
			if closeErr := client.Close(); closeErr != nil {
				logger.Warn("pubsub client close failed", zap.Error(closeErr))
			}
		}()
		publisher, err = pubsub.New(client)
		if err != nil {
			return fmt.Errorf("pubsub publisher: %w", err)
		}
	}

	router := pipeline.NewRouter(cfg.Pipeline.QueueDepth)
	index := pipeline.NewIndex(clock)
	snap, err := store.ReadDedupSnapshot(ctx, st)
	if err != nil {
		return fmt.Errorf("load dedup snapshot: %w", err)
	}
	index.Load(snap)

	discover := pipeline.NewDiscoverWorker(searcher, router, index, pipeline.DiscoverConfig{
		Categories:        cfg.Search.Terms,
		MaxResultsPerTerm: cfg.Search.MaxResultsPerTerm,
		DateRange:         pubmed.DateRange{StartYear: cfg.Search.StartYear, EndYear: cfg.Search.EndYear},
		Interval:          cfg.Search.SweepInterval(),
		QueryDelay:        cfg.Search.QueryDelay(),
		Cooldown:          cfg.Search.Cooldown(),
	}, logger)
	metadata := pipeline.NewMetadataWorker(enricher, st, index, router, checkpoints, clock, cfg.Pipeline.EnrichTimeout(), logger)
	fulltextWorker := pipeline.NewFulltextWorker(fetcher, st, router, checkpoints, clock, cfg.Pipeline.FulltextTimeout(), cfg.Pipeline.DeadLetterRetry(), logger)
	chunker := pipeline.NewChunker(cfg.Chunking.WindowWords, cfg.Chunking.OverlapWords)
	if cfg.Chunking.MinChunkChars > 0 {
		chunker.MinChunkChars = cfg.Chunking.MinChunkChars
	}
	chunkWorker := pipeline.NewChunkWorker(chunker, st, index, router, publisher, cfg.PubSub.TopicName, checkpoints, clock, logger)
	persister := pipeline.NewPersister(index, st, cfg.Pipeline.DedupFlush(), logger)

	feedScheduler := feeds.NewScheduler(
		feeds.NewGenerator(st, clock, cfg.Feeds.WindowDays, logger),
		checkpoints, clock, cfg.Feeds.Interval(), logger,
	)
	collector := status.NewCollector(st, clock, logger)
	statusScheduler := status.NewScheduler(collector, checkpoints, clock, cfg.Dashboard.Interval(), logger)

	runner := pipeline.NewRunner(logger)
	runner.Add("discover", discover)
	runner.Add("metadata", metadata)
	runner.Add("fulltext", fulltextWorker)
	runner.Add("fulltext-retry", pipeline.TaskFunc(fulltextWorker.RunRetry))
	runner.Add("chunk", chunkWorker)
	runner.Add("dedup-persist", persister)
	runner.Add("feeds", feedScheduler)
	runner.Add("status", statusScheduler)
	runner.Start(ctx)
	defer runner.Stop()

	server := api.NewServer(st, collector, repl, logger)
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	if err := api.Serve(ctx, addr, server.Handler(), logger); err != nil {
		return fmt.Errorf("http server: %w", err)
	}

	// Workers are stopped; seal whatever the last cadence left behind.
	runner.Stop()
	flushCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := persister.Flush(flushCtx); err != nil {
		logger.Warn("final dedup flush failed", zap.Error(err))
	}
	if _, err := checkpoints.Flush(flushCtx, checkpoint.StageBatchComplete); err != nil {
		logger.Warn("final checkpoint failed", zap.Error(err))
	}
	return nil
}

func buildStore(ctx context.Context, cfg config.Config, logger *zap.Logger) (store.Store, error) {
	switch cfg.Storage.Backend {
	case "local":
		return local.New(local.Config{BaseDir: cfg.Storage.BaseDir})
	case "gcs":
		client, err := gstorage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("storage client: %w", err)
		}
		return gcs.New(client, gcs.Config{Bucket: cfg.Storage.GCSBucket, Prefix: cfg.Storage.GCSPrefix})
	case "memory":
		logger.Warn("using in-memory store; artifacts will not survive a restart")
		return storememory.New(), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}

func buildReplicator(cfg config.Config, st store.Store, clock pubmed.Clock, logger *zap.Logger) (replicate.Replicator, error) {
	switch cfg.Replication.Backend {
	case "git":
		return gitrepo.Open(gitrepo.Config{
			Path:        cfg.Replication.RepoPath,
			Remote:      cfg.Replication.Remote,
			AuthorName:  cfg.Replication.AuthorName,
			AuthorEmail: cfg.Replication.AuthorEmail,
		}, logger)
	case "archive":
		return archive.New(cfg.Storage.BaseDir, st, clock, logger)
	case "none":
		logger.Info("replication disabled; checkpoints are recorded in memory only")
		return replmemory.New(), nil
	default:
		return nil, fmt.Errorf("unknown replication backend %q", cfg.Replication.Backend)
	}
}

func checkpointConfig(cfg config.CheckpointConfig) checkpoint.Config {
	out := checkpoint.Config{PushInterval: cfg.PushInterval()}
	if len(cfg.Cadences) > 0 {
		out.Cadences = make(map[string]checkpoint.Cadence, len(cfg.Cadences))
		for stage, cadence := range cfg.Cadences {
			out.Cadences[stage] = checkpoint.Cadence{
				Commit: cadence.CommitEvery,
				Push:   cadence.PushEvery,
			}
		}
	}
	return out
}
