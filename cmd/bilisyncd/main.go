// Package main is the bilisyncd process entrypoint: it loads config.yaml,
// wires every internal package into a running daemon, and blocks until
// SIGINT/SIGTERM. Modeled on the teacher's cmd/daemon/main.go (flag
// handling, signal-driven context, fatal-on-config-load-failure logging).
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/kaorin/bilisync/internal/adminapi"
	"github.com/kaorin/bilisync/internal/apiclient"
	"github.com/kaorin/bilisync/internal/cache"
	"github.com/kaorin/bilisync/internal/config"
	"github.com/kaorin/bilisync/internal/credential"
	"github.com/kaorin/bilisync/internal/danmaku"
	"github.com/kaorin/bilisync/internal/enumerate"
	xglog "github.com/kaorin/bilisync/internal/log"
	"github.com/kaorin/bilisync/internal/model"
	"github.com/kaorin/bilisync/internal/muxer"
	"github.com/kaorin/bilisync/internal/notify"
	"github.com/kaorin/bilisync/internal/orchestrator"
	"github.com/kaorin/bilisync/internal/ratelimit"
	"github.com/kaorin/bilisync/internal/scheduler"
	"github.com/kaorin/bilisync/internal/source"
	"github.com/kaorin/bilisync/internal/store"
	"github.com/kaorin/bilisync/internal/streamsel"
	"github.com/kaorin/bilisync/internal/taskstatus"
	"github.com/kaorin/bilisync/internal/taskstatus/history"
	"github.com/kaorin/bilisync/internal/telemetry"
)

var (
	version   = "v0.1.0"
	commit    = "none"
	buildDate = "unknown"
)

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	configPath := flag.String("config", "config.yaml", "path to config file (YAML)")
	flag.Parse()

	if *showVersion {
		fmt.Printf("%s (commit: %s, built: %s)\n", version, commit, buildDate)
		os.Exit(0)
	}

	xglog.Configure(xglog.Config{Level: "info", Service: "bilisyncd", Version: version})
	logger := xglog.WithComponent("daemon")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfgHolder, err := config.NewHolder(*configPath)
	if err != nil {
		logger.Fatal().Err(err).Str("event", "config.load_failed").Str("path", *configPath).Msg("failed to load configuration")
	}
	app := cfgHolder.Get()

	xglog.Configure(xglog.Config{Level: app.LogLevel, Service: "bilisyncd", Version: version})
	logger = xglog.WithComponent("daemon")
	logger.Info().Str("event", "startup").Str("version", version).Str("commit", commit).Str("build_date", buildDate).
		Str("bind_address", app.BindAddress).Str("data_dir", app.DataDir).Msg("starting bilisyncd")

	if err := cfgHolder.WatchFile(ctx); err != nil {
		logger.Warn().Err(err).Msg("config hot reload disabled: failed to start file watcher")
	}

	if err := os.MkdirAll(app.DataDir, 0o755); err != nil {
		logger.Fatal().Err(err).Str("dir", app.DataDir).Msg("failed to create data directory")
	}

	telProvider, err := telemetry.NewProvider(ctx, app.Telemetry)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize telemetry provider")
	}

	st, err := store.Open(filepath.Join(app.DataDir, "bilisync.db"))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open store")
	}

	hist, err := history.Open(filepath.Join(app.DataDir, "history"), app.HistoryCapacity)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open task history ring")
	}

	credHolder := credential.NewHolder(app.Credential, manualRotationRefresher{}, configPersister{holder: cfgHolder})

	bucket := ratelimit.New("apiclient", app.RateLimit)
	apiClient := apiclient.New(apiclient.Options{
		BaseURL:                 app.APIBaseURL,
		Bucket:                  bucket,
		Holder:                  credHolder,
		DownloadMaxConnsPerHost: app.Orchestrator.DownloadConcurrency,
	})

	var prober streamsel.LatencyProber = apiClient
	if app.Filter.CDNSorting {
		prober = streamsel.NewCachingProber(apiClient, cache.NewMemoryCache(time.Minute), 30*time.Second)
	}
	analyzer := streamsel.New(prober)

	mux := muxer.New("")
	renderer := danmaku.NewRenderer(app.DanmakuPoolSize)
	layout := orchestrator.NewLayout(app.PageNameTemplate, app.UpperPath)
	orch := orchestrator.New(st, apiClient, analyzer, mux, renderer, layout, app.Orchestrator)

	fanout := buildNotifyFanout(app)

	statusStore := &schedulerStatusAdapter{store: st}
	sched := scheduler.New(app.Interval, buildRunFunc(st, apiClient, orch, app, fanout), statusStore, hist)

	sched.RegisterShutdownHook("history", func(ctx context.Context) error { return hist.Close() })
	sched.RegisterShutdownHook("store", func(ctx context.Context) error { return st.Close() })
	sched.RegisterShutdownHook("config_holder", func(ctx context.Context) error { return cfgHolder.Close() })
	sched.RegisterShutdownHook("telemetry", func(ctx context.Context) error { return telProvider.Shutdown(ctx) })

	admin := adminapi.New(sched, app.AuthToken)
	httpServer := &http.Server{
		Addr:    app.BindAddress,
		Handler: admin.Routes(),
	}
	sched.RegisterShutdownHook("http_server", func(ctx context.Context) error {
		shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	go func() {
		logger.Info().Str("addr", app.BindAddress).Msg("admin API listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("admin API server failed")
		}
	}()

	if err := sched.Run(ctx); err != nil {
		logger.Error().Err(err).Msg("scheduler shutdown with error")
	}
	logger.Info().Msg("bilisyncd exiting")
}

// buildRunFunc closes over the daemon's long-lived dependencies and returns
// the RunFunc the scheduler drives every cycle: sync declared sources, drain
// each through its adapter, then hand downloadable videos to the
// orchestrator (spec.md §4.1, §4.3, §4.4).
func buildRunFunc(st *store.Store, apiClient *apiclient.Client, orch *orchestrator.Orchestrator, app config.AppConfig, fanout *notify.Fanout) scheduler.RunFunc {
	return func(ctx context.Context, cycleID string) error {
		logger := xglog.FromContext(ctx)
		started := time.Now()
		summary := notify.Summary{CycleID: cycleID, Started: started}

		synced, err := st.SyncSources(ctx, app.Sources)
		if err != nil {
			return fmt.Errorf("sync sources: %w", err)
		}

		for _, src := range synced {
			if !src.Enabled {
				continue
			}
			adapter := adapterForSource(apiClient, src)
			if adapter == nil {
				logger.Warn().Str("source_kind", string(src.Kind)).Msg("no adapter for source kind, skipping")
				continue
			}
			stage := enumerate.New(st, adapter, app.VideoNameTemplate)
			if err := stage.Run(ctx, src); err != nil {
				summary.Errors = append(summary.Errors, err.Error())
				logger.Error().Err(err).Int64("source_id", src.ID).Msg("enumeration failed for source")
				continue
			}
			summary.SourcesProcessed++
		}

		videos, err := st.ListDownloadableVideos(ctx, taskstatus.Step5)
		if err != nil {
			return fmt.Errorf("list downloadable videos: %w", err)
		}
		summary.VideosDiscovered = len(videos)

		if err := orch.Run(ctx, videos); err != nil {
			summary.Errors = append(summary.Errors, err.Error())
		}

		summary.Finished = time.Now()
		fanout.Notify(ctx, summary)
		return nil
	}
}

func adapterForSource(apiClient *apiclient.Client, src model.Source) source.Adapter {
	switch src.Kind {
	case model.KindFavorite:
		return &source.FavoriteAdapter{Client: apiClient}
	case model.KindSubmission:
		return &source.SubmissionAdapter{Client: apiClient}
	case model.KindCollection:
		return &source.CollectionAdapter{Client: apiClient}
	case model.KindWatchLater:
		return &source.WatchLaterAdapter{Client: apiClient}
	default:
		return nil
	}
}

func buildNotifyFanout(app config.AppConfig) *notify.Fanout {
	sinks := []notify.Sink{notify.LogSink{}}
	if app.Notify.WebhookURL != "" {
		sinks = append(sinks, notify.NewWebhookSink(app.Notify.WebhookURL))
	}
	if app.Notify.SlackURL != "" {
		sinks = append(sinks, notify.NewSlackSink(app.Notify.SlackURL))
	}
	return notify.New(10*time.Second, sinks...)
}

// schedulerStatusAdapter bridges store.Store's SchedulerStatus-typed
// persistence methods onto scheduler.StatusStore: the two record shapes
// carry the same fields under different names, so no data is lost crossing
// the package boundary.
type schedulerStatusAdapter struct {
	store *store.Store
}

func (a *schedulerStatusAdapter) PutSchedulerStatus(ctx context.Context, rec scheduler.StatusRecord) error {
	return a.store.PutSchedulerStatus(ctx, store.SchedulerStatus{
		IsRunning:  rec.IsRunning,
		LastRun:    rec.LastRun,
		LastFinish: rec.LastFinish,
		NextRun:    rec.NextRun,
	})
}

func (a *schedulerStatusAdapter) GetSchedulerStatus(ctx context.Context) (scheduler.StatusRecord, error) {
	st, err := a.store.GetSchedulerStatus(ctx)
	if err != nil {
		return scheduler.StatusRecord{}, err
	}
	return scheduler.StatusRecord{
		IsRunning:  st.IsRunning,
		LastRun:    st.LastRun,
		LastFinish: st.LastFinish,
		NextRun:    st.NextRun,
	}, nil
}

// manualRotationRefresher is the credential.Refresher stub: signed-request
// negotiation with the remote platform is an external collaborator (spec.md
// §1 Non-goals), so a refresh attempt fails with an actionable error instead
// of silently looping.
type manualRotationRefresher struct{}

func (manualRotationRefresher) Refresh(ctx context.Context, old credential.Bundle) (credential.Bundle, error) {
	return credential.Bundle{}, fmt.Errorf("credential: automatic refresh is not implemented, rotate sessdata/bili_jct manually in config.yaml")
}

// configPersister installs a refreshed credential bundle into the in-memory
// config snapshot via Holder.Swap. The config document on disk is not
// rewritten, so the refreshed bundle does not survive a restart.
type configPersister struct {
	holder *config.Holder
}

func (p configPersister) PersistCredential(ctx context.Context, b credential.Bundle) error {
	app := p.holder.Get()
	app.Credential = b
	p.holder.Swap(app)
	return nil
}
