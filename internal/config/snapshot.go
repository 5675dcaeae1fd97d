package config

import (
	"fmt"
	"time"

	"github.com/kaorin/bilisync/internal/apiclient"
	"github.com/kaorin/bilisync/internal/artifact"
	"github.com/kaorin/bilisync/internal/credential"
	"github.com/kaorin/bilisync/internal/danmaku"
	"github.com/kaorin/bilisync/internal/model"
	"github.com/kaorin/bilisync/internal/orchestrator"
	"github.com/kaorin/bilisync/internal/pathtmpl"
	"github.com/kaorin/bilisync/internal/ratelimit"
	"github.com/kaorin/bilisync/internal/streamsel"
	"github.com/kaorin/bilisync/internal/taskstatus"
	"github.com/kaorin/bilisync/internal/telemetry"
)

// Snapshot is the immutable, effective runtime configuration, combining the
// validated FileConfig with its resolved typed form. Epoch increments on
// every successful Holder.Swap, mirroring the teacher's
// internal/config/snapshot.go Epoch convention.
type Snapshot struct {
	Epoch uint64
	App   AppConfig
}

// AppConfig is the resolved, typed configuration every other package
// consumes; nothing downstream imports package config directly, keeping
// the same layering discipline internal/artifact and internal/orchestrator
// already establish.
type AppConfig struct {
	BindAddress string
	AuthToken   string
	Interval    time.Duration
	APIBaseURL  string

	DataDir         string
	LogLevel        string
	HistoryCapacity int

	VideoNameTemplate *pathtmpl.Template
	PageNameTemplate  *pathtmpl.Template
	UpperPath         string
	TimeFormat        string

	Credential credential.Bundle

	Filter          streamsel.FilterOption
	Danmaku         danmaku.Option
	DanmakuPoolSize int
	Skip            artifact.SkipOption

	NFOTimeType artifact.NFOTimeType

	Orchestrator orchestrator.Options
	RateLimit    ratelimit.Config
	Notify       NotifyConfig
	Telemetry    telemetry.Config

	Sources []model.Source
}

// BuildSnapshot resolves an already-Validate'd FileConfig into an AppConfig.
func BuildSnapshot(cfg FileConfig) (AppConfig, error) {
	videoTmpl, err := pathtmpl.Parse("video_name", cfg.VideoName)
	if err != nil {
		return AppConfig{}, fmt.Errorf("config: parse video_name: %w", err)
	}
	pageTmpl, err := pathtmpl.Parse("page_name", cfg.PageName)
	if err != nil {
		return AppConfig{}, fmt.Errorf("config: parse page_name: %w", err)
	}

	nfoTimeType := artifact.NFOTimePub
	if cfg.NFOTimeType == "favtime" {
		nfoTimeType = artifact.NFOTimeFav
	}

	sources, err := sourcesFromConfig(cfg.Sources)
	if err != nil {
		return AppConfig{}, err
	}

	app := AppConfig{
		BindAddress:       cfg.BindAddress,
		AuthToken:         cfg.AuthToken,
		Interval:          time.Duration(cfg.Interval) * time.Second,
		APIBaseURL:        cfg.APIBaseURL,
		DataDir:           cfg.DataDir,
		LogLevel:          cfg.LogLevel,
		HistoryCapacity:   cfg.HistoryCapacity,
		VideoNameTemplate: videoTmpl,
		PageNameTemplate:  pageTmpl,
		UpperPath:         cfg.UpperPath,
		TimeFormat:        cfg.TimeFormat,
		Credential: credential.Bundle{
			SESSDATA:   cfg.Credential.SESSDATA,
			BiliJCT:    cfg.Credential.BiliJCT,
			DedeUserID: cfg.Credential.DedeUserID,
			AccessKey:  cfg.Credential.AccessKey,
			RefreshTok: cfg.Credential.RefreshTok,
		},
		Filter:          filterOptionFromConfig(cfg.FilterOption),
		Danmaku:         danmakuOptionFromConfig(cfg.DanmakuOption),
		DanmakuPoolSize: cfg.DanmakuOption.PoolSize,
		Skip:            skipOptionFromConfig(cfg.SkipOption),
		NFOTimeType: nfoTimeType,
		Orchestrator: orchestrator.Options{
			VideoConcurrency:       cfg.ConcurrentLimit.Video,
			PageConcurrency:        cfg.ConcurrentLimit.Page,
			DownloadEnabled:        cfg.ConcurrentLimit.Download.Enable,
			DownloadConcurrency:    cfg.ConcurrentLimit.Download.Concurrency,
			DownloadThresholdBytes: cfg.ConcurrentLimit.Download.Threshold,
			MaxRetries:             retriesFromConfig(cfg.ConcurrentLimit.MaxRetries),
			Skip:                   skipOptionFromConfig(cfg.SkipOption),
			NFOTimeType:            nfoTimeType,
			Filter:                 filterOptionFromConfig(cfg.FilterOption),
			Danmaku:                danmakuOptionFromConfig(cfg.DanmakuOption),
			OverlayWidth:           cfg.DanmakuOption.Width,
			OverlayHeight:          cfg.DanmakuOption.Height,
		},
		RateLimit: ratelimit.Config{
			Limit:    cfg.ConcurrentLimit.RateLimit.Limit,
			Duration: time.Duration(cfg.ConcurrentLimit.RateLimit.Duration) * time.Second,
		},
		Notify: cfg.Notify,
		Telemetry: telemetry.Config{
			Enabled:      cfg.Telemetry.Enabled,
			ServiceName:  "bilisyncd",
			Environment:  cfg.Telemetry.Environment,
			ExporterType: cfg.Telemetry.ExporterType,
			Endpoint:     cfg.Telemetry.Endpoint,
			SamplingRate: cfg.Telemetry.SamplingRate,
		},
		Sources: sources,
	}
	return app, nil
}

func filterOptionFromConfig(c FilterOptionConfig) streamsel.FilterOption {
	codecs := make([]apiclient.Codec, 0, len(c.Codecs))
	for _, name := range c.Codecs {
		codecs = append(codecs, apiclient.Codec(name))
	}
	return streamsel.FilterOption{
		VideoMinQuality: apiclient.Quality(c.VideoMinQuality),
		VideoMaxQuality: apiclient.Quality(c.VideoMaxQuality),
		AudioMinQuality: apiclient.Quality(c.AudioMinQuality),
		AudioMaxQuality: apiclient.Quality(c.AudioMaxQuality),
		NoDolbyVideo:    c.NoDolbyVideo,
		NoDolbyAudio:    c.NoDolbyAudio,
		NoHDR:           c.NoHDR,
		NoHiRes:         c.NoHiRes,
		Codecs:          codecs,
		CDNSorting:      c.CDNSorting,
	}
}

func danmakuOptionFromConfig(c DanmakuOptionConfig) danmaku.Option {
	opt := danmaku.DefaultOption()
	if c.Font != "" {
		opt.Font = c.Font
	}
	if c.FontSize != 0 {
		opt.FontSize = c.FontSize
	}
	if c.ScrollRatio != 0 {
		opt.ScrollRatio = c.ScrollRatio
	}
	if c.FixedRatio != 0 {
		opt.FixedRatio = c.FixedRatio
	}
	if c.LaneHeight != 0 {
		opt.LaneHeight = c.LaneHeight
	}
	if c.FloatingCap != 0 {
		opt.FloatingCap = c.FloatingCap
	}
	if c.BottomCap != 0 {
		opt.BottomCap = c.BottomCap
	}
	if c.Opacity != 0 {
		opt.Opacity = c.Opacity
	}
	opt.Outline = c.Outline
	opt.Bold = c.Bold
	opt.TimeOffset = c.TimeOffset
	return opt
}

func skipOptionFromConfig(c SkipOptionConfig) artifact.SkipOption {
	return artifact.SkipOption{
		NoPoster:   c.NoPoster,
		NoVideoNFO: c.NoVideoNFO,
		NoUpper:    c.NoUpper,
		NoDanmaku:  c.NoDanmaku,
		NoSubtitle: c.NoSubtitle,
	}
}

func retriesFromConfig(n int) taskstatus.Status {
	if n <= 0 {
		return taskstatus.MaxRetries
	}
	return taskstatus.Status(n)
}

func sourcesFromConfig(in []SourceConfig) ([]model.Source, error) {
	out := make([]model.Source, 0, len(in))
	for i, sc := range in {
		rule, err := ruleFromConfig(sc.Rule)
		if err != nil {
			return nil, fmt.Errorf("config: sources[%d]: %w", i, err)
		}
		src := model.Source{
			Kind:              model.SourceKind(sc.Kind),
			Name:              sc.Name,
			Path:              sc.Path,
			Enabled:           sc.Enabled == nil || *sc.Enabled,
			Rule:              rule,
			ScanDeletedVideos: sc.ScanDeletedVideos,
			FavoriteID:        sc.FavoriteID,
			UploaderID:        sc.UploaderID,
			UseDynamicAPI:     sc.UseDynamicAPI,
			CollectionKind:    model.CollectionKind(sc.CollectionKind),
			CollectionMID:     sc.CollectionMID,
			CollectionSID:     sc.CollectionSID,
		}
		out = append(out, src)
	}
	return out, nil
}
