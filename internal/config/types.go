// Package config loads bilisyncd's human-editable YAML document (spec.md
// §6 "Configuration") and resolves it into the typed options every other
// package consumes, modeled on the teacher's internal/config/types.go +
// loader.go + snapshot.go split: an untyped FileConfig mirrors the YAML
// shape, a Loader applies file/env precedence and defaults, and
// BuildSnapshot resolves the validated FileConfig into the concrete option
// structs (streamsel.FilterOption, danmaku.Option, artifact.SkipOption,
// orchestrator.Options, credential.Bundle) the rest of the daemon needs.
package config

// FileConfig is the YAML document shape (spec.md §6's recognized options).
type FileConfig struct {
	Version string `yaml:"version,omitempty"`

	BindAddress string `yaml:"bind_address,omitempty"`
	AuthToken   string `yaml:"auth_token,omitempty"`
	Interval    int    `yaml:"interval,omitempty"` // seconds, min 60

	// APIBaseURL is the remote platform's API origin; overridable in tests
	// to point the client at an httptest.Server.
	APIBaseURL string `yaml:"api_base_url,omitempty"`

	// DataDir holds the SQLite database and the task-history ring buffer;
	// both are implementation details spec.md leaves unspecified.
	DataDir         string `yaml:"data_dir,omitempty"`
	LogLevel        string `yaml:"log_level,omitempty"`
	HistoryCapacity int    `yaml:"history_capacity,omitempty"`

	Telemetry TelemetryConfig `yaml:"telemetry,omitempty"`

	VideoName string `yaml:"video_name,omitempty"`
	PageName  string `yaml:"page_name,omitempty"`
	UpperPath string `yaml:"upper_path,omitempty"`

	NFOTimeType string `yaml:"nfo_time_type,omitempty"` // "favtime" | "pubtime"
	TimeFormat  string `yaml:"time_format,omitempty"`

	Credential CredentialConfig `yaml:"credential,omitempty"`

	FilterOption    FilterOptionConfig    `yaml:"filter_option,omitempty"`
	DanmakuOption   DanmakuOptionConfig   `yaml:"danmaku_option,omitempty"`
	SkipOption      SkipOptionConfig      `yaml:"skip_option,omitempty"`
	ConcurrentLimit ConcurrentLimitConfig `yaml:"concurrent_limit,omitempty"`

	CDNSorting bool `yaml:"cdn_sorting,omitempty"`

	Notify NotifyConfig `yaml:"notify,omitempty"`

	Sources []SourceConfig `yaml:"sources,omitempty"`
}

// NotifyConfig configures the optional cycle-completion sinks (spec.md §2,
// [NOTIFIER FAN-OUT]); the log sink is always present regardless of this
// section.
type NotifyConfig struct {
	WebhookURL string `yaml:"webhook_url,omitempty"`
	SlackURL   string `yaml:"slack_webhook_url,omitempty"`
}

// TelemetryConfig mirrors internal/telemetry.Config; tracing is opt-in and
// off by default so a bare daemon never dials an unconfigured collector.
type TelemetryConfig struct {
	Enabled      bool    `yaml:"enabled,omitempty"`
	ExporterType string  `yaml:"exporter_type,omitempty"` // "grpc" | "http"
	Endpoint     string  `yaml:"endpoint,omitempty"`
	SamplingRate float64 `yaml:"sampling_rate,omitempty"`
	Environment  string  `yaml:"environment,omitempty"`
}

// CredentialConfig mirrors spec.md §6's "five opaque strings for the
// remote auth".
type CredentialConfig struct {
	SESSDATA   string `yaml:"sessdata,omitempty"`
	BiliJCT    string `yaml:"bili_jct,omitempty"`
	DedeUserID string `yaml:"dede_user_id,omitempty"`
	AccessKey  string `yaml:"access_key,omitempty"`
	RefreshTok string `yaml:"refresh_token,omitempty"`
}

// FilterOptionConfig mirrors spec.md §4.5's selection bounds.
type FilterOptionConfig struct {
	VideoMinQuality int      `yaml:"video_min_quality,omitempty"`
	VideoMaxQuality int      `yaml:"video_max_quality,omitempty"`
	AudioMinQuality int      `yaml:"audio_min_quality,omitempty"`
	AudioMaxQuality int      `yaml:"audio_max_quality,omitempty"`
	NoDolbyVideo    bool     `yaml:"no_dolby_video,omitempty"`
	NoDolbyAudio    bool     `yaml:"no_dolby_audio,omitempty"`
	NoHDR           bool     `yaml:"no_hdr,omitempty"`
	NoHiRes         bool     `yaml:"no_hires,omitempty"`
	Codecs          []string `yaml:"codecs,omitempty"`
	CDNSorting      bool     `yaml:"cdn_sorting,omitempty"`
}

// DanmakuOptionConfig mirrors spec.md §4.4 step 4's overlay parameters.
type DanmakuOptionConfig struct {
	Font        string  `yaml:"font,omitempty"`
	FontSize    int     `yaml:"font_size,omitempty"`
	ScrollRatio float64 `yaml:"scroll_ratio,omitempty"`
	FixedRatio  float64 `yaml:"fixed_ratio,omitempty"`
	LaneHeight  int     `yaml:"lane_height,omitempty"`
	FloatingCap float64 `yaml:"floating_cap,omitempty"`
	BottomCap   float64 `yaml:"bottom_cap,omitempty"`
	Opacity     float64 `yaml:"opacity,omitempty"`
	Outline     float64 `yaml:"outline,omitempty"`
	Bold        bool    `yaml:"bold,omitempty"`
	TimeOffset  float64 `yaml:"time_offset,omitempty"`
	Width       int     `yaml:"width,omitempty"`
	Height      int     `yaml:"height,omitempty"`
	PoolSize    int     `yaml:"pool_size,omitempty"`
}

// SkipOptionConfig collapses a step to permanent-ignore per spec.md §6.
type SkipOptionConfig struct {
	NoPoster   bool `yaml:"no_poster,omitempty"`
	NoVideoNFO bool `yaml:"no_video_nfo,omitempty"`
	NoUpper    bool `yaml:"no_upper,omitempty"`
	NoDanmaku  bool `yaml:"no_danmaku,omitempty"`
	NoSubtitle bool `yaml:"no_subtitle,omitempty"`
}

// ConcurrentLimitConfig mirrors spec.md §6's concurrent_limit tree.
type ConcurrentLimitConfig struct {
	Video int `yaml:"video,omitempty"`
	Page  int `yaml:"page,omitempty"`

	RateLimit struct {
		Limit    int `yaml:"limit,omitempty"`
		Duration int `yaml:"duration,omitempty"` // seconds
	} `yaml:"rate_limit,omitempty"`

	Download struct {
		Enable      bool  `yaml:"enable,omitempty"`
		Concurrency int   `yaml:"concurrency,omitempty"`
		Threshold   int64 `yaml:"threshold,omitempty"` // bytes
	} `yaml:"download,omitempty"`

	MaxRetries int `yaml:"max_retries,omitempty"`
}

// SourceConfig is one configured subscription (spec.md §3 VideoSource);
// only the fields relevant to Kind need be set.
type SourceConfig struct {
	Kind    string `yaml:"kind"` // favorite | submission | collection | watch_later
	Name    string `yaml:"name,omitempty"`
	Path    string `yaml:"path"`
	Enabled *bool  `yaml:"enabled,omitempty"`

	ScanDeletedVideos bool `yaml:"scan_deleted_videos,omitempty"`

	FavoriteID     int64  `yaml:"favorite_id,omitempty"`
	UploaderID     int64  `yaml:"uploader_id,omitempty"`
	UseDynamicAPI  bool   `yaml:"use_dynamic_api,omitempty"`
	CollectionKind string `yaml:"collection_kind,omitempty"` // season | series
	CollectionMID  int64  `yaml:"collection_mid,omitempty"`
	CollectionSID  int64  `yaml:"collection_sid,omitempty"`

	// Rule is left as a raw YAML-decodable tree and converted by
	// ruleFromConfig; filter.Rule's DNF shape round-trips through YAML the
	// same way it already round-trips through JSON in internal/store.
	Rule []FilterGroupConfig `yaml:"rule,omitempty"`
}

// FilterGroupConfig mirrors one AND-group of filter.Rule (spec.md §4.6).
type FilterGroupConfig struct {
	Atoms []FilterAtomConfig `yaml:"atoms"`
}

// FilterAtomConfig mirrors one filter.Atom. Value is a plain string in the
// document; between bounds are written "lo,hi". Numeric/time fields are
// parsed into the int64/[2]int64 shapes filter.Atom.Value expects.
type FilterAtomConfig struct {
	Field   string `yaml:"field,omitempty"`
	Op      string `yaml:"op,omitempty"`
	Value   string `yaml:"value,omitempty"`
	Negated bool   `yaml:"negated,omitempty"`
}
