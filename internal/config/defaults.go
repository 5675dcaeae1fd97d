package config

// Default returns the document written on first run (spec.md §6's
// "created with defaults on first run").
func Default() FileConfig {
	cfg := FileConfig{
		Version:         "1",
		BindAddress:     "127.0.0.1:8787",
		APIBaseURL:      "https://api.bilibili.com",
		Interval:        300,
		DataDir:         "./data",
		LogLevel:        "info",
		HistoryCapacity: 500,
		VideoName:       "{{.Title}} [{{.BVID}}]",
		PageName:        "{{.PTitle}}",
		UpperPath:       "uploaders",
		NFOTimeType:     "pubtime",
		TimeFormat:      "2006-01-02 15:04:05",
	}
	cfg.DanmakuOption = DanmakuOptionConfig{
		Font:        "sans-serif",
		FontSize:    38,
		ScrollRatio: 1.0,
		FixedRatio:  1.0,
		LaneHeight:  40,
		FloatingCap: 1.0,
		BottomCap:   1.0,
		Opacity:     1.0,
		Width:       1920,
		Height:      1080,
		PoolSize:    4,
	}
	cfg.ConcurrentLimit.Video = 2
	cfg.ConcurrentLimit.Page = 4
	cfg.ConcurrentLimit.RateLimit.Limit = 5
	cfg.ConcurrentLimit.RateLimit.Duration = 1
	cfg.ConcurrentLimit.MaxRetries = 3
	return cfg
}
