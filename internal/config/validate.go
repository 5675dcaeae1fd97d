package config

import "fmt"

// Validate enforces spec.md §6's recognized-option constraints. Called
// before a FileConfig is ever turned into a Snapshot, matching the
// teacher's "parse, then validate, then build the effective config" order.
func Validate(cfg FileConfig) error {
	if cfg.BindAddress == "" {
		return fmt.Errorf("config: bind_address is required")
	}
	if cfg.AuthToken == "" {
		return fmt.Errorf("config: auth_token is required")
	}
	if cfg.Interval < 60 {
		return fmt.Errorf("config: interval must be at least 60 seconds, got %d", cfg.Interval)
	}
	if cfg.VideoName == "" {
		return fmt.Errorf("config: video_name is required")
	}
	if cfg.PageName == "" {
		return fmt.Errorf("config: page_name is required")
	}
	switch cfg.NFOTimeType {
	case "", "favtime", "pubtime":
	default:
		return fmt.Errorf("config: nfo_time_type must be favtime or pubtime, got %q", cfg.NFOTimeType)
	}
	if cfg.ConcurrentLimit.Video < 1 {
		return fmt.Errorf("config: concurrent_limit.video must be at least 1")
	}
	if cfg.ConcurrentLimit.Page < 1 {
		return fmt.Errorf("config: concurrent_limit.page must be at least 1")
	}
	if cfg.ConcurrentLimit.Download.Enable && cfg.ConcurrentLimit.Download.Concurrency < 1 {
		return fmt.Errorf("config: concurrent_limit.download.concurrency must be at least 1 when enabled")
	}
	if cfg.DataDir == "" {
		return fmt.Errorf("config: data_dir is required")
	}
	if cfg.APIBaseURL == "" {
		return fmt.Errorf("config: api_base_url is required")
	}
	if cfg.Telemetry.Enabled {
		switch cfg.Telemetry.ExporterType {
		case "grpc", "http":
		default:
			return fmt.Errorf("config: telemetry.exporter_type must be grpc or http when telemetry.enabled is true, got %q", cfg.Telemetry.ExporterType)
		}
		if cfg.Telemetry.Endpoint == "" {
			return fmt.Errorf("config: telemetry.endpoint is required when telemetry.enabled is true")
		}
	}
	for i, src := range cfg.Sources {
		if err := validateSource(src); err != nil {
			return fmt.Errorf("config: sources[%d]: %w", i, err)
		}
	}
	return nil
}

func validateSource(src SourceConfig) error {
	if src.Path == "" {
		return fmt.Errorf("path is required")
	}
	switch src.Kind {
	case "favorite":
		if src.FavoriteID == 0 {
			return fmt.Errorf("favorite_id is required for kind favorite")
		}
	case "submission":
		if src.UploaderID == 0 {
			return fmt.Errorf("uploader_id is required for kind submission")
		}
	case "collection":
		if src.CollectionMID == 0 || src.CollectionSID == 0 {
			return fmt.Errorf("collection_mid and collection_sid are required for kind collection")
		}
		switch src.CollectionKind {
		case "season", "series":
		default:
			return fmt.Errorf("collection_kind must be season or series, got %q", src.CollectionKind)
		}
	case "watch_later":
		// no variant-specific fields
	default:
		return fmt.Errorf("unknown kind %q", src.Kind)
	}
	return nil
}
