package apiclient

import "time"

// VideoDescriptor is what every source adapter yields; it carries enough
// fields for the enumeration stage to upsert a Video row (spec.md §4.2,
// §4.3) without the adapter needing to know about package model.
type VideoDescriptor struct {
	RemoteBVID string
	RemoteAID  int64
	CoverURL   string
	Name       string
	Intro      string
	CTime      time.Time
	PubTime    time.Time
	FavTime    time.Time
	UploaderID int64
	UploaderName string
	Tags       []string
	SinglePage bool
	PageCount  int
}

// PageInfo is one entry of a video's page list (spec.md §4.4 step 5). CID is
// the remote's content ID for this page, required by every page-level
// call (playable streams, comment stream, subtitle index) — distinct from
// PID, which is only the 1-based page ordinal.
type PageInfo struct {
	PID      int
	CID      int64
	Name     string
	Duration time.Duration
	CoverURL string
}

// Quality is the remote's enumerated stream quality tier; higher is better.
type Quality int

// Codec is a normalized codec tag used for the analyzer's preference order.
type Codec string

const (
	CodecAVC  Codec = "avc"
	CodecHEVC Codec = "hevc"
	CodecAV1  Codec = "av1"
)

// VideoTrack is one playable video stream in the remote's manifest.
type VideoTrack struct {
	Quality   Quality
	Codec     Codec
	Bandwidth int64
	URL       string
	BackupURLs []string
	DolbyVideo bool
	HDR        bool
}

// AudioTrack is one playable audio stream in the remote's manifest.
type AudioTrack struct {
	Quality    Quality
	Bandwidth  int64
	URL        string
	BackupURLs []string
	DolbyAudio bool
	HiRes      bool
}

// StreamManifest is the remote's response to GetPlayableStreams.
type StreamManifest struct {
	VideoTracks []VideoTrack
	AudioTracks []AudioTrack
}

// SubtitleTrack is one entry of the remote's subtitle index.
type SubtitleTrack struct {
	Language string
	URL      string
}
