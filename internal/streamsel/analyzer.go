// Package streamsel implements the stream analyzer of spec.md §4.5: given a
// remote playable-stream manifest and a source's filter_option, select the
// best video and audio track.
package streamsel

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/kaorin/bilisync/internal/apiclient"
)

// ErrNoMatchingStream is returned when either track set is empty after
// filtering; spec.md §4.5 step 5 forbids falling back silently.
var ErrNoMatchingStream = errors.New("streamsel: no matching stream")

// FilterOption mirrors spec.md §6 filter_option: quality bounds and
// exclusion flags.
type FilterOption struct {
	VideoMinQuality apiclient.Quality
	VideoMaxQuality apiclient.Quality
	AudioMinQuality apiclient.Quality
	AudioMaxQuality apiclient.Quality

	NoDolbyVideo bool
	NoDolbyAudio bool
	NoHDR        bool
	NoHiRes      bool

	// Codecs is the preference order; the first entry present among the
	// remaining candidates wins ties (spec.md §4.5 step 3).
	Codecs []apiclient.Codec

	CDNSorting bool
}

// Selection is the chosen (video_track, audio_track) pair.
type Selection struct {
	Video apiclient.VideoTrack
	Audio apiclient.AudioTrack
}

// LatencyProber issues the lightweight HEAD probe used by cdn_sorting.
type LatencyProber interface {
	ProbeLatency(ctx context.Context, url string) (time.Duration, error)
}

// Analyzer selects tracks from a manifest per a FilterOption.
type Analyzer struct {
	Prober LatencyProber
}

// New constructs an Analyzer. prober may be nil if cdn_sorting is never used.
func New(prober LatencyProber) *Analyzer {
	return &Analyzer{Prober: prober}
}

// Select runs the five-step algorithm of spec.md §4.5.
func (a *Analyzer) Select(ctx context.Context, manifest apiclient.StreamManifest, opt FilterOption) (Selection, error) {
	videoCandidates := filterVideoTracks(manifest.VideoTracks, opt)
	audioCandidates := filterAudioTracks(manifest.AudioTracks, opt)

	if len(videoCandidates) == 0 || len(audioCandidates) == 0 {
		return Selection{}, ErrNoMatchingStream
	}

	bestVideo := pickBestVideo(videoCandidates, opt.Codecs)
	bestAudio := pickBestAudio(audioCandidates)

	if opt.CDNSorting && a.Prober != nil {
		bestVideo.BackupURLs = a.sortedByLatency(ctx, bestVideo.URL, bestVideo.BackupURLs)
		bestAudio.BackupURLs = a.sortedByLatency(ctx, bestAudio.URL, bestAudio.BackupURLs)
	}

	return Selection{Video: bestVideo, Audio: bestAudio}, nil
}

func filterVideoTracks(tracks []apiclient.VideoTrack, opt FilterOption) []apiclient.VideoTrack {
	out := make([]apiclient.VideoTrack, 0, len(tracks))
	for _, t := range tracks {
		if opt.NoDolbyVideo && t.DolbyVideo {
			continue
		}
		if opt.NoHDR && t.HDR {
			continue
		}
		if opt.VideoMinQuality != 0 && t.Quality < opt.VideoMinQuality {
			continue
		}
		if opt.VideoMaxQuality != 0 && t.Quality > opt.VideoMaxQuality {
			continue
		}
		out = append(out, t)
	}
	return out
}

func filterAudioTracks(tracks []apiclient.AudioTrack, opt FilterOption) []apiclient.AudioTrack {
	out := make([]apiclient.AudioTrack, 0, len(tracks))
	for _, t := range tracks {
		if opt.NoDolbyAudio && t.DolbyAudio {
			continue
		}
		if opt.NoHiRes && t.HiRes {
			continue
		}
		if opt.AudioMinQuality != 0 && t.Quality < opt.AudioMinQuality {
			continue
		}
		if opt.AudioMaxQuality != 0 && t.Quality > opt.AudioMaxQuality {
			continue
		}
		out = append(out, t)
	}
	return out
}

// codecRank returns the index of codec in the preference list, or
// len(prefs) if absent (lowest priority, but still eligible — codec
// preference only breaks ties among equal-quality tracks).
func codecRank(codec apiclient.Codec, prefs []apiclient.Codec) int {
	for i, p := range prefs {
		if p == codec {
			return i
		}
	}
	return len(prefs)
}

func pickBestVideo(tracks []apiclient.VideoTrack, codecPrefs []apiclient.Codec) apiclient.VideoTrack {
	sort.SliceStable(tracks, func(i, j int) bool {
		if tracks[i].Quality != tracks[j].Quality {
			return tracks[i].Quality > tracks[j].Quality
		}
		ri, rj := codecRank(tracks[i].Codec, codecPrefs), codecRank(tracks[j].Codec, codecPrefs)
		if ri != rj {
			return ri < rj
		}
		return tracks[i].Bandwidth > tracks[j].Bandwidth
	})
	return tracks[0]
}

func pickBestAudio(tracks []apiclient.AudioTrack) apiclient.AudioTrack {
	sort.SliceStable(tracks, func(i, j int) bool {
		if tracks[i].Quality != tracks[j].Quality {
			return tracks[i].Quality > tracks[j].Quality
		}
		return tracks[i].Bandwidth > tracks[j].Bandwidth
	})
	return tracks[0]
}

type probedURL struct {
	url     string
	latency time.Duration
}

// sortedByLatency probes primary+backups and returns all URLs (primary
// first is not guaranteed; the fastest-observed URL comes first) ordered by
// observed round-trip time. Probe failures sort last, not dropped, so the
// downloader still has a fallback chain.
func (a *Analyzer) sortedByLatency(ctx context.Context, primary string, backups []string) []string {
	all := append([]string{primary}, backups...)
	probed := make([]probedURL, len(all))
	for i, u := range all {
		lat, err := a.Prober.ProbeLatency(ctx, u)
		if err != nil {
			lat = time.Hour // sort failures last
		}
		probed[i] = probedURL{url: u, latency: lat}
	}
	sort.SliceStable(probed, func(i, j int) bool { return probed[i].latency < probed[j].latency })

	out := make([]string, len(probed))
	for i, p := range probed {
		out[i] = p.url
	}
	return out
}
