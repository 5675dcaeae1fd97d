// Package apiclient implements the rate-limited remote API client of
// spec.md §4.7: every method awaits a token from the global bucket, attaches
// credential headers, and on the remote's "too fast"/"auth expired"
// sentinels retries once per spec.md §4.7 and §8 scenario 4. Modeled on
// _examples/ManuGH-xg2g/internal/openwebif/client.go's retry/backoff shape.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/kaorin/bilisync/internal/apierr"
	"github.com/kaorin/bilisync/internal/credential"
	"github.com/kaorin/bilisync/internal/log"
	"github.com/kaorin/bilisync/internal/ratelimit"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
)

const maxErrBody = 8 * 1024

var tracer = otel.Tracer("bilisync/apiclient")

// envelope is the remote's standard {"code":...,"message":...,"data":...}
// response shape.
type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// Client issues rate-limited, credentialed calls to the remote video
// platform. Cover/stream byte transfers use Download, which bypasses the
// bucket but respects a separate per-host connection cap, per spec.md §4.4.
type Client struct {
	http         *http.Client
	downloadHTTP *http.Client
	baseURL      string
	bucket       *ratelimit.Bucket
	holder       *credential.Holder
	maxRetries   int
}

// Options configures Client construction.
type Options struct {
	BaseURL                 string
	Bucket                  *ratelimit.Bucket
	Holder                  *credential.Holder
	ConnectTimeout          time.Duration
	ReadIdleTimeout         time.Duration
	DownloadMaxConnsPerHost int
}

// New builds a Client. The JSON http.Client and the download http.Client are
// deliberately separate so cover/stream transfers never contend with API
// transport connection limits.
func New(opts Options) *Client {
	jsonTransport := otelhttp.NewTransport(&http.Transport{
		MaxConnsPerHost: 8,
	})
	downloadTransport := otelhttp.NewTransport(&http.Transport{
		MaxConnsPerHost: max(opts.DownloadMaxConnsPerHost, 4),
	})

	readTimeout := opts.ReadIdleTimeout
	if readTimeout == 0 {
		readTimeout = 30 * time.Second
	}

	return &Client{
		http:       &http.Client{Transport: jsonTransport, Timeout: readTimeout},
		downloadHTTP: &http.Client{Transport: downloadTransport},
		baseURL:    opts.BaseURL,
		bucket:     opts.Bucket,
		holder:     opts.Holder,
		maxRetries: 1,
	}
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// doJSON performs one rate-limited, credentialed GET and decodes the
// envelope into out, implementing the retry-once-on-pushback and
// retry-once-on-auth-expiry rules of spec.md §4.7.
func (c *Client) doJSON(ctx context.Context, path string, query map[string]string, out any) error {
	ctx, span := tracer.Start(ctx, "apiclient."+path)
	defer span.End()

	if err := c.bucket.Wait(ctx); err != nil {
		return fmt.Errorf("apiclient: rate limit wait: %w", err)
	}

	err := c.attempt(ctx, path, query, out)
	if apierr.IsRateLimited(err) {
		log.FromContext(ctx).Warn().Str("path", path).Msg("remote pushback, waiting out bucket window and retrying once")
		if werr := c.bucket.WaitWindow(ctx); werr != nil {
			return werr
		}
		err = c.attempt(ctx, path, query, out)
	} else if apierr.IsAuthExpired(err) && c.holder != nil {
		log.FromContext(ctx).Warn().Str("path", path).Msg("auth expired, refreshing credential and retrying once")
		if _, rerr := c.holder.Refresh(ctx); rerr != nil {
			return fmt.Errorf("apiclient: credential refresh failed: %w", rerr)
		}
		err = c.attempt(ctx, path, query, out)
	}
	return err
}

func (c *Client) attempt(ctx context.Context, path string, query map[string]string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("apiclient: build request: %w", err)
	}
	q := req.URL.Query()
	for k, v := range query {
		q.Set(k, v)
	}
	req.URL.RawQuery = q.Encode()

	if c.holder != nil {
		for k, v := range c.holder.Headers() {
			req.Header.Set(k, v)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("apiclient: request %s: %w", path, err)
	}
	defer func() {
		_, _ = io.CopyN(io.Discard, resp.Body, 4096)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrBody))
		return apierr.NewRemoteError(resp.StatusCode, string(body))
	}

	var env envelope
	if derr := json.NewDecoder(resp.Body).Decode(&env); derr != nil {
		return fmt.Errorf("apiclient: decode envelope for %s: %w", path, derr)
	}
	if env.Code != 0 {
		return apierr.NewRemoteError(env.Code, env.Message)
	}
	if out != nil && len(env.Data) > 0 {
		if derr := json.Unmarshal(env.Data, out); derr != nil {
			return fmt.Errorf("apiclient: decode data for %s: %w", path, derr)
		}
	}
	return nil
}

// Download fetches an arbitrary byte payload (cover image, video/audio
// track, subtitle file) bypassing the JSON rate bucket entirely, per
// spec.md §4.4: "cover-image and video/audio-stream downloads bypass this
// bucket but respect a separate per-host connection cap."
func (c *Client) Download(ctx context.Context, url string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	if c.holder != nil {
		for k, v := range c.holder.Headers() {
			req.Header.Set(k, v)
		}
	}
	resp, err := c.downloadHTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("apiclient: download %s: %w", url, err)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrBody))
		_ = resp.Body.Close()
		return nil, apierr.NewRemoteError(resp.StatusCode, string(body))
	}
	return resp.Body, nil
}

// ProbeLatency issues a lightweight HEAD request, used by the stream
// analyzer's cdn_sorting probe (spec.md §4.5). It deliberately does not
// consult the rate bucket: it is a connectivity probe, not an API call.
func (c *Client) ProbeLatency(ctx context.Context, url string) (time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return 0, err
	}
	start := time.Now()
	resp, err := c.downloadHTTP.Do(req)
	if err != nil {
		return 0, err
	}
	_ = resp.Body.Close()
	return time.Since(start), nil
}

// ListFavorites lists one page of a favorite folder (newest first).
func (c *Client) ListFavorites(ctx context.Context, fid int64, page int) ([]VideoDescriptor, bool, error) {
	var data struct {
		Medias  []rawMedia `json:"medias"`
		HasMore bool       `json:"has_more"`
	}
	err := c.doJSON(ctx, "/x/v3/fav/resource/list", map[string]string{
		"media_id": fmt.Sprintf("%d", fid),
		"pn":       fmt.Sprintf("%d", page),
		"ps":       "20",
	}, &data)
	if err != nil {
		return nil, false, err
	}
	return mediasToDescriptors(data.Medias), data.HasMore, nil
}

// ListSubmissionsStable uses the stable, large-page submissions endpoint.
func (c *Client) ListSubmissionsStable(ctx context.Context, uploaderID int64, page int) ([]VideoDescriptor, bool, error) {
	var data struct {
		List struct {
			Vlist []rawMedia `json:"vlist"`
		} `json:"list"`
		Page struct {
			Count int `json:"count"`
			PSize int `json:"pSize"`
		} `json:"page"`
	}
	err := c.doJSON(ctx, "/x/space/wbi/arc/search", map[string]string{
		"mid": fmt.Sprintf("%d", uploaderID),
		"pn":  fmt.Sprintf("%d", page),
		"ps":  "30",
	}, &data)
	if err != nil {
		return nil, false, err
	}
	hasMore := page*data.Page.PSize < data.Page.Count
	return mediasToDescriptors(data.List.Vlist), hasMore, nil
}

// ListSubmissionsDynamic uses the 12-per-page dynamic feed backend, which
// surfaces items only visible through the dynamic feed (spec.md §4.2).
func (c *Client) ListSubmissionsDynamic(ctx context.Context, uploaderID int64, offset string) ([]VideoDescriptor, string, bool, error) {
	var data struct {
		Items       []rawDynamicItem `json:"items"`
		HasMore     bool             `json:"has_more"`
		NextOffset  string           `json:"offset"`
	}
	err := c.doJSON(ctx, "/x/polymer/web-dynamic/v1/feed/space", map[string]string{
		"host_mid": fmt.Sprintf("%d", uploaderID),
		"offset":   offset,
	}, &data)
	if err != nil {
		return nil, "", false, err
	}
	out := make([]VideoDescriptor, 0, len(data.Items))
	for _, it := range data.Items {
		if it.Video == nil {
			continue
		}
		out = append(out, it.Video.toDescriptor())
	}
	return out, data.NextOffset, data.HasMore, nil
}

// ListSeasonVideos lists the videos of a season or series collection.
func (c *Client) ListSeasonVideos(ctx context.Context, mid, sid int64, page int) ([]VideoDescriptor, bool, error) {
	var data struct {
		Archives []rawMedia `json:"archives"`
		Page     struct {
			PageSize int `json:"page_size"`
			Total    int `json:"total"`
		} `json:"page"`
	}
	err := c.doJSON(ctx, "/x/polymer/space/seasons_archives_list", map[string]string{
		"mid":      fmt.Sprintf("%d", mid),
		"season_id": fmt.Sprintf("%d", sid),
		"page_num": fmt.Sprintf("%d", page),
	}, &data)
	if err != nil {
		return nil, false, err
	}
	hasMore := page*data.Page.PageSize < data.Page.Total
	return mediasToDescriptors(data.Archives), hasMore, nil
}

// ListWatchLater lists the entire watch-later queue (no early-stop
// pagination shape per spec.md §4.2: "whatever the remote returns").
func (c *Client) ListWatchLater(ctx context.Context) ([]VideoDescriptor, error) {
	var data struct {
		List []rawMedia `json:"list"`
	}
	if err := c.doJSON(ctx, "/x/v2/history/toview", nil, &data); err != nil {
		return nil, err
	}
	return mediasToDescriptors(data.List), nil
}

// GetVideoInfo fetches container-level metadata for one video.
func (c *Client) GetVideoInfo(ctx context.Context, bvid string) (VideoDescriptor, error) {
	var m rawMedia
	err := c.doJSON(ctx, "/x/web-interface/view", map[string]string{"bvid": bvid}, &m)
	if err != nil {
		return VideoDescriptor{}, err
	}
	return m.toDescriptor(), nil
}

// GetPageList fetches the sub-page list for one video.
func (c *Client) GetPageList(ctx context.Context, bvid string) ([]PageInfo, error) {
	var raw []struct {
		CID      int64  `json:"cid"`
		Page     int    `json:"page"`
		Part     string `json:"part"`
		Duration int64  `json:"duration"`
		FirstFrame string `json:"first_frame"`
	}
	if err := c.doJSON(ctx, "/x/player/pagelist", map[string]string{"bvid": bvid}, &raw); err != nil {
		return nil, err
	}
	out := make([]PageInfo, 0, len(raw))
	for _, p := range raw {
		out = append(out, PageInfo{
			PID:      p.Page,
			CID:      p.CID,
			Name:     p.Part,
			Duration: time.Duration(p.Duration) * time.Second,
			CoverURL: p.FirstFrame,
		})
	}
	return out, nil
}

// GetPlayableStreams fetches the DASH-style manifest for one page.
func (c *Client) GetPlayableStreams(ctx context.Context, bvid string, cid int64) (StreamManifest, error) {
	var raw rawPlayURL
	err := c.doJSON(ctx, "/x/player/wbi/playurl", map[string]string{
		"bvid": bvid,
		"cid":  fmt.Sprintf("%d", cid),
		"fnval": "4048",
	}, &raw)
	if err != nil {
		return StreamManifest{}, err
	}
	return raw.toManifest(), nil
}

// GetSubtitleIndex fetches the list of available subtitle tracks.
func (c *Client) GetSubtitleIndex(ctx context.Context, bvid string, cid int64) ([]SubtitleTrack, error) {
	var data struct {
		Subtitle struct {
			List []struct {
				Lan        string `json:"lan"`
				SubtitleURL string `json:"subtitle_url"`
			} `json:"list"`
		} `json:"subtitle"`
	}
	err := c.doJSON(ctx, "/x/player/v2", map[string]string{
		"bvid": bvid,
		"cid":  fmt.Sprintf("%d", cid),
	}, &data)
	if err != nil {
		return nil, err
	}
	out := make([]SubtitleTrack, 0, len(data.Subtitle.List))
	for _, s := range data.Subtitle.List {
		out = append(out, SubtitleTrack{Language: s.Lan, URL: s.SubtitleURL})
	}
	return out, nil
}

// GetCommentStream fetches the remote's binary comment (danmaku) payload.
func (c *Client) GetCommentStream(ctx context.Context, cid int64) ([]byte, error) {
	if err := c.bucket.Wait(ctx); err != nil {
		return nil, err
	}
	rc, err := c.Download(ctx, fmt.Sprintf("%s/x/v1/dm/list.so?oid=%d", c.baseURL, cid))
	if err != nil {
		return nil, err
	}
	defer func() { _ = rc.Close() }()
	buf := &bytes.Buffer{}
	if _, err := io.Copy(buf, rc); err != nil {
		return nil, fmt.Errorf("apiclient: read comment stream: %w", err)
	}
	return buf.Bytes(), nil
}
