package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kaorin/bilisync/internal/apiclient"
	"github.com/kaorin/bilisync/internal/config"
	xglog "github.com/kaorin/bilisync/internal/log"
	"github.com/kaorin/bilisync/internal/model"
	"github.com/kaorin/bilisync/internal/notify"
	"github.com/kaorin/bilisync/internal/source"
)

func TestAdapterForSourceSelectsByKind(t *testing.T) {
	client := apiclient.New(apiclient.Options{BaseURL: "http://example.invalid"})

	cases := []struct {
		kind model.SourceKind
		want any
	}{
		{model.KindFavorite, &source.FavoriteAdapter{}},
		{model.KindSubmission, &source.SubmissionAdapter{}},
		{model.KindCollection, &source.CollectionAdapter{}},
		{model.KindWatchLater, &source.WatchLaterAdapter{}},
	}
	for _, tc := range cases {
		adapter := adapterForSource(client, model.Source{Kind: tc.kind})
		require.NotNil(t, adapter, "kind %s", tc.kind)
		assert.IsType(t, tc.want, adapter)
	}
}

func TestAdapterForSourceUnknownKindReturnsNil(t *testing.T) {
	client := apiclient.New(apiclient.Options{BaseURL: "http://example.invalid"})
	assert.Nil(t, adapterForSource(client, model.Source{Kind: "bogus"}))
}

func TestBuildNotifyFanoutAlwaysIncludesLogSink(t *testing.T) {
	var buf bytes.Buffer
	xglog.Configure(xglog.Config{Output: &buf})
	defer xglog.Configure(xglog.Config{})

	fanout := buildNotifyFanout(config.AppConfig{})
	require.NotNil(t, fanout)
	fanout.Notify(context.Background(), notify.Summary{CycleID: "cycle-1"})
	assert.Contains(t, buf.String(), `"cycle_id":"cycle-1"`)
	assert.Contains(t, buf.String(), "cycle complete")
}

func TestBuildNotifyFanoutAddsConfiguredSinks(t *testing.T) {
	var mu sync.Mutex
	var paths []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		paths = append(paths, r.URL.Path)
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	app := config.AppConfig{
		Notify: config.NotifyConfig{
			WebhookURL: srv.URL + "/webhook",
			SlackURL:   srv.URL + "/slack",
		},
	}
	fanout := buildNotifyFanout(app)
	require.NotNil(t, fanout)
	fanout.Notify(context.Background(), notify.Summary{CycleID: "cycle-1"})

	mu.Lock()
	defer mu.Unlock()
	assert.ElementsMatch(t, []string{"/webhook", "/slack"}, paths)
}
