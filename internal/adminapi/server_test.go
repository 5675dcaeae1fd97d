package adminapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kaorin/bilisync/internal/scheduler"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTrigger struct {
	triggered int
	snap      scheduler.Snapshot
}

func (f *fakeTrigger) TriggerNow()               { f.triggered++ }
func (f *fakeTrigger) Status() scheduler.Snapshot { return f.snap }

func TestTriggerRequiresToken(t *testing.T) {
	ft := &fakeTrigger{}
	srv := New(ft, "secret")
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/trigger", nil)

	srv.Routes().ServeHTTP(rr, req)

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, 0, ft.triggered)
}

func TestTriggerWithValidTokenCallsTriggerNow(t *testing.T) {
	ft := &fakeTrigger{}
	srv := New(ft, "secret")
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/trigger", nil)
	req.Header.Set("Authorization", "Bearer secret")

	srv.Routes().ServeHTTP(rr, req)

	require.Equal(t, http.StatusAccepted, rr.Code)
	assert.Equal(t, 1, ft.triggered)
}

func TestStatusReturnsSnapshotJSON(t *testing.T) {
	ft := &fakeTrigger{snap: scheduler.Snapshot{IsRunning: true, LastCycleID: "c1"}}
	srv := New(ft, "secret")
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	req.Header.Set("Authorization", "Bearer secret")

	srv.Routes().ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	var got scheduler.Snapshot
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&got))
	assert.True(t, got.IsRunning)
	assert.Equal(t, "c1", got.LastCycleID)
}

func TestWrongTokenRejected(t *testing.T) {
	ft := &fakeTrigger{}
	srv := New(ft, "secret")
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	req.Header.Set("Authorization", "Bearer wrong")

	srv.Routes().ServeHTTP(rr, req)

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}
