package service

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mosaicnetworks/hyperdag/src/common"
	"github.com/mosaicnetworks/hyperdag/src/metrics"
	"github.com/mosaicnetworks/hyperdag/src/ratelimit"
)

type fakeNode struct{}

func (fakeNode) GetStats() map[string]string {
	return map[string]string{"id": "local", "num_peers": "2"}
}

func (fakeNode) GetPeers() []string {
	return []string{"a", "b"}
}

func newTestService(t *testing.T) (*Service, *ratelimit.Blacklist, *metrics.Metrics) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	bl := ratelimit.NewBlacklist()
	s := NewService("127.0.0.1:0", fakeNode{}, bl, reg, common.NewTestEntry(t, logrus.DebugLevel))
	return s, bl, m
}

func do(t *testing.T, s *Service, method, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestStatsAndPeers(t *testing.T) {
	s, _, _ := newTestService(t)

	rec := do(t, s, http.MethodGet, "/stats")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))

	var stats map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&stats))
	assert.Equal(t, "2", stats["num_peers"])

	rec = do(t, s, http.MethodGet, "/peers")
	require.Equal(t, http.StatusOK, rec.Code)

	var peers []string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&peers))
	assert.Equal(t, []string{"a", "b"}, peers)
}

func TestBlacklist(t *testing.T) {
	s, bl, _ := newTestService(t)
	bl.Add("mallory", "rate limit")

	rec := do(t, s, http.MethodGet, "/blacklist")
	require.Equal(t, http.StatusOK, rec.Code)

	var entries []ratelimit.Entry
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&entries))
	require.Len(t, entries, 1)
	assert.Equal(t, "mallory", entries[0].Peer)
	assert.Equal(t, "rate limit", entries[0].Reason)

	rec = do(t, s, http.MethodGet, "/blacklist/mallory")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.True(t, bl.Contains("mallory"))

	rec = do(t, s, http.MethodDelete, "/blacklist/mallory")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.False(t, bl.Contains("mallory"))

	rec = do(t, s, http.MethodDelete, "/blacklist/mallory")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, s, http.MethodDelete, "/blacklist/")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMetrics(t *testing.T) {
	s, _, m := newTestService(t)
	m.MessagesReceived.Inc()
	m.Dropped(metrics.ReasonOversize)

	rec := do(t, s, http.MethodGet, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.True(t, strings.Contains(body, "messages_received"), body)
	assert.True(t, strings.Contains(body, "messages_dropped"), body)
}
