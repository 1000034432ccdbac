package web

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tosih/secu3-ltft/pkg/config"
	"github.com/tosih/secu3-ltft/pkg/ltft"
	"github.com/tosih/secu3-ltft/pkg/metrics"
	"github.com/tosih/secu3-ltft/pkg/sim"
)

func newTestServer(t *testing.T) (*Monitor, *httptest.Server, *metrics.Collector) {
	t.Helper()
	cal := config.DefaultCalibration()
	reg := prometheus.NewRegistry()
	c := metrics.NewCollector(reg)
	m := &Monitor{}
	srv := httptest.NewServer(NewServer(":0", m, reg, cal.RPMAxis(), cal.LoadAxis(), nil).Handler())
	t.Cleanup(srv.Close)
	return m, srv, c
}

func getJSON(t *testing.T, url string, v any) int {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusOK {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
	}
	return resp.StatusCode
}

func TestStatusBeforeFirstSnapshot(t *testing.T) {
	_, srv, _ := newTestServer(t)
	var out StatusResponse
	assert.Equal(t, http.StatusServiceUnavailable, getJSON(t, srv.URL+"/api/status", &out))
}

func TestStatusEncodesNames(t *testing.T) {
	m, srv, _ := newTestServer(t)
	m.Publish(sim.Snapshot{Ticks: 7, Status: ltft.Status{Active: true, Suspended: ltft.ReasonIdle}})

	resp, err := http.Get(srv.URL + "/api/status")
	require.NoError(t, err)
	defer resp.Body.Close()
	var raw map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&raw))

	assert.Equal(t, 7.0, raw["ticks"])
	status := raw["status"].(map[string]any)
	assert.Equal(t, "idle", status["Suspended"])
	ch := status["Channels"].([]any)[0].(map[string]any)
	assert.Equal(t, "wait_for_hit", ch["State"])
}

func TestMapAndCompare(t *testing.T) {
	m, srv, _ := newTestServer(t)
	var first, later sim.Snapshot
	later.Ticks = 100
	later.Trim[0].Set(1, 2, 51)
	m.Publish(first)
	m.Publish(later)

	var mr MapResponse
	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/api/map/1", &mr))
	assert.Equal(t, "LTFT Map 1", mr.Name)
	assert.Equal(t, int16(900), mr.RPM[0])
	assert.InDelta(t, 9.96, mr.Data[1][2], 0.01)
	assert.Equal(t, 100, mr.Ticks)

	var cr CompareResponse
	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/api/compare/1", &cr))
	assert.InDelta(t, 9.96, cr.Diff[1][2], 0.01)
	assert.Equal(t, 0.0, cr.Diff[0][0])

	assert.Equal(t, http.StatusBadRequest, getJSON(t, srv.URL+"/api/map/9", &mr))
}

func TestMetricsEndpoint(t *testing.T) {
	_, srv, c := newTestServer(t)
	c.Corrected(0, 4)

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	buf := new(strings.Builder)
	_, err = io.Copy(buf, resp.Body)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), `secu3_ltft_corrections_total{channel="1"} 1`)
}
