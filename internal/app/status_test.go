package app

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/dprs_gateway/internal/dprs"
	"github.com/relabs-tech/dprs_gateway/internal/metrics"
	"github.com/relabs-tech/dprs_gateway/internal/station"
)

func TestStatusRouter(t *testing.T) {
	m := metrics.New()
	m.LineRead()
	m.Parsed(dprs.Positioned)
	m.Forwarded(station.Report{ID: "7M4MON", ReceivedAt: time.Now().Add(-time.Hour)})

	srv := httptest.NewServer(newStatusRouter(m))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/api/status")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var st metrics.Status
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&st))
	assert.Equal(t, uint64(1), st.Lines)
	assert.Equal(t, uint64(1), st.Forwarded)
	require.NotNil(t, st.LastStation)
	assert.Equal(t, "7M4MON", st.LastStation.ID)
	assert.Equal(t, "1 hour ago", st.LastHeard)

	resp, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
