package webapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"designflow/pkg/activity"
	"designflow/pkg/config"
	"designflow/pkg/proto"
	"designflow/pkg/workflow"
)

func testServer(t *testing.T) *httptest.Server {
	t.Helper()
	cfg := config.Default()
	cfg.Timeouts.AbandonAfter = 5 * time.Second
	reg := workflow.NewRegistry(cfg, activity.NewMockGateway(), workflow.NewMemStore())
	t.Cleanup(func() { _ = reg.Shutdown(2 * time.Second) })

	srv := NewServer(reg, ":0")
	ts := httptest.NewServer(srv.srv.Handler)
	t.Cleanup(ts.Close)
	return ts
}

func postSignal(t *testing.T, ts *httptest.Server, projectID, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(ts.URL+"/api/projects/"+projectID+"/signals", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func TestHealthz(t *testing.T) {
	ts := testServer(t)
	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestSignalRoundTrip(t *testing.T) {
	ts := testServer(t)

	for _, body := range []string{
		`{"type":"add_photo","data":{"photo_id":"p1","storage_key":"k1","photo_type":"room"}}`,
		`{"type":"add_photo","data":{"photo_id":"p2","storage_key":"k2","photo_type":"room"}}`,
		`{"type":"confirm_photos"}`,
	} {
		resp := postSignal(t, ts, "web-1", body)
		assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	}

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		resp, err := http.Get(ts.URL + "/api/projects/web-1")
		require.NoError(t, err)
		var st workflow.State
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&st))
		_ = resp.Body.Close()
		if st.Step == proto.StepScan {
			assert.Len(t, st.Photos, 2)
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("project never reached SCAN")
}

func TestPostSignal_BadRequests(t *testing.T) {
	ts := testServer(t)

	resp := postSignal(t, ts, "web-2", `{"type":"definitely_not_a_signal"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = postSignal(t, ts, "web-2", `{"type":"add_photo"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "payload-carrying signal without data")

	resp = postSignal(t, ts, "web-2", `not json at all`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = postSignal(t, ts, "web-2", `{"type":"confirm_photos","data":{"photo_id":"p1"}}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "payload-less signal with stray data")

	// An explicit null payload is fine.
	resp = postSignal(t, ts, "web-2", `{"type":"start_over","data":null}`)
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
}

func TestGetProject_NotFound(t *testing.T) {
	ts := testServer(t)
	resp, err := http.Get(ts.URL + "/api/projects/ghost")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
