package server

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jamespfennell/gtfsgo/aggregate"
	"github.com/jamespfennell/gtfsgo/export"
	"github.com/jamespfennell/gtfsgo/features"
	"github.com/jamespfennell/gtfsgo/internal/testutil"
	geojson "github.com/paulmach/go.geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newServer(t *testing.T, options Options) *httptest.Server {
	static := testutil.MustParse(t, testutil.NewZipBuilderWithDefaults())
	a, err := aggregate.New(static, aggregate.DefaultOptions())
	require.NoError(t, err)
	handler, err := New(export.Result{
		Stops:            features.ReadStops(static, false),
		AggregatedRoutes: a.ReadRouteFrequency(),
		Relations:        a.ReadStopRelations(),
	}, options)
	require.NoError(t, err)
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return server
}

func get(t *testing.T, url string, header http.Header) (*http.Response, []byte) {
	req, err := http.NewRequest(http.MethodGet, url, nil)
	require.NoError(t, err)
	for k, v := range header {
		req.Header[k] = v
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, b
}

func TestServer(t *testing.T) {
	server := newServer(t, Options{})

	resp, b := get(t, server.URL+"/"+export.StopsFile, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/geo+json", resp.Header.Get("Content-Type"))
	fc, err := geojson.UnmarshalFeatureCollection(b)
	require.NoError(t, err)
	assert.Len(t, fc.Features, 2)

	resp, b = get(t, server.URL+"/"+export.RelationsFile, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "stop_id,stop_name,similar_stop_id,similar_stop_name\nstop_1,Stop 1,stop_1,Stop 1\nstop_2,Stop 2,stop_2,Stop 2\n", string(b))

	resp, _ = get(t, server.URL+"/"+export.RoutesFile, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, b = get(t, server.URL+"/healthz", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", string(b))
}

func TestServer_CORS(t *testing.T) {
	server := newServer(t, Options{AllowedOrigins: []string{"http://localhost:5173"}})

	resp, _ := get(t, server.URL+"/"+export.AggregatedRoutesFile, http.Header{"Origin": {"http://localhost:5173"}})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "http://localhost:5173", resp.Header.Get("Access-Control-Allow-Origin"))

	resp, _ = get(t, server.URL+"/"+export.AggregatedRoutesFile, http.Header{"Origin": {"http://elsewhere.example"}})
	assert.Empty(t, resp.Header.Get("Access-Control-Allow-Origin"))
}
