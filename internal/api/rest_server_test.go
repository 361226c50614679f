package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annel0/voxelgate/internal/network"
	"github.com/annel0/voxelgate/internal/protocol"
	"github.com/annel0/voxelgate/internal/registry"
	"github.com/annel0/voxelgate/internal/vec"
	"github.com/annel0/voxelgate/internal/world"
)

type fakeServer struct {
	conns int
}

func (f *fakeServer) StatusDocument(context.Context) network.StatusDocument {
	return network.StatusDocument{
		Version:     network.StatusVersion{Name: protocol.Default().VersionName(), Protocol: protocol.Default().Version()},
		Players:     network.StatusPlayers{Max: 20, Online: f.conns},
		Description: protocol.Plain("Админ"),
	}
}

func (f *fakeServer) Connections() int { return f.conns }

func newTestAPI(t *testing.T) (*RestServer, *world.World) {
	t.Helper()
	w := world.New(world.Options{})
	pig, ok := registry.Default().EntityType("pig")
	require.True(t, ok)
	w.PutEntity(context.Background(), &world.Entity{UUID: network.OfflineUUID("pig"), Type: pig, Position: vec.Vec3Float{X: 1, Y: 64, Z: 1}})

	rs := NewRestServer(Config{
		Server:   &fakeServer{conns: 3},
		World:    w,
		Registry: prometheus.NewRegistry(),
	})
	return rs, w
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHealth(t *testing.T) {
	rs, _ := newTestAPI(t)
	rec := get(t, rs.Handler(), "/health")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Trace-Id"), "Каждый ответ несёт trace-id")

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 3, resp.Connections)
	assert.Equal(t, 1, resp.Entities)
	assert.Positive(t, resp.Process.Goroutines)
	assert.Positive(t, resp.Process.MemoryMB)
}

func TestStatus(t *testing.T) {
	rs, _ := newTestAPI(t)
	rec := get(t, rs.Handler(), "/status")
	require.Equal(t, http.StatusOK, rec.Code)

	var doc network.StatusDocument
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
	assert.Equal(t, int32(767), doc.Version.Protocol)
	assert.Equal(t, 20, doc.Players.Max)
	assert.Equal(t, 3, doc.Players.Online)
	assert.Equal(t, "Админ", doc.Description.String())
}

func TestMetricsEndpoint(t *testing.T) {
	rs, _ := newTestAPI(t)
	get(t, rs.Handler(), "/health")
	get(t, rs.Handler(), "/nowhere")

	rec := get(t, rs.Handler(), "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	text := string(body)

	assert.Contains(t, text, `admin_api_http_request_duration_seconds_count{method="GET",path="/health",status="200"} 1`)
	assert.Contains(t, text, `admin_api_http_request_errors_total{method="GET",path="unmatched",status="404"} 1`)
	assert.False(t, strings.Contains(text, `path="/nowhere"`), "Сырые пути не попадают в метки")
}

func TestProcessSnapshot(t *testing.T) {
	pm := NewProcessMetrics()
	st := pm.Snapshot()
	assert.GreaterOrEqual(t, st.UptimeSeconds, int64(0))
	assert.GreaterOrEqual(t, st.CPUPercent, 0.0)
	assert.Positive(t, st.Goroutines)
}

func TestStartStop(t *testing.T) {
	rs := NewRestServer(Config{Port: 0, Server: &fakeServer{}, Registry: prometheus.NewRegistry()})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	// Не запущенный сервер останавливается без ошибки
	assert.NoError(t, rs.Stop(ctx))
}
