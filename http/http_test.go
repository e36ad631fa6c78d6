package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aukilabs/quadcull/engine"
	"github.com/aukilabs/quadcull/models"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/segmentio/encoding/json"
	"github.com/stretchr/testify/require"
	xwebsocket "golang.org/x/net/websocket"
)

func newTestEngine(t *testing.T) *engine.Engine {
	c := engine.DefaultConfig()
	c.WorldSize = 100
	c.MaxDepth = 2
	c.SummaryInterval = 0
	c.Camera.Eye = mgl32.Vec3{50, 10, -20}

	e, err := engine.New(c)
	require.NoError(t, err)
	t.Cleanup(func() { e.Close() })

	require.NoError(t, e.AddObject(models.NewObject("a", "test", mgl32.Vec3{15, 0, 15}, 10, 10)))
	require.NoError(t, e.AddObject(models.NewObject("b", "test", mgl32.Vec3{50, 0, 50}, 10, 10)))
	return e
}

func TestMetricsPathFormatter(t *testing.T) {
	require.Equal(t, "/health", MetricsPathFormatter(http.StatusOK, "/health"))
	require.Empty(t, MetricsPathFormatter(http.StatusNotFound, "/hello"))
	require.Empty(t, MetricsPathFormatter(http.StatusBadRequest, "/hello"))
	require.Empty(t, MetricsPathFormatter(http.StatusUnauthorized, "/smoke-test"))
	require.Empty(t, MetricsPathFormatter(http.StatusMethodNotAllowed, "/hello"))
	require.Empty(t, MetricsPathFormatter(http.StatusMovedPermanently, "/hello"))
}

func TestHandleHealthCheck(t *testing.T) {
	w := httptest.NewRecorder()
	HandleHealthCheck(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, w.Code)
}

func TestHandleReadyCheck(t *testing.T) {
	t.Run("ready", func(t *testing.T) {
		w := httptest.NewRecorder()
		HandleReadyCheck(func() bool { return true })(w, httptest.NewRequest(http.MethodGet, "/ready", nil))
		require.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("not ready", func(t *testing.T) {
		w := httptest.NewRecorder()
		HandleReadyCheck(func() bool { return false })(w, httptest.NewRequest(http.MethodGet, "/ready", nil))
		require.Equal(t, http.StatusServiceUnavailable, w.Code)
	})
}

func TestHandleVersion(t *testing.T) {
	w := httptest.NewRecorder()
	HandleVersion("v1.2.3")(w, httptest.NewRequest(http.MethodGet, "/version", nil))
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "v1.2.3", w.Body.String())
}

func TestHandleDebugQuadtree(t *testing.T) {
	e := newTestEngine(t)

	t.Run("summary", func(t *testing.T) {
		w := httptest.NewRecorder()
		HandleDebugQuadtree(e)(w, httptest.NewRequest(http.MethodGet, "/debug/quadtree", nil))
		require.Equal(t, http.StatusOK, w.Code)
		require.Equal(t, "application/json", w.Header().Get("Content-Type"))

		var info engine.DebugInfo
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &info))
		require.Equal(t, e.ID, info.EngineID)
		require.Equal(t, 21, info.Tree.NodeCount)
		require.Equal(t, 2, info.Tree.ObjectCount)
		require.Empty(t, info.Tree.Occupied)
	})

	t.Run("with nodes", func(t *testing.T) {
		w := httptest.NewRecorder()
		HandleDebugQuadtree(e)(w, httptest.NewRequest(http.MethodGet, "/debug/quadtree?nodes=true", nil))
		require.Equal(t, http.StatusOK, w.Code)

		var info engine.DebugInfo
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &info))
		require.NotEmpty(t, info.Tree.Occupied)
	})

	t.Run("invalid nodes parameter", func(t *testing.T) {
		w := httptest.NewRecorder()
		HandleDebugQuadtree(e)(w, httptest.NewRequest(http.MethodGet, "/debug/quadtree?nodes=maybe", nil))
		require.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestHandleDebugFrame(t *testing.T) {
	e := newTestEngine(t)
	e.Tick(time.Millisecond)

	w := httptest.NewRecorder()
	HandleDebugFrame(e)(w, httptest.NewRequest(http.MethodGet, "/debug/frame", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var frame engine.Frame
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &frame))
	require.Equal(t, uint64(1), frame.Number)
	require.Equal(t, 2, frame.Objects)
}

func TestHandleWithCORS(t *testing.T) {
	h := HandleWithCORS(http.HandlerFunc(HandleHealthCheck))

	t.Run("request", func(t *testing.T) {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
		require.Equal(t, http.StatusOK, w.Code)
		require.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("preflight", func(t *testing.T) {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodOptions, "/health", nil))
		require.Equal(t, http.StatusNoContent, w.Code)
		require.NotEmpty(t, w.Header().Get("Access-Control-Allow-Methods"))
	})
}

func TestVerifyAuthTokenHandler(t *testing.T) {
	h := VerifyAuthTokenHandler("secret", HandleHealthCheck)

	t.Run("bearer token", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/smoke-test", nil)
		r.Header.Set("Authorization", "Bearer secret")

		w := httptest.NewRecorder()
		h(w, r)
		require.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("query token", func(t *testing.T) {
		w := httptest.NewRecorder()
		h(w, httptest.NewRequest(http.MethodGet, "/smoke-test?token=secret", nil))
		require.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("wrong token", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/smoke-test", nil)
		r.Header.Set("Authorization", "Bearer nope")

		w := httptest.NewRecorder()
		h(w, r)
		require.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("missing token", func(t *testing.T) {
		w := httptest.NewRecorder()
		h(w, httptest.NewRequest(http.MethodGet, "/smoke-test", nil))
		require.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("no token configured", func(t *testing.T) {
		w := httptest.NewRecorder()
		VerifyAuthTokenHandler("", HandleHealthCheck)(w, httptest.NewRequest(http.MethodGet, "/smoke-test", nil))
		require.Equal(t, http.StatusOK, w.Code)
	})
}

func TestVerifyAuthToken(t *testing.T) {
	server := httptest.NewServer(xwebsocket.Server{
		Handshake: VerifyAuthToken("secret"),
		Handler: func(conn *xwebsocket.Conn) {
			conn.Close()
		},
	})
	defer server.Close()

	dial := func(token string) error {
		url := strings.ReplaceAll(server.URL, "http://", "ws://")
		if token != "" {
			url += "/?token=" + token
		}

		conn, err := xwebsocket.Dial(url, "", "http://localhost")
		if err == nil {
			conn.Close()
		}
		return err
	}

	require.NoError(t, dial("secret"))
	require.Error(t, dial("nope"))
	require.Error(t, dial(""))
}

func TestListenAndServe(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		defer close(done)
		ListenAndServe(ctx, &http.Server{Addr: "127.0.0.1:0"})
	}()

	cancel()

	select {
	case <-done:
	case <-time.After(time.Second * 5):
		t.Fatal("servers did not stop")
	}
}

func TestListenAndServeStopsWhenServersFail(t *testing.T) {
	done := make(chan struct{})
	go func() {
		defer close(done)
		ListenAndServe(context.Background(), &http.Server{Addr: "invalid-address"})
	}()

	select {
	case <-done:
	case <-time.After(time.Second * 5):
		t.Fatal("ListenAndServe did not return")
	}
}
