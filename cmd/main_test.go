package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aukilabs/quadcull/engine"
	"github.com/aukilabs/quadcull/featureflag"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/require"
)

func newTestConfig() config {
	return config{
		PublicEndpoint:     "http://localhost:4000",
		ClientIdleTimeout:  time.Minute,
		LogSummaryInterval: time.Minute,
		World: worldConfig{
			Size:          2000,
			MaxDepth:      7,
			FrameDuration: time.Millisecond * 15,
		},
		Camera: cameraConfig{
			EyeX:    1000,
			EyeY:    10,
			EyeZ:    250,
			Heading: 90,
			FOV:     45,
			Aspect:  4.0 / 3.0,
			Near:    1,
			Far:     100,
		},
		Scene: sceneConfig{
			Seed:  3,
			Cacti: 10,
			Trees: 20,
		},
	}
}

func TestValidateConfig(t *testing.T) {
	require.NoError(t, validateConfig(newTestConfig()))

	t.Run("invalid public endpoint", func(t *testing.T) {
		c := newTestConfig()
		c.PublicEndpoint = "localhost"
		require.Error(t, validateConfig(c))
	})

	t.Run("invalid world size", func(t *testing.T) {
		c := newTestConfig()
		c.World.Size = 0
		require.Error(t, validateConfig(c))
	})

	t.Run("invalid idle timeout", func(t *testing.T) {
		c := newTestConfig()
		c.ClientIdleTimeout = 0
		require.Error(t, validateConfig(c))
	})

	t.Run("negative scene counts", func(t *testing.T) {
		c := newTestConfig()
		c.Scene.Trees = -1
		require.Error(t, validateConfig(c))
	})
}

func TestEngineConfig(t *testing.T) {
	flags := featureflag.New([]string{string(featureflag.FlagDisableObjectDynamics)})
	c := engineConfig(newTestConfig(), flags)

	require.Equal(t, float32(2000), c.WorldSize)
	require.Equal(t, 7, c.MaxDepth)
	require.Equal(t, mgl32.Vec3{1000, 10, 250}, c.Camera.Eye)
	require.InDelta(t, mgl32.DegToRad(90), c.Camera.Heading, 0.0001)
	require.InDelta(t, mgl32.DegToRad(45), c.Camera.FOV, 0.0001)
	require.True(t, c.FeatureFlags.IsSet(featureflag.FlagDisableObjectDynamics))

	e, err := engine.New(c)
	require.NoError(t, err)
	require.NoError(t, e.Close())
}

func TestSceneOptions(t *testing.T) {
	conf := newTestConfig()

	opts := sceneOptions(conf)
	require.Equal(t, int64(3), opts.Seed)
	require.Equal(t, 10, opts.Cacti)
	require.Equal(t, 20, opts.Trees)
	require.Equal(t, engine.DefaultSceneOptions(2000).TrackRadius, opts.TrackRadius)

	conf.Scene.TrackRadius = 300
	require.Equal(t, float32(300), sceneOptions(conf).TrackRadius)
}

func TestServiceMuxAuth(t *testing.T) {
	conf := newTestConfig()
	conf.Token = "secret"
	flags := featureflag.New(nil)

	e, err := engine.New(engineConfig(conf, flags))
	require.NoError(t, err)
	t.Cleanup(func() { e.Close() })

	mux := newServiceMux(context.Background(), conf, e, flags)

	get := func(path, token string) int {
		r := httptest.NewRequest(http.MethodGet, path, nil)
		if token != "" {
			r.Header.Set("Authorization", "Bearer "+token)
		}

		w := httptest.NewRecorder()
		mux.ServeHTTP(w, r)
		return w.Code
	}

	for _, path := range []string{"/debug/quadtree", "/debug/frame", "/smoke-test"} {
		t.Run(path, func(t *testing.T) {
			require.Equal(t, http.StatusUnauthorized, get(path, ""))
			require.Equal(t, http.StatusUnauthorized, get(path, "nope"))
			require.Equal(t, http.StatusOK, get(path, "secret"))
		})
	}

	t.Run("health does not require a token", func(t *testing.T) {
		require.Equal(t, http.StatusOK, get("/health", ""))
	})

	t.Run("no token configured", func(t *testing.T) {
		conf := newTestConfig()
		mux := newServiceMux(context.Background(), conf, e, flags)

		w := httptest.NewRecorder()
		mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/debug/quadtree", nil))
		require.Equal(t, http.StatusOK, w.Code)
	})
}
