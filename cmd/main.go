package main

import (
	"context"
	"fmt"
	"net/http"
	"net/http/pprof"
	"net/url"
	"os"
	"reflect"
	"sync"
	"syscall"
	"time"

	"github.com/aukilabs/go-tooling/pkg/cli"
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/events"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/go-tooling/pkg/metrics"
	"github.com/aukilabs/quadcull/camera"
	"github.com/aukilabs/quadcull/engine"
	"github.com/aukilabs/quadcull/featureflag"
	quadcullhttp "github.com/aukilabs/quadcull/http"
	"github.com/aukilabs/quadcull/smoketest"
	qwebsocket "github.com/aukilabs/quadcull/websocket"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/segmentio/encoding/json"
	"golang.org/x/net/websocket"
)

var (
	// The quadcull version number. Set at build.
	version = "v0.1.0"

	infoGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name:        "quadcull_info",
		Help:        "Quadcull information.",
		ConstLabels: prometheus.Labels{"version": version},
	})
)

// This will effectively disable obfuscation of the config struct. Without it, the keys would get obfuscated causing the cli package to generate garbled command-line options.
// https://github.com/burrowers/garble/issues/403
var _ = reflect.TypeOf(config{})

type config struct {
	Addr               string        `cli:""        env:"QUADCULL_ADDR"                 help:"Listening address for observer connections."`
	AdminAddr          string        `cli:""        env:"QUADCULL_ADMIN_ADDR"           help:"Admin listening address."`
	PublicEndpoint     string        `cli:""        env:"QUADCULL_PUBLIC_ENDPOINT"      help:"The public endpoint where this server is reachable."`
	Token              string        `cli:""        env:"QUADCULL_TOKEN"                help:"The token observers must present. Observers are not authenticated when empty."`
	LogLevel           string        `cli:""        env:"QUADCULL_LOG_LEVEL"            help:"Log level (debug|info|warning|error)."`
	LogIndent          bool          `cli:""        env:"QUADCULL_LOG_INDENT"           help:"Indent logs."`
	ClientIdleTimeout  time.Duration `cli:",hidden" env:"QUADCULL_CLIENT_IDLE_TIMEOUT"  help:"Time until an idle observer will be disconnected."`
	LogSummaryInterval time.Duration `cli:",hidden" env:"QUADCULL_LOG_SUMMARY_INTERVAL" help:"The duration between each log summary by connection and by engine."`
	World              worldConfig   `cli:",hidden" env:"-"                             help:"World configuration."`
	Camera             cameraConfig  `cli:",hidden" env:"-"                             help:"Camera configuration."`
	Scene              sceneConfig   `cli:",hidden" env:"-"                             help:"Scene configuration."`
	Events             eventsConfig  `cli:",hidden" env:"-"                             help:"Event pusher configuration."`
	FeatureFlags       []string      `cli:",hidden" env:"QUADCULL_FEATURE_FLAGS"        help:"Comma separated feature flags"`
	Version            bool          `cli:""        env:"-"                             help:"Show version."`
	Help               bool          `cli:""        env:"-"                             help:"Show help."`
}

type worldConfig struct {
	Size          float64       `cli:",hidden" env:"QUADCULL_WORLD_SIZE"     help:"The size of the square world."`
	MaxDepth      int           `cli:",hidden" env:"QUADCULL_MAX_DEPTH"      help:"The depth of the spatial index."`
	FrameDuration time.Duration `cli:",hidden" env:"QUADCULL_FRAME_DURATION" help:"The duration of a frame."`
}

type cameraConfig struct {
	EyeX    float64 `cli:",hidden" env:"QUADCULL_CAMERA_EYE_X"   help:"The initial camera east position."`
	EyeY    float64 `cli:",hidden" env:"QUADCULL_CAMERA_EYE_Y"   help:"The initial camera height."`
	EyeZ    float64 `cli:",hidden" env:"QUADCULL_CAMERA_EYE_Z"   help:"The initial camera north position."`
	Heading float64 `cli:",hidden" env:"QUADCULL_CAMERA_HEADING" help:"The initial camera heading, in degrees."`
	Pitch   float64 `cli:",hidden" env:"QUADCULL_CAMERA_PITCH"   help:"The initial camera pitch, in degrees."`
	FOV     float64 `cli:",hidden" env:"QUADCULL_CAMERA_FOV"     help:"The camera vertical field of view, in degrees."`
	Aspect  float64 `cli:",hidden" env:"QUADCULL_CAMERA_ASPECT"  help:"The camera aspect ratio."`
	Near    float64 `cli:",hidden" env:"QUADCULL_CAMERA_NEAR"    help:"The camera near plane distance."`
	Far     float64 `cli:",hidden" env:"QUADCULL_CAMERA_FAR"     help:"The camera far plane distance."`
}

type sceneConfig struct {
	Seed        int64   `cli:",hidden" env:"QUADCULL_SCENE_SEED"         help:"The seed of the generated scene."`
	Cacti       int     `cli:",hidden" env:"QUADCULL_SCENE_CACTI"        help:"The number of cacti."`
	Trees       int     `cli:",hidden" env:"QUADCULL_SCENE_TREES"        help:"The number of trees."`
	Opponents   int     `cli:",hidden" env:"QUADCULL_SCENE_OPPONENTS"    help:"The number of opponents driving around the track."`
	TrackRadius float64 `cli:",hidden" env:"QUADCULL_SCENE_TRACK_RADIUS" help:"The radius of the track. Defaults to 35% of the world size when zero."`
}

type eventsConfig struct {
	Endpoint      string        `cli:",hidden" env:"QUADCULL_EVENTS_ENDPOINT"       help:"Endpoint to where events are pushed. Events are not pushed when empty."`
	FlushInterval time.Duration `cli:",hidden" env:"QUADCULL_EVENTS_FLUSH_INTERVAL" help:"The duration between each event flush."`
	BatchSize     int           `cli:",hidden" env:"QUADCULL_EVENTS_BATCH_SIZE"     help:"The maximum number of events sent at once."`
	QueueSize     int           `cli:",hidden" env:"QUADCULL_EVENTS_QUEUE_SIZE"     help:"The size of the queue where events are stored."`
}

func main() {
	defaultEngine := engine.DefaultConfig()
	defaultScene := engine.DefaultSceneOptions(defaultEngine.WorldSize)

	conf := config{
		Addr:               ":4000",
		AdminAddr:          ":18190",
		PublicEndpoint:     "http://localhost:4000",
		LogLevel:           logs.InfoLevel.String(),
		ClientIdleTimeout:  time.Minute * 5,
		LogSummaryInterval: time.Minute,
		World: worldConfig{
			Size:          float64(defaultEngine.WorldSize),
			MaxDepth:      defaultEngine.MaxDepth,
			FrameDuration: defaultEngine.FrameDuration,
		},
		Camera: cameraConfig{
			EyeX:   float64(defaultEngine.Camera.Eye.X()),
			EyeY:   float64(defaultEngine.Camera.Eye.Y()),
			EyeZ:   float64(defaultEngine.Camera.Eye.Z()),
			FOV:    45,
			Aspect: float64(defaultEngine.Camera.Aspect),
			Near:   float64(defaultEngine.Camera.Near),
			Far:    float64(defaultEngine.Camera.Far),
		},
		Scene: sceneConfig{
			Seed:      defaultScene.Seed,
			Cacti:     defaultScene.Cacti,
			Trees:     defaultScene.Trees,
			Opponents: defaultScene.Opponents,
		},
		Events: eventsConfig{
			FlushInterval: events.DefaultFlushInterval,
			BatchSize:     events.DefaultBatchSize,
			QueueSize:     events.DefaultQueueSize,
		},
	}

	// set the information gauge to 1, useful for SUM query
	infoGauge.Set(1)

	ctx, cancel := cli.ContextWithSignals(context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)
	defer cancel()

	cli.Register().
		Help("Starts a quadcull server.").
		Options(&conf)
	cli.Load()

	if conf.Version {
		fmt.Println(version)
		os.Exit(0)
	}

	if err := validateConfig(conf); err != nil {
		logs.Fatal(err)
	}

	logs.SetLevel(logs.ParseLevel(conf.LogLevel))
	logs.Encoder = json.Marshal
	if conf.LogIndent {
		logs.Encoder = func(v any) ([]byte, error) {
			return json.MarshalIndent(v, "", "  ")
		}
	}

	errors.Encoder = json.Marshal

	if conf.Events.Endpoint != "" {
		eventsPusher := events.Pusher{
			Endpoint:      conf.Events.Endpoint,
			FlushInterval: conf.Events.FlushInterval,
			BatchSize:     conf.Events.BatchSize,
			QueueSize:     conf.Events.QueueSize,
			Transport:     metrics.HTTPTransport(http.DefaultTransport),
		}
		go eventsPusher.Start()
		defer eventsPusher.Close()

		eventsLogger := events.Logger{
			Pusher:           &eventsPusher,
			SDKType:          "quadcull",
			SDKVersionFamily: version,
		}
		logs.SetLogger(eventsLogger.Log)
	}

	featureFlags := featureflag.New(conf.FeatureFlags)

	e, err := engine.New(engineConfig(conf, featureFlags))
	if err != nil {
		logs.Fatal(errors.New("creating engine failed").Wrap(err))
	}
	defer e.Close()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		if err := e.Run(ctx); err != nil && err != context.Canceled {
			logs.Warn(errors.New("engine stopped").Wrap(err))
		}
	}()
	go func() {
		defer wg.Done()
		if err := engine.LoadScene(ctx, e, sceneOptions(conf)); err != nil {
			logs.Warn(errors.New("loading scene failed").Wrap(err))
		}
	}()

	service := newServiceMux(ctx, conf, e, featureFlags)

	var admin http.ServeMux
	admin.Handle("/metrics", promhttp.Handler())
	admin.HandleFunc("/health", quadcullhttp.HandleHealthCheck)
	admin.HandleFunc("/debug/pprof/", pprof.Index)
	admin.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	admin.HandleFunc("/debug/pprof/profile", pprof.Profile)
	admin.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	admin.HandleFunc("/debug/pprof/trace", pprof.Trace)
	admin.Handle("/debug/pprof/goroutine", pprof.Handler("goroutine"))
	admin.Handle("/debug/pprof/heap", pprof.Handler("heap"))
	admin.Handle("/debug/pprof/threadcreate", pprof.Handler("threadcreate"))
	admin.Handle("/debug/pprof/block", pprof.Handler("block"))
	admin.HandleFunc("/ready", quadcullhttp.HandleReadyCheck(e.Ready))

	logs.WithTag("version", version).
		WithTag("log_level", conf.LogLevel).
		WithTag("endpoint", conf.PublicEndpoint).
		WithTag("engine_id", e.ID).
		WithTag("feature_flags", featureFlags.List()).
		Info("starting quadcull server")

	quadcullhttp.ListenAndServe(ctx,
		&http.Server{Addr: conf.Addr, Handler: metrics.HTTPHandler(service,
			quadcullhttp.MetricsPathFormatter)},
		&http.Server{Addr: conf.AdminAddr, Handler: &admin},
	)

	wg.Wait()
}

// newServiceMux returns the routes of the public server. Engine state and
// the smoke test require the auth token when one is configured.
func newServiceMux(ctx context.Context, conf config, e *engine.Engine, featureFlags featureflag.FeatureFlag) *http.ServeMux {
	withToken := func(h http.HandlerFunc) http.Handler {
		return http.HandlerFunc(quadcullhttp.VerifyAuthTokenHandler(conf.Token, h))
	}

	service := http.NewServeMux()
	service.Handle("/health", quadcullhttp.HandleWithCORS(http.HandlerFunc(quadcullhttp.HandleHealthCheck)))
	service.Handle("/version", quadcullhttp.HandleWithCORS(quadcullhttp.HandleVersion(version)))
	service.Handle("/ready", quadcullhttp.HandleWithCORS(quadcullhttp.HandleReadyCheck(e.Ready)))
	service.Handle("/debug/quadtree", quadcullhttp.HandleWithCORS(withToken(quadcullhttp.HandleDebugQuadtree(e))))
	service.Handle("/debug/frame", quadcullhttp.HandleWithCORS(withToken(quadcullhttp.HandleDebugFrame(e))))
	service.Handle("/smoke-test", withToken(smoketest.HandleSmokeTest(ctx)))

	service.Handle("/", quadcullhttp.HandleWithCORS(websocket.Server{
		Handshake: quadcullhttp.VerifyAuthToken(conf.Token),
		Handler: func(conn *websocket.Conn) {
			defer conn.Close()

			var h qwebsocket.Handler = &qwebsocket.ObserverHandler{
				ClientIdleTimeout: conf.ClientIdleTimeout,
				Engine:            e,
				FeatureFlags:      featureFlags,
			}
			h = qwebsocket.HandlerWithLogs(h, conf.LogSummaryInterval)
			h = qwebsocket.HandlerWithMetrics(h, conf.PublicEndpoint)
			defer h.Close()

			qwebsocket.Handle(ctx, conn, h)
		},
	}))
	return service
}

func engineConfig(conf config, featureFlags featureflag.FeatureFlag) engine.Config {
	return engine.Config{
		WorldSize:       float32(conf.World.Size),
		MaxDepth:        conf.World.MaxDepth,
		FrameDuration:   conf.World.FrameDuration,
		SummaryInterval: conf.LogSummaryInterval,
		Camera: camera.Config{
			Eye:     mgl32.Vec3{float32(conf.Camera.EyeX), float32(conf.Camera.EyeY), float32(conf.Camera.EyeZ)},
			Heading: mgl32.DegToRad(float32(conf.Camera.Heading)),
			Pitch:   mgl32.DegToRad(float32(conf.Camera.Pitch)),
			FOV:     mgl32.DegToRad(float32(conf.Camera.FOV)),
			Aspect:  float32(conf.Camera.Aspect),
			Near:    float32(conf.Camera.Near),
			Far:     float32(conf.Camera.Far),
		},
		FeatureFlags: featureFlags,
	}
}

func sceneOptions(conf config) engine.SceneOptions {
	opts := engine.DefaultSceneOptions(float32(conf.World.Size))
	opts.Seed = conf.Scene.Seed
	opts.Cacti = conf.Scene.Cacti
	opts.Trees = conf.Scene.Trees
	opts.Opponents = conf.Scene.Opponents
	if conf.Scene.TrackRadius > 0 {
		opts.TrackRadius = float32(conf.Scene.TrackRadius)
	}
	return opts
}

func validateConfig(conf config) error {
	if _, err := url.ParseRequestURI(conf.PublicEndpoint); err != nil {
		return errors.New("invalid public endpoint").Wrap(err)
	}

	if conf.World.Size <= 0 {
		return errors.New("world size must be positive").
			WithTag("world_size", conf.World.Size)
	}

	if conf.ClientIdleTimeout <= 0 {
		return errors.New("client idle timeout must be positive").
			WithTag("client_idle_timeout", conf.ClientIdleTimeout)
	}

	if conf.LogSummaryInterval <= 0 {
		return errors.New("log summary interval must be positive").
			WithTag("log_summary_interval", conf.LogSummaryInterval)
	}

	if conf.Scene.Cacti < 0 || conf.Scene.Trees < 0 || conf.Scene.Opponents < 0 {
		return errors.New("scene object counts must not be negative")
	}

	return nil
}
