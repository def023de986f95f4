package main

import (
	"context"
	"fmt"
	"net/http"
	"net/http/pprof"
	"net/url"
	"os"
	"reflect"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/aukilabs/go-tooling/pkg/cli"
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/events"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/go-tooling/pkg/metrics"
	"github.com/aukilabs/zonegraph/featureflag"
	zhttp "github.com/aukilabs/zonegraph/http"
	"github.com/aukilabs/zonegraph/models"
	"github.com/aukilabs/zonegraph/smoketest"
	zwebsocket "github.com/aukilabs/zonegraph/websocket"
	"github.com/aukilabs/zonegraph/zone"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/segmentio/encoding/json"
	"golang.org/x/net/websocket"
)

var (
	// The Zonegraph version number. Set at build.
	version = "v0.1.0"

	infoGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name:        "zonegraph_info",
		Help:        "Zonegraph information.",
		ConstLabels: prometheus.Labels{"version": version},
	})
)

// This will effectively disable obfuscation of the config struct. Without it, the keys would get obfuscated causing the cli package to generate garbled command-line options.
// https://github.com/burrowers/garble/issues/403
var _ = reflect.TypeOf(config{})

type config struct {
	Addr               string        `cli:""        env:"ZONEGRAPH_ADDR"                 help:"Listening address for client connections."`
	AdminAddr          string        `cli:""        env:"ZONEGRAPH_ADMIN_ADDR"           help:"Admin listening address."`
	PublicEndpoint     string        `cli:""        env:"ZONEGRAPH_PUBLIC_ENDPOINT"      help:"The public endpoint where this Zonegraph server is reachable."`
	SceneFile          string        `cli:""        env:"ZONEGRAPH_SCENE_FILE"           help:"The JSON file describing the scene to load at startup."`
	LogLevel           string        `cli:""        env:"ZONEGRAPH_LOG_LEVEL"            help:"Log level (debug|info|warning|error)."`
	LogIndent          bool          `cli:""        env:"ZONEGRAPH_LOG_INDENT"           help:"Indent logs."`
	ClientIdleTimeout  time.Duration `cli:",hidden" env:"ZONEGRAPH_CLIENT_IDLE_TIMEOUT"  help:"Time until an idle client will be disconnected"`
	FrameDuration      time.Duration `cli:",hidden" env:"ZONEGRAPH_FRAME_DURATION"       help:"The duration of a scene frame."`
	LogSummaryInterval time.Duration `cli:",hidden" env:"ZONEGRAPH_LOG_SUMMARY_INTERVAL" help:"The duration between each log summary by connection."`
	Scope              scopeConfig   `cli:",hidden" env:"-"                              help:"Scoping configuration."`
	Zones              zonesConfig   `cli:",hidden" env:"-"                              help:"Zone registry configuration."`
	Events             eventsConfig  `cli:",hidden" env:"-"                              help:"Event pusher configuration."`
	FeatureFlags       []string      `cli:",hidden" env:"ZONEGRAPH_FEATURE_FLAGS"        help:"Comma separated feature flags"`
	Version            bool          `cli:""        env:"-"                              help:"Show version."`
	Help               bool          `cli:""        env:"-"                              help:"Show help."`
}

type scopeConfig struct {
	Distance    float64 `cli:",hidden" env:"ZONEGRAPH_SCOPE_DISTANCE"     help:"The scope distance used when a client viewpoint does not specify one."`
	MaxDistance float64 `cli:",hidden" env:"ZONEGRAPH_SCOPE_MAX_DISTANCE" help:"The largest scope distance a client can ask for."`
}

type zonesConfig struct {
	GridResolution   float64 `cli:",hidden" env:"ZONEGRAPH_GRID_RESOLUTION"      help:"The size of a broad phase grid cell."`
	GridCells        uint    `cli:",hidden" env:"ZONEGRAPH_GRID_CELLS"           help:"The initial number of grid cells per side."`
	RefPoolBlockSize int     `cli:",hidden" env:"ZONEGRAPH_REF_POOL_BLOCK_SIZE"  help:"The number of zone refs allocated at once."`
	MaxRefPoolBlocks int     `cli:",hidden" env:"ZONEGRAPH_MAX_REF_POOL_BLOCKS"  help:"The maximum number of zone ref blocks. 0 means unlimited."`
	MaxObjectZones   int     `cli:",hidden" env:"ZONEGRAPH_MAX_OBJECT_ZONES"     help:"The maximum number of zones an object can be in."`
}

type eventsConfig struct {
	Endpoint      string        `cli:",hidden" env:"ZONEGRAPH_EVENTS_ENDPOINT"       help:"Endpoint to where events are pushed."`
	FlushInterval time.Duration `cli:",hidden" env:"ZONEGRAPH_EVENTS_FLUSH_INTERVAL" help:"The duration between each event flush."`
	BatchSize     int           `cli:",hidden" env:"ZONEGRAPH_EVENTS_BATCH_SIZE"     help:"The maximum number of events sent at once."`
	QueueSize     int           `cli:",hidden" env:"ZONEGRAPH_EVENTS_QUEUE_SIZE"     help:"The size of the queue where events are stored."`
}

func main() {
	conf := config{
		Addr:               ":4000",
		AdminAddr:          ":18190",
		PublicEndpoint:     "http://localhost:4000",
		LogLevel:           logs.InfoLevel.String(),
		ClientIdleTimeout:  time.Minute * 5,
		FrameDuration:      time.Millisecond * 15,
		LogSummaryInterval: time.Minute,
		Scope: scopeConfig{
			Distance:    zwebsocket.DefaultScopeDistance,
			MaxDistance: 5000,
		},
		Zones: zonesConfig{
			GridResolution:   models.DefaultGridResolution,
			GridCells:        models.DefaultGridCells,
			RefPoolBlockSize: zone.DefaultRefPoolBlockSize,
			MaxObjectZones:   zone.DefaultMaxObjectZones,
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
		Help("Starts Zonegraph server.").
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
			SDKType:          "zonegraph",
			SDKVersionFamily: version,
		}
		logs.SetLogger(eventsLogger.Log)
	}

	flags := featureflag.New(conf.FeatureFlags)
	zoneOpts := zone.Options{
		RefPoolBlockSize: conf.Zones.RefPoolBlockSize,
		MaxRefPoolBlocks: conf.Zones.MaxRefPoolBlocks,
		MaxObjectZones:   conf.Zones.MaxObjectZones,
		Strict:           flags.IsSet(featureflag.FlagStrictZoneInvariants),
	}
	flags.IfSet(featureflag.FlagVerifyZoneLinks, func() {
		zoneOpts.VerifyLinks = true
	})

	scene, err := models.NewScene(models.SceneOptions{
		FrameDuration:  conf.FrameDuration,
		GridResolution: conf.Zones.GridResolution,
		GridCells:      conf.Zones.GridCells,
		Zones:          zoneOpts,
	})
	if err != nil {
		logs.Fatal(errors.New("creating scene failed").Wrap(err))
	}
	defer scene.Close()

	if conf.SceneFile != "" {
		if err := loadScene(scene, conf.SceneFile); err != nil {
			logs.Fatal(err)
		}
	}

	var ready atomic.Bool
	readinessCheck := func() bool {
		return ready.Load()
	}

	go scene.StartDispatchFrames()
	ready.Store(true)

	var service http.ServeMux
	service.Handle("/health", zhttp.HandleWithCORS(http.HandlerFunc(zhttp.HandleHealthCheck)))
	service.Handle("/version", zhttp.HandleWithCORS(http.HandlerFunc(zhttp.HandleVersion(version))))
	service.Handle("/ready", zhttp.HandleWithCORS(http.HandlerFunc(zhttp.HandleReadyCheck(readinessCheck))))

	service.Handle("/", zhttp.HandleWithCORS(websocket.Server{
		Handshake: zhttp.VerifyClientID(zwebsocket.HeaderClientID),
		Handler: func(conn *websocket.Conn) {
			defer conn.Close()

			var h zwebsocket.Handler = &zwebsocket.ScopeHandler{
				Scene:             scene,
				ClientIdleTimeout: conf.ClientIdleTimeout,
				ScopeDistance:     conf.Scope.Distance,
				MaxScopeDistance:  conf.Scope.MaxDistance,
			}
			h = zwebsocket.HandlerWithLogs(h, conf.LogSummaryInterval)
			h = zwebsocket.HandlerWithMetrics(h, conf.PublicEndpoint)
			defer h.Close()

			zwebsocket.Handle(ctx, conn, h)
		},
	}))

	var admin http.ServeMux
	admin.Handle("/metrics", promhttp.Handler())
	admin.HandleFunc("/health", zhttp.HandleHealthCheck)
	admin.HandleFunc("/ready", zhttp.HandleReadyCheck(readinessCheck))
	admin.HandleFunc("/debug/zones", zhttp.HandleDebugZones(scene))
	admin.HandleFunc("/debug/render", zhttp.HandleDebugRender(scene, conf.Scope.Distance))
	admin.HandleFunc("/smoke-test", smoketest.HandleSmokeTest(ctx, smoketest.Options{
		Endpoint:  conf.PublicEndpoint,
		UserAgent: fmt.Sprintf("Zonegraph %s", version),
		SendResult: func(_ context.Context, res smoketest.Results) error {
			logs.WithTag("smoke_test", res).Info("smoke test done")
			return nil
		},
	}))
	admin.HandleFunc("/debug/pprof/", pprof.Index)
	admin.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	admin.HandleFunc("/debug/pprof/profile", pprof.Profile)
	admin.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	admin.HandleFunc("/debug/pprof/trace", pprof.Trace)
	admin.Handle("/debug/pprof/goroutine", pprof.Handler("goroutine"))
	admin.Handle("/debug/pprof/heap", pprof.Handler("heap"))
	admin.Handle("/debug/pprof/threadcreate", pprof.Handler("threadcreate"))
	admin.Handle("/debug/pprof/block", pprof.Handler("block"))

	logs.WithTag("version", version).
		WithTag("log_level", conf.LogLevel).
		WithTag("endpoint", conf.PublicEndpoint).
		WithTag("scene_uuid", scene.UUID).
		WithTag("scene_objects", scene.ObjectCount()).
		WithTag("feature_flags", flags.List()).
		Info("starting zonegraph server")

	zhttp.ListenAndServe(ctx,
		&http.Server{Addr: conf.Addr, Handler: metrics.HTTPHandler(&service,
			zhttp.MetricsPathFormatter)},
		&http.Server{Addr: conf.AdminAddr, Handler: &admin},
	)
}

func loadScene(scene *models.Scene, filename string) error {
	f, err := models.LoadSceneFile(filename)
	if err != nil {
		return err
	}

	if err := f.Populate(scene); err != nil {
		return errors.New("populating scene failed").
			WithTag("filename", filename).
			Wrap(err)
	}
	return nil
}

func validateConfig(conf config) error {
	if _, err := url.ParseRequestURI(conf.PublicEndpoint); err != nil {
		return errors.New("invalid public endpoint").Wrap(err)
	}

	if conf.FrameDuration <= 0 {
		return errors.New("frame duration must be positive").
			WithTag("frame_duration", conf.FrameDuration)
	}

	if conf.Scope.Distance <= 0 {
		return errors.New("scope distance must be positive").
			WithTag("scope_distance", conf.Scope.Distance)
	}

	if conf.Scope.MaxDistance > 0 && conf.Scope.Distance > conf.Scope.MaxDistance {
		return errors.New("scope distance is above the max scope distance").
			WithTag("scope_distance", conf.Scope.Distance).
			WithTag("max_scope_distance", conf.Scope.MaxDistance)
	}

	if conf.Zones.GridResolution <= 0 {
		return errors.New("grid resolution must be positive").
			WithTag("grid_resolution", conf.Zones.GridResolution)
	}
	return nil
}
