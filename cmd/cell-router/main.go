// Package main provides the cell-router daemon: a single cell's routing
// and broadcast fabric process.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/opd-ai/go-cells/pkg/broadcast"
	"github.com/opd-ai/go-cells/pkg/catalog"
	"github.com/opd-ai/go-cells/pkg/cellerrors"
	"github.com/opd-ai/go-cells/pkg/config"
	"github.com/opd-ai/go-cells/pkg/envelope"
	"github.com/opd-ai/go-cells/pkg/health"
	"github.com/opd-ai/go-cells/pkg/httpmetrics"
	"github.com/opd-ai/go-cells/pkg/localhandlers"
	"github.com/opd-ai/go-cells/pkg/logger"
	"github.com/opd-ai/go-cells/pkg/metrics"
	"github.com/opd-ai/go-cells/pkg/periodic"
	"github.com/opd-ai/go-cells/pkg/placement"
	"github.com/opd-ai/go-cells/pkg/restapi"
	"github.com/opd-ai/go-cells/pkg/router"
	"github.com/opd-ai/go-cells/pkg/serviceapi"
	"github.com/opd-ai/go-cells/pkg/topology"
	"github.com/opd-ai/go-cells/pkg/trace"
	"github.com/opd-ai/go-cells/pkg/transport"
)

var (
	version   = "0.1.0-dev"
	buildTime = "unknown"
)

func main() {
	configFile := flag.String("config", "", "Path to configuration file (cell.conf format)")
	cellName := flag.String("cell-name", "", "This cell's full dotted path, e.g. region.az1.cell3")
	logLevel := flag.String("log-level", "", "Log level (debug, info, warn, error)")
	restListen := flag.String("rest-listen", "", "Address for the thin REST adapter, e.g. :8774")
	metricsListen := flag.String("metrics-listen", "", "Address for the health/metrics HTTP server, e.g. :8775")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Parse()

	if *showVersion {
		fmt.Printf("cell-router version %s (built %s)\n", version, buildTime)
		os.Exit(0)
	}

	cfg := config.DefaultConfig()
	if *configFile != "" {
		if err := config.LoadFromFile(*configFile, cfg); err != nil {
			fmt.Fprintf(os.Stderr, "failed to load config file: %v\n", err)
			os.Exit(1)
		}
	}
	if *cellName != "" {
		cfg.CellName = *cellName
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}
	if *restListen != "" {
		cfg.CellsRestListen = *restListen
	}
	if *metricsListen != "" {
		cfg.CellsMetricsListen = *metricsListen
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	level, err := logger.ParseLevel(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid log level: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(level, os.Stdout)

	log.Info("starting cell-router", "version", version, "build_time", buildTime, "cell_name", cfg.CellName)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	if err := run(ctx, cfg, log); err != nil {
		log.Error("application error", "error", err)
		os.Exit(1)
	}

	log.Info("shutdown complete")
}

func run(ctx context.Context, cfg *config.Config, log *logger.Logger) error {
	cat, err := buildCatalog(cfg)
	if err != nil {
		return fmt.Errorf("failed to build catalog: %w", err)
	}

	topo := topology.NewCache(cfg.CellName, cat, log)
	if err := topo.Refresh(ctx); err != nil {
		log.Warn("initial topology refresh failed, continuing with empty topology", "error", err)
	}

	adapter, closeAdapter, err := buildTransport(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("failed to build transport: %w", err)
	}
	defer closeAdapter()

	tracer := trace.NewTracer(cfg.CellName, nil, trace.AlwaysSample())

	bridge := serviceapi.New(cat, map[string]map[string]serviceapi.Method{}, log)

	// routerHandlers is populated below once the Router (and the
	// Placement Forwarder that needs it as a Caller) exist; the Router
	// stores this map by reference, so filling it in before any traffic
	// is served is equivalent to passing it complete at construction.
	routerHandlers := map[string]router.Handler{
		"run_service_api_method": bridge.HandleRunServiceAPIMethod,
	}
	rtr := router.New(topo, adapter, routerHandlers, log)
	rtr.SetTracer(tracer)

	broadcastHandlers := map[string]broadcast.Handler{}
	localhandlers.New(cat, cfg.CellName, log).Register(broadcastHandlers)
	bcast := broadcast.New(topo, adapter, broadcastHandlers, cfg.CellMaxBroadcastHopCount, log)

	forwarder := placement.New(topo, rtr, func(ctx context.Context, requestSpec map[string]interface{}) error {
		return createLocalInstance(ctx, cat, bcast, requestSpec)
	}, log)
	routerHandlers["schedule_run_instance"] = func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
		requestSpec, _ := args["requestSpec"].(map[string]interface{})
		filterProperties, _ := args["filterProperties"].(map[string]interface{})
		return nil, forwarder.ScheduleRunInstance(ctx, requestSpec, filterProperties)
	}

	dispatcher := transport.NewDispatcher(rtr, bcast)
	if err := wireDispatcher(ctx, cfg, adapter, topo, dispatcher); err != nil {
		return fmt.Errorf("failed to wire transport dispatcher: %w", err)
	}

	m := metrics.New()

	runner := periodic.New(log)
	runner.Register("topology_refresh", cfg.CellDBCheckInterval, func(ctx context.Context) error {
		err := topo.Refresh(ctx)
		_, cellCount, refreshErr := topo.Stats()
		m.RecordTopologyRefresh(refreshErr, cellCount)
		return err
	})

	monitor := health.NewMonitor()
	monitor.RegisterChecker(health.NewRouterHealthChecker(func() health.RouterStats {
		return health.RouterStats{
			PendingCalls:  rtr.PendingCalls(),
			OldestPending: rtr.OldestPendingAge(),
		}
	}))
	monitor.RegisterChecker(health.NewTopologyHealthChecker(func() health.TopologyStats {
		lastRefresh, cellCount, refreshErr := topo.Stats()
		return health.TopologyStats{
			LastRefresh:  lastRefresh,
			RefreshAge:   time.Since(lastRefresh),
			CellCount:    cellCount,
			RefreshError: refreshErr,
		}
	}))

	var servers []*http.Server
	if cfg.CellsRestListen != "" {
		restSrv := restapi.New(cat, topo, log)
		httpSrv := &http.Server{Addr: cfg.CellsRestListen, Handler: restSrv.Router()}
		servers = append(servers, httpSrv)
		go func() {
			log.Info("REST adapter listening", "address", cfg.CellsRestListen)
			if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Error("REST adapter stopped", "error", err)
			}
		}()
	}

	var metricsSrv *httpmetrics.Server
	if cfg.CellsMetricsListen != "" {
		metricsSrv = httpmetrics.NewServer(cfg.CellsMetricsListen, m, monitor, log)
		if err := metricsSrv.Start(); err != nil {
			return fmt.Errorf("failed to start metrics server: %w", err)
		}
		log.Info("metrics/health server listening", "address", metricsSrv.GetAddress())
	}

	go runner.Run(ctx)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	log.Info("cell-router ready", "cell_name", cfg.CellName)
	select {
	case sig := <-sigChan:
		log.Info("received shutdown signal", "signal", sig.String())
	case <-ctx.Done():
		log.Info("context cancelled", "reason", ctx.Err())
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	for _, s := range servers {
		_ = s.Shutdown(shutdownCtx)
	}
	if metricsSrv != nil {
		_ = metricsSrv.Stop()
	}

	return nil
}

func buildCatalog(cfg *config.Config) (catalog.Catalog, error) {
	switch cfg.CellsCatalogDriver {
	case "redis":
		client := goredis.NewClient(&goredis.Options{Addr: cfg.CellsCatalogRedis})
		return catalog.NewRedisCatalog(client), nil
	case "memory":
		return catalog.NewMemCatalog(), nil
	default:
		return nil, cellerrors.ConfigurationError(fmt.Sprintf("unknown catalog driver %q", cfg.CellsCatalogDriver), nil)
	}
}

func buildTransport(ctx context.Context, cfg *config.Config, log *logger.Logger) (transport.Adapter, func(), error) {
	switch cfg.CellsDriver {
	case "rpc":
		adapter, err := transport.NewAMQP(ctx, transport.AMQPConfig{
			URL:       cfg.CellsAMQPURL,
			Exchange:  cfg.CellsTopic,
			QueueName: cfg.CellName,
		}, log)
		if err != nil {
			return nil, func() {}, err
		}
		return adapter, func() { adapter.Close() }, nil
	case "local":
		adapter := transport.NewLocal()
		return adapter, func() {}, nil
	default:
		return nil, nil, cellerrors.ConfigurationError(fmt.Sprintf("unknown transport driver %q", cfg.CellsDriver), nil)
	}
}

// wireDispatcher registers the dispatcher to receive inbound frames. The
// local adapter dispatches in-process by registered path; the AMQP
// adapter consumes from this cell's bound queue in a background goroutine.
func wireDispatcher(ctx context.Context, cfg *config.Config, adapter transport.Adapter, topo *topology.Cache, dispatcher transport.Receiver) error {
	switch a := adapter.(type) {
	case *transport.Local:
		a.Register(topo.SelfPath(), dispatcher)
		return nil
	case *transport.AMQP:
		go func() {
			if err := a.Listen(ctx, dispatcher); err != nil && ctx.Err() == nil {
				logger.FromContext(ctx).Error("amqp listen loop exited", "error", err)
			}
		}()
		return nil
	default:
		return fmt.Errorf("unsupported transport adapter type %T", adapter)
	}
}

// createLocalInstance records a newly placed instance in this cell's own
// Catalog, then broadcasts instance_update upward so every ancestor cell
// (and ultimately the top of the tree) learns about it, mirroring
// scheduler._create_instance_here, which broadcasts immediately after the
// local DB write rather than waiting for some later event to do it.
func createLocalInstance(ctx context.Context, cat catalog.Catalog, bcast *broadcast.Engine, requestSpec map[string]interface{}) error {
	id := uuid.NewString()
	if specID, ok := requestSpec["uuid"].(string); ok && specID != "" {
		id = specID
	}
	instance := catalog.InstanceRecord{
		UUID:  id,
		State: "scheduling",
	}
	if err := cat.InstanceCreate(ctx, instance); err != nil {
		return err
	}

	broadcastArgs := envelope.FormInstanceUpdateBroadcast(envelope.Up, "", 0, map[string]interface{}{
		"uuid":  instance.UUID,
		"state": instance.State,
	})
	if err := bcast.Broadcast(ctx, envelope.Up, false, broadcastArgs.Message.Method, broadcastArgs.Message.Args); err != nil {
		return fmt.Errorf("failed to broadcast instance_update for %q: %w", instance.UUID, err)
	}
	return nil
}
