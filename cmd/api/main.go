package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hamed0406/pingmonitor/internal/config"
	"github.com/hamed0406/pingmonitor/internal/httpapi"
	apimw "github.com/hamed0406/pingmonitor/internal/httpapi/middleware"
	"github.com/hamed0406/pingmonitor/internal/logging"
	"github.com/hamed0406/pingmonitor/internal/notify"
	"github.com/hamed0406/pingmonitor/internal/probe"
	"github.com/hamed0406/pingmonitor/internal/registry"
	"github.com/hamed0406/pingmonitor/internal/repo"
	"github.com/hamed0406/pingmonitor/internal/repo/file"
	"github.com/hamed0406/pingmonitor/internal/repo/memory"
	"github.com/hamed0406/pingmonitor/internal/repo/postgres"
	"github.com/hamed0406/pingmonitor/internal/scheduler"
)

var (
	configPath string
	runOnce    bool
	ephemeral  bool
)

func main() {
	root := &cobra.Command{
		Use:   "pingmonitor",
		Short: "Ping hosts on a fixed interval and alert when one goes down",
		Long: `Run the monitoring engine with its HTTP API.

Hosts and the probe interval are read from the state store (a JSON file by
default, Postgres when DATABASE_URL is set). Every environment variable
understood by the config file overrides it.

Examples:
  pingmonitor
  pingmonitor --config /etc/pingmonitor.yaml
  pingmonitor --once`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context())
		},
	}
	root.Flags().StringVarP(&configPath, "config", "c", os.Getenv("PINGMONITOR_CONFIG"), "YAML config file")
	root.Flags().BoolVar(&runOnce, "once", false, "probe every active host once, print the snapshot and exit")
	root.Flags().BoolVar(&ephemeral, "ephemeral", false, "keep state in memory only")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := root.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

type stores struct {
	state repo.StateStore
	file  *file.Store // nil unless the state lives in a file
	close func()
}

func openStore(ctx context.Context, cfg config.Config, log *zap.Logger) (stores, error) {
	switch {
	case ephemeral:
		log.Info("store_memory")
		return stores{state: memory.New(), close: func() {}}, nil
	case cfg.DatabaseURL != "":
		pg, err := postgres.New(ctx, cfg.DatabaseURL, log, 30*time.Second)
		if err != nil {
			return stores{}, fmt.Errorf("postgres: %w", err)
		}
		log.Info("store_postgres")
		return stores{state: pg, close: pg.Close}, nil
	default:
		fs := file.New(cfg.StatePath)
		log.Info("store_file", zap.String("path", fs.Path()))
		return stores{state: fs, file: fs, close: func() {}}, nil
	}
}

func run(ctx context.Context) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger, err := logging.NewLogger(cfg.LogDir, cfg.LogLevel, cfg.Console || runOnce)
	if err != nil {
		return err
	}
	defer logger.Sync()

	st, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Error("store_open_error", zap.Error(err))
		return err
	}
	defer st.close()

	reg, rep, err := registry.Load(ctx, st.state, registry.Options{
		DefaultHost:     cfg.DefaultHost,
		DefaultInterval: cfg.DefaultIntervalSeconds,
	})
	if err != nil {
		logger.Error("registry_load_error", zap.Error(err))
		return err
	}
	if rep.Skipped > 0 {
		logger.Warn("records_skipped", zap.Int("count", rep.Skipped))
	}
	logger.Info(fmt.Sprintf("Monitoring %d hosts", reg.Len()),
		zap.Bool("seeded", rep.Seeded),
		zap.Int("interval_seconds", rep.IntervalSeconds),
	)

	prober, err := probe.New(probe.Options{
		Mode:        probe.Mode(cfg.Probe.Mode),
		Timeout:     cfg.ProbeTimeout(),
		PingCommand: cfg.Probe.Command,
		TCPPort:     cfg.Probe.TCPPort,
	})
	if err != nil {
		return err
	}

	promReg := prometheus.NewRegistry()
	promReg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	notifiers := notify.Multi{notify.Log{Logger: logger}}
	if slack := notify.NewSlack(cfg.SlackWebhook); slack != nil {
		notifiers = append(notifiers, slack)
	}
	hub := httpapi.NewHub(logger, cfg.Origins)

	sched := scheduler.New(scheduler.Options{
		Logger:        logger,
		Registry:      reg,
		Store:         st.state,
		Prober:        prober,
		Alerts:        notify.NewDownAlerter(notifiers, logger),
		Snapshots:     hub,
		Metrics:       scheduler.NewMetrics(promReg),
		Interval:      time.Duration(rep.IntervalSeconds) * time.Second,
		ProbeTimeout:  cfg.ProbeTimeout(),
		RoundBudget:   cfg.RoundBudget(),
		MaxConcurrent: cfg.MaxConcurrentProbes,
	})

	if runOnce {
		return once(ctx, sched, reg)
	}

	if err := sched.Start(); err != nil {
		return err
	}
	if st.file != nil && cfg.WatchState {
		go func() {
			err := st.file.Watch(ctx, logger, func() {
				if _, err := sched.Reload(ctx); err != nil {
					logger.Warn("reload_error", zap.Error(err))
				}
			})
			if err != nil {
				logger.Warn("state_watch_error", zap.Error(err))
			}
		}()
	}

	api := httpapi.NewServer(logger, reg, sched, hub, promReg)
	keys := apimw.Keys{Public: cfg.Public, Admin: cfg.Admin}
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.Router(keys, cfg.Origins, cfg.WriteRatePerMin, cfg.WriteBurst),
		ReadHeaderTimeout: 5 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() {
		logger.Info("api_listen", zap.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown_signal")
	case err = <-serveErr:
		logger.Error("api_listen_error", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	hub.Close()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("api_shutdown_error", zap.Error(err))
	}
	if err := sched.Stop(shutdownCtx); err != nil {
		logger.Warn("scheduler_stop_error", zap.Error(err))
	}
	return err
}

func once(ctx context.Context, sched *scheduler.Scheduler, reg *registry.Registry) error {
	if err := sched.RunOnce(ctx); err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(reg.Snapshot()); err != nil {
		return err
	}
	return sched.Persist(ctx)
}
