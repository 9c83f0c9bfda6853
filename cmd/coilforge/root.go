package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/coilforge/coilforge/internal/application/evaluate"
	"github.com/coilforge/coilforge/internal/config"
	"github.com/coilforge/coilforge/internal/domain/drc"
	"github.com/coilforge/coilforge/internal/domain/encoding"
	"github.com/coilforge/coilforge/internal/domain/objective"
	"github.com/coilforge/coilforge/internal/domain/solver"
	"github.com/coilforge/coilforge/internal/infrastructure/database/postgres"
	"github.com/coilforge/coilforge/internal/infrastructure/database/postgres/repositories"
	redisdb "github.com/coilforge/coilforge/internal/infrastructure/database/redis"
	"github.com/coilforge/coilforge/internal/infrastructure/monitoring/logging"
	"github.com/coilforge/coilforge/internal/infrastructure/monitoring/prometheus"
)

// rootOptions holds the global flags shared by every subcommand.
type rootOptions struct {
	configPath  string
	metricsAddr string
}

// app carries the initialized shared dependencies through the command tree.
type app struct {
	cfg     *config.Config
	log     logging.Logger
	metrics *prometheus.CoilMetrics
}

// setup loads the configuration and builds the logger and metrics registry.
// When a metrics address is configured it also starts the scrape endpoint.
func setup(opts *rootOptions) (*app, error) {
	var cfg *config.Config
	var err error
	if opts.configPath != "" {
		cfg, err = config.Load(opts.configPath)
	} else {
		cfg, err = config.LoadFromEnv()
	}
	if err != nil {
		return nil, err
	}

	log, err := logging.NewLogger(cfg.Log)
	if err != nil {
		return nil, err
	}

	// File-backed runs hot-reload the log level on config edits; everything
	// else stays fixed for the lifetime of the process.
	if opts.configPath != "" {
		if ls, ok := log.(logging.LevelSetter); ok {
			config.Watch(opts.configPath, func(next *config.Config) {
				ls.SetLevel(next.Log.Level)
				log.Info("log level reloaded", logging.String("level", next.Log.Level))
			})
		}
	}

	collector, err := prometheus.NewMetricsCollector(prometheus.CollectorConfig{
		Namespace:            "coilforge",
		EnableProcessMetrics: true,
		EnableGoMetrics:      true,
	}, log)
	if err != nil {
		return nil, err
	}
	metrics := prometheus.NewCoilMetrics(collector)

	if opts.metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", collector.Handler())
		srv := &http.Server{Addr: opts.metricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Error("metrics endpoint failed", logging.Err(err))
			}
		}()
		log.Info("metrics endpoint listening", logging.String("addr", opts.metricsAddr))
	}

	return &app{cfg: cfg, log: log, metrics: metrics}, nil
}

// newEvaluator assembles the evaluation pipeline from the loaded config.
// No field solver is wired yet, so unchecked designs score worst case.
func newEvaluator(a *app) (*evaluate.Evaluator, error) {
	codec, err := encoding.NewCodec(a.cfg.Encoding, a.cfg.Board)
	if err != nil {
		return nil, err
	}
	checker, err := drc.NewChecker(a.cfg.Rules, a.cfg.Generator, a.cfg.Encoding, a.cfg.Board)
	if err != nil {
		return nil, err
	}
	scorer, err := objective.NewScorer(a.cfg.Objective)
	if err != nil {
		return nil, err
	}
	return evaluate.New(codec, checker, scorer, solver.Unavailable(), a.log, a.metrics), nil
}

// connect opens the study database.
func connect(a *app) (*postgres.Connection, *repositories.DesignRepo, error) {
	conn, err := postgres.NewConnection(a.cfg.Database, a.log)
	if err != nil {
		return nil, nil, err
	}
	return conn, repositories.NewDesignRepo(conn, a.log, a.metrics), nil
}

// acquireStudyLock takes the exclusive run lock for a study and returns its
// release function.
func acquireStudyLock(ctx context.Context, a *app, client *redisdb.Client, study string) (func(), error) {
	lock := redisdb.NewStudyLock(client, study, a.cfg.Redis.DefaultTTL, a.log)
	ok, err := lock.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("study %q is locked by another run", study)
	}
	return func() {
		if err := lock.Release(context.Background()); err != nil {
			a.log.Warn("failed to release study lock", logging.String("study", study), logging.Err(err))
		}
	}, nil
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// printJSON writes v to stdout as indented JSON.
func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:     "coilforge",
		Short:   "coilforge — PCB inductor geometry generation and optimization",
		Long:    "coilforge generates, checks, and optimizes planar inductor trace\ngeometries for power converters: random topology datasets, design rule\nchecking with signed per-category results, and differential-evolution\ngeometry optimization.",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),

		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := cmd.PersistentFlags()
	pf.StringVarP(&opts.configPath, "config", "c", "", "config file path (default: COILFORGE_* environment)")
	pf.StringVar(&opts.metricsAddr, "metrics-addr", "", "address for the Prometheus scrape endpoint (disabled when empty)")

	cmd.AddCommand(
		newDatasetCommand(opts),
		newOptimizeCommand(opts),
		newExportCommand(opts),
		newMigrateCommand(opts),
		newStudyCommand(opts),
	)
	return cmd
}
