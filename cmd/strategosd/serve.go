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

	"github.com/strategos/strategos/internal/git"
	"github.com/strategos/strategos/internal/log"
	"github.com/strategos/strategos/internal/orchestration/control"
	"github.com/strategos/strategos/internal/orchestration/depgraph"
	"github.com/strategos/strategos/internal/orchestration/events"
	"github.com/strategos/strategos/internal/orchestration/health"
	"github.com/strategos/strategos/internal/orchestration/history"
	"github.com/strategos/strategos/internal/orchestration/lifecycle"
	"github.com/strategos/strategos/internal/orchestration/state"
	"github.com/strategos/strategos/internal/orchestration/templates"
	"github.com/strategos/strategos/internal/orchestration/tmux"
	"github.com/strategos/strategos/internal/orchestration/tracing"
	"github.com/strategos/strategos/internal/orchestration/worker"
)

const shutdownTimeout = 30 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the orchestration engine in the foreground",
	Long: `serve wires every orchestration component (state, dependency graph, rules
templates, multiplexer client, history store, capture loop, health monitor,
and lifecycle) and runs until interrupted.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(_ *cobra.Command, _ []string) error {
	logger := log.New(os.Stderr, log.LevelInfo)

	tracingCfg := tracing.DefaultConfig()
	tracingCfg.Enabled = cfg.TracingEnabled
	provider, err := tracing.NewProvider(tracingCfg)
	if err != nil {
		return fmt.Errorf("starting tracing: %w", err)
	}

	bus := events.NewBroadcaster()
	registry := state.NewRegistry()
	graph := depgraph.New()
	writer := templates.NewWriter()
	client := tmux.NewRealClient()

	hist, err := history.Open(cfg.PersistDir + "/history.db")
	if err != nil {
		return fmt.Errorf("opening history store: %w", err)
	}
	defer hist.Close()

	capture := control.NewLoop(registry, client, hist, bus, logger, cfg.CaptureInterval)

	gitExec := git.NewRealExecutor()
	capture.SetCommitChecker(func(workingDir string) bool {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		commits, err := gitExec.LogSince(ctx, workingDir, "5 minutes ago")
		return err == nil && len(commits) > 0
	})
	capture.SetLiveChildrenChecker(func(w *worker.Worker) bool {
		for _, childID := range w.ChildWorkerIDs {
			child, ok := registry.Get(childID)
			if ok && child.Status == worker.StatusRunning && child.RalphStatus == worker.RalphInProgress {
				return true
			}
		}
		return false
	})

	engine := lifecycle.New(cfg, logger, bus, registry, graph, writer, client, hist, capture, nil)
	mon := health.NewMonitor(registry, client, engine, bus, logger, capture)
	engine.SetHealthMonitor(mon)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := engine.RestoreState(ctx); err != nil {
		logger.Warn(log.CatLifecycle, "restoring state failed", "error", err.Error())
	}

	go capture.Run(ctx)
	go mon.Run(ctx)
	go engine.RunCleanup(ctx)

	var healthServer *http.Server
	if cfg.HealthAddr != "" {
		mux := http.NewServeMux()
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(map[string]any{
				"workers":        registry.Count(),
				"circuitTripped": engine.CircuitBreakerStatus(),
			})
		})
		healthServer = &http.Server{Addr: cfg.HealthAddr, Handler: mux}
		go func() {
			if err := healthServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error(log.CatConfig, "health server failed", "error", err.Error())
			}
		}()
		logger.Info(log.CatConfig, "health endpoint listening", "addr", cfg.HealthAddr)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info(log.CatConfig, "received signal, shutting down", "signal", sig.String())

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	cancel()
	engine.SaveStateSync()

	if healthServer != nil {
		_ = healthServer.Shutdown(shutdownCtx)
	}
	if err := tracing.Shutdown(shutdownCtx, provider); err != nil {
		logger.Warn(log.CatConfig, "tracing shutdown failed", "error", err.Error())
	}

	logger.Info(log.CatConfig, "strategosd stopped")
	return nil
}
