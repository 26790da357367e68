// Command decoder breaks monoalphabetic substitution ciphers: it runs the
// optimizer, stores sessions, hosts the interactive refiner and serves the
// decoder over gRPC.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/subcrack/internal/config"
	"github.com/danielpatrickdp/subcrack/internal/corpus"
	"github.com/danielpatrickdp/subcrack/internal/decoder"
	"github.com/danielpatrickdp/subcrack/internal/logging"
	"github.com/danielpatrickdp/subcrack/internal/metrics"
	"github.com/danielpatrickdp/subcrack/internal/orchestrator"
	"github.com/danielpatrickdp/subcrack/internal/state"
)

// #region flags

var (
	configPath  string
	dbOverride  string
	logLevel    string
	jsonLogs    bool
	corpusFlags []string

	cfg    config.Config
	logger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:           "decoder",
	Short:         "Break substitution ciphers with simulated annealing",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		if dbOverride != "" {
			loaded.Database = dbOverride
		}
		if logLevel != "" {
			loaded.Log.Level = logLevel
		}
		if jsonLogs {
			loaded.Log.JSON = true
		}
		if loaded.Languages == nil {
			loaded.Languages = map[string]string{}
		}
		for _, kv := range corpusFlags {
			name, path, ok := strings.Cut(kv, "=")
			if !ok || name == "" || path == "" {
				return fmt.Errorf("--corpus wants lang=path, got %q", kv)
			}
			loaded.Languages[name] = path
		}
		if err := loaded.Validate(); err != nil {
			return err
		}
		cfg = loaded
		lc := cfg.Log.Logging()
		lc.Writer = os.Stderr
		logger = logging.New(lc)
		return nil
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configPath, "config", "", "YAML config file")
	pf.StringVar(&dbOverride, "db", "", "session database path (overrides config)")
	pf.StringVar(&logLevel, "log-level", "", "debug, info, warn or error")
	pf.BoolVar(&jsonLogs, "json-logs", false, "emit JSON logs")
	pf.StringArrayVar(&corpusFlags, "corpus", nil, "reference corpus as lang=path (repeatable)")

	rootCmd.AddCommand(decodeCmd, refineCmd, serveCmd, modelCmd, sessionsCmd, rollbackCmd, remoteCmd)
}

// #endregion flags

// #region main

func main() {
	// An interrupted decode stops between iterations and prints what it has.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		fmt.Fprintln(os.Stderr, styles.Error.Render("error: ")+err.Error())
		os.Exit(1)
	}
}

// #endregion main

// #region wiring

// app is the wired decoder service and the resources it owns.
type app struct {
	svc      *decoder.Service
	store    *state.Store
	registry *corpus.Registry
	gatherer prometheus.Gatherer
}

func (a *app) Close() error {
	if a.store == nil {
		return nil
	}
	return a.store.Close()
}

// newApp loads the configured corpora and opens the store. withStore false
// skips the database for commands that never persist.
func newApp(withStore bool) (*app, error) {
	if len(cfg.Languages) == 0 {
		logger.Warn("no reference corpus configured", "hint", "--corpus "+cfg.DefaultLanguage+"=path")
	}
	registry, err := corpus.LoadAll(cfg.Languages)
	if err != nil {
		return nil, err
	}

	reg := prometheus.NewRegistry()
	a := &app{registry: registry, gatherer: reg}
	opts := []decoder.Option{
		decoder.WithConfig(cfg.Optimizer),
		decoder.WithMetrics(metrics.New(reg)),
		decoder.WithLogger(logger),
	}

	if withStore {
		store, err := state.NewStore(cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("open store: %w", err)
		}
		a.store = store
		orch, err := orchestrator.NewOrchestrator(store.DB(), cfg.Restarts, logger)
		if err != nil {
			store.Close()
			return nil, fmt.Errorf("init orchestrator: %w", err)
		}
		logger.Debug("orchestrator ready", "restarts", orch.Enabled(), "max_restarts", cfg.Restarts)
		opts = append(opts, decoder.WithStore(store), decoder.WithOrchestrator(orch))
	}

	svc, err := decoder.New(registry, opts...)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.svc = svc
	return a, nil
}

// #endregion wiring
