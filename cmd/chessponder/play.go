package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hailam/chessponder/internal/board"
	"github.com/hailam/chessponder/internal/config"
	"github.com/hailam/chessponder/internal/console"
	"github.com/hailam/chessponder/internal/engine"
	"github.com/hailam/chessponder/internal/stats"
	statslogger "github.com/hailam/chessponder/internal/stats/logger"
	statsprom "github.com/hailam/chessponder/internal/stats/prometheus"
	"github.com/hailam/chessponder/internal/storage"
)

var (
	engineSide string
	noPonder   bool
)

var playCmd = &cobra.Command{
	Use:   "play",
	Short: "Play on stdin/stdout (the default)",
	Long: `Play a game on stdin/stdout. Moves are entered in coordinate notation
(e2e4) or SAN (Nf3). Other commands: new, setboard, position, go, force,
hint, ponder on|off, time, otim, post, nopost, d, perft, stats and quit.`,
	RunE: runPlay,
}

func init() {
	addPlayFlags(playCmd)
	rootCmd.AddCommand(playCmd)
}

func addPlayFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&engineSide, "side", "", "side the engine plays: white or black (default: saved preference)")
	cmd.Flags().BoolVar(&noPonder, "no-ponder", false, "never think on the opponent's time")
}

func runPlay(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer logger.Sync()

	stopProfile, err := startProfile(logger)
	if err != nil {
		return err
	}
	defer stopProfile()

	store, err := storage.Open(storage.Options{
		Dir:      cfg.Storage.Dir,
		InMemory: cfg.Storage.InMemory,
		Logger:   logger,
	})
	if err != nil {
		return err
	}
	defer store.Close()

	first, err := store.IsFirstLaunch()
	if err != nil {
		return err
	}
	if first {
		fmt.Fprintln(os.Stderr, "Welcome to chessponder. Type 'hint' while the engine ponders to see its guess.")
		if err := store.MarkFirstLaunchComplete(); err != nil {
			logger.Warn("marking first launch", zap.Error(err))
		}
	}

	prefs, err := store.LoadPreferences()
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("side") {
		prefs.EngineSide = engineSide
	}
	side, err := parseSide(prefs.EngineSide)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	var collector stats.Collector = statslogger.New(logger)
	if cfg.Metrics.Addr != "" {
		registry := prometheus.NewRegistry()
		registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		collector = statsprom.New(registry)
		serveMetrics(gctx, g, cfg.Metrics.Addr, registry, logger)
	}

	ponderOn := cfg.Engine.Ponder && prefs.Ponder && !noPonder
	eng := engine.New(engine.Options{
		HashMB:   cfg.Engine.HashMB,
		MaxDepth: cfg.Engine.MaxDepth,
		Clock:    cfg.Clock.EngineClock(),
		Logger:   logger,
	})
	con := console.New(eng, os.Stdin, os.Stdout, console.Options{
		Ponder:      ponderOn,
		EngineSide:  side,
		Store:       store,
		Preferences: prefs,
		Logger:      logger,
		Stats:       collector,
	})
	logger.Info("engine ready",
		zap.Int("hash_mb", cfg.Engine.HashMB),
		zap.Int("max_depth", cfg.Engine.MaxDepth),
		zap.Stringer("engine_side", side),
		zap.Bool("ponder", ponderOn))

	g.Go(func() error {
		// Quitting the console ends the metrics server too.
		defer cancel()
		return con.Run(gctx)
	})
	return g.Wait()
}

// serveMetrics exposes registry on addr until ctx is done.
func serveMetrics(ctx context.Context, g *errgroup.Group, addr string, registry *prometheus.Registry, logger *zap.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	g.Go(func() error {
		logger.Info("serving metrics", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
}

func parseSide(s string) (board.Color, error) {
	switch s {
	case "white":
		return board.White, nil
	case "black", "":
		return board.Black, nil
	default:
		return board.Black, fmt.Errorf("unknown side %q: want white or black", s)
	}
}

// setupLogging loads the configuration and builds the logger for the
// subcommands that do not play.
func setupLogging(cmd *cobra.Command) (*config.Config, *zap.Logger, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}
