package main

import (
	"fmt"
	"os"
	"runtime/pprof"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hailam/chessponder/internal/config"
	"github.com/hailam/chessponder/internal/obslog"
)

var (
	// Global flags.
	configPath string
	logLevel   string
	dataDir    string
	cpuProfile string
)

var rootCmd = &cobra.Command{
	Use:   "chessponder",
	Short: "Chess engine that thinks on its opponent's time",
	Long: `chessponder plays chess over a line-based console in the style of the
xboard protocol. While the opponent is thinking it predicts their reply,
searches the position after it, and plays instantly when the prediction
comes true.

Examples:
  # Play on stdin/stdout
  chessponder

  # Inspect a setboard position
  chessponder setboard "K2R/PPP////q/5ppp/7k/ b"

  # Show how often the engine guessed right
  chessponder stats`,
	SilenceUsage: true,
	RunE:         runPlay,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML configuration file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn or error")
	rootCmd.PersistentFlags().StringVarP(&dataDir, "data-dir", "d", "", "directory for the outcome database (default: platform data directory)")
	rootCmd.PersistentFlags().StringVar(&cpuProfile, "cpuprofile", "", "write a CPU profile to file (or $CPUPROFILE)")
	addPlayFlags(rootCmd)
}

// loadConfig reads the configuration file and environment, then applies
// the flags the user set.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if cmd.Flags().Changed("log-level") {
		cfg.Log.Level = logLevel
	}
	if cmd.Flags().Changed("data-dir") {
		cfg.Storage.Dir = dataDir
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	logger, err := obslog.New(cfg.Logger())
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return logger, nil
}

// startProfile starts CPU profiling when requested by flag or environment.
// The returned function stops it.
func startProfile(logger *zap.Logger) (func(), error) {
	path := cpuProfile
	if path == "" {
		path = os.Getenv("CPUPROFILE")
	}
	if path == "" {
		return func() {}, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("could not create CPU profile: %w", err)
	}
	if err := pprof.StartCPUProfile(f); err != nil {
		f.Close()
		return nil, fmt.Errorf("could not start CPU profile: %w", err)
	}
	logger.Info("CPU profiling enabled", zap.String("path", path))
	return func() {
		pprof.StopCPUProfile()
		f.Close()
	}, nil
}
