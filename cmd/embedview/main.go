package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"embedview/internal/config"
	"embedview/internal/datadir"
	"embedview/internal/logging"
	"embedview/internal/version"
)

var (
	cfgFile  string
	verbose  bool
	logLevel string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "embedview",
	Short: "Package and browse 2-D embeddings",
	Long: `embedview packs 2-D embedding coordinates and per-point metadata into a
self-contained .tar.gz archive and serves that archive as an interactive
scatter-plot page.`,
	Version:       version.Full(),
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file path (default: <data dir>/config/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warning or error (overrides config)")
}

// env is what every command needs after startup.
type env struct {
	cfg *config.Config
	dd  *datadir.DataDir
	log *logging.Logger
}

// setup resolves the data directory, loads .env files and the config, and
// builds the logger.
func setup() (*env, error) {
	// .env files first so ${ENV_VAR} placeholders in the config resolve.
	dd, err := datadir.New("")
	if err != nil {
		return nil, fmt.Errorf("resolve data directory: %w", err)
	}
	if err := datadir.LoadEnv(dd.Root()); err != nil {
		return nil, err
	}

	path := cfgFile
	if path == "" {
		path = dd.ConfigFilePath()
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// data_dir from the config applies unless EMBEDVIEW_DATA_DIR is set.
	if cfg.DataDir != "" {
		if dd, err = datadir.New(cfg.DataDir); err != nil {
			return nil, fmt.Errorf("resolve data directory: %w", err)
		}
	}

	logCfg := cfg.Logging
	if verbose {
		logCfg.Level = logging.Debug
	}
	if logLevel != "" {
		logCfg.Level = logLevel
	}
	log, err := logging.New(logCfg)
	if err != nil {
		return nil, err
	}

	log.Debug("configuration loaded", nil, map[string]interface{}{
		"config":   path,
		"data_dir": dd.Root(),
	})
	return &env{cfg: cfg, dd: dd, log: log}, nil
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
