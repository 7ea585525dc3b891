package commands

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/bryanwahyu/threatlens/internal/application/results"
	appscans "github.com/bryanwahyu/threatlens/internal/application/scans"
	"github.com/bryanwahyu/threatlens/internal/bootstrap"
	"github.com/bryanwahyu/threatlens/internal/config"
)

var (
	flagConfig   string
	flagStore    string
	flagTestMode bool
	flagJSON     bool
	flagVerbose  bool
)

var rootCmd = &cobra.Command{
	Use:          "threatlens",
	Short:        "Scan files and URLs for malware and keep a local history",
	Long:         `threatlens submits files and URLs to the analysis provider, waits for the multi-engine report and turns it into a verdict, a risk score and recommendations. Results are kept in a local JSON file.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "Config file (default: none, env only)")
	rootCmd.PersistentFlags().StringVar(&flagStore, "store", "", "Results file (default: ~/.threatlens/results.json)")
	rootCmd.PersistentFlags().BoolVar(&flagTestMode, "test-mode", false, "Use synthetic results, never call the provider")
	rootCmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "Print JSON instead of text")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "Log pipeline progress to stderr")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.ExecuteContext(context.Background())
}

// env is what every subcommand works against.
type env struct {
	cfg     *config.Config
	backend *bootstrap.Backend
	store   *results.Store
	log     *slog.Logger
}

// openEnv loads config, forces the results file backend and loads the
// stored scans. The provider key is only checked by commands that scan.
func openEnv(ctx context.Context, cmd *cobra.Command) (*env, error) {
	cfg, err := config.Read(flagConfig)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	cfg.Database.Driver = "file"
	if flagStore != "" {
		cfg.Database.File = flagStore
	}
	if flagTestMode {
		cfg.Provider.TestMode = true
	}

	level := slog.LevelWarn
	if flagVerbose {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))

	backend, err := bootstrap.OpenBackend(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	store := results.New(backend.Scans, cfg.Store.MaxScans, log)
	if err := store.Load(ctx); err != nil {
		return nil, err
	}
	return &env{cfg: cfg, backend: backend, store: store, log: log}, nil
}

func (e *env) scanService() (*appscans.Service, error) {
	if err := e.cfg.Validate(); err != nil {
		return nil, err
	}
	return bootstrap.ScanService(e.cfg, e.backend, e.store, nil, e.log), nil
}
