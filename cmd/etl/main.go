package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/complaints-etl/internal/config"
	"github.com/JonMunkholm/complaints-etl/internal/logging"
	"github.com/JonMunkholm/complaints-etl/internal/pipeline"
)

var rootFlags struct {
	envFile    string
	seed       int64
	dryRun     bool
	complaints string
}

var rootCmd = &cobra.Command{
	Use:   "etl",
	Short: "Load consumer complaints and county demographics into PostgreSQL",
	Long: `Reads the complaints CSV and the demographics collection from MongoDB,
cleans both, and replaces the complaints and demographics tables in
PostgreSQL. Settings come from the environment; see .env.example.`,
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          run,
}

func init() {
	rootCmd.Flags().StringVar(&rootFlags.envFile, "env-file", ".env", "Env file loaded over the process environment")
	rootCmd.Flags().Int64Var(&rootFlags.seed, "seed", 0, "Imputation seed (overrides ETL_SEED; 0 is random)")
	rootCmd.Flags().BoolVar(&rootFlags.dryRun, "dry-run", false, "Extract and transform only; do not touch PostgreSQL")
	rootCmd.Flags().StringVar(&rootFlags.complaints, "complaints", "", "Complaints CSV path (overrides COMPLAINTS_CSV)")
}

func run(cmd *cobra.Command, _ []string) error {
	// Overload overwrites existing env vars
	if err := godotenv.Overload(rootFlags.envFile); err != nil {
		slog.Info("no env file found, using environment variables", "path", rootFlags.envFile)
	} else {
		slog.Info("loaded env file", "path", rootFlags.envFile)
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("seed") {
		cfg.Run.Seed = rootFlags.seed
	}
	if cmd.Flags().Changed("dry-run") {
		cfg.Run.DryRun = rootFlags.dryRun
	}
	if rootFlags.complaints != "" {
		cfg.Source.ComplaintsPath = rootFlags.complaints
	}

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Debug("configuration loaded", "config", cfg.String())

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	_, err = pipeline.Run(ctx, cfg, pipeline.Deps{})
	return err
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		slog.Error("etl failed", "error", err)
		os.Exit(1)
	}
}
