package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/aretw0/strata"
	"github.com/aretw0/strata/internal/platform"
	"github.com/aretw0/strata/pkg/schema"
)

var (
	verbose    bool
	configPath string
	uriFlag    string
	database   string
	schemaDir  string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "strata",
	Short: "Inspect document hierarchies stored in a single collection",
	Long: `Strata maps inheritance trees of document types onto one collection.
The CLI counts, lists and removes documents of a type (and its subtypes)
and validates schema files.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to load .env: %w", err)
		}

		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}
		logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
		slog.SetDefault(logger)
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Project file (default: strata.yaml at the project root)")
	rootCmd.PersistentFlags().StringVar(&uriFlag, "uri", "", "Store URI, e.g. mongodb://localhost:27017/app (env STRATA_URI)")
	rootCmd.PersistentFlags().StringVar(&database, "database", "", "Mongo database (env STRATA_DATABASE)")
	rootCmd.PersistentFlags().StringVar(&schemaDir, "schemas", "", "Directory holding schema YAML files")
}

// projectConfig loads the explicit --config file or the strata.yaml found
// above the working directory.
func projectConfig() (*platform.Config, error) {
	if configPath != "" {
		return platform.LoadConfig(configPath)
	}
	wd, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	root, err := platform.FindRoot(wd)
	if err != nil {
		return &platform.Config{}, nil
	}
	return platform.LoadConfig(filepath.Join(root, platform.ConfigFile))
}

// engineOptions merges the project file, the environment and the flags,
// flags winning.
func engineOptions() (string, []strata.Option, error) {
	cfg, err := projectConfig()
	if err != nil {
		return "", nil, err
	}

	opts := append(cfg.Options(), strata.WithLogger(slog.Default()))
	if db := firstNonEmpty(database, os.Getenv("STRATA_DATABASE")); db != "" {
		opts = append(opts, strata.WithDatabase(db))
	}
	if schemaDir != "" {
		opts = append(opts, strata.WithSchemaDir(schemaDir))
	}
	uri := firstNonEmpty(uriFlag, os.Getenv("STRATA_URI"), cfg.URI)
	return uri, opts, nil
}

// openEngine opens the configured store. Read-only commands pass readOnly so
// file stores cannot be modified by accident.
func openEngine(ctx context.Context, readOnly bool) (*strata.Engine, error) {
	uri, opts, err := engineOptions()
	if err != nil {
		return nil, err
	}
	if readOnly {
		opts = append(opts, strata.WithReadOnly(true))
	}
	return strata.New(ctx, uri, opts...)
}

func loadRegistry() (*schema.Registry, error) {
	_, opts, err := engineOptions()
	if err != nil {
		return nil, err
	}
	return platform.LoadRegistry(opts...)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
