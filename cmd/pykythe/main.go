package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"

	"github.com/saidctb/pykythe"
)

var (
	flagConfig  string
	flagDB      string
	flagFormat  string
	flagWorkers int
	flagRoots   []string
	flagSuffix  string
	flagVerbose bool
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "pykythe",
	Short:         "Deterministic Python cross-reference indexing",
	Long:          "Pykythe resolves every identifier in a Python codebase to a fully-qualified name and emits an abstract cross-reference fact stream for downstage graph tooling.",
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return validateFormat(flagFormat)
	},
	// No Run — prints help by default.
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "TOML configuration file")
	rootCmd.PersistentFlags().StringVar(&flagFormat, "format", "json", "output format: json|text")

	rootCmd.AddCommand(indexCmd)
	rootCmd.AddCommand(versionCmd)
}

var indexCmd = &cobra.Command{
	Use:   "index [path]",
	Short: "Resolve a file or directory and emit its fact stream",
	Long:  "Cooks Python sources into scope-annotated ASTs, resolves every binding and reference to an FQN, and prints the per-module fact stream to stdout.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runIndex,
}

func init() {
	indexCmd.Flags().StringVar(&flagDB, "db", "", "persist the module cache to this SQLite database")
	indexCmd.Flags().IntVar(&flagWorkers, "workers", 0, "resolution workers (0 = one per CPU)")
	indexCmd.Flags().StringSliceVar(&flagRoots, "search-root", nil, "additional stub/library search roots, highest priority first")
	indexCmd.Flags().StringVar(&flagSuffix, "version-suffix", "", "environment version suffix joined into the cache key")
	indexCmd.Flags().BoolVar(&flagVerbose, "verbose", false, "debug logging to stderr")
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the engine's cache-key version fingerprint",
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, err := pykythe.New(pykythe.DefaultConfig("."))
		if err != nil {
			return err
		}
		defer engine.Close()
		fmt.Println(engine.Version())
		return nil
	},
}

func runIndex(cmd *cobra.Command, args []string) error {
	start := time.Now()

	target, err := resolveTarget(args)
	if err != nil {
		return err
	}

	cfg, err := buildConfig(target)
	if err != nil {
		return err
	}

	level := hclog.Warn
	if flagVerbose {
		level = hclog.Debug
	}
	log := hclog.New(&hclog.LoggerOptions{
		Name:   "pykythe",
		Level:  level,
		Output: os.Stderr,
	})

	engine, err := pykythe.New(cfg,
		pykythe.WithLogger(log),
		pykythe.WithWorkers(flagWorkers),
	)
	if err != nil {
		return fmt.Errorf("creating engine: %w", err)
	}
	defer engine.Close()

	ctx := context.Background()

	var results []*pykythe.ModuleResult
	if info, statErr := os.Stat(target); statErr == nil && info.IsDir() {
		results, err = engine.ResolveDirectory(ctx, target)
	} else {
		results, err = engine.ResolveFiles(ctx, []string{target})
	}
	if err != nil {
		return err
	}

	if err := writeResults(os.Stdout, flagFormat, results); err != nil {
		return err
	}

	resolved, failed := 0, 0
	for _, r := range results {
		if r.Status == pykythe.StatusFailed {
			failed++
			fmt.Fprintf(os.Stderr, "failed: %s: %s\n", r.FQN, r.Err)
			continue
		}
		resolved++
	}
	fmt.Fprintf(os.Stderr, "Resolved %d module(s), %d failed, in %s\n",
		resolved, failed, time.Since(start).Round(time.Millisecond))
	return nil
}

// buildConfig assembles the engine configuration from --config plus flag
// overrides, or from flags alone.
func buildConfig(target string) (*pykythe.Config, error) {
	var cfg *pykythe.Config
	if flagConfig != "" {
		loaded, err := pykythe.LoadConfig(flagConfig)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	} else {
		root := target
		if info, err := os.Stat(target); err == nil && !info.IsDir() {
			root = filepath.Dir(target)
		}
		cfg = pykythe.DefaultConfig(root)
	}
	if len(flagRoots) > 0 {
		cfg.SearchRoots = append(flagRoots, cfg.SearchRoots...)
	}
	if flagDB != "" {
		cfg.CachePath = flagDB
	}
	if flagSuffix != "" {
		cfg.VersionSuffix = flagSuffix
	}
	return cfg, nil
}

// resolveTarget returns the absolute path of the file or directory to index.
func resolveTarget(args []string) (string, error) {
	path := "."
	if len(args) > 0 {
		path = args[0]
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolving path %q: %w", path, err)
	}
	if _, err := os.Stat(abs); err != nil {
		return "", fmt.Errorf("target not found: %s", abs)
	}
	return abs, nil
}
