package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/schaermu/materialsync/internal/config"
	"github.com/schaermu/materialsync/internal/git"
	"github.com/schaermu/materialsync/internal/sync"
	"github.com/spf13/cobra"
)

var (
	// Set by goreleaser
	version = "dev"
	commit  = "none"
	date    = "unknown"

	// Global flags
	logLevel  string
	logFormat string
	dryRun    bool
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "materialsync",
	Short: "Clone or update the course material repositories listed in a template",
	Long: `materialsync reads the material template (config/oxford.yaml by default,
overridable with YAML_TEMPLATE) and makes sure every listed repository has a
working copy beneath the material directory (.material, overridable with
MATERIAL_DIR).

Missing entries are cloned. Existing working copies whose origin matches the
template are updated: local changes are stashed, then upstream changes pulled.
Working copies with a different origin, and non-empty directories that are
not working copies, are left untouched.`,
	Args:         cobra.NoArgs,
	SilenceUsage: true,
	RunE:         runSync,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		_, _ = fmt.Fprintf(out, "materialsync %s\n", version)
		_, _ = fmt.Fprintf(out, "  commit: %s\n", commit)
		_, _ = fmt.Fprintf(out, "  built:  %s\n", date)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log format (text, json)")
	rootCmd.Flags().BoolVar(&dryRun, "dry-run", false, "show what would be done without making changes")

	rootCmd.AddCommand(versionCmd)
}

func runSync(cmd *cobra.Command, args []string) error {
	ctx, cancel := setupSignalHandler()
	defer cancel()

	logger := setupLogger()

	settings, doc, err := loadConfig(logger)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	gitClient := git.NewShellClient(settings.Auth.SSHKeyFile, settings.Auth.HTTPSTokenFile)
	engine := sync.NewEngine(settings, doc, gitClient, logger, dryRun)

	if _, err := engine.Run(ctx); err != nil {
		logger.Error("run failed", "error", err)
		return err
	}

	return nil
}

func setupLogger() *slog.Logger {
	var level slog.Level
	switch logLevel {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: level}

	if logFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}

// loadConfig resolves the settings and reads the template. In dry-run mode
// the material directory is not created.
func loadConfig(logger *slog.Logger) (*config.Settings, *config.Document, error) {
	settings, err := config.FromEnv()
	if err != nil {
		return nil, nil, err
	}

	if dryRun {
		err = settings.CheckTemplate()
	} else {
		err = settings.Prepare()
	}
	if err != nil {
		return nil, nil, err
	}

	logger.Info("loading template", "path", settings.TemplatePath)

	doc, err := config.Load(settings.TemplatePath)
	if err != nil {
		return nil, nil, err
	}

	logger.Debug("configuration loaded",
		"project_root", settings.ProjectRoot,
		"material_dir", settings.MaterialDir,
		"entries", len(doc.Material),
		"auth", settings.AuthMethod())

	return settings, doc, nil
}

func setupSignalHandler() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigCh
		cancel()
	}()

	return ctx, cancel
}
