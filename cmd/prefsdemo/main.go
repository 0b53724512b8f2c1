package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/kalambet/typedprefs/internal/config"
	"github.com/kalambet/typedprefs/internal/demo"
	"github.com/kalambet/typedprefs/pkg/prefs"
)

var version = "dev"

var (
	noColor    bool
	configPath string
)

var rootCmd = &cobra.Command{
	Use:           "prefsdemo",
	Short:         "Inspect and edit the demo's typed preferences",
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	noColor = os.Getenv("NO_COLOR") != "" ||
		(!isatty.IsTerminal(os.Stderr.Fd()) && !isatty.IsCygwinTerminal(os.Stderr.Fd()))

	pf := rootCmd.PersistentFlags()
	pf.BoolVar(&noColor, "no-color", noColor, "disable colored output")
	pf.StringVar(&configPath, "config", "", "config file (default: "+config.Path()+")")
	pf.String("backend", "", "store backend override: file, sqlite or memory")
	pf.String("dir", "", "store directory override")
	pf.String("format", "", "settings file format override: json, yaml or toml")
	pf.String("codec", "", "codec override for complex values: json, yaml or toml")
	pf.Bool("permissive", false, "encode values the codec cannot represent as JSON")
}

func main() {
	if err := run(); err != nil {
		printError("%v", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

// loadConfig reads the config file, then applies command-line overrides.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	var (
		cfg config.Config
		err error
	)
	if configPath != "" {
		cfg, err = config.LoadFrom(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return config.Config{}, err
	}

	flags := cmd.Flags()
	overrides := []struct {
		flag string
		dst  *string
	}{
		{"backend", &cfg.Store.Backend},
		{"dir", &cfg.Store.Dir},
		{"format", &cfg.Store.Format},
		{"codec", &cfg.Prefs.Codec},
	}
	for _, o := range overrides {
		if flags.Changed(o.flag) {
			*o.dst, _ = flags.GetString(o.flag)
		}
	}
	if flags.Changed("permissive") {
		cfg.Prefs.Permissive, _ = flags.GetBool("permissive")
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func setupLogging(cfg config.Config) *slog.Logger {
	level, err := config.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = slog.LevelWarn
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return logger
}

// openHandler loads the config and opens the demo preferences. The returned
// function closes the handler and its store.
func openHandler(cmd *cobra.Command) (*prefs.Handler, *slog.Logger, func() error, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, nil, err
	}
	logger := setupLogging(cfg)
	h, closeAll, err := demo.Open(cfg, logger)
	if err != nil {
		return nil, nil, nil, err
	}
	logger.Debug("preferences opened", "backend", cfg.Store.Backend, "dir", cfg.Store.Dir)
	return h, logger, closeAll, nil
}
