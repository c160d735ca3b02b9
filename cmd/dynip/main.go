package main

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"

	"github.com/Travis-Britz/dynip/internal/config"
	"github.com/Travis-Britz/dynip/internal/logging"
	"github.com/Travis-Britz/dynip/internal/prefs"
	"github.com/Travis-Britz/dynip/internal/version"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func main() {
	// a .env file is optional
	_ = godotenv.Load()

	if err := rootCmd().Execute(); err != nil {
		slog.Error("command failed", "err", err)
		os.Exit(1)
	}
}

// app is the state shared by all subcommands, loaded before any of them run.
type app struct {
	configPath string
	debug      bool

	cfg    *config.Config
	prefs  *prefs.Prefs
	logger *slog.Logger
}

func rootCmd() *cobra.Command {
	a := &app{}
	cmd := &cobra.Command{
		Use:           "dynip",
		Short:         "Keep a dynamic IP address registered with the DNS provider",
		Version:       version.String(),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load()
		},
	}

	cmd.PersistentFlags().StringVar(&a.configPath, "config", config.Path(), "Path to the config file")
	cmd.PersistentFlags().BoolVar(&a.debug, "debug", false, "Enable debug logging")
	cmd.AddCommand(
		runCmd(a),
		updateCmd(a),
		signinCmd(a),
		signoutCmd(a),
		networksCmd(a),
		statusCmd(a),
		historyCmd(a),
		enableCmd(a, true),
		enableCmd(a, false),
		configCmd(a),
	)
	return cmd
}

func (a *app) load() error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	level := cfg.LogLevel
	if a.debug {
		level = logging.LevelDebug
	}
	if a.logger, err = logging.Configure(level); err != nil {
		return fmt.Errorf("configure logger: %w", err)
	}

	if cfg.Mirror.Enabled() && cfg.Mirror.Token == "" {
		if cfg.Mirror.TokenFile == "" {
			return fmt.Errorf("mirror for %q needs CLOUDFLARE_ZONE_TOKEN or mirror.token_file", cfg.Mirror.Domain)
		}
		if err := prefs.VerifyPermissions(cfg.Mirror.TokenFile); err != nil {
			return err
		}
		if cfg.Mirror.Token, err = readKey(cfg.Mirror.TokenFile); err != nil {
			return fmt.Errorf("error reading cloudflare token: %w", err)
		}
		a.logger.Debug("read cloudflare token", "file", cfg.Mirror.TokenFile)
	}
	a.cfg = cfg

	if a.prefs, err = prefs.Load(cfg.PrefsPath()); err != nil {
		return err
	}
	if a.prefs.EnsureUniqueID() {
		a.logger.Debug("generated unique id", "id", a.prefs.UniqueID())
		if err := a.prefs.Save(); err != nil {
			return err
		}
	}
	return nil
}

// readKey returns the first line of the file at path.
func readKey(path string) (key string, err error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("error reading key: %w", err)
	}
	defer f.Close()

	r := bufio.NewReader(f)
	keyb, _, err := r.ReadLine()
	if err != nil {
		return "", fmt.Errorf("error reading line: %w", err)
	}
	return string(keyb), nil
}
