// Package cmd holds the baseapp command line: the HTTP server and the
// offline routing and dispatch tools.
package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/GoCodeAlone/baseapp"
	"github.com/GoCodeAlone/baseapp/bootstrap"
	"github.com/GoCodeAlone/baseapp/config"
	"github.com/spf13/cobra"
)

// Version information
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// OsExit is replaced in tests.
var OsExit = os.Exit

// DefaultConfigPath is read when --config is not given.
const DefaultConfigPath = "config/config.yaml"

// Log formats accepted by --log-format.
const (
	LogFormatAuto = "auto"
	LogFormatText = "text"
	LogFormatJSON = "json"
)

type globalOptions struct {
	configPath string
	envFile    string
	logFormat  string
}

// NewRootCommand creates the root command for the baseapp binary
func NewRootCommand() *cobra.Command {
	opts := &globalOptions{}
	cmd := &cobra.Command{
		Use:     "baseapp",
		Short:   "baseapp - a modular HMVC web application",
		Long:    `baseapp boots the frontend and backend modules and serves them over HTTP.`,
		Version: fmt.Sprintf("%s (commit: %s, built on: %s)", Version, Commit, Date),
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Help()
		},
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", DefaultConfigPath, "configuration file (yaml, toml or json)")
	cmd.PersistentFlags().StringVar(&opts.envFile, "env-file", "", "optional .env file overlaid before the environment")
	cmd.PersistentFlags().StringVar(&opts.logFormat, "log-format", LogFormatAuto, "log format: auto, text or json")

	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewRoutesCommand(opts))
	cmd.AddCommand(NewMatchCommand(opts))
	cmd.AddCommand(NewRequestCommand(opts))
	return cmd
}

// NewLogger builds the process logger. Auto picks text at debug level in
// development and JSON otherwise.
func NewLogger(w io.Writer, format, env string) (*slog.Logger, error) {
	dev := baseapp.ParseEnvironment(env) == baseapp.Development
	level := slog.LevelInfo
	if dev {
		level = slog.LevelDebug
	}
	handlerOpts := &slog.HandlerOptions{Level: level}

	switch strings.ToLower(format) {
	case "", LogFormatAuto:
		if dev {
			return slog.New(slog.NewTextHandler(w, handlerOpts)), nil
		}
		return slog.New(slog.NewJSONHandler(w, handlerOpts)), nil
	case LogFormatText:
		return slog.New(slog.NewTextHandler(w, handlerOpts)), nil
	case LogFormatJSON:
		return slog.New(slog.NewJSONHandler(w, handlerOpts)), nil
	default:
		return nil, fmt.Errorf("unknown log format %q", format)
	}
}

// instance is a booted application.
type instance struct {
	boot   *bootstrap.Bootstrap
	app    *baseapp.Application
	logger *slog.Logger
}

func (o *globalOptions) boot(cmd *cobra.Command) (*instance, error) {
	var loadOpts []config.Option
	if o.envFile != "" {
		loadOpts = append(loadOpts, config.WithDotEnv(o.envFile))
	}
	cfg, err := config.Load(o.configPath, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", o.configPath, err)
	}
	logger, err := NewLogger(cmd.ErrOrStderr(), o.logFormat, cfg.App.Env)
	if err != nil {
		return nil, err
	}
	b := bootstrap.New(bootstrap.Options{
		ConfigPath:     o.configPath,
		ConfigOptions:  loadOpts,
		Config:         cfg,
		Logger:         logger,
		RuntimeMetrics: true,
	})
	app, err := b.Boot()
	if err != nil {
		_ = b.Close(context.WithoutCancel(cmd.Context()))
		return nil, err
	}
	return &instance{boot: b, app: app, logger: logger}, nil
}

func (i *instance) close(ctx context.Context) {
	if err := i.boot.Close(ctx); err != nil {
		i.logger.Error("Failed to release services", "error", err)
	}
}
