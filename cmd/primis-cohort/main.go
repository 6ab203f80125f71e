package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/primis-cohort/internal/config"
	"github.com/primis-cohort/internal/domain"
	"github.com/primis-cohort/internal/logging"
	"github.com/primis-cohort/internal/rules"
	"github.com/primis-cohort/internal/service"
)

var configFile string

func main() {
	if err := newRootCmd().ExecuteContext(signalContext()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "primis-cohort",
		Short:         "COVID-19 vaccination cohort classifier",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default: cohort.yaml in ., ./config, /etc/primis-cohort)")

	rootCmd.AddCommand(transformCmd())
	rootCmd.AddCommand(synthCmd())
	rootCmd.AddCommand(groupsCmd())
	rootCmd.AddCommand(runsCmd())
	return rootCmd
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		cancel()
	}()
	return ctx
}

// app holds what every subcommand builds from configuration.
type app struct {
	config *domain.Config
	logger *logrus.Logger
	closer io.Closer
	loader *rules.Loader
}

func newApp() (*app, error) {
	manager, err := config.NewManager(configFile)
	if err != nil {
		return nil, err
	}
	if err := manager.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	cfg := manager.GetConfig()

	logger, closer, err := logging.New(cfg.Logging)
	if err != nil {
		return nil, err
	}
	if f := manager.ConfigFile(); f != "" {
		logger.WithField("file", f).Debug("Loaded configuration")
	}

	loader, err := rules.NewLoader(logger)
	if err != nil {
		closer.Close()
		return nil, err
	}

	return &app{config: cfg, logger: logger, closer: closer, loader: loader}, nil
}

func (a *app) Close() error {
	return a.closer.Close()
}

// transformer compiles the configured rule set and builds the pipeline.
func (a *app) transformer() (*service.Transformer, error) {
	set, err := a.loader.Load(a.config.Vaccines.Products)
	if err != nil {
		return nil, err
	}
	lookups, err := service.DefaultLookups(a.config.Pipeline.IMDMax)
	if err != nil {
		return nil, err
	}
	return service.NewTransformer(a.config.Pipeline, lookups, set, a.logger)
}
