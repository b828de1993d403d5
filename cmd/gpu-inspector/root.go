package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ttone18/gpu-inspector/internal/alertengine"
	"github.com/ttone18/gpu-inspector/internal/config"
	"github.com/ttone18/gpu-inspector/internal/logging"
	"github.com/ttone18/gpu-inspector/internal/metrics"
	"github.com/ttone18/gpu-inspector/internal/models"
	"github.com/ttone18/gpu-inspector/internal/probes"
	"github.com/ttone18/gpu-inspector/internal/scheduler"
	"github.com/ttone18/gpu-inspector/internal/sinks"
	"github.com/ttone18/gpu-inspector/internal/sshsession"
	"github.com/ttone18/gpu-inspector/internal/statestore"
)

// Version is set at build time via ldflags.
var Version = "dev"

var (
	flagConfigDir    string
	flagKnownHosts   string
	flagMetricsAddr  string
	flagLogLevel     string
	flagLogFormat    string
)

var rootCmd = &cobra.Command{
	Use:   "gpu-inspector",
	Short: "Agentless GPU fleet health inspector",
	Long:  "Periodically inspects a declared fleet of GPU nodes over SSH and reports health findings.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the build version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(Version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfigDir, "config-dir", "configs", "directory containing app_config.yaml, nodes.yaml, profiles.yaml, thresholds.yaml")
	rootCmd.PersistentFlags().StringVar(&flagKnownHosts, "known-hosts", "gpu_inspector_known_hosts", "path to the managed known_hosts file")
	rootCmd.PersistentFlags().StringVar(&flagMetricsAddr, "metrics-addr", "default", "address to serve /metrics on, or \"disabled\"")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "override the configured log level")
	rootCmd.PersistentFlags().StringVar(&flagLogFormat, "log-format", "", "override the configured log format (json, console, auto)")
	rootCmd.AddCommand(versionCmd)
}

func runServe(ctx context.Context) error {
	paths := config.DefaultPaths(flagConfigDir)
	bundle, err := config.Load(paths)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	app := bundle.App
	if flagLogLevel != "" {
		app.LogLevel = flagLogLevel
	}
	if flagLogFormat != "" {
		app.LogFormat = flagLogFormat
	}

	logging.Init(logging.Config{Format: app.LogFormat, Level: app.LogLevel, Component: "gpu-inspector"})
	log := logging.Component("bootstrap")
	log.Info().Str("version", Version).Int("nodes", len(bundle.Nodes)).Msg("starting gpu-inspector")

	if len(bundle.Nodes) == 0 {
		log.Fatal().Msg("no nodes configured in nodes.yaml")
	}
	if len(bundle.Profiles) == 0 {
		log.Fatal().Msg("no profiles configured in profiles.yaml")
	}

	store, err := statestore.Open(app.SQLitePath)
	if err != nil {
		return fmt.Errorf("open state store: %w", err)
	}
	defer store.Close()

	var eventLog *statestore.EventLog
	if app.MySQLEnabled && app.MySQLDSN != "" {
		eventLog, err = statestore.OpenEventLog(app.MySQLDSN)
		if err != nil {
			log.Error().Err(err).Msg("failed to open external event log, continuing without it")
			eventLog = nil
		} else {
			defer eventLog.Close()
		}
	}

	hostKeys, err := sshsession.NewKnownHostsManager(flagKnownHosts)
	if err != nil {
		return fmt.Errorf("init known_hosts manager: %w", err)
	}

	secureClient := sinks.NewSecureClient()
	chatSink := sinks.NewChatSink(secureClient, app.WebhookURLs)
	tableSink := sinks.NewTableSink(secureClient, app.TableSyncWebhookURL)
	eventLogSink := sinks.NewEventLogSink(eventLog)
	fanout := sinks.NewFanout(chatSink, tableSink, eventLogSink)

	engine := alertengine.New(store, models.DefaultAlertMetadata)

	m := metrics.New(Version)
	if err := m.Start(flagMetricsAddr); err != nil {
		return fmt.Errorf("start metrics server: %w", err)
	}

	schedCfg := scheduler.Config{
		MaxWorkers: app.MaxWorkers,
		Intervals: map[models.TaskClass]time.Duration{
			models.TaskClassGPU:     app.IntervalGPU,
			models.TaskClassSystem:  app.IntervalSystem,
			models.TaskClassNetwork: app.IntervalNetwork,
			models.TaskClassStorage: app.IntervalStorage,
		},
		DigestTime:     app.DigestTime,
		DigestTimezone: app.DigestTimezone,
	}

	sched := scheduler.New(
		schedCfg,
		bundle.Nodes,
		bundle.Profiles,
		bundle.Thresholds,
		probes.Default(),
		hostKeys,
		sshsession.DefaultPolicy(),
		engine,
		fanout,
		store,
		models.DefaultAlertMetadata,
		m,
	)

	runCtx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	log.Info().Msg("scheduler starting, press Ctrl+C to exit")
	if err := sched.Run(runCtx); err != nil {
		return fmt.Errorf("scheduler stopped with error: %w", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	m.Shutdown(shutdownCtx)

	log.Info().Msg("gpu-inspector stopped")
	return nil
}
