package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"gameforge/pkg/cache"
	"gameforge/pkg/config"
	"gameforge/pkg/eventlog"
	"gameforge/pkg/invoker"
	"gameforge/pkg/logx"
	"gameforge/pkg/metrics"
	"gameforge/pkg/orchestrator"
	"gameforge/pkg/persistence"
	"gameforge/pkg/provider"
	"gameforge/pkg/stages"
)

// app is the wired object graph shared by the commands.
type app struct {
	cfg        *config.Config
	store      *persistence.Store
	registry   *prometheus.Registry
	recorder   *metrics.PrometheusRecorder
	events     *eventlog.Writer
	controller *orchestrator.Controller
}

// loadConfig reads configuration and applies the logging flags.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err //nolint:wrapcheck // already descriptive
	}
	cfg.ApplyDebug()
	if debug {
		logx.SetDebugConfig(true)
	}
	return cfg, nil
}

// openApp opens the store only. Commands that never call a provider use it.
func openApp() (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	store, err := persistence.Open(cfg.Store.Path)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	return &app{cfg: cfg, store: store}, nil
}

// openPipeline wires store, provider, cache, invoker, stages and controller.
func openPipeline() (*app, error) {
	a, err := openApp()
	if err != nil {
		return nil, err
	}
	if err := a.wire(); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) wire() error {
	if err := unlockSecretsIfPresent(a.cfg); err != nil {
		return err
	}

	a.registry = prometheus.NewRegistry()
	a.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	a.recorder = metrics.NewPrometheusRecorder(a.registry)

	opts, err := a.cfg.ProviderOptions(a.recorder)
	if err != nil {
		return err //nolint:wrapcheck // names the provider
	}
	client, err := provider.New(opts)
	if err != nil {
		return fmt.Errorf("create provider client: %w", err)
	}

	inv, err := invoker.New(client, cache.New(a.store, a.recorder), a.cfg.Models(), a.cfg.Policy())
	if err != nil {
		return fmt.Errorf("create invoker: %w", err)
	}
	set, err := stages.NewSet(inv)
	if err != nil {
		return fmt.Errorf("create stages: %w", err)
	}

	ctrlOpts := []orchestrator.Option{orchestrator.WithRecorder(a.recorder)}
	if a.cfg.EventLog.Dir != "" {
		a.events, err = eventlog.NewWriter(a.cfg.EventLog.Dir)
		if err != nil {
			return fmt.Errorf("open event log: %w", err)
		}
		logx.NewLogger("app").Debug("recording transitions to %s", a.events.CurrentLogFile())
		ctrlOpts = append(ctrlOpts, orchestrator.WithEventSink(a.events))
	}
	a.controller = orchestrator.New(a.store, set, ctrlOpts...)
	return nil
}

// Close releases the store and event log.
func (a *app) Close() {
	if a.events != nil {
		if err := a.events.Close(); err != nil {
			logx.Warnf("failed to close event log: %v", err)
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			logx.Warnf("failed to close store: %v", err)
		}
	}
}

// unlockSecretsIfPresent loads the secrets file when the provider key is not
// already in the environment.
func unlockSecretsIfPresent(cfg *config.Config) error {
	name := cfg.APIKeyEnv()
	if name == "" || os.Getenv(name) != "" {
		return nil
	}
	path, err := config.DefaultSecretsPath()
	if err != nil {
		return err //nolint:wrapcheck
	}
	if !config.SecretsFileExists(path) {
		return nil
	}
	password, err := config.ResolvePassword(os.Stdin, os.Stderr)
	if err != nil {
		return err //nolint:wrapcheck
	}
	if err := config.UnlockSecrets(path, password); err != nil {
		if errors.Is(err, config.ErrWrongPassword) {
			return fmt.Errorf("unlock %s: %w", path, err)
		}
		return err //nolint:wrapcheck
	}
	return nil
}
