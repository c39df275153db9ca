package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"syscall"

	"github.com/mattjoyce/bundlehost/internal/api"
	"github.com/mattjoyce/bundlehost/internal/bundle"
	"github.com/mattjoyce/bundlehost/internal/config"
	"github.com/mattjoyce/bundlehost/internal/dispatch"
	"github.com/mattjoyce/bundlehost/internal/events"
	"github.com/mattjoyce/bundlehost/internal/fanout"
	"github.com/mattjoyce/bundlehost/internal/instance"
	"github.com/mattjoyce/bundlehost/internal/lock"
	"github.com/mattjoyce/bundlehost/internal/log"
	"github.com/mattjoyce/bundlehost/internal/scheduler"
	"github.com/mattjoyce/bundlehost/internal/storage"
	"github.com/mattjoyce/bundlehost/internal/webhook"
)

const version = "0.1.0"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	switch cmd {
	case "start":
		os.Exit(runStart(args))
	case "config":
		os.Exit(runConfigNoun(args))
	case "version":
		fmt.Printf("bundlehost version %s\n", version)
		os.Exit(0)
	case "help", "--help", "-h":
		printUsage()
		os.Exit(0)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Print(`bundlehost - Plugin bundle host for entity instances

Usage:
  bundlehost <command> [flags]

Commands:
  start             Start the host service in foreground
  config check      Validate configuration syntax and integrity
  config lock       Authorize current config state (update integrity hashes)
  version           Show version information
  help              Show this help message
`)
}

func runConfigNoun(args []string) int {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: bundlehost config <check|lock> [flags]")
		return 1
	}

	action := args[0]
	actionArgs := args[1:]

	switch action {
	case "check":
		return runConfigCheck(actionArgs)
	case "lock", "hash-update":
		return runConfigLock(actionArgs)
	default:
		fmt.Fprintf(os.Stderr, "Unknown config action: %s\n", action)
		return 1
	}
}

func runConfigCheck(args []string) int {
	fs := flag.NewFlagSet("config check", flag.ExitOnError)
	configPath := fs.String("config", "./config.yaml", "Path to configuration file")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to parse flags: %v\n", err)
		return 1
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config check failed: %v\n", err)
		return 1
	}

	configDir := filepath.Dir(*configPath)
	if manifest, err := config.LoadChecksums(configDir); err == nil {
		base := filepath.Base(*configPath)
		if err := config.VerifyConfigFiles(configDir, manifest, []string{base}); err != nil {
			fmt.Fprintf(os.Stderr, "Config check failed: %v\n", err)
			return 1
		}
		fmt.Println("Config integrity: verified")
	} else {
		fmt.Println("Config integrity: no checksums present (run 'bundlehost config lock')")
	}

	fmt.Printf("Config OK: service=%s storage=%s webhooks=%d\n",
		cfg.Service.Name, cfg.Storage.Path, len(cfg.Webhooks))
	return 0
}

func runConfigLock(args []string) int {
	fs := flag.NewFlagSet("config lock", flag.ExitOnError)
	configPath := fs.String("config", "./config.yaml", "Path to configuration file")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to parse flags: %v\n", err)
		return 1
	}

	if _, err := config.Load(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "Refusing to lock invalid config: %v\n", err)
		return 1
	}

	configDir := filepath.Dir(*configPath)
	if err := config.GenerateChecksums(configDir, []string{filepath.Base(*configPath)}); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to write checksums: %v\n", err)
		return 1
	}

	fmt.Printf("Checksums written to %s\n", filepath.Join(configDir, ".checksums"))
	return 0
}

func runStart(args []string) int {
	fs := flag.NewFlagSet("start", flag.ExitOnError)
	configPath := fs.String("config", "./config.yaml", "Path to configuration file")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to parse flags: %v\n", err)
		return 1
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}

	log.Setup(cfg.Service.LogLevel)
	logger := log.WithComponent("main")
	logger.Info("bundlehost starting", "version", version, "config", *configPath)

	pidLockPath := filepath.Join(filepath.Dir(cfg.Storage.Path), "bundlehost.lock")
	pidLock, err := lock.Acquire(pidLockPath)
	if err != nil {
		logger.Error("failed to acquire PID lock (another instance may be running)", "path", pidLockPath, "error", err)
		return 1
	}
	defer pidLock.Release()
	logger.Info("acquired PID lock", "path", pidLockPath)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := storage.OpenSQLite(ctx, cfg.Storage.Path)
	if err != nil {
		logger.Error("failed to open database", "path", cfg.Storage.Path, "error", err)
		return 1
	}
	defer db.Close()
	if err := storage.BootstrapSQLite(ctx, db); err != nil {
		logger.Error("failed to bootstrap database", "error", err)
		return 1
	}
	logger.Info("database opened", "path", cfg.Storage.Path)

	store := instance.NewSQLiteStore(db)

	registry, err := discoverBundles(cfg.BundlesDir)
	if err != nil {
		logger.Error("bundle discovery failed", "bundles_dir", cfg.BundlesDir, "error", err)
		return 1
	}
	logger.Info("bundle discovery complete", "count", registry.Len())

	hub := events.NewHub(256)
	orch := dispatch.New(store, registry, hub,
		dispatch.WithTimeout(cfg.Executor.Timeout),
		dispatch.WithPageSize(cfg.Sweep.PageSize),
	)

	fanReg := fanout.NewRegistry(hub, fanout.WithShutdownTimeout(cfg.Fanout.ShutdownTimeout))
	defer fanReg.Close()
	if err := fanReg.RegisterConsumer("orchestrator", orch); err != nil {
		logger.Error("failed to register orchestrator consumer", "error", err)
		return 1
	}

	hooks := make(map[string]*webhook.Source, len(cfg.Webhooks))
	for _, hc := range cfg.Webhooks {
		var opts []webhook.Option
		if hc.SignatureHeader != "" {
			opts = append(opts, webhook.WithSignatureHeader(hc.SignatureHeader))
		}
		if hc.MaxBodyBytes > 0 {
			opts = append(opts, webhook.WithMaxBodyBytes(hc.MaxBodyBytes))
		}
		src := webhook.NewSource(hc.ID, hc.Secret, opts...)
		if err := fanReg.RegisterSource(ctx, src); err != nil {
			logger.Error("failed to register webhook source", "id", hc.ID, "error", err)
			return 1
		}
		hooks[hc.ID] = src
	}

	sched := scheduler.New(registry, orch, hub, cfg.Service.TickInterval)
	if err := sched.Start(ctx); err != nil {
		logger.Error("failed to start scheduler", "error", err)
		return 1
	}
	defer sched.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 1)

	if cfg.API.Enabled {
		apiServer := api.New(api.Config{
			Listen: cfg.API.Listen,
			APIKey: cfg.API.Auth.APIKey,
		}, orch, registry, fanReg, hub, log.WithComponent("api"))
		for id, src := range hooks {
			apiServer.MountHook(id, src)
		}
		go func() {
			if err := apiServer.Start(ctx); err != nil && err != context.Canceled {
				errCh <- fmt.Errorf("api: %w", err)
			}
		}()
		logger.Info("API server enabled", "listen", cfg.API.Listen)
	} else if len(hooks) > 0 {
		logger.Warn("webhooks configured but API server disabled, hooks are unreachable")
	}

	logger.Info("bundlehost running (press Ctrl+C to stop)")

	select {
	case sig := <-sigCh:
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	case err := <-errCh:
		logger.Error("component failed", "error", err)
		cancel()
		return 1
	}

	logger.Info("bundlehost stopped")
	return 0
}

// discoverBundles loads every *.yaml manifest under dir and registers a
// handle for it. Declared behavior comes from the manifest; bundles without
// custom code run as identity handles, which still exercises scheduling,
// enrichment, and upgrade stamping.
func discoverBundles(dir string) (*bundle.Registry, error) {
	registry := bundle.NewRegistry()

	if dir == "" {
		return registry, nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return registry, nil
		}
		return nil, fmt.Errorf("read bundles dir: %w", err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if ext := filepath.Ext(e.Name()); ext != ".yaml" && ext != ".yml" {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	for _, name := range names {
		m, err := bundle.LoadManifest(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("load manifest %s: %w", name, err)
		}
		if err := registry.Add(bundle.FromManifest(m, nil, nil)); err != nil {
			return nil, fmt.Errorf("register bundle %s: %w", m.Name, err)
		}
	}

	return registry, nil
}
