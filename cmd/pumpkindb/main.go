package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"gopkg.in/yaml.v3"

	"github.com/mattjoyce/pumpkin/internal/api"
	"github.com/mattjoyce/pumpkin/internal/config"
	"github.com/mattjoyce/pumpkin/internal/engine"
	"github.com/mattjoyce/pumpkin/internal/events"
	"github.com/mattjoyce/pumpkin/internal/lock"
	"github.com/mattjoyce/pumpkin/internal/log"
	"github.com/mattjoyce/pumpkin/internal/modules/binary"
	"github.com/mattjoyce/pumpkin/internal/modules/hashing"
	"github.com/mattjoyce/pumpkin/internal/modules/identifier"
	"github.com/mattjoyce/pumpkin/internal/modules/kv"
	"github.com/mattjoyce/pumpkin/internal/modules/messaging"
	"github.com/mattjoyce/pumpkin/internal/modules/stack"
	"github.com/mattjoyce/pumpkin/internal/server"
	"github.com/mattjoyce/pumpkin/internal/storage"
	"github.com/mattjoyce/pumpkin/internal/tui/watch"
)

var (
	version   = "0.1.0-dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

// Replaced in tests.
var (
	stdout io.Writer = os.Stdout
	stderr io.Writer = os.Stderr
)

const envAPIToken = "PUMPKINDB_API_TOKEN"

func main() {
	os.Exit(runCLI(os.Args[1:]))
}

func runCLI(cliArgs []string) int {
	if len(cliArgs) < 1 {
		printUsage(stderr)
		return 1
	}

	cmd := cliArgs[0]
	args := cliArgs[1:]

	switch cmd {
	case "start":
		return runStart(args)
	case "status":
		return runStatus(args)
	case "watch":
		return runWatch(args)
	case "config":
		return runConfigNoun(args)
	case "version", "--version":
		return runVersion(args)
	case "help", "--help", "-h":
		printUsage(stdout)
		return 0
	default:
		fmt.Fprintf(stderr, "Unknown command: %s\n\n", cmd)
		printUsage(stderr)
		return 1
	}
}

func printUsage(w io.Writer) {
	fmt.Fprint(w, `pumpkindb - programmable key/value server

Usage:
  pumpkindb <command> [flags]

Commands:
  start           Run the server in the foreground
  status          Show health of a running server (requires api.enabled)
  watch           Live monitoring TUI (requires api.enabled)
  config check    Validate a configuration file
  config show     Print the effective configuration as YAML
  version         Show version information
  help            Show this help message

The configuration file is taken from --config, then $PUMPKINDB_CONFIG.
Without either, built-in defaults are used.
`)
}

type versionInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"build_time"`
}

func runVersion(args []string) int {
	fs := flag.NewFlagSet("version", flag.ContinueOnError)
	fs.SetOutput(stderr)
	jsonOut := fs.Bool("json", false, "Output version metadata as JSON")
	if err := fs.Parse(args); err != nil {
		return 1
	}

	info := currentVersionInfo()
	if *jsonOut {
		data, err := json.MarshalIndent(info, "", "  ")
		if err != nil {
			fmt.Fprintf(stderr, "Failed to render version JSON: %v\n", err)
			return 1
		}
		fmt.Fprintln(stdout, string(data))
		return 0
	}

	fmt.Fprintf(stdout, "pumpkindb %s\n", info.Version)
	fmt.Fprintf(stdout, "commit: %s\n", info.Commit)
	fmt.Fprintf(stdout, "built_at: %s\n", info.BuildTime)
	return 0
}

func currentVersionInfo() versionInfo {
	info := versionInfo{
		Version:   strings.TrimSpace(version),
		Commit:    "unknown",
		BuildTime: "unknown",
	}
	if info.Version == "" {
		info.Version = "0.0.0-dev"
	}

	commit := strings.TrimSpace(gitCommit)
	if commit == "" || commit == "unknown" {
		commit = readBuildSetting("vcs.revision")
	}
	if commit != "" {
		if len(commit) > 12 {
			commit = commit[:12]
		}
		info.Commit = commit
	}

	built := strings.TrimSpace(buildDate)
	if built == "" || built == "unknown" {
		built = readBuildSetting("vcs.time")
	}
	if t, err := time.Parse(time.RFC3339Nano, built); err == nil {
		info.BuildTime = t.UTC().Format(time.RFC3339)
	}
	return info
}

func readBuildSetting(key string) string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return ""
	}
	for _, setting := range info.Settings {
		if setting.Key == key {
			return strings.TrimSpace(setting.Value)
		}
	}
	return ""
}

func runConfigNoun(args []string) int {
	if len(args) == 0 {
		fmt.Fprintln(stderr, "Usage: pumpkindb config <check|show> [--config PATH]")
		return 1
	}

	action := args[0]
	fs := flag.NewFlagSet("config "+action, flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "Path to configuration file or directory")
	if err := fs.Parse(args[1:]); err != nil {
		return 1
	}

	source := config.Resolve(*configPath)
	cfg, err := config.LoadOrDefaults(source)

	switch action {
	case "check":
		if err != nil {
			fmt.Fprintf(stderr, "Configuration invalid: %v\n", err)
			return 1
		}
		if source == "" {
			fmt.Fprintln(stdout, "OK (built-in defaults)")
			return 0
		}
		fmt.Fprintf(stdout, "OK %s\nfingerprint: %s\n", cfg.SourcePath, cfg.Fingerprint)
		return 0
	case "show":
		if err != nil {
			fmt.Fprintf(stderr, "Failed to load config: %v\n", err)
			return 1
		}
		shown := *cfg
		if shown.API.Token != "" {
			shown.API.Token = "********"
		}
		out, err := yaml.Marshal(&shown)
		if err != nil {
			fmt.Fprintf(stderr, "Failed to render config: %v\n", err)
			return 1
		}
		_, _ = stdout.Write(out)
		return 0
	default:
		fmt.Fprintf(stderr, "Unknown config action: %s\n", action)
		return 1
	}
}

func runStart(args []string) int {
	fs := flag.NewFlagSet("start", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "Path to configuration file or directory")
	if err := fs.Parse(args); err != nil {
		return 1
	}

	source := config.Resolve(*configPath)
	cfg, err := config.LoadOrDefaults(source)
	if err != nil {
		fmt.Fprintf(stderr, "Failed to load config: %v\n", err)
		return 1
	}

	log.Setup(cfg.Service.LogLevel, cfg.Service.LogFormat)
	logger := log.WithComponent("main")
	logger.Info("pumpkindb starting", "version", version, "config", cfg.SourcePath, "fingerprint", cfg.Fingerprint)

	dataLock, err := lock.Acquire(cfg.Storage.Path)
	if err != nil {
		logger.Error("failed to acquire data lock (another instance may be running)", "path", lock.PathFor(cfg.Storage.Path), "error", err)
		return 1
	}
	defer dataLock.Release()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := storage.OpenSQLite(ctx, cfg.Storage.Path)
	if err != nil {
		logger.Error("failed to open database", "path", cfg.Storage.Path, "error", err)
		return 1
	}
	defer db.Close()
	store := storage.NewStore(db)
	if n, err := store.Count(ctx); err == nil {
		logger.Info("database opened", "path", cfg.Storage.Path, "keys", n)
	}

	bus := events.NewBus()
	hub := events.NewHub(256)

	eng, err := engine.New(engine.Config{
		MaxConcurrent:  cfg.Engine.MaxConcurrent,
		MaxCallDepth:   cfg.Engine.MaxCallDepth,
		ArenaChunkSize: cfg.Engine.ArenaChunkSize,
	}, hub,
		identifier.New(),
		stack.New(),
		binary.New(),
		hashing.New(),
		messaging.New(bus),
		kv.New(store),
	)
	if err != nil {
		logger.Error("failed to build engine", "error", err)
		return 1
	}

	errCh := make(chan error, 2)

	srv := server.New(server.Config{
		Listen:       cfg.Server.Listen,
		MaxFrameSize: cfg.Server.MaxFrameSize,
	}, eng, bus)
	go func() {
		if err := srv.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			errCh <- fmt.Errorf("server: %w", err)
			return
		}
		errCh <- nil
	}()

	if cfg.API.Enabled {
		apiServer := api.New(api.Config{
			Listen:            cfg.API.Listen,
			Token:             cfg.API.Token,
			ConfigFingerprint: cfg.Fingerprint,
		}, eng, bus, hub, log.WithComponent("api"))
		go func() {
			if err := apiServer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				errCh <- fmt.Errorf("api: %w", err)
			}
		}()
		logger.Info("API server enabled", "listen", cfg.API.Listen, "auth", cfg.API.Token != "")
	}

	logger.Info("pumpkindb running (press Ctrl+C to stop)", "listen", cfg.Server.Listen)

	select {
	case <-ctx.Done():
		logger.Info("received shutdown signal")
	case err := <-errCh:
		if err != nil {
			logger.Error("component failed", "error", err)
			return 1
		}
	}

	stats := eng.Stats()
	logger.Info("pumpkindb stopped", "completed", stats.Completed, "failed", stats.Failed)
	return 0
}

func apiFlags(fs *flag.FlagSet) (apiURL, token *string) {
	apiURL = fs.String("api-url", "http://127.0.0.1:9982", "pumpkindb API URL")
	token = fs.String("token", os.Getenv(envAPIToken), "API bearer token (or "+envAPIToken+")")
	return apiURL, token
}

func runStatus(args []string) int {
	fs := flag.NewFlagSet("status", flag.ContinueOnError)
	fs.SetOutput(stderr)
	apiURL, _ := apiFlags(fs)
	jsonOut := fs.Bool("json", false, "Output raw JSON")
	if err := fs.Parse(args); err != nil {
		return 1
	}

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(strings.TrimRight(*apiURL, "/") + "/healthz")
	if err != nil {
		fmt.Fprintf(stderr, "Failed to reach %s: %v\n", *apiURL, err)
		return 1
	}
	defer resp.Body.Close()

	var health api.HealthzResponse
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		fmt.Fprintf(stderr, "Failed to decode health response: %v\n", err)
		return 1
	}

	if *jsonOut {
		data, _ := json.MarshalIndent(health, "", "  ")
		fmt.Fprintln(stdout, string(data))
	} else {
		fmt.Fprintf(stdout, "status: %s\n", health.Status)
		fmt.Fprintf(stdout, "uptime: %s\n", time.Duration(health.UptimeSeconds)*time.Second)
		fmt.Fprintf(stdout, "programs: running=%d completed=%d failed=%d\n",
			health.Programs.Running, health.Programs.Completed, health.Programs.Failed)
		fmt.Fprintf(stdout, "subscriptions: %d\n", health.Subscriptions)
		fmt.Fprintf(stdout, "event observers: %d\n", health.EventObservers)
		if health.ConfigFingerprint != "" {
			fmt.Fprintf(stdout, "config fingerprint: %s\n", health.ConfigFingerprint)
		}
	}

	if health.Status != "ok" {
		return 1
	}
	return 0
}

func runWatch(args []string) int {
	fs := flag.NewFlagSet("watch", flag.ContinueOnError)
	fs.SetOutput(stderr)
	apiURL, token := apiFlags(fs)
	if err := fs.Parse(args); err != nil {
		return 1
	}

	m := watch.New(strings.TrimRight(*apiURL, "/"), *token)
	p := tea.NewProgram(m)
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(stderr, "TUI error: %v\n", err)
		return 1
	}
	return 0
}
