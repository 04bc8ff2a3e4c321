package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"go.uber.org/zap"

	"github.com/eugenenazirov/confkit/internal/application"
	"github.com/eugenenazirov/confkit/internal/config"
	"github.com/eugenenazirov/confkit/internal/logging"
	"github.com/eugenenazirov/confkit/pkg/confkit"
)

var signalNotify = signal.Notify

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	kingpinApp := kingpin.New("confkit", "Layered configuration resolver - serves properties from YAML, environment, flags and SQLite sources")
	kingpinApp.UsageWriter(stderr).ErrorWriter(stderr)
	kingpinApp.Terminate(nil)

	configFile := kingpinApp.Flag("config", "Path to the service's YAML settings file").String()
	configDirs := kingpinApp.Flag("config-dir", "Directory scanned for *.yaml configuration sources (repeatable)").Strings()
	properties := kingpinApp.Flag("set", "Configuration property as key=value (repeatable)").Short('D').Strings()
	dbPath := kingpinApp.Flag("db", "Path to a SQLite database used as a configuration source").String()
	logLevel := kingpinApp.Flag("log-level", "Log level (debug, info, warn, error)").String()

	serveCmd := kingpinApp.Command("serve", "Serve the resolved configuration over HTTP")
	port := serveCmd.Flag("port", "HTTP port exposed by the service").String()
	var watchSet bool
	watch := serveCmd.Flag("watch", "Reload sources when they change").Default("true").IsSetByUser(&watchSet).Bool()
	rateLimitRPSFlag := serveCmd.Flag("rate-limit-rps", "Requests per second allowed per client (set 0 to disable)").Default("-1").Float64()
	rateLimitBurstFlag := serveCmd.Flag("rate-limit-burst", "Burst capacity for rate limiter (set 0 to disable)").Default("-1").Int()

	getCmd := kingpinApp.Command("get", "Print the resolved value of a property")
	getKey := getCmd.Arg("key", "Property key").Required().String()

	listCmd := kingpinApp.Command("list", "Print every resolved property as key=value")
	sourcesCmd := kingpinApp.Command("sources", "Print the configuration sources in resolution order")

	command, err := kingpinApp.Parse(args)
	if err != nil {
		fmt.Fprintf(stderr, "confkit: %v\n", err)
		return 2
	}

	overrides := &config.CLIOverrides{
		ConfigFile: *configFile,
		ConfigDirs: *configDirs,
		Properties: *properties,
	}
	if *dbPath != "" {
		overrides.DatabasePath = dbPath
	}
	if *logLevel != "" {
		overrides.LogLevel = logLevel
	}
	if *port != "" {
		overrides.Port = port
	}
	if *rateLimitRPSFlag >= 0 {
		overrides.RateLimitRPS = rateLimitRPSFlag
	}
	if *rateLimitBurstFlag >= 0 {
		overrides.RateLimitBurst = rateLimitBurstFlag
	}
	if command != serveCmd.FullCommand() {
		// one-shot commands never watch
		disabled := false
		overrides.Watch = &disabled
	} else if watchSet {
		overrides.Watch = watch
	}

	cfg, err := config.Load(overrides)
	if err != nil {
		fmt.Fprintf(stderr, "confkit: failed to load configuration: %v\n", err)
		return 1
	}

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(stderr, "confkit: failed to initialize logger: %v\n", err)
		return 1
	}
	defer func() {
		_ = logger.Sync()
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app, err := application.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize application", zap.Error(err))
		return 1
	}
	defer func() {
		if err := app.Close(); err != nil {
			logger.Warn("failed to close application", zap.Error(err))
		}
	}()

	switch command {
	case serveCmd.FullCommand():
		if err := app.Start(ctx); err != nil {
			logger.Error("failed to start server", zap.Error(err))
			return 1
		}
		shutdown(app.Server(), cfg.ShutdownGracePeriod, logger)
	case getCmd.FullCommand():
		value, err := app.Config().Value(*getKey)
		if err != nil {
			fmt.Fprintf(stderr, "confkit: %v\n", err)
			return 1
		}
		fmt.Fprintln(stdout, value)
	case listCmd.FullCommand():
		resolved := app.Config()
		for _, key := range resolved.PropertyNames() {
			value, _ := resolved.OptionalValue(key)
			fmt.Fprintf(stdout, "%s=%s\n", key, value)
		}
	case sourcesCmd.FullCommand():
		printSources(stdout, app.Config())
	}
	return 0
}

func printSources(w io.Writer, cfg confkit.Config) {
	for _, s := range cfg.Sources() {
		fmt.Fprintf(w, "%d\t%s\t%d properties\n", s.Ordinal(), s.Name(), len(s.PropertyNames()))
	}
}

func shutdown(server *http.Server, timeout time.Duration, logger *zap.Logger) {
	quit := make(chan os.Signal, 1)
	signalNotify(quit, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	<-quit
	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Warn("graceful shutdown failed", zap.Error(err))
		if closeErr := server.Close(); closeErr != nil {
			logger.Error("forced close failed", zap.Error(closeErr))
		}
	}
}
