package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/cesardraw2/zeppelin/admin"
	"github.com/cesardraw2/zeppelin/cfg"
	"github.com/cesardraw2/zeppelin/interpreter"
	"github.com/cesardraw2/zeppelin/protocol"
	"github.com/cesardraw2/zeppelin/telemetry"
)

var (
	profileFlag = flag.String("profile", "", "Interpreter profile for -e (default: first configured)")
	execFlag    = flag.String("e", "", "Run one statement or meta-command, print the result and exit")
)

func main() {
	flag.Parse()

	err := cfg.Load(*cfg.ConfigPathFlag)
	if err != nil {
		panic(err)
	}

	if err := cfg.Validate(); err != nil {
		panic(fmt.Sprintf("Invalid configuration: %v", err))
	}

	// Protocol text goes to stdout in one-shot mode, so logs go to stderr
	var writer io.Writer = zerolog.NewConsoleWriter(func(w *zerolog.ConsoleWriter) { w.Out = os.Stderr })
	if cfg.Config.Logging.Format == "json" {
		writer = os.Stderr
	}
	gLog := zerolog.New(writer).
		With().
		Timestamp().
		Uint64("instance_id", cfg.Config.InstanceID).
		Logger()

	if cfg.Config.Logging.Verbose {
		log.Logger = gLog.Level(zerolog.DebugLevel)
	} else {
		log.Logger = gLog.Level(zerolog.InfoLevel)
	}

	if *execFlag != "" {
		os.Exit(runOnce(*profileFlag, *execFlag))
	}

	log.Info().Str("version", interpreter.Version).Msg("Zeppelin SQL interpreter")
	log.Debug().Msg("Initializing telemetry")
	telemetry.InitializeTelemetry()
	telemetry.InitMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	registry, err := interpreter.OpenAll(ctx, cfg.Config)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open interpreters")
		return
	}
	defer registry.CloseAll()

	if cfg.Config.Prometheus.Enabled {
		interval := time.Duration(cfg.Config.Prometheus.CollectIntervalSeconds) * time.Second
		collector := telemetry.NewMetricsCollector(registry, interval)
		collector.Start()
		defer collector.Stop()
	}

	if !cfg.Config.Admin.Enabled {
		log.Info().Msg("Admin API disabled, waiting for shutdown signal")
		<-ctx.Done()
		return
	}

	mux := http.NewServeMux()
	admin.RegisterRoutes(mux, admin.NewHandlers(registry))
	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Config.Admin.BindAddress, cfg.Config.Admin.Port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("Admin API shutdown failed")
		}
	}()

	log.Info().
		Str("address", server.Addr).
		Strs("interpreters", registry.Names()).
		Bool("auth", cfg.Config.Admin.Secret != "").
		Msg("Admin API listening")

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error().Err(err).Msg("Admin API stopped")
	}
}

// runOnce executes text on one profile, prints the protocol text and
// returns the process exit code.
func runOnce(profileName, text string) int {
	profile := cfg.Config.Interpreters[0]
	if profileName != "" {
		var ok bool
		if profile, ok = cfg.FindInterpreter(profileName); !ok {
			fmt.Fprintf(os.Stderr, "unknown profile %q\n", profileName)
			return 2
		}
	}

	it, err := interpreter.New(profile, interpreter.OptionsFromConfig(cfg.Config.Completion))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := it.Open(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}
	defer it.Close()

	// Ctrl-C cancels the running statement instead of killing the process
	go func() {
		<-ctx.Done()
		it.Cancel()
	}()

	res := it.Interpret(context.Background(), text)
	fmt.Fprint(os.Stdout, res.Text)
	if res.Code != protocol.CodeSuccess {
		return 1
	}
	return 0
}
