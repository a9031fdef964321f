package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"tract-sync/internal/common"
	"tract-sync/internal/interfaces"
	"tract-sync/internal/jira"
	"tract-sync/internal/services"

	"github.com/ternarybob/arbor"
)

const serviceName = "tract-sync"

func main() {
	// Parse command line flags
	var (
		configPath     = flag.String("config", "", "Path to configuration file")
		mode           = flag.String("mode", "dev", "Environment mode: 'dev', 'development', 'prod', or 'production'")
		quiet          = flag.Bool("quiet", false, "Suppress banner output")
		version        = flag.Bool("version", false, "Show version information")
		help           = flag.Bool("help", false, "Show help message")
		validateConfig = flag.Bool("validate", false, "Validate configuration file and exit")
	)
	flag.Parse()

	if *version {
		fmt.Printf("%s v%s (build: %s)\n", serviceName, common.GetVersion(), common.GetBuild())
		os.Exit(0)
	}

	if *help {
		showHelp()
		os.Exit(0)
	}

	environment := parseMode(*mode)

	// Load configuration with priority: defaults -> TOML -> environment
	cfg, err := common.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	cfg.Sync.Environment = environment

	if *validateConfig {
		fmt.Println("Configuration is valid")
		os.Exit(0)
	}

	// Initialize logger
	if err := common.InitLogger(&cfg.Logging); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	logger := common.GetLogger()

	logger.Info().
		Str("version", common.GetVersion()).
		Str("build", common.GetBuild()).
		Str("environment", environment).
		Msg("Starting tract-sync service")

	if !*quiet {
		common.PrintBanner(serviceName, environment, cfg.Jira.URL, cfg.Repo.Path, common.GetLogFilePath())
	}

	logger.Info().Msg("Initializing services...")

	storage, err := services.NewStorage(&cfg.Storage)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to initialize storage")
		os.Exit(1)
	}
	defer storage.Close()

	engine, err := services.NewSyncEngine(cfg, jira.NewClient(cfg.Jira), storage, logger)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to initialize sync engine")
		os.Exit(1)
	}

	logger.Info().Msg("Services initialized successfully")

	runServerMode(cfg, storage, engine, logger)

	logger.Info().Msg("tract-sync shutdown complete")
}

func runServerMode(cfg *common.Config, storage interfaces.Store, engine *services.SyncEngine, logger arbor.ILogger) {
	webServer, err := services.NewWebServer(cfg, storage, engine.Inbound(), engine.Outbound(), engine.Creator(), engine.Worklogs(), logger)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to create web server")
		return
	}

	ctx := context.Background()
	if err := webServer.Start(ctx); err != nil {
		logger.Error().Err(err).Msg("Failed to start web server")
		return
	}

	logger.Info().
		Int("port", cfg.Sync.Port).
		Msg("Web server started successfully")

	// Retry queued offline creations from previous runs.
	if result, err := engine.Creator().Reconcile(ctx); err != nil {
		logger.Warn().Err(err).Msg("Startup queue reconciliation failed")
	} else if result.Promoted > 0 || result.StillQueued > 0 {
		logger.Info().
			Int("promoted", result.Promoted).
			Int("stillQueued", result.StillQueued).
			Msg("Startup queue reconciliation finished")
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	logger.Info().Msg("Server running - press Ctrl+C to stop")

	<-sigChan
	logger.Info().Msg("Shutdown signal received")

	// Pending worklog commits must land before exit.
	engine.Worklogs().Flush()

	if err := webServer.Stop(); err != nil {
		logger.Error().Err(err).Msg("Error stopping web server")
	}
}

func parseMode(mode string) string {
	mode = strings.ToLower(mode)
	switch mode {
	case "prod", "production":
		return "production"
	case "dev", "development":
		return "development"
	default:
		return "development"
	}
}

func showHelp() {
	fmt.Printf("%s v%s - Bidirectional ticket sync between a git-backed markdown store and Jira\n\n", serviceName, common.GetVersion())
	fmt.Println("Usage:")
	fmt.Printf("  %s [flags]\n\n", os.Args[0])
	fmt.Println("Flags:")
	fmt.Println("  -mode string        Environment mode: 'dev', 'development', 'prod', or 'production' (default \"dev\")")
	fmt.Println("  -config string      Configuration file path")
	fmt.Println("  -quiet              Suppress banner output")
	fmt.Println("  -version            Show version information")
	fmt.Println("  -help               Show help message")
	fmt.Println("  -validate           Validate configuration file and exit")
	fmt.Println("\nExamples:")
	fmt.Printf("  %s                                  # Run the sync service\n", os.Args[0])
	fmt.Printf("  %s -mode prod                       # Run in production mode\n", os.Args[0])
	fmt.Printf("  %s -config /path/to/config.toml     # Use custom config file\n", os.Args[0])
}
