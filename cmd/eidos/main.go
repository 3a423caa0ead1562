// Eidos command line entry point.
//
// Usage:
//
//	eidos chat                     # start a dialogue session
//	eidos chat --config eidos.yaml # with a config file
//	eidos version                  # show version information
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/eidoslabs/eidos/config"
	"github.com/eidoslabs/eidos/dialogue"
	"github.com/eidoslabs/eidos/history"
	"github.com/eidoslabs/eidos/internal/metrics"
	"github.com/eidoslabs/eidos/llm"
	"github.com/eidoslabs/eidos/retrieval"
	"github.com/eidoslabs/eidos/types"
	"github.com/eidoslabs/eidos/websearch"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "chat":
		runChat(os.Args[2:])
	case "version":
		printVersion()
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func runChat(args []string) {
	fs := flag.NewFlagSet("chat", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	metricsAddr := fs.String("metrics-addr", "", "Address to expose Prometheus metrics on (empty disables)")
	resumeID := fs.String("resume", "", "Session id to resume from the history store")
	fs.Parse(args)

	loader := config.NewLoader()
	if *configPath != "" {
		loader = loader.WithConfigPath(*configPath)
	}
	cfg, err := loader.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := initLogger(cfg.Log)
	defer logger.Sync()

	logger.Info("starting eidos",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
		zap.String("git_commit", GitCommit),
	)

	var collector *metrics.Collector
	if *metricsAddr != "" {
		collector = metrics.NewCollector("eidos", logger)
		go serveMetrics(*metricsAddr, logger)
	}

	deps, cleanup, err := buildDeps(cfg, collector, logger)
	if err != nil {
		logger.Fatal("failed to build collaborators", zap.Error(err))
	}
	defer cleanup()

	ctx := context.Background()
	var session *dialogue.Session
	if *resumeID != "" {
		session, err = dialogue.ResumeSession(ctx, cfg, deps, *resumeID)
	} else {
		session, err = dialogue.NewSession(cfg, deps)
	}
	if err != nil {
		logger.Fatal("failed to start session", zap.Error(err))
	}

	runLoop(ctx, session, logger)
}

// buildDeps wires the optional collaborators from the configuration.
// collector may be nil, in which case nothing records metrics.
func buildDeps(cfg *config.Config, collector *metrics.Collector, logger *zap.Logger) (dialogue.Deps, func(), error) {
	deps := dialogue.Deps{Logger: logger, Metrics: collector}
	var closers []func()
	cleanup := func() {
		for _, c := range closers {
			c()
		}
	}

	provider := llm.NewOpenAIProvider(llm.OpenAIConfig{
		APIKey:  cfg.LLM.APIKey,
		BaseURL: cfg.LLM.BaseURL,
		Timeout: cfg.LLM.Timeout.Std(),
	}, logger)
	if collector != nil {
		provider.WithMetrics(collector)
	}
	deps.Provider = provider

	if cfg.Retrieval.Enabled && cfg.Retrieval.PineconeAPIKey != "" {
		embedder := retrieval.NewOpenAIEmbedder(retrieval.OpenAIEmbedderConfig{
			APIKey:     cfg.LLM.APIKey,
			BaseURL:    cfg.LLM.BaseURL,
			Model:      cfg.Retrieval.EmbeddingModel,
			Dimensions: cfg.Retrieval.EmbeddingDimensions,
		}, logger)
		store := retrieval.NewPineconeStore(retrieval.PineconeConfig{
			APIKey:    cfg.Retrieval.PineconeAPIKey,
			Index:     cfg.Retrieval.PineconeIndex,
			Namespace: cfg.Retrieval.PineconeNamespace,
		}, logger)

		var cache *retrieval.QueryCache
		if cfg.Retrieval.CacheAddr != "" {
			var err error
			cache, err = retrieval.NewQueryCache(retrieval.CacheConfig{
				Addr: cfg.Retrieval.CacheAddr,
				TTL:  cfg.Retrieval.CacheTTL.Std(),
			}, logger)
			if err != nil {
				logger.Warn("query cache unavailable, continuing without it", zap.Error(err))
			} else {
				closers = append(closers, func() { cache.Close() })
			}
		}

		retriever := retrieval.NewVectorRetriever(retrieval.Config{
			DocsToUse:     cfg.Retrieval.DocsToUse,
			DocsToProcess: cfg.Retrieval.DocsToProcess,
		}, embedder, store, cache, logger)
		if collector != nil {
			retriever.WithMetrics(collector)
		}
		deps.Retriever = retriever
	}

	if cfg.Search.APIKey != "" {
		searcher := websearch.NewTavilyClient(websearch.TavilyConfig{
			APIKey:        cfg.Search.APIKey,
			BaseURL:       cfg.Search.BaseURL,
			Timeout:       cfg.Search.Timeout.Std(),
			RatePerSecond: cfg.Search.RatePerSecond,
		}, logger)
		if collector != nil {
			searcher.WithMetrics(collector)
		}
		deps.Searcher = searcher
	}

	if cfg.History.Path != "" {
		store, err := history.NewSQLiteStore(cfg.History.Path, logger)
		if err != nil {
			cleanup()
			return dialogue.Deps{}, nil, err
		}
		closers = append(closers, func() { store.Close() })
		deps.Store = store
	}

	return deps, cleanup, nil
}

// runLoop drives the stdin/stdout exchange until the session wraps up.
func runLoop(ctx context.Context, session *dialogue.Session, logger *zap.Logger) {
	fmt.Printf("eidos: %s\n", session.Greeting())
	fmt.Printf("(session %s)\n\n", session.ID())

	scanner := bufio.NewScanner(os.Stdin)
	for session.State() != dialogue.StateWrappedUp {
		fmt.Print("you: ")
		if !scanner.Scan() {
			fmt.Println()
			return
		}
		message := strings.TrimSpace(scanner.Text())
		if message == "" {
			continue
		}

		out, err := session.HandleTurn(ctx, message)
		if err != nil && out == nil {
			logger.Warn("turn failed", zap.Error(err))
			fmt.Println("eidos: I could not generate a response. Please try again.")
			continue
		}

		fmt.Printf("eidos: %s\n\n", out.Message)
		if out.Bundle != nil {
			printBundle(out.Bundle)
		} else if err != nil {
			logger.Warn("wrap-up failed", zap.Error(err))
			fmt.Println("The session has ended, but the closing summary could not be produced.")
		}
	}
}

func printBundle(bundle *types.WrapUpBundle) {
	fmt.Println("--- Key points from the conversation ---")
	for _, point := range bundle.Summary {
		fmt.Printf("  • %s\n", point)
	}
	fmt.Println("\n--- Ways to explore your beliefs further ---")
	for _, advice := range bundle.ImprovementAreas {
		fmt.Printf("  • %s\n", advice)
	}
	if len(bundle.Readings) > 0 {
		fmt.Println("\n--- Suggested readings ---")
		for _, r := range bundle.Readings {
			fmt.Printf("  • %s\n    %s\n", r.Title, r.Link)
		}
	}
}

func serveMetrics(addr string, logger *zap.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	logger.Info("metrics listening", zap.String("addr", addr))
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Warn("metrics server stopped", zap.Error(err))
	}
}

func initLogger(cfg config.LogConfig) *zap.Logger {
	var level zapcore.Level
	switch cfg.Level {
	case "debug":
		level = zapcore.DebugLevel
	case "info":
		level = zapcore.InfoLevel
	case "warn":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	default:
		level = zapcore.InfoLevel
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "timestamp"
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	zapConfig := zap.Config{
		Level:            zap.NewAtomicLevelAt(level),
		Encoding:         "json",
		EncoderConfig:    encoderConfig,
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
	}

	logger, err := zapConfig.Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to build logger: %v\n", err)
		os.Exit(1)
	}
	return logger
}

func printVersion() {
	fmt.Printf("Eidos %s\n", Version)
	fmt.Printf("  Build Time: %s\n", BuildTime)
	fmt.Printf("  Git Commit: %s\n", GitCommit)
}

func printUsage() {
	fmt.Println(`Eidos - Socratic dialogue engine

Usage:
  eidos <command> [options]

Commands:
  chat      Start a dialogue session
  version   Show version information
  help      Show this help message

Options for 'chat':
  --config <path>        Path to configuration file (YAML)
  --metrics-addr <addr>  Expose Prometheus metrics (e.g. :9090)
  --resume <session-id>  Resume a persisted session

Examples:
  eidos chat
  eidos chat --config /etc/eidos/config.yaml --metrics-addr :9090`)
}
