// ABOUTME: Entry point for the parrot-gateway conversational server
// ABOUTME: Wires config, store, recall cache, engine and HTTP gateway

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fatih/color"

	"github.com/Jegama/calvinist-parrot-sub000/internal/auth"
	"github.com/Jegama/calvinist-parrot-sub000/internal/config"
	"github.com/Jegama/calvinist-parrot-sub000/internal/engine"
	"github.com/Jegama/calvinist-parrot-sub000/internal/gateway"
	"github.com/Jegama/calvinist-parrot-sub000/internal/memory"
	"github.com/Jegama/calvinist-parrot-sub000/internal/metrics"
	"github.com/Jegama/calvinist-parrot-sub000/internal/recall"
	"github.com/Jegama/calvinist-parrot-sub000/internal/store"
	"github.com/Jegama/calvinist-parrot-sub000/internal/turn"
)

// Version is set by goreleaser at build time.
var version = "dev"

const banner = `
                               _
  _ __   __ _ _ __ _ __ ___ | |_
 | '_ \ / _' | '__| '__/ _ \| __|
 | |_) | (_| | |  | | | (_) | |_
 | .__/ \__,_|_|  |_|  \___/ \__|
 |_|                     gateway
`

const systemPrompt = `You are the Calvinist Parrot, a warm and careful theological assistant in the Reformed tradition. Answer from Scripture first, be pastorally gentle, and say plainly when a question is disputed among faithful Christians.`

// maxMemoryItems bounds the per-owner in-process memory store
const maxMemoryItems = 200

// getConfigPath returns the path to the gateway config file.
// Priority: PARROT_CONFIG env var > XDG_CONFIG_HOME/parrot/gateway.yaml > ~/.config/parrot/gateway.yaml
func getConfigPath() string {
	if envPath := os.Getenv("PARROT_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "gateway.yaml" // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "parrot", "gateway.yaml")
}

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: parrot-gateway <command>")
		fmt.Println()
		fmt.Println("Commands:")
		fmt.Println("  serve     Start the gateway server")
		fmt.Println("  health    Check gateway health")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(ctx)
	case "health":
		err = runHealth(ctx)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runServe(ctx context.Context) error {
	configPath := getConfigPath()

	cyan := color.New(color.FgCyan)
	cyan.Print(banner)
	gray := color.New(color.FgHiBlack)
	gray.Printf("    version: %s\n\n", version)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := setupLogger(cfg.Logging)
	slog.SetDefault(logger)

	green := color.New(color.FgGreen)
	green.Print("    ▶ ")
	fmt.Printf("Config:  %s\n", configPath)
	green.Print("    ▶ ")
	fmt.Printf("HTTP:    %s\n", cfg.Server.HTTPAddr)
	green.Print("    ▶ ")
	fmt.Printf("DB:      %s\n", cfg.Database.Path)
	if cfg.Recall.RedisEnabled {
		green.Print("    ▶ ")
		fmt.Printf("Recall:  redis %s\n", cfg.Recall.RedisAddr)
	}
	fmt.Println()

	logger.Info("starting parrot-gateway",
		"config", configPath,
		"http_addr", cfg.Server.HTTPAddr,
		"version", version,
	)

	if cfg.Metrics.Enabled {
		metrics.Init()
	}

	st, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer st.Close()

	cache, closeCache, err := buildRecallCache(cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing recall cache: %w", err)
	}
	defer closeCache()

	embedder := memory.NewOpenAIEmbedder(cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL, cfg.OpenAI.EmbedModel)
	searcher := memory.NewVectorSearcher(embedder, maxMemoryItems)

	builder := memory.NewBuilder(memory.BuilderConfig{
		Searcher:   searcher,
		Cache:      cache,
		TopK:       cfg.Memory.TopK,
		ExcerptLen: cfg.Memory.ExcerptLen,
	})

	var tools []engine.Tool
	if cfg.Tools.GotQuestionsEndpoint != "" {
		tools = append(tools, engine.NewGotQuestionsTool(cfg.Tools.GotQuestionsEndpoint, &http.Client{Timeout: 15 * time.Second}))
	}

	eng := engine.NewOpenAIEngine(engine.OpenAIEngineConfig{
		APIKey:        cfg.OpenAI.APIKey,
		BaseURL:       cfg.OpenAI.BaseURL,
		Model:         cfg.OpenAI.Model,
		ReviewerModel: cfg.OpenAI.ReviewerModel,
		Tools:         tools,
	})
	titler := engine.NewOpenAITitler(cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL, cfg.OpenAI.TitleModel)

	runner := &turn.Runner{
		Store:        st,
		Engine:       eng,
		Coordinator:  turn.NewCoordinator(st, titler, logger),
		Memory:       builder,
		Updater:      searcher,
		SystemPrompt: systemPrompt,
		Logger:       logger.With("component", "turn"),
	}

	var verifier auth.TokenVerifier
	if cfg.Auth.JWTSecret != "" {
		verifier = auth.NewJWTVerifier([]byte(cfg.Auth.JWTSecret))
	}
	resolver := &auth.Resolver{
		Verifier:   verifier,
		CookieName: cfg.Auth.AnonCookieName,
		Logger:     logger.With("component", "auth"),
	}

	gw := gateway.New(cfg, st, runner, resolver, logger)
	return gw.Run(ctx)
}

// buildRecallCache selects the recall backend from config. The returned
// close function is a no-op for the in-process cache.
func buildRecallCache(cfg *config.Config, logger *slog.Logger) (recall.Cache, func(), error) {
	if !cfg.Recall.RedisEnabled {
		return recall.NewMemoryCache(), func() {}, nil
	}

	cache, err := recall.NewRedisCache(recall.RedisConfig{
		Addr:   cfg.Recall.RedisAddr,
		DB:     cfg.Recall.RedisDB,
		Prefix: cfg.Recall.RedisPrefix,
		TTL:    cfg.Recall.TTL,
	})
	if err != nil {
		return nil, nil, err
	}
	logger.Info("recall cache backed by redis", "addr", cfg.Recall.RedisAddr)
	return cache, func() { _ = cache.Close() }, nil
}

func runHealth(ctx context.Context) error {
	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	url := fmt.Sprintf("http://%s/healthz", cfg.Server.HTTPAddr)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("gateway unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("gateway unhealthy: status %d", resp.StatusCode)
	}

	color.Green("gateway healthy")
	return nil
}

func setupLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	return slog.New(handler)
}
