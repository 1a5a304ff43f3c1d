package main

import (
	"bufio"
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"

	"github.com/valet-agent/valet/agent"
	"github.com/valet-agent/valet/config"
	"github.com/valet-agent/valet/conversations"
	"github.com/valet-agent/valet/llm"
	"github.com/valet-agent/valet/llm/gemini"
	"github.com/valet-agent/valet/llm/openai"
	valetlogger "github.com/valet-agent/valet/logger"
	"github.com/valet-agent/valet/memory"
	"github.com/valet-agent/valet/memory/ollamaembed"
	"github.com/valet-agent/valet/memory/openaiembed"
	"github.com/valet-agent/valet/migrations"
	"github.com/valet-agent/valet/runtime"
	"github.com/valet-agent/valet/tools"

	_ "github.com/mattn/go-sqlite3"
)

const defaultSessionID = "default"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Parse command-line flags
	var (
		configPath = flag.String("config", "valet.yaml", "Path to YAML config file")
		dbPath     = flag.String("db", "", "Path to SQLite database file (overrides config)")
		logFile    = flag.String("logfile", "", "Path to log file. If not set, logs to stdout/stderr")
		pretty     = flag.Bool("pretty", false, "Use pretty console output (only valid when logfile is not set)")
		model      = flag.String("model", "", "Model provider: openai or gemini (overrides config)")
		persona    = flag.String("persona", "", "Persona: personal, research, or technical (overrides config)")
		sessionID  = flag.String("session", defaultSessionID, "Session identifier for memory scoping")
	)
	flag.Parse()

	if *logFile != "" && *pretty {
		return fmt.Errorf("--logfile and --pretty are mutually exclusive")
	}

	logger, err := valetlogger.InitWithOptions(*logFile, *pretty)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if *dbPath != "" {
		cfg.DBPath = *dbPath
	}
	if *model != "" {
		cfg.Model.Provider = *model
	}
	if *persona != "" {
		cfg.Persona = *persona
	}

	logger.Info().
		Str("provider", cfg.Model.Provider).
		Str("persona", cfg.Persona).
		Str("db", cfg.DBPath).
		Msg("valet starting")

	// ---------------------------
	// 1. Open SQLite + Memory
	// ---------------------------

	db, err := sql.Open("sqlite3", cfg.DBPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close() //nolint:errcheck // No remedy for db close errors

	if err := migrations.RunMigrations(db, "./migrations", logger); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	embedder, err := buildEmbedder(cfg)
	if err != nil {
		return fmt.Errorf("failed to create embedder: %w", err)
	}

	memoryStore, err := memory.NewStore(db, embedder, logger)
	if err != nil {
		return fmt.Errorf("failed to create memory store: %w", err)
	}

	memoryManager := memory.NewManager(memoryStore, memory.ManagerConfig{
		STMCapacity:        cfg.Memory.STMCapacity,
		STMWindow:          cfg.Memory.STMWindow,
		TopK:               cfg.Memory.TopK,
		RelevanceFloor:     cfg.Memory.RelevanceFloor,
		DuplicateThreshold: cfg.Memory.DuplicateThreshold,
		MinImportance:      cfg.Consolidation.MinImportance,
		Async:              cfg.Consolidation.Async,
		Signals: memory.Signals{
			PreferenceKeywords: cfg.Consolidation.Signals.PreferenceKeywords,
			IdentityKeywords:   cfg.Consolidation.Signals.IdentityKeywords,
			RememberKeywords:   cfg.Consolidation.Signals.RememberKeywords,
			LengthBonusChars:   cfg.Consolidation.Signals.LengthBonusChars,
		},
	}, logger)
	defer memoryManager.Close()

	conversationStore := conversations.NewStore(db)

	// ---------------------------
	// 2. Language Model Client
	// ---------------------------

	client, modelName, err := buildClient(cfg)
	if err != nil {
		return fmt.Errorf("failed to create llm client: %w", err)
	}

	// ---------------------------
	// 3. Tools
	// ---------------------------

	registry, err := buildRegistry(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to register tools: %w", err)
	}

	// ---------------------------
	// 4. Agent
	// ---------------------------

	valet, err := agent.New(agent.Options{
		Provider:    cfg.Model.Provider,
		Model:       modelName,
		PersonaName: cfg.Persona,
		Client:      client,
		Memory:      memoryManager,
		Tools:       registry,
		Transcript:  conversationStore,
		ToolTimeout: time.Duration(cfg.Tools.TimeoutSeconds) * time.Second,
		Logger:      logger,
	})
	if err != nil {
		return err
	}

	// ---------------------------
	// 5. Background Reflection
	// ---------------------------

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Reflection.Enabled {
		summarizer := memory.NewClientSummarizer(client, modelName)
		scheduler, err := runtime.NewScheduler(memoryManager, summarizer, cfg.Reflection.Schedule, logger)
		if err != nil {
			return fmt.Errorf("failed to create scheduler: %w", err)
		}
		go scheduler.Start(ctx)
		logger.Info().Str("schedule", cfg.Reflection.Schedule).Msg("Reflection scheduler started")
	}

	// ---------------------------
	// 6. Interactive Loop
	// ---------------------------

	return repl(ctx, valet, *sessionID, logger)
}

// buildEmbedder selects the embedding backend from the configuration.
func buildEmbedder(cfg *config.Settings) (memory.Embedder, error) {
	switch cfg.Embedding.Provider {
	case "ollama":
		model := cfg.Ollama.Model
		if cfg.Embedding.Model != "" {
			model = cfg.Embedding.Model
		}
		return ollamaembed.NewEmbedder(ollamaembed.Model(model))
	case "openai":
		return openaiembed.NewEmbedder(cfg.OpenAI.APIKey, openaiembed.Model(cfg.Embedding.Model))
	default:
		return nil, fmt.Errorf("unknown embedding provider %q (valid: openai, ollama)", cfg.Embedding.Provider)
	}
}

// buildClient constructs the completion client for the configured provider
// and returns it with the provider-specific model name.
func buildClient(cfg *config.Settings) (llm.Client, string, error) {
	name := cfg.Model.Name
	switch cfg.Model.Provider {
	case llm.ProviderOpenAI:
		if name == "" {
			name = cfg.OpenAI.Model
		}
		client, err := openai.NewClient(cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL, name, cfg.OpenAI.Organization)
		return client, name, err
	case llm.ProviderGemini:
		if name == "" {
			name = cfg.Gemini.Model
		}
		client, err := gemini.NewClient(cfg.Gemini.APIKey, cfg.Gemini.BaseURL, name)
		return client, name, err
	default:
		return nil, "", &agent.ConfigurationError{
			Field: "model",
			Value: cfg.Model.Provider,
			Valid: llm.ValidProviders(),
		}
	}
}

// buildRegistry registers every built-in tool.
func buildRegistry(cfg *config.Settings, logger zerolog.Logger) (*tools.Registry, error) {
	registry := tools.NewRegistry(logger)
	httpClient := resty.New()

	if err := tools.RegisterCalculatorTool(registry); err != nil {
		return nil, err
	}
	if err := tools.RegisterWeatherTool(registry, httpClient, ""); err != nil {
		return nil, err
	}
	if err := tools.RegisterWebSearchTool(registry, httpClient, ""); err != nil {
		return nil, err
	}
	if err := tools.RegisterFilesystemTools(registry, cfg.Tools.FilesRoot); err != nil {
		return nil, err
	}
	if err := tools.RegisterNotificationTool(registry, nil); err != nil {
		return nil, err
	}
	logger.Info().Strs("tools", registry.Names()).Msg("Registered tools")
	return registry, nil
}

const replHelp = `Commands:
  /persona <name>  switch persona (personal, research, technical)
  /clear           forget everything for this session
  /help            show this help
  /quit            exit`

// repl reads user turns from stdin until EOF or interrupt.
func repl(ctx context.Context, valet *agent.Agent, sessionID string, logger zerolog.Logger) error {
	fmt.Printf("valet ready (persona: %s). Type /help for commands.\n", valet.Persona())

	scanner := bufio.NewScanner(os.Stdin)
	lines := make(chan string)
	go func() {
		defer close(lines)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		fmt.Print("> ")
		var line string
		var ok bool
		select {
		case <-ctx.Done():
			fmt.Println()
			logger.Info().Msg("valet shutdown")
			return nil
		case line, ok = <-lines:
			if !ok {
				fmt.Println()
				return scanner.Err()
			}
		}

		if strings.HasPrefix(strings.TrimSpace(line), "/") {
			if done := handleCommand(ctx, valet, sessionID, strings.TrimSpace(line)); done {
				return nil
			}
			continue
		}

		result, err := valet.ProcessTurn(ctx, sessionID, line)
		switch {
		case errors.Is(err, agent.ErrTurnBusy):
			fmt.Println("Still working on the previous turn, one moment.")
			continue
		case err != nil:
			return err
		}
		fmt.Println(result.ResponseText)
	}
}

// handleCommand processes a slash command. Returns true when the loop should
// exit.
func handleCommand(ctx context.Context, valet *agent.Agent, sessionID, line string) bool {
	cmd, arg, _ := strings.Cut(line, " ")
	switch cmd {
	case "/quit", "/exit":
		return true
	case "/help":
		fmt.Println(replHelp)
	case "/persona":
		if err := valet.SetPersona(strings.TrimSpace(arg)); err != nil {
			fmt.Println(err)
			break
		}
		fmt.Printf("Persona switched to %s.\n", valet.Persona())
	case "/clear":
		if err := valet.ClearMemory(ctx, sessionID); err != nil {
			fmt.Printf("Failed to clear memory: %v\n", err)
			break
		}
		fmt.Println("Memory cleared for this session.")
	default:
		fmt.Printf("Unknown command %s. Type /help for commands.\n", cmd)
	}
	return false
}
