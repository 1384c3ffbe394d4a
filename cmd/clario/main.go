// Command clario runs the conversational business assessment service.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/clarioapp/clario/internal/api"
	"github.com/clarioapp/clario/internal/auth"
	"github.com/clarioapp/clario/internal/catalog"
	"github.com/clarioapp/clario/internal/extract"
	"github.com/clarioapp/clario/internal/flow"
	"github.com/clarioapp/clario/internal/genai"
	"github.com/clarioapp/clario/internal/lockfile"
	"github.com/clarioapp/clario/internal/store"
)

var (
	flagConfig string
	flagEnv    string
	flagDebug  bool
)

func main() {
	root := &cobra.Command{
		Use:   "clario",
		Short: "Conversational business assessment service",
	}
	root.PersistentFlags().StringVarP(&flagConfig, "config", "c", "config.yaml", "path to YAML config file")
	root.PersistentFlags().StringVar(&flagEnv, "env-file", ".env", "path to .env file")
	root.PersistentFlags().BoolVar(&flagDebug, "debug", false, "enable debug logging")

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Start the assessment API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
	root.AddCommand(serve)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := root.ExecuteContext(ctx); err != nil {
		color.Red("Error: %v", err)
		os.Exit(1)
	}
}

func runServe(ctx context.Context) error {
	// A missing .env file is not an error; explicit environment wins anyway.
	if err := godotenv.Load(flagEnv); err == nil {
		slog.Debug("main.runServe: loaded environment file", "path", flagEnv)
	}

	cfg, err := loadConfig(flagConfig)
	if err != nil {
		return err
	}
	if flagDebug {
		cfg.Debug = true
	}
	initLogging(cfg.Debug)

	if cfg.OpenAI.APIKey == "" {
		return fmt.Errorf("OpenAI API key is required (set OPENAI_API_KEY or openai.api_key)")
	}

	lock, err := lockfile.AcquireLock(cfg.StateDir)
	if err != nil {
		return err
	}
	defer lock.Release()

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	genaiOpts := []genai.Option{genai.WithAPIKey(cfg.OpenAI.APIKey)}
	if cfg.OpenAI.Model != "" {
		genaiOpts = append(genaiOpts, genai.WithModel(cfg.OpenAI.Model))
	}
	if cfg.OpenAI.Temperature > 0 {
		genaiOpts = append(genaiOpts, genai.WithTemperature(cfg.OpenAI.Temperature))
	}
	if d := cfg.openAITimeout(); d > 0 {
		genaiOpts = append(genaiOpts, genai.WithTimeout(d))
	}
	client, err := genai.NewClient(genaiOpts...)
	if err != nil {
		return fmt.Errorf("failed to create GenAI client: %w", err)
	}

	processor := flow.NewTurnProcessor(st, catalog.Default(), client, flow.Config{
		MaxDocumentChars: cfg.MaxDocumentChars,
	})

	provider, err := buildAuthProvider(cfg)
	if err != nil {
		return err
	}

	server := api.NewServer(processor, st, extract.NewTextExtractor(), provider,
		api.WithAddr(cfg.Addr),
		api.WithMaxUploadBytes(cfg.MaxUploadBytes),
	)

	color.Green("clario listening on %s (store: %s, auth: %s)", cfg.Addr, cfg.Store.Driver, cfg.Auth.Mode)
	return server.Run(ctx)
}

func initLogging(debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

// openStore selects the persistence backend from configuration. SQLite is
// the default so a bare binary works without external services.
func openStore(cfg config) (store.Store, error) {
	switch cfg.Store.Driver {
	case "", "sqlite":
		dsn := cfg.Store.DSN
		if dsn == "" {
			dsn = filepath.Join(cfg.StateDir, "clario.db")
		}
		return store.NewSQLiteStore(store.WithDSN(dsn))
	case "postgres":
		return store.NewPostgresStore(store.WithDSN(cfg.Store.DSN))
	case "mongo":
		return store.NewMongoStore(store.WithDSN(cfg.Store.DSN))
	case "redis":
		return store.NewRedisStore(store.WithDSN(cfg.Store.DSN))
	case "memory":
		return store.NewInMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

// buildAuthProvider selects the identity provider from configuration.
func buildAuthProvider(cfg config) (auth.Provider, error) {
	switch cfg.Auth.Mode {
	case "", "trusted-header":
		return auth.NewTrustedHeaderProvider(), nil
	case "token":
		if len(cfg.Auth.Tokens) == 0 {
			return nil, fmt.Errorf("auth mode %q requires at least one token", cfg.Auth.Mode)
		}
		table := make(map[string]auth.Identity, len(cfg.Auth.Tokens))
		for token, entry := range cfg.Auth.Tokens {
			if entry.UserID == "" {
				return nil, fmt.Errorf("auth token entry missing user_id")
			}
			table[token] = auth.Identity{ID: entry.UserID, DisplayName: entry.DisplayName}
		}
		return auth.NewStaticTokenProvider(table), nil
	default:
		return nil, fmt.Errorf("unknown auth mode %q", cfg.Auth.Mode)
	}
}
