package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/lumewell/companion/internal/api"
	"github.com/lumewell/companion/internal/dialogue"
	"github.com/lumewell/companion/internal/genai"
	"github.com/lumewell/companion/internal/lockfile"
	"github.com/lumewell/companion/internal/profile"
	"github.com/lumewell/companion/internal/relationship"
	"github.com/lumewell/companion/internal/scheduler"
	"github.com/lumewell/companion/internal/store"
	"github.com/lumewell/companion/internal/util"
)

// Default configuration constants.
const (
	// DefaultStateDir is the default directory for companion state data.
	DefaultStateDir = "/var/lib/companion"
	// DefaultDBFileName is the default SQLite database filename.
	DefaultDBFileName = "companion.db"
	// DefaultShutdownTimeout bounds the graceful HTTP drain on exit.
	DefaultShutdownTimeout = 10 * time.Second
)

func main() {
	initializeLogger()

	config := loadEnvironmentConfig()
	flags := parseCommandLineFlags(config)

	lock, err := lockfile.Acquire(*flags.stateDir)
	if err != nil {
		slog.Error("Failed to acquire state directory lock", "error", err)
		os.Exit(1)
	}
	defer lock.Release()

	st, err := openStore(flags)
	if err != nil {
		slog.Error("Failed to open store", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	profiles, err := buildProfileSource(flags)
	if err != nil {
		slog.Error("Failed to load character profiles", "error", err)
		os.Exit(1)
	}

	rel := relationship.NewManager(st, profiles)
	orch := dialogue.NewOrchestrator(buildCompleter(flags), profiles,
		dialogue.WithTimeout(util.ParseDurationEnv("DIALOGUE_TIMEOUT", dialogue.DefaultTimeout)),
		dialogue.WithChartTimeout(util.ParseDurationEnv("CHART_TIMEOUT", dialogue.DefaultChartTimeout)),
	)
	server := api.NewServer(st, profiles, rel, orch, buildAPIOptions(flags)...)

	// Serve until interrupted, then drain.
	errCh := make(chan error, 1)
	go func() { errCh <- server.Run() }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			slog.Error("Companion daemon failed to run", "error", err)
			os.Exit(1)
		}
	case sig := <-sigCh:
		slog.Info("Received shutdown signal", "signal", sig.String())
		ctx, cancel := context.WithTimeout(context.Background(), DefaultShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			slog.Error("Shutdown failed", "error", err)
			os.Exit(1)
		}
	}
	slog.Info("Companion daemon exited successfully")
}

// Config holds environment configuration.
type Config struct {
	DatabaseURL string
	StateDir    string
	APIKey      string
	BaseURL     string
	Model       string
	APIAddr     string
	SweepSpec   string
	ProfileDir  string
}

// Flags holds command line flag values.
type Flags struct {
	stateDir   *string
	dbDSN      *string
	apiKey     *string
	baseURL    *string
	model      *string
	apiAddr    *string
	sweepSpec  *string
	profileDir *string
}

// initializeLogger sets up structured logging. COMPANION_DEBUG bumps the
// level to debug.
func initializeLogger() {
	level := slog.LevelInfo
	if util.ParseBoolEnv("COMPANION_DEBUG", false) {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
}

// loadEnvironmentConfig loads configuration from environment variables and a
// .env file.
func loadEnvironmentConfig() Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	} else {
		slog.Debug("successfully loaded .env file")
	}

	config := Config{
		DatabaseURL: os.Getenv("DATABASE_URL"),
		StateDir:    os.Getenv("COMPANION_STATE_DIR"),
		APIKey:      os.Getenv("OPENAI_API_KEY"),
		BaseURL:     os.Getenv("MODEL_BASE_URL"),
		Model:       os.Getenv("MODEL_NAME"),
		APIAddr:     os.Getenv("API_ADDR"),
		SweepSpec:   os.Getenv("PROACTIVE_SWEEP_CRON"),
		ProfileDir:  os.Getenv("COMPANION_PROFILE_DIR"),
	}

	if config.StateDir == "" {
		config.StateDir = DefaultStateDir
		slog.Debug("No COMPANION_STATE_DIR set, using default", "default_state_dir", config.StateDir)
	}
	if config.DatabaseURL == "" {
		config.DatabaseURL = filepath.Join(config.StateDir, DefaultDBFileName)
		slog.Debug("No database DSN provided, defaulting to SQLite", "sqlite_path", config.DatabaseURL)
	}
	if config.SweepSpec == "" {
		config.SweepSpec = scheduler.DefaultSweepSpec
	}

	slog.Debug("environment variables loaded",
		"DATABASE_URL_SET", config.DatabaseURL != "",
		"COMPANION_STATE_DIR", config.StateDir,
		"OPENAI_API_KEY_SET", config.APIKey != "",
		"MODEL_BASE_URL", config.BaseURL,
		"MODEL_NAME", config.Model,
		"API_ADDR", config.APIAddr,
		"PROACTIVE_SWEEP_CRON", config.SweepSpec,
		"COMPANION_PROFILE_DIR", config.ProfileDir)

	return config
}

// parseCommandLineFlags parses command line arguments with environment defaults.
func parseCommandLineFlags(config Config) Flags {
	flags := Flags{
		stateDir:   flag.String("state-dir", config.StateDir, "state directory for companion data (overrides $COMPANION_STATE_DIR)"),
		dbDSN:      flag.String("db-dsn", config.DatabaseURL, "database DSN: SQLite path, postgres://, or redis:// (overrides $DATABASE_URL)"),
		apiKey:     flag.String("openai-api-key", config.APIKey, "model API key (overrides $OPENAI_API_KEY)"),
		baseURL:    flag.String("model-base-url", config.BaseURL, "chat-completions endpoint base (overrides $MODEL_BASE_URL)"),
		model:      flag.String("model", config.Model, "model identifier (overrides $MODEL_NAME)"),
		apiAddr:    flag.String("api-addr", config.APIAddr, "API server address (overrides $API_ADDR)"),
		sweepSpec:  flag.String("sweep-cron", config.SweepSpec, "cron expression for the proactive sweep (overrides $PROACTIVE_SWEEP_CRON)"),
		profileDir: flag.String("profile-dir", config.ProfileDir, "directory of character profile JSON files (overrides $COMPANION_PROFILE_DIR)"),
	}

	flag.Parse()

	// Follow an overridden state directory when the DSN was defaulted from it.
	if *flags.dbDSN == filepath.Join(config.StateDir, DefaultDBFileName) && *flags.stateDir != config.StateDir {
		*flags.dbDSN = filepath.Join(*flags.stateDir, DefaultDBFileName)
		slog.Debug("Updated dbDSN based on state directory", "new_state_dir", *flags.stateDir)
	}

	slog.Debug("flags parsed",
		"stateDir", *flags.stateDir,
		"dbDSN_set", *flags.dbDSN != "",
		"apiKeySet", *flags.apiKey != "",
		"apiAddr", *flags.apiAddr,
		"sweepSpec", *flags.sweepSpec,
		"profileDir", *flags.profileDir)

	return flags
}

// openStore selects and opens the store backend from the DSN.
func openStore(flags Flags) (store.Store, error) {
	dsn := *flags.dbDSN
	switch store.DetectDSNType(dsn) {
	case "postgres":
		slog.Debug("Detected PostgreSQL DSN, configuring PostgreSQL store")
		return store.NewPostgresStore(store.WithPostgresDSN(dsn))
	case "redis":
		addr, db := parseRedisDSN(dsn)
		slog.Debug("Detected Redis DSN, configuring Redis store", "addr", addr, "db", db)
		return store.NewRedisStore(store.WithRedisAddr(addr), store.WithRedisDB(db))
	default:
		slog.Debug("Configuring SQLite store", "db_path", dsn)
		return store.NewSQLiteStore(store.WithSQLiteDSN(dsn))
	}
}

// parseRedisDSN splits "redis://host:port/db" into address and database index.
func parseRedisDSN(dsn string) (string, int) {
	addr := strings.TrimPrefix(dsn, "redis://")
	db := 0
	if idx := strings.LastIndex(addr, "/"); idx != -1 {
		if n, err := strconv.Atoi(addr[idx+1:]); err == nil {
			db = n
		}
		addr = addr[:idx]
	}
	return addr, db
}

// buildProfileSource constructs the character profile source.
func buildProfileSource(flags Flags) (*profile.StaticSource, error) {
	var opts []profile.Option
	if *flags.profileDir != "" {
		opts = append(opts, profile.WithProfileDir(*flags.profileDir))
	}
	return profile.NewSource(opts...)
}

// buildCompleter constructs the model client, or nil when no API key is
// configured. A nil client keeps the daemon serving template-backed replies
// for chart interpretation while dialogue turns report the missing key.
func buildCompleter(flags Flags) dialogue.Completer {
	if *flags.apiKey == "" {
		slog.Warn("No model API key configured; dialogue requests will fail until one is set")
		return nil
	}

	opts := []genai.Option{genai.WithAPIKey(*flags.apiKey)}
	if *flags.baseURL != "" {
		opts = append(opts, genai.WithBaseURL(*flags.baseURL))
	}
	if *flags.model != "" {
		opts = append(opts, genai.WithModel(*flags.model))
	}
	client, err := genai.NewClient(opts...)
	if err != nil {
		slog.Error("Failed to create model client", "error", err)
		return nil
	}
	return client
}

// buildAPIOptions constructs API server configuration options.
func buildAPIOptions(flags Flags) []api.Option {
	var apiOpts []api.Option
	if *flags.apiAddr != "" {
		apiOpts = append(apiOpts, api.WithAddr(*flags.apiAddr))
	}
	if *flags.sweepSpec != "" {
		apiOpts = append(apiOpts, api.WithSweepSpec(*flags.sweepSpec))
	}
	return apiOpts
}
