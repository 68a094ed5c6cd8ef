package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/aura-dev/aura/internal/api"
	"github.com/aura-dev/aura/internal/flow"
	"github.com/aura-dev/aura/internal/genai"
	"github.com/aura-dev/aura/internal/lockfile"
	"github.com/aura-dev/aura/internal/messaging"
	"github.com/aura-dev/aura/internal/metrics"
	"github.com/aura-dev/aura/internal/scheduler"
	"github.com/aura-dev/aura/internal/services"
	"github.com/aura-dev/aura/internal/store"
	"github.com/aura-dev/aura/internal/telegram"
	"github.com/aura-dev/aura/internal/twiliowhatsapp"
	"github.com/aura-dev/aura/internal/util"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for Aura state data
	DefaultStateDir = "/var/lib/aura"
	// DefaultDBFileName is the default SQLite database filename
	DefaultDBFileName = "aura.db"
	// DefaultOutboxPollInterval is how often queued replies are claimed.
	DefaultOutboxPollInterval = time.Second
)

func main() {
	config := loadEnvironmentConfig()
	flags := parseCommandLineFlags(flag.CommandLine, os.Args[1:], config)
	initializeLogger(*flags.logLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("Bootstrapping Aura with configured modules")
	if err := run(ctx, flags); err != nil {
		slog.Error("Aura failed to run", "error", err)
		os.Exit(1)
	}
	slog.Info("Aura exited successfully")
}

// Config holds environment configuration
type Config struct {
	StateDir           string
	DBDSN              string
	APIAddr            string
	LogLevel           string
	TelegramToken      string
	TelegramWebhookURL string
	TelegramSecret     string
	TwilioAccountSID   string
	TwilioAuthToken    string
	TwilioFromNumber   string
	TwilioWebhookURL   string
	OpenAIKey          string
	OpenAIModel        string
	PortTimeout        time.Duration
	OutboxPollInterval time.Duration
	Debug              bool
}

// Flags holds command line flag values
type Flags struct {
	stateDir           *string
	dbDSN              *string
	apiAddr            *string
	logLevel           *string
	telegramToken      *string
	telegramWebhookURL *string
	telegramSecret     *string
	twilioAccountSID   *string
	twilioAuthToken    *string
	twilioFromNumber   *string
	twilioWebhookURL   *string
	openaiKey          *string
	openaiModel        *string
	portTimeout        *time.Duration
	outboxPoll         *time.Duration
	debug              *bool
}

// initializeLogger sets up structured text logging at level
func initializeLogger(level string) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: parseLogLevel(level)}))
	slog.SetDefault(logger)
}

func parseLogLevel(level string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.TrimSpace(level))); err != nil {
		return slog.LevelInfo
	}
	return l
}

// loadEnvironmentConfig loads configuration from environment variables and .env file
func loadEnvironmentConfig() Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	} else {
		slog.Debug("successfully loaded .env file")
	}

	config := Config{
		StateDir:           os.Getenv("AURA_STATE_DIR"),
		DBDSN:              os.Getenv("AURA_DB_DSN"),
		APIAddr:            os.Getenv("API_ADDR"),
		LogLevel:           os.Getenv("AURA_LOG_LEVEL"),
		TelegramToken:      os.Getenv("TELEGRAM_BOT_TOKEN"),
		TelegramWebhookURL: os.Getenv("TELEGRAM_WEBHOOK_URL"),
		TelegramSecret:     os.Getenv("TELEGRAM_WEBHOOK_SECRET"),
		TwilioAccountSID:   os.Getenv("TWILIO_ACCOUNT_SID"),
		TwilioAuthToken:    os.Getenv("TWILIO_AUTH_TOKEN"),
		TwilioFromNumber:   os.Getenv("TWILIO_FROM_NUMBER"),
		TwilioWebhookURL:   os.Getenv("TWILIO_WEBHOOK_URL"),
		OpenAIKey:          os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:        os.Getenv("OPENAI_MODEL"),
		PortTimeout:        util.ParseDurationEnv("AURA_PORT_TIMEOUT", flow.DefaultPortTimeout),
		OutboxPollInterval: util.ParseDurationEnv("AURA_OUTBOX_POLL_INTERVAL", DefaultOutboxPollInterval),
		Debug:              util.ParseBoolEnv("AURA_DEBUG", false),
	}

	if config.StateDir == "" {
		config.StateDir = DefaultStateDir
	}
	if config.LogLevel == "" {
		config.LogLevel = "info"
	}
	// AURA_DB_DSN wins over DATABASE_URL; neither means SQLite in the state directory
	if config.DBDSN == "" {
		config.DBDSN = os.Getenv("DATABASE_URL")
	}
	if config.DBDSN == "" {
		config.DBDSN = filepath.Join(config.StateDir, DefaultDBFileName)
	}
	return config
}

// parseCommandLineFlags parses args with environment defaults
func parseCommandLineFlags(fs *flag.FlagSet, args []string, config Config) Flags {
	flags := Flags{
		stateDir:           fs.String("state-dir", config.StateDir, "state directory for Aura data (overrides $AURA_STATE_DIR)"),
		dbDSN:              fs.String("db-dsn", config.DBDSN, "database DSN: SQLite path, postgres URL or :memory: (overrides $AURA_DB_DSN or $DATABASE_URL)"),
		apiAddr:            fs.String("api-addr", config.APIAddr, "API server address (overrides $API_ADDR)"),
		logLevel:           fs.String("log-level", config.LogLevel, "log level: debug, info, warn, error (overrides $AURA_LOG_LEVEL)"),
		telegramToken:      fs.String("telegram-token", config.TelegramToken, "Telegram bot token (overrides $TELEGRAM_BOT_TOKEN)"),
		telegramWebhookURL: fs.String("telegram-webhook-url", config.TelegramWebhookURL, "public URL registered as Telegram webhook (overrides $TELEGRAM_WEBHOOK_URL)"),
		telegramSecret:     fs.String("telegram-secret", config.TelegramSecret, "Telegram webhook secret token (overrides $TELEGRAM_WEBHOOK_SECRET)"),
		twilioAccountSID:   fs.String("twilio-account-sid", config.TwilioAccountSID, "Twilio account SID (overrides $TWILIO_ACCOUNT_SID)"),
		twilioAuthToken:    fs.String("twilio-auth-token", config.TwilioAuthToken, "Twilio auth token (overrides $TWILIO_AUTH_TOKEN)"),
		twilioFromNumber:   fs.String("twilio-from", config.TwilioFromNumber, "Twilio WhatsApp sender number (overrides $TWILIO_FROM_NUMBER)"),
		twilioWebhookURL:   fs.String("twilio-webhook-url", config.TwilioWebhookURL, "public Twilio webhook URL; enables signature checks (overrides $TWILIO_WEBHOOK_URL)"),
		openaiKey:          fs.String("openai-api-key", config.OpenAIKey, "OpenAI API key (overrides $OPENAI_API_KEY)"),
		openaiModel:        fs.String("openai-model", config.OpenAIModel, "default OpenAI model (overrides $OPENAI_MODEL)"),
		portTimeout:        fs.Duration("port-timeout", config.PortTimeout, "timeout of each booking, survey, agent or inventory call (overrides $AURA_PORT_TIMEOUT)"),
		outboxPoll:         fs.Duration("outbox-poll-interval", config.OutboxPollInterval, "outbox poll interval (overrides $AURA_OUTBOX_POLL_INTERVAL)"),
		debug:              fs.Bool("debug", config.Debug, "write GenAI debug logs to the state directory (overrides $AURA_DEBUG)"),
	}
	if err := fs.Parse(args); err != nil {
		slog.Warn("failed to parse flags", "error", err)
	}

	// Follow a -state-dir override when the DSN is the default SQLite path
	defaultDSN := filepath.Join(config.StateDir, DefaultDBFileName)
	if *flags.dbDSN == defaultDSN && *flags.stateDir != config.StateDir {
		*flags.dbDSN = filepath.Join(*flags.stateDir, DefaultDBFileName)
	}

	slog.Debug("flags parsed",
		"stateDir", *flags.stateDir,
		"dsnType", store.DetectDSNType(*flags.dbDSN),
		"apiAddr", *flags.apiAddr,
		"telegram", *flags.telegramToken != "",
		"twilio", *flags.twilioAccountSID != "",
		"openai", *flags.openaiKey != "")
	return flags
}

// buildTelegramOptions constructs Telegram client options; nil means the channel is disabled.
func buildTelegramOptions(flags Flags) []telegram.Option {
	if *flags.telegramToken == "" {
		return nil
	}
	opts := []telegram.Option{telegram.WithToken(*flags.telegramToken)}
	if *flags.telegramWebhookURL != "" {
		opts = append(opts, telegram.WithWebhookURL(*flags.telegramWebhookURL))
	}
	if *flags.telegramSecret != "" {
		opts = append(opts, telegram.WithSecretToken(*flags.telegramSecret))
	}
	return opts
}

// buildTwilioOptions constructs Twilio client options; nil means the channel is disabled.
func buildTwilioOptions(flags Flags) []twiliowhatsapp.Option {
	if *flags.twilioAccountSID == "" || *flags.twilioAuthToken == "" {
		return nil
	}
	return []twiliowhatsapp.Option{
		twiliowhatsapp.WithAccountSID(*flags.twilioAccountSID),
		twiliowhatsapp.WithAuthToken(*flags.twilioAuthToken),
		twiliowhatsapp.WithFromNumber(*flags.twilioFromNumber),
	}
}

// buildGenAIOptions constructs GenAI configuration options; nil means AI agents are disabled.
func buildGenAIOptions(flags Flags) []genai.Option {
	if *flags.openaiKey == "" {
		return nil
	}
	opts := []genai.Option{genai.WithAPIKey(*flags.openaiKey)}
	if *flags.openaiModel != "" {
		opts = append(opts, genai.WithModel(*flags.openaiModel))
	}
	if *flags.debug {
		opts = append(opts, genai.WithDebugMode(true), genai.WithStateDir(*flags.stateDir))
	}
	return opts
}

// buildAPIOptions constructs API server configuration options
func buildAPIOptions(flags Flags) []api.Option {
	var opts []api.Option
	if *flags.apiAddr != "" {
		opts = append(opts, api.WithAddr(*flags.apiAddr))
	}
	return opts
}

// ensureDirectoriesExist creates the parent directory of a SQLite database file
func ensureDirectoriesExist(flags Flags) error {
	if store.DetectDSNType(*flags.dbDSN) != store.DSNTypeSQLite {
		return nil
	}
	dir := filepath.Dir(*flags.dbDSN)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create database directory %s: %w", dir, err)
	}
	return nil
}

// run wires every module and serves until ctx is cancelled.
func run(ctx context.Context, flags Flags) error {
	lock, err := lockfile.AcquireLock(*flags.stateDir)
	if err != nil {
		return err
	}
	defer lock.Release()

	if err := ensureDirectoriesExist(flags); err != nil {
		return err
	}
	st, err := store.Open(*flags.dbDSN)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	app, err := assemble(st, flags)
	if err != nil {
		return err
	}
	if err := app.registry.Load(ctx); err != nil {
		return err
	}
	return app.serve(ctx)
}

// app is the wired process. assemble builds it without touching the network
// beyond client construction.
type app struct {
	store      store.Store
	registry   *flow.Registry
	router     *messaging.Router
	dispatcher *messaging.Dispatcher
	outbox     *store.OutboxSender
	server     *api.Server
}

func assemble(st store.Store, flags Flags) (*app, error) {
	m := metrics.New()

	var completer services.Completer
	if opts := buildGenAIOptions(flags); opts != nil {
		client, err := genai.NewClient(opts...)
		if err != nil {
			return nil, fmt.Errorf("create genai client: %w", err)
		}
		completer = client
		slog.Info("AI agents enabled", "model", client.Model())
	} else {
		slog.Info("OPENAI_API_KEY not set, AI agent nodes will fail to initialize")
	}

	bookings := services.NewBookingService(st)
	surveys := services.NewSurveyService(st)
	sales := services.NewSalesService(st, st)
	agents := services.NewAgentService(st, completer)

	registry := flow.NewRegistry(st, st)
	engine := flow.NewEngine(st, registry,
		flow.WithBookingPort(bookings),
		flow.WithSurveyPort(surveys),
		flow.WithInventoryPort(sales),
		flow.WithAgentPort(agents),
		flow.WithPortTimeout(*flags.portTimeout),
		flow.WithObserver(m),
	)

	router := messaging.NewRouter()
	var tgSvc *messaging.TelegramService
	if opts := buildTelegramOptions(flags); opts != nil {
		client, err := telegram.NewClient(opts...)
		if err != nil {
			return nil, fmt.Errorf("create telegram client: %w", err)
		}
		tgSvc = messaging.NewTelegramService(client, client.Secret())
		router.Register(tgSvc)
	}
	var waSvc *messaging.TwilioService
	if opts := buildTwilioOptions(flags); opts != nil {
		client, err := twiliowhatsapp.NewClient(opts...)
		if err != nil {
			return nil, fmt.Errorf("create twilio client: %w", err)
		}
		waSvc = messaging.NewTwilioService(client)
		if *flags.twilioWebhookURL != "" {
			waSvc.RequireSignature(client, *flags.twilioWebhookURL)
		}
		router.Register(waSvc)
	}
	if len(router.Services()) == 0 {
		slog.Warn("No messaging channel configured; only the HTTP API is available")
	}

	dispatcher := messaging.NewDispatcher(engine, st, router, messaging.WithDispatcherObserver(m))
	outbox := store.NewOutboxSender(st, dispatcher.SendOutbox, *flags.outboxPoll)

	server, err := api.NewServer(api.Deps{
		Engine:     engine,
		Registry:   registry,
		Dispatcher: dispatcher,
		Store:      st,
		Bookings:   bookings,
		Surveys:    surveys,
		Sales:      sales,
		Agents:     agents,
		Telegram:   tgSvc,
		Twilio:     waSvc,
		Metrics:    m,
	}, buildAPIOptions(flags)...)
	if err != nil {
		return nil, err
	}
	return &app{store: st, registry: registry, router: router, dispatcher: dispatcher, outbox: outbox, server: server}, nil
}

func (a *app) serve(ctx context.Context) error {
	if err := a.router.Start(ctx); err != nil {
		return err
	}
	defer func() {
		if err := a.router.Stop(); err != nil {
			slog.Warn("failed to stop messaging services", "error", err)
		}
	}()
	a.dispatcher.Start(ctx)

	if err := a.outbox.RecoverStaleMessages(); err != nil {
		slog.Warn("outbox recovery at startup failed", "error", err)
	}
	go a.outbox.Run(ctx)

	sched := scheduler.NewScheduler()
	defer sched.Stop()
	if err := sched.RegisterMaintenance(a.store, a.outbox); err != nil {
		return fmt.Errorf("schedule maintenance: %w", err)
	}

	if err := a.server.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
