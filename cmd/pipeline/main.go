// Package main is the entry point for the futures trading pipeline.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"github.com/yciu/futures-pipeline/internal/alerting"
	"github.com/yciu/futures-pipeline/internal/broker/sim"
	"github.com/yciu/futures-pipeline/internal/condition"
	"github.com/yciu/futures-pipeline/internal/config"
	"github.com/yciu/futures-pipeline/internal/executor"
	"github.com/yciu/futures-pipeline/internal/gateway"
	"github.com/yciu/futures-pipeline/internal/journal"
	"github.com/yciu/futures-pipeline/internal/lifecycle"
	"github.com/yciu/futures-pipeline/internal/metrics"
	"github.com/yciu/futures-pipeline/internal/session"
	"github.com/yciu/futures-pipeline/internal/strategy"
	"github.com/yciu/futures-pipeline/internal/transport"
	"github.com/yciu/futures-pipeline/internal/types"
)

// Version information (set by build flags).
var (
	Version   = "0.1.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "version", "-v", "--version":
		cmdVersion()
	case "help", "-h", "--help":
		printUsage()
	case "run":
		cmdRun(os.Args[2:])
	case "host":
		cmdHost(os.Args[2:])
	case "strategy":
		cmdStrategy(os.Args[2:])
	case "executor":
		cmdExecutor(os.Args[2:])
	case "login":
		cmdLogin(os.Args[2:])
	case "condition":
		cmdCondition(os.Args[2:])
	case "validate":
		cmdValidate(os.Args[2:])
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`Futures Trading Pipeline

Usage:
  pipeline <command> [options]

Commands:
  run        Start the full pipeline in one process (simulated broker)
  host       Start the gateway server and tick publisher
  strategy   Start the strategy engine process
  executor   Start the order executor process
  login      Create the trading session
  condition  Manage trading conditions (add, list, delete)
  validate   Validate configuration file
  version    Show version information
  help       Show this help message

Examples:
  pipeline run --config config.yaml
  pipeline login --config config.yaml --account F0001 --item-code TXF
  pipeline condition add --config config.yaml --action BUY --trigger 18000 --turning 50 --tp 100 --sl 50
  pipeline validate --config config.yaml

Use "pipeline <command> --help" for more information about a command.`)
}

func cmdVersion() {
	fmt.Printf("pipeline version %s\n", Version)
	fmt.Printf("  Build time: %s\n", BuildTime)
	fmt.Printf("  Git commit: %s\n", GitCommit)
}

// loadConfig loads .env (best effort) and the YAML configuration.
// Configuration failures are fatal.
func loadConfig(path string) *config.Config {
	_ = godotenv.Load()

	cfg, err := config.Load(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}
	return cfg
}

// setupLogging builds the process logger from the logging config and
// installs it as the slog default.
func setupLogging(cfg *config.Config) *slog.Logger {
	var level slog.Level
	switch cfg.Logging.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	var handler slog.Handler
	if cfg.Logging.Format == "text" {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	} else {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

func buildAlerter(cfg *config.Config, logger *slog.Logger) alerting.Alerter {
	if !cfg.Alerting.Enabled {
		return nil
	}

	multi := alerting.NewMultiAlerter(logger)
	for _, ch := range cfg.Alerting.Channels {
		switch ch.Type {
		case "console":
			multi.AddAlerter(alerting.NewConsoleAlerter(logger))
		case "telegram":
			multi.AddAlerter(alerting.NewTelegramAlerter(alerting.TelegramConfig{
				BotToken: ch.BotToken,
				ChatID:   ch.ChatID,
			}))
		}
	}
	return multi
}

func openJournal(cfg *config.Config, logger *slog.Logger) *journal.Journal {
	if !cfg.Journal.Enabled {
		return nil
	}

	jrnl, err := journal.Open(cfg.Journal.Path)
	if err != nil {
		logger.Warn("journal unavailable, continuing without it",
			"path", cfg.Journal.Path,
			"err", err,
		)
		return nil
	}
	return jrnl
}

func startMetrics(cfg *config.Config, logger *slog.Logger, checks map[string]metrics.HealthChecker) *metrics.Server {
	if !cfg.Metrics.Enabled {
		return nil
	}

	srv := metrics.NewServer(metrics.ServerConfig{
		Addr:        fmt.Sprintf(":%d", cfg.Metrics.Port),
		MetricsPath: cfg.Metrics.Path,
	}, logger)
	for name, check := range checks {
		srv.RegisterHealthCheck(name, check)
	}
	_ = srv.Start()
	return srv
}

func cmdValidate(args []string) {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	configPath := fs.String("config", "config.yaml", "Path to configuration file")
	_ = fs.Parse(args)

	cfg := loadConfig(*configPath)

	fmt.Println("Configuration is valid!")
	fmt.Printf("  Tick publish: %s\n", cfg.Endpoints.TickPublish)
	fmt.Printf("  Signal pipe:  %s\n", cfg.Endpoints.SignalPipe)
	fmt.Printf("  Gateway RPC:  %s\n", cfg.Endpoints.Gateway)
	fmt.Printf("  Broker:       %s (%s)\n", cfg.Broker.Type, cfg.Broker.ItemCode)
}

func cmdLogin(args []string) {
	fs := flag.NewFlagSet("login", flag.ExitOnError)
	configPath := fs.String("config", "config.yaml", "Path to configuration file")
	account := fs.String("account", "", "Login account (required)")
	orderAccount := fs.String("order-account", "", "Order account (defaults to login account)")
	itemCode := fs.String("item-code", "", "Traded item code")
	_ = fs.Parse(args)

	if *account == "" {
		fmt.Fprintln(os.Stderr, "Error: --account is required")
		fs.Usage()
		os.Exit(1)
	}

	cfg := loadConfig(*configPath)
	logger := setupLogging(cfg)

	store := session.NewStore(cfg.Session.Path, cfg.SessionTimeout(), logger)
	if _, err := store.Create(*account); err != nil {
		logger.Error("failed to create session", "err", err)
		os.Exit(1)
	}

	oa := *orderAccount
	if oa == "" {
		oa = *account
	}
	if err := store.SetOrderAccount(oa); err != nil {
		logger.Error("failed to set order account", "err", err)
		os.Exit(1)
	}

	code := *itemCode
	if code == "" {
		code = cfg.Broker.ItemCode
	}
	if err := store.SetItemCode(code); err != nil {
		logger.Error("failed to set item code", "err", err)
		os.Exit(1)
	}

	fmt.Printf("Session created for %s (order account %s, item %s)\n", *account, oa, code)
}

func cmdCondition(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: pipeline condition <add|list|delete> [options]")
		os.Exit(1)
	}

	switch args[0] {
	case "add":
		conditionAdd(args[1:])
	case "list":
		conditionList(args[1:])
	case "delete":
		conditionDelete(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "Unknown condition command: %s\n", args[0])
		os.Exit(1)
	}
}

func conditionAdd(args []string) {
	fs := flag.NewFlagSet("condition add", flag.ExitOnError)
	configPath := fs.String("config", "config.yaml", "Path to configuration file")
	action := fs.String("action", "", "BUY or SELL (required)")
	trigger := fs.String("trigger", "", "Trigger price (required)")
	turning := fs.Int64("turning", 0, "Turning point distance")
	quantity := fs.Int64("quantity", 1, "Order quantity")
	tp := fs.Int64("tp", 0, "Take-profit point distance")
	sl := fs.Int64("sl", 0, "Stop-loss point distance")
	following := fs.Bool("following", false, "Trail the trigger price")
	_ = fs.Parse(args)

	cfg := loadConfig(*configPath)
	logger := setupLogging(cfg)

	op, err := types.ParseOperation(*action)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	price, err := decimal.NewFromString(*trigger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: invalid trigger price %q\n", *trigger)
		os.Exit(1)
	}

	store := condition.NewStore(cfg.Condition.Path, logger)
	cond, err := store.Create(condition.Params{
		Action:          op,
		TriggerPrice:    price,
		TurningPoint:    *turning,
		Quantity:        *quantity,
		TakeProfitPoint: *tp,
		StopLossPoint:   *sl,
		IsFollowing:     *following,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Created condition %s: %s trigger=%s order=%s tp=%s sl=%s\n",
		cond.ID, cond.Action, cond.TriggerPrice, cond.OrderPrice,
		cond.TakeProfitPrice, cond.StopLossPrice)
}

func conditionList(args []string) {
	fs := flag.NewFlagSet("condition list", flag.ExitOnError)
	configPath := fs.String("config", "config.yaml", "Path to configuration file")
	_ = fs.Parse(args)

	cfg := loadConfig(*configPath)
	logger := setupLogging(cfg)

	store := condition.NewStore(cfg.Condition.Path, logger)
	conds, err := store.GetAll()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if len(conds) == 0 {
		fmt.Println("No conditions.")
		return
	}
	for _, c := range conds {
		fmt.Printf("%s  %-4s  state=%-9s trigger=%s order=%s tp=%s sl=%s following=%v\n",
			c.ID, c.Action, c.State, c.TriggerPrice, c.OrderPrice,
			c.TakeProfitPrice, c.StopLossPrice, c.IsFollowing)
	}
}

func conditionDelete(args []string) {
	fs := flag.NewFlagSet("condition delete", flag.ExitOnError)
	configPath := fs.String("config", "config.yaml", "Path to configuration file")
	id := fs.String("id", "", "Condition ID (required, or 'all')")
	_ = fs.Parse(args)

	if *id == "" {
		fmt.Fprintln(os.Stderr, "Error: --id is required")
		os.Exit(1)
	}

	cfg := loadConfig(*configPath)
	logger := setupLogging(cfg)

	store := condition.NewStore(cfg.Condition.Path, logger)
	if *id == "all" {
		if err := store.DeleteAll(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Deleted all conditions.")
		return
	}

	if err := store.Delete(*id); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Deleted condition %s\n", *id)
}

// cmdRun starts the full pipeline in one process against the simulated
// broker: gateway, tick publisher, strategy and executor under the
// lifecycle manager.
func cmdRun(args []string) {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	configPath := fs.String("config", "config.yaml", "Path to configuration file")
	_ = fs.Parse(args)

	cfg := loadConfig(*configPath)
	logger := setupLogging(cfg)

	ctx, stop := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("pipeline starting",
		"version", Version,
		"broker", cfg.Broker.Type,
		"item_code", cfg.Broker.ItemCode,
	)
	metrics.SetBuildInfo(Version, GitCommit, BuildTime)

	sessions := session.NewStore(cfg.Session.Path, cfg.SessionTimeout(), logger)
	if !sessions.IsLoggedIn() {
		// Single-process simulated deployment owns its own session.
		if _, err := sessions.Create(cfg.Broker.Account); err != nil {
			logger.Error("failed to create session", "err", err)
			os.Exit(1)
		}
		_ = sessions.SetOrderAccount(cfg.Broker.Account)
		_ = sessions.SetItemCode(cfg.Broker.ItemCode)
	}

	conditions := condition.NewStore(cfg.Condition.Path, logger)
	jrnl := openJournal(cfg, logger)
	alerter := buildAlerter(cfg, logger)

	brk := sim.New(sim.Config{
		Account:      cfg.Broker.Account,
		StartPrice:   decimal.NewFromFloat(cfg.Broker.SimStartPrice),
		TickInterval: cfg.SimTickInterval(),
		RejectEvery:  cfg.Broker.SimRejectEvery,
	}, logger)

	gwServer := gateway.NewServer(gateway.ServerConfig{
		Endpoint:        cfg.Endpoints.Gateway,
		StopTimeout:     cfg.GatewayStopTimeout(),
		OrdersPerSecond: cfg.Gateway.OrdersPerSecond,
	}, brk, logger)

	publisher := transport.NewTickPublisher(
		cfg.Endpoints.TickPublish, cfg.Publisher.Topic, cfg.StartupPause(), logger)

	var (
		subscriber *transport.TickSubscriber
		pusher     *transport.SignalPusher
		puller     *transport.SignalPuller
		engine     *strategy.Engine
		exec       *executor.Executor
		gwClient   *gateway.Client
	)

	manager := lifecycle.NewManager(lifecycle.Config{
		StartupGrace:    cfg.StartupGrace(),
		ShutdownTimeout: cfg.ShutdownTimeout(),
		PreflightEndpoints: []string{
			cfg.Endpoints.TickPublish,
			cfg.Endpoints.SignalPipe,
			cfg.Endpoints.Gateway,
		},
	}, alerter, logger)

	manager.Register(lifecycle.NewComponent("gateway",
		func(ctx context.Context) error {
			if err := brk.Connect(ctx); err != nil {
				return err
			}
			return gwServer.Start()
		},
		func() error {
			if err := gwServer.Stop(); err != nil {
				return err
			}
			return brk.Disconnect()
		},
	))

	manager.Register(lifecycle.NewComponent("tick-publisher",
		func(ctx context.Context) error {
			if err := publisher.Start(ctx); err != nil {
				return err
			}
			ticks, err := brk.Ticks(ctx, cfg.Broker.ItemCode)
			if err != nil {
				return err
			}
			go func() {
				for raw := range ticks {
					if err := publisher.PublishRaw(raw); err != nil {
						logger.Warn("failed to publish tick", "err", err)
					}
				}
			}()
			return nil
		},
		publisher.Close,
	))

	manager.Register(lifecycle.NewComponent("strategy",
		func(ctx context.Context) error {
			var err error
			subscriber, err = transport.NewTickSubscriber(
				ctx, cfg.Endpoints.TickPublish, cfg.Publisher.Topic, logger)
			if err != nil {
				return err
			}
			pusher, err = transport.NewSignalPusher(ctx, cfg.Endpoints.SignalPipe, logger)
			if err != nil {
				_ = subscriber.Close()
				return err
			}
			engine = strategy.NewEngine(conditions, pusher, signalJournal(jrnl), logger)
			return engine.Start(ctx, subscriber.Ticks())
		},
		func() error {
			if engine != nil {
				_ = engine.Stop()
			}
			if pusher != nil {
				_ = pusher.Close()
			}
			if subscriber != nil {
				_ = subscriber.Close()
			}
			return nil
		},
	))

	manager.Register(lifecycle.NewComponent("executor",
		func(ctx context.Context) error {
			var err error
			puller, err = transport.NewSignalPuller(ctx, cfg.Endpoints.SignalPipe, logger)
			if err != nil {
				return err
			}
			gwClient = gateway.NewClient(gateway.ClientConfig{
				Endpoint:   cfg.Endpoints.Gateway,
				Timeout:    cfg.RequestTimeout(),
				RetryCount: cfg.Gateway.RetryCount,
			}, logger)
			exec = executor.New(executor.Config{
				DefaultQuantity: cfg.Executor.DefaultQuantity,
			}, gwClient, sessions, orderJournal(jrnl), alerter, logger)
			return exec.Start(ctx, puller.Payloads())
		},
		func() error {
			if exec != nil {
				_ = exec.Stop()
			}
			if gwClient != nil {
				_ = gwClient.Close()
			}
			if puller != nil {
				_ = puller.Close()
			}
			return nil
		},
	))

	metricsSrv := startMetrics(cfg, logger, map[string]metrics.HealthChecker{
		"pipeline": func() metrics.Check {
			if manager.IsHealthy() {
				return metrics.Check{Status: "healthy"}
			}
			return metrics.Check{Status: "unhealthy", Message: "not all components running"}
		},
		"exchange": func() metrics.Check {
			if brk.IsConnected() {
				return metrics.Check{Status: "healthy"}
			}
			return metrics.Check{Status: "unhealthy", Message: "exchange disconnected"}
		},
	})

	if err := manager.StartAll(ctx); err != nil {
		logger.Error("failed to start trading system", "err", err)
		os.Exit(1)
	}
	if alerter != nil {
		_ = alerter.Alert(ctx, alerting.SeverityInfo, "Pipeline started",
			"version", Version, "item_code", cfg.Broker.ItemCode)
	}

	<-ctx.Done()
	logger.Info("shutdown signal received")

	manager.StopAll()

	if metricsSrv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = metricsSrv.Shutdown(shutdownCtx)
		cancel()
	}
	if jrnl != nil {
		_ = jrnl.Close()
	}
	if alerter != nil {
		_ = alerter.Alert(context.Background(), alerting.SeverityInfo, "Pipeline stopped")
	}

	logger.Info("pipeline shutdown complete")
}

// cmdHost starts the host process: broker capability, gateway server and
// tick publisher.
func cmdHost(args []string) {
	fs := flag.NewFlagSet("host", flag.ExitOnError)
	configPath := fs.String("config", "config.yaml", "Path to configuration file")
	_ = fs.Parse(args)

	cfg := loadConfig(*configPath)
	logger := setupLogging(cfg)

	ctx, stop := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	brk := sim.New(sim.Config{
		Account:      cfg.Broker.Account,
		StartPrice:   decimal.NewFromFloat(cfg.Broker.SimStartPrice),
		TickInterval: cfg.SimTickInterval(),
		RejectEvery:  cfg.Broker.SimRejectEvery,
	}, logger)

	gwServer := gateway.NewServer(gateway.ServerConfig{
		Endpoint:        cfg.Endpoints.Gateway,
		StopTimeout:     cfg.GatewayStopTimeout(),
		OrdersPerSecond: cfg.Gateway.OrdersPerSecond,
	}, brk, logger)

	publisher := transport.NewTickPublisher(
		cfg.Endpoints.TickPublish, cfg.Publisher.Topic, cfg.StartupPause(), logger)

	if err := brk.Connect(ctx); err != nil {
		logger.Error("failed to connect broker", "err", err)
		os.Exit(1)
	}
	if err := gwServer.Start(); err != nil {
		logger.Error("failed to start gateway", "err", err)
		os.Exit(1)
	}
	if err := publisher.Start(ctx); err != nil {
		logger.Error("failed to start tick publisher", "err", err)
		os.Exit(1)
	}

	ticks, err := brk.Ticks(ctx, cfg.Broker.ItemCode)
	if err != nil {
		logger.Error("failed to open tick feed", "err", err)
		os.Exit(1)
	}
	go func() {
		for raw := range ticks {
			if err := publisher.PublishRaw(raw); err != nil {
				logger.Warn("failed to publish tick", "err", err)
			}
		}
	}()

	logger.Info("host running",
		"gateway", cfg.Endpoints.Gateway,
		"tick_publish", cfg.Endpoints.TickPublish,
	)

	<-ctx.Done()
	logger.Info("shutdown signal received")

	_ = publisher.Close()
	_ = gwServer.Stop()
	_ = brk.Disconnect()
	logger.Info("host shutdown complete")
}

// cmdStrategy starts the strategy engine process.
func cmdStrategy(args []string) {
	fs := flag.NewFlagSet("strategy", flag.ExitOnError)
	configPath := fs.String("config", "config.yaml", "Path to configuration file")
	_ = fs.Parse(args)

	cfg := loadConfig(*configPath)
	logger := setupLogging(cfg)

	ctx, stop := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	conditions := condition.NewStore(cfg.Condition.Path, logger)
	jrnl := openJournal(cfg, logger)

	subscriber, err := transport.NewTickSubscriber(
		ctx, cfg.Endpoints.TickPublish, cfg.Publisher.Topic, logger)
	if err != nil {
		logger.Error("failed to connect tick subscriber", "err", err)
		os.Exit(1)
	}
	pusher, err := transport.NewSignalPusher(ctx, cfg.Endpoints.SignalPipe, logger)
	if err != nil {
		logger.Error("failed to connect signal pusher", "err", err)
		os.Exit(1)
	}

	engine := strategy.NewEngine(conditions, pusher, signalJournal(jrnl), logger)
	if err := engine.Start(ctx, subscriber.Ticks()); err != nil {
		logger.Error("failed to start strategy engine", "err", err)
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("shutdown signal received")

	_ = engine.Stop()
	_ = pusher.Close()
	_ = subscriber.Close()
	if jrnl != nil {
		_ = jrnl.Close()
	}
	logger.Info("strategy shutdown complete")
}

// cmdExecutor starts the order executor process. It refuses to start
// without an initialized session.
func cmdExecutor(args []string) {
	fs := flag.NewFlagSet("executor", flag.ExitOnError)
	configPath := fs.String("config", "config.yaml", "Path to configuration file")
	_ = fs.Parse(args)

	cfg := loadConfig(*configPath)
	logger := setupLogging(cfg)

	ctx, stop := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sessions := session.NewStore(cfg.Session.Path, cfg.SessionTimeout(), logger)
	if !sessions.IsLoggedIn() {
		logger.Error("session not initialized, run 'pipeline login' first")
		os.Exit(1)
	}

	jrnl := openJournal(cfg, logger)
	alerter := buildAlerter(cfg, logger)

	puller, err := transport.NewSignalPuller(ctx, cfg.Endpoints.SignalPipe, logger)
	if err != nil {
		logger.Error("failed to bind signal puller", "err", err)
		os.Exit(1)
	}

	gwClient := gateway.NewClient(gateway.ClientConfig{
		Endpoint:   cfg.Endpoints.Gateway,
		Timeout:    cfg.RequestTimeout(),
		RetryCount: cfg.Gateway.RetryCount,
	}, logger)

	if !gwClient.IsConnected(ctx) {
		logger.Error("gateway unreachable at startup", "endpoint", cfg.Endpoints.Gateway)
		os.Exit(1)
	}

	exec := executor.New(executor.Config{
		DefaultQuantity: cfg.Executor.DefaultQuantity,
	}, gwClient, sessions, orderJournal(jrnl), alerter, logger)
	if err := exec.Start(ctx, puller.Payloads()); err != nil {
		logger.Error("failed to start executor", "err", err)
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("shutdown signal received")

	_ = exec.Stop()
	_ = gwClient.Close()
	_ = puller.Close()
	if jrnl != nil {
		_ = jrnl.Close()
	}
	logger.Info("executor shutdown complete")
}

// signalJournal narrows a possibly-nil journal to the strategy interface
// without handing out a typed nil.
func signalJournal(j *journal.Journal) strategy.SignalJournal {
	if j == nil {
		return nil
	}
	return j
}

func orderJournal(j *journal.Journal) executor.OrderJournal {
	if j == nil {
		return nil
	}
	return j
}
