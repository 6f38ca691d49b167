package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/amiyaDev/perfguard/internal/api"
	"github.com/amiyaDev/perfguard/internal/collector"
	"github.com/amiyaDev/perfguard/internal/config"
	"github.com/amiyaDev/perfguard/internal/dispatch"
	"github.com/amiyaDev/perfguard/internal/lifecycle"
	"github.com/amiyaDev/perfguard/internal/rules"
	"github.com/amiyaDev/perfguard/internal/storage/sqlite"
)

func main() {
	// Parse flags
	cfg := parseFlags()

	if err := cfg.ApplyEnv(os.Getenv); err != nil {
		log.Fatalf("Invalid environment: %v", err)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	log.Printf("Starting perfguard server...")
	log.Printf("Config: port=%d, rules=%q, db=%q, flush=%s", cfg.Port, cfg.RulesFile, cfg.DBPath, cfg.FlushInterval)

	ruleSet, err := loadRules(cfg)
	if err != nil {
		log.Fatalf("Failed to load rules: %v", err)
	}

	// Visible issue rows, optionally mirrored to SQLite
	issues := lifecycle.NewStore(cfg.ResolvedRetain)
	defer issues.Close()
	sinks := []lifecycle.Sink{issues}

	var audit *sqlite.Store
	if cfg.DBPath != "" {
		audit, err = sqlite.NewStore(cfg.DBPath)
		if err != nil {
			log.Fatalf("Failed to open audit storage: %v", err)
		}
		defer audit.Close()
		sinks = append(sinks, lifecycle.NewStorageSink(audit))
		log.Printf("Audit storage enabled: %s", cfg.DBPath)
	}

	manager := lifecycle.NewManager(cfg.Lifecycle(), lifecycle.LogNotifier{}, sinks...)
	coll := collector.New()

	dispatcher := dispatch.NewDispatcher(cfg.Dispatch(), coll, manager, ruleSet)
	if audit != nil {
		dispatcher.SetAuditStorage(audit)
	}

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	apiServer := api.NewServer(dispatcher, coll, issues, addr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return dispatcher.Run(gctx)
	})

	g.Go(func() error {
		return apiServer.Start()
	})

	// Shut the server down once a signal arrives or a sibling fails
	g.Go(func() error {
		<-gctx.Done()
		log.Println("Shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.GracefulShutdownTimeout)
		defer cancel()
		if err := apiServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("error shutting down server: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Printf("Server error: %v", err)
		os.Exit(1)
	}

	log.Println("Shutdown complete")
}

func loadRules(cfg config.Config) ([]rules.Rule, error) {
	var (
		ruleSet []rules.Rule
		err     error
	)

	if cfg.RulesFile == "" {
		ruleSet, err = rules.Builtin()
		if err != nil {
			return nil, err
		}
	} else {
		validator, verr := rules.NewValidator()
		if verr != nil {
			return nil, fmt.Errorf("failed to initialize validator: %w", verr)
		}
		if errs := validator.ValidateFile(cfg.RulesFile); len(errs) > 0 {
			for _, e := range errs {
				log.Printf("Warning: %s", e.Error())
			}
		}

		var compileErrs []rules.ValidationError
		ruleSet, compileErrs, err = rules.LoadRules(cfg.RulesFile)
		if err != nil {
			return nil, err
		}
		for _, e := range compileErrs {
			log.Printf("Warning: %s", e.Error())
		}
	}

	if cfg.SlowRenderMillis > 0 {
		ruleSet = rules.WithPredicateValue(ruleSet, "SLOW_RENDER", cfg.SlowRenderMillis)
		log.Printf("SLOW_RENDER threshold overridden to %vms", cfg.SlowRenderMillis)
	}

	return ruleSet, nil
}

func parseFlags() config.Config {
	cfg := config.DefaultConfig()

	flag.IntVar(&cfg.Port, "port", cfg.Port, "HTTP server port")
	flag.StringVar(&cfg.Host, "host", cfg.Host, "HTTP server host")
	flag.StringVar(&cfg.RulesFile, "rules", cfg.RulesFile, "Rule YAML file (default: built-in catalogue)")
	flag.StringVar(&cfg.DBPath, "db", cfg.DBPath, "SQLite audit database path (empty disables audit)")
	flag.DurationVar(&cfg.FlushInterval, "flush-interval", cfg.FlushInterval, "Interval between collector flushes")
	flag.DurationVar(&cfg.EvaluateTimeout, "evaluate-timeout", cfg.EvaluateTimeout, "Timeout for a single worker round trip")
	flag.IntVar(&cfg.HistoryCapacity, "history", cfg.HistoryCapacity, "Snapshots retained per component")
	flag.IntVar(&cfg.MissingThreshold, "missing-threshold", cfg.MissingThreshold, "Consecutive missing batches before an issue resolves")
	flag.DurationVar(&cfg.LogCooldown, "log-cooldown", cfg.LogCooldown, "Minimum interval between repeated notifications")
	flag.DurationVar(&cfg.ResolvedRetain, "resolved-retention", cfg.ResolvedRetain, "How long resolved issues stay visible")
	flag.Float64Var(&cfg.SlowRenderMillis, "slow-render-ms", cfg.SlowRenderMillis, "Override the SLOW_RENDER threshold in milliseconds")
	flag.DurationVar(&cfg.GracefulShutdownTimeout, "shutdown-timeout", cfg.GracefulShutdownTimeout, "Graceful shutdown timeout")

	flag.Parse()

	return cfg
}
