// Command ruled runs the streaming rule engine as a long-lived daemon:
// it wires a configured report source through the engine's driver loop
// and serves the admin/monitoring HTTP API alongside it.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/flightops/ruled/internal/api"
	"github.com/flightops/ruled/internal/auth"
	"github.com/flightops/ruled/internal/db"
	"github.com/flightops/ruled/internal/ingest"
	"github.com/flightops/ruled/internal/webhook"
	"github.com/flightops/ruled/pkg/config"
	"github.com/flightops/ruled/pkg/engine"
	"github.com/flightops/ruled/pkg/flight"
	"github.com/flightops/ruled/pkg/region"
	"github.com/flightops/ruled/pkg/rules"
)

func main() {
	configPath := flag.String("config", "configs/config.json", "Path to the operational configuration file")
	ruleFile := flag.String("rules", "", "Path to the rule-set YAML document (overrides the config file's ingest.rule_file)")
	flag.Parse()

	log.Println("===========================================")
	log.Println("  ruled: streaming airport rule engine")
	log.Println("===========================================")

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}
	if *ruleFile != "" {
		cfg.Ingest.RuleFile = *ruleFile
	}
	if cfg.Ingest.RuleFile == "" {
		log.Fatal("no rule file configured: set ingest.rule_file or pass -rules")
	}

	set, err := rules.LoadFile(cfg.Ingest.RuleFile)
	if err != nil {
		log.Fatalf("failed to load rule set: %v", err)
	}
	log.Printf("loaded %d rules from %s", len(set.Rules), cfg.Ingest.RuleFile)

	regions, err := loadRegionSet(set.KMLFiles)
	if err != nil {
		log.Fatalf("failed to load region files: %v", err)
	}
	log.Printf("loaded %d region file(s): %v", regions.NumFiles(), regions.FileNames())

	location := time.UTC
	if cfg.Ingest.TimeZone != "" {
		loc, err := time.LoadLocation(cfg.Ingest.TimeZone)
		if err != nil {
			log.Fatalf("invalid ingest.timezone %q: %v", cfg.Ingest.TimeZone, err)
		}
		location = loc
	}

	store := flight.NewStore(regions, set.NumRules(), cfg.Ingest.ExpirySeconds)
	stats := &engine.Stats{}

	var historyRepo *db.HistoryRepository
	var userRepo *db.UserRepository
	var dbCfg config.DatabaseConfig
	if cfg.Database.Enabled {
		log.Println("connecting to history database...")
		database, err := db.ReconnectWithRetry(cfg.Database, 5, time.Second)
		if err != nil {
			log.Fatalf("failed to connect to database: %v", err)
		}
		defer database.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := database.InitSchema(ctx); err != nil {
			cancel()
			log.Fatalf("failed to initialize schema: %v", err)
		}
		cancel()
		log.Println("history database schema ready")

		historyRepo = db.NewHistoryRepository(database)
		userRepo = db.NewUserRepository(database.DB)
		dbCfg = cfg.Database
	} else {
		log.Println("no database configured, running with in-memory stats only")
	}

	webhookPool := webhook.NewPool(map[string]webhook.Transport{
		"slack":   webhook.NewHTTPTransport(),
		"pager":   webhook.NewHTTPTransport(),
		"generic": webhook.NewHTTPTransport(),
	}, 2, webhook.DefaultQueueSize, log.Default())
	defer webhookPool.Close()

	dispatcher := engine.NewDispatcher(os.Stdout, log.Default(), webhookPool, stats, cfg.Ingest.ShellActionsEnabled)

	if err := set.ValidateCallbacks(dispatcher.IsRegistered); err != nil {
		log.Fatalf("invalid rule set: %v", err)
	}

	evaluator := engine.NewEvaluator(set, store, dispatcher, location)
	driver := engine.NewDriver(store, evaluator, stats, log.Default())

	authSvc := auth.NewService(auth.Config{
		JWTSecret:     cfg.Auth.JWTSecret,
		TokenDuration: time.Duration(cfg.Auth.TokenDurationHours) * time.Hour,
	})

	reload := func(ctx context.Context) (int, error) {
		newSet, err := rules.LoadFile(cfg.Ingest.RuleFile)
		if err != nil {
			return 0, err
		}
		if err := newSet.ValidateCallbacks(dispatcher.IsRegistered); err != nil {
			return 0, err
		}
		if newSet.NumRules() != store.NumRules() {
			return 0, fmt.Errorf("rule count changed from %d to %d: restart required to resize cooldown state",
				store.NumRules(), newSet.NumRules())
		}
		evaluator.Swap(newSet)
		return len(newSet.Rules), nil
	}

	apiServer := api.NewServer(authSvc, userRepo, stats, reload, log.Default())
	recorder := newRuleFireRecorder(historyRepo, dbCfg, log.Default())
	defer recorder.Close()
	dispatcher.SetObserver(combineObservers(apiServer.Observer(), recorder.Observer()))

	httpServer := &http.Server{
		Addr:    cfg.Server.Host + ":" + cfg.Server.Port,
		Handler: apiServer.Router(),
	}
	go func() {
		log.Printf("admin API listening on %s", httpServer.Addr)
		var err error
		if cfg.Server.TLSEnabled {
			err = httpServer.ListenAndServeTLS(cfg.Server.TLSCertFile, cfg.Server.TLSKeyFile)
		} else {
			err = httpServer.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			log.Printf("admin API server error: %v", err)
		}
	}()

	src, closeSrc, err := openSource(cfg.Ingest.Source)
	if err != nil {
		log.Fatalf("failed to open ingest source %q: %v", cfg.Ingest.Source.Kind, err)
	}
	if closeSrc != nil {
		defer closeSrc()
	}

	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	driverDone := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				log.Printf("PANIC in driver loop: %v", r)
				driverDone <- fmt.Errorf("driver panicked: %v", r)
				return
			}
		}()
		driverDone <- driver.Run(ctx, src, dispatcher.ExpireHook())
	}()

	log.Println("===========================================")
	log.Println("  ruled started, press Ctrl+C to stop")
	log.Println("===========================================")

	select {
	case sig := <-sigChan:
		log.Printf("received signal %v, shutting down", sig)
		cancel()
		<-driverDone
	case err := <-driverDone:
		if err != nil {
			log.Printf("driver loop exited: %v", err)
		} else {
			log.Println("ingest source exhausted, driver loop exited")
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("admin API shutdown error: %v", err)
	}

	snap := stats.Snapshot()
	log.Printf("final stats: processed=%d dropped=%d created=%d expired=%d action_errors=%d",
		snap.ReportsProcessed, snap.ReportsDropped, snap.FlightsCreated, snap.FlightsExpired, snap.ActionErrors)
	log.Println("ruled stopped")
}

// loadRegionSet loads every configured KML file into a region.Set. A
// rule document naming no region files yields an empty, always-miss set.
func loadRegionSet(paths []string) (*region.Set, error) {
	files := make([]region.File, 0, len(paths))
	for _, p := range paths {
		f, err := os.Open(p)
		if err != nil {
			return nil, fmt.Errorf("open region file %s: %w", p, err)
		}
		rf, err := region.LoadKML(p, f)
		f.Close()
		if err != nil {
			return nil, err
		}
		files = append(files, rf)
	}
	return region.NewSet(files...), nil
}

// openSource builds the configured ingest.Source, returning an optional
// close function for sources that own a connection.
func openSource(src config.IngestSource) (engine.Source, func(), error) {
	switch src.Kind {
	case "tcp":
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s, err := ingest.DialTCP(ctx, src.Address)
		if err != nil {
			return nil, nil, err
		}
		return s, func() { s.Close() }, nil
	case "websocket":
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s, err := ingest.DialWebSocket(ctx, src.Address)
		if err != nil {
			return nil, nil, err
		}
		return s, func() { s.Close() }, nil
	case "poll":
		rate := src.RateLimitPerSecond
		if rate <= 0 {
			rate = 1
		}
		return ingest.NewPollSource(src.Address, rate), nil, nil
	case "file":
		f, err := os.Open(src.Address)
		if err != nil {
			return nil, nil, err
		}
		return ingest.NewFileSource(f, src.ReplayRealtime), func() { f.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown ingest source kind %q", src.Kind)
	}
}

// combineObservers fans one Event out to every non-nil observer in obs.
func combineObservers(obs ...engine.Observer) engine.Observer {
	return func(ev engine.Event) {
		for _, o := range obs {
			if o != nil {
				o(ev)
			}
		}
	}
}

// ruleFireRecorder drains rule-match events onto the history database
// through a bounded queue, the same drop-on-overflow shape
// internal/webhook uses, so a slow database never stalls the driver.
type ruleFireRecorder struct {
	queue  chan engine.Event
	repo   *db.HistoryRepository
	dbCfg  config.DatabaseConfig
	logger *log.Logger
	done   chan struct{}
}

func newRuleFireRecorder(repo *db.HistoryRepository, dbCfg config.DatabaseConfig, logger *log.Logger) *ruleFireRecorder {
	r := &ruleFireRecorder{
		queue:  make(chan engine.Event, 1024),
		repo:   repo,
		dbCfg:  dbCfg,
		logger: logger,
		done:   make(chan struct{}),
	}
	go r.run()
	return r
}

func (r *ruleFireRecorder) Observer() engine.Observer {
	if r.repo == nil {
		return nil
	}
	return func(ev engine.Event) {
		select {
		case r.queue <- ev:
		default:
			r.logger.Printf("ruled: history queue full, dropping rule-fire record for %s/%s", ev.RuleName, ev.Flight.Identifier)
		}
	}
}

func (r *ruleFireRecorder) run() {
	defer close(r.done)
	for ev := range r.queue {
		r.record(ev)
	}
}

func (r *ruleFireRecorder) record(ev engine.Event) {
	if err := r.repo.EnsureHealthy(r.dbCfg); err != nil {
		r.logger.Printf("ruled: history sink unreachable, dropping rule-fire record for %s/%s: %v",
			ev.RuleName, ev.Flight.Identifier, err)
		return
	}

	var partner *string
	if ev.Other != nil {
		id := ev.Other.Identifier
		partner = &id
	}

	err := db.WithRetry(func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return r.repo.RecordRuleFire(ctx, ev.Flight.Identifier, ev.RuleName, partner, ev.StreamTS)
	}, 2)
	if err != nil {
		r.logger.Printf("ruled: failed to record rule fire: %v", err)
	}
}

func (r *ruleFireRecorder) Close() {
	close(r.queue)
	<-r.done
}
