package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fxarb/internal/api/rest"
	"fxarb/internal/arbitrage"
	"fxarb/internal/backtest"
	"fxarb/internal/config"
	"fxarb/internal/exchange/common"
	"fxarb/internal/exchange/lineproto"
	"fxarb/internal/exchange/sim"
	"fxarb/internal/graph"
	"fxarb/internal/infra/health"
	"fxarb/internal/infra/http/middleware"
	"fxarb/internal/infra/log"
	"fxarb/internal/infra/metrics"
	"fxarb/internal/infra/netutil"
	"fxarb/internal/infra/runner"
	"fxarb/internal/infra/vault"
	"fxarb/internal/infra/version"
	"fxarb/internal/pnl"
)

func main() {
	var (
		simulate = flag.Bool("simulate", false, "trade against an in-memory venue with random rates")
		seed     = flag.Uint64("seed", 1, "rate generator seed for -simulate")
		reset    = flag.Bool("reset", false, "ask the venue to reset the account, then exit")
		scan     = flag.String("scan", "", "run the cycle finder over saved rate matrices in `file`, then exit")
		envFile  = flag.String("env-file", ".env", "dotenv file with venue credentials")
	)
	flag.Parse()

	if err := vault.LoadDotEnv(*envFile); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	cfg := config.Load()
	logger := log.NewLogger(cfg)
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	if *scan != "" {
		os.Exit(runScan(*scan, cfg, logger))
	}

	var venue common.Venue
	if *simulate {
		venue = sim.NewRandom(cfg.Venue.Currencies, *seed, 20000)
	} else {
		if err := vault.Require(vault.EnvStore{}, "FXARB_VENUE_USER", "FXARB_VENUE_PASSWORD"); err != nil {
			logger.Fatal().Err(err).Msg("venue credentials missing")
		}
		venue = lineproto.New(lineproto.Config{
			Addr:              cfg.Venue.Addr,
			User:              cfg.Venue.User,
			Password:          cfg.Venue.Password,
			Currencies:        cfg.Venue.Currencies,
			DialTimeout:       time.Duration(cfg.Venue.DialTimeoutSeconds) * time.Second,
			RequestTimeout:    time.Duration(cfg.Venue.RequestTimeoutSeconds) * time.Second,
			ReconnectInterval: time.Duration(cfg.Venue.ReconnectIntervalSeconds * float64(time.Second)),
		}, logger)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if *reset {
		os.Exit(runReset(ctx, venue, logger))
	}

	ledger := pnl.NewLedger()

	registry := metrics.Init(logger)
	mux := http.NewServeMux()
	// admin endpoints (metrics, pprof) behind IP allowlist gate
	adminCIDRs := netutil.MustParseCIDRs(cfg.Server.AdminAllowCIDRs)
	mux.Handle("/metrics", middleware.AdminGate(adminCIDRs, metrics.Handler(registry)))
	mux.HandleFunc("/healthz", health.Healthz)
	mux.HandleFunc("/readyz", health.Readyz)
	mux.HandleFunc("/version", version.Handler)
	mux.Handle("/api/", rest.New(ledger).Handler())
	if cfg.Server.Pprof {
		mux.Handle("/debug/pprof/", middleware.AdminGate(adminCIDRs, http.HandlerFunc(pprof.Index)))
		mux.Handle("/debug/pprof/cmdline", middleware.AdminGate(adminCIDRs, http.HandlerFunc(pprof.Cmdline)))
		mux.Handle("/debug/pprof/profile", middleware.AdminGate(adminCIDRs, http.HandlerFunc(pprof.Profile)))
		mux.Handle("/debug/pprof/symbol", middleware.AdminGate(adminCIDRs, http.HandlerFunc(pprof.Symbol)))
		mux.Handle("/debug/pprof/trace", middleware.AdminGate(adminCIDRs, http.HandlerFunc(pprof.Trace)))
	}
	handler := middleware.RequestID(middleware.Logger(logger)(mux))

	server := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 2 * time.Second,
		ReadTimeout:       time.Duration(cfg.Server.ReadTimeoutSeconds) * time.Second,
		WriteTimeout:      time.Duration(cfg.Server.WriteTimeoutSeconds) * time.Second,
		IdleTimeout:       time.Duration(cfg.Server.IdleTimeoutSeconds) * time.Second,
	}
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("http server error")
		}
	}()

	logger.Info().
		Str("venue", venue.Name()).
		Str("addr", cfg.Server.Addr).
		Float64("notional", cfg.Trading.Notional).
		Float64("capital_floor", cfg.Trading.CapitalFloor).
		Msg("fxarb started")

	g := &runner.Group{Logger: logger}
	traderErrCh := g.Go(ctx, "trader", func(ctx context.Context) error {
		trader := arbitrage.New(cfg.Trading, venue, logger, arbitrage.WithJournal(readyJournal{ledger}))
		return trader.Run(ctx)
	})

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	exitCode := 0
	select {
	case s := <-sigCh:
		logger.Info().Str("signal", s.String()).Msg("shutdown signal received")
		cancel()
		<-traderErrCh
	case err := <-traderErrCh:
		if arbitrage.IsFloorBreach(err) {
			health.Halt()
			logger.Error().Err(err).Msg("capital floor breached; trading halted")
			exitCode = 2
		} else if err != nil {
			logger.Error().Err(err).Msg("trader stopped")
			exitCode = 1
		}
	}

	health.SetReady(false)
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}
	g.Wait()
	logger.Info().Float64("realized", ledger.Realized()).Msg("shutdown complete")
	if exitCode != 0 {
		os.Exit(exitCode)
	}
}

// readyJournal marks the process ready after the first session that completes cleanly.
type readyJournal struct{ *pnl.Ledger }

func (j readyJournal) Record(s pnl.Session) {
	j.Ledger.Record(s)
	if s.Outcome == string(arbitrage.OutcomeOK) {
		health.SetReady(true)
	}
}

func runReset(ctx context.Context, venue common.Venue, logger log.Logger) int {
	r, ok := venue.(common.Resetter)
	if !ok {
		logger.Error().Str("venue", venue.Name()).Msg("venue cannot reset accounts")
		return 1
	}
	if _, err := venue.Open(ctx); err != nil {
		logger.Error().Err(err).Msg("open failed")
		return 1
	}
	defer venue.Close(context.WithoutCancel(ctx))
	msg, err := r.SaveMe(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("reset failed")
		return 1
	}
	logger.Info().Str("reply", msg).Msg("account reset")
	return 0
}

func runScan(path string, cfg config.Config, logger log.Logger) int {
	finder := graph.NewBellmanFord(cfg.Trading.GuardBand, cfg.Trading.MinCycleMultiplier, logger)
	rep, err := backtest.ScanFile(path, finder)
	if err != nil {
		logger.Error().Err(err).Str("file", path).Msg("scan failed")
		return 1
	}
	for _, s := range rep.Snapshots {
		ev := logger.Info().Int("snapshot", s.Index).Int("currencies", s.Size).Bool("found", s.Found)
		if s.Found {
			cycle := make([]int, len(s.Path.Cycle))
			for i, c := range s.Path.Cycle {
				cycle[i] = int(c)
			}
			ev = ev.Ints("cycle", cycle).Float64("multiplier", s.Path.Multiplier)
		}
		ev.Msg("scanned")
	}
	logger.Info().Int("snapshots", len(rep.Snapshots)).Int("cycles", rep.Cycles).Float64("ratio", rep.Ratio()).Msg("scan done")
	return 0
}
