package arbitrage

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"fxarb/internal/config"
	"fxarb/internal/exchange/common"
	"fxarb/internal/graph"
	"fxarb/internal/infra/metrics"
	"fxarb/internal/orderexec"
	"fxarb/internal/pnl"
	"fxarb/internal/rebalance"
	"fxarb/internal/risk"
	"fxarb/internal/strategy"
)

// Journal receives session results and holdings snapshots.
type Journal interface {
	Record(s pnl.Session)
	ObserveHoldings(amounts []float64)
}

type quoteSetter interface {
	SetQuotes(m *graph.Matrix)
}

type nopJournal struct{}

func (nopJournal) Record(pnl.Session)        {}
func (nopJournal) ObserveHoldings([]float64) {}

// Trader runs one venue session at a time: recover if needed, look for a cycle, trade it or
// probe, settle, then wait out the cooldown.
type Trader struct {
	cfg     config.Trading
	venue   common.Venue
	finder  graph.PathFinder
	exec    orderexec.Trader
	sweeper rebalance.Rebalancer
	floor   risk.Engine
	journal Journal
	rng     *rand.Rand
	now     func() time.Time
	sleep   func(ctx context.Context, d time.Duration) error
	logger  zerolog.Logger

	state         State
	needsRecovery bool
}

type Option func(*Trader)

func WithJournal(j Journal) Option { return func(t *Trader) { t.journal = j } }

func WithFinder(f graph.PathFinder) Option { return func(t *Trader) { t.finder = f } }

func WithRand(r *rand.Rand) Option { return func(t *Trader) { t.rng = r } }

// WithClock replaces the wall clock used for the loop deadline.
func WithClock(now func() time.Time) Option { return func(t *Trader) { t.now = now } }

// WithSleep replaces the cooldown wait between sessions.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(t *Trader) { t.sleep = sleep }
}

func New(cfg config.Trading, venue common.Venue, logger zerolog.Logger, opts ...Option) *Trader {
	exec := orderexec.New(venue, cfg.MaxRequestAmount, cfg.BaseReserve, logger)
	t := &Trader{
		cfg:     cfg,
		venue:   venue,
		finder:  graph.NewBellmanFord(cfg.GuardBand, cfg.MinCycleMultiplier, logger),
		exec:    exec,
		sweeper: rebalance.Sweeper{Venue: venue, Trader: exec, Dust: cfg.DustThreshold, Logger: logger.With().Str("component", "recovery").Logger()},
		floor:   risk.Floor{Limits: risk.Limits{CapitalFloor: cfg.CapitalFloor}},
		journal: nopJournal{},
		rng:     rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0)),
		now:     time.Now,
		sleep:   sleepContext,
		logger:  logger.With().Str("component", "trader").Str("venue", venue.Name()).Logger(),
	}
	for _, o := range opts {
		o(t)
	}
	return t
}

func (t *Trader) State() State { return t.state }

func (t *Trader) NeedsRecovery() bool { return t.needsRecovery }

func (t *Trader) setState(s State, log zerolog.Logger) {
	if s != t.state {
		log.Debug().Str("from", t.state.String()).Str("to", s.String()).Msg("state transition")
	}
	t.state = s
	metrics.ControllerState.Set(float64(s))
}

// Run repeats sessions until ctx is canceled or the capital floor is breached, in which case
// the returned error wraps risk.ErrCapitalFloor.
func (t *Trader) Run(ctx context.Context) error {
	for {
		rep := t.RunSession(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if rep.Outcome == OutcomeOK {
			if err := t.floor.CheckCapital(rep.EndTotal); err != nil {
				metrics.CapitalFloorBreaches.Inc()
				t.logger.Error().Err(err).Str("session_id", rep.ID).Msg("stopping trader")
				return err
			}
		}
		if err := t.sleep(ctx, t.cfg.Cooldown()); err != nil {
			return nil
		}
	}
}

// RunSession opens the venue, trades and always closes it again. A failed session marks the
// account for recovery at the start of the next one.
func (t *Trader) RunSession(ctx context.Context) SessionReport {
	rep := SessionReport{ID: uuid.NewString(), Started: t.now(), Mode: ModeIdle}
	log := t.logger.With().Str("session_id", rep.ID).Logger()

	err := t.session(ctx, &rep, log)
	t.setState(StateIdle, log)

	closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	if cerr := t.venue.Close(closeCtx); cerr != nil {
		metrics.VenueErrorsTotal.WithLabelValues("close", common.ErrorKind(cerr)).Inc()
		log.Warn().Err(cerr).Msg("close failed")
	}
	cancel()

	rep.Ended = t.now()
	rep.Err = err
	rep.Outcome = outcomeOf(err)
	if rep.Outcome != OutcomeOK {
		t.needsRecovery = true
		log.Error().Err(err).Str("outcome", string(rep.Outcome)).Msg("session failed; recovery scheduled")
	}
	if t.needsRecovery {
		metrics.NeedsRecovery.Set(1)
	} else {
		metrics.NeedsRecovery.Set(0)
	}
	metrics.SessionsTotal.WithLabelValues(string(rep.Outcome)).Inc()
	metrics.SessionDurationSeconds.Observe(rep.Ended.Sub(rep.Started).Seconds())
	t.journal.Record(toLedger(rep))

	log.Info().
		Str("outcome", string(rep.Outcome)).
		Str("mode", string(rep.Mode)).
		Int("loops", rep.Loops).
		Float64("start_total", rep.StartTotal).
		Float64("end_total", rep.EndTotal).
		Dur("elapsed", rep.Ended.Sub(rep.Started)).
		Msg("session closed")
	return rep
}

func (t *Trader) session(ctx context.Context, rep *SessionReport, log zerolog.Logger) error {
	t.setState(StateIdle, log)
	greeting, err := t.venue.Open(ctx)
	if err != nil {
		metrics.VenueErrorsTotal.WithLabelValues("open", common.ErrorKind(err)).Inc()
		return fmt.Errorf("open: %w", err)
	}
	log.Info().Str("greeting", greeting).Msg("session opened")
	t.quote(nil)

	if t.needsRecovery {
		t.setState(StateRecovering, log)
		if _, err := t.sweeper.Rebalance(ctx); err != nil {
			return fmt.Errorf("recover: %w", err)
		}
		t.needsRecovery = false
		rep.Recovered = true
		metrics.NeedsRecovery.Set(0)
		t.setState(StateIdle, log)
	}

	m, err := t.venue.Rates(ctx)
	if err != nil {
		metrics.VenueErrorsTotal.WithLabelValues("rates", common.ErrorKind(err)).Inc()
		return fmt.Errorf("rates: %w", err)
	}
	t.quote(m)
	h, err := t.status(ctx)
	if err != nil {
		return err
	}
	rep.StartTotal, rep.EndTotal = h.Total, h.Total

	path, found := t.finder.FindCycle(m)
	switch {
	case found:
		rep.Mode, rep.Path = ModeCycle, path
		log.Info().Ints("cycle", currencyInts(path.Cycle)).Float64("multiplier", path.Multiplier).Msg("cycle found")
		h, err = t.tradeCycle(ctx, rep, h, log)
	case t.cfg.FallbackEnabled:
		rep.Mode = ModeFallback
		h, err = t.fallback(ctx, m, rep, log)
	default:
		log.Info().Msg("no cycle; fallback disabled")
	}
	if err != nil {
		return err
	}
	rep.EndTotal = h.Total
	return nil
}

// tradeCycle walks rep.Path starting from holdings h until the loop deadline passes or an
// iteration fails to grow the portfolio, then settles into the base currency.
func (t *Trader) tradeCycle(ctx context.Context, rep *SessionReport, h common.Holdings, log zerolog.Logger) (common.Holdings, error) {
	cycle := rep.Path.Cycle
	t.setState(StateCycleTrading, log)

	first := cycle[0]
	amount := t.cfg.Notional
	if first != graph.Base {
		got, err := t.trade(ctx, graph.Base, amount, first)
		if err != nil {
			return h, err
		}
		if h, err = t.status(ctx); err != nil {
			return h, err
		}
		amount = held(h, first, got)
	}
	prev := first

	deadline := rep.Started.Add(t.cfg.LoopDeadline())
	for {
		if err := ctx.Err(); err != nil {
			return h, err
		}
		startTotal := h.Total
		for _, next := range append(cycle[1:len(cycle):len(cycle)], first) {
			got, err := t.trade(ctx, prev, amount, next)
			if err != nil {
				return h, err
			}
			if h, err = t.status(ctx); err != nil {
				return h, err
			}
			amount = held(h, next, got)
			prev = next
		}
		rep.Loops++
		metrics.CycleLoopsTotal.Inc()
		log.Debug().Int("loop", rep.Loops).Float64("start_total", startTotal).Float64("total", h.Total).Msg("cycle loop done")
		if !t.now().Before(deadline) || h.Total <= startTotal {
			break
		}
	}

	t.setState(StateSettling, log)
	if _, err := t.trade(ctx, prev, amount, graph.Base); err != nil {
		return h, fmt.Errorf("settle: %w", err)
	}
	return t.status(ctx)
}

// fallback makes one round trip through a random currency priced close to parity.
func (t *Trader) fallback(ctx context.Context, m *graph.Matrix, rep *SessionReport, log zerolog.Logger) (common.Holdings, error) {
	t.setState(StateFallbackTrading, log)
	rules := strategy.ProbeRules{
		RateMin:     t.cfg.FallbackRateMin,
		RateMax:     t.cfg.FallbackRateMax,
		ParityLimit: t.cfg.FallbackParityLimit,
	}
	c, ok := strategy.PickProbe(m, rules, t.rng)
	if !ok {
		metrics.FallbackProbesTotal.WithLabelValues("no_candidate").Inc()
		log.Info().Msg("no cycle and no probe candidate; nothing traded")
		return t.status(ctx)
	}
	rep.Probe = c
	log.Info().Int("probe", int(c)).Float64("round_trip", strategy.RoundTripRatio(m, c)).Msg("no cycle; probing")

	got, err := t.trade(ctx, graph.Base, t.cfg.Notional, c)
	if err != nil {
		metrics.FallbackProbesTotal.WithLabelValues("failed").Inc()
		return common.Holdings{}, err
	}
	if _, err := t.trade(ctx, c, got, graph.Base); err != nil {
		metrics.FallbackProbesTotal.WithLabelValues("failed").Inc()
		return common.Holdings{}, err
	}
	metrics.FallbackProbesTotal.WithLabelValues("traded").Inc()
	return t.status(ctx)
}

func (t *Trader) quote(m *graph.Matrix) {
	if q, ok := t.exec.(quoteSetter); ok {
		q.SetQuotes(m)
	}
}

func (t *Trader) trade(ctx context.Context, from graph.Currency, amount float64, to graph.Currency) (float64, error) {
	got, err := t.exec.Exchange(ctx, from, amount, to)
	if err != nil {
		return got, fmt.Errorf("trade: %w", err)
	}
	return got, nil
}

func (t *Trader) status(ctx context.Context) (common.Holdings, error) {
	h, err := t.venue.Status(ctx)
	if err != nil {
		metrics.VenueErrorsTotal.WithLabelValues("status", common.ErrorKind(err)).Inc()
		return h, fmt.Errorf("status: %w", err)
	}
	metrics.PortfolioValue.Set(h.Total)
	t.journal.ObserveHoldings(h.Amounts)
	return h, nil
}

// held is the amount to trade onward: what the venue reported received, capped by the
// balance the venue says we hold.
func held(h common.Holdings, c graph.Currency, received float64) float64 {
	if have := h.Amount(c); have < received {
		return have
	}
	return received
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func currencyInts(cs []graph.Currency) []int {
	out := make([]int, len(cs))
	for i, c := range cs {
		out[i] = int(c)
	}
	return out
}

func toLedger(rep SessionReport) pnl.Session {
	s := pnl.Session{
		ID:         rep.ID,
		Started:    rep.Started,
		Ended:      rep.Ended,
		Outcome:    string(rep.Outcome),
		Mode:       string(rep.Mode),
		StartTotal: rep.StartTotal,
		EndTotal:   rep.EndTotal,
		Cycle:      currencyInts(rep.Path.Cycle),
		Multiplier: rep.Path.Multiplier,
		Loops:      rep.Loops,
	}
	if rep.Err != nil {
		s.Error = rep.Err.Error()
	}
	return s
}

// IsFloorBreach reports whether err stopped the trader on the capital floor.
func IsFloorBreach(err error) bool { return errors.Is(err, risk.ErrCapitalFloor) }
