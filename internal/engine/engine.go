// Package engine hosts the execution controller: the single-flight state
// machine that takes one detector opportunity at a time through probing,
// revalidation, execution and recording.
//
// The controller is deliberately synchronous. Submit returns only after the
// submission has been fully resolved and its records emitted, so the caller
// always learns the true outcome. Anything arriving while a cycle is in
// flight is discarded as BUSY; there is no queue, because a queued
// opportunity is a stale opportunity.
package engine

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/mserran2/triarb/internal/probe"
	"github.com/mserran2/triarb/internal/recorder"
	"github.com/mserran2/triarb/internal/revalidate"
	"github.com/mserran2/triarb/internal/sequencer"
	"github.com/mserran2/triarb/internal/venue"
	"github.com/mserran2/triarb/pkg/types"
)

// callsPerCycle is the venue traffic one admitted cycle projects:
// 3 book fetches, 1 time sync, 3 orders.
const callsPerCycle = 7

// AdmissionGate is the halt authority consulted before any venue traffic and
// fed with cycle outcomes afterwards. The circuit breaker implements it.
type AdmissionGate interface {
	IsEnabled() bool
	RecordSuccess(fundingSize float64)
	RecordFailure(desynchronized bool)
}

// noopGate admits everything. Used when no breaker is wired.
type noopGate struct{}

func (noopGate) IsEnabled() bool { return true }

func (noopGate) RecordSuccess(float64) {}

func (noopGate) RecordFailure(bool) {}

// Config holds controller configuration.
type Config struct {
	Venue    venue.Adapter
	Recorder *recorder.Recorder
	// Gate may be nil, in which case admission is never halted.
	Gate AdmissionGate

	// FundingCurrency is the only currency cycles may start from.
	FundingCurrency string
	// FundingCap bounds the quote spent on leg 1 regardless of what the
	// detector suggested.
	FundingCap decimal.Decimal
	// ThresholdPct is the minimum revalidated net profit, in percent.
	ThresholdPct float64

	OrderbookDepth int
	ParallelProbe  bool
	ProbeDeadline  time.Duration
	// CycleDeadline bounds probe start to final order submission. Overruns
	// are recorded, never enforced by cancellation: stopping a cycle midway
	// strands funds in an intermediate currency.
	CycleDeadline time.Duration

	RequireManualConfirm bool
	ConfirmTimeout       time.Duration

	// RateBudgetPerMin is the venue call allowance; admission is refused
	// when the projected cycle would overdraw it.
	RateBudgetPerMin int

	// FeeTokenRefresh is how often the fee-token balance is re-checked.
	FeeTokenRefresh time.Duration

	Logger *zap.Logger
}

// Controller executes admitted opportunities one at a time.
type Controller struct {
	venue   venue.Adapter
	rec     *recorder.Recorder
	gate    AdmissionGate
	prober  *probe.Prober
	reval   *revalidate.Revalidator
	seq     *sequencer.Sequencer
	limiter *rate.Limiter
	logger  *zap.Logger

	fundingCurrency string
	fundingCap      decimal.Decimal
	thresholdPct    float64
	cycleDeadline   time.Duration
	requireConfirm  bool
	confirmTimeout  time.Duration
	feeRefresh      time.Duration

	state          atomic.Int32
	feeTokenActive atomic.Bool
	confirmPending atomic.Bool
	confirmCh      chan string
}

// New creates a controller and the probe, revalidation and sequencing stages
// it drives. The fee model comes from the venue adapter so there is a single
// source of truth for taker fees.
func New(cfg *Config) (*Controller, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	if cfg.Venue == nil {
		return nil, fmt.Errorf("venue cannot be nil")
	}

	if cfg.Recorder == nil {
		return nil, fmt.Errorf("recorder cannot be nil")
	}

	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}

	if cfg.FundingCurrency == "" {
		return nil, fmt.Errorf("funding currency cannot be empty")
	}

	if !cfg.FundingCap.IsPositive() {
		return nil, fmt.Errorf("funding cap must be positive, got %s", cfg.FundingCap)
	}

	if cfg.CycleDeadline <= 0 {
		return nil, fmt.Errorf("cycle deadline must be positive, got %s", cfg.CycleDeadline)
	}

	if cfg.RateBudgetPerMin < callsPerCycle {
		return nil, fmt.Errorf("rate budget must be >= %d calls/min, got %d", callsPerCycle, cfg.RateBudgetPerMin)
	}

	if cfg.RequireManualConfirm && cfg.ConfirmTimeout <= 0 {
		return nil, fmt.Errorf("confirm timeout must be positive when manual confirmation is required")
	}

	gate := cfg.Gate
	if gate == nil {
		gate = noopGate{}
	}

	feeRefresh := cfg.FeeTokenRefresh
	if feeRefresh <= 0 {
		feeRefresh = time.Minute
	}

	fees := cfg.Venue.FeeSchedule()

	c := &Controller{
		venue: cfg.Venue,
		rec:   cfg.Recorder,
		gate:  gate,
		prober: probe.New(&probe.Config{
			Venue:    cfg.Venue,
			Depth:    cfg.OrderbookDepth,
			Deadline: cfg.ProbeDeadline,
			Parallel: cfg.ParallelProbe,
			Logger:   cfg.Logger,
		}),
		reval: revalidate.New(&revalidate.Config{
			PerLegFeePct: fees.PerLegFeePct,
			FeeDiscount:  fees.FeeDiscount,
			ThresholdPct: cfg.ThresholdPct,
			Logger:       cfg.Logger,
		}),
		seq: sequencer.New(&sequencer.Config{
			Venue:  cfg.Venue,
			Logger: cfg.Logger,
		}),
		limiter: rate.NewLimiter(rate.Limit(float64(cfg.RateBudgetPerMin)/60.0), cfg.RateBudgetPerMin),
		logger:  cfg.Logger,

		fundingCurrency: strings.ToUpper(cfg.FundingCurrency),
		fundingCap:      cfg.FundingCap,
		thresholdPct:    cfg.ThresholdPct,
		cycleDeadline:   cfg.CycleDeadline,
		requireConfirm:  cfg.RequireManualConfirm,
		confirmTimeout:  cfg.ConfirmTimeout,
		feeRefresh:      feeRefresh,

		confirmCh: make(chan string, 1),
	}

	return c, nil
}

// Start performs the initial fee-token check and begins the periodic
// re-check. It returns immediately; ctx cancellation stops the loop.
func (c *Controller) Start(ctx context.Context) {
	c.refreshFeeToken(ctx)

	c.logger.Info("engine-started",
		zap.String("venue", c.venue.Name()),
		zap.String("funding-currency", c.fundingCurrency),
		zap.String("funding-cap", c.fundingCap.String()),
		zap.Float64("threshold-pct", c.thresholdPct),
		zap.Duration("cycle-deadline", c.cycleDeadline),
		zap.Bool("manual-confirm", c.requireConfirm),
		zap.Bool("fee-token-active", c.feeTokenActive.Load()))

	go func() {
		ticker := time.NewTicker(c.feeRefresh)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.refreshFeeToken(ctx)
			}
		}
	}()
}

// Submit runs one opportunity through the full lifecycle and returns its
// outcome together with the emitted record, nil when nothing was recorded
// (BUSY and HALTED refusals).
//
// Cancellation via ctx is honored only between stages, up to the start of
// the pre-sync. From there the cycle runs to a terminal state regardless of
// the caller; a cycle stopped between legs strands funds mid-path.
func (c *Controller) Submit(ctx context.Context, opp *types.Opportunity) (Outcome, *types.TradeRecord) {
	if opp == nil {
		c.logger.Warn("submission-nil-opportunity")
		return c.finish(OutcomeRejectedMalformed), nil
	}

	if !c.state.CompareAndSwap(int32(stateIdle), int32(stateAdmitting)) {
		c.logger.Warn("submission-discarded-busy",
			zap.String("path", opp.Path()),
			zap.String("state", controllerState(c.state.Load()).String()))

		return c.finish(OutcomeRejectedBusy), nil
	}

	defer c.transition(stateIdle)
	c.transition(stateAdmitting)

	started := time.Now()
	// Records must flush even when the caller has already given up.
	emitCtx := context.WithoutCancel(ctx)

	if !c.gate.IsEnabled() {
		c.logger.Warn("submission-refused-halted", zap.String("path", opp.Path()))
		return c.finish(OutcomeRejectedHalted), nil
	}

	if !c.limiter.AllowN(time.Now(), callsPerCycle) {
		RateRefusalsTotal.Inc()
		c.logger.Warn("submission-refused-rate-budget", zap.String("path", opp.Path()))

		return c.finish(OutcomeRejectedBusy), nil
	}

	if err := opp.Validate(); err != nil {
		return c.refuse(emitCtx, opp, err, started)
	}

	if cur := strings.ToUpper(opp.Cycle[0]); cur != c.fundingCurrency {
		return c.refuse(emitCtx, opp, &types.CycleError{
			Kind:    types.ErrCurrencyNotSupported,
			Message: fmt.Sprintf("cycle starts in %s, engine funds %s", cur, c.fundingCurrency),
		}, started)
	}

	funding := decimal.Min(opp.InitialAmount, c.fundingCap)

	if err := c.cancelled(ctx, "before probe"); err != nil {
		return c.refuse(emitCtx, opp, err, started)
	}

	c.transition(stateProbing)

	probeStart := time.Now()

	snaps, err := c.prober.Fetch(ctx, opp.Steps)
	if err != nil {
		return c.refuse(emitCtx, opp, err, started)
	}

	if err := c.cancelled(ctx, "after probe"); err != nil {
		return c.refuse(emitCtx, opp, err, started)
	}

	c.transition(stateRevalidating)

	res, err := c.reval.Check(opp, snaps, funding, c.feeTokenActive.Load())
	if err != nil {
		return c.refuse(emitCtx, opp, err, started)
	}

	if err := c.cancelled(ctx, "after revalidation"); err != nil {
		return c.refuse(emitCtx, opp, err, started)
	}

	if c.requireConfirm {
		if err := c.awaitConfirmation(ctx, opp, res); err != nil {
			return c.refuse(emitCtx, opp, err, started)
		}
	}

	// Admission. From here every path emits a terminal record.
	rec := c.rec.NewRecord(opp, funding)
	_ = c.rec.EmitAttempt(emitCtx, rec)

	c.logger.Info("opportunity-admitted",
		zap.String("trade-id", rec.TradeID),
		zap.String("path", opp.Path()),
		zap.String("funding", funding.String()),
		zap.Float64("net-profit-pct", res.NetProfitPct),
		zap.Bool("fee-token-active", res.FeeTokenActive))

	if ctx.Err() != nil {
		_ = c.rec.EmitFailure(emitCtx, rec, &recorder.FailureDetail{
			Err: &types.CycleError{
				Kind:    types.ErrCancelled,
				Message: "cancelled after admission, before leg 1",
				Err:     ctx.Err(),
			},
			Duration:           time.Since(started),
			CancelledPostAdmit: true,
		})

		return c.finish(OutcomeRejectedCancelled), rec
	}

	// The caller can no longer abort; the cycle is driven to a terminal
	// state on a detached context.
	execCtx := emitCtx

	c.transition(statePresync)

	if _, err := c.venue.SyncTime(execCtx); err != nil {
		if types.KindOf(err) == "" {
			err = &types.CycleError{Kind: types.ErrClockSkew, Leg: 1, Message: "pre-sync failed", Err: err}
		}

		return c.failed(emitCtx, rec, nil, err, started, probeStart)
	}

	c.transition(stateExecuting)

	seqRes, err := c.seq.Run(execCtx, opp, funding)
	if err != nil {
		return c.failed(emitCtx, rec, seqRes, err, started, probeStart)
	}

	c.transition(stateRecordingOK)

	CycleDurationSeconds.Observe(time.Since(probeStart).Seconds())

	rec.DeadlineExceeded = c.deadlineBreached(probeStart)
	_ = c.rec.EmitSuccess(emitCtx, rec, seqRes.Final, seqRes.Fees, seqRes.Ledger.Values(), time.Since(started))

	c.gate.RecordSuccess(funding.InexactFloat64())

	c.logger.Info("cycle-completed",
		zap.String("trade-id", rec.TradeID),
		zap.String("path", opp.Path()),
		zap.String("final", rec.Final.String()),
		zap.String("profit", rec.ActualProfit.String()),
		zap.Float64("profit-pct", rec.ActualProfitPct),
		zap.String("fees", rec.Fees.String()),
		zap.Int64("duration-ms", rec.DurationMS))

	return c.finish(OutcomeExecutedOK), rec
}

// Confirm delivers the operator's confirmation token for the submission
// currently suspended in manual-confirmation mode.
func (c *Controller) Confirm(token string) error {
	if token == "" {
		return fmt.Errorf("confirmation token cannot be empty")
	}

	if !c.confirmPending.Load() {
		return fmt.Errorf("no confirmation pending")
	}

	select {
	case c.confirmCh <- token:
		return nil
	default:
		return fmt.Errorf("confirmation already submitted")
	}
}

// Status is a point-in-time view of the controller for operator surfaces.
type Status struct {
	State           string  `json:"state"`
	FeeTokenActive  bool    `json:"fee_token_active"`
	ConfirmPending  bool    `json:"confirm_pending"`
	FundingCurrency string  `json:"funding_currency"`
	FundingCap      string  `json:"funding_cap"`
	ThresholdPct    float64 `json:"threshold_pct"`
}

// Status reports the controller's current state.
func (c *Controller) Status() Status {
	return Status{
		State:           controllerState(c.state.Load()).String(),
		FeeTokenActive:  c.feeTokenActive.Load(),
		ConfirmPending:  c.confirmPending.Load(),
		FundingCurrency: c.fundingCurrency,
		FundingCap:      c.fundingCap.String(),
		ThresholdPct:    c.thresholdPct,
	}
}

// refuse emits the single FAILED record for a pre-admission abort. No
// ATTEMPT exists, no leg was submitted, and the breaker is not fed: refusals
// are not execution failures.
func (c *Controller) refuse(
	emitCtx context.Context,
	opp *types.Opportunity,
	err error,
	started time.Time,
) (Outcome, *types.TradeRecord) {
	funding := decimal.Zero
	if opp.InitialAmount.IsPositive() {
		funding = decimal.Min(opp.InitialAmount, c.fundingCap)
	}

	rec := c.rec.NewRecord(opp, funding)
	_ = c.rec.EmitFailure(emitCtx, rec, &recorder.FailureDetail{
		Err:      err,
		Duration: time.Since(started),
	})

	c.logger.Info("admission-refused",
		zap.String("trade-id", rec.TradeID),
		zap.String("path", opp.Path()),
		zap.String("kind", string(rec.ErrorKind)),
		zap.Error(err))

	return c.finish(outcomeFor(rec.ErrorKind)), rec
}

// failed emits the terminal FAILED record for an admitted cycle that died
// mid-flight and feeds the breaker.
func (c *Controller) failed(
	emitCtx context.Context,
	rec *types.TradeRecord,
	seqRes *sequencer.Result,
	err error,
	started, probeStart time.Time,
) (Outcome, *types.TradeRecord) {
	c.transition(stateRecordingFail)

	CycleDurationSeconds.Observe(time.Since(probeStart).Seconds())

	detail := &recorder.FailureDetail{
		Err:              err,
		Duration:         time.Since(started),
		DeadlineExceeded: c.deadlineBreached(probeStart),
	}

	if seqRes != nil {
		detail.Ledger = seqRes.Ledger.Values()
		detail.Fees = seqRes.Fees
	}

	_ = c.rec.EmitFailure(emitCtx, rec, detail)

	c.gate.RecordFailure(rec.Desynchronized)

	c.logger.Error("cycle-failed",
		zap.String("trade-id", rec.TradeID),
		zap.String("kind", string(rec.ErrorKind)),
		zap.Int("failed-leg", rec.FailedLegIndex),
		zap.Bool("desynchronized", rec.Desynchronized),
		zap.Error(err))

	return c.finish(OutcomeExecutedFail), rec
}

// awaitConfirmation suspends admission until the operator confirms, the
// window lapses, or the caller cancels.
func (c *Controller) awaitConfirmation(ctx context.Context, opp *types.Opportunity, res *revalidate.Result) error {
	// Drop a token left over from a previous submission.
	select {
	case <-c.confirmCh:
	default:
	}

	c.confirmPending.Store(true)
	defer c.confirmPending.Store(false)

	c.logger.Info("confirmation-required",
		zap.String("path", opp.Path()),
		zap.Float64("net-profit-pct", res.NetProfitPct),
		zap.Duration("window", c.confirmTimeout))

	timer := time.NewTimer(c.confirmTimeout)
	defer timer.Stop()

	select {
	case token := <-c.confirmCh:
		c.logger.Info("confirmation-received", zap.String("token", token))
		return nil
	case <-timer.C:
		return &types.CycleError{
			Kind:    types.ErrUnconfirmed,
			Message: fmt.Sprintf("no confirmation within %s", c.confirmTimeout),
		}
	case <-ctx.Done():
		return &types.CycleError{
			Kind:    types.ErrCancelled,
			Message: "cancelled while awaiting confirmation",
			Err:     ctx.Err(),
		}
	}
}

func (c *Controller) cancelled(ctx context.Context, stage string) error {
	if err := ctx.Err(); err != nil {
		return &types.CycleError{
			Kind:    types.ErrCancelled,
			Message: "cancelled " + stage,
			Err:     err,
		}
	}

	return nil
}

// deadlineBreached checks the probe-to-completion wall clock against the
// cycle deadline. Breaches are observable, never enforced.
func (c *Controller) deadlineBreached(probeStart time.Time) bool {
	elapsed := time.Since(probeStart)
	if elapsed <= c.cycleDeadline {
		return false
	}

	DeadlineBreachesTotal.Inc()
	c.logger.Warn("cycle-deadline-breached",
		zap.Duration("elapsed", elapsed),
		zap.Duration("deadline", c.cycleDeadline))

	return true
}

func (c *Controller) refreshFeeToken(ctx context.Context) {
	token := c.venue.FeeSchedule().FeeToken
	if token == "" {
		return
	}

	bal, err := c.venue.Balance(ctx, token)
	if err != nil {
		c.logger.Warn("fee-token-check-failed", zap.String("token", token), zap.Error(err))
		return
	}

	active := bal.IsPositive()
	if c.feeTokenActive.Swap(active) != active {
		c.logger.Info("fee-token-state-changed",
			zap.String("token", token),
			zap.String("balance", bal.String()),
			zap.Bool("active", active))
	}

	if active {
		FeeTokenActiveGauge.Set(1)
	} else {
		FeeTokenActiveGauge.Set(0)
	}
}

func (c *Controller) transition(s controllerState) {
	c.state.Store(int32(s))
	StateGauge.Set(float64(s))
	c.logger.Debug("state-transition", zap.String("state", s.String()))
}

func (c *Controller) finish(outcome Outcome) Outcome {
	SubmissionsTotal.WithLabelValues(strings.ToLower(string(outcome))).Inc()
	return outcome
}

func outcomeFor(kind types.ErrorKind) Outcome {
	switch kind {
	case types.ErrMalformedCycle, types.ErrCurrencyNotSupported:
		return OutcomeRejectedMalformed
	case types.ErrStale, types.ErrNoLiquidity:
		return OutcomeRejectedStale
	case types.ErrBelowThreshold:
		return OutcomeRejectedThreshold
	case types.ErrThinBook:
		return OutcomeRejectedThinBook
	case types.ErrUnconfirmed:
		return OutcomeRejectedUnconfirmed
	case types.ErrCancelled:
		return OutcomeRejectedCancelled
	default:
		return OutcomeExecutedFail
	}
}
