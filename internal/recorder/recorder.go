// Package recorder builds the durable account of every execution attempt and
// emits it to the configured sink. One ATTEMPT record at admission, exactly
// one terminal record (SUCCESS or FAILED) after; sinks are external and an
// emit failure never alters realized P&L.
package recorder

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mserran2/triarb/pkg/types"
)

// Sink persists trade records.
type Sink interface {
	StoreTrade(ctx context.Context, rec *types.TradeRecord) error

	Close() error
}

// Recorder constructs and emits trade records.
type Recorder struct {
	sink   Sink
	logger *zap.Logger
}

// Config holds recorder configuration.
type Config struct {
	Sink   Sink
	Logger *zap.Logger
}

// New creates a recorder.
func New(cfg *Config) *Recorder {
	return &Recorder{sink: cfg.Sink, logger: cfg.Logger}
}

// NewTradeID returns a globally unique attempt id, sortable by time.
func NewTradeID() string {
	return fmt.Sprintf("tri_%d_%s", time.Now().UnixMilli(), uuid.NewString()[:8])
}

// NewRecord seeds a record for one attempt. Status stays unset until the
// first emit; Final defaults to the funding amount so a failure carries no
// P&L claim.
func (r *Recorder) NewRecord(opp *types.Opportunity, funding decimal.Decimal) *types.TradeRecord {
	return &types.TradeRecord{
		TradeID:           NewTradeID(),
		TS:                time.Now().UTC(),
		Exchange:          opp.Exchange,
		Cycle:             opp.Cycle,
		Path:              opp.Path(),
		Initial:           funding,
		Final:             funding,
		ExpectedProfitPct: opp.ExpectedProfitPct,
	}
}

// EmitAttempt marks the record admitted and emits it.
func (r *Recorder) EmitAttempt(ctx context.Context, rec *types.TradeRecord) error {
	rec.Status = types.StatusAttempt

	return r.emit(ctx, rec)
}

// EmitSuccess terminal-mutates rec after a completed cycle and emits it.
func (r *Recorder) EmitSuccess(
	ctx context.Context,
	rec *types.TradeRecord,
	final, fees decimal.Decimal,
	ledger []decimal.Decimal,
	duration time.Duration,
) error {
	if terminal(rec) {
		r.logger.Warn("record-already-terminal", zap.String("trade-id", rec.TradeID))
		return nil
	}

	rec.Status = types.StatusSuccess
	rec.Final = final
	rec.ActualProfit = final.Sub(rec.Initial)

	if rec.Initial.IsPositive() {
		rec.ActualProfitPct = rec.ActualProfit.
			Div(rec.Initial).
			Mul(decimal.NewFromInt(100)).
			InexactFloat64()
	}

	rec.Fees = fees
	rec.Ledger = ledger
	rec.DurationMS = duration.Milliseconds()

	return r.emit(ctx, rec)
}

// FailureDetail carries everything a FAILED record needs beyond the seed.
type FailureDetail struct {
	Err                error
	Ledger             []decimal.Decimal // realized prefix, leg outputs in order
	Fees               decimal.Decimal
	Duration           time.Duration
	CancelledPostAdmit bool
	DeadlineExceeded   bool
}

// EmitFailure terminal-mutates rec with the failure taxonomy and emits it.
//
// FailedLegIndex is 1-based and names the leg being executed when the cycle
// died; 0 means no leg was ever submitted (all pre-admission kinds).
// Desynchronized is set whenever at least one leg completed, because the
// account is then holding a non-funding currency that only the operator can
// reconcile.
func (r *Recorder) EmitFailure(ctx context.Context, rec *types.TradeRecord, d *FailureDetail) error {
	if terminal(rec) {
		r.logger.Warn("record-already-terminal", zap.String("trade-id", rec.TradeID))
		return nil
	}

	rec.Status = types.StatusFailed
	rec.Final = rec.Initial
	rec.ActualProfit = decimal.Zero
	rec.ActualProfitPct = 0
	rec.Fees = d.Fees
	rec.Ledger = d.Ledger
	rec.DurationMS = d.Duration.Milliseconds()
	rec.CancelledPostAdmit = d.CancelledPostAdmit
	rec.DeadlineExceeded = d.DeadlineExceeded
	rec.Desynchronized = len(d.Ledger) > 0

	kind := types.KindOf(d.Err)
	if kind == "" {
		kind = types.ErrRejected
	}

	rec.ErrorKind = kind

	if d.Err != nil {
		rec.Error = d.Err.Error()
	}

	if midCycleKind(kind) {
		var ce *types.CycleError
		if errors.As(d.Err, &ce) && ce.Leg > 0 {
			rec.FailedLegIndex = ce.Leg
		} else {
			rec.FailedLegIndex = len(d.Ledger) + 1
		}
	}

	return r.emit(ctx, rec)
}

// Close closes the sink.
func (r *Recorder) Close() error {
	return r.sink.Close()
}

func (r *Recorder) emit(ctx context.Context, rec *types.TradeRecord) error {
	RecordsTotal.WithLabelValues(string(rec.Status)).Inc()

	if err := r.sink.StoreTrade(ctx, rec); err != nil {
		EmitFailuresTotal.Inc()

		r.logger.Error("record-emit-failed",
			zap.String("trade-id", rec.TradeID),
			zap.String("status", string(rec.Status)),
			zap.Error(err))

		return &types.CycleError{
			Kind:    types.ErrRecordEmitFailed,
			Message: "store " + rec.TradeID,
			Err:     err,
		}
	}

	return nil
}

func terminal(rec *types.TradeRecord) bool {
	return rec.Status == types.StatusSuccess || rec.Status == types.StatusFailed
}

// midCycleKind reports whether the kind implies an order was submitted, which
// is what gives FailedLegIndex meaning.
func midCycleKind(kind types.ErrorKind) bool {
	switch kind {
	case types.ErrRejected, types.ErrInsufficientBalance, types.ErrPrecision,
		types.ErrTimeout, types.ErrClockSkew, types.ErrZeroFill:
		return true
	default:
		return false
	}
}
