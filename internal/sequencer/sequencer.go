// Package sequencer executes the three legs of an admitted cycle serially,
// feeding each leg's realized output into the next leg's input. The engine is
// forward-only: a failed leg is never retried within the cycle and no
// unwinding is attempted, so this package's accounting is what the operator
// reconciles against.
package sequencer

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mserran2/triarb/pkg/types"
)

// OrderVenue is the slice of the venue adapter the sequencer drives.
type OrderVenue interface {
	PlaceMarketOrder(ctx context.Context, symbol string, side types.Side, quantity decimal.Decimal) (*types.LegResult, error)
	SyncTime(ctx context.Context) (driftMS int64, err error)
}

// Sequencer runs cycle legs in order against one venue.
type Sequencer struct {
	venue  OrderVenue
	logger *zap.Logger
}

// Config holds sequencer configuration.
type Config struct {
	Venue  OrderVenue
	Logger *zap.Logger
}

// New creates a sequencer.
func New(cfg *Config) *Sequencer {
	return &Sequencer{venue: cfg.Venue, logger: cfg.Logger}
}

// Result is the realized outcome of a traversal, complete or partial. On
// failure the ledger holds the prefix of completed legs; Legs additionally
// includes a terminal leg result that was returned but not credited (a zero
// fill), when there was one.
type Result struct {
	Ledger *types.AmountLedger
	Legs   []*types.LegResult
	Final  decimal.Decimal // C0 realized by leg 3; zero unless all legs completed
	Fees   decimal.Decimal // sum of per-leg fees as reported by the venue
}

// Run traverses the cycle with the given funding amount (already capped by
// the caller).
//
// Quantity semantics per leg follow the adapter contract: a buy is given the
// quote amount to spend, a sell the base amount to sell. Realized outputs
// propagate: a buy credits FilledBase, a sell credits CostQuote. A leg whose
// fill is zero, or whose credited output is not positive, aborts the cycle
// with ZERO_FILL and is not appended to the ledger.
//
// CLOCK_SKEW on leg 1 triggers one SyncTime plus one retry of leg 1. After
// leg 1 the account already holds a non-funding currency, so skew is fatal
// like any other mid-cycle failure.
func (s *Sequencer) Run(ctx context.Context, opp *types.Opportunity, funding decimal.Decimal) (*Result, error) {
	res := &Result{Ledger: types.NewAmountLedger()}

	amount := funding

	for i, step := range opp.Steps {
		legNo := i + 1

		if !amount.IsPositive() {
			return res, &types.CycleError{
				Kind:    types.ErrZeroFill,
				Leg:     legNo,
				Message: fmt.Sprintf("leg %d input %s is not positive", legNo, amount),
			}
		}

		legStart := time.Now()

		leg, err := s.placeLeg(ctx, legNo, step, amount)
		if err != nil {
			return res, err
		}

		res.Legs = append(res.Legs, leg)
		res.Fees = res.Fees.Add(leg.FeePaid)

		var output decimal.Decimal

		switch step.Side {
		case types.SideBuy:
			output = leg.FilledBase
		case types.SideSell:
			output = leg.CostQuote
		}

		if !leg.FilledBase.IsPositive() || !output.IsPositive() {
			LegsTotal.WithLabelValues(fmt.Sprint(legNo), "zero_fill").Inc()

			return res, &types.CycleError{
				Kind: types.ErrZeroFill,
				Leg:  legNo,
				Message: fmt.Sprintf("leg %d %s %s returned filled=%s credited=%s",
					legNo, step.Side, step.Symbol, leg.FilledBase, output),
			}
		}

		// Completed legs and only completed legs reach the ledger.
		if err := res.Ledger.Append(output); err != nil {
			return res, &types.CycleError{Kind: types.ErrZeroFill, Leg: legNo, Err: err}
		}

		LegsTotal.WithLabelValues(fmt.Sprint(legNo), "ok").Inc()
		LegDurationSeconds.WithLabelValues(fmt.Sprint(legNo)).Observe(time.Since(legStart).Seconds())

		s.logger.Info("leg-completed",
			zap.Int("leg", legNo),
			zap.String("symbol", step.Symbol),
			zap.String("side", string(step.Side)),
			zap.String("input", amount.String()),
			zap.String("output", output.String()),
			zap.String("fee", leg.FeePaid.String()))

		amount = output
	}

	res.Final = res.Ledger.At(2)

	return res, nil
}

func (s *Sequencer) placeLeg(ctx context.Context, legNo int, step types.Step, qty decimal.Decimal) (*types.LegResult, error) {
	leg, err := s.venue.PlaceMarketOrder(ctx, step.Symbol, step.Side, qty)
	if err == nil {
		return leg, nil
	}

	if legNo == 1 && types.KindOf(err) == types.ErrClockSkew {
		s.logger.Warn("clock-skew-on-first-leg", zap.String("symbol", step.Symbol), zap.Error(err))

		if _, syncErr := s.venue.SyncTime(ctx); syncErr == nil {
			SkewRetriesTotal.Inc()

			leg, retryErr := s.venue.PlaceMarketOrder(ctx, step.Symbol, step.Side, qty)
			if retryErr == nil {
				return leg, nil
			}

			err = retryErr
		}
	}

	kind := types.KindOf(err)
	if kind == "" {
		kind = types.ErrRejected
	}

	LegsTotal.WithLabelValues(fmt.Sprint(legNo), "error").Inc()

	return nil, &types.CycleError{
		Kind:    kind,
		Leg:     legNo,
		Message: fmt.Sprintf("%s %s", step.Side, step.Symbol),
		Err:     err,
	}
}
