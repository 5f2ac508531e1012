// Package revalidate recomputes cycle profitability from fresh orderbook
// snapshots and gates execution on a configured net threshold. The detector's
// numbers are never trusted; by the time an opportunity reaches the engine
// the books have moved.
package revalidate

import (
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mserran2/triarb/pkg/types"
)

const legsPerCycle = 3

// Result is the outcome of a passing revalidation, kept for record fields
// and expected-vs-actual reporting.
type Result struct {
	Funding        float64    // C0 committed to the hypothetical traversal
	FinalAmount    float64    // C0 produced by the traversal
	LegOutputs     [3]float64 // realized output per leg, in that leg's output currency
	GrossProfitPct float64
	TotalFeePct    float64
	NetProfitPct   float64
	FeeTokenActive bool
}

// Revalidator applies the profitability gate and the top-of-book depth check.
type Revalidator struct {
	perLegFeePct float64
	feeDiscount  float64
	thresholdPct float64
	logger       *zap.Logger
}

// Config holds revalidator configuration.
type Config struct {
	PerLegFeePct float64 // taker fee per leg, percent
	FeeDiscount  float64 // fraction, e.g. 0.20 for a 20% fee-token rebate
	ThresholdPct float64 // minimum net profit percent to proceed
	Logger       *zap.Logger
}

// New creates a revalidator.
func New(cfg *Config) *Revalidator {
	return &Revalidator{
		perLegFeePct: cfg.PerLegFeePct,
		feeDiscount:  cfg.FeeDiscount,
		thresholdPct: cfg.ThresholdPct,
		logger:       cfg.Logger,
	}
}

// Check walks the cycle hypothetically against top-of-book and returns the
// computed result when both gates pass.
//
// Per leg: a buy converts quote to base at the ask, a sell converts base to
// quote at the bid. The total cycle fee is 3 x per-leg fee, discounted when
// the fee token is held and active. The profitability gate is inclusive: a
// net exactly at the threshold proceeds. The depth check is also inclusive:
// top-of-book size equal to the leg's consumption passes.
//
// Failure kinds: NO_LIQUIDITY (unusable side), BELOW_THRESHOLD, THIN_BOOK.
// The gate is evaluated before the depth verdict.
func (r *Revalidator) Check(
	opp *types.Opportunity,
	snaps [3]*types.OrderbookSnapshot,
	funding decimal.Decimal,
	feeTokenActive bool,
) (*Result, error) {
	res := &Result{
		Funding:        funding.InexactFloat64(),
		FeeTokenActive: feeTokenActive,
	}

	var (
		thinLeg int // 1-based, 0 means none
		thinMsg string
	)

	amount := res.Funding

	for i, step := range opp.Steps {
		bid, ask, ok := snaps[i].EffectiveTop()
		if !ok {
			ChecksTotal.WithLabelValues("no_liquidity").Inc()

			return nil, &types.CycleError{
				Kind:    types.ErrNoLiquidity,
				Leg:     i + 1,
				Message: fmt.Sprintf("book %s has an empty side", step.Symbol),
			}
		}

		var required, available float64

		switch step.Side {
		case types.SideBuy:
			if ask.Price <= 0 {
				ChecksTotal.WithLabelValues("no_liquidity").Inc()

				return nil, &types.CycleError{
					Kind:    types.ErrNoLiquidity,
					Leg:     i + 1,
					Message: fmt.Sprintf("book %s ask price %v is unusable", step.Symbol, ask.Price),
				}
			}

			amount /= ask.Price
			required = amount // base units acquired at the ask
			available = ask.Size
		case types.SideSell:
			required = amount // base units handed to the bid
			available = bid.Size
			amount *= bid.Price
		}

		if thinLeg == 0 && required > available {
			thinLeg = i + 1
			thinMsg = fmt.Sprintf("leg %d needs %.8f of %s top-of-book, %.8f available",
				i+1, required, step.Symbol, available)
		}

		res.LegOutputs[i] = amount
	}

	res.FinalAmount = amount
	res.GrossProfitPct = (amount - res.Funding) / res.Funding * 100

	discount := 0.0
	if feeTokenActive {
		discount = r.feeDiscount
	}

	res.TotalFeePct = legsPerCycle * r.perLegFeePct * (1 - discount)
	res.NetProfitPct = res.GrossProfitPct - res.TotalFeePct

	NetProfitPct.Observe(res.NetProfitPct)

	if res.NetProfitPct < r.thresholdPct {
		ChecksTotal.WithLabelValues("below_threshold").Inc()

		return nil, &types.CycleError{
			Kind: types.ErrBelowThreshold,
			Message: fmt.Sprintf("net %.4f%% below threshold %.4f%% (gross %.4f%%, fees %.4f%%)",
				res.NetProfitPct, r.thresholdPct, res.GrossProfitPct, res.TotalFeePct),
		}
	}

	if thinLeg != 0 {
		ChecksTotal.WithLabelValues("thin_book").Inc()

		return nil, &types.CycleError{Kind: types.ErrThinBook, Leg: thinLeg, Message: thinMsg}
	}

	ChecksTotal.WithLabelValues("pass").Inc()

	r.logger.Debug("revalidation-passed",
		zap.String("path", opp.Path()),
		zap.Float64("net-pct", res.NetProfitPct),
		zap.Float64("gross-pct", res.GrossProfitPct),
		zap.Float64("fee-pct", res.TotalFeePct),
		zap.Bool("fee-token-active", feeTokenActive))

	return res, nil
}
