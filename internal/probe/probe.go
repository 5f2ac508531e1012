// Package probe fetches the three orderbooks of a candidate cycle and hands
// fresh top-of-book snapshots to the revalidator. Freshness is the whole
// point: all three books must arrive inside one aggregate deadline or the
// opportunity is stale.
package probe

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mserran2/triarb/pkg/types"
)

// BookSource is the slice of the venue adapter the probe needs.
type BookSource interface {
	GetOrderbook(ctx context.Context, symbol string, depth int) (*types.OrderbookSnapshot, error)
}

// Prober fetches cycle orderbooks under a common deadline.
type Prober struct {
	venue    BookSource
	depth    int
	deadline time.Duration
	parallel bool
	logger   *zap.Logger
}

// Config holds prober configuration.
type Config struct {
	Venue    BookSource
	Depth    int           // levels requested per book
	Deadline time.Duration // aggregate budget for all three fetches
	Parallel bool          // fan out the three fetches
	Logger   *zap.Logger
}

// New creates a prober.
func New(cfg *Config) *Prober {
	depth := cfg.Depth
	if depth <= 0 {
		depth = 20
	}

	deadline := cfg.Deadline
	if deadline <= 0 {
		deadline = 200 * time.Millisecond
	}

	return &Prober{
		venue:    cfg.Venue,
		depth:    depth,
		deadline: deadline,
		parallel: cfg.Parallel,
		logger:   cfg.Logger,
	}
}

// Fetch retrieves one snapshot per cycle step. The middle pair gets a single
// inverted retry when its direct fetch fails, because venues list each pair
// in only one orientation; an inverted snapshot is marked so downstream
// consumers flip bid/ask interpretation.
//
// A deadline overrun fails the whole probe with STALE. Any other fetch
// failure keeps its own kind when it has one (NO_LIQUIDITY) and otherwise
// degrades to STALE: either way the opportunity is skipped, never executed
// on partial data.
func (p *Prober) Fetch(ctx context.Context, steps [3]types.Step) ([3]*types.OrderbookSnapshot, error) {
	start := time.Now()

	ctx, cancel := context.WithTimeout(ctx, p.deadline)
	defer cancel()

	var (
		snaps [3]*types.OrderbookSnapshot
		errs  [3]error
	)

	if p.parallel {
		var wg sync.WaitGroup

		for i := range steps {
			wg.Add(1)

			go func(i int) {
				defer wg.Done()
				snaps[i], errs[i] = p.fetchStep(ctx, i, steps[i].Symbol)
			}(i)
		}

		wg.Wait()
	} else {
		for i := range steps {
			snaps[i], errs[i] = p.fetchStep(ctx, i, steps[i].Symbol)
		}
	}

	ProbeDurationSeconds.Observe(time.Since(start).Seconds())

	for i, err := range errs {
		if err == nil {
			continue
		}

		kind := types.ErrStale
		if errors.Is(err, context.DeadlineExceeded) {
			ProbesTotal.WithLabelValues("stale").Inc()
		} else if types.KindOf(err) == types.ErrNoLiquidity {
			kind = types.ErrNoLiquidity
			ProbesTotal.WithLabelValues("no_liquidity").Inc()
		} else {
			ProbesTotal.WithLabelValues("stale").Inc()
		}

		p.logger.Debug("probe-fetch-failed",
			zap.Int("step", i+1),
			zap.String("symbol", steps[i].Symbol),
			zap.Error(err))

		return snaps, &types.CycleError{
			Kind:    kind,
			Message: fmt.Sprintf("step %d book %s", i+1, steps[i].Symbol),
			Err:     err,
		}
	}

	ProbesTotal.WithLabelValues("ok").Inc()

	return snaps, nil
}

// fetchStep fetches one book. Step index 1 is the middle pair and earns the
// inverted retry.
func (p *Prober) fetchStep(ctx context.Context, i int, symbol string) (*types.OrderbookSnapshot, error) {
	snap, err := p.venue.GetOrderbook(ctx, symbol, p.depth)
	if err == nil || i != 1 {
		return snap, err
	}

	if ctx.Err() != nil {
		return nil, err
	}

	inverted, invErr := invertSymbol(symbol)
	if invErr != nil {
		return nil, err
	}

	InvertedRetriesTotal.Inc()

	snap, retryErr := p.venue.GetOrderbook(ctx, inverted, p.depth)
	if retryErr != nil {
		// Report the original failure; the retry was best-effort.
		return nil, err
	}

	snap.Inverted = true

	p.logger.Debug("probe-inverted-pair",
		zap.String("requested", symbol),
		zap.String("fetched", inverted))

	return snap, nil
}

// invertSymbol flips pair orientation preserving the separator,
// KCS-BTC -> BTC-KCS.
func invertSymbol(symbol string) (string, error) {
	base, quote, err := types.ParseSymbol(symbol)
	if err != nil {
		return "", err
	}

	sep := "-"
	if strings.Contains(symbol, "/") {
		sep = "/"
	}

	return quote + sep + base, nil
}
