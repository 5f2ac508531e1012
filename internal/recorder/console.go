package recorder

import (
	"context"
	"fmt"

	json "github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/mserran2/triarb/pkg/types"
)

// ConsoleSink writes terminal records to stdout as machine-readable
// TRADE_COMPLETED lines. A supervising process tails stdout for these lines,
// so nothing else in this program may print there; all human-facing output
// goes to the stderr logger.
type ConsoleSink struct {
	logger *zap.Logger
}

// NewConsoleSink creates a console sink.
func NewConsoleSink(logger *zap.Logger) *ConsoleSink {
	logger.Info("console-sink-initialized")

	return &ConsoleSink{logger: logger}
}

// tradeLine is the payload of a TRADE_COMPLETED stdout line. Field names are
// a wire contract with the supervisor; do not rename them.
type tradeLine struct {
	TradeID     string  `json:"tradeId"`
	Exchange    string  `json:"exchange"`
	Path        string  `json:"trianglePath"`
	Initial     float64 `json:"initialAmount"`
	Final       float64 `json:"finalAmount"`
	Profit      float64 `json:"profitAmount"`
	ProfitPct   float64 `json:"profitPercentage"`
	Fees        float64 `json:"fees"`
	Status      string  `json:"status"`
	ErrorKind   string  `json:"errorKind,omitempty"`
	ExecutionMS int64   `json:"executionTimeMs"`
	Timestamp   string  `json:"timestamp"`
}

// StoreTrade emits one line per terminal record. ATTEMPT records are logged
// but kept off stdout.
func (c *ConsoleSink) StoreTrade(_ context.Context, rec *types.TradeRecord) error {
	if rec.Status == types.StatusAttempt {
		c.logger.Info("trade-attempt",
			zap.String("trade-id", rec.TradeID),
			zap.String("path", rec.Path),
			zap.String("initial", rec.Initial.String()))

		return nil
	}

	line := tradeLine{
		TradeID:     rec.TradeID,
		Exchange:    rec.Exchange,
		Path:        rec.Path,
		Initial:     rec.Initial.InexactFloat64(),
		Final:       rec.Final.InexactFloat64(),
		Profit:      rec.ActualProfit.InexactFloat64(),
		ProfitPct:   rec.ActualProfitPct,
		Fees:        rec.Fees.InexactFloat64(),
		Status:      statusWord(rec.Status),
		ErrorKind:   string(rec.ErrorKind),
		ExecutionMS: rec.DurationMS,
		Timestamp:   rec.TS.Format("2006-01-02T15:04:05.000Z07:00"),
	}

	payload, err := json.Marshal(line)
	if err != nil {
		return fmt.Errorf("marshal trade line: %w", err)
	}

	fmt.Printf("TRADE_COMPLETED: %s\n", payload)

	return nil
}

// Close is a no-op for console output.
func (c *ConsoleSink) Close() error {
	c.logger.Info("closing-console-sink")

	return nil
}

func statusWord(s types.TradeStatus) string {
	if s == types.StatusSuccess {
		return "success"
	}

	return "failed"
}
