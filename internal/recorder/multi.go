package recorder

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/mserran2/triarb/pkg/types"
)

// MultiSink fans every record out to all configured sinks. A failing sink
// does not stop the others; errors are joined so the caller sees each one.
type MultiSink struct {
	sinks  []Sink
	logger *zap.Logger
}

// NewMultiSink creates a fan-out sink.
func NewMultiSink(logger *zap.Logger, sinks ...Sink) *MultiSink {
	return &MultiSink{sinks: sinks, logger: logger}
}

// StoreTrade writes the record to every sink.
func (m *MultiSink) StoreTrade(ctx context.Context, rec *types.TradeRecord) error {
	var errs []error

	for _, s := range m.sinks {
		if err := s.StoreTrade(ctx, rec); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// Close closes every sink.
func (m *MultiSink) Close() error {
	var errs []error

	for _, s := range m.sinks {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}
