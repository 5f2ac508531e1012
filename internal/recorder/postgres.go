package recorder

import (
	"context"
	"database/sql"
	"fmt"

	json "github.com/goccy/go-json"
	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/mserran2/triarb/pkg/types"
)

// PostgresSink persists trade records to PostgreSQL, append-only: each emit
// is its own row, so an attempt and its terminal state are separate rows
// sharing trade_id.
type PostgresSink struct {
	db     *sql.DB
	logger *zap.Logger
}

// PostgresConfig holds PostgreSQL configuration.
type PostgresConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Database string
	SSLMode  string
	Logger   *zap.Logger
}

// NewPostgresSink creates a PostgreSQL sink.
func NewPostgresSink(cfg *PostgresConfig) (*PostgresSink, error) {
	connStr := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode,
	)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	err = db.Ping()
	if err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	cfg.Logger.Info("postgres-sink-connected",
		zap.String("host", cfg.Host),
		zap.String("database", cfg.Database))

	return &PostgresSink{db: db, logger: cfg.Logger}, nil
}

// StoreTrade inserts one row for the record's current state.
func (p *PostgresSink) StoreTrade(ctx context.Context, rec *types.TradeRecord) error {
	ledger, err := json.Marshal(rec.Ledger)
	if err != nil {
		return fmt.Errorf("marshal ledger: %w", err)
	}

	query := `
		INSERT INTO trade_records (
			trade_id, ts, exchange, cycle_path, status,
			initial_amount, final_amount, expected_profit_pct,
			actual_profit, actual_profit_pct, fees, duration_ms,
			error_kind, error_message, failed_leg_index, ledger,
			desynchronized, cancelled_post_admit, deadline_exceeded
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19
		)
	`

	_, err = p.db.ExecContext(ctx, query,
		rec.TradeID,
		rec.TS,
		rec.Exchange,
		rec.Path,
		string(rec.Status),
		rec.Initial,
		rec.Final,
		rec.ExpectedProfitPct,
		rec.ActualProfit,
		rec.ActualProfitPct,
		rec.Fees,
		rec.DurationMS,
		string(rec.ErrorKind),
		rec.Error,
		rec.FailedLegIndex,
		ledger,
		rec.Desynchronized,
		rec.CancelledPostAdmit,
		rec.DeadlineExceeded,
	)

	if err != nil {
		return fmt.Errorf("insert trade record: %w", err)
	}

	p.logger.Debug("trade-stored",
		zap.String("trade-id", rec.TradeID),
		zap.String("status", string(rec.Status)))

	return nil
}

// Close closes the database connection.
func (p *PostgresSink) Close() error {
	p.logger.Info("closing-postgres-sink")

	return p.db.Close()
}
