package cache

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"quarterfacts/pkg/core/xbrl"
)

// Archive mirrors quarter records into Postgres when a pool is configured.
// The file store stays authoritative; the archive is a durable secondary copy
// shared across machines. A nil Archive (or nil pool) is a no-op.
type Archive struct {
	pool *pgxpool.Pool
}

// NewArchive creates an archive over an existing pool. Returns nil for a nil
// pool so callers can wire it unconditionally.
func NewArchive(pool *pgxpool.Pool) *Archive {
	if pool == nil {
		return nil
	}
	return &Archive{pool: pool}
}

// Schema is the DDL for the archive table. Applied out of band.
const Schema = `
CREATE TABLE IF NOT EXISTS quarter_records (
    ticker        TEXT NOT NULL,
    fiscal_year   INT  NOT NULL,
    quarter       TEXT NOT NULL,
    filing_date   TEXT NOT NULL,
    fact_rows     INT  NOT NULL,
    record        JSONB NOT NULL,
    format_version TEXT NOT NULL,
    updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    PRIMARY KEY (ticker, fiscal_year, quarter)
);
`

// SaveQuarter upserts one quarter record keyed by (ticker, year, quarter).
func (a *Archive) SaveQuarter(ctx context.Context, ticker string, record *xbrl.FilingRecord) error {
	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}
	query := `
		INSERT INTO quarter_records (
			ticker, fiscal_year, quarter, filing_date, fact_rows, record, format_version
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (ticker, fiscal_year, quarter)
		DO UPDATE SET
			filing_date = EXCLUDED.filing_date,
			fact_rows = EXCLUDED.fact_rows,
			record = EXCLUDED.record,
			format_version = EXCLUDED.format_version,
			updated_at = NOW()
	`
	_, err = a.pool.Exec(ctx, query,
		ticker, record.Year, record.Quarter, record.FilingDate,
		record.TotalFactRows, payload, xbrl.CacheFormatVersion,
	)
	if err != nil {
		return fmt.Errorf("failed to archive quarter: %w", err)
	}
	return nil
}

// LoadQuarter fetches one archived record, or (nil, nil) on a miss.
func (a *Archive) LoadQuarter(ctx context.Context, ticker string, year int, quarter string) (*xbrl.FilingRecord, error) {
	query := `
		SELECT record FROM quarter_records
		WHERE ticker = $1 AND fiscal_year = $2 AND quarter = $3
		LIMIT 1
	`
	var payload []byte
	if err := a.pool.QueryRow(ctx, query, ticker, year, quarter).Scan(&payload); err != nil {
		return nil, nil // miss
	}
	var record xbrl.FilingRecord
	if err := json.Unmarshal(payload, &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal archived record: %w", err)
	}
	return &record, nil
}
