package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"github.com/lockwhz/iac-analytics-service/internal/logger"
	"github.com/lockwhz/iac-analytics-service/internal/telemetry"
)

const createEventsTable = `
CREATE TABLE IF NOT EXISTS iac_analytics_events (
	id           UUID PRIMARY KEY,
	event_id     UUID NOT NULL,
	scan_id      TEXT NOT NULL,
	metric_key   TEXT NOT NULL,
	metric_value JSONB,
	created_at   TIMESTAMPTZ NOT NULL,
	UNIQUE (event_id, metric_key)
)`

const insertMetric = `INSERT INTO iac_analytics_events (
	id,
	event_id,
	scan_id,
	metric_key,
	metric_value,
	created_at
) VALUES (
	$1,$2,$3,$4,$5,$6
) ON CONFLICT (event_id, metric_key) DO NOTHING`

// RDSStore persists analytics events in PostgreSQL, one row per metric.
type RDSStore struct {
	DB *sql.DB
}

var _ telemetry.Publisher = (*RDSStore)(nil)

// Connect opens a lib/pq connection and validates it with a ping.
func Connect(ctx context.Context, dsn string) (*RDSStore, error) {
	conn, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open conn: %w", err)
	}
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return &RDSStore{DB: conn}, nil
}

func (r *RDSStore) Init(ctx context.Context) error {
	if _, err := r.DB.ExecContext(ctx, createEventsTable); err != nil {
		return fmt.Errorf("create table: %w", err)
	}
	return nil
}

// Publish inserts every metric of event in one transaction. Replaying the
// same event is a no-op.
func (r *RDSStore) Publish(ctx context.Context, event telemetry.Event) error {
	start := time.Now()
	defer logger.Trace("RDSStore.Publish", start)

	if len(event.Metrics) == 0 {
		return nil
	}

	keys := make([]string, 0, len(event.Metrics))
	for k := range event.Metrics {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	tx, err := r.DB.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, insertMetric)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	for _, key := range keys {
		value, err := json.Marshal(event.Metrics[key])
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("encode %s: %w", key, err)
		}
		if _, err := stmt.ExecContext(ctx,
			uuid.New(),
			event.ID,
			event.ScanID,
			key,
			string(value),
			event.CreatedAt,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("insert %s: %w", key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (r *RDSStore) Close() error {
	if r.DB == nil {
		return nil
	}
	return r.DB.Close()
}
