// Package sqlite stores the saga log in its own SQLite file so the audit
// trail survives independently of the order store.
package sqlite

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/jcmexdev/mebel-storefront/internal/coordinator/sagalog"
)

const schema = `
CREATE TABLE IF NOT EXISTS order_saga_log (
    id           INTEGER PRIMARY KEY AUTOINCREMENT,
    order_id     TEXT NOT NULL,
    status       TEXT NOT NULL,
    step         TEXT NOT NULL DEFAULT '',
    payload      TEXT,
    errors       TEXT NOT NULL DEFAULT '[]',
    trace_id     TEXT NOT NULL DEFAULT '',
    span_id      TEXT NOT NULL DEFAULT '',
    recorded_at  TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_order_saga_log_order ON order_saga_log(order_id, id);
CREATE INDEX IF NOT EXISTS idx_order_saga_log_trace ON order_saga_log(trace_id);
`

type Repository struct {
	db *sqlx.DB
}

var (
	_ sagalog.Repository = (*Repository)(nil)
	_ sagalog.Reader     = (*Repository)(nil)
)

type entryRow struct {
	OrderID    string  `db:"order_id"`
	Status     string  `db:"status"`
	Step       string  `db:"step"`
	Payload    *string `db:"payload"`
	Errors     string  `db:"errors"`
	TraceID    string  `db:"trace_id"`
	SpanID     string  `db:"span_id"`
	RecordedAt string  `db:"recorded_at"`
}

// Open opens or creates the log at path; ":memory:" keeps it in process.
func Open(path string) (*Repository, error) {
	dsn := "file:" + path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	if path == ":memory:" {
		dsn = "file::memory:?_pragma=busy_timeout(5000)"
	}

	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sagalog: open %q: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sagalog: apply schema: %w", err)
	}
	return &Repository{db: db}, nil
}

func (r *Repository) Close() error {
	return r.db.Close()
}

func (r *Repository) Append(ctx context.Context, e sagalog.Entry) error {
	errs := []byte("[]")
	if len(e.Errors) > 0 {
		b, err := json.Marshal(e.Errors)
		if err != nil {
			return fmt.Errorf("sagalog: encode errors: %w", err)
		}
		errs = b
	}
	row := entryRow{
		OrderID:    e.OrderID,
		Status:     string(e.Status),
		Step:       e.Step,
		Errors:     string(errs),
		TraceID:    e.TraceID,
		SpanID:     e.SpanID,
		RecordedAt: e.RecordedAt.UTC().Format(time.RFC3339Nano),
	}
	if e.Payload != "" {
		row.Payload = &e.Payload
	}

	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO order_saga_log (order_id, status, step, payload, errors, trace_id, span_id, recorded_at)
		VALUES (:order_id, :status, :step, :payload, :errors, :trace_id, :span_id, :recorded_at)`, row)
	if err != nil {
		return fmt.Errorf("sagalog: append %s %s: %w", e.OrderID, e.Status, err)
	}
	return nil
}

func (r *Repository) History(ctx context.Context, orderID string) ([]sagalog.Entry, error) {
	var rows []entryRow
	err := r.db.SelectContext(ctx, &rows, `
		SELECT order_id, status, step, payload, errors, trace_id, span_id, recorded_at
		FROM order_saga_log WHERE order_id = ? ORDER BY id`, orderID)
	if err != nil {
		return nil, fmt.Errorf("sagalog: history %s: %w", orderID, err)
	}

	out := make([]sagalog.Entry, 0, len(rows))
	for _, row := range rows {
		e := sagalog.Entry{
			OrderID: row.OrderID,
			Status:  sagalog.Status(row.Status),
			Step:    row.Step,
			TraceID: row.TraceID,
			SpanID:  row.SpanID,
		}
		if row.Payload != nil {
			e.Payload = *row.Payload
		}
		if err := json.Unmarshal([]byte(row.Errors), &e.Errors); err != nil {
			return nil, fmt.Errorf("sagalog: decode errors: %w", err)
		}
		if e.RecordedAt, err = time.Parse(time.RFC3339Nano, row.RecordedAt); err != nil {
			return nil, fmt.Errorf("sagalog: parse time %q: %w", row.RecordedAt, err)
		}
		out = append(out, e)
	}
	return out, nil
}
