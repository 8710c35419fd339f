package audit

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresTrail appends transitions to the booking_transitions table:
//
//	CREATE TABLE booking_transitions (
//	    id          BIGSERIAL PRIMARY KEY,
//	    session_id  TEXT NOT NULL,
//	    customer_id TEXT NOT NULL,
//	    from_stage  TEXT NOT NULL,
//	    to_stage    TEXT NOT NULL,
//	    event       TEXT NOT NULL,
//	    cause       TEXT NOT NULL,
//	    at          TIMESTAMPTZ NOT NULL DEFAULT now()
//	);
type PostgresTrail struct{ pool *pgxpool.Pool }

func NewPostgresTrail(pool *pgxpool.Pool) *PostgresTrail {
	return &PostgresTrail{pool: pool}
}

const trailCols = `id, session_id, customer_id, from_stage, to_stage, event, cause, at`

func (t *PostgresTrail) Append(ctx context.Context, e Entry) error {
	const q = `INSERT INTO booking_transitions (
    session_id, customer_id, from_stage, to_stage, event, cause
  ) VALUES ($1,$2,$3,$4,$5,$6)`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	_, err := t.pool.Exec(ctx, q,
		e.SessionID, e.CustomerID, e.FromStage, e.ToStage, e.Event, string(e.Cause),
	)
	return err
}

func (t *PostgresTrail) ListBySession(ctx context.Context, sessionID string) ([]Entry, error) {
	const q = `SELECT ` + trailCols + ` FROM booking_transitions WHERE session_id = $1 ORDER BY id`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	rows, err := t.pool.Query(ctx, q, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var cause string
		if err := rows.Scan(&e.ID, &e.SessionID, &e.CustomerID, &e.FromStage, &e.ToStage, &e.Event, &cause, &e.At); err != nil {
			return nil, err
		}
		e.Cause = Cause(cause)
		out = append(out, e)
	}
	return out, rows.Err()
}
