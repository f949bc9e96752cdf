package vaccination

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type eventRepoPG struct{ db queryable }

func NewEventRepoPG(pool *pgxpool.Pool) EventRepository {
	return &eventRepoPG{db: pool}
}

const eventCols = `id, checked_at, issuer_url, key_id, dose_count, color, outcome, error`

func (r *eventRepoPG) scanEvent(row pgx.Row) (*VerificationEvent, error) {
	var ev VerificationEvent
	var color *string
	var outcome string
	err := row.Scan(&ev.ID, &ev.CheckedAt, &ev.IssuerURL, &ev.KeyID,
		&ev.DoseCount, &color, &outcome, &ev.Error)
	ev.Outcome = Outcome(outcome)
	if color != nil {
		c := Color(*color)
		ev.Color = &c
	}
	return &ev, err
}

func (r *eventRepoPG) Create(ctx context.Context, ev *VerificationEvent) error {
	if ev.ID == uuid.Nil {
		ev.ID = uuid.New()
	}
	var color *string
	if ev.Color != nil {
		c := string(*ev.Color)
		color = &c
	}
	_, err := r.db.Exec(ctx, `
		INSERT INTO verification_event (id, checked_at, issuer_url, key_id,
			dose_count, color, outcome, error)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		ev.ID, ev.CheckedAt, ev.IssuerURL, ev.KeyID,
		ev.DoseCount, color, string(ev.Outcome), ev.Error)
	return err
}

func (r *eventRepoPG) List(ctx context.Context, limit, offset int) ([]*VerificationEvent, int, error) {
	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM verification_event`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.db.Query(ctx, `SELECT `+eventCols+` FROM verification_event ORDER BY checked_at DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*VerificationEvent
	for rows.Next() {
		ev, err := r.scanEvent(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, ev)
	}
	return items, total, rows.Err()
}
