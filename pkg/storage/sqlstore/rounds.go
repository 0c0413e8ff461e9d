package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	pkgerrors "github.com/absmach/fedledger/pkg/errors"
	"github.com/absmach/fedledger/pkg/fl"
	"github.com/jmoiron/sqlx"
)

const roundColumns = `id, model_id, number, status, opened_at, deadline, closed_at, min_participants, result`

type dbRound struct {
	ID              string     `db:"id"`
	ModelID         string     `db:"model_id"`
	Number          int64      `db:"number"`
	Status          string     `db:"status"`
	OpenedAt        time.Time  `db:"opened_at"`
	Deadline        time.Time  `db:"deadline"`
	ClosedAt        *time.Time `db:"closed_at"`
	MinParticipants int        `db:"min_participants"`
	Result          *string    `db:"result"`
}

func toDBRound(r fl.Round) (dbRound, error) {
	row := dbRound{
		ID:              r.ID,
		ModelID:         r.ModelID,
		Number:          int64(r.Number),
		Status:          string(r.Status),
		OpenedAt:        r.OpenedAt,
		Deadline:        r.Deadline,
		ClosedAt:        nullTime(r.ClosedAt),
		MinParticipants: r.MinParticipants,
	}
	if r.Result != nil {
		res, err := jsonString(r.Result)
		if err != nil {
			return dbRound{}, err
		}
		row.Result = &res
	}

	return row, nil
}

func (d dbRound) toRound() (fl.Round, error) {
	r := fl.Round{
		ID:              d.ID,
		ModelID:         d.ModelID,
		Number:          uint64(d.Number),
		Status:          fl.RoundStatus(d.Status),
		OpenedAt:        d.OpenedAt.UTC(),
		Deadline:        d.Deadline.UTC(),
		ClosedAt:        fromNullTime(d.ClosedAt),
		MinParticipants: d.MinParticipants,
	}
	if d.Result != nil {
		var res fl.AggregationResult
		if err := jsonDecode(*d.Result, &res); err != nil {
			return fl.Round{}, err
		}
		r.Result = &res
	}

	return r, nil
}

type RoundRepository struct {
	db      *sqlx.DB
	dialect Dialect
}

// Create inserts a round. The partial unique index on open rounds turns a
// second open round for the same model into pkgerrors.ErrConflict.
func (r *RoundRepository) Create(ctx context.Context, round fl.Round) (fl.Round, error) {
	row, err := toDBRound(round)
	if err != nil {
		return fl.Round{}, err
	}

	q := `INSERT INTO rounds (` + roundColumns + `) VALUES (:id, :model_id, :number, :status, :opened_at, :deadline, :closed_at, :min_participants, :result)`
	if _, err := r.db.NamedExecContext(ctx, q, row); err != nil {
		if r.dialect.IsUniqueViolation(err) {
			return fl.Round{}, pkgerrors.ErrConflict
		}

		return fl.Round{}, fmt.Errorf("%w: %w", ErrCreate, err)
	}

	return round, nil
}

func (r *RoundRepository) Get(ctx context.Context, id string) (fl.Round, error) {
	var row dbRound
	q := r.db.Rebind(`SELECT ` + roundColumns + ` FROM rounds WHERE id = ?`)
	if err := r.db.GetContext(ctx, &row, q, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fl.Round{}, pkgerrors.ErrNotFound
		}

		return fl.Round{}, fmt.Errorf("%w: %w", ErrDBQuery, err)
	}

	return row.toRound()
}

func (r *RoundRepository) GetOpen(ctx context.Context, modelID string) (fl.Round, error) {
	var row dbRound
	q := r.db.Rebind(`SELECT ` + roundColumns + ` FROM rounds WHERE model_id = ? AND status IN (?, ?, ?)`)
	err := r.db.GetContext(ctx, &row, q, modelID, string(fl.RoundPending), string(fl.RoundActive), string(fl.RoundAggregating))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fl.Round{}, pkgerrors.ErrNotFound
		}

		return fl.Round{}, fmt.Errorf("%w: %w", ErrDBQuery, err)
	}

	return row.toRound()
}

func (r *RoundRepository) Update(ctx context.Context, round fl.Round) error {
	row, err := toDBRound(round)
	if err != nil {
		return err
	}

	q := `UPDATE rounds SET status = :status, deadline = :deadline, closed_at = :closed_at,
		min_participants = :min_participants, result = :result WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, q, row)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUpdate, err)
	}

	return requireAffected(res)
}

func (r *RoundRepository) ListByModel(ctx context.Context, modelID string, offset, limit uint64) ([]fl.Round, uint64, error) {
	var total uint64
	if err := r.db.GetContext(ctx, &total, r.db.Rebind(`SELECT COUNT(*) FROM rounds WHERE model_id = ?`), modelID); err != nil {
		return nil, 0, fmt.Errorf("%w: %w", ErrDBQuery, err)
	}

	var rows []dbRound
	q := r.db.Rebind(`SELECT ` + roundColumns + ` FROM rounds WHERE model_id = ? ORDER BY opened_at DESC, number DESC LIMIT ? OFFSET ?`)
	if err := r.db.SelectContext(ctx, &rows, q, modelID, pageLimit(limit), offset); err != nil {
		return nil, 0, fmt.Errorf("%w: %w", ErrDBQuery, err)
	}

	rounds, err := toRounds(rows)
	if err != nil {
		return nil, 0, err
	}

	return rounds, total, nil
}

func (r *RoundRepository) ListByStatus(ctx context.Context, statuses ...fl.RoundStatus) ([]fl.Round, error) {
	if len(statuses) == 0 {
		return []fl.Round{}, nil
	}

	names := make([]string, len(statuses))
	for i, s := range statuses {
		names[i] = string(s)
	}

	q, args, err := sqlx.In(`SELECT `+roundColumns+` FROM rounds WHERE status IN (?) ORDER BY opened_at`, names)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDBQuery, err)
	}

	var rows []dbRound
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(q), args...); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDBQuery, err)
	}

	return toRounds(rows)
}

func toRounds(rows []dbRound) ([]fl.Round, error) {
	rounds := make([]fl.Round, 0, len(rows))
	for _, row := range rows {
		round, err := row.toRound()
		if err != nil {
			return nil, err
		}
		rounds = append(rounds, round)
	}

	return rounds, nil
}
