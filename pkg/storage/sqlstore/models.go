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

const modelColumns = `id, disease, kind, weights, weights_cid, current_round, accuracy, loss, status, created_at, updated_at`

type dbModel struct {
	ID           string    `db:"id"`
	Disease      string    `db:"disease"`
	Kind         string    `db:"kind"`
	Weights      string    `db:"weights"`
	WeightsCID   string    `db:"weights_cid"`
	CurrentRound int64     `db:"current_round"`
	Accuracy     float64   `db:"accuracy"`
	Loss         float64   `db:"loss"`
	Status       string    `db:"status"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

func toDBModel(m fl.Model) (dbModel, error) {
	weights, err := jsonString(m.Weights)
	if err != nil {
		return dbModel{}, err
	}

	return dbModel{
		ID:           m.ID,
		Disease:      m.Disease,
		Kind:         m.Kind,
		Weights:      weights,
		WeightsCID:   m.WeightsCID,
		CurrentRound: int64(m.CurrentRound),
		Accuracy:     m.Accuracy,
		Loss:         m.Loss,
		Status:       string(m.Status),
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}, nil
}

func (d dbModel) toModel() (fl.Model, error) {
	m := fl.Model{
		ID:           d.ID,
		Disease:      d.Disease,
		Kind:         d.Kind,
		WeightsCID:   d.WeightsCID,
		CurrentRound: uint64(d.CurrentRound),
		Accuracy:     d.Accuracy,
		Loss:         d.Loss,
		Status:       fl.ModelStatus(d.Status),
		CreatedAt:    d.CreatedAt.UTC(),
		UpdatedAt:    d.UpdatedAt.UTC(),
	}
	if err := jsonDecode(d.Weights, &m.Weights); err != nil {
		return fl.Model{}, err
	}

	return m, nil
}

type ModelRepository struct {
	db      *sqlx.DB
	dialect Dialect
}

func (r *ModelRepository) Create(ctx context.Context, m fl.Model) (fl.Model, error) {
	row, err := toDBModel(m)
	if err != nil {
		return fl.Model{}, err
	}

	q := `INSERT INTO models (` + modelColumns + `) VALUES (:id, :disease, :kind, :weights, :weights_cid, :current_round, :accuracy, :loss, :status, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, q, row); err != nil {
		if r.dialect.IsUniqueViolation(err) {
			return fl.Model{}, pkgerrors.ErrEntityExists
		}

		return fl.Model{}, fmt.Errorf("%w: %w", ErrCreate, err)
	}

	return m, nil
}

func (r *ModelRepository) Get(ctx context.Context, id string) (fl.Model, error) {
	var row dbModel
	q := r.db.Rebind(`SELECT ` + modelColumns + ` FROM models WHERE id = ?`)
	if err := r.db.GetContext(ctx, &row, q, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fl.Model{}, pkgerrors.ErrNotFound
		}

		return fl.Model{}, fmt.Errorf("%w: %w", ErrDBQuery, err)
	}

	return row.toModel()
}

func (r *ModelRepository) Update(ctx context.Context, m fl.Model) error {
	row, err := toDBModel(m)
	if err != nil {
		return err
	}

	q := `UPDATE models SET disease = :disease, kind = :kind, weights = :weights, weights_cid = :weights_cid,
		current_round = :current_round, accuracy = :accuracy, loss = :loss, status = :status, updated_at = :updated_at
		WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, q, row)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUpdate, err)
	}

	return requireAffected(res)
}

func (r *ModelRepository) List(ctx context.Context, offset, limit uint64) ([]fl.Model, uint64, error) {
	var total uint64
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM models`); err != nil {
		return nil, 0, fmt.Errorf("%w: %w", ErrDBQuery, err)
	}

	var rows []dbModel
	q := r.db.Rebind(`SELECT ` + modelColumns + ` FROM models ORDER BY created_at, id LIMIT ? OFFSET ?`)
	if err := r.db.SelectContext(ctx, &rows, q, pageLimit(limit), offset); err != nil {
		return nil, 0, fmt.Errorf("%w: %w", ErrDBQuery, err)
	}

	models := make([]fl.Model, 0, len(rows))
	for _, row := range rows {
		m, err := row.toModel()
		if err != nil {
			return nil, 0, err
		}
		models = append(models, m)
	}

	return models, total, nil
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUpdate, err)
	}
	if n == 0 {
		return pkgerrors.ErrNotFound
	}

	return nil
}
