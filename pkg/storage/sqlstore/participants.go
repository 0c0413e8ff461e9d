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

const participantColumns = `wallet_id, display_name, active, contributions, reputation, registered_at, updated_at`

type dbParticipant struct {
	WalletID      string    `db:"wallet_id"`
	DisplayName   string    `db:"display_name"`
	Active        bool      `db:"active"`
	Contributions uint64    `db:"contributions"`
	Reputation    float64   `db:"reputation"`
	RegisteredAt  time.Time `db:"registered_at"`
	UpdatedAt     time.Time `db:"updated_at"`
}

func toDBParticipant(p fl.Participant) dbParticipant {
	return dbParticipant{
		WalletID:      p.WalletID,
		DisplayName:   p.DisplayName,
		Active:        p.Active,
		Contributions: p.Contributions,
		Reputation:    p.Reputation,
		RegisteredAt:  p.RegisteredAt,
		UpdatedAt:     p.UpdatedAt,
	}
}

func (d dbParticipant) toParticipant() fl.Participant {
	return fl.Participant{
		WalletID:      d.WalletID,
		DisplayName:   d.DisplayName,
		Active:        d.Active,
		Contributions: d.Contributions,
		Reputation:    d.Reputation,
		RegisteredAt:  d.RegisteredAt.UTC(),
		UpdatedAt:     d.UpdatedAt.UTC(),
	}
}

type ParticipantRepository struct {
	db      *sqlx.DB
	dialect Dialect
}

func (r *ParticipantRepository) Create(ctx context.Context, p fl.Participant) error {
	q := `INSERT INTO participants (` + participantColumns + `)
		VALUES (:wallet_id, :display_name, :active, :contributions, :reputation, :registered_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, q, toDBParticipant(p)); err != nil {
		if r.dialect.IsUniqueViolation(err) {
			return pkgerrors.ErrEntityExists
		}

		return fmt.Errorf("%w: %w", ErrCreate, err)
	}

	return nil
}

func (r *ParticipantRepository) Get(ctx context.Context, walletID string) (fl.Participant, error) {
	var row dbParticipant
	q := r.db.Rebind(`SELECT ` + participantColumns + ` FROM participants WHERE wallet_id = ?`)
	if err := r.db.GetContext(ctx, &row, q, walletID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fl.Participant{}, pkgerrors.ErrNotFound
		}

		return fl.Participant{}, fmt.Errorf("%w: %w", ErrDBQuery, err)
	}

	return row.toParticipant(), nil
}

func (r *ParticipantRepository) Update(ctx context.Context, p fl.Participant) error {
	q := `UPDATE participants SET display_name = :display_name, active = :active, contributions = :contributions,
		reputation = :reputation, updated_at = :updated_at WHERE wallet_id = :wallet_id`
	res, err := r.db.NamedExecContext(ctx, q, toDBParticipant(p))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUpdate, err)
	}

	return requireAffected(res)
}

func (r *ParticipantRepository) List(ctx context.Context, offset, limit uint64) ([]fl.Participant, uint64, error) {
	var total uint64
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM participants`); err != nil {
		return nil, 0, fmt.Errorf("%w: %w", ErrDBQuery, err)
	}

	var rows []dbParticipant
	q := r.db.Rebind(`SELECT ` + participantColumns + ` FROM participants ORDER BY registered_at, wallet_id LIMIT ? OFFSET ?`)
	if err := r.db.SelectContext(ctx, &rows, q, pageLimit(limit), offset); err != nil {
		return nil, 0, fmt.Errorf("%w: %w", ErrDBQuery, err)
	}

	ps := make([]fl.Participant, 0, len(rows))
	for _, row := range rows {
		ps = append(ps, row.toParticipant())
	}

	return ps, total, nil
}
