package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	pkgerrors "github.com/absmach/fedledger/pkg/errors"
	"github.com/absmach/fedledger/pkg/fl"
	"github.com/absmach/fedledger/pkg/zk"
	"github.com/jmoiron/sqlx"
)

const contributionColumns = `id, round_id, participant_id, delta, delta_cid, accuracy, loss, samples_trained,
	proof, submitted_at, suspicious, suspicion_reasons`

type dbContribution struct {
	ID               string    `db:"id"`
	RoundID          string    `db:"round_id"`
	ParticipantID    string    `db:"participant_id"`
	Delta            string    `db:"delta"`
	DeltaCID         string    `db:"delta_cid"`
	Accuracy         float64   `db:"accuracy"`
	Loss             float64   `db:"loss"`
	SamplesTrained   int64     `db:"samples_trained"`
	Proof            string    `db:"proof"`
	SubmittedAt      time.Time `db:"submitted_at"`
	Suspicious       bool      `db:"suspicious"`
	SuspicionReasons string    `db:"suspicion_reasons"`
}

func toDBContribution(c fl.Contribution) (dbContribution, error) {
	delta, err := jsonString(c.Delta)
	if err != nil {
		return dbContribution{}, err
	}
	proof, err := jsonString(c.Proof)
	if err != nil {
		return dbContribution{}, err
	}
	reasons, err := jsonString(c.SuspicionReasons)
	if err != nil {
		return dbContribution{}, err
	}

	return dbContribution{
		ID:               c.ID,
		RoundID:          c.RoundID,
		ParticipantID:    c.ParticipantID,
		Delta:            delta,
		DeltaCID:         c.DeltaCID,
		Accuracy:         c.Metrics.Accuracy,
		Loss:             c.Metrics.Loss,
		SamplesTrained:   c.Metrics.SamplesTrained,
		Proof:            proof,
		SubmittedAt:      c.SubmittedAt,
		Suspicious:       c.Suspicious,
		SuspicionReasons: reasons,
	}, nil
}

func (d dbContribution) toContribution() (fl.Contribution, error) {
	c := fl.Contribution{
		ID:            d.ID,
		RoundID:       d.RoundID,
		ParticipantID: d.ParticipantID,
		DeltaCID:      d.DeltaCID,
		Metrics: fl.Metrics{
			Accuracy:       d.Accuracy,
			Loss:           d.Loss,
			SamplesTrained: d.SamplesTrained,
		},
		SubmittedAt: d.SubmittedAt.UTC(),
		Suspicious:  d.Suspicious,
	}
	var proof zk.Proof
	if err := jsonDecode(d.Proof, &proof); err != nil {
		return fl.Contribution{}, err
	}
	c.Proof = proof
	if err := jsonDecode(d.Delta, &c.Delta); err != nil {
		return fl.Contribution{}, err
	}
	if err := jsonDecode(d.SuspicionReasons, &c.SuspicionReasons); err != nil {
		return fl.Contribution{}, err
	}

	return c, nil
}

type ContributionRepository struct {
	db      *sqlx.DB
	dialect Dialect
}

// Create stores an accepted contribution. The (round_id, participant_id)
// unique constraint reports a repeat as pkgerrors.ErrDuplicate.
func (r *ContributionRepository) Create(ctx context.Context, c fl.Contribution) error {
	row, err := toDBContribution(c)
	if err != nil {
		return err
	}

	q := `INSERT INTO contributions (` + contributionColumns + `) VALUES (:id, :round_id, :participant_id, :delta, :delta_cid,
		:accuracy, :loss, :samples_trained, :proof, :submitted_at, :suspicious, :suspicion_reasons)`
	if _, err := r.db.NamedExecContext(ctx, q, row); err != nil {
		if r.dialect.IsUniqueViolation(err) {
			return pkgerrors.ErrDuplicate
		}

		return fmt.Errorf("%w: %w", ErrCreate, err)
	}

	return nil
}

func (r *ContributionRepository) Get(ctx context.Context, id string) (fl.Contribution, error) {
	var row dbContribution
	q := r.db.Rebind(`SELECT ` + contributionColumns + ` FROM contributions WHERE id = ?`)
	if err := r.db.GetContext(ctx, &row, q, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fl.Contribution{}, pkgerrors.ErrNotFound
		}

		return fl.Contribution{}, fmt.Errorf("%w: %w", ErrDBQuery, err)
	}

	return row.toContribution()
}

func (r *ContributionRepository) ListByRound(ctx context.Context, roundID string) ([]fl.Contribution, error) {
	var rows []dbContribution
	q := r.db.Rebind(`SELECT ` + contributionColumns + ` FROM contributions WHERE round_id = ? ORDER BY submitted_at, id`)
	if err := r.db.SelectContext(ctx, &rows, q, roundID); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDBQuery, err)
	}

	cs := make([]fl.Contribution, 0, len(rows))
	for _, row := range rows {
		c, err := row.toContribution()
		if err != nil {
			return nil, err
		}
		cs = append(cs, c)
	}

	return cs, nil
}

func (r *ContributionRepository) ListByParticipant(ctx context.Context, walletID string, offset, limit uint64) ([]fl.Contribution, uint64, error) {
	var total uint64
	if err := r.db.GetContext(ctx, &total, r.db.Rebind(`SELECT COUNT(*) FROM contributions WHERE participant_id = ?`), walletID); err != nil {
		return nil, 0, fmt.Errorf("%w: %w", ErrDBQuery, err)
	}

	var rows []dbContribution
	q := r.db.Rebind(`SELECT ` + contributionColumns + ` FROM contributions WHERE participant_id = ?
		ORDER BY submitted_at DESC, id DESC LIMIT ? OFFSET ?`)
	if err := r.db.SelectContext(ctx, &rows, q, walletID, pageLimit(limit), offset); err != nil {
		return nil, 0, fmt.Errorf("%w: %w", ErrDBQuery, err)
	}

	cs := make([]fl.Contribution, 0, len(rows))
	for _, row := range rows {
		c, err := row.toContribution()
		if err != nil {
			return nil, 0, err
		}
		cs = append(cs, c)
	}

	return cs, total, nil
}

func (r *ContributionRepository) Totals(ctx context.Context) (uint64, uint64, error) {
	var row struct {
		Contributions uint64 `db:"contributions"`
		Participants  uint64 `db:"participants"`
	}
	q := `SELECT COUNT(*) AS contributions, COUNT(DISTINCT participant_id) AS participants FROM contributions`
	if err := r.db.GetContext(ctx, &row, q); err != nil {
		return 0, 0, fmt.Errorf("%w: %w", ErrDBQuery, err)
	}

	return row.Contributions, row.Participants, nil
}
