package storage

import (
	"context"

	"github.com/absmach/fedledger/pkg/fl"
)

type ModelRepository interface {
	Create(ctx context.Context, m fl.Model) (fl.Model, error)
	Get(ctx context.Context, id string) (fl.Model, error)
	Update(ctx context.Context, m fl.Model) error
	List(ctx context.Context, offset, limit uint64) ([]fl.Model, uint64, error)
}

// RoundRepository persists rounds. Create must reject a second open round
// for the same model with errors.ErrConflict.
type RoundRepository interface {
	Create(ctx context.Context, r fl.Round) (fl.Round, error)
	Get(ctx context.Context, id string) (fl.Round, error)
	// GetOpen returns the model's pending, active or aggregating round.
	GetOpen(ctx context.Context, modelID string) (fl.Round, error)
	Update(ctx context.Context, r fl.Round) error
	// ListByModel returns the newest rounds first.
	ListByModel(ctx context.Context, modelID string, offset, limit uint64) ([]fl.Round, uint64, error)
	ListByStatus(ctx context.Context, statuses ...fl.RoundStatus) ([]fl.Round, error)
}

// ContributionRepository persists accepted contributions. Create must reject
// a second contribution by the same participant to the same round with
// errors.ErrDuplicate.
type ContributionRepository interface {
	Create(ctx context.Context, c fl.Contribution) error
	Get(ctx context.Context, id string) (fl.Contribution, error)
	ListByRound(ctx context.Context, roundID string) ([]fl.Contribution, error)
	// ListByParticipant returns the participant's contributions, newest first.
	ListByParticipant(ctx context.Context, walletID string, offset, limit uint64) ([]fl.Contribution, uint64, error)
	// Totals counts stored contributions and the distinct participants
	// behind them.
	Totals(ctx context.Context) (contributions, participants uint64, err error)
}

type ParticipantRepository interface {
	Create(ctx context.Context, p fl.Participant) error
	Get(ctx context.Context, walletID string) (fl.Participant, error)
	Update(ctx context.Context, p fl.Participant) error
	List(ctx context.Context, offset, limit uint64) ([]fl.Participant, uint64, error)
}
