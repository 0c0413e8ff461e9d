// Package coordinator drives federated-learning rounds: it opens rounds per
// model, admits proof-checked contributions, aggregates them and records the
// outcome.
package coordinator

import (
	"context"
	"time"

	"github.com/absmach/fedledger/pkg/fl"
	"github.com/absmach/fedledger/pkg/zk"
)

type Service interface {
	CreateModel(ctx context.Context, disease, kind string, weights []float64) (fl.Model, error)
	GetModel(ctx context.Context, modelID string) (fl.Model, error)
	ListModels(ctx context.Context, offset, limit uint64) (fl.ModelPage, error)
	PauseModel(ctx context.Context, modelID string) (fl.Model, error)
	ResumeModel(ctx context.Context, modelID string) (fl.Model, error)
	// DeleteModel fails with errors.ErrConflict while the model has an open round.
	DeleteModel(ctx context.Context, modelID string) error

	// OpenRound starts the next round of an active model. At most one round
	// per model is open at any time.
	OpenRound(ctx context.Context, modelID string) (fl.Round, error)
	GetRound(ctx context.Context, roundID string) (fl.Round, error)
	GetActiveRound(ctx context.Context, modelID string) (fl.Round, error)
	ListRounds(ctx context.Context, modelID string, offset, limit uint64) (fl.RoundPage, error)
	SetRoundMinParticipants(ctx context.Context, roundID string, n int) (fl.Round, error)

	SubmitContribution(ctx context.Context, sub Submission) (fl.Contribution, error)
	ListContributions(ctx context.Context, roundID string) ([]fl.Contribution, error)
	GetContribution(ctx context.Context, contributionID string) (fl.Contribution, error)
	// ListContributionsByParticipant returns a participant's history, newest
	// first.
	ListContributionsByParticipant(ctx context.Context, walletID string, offset, limit uint64) (fl.ContributionPage, error)
	// CompleteRound aggregates an active or timed-out round. Calling it on a
	// completed round returns the stored result.
	CompleteRound(ctx context.Context, roundID string) (fl.AggregationResult, error)
	// SweepExpiredRounds moves overdue active rounds to timed-out and reports
	// how many it moved.
	SweepExpiredRounds(ctx context.Context) (int, error)
	// OpenDueRounds opens a round for every active model without one.
	OpenDueRounds(ctx context.Context) (int, error)

	RegisterParticipant(ctx context.Context, walletID, displayName string) (fl.Participant, error)
	DeactivateParticipant(ctx context.Context, walletID string) (fl.Participant, error)
	GetParticipant(ctx context.Context, walletID string) (fl.Participant, error)
	ListParticipants(ctx context.Context, offset, limit uint64) (fl.ParticipantPage, error)
	IsActiveParticipant(ctx context.Context, walletID string) (bool, error)
	// ReportByzantine records misbehaviour observed outside the coordinator
	// against a participant of the round.
	ReportByzantine(ctx context.Context, roundID, walletID, reason string) (fl.Participant, error)

	// Stats summarizes active models and contributions.
	Stats(ctx context.Context) (fl.Stats, error)
}

// Submission is one participant's update for a round.
type Submission struct {
	RoundID       string     `json:"round_id"       cbor:"round_id"`
	ParticipantID string     `json:"participant_id" cbor:"participant_id"`
	Delta         []float64  `json:"weight_delta"   cbor:"weight_delta"`
	Metrics       fl.Metrics `json:"metrics"        cbor:"metrics"`
	Proof         zk.Proof   `json:"proof"          cbor:"proof"`
}

type Config struct {
	RoundTimeout    time.Duration `env:"FEDLEDGER_ROUND_TIMEOUT"     envDefault:"1h"`
	MinParticipants int           `env:"FEDLEDGER_MIN_PARTICIPANTS"  envDefault:"1"`
	SweepInterval   time.Duration `env:"FEDLEDGER_SWEEP_INTERVAL"    envDefault:"30s"`
	RoundSchedule   string        `env:"FEDLEDGER_ROUND_SCHEDULE"`
	RoundTimezone   string        `env:"FEDLEDGER_ROUND_TIMEZONE"`
	EventQueueSize  int           `env:"FEDLEDGER_EVENT_QUEUE_SIZE"  envDefault:"256"`
	// ReputationPenalty is taken off a participant whose update was excluded
	// or flagged.
	ReputationPenalty float64 `env:"FEDLEDGER_REPUTATION_PENALTY" envDefault:"0.1"`

	Aggregation fl.Config
	Detection   fl.DetectorConfig
}

// DefaultConfig matches the env defaults.
func DefaultConfig() Config {
	return Config{
		RoundTimeout:      time.Hour,
		MinParticipants:   1,
		SweepInterval:     30 * time.Second,
		EventQueueSize:    256,
		ReputationPenalty: 0.1,
		Aggregation:       fl.Config{Strategy: fl.StrategyFedAvg, Tolerance: 1},
		Detection: fl.DetectorConfig{
			StdDevMultiple: 2,
			MaxAccuracy:    0.99,
			MaxLoss:        10,
			MinStdDev:      0.05,
		},
	}
}
