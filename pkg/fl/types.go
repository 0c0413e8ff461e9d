package fl

import (
	"time"

	"github.com/absmach/fedledger/pkg/zk"
)

type ModelStatus string

const (
	ModelActive    ModelStatus = "active"
	ModelPaused    ModelStatus = "paused"
	ModelCompleted ModelStatus = "completed"
	ModelDeleted   ModelStatus = "deleted"
)

type RoundStatus string

const (
	RoundPending     RoundStatus = "pending"
	RoundActive      RoundStatus = "active"
	RoundAggregating RoundStatus = "aggregating"
	RoundCompleted   RoundStatus = "completed"
	RoundTimedOut    RoundStatus = "timed-out"
	RoundFailed      RoundStatus = "failed"
)

// Open reports whether the round still counts against the
// one-open-round-per-model rule.
func (s RoundStatus) Open() bool {
	switch s {
	case RoundPending, RoundActive, RoundAggregating:
		return true
	default:
		return false
	}
}

// Terminal reports whether the round can no longer be mutated, apart from
// completing a timed-out round.
func (s RoundStatus) Terminal() bool {
	switch s {
	case RoundCompleted, RoundTimedOut, RoundFailed:
		return true
	default:
		return false
	}
}

type Model struct {
	ID           string      `json:"id"`
	Disease      string      `json:"disease"`
	Kind         string      `json:"kind"`
	Weights      []float64   `json:"weights"`
	WeightsCID   string      `json:"weights_cid"`
	CurrentRound uint64      `json:"current_round"`
	Accuracy     float64     `json:"accuracy"`
	Loss         float64     `json:"loss"`
	Status       ModelStatus `json:"status"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
}

type ModelPage struct {
	Offset uint64  `json:"offset"`
	Limit  uint64  `json:"limit"`
	Total  uint64  `json:"total"`
	Models []Model `json:"models"`
}

type Round struct {
	ID              string             `json:"id"`
	ModelID         string             `json:"model_id"`
	Number          uint64             `json:"round_number"`
	Status          RoundStatus        `json:"status"`
	OpenedAt        time.Time          `json:"opened_at"`
	Deadline        time.Time          `json:"deadline"`
	ClosedAt        time.Time          `json:"closed_at,omitempty"`
	MinParticipants int                `json:"min_participants"`
	ContributionIDs []string           `json:"accepted_contribution_ids"`
	Result          *AggregationResult `json:"result,omitempty"`
}

// Expired reports whether the deadline has passed at the given instant.
func (r Round) Expired(now time.Time) bool {
	return !r.Deadline.IsZero() && now.After(r.Deadline)
}

type RoundPage struct {
	Offset uint64  `json:"offset"`
	Limit  uint64  `json:"limit"`
	Total  uint64  `json:"total"`
	Rounds []Round `json:"rounds"`
}

type Metrics struct {
	Accuracy       float64 `json:"accuracy"        cbor:"accuracy"`
	Loss           float64 `json:"loss"            cbor:"loss"`
	SamplesTrained int64   `json:"samples_trained" cbor:"samples_trained"`
}

type Contribution struct {
	ID               string    `json:"id"`
	RoundID          string    `json:"round_id"`
	ParticipantID    string    `json:"participant_id"`
	Delta            []float64 `json:"weight_delta"`
	DeltaCID         string    `json:"weight_delta_cid,omitempty"`
	Metrics          Metrics   `json:"metrics"`
	Proof            zk.Proof  `json:"proof"`
	SubmittedAt      time.Time `json:"submitted_at"`
	Suspicious       bool      `json:"suspicious"`
	SuspicionReasons []string  `json:"suspicion_reasons,omitempty"`
}

type ContributionPage struct {
	Offset        uint64         `json:"offset"`
	Limit         uint64         `json:"limit"`
	Total         uint64         `json:"total"`
	Contributions []Contribution `json:"contributions"`
}

type AggregationResult struct {
	RoundID                string    `json:"round_id"`
	Weights                []float64 `json:"new_global_weights"`
	WeightsCID             string    `json:"weights_cid,omitempty"`
	Accuracy               float64   `json:"aggregate_accuracy"`
	Loss                   float64   `json:"aggregate_loss"`
	ParticipantCount       int       `json:"participant_count"`
	TotalSamples           int64     `json:"total_samples"`
	ExcludedParticipantIDs []string  `json:"excluded_participant_ids"`
	Strategy               string    `json:"strategy"`
	CompletedAt            time.Time `json:"completed_at"`
}

type Participant struct {
	WalletID      string    `json:"wallet_id"`
	DisplayName   string    `json:"display_name"`
	Active        bool      `json:"is_active"`
	Contributions uint64    `json:"contributions"`
	Reputation    float64   `json:"reputation"`
	RegisteredAt  time.Time `json:"registered_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

type ParticipantPage struct {
	Offset       uint64        `json:"offset"`
	Limit        uint64        `json:"limit"`
	Total        uint64        `json:"total"`
	Participants []Participant `json:"participants"`
}

// Stats summarizes the federation. Models and AverageAccuracy cover active
// models only; Participants counts wallets with at least one accepted
// contribution.
type Stats struct {
	Models          uint64    `json:"total_models"`
	AverageAccuracy float64   `json:"avg_accuracy"`
	Contributions   uint64    `json:"total_contributions"`
	Participants    uint64    `json:"total_participants"`
	GeneratedAt     time.Time `json:"generated_at"`
}
