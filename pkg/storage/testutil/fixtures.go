package testutil

import (
	"time"

	"github.com/absmach/fedledger/pkg/fl"
	"github.com/absmach/fedledger/pkg/zk"
	"github.com/google/uuid"
)

func TestModel(id string) fl.Model {
	now := time.Now().UTC().Truncate(time.Millisecond)

	return fl.Model{
		ID:        id,
		Disease:   "diabetes",
		Kind:      "logistic-regression",
		Weights:   []float64{0.1, -0.2, 0.3},
		Status:    fl.ModelActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestRound(id, modelID string, number uint64) fl.Round {
	now := time.Now().UTC().Truncate(time.Millisecond)

	return fl.Round{
		ID:              id,
		ModelID:         modelID,
		Number:          number,
		Status:          fl.RoundActive,
		OpenedAt:        now,
		Deadline:        now.Add(time.Hour),
		MinParticipants: 2,
	}
}

func TestContribution(roundID, participantID string) fl.Contribution {
	return fl.Contribution{
		ID:            uuid.NewString(),
		RoundID:       roundID,
		ParticipantID: participantID,
		Delta:         []float64{0.01, 0.02, -0.01},
		Metrics: fl.Metrics{
			Accuracy:       0.8,
			Loss:           0.4,
			SamplesTrained: 100,
		},
		Proof: zk.Proof{
			Data: []byte("proof"),
			PublicInputs: zk.PublicInputs{
				Commitment: []byte("commitment"),
				Binding:    []byte("binding"),
			},
		},
		SubmittedAt: time.Now().UTC().Truncate(time.Millisecond),
	}
}

func TestParticipant(walletID string) fl.Participant {
	now := time.Now().UTC().Truncate(time.Millisecond)

	return fl.Participant{
		WalletID:     walletID,
		DisplayName:  "clinic-" + walletID,
		Active:       true,
		Reputation:   1,
		RegisteredAt: now,
		UpdatedAt:    now,
	}
}
