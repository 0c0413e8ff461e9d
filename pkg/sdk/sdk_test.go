package sdk_test

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/absmach/fedledger/coordinator"
	"github.com/absmach/fedledger/coordinator/api"
	"github.com/absmach/fedledger/coordinator/mocks"
	pkgerrors "github.com/absmach/fedledger/pkg/errors"
	"github.com/absmach/fedledger/pkg/fl"
	"github.com/absmach/fedledger/pkg/sdk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func setupSDK(t *testing.T) (sdk.SDK, *mocks.MockService) {
	t.Helper()

	svc := new(mocks.MockService)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ts := httptest.NewServer(api.MakeHandler(svc, logger, "sdk-test"))
	t.Cleanup(ts.Close)

	return sdk.NewSDK(sdk.Config{CoordinatorURL: ts.URL + "/"}), svc
}

func TestModels(t *testing.T) {
	client, svc := setupSDK(t)
	model := fl.Model{ID: "model-1", Disease: "diabetes", Kind: "logistic-regression", Weights: []float64{0, 0}, Status: fl.ModelActive}

	svc.On("CreateModel", mock.Anything, "diabetes", "logistic-regression", []float64{0, 0}).Return(model, nil).Once()
	got, err := client.CreateModel("diabetes", "logistic-regression", []float64{0, 0})
	require.NoError(t, err)
	assert.Equal(t, model.ID, got.ID)
	assert.Equal(t, model.Weights, got.Weights)

	svc.On("ListModels", mock.Anything, uint64(5), uint64(20)).
		Return(fl.ModelPage{Offset: 5, Limit: 20, Total: 6, Models: []fl.Model{model}}, nil).Once()
	page, err := client.ListModels(5, 20)
	require.NoError(t, err)
	assert.Equal(t, uint64(6), page.Total)
	assert.Len(t, page.Models, 1)

	paused := model
	paused.Status = fl.ModelPaused
	svc.On("PauseModel", mock.Anything, "model-1").Return(paused, nil).Once()
	got, err = client.PauseModel("model-1")
	require.NoError(t, err)
	assert.Equal(t, fl.ModelPaused, got.Status)

	svc.On("DeleteModel", mock.Anything, "model-1").Return(pkgerrors.ErrConflict).Once()
	err = client.DeleteModel("model-1")
	var statusErr *sdk.StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusConflict, statusErr.Code)
	assert.Contains(t, statusErr.Message, pkgerrors.ErrConflict.Error())

	svc.On("DeleteModel", mock.Anything, "model-1").Return(nil).Once()
	assert.NoError(t, client.DeleteModel("model-1"))

	svc.AssertExpectations(t)
}

func TestRoundLifecycle(t *testing.T) {
	client, svc := setupSDK(t)
	round := fl.Round{ID: "round-1", ModelID: "model-1", Number: 1, Status: fl.RoundActive, MinParticipants: 1}
	contribution := sdk.Contribution{
		ParticipantID: "wallet-a",
		Delta:         []float64{0.5, -0.5},
		Metrics:       fl.Metrics{Accuracy: 0.75, Loss: 0.4, SamplesTrained: 100},
	}
	sub := coordinator.Submission{
		RoundID:       "round-1",
		ParticipantID: contribution.ParticipantID,
		Delta:         contribution.Delta,
		Metrics:       contribution.Metrics,
	}
	accepted := fl.Contribution{ID: "c-1", RoundID: "round-1", ParticipantID: "wallet-a", Delta: sub.Delta, Metrics: sub.Metrics}

	svc.On("OpenRound", mock.Anything, "model-1").Return(round, nil).Once()
	opened, err := client.OpenRound("model-1")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), opened.Number)

	svc.On("SubmitContribution", mock.Anything, sub).Return(accepted, nil).Twice()
	got, err := client.SubmitContribution("round-1", contribution)
	require.NoError(t, err)
	assert.Equal(t, "c-1", got.ID)

	got, err = client.SubmitContributionCBOR("round-1", contribution)
	require.NoError(t, err)
	assert.Equal(t, accepted.Metrics, got.Metrics)

	svc.On("ListContributions", mock.Anything, "round-1").Return([]fl.Contribution{accepted}, nil).Once()
	cs, err := client.ListContributions("round-1")
	require.NoError(t, err)
	assert.Len(t, cs, 1)

	result := fl.AggregationResult{RoundID: "round-1", Weights: []float64{0.5, -0.5}, Accuracy: 0.75, ParticipantCount: 1, Strategy: "fedavg"}
	svc.On("CompleteRound", mock.Anything, "round-1").Return(result, nil).Once()
	res, err := client.CompleteRound("round-1")
	require.NoError(t, err)
	assert.Equal(t, result.Weights, res.Weights)
	assert.Equal(t, 1, res.ParticipantCount)

	svc.On("SetRoundMinParticipants", mock.Anything, "round-1", 2).Return(fl.Round{}, pkgerrors.ErrInvalidState).Once()
	_, err = client.SetRoundMinParticipants("round-1", 2)
	var statusErr *sdk.StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusConflict, statusErr.Code)

	svc.On("GetActiveRound", mock.Anything, "model-1").Return(fl.Round{}, pkgerrors.ErrNotFound).Once()
	_, err = client.GetActiveRound("model-1")
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusNotFound, statusErr.Code)

	svc.AssertExpectations(t)
}

func TestParticipants(t *testing.T) {
	client, svc := setupSDK(t)
	p := fl.Participant{WalletID: "wallet-a", DisplayName: "clinic-a", Active: true, Reputation: 1}

	svc.On("RegisterParticipant", mock.Anything, "wallet-a", "clinic-a").Return(p, nil).Once()
	got, err := client.RegisterParticipant("wallet-a", "clinic-a")
	require.NoError(t, err)
	assert.True(t, got.Active)

	svc.On("ListParticipants", mock.Anything, uint64(0), uint64(100)).
		Return(fl.ParticipantPage{Limit: 100, Total: 1, Participants: []fl.Participant{p}}, nil).Once()
	page, err := client.ListParticipants(0, 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), page.Total)

	penalised := p
	penalised.Reputation = 0.9
	svc.On("ReportByzantine", mock.Anything, "round-1", "wallet-a", "scaled update").Return(penalised, nil).Once()
	got, err = client.ReportByzantine("wallet-a", "round-1", "scaled update")
	require.NoError(t, err)
	assert.InDelta(t, 0.9, got.Reputation, 1e-9)

	svc.AssertExpectations(t)
}

func TestContributionsAndStats(t *testing.T) {
	client, svc := setupSDK(t)
	contribution := fl.Contribution{ID: "contribution-1", RoundID: "round-1", ParticipantID: "wallet-a"}

	svc.On("GetContribution", mock.Anything, "contribution-1").Return(contribution, nil).Once()
	got, err := client.GetContribution("contribution-1")
	require.NoError(t, err)
	assert.Equal(t, contribution.ID, got.ID)
	assert.Equal(t, contribution.ParticipantID, got.ParticipantID)

	svc.On("ListContributionsByParticipant", mock.Anything, "wallet-a", uint64(2), uint64(10)).
		Return(fl.ContributionPage{Offset: 2, Limit: 10, Total: 3, Contributions: []fl.Contribution{contribution}}, nil).Once()
	page, err := client.ListParticipantContributions("wallet-a", 2, 10)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), page.Total)
	assert.Len(t, page.Contributions, 1)

	svc.On("ListContributionsByParticipant", mock.Anything, "wallet-x", uint64(0), uint64(10)).
		Return(fl.ContributionPage{}, pkgerrors.ErrNotFound).Once()
	_, err = client.ListParticipantContributions("wallet-x", 0, 10)
	var statusErr *sdk.StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusNotFound, statusErr.Code)

	stats := fl.Stats{Models: 2, AverageAccuracy: 0.7, Contributions: 5, Participants: 3}
	svc.On("Stats", mock.Anything).Return(stats, nil).Once()
	gotStats, err := client.Stats()
	require.NoError(t, err)
	assert.Equal(t, stats, gotStats)

	svc.AssertExpectations(t)
}
