package mocks

import (
	"context"

	"github.com/absmach/fedledger/coordinator"
	"github.com/absmach/fedledger/pkg/fl"
	"github.com/stretchr/testify/mock"
)

var _ coordinator.Service = (*MockService)(nil)

// MockService is a mock implementation of the coordinator.Service interface
type MockService struct {
	mock.Mock
}

func (m *MockService) CreateModel(ctx context.Context, disease, kind string, weights []float64) (fl.Model, error) {
	args := m.Called(ctx, disease, kind, weights)
	return args.Get(0).(fl.Model), args.Error(1)
}

func (m *MockService) GetModel(ctx context.Context, modelID string) (fl.Model, error) {
	args := m.Called(ctx, modelID)
	return args.Get(0).(fl.Model), args.Error(1)
}

func (m *MockService) ListModels(ctx context.Context, offset, limit uint64) (fl.ModelPage, error) {
	args := m.Called(ctx, offset, limit)
	return args.Get(0).(fl.ModelPage), args.Error(1)
}

func (m *MockService) PauseModel(ctx context.Context, modelID string) (fl.Model, error) {
	args := m.Called(ctx, modelID)
	return args.Get(0).(fl.Model), args.Error(1)
}

func (m *MockService) ResumeModel(ctx context.Context, modelID string) (fl.Model, error) {
	args := m.Called(ctx, modelID)
	return args.Get(0).(fl.Model), args.Error(1)
}

func (m *MockService) DeleteModel(ctx context.Context, modelID string) error {
	args := m.Called(ctx, modelID)
	return args.Error(0)
}

func (m *MockService) OpenRound(ctx context.Context, modelID string) (fl.Round, error) {
	args := m.Called(ctx, modelID)
	return args.Get(0).(fl.Round), args.Error(1)
}

func (m *MockService) GetRound(ctx context.Context, roundID string) (fl.Round, error) {
	args := m.Called(ctx, roundID)
	return args.Get(0).(fl.Round), args.Error(1)
}

func (m *MockService) GetActiveRound(ctx context.Context, modelID string) (fl.Round, error) {
	args := m.Called(ctx, modelID)
	return args.Get(0).(fl.Round), args.Error(1)
}

func (m *MockService) ListRounds(ctx context.Context, modelID string, offset, limit uint64) (fl.RoundPage, error) {
	args := m.Called(ctx, modelID, offset, limit)
	return args.Get(0).(fl.RoundPage), args.Error(1)
}

func (m *MockService) SetRoundMinParticipants(ctx context.Context, roundID string, n int) (fl.Round, error) {
	args := m.Called(ctx, roundID, n)
	return args.Get(0).(fl.Round), args.Error(1)
}

func (m *MockService) SubmitContribution(ctx context.Context, sub coordinator.Submission) (fl.Contribution, error) {
	args := m.Called(ctx, sub)
	return args.Get(0).(fl.Contribution), args.Error(1)
}

func (m *MockService) ListContributions(ctx context.Context, roundID string) ([]fl.Contribution, error) {
	args := m.Called(ctx, roundID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]fl.Contribution), args.Error(1)
}

func (m *MockService) CompleteRound(ctx context.Context, roundID string) (fl.AggregationResult, error) {
	args := m.Called(ctx, roundID)
	return args.Get(0).(fl.AggregationResult), args.Error(1)
}

func (m *MockService) SweepExpiredRounds(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *MockService) OpenDueRounds(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *MockService) RegisterParticipant(ctx context.Context, walletID, displayName string) (fl.Participant, error) {
	args := m.Called(ctx, walletID, displayName)
	return args.Get(0).(fl.Participant), args.Error(1)
}

func (m *MockService) DeactivateParticipant(ctx context.Context, walletID string) (fl.Participant, error) {
	args := m.Called(ctx, walletID)
	return args.Get(0).(fl.Participant), args.Error(1)
}

func (m *MockService) GetParticipant(ctx context.Context, walletID string) (fl.Participant, error) {
	args := m.Called(ctx, walletID)
	return args.Get(0).(fl.Participant), args.Error(1)
}

func (m *MockService) ListParticipants(ctx context.Context, offset, limit uint64) (fl.ParticipantPage, error) {
	args := m.Called(ctx, offset, limit)
	return args.Get(0).(fl.ParticipantPage), args.Error(1)
}

func (m *MockService) IsActiveParticipant(ctx context.Context, walletID string) (bool, error) {
	args := m.Called(ctx, walletID)
	return args.Bool(0), args.Error(1)
}

func (m *MockService) ReportByzantine(ctx context.Context, roundID, walletID, reason string) (fl.Participant, error) {
	args := m.Called(ctx, roundID, walletID, reason)
	return args.Get(0).(fl.Participant), args.Error(1)
}

func (m *MockService) GetContribution(ctx context.Context, contributionID string) (fl.Contribution, error) {
	args := m.Called(ctx, contributionID)
	return args.Get(0).(fl.Contribution), args.Error(1)
}

func (m *MockService) ListContributionsByParticipant(ctx context.Context, walletID string, offset, limit uint64) (fl.ContributionPage, error) {
	args := m.Called(ctx, walletID, offset, limit)
	return args.Get(0).(fl.ContributionPage), args.Error(1)
}

func (m *MockService) Stats(ctx context.Context) (fl.Stats, error) {
	args := m.Called(ctx)
	return args.Get(0).(fl.Stats), args.Error(1)
}
