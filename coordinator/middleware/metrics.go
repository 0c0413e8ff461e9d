package middleware

import (
	"context"
	"time"

	"github.com/absmach/fedledger/coordinator"
	"github.com/absmach/fedledger/pkg/fl"
	"github.com/go-kit/kit/metrics"
)

var _ coordinator.Service = (*metricsMiddleware)(nil)

type metricsMiddleware struct {
	counter metrics.Counter
	latency metrics.Histogram
	svc     coordinator.Service
}

func Metrics(counter metrics.Counter, latency metrics.Histogram, svc coordinator.Service) coordinator.Service {
	return &metricsMiddleware{
		counter: counter,
		latency: latency,
		svc:     svc,
	}
}

func (mm *metricsMiddleware) observe(method string, begin time.Time) {
	mm.counter.With("method", method).Add(1)
	mm.latency.With("method", method).Observe(time.Since(begin).Seconds())
}

func (mm *metricsMiddleware) CreateModel(ctx context.Context, disease, kind string, weights []float64) (fl.Model, error) {
	defer mm.observe("create-model", time.Now())

	return mm.svc.CreateModel(ctx, disease, kind, weights)
}

func (mm *metricsMiddleware) GetModel(ctx context.Context, modelID string) (fl.Model, error) {
	defer mm.observe("get-model", time.Now())

	return mm.svc.GetModel(ctx, modelID)
}

func (mm *metricsMiddleware) ListModels(ctx context.Context, offset, limit uint64) (fl.ModelPage, error) {
	defer mm.observe("list-models", time.Now())

	return mm.svc.ListModels(ctx, offset, limit)
}

func (mm *metricsMiddleware) PauseModel(ctx context.Context, modelID string) (fl.Model, error) {
	defer mm.observe("pause-model", time.Now())

	return mm.svc.PauseModel(ctx, modelID)
}

func (mm *metricsMiddleware) ResumeModel(ctx context.Context, modelID string) (fl.Model, error) {
	defer mm.observe("resume-model", time.Now())

	return mm.svc.ResumeModel(ctx, modelID)
}

func (mm *metricsMiddleware) DeleteModel(ctx context.Context, modelID string) error {
	defer mm.observe("delete-model", time.Now())

	return mm.svc.DeleteModel(ctx, modelID)
}

func (mm *metricsMiddleware) OpenRound(ctx context.Context, modelID string) (fl.Round, error) {
	defer mm.observe("open-round", time.Now())

	return mm.svc.OpenRound(ctx, modelID)
}

func (mm *metricsMiddleware) GetRound(ctx context.Context, roundID string) (fl.Round, error) {
	defer mm.observe("get-round", time.Now())

	return mm.svc.GetRound(ctx, roundID)
}

func (mm *metricsMiddleware) GetActiveRound(ctx context.Context, modelID string) (fl.Round, error) {
	defer mm.observe("get-active-round", time.Now())

	return mm.svc.GetActiveRound(ctx, modelID)
}

func (mm *metricsMiddleware) ListRounds(ctx context.Context, modelID string, offset, limit uint64) (fl.RoundPage, error) {
	defer mm.observe("list-rounds", time.Now())

	return mm.svc.ListRounds(ctx, modelID, offset, limit)
}

func (mm *metricsMiddleware) SetRoundMinParticipants(ctx context.Context, roundID string, n int) (fl.Round, error) {
	defer mm.observe("set-round-min-participants", time.Now())

	return mm.svc.SetRoundMinParticipants(ctx, roundID, n)
}

func (mm *metricsMiddleware) SubmitContribution(ctx context.Context, sub coordinator.Submission) (fl.Contribution, error) {
	defer mm.observe("submit-contribution", time.Now())

	return mm.svc.SubmitContribution(ctx, sub)
}

func (mm *metricsMiddleware) ListContributions(ctx context.Context, roundID string) ([]fl.Contribution, error) {
	defer mm.observe("list-contributions", time.Now())

	return mm.svc.ListContributions(ctx, roundID)
}

func (mm *metricsMiddleware) GetContribution(ctx context.Context, contributionID string) (fl.Contribution, error) {
	defer mm.observe("get-contribution", time.Now())

	return mm.svc.GetContribution(ctx, contributionID)
}

func (mm *metricsMiddleware) ListContributionsByParticipant(ctx context.Context, walletID string, offset, limit uint64) (fl.ContributionPage, error) {
	defer mm.observe("list-participant-contributions", time.Now())

	return mm.svc.ListContributionsByParticipant(ctx, walletID, offset, limit)
}

func (mm *metricsMiddleware) CompleteRound(ctx context.Context, roundID string) (fl.AggregationResult, error) {
	defer mm.observe("complete-round", time.Now())

	return mm.svc.CompleteRound(ctx, roundID)
}

func (mm *metricsMiddleware) SweepExpiredRounds(ctx context.Context) (int, error) {
	defer mm.observe("sweep-expired-rounds", time.Now())

	return mm.svc.SweepExpiredRounds(ctx)
}

func (mm *metricsMiddleware) OpenDueRounds(ctx context.Context) (int, error) {
	defer mm.observe("open-due-rounds", time.Now())

	return mm.svc.OpenDueRounds(ctx)
}

func (mm *metricsMiddleware) RegisterParticipant(ctx context.Context, walletID, displayName string) (fl.Participant, error) {
	defer mm.observe("register-participant", time.Now())

	return mm.svc.RegisterParticipant(ctx, walletID, displayName)
}

func (mm *metricsMiddleware) DeactivateParticipant(ctx context.Context, walletID string) (fl.Participant, error) {
	defer mm.observe("deactivate-participant", time.Now())

	return mm.svc.DeactivateParticipant(ctx, walletID)
}

func (mm *metricsMiddleware) GetParticipant(ctx context.Context, walletID string) (fl.Participant, error) {
	defer mm.observe("get-participant", time.Now())

	return mm.svc.GetParticipant(ctx, walletID)
}

func (mm *metricsMiddleware) ListParticipants(ctx context.Context, offset, limit uint64) (fl.ParticipantPage, error) {
	defer mm.observe("list-participants", time.Now())

	return mm.svc.ListParticipants(ctx, offset, limit)
}

func (mm *metricsMiddleware) IsActiveParticipant(ctx context.Context, walletID string) (bool, error) {
	defer mm.observe("is-active-participant", time.Now())

	return mm.svc.IsActiveParticipant(ctx, walletID)
}

func (mm *metricsMiddleware) ReportByzantine(ctx context.Context, roundID, walletID, reason string) (fl.Participant, error) {
	defer mm.observe("report-byzantine", time.Now())

	return mm.svc.ReportByzantine(ctx, roundID, walletID, reason)
}

func (mm *metricsMiddleware) Stats(ctx context.Context) (fl.Stats, error) {
	defer mm.observe("stats", time.Now())

	return mm.svc.Stats(ctx)
}
