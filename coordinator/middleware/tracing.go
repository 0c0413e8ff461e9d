package middleware

import (
	"context"

	"github.com/absmach/fedledger/coordinator"
	"github.com/absmach/fedledger/pkg/fl"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var _ coordinator.Service = (*tracing)(nil)

type tracing struct {
	tracer trace.Tracer
	svc    coordinator.Service
}

func Tracing(tracer trace.Tracer, svc coordinator.Service) coordinator.Service {
	return &tracing{tracer, svc}
}

func (tm *tracing) CreateModel(ctx context.Context, disease, kind string, weights []float64) (fl.Model, error) {
	ctx, span := tm.tracer.Start(ctx, "create-model", trace.WithAttributes(
		attribute.String("disease", disease),
		attribute.String("kind", kind),
		attribute.Int("dimension", len(weights)),
	))
	defer span.End()

	return tm.svc.CreateModel(ctx, disease, kind, weights)
}

func (tm *tracing) GetModel(ctx context.Context, modelID string) (fl.Model, error) {
	ctx, span := tm.tracer.Start(ctx, "get-model", trace.WithAttributes(
		attribute.String("model_id", modelID),
	))
	defer span.End()

	return tm.svc.GetModel(ctx, modelID)
}

func (tm *tracing) ListModels(ctx context.Context, offset, limit uint64) (fl.ModelPage, error) {
	ctx, span := tm.tracer.Start(ctx, "list-models", trace.WithAttributes(
		attribute.Int64("offset", int64(offset)),
		attribute.Int64("limit", int64(limit)),
	))
	defer span.End()

	return tm.svc.ListModels(ctx, offset, limit)
}

func (tm *tracing) PauseModel(ctx context.Context, modelID string) (fl.Model, error) {
	ctx, span := tm.tracer.Start(ctx, "pause-model", trace.WithAttributes(
		attribute.String("model_id", modelID),
	))
	defer span.End()

	return tm.svc.PauseModel(ctx, modelID)
}

func (tm *tracing) ResumeModel(ctx context.Context, modelID string) (fl.Model, error) {
	ctx, span := tm.tracer.Start(ctx, "resume-model", trace.WithAttributes(
		attribute.String("model_id", modelID),
	))
	defer span.End()

	return tm.svc.ResumeModel(ctx, modelID)
}

func (tm *tracing) DeleteModel(ctx context.Context, modelID string) error {
	ctx, span := tm.tracer.Start(ctx, "delete-model", trace.WithAttributes(
		attribute.String("model_id", modelID),
	))
	defer span.End()

	return tm.svc.DeleteModel(ctx, modelID)
}

func (tm *tracing) OpenRound(ctx context.Context, modelID string) (fl.Round, error) {
	ctx, span := tm.tracer.Start(ctx, "open-round", trace.WithAttributes(
		attribute.String("model_id", modelID),
	))
	defer span.End()

	return tm.svc.OpenRound(ctx, modelID)
}

func (tm *tracing) GetRound(ctx context.Context, roundID string) (fl.Round, error) {
	ctx, span := tm.tracer.Start(ctx, "get-round", trace.WithAttributes(
		attribute.String("round_id", roundID),
	))
	defer span.End()

	return tm.svc.GetRound(ctx, roundID)
}

func (tm *tracing) GetActiveRound(ctx context.Context, modelID string) (fl.Round, error) {
	ctx, span := tm.tracer.Start(ctx, "get-active-round", trace.WithAttributes(
		attribute.String("model_id", modelID),
	))
	defer span.End()

	return tm.svc.GetActiveRound(ctx, modelID)
}

func (tm *tracing) ListRounds(ctx context.Context, modelID string, offset, limit uint64) (fl.RoundPage, error) {
	ctx, span := tm.tracer.Start(ctx, "list-rounds", trace.WithAttributes(
		attribute.String("model_id", modelID),
		attribute.Int64("offset", int64(offset)),
		attribute.Int64("limit", int64(limit)),
	))
	defer span.End()

	return tm.svc.ListRounds(ctx, modelID, offset, limit)
}

func (tm *tracing) SetRoundMinParticipants(ctx context.Context, roundID string, n int) (fl.Round, error) {
	ctx, span := tm.tracer.Start(ctx, "set-round-min-participants", trace.WithAttributes(
		attribute.String("round_id", roundID),
		attribute.Int("min_participants", n),
	))
	defer span.End()

	return tm.svc.SetRoundMinParticipants(ctx, roundID, n)
}

func (tm *tracing) SubmitContribution(ctx context.Context, sub coordinator.Submission) (fl.Contribution, error) {
	ctx, span := tm.tracer.Start(ctx, "submit-contribution", trace.WithAttributes(
		attribute.String("round_id", sub.RoundID),
		attribute.String("participant_id", sub.ParticipantID),
		attribute.Int("dimension", len(sub.Delta)),
	))
	defer span.End()

	return tm.svc.SubmitContribution(ctx, sub)
}

func (tm *tracing) ListContributions(ctx context.Context, roundID string) ([]fl.Contribution, error) {
	ctx, span := tm.tracer.Start(ctx, "list-contributions", trace.WithAttributes(
		attribute.String("round_id", roundID),
	))
	defer span.End()

	return tm.svc.ListContributions(ctx, roundID)
}

func (tm *tracing) GetContribution(ctx context.Context, contributionID string) (fl.Contribution, error) {
	ctx, span := tm.tracer.Start(ctx, "get-contribution", trace.WithAttributes(
		attribute.String("contribution_id", contributionID),
	))
	defer span.End()

	return tm.svc.GetContribution(ctx, contributionID)
}

func (tm *tracing) ListContributionsByParticipant(ctx context.Context, walletID string, offset, limit uint64) (fl.ContributionPage, error) {
	ctx, span := tm.tracer.Start(ctx, "list-participant-contributions", trace.WithAttributes(
		attribute.String("participant_id", walletID),
		attribute.Int64("offset", int64(offset)),
		attribute.Int64("limit", int64(limit)),
	))
	defer span.End()

	return tm.svc.ListContributionsByParticipant(ctx, walletID, offset, limit)
}

func (tm *tracing) CompleteRound(ctx context.Context, roundID string) (fl.AggregationResult, error) {
	ctx, span := tm.tracer.Start(ctx, "complete-round", trace.WithAttributes(
		attribute.String("round_id", roundID),
	))
	defer span.End()

	return tm.svc.CompleteRound(ctx, roundID)
}

func (tm *tracing) SweepExpiredRounds(ctx context.Context) (int, error) {
	ctx, span := tm.tracer.Start(ctx, "sweep-expired-rounds")
	defer span.End()

	return tm.svc.SweepExpiredRounds(ctx)
}

func (tm *tracing) OpenDueRounds(ctx context.Context) (int, error) {
	ctx, span := tm.tracer.Start(ctx, "open-due-rounds")
	defer span.End()

	return tm.svc.OpenDueRounds(ctx)
}

func (tm *tracing) RegisterParticipant(ctx context.Context, walletID, displayName string) (fl.Participant, error) {
	ctx, span := tm.tracer.Start(ctx, "register-participant", trace.WithAttributes(
		attribute.String("wallet_id", walletID),
	))
	defer span.End()

	return tm.svc.RegisterParticipant(ctx, walletID, displayName)
}

func (tm *tracing) DeactivateParticipant(ctx context.Context, walletID string) (fl.Participant, error) {
	ctx, span := tm.tracer.Start(ctx, "deactivate-participant", trace.WithAttributes(
		attribute.String("wallet_id", walletID),
	))
	defer span.End()

	return tm.svc.DeactivateParticipant(ctx, walletID)
}

func (tm *tracing) GetParticipant(ctx context.Context, walletID string) (fl.Participant, error) {
	ctx, span := tm.tracer.Start(ctx, "get-participant", trace.WithAttributes(
		attribute.String("wallet_id", walletID),
	))
	defer span.End()

	return tm.svc.GetParticipant(ctx, walletID)
}

func (tm *tracing) ListParticipants(ctx context.Context, offset, limit uint64) (fl.ParticipantPage, error) {
	ctx, span := tm.tracer.Start(ctx, "list-participants", trace.WithAttributes(
		attribute.Int64("offset", int64(offset)),
		attribute.Int64("limit", int64(limit)),
	))
	defer span.End()

	return tm.svc.ListParticipants(ctx, offset, limit)
}

func (tm *tracing) IsActiveParticipant(ctx context.Context, walletID string) (bool, error) {
	ctx, span := tm.tracer.Start(ctx, "is-active-participant", trace.WithAttributes(
		attribute.String("wallet_id", walletID),
	))
	defer span.End()

	return tm.svc.IsActiveParticipant(ctx, walletID)
}

func (tm *tracing) ReportByzantine(ctx context.Context, roundID, walletID, reason string) (fl.Participant, error) {
	ctx, span := tm.tracer.Start(ctx, "report-byzantine", trace.WithAttributes(
		attribute.String("round_id", roundID),
		attribute.String("wallet_id", walletID),
	))
	defer span.End()

	return tm.svc.ReportByzantine(ctx, roundID, walletID, reason)
}

func (tm *tracing) Stats(ctx context.Context) (fl.Stats, error) {
	ctx, span := tm.tracer.Start(ctx, "stats")
	defer span.End()

	return tm.svc.Stats(ctx)
}
