package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/absmach/fedledger/coordinator"
	"github.com/absmach/fedledger/pkg/fl"
)

var _ coordinator.Service = (*loggingMiddleware)(nil)

type loggingMiddleware struct {
	logger *slog.Logger
	svc    coordinator.Service
}

func Logging(logger *slog.Logger, svc coordinator.Service) coordinator.Service {
	return &loggingMiddleware{
		logger: logger,
		svc:    svc,
	}
}

func (lm *loggingMiddleware) CreateModel(ctx context.Context, disease, kind string, weights []float64) (m fl.Model, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Group("model",
				slog.String("id", m.ID),
				slog.String("disease", disease),
				slog.String("kind", kind),
				slog.Int("dimension", len(weights)),
			),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Create model failed", args...)

			return
		}
		lm.logger.Info("Create model completed successfully", args...)
	}(time.Now())

	return lm.svc.CreateModel(ctx, disease, kind, weights)
}

func (lm *loggingMiddleware) GetModel(ctx context.Context, modelID string) (m fl.Model, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Group("model",
				slog.String("id", modelID),
			),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Get model failed", args...)

			return
		}
		lm.logger.Info("Get model completed successfully", args...)
	}(time.Now())

	return lm.svc.GetModel(ctx, modelID)
}

func (lm *loggingMiddleware) ListModels(ctx context.Context, offset, limit uint64) (page fl.ModelPage, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Uint64("offset", offset),
			slog.Uint64("limit", limit),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("List models failed", args...)

			return
		}
		lm.logger.Info("List models completed successfully", args...)
	}(time.Now())

	return lm.svc.ListModels(ctx, offset, limit)
}

func (lm *loggingMiddleware) PauseModel(ctx context.Context, modelID string) (m fl.Model, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Group("model",
				slog.String("id", modelID),
			),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Pause model failed", args...)

			return
		}
		lm.logger.Info("Pause model completed successfully", args...)
	}(time.Now())

	return lm.svc.PauseModel(ctx, modelID)
}

func (lm *loggingMiddleware) ResumeModel(ctx context.Context, modelID string) (m fl.Model, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Group("model",
				slog.String("id", modelID),
			),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Resume model failed", args...)

			return
		}
		lm.logger.Info("Resume model completed successfully", args...)
	}(time.Now())

	return lm.svc.ResumeModel(ctx, modelID)
}

func (lm *loggingMiddleware) DeleteModel(ctx context.Context, modelID string) (err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Group("model",
				slog.String("id", modelID),
			),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Delete model failed", args...)

			return
		}
		lm.logger.Info("Delete model completed successfully", args...)
	}(time.Now())

	return lm.svc.DeleteModel(ctx, modelID)
}

func (lm *loggingMiddleware) OpenRound(ctx context.Context, modelID string) (r fl.Round, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Group("round",
				slog.String("id", r.ID),
				slog.String("model_id", modelID),
				slog.Uint64("number", r.Number),
			),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Open round failed", args...)

			return
		}
		lm.logger.Info("Open round completed successfully", args...)
	}(time.Now())

	return lm.svc.OpenRound(ctx, modelID)
}

func (lm *loggingMiddleware) GetRound(ctx context.Context, roundID string) (r fl.Round, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Group("round",
				slog.String("id", roundID),
			),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Get round failed", args...)

			return
		}
		lm.logger.Info("Get round completed successfully", args...)
	}(time.Now())

	return lm.svc.GetRound(ctx, roundID)
}

func (lm *loggingMiddleware) GetActiveRound(ctx context.Context, modelID string) (r fl.Round, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Group("round",
				slog.String("id", r.ID),
				slog.String("model_id", modelID),
			),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Get active round failed", args...)

			return
		}
		lm.logger.Info("Get active round completed successfully", args...)
	}(time.Now())

	return lm.svc.GetActiveRound(ctx, modelID)
}

func (lm *loggingMiddleware) ListRounds(ctx context.Context, modelID string, offset, limit uint64) (page fl.RoundPage, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.String("model_id", modelID),
			slog.Uint64("offset", offset),
			slog.Uint64("limit", limit),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("List rounds failed", args...)

			return
		}
		lm.logger.Info("List rounds completed successfully", args...)
	}(time.Now())

	return lm.svc.ListRounds(ctx, modelID, offset, limit)
}

func (lm *loggingMiddleware) SetRoundMinParticipants(ctx context.Context, roundID string, n int) (r fl.Round, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Group("round",
				slog.String("id", roundID),
				slog.Int("min_participants", n),
			),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Set round minimum participants failed", args...)

			return
		}
		lm.logger.Info("Set round minimum participants completed successfully", args...)
	}(time.Now())

	return lm.svc.SetRoundMinParticipants(ctx, roundID, n)
}

func (lm *loggingMiddleware) SubmitContribution(ctx context.Context, sub coordinator.Submission) (c fl.Contribution, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Group("contribution",
				slog.String("id", c.ID),
				slog.String("round_id", sub.RoundID),
				slog.String("participant_id", sub.ParticipantID),
				slog.Int64("samples_trained", sub.Metrics.SamplesTrained),
				slog.Bool("suspicious", c.Suspicious),
			),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Submit contribution failed", args...)

			return
		}
		lm.logger.Info("Submit contribution completed successfully", args...)
	}(time.Now())

	return lm.svc.SubmitContribution(ctx, sub)
}

func (lm *loggingMiddleware) ListContributions(ctx context.Context, roundID string) (cs []fl.Contribution, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.String("round_id", roundID),
			slog.Int("count", len(cs)),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("List contributions failed", args...)

			return
		}
		lm.logger.Info("List contributions completed successfully", args...)
	}(time.Now())

	return lm.svc.ListContributions(ctx, roundID)
}

func (lm *loggingMiddleware) GetContribution(ctx context.Context, contributionID string) (c fl.Contribution, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.String("contribution_id", contributionID),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Get contribution failed", args...)

			return
		}
		lm.logger.Info("Get contribution completed successfully", args...)
	}(time.Now())

	return lm.svc.GetContribution(ctx, contributionID)
}

func (lm *loggingMiddleware) ListContributionsByParticipant(ctx context.Context, walletID string, offset, limit uint64) (page fl.ContributionPage, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.String("participant_id", walletID),
			slog.Uint64("offset", offset),
			slog.Uint64("limit", limit),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("List participant contributions failed", args...)

			return
		}
		lm.logger.Info("List participant contributions completed successfully", args...)
	}(time.Now())

	return lm.svc.ListContributionsByParticipant(ctx, walletID, offset, limit)
}

func (lm *loggingMiddleware) CompleteRound(ctx context.Context, roundID string) (res fl.AggregationResult, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Group("round",
				slog.String("id", roundID),
				slog.String("strategy", res.Strategy),
				slog.Int("participants", res.ParticipantCount),
				slog.Any("excluded", res.ExcludedParticipantIDs),
				slog.Float64("accuracy", res.Accuracy),
			),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Complete round failed", args...)

			return
		}
		lm.logger.Info("Complete round completed successfully", args...)
	}(time.Now())

	return lm.svc.CompleteRound(ctx, roundID)
}

func (lm *loggingMiddleware) SweepExpiredRounds(ctx context.Context) (n int, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Int("swept", n),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Sweep expired rounds failed", args...)

			return
		}
		lm.logger.Debug("Sweep expired rounds completed successfully", args...)
	}(time.Now())

	return lm.svc.SweepExpiredRounds(ctx)
}

func (lm *loggingMiddleware) OpenDueRounds(ctx context.Context) (n int, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Int("opened", n),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Open due rounds failed", args...)

			return
		}
		lm.logger.Info("Open due rounds completed successfully", args...)
	}(time.Now())

	return lm.svc.OpenDueRounds(ctx)
}

func (lm *loggingMiddleware) RegisterParticipant(ctx context.Context, walletID, displayName string) (p fl.Participant, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Group("participant",
				slog.String("wallet_id", walletID),
				slog.String("display_name", p.DisplayName),
			),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Register participant failed", args...)

			return
		}
		lm.logger.Info("Register participant completed successfully", args...)
	}(time.Now())

	return lm.svc.RegisterParticipant(ctx, walletID, displayName)
}

func (lm *loggingMiddleware) DeactivateParticipant(ctx context.Context, walletID string) (p fl.Participant, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Group("participant",
				slog.String("wallet_id", walletID),
			),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Deactivate participant failed", args...)

			return
		}
		lm.logger.Info("Deactivate participant completed successfully", args...)
	}(time.Now())

	return lm.svc.DeactivateParticipant(ctx, walletID)
}

func (lm *loggingMiddleware) GetParticipant(ctx context.Context, walletID string) (p fl.Participant, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Group("participant",
				slog.String("wallet_id", walletID),
			),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Get participant failed", args...)

			return
		}
		lm.logger.Info("Get participant completed successfully", args...)
	}(time.Now())

	return lm.svc.GetParticipant(ctx, walletID)
}

func (lm *loggingMiddleware) ListParticipants(ctx context.Context, offset, limit uint64) (page fl.ParticipantPage, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Uint64("offset", offset),
			slog.Uint64("limit", limit),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("List participants failed", args...)

			return
		}
		lm.logger.Info("List participants completed successfully", args...)
	}(time.Now())

	return lm.svc.ListParticipants(ctx, offset, limit)
}

func (lm *loggingMiddleware) IsActiveParticipant(ctx context.Context, walletID string) (ok bool, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.String("wallet_id", walletID),
			slog.Bool("active", ok),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Check participant failed", args...)

			return
		}
		lm.logger.Debug("Check participant completed successfully", args...)
	}(time.Now())

	return lm.svc.IsActiveParticipant(ctx, walletID)
}

func (lm *loggingMiddleware) ReportByzantine(ctx context.Context, roundID, walletID, reason string) (p fl.Participant, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.String("round_id", roundID),
			slog.Group("participant",
				slog.String("wallet_id", walletID),
				slog.Float64("reputation", p.Reputation),
			),
			slog.String("reason", reason),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Report byzantine participant failed", args...)

			return
		}
		lm.logger.Info("Report byzantine participant completed successfully", args...)
	}(time.Now())

	return lm.svc.ReportByzantine(ctx, roundID, walletID, reason)
}

func (lm *loggingMiddleware) Stats(ctx context.Context) (stats fl.Stats, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Stats failed", args...)

			return
		}
		lm.logger.Info("Stats completed successfully", args...)
	}(time.Now())

	return lm.svc.Stats(ctx)
}
