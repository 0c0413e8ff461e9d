package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"time"

	"github.com/0x6flab/namegenerator"
	"github.com/absmach/fedledger/pkg/blob"
	pkgerrors "github.com/absmach/fedledger/pkg/errors"
	"github.com/absmach/fedledger/pkg/fl"
	"github.com/absmach/fedledger/pkg/storage"
	"github.com/absmach/fedledger/pkg/zk"
	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

const (
	defaultKind = "logistic-regression"
	pageSize    = 100

	initialReputation = 1.0
)

type service struct {
	models        storage.ModelRepository
	rounds        storage.RoundRepository
	contributions storage.ContributionRepository
	participants  storage.ParticipantRepository

	verifier   zk.Verifier
	aggregator fl.Aggregator
	blobs      blob.Store
	events     EventSink
	metrics    *Metrics
	logger     *slog.Logger
	cfg        Config
	names      namegenerator.NameGenerator

	modelLocks       *keyedMutex
	roundLocks       *keyedMutex
	participantLocks *keyedMutex
	completions      singleflight.Group

	now func() time.Time
}

type Option func(*service)

// WithClock replaces the wall clock used for deadlines.
func WithClock(now func() time.Time) Option {
	return func(s *service) {
		s.now = now
	}
}

// WithBlobStore keeps weight vectors in a content-addressed store and
// records their CIDs.
func WithBlobStore(store blob.Store) Option {
	return func(s *service) {
		s.blobs = store
	}
}

// WithEvents sets where round lifecycle events go.
func WithEvents(sink EventSink) Option {
	return func(s *service) {
		s.events = sink
	}
}

func WithMetrics(m *Metrics) Option {
	return func(s *service) {
		s.metrics = m
	}
}

func NewService(repos storage.Repositories, verifier zk.Verifier, aggregator fl.Aggregator, cfg Config, logger *slog.Logger, opts ...Option) Service {
	s := &service{
		models:           repos.Models,
		rounds:           repos.Rounds,
		contributions:    repos.Contributions,
		participants:     repos.Participants,
		verifier:         verifier,
		aggregator:       aggregator,
		logger:           logger,
		cfg:              cfg,
		names:            namegenerator.NewGenerator(),
		modelLocks:       newKeyedMutex(),
		roundLocks:       newKeyedMutex(),
		participantLocks: newKeyedMutex(),
		now:              time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.events == nil {
		s.events = discard{}
	}
	if s.metrics == nil {
		s.metrics = NewMetrics(nil)
	}

	return s
}

type discard struct{}

func (discard) Notify(Event) {}

func (s *service) CreateModel(ctx context.Context, disease, kind string, weights []float64) (fl.Model, error) {
	if disease == "" {
		return fl.Model{}, fmt.Errorf("%w: disease is required", pkgerrors.ErrInvalidArgument)
	}
	if !finite(weights...) {
		return fl.Model{}, fmt.Errorf("%w: initial weights must be finite", pkgerrors.ErrInvalidArgument)
	}
	if kind == "" {
		kind = defaultKind
	}

	now := s.clock()
	m := fl.Model{
		ID:        uuid.NewString(),
		Disease:   disease,
		Kind:      kind,
		Weights:   slices.Clone(weights),
		Status:    fl.ModelActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if m.Weights == nil {
		m.Weights = []float64{}
	}
	m.WeightsCID = s.storeWeights(ctx, m.Weights)

	return s.models.Create(ctx, m)
}

func (s *service) GetModel(ctx context.Context, modelID string) (fl.Model, error) {
	return s.models.Get(ctx, modelID)
}

func (s *service) ListModels(ctx context.Context, offset, limit uint64) (fl.ModelPage, error) {
	models, total, err := s.models.List(ctx, offset, limit)
	if err != nil {
		return fl.ModelPage{}, err
	}

	return fl.ModelPage{
		Offset: offset,
		Limit:  limit,
		Total:  total,
		Models: models,
	}, nil
}

func (s *service) PauseModel(ctx context.Context, modelID string) (fl.Model, error) {
	unlock := s.modelLocks.Lock(modelID)
	defer unlock()

	m, err := s.liveModel(ctx, modelID)
	if err != nil {
		return fl.Model{}, err
	}
	if err := s.ensureNoOpenRound(ctx, modelID); err != nil {
		return fl.Model{}, err
	}
	if m.Status == fl.ModelPaused {
		return m, nil
	}

	return s.setModelStatus(ctx, m, fl.ModelPaused)
}

func (s *service) ResumeModel(ctx context.Context, modelID string) (fl.Model, error) {
	unlock := s.modelLocks.Lock(modelID)
	defer unlock()

	m, err := s.liveModel(ctx, modelID)
	if err != nil {
		return fl.Model{}, err
	}
	if m.Status != fl.ModelPaused {
		return m, nil
	}

	return s.setModelStatus(ctx, m, fl.ModelActive)
}

func (s *service) DeleteModel(ctx context.Context, modelID string) error {
	unlock := s.modelLocks.Lock(modelID)
	defer unlock()

	m, err := s.liveModel(ctx, modelID)
	if err != nil {
		return err
	}
	if err := s.ensureNoOpenRound(ctx, modelID); err != nil {
		return err
	}
	_, err = s.setModelStatus(ctx, m, fl.ModelDeleted)

	return err
}

func (s *service) OpenRound(ctx context.Context, modelID string) (fl.Round, error) {
	unlock := s.modelLocks.Lock(modelID)
	defer unlock()

	m, err := s.models.Get(ctx, modelID)
	if err != nil {
		return fl.Round{}, err
	}
	if m.Status != fl.ModelActive {
		return fl.Round{}, fmt.Errorf("%w: model is %s", pkgerrors.ErrConflict, m.Status)
	}

	if err := s.ensureNoOpenRound(ctx, modelID); err != nil {
		return fl.Round{}, err
	}

	now := s.clock()
	r := fl.Round{
		ID:              uuid.NewString(),
		ModelID:         modelID,
		Number:          m.CurrentRound + 1,
		Status:          fl.RoundActive,
		OpenedAt:        now,
		Deadline:        now.Add(s.cfg.RoundTimeout),
		MinParticipants: s.cfg.MinParticipants,
	}
	r, err = s.rounds.Create(ctx, r)
	if err != nil {
		return fl.Round{}, err
	}

	s.metrics.roundsOpened.Inc()
	s.events.Notify(roundEvent(EventStarted, r, r.OpenedAt))

	return r, nil
}

func (s *service) GetRound(ctx context.Context, roundID string) (fl.Round, error) {
	r, err := s.rounds.Get(ctx, roundID)
	if err != nil {
		return fl.Round{}, err
	}

	return s.withMembers(ctx, r)
}

func (s *service) GetActiveRound(ctx context.Context, modelID string) (fl.Round, error) {
	if _, err := s.models.Get(ctx, modelID); err != nil {
		return fl.Round{}, err
	}

	r, err := s.rounds.GetOpen(ctx, modelID)
	if err != nil {
		return fl.Round{}, err
	}
	if r.Status == fl.RoundActive && r.Expired(s.clock()) {
		if _, err := s.expireRound(ctx, r.ID); err != nil {
			return fl.Round{}, err
		}

		return fl.Round{}, fmt.Errorf("%w: no open round", pkgerrors.ErrNotFound)
	}

	return s.withMembers(ctx, r)
}

func (s *service) ListRounds(ctx context.Context, modelID string, offset, limit uint64) (fl.RoundPage, error) {
	rounds, total, err := s.rounds.ListByModel(ctx, modelID, offset, limit)
	if err != nil {
		return fl.RoundPage{}, err
	}

	return fl.RoundPage{
		Offset: offset,
		Limit:  limit,
		Total:  total,
		Rounds: rounds,
	}, nil
}

func (s *service) SetRoundMinParticipants(ctx context.Context, roundID string, n int) (fl.Round, error) {
	if n < 0 {
		return fl.Round{}, fmt.Errorf("%w: minimum participants must not be negative", pkgerrors.ErrInvalidArgument)
	}

	unlock := s.roundLocks.Lock(roundID)
	defer unlock()

	r, err := s.rounds.Get(ctx, roundID)
	if err != nil {
		return fl.Round{}, err
	}
	if r.Status != fl.RoundActive {
		return fl.Round{}, fmt.Errorf("%w: round is %s", pkgerrors.ErrInvalidState, r.Status)
	}

	r.MinParticipants = n
	if err := s.rounds.Update(ctx, r); err != nil {
		return fl.Round{}, err
	}

	return r, nil
}

func (s *service) SubmitContribution(ctx context.Context, sub Submission) (c fl.Contribution, err error) {
	defer func() {
		s.metrics.contributions.WithLabelValues(outcome(err)).Inc()
	}()

	if err := s.authorize(ctx, sub.ParticipantID); err != nil {
		return fl.Contribution{}, err
	}

	unlock := s.roundLocks.Lock(sub.RoundID)
	defer unlock()

	r, err := s.rounds.Get(ctx, sub.RoundID)
	if err != nil {
		return fl.Contribution{}, err
	}
	if r.Status != fl.RoundActive {
		return fl.Contribution{}, fmt.Errorf("%w: round is %s", pkgerrors.ErrInvalidState, r.Status)
	}
	now := s.clock()
	if r.Expired(now) {
		if err := s.timeOut(ctx, r); err != nil {
			return fl.Contribution{}, err
		}

		return fl.Contribution{}, fmt.Errorf("%w: deadline was %s", pkgerrors.ErrExpired, r.Deadline.Format(time.RFC3339))
	}

	if len(sub.Delta) == 0 {
		return fl.Contribution{}, fmt.Errorf("%w: empty weight delta", pkgerrors.ErrMalformedContribution)
	}

	cohort, err := s.contributions.ListByRound(ctx, r.ID)
	if err != nil {
		return fl.Contribution{}, err
	}
	for _, prev := range cohort {
		if prev.ParticipantID == sub.ParticipantID {
			return fl.Contribution{}, pkgerrors.ErrDuplicate
		}
	}

	if err := s.verify(sub); err != nil {
		return fl.Contribution{}, err
	}

	c = fl.Contribution{
		ID:            uuid.NewString(),
		RoundID:       r.ID,
		ParticipantID: sub.ParticipantID,
		Delta:         slices.Clone(sub.Delta),
		Metrics:       sub.Metrics,
		Proof:         sub.Proof,
		SubmittedAt:   now,
	}
	c.DeltaCID = s.storeWeights(ctx, c.Delta)

	for _, sus := range fl.Detect(s.cfg.Detection, append(cohort, c)) {
		if sus.ContributionID == c.ID {
			c.Suspicious = true
			c.SuspicionReasons = sus.Reasons
		}
	}

	if err := s.contributions.Create(ctx, c); err != nil {
		return fl.Contribution{}, err
	}
	if c.Suspicious {
		s.metrics.suspicious.Inc()
		s.logger.WarnContext(ctx, "accepted suspicious contribution",
			slog.String("round_id", r.ID),
			slog.String("participant_id", c.ParticipantID),
			slog.Any("reasons", c.SuspicionReasons),
		)
	}

	s.bumpContributions(ctx, c.ParticipantID)

	return c, nil
}

func (s *service) ListContributions(ctx context.Context, roundID string) ([]fl.Contribution, error) {
	if _, err := s.rounds.Get(ctx, roundID); err != nil {
		return nil, err
	}

	return s.contributions.ListByRound(ctx, roundID)
}

func (s *service) GetContribution(ctx context.Context, contributionID string) (fl.Contribution, error) {
	return s.contributions.Get(ctx, contributionID)
}

func (s *service) ListContributionsByParticipant(ctx context.Context, walletID string, offset, limit uint64) (fl.ContributionPage, error) {
	if _, err := s.participants.Get(ctx, walletID); err != nil {
		return fl.ContributionPage{}, err
	}

	cs, total, err := s.contributions.ListByParticipant(ctx, walletID, offset, limit)
	if err != nil {
		return fl.ContributionPage{}, err
	}

	return fl.ContributionPage{
		Offset:        offset,
		Limit:         limit,
		Total:         total,
		Contributions: cs,
	}, nil
}

func (s *service) Stats(ctx context.Context) (fl.Stats, error) {
	var stats fl.Stats
	var accuracy float64
	for offset := uint64(0); ; offset += pageSize {
		models, total, err := s.models.List(ctx, offset, pageSize)
		if err != nil {
			return fl.Stats{}, err
		}
		for _, m := range models {
			if m.Status != fl.ModelActive {
				continue
			}
			stats.Models++
			accuracy += m.Accuracy
		}
		if offset+pageSize >= total || len(models) == 0 {
			break
		}
	}
	if stats.Models > 0 {
		stats.AverageAccuracy = accuracy / float64(stats.Models)
	}

	contributions, participants, err := s.contributions.Totals(ctx)
	if err != nil {
		return fl.Stats{}, err
	}
	stats.Contributions = contributions
	stats.Participants = participants
	stats.GeneratedAt = s.clock()

	return stats, nil
}

func (s *service) CompleteRound(ctx context.Context, roundID string) (fl.AggregationResult, error) {
	v, err, _ := s.completions.Do(roundID, func() (any, error) {
		return s.completeRound(ctx, roundID)
	})
	if err != nil {
		return fl.AggregationResult{}, err
	}

	return v.(fl.AggregationResult), nil
}

func (s *service) completeRound(ctx context.Context, roundID string) (fl.AggregationResult, error) {
	r, err := s.rounds.Get(ctx, roundID)
	if err != nil {
		return fl.AggregationResult{}, err
	}

	unlockModel := s.modelLocks.Lock(r.ModelID)
	defer unlockModel()
	unlockRound := s.roundLocks.Lock(roundID)
	defer unlockRound()

	if r, err = s.rounds.Get(ctx, roundID); err != nil {
		return fl.AggregationResult{}, err
	}

	switch r.Status {
	case fl.RoundCompleted:
		if r.Result == nil {
			return fl.AggregationResult{}, fmt.Errorf("%w: completed round has no result", pkgerrors.ErrInvalidState)
		}

		return *r.Result, nil
	case fl.RoundActive:
	case fl.RoundTimedOut:
		// A late completion must not reopen a slot that a newer round holds.
		if err := s.ensureNoOpenRound(ctx, r.ModelID); err != nil {
			return fl.AggregationResult{}, err
		}
	default:
		return fl.AggregationResult{}, fmt.Errorf("%w: round is %s", pkgerrors.ErrInvalidState, r.Status)
	}

	m, err := s.models.Get(ctx, r.ModelID)
	if err != nil {
		if errors.Is(err, pkgerrors.ErrNotFound) {
			return fl.AggregationResult{}, fmt.Errorf("%w: model %s is gone", pkgerrors.ErrInvalidState, r.ModelID)
		}

		return fl.AggregationResult{}, err
	}
	if m.Status == fl.ModelDeleted {
		return fl.AggregationResult{}, fmt.Errorf("%w: model is deleted", pkgerrors.ErrInvalidState)
	}
	// A newer round already moved the model past this one.
	if r.Number <= m.CurrentRound {
		return fl.AggregationResult{}, fmt.Errorf("%w: model is already at round %d", pkgerrors.ErrConflict, m.CurrentRound)
	}

	r.Status = fl.RoundAggregating
	if err := s.rounds.Update(ctx, r); err != nil {
		return fl.AggregationResult{}, err
	}

	cs, err := s.contributions.ListByRound(ctx, r.ID)
	if err != nil {
		return fl.AggregationResult{}, s.fail(ctx, r, err)
	}
	if len(cs) == 0 || (r.MinParticipants > 0 && len(cs) < r.MinParticipants) {
		err := fmt.Errorf("%w: %d accepted, %d required", pkgerrors.ErrInsufficientContributions, len(cs), max(r.MinParticipants, 1))

		return fl.AggregationResult{}, s.fail(ctx, r, err)
	}

	flagged := make(map[string]bool)
	for _, c := range cs {
		if c.Suspicious {
			flagged[c.ParticipantID] = true
		}
	}
	for _, sus := range fl.Detect(s.cfg.Detection, cs) {
		flagged[sus.ParticipantID] = true
	}

	usable := cs
	var prefiltered []string
	if s.cfg.Detection.PreFilter && len(flagged) > 0 {
		usable = make([]fl.Contribution, 0, len(cs))
		for _, c := range cs {
			if flagged[c.ParticipantID] {
				prefiltered = append(prefiltered, c.ParticipantID)

				continue
			}
			usable = append(usable, c)
		}
		if len(usable) == 0 {
			err := fmt.Errorf("%w: every contribution was flagged", pkgerrors.ErrInsufficientContributions)

			return fl.AggregationResult{}, s.fail(ctx, r, err)
		}
	}

	begin := time.Now()
	result, err := s.aggregator.Aggregate(m.Weights, usable)
	s.metrics.aggregation.Observe(time.Since(begin).Seconds())
	if err != nil {
		return fl.AggregationResult{}, s.fail(ctx, r, err)
	}

	now := s.clock()
	result.RoundID = r.ID
	result.CompletedAt = now
	result.ExcludedParticipantIDs = append(result.ExcludedParticipantIDs, prefiltered...)
	slices.Sort(result.ExcludedParticipantIDs)
	result.WeightsCID = s.storeWeights(ctx, result.Weights)

	m.Weights = result.Weights
	m.WeightsCID = result.WeightsCID
	m.CurrentRound++
	m.Accuracy = result.Accuracy
	m.Loss = result.Loss
	m.UpdatedAt = now
	if err := s.models.Update(ctx, m); err != nil {
		return fl.AggregationResult{}, s.fail(ctx, r, err)
	}

	r.Status = fl.RoundCompleted
	r.ClosedAt = now
	r.Result = &result
	if err := s.rounds.Update(ctx, r); err != nil {
		s.logger.ErrorContext(ctx, "model updated but round could not be marked completed",
			slog.String("round_id", r.ID),
			slog.String("model_id", m.ID),
			slog.Any("error", err),
		)

		return fl.AggregationResult{}, err
	}

	penalised := slices.Clone(result.ExcludedParticipantIDs)
	for id := range flagged {
		penalised = append(penalised, id)
	}
	slices.Sort(penalised)
	for _, id := range slices.Compact(penalised) {
		s.penalise(ctx, id)
	}

	s.metrics.roundsClosed.WithLabelValues(string(fl.RoundCompleted)).Inc()
	s.events.Notify(roundEvent(EventCompleted, r, r.ClosedAt))

	return result, nil
}

func (s *service) SweepExpiredRounds(ctx context.Context) (int, error) {
	active, err := s.rounds.ListByStatus(ctx, fl.RoundActive)
	if err != nil {
		return 0, err
	}

	now := s.clock()
	swept := 0
	for _, r := range active {
		if !r.Expired(now) {
			continue
		}
		moved, err := s.expireRound(ctx, r.ID)
		if err != nil {
			return swept, err
		}
		if moved {
			swept++
		}
	}

	return swept, nil
}

func (s *service) OpenDueRounds(ctx context.Context) (int, error) {
	opened := 0
	for offset := uint64(0); ; offset += pageSize {
		models, total, err := s.models.List(ctx, offset, pageSize)
		if err != nil {
			return opened, err
		}
		for _, m := range models {
			if m.Status != fl.ModelActive {
				continue
			}
			_, err := s.OpenRound(ctx, m.ID)
			switch {
			case err == nil:
				opened++
			case errors.Is(err, pkgerrors.ErrConflict):
			default:
				return opened, err
			}
		}
		if offset+pageSize >= total || len(models) == 0 {
			return opened, nil
		}
	}
}

func (s *service) RegisterParticipant(ctx context.Context, walletID, displayName string) (fl.Participant, error) {
	if walletID == "" {
		return fl.Participant{}, fmt.Errorf("%w: wallet id is required", pkgerrors.ErrInvalidArgument)
	}

	unlock := s.participantLocks.Lock(walletID)
	defer unlock()

	now := s.clock()
	p, err := s.participants.Get(ctx, walletID)
	switch {
	case err == nil:
		if displayName == "" || displayName == p.DisplayName {
			return p, nil
		}
		p.DisplayName = displayName
		p.UpdatedAt = now
		if err := s.participants.Update(ctx, p); err != nil {
			return fl.Participant{}, err
		}

		return p, nil
	case errors.Is(err, pkgerrors.ErrNotFound):
	default:
		return fl.Participant{}, err
	}

	if displayName == "" {
		displayName = s.names.Generate()
	}
	p = fl.Participant{
		WalletID:     walletID,
		DisplayName:  displayName,
		Active:       true,
		Reputation:   initialReputation,
		RegisteredAt: now,
		UpdatedAt:    now,
	}
	if err := s.participants.Create(ctx, p); err != nil {
		return fl.Participant{}, err
	}

	return p, nil
}

func (s *service) DeactivateParticipant(ctx context.Context, walletID string) (fl.Participant, error) {
	unlock := s.participantLocks.Lock(walletID)
	defer unlock()

	p, err := s.participants.Get(ctx, walletID)
	if err != nil {
		return fl.Participant{}, err
	}
	if !p.Active {
		return p, nil
	}
	p.Active = false
	p.UpdatedAt = s.clock()
	if err := s.participants.Update(ctx, p); err != nil {
		return fl.Participant{}, err
	}

	return p, nil
}

func (s *service) GetParticipant(ctx context.Context, walletID string) (fl.Participant, error) {
	return s.participants.Get(ctx, walletID)
}

func (s *service) ListParticipants(ctx context.Context, offset, limit uint64) (fl.ParticipantPage, error) {
	ps, total, err := s.participants.List(ctx, offset, limit)
	if err != nil {
		return fl.ParticipantPage{}, err
	}

	return fl.ParticipantPage{
		Offset:       offset,
		Limit:        limit,
		Total:        total,
		Participants: ps,
	}, nil
}

func (s *service) IsActiveParticipant(ctx context.Context, walletID string) (bool, error) {
	p, err := s.participants.Get(ctx, walletID)
	switch {
	case err == nil:
		return p.Active, nil
	case errors.Is(err, pkgerrors.ErrNotFound):
		return false, nil
	default:
		return false, err
	}
}

func (s *service) ReportByzantine(ctx context.Context, roundID, walletID, reason string) (fl.Participant, error) {
	if reason == "" {
		return fl.Participant{}, fmt.Errorf("%w: reason is required", pkgerrors.ErrInvalidArgument)
	}

	r, err := s.rounds.Get(ctx, roundID)
	if err != nil {
		return fl.Participant{}, err
	}
	cs, err := s.contributions.ListByRound(ctx, roundID)
	if err != nil {
		return fl.Participant{}, err
	}
	if !slices.ContainsFunc(cs, func(c fl.Contribution) bool { return c.ParticipantID == walletID }) {
		return fl.Participant{}, fmt.Errorf("%w: %s did not contribute to round %s", pkgerrors.ErrNotFound, walletID, roundID)
	}

	p, err := s.penalise(ctx, walletID)
	if err != nil {
		return fl.Participant{}, err
	}

	ev := roundEvent(EventByzantine, r, s.clock())
	ev.ParticipantID = walletID
	ev.Reason = reason
	s.events.Notify(ev)

	return p, nil
}

func (s *service) authorize(ctx context.Context, walletID string) error {
	p, err := s.participants.Get(ctx, walletID)
	switch {
	case err == nil:
		if !p.Active {
			return fmt.Errorf("%w: %s is deactivated", pkgerrors.ErrUnauthorizedParticipant, walletID)
		}

		return nil
	case errors.Is(err, pkgerrors.ErrNotFound):
		return fmt.Errorf("%w: %s is not registered", pkgerrors.ErrUnauthorizedParticipant, walletID)
	default:
		return err
	}
}

// verify checks that the proof is bound to what was received and then asks
// the verifier. Verifier failures are never read as acceptance.
func (s *service) verify(sub Submission) error {
	expected, err := zk.Inputs(sub.Delta, sub.RoundID, sub.ParticipantID, sub.Proof.Salt)
	if err != nil {
		return errors.Join(pkgerrors.ErrVerifierUnavailable, err)
	}
	if err := zk.Match(sub.Proof.PublicInputs, expected); err != nil {
		return fmt.Errorf("%w: %w", pkgerrors.ErrInvalidProof, err)
	}

	ok, err := s.verifier.Verify(sub.Proof, expected)
	if err != nil {
		return errors.Join(pkgerrors.ErrVerifierUnavailable, err)
	}
	if !ok {
		return fmt.Errorf("%w: proof rejected", pkgerrors.ErrInvalidProof)
	}

	return nil
}

// expireRound times out an overdue active round under its lock. It reports
// whether this call made the transition.
func (s *service) expireRound(ctx context.Context, roundID string) (bool, error) {
	unlock := s.roundLocks.Lock(roundID)
	defer unlock()

	r, err := s.rounds.Get(ctx, roundID)
	if err != nil {
		return false, err
	}
	if r.Status != fl.RoundActive || !r.Expired(s.clock()) {
		return false, nil
	}

	return true, s.timeOut(ctx, r)
}

// timeOut must be called with the round lock held.
func (s *service) timeOut(ctx context.Context, r fl.Round) error {
	r.Status = fl.RoundTimedOut
	r.ClosedAt = s.clock()
	if err := s.rounds.Update(ctx, r); err != nil {
		return err
	}

	s.metrics.roundsClosed.WithLabelValues(string(fl.RoundTimedOut)).Inc()
	s.events.Notify(roundEvent(EventTimedOut, r, r.ClosedAt))

	return nil
}

// fail marks the round failed and returns cause, or the persistence error
// when the transition could not be stored.
func (s *service) fail(ctx context.Context, r fl.Round, cause error) error {
	r.Status = fl.RoundFailed
	r.ClosedAt = s.clock()
	if err := s.rounds.Update(ctx, r); err != nil {
		return errors.Join(cause, err)
	}

	s.metrics.roundsClosed.WithLabelValues(string(fl.RoundFailed)).Inc()
	ev := roundEvent(EventFailed, r, r.ClosedAt)
	ev.Reason = cause.Error()
	s.events.Notify(ev)

	return cause
}

func (s *service) ensureNoOpenRound(ctx context.Context, modelID string) error {
	open, err := s.rounds.GetOpen(ctx, modelID)
	switch {
	case err == nil:
		if open.Status == fl.RoundActive && open.Expired(s.clock()) {
			moved, err := s.expireRound(ctx, open.ID)
			if err != nil {
				return err
			}
			if moved {
				return nil
			}
		}

		return fmt.Errorf("%w: round %s is %s", pkgerrors.ErrConflict, open.ID, open.Status)
	case errors.Is(err, pkgerrors.ErrNotFound):
		return nil
	default:
		return err
	}
}

func (s *service) liveModel(ctx context.Context, modelID string) (fl.Model, error) {
	m, err := s.models.Get(ctx, modelID)
	if err != nil {
		return fl.Model{}, err
	}
	if m.Status == fl.ModelDeleted {
		return fl.Model{}, fmt.Errorf("%w: model %s is deleted", pkgerrors.ErrNotFound, modelID)
	}

	return m, nil
}

func (s *service) setModelStatus(ctx context.Context, m fl.Model, status fl.ModelStatus) (fl.Model, error) {
	m.Status = status
	m.UpdatedAt = s.clock()
	if err := s.models.Update(ctx, m); err != nil {
		return fl.Model{}, err
	}

	return m, nil
}

func (s *service) withMembers(ctx context.Context, r fl.Round) (fl.Round, error) {
	cs, err := s.contributions.ListByRound(ctx, r.ID)
	if err != nil {
		return fl.Round{}, err
	}
	r.ContributionIDs = make([]string, len(cs))
	for i, c := range cs {
		r.ContributionIDs[i] = c.ID
	}

	return r, nil
}

// storeWeights returns the CID of the stored vector, or "" when there is no
// blob store or the write failed.
func (s *service) storeWeights(ctx context.Context, weights []float64) string {
	if s.blobs == nil {
		return ""
	}
	cid, err := blob.PutWeights(ctx, s.blobs, weights)
	if err != nil {
		s.logger.WarnContext(ctx, "failed to store weights", slog.Any("error", err))

		return ""
	}

	return cid
}

func (s *service) bumpContributions(ctx context.Context, walletID string) {
	unlock := s.participantLocks.Lock(walletID)
	defer unlock()

	p, err := s.participants.Get(ctx, walletID)
	if err == nil {
		p.Contributions++
		p.UpdatedAt = s.clock()
		err = s.participants.Update(ctx, p)
	}
	if err != nil {
		s.logger.WarnContext(ctx, "failed to count contribution",
			slog.String("participant_id", walletID),
			slog.Any("error", err),
		)
	}
}

func (s *service) penalise(ctx context.Context, walletID string) (fl.Participant, error) {
	unlock := s.participantLocks.Lock(walletID)
	defer unlock()

	p, err := s.participants.Get(ctx, walletID)
	if err == nil {
		p.Reputation = math.Max(0, p.Reputation-s.cfg.ReputationPenalty)
		p.UpdatedAt = s.clock()
		err = s.participants.Update(ctx, p)
	}
	if err != nil {
		s.logger.WarnContext(ctx, "failed to lower reputation",
			slog.String("participant_id", walletID),
			slog.Any("error", err),
		)

		return fl.Participant{}, err
	}

	return p, nil
}

func (s *service) clock() time.Time {
	return s.now().UTC()
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "accepted"
	case errors.Is(err, pkgerrors.ErrDuplicate):
		return "duplicate"
	case errors.Is(err, pkgerrors.ErrInvalidProof):
		return "invalid_proof"
	case errors.Is(err, pkgerrors.ErrExpired):
		return "expired"
	case errors.Is(err, pkgerrors.ErrUnauthorizedParticipant):
		return "unauthorized"
	default:
		return "rejected"
	}
}

func finite(vals ...float64) bool {
	for _, v := range vals {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}

	return true
}
