package coordinator_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/absmach/fedledger/coordinator"
	"github.com/absmach/fedledger/pkg/blob"
	pkgerrors "github.com/absmach/fedledger/pkg/errors"
	"github.com/absmach/fedledger/pkg/fl"
	"github.com/absmach/fedledger/pkg/storage"
	"github.com/absmach/fedledger/pkg/zk"
	"github.com/absmach/fedledger/pkg/zk/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var logger = slog.New(slog.NewTextHandler(io.Discard, nil))

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recordingSink struct {
	mu     sync.Mutex
	events []coordinator.Event
}

func (r *recordingSink) Notify(ev coordinator.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recordingSink) types() []coordinator.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]coordinator.EventType, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Type
	}

	return out
}

type testEnv struct {
	svc   coordinator.Service
	repos *storage.Repositories
	clock *fakeClock
	sink  *recordingSink
}

func setup(t *testing.T, cfg coordinator.Config, verifier zk.Verifier, opts ...coordinator.Option) testEnv {
	t.Helper()

	if verifier == nil {
		verifier = zk.DigestVerifier{}
	}
	agg, err := fl.NewAggregator(cfg.Aggregation, logger)
	require.NoError(t, err)

	env := testEnv{
		repos: storage.NewMemoryRepositories(),
		clock: newFakeClock(),
		sink:  &recordingSink{},
	}
	opts = append([]coordinator.Option{
		coordinator.WithClock(env.clock.Now),
		coordinator.WithEvents(env.sink),
	}, opts...)
	env.svc = coordinator.NewService(*env.repos, verifier, agg, cfg, logger, opts...)

	return env
}

func submission(t *testing.T, roundID, participantID string, delta []float64, samples int64, acc, loss float64) coordinator.Submission {
	t.Helper()

	proof, err := zk.DigestProof(delta, roundID, participantID, []byte("salt-"+participantID))
	require.NoError(t, err)

	return coordinator.Submission{
		RoundID:       roundID,
		ParticipantID: participantID,
		Delta:         delta,
		Metrics:       fl.Metrics{Accuracy: acc, Loss: loss, SamplesTrained: samples},
		Proof:         proof,
	}
}

func register(t *testing.T, svc coordinator.Service, ids ...string) {
	t.Helper()
	for _, id := range ids {
		_, err := svc.RegisterParticipant(context.Background(), id, "")
		require.NoError(t, err)
	}
}

func TestDiabetesRound(t *testing.T) {
	ctx := context.Background()
	env := setup(t, coordinator.DefaultConfig(), nil)
	svc := env.svc

	m, err := svc.CreateModel(ctx, "diabetes", "", []float64{0, 0, 0})
	require.NoError(t, err)
	assert.Equal(t, "logistic-regression", m.Kind)

	r, err := svc.OpenRound(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), r.Number)
	assert.Equal(t, fl.RoundActive, r.Status)

	participants := []string{"wallet-a", "wallet-b", "wallet-c"}
	register(t, svc, participants...)

	samples := []int64{100, 150, 50}
	accuracy := []float64{0.80, 0.85, 0.60}
	loss := []float64{0.40, 0.35, 0.60}
	for i, p := range participants {
		_, err := svc.SubmitContribution(ctx, submission(t, r.ID, p, []float64{0.1, 0.2, 0.3}, samples[i], accuracy[i], loss[i]))
		require.NoError(t, err, fmt.Sprintf("submission by %s", p))
	}

	_, err = svc.SubmitContribution(ctx, submission(t, r.ID, "wallet-b", []float64{0.1, 0.2, 0.3}, 10, 0.5, 0.5))
	assert.ErrorIs(t, err, pkgerrors.ErrDuplicate)

	cs, err := svc.ListContributions(ctx, r.ID)
	require.NoError(t, err)
	assert.Len(t, cs, 3)

	res, err := svc.CompleteRound(ctx, r.ID)
	require.NoError(t, err)
	assert.InDelta(t, 0.7917, res.Accuracy, 1e-4)
	assert.Equal(t, 3, res.ParticipantCount)
	assert.Equal(t, int64(300), res.TotalSamples)
	assert.InDeltaSlice(t, []float64{0.1, 0.2, 0.3}, res.Weights, 1e-12)

	again, err := svc.CompleteRound(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, res, again)

	m, err = svc.GetModel(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), m.CurrentRound)
	assert.InDelta(t, 0.7917, m.Accuracy, 1e-4)
	assert.Equal(t, res.Weights, m.Weights)

	got, err := svc.GetRound(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, fl.RoundCompleted, got.Status)
	assert.Len(t, got.ContributionIDs, 3)

	p, err := svc.GetParticipant(ctx, "wallet-a")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), p.Contributions)

	assert.Equal(t, []coordinator.EventType{coordinator.EventStarted, coordinator.EventCompleted}, env.sink.types())

	next, err := svc.OpenRound(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), next.Number)
}

func TestOpenRoundConcurrently(t *testing.T) {
	ctx := context.Background()
	env := setup(t, coordinator.DefaultConfig(), nil)

	m, err := env.svc.CreateModel(ctx, "diabetes", "", nil)
	require.NoError(t, err)

	const callers = 16
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		opened    int
		conflicts int
	)
	for range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.svc.OpenRound(ctx, m.ID)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				opened++
			case errors.Is(err, pkgerrors.ErrConflict):
				conflicts++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, opened)
	assert.Equal(t, callers-1, conflicts)
}

func TestSubmitContributionConcurrently(t *testing.T) {
	ctx := context.Background()
	const callers = 8

	t.Run("same participant", func(t *testing.T) {
		env := setup(t, coordinator.DefaultConfig(), nil)
		m, err := env.svc.CreateModel(ctx, "diabetes", "", nil)
		require.NoError(t, err)
		r, err := env.svc.OpenRound(ctx, m.ID)
		require.NoError(t, err)
		register(t, env.svc, "wallet-a")

		var (
			wg         sync.WaitGroup
			mu         sync.Mutex
			accepted   int
			duplicates int
		)
		for range callers {
			sub := submission(t, r.ID, "wallet-a", []float64{0.1, 0.2}, 10, 0.7, 0.3)
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := env.svc.SubmitContribution(ctx, sub)
				mu.Lock()
				defer mu.Unlock()
				switch {
				case err == nil:
					accepted++
				case errors.Is(err, pkgerrors.ErrDuplicate):
					duplicates++
				}
			}()
		}
		wg.Wait()

		assert.Equal(t, 1, accepted)
		assert.Equal(t, callers-1, duplicates)

		cs, err := env.svc.ListContributions(ctx, r.ID)
		require.NoError(t, err)
		assert.Len(t, cs, 1)

		p, err := env.svc.GetParticipant(ctx, "wallet-a")
		require.NoError(t, err)
		assert.Equal(t, uint64(1), p.Contributions)
	})

	t.Run("different participants", func(t *testing.T) {
		env := setup(t, coordinator.DefaultConfig(), nil)
		m, err := env.svc.CreateModel(ctx, "diabetes", "", nil)
		require.NoError(t, err)
		r, err := env.svc.OpenRound(ctx, m.ID)
		require.NoError(t, err)

		subs := make([]coordinator.Submission, callers)
		for i := range subs {
			wallet := fmt.Sprintf("wallet-%d", i)
			register(t, env.svc, wallet)
			subs[i] = submission(t, r.ID, wallet, []float64{0.1, 0.2}, 10, 0.7, 0.3)
		}

		errs := make([]error, callers)
		var wg sync.WaitGroup
		for i, sub := range subs {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, errs[i] = env.svc.SubmitContribution(ctx, sub)
			}()
		}
		wg.Wait()

		for i, err := range errs {
			assert.NoError(t, err, fmt.Sprintf("submission by wallet-%d", i))
		}
		cs, err := env.svc.ListContributions(ctx, r.ID)
		require.NoError(t, err)
		assert.Len(t, cs, callers)

		got, err := env.svc.GetRound(ctx, r.ID)
		require.NoError(t, err)
		assert.Len(t, got.ContributionIDs, callers)
	})
}

func TestOpenRound(t *testing.T) {
	ctx := context.Background()
	env := setup(t, coordinator.DefaultConfig(), nil)
	svc := env.svc

	active, err := svc.CreateModel(ctx, "diabetes", "", nil)
	require.NoError(t, err)
	paused, err := svc.CreateModel(ctx, "heart", "", nil)
	require.NoError(t, err)
	_, err = svc.PauseModel(ctx, paused.ID)
	require.NoError(t, err)
	deleted, err := svc.CreateModel(ctx, "kidney", "", nil)
	require.NoError(t, err)
	require.NoError(t, svc.DeleteModel(ctx, deleted.ID))

	cases := []struct {
		desc    string
		modelID string
		err     error
	}{
		{desc: "open round on active model", modelID: active.ID},
		{desc: "open second round on the same model", modelID: active.ID, err: pkgerrors.ErrConflict},
		{desc: "open round on paused model", modelID: paused.ID, err: pkgerrors.ErrConflict},
		{desc: "open round on deleted model", modelID: deleted.ID, err: pkgerrors.ErrConflict},
		{desc: "open round on unknown model", modelID: "unknown", err: pkgerrors.ErrNotFound},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			_, err := svc.OpenRound(ctx, tc.modelID)
			if tc.err == nil {
				assert.NoError(t, err)

				return
			}
			assert.ErrorIs(t, err, tc.err)
		})
	}
}

func TestLateSubmission(t *testing.T) {
	ctx := context.Background()
	cfg := coordinator.DefaultConfig()
	cfg.RoundTimeout = time.Minute
	env := setup(t, cfg, nil)
	svc := env.svc

	m, err := svc.CreateModel(ctx, "diabetes", "", nil)
	require.NoError(t, err)
	r, err := svc.OpenRound(ctx, m.ID)
	require.NoError(t, err)
	register(t, svc, "wallet-a", "wallet-b")

	_, err = svc.SubmitContribution(ctx, submission(t, r.ID, "wallet-a", []float64{1, 2}, 10, 0.7, 0.3))
	require.NoError(t, err)

	env.clock.Advance(2 * time.Minute)

	_, err = svc.SubmitContribution(ctx, submission(t, r.ID, "wallet-b", []float64{1, 2}, 10, 0.7, 0.3))
	assert.ErrorIs(t, err, pkgerrors.ErrExpired)

	got, err := svc.GetRound(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, fl.RoundTimedOut, got.Status)

	_, err = svc.SubmitContribution(ctx, submission(t, r.ID, "wallet-b", []float64{1, 2}, 10, 0.7, 0.3))
	assert.ErrorIs(t, err, pkgerrors.ErrInvalidState)

	assert.Contains(t, env.sink.types(), coordinator.EventTimedOut)

	// The timed-out round can still be aggregated while no newer round is open.
	res, err := svc.CompleteRound(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, res.ParticipantCount)
}

func TestCompleteTimedOutRoundWithNewerRoundOpen(t *testing.T) {
	ctx := context.Background()
	cfg := coordinator.DefaultConfig()
	cfg.RoundTimeout = time.Minute
	env := setup(t, cfg, nil)
	svc := env.svc

	m, err := svc.CreateModel(ctx, "diabetes", "", nil)
	require.NoError(t, err)
	first, err := svc.OpenRound(ctx, m.ID)
	require.NoError(t, err)

	env.clock.Advance(2 * time.Minute)

	second, err := svc.OpenRound(ctx, m.ID)
	require.NoError(t, err, "an overdue round does not block the next one")
	assert.Equal(t, first.Number, second.Number)

	_, err = svc.CompleteRound(ctx, first.ID)
	assert.ErrorIs(t, err, pkgerrors.ErrConflict)

	page, err := svc.ListRounds(ctx, m.ID, 0, 10)
	require.NoError(t, err)
	require.Len(t, page.Rounds, 2)
	assert.Equal(t, second.ID, page.Rounds[0].ID)
	assert.Equal(t, fl.RoundTimedOut, page.Rounds[1].Status)
}

func TestCompleteTimedOutRoundAfterNewerRoundCompleted(t *testing.T) {
	ctx := context.Background()
	cfg := coordinator.DefaultConfig()
	cfg.RoundTimeout = time.Minute
	env := setup(t, cfg, nil)
	svc := env.svc

	m, err := svc.CreateModel(ctx, "diabetes", "", []float64{0})
	require.NoError(t, err)
	register(t, svc, "wallet-a", "wallet-b")

	first, err := svc.OpenRound(ctx, m.ID)
	require.NoError(t, err)
	_, err = svc.SubmitContribution(ctx, submission(t, first.ID, "wallet-a", []float64{1}, 10, 0.7, 0.3))
	require.NoError(t, err)

	env.clock.Advance(2 * time.Minute)

	second, err := svc.OpenRound(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, first.Number, second.Number)
	_, err = svc.SubmitContribution(ctx, submission(t, second.ID, "wallet-b", []float64{10}, 10, 0.8, 0.2))
	require.NoError(t, err)
	_, err = svc.CompleteRound(ctx, second.ID)
	require.NoError(t, err)

	before, err := svc.GetModel(ctx, m.ID)
	require.NoError(t, err)
	require.Equal(t, uint64(1), before.CurrentRound)

	_, err = svc.CompleteRound(ctx, first.ID)
	assert.ErrorIs(t, err, pkgerrors.ErrConflict)

	got, err := svc.GetRound(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, fl.RoundTimedOut, got.Status)
	assert.Nil(t, got.Result)

	after, err := svc.GetModel(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), after.CurrentRound)
	assert.Equal(t, before.Weights, after.Weights)
	assert.Equal(t, before.Accuracy, after.Accuracy)
}

func TestSubmitContributionRejections(t *testing.T) {
	ctx := context.Background()
	env := setup(t, coordinator.DefaultConfig(), nil)
	svc := env.svc

	m, err := svc.CreateModel(ctx, "diabetes", "", nil)
	require.NoError(t, err)
	r, err := svc.OpenRound(ctx, m.ID)
	require.NoError(t, err)
	other, err := svc.CreateModel(ctx, "heart", "", nil)
	require.NoError(t, err)
	otherRound, err := svc.OpenRound(ctx, other.ID)
	require.NoError(t, err)

	register(t, svc, "wallet-a", "wallet-off")
	_, err = svc.DeactivateParticipant(ctx, "wallet-off")
	require.NoError(t, err)

	tampered := submission(t, r.ID, "wallet-a", []float64{1, 2}, 10, 0.7, 0.3)
	tampered.Delta = []float64{1, 3}

	replayed := submission(t, otherRound.ID, "wallet-a", []float64{1, 2}, 10, 0.7, 0.3)
	replayed.RoundID = r.ID

	forged := submission(t, r.ID, "wallet-a", []float64{1, 2}, 10, 0.7, 0.3)
	forged.Proof.Data = []byte("forged")

	cases := []struct {
		desc string
		sub  coordinator.Submission
		err  error
	}{
		{
			desc: "unregistered participant",
			sub:  submission(t, r.ID, "wallet-unknown", []float64{1, 2}, 10, 0.7, 0.3),
			err:  pkgerrors.ErrUnauthorizedParticipant,
		},
		{
			desc: "deactivated participant",
			sub:  submission(t, r.ID, "wallet-off", []float64{1, 2}, 10, 0.7, 0.3),
			err:  pkgerrors.ErrUnauthorizedParticipant,
		},
		{
			desc: "unknown round",
			sub:  submission(t, "unknown", "wallet-a", []float64{1, 2}, 10, 0.7, 0.3),
			err:  pkgerrors.ErrNotFound,
		},
		{
			desc: "empty delta",
			sub:  submission(t, r.ID, "wallet-a", nil, 10, 0.7, 0.3),
			err:  pkgerrors.ErrMalformedContribution,
		},
		{
			desc: "weights differ from commitment",
			sub:  tampered,
			err:  pkgerrors.ErrInvalidProof,
		},
		{
			desc: "proof bound to another round",
			sub:  replayed,
			err:  pkgerrors.ErrInvalidProof,
		},
		{
			desc: "proof rejected by verifier",
			sub:  forged,
			err:  pkgerrors.ErrInvalidProof,
		},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			_, err := svc.SubmitContribution(ctx, tc.sub)
			assert.ErrorIs(t, err, tc.err, fmt.Sprintf("%s: expected %v got %v", tc.desc, tc.err, err))
		})
	}

	cs, err := svc.ListContributions(ctx, r.ID)
	require.NoError(t, err)
	assert.Empty(t, cs, "rejected submissions leave no trace")
}

func TestVerifierUnavailable(t *testing.T) {
	ctx := context.Background()
	verifier := new(mocks.MockVerifier)
	verifier.On("Verify", mock.Anything, mock.Anything).Return(false, errors.New("verifying key unreadable"))
	env := setup(t, coordinator.DefaultConfig(), verifier)
	svc := env.svc

	m, err := svc.CreateModel(ctx, "diabetes", "", nil)
	require.NoError(t, err)
	r, err := svc.OpenRound(ctx, m.ID)
	require.NoError(t, err)
	register(t, svc, "wallet-a")

	_, err = svc.SubmitContribution(ctx, submission(t, r.ID, "wallet-a", []float64{1, 2}, 10, 0.7, 0.3))
	assert.ErrorIs(t, err, pkgerrors.ErrVerifierUnavailable)
	assert.NotErrorIs(t, err, pkgerrors.ErrInvalidProof)

	cs, err := svc.ListContributions(ctx, r.ID)
	require.NoError(t, err)
	assert.Empty(t, cs)
	verifier.AssertExpectations(t)
}

func TestKrumExcludesOutlier(t *testing.T) {
	ctx := context.Background()
	cfg := coordinator.DefaultConfig()
	cfg.Aggregation = fl.Config{Strategy: fl.StrategyKrum, Tolerance: 1}
	env := setup(t, cfg, nil)
	svc := env.svc

	m, err := svc.CreateModel(ctx, "diabetes", "", []float64{0, 0, 0})
	require.NoError(t, err)
	r, err := svc.OpenRound(ctx, m.ID)
	require.NoError(t, err)

	honest := map[string][]float64{
		"wallet-a": {0.10, 0.20, 0.30},
		"wallet-b": {0.11, 0.19, 0.31},
		"wallet-c": {0.09, 0.21, 0.29},
		"wallet-d": {0.10, 0.22, 0.30},
	}
	for id, delta := range honest {
		register(t, svc, id)
		_, err := svc.SubmitContribution(ctx, submission(t, r.ID, id, delta, 100, 0.82, 0.35))
		require.NoError(t, err)
	}
	register(t, svc, "wallet-evil")
	_, err = svc.SubmitContribution(ctx, submission(t, r.ID, "wallet-evil", []float64{9, -9, 9}, 100, 0.05, 7.5))
	require.NoError(t, err)

	res, err := svc.CompleteRound(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"wallet-evil"}, res.ExcludedParticipantIDs)
	assert.Equal(t, 4, res.ParticipantCount)
	assert.Equal(t, fl.StrategyKrum, res.Strategy)

	evil, err := svc.GetParticipant(ctx, "wallet-evil")
	require.NoError(t, err)
	assert.Less(t, evil.Reputation, 1.0)
}

func TestPreFilterSuspicious(t *testing.T) {
	ctx := context.Background()
	cfg := coordinator.DefaultConfig()
	cfg.Detection.PreFilter = true
	env := setup(t, cfg, nil)
	svc := env.svc

	m, err := svc.CreateModel(ctx, "diabetes", "", nil)
	require.NoError(t, err)
	r, err := svc.OpenRound(ctx, m.ID)
	require.NoError(t, err)
	register(t, svc, "wallet-a", "wallet-b", "wallet-c")

	_, err = svc.SubmitContribution(ctx, submission(t, r.ID, "wallet-a", []float64{1}, 100, 0.80, 0.40))
	require.NoError(t, err)
	_, err = svc.SubmitContribution(ctx, submission(t, r.ID, "wallet-b", []float64{1}, 100, 0.81, 0.41))
	require.NoError(t, err)
	c, err := svc.SubmitContribution(ctx, submission(t, r.ID, "wallet-c", []float64{1}, 100, 0.999, 0.01))
	require.NoError(t, err)
	assert.True(t, c.Suspicious)
	assert.NotEmpty(t, c.SuspicionReasons)

	res, err := svc.CompleteRound(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"wallet-c"}, res.ExcludedParticipantIDs)
	assert.Equal(t, 2, res.ParticipantCount)
}

func TestInsufficientContributions(t *testing.T) {
	ctx := context.Background()
	env := setup(t, coordinator.DefaultConfig(), nil)
	svc := env.svc

	m, err := svc.CreateModel(ctx, "diabetes", "", nil)
	require.NoError(t, err)

	empty, err := svc.OpenRound(ctx, m.ID)
	require.NoError(t, err)
	_, err = svc.CompleteRound(ctx, empty.ID)
	assert.ErrorIs(t, err, pkgerrors.ErrInsufficientContributions)

	got, err := svc.GetRound(ctx, empty.ID)
	require.NoError(t, err)
	assert.Equal(t, fl.RoundFailed, got.Status)

	_, err = svc.CompleteRound(ctx, empty.ID)
	assert.ErrorIs(t, err, pkgerrors.ErrInvalidState)

	r, err := svc.OpenRound(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), r.Number, "a failed round does not advance the model")

	_, err = svc.SetRoundMinParticipants(ctx, r.ID, 2)
	require.NoError(t, err)
	register(t, svc, "wallet-a")
	_, err = svc.SubmitContribution(ctx, submission(t, r.ID, "wallet-a", []float64{1}, 10, 0.7, 0.3))
	require.NoError(t, err)

	_, err = svc.CompleteRound(ctx, r.ID)
	assert.ErrorIs(t, err, pkgerrors.ErrInsufficientContributions)

	_, err = svc.SetRoundMinParticipants(ctx, r.ID, 1)
	assert.ErrorIs(t, err, pkgerrors.ErrInvalidState)

	m, err = svc.GetModel(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), m.CurrentRound)
}

func TestModelLifecycle(t *testing.T) {
	ctx := context.Background()
	env := setup(t, coordinator.DefaultConfig(), nil)
	svc := env.svc

	_, err := svc.CreateModel(ctx, "", "", nil)
	assert.ErrorIs(t, err, pkgerrors.ErrInvalidArgument)

	m, err := svc.CreateModel(ctx, "diabetes", "mlp", []float64{0.5})
	require.NoError(t, err)

	r, err := svc.OpenRound(ctx, m.ID)
	require.NoError(t, err)

	assert.ErrorIs(t, svc.DeleteModel(ctx, m.ID), pkgerrors.ErrConflict)
	_, err = svc.PauseModel(ctx, m.ID)
	assert.ErrorIs(t, err, pkgerrors.ErrConflict)

	got, err := svc.GetActiveRound(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, r.ID, got.ID)

	_, err = svc.CompleteRound(ctx, r.ID)
	assert.ErrorIs(t, err, pkgerrors.ErrInsufficientContributions)

	_, err = svc.GetActiveRound(ctx, m.ID)
	assert.ErrorIs(t, err, pkgerrors.ErrNotFound)

	paused, err := svc.PauseModel(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, fl.ModelPaused, paused.Status)

	resumed, err := svc.ResumeModel(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, fl.ModelActive, resumed.Status)

	require.NoError(t, svc.DeleteModel(ctx, m.ID))
	assert.ErrorIs(t, svc.DeleteModel(ctx, m.ID), pkgerrors.ErrNotFound)

	page, err := svc.ListModels(ctx, 0, 10)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), page.Total)
	assert.Equal(t, fl.ModelDeleted, page.Models[0].Status)
}

func TestSweepExpiredRounds(t *testing.T) {
	ctx := context.Background()
	cfg := coordinator.DefaultConfig()
	cfg.RoundTimeout = time.Minute
	env := setup(t, cfg, nil)
	svc := env.svc

	for _, disease := range []string{"diabetes", "heart"} {
		m, err := svc.CreateModel(ctx, disease, "", nil)
		require.NoError(t, err)
		_, err = svc.OpenRound(ctx, m.ID)
		require.NoError(t, err)
	}

	swept, err := svc.SweepExpiredRounds(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, swept)

	env.clock.Advance(time.Hour)

	swept, err = svc.SweepExpiredRounds(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, swept)

	swept, err = svc.SweepExpiredRounds(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, swept)
}

func TestOpenDueRounds(t *testing.T) {
	ctx := context.Background()
	env := setup(t, coordinator.DefaultConfig(), nil)
	svc := env.svc

	_, err := svc.CreateModel(ctx, "diabetes", "", nil)
	require.NoError(t, err)
	paused, err := svc.CreateModel(ctx, "heart", "", nil)
	require.NoError(t, err)
	_, err = svc.PauseModel(ctx, paused.ID)
	require.NoError(t, err)

	opened, err := svc.OpenDueRounds(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, opened)

	opened, err = svc.OpenDueRounds(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, opened)
}

func TestParticipants(t *testing.T) {
	ctx := context.Background()
	env := setup(t, coordinator.DefaultConfig(), nil)
	svc := env.svc

	_, err := svc.RegisterParticipant(ctx, "", "clinic")
	assert.ErrorIs(t, err, pkgerrors.ErrInvalidArgument)

	p, err := svc.RegisterParticipant(ctx, "wallet-a", "")
	require.NoError(t, err)
	assert.NotEmpty(t, p.DisplayName, "a display name is generated")
	assert.True(t, p.Active)
	assert.Equal(t, 1.0, p.Reputation)

	p, err = svc.RegisterParticipant(ctx, "wallet-a", "City Clinic")
	require.NoError(t, err)
	assert.Equal(t, "City Clinic", p.DisplayName)

	_, err = svc.DeactivateParticipant(ctx, "wallet-a")
	require.NoError(t, err)
	p, err = svc.RegisterParticipant(ctx, "wallet-a", "City Clinic")
	require.NoError(t, err)
	assert.False(t, p.Active, "registering again does not reactivate")

	ok, err := svc.IsActiveParticipant(ctx, "wallet-a")
	require.NoError(t, err)
	assert.False(t, ok)
	ok, err = svc.IsActiveParticipant(ctx, "wallet-unknown")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = svc.DeactivateParticipant(ctx, "wallet-unknown")
	assert.ErrorIs(t, err, pkgerrors.ErrNotFound)

	page, err := svc.ListParticipants(ctx, 0, 10)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), page.Total)
}

func TestReportByzantine(t *testing.T) {
	ctx := context.Background()
	env := setup(t, coordinator.DefaultConfig(), nil)
	svc := env.svc

	m, err := svc.CreateModel(ctx, "diabetes", "", nil)
	require.NoError(t, err)
	r, err := svc.OpenRound(ctx, m.ID)
	require.NoError(t, err)
	register(t, svc, "wallet-a", "wallet-b")
	_, err = svc.SubmitContribution(ctx, submission(t, r.ID, "wallet-a", []float64{1}, 10, 0.7, 0.3))
	require.NoError(t, err)

	p, err := svc.ReportByzantine(ctx, r.ID, "wallet-a", "gradient inversion attempt")
	require.NoError(t, err)
	assert.InDelta(t, 0.9, p.Reputation, 1e-9)

	_, err = svc.ReportByzantine(ctx, r.ID, "wallet-b", "no contribution")
	assert.ErrorIs(t, err, pkgerrors.ErrNotFound)

	_, err = svc.ReportByzantine(ctx, r.ID, "wallet-a", "")
	assert.ErrorIs(t, err, pkgerrors.ErrInvalidArgument)

	assert.Contains(t, env.sink.types(), coordinator.EventByzantine)
}

func TestWeightsInBlobStore(t *testing.T) {
	ctx := context.Background()
	store := blob.NewMemoryStore()
	env := setup(t, coordinator.DefaultConfig(), nil, coordinator.WithBlobStore(store))
	svc := env.svc

	m, err := svc.CreateModel(ctx, "diabetes", "", []float64{1, 1})
	require.NoError(t, err)
	require.NotEmpty(t, m.WeightsCID)

	r, err := svc.OpenRound(ctx, m.ID)
	require.NoError(t, err)
	register(t, svc, "wallet-a")
	c, err := svc.SubmitContribution(ctx, submission(t, r.ID, "wallet-a", []float64{0.5, -0.5}, 10, 0.7, 0.3))
	require.NoError(t, err)
	require.NotEmpty(t, c.DeltaCID)

	delta, err := blob.GetWeights(ctx, store, c.DeltaCID)
	require.NoError(t, err)
	assert.Equal(t, []float64{0.5, -0.5}, delta)

	res, err := svc.CompleteRound(ctx, r.ID)
	require.NoError(t, err)
	weights, err := blob.GetWeights(ctx, store, res.WeightsCID)
	require.NoError(t, err)
	assert.Equal(t, res.Weights, weights)
	assert.Equal(t, []float64{1.5, 0.5}, weights)
}

func TestParticipantContributions(t *testing.T) {
	ctx := context.Background()
	env := setup(t, coordinator.DefaultConfig(), nil)
	svc := env.svc

	register(t, svc, "wallet-a", "wallet-b", "wallet-idle")

	var ids []string
	for _, disease := range []string{"diabetes", "heart", "kidney"} {
		m, err := svc.CreateModel(ctx, disease, "", nil)
		require.NoError(t, err)
		r, err := svc.OpenRound(ctx, m.ID)
		require.NoError(t, err)
		c, err := svc.SubmitContribution(ctx, submission(t, r.ID, "wallet-a", []float64{0.1}, 10, 0.7, 0.3))
		require.NoError(t, err)
		ids = append(ids, c.ID)
		_, err = svc.SubmitContribution(ctx, submission(t, r.ID, "wallet-b", []float64{0.2}, 10, 0.7, 0.3))
		require.NoError(t, err)
		env.clock.Advance(time.Second)
	}

	got, err := svc.GetContribution(ctx, ids[0])
	require.NoError(t, err)
	assert.Equal(t, "wallet-a", got.ParticipantID)
	assert.Equal(t, ids[0], got.ID)

	_, err = svc.GetContribution(ctx, "unknown")
	assert.ErrorIs(t, err, pkgerrors.ErrNotFound)

	cases := []struct {
		desc   string
		wallet string
		offset uint64
		limit  uint64
		ids    []string
		total  uint64
		err    error
	}{
		{desc: "all contributions newest first", wallet: "wallet-a", limit: 10, ids: []string{ids[2], ids[1], ids[0]}, total: 3},
		{desc: "second page", wallet: "wallet-a", offset: 1, limit: 1, ids: []string{ids[1]}, total: 3},
		{desc: "offset past the end", wallet: "wallet-a", offset: 5, limit: 10, ids: []string{}, total: 3},
		{desc: "registered participant without contributions", wallet: "wallet-idle", limit: 10, ids: []string{}, total: 0},
		{desc: "unknown participant", wallet: "wallet-unknown", limit: 10, err: pkgerrors.ErrNotFound},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			page, err := svc.ListContributionsByParticipant(ctx, tc.wallet, tc.offset, tc.limit)
			if tc.err != nil {
				assert.ErrorIs(t, err, tc.err)

				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.total, page.Total)
			got := []string{}
			for _, c := range page.Contributions {
				assert.Equal(t, tc.wallet, c.ParticipantID)
				got = append(got, c.ID)
			}
			assert.Equal(t, tc.ids, got)
		})
	}
}

func TestStats(t *testing.T) {
	ctx := context.Background()
	env := setup(t, coordinator.DefaultConfig(), nil)
	svc := env.svc

	stats, err := svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, fl.Stats{GeneratedAt: env.clock.Now()}, stats)

	register(t, svc, "wallet-a", "wallet-b", "wallet-idle")

	trained, err := svc.CreateModel(ctx, "diabetes", "", []float64{0})
	require.NoError(t, err)
	_, err = svc.CreateModel(ctx, "heart", "", nil)
	require.NoError(t, err)
	paused, err := svc.CreateModel(ctx, "kidney", "", nil)
	require.NoError(t, err)

	r, err := svc.OpenRound(ctx, trained.ID)
	require.NoError(t, err)
	_, err = svc.SubmitContribution(ctx, submission(t, r.ID, "wallet-a", []float64{0.1}, 10, 0.8, 0.3))
	require.NoError(t, err)
	_, err = svc.SubmitContribution(ctx, submission(t, r.ID, "wallet-b", []float64{0.1}, 10, 0.8, 0.3))
	require.NoError(t, err)
	res, err := svc.CompleteRound(ctx, r.ID)
	require.NoError(t, err)

	pr, err := svc.OpenRound(ctx, paused.ID)
	require.NoError(t, err)
	_, err = svc.SubmitContribution(ctx, submission(t, pr.ID, "wallet-a", []float64{0.1}, 10, 0.6, 0.3))
	require.NoError(t, err)
	_, err = svc.CompleteRound(ctx, pr.ID)
	require.NoError(t, err)
	_, err = svc.PauseModel(ctx, paused.ID)
	require.NoError(t, err)

	env.clock.Advance(time.Minute)
	stats, err = svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), stats.Models, "paused models are not counted")
	assert.InDelta(t, res.Accuracy/2, stats.AverageAccuracy, 1e-9)
	assert.Equal(t, uint64(3), stats.Contributions)
	assert.Equal(t, uint64(2), stats.Participants, "only wallets that contributed")
	assert.Equal(t, env.clock.Now(), stats.GeneratedAt)
}

func TestRoundEventsUseServiceClock(t *testing.T) {
	ctx := context.Background()
	env := setup(t, coordinator.DefaultConfig(), nil)
	svc := env.svc

	m, err := svc.CreateModel(ctx, "diabetes", "", nil)
	require.NoError(t, err)
	register(t, svc, "wallet-a")

	opened := env.clock.Now()
	r, err := svc.OpenRound(ctx, m.ID)
	require.NoError(t, err)
	_, err = svc.SubmitContribution(ctx, submission(t, r.ID, "wallet-a", []float64{0.1}, 10, 0.7, 0.3))
	require.NoError(t, err)

	env.clock.Advance(5 * time.Minute)
	closed := env.clock.Now()
	_, err = svc.CompleteRound(ctx, r.ID)
	require.NoError(t, err)

	env.sink.mu.Lock()
	events := append([]coordinator.Event(nil), env.sink.events...)
	env.sink.mu.Unlock()

	require.Len(t, events, 2)
	assert.Equal(t, coordinator.EventStarted, events[0].Type)
	assert.True(t, opened.Equal(events[0].Timestamp), "started at %s, want %s", events[0].Timestamp, opened)
	assert.Equal(t, coordinator.EventCompleted, events[1].Type)
	assert.True(t, closed.Equal(events[1].Timestamp), "completed at %s, want %s", events[1].Timestamp, closed)
}
