package badger_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	pkgerrors "github.com/absmach/fedledger/pkg/errors"
	"github.com/absmach/fedledger/pkg/fl"
	"github.com/absmach/fedledger/pkg/storage/badger"
	"github.com/absmach/fedledger/pkg/storage/testutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testDB    *badger.Database
	repos     badger.Repositories
	invalidID = "invalid-id-that-does-not-exist"
)

func TestMain(m *testing.M) {
	tmpDir := os.TempDir()
	dbPath := filepath.Join(tmpDir, "badger_test_"+uuid.NewString())

	var err error
	testDB, err = badger.NewDatabase(dbPath)
	if err != nil {
		panic(err)
	}
	repos = badger.NewRepositories(testDB)

	code := m.Run()

	testDB.Close()
	os.RemoveAll(dbPath)

	os.Exit(code)
}

func TestModelRepository(t *testing.T) {
	ctx := context.Background()
	m := testutil.TestModel(uuid.NewString())

	cases := []struct {
		desc  string
		model fl.Model
		err   error
	}{
		{
			desc:  "create new model",
			model: m,
			err:   nil,
		},
		{
			desc:  "create model with existing id",
			model: m,
			err:   pkgerrors.ErrEntityExists,
		},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			_, err := repos.Models.Create(ctx, tc.model)
			assert.Equal(t, tc.err, err, fmt.Sprintf("%s: expected error %v, got %v", tc.desc, tc.err, err))
		})
	}

	m.Weights = []float64{9, 8, 7}
	m.CurrentRound = 2
	require.Nil(t, repos.Models.Update(ctx, m))

	got, err := repos.Models.Get(ctx, m.ID)
	require.Nil(t, err)
	assert.Equal(t, []float64{9, 8, 7}, got.Weights)
	assert.Equal(t, uint64(2), got.CurrentRound)

	_, err = repos.Models.Get(ctx, invalidID)
	assert.Equal(t, pkgerrors.ErrNotFound, err)
	assert.Equal(t, pkgerrors.ErrNotFound, repos.Models.Update(ctx, testutil.TestModel(invalidID)))

	_, total, err := repos.Models.List(ctx, 0, 10)
	require.Nil(t, err)
	assert.GreaterOrEqual(t, total, uint64(1))
}

func TestRoundRepository(t *testing.T) {
	ctx := context.Background()
	modelID := uuid.NewString()

	first := testutil.TestRound(uuid.NewString(), modelID, 1)
	_, err := repos.Rounds.Create(ctx, first)
	require.Nil(t, err)

	_, err = repos.Rounds.Create(ctx, testutil.TestRound(uuid.NewString(), modelID, 2))
	assert.Equal(t, pkgerrors.ErrConflict, err, "only one open round per model")

	first.Status = fl.RoundCompleted
	first.ClosedAt = time.Now().UTC()
	first.ContributionIDs = []string{"kept-out-of-the-round-row"}
	require.Nil(t, repos.Rounds.Update(ctx, first))

	got, err := repos.Rounds.Get(ctx, first.ID)
	require.Nil(t, err)
	assert.Equal(t, fl.RoundCompleted, got.Status)
	assert.Empty(t, got.ContributionIDs)

	second := testutil.TestRound(uuid.NewString(), modelID, 2)
	_, err = repos.Rounds.Create(ctx, second)
	require.Nil(t, err)

	open, err := repos.Rounds.GetOpen(ctx, modelID)
	require.Nil(t, err)
	assert.Equal(t, second.ID, open.ID)

	_, err = repos.Rounds.GetOpen(ctx, uuid.NewString())
	assert.Equal(t, pkgerrors.ErrNotFound, err)

	rounds, total, err := repos.Rounds.ListByModel(ctx, modelID, 0, 10)
	require.Nil(t, err)
	assert.Equal(t, uint64(2), total)
	require.Len(t, rounds, 2)
	assert.Equal(t, second.ID, rounds[0].ID, "newest round first")

	page, _, err := repos.Rounds.ListByModel(ctx, modelID, 1, 10)
	require.Nil(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, first.ID, page[0].ID)

	active, err := repos.Rounds.ListByStatus(ctx, fl.RoundActive)
	require.Nil(t, err)
	ids := []string{}
	for _, r := range active {
		ids = append(ids, r.ID)
	}
	assert.Contains(t, ids, second.ID)
	assert.NotContains(t, ids, first.ID)

	none, err := repos.Rounds.ListByStatus(ctx)
	require.Nil(t, err)
	assert.Empty(t, none)
}

func TestContributionRepository(t *testing.T) {
	ctx := context.Background()
	roundID := uuid.NewString()

	first := testutil.TestContribution(roundID, "wallet-a")

	cases := []struct {
		desc         string
		contribution fl.Contribution
		err          error
	}{
		{
			desc:         "create contribution",
			contribution: first,
			err:          nil,
		},
		{
			desc:         "create contribution from another participant",
			contribution: testutil.TestContribution(roundID, "wallet-b"),
			err:          nil,
		},
		{
			desc:         "create second contribution from the same participant",
			contribution: testutil.TestContribution(roundID, "wallet-a"),
			err:          pkgerrors.ErrDuplicate,
		},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			err := repos.Contributions.Create(ctx, tc.contribution)
			assert.Equal(t, tc.err, err, fmt.Sprintf("%s: expected error %v, got %v", tc.desc, tc.err, err))
		})
	}

	got, err := repos.Contributions.Get(ctx, first.ID)
	require.Nil(t, err)
	assert.Equal(t, first.Proof, got.Proof)

	cs, err := repos.Contributions.ListByRound(ctx, roundID)
	require.Nil(t, err)
	assert.Len(t, cs, 2)

	_, err = repos.Contributions.Get(ctx, invalidID)
	assert.Equal(t, pkgerrors.ErrNotFound, err)
}

func TestParticipantRepository(t *testing.T) {
	ctx := context.Background()
	p := testutil.TestParticipant(uuid.NewString())
	require.Nil(t, repos.Participants.Create(ctx, p))
	assert.Equal(t, pkgerrors.ErrEntityExists, repos.Participants.Create(ctx, p))

	p.Reputation = 0.5
	require.Nil(t, repos.Participants.Update(ctx, p))

	got, err := repos.Participants.Get(ctx, p.WalletID)
	require.Nil(t, err)
	assert.Equal(t, 0.5, got.Reputation)

	assert.Equal(t, pkgerrors.ErrNotFound, repos.Participants.Update(ctx, testutil.TestParticipant(invalidID)))

	_, total, err := repos.Participants.List(ctx, 0, 10)
	require.Nil(t, err)
	assert.GreaterOrEqual(t, total, uint64(1))
}

func TestContributionRepository_ListByParticipant(t *testing.T) {
	ctx := context.Background()
	wallet := uuid.NewString()

	contributionsBefore, participantsBefore, err := repos.Contributions.Totals(ctx)
	require.Nil(t, err)

	base := time.Now().UTC().Truncate(time.Millisecond)
	var ids []string
	for i := range 3 {
		c := testutil.TestContribution(uuid.NewString(), wallet)
		c.SubmittedAt = base.Add(time.Duration(i) * time.Second)
		require.Nil(t, repos.Contributions.Create(ctx, c))
		ids = append(ids, c.ID)
	}
	// A wallet sharing the prefix must not leak into the listing.
	require.Nil(t, repos.Contributions.Create(ctx, testutil.TestContribution(uuid.NewString(), wallet+"-other")))

	cases := []struct {
		desc   string
		offset uint64
		limit  uint64
		ids    []string
	}{
		{desc: "list newest first", limit: 10, ids: []string{ids[2], ids[1], ids[0]}},
		{desc: "list with zero limit", limit: 0, ids: []string{ids[2], ids[1], ids[0]}},
		{desc: "list second page", offset: 1, limit: 1, ids: []string{ids[1]}},
		{desc: "list past the end", offset: 3, limit: 10, ids: []string{}},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			cs, total, err := repos.Contributions.ListByParticipant(ctx, wallet, tc.offset, tc.limit)
			require.Nil(t, err)
			assert.Equal(t, uint64(3), total)
			got := []string{}
			for _, c := range cs {
				assert.Equal(t, wallet, c.ParticipantID)
				got = append(got, c.ID)
			}
			assert.Equal(t, tc.ids, got)
		})
	}

	contributions, participants, err := repos.Contributions.Totals(ctx)
	require.Nil(t, err)
	assert.Equal(t, contributionsBefore+4, contributions)
	assert.Equal(t, participantsBefore+2, participants)
}
