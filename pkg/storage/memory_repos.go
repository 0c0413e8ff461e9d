package storage

import (
	"cmp"
	"context"
	"slices"
	"sync"

	pkgerrors "github.com/absmach/fedledger/pkg/errors"
	"github.com/absmach/fedledger/pkg/fl"
)

type memoryModelRepo struct {
	storage Storage
}

func newMemoryModelRepository(s Storage) ModelRepository {
	return &memoryModelRepo{storage: s}
}

func (r *memoryModelRepo) Create(ctx context.Context, m fl.Model) (fl.Model, error) {
	m.Weights = slices.Clone(m.Weights)
	if err := r.storage.Create(ctx, m.ID, m); err != nil {
		return fl.Model{}, err
	}

	return m, nil
}

func (r *memoryModelRepo) Get(ctx context.Context, id string) (fl.Model, error) {
	data, err := r.storage.Get(ctx, id)
	if err != nil {
		return fl.Model{}, notFound(err)
	}
	m, ok := data.(fl.Model)
	if !ok {
		return fl.Model{}, pkgerrors.ErrInvalidData
	}
	m.Weights = slices.Clone(m.Weights)

	return m, nil
}

func (r *memoryModelRepo) Update(ctx context.Context, m fl.Model) error {
	m.Weights = slices.Clone(m.Weights)

	return notFound(r.storage.Update(ctx, m.ID, m))
}

func (r *memoryModelRepo) List(ctx context.Context, offset, limit uint64) ([]fl.Model, uint64, error) {
	data, total, err := r.storage.List(ctx, offset, limit)
	if err != nil {
		return nil, 0, err
	}
	models := make([]fl.Model, 0, len(data))
	for _, d := range data {
		m, ok := d.(fl.Model)
		if !ok {
			return nil, 0, pkgerrors.ErrInvalidData
		}
		models = append(models, m)
	}

	return models, total, nil
}

type memoryRoundRepo struct {
	mu      sync.Mutex
	storage Storage
	open    map[string]string
}

func newMemoryRoundRepository(s Storage) RoundRepository {
	return &memoryRoundRepo{storage: s, open: make(map[string]string)}
}

func (r *memoryRoundRepo) Create(ctx context.Context, round fl.Round) (fl.Round, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.open[round.ModelID]; ok && round.Status.Open() {
		return fl.Round{}, pkgerrors.ErrConflict
	}
	round.ContributionIDs = nil
	if err := r.storage.Create(ctx, round.ID, round); err != nil {
		return fl.Round{}, err
	}
	if round.Status.Open() {
		r.open[round.ModelID] = round.ID
	}

	return round, nil
}

func (r *memoryRoundRepo) Get(ctx context.Context, id string) (fl.Round, error) {
	data, err := r.storage.Get(ctx, id)
	if err != nil {
		return fl.Round{}, notFound(err)
	}
	round, ok := data.(fl.Round)
	if !ok {
		return fl.Round{}, pkgerrors.ErrInvalidData
	}

	return round, nil
}

func (r *memoryRoundRepo) GetOpen(ctx context.Context, modelID string) (fl.Round, error) {
	r.mu.Lock()
	id, ok := r.open[modelID]
	r.mu.Unlock()
	if !ok {
		return fl.Round{}, pkgerrors.ErrNotFound
	}

	return r.Get(ctx, id)
}

func (r *memoryRoundRepo) Update(ctx context.Context, round fl.Round) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	round.ContributionIDs = nil
	if err := r.storage.Update(ctx, round.ID, round); err != nil {
		return notFound(err)
	}
	if !round.Status.Open() && r.open[round.ModelID] == round.ID {
		delete(r.open, round.ModelID)
	}

	return nil
}

func (r *memoryRoundRepo) ListByModel(ctx context.Context, modelID string, offset, limit uint64) ([]fl.Round, uint64, error) {
	all, err := r.all(ctx)
	if err != nil {
		return nil, 0, err
	}

	rounds := []fl.Round{}
	for _, round := range slices.Backward(all) {
		if round.ModelID == modelID {
			rounds = append(rounds, round)
		}
	}
	slices.SortStableFunc(rounds, func(a, b fl.Round) int {
		if c := b.OpenedAt.Compare(a.OpenedAt); c != 0 {
			return c
		}

		return cmp.Compare(b.Number, a.Number)
	})

	total := uint64(len(rounds))
	if offset >= total {
		return []fl.Round{}, total, nil
	}
	end := offset + limit
	if limit == 0 || end > total {
		end = total
	}

	return rounds[offset:end], total, nil
}

func (r *memoryRoundRepo) ListByStatus(ctx context.Context, statuses ...fl.RoundStatus) ([]fl.Round, error) {
	all, err := r.all(ctx)
	if err != nil {
		return nil, err
	}

	rounds := []fl.Round{}
	for _, round := range all {
		if slices.Contains(statuses, round.Status) {
			rounds = append(rounds, round)
		}
	}

	return rounds, nil
}

func (r *memoryRoundRepo) all(ctx context.Context) ([]fl.Round, error) {
	data, _, err := r.storage.List(ctx, 0, 0)
	if err != nil {
		return nil, err
	}
	rounds := make([]fl.Round, 0, len(data))
	for _, d := range data {
		round, ok := d.(fl.Round)
		if !ok {
			return nil, pkgerrors.ErrInvalidData
		}
		rounds = append(rounds, round)
	}

	return rounds, nil
}

type memoryContributionRepo struct {
	mu            sync.Mutex
	storage       Storage
	byRound       map[string][]string
	byParticipant map[string][]string
	members       map[string]bool
}

func newMemoryContributionRepository(s Storage) ContributionRepository {
	return &memoryContributionRepo{
		storage:       s,
		byRound:       make(map[string][]string),
		byParticipant: make(map[string][]string),
		members:       make(map[string]bool),
	}
}

func (r *memoryContributionRepo) Create(ctx context.Context, c fl.Contribution) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	member := c.RoundID + "/" + c.ParticipantID
	if r.members[member] {
		return pkgerrors.ErrDuplicate
	}
	c.Delta = slices.Clone(c.Delta)
	if err := r.storage.Create(ctx, c.ID, c); err != nil {
		return err
	}
	r.members[member] = true
	r.byRound[c.RoundID] = append(r.byRound[c.RoundID], c.ID)
	r.byParticipant[c.ParticipantID] = append(r.byParticipant[c.ParticipantID], c.ID)

	return nil
}

func (r *memoryContributionRepo) Get(ctx context.Context, id string) (fl.Contribution, error) {
	data, err := r.storage.Get(ctx, id)
	if err != nil {
		return fl.Contribution{}, notFound(err)
	}
	c, ok := data.(fl.Contribution)
	if !ok {
		return fl.Contribution{}, pkgerrors.ErrInvalidData
	}

	return c, nil
}

func (r *memoryContributionRepo) ListByRound(ctx context.Context, roundID string) ([]fl.Contribution, error) {
	r.mu.Lock()
	ids := slices.Clone(r.byRound[roundID])
	r.mu.Unlock()

	cs := make([]fl.Contribution, 0, len(ids))
	for _, id := range ids {
		c, err := r.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		cs = append(cs, c)
	}

	return cs, nil
}

func (r *memoryContributionRepo) ListByParticipant(ctx context.Context, walletID string, offset, limit uint64) ([]fl.Contribution, uint64, error) {
	r.mu.Lock()
	ids := slices.Clone(r.byParticipant[walletID])
	r.mu.Unlock()

	cs := make([]fl.Contribution, 0, len(ids))
	for _, id := range ids {
		c, err := r.Get(ctx, id)
		if err != nil {
			return nil, 0, err
		}
		cs = append(cs, c)
	}
	slices.SortStableFunc(cs, func(a, b fl.Contribution) int {
		if c := b.SubmittedAt.Compare(a.SubmittedAt); c != 0 {
			return c
		}

		return cmp.Compare(b.ID, a.ID)
	})

	total := uint64(len(cs))
	if offset >= total {
		return []fl.Contribution{}, total, nil
	}
	end := offset + limit
	if limit == 0 || end > total {
		end = total
	}

	return cs[offset:end], total, nil
}

func (r *memoryContributionRepo) Totals(_ context.Context) (uint64, uint64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var contributions uint64
	for _, ids := range r.byParticipant {
		contributions += uint64(len(ids))
	}

	return contributions, uint64(len(r.byParticipant)), nil
}

type memoryParticipantRepo struct {
	storage Storage
}

func newMemoryParticipantRepository(s Storage) ParticipantRepository {
	return &memoryParticipantRepo{storage: s}
}

func (r *memoryParticipantRepo) Create(ctx context.Context, p fl.Participant) error {
	return r.storage.Create(ctx, p.WalletID, p)
}

func (r *memoryParticipantRepo) Get(ctx context.Context, walletID string) (fl.Participant, error) {
	data, err := r.storage.Get(ctx, walletID)
	if err != nil {
		return fl.Participant{}, notFound(err)
	}
	p, ok := data.(fl.Participant)
	if !ok {
		return fl.Participant{}, pkgerrors.ErrInvalidData
	}

	return p, nil
}

func (r *memoryParticipantRepo) Update(ctx context.Context, p fl.Participant) error {
	return notFound(r.storage.Update(ctx, p.WalletID, p))
}

func (r *memoryParticipantRepo) List(ctx context.Context, offset, limit uint64) ([]fl.Participant, uint64, error) {
	data, total, err := r.storage.List(ctx, offset, limit)
	if err != nil {
		return nil, 0, err
	}
	ps := make([]fl.Participant, 0, len(data))
	for _, d := range data {
		p, ok := d.(fl.Participant)
		if !ok {
			return nil, 0, pkgerrors.ErrInvalidData
		}
		ps = append(ps, p)
	}

	return ps, total, nil
}

// An empty key can never match a stored entity.
func notFound(err error) error {
	if err == pkgerrors.ErrEmptyKey {
		return pkgerrors.ErrNotFound
	}

	return err
}
