package badger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	pkgerrors "github.com/absmach/fedledger/pkg/errors"
	"github.com/absmach/fedledger/pkg/fl"
	"github.com/dgraph-io/badger/v4"
)

type Repositories struct {
	Models        *ModelRepository
	Rounds        *RoundRepository
	Contributions *ContributionRepository
	Participants  *ParticipantRepository
}

func NewRepositories(db *Database) Repositories {
	return Repositories{
		Models:        &ModelRepository{db: db},
		Rounds:        &RoundRepository{db: db},
		Contributions: &ContributionRepository{db: db},
		Participants:  &ParticipantRepository{db: db},
	}
}

type ModelRepository struct {
	db *Database
}

func (r *ModelRepository) Create(ctx context.Context, m fl.Model) (fl.Model, error) {
	key := modelPrefix + m.ID
	err := r.db.update(func(txn *badger.Txn) error {
		ok, err := exists(txn, key)
		if err != nil {
			return err
		}
		if ok {
			return pkgerrors.ErrEntityExists
		}

		return setJSON(txn, key, m)
	})
	if err != nil {
		return fl.Model{}, wrap(ErrCreate, err)
	}

	return m, nil
}

func (r *ModelRepository) Get(ctx context.Context, id string) (fl.Model, error) {
	var m fl.Model
	err := r.db.db.View(func(txn *badger.Txn) error {
		return getJSON(txn, modelPrefix+id, &m)
	})

	return m, err
}

func (r *ModelRepository) Update(ctx context.Context, m fl.Model) error {
	key := modelPrefix + m.ID
	err := r.db.update(func(txn *badger.Txn) error {
		ok, err := exists(txn, key)
		if err != nil {
			return err
		}
		if !ok {
			return pkgerrors.ErrNotFound
		}

		return setJSON(txn, key, m)
	})

	return wrap(ErrUpdate, err)
}

func (r *ModelRepository) List(ctx context.Context, offset, limit uint64) ([]fl.Model, uint64, error) {
	models := []fl.Model{}
	var total uint64
	err := r.db.db.View(func(txn *badger.Txn) error {
		total = countPrefix(txn, modelPrefix)

		return scanPrefix(txn, modelPrefix, false, offset, limit, func(val []byte) error {
			var m fl.Model
			if err := json.Unmarshal(val, &m); err != nil {
				return fmt.Errorf("%w: %w", ErrUnmarshal, err)
			}
			models = append(models, m)

			return nil
		})
	})
	if err != nil {
		return nil, 0, err
	}

	return models, total, nil
}

type RoundRepository struct {
	db *Database
}

// Round numbers repeat after a failed round, so the index key orders by
// opening time first and ends with the id.
func modelRoundKey(round fl.Round) string {
	return fmt.Sprintf("%s%s:%020d:%020d:%s", modelRoundPrefix, round.ModelID, round.OpenedAt.UnixNano(), round.Number, round.ID)
}

// Create stores the round and claims the model's open-round slot in the
// same transaction, so a second open round yields pkgerrors.ErrConflict.
func (r *RoundRepository) Create(ctx context.Context, round fl.Round) (fl.Round, error) {
	key := roundPrefix + round.ID
	err := r.db.update(func(txn *badger.Txn) error {
		ok, err := exists(txn, key)
		if err != nil {
			return err
		}
		if ok {
			return pkgerrors.ErrEntityExists
		}
		if round.Status.Open() {
			open, err := exists(txn, openRoundPrefix+round.ModelID)
			if err != nil {
				return err
			}
			if open {
				return pkgerrors.ErrConflict
			}
			if err := txn.Set([]byte(openRoundPrefix+round.ModelID), []byte(round.ID)); err != nil {
				return err
			}
		}
		if err := txn.Set([]byte(modelRoundKey(round)), []byte(round.ID)); err != nil {
			return err
		}

		return setJSON(txn, key, stripRound(round))
	})
	if err != nil {
		return fl.Round{}, wrap(ErrCreate, err)
	}

	return round, nil
}

func (r *RoundRepository) Get(ctx context.Context, id string) (fl.Round, error) {
	var round fl.Round
	err := r.db.db.View(func(txn *badger.Txn) error {
		return getJSON(txn, roundPrefix+id, &round)
	})

	return round, err
}

func (r *RoundRepository) GetOpen(ctx context.Context, modelID string) (fl.Round, error) {
	var round fl.Round
	err := r.db.db.View(func(txn *badger.Txn) error {
		id, err := getString(txn, openRoundPrefix+modelID)
		if err != nil {
			return err
		}

		return getJSON(txn, roundPrefix+id, &round)
	})

	return round, err
}

func (r *RoundRepository) Update(ctx context.Context, round fl.Round) error {
	key := roundPrefix + round.ID
	err := r.db.update(func(txn *badger.Txn) error {
		var prev fl.Round
		if err := getJSON(txn, key, &prev); err != nil {
			return err
		}
		if prev.Status.Open() && !round.Status.Open() {
			holder, err := getString(txn, openRoundPrefix+round.ModelID)
			if err != nil && err != pkgerrors.ErrNotFound {
				return err
			}
			if holder == round.ID {
				if err := txn.Delete([]byte(openRoundPrefix + round.ModelID)); err != nil {
					return err
				}
			}
		}

		return setJSON(txn, key, stripRound(round))
	})

	return wrap(ErrUpdate, err)
}

func (r *RoundRepository) ListByModel(ctx context.Context, modelID string, offset, limit uint64) ([]fl.Round, uint64, error) {
	prefix := modelRoundPrefix + modelID + ":"
	rounds := []fl.Round{}
	var total uint64
	err := r.db.db.View(func(txn *badger.Txn) error {
		total = countPrefix(txn, prefix)

		return scanPrefix(txn, prefix, true, offset, limit, func(val []byte) error {
			var round fl.Round
			if err := getJSON(txn, roundPrefix+string(val), &round); err != nil {
				return err
			}
			rounds = append(rounds, round)

			return nil
		})
	})
	if err != nil {
		return nil, 0, err
	}

	return rounds, total, nil
}

func (r *RoundRepository) ListByStatus(ctx context.Context, statuses ...fl.RoundStatus) ([]fl.Round, error) {
	want := make(map[fl.RoundStatus]bool, len(statuses))
	for _, s := range statuses {
		want[s] = true
	}

	rounds := []fl.Round{}
	if len(want) == 0 {
		return rounds, nil
	}
	err := r.db.db.View(func(txn *badger.Txn) error {
		return scanPrefix(txn, roundPrefix, false, 0, 0, func(val []byte) error {
			var round fl.Round
			if err := json.Unmarshal(val, &round); err != nil {
				return fmt.Errorf("%w: %w", ErrUnmarshal, err)
			}
			if want[round.Status] {
				rounds = append(rounds, round)
			}

			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	return rounds, nil
}

// Contribution membership lives in the contribution keys.
func stripRound(round fl.Round) fl.Round {
	round.ContributionIDs = nil

	return round
}

type ContributionRepository struct {
	db *Database
}

func (r *ContributionRepository) Create(ctx context.Context, c fl.Contribution) error {
	idx := roundContributionPrefix + c.RoundID + ":" + c.ParticipantID
	err := r.db.update(func(txn *badger.Txn) error {
		dup, err := exists(txn, idx)
		if err != nil {
			return err
		}
		if dup {
			return pkgerrors.ErrDuplicate
		}
		if err := txn.Set([]byte(idx), []byte(c.ID)); err != nil {
			return err
		}
		if err := txn.Set([]byte(participantContributionKey(c)), []byte(c.ID)); err != nil {
			return err
		}

		return setJSON(txn, contributionPrefix+c.ID, c)
	})

	return wrap(ErrCreate, err)
}

func (r *ContributionRepository) Get(ctx context.Context, id string) (fl.Contribution, error) {
	var c fl.Contribution
	err := r.db.db.View(func(txn *badger.Txn) error {
		return getJSON(txn, contributionPrefix+id, &c)
	})

	return c, err
}

func (r *ContributionRepository) ListByRound(ctx context.Context, roundID string) ([]fl.Contribution, error) {
	cs := []fl.Contribution{}
	err := r.db.db.View(func(txn *badger.Txn) error {
		return scanPrefix(txn, roundContributionPrefix+roundID+":", false, 0, 0, func(val []byte) error {
			var c fl.Contribution
			if err := getJSON(txn, contributionPrefix+string(val), &c); err != nil {
				return err
			}
			cs = append(cs, c)

			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	return cs, nil
}

func participantContributionKey(c fl.Contribution) string {
	return fmt.Sprintf("%s%s\x00%020d\x00%s", participantContributionPrefix, c.ParticipantID, c.SubmittedAt.UnixNano(), c.ID)
}

func (r *ContributionRepository) ListByParticipant(ctx context.Context, walletID string, offset, limit uint64) ([]fl.Contribution, uint64, error) {
	prefix := participantContributionPrefix + walletID + "\x00"
	cs := []fl.Contribution{}
	var total uint64
	err := r.db.db.View(func(txn *badger.Txn) error {
		total = countPrefix(txn, prefix)

		return scanPrefix(txn, prefix, true, offset, limit, func(val []byte) error {
			var c fl.Contribution
			if err := getJSON(txn, contributionPrefix+string(val), &c); err != nil {
				return err
			}
			cs = append(cs, c)

			return nil
		})
	})
	if err != nil {
		return nil, 0, err
	}

	return cs, total, nil
}

// Totals walks the participant index once. Keys are sorted by wallet, so a
// new wallet starts whenever the wallet part of the key changes.
func (r *ContributionRepository) Totals(ctx context.Context) (uint64, uint64, error) {
	var contributions, participants uint64
	err := r.db.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(participantContributionPrefix)
		var last []byte
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			key := it.Item().Key()[len(prefix):]
			wallet := key
			if i := bytes.IndexByte(key, 0); i >= 0 {
				wallet = key[:i]
			}
			if last == nil || !bytes.Equal(wallet, last) {
				participants++
				last = bytes.Clone(wallet)
			}
			contributions++
		}

		return nil
	})
	if err != nil {
		return 0, 0, err
	}

	return contributions, participants, nil
}

type ParticipantRepository struct {
	db *Database
}

func (r *ParticipantRepository) Create(ctx context.Context, p fl.Participant) error {
	key := participantPrefix + p.WalletID
	err := r.db.update(func(txn *badger.Txn) error {
		ok, err := exists(txn, key)
		if err != nil {
			return err
		}
		if ok {
			return pkgerrors.ErrEntityExists
		}

		return setJSON(txn, key, p)
	})

	return wrap(ErrCreate, err)
}

func (r *ParticipantRepository) Get(ctx context.Context, walletID string) (fl.Participant, error) {
	var p fl.Participant
	err := r.db.db.View(func(txn *badger.Txn) error {
		return getJSON(txn, participantPrefix+walletID, &p)
	})

	return p, err
}

func (r *ParticipantRepository) Update(ctx context.Context, p fl.Participant) error {
	key := participantPrefix + p.WalletID
	err := r.db.update(func(txn *badger.Txn) error {
		ok, err := exists(txn, key)
		if err != nil {
			return err
		}
		if !ok {
			return pkgerrors.ErrNotFound
		}

		return setJSON(txn, key, p)
	})

	return wrap(ErrUpdate, err)
}

func (r *ParticipantRepository) List(ctx context.Context, offset, limit uint64) ([]fl.Participant, uint64, error) {
	ps := []fl.Participant{}
	var total uint64
	err := r.db.db.View(func(txn *badger.Txn) error {
		total = countPrefix(txn, participantPrefix)

		return scanPrefix(txn, participantPrefix, false, offset, limit, func(val []byte) error {
			var p fl.Participant
			if err := json.Unmarshal(val, &p); err != nil {
				return fmt.Errorf("%w: %w", ErrUnmarshal, err)
			}
			ps = append(ps, p)

			return nil
		})
	})
	if err != nil {
		return nil, 0, err
	}

	return ps, total, nil
}

// wrap leaves the shared domain errors untouched so callers can compare
// them directly, and tags everything else with the operation.
func wrap(op, err error) error {
	switch err {
	case nil:
		return nil
	case pkgerrors.ErrNotFound, pkgerrors.ErrEntityExists, pkgerrors.ErrConflict, pkgerrors.ErrDuplicate:
		return err
	default:
		return fmt.Errorf("%w: %w", op, err)
	}
}
