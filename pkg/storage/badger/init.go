package badger

import (
	"encoding/json"
	"errors"
	"fmt"

	pkgerrors "github.com/absmach/fedledger/pkg/errors"
	"github.com/dgraph-io/badger/v4"
)

var (
	ErrDBConnection = errors.New("badger database connection error")
	ErrDBQuery      = errors.New("database query error")
	ErrCreate       = errors.New("create error")
	ErrUpdate       = errors.New("update error")
	ErrMarshal      = errors.New("marshal error")
	ErrUnmarshal    = errors.New("unmarshal error")
)

const (
	modelPrefix             = "model:"
	roundPrefix             = "round:"
	modelRoundPrefix        = "model-round:"
	openRoundPrefix         = "open-round:"
	contributionPrefix      = "contribution:"
	roundContributionPrefix = "round-contribution:"
	participantPrefix       = "participant:"

	// participant-contribution:<wallet>\x00<submitted unix nano>\x00<id>
	participantContributionPrefix = "participant-contribution:"
)

type Database struct {
	db *badger.DB
}

func NewDatabase(path string) (*Database, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDBConnection, err)
	}

	return &Database{db: db}, nil
}

func (d *Database) Close() error {
	return d.db.Close()
}

// update runs fn in a read-write transaction. Badger reports a write
// conflict with a concurrent transaction as badger.ErrConflict.
func (d *Database) update(fn func(txn *badger.Txn) error) error {
	err := d.db.Update(fn)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, badger.ErrConflict):
		return pkgerrors.ErrConflict
	default:
		return err
	}
}

func getJSON(txn *badger.Txn, key string, v any) error {
	item, err := txn.Get([]byte(key))
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return pkgerrors.ErrNotFound
		}

		return fmt.Errorf("%w: %w", ErrDBQuery, err)
	}

	return item.Value(func(val []byte) error {
		if err := json.Unmarshal(val, v); err != nil {
			return fmt.Errorf("%w: %w", ErrUnmarshal, err)
		}

		return nil
	})
}

func setJSON(txn *badger.Txn, key string, v any) error {
	val, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrMarshal, err)
	}

	return txn.Set([]byte(key), val)
}

func exists(txn *badger.Txn, key string) (bool, error) {
	_, err := txn.Get([]byte(key))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, badger.ErrKeyNotFound):
		return false, nil
	default:
		return false, fmt.Errorf("%w: %w", ErrDBQuery, err)
	}
}

func getString(txn *badger.Txn, key string) (string, error) {
	item, err := txn.Get([]byte(key))
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return "", pkgerrors.ErrNotFound
		}

		return "", fmt.Errorf("%w: %w", ErrDBQuery, err)
	}
	val, err := item.ValueCopy(nil)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrDBQuery, err)
	}

	return string(val), nil
}

// scanPrefix walks the values under prefix in key order, or reverse key
// order, skipping offset entries and stopping after limit. A zero limit
// means no limit.
func scanPrefix(txn *badger.Txn, prefix string, reverse bool, offset, limit uint64, fn func(val []byte) error) error {
	opts := badger.DefaultIteratorOptions
	opts.Reverse = reverse
	if limit > 0 && limit < uint64(opts.PrefetchSize) {
		opts.PrefetchSize = int(limit)
	}
	it := txn.NewIterator(opts)
	defer it.Close()

	seek := []byte(prefix)
	if reverse {
		seek = append(seek, 0xFF)
	}

	skipped, count := uint64(0), uint64(0)
	for it.Seek(seek); it.ValidForPrefix([]byte(prefix)); it.Next() {
		if skipped < offset {
			skipped++

			continue
		}
		if limit > 0 && count >= limit {
			break
		}
		if err := it.Item().Value(fn); err != nil {
			return err
		}
		count++
	}

	return nil
}

func countPrefix(txn *badger.Txn, prefix string) uint64 {
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	it := txn.NewIterator(opts)
	defer it.Close()

	count := uint64(0)
	for it.Seek([]byte(prefix)); it.ValidForPrefix([]byte(prefix)); it.Next() {
		count++
	}

	return count
}
