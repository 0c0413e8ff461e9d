package storage

import (
	"context"
	"slices"
	"sync"

	"github.com/absmach/fedledger/pkg/errors"
)

type inMemoryStorage struct {
	sync.Mutex

	data map[string]any
	// keys keeps insertion order so paging is stable between calls.
	keys []string
}

func NewInMemoryStorage() Storage {
	return &inMemoryStorage{
		data: make(map[string]any),
	}
}

func (s *inMemoryStorage) Create(_ context.Context, key string, value any) error {
	if key == "" {
		return errors.ErrEmptyKey
	}

	s.Lock()
	defer s.Unlock()

	if _, ok := s.data[key]; ok {
		return errors.ErrEntityExists
	}

	s.data[key] = value
	s.keys = append(s.keys, key)

	return nil
}

func (s *inMemoryStorage) Get(_ context.Context, key string) (any, error) {
	if key == "" {
		return nil, errors.ErrEmptyKey
	}

	s.Lock()
	defer s.Unlock()

	if val, ok := s.data[key]; ok {
		return val, nil
	}

	return nil, errors.ErrNotFound
}

func (s *inMemoryStorage) Update(_ context.Context, key string, value any) error {
	if key == "" {
		return errors.ErrEmptyKey
	}

	s.Lock()
	defer s.Unlock()

	if _, ok := s.data[key]; !ok {
		return errors.ErrNotFound
	}

	s.data[key] = value

	return nil
}

func (s *inMemoryStorage) List(_ context.Context, offset, limit uint64) ([]any, uint64, error) {
	s.Lock()
	defer s.Unlock()

	total := uint64(len(s.keys))
	if offset >= total {
		return []any{}, total, nil
	}

	end := offset + limit
	if limit == 0 || end > total {
		end = total
	}

	result := make([]any, end-offset)
	for i := offset; i < end; i++ {
		result[i-offset] = s.data[s.keys[i]]
	}

	return result, total, nil
}

func (s *inMemoryStorage) Delete(_ context.Context, key string) error {
	if key == "" {
		return errors.ErrEmptyKey
	}

	s.Lock()
	defer s.Unlock()

	if _, ok := s.data[key]; !ok {
		return nil
	}
	delete(s.data, key)
	s.keys = slices.DeleteFunc(s.keys, func(k string) bool { return k == key })

	return nil
}
