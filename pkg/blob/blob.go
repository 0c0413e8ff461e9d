// Package blob persists large weight vectors outside the durable store.
// Blobs are addressed by the multihash of their content, so a blob read back
// can always be checked against the identifier it was stored under.
package blob

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	pkgerrors "github.com/absmach/fedledger/pkg/errors"
	"github.com/mr-tron/base58"
	"golang.org/x/crypto/sha3"
)

const (
	// multihash code for sha3-256 followed by the digest length.
	sha3Code   = 0x16
	sha3Length = 0x20

	KindNone   = "none"
	KindMemory = "memory"
	KindS3     = "s3"
)

var (
	ErrInvalidCID  = errors.New("invalid content identifier")
	ErrCIDMismatch = errors.New("blob content does not match its identifier")
	ErrUnknownKind = errors.New("unknown blob store kind")
)

type Store interface {
	// Put stores data and returns its content identifier.
	Put(ctx context.Context, data []byte) (string, error)
	// Get returns the bytes stored under cid.
	Get(ctx context.Context, cid string) ([]byte, error)
}

type Config struct {
	Kind string `env:"FEDLEDGER_BLOB_STORE" envDefault:"none"`
	S3   S3Config
}

// New builds the configured store. The none kind returns a nil Store, which
// callers treat as "keep weights inline only".
func New(ctx context.Context, cfg Config) (Store, error) {
	switch strings.ToLower(cfg.Kind) {
	case KindNone, "":
		return nil, nil
	case KindMemory:
		return NewMemoryStore(), nil
	case KindS3:
		return NewS3Store(ctx, cfg.S3)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownKind, cfg.Kind)
	}
}

// CID returns the base58 encoded sha3-256 multihash of data.
func CID(data []byte) string {
	sum := sha3.Sum256(data)
	mh := make([]byte, 0, 2+len(sum))
	mh = append(mh, sha3Code, sha3Length)
	mh = append(mh, sum[:]...)

	return base58.Encode(mh)
}

// Check fails unless cid is a well formed identifier for data.
func Check(cid string, data []byte) error {
	mh, err := base58.Decode(cid)
	if err != nil || len(mh) != 2+sha3Length || mh[0] != sha3Code || mh[1] != sha3Length {
		return ErrInvalidCID
	}
	if CID(data) != cid {
		return ErrCIDMismatch
	}

	return nil
}

type memoryStore struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

func NewMemoryStore() Store {
	return &memoryStore{blobs: make(map[string][]byte)}
}

func (s *memoryStore) Put(_ context.Context, data []byte) (string, error) {
	cid := CID(data)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.blobs[cid]; !ok {
		s.blobs[cid] = append([]byte(nil), data...)
	}

	return cid, nil
}

func (s *memoryStore) Get(_ context.Context, cid string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, ok := s.blobs[cid]
	if !ok {
		return nil, pkgerrors.ErrNotFound
	}

	return append([]byte(nil), data...), nil
}
