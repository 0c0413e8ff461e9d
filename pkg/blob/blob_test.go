package blob_test

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"testing"

	"github.com/absmach/fedledger/pkg/blob"
	pkgerrors "github.com/absmach/fedledger/pkg/errors"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBucket struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newFakeBucket() *fakeBucket {
	return &fakeBucket{objects: make(map[string][]byte)}
}

func (b *fakeBucket) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.objects[*in.Key] = data

	return &s3.PutObjectOutput{}, nil
}

func (b *fakeBucket) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	data, ok := b.objects[*in.Key]
	if !ok {
		return nil, &s3types.NoSuchKey{}
	}

	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func TestCID(t *testing.T) {
	a := blob.CID([]byte("weights"))
	assert.Equal(t, a, blob.CID([]byte("weights")), "content ids are deterministic")
	assert.NotEqual(t, a, blob.CID([]byte("other weights")))

	cases := []struct {
		desc string
		cid  string
		data []byte
		err  error
	}{
		{desc: "matching content", cid: a, data: []byte("weights"), err: nil},
		{desc: "different content", cid: a, data: []byte("tampered"), err: blob.ErrCIDMismatch},
		{desc: "not base58", cid: "0OIl", data: []byte("weights"), err: blob.ErrInvalidCID},
		{desc: "wrong multihash", cid: "3yZe7d", data: []byte("weights"), err: blob.ErrInvalidCID},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			err := blob.Check(tc.cid, tc.data)
			assert.Equal(t, tc.err, err, fmt.Sprintf("%s: expected error %v, got %v", tc.desc, tc.err, err))
		})
	}
}

func TestStores(t *testing.T) {
	ctx := context.Background()
	bucket := newFakeBucket()

	stores := map[string]blob.Store{
		"memory": blob.NewMemoryStore(),
		"s3":     blob.NewS3StoreWithClient(bucket, "test-bucket", "weights/"),
	}

	for name, s := range stores {
		t.Run(name, func(t *testing.T) {
			weights := []float64{0.25, -1.5, 3}
			cid, err := blob.PutWeights(ctx, s, weights)
			require.Nil(t, err)
			assert.Nil(t, blob.Check(cid, mustEncode(t, weights)))

			got, err := blob.GetWeights(ctx, s, cid)
			require.Nil(t, err)
			assert.Equal(t, weights, got)

			_, err = s.Get(ctx, blob.CID([]byte("missing")))
			assert.Equal(t, pkgerrors.ErrNotFound, err)
		})
	}
}

func TestS3StoreDetectsCorruption(t *testing.T) {
	ctx := context.Background()
	bucket := newFakeBucket()
	s := blob.NewS3StoreWithClient(bucket, "test-bucket", "")

	cid, err := s.Put(ctx, []byte("original"))
	require.Nil(t, err)

	other, err := s.Put(ctx, []byte("replacement"))
	require.Nil(t, err)
	bucket.objects[cid] = bucket.objects[other]

	_, err = s.Get(ctx, cid)
	assert.Equal(t, blob.ErrCIDMismatch, err)
}

func TestNew(t *testing.T) {
	ctx := context.Background()

	s, err := blob.New(ctx, blob.Config{Kind: blob.KindNone})
	assert.Nil(t, err)
	assert.Nil(t, s)

	s, err = blob.New(ctx, blob.Config{Kind: blob.KindMemory})
	assert.Nil(t, err)
	assert.NotNil(t, s)

	_, err = blob.New(ctx, blob.Config{Kind: blob.KindS3})
	assert.Equal(t, blob.ErrMissingBucket, err)

	_, err = blob.New(ctx, blob.Config{Kind: "ipfs"})
	assert.ErrorIs(t, err, blob.ErrUnknownKind)
}

func mustEncode(t *testing.T, weights []float64) []byte {
	t.Helper()
	data, err := blob.EncodeWeights(weights)
	require.Nil(t, err)

	return data
}
