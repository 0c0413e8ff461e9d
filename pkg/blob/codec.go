package blob

import (
	"context"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// EncodeWeights serializes a weight vector as a CBOR array of float64.
func EncodeWeights(weights []float64) ([]byte, error) {
	data, err := cbor.Marshal(weights)
	if err != nil {
		return nil, fmt.Errorf("encode weights: %w", err)
	}

	return data, nil
}

func DecodeWeights(data []byte) ([]float64, error) {
	var weights []float64
	if err := cbor.Unmarshal(data, &weights); err != nil {
		return nil, fmt.Errorf("decode weights: %w", err)
	}

	return weights, nil
}

// PutWeights encodes weights and stores them, returning the content id.
func PutWeights(ctx context.Context, s Store, weights []float64) (string, error) {
	data, err := EncodeWeights(weights)
	if err != nil {
		return "", err
	}

	return s.Put(ctx, data)
}

func GetWeights(ctx context.Context, s Store, cid string) ([]float64, error) {
	data, err := s.Get(ctx, cid)
	if err != nil {
		return nil, err
	}

	return DecodeWeights(data)
}
