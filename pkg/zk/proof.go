// Package zk binds submitted weight updates to proofs of honest computation
// and checks those proofs.
package zk

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	mimcfr "github.com/consensys/gnark-crypto/ecc/bn254/fr/mimc"
	"golang.org/x/crypto/sha3"
)

var (
	ErrCommitmentMismatch = errors.New("commitment does not match submitted weights")
	ErrBindingMismatch    = errors.New("proof is bound to a different round or participant")
)

type PublicInputs struct {
	Commitment []byte `json:"commitment" cbor:"commitment"`
	Binding    []byte `json:"binding"    cbor:"binding"`
}

type Proof struct {
	Data         []byte       `json:"data"          cbor:"data"`
	PublicInputs PublicInputs `json:"public_inputs" cbor:"public_inputs"`
	Salt         []byte       `json:"salt"          cbor:"salt"`
}

// CommitmentHash is the weight commitment the proof attests to.
func (p Proof) CommitmentHash() []byte {
	return p.PublicInputs.Commitment
}

// Verifier decides whether a proof holds for the given public inputs.
// A non-nil error means the verifier itself could not run and must never
// be read as acceptance.
type Verifier interface {
	Verify(proof Proof, inputs PublicInputs) (bool, error)
}

// Digest hashes the little-endian float64 encoding of a weight vector and
// reduces it into the BN254 scalar field.
func Digest(weights []float64) []byte {
	buf := make([]byte, 8*len(weights))
	for i, w := range weights {
		binary.LittleEndian.PutUint64(buf[8*i:], math.Float64bits(w))
	}
	sum := sha3.Sum256(buf)

	return reduce(sum[:])
}

// Bind ties a proof to one round and one participant so it can not be
// replayed elsewhere.
func Bind(roundID, participantID string, salt []byte) []byte {
	h := sha3.New256()
	h.Write([]byte(roundID))
	h.Write([]byte{0})
	h.Write([]byte(participantID))
	h.Write([]byte{0})
	h.Write(salt)

	return reduce(h.Sum(nil))
}

// Commit computes MiMC(digest, binding) over BN254, the same relation the
// commitment circuit enforces.
func Commit(digest, binding []byte) ([]byte, error) {
	h := mimcfr.NewMiMC()
	for _, in := range [][]byte{digest, binding} {
		var e fr.Element
		e.SetBytes(in)
		b := e.Bytes()
		if _, err := h.Write(b[:]); err != nil {
			return nil, fmt.Errorf("failed to hash element: %w", err)
		}
	}

	return h.Sum(nil), nil
}

// Inputs recomputes the public inputs for a submission from what was
// actually received.
func Inputs(weights []float64, roundID, participantID string, salt []byte) (PublicInputs, error) {
	binding := Bind(roundID, participantID, salt)
	commitment, err := Commit(Digest(weights), binding)
	if err != nil {
		return PublicInputs{}, err
	}

	return PublicInputs{Commitment: commitment, Binding: binding}, nil
}

// Match compares the claimed public inputs of a proof with recomputed ones.
func Match(claimed, expected PublicInputs) error {
	if !bytes.Equal(claimed.Binding, expected.Binding) {
		return ErrBindingMismatch
	}
	if !bytes.Equal(claimed.Commitment, expected.Commitment) {
		return ErrCommitmentMismatch
	}

	return nil
}

func reduce(b []byte) []byte {
	var e fr.Element
	e.SetBytes(b)
	out := e.Bytes()

	return out[:]
}
