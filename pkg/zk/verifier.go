package zk

import (
	"bytes"
	"crypto/subtle"
	"errors"
	"fmt"
	"os"

	pkgerrors "github.com/absmach/fedledger/pkg/errors"
	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/frontend"
	"golang.org/x/crypto/sha3"
)

const (
	KindGroth16 = "groth16"
	KindDigest  = "digest"
)

var ErrUnknownVerifier = errors.New("unknown proof verifier")

type Config struct {
	Kind             string `env:"FEDLEDGER_VERIFIER"         envDefault:"groth16"`
	VerifyingKeyPath string `env:"FEDLEDGER_VERIFYING_KEY"`
}

// New builds the configured verifier. There is no pass-through verifier: a
// missing key or unknown kind fails here so the service refuses to start.
func New(cfg Config) (Verifier, error) {
	switch cfg.Kind {
	case KindGroth16:
		if cfg.VerifyingKeyPath == "" {
			return nil, fmt.Errorf("%w: verifying key path not set", pkgerrors.ErrVerifierUnavailable)
		}
		data, err := os.ReadFile(cfg.VerifyingKeyPath)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", pkgerrors.ErrVerifierUnavailable, err)
		}

		v, err := NewGroth16Verifier(data)
		if err != nil {
			return nil, err
		}

		return v, nil
	case KindDigest:
		return DigestVerifier{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownVerifier, cfg.Kind)
	}
}

type Groth16Verifier struct {
	vk groth16.VerifyingKey
}

var _ Verifier = (*Groth16Verifier)(nil)

// NewGroth16Verifier loads a serialized BN254 verifying key for the
// commitment circuit.
func NewGroth16Verifier(vkData []byte) (*Groth16Verifier, error) {
	vk := groth16.NewVerifyingKey(ecc.BN254)
	if _, err := vk.ReadFrom(bytes.NewReader(vkData)); err != nil {
		return nil, fmt.Errorf("%w: failed to decode verifying key: %w", pkgerrors.ErrVerifierUnavailable, err)
	}

	return &Groth16Verifier{vk: vk}, nil
}

func NewGroth16VerifierFromKey(vk groth16.VerifyingKey) (*Groth16Verifier, error) {
	if vk == nil {
		return nil, fmt.Errorf("%w: nil verifying key", pkgerrors.ErrVerifierUnavailable)
	}

	return &Groth16Verifier{vk: vk}, nil
}

func (v *Groth16Verifier) Verify(p Proof, inputs PublicInputs) (bool, error) {
	if v == nil || v.vk == nil {
		return false, pkgerrors.ErrVerifierUnavailable
	}

	proof := groth16.NewProof(ecc.BN254)
	if _, err := proof.ReadFrom(bytes.NewReader(p.Data)); err != nil {
		return false, nil
	}

	assignment := &CommitmentCircuit{
		Commitment: fieldValue(inputs.Commitment),
		Binding:    fieldValue(inputs.Binding),
	}
	publicWitness, err := frontend.NewWitness(assignment, ecc.BN254.ScalarField(), frontend.PublicOnly())
	if err != nil {
		return false, fmt.Errorf("%w: failed to build public witness: %w", pkgerrors.ErrVerifierUnavailable, err)
	}

	if err := groth16.Verify(proof, v.vk, publicWitness); err != nil {
		return false, nil
	}

	return true, nil
}

// DigestVerifier is the development verifier. It accepts a proof whose data
// is sha3-256(commitment || binding). It still checks something, unlike a
// disabled verifier, but proves nothing about the training itself.
type DigestVerifier struct{}

var _ Verifier = DigestVerifier{}

func (DigestVerifier) Verify(p Proof, inputs PublicInputs) (bool, error) {
	want := DigestProofData(inputs)

	return subtle.ConstantTimeCompare(p.Data, want) == 1, nil
}

func DigestProofData(inputs PublicInputs) []byte {
	h := sha3.New256()
	h.Write(inputs.Commitment)
	h.Write(inputs.Binding)

	return h.Sum(nil)
}

// DigestProof builds a proof accepted by DigestVerifier.
func DigestProof(weights []float64, roundID, participantID string, salt []byte) (Proof, error) {
	inputs, err := Inputs(weights, roundID, participantID, salt)
	if err != nil {
		return Proof{}, err
	}

	return Proof{Data: DigestProofData(inputs), PublicInputs: inputs, Salt: salt}, nil
}
