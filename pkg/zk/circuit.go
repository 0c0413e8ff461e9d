package zk

import (
	"bytes"
	"fmt"
	"io"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/constraint"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/frontend/cs/r1cs"
	mimcstd "github.com/consensys/gnark/std/hash/mimc"
)

// CommitmentCircuit proves knowledge of a weight digest whose MiMC hash with
// the round binding equals the public commitment.
type CommitmentCircuit struct {
	Commitment frontend.Variable `gnark:",public"`
	Binding    frontend.Variable `gnark:",public"`

	Digest frontend.Variable `gnark:",private"`
}

func (c *CommitmentCircuit) Define(api frontend.API) error {
	hasher, err := mimcstd.NewMiMC(api)
	if err != nil {
		return fmt.Errorf("failed to initialize MiMC hasher: %w", err)
	}
	hasher.Write(c.Digest, c.Binding)
	api.AssertIsEqual(hasher.Sum(), c.Commitment)

	return nil
}

// Prover compiles the commitment circuit and runs an unsafe local setup.
// It exists for development nodes and tests; production keys come from a
// proper ceremony and only the verifying key reaches the coordinator.
type Prover struct {
	ccs constraint.ConstraintSystem
	pk  groth16.ProvingKey
	vk  groth16.VerifyingKey
}

func NewProver() (*Prover, error) {
	ccs, err := frontend.Compile(ecc.BN254.ScalarField(), r1cs.NewBuilder, &CommitmentCircuit{})
	if err != nil {
		return nil, fmt.Errorf("failed to compile commitment circuit: %w", err)
	}

	pk, vk, err := groth16.Setup(ccs)
	if err != nil {
		return nil, fmt.Errorf("groth16 setup failed: %w", err)
	}

	return &Prover{ccs: ccs, pk: pk, vk: vk}, nil
}

func (p *Prover) VerifyingKey() groth16.VerifyingKey {
	return p.vk
}

func (p *Prover) WriteVerifyingKey(w io.Writer) error {
	if _, err := p.vk.WriteTo(w); err != nil {
		return fmt.Errorf("failed to serialize verifying key: %w", err)
	}

	return nil
}

// Prove builds a proof for the given update.
func (p *Prover) Prove(weights []float64, roundID, participantID string, salt []byte) (Proof, error) {
	digest := Digest(weights)
	inputs, err := Inputs(weights, roundID, participantID, salt)
	if err != nil {
		return Proof{}, err
	}

	assignment := &CommitmentCircuit{
		Commitment: fieldValue(inputs.Commitment),
		Binding:    fieldValue(inputs.Binding),
		Digest:     fieldValue(digest),
	}
	witness, err := frontend.NewWitness(assignment, ecc.BN254.ScalarField())
	if err != nil {
		return Proof{}, fmt.Errorf("failed to build witness: %w", err)
	}

	proof, err := groth16.Prove(p.ccs, p.pk, witness)
	if err != nil {
		return Proof{}, fmt.Errorf("failed to generate proof: %w", err)
	}

	var buf bytes.Buffer
	if _, err := proof.WriteTo(&buf); err != nil {
		return Proof{}, fmt.Errorf("failed to serialize proof: %w", err)
	}

	return Proof{Data: buf.Bytes(), PublicInputs: inputs, Salt: salt}, nil
}

func fieldValue(b []byte) *big.Int {
	var e fr.Element
	e.SetBytes(b)

	return e.BigInt(new(big.Int))
}
