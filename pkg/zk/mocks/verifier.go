package mocks

import (
	"github.com/absmach/fedledger/pkg/zk"
	"github.com/stretchr/testify/mock"
)

var _ zk.Verifier = (*MockVerifier)(nil)

type MockVerifier struct {
	mock.Mock
}

func (m *MockVerifier) Verify(proof zk.Proof, inputs zk.PublicInputs) (bool, error) {
	args := m.Called(proof, inputs)

	return args.Bool(0), args.Error(1)
}
