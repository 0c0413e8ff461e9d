package errors

import "errors"

var (
	ErrNotFound     = errors.New("not found")
	ErrEmptyKey     = errors.New("empty key")
	ErrInvalidData  = errors.New("invalid data type")
	ErrEntityExists = errors.New("entity already exists")

	// ErrConflict is returned when an operation collides with an open round.
	ErrConflict = errors.New("conflicting round in progress")
	// ErrInvalidState is returned when a round is not in a state that accepts the operation.
	ErrInvalidState = errors.New("invalid round state")
	// ErrExpired is returned when a submission arrives after the round deadline.
	ErrExpired = errors.New("round deadline passed")
	// ErrDuplicate is returned when a participant already contributed to the round.
	ErrDuplicate = errors.New("duplicate contribution")
	// ErrInvalidProof is returned when the commitment or proof does not check out.
	ErrInvalidProof = errors.New("invalid proof")
	// ErrInsufficientContributions is returned when there is not enough input to aggregate.
	ErrInsufficientContributions = errors.New("insufficient contributions")
	// ErrVerifierUnavailable means the proof verifier failed; never treated as acceptance.
	ErrVerifierUnavailable = errors.New("proof verifier unavailable")

	ErrUnauthorizedParticipant = errors.New("participant not registered or inactive")
	ErrMalformedContribution   = errors.New("malformed contribution")
	ErrInvalidArgument         = errors.New("invalid argument")
)
