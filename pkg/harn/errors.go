package harn

import "errors"

var (
	// ErrNilPKG is returned when the private key generator is missing
	ErrNilPKG = errors.New("private key generator cannot be nil")

	// ErrInvalidIdentity is returned when an identity is not a unit mod n
	ErrInvalidIdentity = errors.New("identity must be a unit modulo n greater than 1")

	// ErrNoSigners is returned when a session has no signers
	ErrNoSigners = errors.New("at least one signer is required")

	// ErrDuplicateSigner is returned when a signer appears twice
	ErrDuplicateSigner = errors.New("duplicate signer")

	// ErrUnknownSigner is returned when a signer name is not registered
	ErrUnknownSigner = errors.New("unknown signer")

	// ErrNotParticipant is returned when a signer answers a session it is not part of
	ErrNotParticipant = errors.New("signer is not a session participant")

	// ErrInvalidNonce is returned when a nonce is not a unit mod n
	ErrInvalidNonce = errors.New("nonce must be a unit modulo n")

	// ErrSessionConflict is returned when a signer is asked to answer a
	// session it already answered under a different aggregate commitment
	ErrSessionConflict = errors.New("session already answered for a different aggregate commitment")

	// ErrInvalidCommitment is returned when a commitment is outside Z_n*
	ErrInvalidCommitment = errors.New("invalid commitment")

	// ErrCommitmentMismatch is returned when partial signatures disagree on the commitment set
	ErrCommitmentMismatch = errors.New("partial signatures do not match the aggregate commitment")

	// ErrInvalidPartial is returned when a partial signature fails verification
	ErrInvalidPartial = errors.New("invalid partial signature")

	// ErrInvalidSignature is returned when a multi-signature fails verification
	ErrInvalidSignature = errors.New("invalid multi-signature")

	// ErrEmptyMessage is returned when asked to sign an empty message
	ErrEmptyMessage = errors.New("message cannot be empty")
)
