package ledger

import "errors"

// Ledger errors
var (
	ErrInvalidRecord      = errors.New("invalid record")
	ErrDuplicateSequence  = errors.New("sequence already stored")
	ErrStoreCorrupted     = errors.New("store corrupted")
	ErrVersionMismatch    = errors.New("store version mismatch")
	ErrPassphraseRequired = errors.New("store is encrypted and no passphrase is configured")
	ErrInvalidPassphrase  = errors.New("invalid store passphrase")
	ErrEncryptionFailed   = errors.New("encryption failed")
	ErrPermissionDenied   = errors.New("permission denied")
	ErrInvalidNode        = errors.New("invalid node")
	ErrStoreClosed        = errors.New("store is closed")
)
