package database

import "errors"

// Transaction-level validation errors (spec.md §4.2, §7 TxInvalid).
var (
	ErrInvalidSignature    = errors.New("database: invalid transaction signature")
	ErrUnknownSender       = errors.New("database: sender account does not exist")
	ErrBadNonce            = errors.New("database: transaction nonce does not match sender's next nonce")
	ErrInsufficientBalance = errors.New("database: sender balance is insufficient")
)

// Block-level validation errors (spec.md §4.3, §7 BlockInvalid).
var (
	ErrMissingParent      = errors.New("database: parent block state is not known")
	ErrPoWUnsatisfied     = errors.New("database: block hash does not satisfy its difficulty target")
	ErrDifficultyMismatch = errors.New("database: block difficulty does not match parent's (fixed-difficulty chain)")
	ErrDuplicateBlock     = errors.New("database: block already present")
)
