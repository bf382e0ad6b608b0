package engine

import "errors"

var (
	// ErrNotFound means the record or schedule does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrForbidden means the acting user does not own the record.
	ErrForbidden = errors.New("record belongs to another user")

	// ErrAlreadyFinalized means the record was already confirmed as taken or
	// missed. Handlers treat it as a benign no-op, not a failure.
	ErrAlreadyFinalized = errors.New("record already finalized")

	// ErrDuplicateRecord is returned by stores when an insert races with a
	// concurrent insert for the same (schedule, day). The ledger recovers it
	// by re-reading the existing record.
	ErrDuplicateRecord = errors.New("intake record already exists")
)
