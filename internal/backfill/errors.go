package backfill

import (
	"errors"

	"github.com/steveyegge/calcsnap/internal/calculation"
)

// Every error returned by the pass wraps exactly one of these. All of them
// abort the pass; there is no partial-success mode.
var (
	ErrSchema            = errors.New("schema change failed")
	ErrQuery             = errors.New("legacy query failed")
	ErrConflictingHeader = errors.New("conflicting calculation headers")
	ErrInvalidIdentifier = errors.New("invalid calculation identifier")
	ErrWrite             = errors.New("snapshot write failed")

	// ErrUnknownClassification and ErrMalformedPayload are re-exported from
	// the domain package so callers need a single import to classify errors.
	ErrUnknownClassification = calculation.ErrUnknownClassification
	ErrMalformedPayload      = calculation.ErrMalformedForeignIncome
)
