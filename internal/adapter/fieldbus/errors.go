package fieldbus

import "errors"

// Internal framing errors. Callers see them wrapped in the shared
// adapter sentinels; these exist so tests can pin down the failure.
var (
	errBadFrame  = errors.New("fieldbus: malformed frame")
	errException = errors.New("fieldbus: slave exception")
	errTxMismatch = errors.New("fieldbus: transaction id mismatch")
)
