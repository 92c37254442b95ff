package translator

import "errors"

// Translation error kinds (spec §7 "Translation"). These are contained:
// the session logs and continues rather than tearing down, matching the
// propagation policy for translation-level mismatches.
var (
	ErrUnknownV2JobID     = errors.New("translator: unknown v2 job id")
	ErrNoChannel          = errors.New("translator: no open channel")
	ErrUnexpectedV1Response = errors.New("translator: v1 response has no matching pending request")
)
