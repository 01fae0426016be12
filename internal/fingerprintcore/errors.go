package fingerprintcore

import "errors"

// ErrMalformedSnapshot covers snapshot parse failures: invalid JSON/plist,
// an unrecognized TSV header, or a malformed TSV row (spec.md §7
// "malformed-input").
var ErrMalformedSnapshot = errors.New("malformed snapshot")
