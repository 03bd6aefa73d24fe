package config

import "errors"

// ErrConfig marks the fail-fast class of errors: malformed site
// specifications, unrecognized technologies, mismatched year/resource
// pairings. Anything wrapping ErrConfig is surfaced to the caller before a
// single chunk is dispatched and is never retried.
var ErrConfig = errors.New("invalid run configuration")
