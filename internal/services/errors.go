package services

import "errors"

// ErrNothingChanged is returned when the backend acknowledged a mutation
// that matched no record.
var ErrNothingChanged = errors.New("no record was changed")
