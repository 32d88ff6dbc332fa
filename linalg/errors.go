package linalg

import "errors"

// ErrSingularMatrix is returned when a matrix that must be inverted is singular
// or too ill-conditioned for its inverse to be trusted.
var ErrSingularMatrix = errors.New("singular matrix")
