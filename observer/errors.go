package observer

import (
	"errors"

	"github.com/westphae/fwobserver/linalg"
)

var (
	// ErrNumericalInstability is returned when the ground speed estimate gets
	// too close to zero for the course and ground-speed dynamics, or when
	// propagation produces a non-finite state.
	ErrNumericalInstability = errors.New("numerical instability")

	// ErrSingularMatrix is returned when an innovation covariance R + C·P·Cᵀ
	// cannot be inverted.
	ErrSingularMatrix = linalg.ErrSingularMatrix

	// ErrInvalidParams is returned by Params.Validate.
	ErrInvalidParams = errors.New("invalid observer parameters")
)
