package contracts

import "errors"

var (
	// ErrReverted is wrapped by implementations when a call or transaction reverts.
	ErrReverted = errors.New("execution reverted")

	// ErrNoCode is returned when an address holds no contract code.
	ErrNoCode = errors.New("no contract code at address")
)
