// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package eigenlayer

import (
	"errors"

	"github.com/luxfi/eigenlayer/qec"
)

// The error kinds surfaced to callers. Every failure is a typed, recoverable
// result; nothing in this package panics on a rejected operation.
var (
	ErrAlreadyRegistered    = errors.New("validator already registered")
	ErrNotRegistered        = errors.New("validator not registered")
	ErrMinRestakeNotMet     = errors.New("minimum restake amount not met")
	ErrInsufficientBalance  = errors.New("insufficient balance")
	ErrInvalidOperationType = errors.New("invalid operation type")
	ErrVerificationFailed   = errors.New("quantum verification failed")

	// ErrErrorCorrection is uniform at this boundary regardless of which
	// internal stage rejected the operation.
	ErrErrorCorrection = qec.ErrErrorCorrection
)
