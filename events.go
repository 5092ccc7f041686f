// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package eigenlayer

import (
	"github.com/luxfi/ids"

	"github.com/luxfi/eigenlayer/state"
)

// Event is implemented by every notification emitted after a successful
// mutating call.
type Event interface {
	event()
}

// ValidatorRegistered is emitted after a validator registers.
type ValidatorRegistered struct {
	Account ids.ShortID
	Hash    ids.ID
}

// TokensRestaked is emitted after a restake commits.
type TokensRestaked struct {
	Account    ids.ShortID
	Amount     uint64
	UnlockTime uint64
}

// ActorXExecuted is emitted after an ActorX operation commits.
type ActorXExecuted struct {
	Account     ids.ShortID
	OperationID uint64
	Type        state.OperationType
}

// ValidatorVerified is emitted after a verification decision commits.
type ValidatorVerified struct {
	Account  ids.ShortID
	Verified bool
}

func (ValidatorRegistered) event() {}
func (TokensRestaked) event()      {}
func (ActorXExecuted) event()      {}
func (ValidatorVerified) event()   {}
