// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package eigenlayer

import (
	"github.com/luxfi/ids"
)

// BalanceService is the external reservable-balance collaborator. Reserve
// is called synchronously inside the restake transaction; a failed
// reservation aborts the transaction and leaves no restake record.
type BalanceService interface {
	// CanReserve reports whether account can reserve amount.
	CanReserve(account ids.ShortID, amount uint64) bool

	// Reserve moves amount of the account's balance into reserve.
	Reserve(account ids.ShortID, amount uint64) error
}

// Clock supplies monotonic, non-decreasing logical time, e.g. a block
// height.
type Clock interface {
	Time() uint64
}

// Authority is the external quantum verification authority whose boolean
// decision drives the validator verification state machine.
type Authority interface {
	Decide(account ids.ShortID) bool
}

// EventSink receives one event per successful mutating call. Notification
// is fire-and-forget: it happens after commit and its failure never rolls
// back the ledger write.
type EventSink interface {
	Notify(event Event)
}
