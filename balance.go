// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package eigenlayer

import (
	"fmt"
	"sync"

	"github.com/luxfi/ids"
)

var _ BalanceService = (*LedgerBalances)(nil)

// LedgerBalances is an in-memory BalanceService. Production deployments
// wire the host ledger's reservable-balance service instead; this
// implementation backs local wiring and tests.
type LedgerBalances struct {
	mu       sync.Mutex
	balances map[ids.ShortID]uint64
	reserved map[ids.ShortID]uint64
}

func NewLedgerBalances() *LedgerBalances {
	return &LedgerBalances{
		balances: make(map[ids.ShortID]uint64),
		reserved: make(map[ids.ShortID]uint64),
	}
}

// Deposit credits amount to account's free balance.
func (l *LedgerBalances) Deposit(account ids.ShortID, amount uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balances[account] += amount
}

func (l *LedgerBalances) CanReserve(account ids.ShortID, amount uint64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balances[account] >= amount
}

func (l *LedgerBalances) Reserve(account ids.ShortID, amount uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.balances[account] < amount {
		return fmt.Errorf("%w: account %s has %d, needs %d",
			ErrInsufficientBalance, account, l.balances[account], amount)
	}
	l.balances[account] -= amount
	l.reserved[account] += amount
	return nil
}

// Reserved returns the amount currently reserved for account.
func (l *LedgerBalances) Reserved(account ids.ShortID) uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.reserved[account]
}
