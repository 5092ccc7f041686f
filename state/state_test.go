// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package state

import (
	"errors"
	"testing"

	"github.com/luxfi/database"
	"github.com/luxfi/database/memdb"
	"github.com/luxfi/ids"
	"github.com/stretchr/testify/require"
)

const testCacheSize = 16

func newTestState(t *testing.T) *State {
	t.Helper()
	s, err := New(memdb.New(), testCacheSize)
	require.NoError(t, err)
	return s
}

func TestValidatorRoundTrip(t *testing.T) {
	require := require.New(t)
	s := newTestState(t)

	account := ids.GenerateTestShortID()
	_, err := s.GetValidator(account)
	require.ErrorIs(err, ErrValidatorNotFound)

	record := &ValidatorRecord{
		Account:        account,
		CredentialHash: ids.GenerateTestID(),
		RegisteredAt:   42,
		Status:         Registered,
	}
	require.NoError(s.PutValidator(record))
	require.NoError(s.Commit())

	got, err := s.GetValidator(account)
	require.NoError(err)
	require.Equal(record, got)
}

func TestValidatorPersists(t *testing.T) {
	require := require.New(t)
	db := memdb.New()

	s, err := New(db, testCacheSize)
	require.NoError(err)

	account := ids.GenerateTestShortID()
	record := &ValidatorRecord{
		Account:        account,
		CredentialHash: ids.GenerateTestID(),
		RegisteredAt:   7,
		Status:         Verified,
	}
	require.NoError(s.PutValidator(record))
	require.NoError(s.AddToActiveSet(account))
	require.NoError(s.Commit())

	// Reopen over the same database.
	reopened, err := New(db, testCacheSize)
	require.NoError(err)

	got, err := reopened.GetValidator(account)
	require.NoError(err)
	require.Equal(record, got)
	require.Equal([]ids.ShortID{account}, reopened.ActiveSet())
}

func TestAbortRollsBack(t *testing.T) {
	require := require.New(t)
	s := newTestState(t)

	account := ids.GenerateTestShortID()
	require.NoError(s.PutValidator(&ValidatorRecord{Account: account}))
	require.NoError(s.AddToActiveSet(account))

	id, err := s.AllocateOperationID()
	require.NoError(err)
	require.Zero(id)

	s.Abort()

	_, err = s.GetValidator(account)
	require.ErrorIs(err, ErrValidatorNotFound)
	require.Empty(s.ActiveSet())

	// The aborted allocation was rolled back with everything else.
	id, err = s.AllocateOperationID()
	require.NoError(err)
	require.Zero(id)
}

func TestActiveSetDedupeAndOrder(t *testing.T) {
	require := require.New(t)
	s := newTestState(t)

	first := ids.GenerateTestShortID()
	second := ids.GenerateTestShortID()

	require.NoError(s.AddToActiveSet(first))
	require.NoError(s.AddToActiveSet(second))
	require.NoError(s.AddToActiveSet(first))
	require.NoError(s.Commit())

	require.Equal([]ids.ShortID{first, second}, s.ActiveSet())
}

func TestRestakeOverwrite(t *testing.T) {
	require := require.New(t)
	s := newTestState(t)

	account := ids.GenerateTestShortID()
	_, err := s.GetRestake(account)
	require.ErrorIs(err, ErrRestakeNotFound)

	require.NoError(s.PutRestake(&RestakeRecord{
		Account:    account,
		Amount:     500,
		StartTime:  10,
		UnlockTime: 110,
	}))
	require.NoError(s.PutRestake(&RestakeRecord{
		Account:    account,
		Amount:     900,
		StartTime:  20,
		UnlockTime: 250,
	}))
	require.NoError(s.Commit())

	got, err := s.GetRestake(account)
	require.NoError(err)
	require.Equal(uint64(900), got.Amount)
	require.Equal(uint64(20), got.StartTime)
	require.Equal(uint64(250), got.UnlockTime)
}

func TestOperationWriteOnce(t *testing.T) {
	require := require.New(t)
	s := newTestState(t)

	_, err := s.GetOperation(0)
	require.ErrorIs(err, ErrOperationNotFound)

	operation := &ActorXOperation{
		ID:        0,
		Type:      Fill,
		Executor:  ids.GenerateTestShortID(),
		Target:    ids.GenerateTestShortID(),
		ProofHash: ids.GenerateTestID(),
	}
	require.NoError(s.PutOperation(operation))

	err = s.PutOperation(&ActorXOperation{ID: 0, Type: Kill})
	require.ErrorIs(err, ErrOperationExists)

	require.NoError(s.Commit())
	got, err := s.GetOperation(0)
	require.NoError(err)
	require.Equal(operation, got)
}

func TestOperationIDAllocatorMonotonic(t *testing.T) {
	require := require.New(t)
	db := memdb.New()

	s, err := New(db, testCacheSize)
	require.NoError(err)

	for want := uint64(0); want < 5; want++ {
		id, err := s.AllocateOperationID()
		require.NoError(err)
		require.Equal(want, id)
	}
	require.NoError(s.Commit())

	// The allocator continues from committed state after reopen.
	reopened, err := New(db, testCacheSize)
	require.NoError(err)
	id, err := reopened.AllocateOperationID()
	require.NoError(err)
	require.Equal(uint64(5), id)
}

func TestOperationTypeValid(t *testing.T) {
	require := require.New(t)

	require.True(Fill.Valid())
	require.True(Kill.Valid())
	require.False(OperationType(2).Valid())
	require.Equal("fill", Fill.String())
	require.Equal("kill", Kill.String())
}

func TestStatusString(t *testing.T) {
	require := require.New(t)

	require.Equal("registered", Registered.String())
	require.Equal("verified", Verified.String())
	require.Equal("failed", Failed.String())
}

type flakyDB struct {
	database.Database
	failReads bool
}

func (db *flakyDB) Get(key []byte) ([]byte, error) {
	if db.failReads {
		return nil, errReadsDown
	}
	return db.Database.Get(key)
}

var errReadsDown = errors.New("reads unavailable")

func TestAbortReloadFailureLatches(t *testing.T) {
	require := require.New(t)

	db := &flakyDB{Database: memdb.New()}
	s, err := New(db, testCacheSize)
	require.NoError(err)

	id, err := s.AllocateOperationID()
	require.NoError(err)
	require.Zero(id)
	require.NoError(s.Commit())

	// Stage another allocation, then break the store underneath the abort.
	_, err = s.AllocateOperationID()
	require.NoError(err)
	db.failReads = true
	s.Abort()

	// With the allocator unrecoverable, staging and committing refuse to
	// run rather than re-issue committed IDs from the zeroed views.
	_, err = s.AllocateOperationID()
	require.ErrorIs(err, ErrStateCorrupted)
	require.ErrorIs(s.Commit(), ErrStateCorrupted)
	require.ErrorIs(s.PutValidator(&ValidatorRecord{Account: ids.GenerateTestShortID()}), ErrStateCorrupted)
}
