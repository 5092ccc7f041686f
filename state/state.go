// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package state manages the persistent ledgers of the eigenlayer engine:
// the validator registry, the restake ledger, and the ActorX operation
// ledger. All writes are staged on a versioned database and become visible
// only on Commit, so every intent is all-or-nothing.
package state

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/luxfi/cache/lru"
	"github.com/luxfi/database"
	"github.com/luxfi/database/prefixdb"
	"github.com/luxfi/database/versiondb"
	"github.com/luxfi/ids"
	"github.com/luxfi/math/set"
)

var (
	ErrValidatorNotFound = errors.New("validator not found")
	ErrRestakeNotFound   = errors.New("restake record not found")
	ErrOperationNotFound = errors.New("operation not found")
	ErrOperationExists   = errors.New("operation record is write-once")
	ErrStateCorrupted    = errors.New("state corrupted")

	// Database prefixes
	validatorPrefix = []byte("validator")
	restakePrefix   = []byte("restake")
	operationPrefix = []byte("operation")
	singletonPrefix = []byte("singleton")

	// Singleton keys
	activeSetKey       = []byte("activeSet")
	nextOperationIDKey = []byte("nextOperationID")
)

// Status is the lifecycle state of a validator record.
type Status uint8

const (
	Registered Status = iota
	Verified
	Failed
)

func (s Status) String() string {
	switch s {
	case Registered:
		return "registered"
	case Verified:
		return "verified"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("unknown status %d", s)
	}
}

// OperationType distinguishes the two ActorX variants. The ledger treats
// them symmetrically; only downstream collaborators interpret them.
type OperationType uint8

const (
	Fill OperationType = iota
	Kill
)

func (t OperationType) Valid() bool {
	return t == Fill || t == Kill
}

func (t OperationType) String() string {
	switch t {
	case Fill:
		return "fill"
	case Kill:
		return "kill"
	default:
		return fmt.Sprintf("unknown operation type %d", t)
	}
}

// ValidatorRecord is the append-only identity record of a validator.
type ValidatorRecord struct {
	Account        ids.ShortID `serialize:"true" json:"account"`
	CredentialHash ids.ID      `serialize:"true" json:"credentialHash"`
	RegisteredAt   uint64      `serialize:"true" json:"registeredAt"`
	Status         Status      `serialize:"true" json:"status"`
}

// RestakeRecord is the time-locked bond backing a validator. One active
// record per validator; a new restake overwrites the previous one.
type RestakeRecord struct {
	Account    ids.ShortID `serialize:"true" json:"account"`
	Amount     uint64      `serialize:"true" json:"amount"`
	StartTime  uint64      `serialize:"true" json:"startTime"`
	UnlockTime uint64      `serialize:"true" json:"unlockTime"`
}

// ActorXOperation is the write-once record of an executed fill/kill
// operation. Executor and target are copied identifiers, never live
// references into the validator registry.
type ActorXOperation struct {
	ID         uint64        `serialize:"true" json:"id"`
	Type       OperationType `serialize:"true" json:"type"`
	Executor   ids.ShortID   `serialize:"true" json:"executor"`
	Target     ids.ShortID   `serialize:"true" json:"target"`
	ExecutedAt uint64        `serialize:"true" json:"executedAt"`
	ProofHash  ids.ID        `serialize:"true" json:"proofHash"`
}

// activeSet is the persisted form of the active validator set.
type activeSet struct {
	Members []ids.ShortID `serialize:"true"`
}

// State owns the three ledgers. Mutations are staged on the versioned
// database until Commit; Abort discards everything staged since the last
// Commit.
type State struct {
	mu sync.RWMutex

	baseDB      *versiondb.Database
	validatorDB database.Database
	restakeDB   database.Database
	operationDB database.Database
	singletonDB database.Database

	validatorCache *lru.Cache[ids.ShortID, *ValidatorRecord]

	active      []ids.ShortID
	activeIndex set.Set[ids.ShortID]

	nextOperationID uint64

	// Set when the post-abort reload fails; once set, every staging and
	// commit operation returns it so that the zeroed views (in particular
	// the operation ID allocator) can never reach the database.
	loadErr error
}

// New creates a state manager over db and loads the persisted singletons.
func New(db database.Database, validatorCacheSize int) (*State, error) {
	baseDB := versiondb.New(db)
	s := &State{
		baseDB:         baseDB,
		validatorDB:    prefixdb.New(validatorPrefix, baseDB),
		restakeDB:      prefixdb.New(restakePrefix, baseDB),
		operationDB:    prefixdb.New(operationPrefix, baseDB),
		singletonDB:    prefixdb.New(singletonPrefix, baseDB),
		validatorCache: lru.NewCache[ids.ShortID, *ValidatorRecord](validatorCacheSize),
		activeIndex:    make(set.Set[ids.ShortID]),
	}
	if err := s.load(); err != nil {
		return nil, fmt.Errorf("failed to load state: %w", err)
	}
	return s, nil
}

func (s *State) load() error {
	activeBytes, err := s.singletonDB.Get(activeSetKey)
	switch {
	case err == nil:
		var persisted activeSet
		if _, err := Codec.Unmarshal(activeBytes, &persisted); err != nil {
			return fmt.Errorf("failed to parse active set: %w", err)
		}
		s.active = persisted.Members
		for _, account := range persisted.Members {
			s.activeIndex.Add(account)
		}
	case errors.Is(err, database.ErrNotFound):
	default:
		return err
	}

	idBytes, err := s.singletonDB.Get(nextOperationIDKey)
	switch {
	case err == nil:
		if len(idBytes) != database.Uint64Size {
			return fmt.Errorf("corrupt operation allocator: %d bytes", len(idBytes))
		}
		s.nextOperationID = binary.BigEndian.Uint64(idBytes)
	case errors.Is(err, database.ErrNotFound):
	default:
		return err
	}
	return nil
}

// GetValidator returns the validator record for account, or
// ErrValidatorNotFound.
func (s *State) GetValidator(account ids.ShortID) (*ValidatorRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if record, ok := s.validatorCache.Get(account); ok {
		return record, nil
	}

	recordBytes, err := s.validatorDB.Get(account[:])
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, ErrValidatorNotFound
		}
		return nil, err
	}

	record := &ValidatorRecord{}
	if _, err := Codec.Unmarshal(recordBytes, record); err != nil {
		return nil, fmt.Errorf("failed to parse validator record: %w", err)
	}
	s.validatorCache.Put(account, record)
	return record, nil
}

// PutValidator stages a validator record write.
func (s *State) PutValidator(record *ValidatorRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.loadErr != nil {
		return s.loadErr
	}

	recordBytes, err := Codec.Marshal(CodecVersion, record)
	if err != nil {
		return fmt.Errorf("failed to encode validator record: %w", err)
	}
	if err := s.validatorDB.Put(record.Account[:], recordBytes); err != nil {
		return err
	}
	s.validatorCache.Put(record.Account, record)
	return nil
}

// ActiveSet returns a copy of the ordered active validator set.
func (s *State) ActiveSet() []ids.ShortID {
	s.mu.RLock()
	defer s.mu.RUnlock()

	members := make([]ids.ShortID, len(s.active))
	copy(members, s.active)
	return members
}

// AddToActiveSet stages the insertion of account into the active set.
// Adding a member twice is a no-op; ordering is by first insertion.
func (s *State) AddToActiveSet(account ids.ShortID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.loadErr != nil {
		return s.loadErr
	}
	if s.activeIndex.Contains(account) {
		return nil
	}

	members := append(s.active, account)
	setBytes, err := Codec.Marshal(CodecVersion, &activeSet{Members: members})
	if err != nil {
		return fmt.Errorf("failed to encode active set: %w", err)
	}
	if err := s.singletonDB.Put(activeSetKey, setBytes); err != nil {
		return err
	}
	s.active = members
	s.activeIndex.Add(account)
	return nil
}

// GetRestake returns the restake record for account, or ErrRestakeNotFound.
func (s *State) GetRestake(account ids.ShortID) (*RestakeRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	recordBytes, err := s.restakeDB.Get(account[:])
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, ErrRestakeNotFound
		}
		return nil, err
	}

	record := &RestakeRecord{}
	if _, err := Codec.Unmarshal(recordBytes, record); err != nil {
		return nil, fmt.Errorf("failed to parse restake record: %w", err)
	}
	return record, nil
}

// PutRestake stages a restake record write, overwriting any previous record
// for the same account.
func (s *State) PutRestake(record *RestakeRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.loadErr != nil {
		return s.loadErr
	}

	recordBytes, err := Codec.Marshal(CodecVersion, record)
	if err != nil {
		return fmt.Errorf("failed to encode restake record: %w", err)
	}
	return s.restakeDB.Put(record.Account[:], recordBytes)
}

// GetOperation returns the ActorX operation with the given ID, or
// ErrOperationNotFound.
func (s *State) GetOperation(id uint64) (*ActorXOperation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	operationBytes, err := s.operationDB.Get(operationKey(id))
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, ErrOperationNotFound
		}
		return nil, err
	}

	operation := &ActorXOperation{}
	if _, err := Codec.Unmarshal(operationBytes, operation); err != nil {
		return nil, fmt.Errorf("failed to parse operation record: %w", err)
	}
	return operation, nil
}

// PutOperation stages a write-once operation record. Writing an ID that
// already has a record fails with ErrOperationExists.
func (s *State) PutOperation(operation *ActorXOperation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.loadErr != nil {
		return s.loadErr
	}

	key := operationKey(operation.ID)
	has, err := s.operationDB.Has(key)
	if err != nil {
		return err
	}
	if has {
		return fmt.Errorf("%w: id %d", ErrOperationExists, operation.ID)
	}

	operationBytes, err := Codec.Marshal(CodecVersion, operation)
	if err != nil {
		return fmt.Errorf("failed to encode operation record: %w", err)
	}
	return s.operationDB.Put(key, operationBytes)
}

// AllocateOperationID stages the allocation of the next operation ID. The
// allocator is strictly increasing across committed state; an aborted
// allocation is rolled back with the rest of the transaction.
func (s *State) AllocateOperationID() (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.loadErr != nil {
		return 0, s.loadErr
	}

	id := s.nextOperationID
	next := make([]byte, database.Uint64Size)
	binary.BigEndian.PutUint64(next, id+1)
	if err := s.singletonDB.Put(nextOperationIDKey, next); err != nil {
		return 0, err
	}
	s.nextOperationID = id + 1
	return id, nil
}

// Commit flushes all staged writes to the underlying database.
func (s *State) Commit() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.loadErr != nil {
		return s.loadErr
	}
	return s.baseDB.Commit()
}

// Abort discards all staged writes and restores the in-memory views from
// the last committed state.
func (s *State) Abort() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.baseDB.Abort()
	s.validatorCache.Flush()
	s.active = nil
	s.activeIndex = make(set.Set[ids.ShortID])
	s.nextOperationID = 0
	if err := s.load(); err != nil {
		// The views are zeroed and cannot be rebuilt; running the
		// allocator on them would re-issue committed operation IDs.
		s.active = nil
		s.activeIndex = make(set.Set[ids.ShortID])
		s.loadErr = fmt.Errorf("%w: reload after abort: %s", ErrStateCorrupted, err)
	}
}

// Close releases the underlying versioned database.
func (s *State) Close() error {
	return s.baseDB.Close()
}

func operationKey(id uint64) []byte {
	key := make([]byte, database.Uint64Size)
	binary.BigEndian.PutUint64(key, id)
	return key
}
