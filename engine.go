// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package eigenlayer coordinates a set of validators securing a multi-chain
// network segment: it registers validator identities bound to
// quantum-resistant credentials, manages a time-locked restake ledger, and
// executes privileged ActorX fill/kill operations. Every mutating intent
// passes the layered error-correction gate before it commits.
package eigenlayer

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/luxfi/database"
	"github.com/luxfi/ids"
	"github.com/luxfi/log"
	safemath "github.com/luxfi/math"
	"github.com/luxfi/metric"

	"github.com/luxfi/eigenlayer/config"
	"github.com/luxfi/eigenlayer/metrics"
	"github.com/luxfi/eigenlayer/qec"
	"github.com/luxfi/eigenlayer/quantum"
	"github.com/luxfi/eigenlayer/state"
)

var (
	errNoDatabase  = errors.New("no database provided")
	errNoBalances  = errors.New("no balance service provided")
	errNoClock     = errors.New("no clock provided")
	errNoAuthority = errors.New("no verification authority provided")
)

// Params carries everything an Engine needs: storage, configuration, and
// the external collaborators the core delegates to.
type Params struct {
	Log       log.Logger
	DB        database.Database
	Config    config.Config
	Balances  BalanceService
	Clock     Clock
	Authority Authority
	Chains    qec.ChainState
	Events    EventSink
	Metrics   metric.Registerer
}

// Engine owns the validator registry, the restake ledger, and the ActorX
// ledger. Mutating intents are serialized: each executes to completion,
// commit or abort, before the next is observed to start.
type Engine struct {
	cfg       config.Config
	log       log.Logger
	state     *state.State
	verifier  *quantum.Verifier
	gate      *qec.Gate
	balances  BalanceService
	clock     Clock
	authority Authority
	events    EventSink
	metrics   *metrics.Metrics

	// lock serializes the read-validate-write sequence of every mutating
	// intent.
	lock sync.Mutex
}

// New creates an engine over the given database and collaborators.
func New(p Params) (*Engine, error) {
	switch {
	case p.DB == nil:
		return nil, errNoDatabase
	case p.Balances == nil:
		return nil, errNoBalances
	case p.Clock == nil:
		return nil, errNoClock
	case p.Authority == nil:
		return nil, errNoAuthority
	}
	if p.Log == nil {
		p.Log = log.NewNoOpLogger()
	}
	if p.Metrics == nil {
		p.Metrics = metric.NewRegistry()
	}
	if p.Chains == nil {
		p.Chains = emptyChainState{}
	}

	engineState, err := state.New(p.DB, p.Config.ValidatorCacheSize)
	if err != nil {
		return nil, err
	}

	gate, err := qec.New(p.Log, p.Chains, qec.Config{
		DataShards:   p.Config.DataShards,
		ParityShards: p.Config.ParityShards,
		MaxEpochSkew: p.Config.MaxEpochSkew,
	}, p.Metrics)
	if err != nil {
		return nil, err
	}

	m, err := metrics.New(p.Metrics)
	if err != nil {
		return nil, err
	}

	return &Engine{
		cfg:       p.Config,
		log:       p.Log,
		state:     engineState,
		verifier:  quantum.NewVerifier(p.Log, p.Config.QuantumAlgorithmVersion, p.Config.ProofCacheSize),
		gate:      gate,
		balances:  p.Balances,
		clock:     p.Clock,
		authority: p.Authority,
		events:    p.Events,
		metrics:   m,
	}, nil
}

// Verifier returns the engine's credential verifier. Callers use it to
// generate keys and sign proof contexts.
func (e *Engine) Verifier() *quantum.Verifier {
	return e.verifier
}

// RegisterValidator registers account with its quantum key and returns the
// credential hash. Fails with ErrAlreadyRegistered if a record exists.
func (e *Engine) RegisterValidator(account ids.ShortID, quantumKey []byte) (ids.ID, error) {
	e.lock.Lock()
	defer e.lock.Unlock()
	defer e.state.Abort()

	switch _, err := e.state.GetValidator(account); {
	case err == nil:
		return ids.Empty, fmt.Errorf("%w: %s", ErrAlreadyRegistered, account)
	case !errors.Is(err, state.ErrValidatorNotFound):
		return ids.Empty, err
	}

	if err := e.verifier.VerifyKey(quantumKey); err != nil {
		e.log.Debug("quantum key rejected",
			log.Stringer("account", account),
			log.Err(err),
		)
		return ids.Empty, fmt.Errorf("%w: %s", ErrVerificationFailed, err)
	}

	if err := e.gate.Check(registerPayload(account, quantumKey)); err != nil {
		return ids.Empty, err
	}

	credentialHash := quantum.Commit(quantumKey)
	record := &state.ValidatorRecord{
		Account:        account,
		CredentialHash: credentialHash,
		RegisteredAt:   e.clock.Time(),
		Status:         state.Registered,
	}
	if err := e.state.PutValidator(record); err != nil {
		return ids.Empty, err
	}
	if err := e.state.Commit(); err != nil {
		return ids.Empty, err
	}

	e.metrics.MarkRegistered()
	e.log.Info("validator registered",
		log.Stringer("account", account),
		log.Stringer("credentialHash", credentialHash),
	)
	e.notify(ValidatorRegistered{Account: account, Hash: credentialHash})
	return credentialHash, nil
}

// Restake bonds amount for duration and returns the unlock time. The
// external reservation and the ledger write are one logical transaction.
func (e *Engine) Restake(account ids.ShortID, amount, duration uint64) (uint64, error) {
	e.lock.Lock()
	defer e.lock.Unlock()
	defer e.state.Abort()

	if _, err := e.state.GetValidator(account); err != nil {
		if errors.Is(err, state.ErrValidatorNotFound) {
			return 0, fmt.Errorf("%w: %s", ErrNotRegistered, account)
		}
		return 0, err
	}
	if amount < e.cfg.MinRestakeAmount {
		return 0, fmt.Errorf("%w: %d < %d", ErrMinRestakeNotMet, amount, e.cfg.MinRestakeAmount)
	}
	if !e.balances.CanReserve(account, amount) {
		return 0, fmt.Errorf("%w: account %s cannot reserve %d", ErrInsufficientBalance, account, amount)
	}

	if err := e.gate.Check(restakePayload(account, amount, duration)); err != nil {
		return 0, err
	}

	now := e.clock.Time()
	unlockTime, err := safemath.Add(now, duration)
	if err != nil {
		// Saturate at the numeric ceiling, never wrap.
		unlockTime = safemath.MaxUint[uint64]()
	}

	record := &state.RestakeRecord{
		Account:    account,
		Amount:     amount,
		StartTime:  now,
		UnlockTime: unlockTime,
	}
	if err := e.state.PutRestake(record); err != nil {
		return 0, err
	}
	if err := e.balances.Reserve(account, amount); err != nil {
		return 0, fmt.Errorf("%w: %s", ErrInsufficientBalance, err)
	}
	if err := e.state.Commit(); err != nil {
		// The reservation is already held and BalanceService has no
		// release operation. The caller owns the reconciliation of the
		// funds this error leaves reserved.
		return 0, err
	}

	e.metrics.MarkRestaked()
	e.log.Info("tokens restaked",
		log.Stringer("account", account),
		log.Uint64("amount", amount),
		log.Uint64("unlockTime", unlockTime),
	)
	e.notify(TokensRestaked{Account: account, Amount: amount, UnlockTime: unlockTime})
	return unlockTime, nil
}

// ExecuteActorX executes a fill/kill operation authorized by a
// context-bound quantum proof and returns the allocated operation ID.
func (e *Engine) ExecuteActorX(
	executor ids.ShortID,
	operationType state.OperationType,
	target ids.ShortID,
	quantumProof []byte,
) (uint64, error) {
	e.lock.Lock()
	defer e.lock.Unlock()
	defer e.state.Abort()

	if _, err := e.state.GetValidator(executor); err != nil {
		if errors.Is(err, state.ErrValidatorNotFound) {
			return 0, fmt.Errorf("%w: %s", ErrNotRegistered, executor)
		}
		return 0, err
	}
	if !operationType.Valid() {
		return 0, fmt.Errorf("%w: %s", ErrInvalidOperationType, operationType)
	}

	proofContext := quantum.ProofContext{
		Executor:  executor,
		Target:    target,
		Operation: byte(operationType),
	}
	if err := e.verifier.VerifyProof(quantumProof, proofContext); err != nil {
		return 0, fmt.Errorf("%w: %s", ErrVerificationFailed, err)
	}

	if err := e.gate.Check(actorxPayload(executor, operationType, target, quantumProof)); err != nil {
		return 0, err
	}

	// Allocation happens exactly once per successful attempt: every check
	// above ran already, and the allocator write commits atomically with
	// the operation record below.
	operationID, err := e.state.AllocateOperationID()
	if err != nil {
		return 0, err
	}

	operation := &state.ActorXOperation{
		ID:         operationID,
		Type:       operationType,
		Executor:   executor,
		Target:     target,
		ExecutedAt: e.clock.Time(),
		ProofHash:  quantum.Commit(quantumProof),
	}
	if err := e.state.PutOperation(operation); err != nil {
		return 0, err
	}
	if err := e.state.Commit(); err != nil {
		return 0, err
	}

	e.metrics.MarkExecuted()
	e.log.Info("actorx operation executed",
		log.Stringer("executor", executor),
		log.Stringer("target", target),
		log.String("type", operationType.String()),
		log.Uint64("operationID", operationID),
	)
	e.notify(ActorXExecuted{Account: executor, OperationID: operationID, Type: operationType})
	return operationID, nil
}

// VerifyValidator runs the external verification decision for account. On
// true the validator becomes Verified and joins the active set; on false it
// becomes Failed. Re-verification recomputes the decision and may flip the
// status; the record is not locked after first verification.
func (e *Engine) VerifyValidator(account ids.ShortID) (bool, error) {
	e.lock.Lock()
	defer e.lock.Unlock()
	defer e.state.Abort()

	record, err := e.state.GetValidator(account)
	if err != nil {
		if errors.Is(err, state.ErrValidatorNotFound) {
			return false, fmt.Errorf("%w: %s", ErrNotRegistered, account)
		}
		return false, err
	}

	if err := e.gate.Check(verifyPayload(account)); err != nil {
		return false, err
	}

	verified := e.authority.Decide(account)

	updated := *record
	if verified {
		updated.Status = state.Verified
		if err := e.state.AddToActiveSet(account); err != nil {
			return false, err
		}
	} else {
		updated.Status = state.Failed
	}
	if err := e.state.PutValidator(&updated); err != nil {
		return false, err
	}
	if err := e.state.Commit(); err != nil {
		return false, err
	}

	e.metrics.MarkVerified(verified)
	e.log.Info("validator verified",
		log.Stringer("account", account),
		log.Bool("verified", verified),
	)
	e.notify(ValidatorVerified{Account: account, Verified: verified})
	return verified, nil
}

// GetValidator returns the validator record for account, if any.
func (e *Engine) GetValidator(account ids.ShortID) (*state.ValidatorRecord, error) {
	return e.state.GetValidator(account)
}

// GetActiveSet returns the ordered active validator set.
func (e *Engine) GetActiveSet() []ids.ShortID {
	return e.state.ActiveSet()
}

// GetRestake returns the restake record for account, if any.
func (e *Engine) GetRestake(account ids.ShortID) (*state.RestakeRecord, error) {
	return e.state.GetRestake(account)
}

// GetActorXOperation returns the operation with the given ID, if any.
func (e *Engine) GetActorXOperation(id uint64) (*state.ActorXOperation, error) {
	return e.state.GetOperation(id)
}

// Shutdown releases the engine's storage.
func (e *Engine) Shutdown() error {
	e.lock.Lock()
	defer e.lock.Unlock()
	return e.state.Close()
}

func (e *Engine) notify(event Event) {
	if e.events == nil {
		return
	}
	e.events.Notify(event)
}

// emptyChainState is the default bridge view when no chains are wired.
type emptyChainState struct{}

func (emptyChainState) Epochs() map[string]uint64 { return nil }

// The gate payloads are the canonical bytes of each intent.

func registerPayload(account ids.ShortID, quantumKey []byte) []byte {
	payload := make([]byte, 0, len(account)+len(quantumKey))
	payload = append(payload, account[:]...)
	return append(payload, quantumKey...)
}

func restakePayload(account ids.ShortID, amount, duration uint64) []byte {
	payload := make([]byte, len(account)+2*database.Uint64Size)
	copy(payload, account[:])
	binary.BigEndian.PutUint64(payload[len(account):], amount)
	binary.BigEndian.PutUint64(payload[len(account)+database.Uint64Size:], duration)
	return payload
}

func actorxPayload(
	executor ids.ShortID,
	operationType state.OperationType,
	target ids.ShortID,
	quantumProof []byte,
) []byte {
	payload := make([]byte, 0, len(executor)+1+len(target)+len(quantumProof))
	payload = append(payload, executor[:]...)
	payload = append(payload, byte(operationType))
	payload = append(payload, target[:]...)
	return append(payload, quantumProof...)
}

func verifyPayload(account ids.ShortID) []byte {
	payload := make([]byte, len(account))
	copy(payload, account[:])
	return payload
}
