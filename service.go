// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package eigenlayer

import (
	"encoding/hex"
	"fmt"
	"net/http"

	"github.com/gorilla/rpc/v2"
	"github.com/gorilla/rpc/v2/json2"
	"github.com/luxfi/ids"

	"github.com/luxfi/eigenlayer/state"
	"github.com/luxfi/eigenlayer/utils/json"
)

// Service provides the eigenlayer RPC service.
type Service struct {
	engine *Engine
}

// NewHTTPHandler returns an HTTP handler exposing the engine's intents and
// read surface under the "eigenlayer" namespace.
func NewHTTPHandler(engine *Engine) (http.Handler, error) {
	server := rpc.NewServer()
	server.RegisterCodec(json2.NewCodec(), "application/json")
	server.RegisterCodec(json2.NewCodec(), "application/json;charset=UTF-8")
	if err := server.RegisterService(&Service{engine: engine}, "eigenlayer"); err != nil {
		return nil, err
	}
	return server, nil
}

// RegisterValidatorArgs are the arguments for RegisterValidator
type RegisterValidatorArgs struct {
	Account    string `json:"account"`
	QuantumKey string `json:"quantumKey"`
}

// RegisterValidatorReply is the reply for RegisterValidator
type RegisterValidatorReply struct {
	CredentialHash string `json:"credentialHash"`
}

// RegisterValidator registers a validator with its quantum key.
func (s *Service) RegisterValidator(_ *http.Request, args *RegisterValidatorArgs, reply *RegisterValidatorReply) error {
	account, err := ids.ShortFromString(args.Account)
	if err != nil {
		return fmt.Errorf("invalid account: %w", err)
	}
	quantumKey, err := hex.DecodeString(args.QuantumKey)
	if err != nil {
		return fmt.Errorf("invalid quantum key: %w", err)
	}

	credentialHash, err := s.engine.RegisterValidator(account, quantumKey)
	if err != nil {
		return err
	}
	reply.CredentialHash = credentialHash.String()
	return nil
}

// RestakeArgs are the arguments for Restake
type RestakeArgs struct {
	Account  string      `json:"account"`
	Amount   json.Uint64 `json:"amount"`
	Duration json.Uint64 `json:"duration"`
}

// RestakeReply is the reply for Restake
type RestakeReply struct {
	UnlockTime json.Uint64 `json:"unlockTime"`
}

// Restake bonds tokens for a fixed duration.
func (s *Service) Restake(_ *http.Request, args *RestakeArgs, reply *RestakeReply) error {
	account, err := ids.ShortFromString(args.Account)
	if err != nil {
		return fmt.Errorf("invalid account: %w", err)
	}

	unlockTime, err := s.engine.Restake(account, uint64(args.Amount), uint64(args.Duration))
	if err != nil {
		return err
	}
	reply.UnlockTime = json.Uint64(unlockTime)
	return nil
}

// ExecuteActorXArgs are the arguments for ExecuteActorX
type ExecuteActorXArgs struct {
	Executor      string `json:"executor"`
	OperationType string `json:"operationType"`
	Target        string `json:"target"`
	QuantumProof  string `json:"quantumProof"`
}

// ExecuteActorXReply is the reply for ExecuteActorX
type ExecuteActorXReply struct {
	OperationID json.Uint64 `json:"operationID"`
}

// ExecuteActorX executes a fill or kill operation against a target.
func (s *Service) ExecuteActorX(_ *http.Request, args *ExecuteActorXArgs, reply *ExecuteActorXReply) error {
	executor, err := ids.ShortFromString(args.Executor)
	if err != nil {
		return fmt.Errorf("invalid executor: %w", err)
	}
	target, err := ids.ShortFromString(args.Target)
	if err != nil {
		return fmt.Errorf("invalid target: %w", err)
	}
	operationType, err := parseOperationType(args.OperationType)
	if err != nil {
		return err
	}
	quantumProof, err := hex.DecodeString(args.QuantumProof)
	if err != nil {
		return fmt.Errorf("invalid quantum proof: %w", err)
	}

	operationID, err := s.engine.ExecuteActorX(executor, operationType, target, quantumProof)
	if err != nil {
		return err
	}
	reply.OperationID = json.Uint64(operationID)
	return nil
}

// VerifyValidatorArgs are the arguments for VerifyValidator
type VerifyValidatorArgs struct {
	Account string `json:"account"`
}

// VerifyValidatorReply is the reply for VerifyValidator
type VerifyValidatorReply struct {
	Verified bool `json:"verified"`
}

// VerifyValidator runs the verification decision for a validator.
func (s *Service) VerifyValidator(_ *http.Request, args *VerifyValidatorArgs, reply *VerifyValidatorReply) error {
	account, err := ids.ShortFromString(args.Account)
	if err != nil {
		return fmt.Errorf("invalid account: %w", err)
	}

	verified, err := s.engine.VerifyValidator(account)
	if err != nil {
		return err
	}
	reply.Verified = verified
	return nil
}

// GetValidatorArgs are the arguments for GetValidator
type GetValidatorArgs struct {
	Account string `json:"account"`
}

// GetValidatorReply is the reply for GetValidator
type GetValidatorReply struct {
	Account        string      `json:"account"`
	CredentialHash string      `json:"credentialHash"`
	RegisteredAt   json.Uint64 `json:"registeredAt"`
	Status         string      `json:"status"`
}

// GetValidator returns a validator record.
func (s *Service) GetValidator(_ *http.Request, args *GetValidatorArgs, reply *GetValidatorReply) error {
	account, err := ids.ShortFromString(args.Account)
	if err != nil {
		return fmt.Errorf("invalid account: %w", err)
	}

	record, err := s.engine.GetValidator(account)
	if err != nil {
		return err
	}
	reply.Account = record.Account.String()
	reply.CredentialHash = record.CredentialHash.String()
	reply.RegisteredAt = json.Uint64(record.RegisteredAt)
	reply.Status = record.Status.String()
	return nil
}

// GetActiveSetReply is the reply for GetActiveSet
type GetActiveSetReply struct {
	Validators []string `json:"validators"`
}

// GetActiveSet returns the ordered active validator set.
func (s *Service) GetActiveSet(_ *http.Request, _ *struct{}, reply *GetActiveSetReply) error {
	reply.Validators = ids.ShortIDsToStrings(s.engine.GetActiveSet())
	return nil
}

// GetRestakeArgs are the arguments for GetRestake
type GetRestakeArgs struct {
	Account string `json:"account"`
}

// GetRestakeReply is the reply for GetRestake
type GetRestakeReply struct {
	Amount     json.Uint64 `json:"amount"`
	StartTime  json.Uint64 `json:"startTime"`
	UnlockTime json.Uint64 `json:"unlockTime"`
}

// GetRestake returns the restake record of a validator.
func (s *Service) GetRestake(_ *http.Request, args *GetRestakeArgs, reply *GetRestakeReply) error {
	account, err := ids.ShortFromString(args.Account)
	if err != nil {
		return fmt.Errorf("invalid account: %w", err)
	}

	record, err := s.engine.GetRestake(account)
	if err != nil {
		return err
	}
	reply.Amount = json.Uint64(record.Amount)
	reply.StartTime = json.Uint64(record.StartTime)
	reply.UnlockTime = json.Uint64(record.UnlockTime)
	return nil
}

// GetActorXOperationArgs are the arguments for GetActorXOperation
type GetActorXOperationArgs struct {
	OperationID json.Uint64 `json:"operationID"`
}

// GetActorXOperationReply is the reply for GetActorXOperation
type GetActorXOperationReply struct {
	OperationID   json.Uint64 `json:"operationID"`
	OperationType string      `json:"operationType"`
	Executor      string      `json:"executor"`
	Target        string      `json:"target"`
	ExecutedAt    json.Uint64 `json:"executedAt"`
	ProofHash     string      `json:"proofHash"`
}

// GetActorXOperation returns a committed ActorX operation record.
func (s *Service) GetActorXOperation(_ *http.Request, args *GetActorXOperationArgs, reply *GetActorXOperationReply) error {
	operation, err := s.engine.GetActorXOperation(uint64(args.OperationID))
	if err != nil {
		return err
	}
	reply.OperationID = json.Uint64(operation.ID)
	reply.OperationType = operation.Type.String()
	reply.Executor = operation.Executor.String()
	reply.Target = operation.Target.String()
	reply.ExecutedAt = json.Uint64(operation.ExecutedAt)
	reply.ProofHash = operation.ProofHash.String()
	return nil
}

func parseOperationType(name string) (state.OperationType, error) {
	switch name {
	case "fill":
		return state.Fill, nil
	case "kill":
		return state.Kill, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidOperationType, name)
	}
}
