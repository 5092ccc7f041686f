// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package quantum

import (
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/luxfi/cache/lru"
	"github.com/luxfi/crypto/mldsa"
	"github.com/luxfi/ids"
	"github.com/luxfi/log"
)

var (
	ErrEmptyKey       = errors.New("empty quantum key")
	ErrMalformedKey   = errors.New("malformed quantum key")
	ErrEmptyProof     = errors.New("empty quantum proof")
	ErrMalformedProof = errors.New("malformed quantum proof")
	ErrProofRejected  = errors.New("quantum proof rejected")
)

// Algorithm versions
const (
	AlgorithmMLDSA44 uint32 = 1 // NIST Level 2 (128-bit security)
	AlgorithmMLDSA65 uint32 = 2 // NIST Level 3 (192-bit security)
	AlgorithmMLDSA87 uint32 = 3 // NIST Level 5 (256-bit security)
)

// proofKeyLenBytes prefixes every proof with the public key length.
const proofKeyLenBytes = 4

// ProofContext binds a quantum proof to the exact operation it authorizes.
// A proof signed for one context never verifies under another, so proofs
// cannot be replayed across targets or operation types.
type ProofContext struct {
	Executor  ids.ShortID
	Target    ids.ShortID
	Operation byte
}

// Bytes returns the canonical message a proof for this context must sign.
func (c ProofContext) Bytes() []byte {
	message := make([]byte, 0, len(c.Executor)+len(c.Target)+1)
	message = append(message, c.Executor[:]...)
	message = append(message, c.Operation)
	message = append(message, c.Target[:]...)
	return message
}

// Verifier validates quantum keys and context-bound quantum proofs. It is
// pure validation: no ledger state is read or written, and a rejected
// credential leaves no trace beyond the observation cache.
type Verifier struct {
	log              log.Logger
	algorithmVersion uint32
	mode             mldsa.Mode
	seen             *lru.Cache[ids.ID, ProofContext]
}

// NewVerifier creates a verifier for the given ML-DSA algorithm version.
// algorithmVersion: 1=MLDSA44, 2=MLDSA65, 3=MLDSA87
func NewVerifier(log log.Logger, algorithmVersion uint32, cacheSize int) *Verifier {
	var mode mldsa.Mode
	switch algorithmVersion {
	case AlgorithmMLDSA44:
		mode = mldsa.MLDSA44
	case AlgorithmMLDSA65:
		mode = mldsa.MLDSA65
	case AlgorithmMLDSA87:
		mode = mldsa.MLDSA87
	default:
		mode = mldsa.MLDSA65 // Default to NIST Level 3
		algorithmVersion = AlgorithmMLDSA65
	}

	return &Verifier{
		log:              log,
		algorithmVersion: algorithmVersion,
		mode:             mode,
		seen:             lru.NewCache[ids.ID, ProofContext](cacheSize),
	}
}

// Keypair holds an ML-DSA key pair. The public key is the quantum key
// presented at registration; the private key signs proof contexts.
type Keypair struct {
	PublicKey  []byte
	PrivateKey []byte

	priv *mldsa.PrivateKey
}

// GenerateKeypair generates a fresh ML-DSA key pair for the verifier's mode.
func (v *Verifier) GenerateKeypair() (*Keypair, error) {
	priv, err := mldsa.GenerateKey(rand.Reader, v.mode)
	if err != nil {
		return nil, fmt.Errorf("failed to generate ML-DSA key: %w", err)
	}
	return &Keypair{
		PublicKey:  priv.PublicKey.Bytes(),
		PrivateKey: priv.Bytes(),
		priv:       priv,
	}, nil
}

// VerifyKey checks the structural well-formedness of a quantum key presented
// at registration. Zero-length keys and byte strings that do not parse as an
// ML-DSA public key for the configured mode are rejected.
func (v *Verifier) VerifyKey(key []byte) error {
	if len(key) == 0 {
		return ErrEmptyKey
	}
	if _, err := mldsa.PublicKeyFromBytes(key, v.mode); err != nil {
		return fmt.Errorf("%w: %s", ErrMalformedKey, err)
	}
	return nil
}

// SignProof produces a proof authorizing exactly the given context. The
// proof wire format is keyLen || publicKey || signature.
func (v *Verifier) SignProof(kp *Keypair, ctx ProofContext) ([]byte, error) {
	priv := kp.priv
	if priv == nil {
		var err error
		priv, err = mldsa.PrivateKeyFromBytes(v.mode, kp.PrivateKey)
		if err != nil {
			return nil, fmt.Errorf("failed to restore ML-DSA key: %w", err)
		}
	}

	signature, err := priv.Sign(rand.Reader, ctx.Bytes(), nil)
	if err != nil {
		return nil, fmt.Errorf("ML-DSA signing failed: %w", err)
	}

	proof := make([]byte, proofKeyLenBytes, proofKeyLenBytes+len(kp.PublicKey)+len(signature))
	binary.BigEndian.PutUint32(proof, uint32(len(kp.PublicKey)))
	proof = append(proof, kp.PublicKey...)
	proof = append(proof, signature...)
	return proof, nil
}

// VerifyProof checks that the proof authorizes the given context. The
// signature inside the proof must cover the canonical context bytes, so the
// same proof presented for a different target or operation type fails.
func (v *Verifier) VerifyProof(proof []byte, ctx ProofContext) error {
	if len(proof) == 0 {
		return ErrEmptyProof
	}
	if len(proof) < proofKeyLenBytes {
		return ErrMalformedProof
	}
	keyLen := binary.BigEndian.Uint32(proof)
	if uint64(len(proof)) < uint64(proofKeyLenBytes)+uint64(keyLen) {
		return ErrMalformedProof
	}

	pub, err := mldsa.PublicKeyFromBytes(proof[proofKeyLenBytes:proofKeyLenBytes+keyLen], v.mode)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrMalformedProof, err)
	}

	signature := proof[proofKeyLenBytes+keyLen:]
	if !pub.VerifySignature(ctx.Bytes(), signature) {
		v.log.Debug("quantum proof rejected",
			log.Stringer("executor", ctx.Executor),
			log.Stringer("target", ctx.Target),
		)
		return ErrProofRejected
	}

	// Record the accepted proof and its context for observability only.
	v.seen.Put(Commit(proof), ctx)
	return nil
}
