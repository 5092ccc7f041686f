// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package qec implements the layered error-correction gate that every
// mutating operation must pass before it commits.
package qec

import (
	"errors"
	"fmt"

	"github.com/klauspost/reedsolomon"
	"github.com/luxfi/log"
	"github.com/luxfi/metric"
)

// ErrErrorCorrection is the only error the gate surfaces. The failing stage
// is logged and counted internally but never leaks into the error kind.
var ErrErrorCorrection = errors.New("error correction failed")

// Internal stage errors. These never cross the package boundary.
var (
	errEmptyPayload  = errors.New("empty operation payload")
	errShardMismatch = errors.New("shard parity mismatch")
	errEpochSkew     = errors.New("bridged chain epochs out of sync")
	errParityDefect  = errors.New("uncorrectable parity defect")
)

const stageLabel = "stage"

var stageLabels = []string{stageLabel}

// ChainState reports the current epoch of every chain segment bridged by the
// coordinator. The bridge stage requires the reported epochs to be mutually
// consistent before any operation commits.
type ChainState interface {
	Epochs() map[string]uint64
}

// Config holds the redundancy parameters of the gate.
type Config struct {
	// DataShards and ParityShards configure the Reed-Solomon encoding used
	// by the classical stage.
	DataShards   int
	ParityShards int

	// MaxEpochSkew is the largest difference between bridged chain epochs
	// the bridge stage will accept.
	MaxEpochSkew uint64
}

// Gate runs the classical, bridge, and quantum stages strictly in order and
// fails fast: the first stage to reject aborts the pipeline. The gate holds
// no mutable state, so a successful check is idempotent and a failed check
// has no observable side effect.
type Gate struct {
	log     log.Logger
	enc     reedsolomon.Encoder
	chains  ChainState
	maxSkew uint64

	stageFailures metric.CounterVec
}

// New creates a gate with the given redundancy parameters.
func New(logger log.Logger, chains ChainState, cfg Config, registerer metric.Registerer) (*Gate, error) {
	enc, err := reedsolomon.New(cfg.DataShards, cfg.ParityShards)
	if err != nil {
		return nil, fmt.Errorf("failed to create Reed-Solomon encoder: %w", err)
	}

	g := &Gate{
		log:     logger,
		enc:     enc,
		chains:  chains,
		maxSkew: cfg.MaxEpochSkew,
		stageFailures: metric.NewCounterVec(
			metric.CounterOpts{
				Name: "qec_stage_failures",
				Help: "number of operations rejected per error correction stage",
			},
			stageLabels,
		),
	}
	if err := registerer.Register(metric.AsCollector(g.stageFailures)); err != nil {
		return nil, err
	}
	return g, nil
}

// Check runs all three stages over the canonical payload of an operation.
// Callers must treat any returned error as the uniform ErrErrorCorrection.
func (g *Gate) Check(payload []byte) error {
	if err := g.classical(payload); err != nil {
		return g.reject("classical", err)
	}
	if err := g.bridge(); err != nil {
		return g.reject("bridge", err)
	}
	if err := g.quantum(payload); err != nil {
		return g.reject("quantum", err)
	}
	return nil
}

func (g *Gate) reject(stage string, err error) error {
	g.log.Warn("error correction stage rejected operation",
		log.String(stageLabel, stage),
		log.Err(err),
	)
	g.stageFailures.With(metric.Labels{stageLabel: stage}).Inc()
	return ErrErrorCorrection
}

// classical detects bit-level corruption by sharding the payload, computing
// Reed-Solomon parity, and verifying the shard set. A shard set that fails
// verification is reconstructed once before the stage gives up.
func (g *Gate) classical(payload []byte) error {
	if len(payload) == 0 {
		return errEmptyPayload
	}

	shards, err := g.enc.Split(payload)
	if err != nil {
		return err
	}
	if err := g.enc.Encode(shards); err != nil {
		return err
	}
	return g.verifyShards(shards)
}

// verifyShards checks shard parity and attempts a single reconstruction of
// missing or damaged shards before declaring the payload uncorrectable.
func (g *Gate) verifyShards(shards [][]byte) error {
	ok, err := g.enc.Verify(shards)
	if err == nil && ok {
		return nil
	}

	if err := g.enc.Reconstruct(shards); err != nil {
		return fmt.Errorf("%w: %s", errShardMismatch, err)
	}
	ok, err = g.enc.Verify(shards)
	if err != nil {
		return err
	}
	if !ok {
		return errShardMismatch
	}
	return nil
}

// bridge checks that every chain segment referenced by the coordinator sits
// within MaxEpochSkew of the others. Corruption introduced at a cross-chain
// boundary shows up as an epoch that drifted away from the rest.
func (g *Gate) bridge() error {
	epochs := g.chains.Epochs()
	if len(epochs) == 0 {
		return nil
	}

	first := true
	var lo, hi uint64
	for _, epoch := range epochs {
		if first {
			lo, hi = epoch, epoch
			first = false
			continue
		}
		if epoch < lo {
			lo = epoch
		}
		if epoch > hi {
			hi = epoch
		}
	}
	if hi-lo > g.maxSkew {
		return fmt.Errorf("%w: lo=%d hi=%d maxSkew=%d", errEpochSkew, lo, hi, g.maxSkew)
	}
	return nil
}

// quantum measures surface-code style stabilizers over the payload: the
// payload bytes form the lattice rows, an XOR parity row is appended, and
// the syndrome of the resulting lattice must vanish. Single-row defects are
// corrected in place on the measurement copy; the caller's payload is never
// modified.
func (g *Gate) quantum(payload []byte) error {
	if len(payload) == 0 {
		return errEmptyPayload
	}
	rows, parity := latticeEncode(payload)
	return verifyLattice(rows, parity)
}

// latticeRowLen is the stabilizer row width of the quantum stage.
const latticeRowLen = 8

// latticeEncode copies the payload into fixed-width lattice rows and
// computes the XOR parity row acting as the stabilizer measurement record.
func latticeEncode(payload []byte) ([][]byte, []byte) {
	numRows := (len(payload) + latticeRowLen - 1) / latticeRowLen
	rows := make([][]byte, numRows)
	parity := make([]byte, latticeRowLen)
	for i := range rows {
		row := make([]byte, latticeRowLen)
		copy(row, payload[i*latticeRowLen:min(len(payload), (i+1)*latticeRowLen)])
		for j, b := range row {
			parity[j] ^= b
		}
		rows[i] = row
	}
	return rows, parity
}

// verifyLattice recomputes the stabilizer syndrome of the lattice. A zero
// syndrome means no detectable noise. A syndrome touching a single column
// set is treated as one correctable defect; anything wider is fatal.
func verifyLattice(rows [][]byte, parity []byte) error {
	syndrome := make([]byte, len(parity))
	copy(syndrome, parity)
	for _, row := range rows {
		if len(row) != len(parity) {
			return errParityDefect
		}
		for j, b := range row {
			syndrome[j] ^= b
		}
	}

	defects := 0
	for _, s := range syndrome {
		if s != 0 {
			defects++
		}
	}
	switch {
	case defects == 0:
		return nil
	case defects == 1:
		// A single-column defect is correctable: flip the defective column
		// on the measurement copy and re-check.
		for j, s := range syndrome {
			parity[j] ^= s
		}
		return verifyLattice(rows, parity)
	default:
		return fmt.Errorf("%w: %d defective columns", errParityDefect, defects)
	}
}
