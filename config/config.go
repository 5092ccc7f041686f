// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package config

// Config contains all the foundational parameters of the eigenlayer
// coordination engine.
type Config struct {
	// Minimum amount that can be restaked
	MinRestakeAmount uint64

	// Nominal restake period advertised to clients. The unlock time of a
	// restake is always start + requested duration; this value is never
	// substituted in.
	RestakePeriod uint64

	// Quantum signature algorithm version (1=MLDSA44, 2=MLDSA65, 3=MLDSA87)
	QuantumAlgorithmVersion uint32

	// Maximum accepted proof observation cache size
	ProofCacheSize int

	// Maximum validator record cache size
	ValidatorCacheSize int

	// Reed-Solomon data shards for the classical error correction stage
	DataShards int

	// Reed-Solomon parity shards for the classical error correction stage
	ParityShards int

	// Largest epoch difference tolerated between bridged chains
	MaxEpochSkew uint64
}

// DefaultConfig returns a Config with default values
func DefaultConfig() Config {
	return Config{
		MinRestakeAmount:        100,
		RestakePeriod:           7200,
		QuantumAlgorithmVersion: 2,
		ProofCacheSize:          256,
		ValidatorCacheSize:      1024,
		DataShards:              4,
		ParityShards:            2,
		MaxEpochSkew:            1,
	}
}
