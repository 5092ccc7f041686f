// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package quantum implements commitment hashing and verification of
// quantum-resistant validator credentials using ML-DSA.
package quantum

import (
	"crypto/sha256"

	"github.com/luxfi/ids"
)

// Commit returns the content commitment of an opaque credential blob.
// Equal blobs always commit to the same ID. The empty blob has a defined
// commitment; it is not an error.
func Commit(blob []byte) ids.ID {
	return ids.ID(sha256.Sum256(blob))
}
