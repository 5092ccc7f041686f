// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package quantum

import (
	"testing"

	"github.com/luxfi/ids"
	"github.com/stretchr/testify/require"
)

func TestCommitDeterministic(t *testing.T) {
	require := require.New(t)

	blob := []byte{1, 2, 3}
	require.Equal(Commit(blob), Commit(blob))

	// A copy of the same bytes commits to the same ID.
	clone := append([]byte(nil), blob...)
	require.Equal(Commit(blob), Commit(clone))
}

func TestCommitDistinct(t *testing.T) {
	require := require.New(t)

	blobs := [][]byte{
		{1, 2, 3},
		{1, 2, 4},
		{1, 2, 3, 0},
		[]byte("quantum key material"),
		make([]byte, 64),
	}

	seen := make(map[ids.ID][]byte, len(blobs))
	for _, blob := range blobs {
		hash := Commit(blob)
		prev, ok := seen[hash]
		require.False(ok, "collision between %v and %v", prev, blob)
		seen[hash] = blob
	}
}

func TestCommitEmptyDefined(t *testing.T) {
	require := require.New(t)

	// The empty blob is valid input with a stable commitment, not an error.
	require.Equal(Commit(nil), Commit([]byte{}))
	require.NotEqual(ids.Empty, Commit(nil))
}
