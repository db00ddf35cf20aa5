// Copyright 2024 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

package availabilitystore

import (
	parachaintypes "github.com/ChainSafe/parachain-backing/dot/parachain/types"
	"github.com/ChainSafe/parachain-backing/lib/common"
)

// QueryAvailableData query a AvailableData from the AV store. A nil response means the data is not stored.
type QueryAvailableData struct {
	CandidateHash parachaintypes.CandidateHash
	Sender        chan *parachaintypes.AvailableData
}

// QueryDataAvailability query wether a `AvailableData` exists within the AV store
//
// This is useful in cases when existence
// matters, but we don't want to necessarily pass around multiple
// megabytes of data to get a single bit of information.
type QueryDataAvailability struct {
	CandidateHash parachaintypes.CandidateHash
	Sender        chan bool
}

// ErasureChunk a chunk of erasure-encoded block data
type ErasureChunk struct {
	Chunk []byte
	Index uint32
	// Proof is the merkle branch from the chunk leaf up to the erasure root.
	Proof []common.Hash
}

// QueryChunk query an `ErasureChunk` from the AV store by candidate hash and validator index
type QueryChunk struct {
	CandidateHash  parachaintypes.CandidateHash
	ValidatorIndex uint32
	Sender         chan *ErasureChunk
}

// QueryAllChunks query all chunks that we have for the given candidate hash
type QueryAllChunks struct {
	CandidateHash parachaintypes.CandidateHash
	Sender        chan []ErasureChunk
}

// QueryChunkAvailability query wether a `ErasureChunk` exists within the AV store
//
// This is useful in cases when existence
// matters, but we don't want to necessarily pass around multiple
// megabytes of data to get a single bit of information.
type QueryChunkAvailability struct {
	CandidateHash  parachaintypes.CandidateHash
	ValidatorIndex uint32
	Sender         chan bool
}

// StoreChunk store an `ErasureChunk` in the AV store. The candidate must already be known
// to the store, otherwise ErrCandidateNotFound is sent back.
type StoreChunk struct {
	CandidateHash parachaintypes.CandidateHash
	Chunk         ErasureChunk
	Sender        chan error
}

// StoreAvailableData computes and checks the erasure root of `AvailableData`
// before storing its chunks in the AV store.
type StoreAvailableData struct {
	// A hash of the candidate this `StoreAvailableData` belongs to.
	CandidateHash parachaintypes.CandidateHash
	// The number of validators in the session.
	NumValidators uint32
	// The `AvailableData` itself.
	AvailableData parachaintypes.AvailableData
	// Erasure root we expect to get after chunking.
	ExpectedErasureRoot common.Hash
	// channel to send result to.
	Sender chan error
}
