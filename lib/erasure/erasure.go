// Copyright 2024 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

package erasure

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/ChainSafe/parachain-backing/lib/common"
	"github.com/klauspost/reedsolomon"
)

var (
	// ErrNotEnoughValidators cannot encode something for zero or one validator
	ErrNotEnoughValidators = errors.New("expected at least 2 validators")
	// ErrNoChunks is returned when computing a merkle root over no chunks
	ErrNoChunks = errors.New("no chunks to build a merkle tree from")
	// ErrChunkIndexOutOfRange is returned when a proof is requested for a chunk that does not exist
	ErrChunkIndexOutOfRange = errors.New("chunk index out of range")
)

// ObtainChunks erasure codes the data into one chunk per validator. Any recovery-threshold sized
// subset of the chunks is enough to reconstruct the data.
func ObtainChunks(validatorsQty int, data []byte) ([][]byte, error) {
	enc, err := newEncoder(validatorsQty)
	if err != nil {
		return nil, err
	}

	shards, err := enc.Split(data)
	if err != nil {
		return nil, err
	}
	err = enc.Encode(shards)
	if err != nil {
		return nil, err
	}

	return shards, nil
}

// Reconstruct the missing data from a set of chunks, missing chunks are nil or empty.
func Reconstruct(validatorsQty, originalDataLen int, chunks [][]byte) ([]byte, error) {
	enc, err := newEncoder(validatorsQty)
	if err != nil {
		return nil, err
	}

	err = enc.Reconstruct(chunks)
	if err != nil {
		return nil, err
	}
	buf := new(bytes.Buffer)
	err = enc.Join(buf, chunks, originalDataLen)
	return buf.Bytes(), err
}

func newEncoder(validatorsQty int) (reedsolomon.Encoder, error) {
	dataShards, err := RecoveryThreshold(validatorsQty)
	if err != nil {
		return nil, err
	}

	enc, err := reedsolomon.New(dataShards, validatorsQty-dataShards)
	if err != nil {
		return nil, fmt.Errorf("creating new reed solomon failed: %w", err)
	}
	return enc, nil
}

// RecoveryThreshold gives the number of chunks needed to reconstruct the full initial data,
// which is a bit more than a third of the validators.
func RecoveryThreshold(validators int) (int, error) {
	if validators <= 1 {
		return 0, ErrNotEnoughValidators
	}

	needed := (validators - 1) / 3

	return needed + 1, nil
}

// ChunksRoot returns the root of the binary merkle tree whose leaves are the blake2b hashes of
// the chunks. A node without a sibling is carried up unchanged.
func ChunksRoot(chunks [][]byte) (common.Hash, error) {
	layers, err := merkleLayers(chunks)
	if err != nil {
		return common.Hash{}, err
	}
	return layers[len(layers)-1][0], nil
}

// ChunkProof returns the sibling hashes from the leaf of the chunk at the given index up to the root.
func ChunkProof(chunks [][]byte, index int) ([]common.Hash, error) {
	if index < 0 || index >= len(chunks) {
		return nil, fmt.Errorf("%w: %d", ErrChunkIndexOutOfRange, index)
	}

	layers, err := merkleLayers(chunks)
	if err != nil {
		return nil, err
	}

	var proof []common.Hash
	position := index
	for _, layer := range layers[:len(layers)-1] {
		sibling := position ^ 1
		if sibling < len(layer) {
			proof = append(proof, layer[sibling])
		}
		position /= 2
	}
	return proof, nil
}

// VerifyChunkProof checks that the chunk at the given index out of total chunks belongs to the tree with the given root.
func VerifyChunkProof(root common.Hash, chunk []byte, index, total int, proof []common.Hash) bool {
	if index < 0 || index >= total {
		return false
	}

	node := common.MustBlake2bHash(chunk)
	position, width := index, total
	for width > 1 {
		sibling := position ^ 1
		if sibling < width {
			if len(proof) == 0 {
				return false
			}
			if position%2 == 0 {
				node = common.Blake2bHashPair(node, proof[0])
			} else {
				node = common.Blake2bHashPair(proof[0], node)
			}
			proof = proof[1:]
		}
		position /= 2
		width = (width + 1) / 2
	}
	return len(proof) == 0 && node == root
}

func merkleLayers(chunks [][]byte) ([][]common.Hash, error) {
	if len(chunks) == 0 {
		return nil, ErrNoChunks
	}

	leaves := make([]common.Hash, len(chunks))
	for i, chunk := range chunks {
		hash, err := common.Blake2bHash(chunk)
		if err != nil {
			return nil, fmt.Errorf("hashing chunk %d: %w", i, err)
		}
		leaves[i] = hash
	}

	layers := [][]common.Hash{leaves}
	for current := leaves; len(current) > 1; {
		next := make([]common.Hash, 0, (len(current)+1)/2)
		for i := 0; i < len(current); i += 2 {
			if i+1 == len(current) {
				next = append(next, current[i])
				continue
			}
			next = append(next, common.Blake2bHashPair(current[i], current[i+1]))
		}
		layers = append(layers, next)
		current = next
	}
	return layers, nil
}
