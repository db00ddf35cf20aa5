// Copyright 2024 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

package availabilitystore

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	parachaintypes "github.com/ChainSafe/parachain-backing/dot/parachain/types"
	"github.com/ChainSafe/parachain-backing/internal/database"
	"github.com/ChainSafe/parachain-backing/lib/common"
	"github.com/ChainSafe/parachain-backing/lib/erasure"
	"github.com/ChainSafe/parachain-backing/pkg/scale"
	"github.com/klauspost/compress/zstd"
	"github.com/prysmaticlabs/go-bitfield"
)

const (
	availableDataPrefix = "available"
	chunkPrefix         = "chunk"
	metaPrefix          = "meta"
	pruneByTimePrefix   = "prune_by_time"

	pruneKeyLength = 8 + common.HashLength
)

var (
	// ErrInvalidErasureRoot is returned when the erasure root computed from the chunks of the
	// available data does not match the expected one.
	ErrInvalidErasureRoot = errors.New("invalid erasure root")
	// ErrCandidateNotFound is returned when storing a chunk of a candidate the store has no record of.
	ErrCandidateNotFound = errors.New("candidate not found")

	errChunkIndexOutOfRange = errors.New("chunk index out of range")
	errStopPruning          = errors.New("stop pruning")
)

// BETimestamp is a unix time wrapper with big-endian encoding
type BETimestamp uint64

// ToBigEndianBytes returns the big-endian encoding of the timestamp
func (b BETimestamp) ToBigEndianBytes() []byte {
	res := make([]byte, 8)
	binary.BigEndian.PutUint64(res, uint64(b))
	return res
}

func newBETimestamp(t time.Time) BETimestamp {
	return BETimestamp(t.Unix())
}

// CandidateMeta is what the store knows about a candidate.
type CandidateMeta struct {
	DataAvailable bool
	// ChunksStored has one bit per validator of the session.
	ChunksStored bitfield.Bitlist
	PruneAt      BETimestamp
}

func (m CandidateMeta) chunkStored(index uint32) bool {
	return uint64(index) < m.ChunksStored.Len() && m.ChunksStored.BitAt(uint64(index))
}

type availabilityStore struct {
	available   database.Table
	chunk       database.Table
	meta        database.Table
	pruneByTime database.Table
}

type availabilityStoreBatch struct {
	available   database.WriteBatch
	chunk       database.WriteBatch
	meta        database.WriteBatch
	pruneByTime database.WriteBatch
}

func newAvailabilityStore(db database.Database) *availabilityStore {
	return &availabilityStore{
		available:   db.NewTable(availableDataPrefix),
		chunk:       db.NewTable(chunkPrefix),
		meta:        db.NewTable(metaPrefix),
		pruneByTime: db.NewTable(pruneByTimePrefix),
	}
}

func newAvailabilityStoreBatch(as *availabilityStore) *availabilityStoreBatch {
	return &availabilityStoreBatch{
		available:   as.available.NewWriteBatch(),
		chunk:       as.chunk.NewWriteBatch(),
		meta:        as.meta.NewWriteBatch(),
		pruneByTime: as.pruneByTime.NewWriteBatch(),
	}
}

// flush flushes the batch and cancels what is left of it if flushing fails
func (asb *availabilityStoreBatch) flush() error {
	err := asb.flushAll()
	if err != nil {
		asb.cancel()
	}
	return err
}

func (asb *availabilityStoreBatch) flushAll() error {
	err := asb.available.Flush()
	if err != nil {
		return fmt.Errorf("writing available batch: %w", err)
	}
	err = asb.chunk.Flush()
	if err != nil {
		return fmt.Errorf("writing chunk batch: %w", err)
	}
	err = asb.meta.Flush()
	if err != nil {
		return fmt.Errorf("writing meta batch: %w", err)
	}
	err = asb.pruneByTime.Flush()
	if err != nil {
		return fmt.Errorf("writing prune by time batch: %w", err)
	}
	return nil
}

func (asb *availabilityStoreBatch) cancel() {
	asb.available.Cancel()
	asb.chunk.Cancel()
	asb.meta.Cancel()
	asb.pruneByTime.Cancel()
}

func chunkKey(candidate parachaintypes.CandidateHash, index uint32) []byte {
	key := make([]byte, common.HashLength+4)
	copy(key, candidate.Value[:])
	binary.BigEndian.PutUint32(key[common.HashLength:], index)
	return key
}

func pruneKey(pruneAt BETimestamp, candidate parachaintypes.CandidateHash) []byte {
	return append(pruneAt.ToBigEndianBytes(), candidate.Value[:]...)
}

func encode(value any) ([]byte, error) {
	return scale.Marshal(value)
}

func decode(data []byte, target any) error {
	return scale.Unmarshal(data, target)
}

// loadMeta returns nil and no error if the candidate is unknown.
func (as *availabilityStore) loadMeta(candidate parachaintypes.CandidateHash) (*CandidateMeta, error) {
	data, err := as.meta.Get(candidate.Value[:])
	if err != nil {
		if errors.Is(err, database.ErrKeyNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("getting candidate meta: %w", err)
	}

	meta := new(CandidateMeta)
	err = decode(data, meta)
	if err != nil {
		return nil, fmt.Errorf("decoding candidate meta: %w", err)
	}
	return meta, nil
}

// loadAvailableData returns nil and no error if the data is not stored.
func (as *availabilityStore) loadAvailableData(candidate parachaintypes.CandidateHash) (
	*parachaintypes.AvailableData, error) {
	compressed, err := as.available.Get(candidate.Value[:])
	if err != nil {
		if errors.Is(err, database.ErrKeyNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("getting available data: %w", err)
	}

	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("creating zstd decoder: %w", err)
	}
	defer decoder.Close()

	encoded, err := decoder.DecodeAll(compressed, nil)
	if err != nil {
		return nil, fmt.Errorf("decompressing available data: %w", err)
	}

	data := new(parachaintypes.AvailableData)
	err = decode(encoded, data)
	if err != nil {
		return nil, fmt.Errorf("decoding available data: %w", err)
	}
	return data, nil
}

// loadChunk returns nil and no error if the chunk is not stored.
func (as *availabilityStore) loadChunk(candidate parachaintypes.CandidateHash, index uint32) (*ErasureChunk, error) {
	data, err := as.chunk.Get(chunkKey(candidate, index))
	if err != nil {
		if errors.Is(err, database.ErrKeyNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("getting chunk %d: %w", index, err)
	}

	chunk := new(ErasureChunk)
	err = decode(data, chunk)
	if err != nil {
		return nil, fmt.Errorf("decoding chunk %d: %w", index, err)
	}
	return chunk, nil
}

func writeMeta(batch *availabilityStoreBatch, candidate parachaintypes.CandidateHash, meta *CandidateMeta) error {
	data, err := encode(*meta)
	if err != nil {
		return fmt.Errorf("encoding candidate meta: %w", err)
	}
	return batch.meta.Set(candidate.Value[:], data)
}

func writeChunk(batch *availabilityStoreBatch, candidate parachaintypes.CandidateHash, chunk ErasureChunk) error {
	data, err := encode(chunk)
	if err != nil {
		return fmt.Errorf("encoding chunk %d: %w", chunk.Index, err)
	}
	return batch.chunk.Set(chunkKey(candidate, chunk.Index), data)
}

// storeChunk stores a chunk of a candidate the store already knows of.
func (as *availabilityStore) storeChunk(candidate parachaintypes.CandidateHash, chunk ErasureChunk) error {
	meta, err := as.loadMeta(candidate)
	if err != nil {
		return fmt.Errorf("loading meta: %w", err)
	}
	if meta == nil {
		return fmt.Errorf("%w: %s", ErrCandidateNotFound, candidate)
	}
	if uint64(chunk.Index) >= meta.ChunksStored.Len() {
		return fmt.Errorf("%w: %d >= %d", errChunkIndexOutOfRange, chunk.Index, meta.ChunksStored.Len())
	}
	if meta.chunkStored(chunk.Index) {
		logger.Debugf("chunk %d of candidate %s already stored", chunk.Index, candidate)
		return nil
	}

	batch := newAvailabilityStoreBatch(as)
	err = writeChunk(batch, candidate, chunk)
	if err != nil {
		batch.cancel()
		return fmt.Errorf("writing chunk: %w", err)
	}

	meta.ChunksStored.SetBitAt(uint64(chunk.Index), true)
	err = writeMeta(batch, candidate, meta)
	if err != nil {
		batch.cancel()
		return fmt.Errorf("writing meta: %w", err)
	}

	err = batch.flush()
	if err != nil {
		return fmt.Errorf("writing batch: %w", err)
	}

	logger.Debugf("stored chunk %d of candidate %s", chunk.Index, candidate)
	return nil
}

// storeAvailableData erasure codes the data, checks the chunks against the expected erasure root and
// stores the data along with every chunk.
func (as *availabilityStore) storeAvailableData(candidate parachaintypes.CandidateHash, numValidators uint32,
	data parachaintypes.AvailableData, expectedErasureRoot common.Hash, pruneAt BETimestamp) error {
	encoded, err := encode(data)
	if err != nil {
		return fmt.Errorf("encoding available data: %w", err)
	}

	chunks, err := erasure.ObtainChunks(int(numValidators), encoded)
	if err != nil {
		return fmt.Errorf("obtaining chunks: %w", err)
	}

	root, err := erasure.ChunksRoot(chunks)
	if err != nil {
		return fmt.Errorf("computing erasure root: %w", err)
	}
	if root != expectedErasureRoot {
		return fmt.Errorf("%w: expected %s, got %s", ErrInvalidErasureRoot, expectedErasureRoot, root)
	}

	meta, err := as.loadMeta(candidate)
	if err != nil {
		return fmt.Errorf("loading meta: %w", err)
	}
	if meta != nil && meta.DataAvailable {
		return nil
	}

	batch := newAvailabilityStoreBatch(as)
	err = as.writeAvailableData(batch, candidate, meta, chunks, data, pruneAt)
	if err != nil {
		batch.cancel()
		return err
	}

	err = batch.flush()
	if err != nil {
		return fmt.Errorf("writing batch: %w", err)
	}

	logger.Debugf("stored available data and %d chunks of candidate %s", len(chunks), candidate)
	return nil
}

func (*availabilityStore) writeAvailableData(batch *availabilityStoreBatch, candidate parachaintypes.CandidateHash,
	meta *CandidateMeta, chunks [][]byte, data parachaintypes.AvailableData, pruneAt BETimestamp) error {
	if meta == nil {
		meta = &CandidateMeta{PruneAt: pruneAt}
		err := batch.pruneByTime.Set(pruneKey(pruneAt, candidate), []byte{})
		if err != nil {
			return fmt.Errorf("writing pruning key: %w", err)
		}
	}

	meta.DataAvailable = true
	meta.ChunksStored = bitfield.NewBitlist(uint64(len(chunks)))
	for i, chunk := range chunks {
		proof, err := erasure.ChunkProof(chunks, i)
		if err != nil {
			return fmt.Errorf("computing proof of chunk %d: %w", i, err)
		}

		err = writeChunk(batch, candidate, ErasureChunk{
			Chunk: chunk,
			Index: uint32(i),
			Proof: proof,
		})
		if err != nil {
			return fmt.Errorf("writing chunk: %w", err)
		}
		meta.ChunksStored.SetBitAt(uint64(i), true)
	}

	err := writeMeta(batch, candidate, meta)
	if err != nil {
		return fmt.Errorf("writing meta: %w", err)
	}

	encoded, err := encode(data)
	if err != nil {
		return fmt.Errorf("encoding available data: %w", err)
	}
	encoder, err := zstd.NewWriter(nil)
	if err != nil {
		return fmt.Errorf("creating zstd encoder: %w", err)
	}
	defer encoder.Close()

	err = batch.available.Set(candidate.Value[:], encoder.EncodeAll(encoded, nil))
	if err != nil {
		return fmt.Errorf("writing available data: %w", err)
	}
	return nil
}

// pruneBefore deletes every candidate whose pruning time is not after now and returns how many were pruned.
func (as *availabilityStore) pruneBefore(now BETimestamp) (int, error) {
	var expired []parachaintypes.CandidateHash
	var expiredKeys [][]byte
	err := as.pruneByTime.ForEach(nil, func(key, _ []byte) error {
		if len(key) != pruneKeyLength {
			logger.Warnf("skipping malformed pruning key 0x%x", key)
			return nil
		}

		pruneAt := BETimestamp(binary.BigEndian.Uint64(key[:8]))
		if pruneAt > now {
			return errStopPruning
		}

		var candidate parachaintypes.CandidateHash
		copy(candidate.Value[:], key[8:])
		expired = append(expired, candidate)
		expiredKeys = append(expiredKeys, key)
		return nil
	})
	if err != nil && !errors.Is(err, errStopPruning) {
		return 0, fmt.Errorf("iterating pruning keys: %w", err)
	}
	if len(expired) == 0 {
		return 0, nil
	}

	batch := newAvailabilityStoreBatch(as)
	for i, candidate := range expired {
		err = as.deleteCandidate(batch, candidate, expiredKeys[i])
		if err != nil {
			batch.cancel()
			return 0, fmt.Errorf("pruning candidate %s: %w", candidate, err)
		}
	}

	err = batch.flush()
	if err != nil {
		return 0, fmt.Errorf("writing batch: %w", err)
	}
	return len(expired), nil
}

func (as *availabilityStore) deleteCandidate(batch *availabilityStoreBatch, candidate parachaintypes.CandidateHash,
	pruningKey []byte) error {
	err := batch.pruneByTime.Delete(pruningKey)
	if err != nil {
		return fmt.Errorf("deleting pruning key: %w", err)
	}

	meta, err := as.loadMeta(candidate)
	if err != nil {
		return fmt.Errorf("loading meta: %w", err)
	}
	if meta == nil {
		return nil
	}

	for i := uint64(0); i < meta.ChunksStored.Len(); i++ {
		if !meta.ChunksStored.BitAt(i) {
			continue
		}
		err = batch.chunk.Delete(chunkKey(candidate, uint32(i)))
		if err != nil {
			return fmt.Errorf("deleting chunk %d: %w", i, err)
		}
	}

	err = batch.available.Delete(candidate.Value[:])
	if err != nil {
		return fmt.Errorf("deleting available data: %w", err)
	}
	err = batch.meta.Delete(candidate.Value[:])
	if err != nil {
		return fmt.Errorf("deleting meta: %w", err)
	}
	return nil
}
