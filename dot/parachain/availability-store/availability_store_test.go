// Copyright 2024 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

package availabilitystore

import (
	"context"
	"sync"
	"testing"
	"time"

	parachaintypes "github.com/ChainSafe/parachain-backing/dot/parachain/types"
	"github.com/ChainSafe/parachain-backing/internal/database"
	"github.com/ChainSafe/parachain-backing/internal/database/badger"
	"github.com/ChainSafe/parachain-backing/lib/common"
	"github.com/ChainSafe/parachain-backing/lib/erasure"
	"github.com/prysmaticlabs/go-bitfield"
	"github.com/stretchr/testify/require"
)

const testNumValidators = uint32(10)

var (
	testCandidateHash = parachaintypes.CandidateHash{Value: common.Hash{0x01}}

	testAvailableData = parachaintypes.AvailableData{
		PoV: parachaintypes.PoV{BlockData: []byte("blockdata")},
		ValidationData: parachaintypes.PersistedValidationData{
			ParentHead:             parachaintypes.HeadData{Data: []byte("parentHead")},
			RelayParentNumber:      7,
			RelayParentStorageRoot: common.Hash{0x07},
			MaxPovSize:             1024,
		},
	}
)

type testClock struct {
	mtx sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	return c.now
}

func (c *testClock) set(now time.Time) {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	c.now = now
}

func ptrTo[T any](value T) *T { return &value }

func newTestDatabase(t *testing.T) database.Database {
	t.Helper()

	db, err := badger.New(badger.Settings{InMemory: ptrTo(true)})
	require.NoError(t, err)
	t.Cleanup(func() {
		err := db.Close()
		require.NoError(t, err)
	})
	return db
}

func erasureRoot(t *testing.T, numValidators uint32, data parachaintypes.AvailableData) common.Hash {
	t.Helper()

	encoded, err := encode(data)
	require.NoError(t, err)
	chunks, err := erasure.ObtainChunks(int(numValidators), encoded)
	require.NoError(t, err)
	root, err := erasure.ChunksRoot(chunks)
	require.NoError(t, err)
	return root
}

// startSubsystem runs the subsystem and returns the channel the test sends overseer messages on.
func startSubsystem(t *testing.T, av *AvailabilityStoreSubsystem) chan<- any {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	overseerToSubsystem := make(chan any)
	done := make(chan struct{})
	go func() {
		defer close(done)
		av.Run(ctx, overseerToSubsystem, nil)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return overseerToSubsystem
}

func storeAvailableData(t *testing.T, overseerToSubsystem chan<- any, candidate parachaintypes.CandidateHash,
	expectedRoot common.Hash) error {
	t.Helper()

	sender := make(chan error, 1)
	overseerToSubsystem <- StoreAvailableData{
		CandidateHash:       candidate,
		NumValidators:       testNumValidators,
		AvailableData:       testAvailableData,
		ExpectedErasureRoot: expectedRoot,
		Sender:              sender,
	}
	return <-sender
}

func queryDataAvailability(overseerToSubsystem chan<- any, candidate parachaintypes.CandidateHash) bool {
	sender := make(chan bool, 1)
	overseerToSubsystem <- QueryDataAvailability{CandidateHash: candidate, Sender: sender}
	return <-sender
}

func TestStoreAvailableDataAndQuery(t *testing.T) {
	t.Parallel()

	av := CreateAndRegister(nil, newTestDatabase(t))
	overseerToSubsystem := startSubsystem(t, av)

	root := erasureRoot(t, testNumValidators, testAvailableData)
	err := storeAvailableData(t, overseerToSubsystem, testCandidateHash, root)
	require.NoError(t, err)

	// storing twice is a no-op
	err = storeAvailableData(t, overseerToSubsystem, testCandidateHash, root)
	require.NoError(t, err)

	dataSender := make(chan *parachaintypes.AvailableData, 1)
	overseerToSubsystem <- QueryAvailableData{CandidateHash: testCandidateHash, Sender: dataSender}
	require.Equal(t, &testAvailableData, <-dataSender)

	require.True(t, queryDataAvailability(overseerToSubsystem, testCandidateHash))

	chunkSender := make(chan *ErasureChunk, 1)
	overseerToSubsystem <- QueryChunk{CandidateHash: testCandidateHash, ValidatorIndex: 3, Sender: chunkSender}
	chunk := <-chunkSender
	require.NotNil(t, chunk)
	require.Equal(t, uint32(3), chunk.Index)
	require.True(t, erasure.VerifyChunkProof(root, chunk.Chunk, 3, int(testNumValidators), chunk.Proof))

	allChunksSender := make(chan []ErasureChunk, 1)
	overseerToSubsystem <- QueryAllChunks{CandidateHash: testCandidateHash, Sender: allChunksSender}
	allChunks := <-allChunksSender
	require.Len(t, allChunks, int(testNumValidators))
	for i, chunk := range allChunks {
		require.Equal(t, uint32(i), chunk.Index)
	}

	availabilitySender := make(chan bool, 1)
	overseerToSubsystem <- QueryChunkAvailability{
		CandidateHash:  testCandidateHash,
		ValidatorIndex: testNumValidators - 1,
		Sender:         availabilitySender,
	}
	require.True(t, <-availabilitySender)

	overseerToSubsystem <- QueryChunkAvailability{
		CandidateHash:  testCandidateHash,
		ValidatorIndex: testNumValidators,
		Sender:         availabilitySender,
	}
	require.False(t, <-availabilitySender)
}

func TestQueryUnknownCandidate(t *testing.T) {
	t.Parallel()

	av := CreateAndRegister(nil, newTestDatabase(t))
	overseerToSubsystem := startSubsystem(t, av)
	unknown := parachaintypes.CandidateHash{Value: common.Hash{0xff}}

	dataSender := make(chan *parachaintypes.AvailableData, 1)
	overseerToSubsystem <- QueryAvailableData{CandidateHash: unknown, Sender: dataSender}
	require.Nil(t, <-dataSender)

	require.False(t, queryDataAvailability(overseerToSubsystem, unknown))

	chunkSender := make(chan *ErasureChunk, 1)
	overseerToSubsystem <- QueryChunk{CandidateHash: unknown, Sender: chunkSender}
	require.Nil(t, <-chunkSender)

	allChunksSender := make(chan []ErasureChunk, 1)
	overseerToSubsystem <- QueryAllChunks{CandidateHash: unknown, Sender: allChunksSender}
	require.Empty(t, <-allChunksSender)

	availabilitySender := make(chan bool, 1)
	overseerToSubsystem <- QueryChunkAvailability{CandidateHash: unknown, Sender: availabilitySender}
	require.False(t, <-availabilitySender)
}

func TestStoreAvailableDataErasureMismatch(t *testing.T) {
	t.Parallel()

	av := CreateAndRegister(nil, newTestDatabase(t))
	overseerToSubsystem := startSubsystem(t, av)

	err := storeAvailableData(t, overseerToSubsystem, testCandidateHash, common.Hash{0xba, 0xd})
	require.ErrorIs(t, err, ErrInvalidErasureRoot)

	require.False(t, queryDataAvailability(overseerToSubsystem, testCandidateHash))
}

func TestStoreChunk(t *testing.T) {
	t.Parallel()

	av := CreateAndRegister(nil, newTestDatabase(t))
	chunk := ErasureChunk{
		Chunk: []byte("chunk1"),
		Index: 1,
		Proof: []common.Hash{{0x01}, {0x02}},
	}

	err := av.availabilityStore.storeChunk(testCandidateHash, chunk)
	require.ErrorIs(t, err, ErrCandidateNotFound)

	// the candidate becomes known without its data, as when only chunks are fetched
	batch := newAvailabilityStoreBatch(av.availabilityStore)
	err = writeMeta(batch, testCandidateHash, &CandidateMeta{ChunksStored: bitfield.NewBitlist(3)})
	require.NoError(t, err)
	require.NoError(t, batch.flush())

	overseerToSubsystem := startSubsystem(t, av)

	errSender := make(chan error, 1)
	overseerToSubsystem <- StoreChunk{CandidateHash: testCandidateHash, Chunk: chunk, Sender: errSender}
	require.NoError(t, <-errSender)

	chunkSender := make(chan *ErasureChunk, 1)
	overseerToSubsystem <- QueryChunk{CandidateHash: testCandidateHash, ValidatorIndex: 1, Sender: chunkSender}
	require.Equal(t, &chunk, <-chunkSender)

	overseerToSubsystem <- QueryChunk{CandidateHash: testCandidateHash, ValidatorIndex: 0, Sender: chunkSender}
	require.Nil(t, <-chunkSender)

	availabilitySender := make(chan bool, 1)
	overseerToSubsystem <- QueryChunkAvailability{
		CandidateHash:  testCandidateHash,
		ValidatorIndex: 1,
		Sender:         availabilitySender,
	}
	require.True(t, <-availabilitySender)

	// chunks alone do not make the data available
	require.False(t, queryDataAvailability(overseerToSubsystem, testCandidateHash))

	outOfRange := chunk
	outOfRange.Index = 3
	overseerToSubsystem <- StoreChunk{CandidateHash: testCandidateHash, Chunk: outOfRange, Sender: errSender}
	require.ErrorIs(t, <-errSender, errChunkIndexOutOfRange)
}

func TestPruneBefore(t *testing.T) {
	t.Parallel()

	db := newTestDatabase(t)
	store := newAvailabilityStore(db)
	root := erasureRoot(t, testNumValidators, testAvailableData)
	stored := time.Unix(1_700_000_000, 0)

	early := parachaintypes.CandidateHash{Value: common.Hash{0x01}}
	late := parachaintypes.CandidateHash{Value: common.Hash{0x02}}
	err := store.storeAvailableData(early, testNumValidators, testAvailableData, root,
		newBETimestamp(stored.Add(time.Hour)))
	require.NoError(t, err)
	err = store.storeAvailableData(late, testNumValidators, testAvailableData, root,
		newBETimestamp(stored.Add(2*time.Hour)))
	require.NoError(t, err)

	pruned, err := store.pruneBefore(newBETimestamp(stored.Add(30 * time.Minute)))
	require.NoError(t, err)
	require.Zero(t, pruned)

	pruned, err = store.pruneBefore(newBETimestamp(stored.Add(time.Hour)))
	require.NoError(t, err)
	require.Equal(t, 1, pruned)

	meta, err := store.loadMeta(early)
	require.NoError(t, err)
	require.Nil(t, meta)
	data, err := store.loadAvailableData(early)
	require.NoError(t, err)
	require.Nil(t, data)
	chunk, err := store.loadChunk(early, 0)
	require.NoError(t, err)
	require.Nil(t, chunk)

	data, err = store.loadAvailableData(late)
	require.NoError(t, err)
	require.Equal(t, &testAvailableData, data)

	pruned, err = store.pruneBefore(newBETimestamp(stored.Add(3 * time.Hour)))
	require.NoError(t, err)
	require.Equal(t, 1, pruned)

	err = db.ForEach(nil, func(key, _ []byte) error {
		t.Errorf("unexpected key left after pruning: 0x%x", key)
		return nil
	})
	require.NoError(t, err)
}

func TestStoredDataIsPrunedOnTick(t *testing.T) {
	t.Parallel()

	av := CreateAndRegisterPruning(nil, newTestDatabase(t), PruningConfig{
		KeepUnavailableFor: time.Hour,
		PruningInterval:    10 * time.Millisecond,
	})
	stored := time.Unix(1_700_000_000, 0)
	clock := &testClock{now: stored}
	av.clock = clock
	overseerToSubsystem := startSubsystem(t, av)

	root := erasureRoot(t, testNumValidators, testAvailableData)
	err := storeAvailableData(t, overseerToSubsystem, testCandidateHash, root)
	require.NoError(t, err)

	time.Sleep(50 * time.Millisecond)
	require.True(t, queryDataAvailability(overseerToSubsystem, testCandidateHash))

	clock.set(stored.Add(2 * time.Hour))

	require.Eventually(t, func() bool {
		return !queryDataAvailability(overseerToSubsystem, testCandidateHash)
	}, time.Second, 20*time.Millisecond)
}
