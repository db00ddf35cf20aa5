// Copyright 2024 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

package availabilitystore

import (
	"context"
	"errors"
	"time"

	parachaintypes "github.com/ChainSafe/parachain-backing/dot/parachain/types"
	"github.com/ChainSafe/parachain-backing/internal/database"
	"github.com/ChainSafe/parachain-backing/internal/log"
)

var logger = log.NewFromGlobal(log.AddContext("pkg", "parachain-availability-store"))

// PruningConfig holds the pruning timings of the store.
type PruningConfig struct {
	// KeepUnavailableFor is how long candidate data is kept after being stored.
	KeepUnavailableFor time.Duration
	// PruningInterval is the time between two pruning passes.
	PruningInterval time.Duration
}

// DefaultPruningConfig keeps candidate data for an hour and prunes every five minutes.
var DefaultPruningConfig = PruningConfig{
	KeepUnavailableFor: time.Hour,
	PruningInterval:    5 * time.Minute,
}

type clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time {
	return time.Now()
}

// AvailabilityStoreSubsystem keeps the available data and erasure chunks of candidates.
type AvailabilityStoreSubsystem struct {
	SubSystemToOverseer chan<- any

	availabilityStore *availabilityStore
	pruningConfig     PruningConfig
	clock             clock
}

// CreateAndRegister creates the availability store subsystem with the default pruning config.
func CreateAndRegister(overseerChan chan<- any, db database.Database) *AvailabilityStoreSubsystem {
	return CreateAndRegisterPruning(overseerChan, db, DefaultPruningConfig)
}

// CreateAndRegisterPruning creates the availability store subsystem with the given pruning config.
func CreateAndRegisterPruning(overseerChan chan<- any, db database.Database,
	pruning PruningConfig) *AvailabilityStoreSubsystem {
	return &AvailabilityStoreSubsystem{
		SubSystemToOverseer: overseerChan,
		availabilityStore:   newAvailabilityStore(db),
		pruningConfig:       pruning,
		clock:               systemClock{},
	}
}

// Run runs the availability store subsystem until the context is done or the overseer channel closes.
func (av *AvailabilityStoreSubsystem) Run(ctx context.Context, overseerToSubSystem <-chan any, _ chan<- any) {
	pruneTicker := time.NewTicker(av.pruningConfig.PruningInterval)
	defer pruneTicker.Stop()

	for {
		select {
		case msg, ok := <-overseerToSubSystem:
			if !ok {
				return
			}
			av.processMessage(ctx, msg)
		case <-pruneTicker.C:
			av.prune()
		case <-ctx.Done():
			if err := ctx.Err(); err != nil && !errors.Is(err, context.Canceled) {
				logger.Errorf("ctx error: %v", err)
			}
			return
		}
	}
}

// Name returns the name of the availability store subsystem
func (*AvailabilityStoreSubsystem) Name() parachaintypes.SubSystemName {
	return parachaintypes.AvailabilityStore
}

// ProcessActiveLeavesUpdateSignal is a no-op, data is pruned by time only.
func (*AvailabilityStoreSubsystem) ProcessActiveLeavesUpdateSignal(parachaintypes.ActiveLeavesUpdateSignal) error {
	return nil
}

// ProcessBlockFinalizedSignal is a no-op, data is pruned by time only.
func (*AvailabilityStoreSubsystem) ProcessBlockFinalizedSignal(parachaintypes.BlockFinalizedSignal) error {
	return nil
}

func (*AvailabilityStoreSubsystem) Stop() {}

func (av *AvailabilityStoreSubsystem) prune() {
	pruned, err := av.availabilityStore.pruneBefore(newBETimestamp(av.clock.Now()))
	if err != nil {
		logger.Errorf("pruning: %s", err)
		return
	}
	if pruned > 0 {
		logger.Debugf("pruned %d candidates", pruned)
	}
}

func (av *AvailabilityStoreSubsystem) processMessage(ctx context.Context, msg any) {
	logger.Tracef("received message %T", msg)

	switch msg := msg.(type) {
	case QueryAvailableData:
		data, err := av.availabilityStore.loadAvailableData(msg.CandidateHash)
		if err != nil {
			logger.Errorf("loading available data of candidate %s: %s", msg.CandidateHash, err)
		}
		respond(ctx, msg.Sender, data)

	case QueryDataAvailability:
		meta, err := av.availabilityStore.loadMeta(msg.CandidateHash)
		if err != nil {
			logger.Errorf("loading meta of candidate %s: %s", msg.CandidateHash, err)
		}
		respond(ctx, msg.Sender, meta != nil && meta.DataAvailable)

	case QueryChunk:
		chunk, err := av.availabilityStore.loadChunk(msg.CandidateHash, msg.ValidatorIndex)
		if err != nil {
			logger.Errorf("loading chunk of candidate %s: %s", msg.CandidateHash, err)
		}
		respond(ctx, msg.Sender, chunk)

	case QueryAllChunks:
		respond(ctx, msg.Sender, av.allChunks(msg.CandidateHash))

	case QueryChunkAvailability:
		meta, err := av.availabilityStore.loadMeta(msg.CandidateHash)
		if err != nil {
			logger.Errorf("loading meta of candidate %s: %s", msg.CandidateHash, err)
		}
		respond(ctx, msg.Sender, meta != nil && meta.chunkStored(msg.ValidatorIndex))

	case StoreChunk:
		err := av.availabilityStore.storeChunk(msg.CandidateHash, msg.Chunk)
		if err != nil {
			logger.Debugf("storing chunk %d of candidate %s: %s", msg.Chunk.Index, msg.CandidateHash, err)
		}
		respond(ctx, msg.Sender, err)

	case StoreAvailableData:
		pruneAt := newBETimestamp(av.clock.Now().Add(av.pruningConfig.KeepUnavailableFor))
		err := av.availabilityStore.storeAvailableData(msg.CandidateHash, msg.NumValidators,
			msg.AvailableData, msg.ExpectedErasureRoot, pruneAt)
		if err != nil {
			logger.Errorf("storing available data of candidate %s: %s", msg.CandidateHash, err)
		}
		respond(ctx, msg.Sender, err)

	case parachaintypes.ActiveLeavesUpdateSignal:
		_ = av.ProcessActiveLeavesUpdateSignal(msg)

	case parachaintypes.BlockFinalizedSignal:
		_ = av.ProcessBlockFinalizedSignal(msg)

	default:
		logger.Errorf("%s: %T", parachaintypes.ErrUnknownOverseerMessage, msg)
	}
}

func (av *AvailabilityStoreSubsystem) allChunks(candidate parachaintypes.CandidateHash) []ErasureChunk {
	meta, err := av.availabilityStore.loadMeta(candidate)
	if err != nil {
		logger.Errorf("loading meta of candidate %s: %s", candidate, err)
		return nil
	}
	if meta == nil {
		return nil
	}

	var chunks []ErasureChunk
	for i := uint64(0); i < meta.ChunksStored.Len(); i++ {
		if !meta.ChunksStored.BitAt(i) {
			continue
		}

		chunk, err := av.availabilityStore.loadChunk(candidate, uint32(i))
		if err != nil {
			logger.Errorf("loading chunk %d of candidate %s: %s", i, candidate, err)
			continue
		}
		if chunk == nil {
			logger.Warnf("chunk %d of candidate %s marked as stored but missing", i, candidate)
			continue
		}
		chunks = append(chunks, *chunk)
	}
	return chunks
}

func respond[T any](ctx context.Context, sender chan T, response T) {
	select {
	case sender <- response:
	case <-ctx.Done():
	}
}
