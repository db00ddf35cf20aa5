// Copyright 2024 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

package backing

import (
	"context"
	"errors"
	"fmt"
	"sync"

	candidatebackingmessages "github.com/ChainSafe/parachain-backing/dot/parachain/backing/messages"
	parachainruntime "github.com/ChainSafe/parachain-backing/dot/parachain/runtime"
	parachaintypes "github.com/ChainSafe/parachain-backing/dot/parachain/types"
	"github.com/ChainSafe/parachain-backing/internal/log"
	"github.com/ChainSafe/parachain-backing/lib/common"
	"github.com/ChainSafe/parachain-backing/lib/keystore"
)

var logger = log.NewFromGlobal(log.AddContext("pkg", "parachain-candidate-backing"))

var _ parachaintypes.Subsystem = (*CandidateBacking)(nil)

// BlockState gives access to the runtime at relay chain blocks.
type BlockState interface {
	GetRuntime(blockHash common.Hash) (parachainruntime.RuntimeInstance, error)
}

// Config holds the optional settings of the candidate backing subsystem.
type Config struct {
	// ValidationCodeCacheSize is the number of validation codes kept in memory.
	ValidationCodeCacheSize int
	// Metrics defaults to NoopMetrics.
	Metrics  Metrics
	LogLevel log.Level
}

// CandidateBacking represents the state of the subsystem responsible for managing candidate backing.
type CandidateBacking struct {
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	SubSystemToOverseer chan<- any
	BlockState          BlockState
	Keystore            keystore.Keystore

	// State tracked for all relay-parents backing work is ongoing for. This includes
	// all active leaves.
	//
	// relay-parents fall into one of 3 categories.
	//   1. active leaves which do support prospective parachains
	//   2. active leaves which do not support prospective parachains
	//   3. relay-chain blocks which are ancestors of an active leaf and do support prospective
	//      parachains.
	//
	// Relay-chain blocks which don't support prospective parachains are
	// never included in the fragment chains of active leaves which do.
	perRelayParent map[common.Hash]*perRelayParentState
	// State tracked for all candidates relevant to the implicit view.
	//
	// This is guaranteed to have an entry for each candidate with a relay parent in the implicit
	// or explicit view for which a `Seconded` statement has been successfully imported.
	perCandidate map[parachaintypes.CandidateHash]*perCandidateState
	// State tracked for all active leaves, whether or not they have prospective parachains enabled.
	perLeaf map[common.Hash]*activeLeafState
	// The implicit view of the relay chain derived from the active leaves.
	implicitView *implicitView
	sessions     *sessionCache
	// Seconded candidates waiting for prospective parachains to accept them, with the statements
	// received for them in the meantime.
	awaitingIntroduction map[parachaintypes.CandidateHash]*pendingIntroduction

	validationCodes   *validationCodeCache
	backgroundResults chan backgroundResult
	metrics           Metrics
}

// perCandidateState represents the state information for a candidate in the subsystem.
type perCandidateState struct {
	persistedValidationData parachaintypes.PersistedValidationData
	secondedLocally         bool
	paraID                  parachaintypes.ParaID
	relayParent             common.Hash
}

type activeLeafState struct {
	prospectiveParachainsMode parachaintypes.ProspectiveParachainsMode
	// Paras we seconded a candidate for under the leaf. Only one candidate per para can be
	// seconded under a leaf without prospective parachains.
	secondedParas map[parachaintypes.ParaID]bool
}

// New creates a new CandidateBacking instance and initialises it with the provided overseer channel.
func New(
	overseerChan chan<- any, blockState BlockState, ks keystore.Keystore, cfg Config,
) (*CandidateBacking, error) {
	logger.Patch(log.SetLevel(cfg.LogLevel))

	validationCodes, err := newValidationCodeCache(blockState, cfg.ValidationCodeCacheSize)
	if err != nil {
		return nil, fmt.Errorf("creating validation code cache: %w", err)
	}

	metrics := cfg.Metrics
	if metrics == nil {
		metrics = NoopMetrics{}
	}

	return &CandidateBacking{
		SubSystemToOverseer:  overseerChan,
		BlockState:           blockState,
		Keystore:             ks,
		perRelayParent:       make(map[common.Hash]*perRelayParentState),
		perCandidate:         make(map[parachaintypes.CandidateHash]*perCandidateState),
		perLeaf:              make(map[common.Hash]*activeLeafState),
		implicitView:         newImplicitView(overseerChan),
		sessions:             newSessionCache(),
		awaitingIntroduction: make(map[parachaintypes.CandidateHash]*pendingIntroduction),
		validationCodes:      validationCodes,
		backgroundResults:    make(chan backgroundResult),
		metrics:              metrics,
	}, nil
}

// Run processes overseer messages and the results of background jobs until the context is done.
func (cb *CandidateBacking) Run(ctx context.Context, overseerToSubSystem <-chan any, _ chan<- any) {
	cb.ctx, cb.cancel = context.WithCancel(ctx)
	defer cb.cancel()

	cb.runUtil(overseerToSubSystem)
}

func (cb *CandidateBacking) runUtil(overseerToSubSystem <-chan any) {
	for {
		select {
		case result := <-cb.backgroundResults:
			cb.processBackgroundResult(result)
		case msg, ok := <-overseerToSubSystem:
			if !ok {
				return
			}
			if err := cb.processMessage(msg); err != nil {
				logger.Errorf("processing overseer message: %s", err)
			}
		case <-cb.ctx.Done():
			if err := cb.ctx.Err(); err != nil && !errors.Is(err, context.Canceled) {
				logger.Errorf("ctx error: %s", err)
			}
			return
		}
	}
}

// Stop waits for the background jobs, which end once Run has returned.
func (cb *CandidateBacking) Stop() {
	cb.wg.Wait()
}

func (*CandidateBacking) Name() parachaintypes.SubSystemName {
	return parachaintypes.CandidateBacking
}

// processMessage processes incoming messages from overseer
func (cb *CandidateBacking) processMessage(msg any) error {
	switch msg := msg.(type) {
	case candidatebackingmessages.GetBackableCandidatesMessage:
		cb.handleGetBackableCandidatesMessage(msg)
	case candidatebackingmessages.CanSecondMessage:
		cb.handleCanSecondMessage(msg)
	case candidatebackingmessages.SecondMessage:
		return cb.handleSecondMessage(msg)
	case candidatebackingmessages.StatementMessage:
		cb.handleStatementMessage(msg.RelayParent, msg.SignedFullStatement)
	case parachaintypes.ActiveLeavesUpdateSignal:
		return cb.ProcessActiveLeavesUpdateSignal(msg)
	case parachaintypes.BlockFinalizedSignal:
		return cb.ProcessBlockFinalizedSignal(msg)
	default:
		return fmt.Errorf("%w: %T", parachaintypes.ErrUnknownOverseerMessage, msg)
	}
	return nil
}

// ProcessBlockFinalizedSignal is a no-op, relay parents are pruned as leaves are deactivated.
func (*CandidateBacking) ProcessBlockFinalizedSignal(parachaintypes.BlockFinalizedSignal) error {
	return nil
}

// runContext is the context of the running subsystem.
func (cb *CandidateBacking) runContext() context.Context {
	if cb.ctx == nil {
		return context.Background()
	}
	return cb.ctx
}

// sendToOverseer sends a message to the overseer, giving up when the subsystem stops.
func (cb *CandidateBacking) sendToOverseer(msg any) {
	select {
	case cb.SubSystemToOverseer <- msg:
	case <-cb.runContext().Done():
	}
}

// spawn runs the job in the background and hands its result, if any, back to the run loop.
func (cb *CandidateBacking) spawn(job func(ctx context.Context) backgroundResult) {
	ctx := cb.runContext()

	cb.wg.Add(1)
	go func() {
		defer cb.wg.Done()

		result := job(ctx)
		if result == nil {
			return
		}

		select {
		case cb.backgroundResults <- result:
		case <-ctx.Done():
		}
	}()
}
