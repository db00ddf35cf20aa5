// Copyright 2024 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

package candidatevalidation

import (
	"context"
	"sync"

	parachainruntime "github.com/ChainSafe/parachain-backing/dot/parachain/runtime"
	parachaintypes "github.com/ChainSafe/parachain-backing/dot/parachain/types"
	"github.com/ChainSafe/parachain-backing/internal/log"
	"github.com/ChainSafe/parachain-backing/lib/common"
)

var logger = log.NewFromGlobal(log.AddContext("pkg", "parachain-candidate-validation"))

// CandidateValidation is a parachain subsystem that validates candidate parachain blocks
type CandidateValidation struct {
	wg sync.WaitGroup

	SubsystemToOverseer chan<- any
	BlockState          BlockState
	pvfHost             *host // pvfHost is the host for the parachain validation function
}

// BlockState is the relay chain state the subsystem reads validation code from.
type BlockState interface {
	GetRuntime(blockHash common.Hash) (parachainruntime.RuntimeInstance, error)
}

// NewCandidateValidation creates a new CandidateValidation subsystem
func NewCandidateValidation(
	overseerChan chan<- any,
	blockState BlockState,
	newExecutor ExecutorFactory,
) *CandidateValidation {
	return &CandidateValidation{
		SubsystemToOverseer: overseerChan,
		pvfHost:             newValidationHost(newExecutor),
		BlockState:          blockState,
	}
}

// Run starts the CandidateValidation subsystem
func (cv *CandidateValidation) Run(ctx context.Context, overseerToSubsystem <-chan any, _ chan<- any) {
	for {
		select {
		case msg, ok := <-overseerToSubsystem:
			if !ok {
				return
			}
			cv.processMessage(msg)
		case <-ctx.Done():
			if err := ctx.Err(); err != nil && err != context.Canceled {
				logger.Errorf("ctx error: %s", err)
			}
			return
		}
	}
}

// Name returns the name of the subsystem
func (*CandidateValidation) Name() parachaintypes.SubSystemName {
	return parachaintypes.CandidateValidation
}

// ProcessActiveLeavesUpdateSignal processes active leaves update signal
func (*CandidateValidation) ProcessActiveLeavesUpdateSignal(parachaintypes.ActiveLeavesUpdateSignal) error {
	// NOTE: this subsystem does not process active leaves update signal
	return nil
}

// ProcessBlockFinalizedSignal processes block finalized signal
func (*CandidateValidation) ProcessBlockFinalizedSignal(parachaintypes.BlockFinalizedSignal) error {
	// NOTE: this subsystem does not process block finalized signal
	return nil
}

// Stop waits for in-flight validations to finish
func (cv *CandidateValidation) Stop() {
	cv.wg.Wait()
}

// processMessage processes messages sent to the CandidateValidation subsystem
func (cv *CandidateValidation) processMessage(msg any) {
	switch msg := msg.(type) {
	case ValidateFromExhaustive:
		cv.wg.Add(1)
		go func() {
			defer cv.wg.Done()
			cv.validateFromExhaustive(msg)
		}()

	case PreCheck:
		cv.wg.Add(1)
		go func() {
			defer cv.wg.Done()
			outcome := cv.precheckPvF(msg.RelayParent, msg.ValidationCodeHash)
			logger.Debugf("Precheck outcome: %v", outcome)
			msg.ResponseSender <- outcome
		}()

	case parachaintypes.ActiveLeavesUpdateSignal:
		_ = cv.ProcessActiveLeavesUpdateSignal(msg)

	case parachaintypes.BlockFinalizedSignal:
		_ = cv.ProcessBlockFinalizedSignal(msg)

	default:
		logger.Errorf("%s: %T", parachaintypes.ErrUnknownOverseerMessage, msg)
	}
}

func (cv *CandidateValidation) validateFromExhaustive(msg ValidateFromExhaustive) {
	validationTask := &ValidationTask{
		PersistedValidationData: msg.PersistedValidationData,
		ValidationCode:          &msg.ValidationCode,
		CandidateReceipt:        &msg.CandidateReceipt,
		PoV:                     msg.PoV,
		ExecutorParams:          msg.ExecutorParams,
		PvfExecTimeoutKind:      msg.PvfExecTimeoutKind,
	}

	result, err := cv.pvfHost.validate(validationTask)
	if err != nil {
		logger.Errorf("failed to validate from exhaustive: %s", err)
		msg.Ch <- parachaintypes.OverseerFuncRes[ValidationResult]{
			Err: err,
		}
		return
	}
	msg.Ch <- parachaintypes.OverseerFuncRes[ValidationResult]{
		Data: *result,
	}
}

func (cv *CandidateValidation) precheckPvF(relayParent common.Hash, validationCodeHash parachaintypes.
	ValidationCodeHash) PreCheckOutcome {
	runtimeInstance, err := cv.BlockState.GetRuntime(relayParent)
	if err != nil {
		logger.Errorf("failed to get runtime instance: %s", err)
		return PreCheckOutcomeFailed
	}

	code, err := runtimeInstance.ParachainHostValidationCodeByHash(validationCodeHash)
	if err != nil || code == nil {
		logger.Errorf("failed to get validation code by hash %s: %v", validationCodeHash, err)
		return PreCheckOutcomeFailed
	}

	codeDecompressed, err := maybeCompressedBlobDecompress(*code, validationCodeBombLimit)
	if err != nil {
		logger.Debugf("failed to decompress code: %s", err)
		return PreCheckOutcomeInvalid
	}

	if _, err := cv.pvfHost.newExecutor(codeDecompressed); err != nil {
		logger.Debugf("failed to prepare validation code %s: %s", validationCodeHash, err)
		return PreCheckOutcomeInvalid
	}
	return PreCheckOutcomeValid
}
