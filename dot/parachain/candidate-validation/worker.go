// Copyright 2024 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

package candidatevalidation

import (
	"errors"
	"fmt"
	"sync"
	"time"

	parachaintypes "github.com/ChainSafe/parachain-backing/dot/parachain/types"
	"github.com/ChainSafe/parachain-backing/lib/common"
)

var (
	errWorkerNotFound = errors.New("worker not found")
	errNilExecutor    = errors.New("executor factory returned nil executor")
)

// ValidationParameters contains parameters for evaluating the parachain validity function.
type ValidationParameters struct {
	// Previous head-data.
	ParentHeadData parachaintypes.HeadData
	// The collation body.
	BlockData []byte
	// The current relay-chain block number.
	RelayParentNumber uint32
	// The relay-chain block's storage root.
	RelayParentStorageRoot common.Hash
}

// ValidationOutputs is the result of executing validate_block. It is similar to
// CandidateCommitments, but different order.
type ValidationOutputs struct {
	// The head-data is the new head data that should be included in the relay chain state.
	HeadData parachaintypes.HeadData
	// NewValidationCode is an update to the validation code that should be scheduled in the relay chain.
	NewValidationCode *parachaintypes.ValidationCode
	// UpwardMessages are upward messages send by the Parachain.
	UpwardMessages []parachaintypes.UpwardMessage
	// HorizontalMessages are Outbound horizontal messages sent by the parachain.
	HorizontalMessages []parachaintypes.OutboundHrmpMessage
	// The number of messages processed from the DMQ. It is expected that the Parachain processes them from first to last.
	ProcessedDownwardMessages uint32
	// The mark which specifies the block number up to which all inbound HRMP messages are processed.
	HrmpWatermark uint32
}

// Executor runs the validate_block entrypoint of prepared validation code.
type Executor interface {
	ValidateBlock(params ValidationParameters) (*ValidationOutputs, error)
}

// ExecutorFactory prepares an executor for the given (decompressed) validation code.
type ExecutorFactory func(code parachaintypes.ValidationCode) (Executor, error)

// worker is the thing that can execute a validation request
type worker struct {
	workerID parachaintypes.ValidationCodeHash
	instance Executor

	mtx         sync.Mutex
	isProcessed map[parachaintypes.CandidateHash]*ValidationResult
}

type workerTask struct {
	work             ValidationParameters
	maxPoVSize       uint32
	candidateReceipt *parachaintypes.CandidateReceipt
	timeout          time.Duration
}

func newWorker(newExecutor ExecutorFactory, validationCode parachaintypes.ValidationCode) (*worker, error) {
	workerID, err := validationCode.Hash()
	if err != nil {
		return nil, fmt.Errorf("hashing validation code: %w", err)
	}

	code, err := maybeCompressedBlobDecompress(validationCode, validationCodeBombLimit)
	if err != nil {
		return nil, fmt.Errorf("decompressing validation code: %w", err)
	}

	instance, err := newExecutor(code)
	if err != nil {
		return nil, err
	}
	if instance == nil {
		return nil, errNilExecutor
	}

	return &worker{
		workerID:    workerID,
		instance:    instance,
		isProcessed: make(map[parachaintypes.CandidateHash]*ValidationResult),
	}, nil
}

func invalid(reason ReasonForInvalidity) *ValidationResult {
	return &ValidationResult{InvalidResult: &reason}
}

func (w *worker) executeRequest(task *workerTask) (*ValidationResult, error) {
	logger.Tracef("[EXECUTING] worker %s", w.workerID)
	candidateHash, err := parachaintypes.GetCandidateHash(*task.candidateReceipt)
	if err != nil {
		return nil, err
	}

	w.mtx.Lock()
	processed, ok := w.isProcessed[candidateHash]
	w.mtx.Unlock()
	if ok {
		logger.Debugf("candidate %s already processed", candidateHash)
		return processed, nil
	}

	validationResult, reason := w.execute(task)
	if reason != nil {
		return invalid(*reason), nil
	}

	headDataHash, err := validationResult.HeadData.Hash()
	if err != nil {
		logger.Errorf("hashing head data: %s", err)
		return invalid(ExecutionError), nil
	}

	if headDataHash != task.candidateReceipt.Descriptor.ParaHead {
		return invalid(ParaHeadHashMismatch), nil
	}
	candidateCommitments := parachaintypes.CandidateCommitments{
		UpwardMessages:            validationResult.UpwardMessages,
		HorizontalMessages:        validationResult.HorizontalMessages,
		NewValidationCode:         validationResult.NewValidationCode,
		HeadData:                  validationResult.HeadData,
		ProcessedDownwardMessages: validationResult.ProcessedDownwardMessages,
		HrmpWatermark:             validationResult.HrmpWatermark,
	}

	commitmentsHash, err := candidateCommitments.Hash()
	if err != nil {
		return nil, fmt.Errorf("hashing candidate commitments: %w", err)
	}

	// if validation produced a new set of commitments, we treat the candidate as invalid
	if task.candidateReceipt.CommitmentsHash != commitmentsHash {
		return invalid(CommitmentsHashMismatch), nil
	}
	pvd := parachaintypes.PersistedValidationData{
		ParentHead:             task.work.ParentHeadData,
		RelayParentNumber:      task.work.RelayParentNumber,
		RelayParentStorageRoot: task.work.RelayParentStorageRoot,
		MaxPovSize:             task.maxPoVSize,
	}
	result := &ValidationResult{
		ValidResult: &ValidValidationResult{
			CandidateCommitments:    candidateCommitments,
			PersistedValidationData: pvd,
		},
	}

	w.mtx.Lock()
	w.isProcessed[candidateHash] = result
	w.mtx.Unlock()
	return result, nil
}

type executionOutcome struct {
	outputs *ValidationOutputs
	err     error
}

// execute runs validate_block bounded by the task timeout.
func (w *worker) execute(task *workerTask) (*ValidationOutputs, *ReasonForInvalidity) {
	outcomeCh := make(chan executionOutcome, 1)
	go func() {
		outputs, err := w.instance.ValidateBlock(task.work)
		outcomeCh <- executionOutcome{outputs: outputs, err: err}
	}()

	timer := time.NewTimer(task.timeout)
	defer timer.Stop()

	select {
	case outcome := <-outcomeCh:
		if outcome.err != nil {
			logger.Debugf("executing validate_block: %s", outcome.err)
			reason := ExecutionError
			return nil, &reason
		}
		if outcome.outputs == nil {
			reason := BadReturn
			return nil, &reason
		}
		return outcome.outputs, nil
	case <-timer.C:
		reason := Timeout
		return nil, &reason
	}
}
