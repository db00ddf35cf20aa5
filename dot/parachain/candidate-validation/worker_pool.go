// Copyright 2024 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

package candidatevalidation

import (
	"fmt"
	"sync"

	parachaintypes "github.com/ChainSafe/parachain-backing/dot/parachain/types"
)

// workerPool keeps one worker per validation code, so code is prepared once and reused
// across candidates of the same para.
type workerPool struct {
	mtx     sync.RWMutex
	workers map[parachaintypes.ValidationCodeHash]*worker
}

// ValidationTask is a request to validate a candidate with the given code.
type ValidationTask struct {
	PersistedValidationData parachaintypes.PersistedValidationData
	WorkerID                *parachaintypes.ValidationCodeHash
	CandidateReceipt        *parachaintypes.CandidateReceipt
	PoV                     parachaintypes.PoV
	ExecutorParams          parachaintypes.ExecutorParams
	PvfExecTimeoutKind      parachaintypes.PvfExecKind
	ValidationCode          *parachaintypes.ValidationCode
}

// ValidationResult represents the result coming from the candidate validation subsystem.
// Validation results can be either a ValidValidationResult or InvalidValidationResult.
//
// If the result is invalid,
// store the reason for invalidity in the InvalidResult field of ValidationResult.
//
// If the result is valid,
// set the values of the ValidResult field of ValidValidationResult.
type ValidationResult struct {
	ValidResult   *ValidValidationResult
	InvalidResult *ReasonForInvalidity
}

// IsValid returns true if the candidate passed validation.
func (vr ValidationResult) IsValid() bool {
	return vr.ValidResult != nil
}

// ValidValidationResult holds the outputs of a successful validation.
type ValidValidationResult struct {
	CandidateCommitments    parachaintypes.CandidateCommitments
	PersistedValidationData parachaintypes.PersistedValidationData
}

// ReasonForInvalidity is the reason a candidate failed validation.
type ReasonForInvalidity byte

const (
	// ExecutionError Failed to execute `validate_block`. This includes function panicking.
	ExecutionError ReasonForInvalidity = iota
	// InvalidOutputs Validation outputs check doesn't pass.
	InvalidOutputs
	// Timeout Execution timeout.
	Timeout
	// ParamsTooLarge Validation input is over the limit.
	ParamsTooLarge
	// CodeTooLarge Code size is over the limit.
	CodeTooLarge
	// PoVDecompressionFailure PoV does not decompress correctly.
	PoVDecompressionFailure
	// BadReturn Validation function returned invalid data.
	BadReturn
	// BadParent Invalid relay chain parent.
	BadParent
	// PoVHashMismatch POV hash does not match.
	PoVHashMismatch
	// BadSignature Bad collator signature.
	BadSignature
	// ParaHeadHashMismatch Para head hash does not match.
	ParaHeadHashMismatch
	// CodeHashMismatch Validation code hash does not match.
	CodeHashMismatch
	// CommitmentsHashMismatch Validation has generated different candidate commitments.
	CommitmentsHashMismatch
)

func (ci ReasonForInvalidity) Error() string {
	switch ci {
	case ExecutionError:
		return "failed to execute `validate_block`"
	case InvalidOutputs:
		return "validation outputs check doesn't pass"
	case Timeout:
		return "execution timeout"
	case ParamsTooLarge:
		return "validation input is over the limit"
	case CodeTooLarge:
		return "code size is over the limit"
	case PoVDecompressionFailure:
		return "PoV does not decompress correctly"
	case BadReturn:
		return "validation function returned invalid data"
	case BadParent:
		return "invalid relay chain parent"
	case PoVHashMismatch:
		return "PoV hash does not match"
	case BadSignature:
		return "bad collator signature"
	case ParaHeadHashMismatch:
		return "para head hash does not match"
	case CodeHashMismatch:
		return "validation code hash does not match"
	case CommitmentsHashMismatch:
		return "validation has generated different candidate commitments"
	default:
		return "unknown invalidity reason"
	}
}

func newValidationWorkerPool() *workerPool {
	return &workerPool{
		workers: make(map[parachaintypes.ValidationCodeHash]*worker),
	}
}

func (v *workerPool) newValidationWorker(
	newExecutor ExecutorFactory,
	validationCode parachaintypes.ValidationCode,
) (*worker, error) {
	v.mtx.Lock()
	defer v.mtx.Unlock()

	worker, err := newWorker(newExecutor, validationCode)
	if err != nil {
		return nil, fmt.Errorf("failed to create a new worker: %w", err)
	}

	if existing, ok := v.workers[worker.workerID]; ok {
		return existing, nil
	}
	v.workers[worker.workerID] = worker

	return worker, nil
}

// submitRequest given a request, the worker pool will get the worker for a given workerID
// and execute the request on it.
func (v *workerPool) submitRequest(workerID parachaintypes.ValidationCodeHash,
	request *workerTask) (*ValidationResult, error) {
	logger.Debugf("pool submit request workerID %s", workerID)

	v.mtx.RLock()
	syncWorker, inMap := v.workers[workerID]
	v.mtx.RUnlock()

	if !inMap {
		return nil, fmt.Errorf("%w: %s", errWorkerNotFound, workerID)
	}
	return syncWorker.executeRequest(request)
}

func (v *workerPool) containsWorker(workerID parachaintypes.ValidationCodeHash) bool {
	v.mtx.RLock()
	defer v.mtx.RUnlock()

	_, inMap := v.workers[workerID]
	return inMap
}
