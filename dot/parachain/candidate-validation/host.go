// Copyright 2024 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

package candidatevalidation

import (
	"bytes"
	"fmt"
	"time"

	parachaintypes "github.com/ChainSafe/parachain-backing/dot/parachain/types"
	"github.com/ChainSafe/parachain-backing/pkg/scale"
	"github.com/klauspost/compress/zstd"
)

const (
	maxPoVSize              = 5 * 1024 * 1024
	povBombLimit            = maxPoVSize * 4
	maxCodeSize             = 3 * 1024 * 1024
	validationCodeBombLimit = maxCodeSize * 4

	defaultBackingExecutionTimeout  = 2 * time.Second
	defaultApprovalExecutionTimeout = 12 * time.Second
)

// host is the host for the parachain validation function
type host struct {
	workerPool  *workerPool
	newExecutor ExecutorFactory
}

func newValidationHost(newExecutor ExecutorFactory) *host {
	return &host{
		workerPool:  newValidationWorkerPool(),
		newExecutor: newExecutor,
	}
}

func (v *host) validate(msg *ValidationTask) (*ValidationResult, error) {
	validationCodeHash, err := msg.ValidationCode.Hash()
	if err != nil {
		return nil, fmt.Errorf("hashing validation code: %w", err)
	}

	// basic checks
	validationErr, internalErr := performBasicChecks(&msg.CandidateReceipt.Descriptor,
		msg.PersistedValidationData.MaxPovSize,
		msg.PoV,
		validationCodeHash)
	if internalErr != nil {
		return nil, internalErr
	}

	if validationErr != nil {
		return &ValidationResult{InvalidResult: validationErr}, nil
	}

	blockData, err := maybeCompressedBlobDecompress(msg.PoV.BlockData, povBombLimit)
	if err != nil {
		logger.Debugf("decompressing PoV of candidate with code %s: %s", validationCodeHash, err)
		return invalid(PoVDecompressionFailure), nil
	}

	workerID, err := v.poolContainsWorker(msg, validationCodeHash)
	if err != nil {
		return nil, err
	}

	validationParams := ValidationParameters{
		ParentHeadData:         msg.PersistedValidationData.ParentHead,
		BlockData:              blockData,
		RelayParentNumber:      msg.PersistedValidationData.RelayParentNumber,
		RelayParentStorageRoot: msg.PersistedValidationData.RelayParentStorageRoot,
	}
	workTask := &workerTask{
		work:             validationParams,
		maxPoVSize:       msg.PersistedValidationData.MaxPovSize,
		candidateReceipt: msg.CandidateReceipt,
		timeout:          executionTimeout(msg.ExecutorParams, msg.PvfExecTimeoutKind),
	}
	return v.workerPool.submitRequest(workerID, workTask)
}

func (v *host) poolContainsWorker(
	msg *ValidationTask,
	validationCodeHash parachaintypes.ValidationCodeHash,
) (parachaintypes.ValidationCodeHash, error) {
	if msg.WorkerID != nil {
		return *msg.WorkerID, nil
	}
	if v.workerPool.containsWorker(validationCodeHash) {
		return validationCodeHash, nil
	}

	worker, err := v.workerPool.newValidationWorker(v.newExecutor, *msg.ValidationCode)
	if err != nil {
		return parachaintypes.ValidationCodeHash{}, err
	}
	return worker.workerID, nil
}

// executionTimeout returns the execution timeout for the given kind, as set by the session
// executor params or the default for that kind.
func executionTimeout(params parachaintypes.ExecutorParams, kind parachaintypes.PvfExecKind) time.Duration {
	if ms, ok := params.ExecTimeout(kind); ok {
		return time.Duration(ms) * time.Millisecond
	}
	if kind == parachaintypes.PvfExecKindApproval {
		return defaultApprovalExecutionTimeout
	}
	return defaultBackingExecutionTimeout
}

// performBasicChecks Does basic checks of a candidate. Provide the encoded PoV-block.
// Returns ReasonForInvalidity and internal error if any.
func performBasicChecks(candidate *parachaintypes.CandidateDescriptor, maxPoVSize uint32,
	pov parachaintypes.PoV, validationCodeHash parachaintypes.ValidationCodeHash) (
	validationError *ReasonForInvalidity, internalError error) {
	povHash, err := pov.Hash()
	if err != nil {
		return nil, fmt.Errorf("hashing PoV: %w", err)
	}

	encodedPoV, err := scale.Marshal(pov)
	if err != nil {
		return nil, fmt.Errorf("encoding PoV: %w", err)
	}

	if uint64(len(encodedPoV)) > uint64(maxPoVSize) {
		ci := ParamsTooLarge
		return &ci, nil
	}

	if povHash != candidate.PovHash {
		ci := PoVHashMismatch
		return &ci, nil
	}

	if validationCodeHash != candidate.ValidationCodeHash {
		ci := CodeHashMismatch
		return &ci, nil
	}

	err = candidate.CheckCollatorSignature()
	if err != nil {
		ci := BadSignature
		return &ci, nil
	}
	return nil, nil
}

// An arbitrary prefix, that indicates a blob beginning with should be decompressed with
// Zstd compression.
//
// This differs from the WASM magic bytes, so real WASM blobs will not have this prefix.
var zstdPrefix = []byte{82, 188, 83, 118, 70, 219, 142, 5}

func maybeCompressedBlobDecompress(blob []byte, bombLimit uint64) ([]byte, error) {
	if !bytes.HasPrefix(blob, zstdPrefix) {
		return blob, nil
	}

	decoder, err := zstd.NewReader(nil, zstd.WithDecoderMaxMemory(bombLimit))
	if err != nil {
		return nil, fmt.Errorf("creating zstd decoder: %w", err)
	}
	defer decoder.Close()

	return decoder.DecodeAll(blob[len(zstdPrefix):], nil)
}
