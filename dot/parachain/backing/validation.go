// Copyright 2024 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

package backing

import (
	"context"
	"errors"
	"fmt"
	"time"

	availabilitystore "github.com/ChainSafe/parachain-backing/dot/parachain/availability-store"
	candidatevalidation "github.com/ChainSafe/parachain-backing/dot/parachain/candidate-validation"
	parachaintypes "github.com/ChainSafe/parachain-backing/dot/parachain/types"
	"github.com/ChainSafe/parachain-backing/dot/parachain/util"
	"github.com/ChainSafe/parachain-backing/lib/common"
)

// validationJob is a candidate to validate and make available, along with what to do with the result.
type validationJob struct {
	command                 validatedCandidateCommand
	relayParent             common.Hash
	candidateReceipt        parachaintypes.CandidateReceipt
	candidateHash           parachaintypes.CandidateHash
	persistedValidationData parachaintypes.PersistedValidationData
	// pov is nil when it has to be fetched from fromValidator.
	pov            *parachaintypes.PoV
	fromValidator  parachaintypes.ValidatorIndex
	numValidators  uint32
	executorParams parachaintypes.ExecutorParams
}

func (job *validationJob) paraID() parachaintypes.ParaID {
	return job.candidateReceipt.Descriptor.ParaID
}

// spawnValidation validates the candidate of the job in the background and reports the result
// to the run loop.
func (cb *CandidateBacking) spawnValidation(job *validationJob) {
	overseerChan := cb.SubSystemToOverseer
	validationCodes := cb.validationCodes
	metrics := cb.metrics

	cb.spawn(func(ctx context.Context) backgroundResult {
		start := time.Now()
		result := validateAndMakeAvailable(ctx, overseerChan, validationCodes, job)
		metrics.ObserveValidationDuration(time.Since(start))
		return result
	})
}

// validateAndMakeAvailable validates the candidate and, if it is valid, stores its available data
// so that its chunks can be served to other validators. A candidate whose erasure root does not
// match its available data is invalid.
func validateAndMakeAvailable(
	ctx context.Context,
	overseerChan chan<- any,
	validationCodes *validationCodeCache,
	job *validationJob,
) *validationResult {
	pov := job.pov
	if pov == nil {
		fetched, err := fetchPoV(ctx, overseerChan, job)
		if errors.Is(err, parachaintypes.ErrFetchPoV) {
			return &validationResult{job: job, command: attestNoPoV}
		}
		if err != nil {
			return &validationResult{job: job, command: job.command, err: err}
		}
		pov = fetched
	}

	validationCode, err := validationCodes.get(job.relayParent, job.candidateReceipt.Descriptor.ValidationCodeHash)
	if err != nil {
		return &validationResult{job: job, command: job.command, err: err}
	}

	validation, err := requestValidation(ctx, overseerChan, job, validationCode, *pov)
	if err != nil {
		return &validationResult{job: job, command: job.command, err: err}
	}
	if !validation.IsValid() {
		logger.Debugf("candidate %s failed validation: %s", job.candidateHash, *validation.InvalidResult)
		return &validationResult{job: job, command: job.command}
	}

	err = storeAvailableData(ctx, overseerChan, job, *pov)
	if errors.Is(err, availabilitystore.ErrInvalidErasureRoot) {
		logger.Debugf("candidate %s has an invalid erasure root: %s", job.candidateHash, err)
		return &validationResult{job: job, command: job.command}
	}
	if err != nil {
		return &validationResult{job: job, command: job.command, err: err}
	}

	commitments := validation.ValidResult.CandidateCommitments
	return &validationResult{job: job, command: job.command, commitments: &commitments}
}

func fetchPoV(ctx context.Context, overseerChan chan<- any, job *validationJob) (*parachaintypes.PoV, error) {
	msg := parachaintypes.AvailabilityDistributionMessageFetchPoV{
		RelayParent:   job.relayParent,
		FromValidator: job.fromValidator,
		ParaID:        job.paraID(),
		CandidateHash: job.candidateHash,
		PoVHash:       job.candidateReceipt.Descriptor.PovHash,
		PovCh:         make(chan parachaintypes.OverseerFuncRes[parachaintypes.PoV], 1),
	}

	if err := util.SendMessage(ctx, overseerChan, msg); err != nil {
		return nil, fmt.Errorf("sending fetch pov request: %w", err)
	}

	res, err := util.ReceiveResponse[parachaintypes.OverseerFuncRes[parachaintypes.PoV]](ctx, msg.PovCh)
	if err != nil {
		return nil, fmt.Errorf("receiving pov: %w", err)
	}
	if res.Err != nil {
		return nil, res.Err
	}
	return &res.Data, nil
}

func requestValidation(
	ctx context.Context,
	overseerChan chan<- any,
	job *validationJob,
	validationCode parachaintypes.ValidationCode,
	pov parachaintypes.PoV,
) (*candidatevalidation.ValidationResult, error) {
	msg := candidatevalidation.ValidateFromExhaustive{
		PersistedValidationData: job.persistedValidationData,
		ValidationCode:          validationCode,
		CandidateReceipt:        job.candidateReceipt,
		PoV:                     pov,
		ExecutorParams:          job.executorParams,
		PvfExecTimeoutKind:      parachaintypes.PvfExecKindBacking,
		Ch:                      make(chan parachaintypes.OverseerFuncRes[candidatevalidation.ValidationResult], 1),
	}

	if err := util.SendMessage(ctx, overseerChan, msg); err != nil {
		return nil, fmt.Errorf("sending validation request: %w", err)
	}

	res, err := util.ReceiveResponse[parachaintypes.OverseerFuncRes[candidatevalidation.ValidationResult]](
		ctx, msg.Ch)
	if err != nil {
		return nil, fmt.Errorf("receiving validation result: %w", err)
	}
	if res.Err != nil {
		return nil, fmt.Errorf("validating candidate: %w", res.Err)
	}
	return &res.Data, nil
}

func storeAvailableData(
	ctx context.Context, overseerChan chan<- any, job *validationJob, pov parachaintypes.PoV,
) error {
	msg := availabilitystore.StoreAvailableData{
		CandidateHash: job.candidateHash,
		NumValidators: job.numValidators,
		AvailableData: parachaintypes.AvailableData{
			PoV:            pov,
			ValidationData: job.persistedValidationData,
		},
		ExpectedErasureRoot: job.candidateReceipt.Descriptor.ErasureRoot,
		Sender:              make(chan error, 1),
	}

	if err := util.SendMessage(ctx, overseerChan, msg); err != nil {
		return fmt.Errorf("sending store available data request: %w", err)
	}

	err, recvErr := util.ReceiveResponse[error](ctx, msg.Sender)
	if recvErr != nil {
		return fmt.Errorf("receiving store available data response: %w", recvErr)
	}
	return err
}
