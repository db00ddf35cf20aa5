// Copyright 2024 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

package backing

import (
	"context"

	collatorprotocolmessages "github.com/ChainSafe/parachain-backing/dot/parachain/collator-protocol/messages"
	parachaintypes "github.com/ChainSafe/parachain-backing/dot/parachain/types"
	"github.com/ChainSafe/parachain-backing/lib/common"
)

// validatedCandidateCommand represents commands for handling validated candidates.
// This is not a command to validate a candidate, but to react to a validation result.
type validatedCandidateCommand byte

const (
	// We were instructed to second the candidate that has been already validated.
	second = validatedCandidateCommand(iota)
	// We were instructed to validate the candidate.
	attest
	// We were not able to `Attest` because backing validator did not send us the PoV.
	attestNoPoV
)

func (c validatedCandidateCommand) String() string {
	switch c {
	case second:
		return "second"
	case attest:
		return "attest"
	case attestNoPoV:
		return "attest-no-pov"
	default:
		return "unknown"
	}
}

// backgroundResult is the outcome of work done outside of the run loop. It is handed back to
// the run loop, which is the only place the subsystem state is modified.
type backgroundResult interface {
	relayParent() common.Hash
}

// secondingCheck holds the active leaves under which a candidate we were asked to second could
// be a member of the fragment chain, before it gets validated.
type secondingCheck struct {
	job              *validationJob
	admissibleLeaves []common.Hash
}

func (r *secondingCheck) relayParent() common.Hash { return r.job.relayParent }

// validationResult is the outcome of a validation job.
type validationResult struct {
	job     *validationJob
	command validatedCandidateCommand
	// commitments are set for a valid candidate.
	commitments *parachaintypes.CandidateCommitments
	err         error
}

func (r *validationResult) relayParent() common.Hash { return r.job.relayParent }

// secondingDecision holds the active leaves under which a validated candidate is still a
// member of the fragment chain, right before we sign a `Seconded` statement for it.
type secondingDecision struct {
	job              *validationJob
	candidate        parachaintypes.CommittedCandidateReceipt
	admissibleLeaves []common.Hash
}

func (r *secondingDecision) relayParent() common.Hash { return r.job.relayParent }

// introductionResult tells whether prospective parachains accepted a seconded candidate.
type introductionResult struct {
	candidateHash           parachaintypes.CandidateHash
	candidateRelayParent    common.Hash
	paraID                  parachaintypes.ParaID
	persistedValidationData parachaintypes.PersistedValidationData
	accepted                bool
}

func (r *introductionResult) relayParent() common.Hash { return r.candidateRelayParent }

func (cb *CandidateBacking) processBackgroundResult(result backgroundResult) {
	// statements waiting on an introduction are released even if the relay parent is gone.
	if res, ok := result.(*introductionResult); ok {
		cb.handleIntroductionResult(res)
		return
	}

	rpState, ok := cb.perRelayParent[result.relayParent()]
	if !ok {
		logger.Debugf("dropping %T, relay parent %s is out of view", result, result.relayParent())
		if isSecondingWork(result) {
			cb.metrics.OnSecondingDeclined()
		}
		return
	}

	switch res := result.(type) {
	case *secondingCheck:
		cb.handleSecondingCheck(rpState, res)
	case *validationResult:
		cb.processValidatedCandidateCommand(rpState, res)
	case *secondingDecision:
		cb.handleSecondingDecision(rpState, res)
	default:
		logger.Errorf("unexpected background result %T", result)
	}
}

func isSecondingWork(result backgroundResult) bool {
	switch res := result.(type) {
	case *secondingCheck, *secondingDecision:
		return true
	case *validationResult:
		return res.command == second
	}
	return false
}

// processValidatedCandidateCommand notes the result of a background validation of a candidate and reacts accordingly.
func (cb *CandidateBacking) processValidatedCandidateCommand(rpState *perRelayParentState, res *validationResult) {
	job := res.job

	switch res.command {
	case second:
		cb.onSecondValidated(rpState, res)

	case attest:
		delete(rpState.awaitingValidation, job.candidateHash)
		if res.err != nil {
			logger.Errorf("validating candidate %s: %s", job.candidateHash, res.err)
			return
		}

		// only one statement is issued per candidate, valid or not.
		if rpState.issuedStatements[job.candidateHash] {
			return
		}
		rpState.issuedStatements[job.candidateHash] = true

		if res.commitments == nil {
			logger.Debugf("candidate %s is invalid, not issuing a statement", job.candidateHash)
			cb.metrics.OnCandidateRejected()
			return
		}

		statement := parachaintypes.NewValidStatement(job.candidateHash)
		signed, err := cb.signStatement(rpState, statement)
		if err != nil {
			logger.Errorf("signing valid statement for candidate %s: %s", job.candidateHash, err)
			return
		}
		if signed == nil {
			return
		}

		cb.processStatement(pendingStatement{
			relayParent: rpState.relayParent,
			statement:   parachaintypes.SignedFullStatementWithPVD{SignedFullStatement: *signed},
			local:       true,
		})

	case attestNoPoV:
		attesting, ok := rpState.fallbacks[job.candidateHash]
		if !ok || len(attesting.backing) == 0 {
			logger.Debugf("no other backing validator to fetch the PoV of candidate %s from", job.candidateHash)
			delete(rpState.awaitingValidation, job.candidateHash)
			return
		}

		attesting.fromValidator = attesting.backing[0]
		attesting.backing = attesting.backing[1:]

		retry := *job
		retry.command = attest
		retry.fromValidator = attesting.fromValidator
		cb.spawnValidation(&retry)
	}
}

func (cb *CandidateBacking) onSecondValidated(rpState *perRelayParentState, res *validationResult) {
	job := res.job

	if res.err != nil {
		delete(rpState.awaitingValidation, job.candidateHash)
		logger.Errorf("validating candidate %s to second: %s", job.candidateHash, res.err)
		return
	}

	if res.commitments == nil {
		delete(rpState.awaitingValidation, job.candidateHash)
		logger.Debugf("candidate %s we were asked to second is invalid", job.candidateHash)
		cb.metrics.OnCandidateRejected()
		cb.sendToOverseer(collatorprotocolmessages.Invalid{
			Parent:           job.relayParent,
			CandidateReceipt: job.candidateReceipt,
		})
		return
	}

	candidate := parachaintypes.CommittedCandidateReceipt{
		Descriptor:  job.candidateReceipt.Descriptor,
		Commitments: *res.commitments,
	}
	hypotheticalCandidate := parachaintypes.HypotheticalCandidateComplete{
		CandidateHash:             job.candidateHash,
		CommittedCandidateReceipt: candidate,
		PersistedValidationData:   job.persistedValidationData,
	}

	// the leaves may have changed while the candidate was being validated.
	toQuery, legacy := cb.leavesAllowing(job.paraID(), job.relayParent)

	overseerChan := cb.SubSystemToOverseer
	cb.spawn(func(ctx context.Context) backgroundResult {
		admissible := append(legacy, hypotheticalMembership(ctx, overseerChan, hypotheticalCandidate, toQuery)...)
		return &secondingDecision{job: job, candidate: candidate, admissibleLeaves: admissible}
	})
}

func (cb *CandidateBacking) handleSecondingDecision(rpState *perRelayParentState, res *secondingDecision) {
	candidateHash := res.job.candidateHash

	res.admissibleLeaves = cb.activeAdmittingLeaves(res.job.paraID(), res.admissibleLeaves)
	if len(res.admissibleLeaves) == 0 {
		delete(rpState.awaitingValidation, candidateHash)
		logger.Debugf("validated candidate %s is not a member of any fragment chain, not seconding", candidateHash)
		cb.metrics.OnSecondingDeclined()
		return
	}

	if rpState.issuedStatements[candidateHash] {
		delete(rpState.awaitingValidation, candidateHash)
		return
	}

	signed, err := cb.signStatement(rpState, parachaintypes.NewSecondedStatement(res.candidate))
	if err != nil {
		delete(rpState.awaitingValidation, candidateHash)
		logger.Errorf("signing seconded statement for candidate %s: %s", candidateHash, err)
		return
	}
	if signed == nil {
		delete(rpState.awaitingValidation, candidateHash)
		return
	}

	persistedValidationData := res.job.persistedValidationData
	cb.processStatement(pendingStatement{
		relayParent: rpState.relayParent,
		statement: parachaintypes.SignedFullStatementWithPVD{
			SignedFullStatement:     *signed,
			PersistedValidationData: &persistedValidationData,
		},
		local:      true,
		membership: res.admissibleLeaves,
	})
}
