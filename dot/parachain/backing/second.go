// Copyright 2024 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

package backing

import (
	"context"
	"fmt"

	candidatebackingmessages "github.com/ChainSafe/parachain-backing/dot/parachain/backing/messages"
	parachaintypes "github.com/ChainSafe/parachain-backing/dot/parachain/types"
)

// handleSecondMessage validates a candidate fetched by the collator protocol and seconds it if it
// is valid and can be a member of the fragment chain of an active leaf.
func (cb *CandidateBacking) handleSecondMessage(msg candidatebackingmessages.SecondMessage) error {
	candidateHash, err := parachaintypes.GetCandidateHash(msg.CandidateReceipt)
	if err != nil {
		return fmt.Errorf("getting candidate hash: %w", err)
	}

	rpState, ok := cb.perRelayParent[msg.RelayParent]
	if !ok {
		logger.Debugf("asked to second candidate %s with relay parent %s out of view", candidateHash, msg.RelayParent)
		return nil
	}

	paraID := msg.CandidateReceipt.Descriptor.ParaID
	if rpState.tableContext.validator == nil {
		logger.Debugf("not a backing validator at relay parent %s, not seconding candidate %s",
			msg.RelayParent, candidateHash)
		return nil
	}
	if rpState.assignment == nil || *rpState.assignment != paraID {
		logger.Debugf("not assigned to para %d at relay parent %s, not seconding candidate %s",
			paraID, msg.RelayParent, candidateHash)
		return nil
	}

	pvdHash, err := msg.PersistedValidationData.Hash()
	if err != nil {
		return fmt.Errorf("hashing persisted validation data: %w", err)
	}
	if pvdHash != msg.CandidateReceipt.Descriptor.PersistedValidationDataHash {
		logger.Debugf("persisted validation data of candidate %s does not match its descriptor", candidateHash)
		return nil
	}

	if rpState.issuedStatements[candidateHash] {
		cb.recheckIssuedCandidate(rpState, candidateHash)
		return nil
	}

	if rpState.awaitingValidation[candidateHash] {
		logger.Debugf("candidate %s is already being validated", candidateHash)
		return nil
	}

	parentHeadDataHash, err := msg.PersistedValidationData.ParentHead.Hash()
	if err != nil {
		return fmt.Errorf("hashing parent head data: %w", err)
	}

	hypotheticalCandidate := parachaintypes.HypotheticalCandidateIncomplete{
		CandidateHash:        candidateHash,
		CandidateParaID:      paraID,
		ParentHeadDataHash:   parentHeadDataHash,
		CandidateRelayParent: msg.RelayParent,
	}
	toQuery, legacy := cb.leavesAllowing(paraID, msg.RelayParent)

	pov := msg.PoV
	job := &validationJob{
		command:                 second,
		relayParent:             msg.RelayParent,
		candidateReceipt:        msg.CandidateReceipt,
		candidateHash:           candidateHash,
		persistedValidationData: msg.PersistedValidationData,
		pov:                     &pov,
		numValidators:           uint32(len(rpState.tableContext.validators)),
		executorParams:          rpState.session.executorParams,
	}

	rpState.awaitingValidation[candidateHash] = true

	overseerChan := cb.SubSystemToOverseer
	cb.spawn(func(ctx context.Context) backgroundResult {
		admissible := append(legacy, hypotheticalMembership(ctx, overseerChan, hypotheticalCandidate, toQuery)...)
		return &secondingCheck{job: job, admissibleLeaves: admissible}
	})
	return nil
}

// handleSecondingCheck starts the validation of a candidate to second, if it can be a member of
// the fragment chain of an active leaf.
func (cb *CandidateBacking) handleSecondingCheck(rpState *perRelayParentState, res *secondingCheck) {
	res.admissibleLeaves = cb.activeAdmittingLeaves(res.job.paraID(), res.admissibleLeaves)
	if len(res.admissibleLeaves) == 0 {
		delete(rpState.awaitingValidation, res.job.candidateHash)
		logger.Debugf("candidate %s can not be a member of any fragment chain, not seconding", res.job.candidateHash)
		cb.metrics.OnSecondingDeclined()
		return
	}

	cb.spawnValidation(res.job)
}

// recheckIssuedCandidate reports under how many active leaves a candidate we already issued a
// statement for is still a member of the fragment chain. Nothing is signed again.
func (cb *CandidateBacking) recheckIssuedCandidate(
	rpState *perRelayParentState, candidateHash parachaintypes.CandidateHash,
) {
	candidate, err := rpState.table.getCandidate(candidateHash)
	if err != nil {
		logger.Debugf("already issued a statement for candidate %s: %s", candidateHash, err)
		return
	}
	candidateState, ok := cb.perCandidate[candidateHash]
	if !ok {
		logger.Debugf("already issued a statement for candidate %s", candidateHash)
		return
	}

	hypotheticalCandidate := parachaintypes.HypotheticalCandidateComplete{
		CandidateHash:             candidateHash,
		CommittedCandidateReceipt: *candidate,
		PersistedValidationData:   candidateState.persistedValidationData,
	}
	toQuery, legacy := cb.leavesAllowing(candidateState.paraID, candidateState.relayParent)

	overseerChan := cb.SubSystemToOverseer
	cb.spawn(func(ctx context.Context) backgroundResult {
		membership := hypotheticalMembership(ctx, overseerChan, hypotheticalCandidate, toQuery)
		logger.Debugf("already seconded candidate %s, still admissible under %d active leaves",
			candidateHash, len(membership)+len(legacy))
		return nil
	})
}
