// Copyright 2024 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

package backing

import (
	"context"

	candidatebackingmessages "github.com/ChainSafe/parachain-backing/dot/parachain/backing/messages"
	parachaintypes "github.com/ChainSafe/parachain-backing/dot/parachain/types"
	"github.com/ChainSafe/parachain-backing/dot/parachain/util"
)

// handleGetBackableCandidatesMessage send back the backable candidates via the response channel.
// Requested candidates which are unknown or not backed are left out.
func (cb *CandidateBacking) handleGetBackableCandidatesMessage(
	requestedCandidates candidatebackingmessages.GetBackableCandidatesMessage,
) {
	backedCandidates := make([]*parachaintypes.BackedCandidate, 0, len(requestedCandidates.Candidates))

	for _, candidate := range requestedCandidates.Candidates {
		rpState, ok := cb.perRelayParent[candidate.CandidateRelayParent]
		if !ok {
			logger.Debugf("requested candidate %s has relay parent %s out of view",
				candidate.CandidateHash, candidate.CandidateRelayParent)
			continue
		}

		attested, err := rpState.table.attestedCandidate(
			candidate.CandidateHash, &rpState.tableContext, rpState.session.minBackingVotes)
		if err != nil {
			logger.Debugf("getting attested candidate %s: %s", candidate.CandidateHash, err)
			continue
		}
		if attested == nil {
			logger.Debugf("requested candidate %s is not backed", candidate.CandidateHash)
			continue
		}

		backed, err := attested.toBackedCandidate(&rpState.tableContext)
		if err != nil {
			logger.Debugf("converting attested candidate %s to backed candidate: %s", candidate.CandidateHash, err)
			continue
		}
		backedCandidates = append(backedCandidates, backed)
	}

	resCh := requestedCandidates.ResCh
	cb.spawn(func(ctx context.Context) backgroundResult {
		if err := util.SendResponse(ctx, resCh, backedCandidates); err != nil {
			logger.Debugf("responding with %d backable candidates: %s", len(backedCandidates), err)
		}
		return nil
	})
}
