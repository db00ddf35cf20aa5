// Copyright 2024 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

package backing

import (
	"context"
	"fmt"

	candidatebackingmessages "github.com/ChainSafe/parachain-backing/dot/parachain/backing/messages"
	prospectiveparachainsmessages "github.com/ChainSafe/parachain-backing/dot/parachain/prospective-parachains/messages"
	parachaintypes "github.com/ChainSafe/parachain-backing/dot/parachain/types"
	"github.com/ChainSafe/parachain-backing/dot/parachain/util"
	"github.com/ChainSafe/parachain-backing/lib/common"
	"github.com/google/go-cmp/cmp"
	"golang.org/x/exp/slices"
	"golang.org/x/sync/errgroup"
)

// handleCanSecondMessage performs seconding sanity check for an advertisement.
func (cb *CandidateBacking) handleCanSecondMessage(msg candidatebackingmessages.CanSecondMessage) {
	rpState, ok := cb.perRelayParent[msg.CandidateRelayParent]
	if !ok || !rpState.prospectiveParachainsMode.IsEnabled {
		logger.Debugf("cannot second candidate %s: relay parent %s unknown or without prospective parachains",
			msg.CandidateHash, msg.CandidateRelayParent)
		cb.spawn(func(ctx context.Context) backgroundResult {
			respondCanSecond(ctx, msg.ResponseCh, false)
			return nil
		})
		return
	}

	hypotheticalCandidate := parachaintypes.HypotheticalCandidateIncomplete{
		CandidateHash:        msg.CandidateHash,
		CandidateParaID:      msg.CandidateParaID,
		ParentHeadDataHash:   msg.ParentHeadDataHash,
		CandidateRelayParent: msg.CandidateRelayParent,
	}
	leaves, _ := cb.leavesAllowing(msg.CandidateParaID, msg.CandidateRelayParent)

	overseerChan := cb.SubSystemToOverseer
	cb.spawn(func(ctx context.Context) backgroundResult {
		membership := hypotheticalMembership(ctx, overseerChan, hypotheticalCandidate, leaves)
		respondCanSecond(ctx, msg.ResponseCh, len(membership) > 0)
		return nil
	})
}

// respondCanSecond is called from spawned jobs, never from the run loop.
func respondCanSecond(ctx context.Context, responseCh chan bool, canSecond bool) {
	if err := util.SendResponse(ctx, responseCh, canSecond); err != nil {
		logger.Debugf("responding to can second request: %s", err)
	}
}

// leavesAllowing returns the active leaves under which a candidate of the para built on the relay
// parent could be seconded. Leaves with prospective parachains enabled allowing the relay parent
// for the para have to be asked for the hypothetical membership of the candidate. A leaf without
// prospective parachains only accepts candidates built on itself, one per para.
func (cb *CandidateBacking) leavesAllowing(
	paraID parachaintypes.ParaID, relayParent common.Hash,
) (toQuery []common.Hash, legacy []common.Hash) {
	for leaf, leafState := range cb.perLeaf {
		if leafState.prospectiveParachainsMode.IsEnabled {
			allowed := cb.implicitView.knownAllowedRelayParentsUnder(leaf, &paraID)
			if slices.Contains(allowed, relayParent) {
				toQuery = append(toQuery, leaf)
			}
			continue
		}

		if leaf == relayParent && !leafState.secondedParas[paraID] {
			legacy = append(legacy, leaf)
		}
	}
	return toQuery, legacy
}

// activeAdmittingLeaves drops the leaves deactivated since the membership query was sent, and
// the leaves without prospective parachains which have seconded a candidate of the para since.
func (cb *CandidateBacking) activeAdmittingLeaves(
	paraID parachaintypes.ParaID, leaves []common.Hash,
) []common.Hash {
	var active []common.Hash
	for _, leaf := range leaves {
		leafState, ok := cb.perLeaf[leaf]
		if !ok {
			continue
		}
		if !leafState.prospectiveParachainsMode.IsEnabled && leafState.secondedParas[paraID] {
			continue
		}
		active = append(active, leaf)
	}
	return active
}

// hypotheticalMembership asks prospective parachains, one request per leaf, whether the candidate
// would be a member of the fragment chain under the leaf. It returns the leaves with a non-empty
// membership. Leaves whose request fails are left out.
func hypotheticalMembership(
	ctx context.Context,
	overseerChan chan<- any,
	candidate parachaintypes.HypotheticalCandidate,
	leaves []common.Hash,
) []common.Hash {
	isMember := make([]bool, len(leaves))

	var group errgroup.Group
	for i, leaf := range leaves {
		i, leaf := i, leaf
		group.Go(func() error {
			member, err := isMemberUnderLeaf(ctx, overseerChan, candidate, leaf)
			if err != nil {
				logger.Debugf("getting hypothetical membership of candidate %s under leaf %s: %s",
					candidate.Hash(), leaf, err)
				return nil
			}
			isMember[i] = member
			return nil
		})
	}
	_ = group.Wait()

	var membership []common.Hash
	for i, leaf := range leaves {
		if isMember[i] {
			membership = append(membership, leaf)
		}
	}
	return membership
}

func isMemberUnderLeaf(
	ctx context.Context,
	overseerChan chan<- any,
	candidate parachaintypes.HypotheticalCandidate,
	leaf common.Hash,
) (bool, error) {
	msg := prospectiveparachainsmessages.GetHypotheticalMembership{
		HypotheticalMembershipRequest: prospectiveparachainsmessages.HypotheticalMembershipRequest{
			Candidates:               []parachaintypes.HypotheticalCandidate{candidate},
			FragmentChainRelayParent: &leaf,
		},
		Response: make(chan []prospectiveparachainsmessages.HypotheticalMembershipResponseItem, 1),
	}

	if err := util.SendMessage(ctx, overseerChan, msg); err != nil {
		return false, fmt.Errorf("sending hypothetical membership request: %w", err)
	}

	items, err := util.ReceiveResponse[[]prospectiveparachainsmessages.HypotheticalMembershipResponseItem](
		ctx, msg.Response)
	if err != nil {
		return false, fmt.Errorf("receiving hypothetical membership: %w", err)
	}

	for _, item := range items {
		if !cmp.Equal(item.HypotheticalCandidate, candidate) {
			continue
		}
		if len(item.Membership) > 0 {
			return true, nil
		}
	}
	return false, nil
}
