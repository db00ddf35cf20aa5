// Copyright 2024 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

package backing

import (
	"context"
	"errors"
	"fmt"

	parachainruntime "github.com/ChainSafe/parachain-backing/dot/parachain/runtime"
	parachaintypes "github.com/ChainSafe/parachain-backing/dot/parachain/types"
	"github.com/ChainSafe/parachain-backing/lib/common"
)

// ProcessActiveLeavesUpdateSignal deactivates the leaves no longer of interest, activates the new
// leaf and drops the state of relay parents no active leaf allows anymore. An error activating the
// leaf leaves the leaf inactive without affecting the other leaves.
func (cb *CandidateBacking) ProcessActiveLeavesUpdateSignal(update parachaintypes.ActiveLeavesUpdateSignal) error {
	for _, deactivated := range update.Deactivated {
		delete(cb.perLeaf, deactivated)
		cb.implicitView.deactivateLeaf(deactivated)
	}

	var err error
	if update.Activated != nil {
		err = cb.activateLeaf(cb.runContext(), *update.Activated)
		if err != nil {
			err = fmt.Errorf("activating leaf %s: %w", update.Activated.Hash, err)
		}
	}

	cb.cleanUpPerRelayParentByLeafAncestry()
	cb.removeUnknownRelayParentsFromPerCandidate()
	return err
}

func (cb *CandidateBacking) activateLeaf(ctx context.Context, leaf parachaintypes.ActivatedLeaf) error {
	mode, err := cb.prospectiveParachainsMode(leaf.Hash)
	if err != nil {
		return fmt.Errorf("getting prospective parachains mode: %w", err)
	}

	freshRelayParents := []common.Hash{leaf.Hash}
	if mode.IsEnabled {
		if err := cb.implicitView.activateLeaf(ctx, leaf.Hash); err != nil {
			return fmt.Errorf("activating leaf in implicit view: %w", err)
		}
		freshRelayParents = cb.implicitView.knownAllowedRelayParentsUnder(leaf.Hash, nil)
	}

	for _, relayParent := range freshRelayParents {
		if _, ok := cb.perRelayParent[relayParent]; ok {
			continue
		}

		rpState, err := cb.constructPerRelayParentState(relayParent, mode)
		if err != nil {
			cb.implicitView.deactivateLeaf(leaf.Hash)
			return fmt.Errorf("constructing state of relay parent %s: %w", relayParent, err)
		}
		cb.perRelayParent[relayParent] = rpState
	}

	cb.perLeaf[leaf.Hash] = &activeLeafState{
		prospectiveParachainsMode: mode,
		secondedParas:             make(map[parachaintypes.ParaID]bool),
	}
	logger.Debugf("activated leaf %s number %d, prospective parachains enabled: %t, %d relay parents",
		leaf.Hash, leaf.Number, mode.IsEnabled, len(freshRelayParents))
	return nil
}

// prospectiveParachainsMode is enabled for leaves whose runtime exposes the async backing params.
func (cb *CandidateBacking) prospectiveParachainsMode(
	leafHash common.Hash,
) (parachaintypes.ProspectiveParachainsMode, error) {
	rt, err := cb.BlockState.GetRuntime(leafHash)
	if err != nil {
		return parachaintypes.ProspectiveParachainsMode{}, fmt.Errorf("getting runtime: %w", err)
	}

	params, err := rt.ParachainHostAsyncBackingParams()
	if errors.Is(err, parachainruntime.ErrExportFunctionNotFound) {
		return parachaintypes.ProspectiveParachainsMode{}, nil
	}
	if err != nil {
		return parachaintypes.ProspectiveParachainsMode{}, fmt.Errorf("getting async backing params: %w", err)
	}

	return parachaintypes.ProspectiveParachainsMode{
		IsEnabled:          true,
		MaxCandidateDepth:  uint(params.MaxCandidateDepth),
		AllowedAncestryLen: uint(params.AllowedAncestryLen),
	}, nil
}

// cleanUpPerRelayParentByLeafAncestry removes the state of relay parents that are neither an
// active leaf nor allowed under an active leaf.
func (cb *CandidateBacking) cleanUpPerRelayParentByLeafAncestry() {
	remaining := make(map[common.Hash]struct{})
	for leaf := range cb.perLeaf {
		remaining[leaf] = struct{}{}
	}
	for _, relayParent := range cb.implicitView.allAllowedRelayParents() {
		remaining[relayParent] = struct{}{}
	}

	for relayParent, rpState := range cb.perRelayParent {
		if _, ok := remaining[relayParent]; ok {
			continue
		}
		cb.sessions.release(rpState.session.index)
		delete(cb.perRelayParent, relayParent)
	}
}

func (cb *CandidateBacking) removeUnknownRelayParentsFromPerCandidate() {
	for candidateHash, pc := range cb.perCandidate {
		if _, ok := cb.perRelayParent[pc.relayParent]; !ok {
			delete(cb.perCandidate, candidateHash)
		}
	}
}
