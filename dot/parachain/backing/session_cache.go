// Copyright 2024 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

package backing

import (
	"errors"
	"fmt"

	parachainruntime "github.com/ChainSafe/parachain-backing/dot/parachain/runtime"
	parachaintypes "github.com/ChainSafe/parachain-backing/dot/parachain/types"
)

// defaultMinimumBackingVotes is used with runtimes that predate the minimum backing votes API.
const defaultMinimumBackingVotes uint32 = 2

// sessionInfo holds the parameters that stay the same for a whole session.
type sessionInfo struct {
	index           parachaintypes.SessionIndex
	apiVersion      uint32
	validators      []parachaintypes.ValidatorID
	nodeFeatures    parachaintypes.NodeFeatures
	executorParams  parachaintypes.ExecutorParams
	minBackingVotes uint32
}

type sessionEntry struct {
	info *sessionInfo
	// number of relay parent states using the session.
	refs uint
}

// sessionCache shares session parameters between the relay parents of a session. An entry is
// dropped once no relay parent refers to it anymore.
type sessionCache struct {
	sessions map[parachaintypes.SessionIndex]*sessionEntry
}

func newSessionCache() *sessionCache {
	return &sessionCache{sessions: make(map[parachaintypes.SessionIndex]*sessionEntry)}
}

// acquire returns the parameters of the session, fetching them from the runtime on first use.
// Every successful call must be paired with a call to release.
func (sc *sessionCache) acquire(
	index parachaintypes.SessionIndex, rt parachainruntime.RuntimeInstance,
) (*sessionInfo, error) {
	if entry, ok := sc.sessions[index]; ok {
		entry.refs++
		return entry.info, nil
	}

	info, err := fetchSessionInfo(index, rt)
	if err != nil {
		return nil, err
	}

	sc.sessions[index] = &sessionEntry{info: info, refs: 1}
	return info, nil
}

func (sc *sessionCache) release(index parachaintypes.SessionIndex) {
	entry, ok := sc.sessions[index]
	if !ok {
		logger.Warnf("releasing unknown session %d", index)
		return
	}

	entry.refs--
	if entry.refs == 0 {
		delete(sc.sessions, index)
	}
}

func fetchSessionInfo(
	index parachaintypes.SessionIndex, rt parachainruntime.RuntimeInstance,
) (*sessionInfo, error) {
	version, err := rt.ParachainHostAPIVersion()
	if err != nil {
		return nil, fmt.Errorf("getting parachain host api version: %w", err)
	}

	validators, err := rt.ParachainHostValidators()
	if err != nil {
		return nil, fmt.Errorf("getting validators: %w", err)
	}

	var nodeFeatures parachaintypes.NodeFeatures
	if version >= parachainruntime.NodeFeaturesRuntimeRequirement {
		nodeFeatures, err = rt.ParachainHostNodeFeatures()
		if err != nil {
			return nil, fmt.Errorf("getting node features: %w", err)
		}
	}

	var executorParams parachaintypes.ExecutorParams
	if version >= parachainruntime.ExecutorParamsRuntimeRequirement {
		params, err := rt.ParachainHostSessionExecutorParams(index)
		switch {
		case errors.Is(err, parachainruntime.ErrExportFunctionNotFound):
		case err != nil:
			return nil, fmt.Errorf("getting executor params: %w", err)
		case params != nil:
			executorParams = *params
		}
	}

	minBackingVotes := defaultMinimumBackingVotes
	if version >= parachainruntime.MinBackingVotesRuntimeRequirement {
		minBackingVotes, err = rt.ParachainHostMinimumBackingVotes()
		if err != nil {
			return nil, fmt.Errorf("getting minimum backing votes: %w", err)
		}
	}

	return &sessionInfo{
		index:           index,
		apiVersion:      version,
		validators:      validators,
		nodeFeatures:    nodeFeatures,
		executorParams:  executorParams,
		minBackingVotes: minBackingVotes,
	}, nil
}
