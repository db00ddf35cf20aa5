// Copyright 2024 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

package backing

import (
	"errors"
	"fmt"

	parachainruntime "github.com/ChainSafe/parachain-backing/dot/parachain/runtime"
	parachaintypes "github.com/ChainSafe/parachain-backing/dot/parachain/types"
	"github.com/ChainSafe/parachain-backing/dot/parachain/util"
	"github.com/ChainSafe/parachain-backing/lib/common"
	"golang.org/x/exp/slices"
)

var errGroupIndexOutOfRange = errors.New("validator group index out of range")

// perRelayParentState represents the state information for a relay-parent in the subsystem.
type perRelayParentState struct {
	prospectiveParachainsMode parachaintypes.ProspectiveParachainsMode
	// The hash of the relay parent on top of which this job is doing it's work.
	relayParent common.Hash
	// The session the relay parent is the parent of, with its cached parameters.
	session *sessionInfo
	// The `ParaId` assigned to the local validator at this relay parent.
	assignment *parachaintypes.ParaID
	// The table of candidates and statements under this relay-parent.
	table Table
	// The table context, including groups.
	tableContext TableContext
	// Validators disabled at this relay parent. Their statements are ignored.
	disabledValidators map[parachaintypes.ValidatorIndex]struct{}
	// Data needed for retrying in case of an `attestNoPoV` command.
	fallbacks map[parachaintypes.CandidateHash]*attestingData
	// These candidates are undergoing validation in the background.
	awaitingValidation map[parachaintypes.CandidateHash]bool
	// We issued `Seconded` or `Valid` statements on about these candidates.
	issuedStatements map[parachaintypes.CandidateHash]bool
	// The candidates that are backed by enough validators in their group, by hash.
	backed map[parachaintypes.CandidateHash]bool
}

// validator represents local validator information.
// It can be created if the local node is a validator in the context of a particular relay chain block.
type validator struct {
	index parachaintypes.ValidatorIndex
	id    parachaintypes.ValidatorID
}

// attestingData contains the data needed to retry validation with other backing validators
// in case a validator does not provide a PoV.
type attestingData struct {
	// The candidate to attest.
	candidate parachaintypes.CandidateReceipt
	// Hash of the PoV we need to fetch.
	povHash common.Hash
	// Validator we are currently trying to get the PoV from.
	fromValidator parachaintypes.ValidatorIndex
	// Other backing validators we can try in case `fromValidator` failed.
	backing []parachaintypes.ValidatorIndex
}

func (rpState *perRelayParentState) signingContext() parachaintypes.SigningContext {
	return parachaintypes.SigningContext{
		SessionIndex: rpState.session.index,
		ParentHash:   rpState.relayParent,
	}
}

func (rpState *perRelayParentState) isDisabled(validatorIndex parachaintypes.ValidatorIndex) bool {
	_, ok := rpState.disabledValidators[validatorIndex]
	return ok
}

// constructPerRelayParentState gathers from the runtime everything needed to back candidates
// built on the given relay parent.
func (cb *CandidateBacking) constructPerRelayParentState(
	relayParent common.Hash, mode parachaintypes.ProspectiveParachainsMode,
) (rpState *perRelayParentState, err error) {
	rt, err := cb.BlockState.GetRuntime(relayParent)
	if err != nil {
		return nil, fmt.Errorf("getting runtime: %w", err)
	}

	sessionIndex, err := rt.ParachainHostSessionIndexForChild()
	if err != nil {
		return nil, fmt.Errorf("getting session index: %w", err)
	}

	session, err := cb.sessions.acquire(sessionIndex, rt)
	if err != nil {
		return nil, fmt.Errorf("getting session %d info: %w", sessionIndex, err)
	}
	defer func() {
		if err != nil {
			cb.sessions.release(sessionIndex)
		}
	}()

	disabledValidators, err := disabledValidatorsAt(rt, session.apiVersion)
	if err != nil {
		return nil, err
	}

	validatorGroups, err := rt.ParachainHostValidatorGroups()
	if err != nil {
		return nil, fmt.Errorf("getting validator groups: %w", err)
	}

	cores, err := rt.ParachainHostAvailabilityCores()
	if err != nil {
		return nil, fmt.Errorf("getting availability cores: %w", err)
	}

	var localValidator *validator
	validatorID, validatorIndex := util.SigningKeyAndIndex(session.validators, cb.Keystore)
	if validatorID != nil {
		if _, disabled := disabledValidators[validatorIndex]; disabled {
			logger.Infof("local validator %d is disabled at relay parent %s", validatorIndex, relayParent)
		} else {
			localValidator = &validator{index: validatorIndex, id: *validatorID}
		}
	}

	groups := make(map[parachaintypes.ParaID][]parachaintypes.ValidatorIndex)
	var assignment *parachaintypes.ParaID
	numCores := uint(len(cores))

	for coreIndex, core := range cores {
		var paraID parachaintypes.ParaID
		switch core := core.(type) {
		case parachaintypes.ScheduledCore:
			paraID = core.ParaID
		case parachaintypes.OccupiedCore:
			if !mode.IsEnabled || core.NextUpOnAvailable == nil {
				continue
			}
			paraID = core.NextUpOnAvailable.ParaID
		default:
			continue
		}

		groupIndex := validatorGroups.GroupRotationInfo.GroupForCore(parachaintypes.CoreIndex(coreIndex), numCores)
		if int(groupIndex) >= len(validatorGroups.Validators) {
			return nil, fmt.Errorf("%w: group %d for core %d, %d groups",
				errGroupIndexOutOfRange, groupIndex, coreIndex, len(validatorGroups.Validators))
		}

		group := validatorGroups.Validators[groupIndex]
		if localValidator != nil && slices.Contains(group, localValidator.index) {
			assignment = &paraID
		}
		groups[paraID] = group
	}

	if assignment != nil {
		logger.Debugf("assigned to para %d at relay parent %s", *assignment, relayParent)
	}

	return &perRelayParentState{
		prospectiveParachainsMode: mode,
		relayParent:               relayParent,
		session:                   session,
		assignment:                assignment,
		table:                     newStatementTable(mode.IsEnabled),
		tableContext: TableContext{
			validator:  localValidator,
			groups:     groups,
			validators: session.validators,
		},
		disabledValidators: disabledValidators,
		fallbacks:          make(map[parachaintypes.CandidateHash]*attestingData),
		awaitingValidation: make(map[parachaintypes.CandidateHash]bool),
		issuedStatements:   make(map[parachaintypes.CandidateHash]bool),
		backed:             make(map[parachaintypes.CandidateHash]bool),
	}, nil
}

func disabledValidatorsAt(
	rt parachainruntime.RuntimeInstance, apiVersion uint32,
) (map[parachaintypes.ValidatorIndex]struct{}, error) {
	disabled := make(map[parachaintypes.ValidatorIndex]struct{})
	if apiVersion < parachainruntime.DisabledValidatorsRuntimeRequirement {
		return disabled, nil
	}

	indices, err := rt.ParachainHostDisabledValidators()
	if err != nil {
		return nil, fmt.Errorf("getting disabled validators: %w", err)
	}

	for _, index := range indices {
		disabled[index] = struct{}{}
	}
	return disabled, nil
}
