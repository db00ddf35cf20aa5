// Copyright 2024 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

package parachaintypes

import (
	"github.com/prysmaticlabs/go-bitfield"
)

// CoreState is the state of an availability core: Occupied, Scheduled or Free.
type CoreState interface {
	isCoreState()
}

// ScheduledCore is information about a core which is currently occupied.
type ScheduledCore struct {
	// The ID of a para scheduled.
	ParaID ParaID
	// The collator required to author the block, if any.
	Collator *CollatorID
}

func (ScheduledCore) isCoreState() {}

// OccupiedCore is a core which is occupied by a candidate pending availability.
type OccupiedCore struct {
	// If this core is freed by availability, this is the assignment that is next up on this
	// core, if any. nil if there is nothing queued for this core.
	NextUpOnAvailable *ScheduledCore
	// The relay-chain block number this began occupying the core at.
	OccupiedSince BlockNumber
	// The relay-chain block this will time-out at, if any.
	TimeoutAt BlockNumber
	// If this core is freed by being timed-out, this is the assignment that is next up on this
	// core. nil if there is nothing queued for this core.
	NextUpOnTimeOut *ScheduledCore
	// A bitfield with 1 bit for each validator in the set.
	Availability bitfield.Bitlist
	// The group assigned to distribute availability pieces of this candidate.
	GroupResponsible GroupIndex
	// The hash of the candidate occupying the core.
	CandidateHash CandidateHash
	// The descriptor of the candidate occupying the core.
	CandidateDescriptor CandidateDescriptor
}

func (OccupiedCore) isCoreState() {}

// FreeCore is a core which is free and has nothing scheduled on it.
type FreeCore struct{}

func (FreeCore) isCoreState() {}

// GroupRotationInfo is a helper data-type for tracking validator-group rotations.
type GroupRotationInfo struct {
	// The block number where the session started.
	SessionStartBlock BlockNumber
	// How often groups rotate. 0 means never.
	GroupRotationFrequency BlockNumber
	// The current block number.
	Now BlockNumber
}

// GroupForCore returns the index of the group needed to validate the core at the given index,
// assuming the given number of cores.
func (gri GroupRotationInfo) GroupForCore(coreIndex CoreIndex, cores uint) GroupIndex {
	if gri.GroupRotationFrequency == 0 {
		return GroupIndex(coreIndex)
	}
	if cores == 0 {
		return 0
	}

	var blocksSinceStart BlockNumber
	if gri.Now > gri.SessionStartBlock {
		blocksSinceStart = gri.Now - gri.SessionStartBlock
	}
	rotations := uint(blocksSinceStart / gri.GroupRotationFrequency)

	return GroupIndex((uint(coreIndex) + rotations) % cores)
}

// ValidatorGroups represents the validator groups of the current session along with the
// group rotation information.
type ValidatorGroups struct {
	// Validators is an array of validator set Ids
	Validators [][]ValidatorIndex
	// GroupRotationInfo is the group rotation info
	GroupRotationInfo GroupRotationInfo
}
