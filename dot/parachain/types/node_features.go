// Copyright 2024 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

package parachaintypes

import (
	"github.com/prysmaticlabs/go-bitfield"
)

// FeatureIndex is the index of a node feature in the node features bitfield.
type FeatureIndex uint64

const (
	// EnableAssignmentsV2 enables tranche 0 assignments v2.
	EnableAssignmentsV2 FeatureIndex = 0
	// ElasticScalingMVP allows a para to be assigned more than one core.
	ElasticScalingMVP FeatureIndex = 1
	// AvailabilityChunkMapping enables the systematic chunks mapping in availability.
	AvailabilityChunkMapping FeatureIndex = 2
	// FirstUnassigned is the first feature index that is not yet assigned.
	FirstUnassigned FeatureIndex = 3
)

// NodeFeatures is a bitfield of features enabled for the nodes of a session.
type NodeFeatures bitfield.Bitlist

// IsEnabled reports whether the feature with the given index is set. Indices outside of
// the bitfield are disabled.
func (nf NodeFeatures) IsEnabled(index FeatureIndex) bool {
	bits := bitfield.Bitlist(nf)
	if len(bits) == 0 || uint64(index) >= bits.Len() {
		return false
	}
	return bits.BitAt(uint64(index))
}
