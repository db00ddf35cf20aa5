// Copyright 2024 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

package parachaintypes

import (
	"github.com/prysmaticlabs/go-bitfield"
)

// BackedCandidate is a candidate that has been backed by enough validators of its group.
type BackedCandidate struct {
	// The candidate referred to.
	Candidate CommittedCandidateReceipt
	// The validity votes themselves, expressed as signatures.
	ValidityVotes []ValidityAttestation
	// The indices of the validators within the group, expressed as a bitfield.
	// Votes are ordered by the position of their validator in the group.
	ValidatorIndices bitfield.Bitlist
}
