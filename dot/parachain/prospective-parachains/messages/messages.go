// Copyright 2024 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

package prospectiveparachainsmessages

import (
	parachaintypes "github.com/ChainSafe/parachain-backing/dot/parachain/types"
	"github.com/ChainSafe/parachain-backing/lib/common"
)

// IntroduceSecondedCandidate is a request to introduce a seconded candidate into the
// prospective parachains subsystem. The response is true if the candidate was accepted
// into at least one fragment chain.
type IntroduceSecondedCandidate struct {
	IntroduceSecondedCandidateRequest IntroduceSecondedCandidateRequest
	Response                          chan bool
}

// IntroduceSecondedCandidateRequest is the candidate to introduce, along with the data
// needed to place it in fragment chains.
type IntroduceSecondedCandidateRequest struct {
	// The para-id of the candidate.
	CandidateParaID parachaintypes.ParaID
	// The candidate receipt itself.
	CandidateReceipt parachaintypes.CommittedCandidateReceipt
	// The persisted validation data of the candidate.
	PersistedValidationData parachaintypes.PersistedValidationData
}

// CandidateBacked is a message to inform the prospective parachains subsystem that a
// previously introduced candidate has been backed.
type CandidateBacked struct {
	ParaID        parachaintypes.ParaID
	CandidateHash parachaintypes.CandidateHash
}

// GetHypotheticalMembership asks for the hypothetical membership of candidates under
// active leaves. Each candidate in the request yields one item in the response.
type GetHypotheticalMembership struct {
	HypotheticalMembershipRequest HypotheticalMembershipRequest
	Response                      chan []HypotheticalMembershipResponseItem
}

// HypotheticalMembershipRequest is a request for the hypothetical membership of some candidates.
type HypotheticalMembershipRequest struct {
	// Candidates, in arbitrary order, which should be checked for hypothetical membership
	// in fragment chains.
	Candidates []parachaintypes.HypotheticalCandidate
	// Either a specific fragment chain to check, otherwise all.
	FragmentChainRelayParent *common.Hash
}

// HypotheticalMembershipResponseItem is the membership of one requested candidate.
type HypotheticalMembershipResponseItem struct {
	HypotheticalCandidate parachaintypes.HypotheticalCandidate
	Membership            HypotheticalMembership
}

// HypotheticalMembership is the active leaves a hypothetical candidate would be a member of.
// An empty membership means the candidate would not be accepted under any leaf.
type HypotheticalMembership []common.Hash

// GetMinimumRelayParents asks for the minimum accepted relay-parent number of each para
// that has a fragment chain under the given active leaf.
type GetMinimumRelayParents struct {
	RelayChainBlockHash common.Hash
	Sender              chan []ParaIDBlockNumber
}

// ParaIDBlockNumber is a para and its minimum relay-parent number.
type ParaIDBlockNumber struct {
	ParaID      parachaintypes.ParaID
	BlockNumber parachaintypes.BlockNumber
}
