// Copyright 2024 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

package parachaintypes

import "github.com/ChainSafe/parachain-backing/lib/common"

// HypotheticalCandidate represents a candidate to be evaluated for membership
// in the prospective parachains subsystem.
//
// Hypothetical candidates are either complete or incomplete.
// Complete candidates have already had their (potentially heavy)
// candidate receipt fetched, while incomplete candidates are simply
// claims about properties that a fetched candidate would have.
//
// Complete candidates can be evaluated more strictly than incomplete candidates.
// Values are compared structurally, never by identity.
type HypotheticalCandidate interface {
	isHypotheticalCandidate()
	// Hash returns the hash of the candidate.
	Hash() CandidateHash
	// ParaID returns the para of the candidate.
	ParaID() ParaID
	// RelayParent returns the relay parent of the candidate.
	RelayParent() common.Hash
}

// HypotheticalCandidateIncomplete represents an incomplete hypothetical candidate.
type HypotheticalCandidateIncomplete struct {
	// CandidateHash is the claimed hash of the candidate.
	CandidateHash CandidateHash
	// CandidateParaID is the claimed para-ID of the candidate.
	CandidateParaID ParaID
	// ParentHeadDataHash is the claimed head-data hash of the candidate.
	ParentHeadDataHash common.Hash
	// CandidateRelayParent is the claimed relay parent of the candidate.
	CandidateRelayParent common.Hash
}

func (HypotheticalCandidateIncomplete) isHypotheticalCandidate() {}

// Hash returns the claimed candidate hash.
func (h HypotheticalCandidateIncomplete) Hash() CandidateHash { return h.CandidateHash }

// ParaID returns the claimed para id.
func (h HypotheticalCandidateIncomplete) ParaID() ParaID { return h.CandidateParaID }

// RelayParent returns the claimed relay parent.
func (h HypotheticalCandidateIncomplete) RelayParent() common.Hash { return h.CandidateRelayParent }

// HypotheticalCandidateComplete represents a complete candidate, including its hash, committed candidate receipt,
// and persisted validation data.
type HypotheticalCandidateComplete struct {
	CandidateHash             CandidateHash
	CommittedCandidateReceipt CommittedCandidateReceipt
	PersistedValidationData   PersistedValidationData
}

func (HypotheticalCandidateComplete) isHypotheticalCandidate() {}

// Hash returns the candidate hash.
func (h HypotheticalCandidateComplete) Hash() CandidateHash { return h.CandidateHash }

// ParaID returns the para id from the candidate descriptor.
func (h HypotheticalCandidateComplete) ParaID() ParaID {
	return h.CommittedCandidateReceipt.Descriptor.ParaID
}

// RelayParent returns the relay parent from the candidate descriptor.
func (h HypotheticalCandidateComplete) RelayParent() common.Hash {
	return h.CommittedCandidateReceipt.Descriptor.RelayParent
}
