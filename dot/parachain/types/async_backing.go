// Copyright 2024 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

package parachaintypes

// AsyncBackingParams contains the parameters for the async backing.
type AsyncBackingParams struct {
	// The maximum number of para blocks between the para head in a relay parent
	// and a new candidate. Restricts nodes from building arbitrary long chains
	// and spamming other validators.
	//
	// When async backing is disabled, the only valid value is 0.
	MaxCandidateDepth uint32
	// How many ancestors of a relay parent are allowed to build candidates on top
	// of.
	//
	// When async backing is disabled, the only valid value is 0.
	AllowedAncestryLen uint32
}

// ProspectiveParachainsMode represents the mode of a relay parent in the context
// of prospective parachains, as defined by the runtime API version.
type ProspectiveParachainsMode struct {
	// IsEnabled indicates whether prospective parachains are enabled or disabled.
	// When disabled, only leaves are accepted as relay parents and backed candidates
	// go straight to the provisioner.
	IsEnabled bool
	// The maximum number of para blocks between the para head in a relay parent and a new candidate.
	MaxCandidateDepth uint
	// How many ancestors of a relay parent are allowed to build candidates on top of.
	AllowedAncestryLen uint
}
