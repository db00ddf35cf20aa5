// Copyright 2024 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

package parachaintypes

import (
	"errors"

	"github.com/ChainSafe/parachain-backing/lib/common"
)

var ErrFetchPoV = errors.New("fetching proof of validity")

// AvailabilityDistributionMessageFetchPoV represents a message instructing
// availability distribution to fetch a remote proof of validity.
type AvailabilityDistributionMessageFetchPoV struct {
	RelayParent common.Hash
	// FromValidator is the validator to fetch the PoV from.
	FromValidator ValidatorIndex
	// ParaID is the id of the parachain that produced this PoV.
	// This field is only used to provide more context when logging errors
	// from the AvailabilityDistributionMessageFetchPoV handler.
	ParaID ParaID
	// CandidateHash is the candidate hash to fetch the PoV for.
	CandidateHash CandidateHash
	// PoVHash is the expected hash of the PoV, a PoV not matching this hash will be rejected.
	PoVHash common.Hash
	// PovCh receives the fetched PoV, or ErrFetchPoV if no PoV could be obtained from the validator.
	PovCh chan OverseerFuncRes[PoV]
}
