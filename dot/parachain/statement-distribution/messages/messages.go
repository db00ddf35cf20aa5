// Copyright 2024 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

package statementdistributionmessages

import (
	parachaintypes "github.com/ChainSafe/parachain-backing/dot/parachain/types"
	"github.com/ChainSafe/parachain-backing/lib/common"
)

// Share is a signed full statement under a given relay-parent to be shared with peers.
type Share struct {
	RelayParent                common.Hash
	SignedFullStatementWithPVD parachaintypes.SignedFullStatementWithPVD
}

// Backed is a message to notify statement distribution that a candidate has been backed.
type Backed parachaintypes.CandidateHash
