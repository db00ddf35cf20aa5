// Copyright 2024 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

package collatorprotocolmessages

import (
	parachaintypes "github.com/ChainSafe/parachain-backing/dot/parachain/types"
	"github.com/ChainSafe/parachain-backing/lib/common"
)

// Seconded informs the collator protocol that we have seconded a collation it fetched.
type Seconded struct {
	Parent common.Hash
	Stmt   parachaintypes.SignedFullStatementWithPVD
}

// Invalid informs the collator protocol that a fetched collation was invalid or could
// not be seconded.
type Invalid struct {
	Parent           common.Hash
	CandidateReceipt parachaintypes.CandidateReceipt
}

// Backed informs the collator protocol that a candidate of the para has been backed, which
// may unblock new advertisements.
type Backed struct {
	ParaID parachaintypes.ParaID
	// Hash of the para head generated by the candidate.
	ParaHead common.Hash
}
