// Copyright 2024 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

package overseer

import (
	parachaintypes "github.com/ChainSafe/parachain-backing/dot/parachain/types"
	"github.com/ChainSafe/parachain-backing/dot/types"
)

// BlockState is the relay chain block state the overseer follows to derive leaf updates.
type BlockState interface {
	GetImportedBlockNotifierChannel() chan *types.Block
	FreeImportedBlockNotifierChannel(ch chan *types.Block)
	GetFinalisedNotifierChannel() chan *types.FinalisationInfo
	FreeFinalisedNotifierChannel(ch chan *types.FinalisationInfo)
}

// OverseerSystem is the surface subsystems are wired with.
type OverseerSystem interface {
	RegisterSubsystem(subsystem parachaintypes.Subsystem) chan any
	Start() error
	Stop() error
	GetSubsystemToOverseerChannel() chan any
}
