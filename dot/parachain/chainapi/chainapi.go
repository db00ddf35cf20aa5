// Copyright 2024 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

package chainapi

import (
	"context"

	parachaintypes "github.com/ChainSafe/parachain-backing/dot/parachain/types"
	"github.com/ChainSafe/parachain-backing/dot/parachain/util"
	"github.com/ChainSafe/parachain-backing/dot/types"
	"github.com/ChainSafe/parachain-backing/internal/log"
	"github.com/ChainSafe/parachain-backing/lib/common"
)

var logger = log.NewFromGlobal(log.AddContext("pkg", "parachain-chainapi"))

// BlockState is the relay chain block state the chain API reads headers from.
type BlockState interface {
	GetHeader(hash common.Hash) (*types.Header, error)
}

// ChainAPI answers chain queries of other subsystems.
type ChainAPI struct {
	SubSystemToOverseer chan<- any
	BlockState          BlockState
}

// Register creates the chain API subsystem.
func Register(overseerChan chan<- any, blockState BlockState) *ChainAPI {
	return &ChainAPI{
		SubSystemToOverseer: overseerChan,
		BlockState:          blockState,
	}
}

func (c *ChainAPI) Run(ctx context.Context, overseerToSubSystem <-chan any, _ chan<- any) {
	for {
		select {
		case msg, ok := <-overseerToSubSystem:
			if !ok {
				return
			}
			c.processMessage(ctx, msg)
		case <-ctx.Done():
			if err := ctx.Err(); err != nil && err != context.Canceled {
				logger.Errorf("ctx error: %v", err)
			}
			return
		}
	}
}

func (*ChainAPI) Name() parachaintypes.SubSystemName {
	return parachaintypes.ChainAPI
}

func (*ChainAPI) ProcessActiveLeavesUpdateSignal(parachaintypes.ActiveLeavesUpdateSignal) error {
	return nil
}

func (*ChainAPI) ProcessBlockFinalizedSignal(parachaintypes.BlockFinalizedSignal) error {
	return nil
}

func (*ChainAPI) Stop() {}

func (c *ChainAPI) processMessage(ctx context.Context, msg any) {
	switch msg := msg.(type) {
	case util.ChainAPIMessage[util.BlockHeader]:
		header, err := c.BlockState.GetHeader(msg.Message.Hash)
		if err != nil {
			logger.Debugf("getting header of block %s: %s", msg.Message.Hash, err)
		}
		err = util.SendResponse[any](ctx, msg.ResponseChannel, parachaintypes.OverseerFuncRes[*types.Header]{
			Err:  err,
			Data: header,
		})
		if err != nil {
			logger.Debugf("responding with header of block %s: %s", msg.Message.Hash, err)
		}

	case parachaintypes.ActiveLeavesUpdateSignal:
		_ = c.ProcessActiveLeavesUpdateSignal(msg)

	case parachaintypes.BlockFinalizedSignal:
		_ = c.ProcessBlockFinalizedSignal(msg)

	default:
		logger.Errorf("%s: %T", parachaintypes.ErrUnknownOverseerMessage, msg)
	}
}
