// Copyright 2024 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

package overseer

import (
	"context"
	"testing"
	"time"

	candidatevalidation "github.com/ChainSafe/parachain-backing/dot/parachain/candidate-validation"
	statementdistributionmessages "github.com/ChainSafe/parachain-backing/dot/parachain/statement-distribution/messages"
	parachaintypes "github.com/ChainSafe/parachain-backing/dot/parachain/types"
	"github.com/ChainSafe/parachain-backing/dot/parachain/util"
	"github.com/ChainSafe/parachain-backing/dot/types"
	"github.com/ChainSafe/parachain-backing/lib/common"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type testSubsystem struct {
	name     parachaintypes.SubSystemName
	received chan any
	// gate, when set, holds the subsystem back from reading until it is closed.
	gate chan struct{}
}

func newTestSubsystem(name parachaintypes.SubSystemName) *testSubsystem {
	return &testSubsystem{
		name:     name,
		received: make(chan any, 128),
	}
}

func (s *testSubsystem) Name() parachaintypes.SubSystemName {
	return s.name
}

func (s *testSubsystem) Run(ctx context.Context, overseerToSubSystem <-chan any, _ chan<- any) {
	if s.gate != nil {
		select {
		case <-s.gate:
		case <-ctx.Done():
			return
		}
	}

	for {
		select {
		case msg := <-overseerToSubSystem:
			s.received <- msg
		case <-ctx.Done():
			return
		}
	}
}

func (*testSubsystem) ProcessActiveLeavesUpdateSignal(parachaintypes.ActiveLeavesUpdateSignal) error {
	return nil
}

func (*testSubsystem) ProcessBlockFinalizedSignal(parachaintypes.BlockFinalizedSignal) error {
	return nil
}

func (*testSubsystem) Stop() {}

func (s *testSubsystem) next(t *testing.T) any {
	t.Helper()

	select {
	case msg := <-s.received:
		return msg
	case <-time.After(2 * time.Second):
		t.Fatalf("%s: timed out waiting for a message", s.name)
	}
	return nil
}

func (s *testSubsystem) requireNothing(t *testing.T) {
	t.Helper()

	select {
	case msg := <-s.received:
		t.Fatalf("%s: unexpected message %T", s.name, msg)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestHandleBlockEvents(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)

	blockState := NewMockBlockState(ctrl)

	finalizedNotifierChan := make(chan *types.FinalisationInfo)
	importedBlockNotiferChan := make(chan *types.Block)

	blockState.EXPECT().GetFinalisedNotifierChannel().Return(finalizedNotifierChan)
	blockState.EXPECT().GetImportedBlockNotifierChannel().Return(importedBlockNotiferChan)
	blockState.EXPECT().FreeFinalisedNotifierChannel(finalizedNotifierChan)
	blockState.EXPECT().FreeImportedBlockNotifierChannel(importedBlockNotiferChan)

	overseer := NewOverseer(blockState)

	subSystem1 := newTestSubsystem(parachaintypes.CandidateBacking)
	subSystem2 := newTestSubsystem(parachaintypes.ProspectiveParachains)
	overseer.RegisterSubsystem(subSystem1)
	overseer.RegisterSubsystem(subSystem2)

	require.NoError(t, overseer.Start())

	genesis := types.NewHeader(common.Hash{}, common.Hash{}, common.Hash{}, 0)
	block1 := types.NewHeader(genesis.Hash(), common.Hash{1}, common.Hash{}, 1)
	block2 := types.NewHeader(block1.Hash(), common.Hash{2}, common.Hash{}, 2)
	fork2 := types.NewHeader(block1.Hash(), common.Hash{3}, common.Hash{}, 2)

	expectAll := func(expected any) {
		t.Helper()
		require.Equal(t, expected, subSystem1.next(t))
		require.Equal(t, expected, subSystem2.next(t))
	}

	importedBlockNotiferChan <- types.NewBlock(*block1, nil)
	expectAll(parachaintypes.ActiveLeavesUpdateSignal{
		Activated: &parachaintypes.ActivatedLeaf{Hash: block1.Hash(), Number: 1},
	})

	// the parent leaf is replaced by its child
	importedBlockNotiferChan <- types.NewBlock(*block2, nil)
	expectAll(parachaintypes.ActiveLeavesUpdateSignal{
		Activated:   &parachaintypes.ActivatedLeaf{Hash: block2.Hash(), Number: 2},
		Deactivated: []common.Hash{block1.Hash()},
	})

	// a fork of a block that is no longer a leaf deactivates nothing
	importedBlockNotiferChan <- types.NewBlock(*fork2, nil)
	expectAll(parachaintypes.ActiveLeavesUpdateSignal{
		Activated: &parachaintypes.ActivatedLeaf{Hash: fork2.Hash(), Number: 2},
	})

	// finality prunes the stale fork and keeps the finalised leaf
	finalizedNotifierChan <- &types.FinalisationInfo{Header: *block2}
	expectAll(parachaintypes.ActiveLeavesUpdateSignal{
		Deactivated: []common.Hash{fork2.Hash()},
	})
	expectAll(parachaintypes.BlockFinalizedSignal{Hash: block2.Hash(), BlockNumber: 2})

	require.NoError(t, overseer.Stop())
	subSystem1.requireNothing(t)
}

func TestOverseer_routesMessages(t *testing.T) {
	t.Parallel()

	overseer := NewOverseer(nil)

	validation := newTestSubsystem(parachaintypes.CandidateValidation)
	chainAPI := newTestSubsystem(parachaintypes.ChainAPI)
	overseer.RegisterSubsystem(validation)
	overseer.RegisterSubsystem(chainAPI)

	require.NoError(t, overseer.Start())
	defer func() {
		require.NoError(t, overseer.Stop())
	}()

	toOverseer := overseer.GetSubsystemToOverseerChannel()

	validate := candidatevalidation.ValidateFromExhaustive{PoV: parachaintypes.PoV{BlockData: []byte{1}}}
	toOverseer <- validate
	require.Equal(t, validate, validation.next(t))

	header := util.ChainAPIMessage[util.BlockHeader]{Message: util.BlockHeader{Hash: common.Hash{1}}}
	toOverseer <- header
	require.Equal(t, header, chainAPI.next(t))

	// no statement distribution is registered, and strings are not a message
	toOverseer <- statementdistributionmessages.Backed{}
	toOverseer <- "unknown"

	validation.requireNothing(t)
	chainAPI.requireNothing(t)
}

func TestOverseer_slowSubsystemKeepsOrder(t *testing.T) {
	t.Parallel()

	overseer := NewOverseer(nil)

	slow := newTestSubsystem(parachaintypes.CandidateValidation)
	slow.gate = make(chan struct{})
	fast := newTestSubsystem(parachaintypes.ChainAPI)
	overseer.RegisterSubsystem(slow)
	overseer.RegisterSubsystem(fast)

	require.NoError(t, overseer.Start())
	defer func() {
		require.NoError(t, overseer.Stop())
	}()

	toOverseer := overseer.GetSubsystemToOverseerChannel()

	const messages = 50
	for i := 0; i < messages; i++ {
		toOverseer <- candidatevalidation.PreCheck{RelayParent: common.Hash{byte(i)}}
	}

	// the slow subsystem does not hold up the others
	header := util.ChainAPIMessage[util.BlockHeader]{Message: util.BlockHeader{Hash: common.Hash{1}}}
	toOverseer <- header
	require.Equal(t, header, fast.next(t))

	close(slow.gate)
	for i := 0; i < messages; i++ {
		msg := slow.next(t).(candidatevalidation.PreCheck)
		require.Equal(t, common.Hash{byte(i)}, msg.RelayParent)
	}
}
