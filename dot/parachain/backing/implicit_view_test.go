// Copyright 2024 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

package backing

import (
	"context"
	"errors"
	"sync"
	"testing"

	prospectiveparachainsmessages "github.com/ChainSafe/parachain-backing/dot/parachain/prospective-parachains/messages"
	parachaintypes "github.com/ChainSafe/parachain-backing/dot/parachain/types"
	"github.com/ChainSafe/parachain-backing/dot/parachain/util"
	"github.com/ChainSafe/parachain-backing/dot/types"
	"github.com/ChainSafe/parachain-backing/lib/common"
	"github.com/stretchr/testify/require"
)

var errUnknownBlock = errors.New("unknown block")

// testChain answers the header and minimum relay parent requests of the implicit view.
type testChain struct {
	headers  map[common.Hash]*types.Header
	minimums map[common.Hash][]prospectiveparachainsmessages.ParaIDBlockNumber

	mtx            sync.Mutex
	headerRequests []common.Hash
}

// newTestChain builds a chain of blocks numbered from 0 to head, where block n has the hash
// getDummyHash(n).
func newTestChain(head byte) *testChain {
	chain := &testChain{
		headers:  make(map[common.Hash]*types.Header),
		minimums: make(map[common.Hash][]prospectiveparachainsmessages.ParaIDBlockNumber),
	}
	for n := byte(1); n <= head; n++ {
		chain.headers[getDummyHash(n)] = &types.Header{ParentHash: getDummyHash(n - 1), Number: uint(n)}
	}
	return chain
}

func (c *testChain) serve(ctx context.Context, overseerChan <-chan any) {
	for {
		select {
		case msg := <-overseerChan:
			switch msg := msg.(type) {
			case util.ChainAPIMessage[util.BlockHeader]:
				c.mtx.Lock()
				c.headerRequests = append(c.headerRequests, msg.Message.Hash)
				c.mtx.Unlock()

				header, ok := c.headers[msg.Message.Hash]
				if !ok {
					msg.ResponseChannel <- parachaintypes.OverseerFuncRes[*types.Header]{Err: errUnknownBlock}
					continue
				}
				msg.ResponseChannel <- parachaintypes.OverseerFuncRes[*types.Header]{Data: header}
			case prospectiveparachainsmessages.GetMinimumRelayParents:
				msg.Sender <- c.minimums[msg.RelayChainBlockHash]
			}
		case <-ctx.Done():
			return
		}
	}
}

func (c *testChain) takeHeaderRequests() []common.Hash {
	c.mtx.Lock()
	defer c.mtx.Unlock()

	requests := c.headerRequests
	c.headerRequests = nil
	return requests
}

func newTestImplicitView(t *testing.T, chain *testChain) *implicitView {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	overseerChan := make(chan any)
	go chain.serve(ctx, overseerChan)
	return newImplicitView(overseerChan)
}

func hashes(numbers ...byte) []common.Hash {
	result := make([]common.Hash, 0, len(numbers))
	for _, n := range numbers {
		result = append(result, getDummyHash(n))
	}
	return result
}

func TestImplicitView_activateLeaf(t *testing.T) {
	t.Parallel()

	chain := newTestChain(10)
	leaf := getDummyHash(10)
	chain.minimums[leaf] = []prospectiveparachainsmessages.ParaIDBlockNumber{
		{ParaID: 1, BlockNumber: 7},
		{ParaID: 2, BlockNumber: 6},
	}

	view := newTestImplicitView(t, chain)
	err := view.activateLeaf(context.Background(), leaf)
	require.NoError(t, err)
	require.Equal(t, hashes(10, 9, 8, 7, 6), chain.takeHeaderRequests())

	paraOne := parachaintypes.ParaID(1)
	paraTwo := parachaintypes.ParaID(2)
	unknownPara := parachaintypes.ParaID(3)

	require.Equal(t, hashes(10, 9, 8, 7), view.knownAllowedRelayParentsUnder(leaf, &paraOne))
	require.Equal(t, hashes(10, 9, 8, 7, 6), view.knownAllowedRelayParentsUnder(leaf, &paraTwo))
	require.Nil(t, view.knownAllowedRelayParentsUnder(leaf, &unknownPara))
	require.Equal(t, hashes(10, 9, 8, 7, 6), view.knownAllowedRelayParentsUnder(leaf, nil))
	require.Nil(t, view.knownAllowedRelayParentsUnder(getDummyHash(9), nil))

	// activating the same leaf again is a no-op.
	err = view.activateLeaf(context.Background(), leaf)
	require.NoError(t, err)
	require.Empty(t, chain.takeHeaderRequests())
}

func TestImplicitView_minimumAboveLeaf(t *testing.T) {
	t.Parallel()

	chain := newTestChain(10)
	leaf := getDummyHash(10)
	chain.minimums[leaf] = []prospectiveparachainsmessages.ParaIDBlockNumber{{ParaID: 1, BlockNumber: 12}}

	view := newTestImplicitView(t, chain)
	err := view.activateLeaf(context.Background(), leaf)
	require.NoError(t, err)

	paraID := parachaintypes.ParaID(1)
	require.Equal(t, hashes(10), view.knownAllowedRelayParentsUnder(leaf, &paraID))
	require.Equal(t, hashes(10), chain.takeHeaderRequests())
}

func TestImplicitView_forksShareAncestry(t *testing.T) {
	t.Parallel()

	chain := newTestChain(10)
	leafA := getDummyHash(10)
	leafB := getDummyHash(110)
	chain.headers[leafB] = &types.Header{ParentHash: getDummyHash(9), Number: 10}
	chain.minimums[leafA] = []prospectiveparachainsmessages.ParaIDBlockNumber{{ParaID: 1, BlockNumber: 6}}
	chain.minimums[leafB] = []prospectiveparachainsmessages.ParaIDBlockNumber{{ParaID: 1, BlockNumber: 8}}

	view := newTestImplicitView(t, chain)
	require.NoError(t, view.activateLeaf(context.Background(), leafA))
	require.Equal(t, hashes(10, 9, 8, 7, 6), chain.takeHeaderRequests())

	require.NoError(t, view.activateLeaf(context.Background(), leafB))
	// blocks 9 and 8 are known from the other fork.
	require.Equal(t, []common.Hash{leafB}, chain.takeHeaderRequests())
	require.Equal(t, []common.Hash{leafB, getDummyHash(9), getDummyHash(8)}, view.knownAllowedRelayParentsUnder(leafB, nil))
	require.ElementsMatch(t, append(hashes(10, 9, 8, 7, 6), leafB), view.allAllowedRelayParents())

	view.deactivateLeaf(leafA)
	require.ElementsMatch(t, []common.Hash{leafB, getDummyHash(9), getDummyHash(8)}, view.allAllowedRelayParents())
	require.Len(t, view.blockInfoStorage, 3)

	view.deactivateLeaf(leafB)
	require.Empty(t, view.allAllowedRelayParents())
	require.Empty(t, view.blockInfoStorage)
}

func TestImplicitView_activateLeafWithUnknownAncestor(t *testing.T) {
	t.Parallel()

	chain := newTestChain(10)
	leaf := getDummyHash(10)
	chain.minimums[leaf] = []prospectiveparachainsmessages.ParaIDBlockNumber{{ParaID: 1, BlockNumber: 7}}
	delete(chain.headers, getDummyHash(8))

	view := newTestImplicitView(t, chain)
	err := view.activateLeaf(context.Background(), leaf)
	require.ErrorIs(t, err, errUnknownBlock)
	require.Empty(t, view.allAllowedRelayParents())
}
