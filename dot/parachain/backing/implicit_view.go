// Copyright 2024 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

package backing

import (
	"context"
	"errors"
	"fmt"
	"math"

	prospectiveparachainsmessages "github.com/ChainSafe/parachain-backing/dot/parachain/prospective-parachains/messages"
	parachaintypes "github.com/ChainSafe/parachain-backing/dot/parachain/types"
	"github.com/ChainSafe/parachain-backing/dot/parachain/util"
	"github.com/ChainSafe/parachain-backing/lib/common"
)

var (
	errBlockNumberOverflow   = errors.New("block number overflows uint32")
	errUnexpectedBlockNumber = errors.New("parent block number does not precede child block number")
	errNilHeader             = errors.New("nil header")
	errMinimumRelayParents   = errors.New("no response to minimum relay parents request")
)

// blockInfo is what the implicit view keeps of a relay chain block.
type blockInfo struct {
	number     uint32
	parentHash common.Hash
}

// leafInfo holds the ancestry of an active leaf with prospective parachains enabled.
type leafInfo struct {
	number uint32
	// minimum relay parent number accepted by each para under the leaf.
	minimumRelayParents map[parachaintypes.ParaID]uint32
	// contiguous ancestry starting at the leaf itself, going back to the lowest minimum relay
	// parent of all paras.
	ancestry []common.Hash
}

// implicitView tracks the relay parents that candidates may be built on, under each active leaf.
// Block information is shared between leaves, so ancestors common to several forks are fetched
// only once.
type implicitView struct {
	overseerChan     chan<- any
	leaves           map[common.Hash]*leafInfo
	blockInfoStorage map[common.Hash]*blockInfo
}

func newImplicitView(overseerChan chan<- any) *implicitView {
	return &implicitView{
		overseerChan:     overseerChan,
		leaves:           make(map[common.Hash]*leafInfo),
		blockInfoStorage: make(map[common.Hash]*blockInfo),
	}
}

// activateLeaf fetches the minimum relay parents of the leaf and walks its ancestry back to the
// lowest of them. Headers already known from another leaf are not fetched again.
func (iv *implicitView) activateLeaf(ctx context.Context, leafHash common.Hash) error {
	if _, ok := iv.leaves[leafHash]; ok {
		return nil
	}

	leafBlock, err := iv.blockInfo(ctx, leafHash)
	if err != nil {
		return fmt.Errorf("getting leaf block info: %w", err)
	}

	minimumRelayParents, err := iv.fetchMinimumRelayParents(ctx, leafHash)
	if err != nil {
		return fmt.Errorf("fetching minimum relay parents: %w", err)
	}

	lowest := leafBlock.number
	for _, minimum := range minimumRelayParents {
		if minimum < lowest {
			lowest = minimum
		}
	}

	ancestry := []common.Hash{leafHash}
	current := leafBlock
	for current.number > lowest {
		parent, err := iv.blockInfo(ctx, current.parentHash)
		if err != nil {
			return fmt.Errorf("getting ancestor block info: %w", err)
		}
		if parent.number+1 != current.number {
			return fmt.Errorf("%w: parent %s has number %d, child has number %d",
				errUnexpectedBlockNumber, current.parentHash, parent.number, current.number)
		}

		ancestry = append(ancestry, current.parentHash)
		current = parent
	}

	iv.leaves[leafHash] = &leafInfo{
		number:              leafBlock.number,
		minimumRelayParents: minimumRelayParents,
		ancestry:            ancestry,
	}
	return nil
}

// deactivateLeaf removes the leaf and forgets the blocks no other leaf needs.
func (iv *implicitView) deactivateLeaf(leafHash common.Hash) {
	if _, ok := iv.leaves[leafHash]; !ok {
		return
	}
	delete(iv.leaves, leafHash)

	needed := make(map[common.Hash]struct{})
	for _, leaf := range iv.leaves {
		for _, hash := range leaf.ancestry {
			needed[hash] = struct{}{}
		}
	}

	for hash := range iv.blockInfoStorage {
		if _, ok := needed[hash]; !ok {
			delete(iv.blockInfoStorage, hash)
		}
	}
}

// knownAllowedRelayParentsUnder returns the relay parents allowed under the given leaf, starting
// with the leaf. When a para is given, only the relay parents at or above its minimum relay
// parent are returned, and nothing is returned for a para unknown under the leaf.
func (iv *implicitView) knownAllowedRelayParentsUnder(
	leafHash common.Hash, paraID *parachaintypes.ParaID,
) []common.Hash {
	leaf, ok := iv.leaves[leafHash]
	if !ok {
		return nil
	}

	if paraID == nil {
		return leaf.ancestry
	}

	minimum, ok := leaf.minimumRelayParents[*paraID]
	if !ok {
		return nil
	}

	length := 1
	if minimum <= leaf.number {
		length = int(leaf.number-minimum) + 1
	}
	if length > len(leaf.ancestry) {
		length = len(leaf.ancestry)
	}
	return leaf.ancestry[:length]
}

// allAllowedRelayParents returns every relay parent allowed under any of the active leaves.
func (iv *implicitView) allAllowedRelayParents() []common.Hash {
	seen := make(map[common.Hash]struct{})
	var relayParents []common.Hash
	for _, leaf := range iv.leaves {
		for _, hash := range leaf.ancestry {
			if _, ok := seen[hash]; ok {
				continue
			}
			seen[hash] = struct{}{}
			relayParents = append(relayParents, hash)
		}
	}
	return relayParents
}

func (iv *implicitView) blockInfo(ctx context.Context, hash common.Hash) (*blockInfo, error) {
	if info, ok := iv.blockInfoStorage[hash]; ok {
		return info, nil
	}

	header, err := util.GetBlockHeader(ctx, iv.overseerChan, hash)
	if err != nil {
		return nil, err
	}
	if header == nil {
		return nil, fmt.Errorf("%w: block %s", errNilHeader, hash)
	}
	if header.Number > math.MaxUint32 {
		return nil, fmt.Errorf("%w: block %s has number %d", errBlockNumberOverflow, hash, header.Number)
	}

	info := &blockInfo{
		number:     uint32(header.Number),
		parentHash: header.ParentHash,
	}
	iv.blockInfoStorage[hash] = info
	return info, nil
}

func (iv *implicitView) fetchMinimumRelayParents(
	ctx context.Context, leafHash common.Hash,
) (map[parachaintypes.ParaID]uint32, error) {
	msg := prospectiveparachainsmessages.GetMinimumRelayParents{
		RelayChainBlockHash: leafHash,
		Sender:              make(chan []prospectiveparachainsmessages.ParaIDBlockNumber, 1),
	}
	if err := util.SendMessage(ctx, iv.overseerChan, msg); err != nil {
		return nil, err
	}

	response, err := util.ReceiveResponse[[]prospectiveparachainsmessages.ParaIDBlockNumber](ctx, msg.Sender)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errMinimumRelayParents, err)
	}

	minimumRelayParents := make(map[parachaintypes.ParaID]uint32, len(response))
	for _, paraMinimum := range response {
		minimumRelayParents[paraMinimum.ParaID] = uint32(paraMinimum.BlockNumber)
	}
	return minimumRelayParents, nil
}
