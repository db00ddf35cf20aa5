// Copyright 2024 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

package overseer

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	availabilitystore "github.com/ChainSafe/parachain-backing/dot/parachain/availability-store"
	candidatebackingmessages "github.com/ChainSafe/parachain-backing/dot/parachain/backing/messages"
	candidatevalidation "github.com/ChainSafe/parachain-backing/dot/parachain/candidate-validation"
	collatorprotocolmessages "github.com/ChainSafe/parachain-backing/dot/parachain/collator-protocol/messages"
	prospectiveparachainsmessages "github.com/ChainSafe/parachain-backing/dot/parachain/prospective-parachains/messages"
	provisionermessages "github.com/ChainSafe/parachain-backing/dot/parachain/provisioner/messages"
	statementdistributionmessages "github.com/ChainSafe/parachain-backing/dot/parachain/statement-distribution/messages"
	parachaintypes "github.com/ChainSafe/parachain-backing/dot/parachain/types"
	"github.com/ChainSafe/parachain-backing/dot/parachain/util"
	"github.com/ChainSafe/parachain-backing/dot/types"
	"github.com/ChainSafe/parachain-backing/internal/log"
	"github.com/ChainSafe/parachain-backing/lib/common"
)

var (
	logger = log.NewFromGlobal(log.AddContext("pkg", "parachain-overseer"))

	errBlockNumberOverflow = errors.New("block number does not fit in 32 bits")
)

const stopTimeout = 500 * time.Millisecond

var _ OverseerSystem = (*Overseer)(nil)

type Overseer struct {
	ctx    context.Context
	cancel context.CancelFunc

	blockState           BlockState
	SubsystemsToOverseer chan any

	// subsystems maps each subsystem to the channel its Run method reads from.
	subsystems map[parachaintypes.Subsystem]chan any
	// mailboxes queue messages for a subsystem, in arrival order.
	mailboxes map[parachaintypes.SubSystemName]chan any

	activeLeaves map[common.Hash]uint32

	wg sync.WaitGroup
}

func NewOverseer(blockState BlockState) *Overseer {
	ctx, cancel := context.WithCancel(context.Background())
	return &Overseer{
		ctx:                  ctx,
		cancel:               cancel,
		blockState:           blockState,
		SubsystemsToOverseer: make(chan any),
		subsystems:           make(map[parachaintypes.Subsystem]chan any),
		mailboxes:            make(map[parachaintypes.SubSystemName]chan any),
		activeLeaves:         make(map[common.Hash]uint32),
	}
}

func (o *Overseer) GetSubsystemToOverseerChannel() chan any {
	return o.SubsystemsToOverseer
}

// RegisterSubsystem registers a subsystem with the overseer and returns the channel the
// subsystem receives messages and signals on. Subsystems must be registered before Start.
func (o *Overseer) RegisterSubsystem(subsystem parachaintypes.Subsystem) chan any {
	overseerToSubSystem := make(chan any)
	o.subsystems[subsystem] = overseerToSubSystem
	o.mailboxes[subsystem.Name()] = make(chan any)
	return overseerToSubSystem
}

func (o *Overseer) Start() error {
	for subsystem, overseerToSubSystem := range o.subsystems {
		mailbox := o.mailboxes[subsystem.Name()]

		o.wg.Add(2)
		go func(sub parachaintypes.Subsystem, overseerToSubSystem chan any) {
			defer o.wg.Done()
			sub.Run(o.ctx, overseerToSubSystem, o.SubsystemsToOverseer)
			logger.Infof("subsystem %s stopped", sub.Name())
		}(subsystem, overseerToSubSystem)

		go func(mailbox <-chan any, overseerToSubSystem chan<- any) {
			defer o.wg.Done()
			o.deliver(mailbox, overseerToSubSystem)
		}(mailbox, overseerToSubSystem)
	}

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		o.processMessages()
	}()

	if o.blockState != nil {
		o.wg.Add(1)
		go func() {
			defer o.wg.Done()
			o.handleBlockEvents()
		}()
	}
	return nil
}

// deliver forwards the messages of a mailbox to the subsystem. The queue is unbounded
// so a slow subsystem never blocks the overseer or its peers.
func (o *Overseer) deliver(mailbox <-chan any, overseerToSubSystem chan<- any) {
	var queue []any
	for {
		var (
			out  chan<- any
			next any
		)
		if len(queue) > 0 {
			out = overseerToSubSystem
			next = queue[0]
		}

		select {
		case msg := <-mailbox:
			queue = append(queue, msg)
		case out <- next:
			queue[0] = nil
			queue = queue[1:]
		case <-o.ctx.Done():
			return
		}
	}
}

func (o *Overseer) processMessages() {
	for {
		select {
		case msg := <-o.SubsystemsToOverseer:
			if msg == nil {
				continue
			}

			name, err := route(msg)
			if err != nil {
				logger.Errorf("%s", err)
				continue
			}
			o.send(name, msg)

		case <-o.ctx.Done():
			if err := o.ctx.Err(); err != nil && !errors.Is(err, context.Canceled) {
				logger.Errorf("ctx error: %v", err)
			}
			logger.Info("overseer stopping")
			return
		}
	}
}

// send queues the message for the named subsystem, dropping it if no such subsystem
// is registered.
func (o *Overseer) send(name parachaintypes.SubSystemName, msg any) {
	mailbox, ok := o.mailboxes[name]
	if !ok {
		logger.Debugf("dropping %T: subsystem %s is not registered", msg, name)
		return
	}

	select {
	case mailbox <- msg:
	case <-o.ctx.Done():
	}
}

func (o *Overseer) broadcast(msg any) {
	for name := range o.mailboxes {
		o.send(name, msg)
	}
}

// route returns the subsystem that handles the given message.
func route(msg any) (parachaintypes.SubSystemName, error) {
	switch msg.(type) {
	case candidatebackingmessages.SecondMessage,
		candidatebackingmessages.StatementMessage,
		candidatebackingmessages.CanSecondMessage,
		candidatebackingmessages.GetBackableCandidatesMessage:
		return parachaintypes.CandidateBacking, nil

	case candidatevalidation.ValidateFromExhaustive,
		candidatevalidation.PreCheck:
		return parachaintypes.CandidateValidation, nil

	case availabilitystore.QueryAvailableData,
		availabilitystore.QueryDataAvailability,
		availabilitystore.QueryChunk,
		availabilitystore.QueryAllChunks,
		availabilitystore.QueryChunkAvailability,
		availabilitystore.StoreChunk,
		availabilitystore.StoreAvailableData:
		return parachaintypes.AvailabilityStore, nil

	case util.ChainAPIMessage[util.BlockHeader]:
		return parachaintypes.ChainAPI, nil

	case prospectiveparachainsmessages.IntroduceSecondedCandidate,
		prospectiveparachainsmessages.CandidateBacked,
		prospectiveparachainsmessages.GetHypotheticalMembership,
		prospectiveparachainsmessages.GetMinimumRelayParents:
		return parachaintypes.ProspectiveParachains, nil

	case statementdistributionmessages.Share,
		statementdistributionmessages.Backed:
		return parachaintypes.StatementDistribution, nil

	case collatorprotocolmessages.Seconded,
		collatorprotocolmessages.Invalid,
		collatorprotocolmessages.Backed:
		return parachaintypes.CollationProtocol, nil

	case provisionermessages.ProvisionableData:
		return parachaintypes.Provisioner, nil

	case parachaintypes.AvailabilityDistributionMessageFetchPoV:
		return parachaintypes.AvailabilityDistribution, nil
	}
	return "", fmt.Errorf("%w: %T", parachaintypes.ErrUnknownOverseerMessage, msg)
}

func (o *Overseer) handleBlockEvents() {
	imported := o.blockState.GetImportedBlockNotifierChannel()
	finalised := o.blockState.GetFinalisedNotifierChannel()
	defer func() {
		o.blockState.FreeImportedBlockNotifierChannel(imported)
		o.blockState.FreeFinalisedNotifierChannel(finalised)
	}()

	for {
		select {
		case <-o.ctx.Done():
			return

		case block, ok := <-imported:
			if !ok {
				return
			}
			if block == nil {
				continue
			}
			if err := o.blockImported(&block.Header); err != nil {
				logger.Errorf("handling imported block: %s", err)
			}

		case info, ok := <-finalised:
			if !ok {
				return
			}
			if info == nil {
				continue
			}
			if err := o.blockFinalised(&info.Header); err != nil {
				logger.Errorf("handling finalised block: %s", err)
			}
		}
	}
}

// blockImported activates the imported block as a leaf, deactivating its parent if the
// parent was a leaf.
func (o *Overseer) blockImported(header *types.Header) error {
	number, err := toBlockNumber(header.Number)
	if err != nil {
		return err
	}

	hash := header.Hash()
	if _, ok := o.activeLeaves[hash]; ok {
		return nil
	}
	o.activeLeaves[hash] = number

	update := parachaintypes.ActiveLeavesUpdateSignal{
		Activated: &parachaintypes.ActivatedLeaf{
			Hash:   hash,
			Number: number,
		},
	}
	if _, ok := o.activeLeaves[header.ParentHash]; ok {
		delete(o.activeLeaves, header.ParentHash)
		update.Deactivated = []common.Hash{header.ParentHash}
	}

	o.broadcast(update)
	return nil
}

// blockFinalised deactivates the leaves left behind by finality, keeping the finalised
// block itself if it is a leaf, then signals the finalisation.
func (o *Overseer) blockFinalised(header *types.Header) error {
	number, err := toBlockNumber(header.Number)
	if err != nil {
		return err
	}

	hash := header.Hash()
	var update parachaintypes.ActiveLeavesUpdateSignal
	for leaf, leafNumber := range o.activeLeaves {
		if leafNumber <= number && leaf != hash {
			delete(o.activeLeaves, leaf)
			update.Deactivated = append(update.Deactivated, leaf)
		}
	}

	if len(update.Deactivated) > 0 {
		o.broadcast(update)
	}
	o.broadcast(parachaintypes.BlockFinalizedSignal{
		Hash:        hash,
		BlockNumber: number,
	})
	return nil
}

func toBlockNumber(number uint) (uint32, error) {
	if uint64(number) > math.MaxUint32 {
		return 0, fmt.Errorf("%w: %d", errBlockNumberOverflow, number)
	}
	return uint32(number), nil
}

func (o *Overseer) Stop() error {
	o.cancel()

	if waitTimeout(&o.wg, stopTimeout) {
		logger.Warn("timed out waiting for subsystems to stop")
	}

	for subsystem := range o.subsystems {
		subsystem.Stop()
	}
	return nil
}

func waitTimeout(wg *sync.WaitGroup, timeout time.Duration) (timeouted bool) {
	c := make(chan struct{})
	go func() {
		defer close(c)
		wg.Wait()
	}()
	timeoutTimer := time.NewTimer(timeout)
	select {
	case <-c:
		if !timeoutTimer.Stop() {
			<-timeoutTimer.C
		}
		return false // completed normally
	case <-timeoutTimer.C:
		return true // timed out
	}
}
