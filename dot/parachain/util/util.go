// Copyright 2024 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

package util

import (
	"context"
	"errors"
	"fmt"
	"time"

	parachaintypes "github.com/ChainSafe/parachain-backing/dot/parachain/types"
	"github.com/ChainSafe/parachain-backing/dot/types"
	"github.com/ChainSafe/parachain-backing/lib/common"
	"github.com/ChainSafe/parachain-backing/lib/keystore"
)

var (
	errUnexpectedResponse    = errors.New("unexpected response type")
	errResponseChannelClosed = errors.New("response channel closed")
)

// SigningKeyAndIndex finds the first key we can sign with from the given set of validators,
// if any, and returns it along with the validator index.
func SigningKeyAndIndex(
	validators []parachaintypes.ValidatorID,
	ks keystore.Keystore,
) (*parachaintypes.ValidatorID, parachaintypes.ValidatorIndex) {
	for i, validator := range validators {
		if ks.GetKeypairFromBytes(validator) != nil {
			validator := validator
			return &validator, parachaintypes.ValidatorIndex(i)
		}
	}
	return nil, 0
}

// ChainAPIMessage is a request to the chain API subsystem. The response is sent on
// ResponseChannel as a parachaintypes.OverseerFuncRes of the requested data.
type ChainAPIMessage[message any] struct {
	Message         message
	ResponseChannel chan any
}

// BlockHeader requests the header of the block with the given hash.
type BlockHeader struct {
	Hash common.Hash
}

// GetBlockHeader asks the chain API subsystem for the header of the given block.
func GetBlockHeader(ctx context.Context, overseerChannel chan<- any, hash common.Hash) (*types.Header, error) {
	message := ChainAPIMessage[BlockHeader]{
		Message:         BlockHeader{Hash: hash},
		ResponseChannel: make(chan any, 1),
	}
	res, err := Call(ctx, overseerChannel, message, message.ResponseChannel)
	if err != nil {
		return nil, fmt.Errorf("getting block header: %w", err)
	}

	response, ok := res.(parachaintypes.OverseerFuncRes[*types.Header])
	if !ok {
		return nil, fmt.Errorf("%w: %T", errUnexpectedResponse, res)
	}
	if response.Err != nil {
		return nil, fmt.Errorf("getting block header: %w", response.Err)
	}
	return response.Data, nil
}

// Call sends the given message to the given channel and waits for a response with a timeout
func Call(ctx context.Context, channel chan<- any, message any, responseChan chan any) (any, error) {
	if err := SendMessage(ctx, channel, message); err != nil {
		return nil, fmt.Errorf("send message: %w", err)
	}
	return ReceiveResponse[any](ctx, responseChan)
}

// SendMessage sends the given message to the given channel with a timeout
func SendMessage(ctx context.Context, channel chan<- any, message any) error {
	timer := time.NewTimer(parachaintypes.SubsystemRequestTimeout)
	defer timer.Stop()

	select {
	case channel <- message:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return fmt.Errorf("%w: sending %T", parachaintypes.ErrSubsystemRequestTimeout, message)
	}
}

// SendResponse hands a response to a requester, bounded by the subsystem request timeout.
// A requester which stopped listening gets an ErrSubsystemRequestTimeout.
func SendResponse[T any](ctx context.Context, responseChan chan<- T, response T) error {
	timer := time.NewTimer(parachaintypes.SubsystemRequestTimeout)
	defer timer.Stop()

	select {
	case responseChan <- response:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return fmt.Errorf("%w: responding with %T", parachaintypes.ErrSubsystemRequestTimeout, response)
	}
}

// ReceiveResponse waits for a single response on the given channel, bounded by the
// subsystem request timeout.
func ReceiveResponse[T any](ctx context.Context, responseChan <-chan T) (T, error) {
	timer := time.NewTimer(parachaintypes.SubsystemRequestTimeout)
	defer timer.Stop()

	var zero T
	select {
	case response, ok := <-responseChan:
		if !ok {
			return zero, errResponseChannelClosed
		}
		return response, nil
	case <-ctx.Done():
		return zero, ctx.Err()
	case <-timer.C:
		return zero, parachaintypes.ErrSubsystemRequestTimeout
	}
}
