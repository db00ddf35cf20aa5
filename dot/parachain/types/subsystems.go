// Copyright 2024 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

package parachaintypes

import (
	"context"
	"errors"
	"time"
)

// SubSystemName is the name of a subsystem registered with the overseer.
type SubSystemName string

const (
	CandidateBacking         SubSystemName = "CandidateBacking"
	CollationProtocol        SubSystemName = "CollationProtocol"
	AvailabilityStore        SubSystemName = "AvailabilityStore"
	AvailabilityDistribution SubSystemName = "AvailabilityDistribution"
	CandidateValidation      SubSystemName = "CandidateValidation"
	ChainAPI                 SubSystemName = "ChainAPI"
	ProspectiveParachains    SubSystemName = "ProspectiveParachains"
	Provisioner              SubSystemName = "Provisioner"
	StatementDistribution    SubSystemName = "StatementDistribution"
)

// SubsystemRequestTimeout bounds how long a subsystem waits for the reply to a request
// sent to another subsystem.
const SubsystemRequestTimeout = 10 * time.Second

var ErrSubsystemRequestTimeout = errors.New("subsystem request timed out")

// Subsystem is an interface for subsystems to be registered with the overseer.
type Subsystem interface {
	// Run runs the subsystem.
	Run(ctx context.Context, overseerToSubSystem <-chan any, subSystemToOverseer chan<- any)
	Name() SubSystemName
	ProcessActiveLeavesUpdateSignal(signal ActiveLeavesUpdateSignal) error
	ProcessBlockFinalizedSignal(signal BlockFinalizedSignal) error
	Stop()
}

// OverseerFuncRes is a result of an overseer function
type OverseerFuncRes[T any] struct {
	Err  error
	Data T
}
