// Copyright 2024 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

package overseer

import (
	"context"
	"sync"
	"testing"
	"time"

	parachaintypes "github.com/ChainSafe/parachain-backing/dot/parachain/types"
)

var _ OverseerSystem = (*MockableOverseer)(nil)

// expectation is a step of expected overseer messages. The messages of a step may arrive in
// any order; steps are consumed in the order they were set.
type expectation struct {
	actions []func(msg any) bool
}

// MockableOverseer drives a single subsystem under test, playing the overseer and every
// other subsystem through the expected actions.
type MockableOverseer struct {
	t      *testing.T
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	SubsystemsToOverseer chan any
	overseerToSubsystem  chan any
	subSystem            parachaintypes.Subsystem

	mtx          sync.Mutex
	expectations []*expectation
	// consumed is signalled whenever an expectation step completes.
	consumed chan struct{}
}

func NewMockableOverseer(t *testing.T) *MockableOverseer {
	ctx, cancel := context.WithCancel(context.Background())

	return &MockableOverseer{
		t:                    t,
		ctx:                  ctx,
		cancel:               cancel,
		SubsystemsToOverseer: make(chan any),
		consumed:             make(chan struct{}, 1),
	}
}

func (m *MockableOverseer) GetSubsystemToOverseerChannel() chan any {
	return m.SubsystemsToOverseer
}

func (m *MockableOverseer) RegisterSubsystem(subsystem parachaintypes.Subsystem) chan any {
	OverseerToSubSystem := make(chan any)
	m.overseerToSubsystem = OverseerToSubSystem
	m.subSystem = subsystem
	return OverseerToSubSystem
}

func (m *MockableOverseer) Start() error {
	m.wg.Add(2)
	go func(sub parachaintypes.Subsystem, overseerToSubSystem chan any) {
		defer m.wg.Done()
		sub.Run(m.ctx, overseerToSubSystem, m.SubsystemsToOverseer)
	}(m.subSystem, m.overseerToSubsystem)

	go func() {
		defer m.wg.Done()
		m.processMessages()
	}()
	return nil
}

func (m *MockableOverseer) Stop() error {
	m.cancel()
	m.wg.Wait()
	m.subSystem.Stop()
	return nil
}

// ReceiveMessage method is to receive overseer messages in a subsystem which we are testing
func (m *MockableOverseer) ReceiveMessage(msg any) {
	select {
	case m.overseerToSubsystem <- msg:
	case <-m.ctx.Done():
	}
}

// ExpectActions method is to set expected actions for overseer messages we receive from the subsystem.
// actions are expected in the order they are set.
// all the functions in the arguments should return false, without side effects, if the message is
// unexpected.
func (m *MockableOverseer) ExpectActions(fns ...func(msg any) bool) {
	m.mtx.Lock()
	defer m.mtx.Unlock()

	for _, fn := range fns {
		m.expectations = append(m.expectations, &expectation{actions: []func(msg any) bool{fn}})
	}
}

// ExpectActionsInAnyOrder sets a single step of expected actions, for messages sent concurrently
// by the subsystem. Each message is matched against the remaining actions of the step by content.
func (m *MockableOverseer) ExpectActionsInAnyOrder(fns ...func(msg any) bool) {
	m.mtx.Lock()
	defer m.mtx.Unlock()

	m.expectations = append(m.expectations, &expectation{actions: fns})
}

// WaitForActions blocks until every expected action has been consumed, failing the test
// after the given timeout.
func (m *MockableOverseer) WaitForActions(timeout time.Duration) {
	m.t.Helper()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		m.mtx.Lock()
		remaining := len(m.expectations)
		m.mtx.Unlock()
		if remaining == 0 {
			return
		}

		select {
		case <-m.consumed:
		case <-timer.C:
			m.t.Fatalf("timed out with %d expected action steps remaining", remaining)
		}
	}
}

func (m *MockableOverseer) processMessages() {
	for {
		select {
		case msg := <-m.SubsystemsToOverseer:
			if msg == nil {
				continue
			}
			m.handle(msg)
		case <-m.ctx.Done():
			return
		}
	}
}

func (m *MockableOverseer) handle(msg any) {
	m.mtx.Lock()
	if len(m.expectations) == 0 {
		m.mtx.Unlock()
		m.t.Errorf("unexpected message: %T %+v", msg, msg)
		return
	}

	step := m.expectations[0]
	matched := false
	for i, action := range step.actions {
		if action(msg) {
			step.actions = append(step.actions[:i], step.actions[i+1:]...)
			matched = true
			break
		}
	}
	if matched && len(step.actions) == 0 {
		m.expectations = m.expectations[1:]
	}
	m.mtx.Unlock()

	if !matched {
		m.t.Errorf("unexpected message: %T %+v", msg, msg)
		return
	}

	select {
	case m.consumed <- struct{}{}:
	default:
	}
}
