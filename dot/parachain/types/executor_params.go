// Copyright 2024 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

package parachaintypes

// ExecutorParam is a single parameter of the PVF execution environment.
type ExecutorParam interface {
	isExecutorParam()
}

// MaxMemoryPages is the maximum number of 64KiB pages the PVF may allocate.
type MaxMemoryPages uint32

func (MaxMemoryPages) isExecutorParam() {}

// StackLogicalMax is the maximum logical stack height of the wasm value stack.
type StackLogicalMax uint32

func (StackLogicalMax) isExecutorParam() {}

// StackNativeMax is the maximum native stack size, in bytes.
type StackNativeMax uint32

func (StackNativeMax) isExecutorParam() {}

// PrecheckingMaxMemory is the maximum memory in bytes the pre-checking process may use.
type PrecheckingMaxMemory uint64

func (PrecheckingMaxMemory) isExecutorParam() {}

// PvfExecKind is the kind of execution a PVF is run for.
type PvfExecKind byte

const (
	// PvfExecKindBacking is execution for backing.
	PvfExecKindBacking PvfExecKind = iota
	// PvfExecKindApproval is execution for approval.
	PvfExecKindApproval
)

// PvfExecTimeout is the execution timeout, in milliseconds, for the given kind.
type PvfExecTimeout struct {
	Kind PvfExecKind
	Ms   uint64
}

func (PvfExecTimeout) isExecutorParam() {}

// ExecutorParams is the set of parameters of the PVF execution environment for a session.
// An empty set means default parameters.
type ExecutorParams []ExecutorParam

// ExecTimeout returns the execution timeout for the given kind in milliseconds, if it is set.
func (ep ExecutorParams) ExecTimeout(kind PvfExecKind) (uint64, bool) {
	for _, param := range ep {
		timeout, ok := param.(PvfExecTimeout)
		if ok && timeout.Kind == kind {
			return timeout.Ms, true
		}
	}
	return 0, false
}
