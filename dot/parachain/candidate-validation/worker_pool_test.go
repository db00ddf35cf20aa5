// Copyright 2024 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

package candidatevalidation

import (
	"errors"
	"testing"

	parachaintypes "github.com/ChainSafe/parachain-backing/dot/parachain/types"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/maps"
)

func TestWorkerPool_newValidationWorker(t *testing.T) {
	t.Parallel()

	codeA := parachaintypes.ValidationCode{1, 2, 3, 4}
	codeB := parachaintypes.ValidationCode{5, 6, 7, 8}
	hashA, err := codeA.Hash()
	require.NoError(t, err)
	hashB, err := codeB.Hash()
	require.NoError(t, err)

	factory := executorFactory(&testExecutor{})

	cases := map[string]struct {
		setupWorkerPool func(t *testing.T) *workerPool
		expectedWorkers []parachaintypes.ValidationCodeHash
	}{
		"add_one_worker": {
			setupWorkerPool: func(t *testing.T) *workerPool {
				pool := newValidationWorkerPool()
				_, err := pool.newValidationWorker(factory, codeA)
				require.NoError(t, err)
				return pool
			},
			expectedWorkers: []parachaintypes.ValidationCodeHash{hashA},
		},
		"same_code_twice": {
			setupWorkerPool: func(t *testing.T) *workerPool {
				pool := newValidationWorkerPool()
				first, err := pool.newValidationWorker(factory, codeA)
				require.NoError(t, err)
				second, err := pool.newValidationWorker(factory, codeA)
				require.NoError(t, err)
				require.Same(t, first, second)
				return pool
			},
			expectedWorkers: []parachaintypes.ValidationCodeHash{hashA},
		},
		"two_workers": {
			setupWorkerPool: func(t *testing.T) *workerPool {
				pool := newValidationWorkerPool()
				_, err := pool.newValidationWorker(factory, codeA)
				require.NoError(t, err)
				_, err = pool.newValidationWorker(factory, codeB)
				require.NoError(t, err)
				return pool
			},
			expectedWorkers: []parachaintypes.ValidationCodeHash{hashA, hashB},
		},
		"factory_error": {
			setupWorkerPool: func(t *testing.T) *workerPool {
				pool := newValidationWorkerPool()
				_, err := pool.newValidationWorker(func(parachaintypes.ValidationCode) (Executor, error) {
					return nil, errors.New("bad wasm")
				}, codeA)
				require.Error(t, err)
				return pool
			},
			expectedWorkers: []parachaintypes.ValidationCodeHash{},
		},
	}

	for tname, tt := range cases {
		tt := tt
		t.Run(tname, func(t *testing.T) {
			t.Parallel()

			workerPool := tt.setupWorkerPool(t)
			require.ElementsMatch(t,
				maps.Keys(workerPool.workers),
				tt.expectedWorkers)
		})
	}
}

func TestWorkerPool_submitRequest(t *testing.T) {
	t.Parallel()

	code := parachaintypes.ValidationCode{1, 2, 3}
	pov := parachaintypes.PoV{BlockData: []byte{4, 5, 6}}
	candidate := newTestCandidate(t, code, pov, testOutputs())
	outputs := candidate.outputs
	executor := &testExecutor{outputs: &outputs}

	pool := newValidationWorkerPool()
	_, err := pool.submitRequest(parachaintypes.ValidationCodeHash{9}, &workerTask{})
	require.ErrorIs(t, err, errWorkerNotFound)

	worker, err := pool.newValidationWorker(executorFactory(executor), code)
	require.NoError(t, err)
	require.True(t, pool.containsWorker(worker.workerID))

	receipt := candidate.receipt
	task := &workerTask{
		work: ValidationParameters{
			ParentHeadData:         candidate.pvd.ParentHead,
			BlockData:              pov.BlockData,
			RelayParentNumber:      candidate.pvd.RelayParentNumber,
			RelayParentStorageRoot: candidate.pvd.RelayParentStorageRoot,
		},
		maxPoVSize:       candidate.pvd.MaxPovSize,
		candidateReceipt: &receipt,
		timeout:          defaultBackingExecutionTimeout,
	}

	first, err := pool.submitRequest(worker.workerID, task)
	require.NoError(t, err)
	require.True(t, first.IsValid())

	// a processed candidate is answered from the worker cache
	second, err := pool.submitRequest(worker.workerID, task)
	require.NoError(t, err)
	require.Same(t, first, second)
	require.Equal(t, int32(1), executor.calls.Load())
}
