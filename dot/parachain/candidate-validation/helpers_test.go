// Copyright 2024 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

package candidatevalidation

import (
	"sync/atomic"
	"testing"
	"time"

	parachaintypes "github.com/ChainSafe/parachain-backing/dot/parachain/types"
	"github.com/ChainSafe/parachain-backing/lib/common"
	"github.com/ChainSafe/parachain-backing/lib/crypto/sr25519"
	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/require"
)

type testExecutor struct {
	outputs *ValidationOutputs
	err     error
	delay   time.Duration
	calls   atomic.Int32
}

func (e *testExecutor) ValidateBlock(ValidationParameters) (*ValidationOutputs, error) {
	e.calls.Add(1)
	if e.delay > 0 {
		time.Sleep(e.delay)
	}
	return e.outputs, e.err
}

func executorFactory(executor Executor) ExecutorFactory {
	return func(parachaintypes.ValidationCode) (Executor, error) {
		return executor, nil
	}
}

func maybeCompressBlob(t *testing.T, blob []byte) []byte {
	t.Helper()

	encoder, err := zstd.NewWriter(nil)
	require.NoError(t, err)
	defer encoder.Close()

	return append(append([]byte{}, zstdPrefix...), encoder.EncodeAll(blob, nil)...)
}

type testCandidate struct {
	code     parachaintypes.ValidationCode
	pov      parachaintypes.PoV
	pvd      parachaintypes.PersistedValidationData
	outputs  ValidationOutputs
	receipt  parachaintypes.CandidateReceipt
	collator *sr25519.Keypair
}

func testOutputs() ValidationOutputs {
	return ValidationOutputs{
		HeadData:                  parachaintypes.HeadData{Data: []byte("new head")},
		UpwardMessages:            []parachaintypes.UpwardMessage{{1, 2, 3}},
		HorizontalMessages:        []parachaintypes.OutboundHrmpMessage{},
		ProcessedDownwardMessages: 1,
		HrmpWatermark:             7,
	}
}

// newTestCandidate builds a candidate receipt, signed by a fresh collator, whose commitments
// match the given outputs.
func newTestCandidate(t *testing.T, code parachaintypes.ValidationCode, pov parachaintypes.PoV,
	outputs ValidationOutputs) testCandidate {
	t.Helper()

	collator, err := sr25519.GenerateKeypair()
	require.NoError(t, err)

	pvd := parachaintypes.PersistedValidationData{
		ParentHead:             parachaintypes.HeadData{Data: []byte("parent head")},
		RelayParentNumber:      5,
		RelayParentStorageRoot: common.Hash{0xaa},
		MaxPovSize:             maxPoVSize,
	}
	pvdHash, err := pvd.Hash()
	require.NoError(t, err)

	povHash, err := pov.Hash()
	require.NoError(t, err)

	codeHash, err := code.Hash()
	require.NoError(t, err)

	headHash, err := outputs.HeadData.Hash()
	require.NoError(t, err)

	commitments := parachaintypes.CandidateCommitments{
		UpwardMessages:            outputs.UpwardMessages,
		HorizontalMessages:        outputs.HorizontalMessages,
		NewValidationCode:         outputs.NewValidationCode,
		HeadData:                  outputs.HeadData,
		ProcessedDownwardMessages: outputs.ProcessedDownwardMessages,
		HrmpWatermark:             outputs.HrmpWatermark,
	}
	commitmentsHash, err := commitments.Hash()
	require.NoError(t, err)

	descriptor := parachaintypes.CandidateDescriptor{
		ParaID:                      1000,
		RelayParent:                 common.Hash{0x01},
		Collator:                    parachaintypes.CollatorID(collator.Public().AsBytes()),
		PersistedValidationDataHash: pvdHash,
		PovHash:                     povHash,
		ErasureRoot:                 common.Hash{0x02},
		ParaHead:                    headHash,
		ValidationCodeHash:          codeHash,
	}
	signCandidate(t, collator, &descriptor)

	return testCandidate{
		code:    code,
		pov:     pov,
		pvd:     pvd,
		outputs: outputs,
		receipt: parachaintypes.CandidateReceipt{
			Descriptor:      descriptor,
			CommitmentsHash: commitmentsHash,
		},
		collator: collator,
	}
}

func signCandidate(t *testing.T, collator *sr25519.Keypair, descriptor *parachaintypes.CandidateDescriptor) {
	t.Helper()

	payload, err := descriptor.CreateSignaturePayload()
	require.NoError(t, err)
	signature, err := collator.Sign(payload)
	require.NoError(t, err)
	copy(descriptor.Signature[:], signature)
}

func (tc testCandidate) task() *ValidationTask {
	receipt := tc.receipt
	code := tc.code
	return &ValidationTask{
		PersistedValidationData: tc.pvd,
		CandidateReceipt:        &receipt,
		PoV:                     tc.pov,
		ValidationCode:          &code,
	}
}
