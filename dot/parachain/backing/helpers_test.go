// Copyright 2024 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

package backing

import (
	"testing"

	parachaintypes "github.com/ChainSafe/parachain-backing/dot/parachain/types"
	"github.com/ChainSafe/parachain-backing/lib/common"
	"github.com/ChainSafe/parachain-backing/lib/crypto/sr25519"
	"github.com/ChainSafe/parachain-backing/lib/keystore"
	"github.com/stretchr/testify/require"
)

const (
	testSessionIndex = parachaintypes.SessionIndex(1)
	testAPIVersion   = uint32(10)
)

func getDummyHash(num byte) common.Hash {
	hash := common.Hash{}
	for i := 0; i < 32; i++ {
		hash[i] = num
	}
	return hash
}

// testValidators are the validators of the test session, with deterministic keys.
type testValidators struct {
	keypairs []*sr25519.Keypair
	ids      []parachaintypes.ValidatorID
}

func newTestValidators(t *testing.T, n int) testValidators {
	t.Helper()

	var validators testValidators
	for i := 0; i < n; i++ {
		seed := make([]byte, sr25519.SeedLength)
		seed[0] = byte(i + 1)

		kp, err := sr25519.NewKeypairFromSeed(seed)
		require.NoError(t, err)

		validators.keypairs = append(validators.keypairs, kp)
		validators.ids = append(validators.ids, parachaintypes.ValidatorID(kp.Public().AsBytes()))
	}
	return validators
}

// keystore returns a keystore holding the keys of the validators at the given indices.
func (tv testValidators) keystore(t *testing.T, indices ...int) keystore.Keystore {
	t.Helper()

	ks := keystore.NewBasicKeystore(keystore.ParaName)
	for _, index := range indices {
		require.NoError(t, ks.Insert(tv.keypairs[index]))
	}
	return ks
}

func (tv testValidators) sign(
	t *testing.T,
	index parachaintypes.ValidatorIndex,
	statement parachaintypes.StatementVDT,
	relayParent common.Hash,
) parachaintypes.SignedFullStatement {
	t.Helper()

	signingContext := parachaintypes.SigningContext{SessionIndex: testSessionIndex, ParentHash: relayParent}
	signature, err := statement.Sign(tv.keystore(t, int(index)), signingContext, tv.ids[index])
	require.NoError(t, err)

	return parachaintypes.SignedFullStatement{
		Payload:        statement,
		ValidatorIndex: index,
		Signature:      *signature,
	}
}

// validatorGroups puts validators 2, 0, 3 and 5 in the group of the first core and validator 1
// in the group of the second one.
func validatorGroups() *parachaintypes.ValidatorGroups {
	return &parachaintypes.ValidatorGroups{
		Validators: [][]parachaintypes.ValidatorIndex{
			{2, 0, 3, 5},
			{1},
		},
		GroupRotationInfo: parachaintypes.GroupRotationInfo{
			SessionStartBlock:      0,
			GroupRotationFrequency: 100,
			Now:                    1,
		},
	}
}

// availabilityCores schedules para 1 on the first core and para 2 on the second one.
func availabilityCores() []parachaintypes.CoreState {
	return []parachaintypes.CoreState{
		parachaintypes.ScheduledCore{ParaID: 1},
		parachaintypes.ScheduledCore{ParaID: 2},
	}
}

func dummyPVD() parachaintypes.PersistedValidationData {
	return parachaintypes.PersistedValidationData{
		ParentHead:             parachaintypes.HeadData{Data: []byte{7, 8, 9}},
		RelayParentNumber:      0,
		RelayParentStorageRoot: getDummyHash(0),
		MaxPovSize:             1024,
	}
}

// testCandidate is a candidate of a para along with the data needed to validate it.
type testCandidate struct {
	committed      parachaintypes.CommittedCandidateReceipt
	receipt        parachaintypes.CandidateReceipt
	hash           parachaintypes.CandidateHash
	pvd            parachaintypes.PersistedValidationData
	pov            parachaintypes.PoV
	validationCode parachaintypes.ValidationCode
}

func newTestCandidate(
	t *testing.T, paraID parachaintypes.ParaID, relayParent common.Hash, headData []byte,
) testCandidate {
	t.Helper()

	pov := parachaintypes.PoV{BlockData: append([]byte{42}, headData...)}
	povHash, err := pov.Hash()
	require.NoError(t, err)

	pvd := dummyPVD()
	pvdHash, err := pvd.Hash()
	require.NoError(t, err)

	validationCode := parachaintypes.ValidationCode{1, 2, 3}
	validationCodeHash, err := validationCode.Hash()
	require.NoError(t, err)

	head := parachaintypes.HeadData{Data: headData}
	headHash, err := head.Hash()
	require.NoError(t, err)

	committed := parachaintypes.CommittedCandidateReceipt{
		Descriptor: parachaintypes.CandidateDescriptor{
			ParaID:                      paraID,
			RelayParent:                 relayParent,
			PersistedValidationDataHash: pvdHash,
			PovHash:                     povHash,
			ErasureRoot:                 getDummyHash(9),
			ParaHead:                    headHash,
			ValidationCodeHash:          validationCodeHash,
		},
		Commitments: parachaintypes.CandidateCommitments{
			UpwardMessages:     []parachaintypes.UpwardMessage{},
			HorizontalMessages: []parachaintypes.OutboundHrmpMessage{},
			HeadData:           head,
		},
	}

	receipt, err := committed.ToPlain()
	require.NoError(t, err)

	candidateHash, err := parachaintypes.GetCandidateHash(committed)
	require.NoError(t, err)

	return testCandidate{
		committed:      committed,
		receipt:        receipt,
		hash:           candidateHash,
		pvd:            pvd,
		pov:            pov,
		validationCode: validationCode,
	}
}

func (tc testCandidate) seconded(
	t *testing.T, validators testValidators, index parachaintypes.ValidatorIndex, relayParent common.Hash,
) parachaintypes.SignedFullStatementWithPVD {
	t.Helper()

	pvd := tc.pvd
	return parachaintypes.SignedFullStatementWithPVD{
		SignedFullStatement:     validators.sign(t, index, parachaintypes.NewSecondedStatement(tc.committed), relayParent),
		PersistedValidationData: &pvd,
	}
}

func (tc testCandidate) valid(
	t *testing.T, validators testValidators, index parachaintypes.ValidatorIndex, relayParent common.Hash,
) parachaintypes.SignedFullStatementWithPVD {
	t.Helper()

	return parachaintypes.SignedFullStatementWithPVD{
		SignedFullStatement: validators.sign(t, index, parachaintypes.NewValidStatement(tc.hash), relayParent),
	}
}
