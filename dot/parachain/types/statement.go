// Copyright 2024 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

package parachaintypes

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/ChainSafe/parachain-backing/lib/common"
	"github.com/ChainSafe/parachain-backing/lib/crypto/sr25519"
	"github.com/ChainSafe/parachain-backing/lib/keystore"
	"github.com/ChainSafe/parachain-backing/pkg/scale"
)

var backingStatementMagic = [4]byte{'B', 'K', 'N', 'G'}

var (
	ErrUnsupportedStatement = errors.New("unsupported statement type")
	ErrStatementNotSet      = errors.New("statement value not set")
	errKeypairNotFound      = errors.New("keypair not found in keystore")
	errInvalidMagic         = errors.New("invalid compact statement magic")
)

// StatementVDTValues is the set of values a StatementVDT can hold.
type StatementVDTValues interface {
	Valid | Seconded
}

// StatementVDT is a result of candidate validation. It could be either `Valid` or `Seconded`.
type StatementVDT struct {
	inner any
}

func setStatement[Value StatementVDTValues](mvdt *StatementVDT, value Value) {
	mvdt.inner = value
}

// SetValue sets the statement value, either Seconded or Valid.
func (mvdt *StatementVDT) SetValue(value any) (err error) {
	switch value := value.(type) {
	case Valid:
		setStatement(mvdt, value)
		return
	case Seconded:
		setStatement(mvdt, value)
		return
	default:
		return fmt.Errorf("%w: %w: %T", ErrUnsupportedStatement, scale.ErrUnsupportedVaryingDataTypeValue, value)
	}
}

// IndexValue returns the variant index and the value of the statement.
func (mvdt StatementVDT) IndexValue() (index uint, value any, err error) {
	switch mvdt.inner.(type) {
	case Seconded:
		return 1, mvdt.inner, nil
	case Valid:
		return 2, mvdt.inner, nil
	}
	return 0, nil, ErrStatementNotSet
}

// Value returns the value of the statement.
func (mvdt StatementVDT) Value() (value any, err error) {
	_, value, err = mvdt.IndexValue()
	return
}

// ValueAt returns a zero value of the variant at the given index.
func (StatementVDT) ValueAt(index uint) (value any, err error) {
	switch index {
	case 1:
		return Seconded{}, nil
	case 2:
		return Valid{}, nil
	}
	return nil, scale.ErrUnknownVaryingDataTypeValue
}

// NewStatementVDT returns a new statement varying data type
func NewStatementVDT() StatementVDT {
	return StatementVDT{}
}

// NewSecondedStatement returns a statement seconding the given candidate.
func NewSecondedStatement(candidate CommittedCandidateReceipt) StatementVDT {
	return StatementVDT{inner: Seconded(candidate)}
}

// NewValidStatement returns a statement declaring the given candidate valid.
func NewValidStatement(candidateHash CandidateHash) StatementVDT {
	return StatementVDT{inner: Valid(candidateHash)}
}

// CandidateHash returns the hash of the candidate the statement refers to.
func (mvdt StatementVDT) CandidateHash() (CandidateHash, error) {
	switch s := mvdt.inner.(type) {
	case Seconded:
		return GetCandidateHash(CommittedCandidateReceipt(s))
	case Valid:
		return CandidateHash(s), nil
	}
	return CandidateHash{}, ErrStatementNotSet
}

// Seconded represents a statement that a validator seconds a candidate.
type Seconded CommittedCandidateReceipt

// Valid represents a statement that a validator has deemed a candidate valid.
type Valid CandidateHash

// SecondedCandidateHash is the compact form of a Seconded statement.
type SecondedCandidateHash CandidateHash

type compactStatementInner struct {
	inner any
}

func (csi *compactStatementInner) SetValue(value any) (err error) {
	switch value := value.(type) {
	case SecondedCandidateHash:
		csi.inner = value
	case Valid:
		csi.inner = value
	default:
		return fmt.Errorf("%w: %T", scale.ErrUnsupportedVaryingDataTypeValue, value)
	}
	return nil
}

func (csi compactStatementInner) IndexValue() (index uint, value any, err error) {
	switch csi.inner.(type) {
	case SecondedCandidateHash:
		return 1, csi.inner, nil
	case Valid:
		return 2, csi.inner, nil
	}
	return 0, nil, ErrStatementNotSet
}

func (csi compactStatementInner) Value() (value any, err error) {
	_, value, err = csi.IndexValue()
	return
}

func (compactStatementInner) ValueAt(index uint) (value any, err error) {
	switch index {
	case 1:
		return SecondedCandidateHash{}, nil
	case 2:
		return Valid{}, nil
	}
	return nil, scale.ErrUnknownVaryingDataTypeValue
}

// CompactStatement is the compact form of a statement, the payload that validators sign.
// It is encoded behind a magic prefix so backing signatures cannot be replayed as other
// signed payloads.
type CompactStatement struct {
	inner compactStatementInner
}

// CandidateHash returns the hash of the candidate the compact statement refers to.
func (cs CompactStatement) CandidateHash() CandidateHash {
	switch value := cs.inner.inner.(type) {
	case SecondedCandidateHash:
		return CandidateHash(value)
	case Valid:
		return CandidateHash(value)
	}
	return CandidateHash{}
}

// MarshalSCALE implements scale.Marshaler
func (cs CompactStatement) MarshalSCALE() ([]byte, error) {
	buffer := bytes.NewBuffer(nil)
	buffer.Write(backingStatementMagic[:])

	err := scale.NewEncoder(buffer).Encode(cs.inner)
	if err != nil {
		return nil, fmt.Errorf("encoding compact statement: %w", err)
	}
	return buffer.Bytes(), nil
}

// UnmarshalSCALE implements scale.Unmarshaler
func (cs *CompactStatement) UnmarshalSCALE(reader io.Reader) error {
	decoder := scale.NewDecoder(reader)

	var magic [4]byte
	err := decoder.Decode(&magic)
	if err != nil {
		return fmt.Errorf("decoding magic: %w", err)
	}
	if magic != backingStatementMagic {
		return fmt.Errorf("%w: 0x%x", errInvalidMagic, magic[:])
	}

	return decoder.Decode(&cs.inner)
}

// CompactStatement returns a compact representation of the statement.
func (mvdt StatementVDT) CompactStatement() (CompactStatement, error) {
	var compact CompactStatement
	switch s := mvdt.inner.(type) {
	case Seconded:
		hash, err := GetCandidateHash(CommittedCandidateReceipt(s))
		if err != nil {
			return CompactStatement{}, fmt.Errorf("getting candidate hash: %w", err)
		}
		compact.inner.inner = SecondedCandidateHash(hash)
	case Valid:
		compact.inner.inner = s
	default:
		return CompactStatement{}, ErrStatementNotSet
	}
	return compact, nil
}

// SigningContext is a type returned by runtime with current session index and a parent hash.
type SigningContext struct {
	// current session index.
	SessionIndex SessionIndex
	// hash of the parent.
	ParentHash common.Hash
}

// encodeSignData encodes the statement and signing context into a byte slice.
func encodeSignData(statement StatementVDT, signingContext SigningContext) ([]byte, error) {
	buffer := bytes.NewBuffer(nil)
	encoder := scale.NewEncoder(buffer)

	compact, err := statement.CompactStatement()
	if err != nil {
		return nil, fmt.Errorf("getting compact statement: %w", err)
	}

	err = encoder.Encode(compact)
	if err != nil {
		return nil, fmt.Errorf("encoding compact statement: %w", err)
	}

	err = encoder.Encode(signingContext)
	if err != nil {
		return nil, fmt.Errorf("encoding signing context: %w", err)
	}

	return buffer.Bytes(), nil
}

// Sign signs the statement in the given signing context with the keypair of the given validator.
func (mvdt StatementVDT) Sign(
	ks keystore.Keystore,
	signingContext SigningContext,
	key ValidatorID,
) (*ValidatorSignature, error) {
	data, err := encodeSignData(mvdt, signingContext)
	if err != nil {
		return nil, fmt.Errorf("encoding data to sign: %w", err)
	}

	keypair := ks.GetKeypairFromBytes(key)
	if keypair == nil {
		return nil, fmt.Errorf("%w: 0x%x", errKeypairNotFound, key[:])
	}

	signatureBytes, err := keypair.Sign(data)
	if err != nil {
		return nil, fmt.Errorf("signing data: %w", err)
	}

	var signature ValidatorSignature
	copy(signature[:], signatureBytes)
	return &signature, nil
}

// VerifySignature verifies the validator signature for the statement.
func (mvdt StatementVDT) VerifySignature(
	validator ValidatorID,
	signingContext SigningContext,
	validatorSignature ValidatorSignature,
) (bool, error) {
	data, err := encodeSignData(mvdt, signingContext)
	if err != nil {
		return false, fmt.Errorf("encoding signed data: %w", err)
	}

	publicKey, err := sr25519.NewPublicKey(validator[:])
	if err != nil {
		return false, fmt.Errorf("getting public key: %w", err)
	}

	return publicKey.Verify(data, validatorSignature[:])
}

// SignedFullStatement represents a statement along with its corresponding signature
// and the index of the sender. The signing context and validator set should be
// apparent from context. This statement is "full" as the `Seconded` variant includes
// the candidate receipt.
type SignedFullStatement struct {
	// The payload is part of the signed data. The rest is the signing context,
	// which is known both at signing and at validation.
	Payload StatementVDT
	// The index of the validator signing this statement.
	ValidatorIndex ValidatorIndex
	// The signature by the validator of the signed payload.
	Signature ValidatorSignature
}

// SignedFullStatementWithPVD represents a signed full statement along with associated Persisted Validation Data (PVD).
type SignedFullStatementWithPVD struct {
	SignedFullStatement SignedFullStatement

	// PersistedValidationData must be set only for `Seconded` statement.
	// otherwise, it should be nil.
	PersistedValidationData *PersistedValidationData
}
