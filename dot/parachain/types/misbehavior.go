// Copyright 2024 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

package parachaintypes

import (
	"fmt"

	"github.com/ChainSafe/parachain-backing/pkg/scale"
)

var (
	_ Misbehaviour       = (*MultipleCandidates)(nil)
	_ Misbehaviour       = (*UnauthorizedStatement)(nil)
	_ Misbehaviour       = (*IssuedAndValidity)(nil)
	_ Misbehaviour       = (*OnSeconded)(nil)
	_ Misbehaviour       = (*OnValidity)(nil)
	_ DoubleSign         = (*OnSeconded)(nil)
	_ DoubleSign         = (*OnValidity)(nil)
	_ ValidityDoubleVote = (*IssuedAndValidity)(nil)
)

// Misbehaviour is intended to represent different kinds of misbehaviour along with supporting proofs.
type Misbehaviour interface {
	IsMisbehaviour()
}

// ValidityDoubleVote misbehaviour: voting more than one way on candidate validity.
type ValidityDoubleVote interface {
	Misbehaviour
	IsValidityDoubleVote()
}

// IssuedAndValidity represents an implicit vote by issuing and explicit voting for validity.
type IssuedAndValidity struct {
	CommittedCandidateReceiptAndSign CommittedCandidateReceiptAndSign
	CandidateHashAndSign             CandidateHashAndSign
}

func (IssuedAndValidity) IsMisbehaviour()       {}
func (IssuedAndValidity) IsValidityDoubleVote() {}

// CommittedCandidateReceiptAndSign combines a committed candidate receipt and its associated signature.
type CommittedCandidateReceiptAndSign struct {
	CommittedCandidateReceipt CommittedCandidateReceipt
	Signature                 ValidatorSignature
}

// CandidateHashAndSign combines a candidate hash and a signature over a statement about it.
type CandidateHashAndSign struct {
	CandidateHash CandidateHash
	Signature     ValidatorSignature
}

// MultipleCandidates misbehaviour: declaring multiple candidates.
type MultipleCandidates struct {
	First  CommittedCandidateReceiptAndSign
	Second CommittedCandidateReceiptAndSign
}

func (MultipleCandidates) IsMisbehaviour() {}

// SignedStatement represents signed statements about candidates.
type SignedStatement struct {
	Statement StatementVDT
	Signature ValidatorSignature
	Sender    ValidatorIndex
}

// UnauthorizedStatement misbehaviour: submitted statement for wrong group.
type UnauthorizedStatement struct {
	// A signed statement which was submitted without proper authority.
	Statement SignedStatement
}

func (UnauthorizedStatement) IsMisbehaviour() {}

// DoubleSign misbehaviour: multiple signatures on same statement.
type DoubleSign interface {
	Misbehaviour
	IsDoubleSign()
}

// OnSeconded represents a double sign on a candidate.
type OnSeconded struct {
	Candidate CommittedCandidateReceipt
	Sign1     ValidatorSignature
	Sign2     ValidatorSignature
}

func (OnSeconded) IsMisbehaviour() {}
func (OnSeconded) IsDoubleSign()   {}

// OnValidity represents a double sign on validity.
type OnValidity struct {
	CandidateHash CandidateHash
	Sign1         ValidatorSignature
	Sign2         ValidatorSignature
}

func (OnValidity) IsMisbehaviour() {}
func (OnValidity) IsDoubleSign()   {}

// ValidityDoubleVoteVDT holds the ways a validator can vote twice on the validity of a candidate.
type ValidityDoubleVoteVDT struct {
	inner any
}

func (mvdt *ValidityDoubleVoteVDT) SetValue(value any) (err error) {
	switch value := value.(type) {
	case IssuedAndValidity:
		mvdt.inner = value
		return
	default:
		return fmt.Errorf("%w: %T", scale.ErrUnsupportedVaryingDataTypeValue, value)
	}
}

func (mvdt ValidityDoubleVoteVDT) IndexValue() (index uint, value any, err error) {
	switch mvdt.inner.(type) {
	case IssuedAndValidity:
		return 0, mvdt.inner, nil
	}
	return 0, nil, scale.ErrUnsupportedVaryingDataTypeValue
}

func (mvdt ValidityDoubleVoteVDT) Value() (value any, err error) {
	_, value, err = mvdt.IndexValue()
	return
}

func (ValidityDoubleVoteVDT) ValueAt(index uint) (value any, err error) {
	switch index {
	case 0:
		return IssuedAndValidity{}, nil
	}
	return nil, scale.ErrUnknownVaryingDataTypeValue
}

// DoubleSignVDT holds the statements a validator signed twice.
type DoubleSignVDT struct {
	inner any
}

func (mvdt *DoubleSignVDT) SetValue(value any) (err error) {
	switch value := value.(type) {
	case OnSeconded:
		mvdt.inner = value
		return
	case OnValidity:
		mvdt.inner = value
		return
	default:
		return fmt.Errorf("%w: %T", scale.ErrUnsupportedVaryingDataTypeValue, value)
	}
}

func (mvdt DoubleSignVDT) IndexValue() (index uint, value any, err error) {
	switch mvdt.inner.(type) {
	case OnSeconded:
		return 0, mvdt.inner, nil
	case OnValidity:
		return 1, mvdt.inner, nil
	}
	return 0, nil, scale.ErrUnsupportedVaryingDataTypeValue
}

func (mvdt DoubleSignVDT) Value() (value any, err error) {
	_, value, err = mvdt.IndexValue()
	return
}

func (DoubleSignVDT) ValueAt(index uint) (value any, err error) {
	switch index {
	case 0:
		return OnSeconded{}, nil
	case 1:
		return OnValidity{}, nil
	}
	return nil, scale.ErrUnknownVaryingDataTypeValue
}

// MisbehaviourVDT is the encodable form of a Misbehaviour. Validity double votes and double
// signs are nested varying data types.
type MisbehaviourVDT struct {
	inner any
}

// NewMisbehaviourVDT wraps the given misbehaviour.
func NewMisbehaviourVDT(misbehaviour Misbehaviour) (MisbehaviourVDT, error) {
	var mvdt MisbehaviourVDT
	err := mvdt.SetValue(misbehaviour)
	return mvdt, err
}

// SetValue accepts either a concrete misbehaviour or one of the nested varying data types.
func (mvdt *MisbehaviourVDT) SetValue(value any) (err error) {
	switch value := value.(type) {
	case IssuedAndValidity:
		mvdt.inner = ValidityDoubleVoteVDT{inner: value}
	case ValidityDoubleVoteVDT:
		mvdt.inner = value
	case MultipleCandidates:
		mvdt.inner = value
	case UnauthorizedStatement:
		mvdt.inner = value
	case OnSeconded:
		mvdt.inner = DoubleSignVDT{inner: value}
	case OnValidity:
		mvdt.inner = DoubleSignVDT{inner: value}
	case DoubleSignVDT:
		mvdt.inner = value
	default:
		return fmt.Errorf("%w: %T", scale.ErrUnsupportedVaryingDataTypeValue, value)
	}
	return nil
}

func (mvdt MisbehaviourVDT) IndexValue() (index uint, value any, err error) {
	switch mvdt.inner.(type) {
	case ValidityDoubleVoteVDT:
		return 0, mvdt.inner, nil
	case MultipleCandidates:
		return 1, mvdt.inner, nil
	case UnauthorizedStatement:
		return 2, mvdt.inner, nil
	case DoubleSignVDT:
		return 3, mvdt.inner, nil
	}
	return 0, nil, scale.ErrUnsupportedVaryingDataTypeValue
}

func (mvdt MisbehaviourVDT) Value() (value any, err error) {
	_, value, err = mvdt.IndexValue()
	return
}

func (MisbehaviourVDT) ValueAt(index uint) (value any, err error) {
	switch index {
	case 0:
		return ValidityDoubleVoteVDT{}, nil
	case 1:
		return MultipleCandidates{}, nil
	case 2:
		return UnauthorizedStatement{}, nil
	case 3:
		return DoubleSignVDT{}, nil
	}
	return nil, scale.ErrUnknownVaryingDataTypeValue
}

// Misbehaviour returns the concrete misbehaviour held, unwrapping nested varying data types.
func (mvdt MisbehaviourVDT) Misbehaviour() (Misbehaviour, error) {
	value, err := mvdt.Value()
	if err != nil {
		return nil, err
	}

	switch value := value.(type) {
	case ValidityDoubleVoteVDT:
		value2, err := value.Value()
		if err != nil {
			return nil, err
		}
		return value2.(Misbehaviour), nil
	case DoubleSignVDT:
		value2, err := value.Value()
		if err != nil {
			return nil, err
		}
		return value2.(Misbehaviour), nil
	}
	return value.(Misbehaviour), nil
}
