// Copyright 2024 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

package parachaintypes

import (
	"fmt"

	"github.com/ChainSafe/parachain-backing/pkg/scale"
)

// ValidityAttestationValues is the set of values a ValidityAttestation can hold.
type ValidityAttestationValues interface {
	Implicit | Explicit
}

// ValidityAttestation is an implicit or explicit attestation to the validity of a parachain
// candidate.
type ValidityAttestation struct {
	inner any
}

func setValidityAttestation[Value ValidityAttestationValues](mvdt *ValidityAttestation, value Value) {
	mvdt.inner = value
}

// SetValue sets the attestation to either Implicit or Explicit.
func (mvdt *ValidityAttestation) SetValue(value any) (err error) {
	switch value := value.(type) {
	case Implicit:
		setValidityAttestation(mvdt, value)
		return
	case Explicit:
		setValidityAttestation(mvdt, value)
		return
	default:
		return fmt.Errorf("%w: %T", scale.ErrUnsupportedVaryingDataTypeValue, value)
	}
}

func (mvdt ValidityAttestation) IndexValue() (index uint, value any, err error) {
	switch mvdt.inner.(type) {
	case Implicit:
		return 1, mvdt.inner, nil
	case Explicit:
		return 2, mvdt.inner, nil
	}
	return 0, nil, scale.ErrUnsupportedVaryingDataTypeValue
}

func (mvdt ValidityAttestation) Value() (value any, err error) {
	_, value, err = mvdt.IndexValue()
	return
}

func (ValidityAttestation) ValueAt(index uint) (value any, err error) {
	switch index {
	case 1:
		return Implicit{}, nil
	case 2:
		return Explicit{}, nil
	}
	return nil, scale.ErrUnknownVaryingDataTypeValue
}

// Implicit is for Implicit attestation, the validator seconded the candidate.
type Implicit ValidatorSignature //skipcq

func (i Implicit) String() string { //skipcq:SCC-U1000
	return fmt.Sprintf("implicit(%s)", ValidatorSignature(i))
}

// Explicit is for Explicit attestation, the validator issued a valid statement.
type Explicit ValidatorSignature //skipcq

func (e Explicit) String() string { //skipcq:SCC-U1000
	return fmt.Sprintf("explicit(%s)", ValidatorSignature(e))
}

// NewImplicitAttestation returns an implicit validity attestation.
func NewImplicitAttestation(signature ValidatorSignature) ValidityAttestation {
	return ValidityAttestation{inner: Implicit(signature)}
}

// NewExplicitAttestation returns an explicit validity attestation.
func NewExplicitAttestation(signature ValidatorSignature) ValidityAttestation {
	return ValidityAttestation{inner: Explicit(signature)}
}

// Signature returns the signature carried by the attestation.
func (mvdt ValidityAttestation) Signature() ValidatorSignature {
	switch v := mvdt.inner.(type) {
	case Implicit:
		return ValidatorSignature(v)
	case Explicit:
		return ValidatorSignature(v)
	}
	return ValidatorSignature{}
}
