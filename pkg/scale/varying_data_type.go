// Copyright 2024 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

package scale

import "io"

// VaryingDataType is analogous to a rust enum. Name is taken from polkadot spec.
// It is encoded as a single index byte followed by the encoding of the held value.
type VaryingDataType interface {
	IndexValue() (index uint, value any, err error)
	Value() (value any, err error)
	ValueAt(index uint) (value any, err error)
}

// VaryingDataTypeSetter is implemented by pointers to varying data types so they can be decoded.
type VaryingDataTypeSetter interface {
	VaryingDataType
	SetValue(value any) (err error)
}

// Marshaler is implemented by types providing their own SCALE encoding.
type Marshaler interface {
	MarshalSCALE() ([]byte, error)
}

// Unmarshaler is implemented by types providing their own SCALE decoding.
type Unmarshaler interface {
	UnmarshalSCALE(reader io.Reader) error
}
