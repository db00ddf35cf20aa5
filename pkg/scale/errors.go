// Copyright 2024 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

package scale

import "errors"

var (
	ErrUnsupportedVaryingDataTypeValue = errors.New("unsupported varying data type value")
	ErrUnknownVaryingDataTypeValue     = errors.New("unable to find VaryingDataTypeValue with index")
	ErrUnsupportedType                 = errors.New("unsupported type")
	ErrUnsupportedDestination          = errors.New("destination must be a non nil pointer")
	ErrNegativeCompactInteger          = errors.New("cannot compact encode a negative integer")
	errUnsupportedOption               = errors.New("unsupported option byte")
	errUnsupportedBool                 = errors.New("unsupported bool byte")
	errCompactOverflow                 = errors.New("compact integer overflows uint64")
)
