// Copyright 2024 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

package scale

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"reflect"
)

// Encoder is used to encode to an io.Writer
type Encoder struct {
	writer io.Writer
}

// NewEncoder returns a new Encoder writing to writer
func NewEncoder(writer io.Writer) *Encoder {
	return &Encoder{writer: writer}
}

// Encode scale encodes value and writes it to the underlying writer
func (e *Encoder) Encode(value any) error {
	b, err := Marshal(value)
	if err != nil {
		return err
	}
	_, err = e.writer.Write(b)
	return err
}

// Marshal takes in an interface and returns its SCALE encoding.
// Pointers are encoded as options, uint and int are compact encoded.
func Marshal(v any) (b []byte, err error) {
	es := encodeState{
		fieldScaleIndicesCache: cache,
	}
	err = es.marshal(v)
	if err != nil {
		return nil, err
	}
	return es.Bytes(), nil
}

type encodeState struct {
	bytes.Buffer
	*fieldScaleIndicesCache
}

func (es *encodeState) marshal(in any) (err error) {
	if in == nil {
		return fmt.Errorf("%w: nil", ErrUnsupportedType)
	}

	v := reflect.ValueOf(in)
	if v.Kind() == reflect.Ptr {
		return es.encodeOption(v)
	}

	switch in := in.(type) {
	case Marshaler:
		var b []byte
		b, err = in.MarshalSCALE()
		if err != nil {
			return err
		}
		_, err = es.Write(b)
		return err
	case VaryingDataType:
		return es.encodeVaryingDataType(in)
	}

	switch v.Kind() {
	case reflect.Bool:
		return es.encodeBool(v.Bool())
	case reflect.Int:
		if v.Int() < 0 {
			return fmt.Errorf("%w: %d", ErrNegativeCompactInteger, v.Int())
		}
		return es.encodeUint(uint64(v.Int()))
	case reflect.Uint:
		return es.encodeUint(v.Uint())
	case reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return es.encodeFixedWidthInt(v)
	case reflect.String:
		return es.encodeBytes([]byte(v.String()))
	case reflect.Slice:
		if v.Type().Elem().Kind() == reflect.Uint8 {
			return es.encodeBytes(v.Bytes())
		}
		return es.encodeSlice(v)
	case reflect.Array:
		return es.encodeArray(v)
	case reflect.Struct:
		return es.encodeStruct(v)
	default:
		return fmt.Errorf("%w: %T", ErrUnsupportedType, in)
	}
}

// encodeOption encodes a nil pointer as None and a non nil pointer as Some(value)
func (es *encodeState) encodeOption(v reflect.Value) (err error) {
	if v.IsNil() {
		return es.WriteByte(0)
	}
	err = es.WriteByte(1)
	if err != nil {
		return err
	}
	return es.marshal(v.Elem().Interface())
}

func (es *encodeState) encodeVaryingDataType(vdt VaryingDataType) (err error) {
	index, value, err := vdt.IndexValue()
	if err != nil {
		return err
	}
	if index > 255 {
		return fmt.Errorf("%w: index %d does not fit in a byte", ErrUnsupportedVaryingDataTypeValue, index)
	}
	err = es.WriteByte(byte(index))
	if err != nil {
		return err
	}
	return es.marshal(value)
}

// encodeSlice writes the compact length of the slice followed by each element
func (es *encodeState) encodeSlice(v reflect.Value) (err error) {
	err = es.encodeLength(v.Len())
	if err != nil {
		return err
	}
	for i := 0; i < v.Len(); i++ {
		err = es.marshal(v.Index(i).Interface())
		if err != nil {
			return fmt.Errorf("encoding element %d: %w", i, err)
		}
	}
	return nil
}

// encodeArray encodes every element of a fixed size array, without a length prefix
func (es *encodeState) encodeArray(v reflect.Value) (err error) {
	if v.Type().Elem().Kind() == reflect.Uint8 {
		b := make([]byte, v.Len())
		reflect.Copy(reflect.ValueOf(b), v)
		_, err = es.Write(b)
		return err
	}

	for i := 0; i < v.Len(); i++ {
		err = es.marshal(v.Index(i).Interface())
		if err != nil {
			return fmt.Errorf("encoding element %d: %w", i, err)
		}
	}
	return nil
}

// encodeStruct writes each exported field in scale index order
func (es *encodeState) encodeStruct(v reflect.Value) (err error) {
	indices, err := es.fieldScaleIndices(v.Type())
	if err != nil {
		return err
	}
	for _, i := range indices {
		err = es.marshal(v.Field(i.fieldIndex).Interface())
		if err != nil {
			return fmt.Errorf("encoding field %s: %w", v.Type().Field(i.fieldIndex).Name, err)
		}
	}
	return nil
}

// encodeBool performs the following:
// l = true -> write [1]
// l = false -> write [0]
func (es *encodeState) encodeBool(l bool) error {
	if l {
		return es.WriteByte(1)
	}
	return es.WriteByte(0)
}

// encodeBytes performs the following:
// b -> [encodeUint(len(b)) b]
func (es *encodeState) encodeBytes(b []byte) (err error) {
	err = es.encodeLength(len(b))
	if err != nil {
		return err
	}
	_, err = es.Write(b)
	return err
}

// encodeFixedWidthInt writes the integer in little endian using its declared width
func (es *encodeState) encodeFixedWidthInt(v reflect.Value) error {
	switch v.Kind() {
	case reflect.Int8:
		return binary.Write(es, binary.LittleEndian, int8(v.Int()))
	case reflect.Int16:
		return binary.Write(es, binary.LittleEndian, int16(v.Int()))
	case reflect.Int32:
		return binary.Write(es, binary.LittleEndian, int32(v.Int()))
	case reflect.Int64:
		return binary.Write(es, binary.LittleEndian, v.Int())
	case reflect.Uint8:
		return es.WriteByte(uint8(v.Uint()))
	case reflect.Uint16:
		return binary.Write(es, binary.LittleEndian, uint16(v.Uint()))
	case reflect.Uint32:
		return binary.Write(es, binary.LittleEndian, uint32(v.Uint()))
	case reflect.Uint64:
		return binary.Write(es, binary.LittleEndian, v.Uint())
	}
	return fmt.Errorf("could not encode fixed width integer, invalid type: %s", v.Type())
}

// encodeLength is a helper function that calls encodeUint, which is the scale length encoding
func (es *encodeState) encodeLength(l int) error {
	return es.encodeUint(uint64(l))
}

// encodeUint performs the compact encoding of i:
// if i < 2^6 write [00 i^2...i^8 ] [ 8 bits = 1 byte encoded ]
// if 2^6 <= i < 2^14 write [01 i^2...i^16] [ 16 bits = 2 byte encoded ]
// if 2^14 <= i < 2^30 write [10 i^2...i^32] [ 32 bits = 4 byte encoded ]
// if i >= 2^30 write [lower 2 bits of first byte = 11] [upper 6 bits of first byte = # of bytes following less 4]
// [append i as a byte array to the first byte]
func (es *encodeState) encodeUint(i uint64) (err error) {
	switch {
	case i < 1<<6:
		return es.WriteByte(byte(i) << 2)
	case i < 1<<14:
		return binary.Write(es, binary.LittleEndian, uint16(i<<2)+1)
	case i < 1<<30:
		return binary.Write(es, binary.LittleEndian, uint32(i<<2)+2)
	}

	numBytes := 0
	for m := i; m != 0; m >>= 8 {
		numBytes++
	}

	err = es.WriteByte(byte(numBytes-4)<<2 + 3)
	if err != nil {
		return err
	}
	o := make([]byte, 8)
	binary.LittleEndian.PutUint64(o, i)
	_, err = es.Write(o[:numBytes])
	return err
}
