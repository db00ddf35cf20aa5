// Copyright 2024 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

package scale

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"reflect"
)

// Decoder is used to decode from an io.Reader
type Decoder struct {
	decodeState
}

// NewDecoder returns a new Decoder reading from reader
func NewDecoder(reader io.Reader) *Decoder {
	return &Decoder{
		decodeState: decodeState{
			reader:                 reader,
			fieldScaleIndicesCache: cache,
		},
	}
}

// Decode decodes the next value from the reader into dst, which must be a non nil pointer
func (d *Decoder) Decode(dst any) error {
	return d.unmarshalInto(dst)
}

// Unmarshal takes data and a destination pointer to unmarshal the data to.
func Unmarshal(data []byte, dst any) error {
	ds := decodeState{
		reader:                 bytes.NewReader(data),
		fieldScaleIndicesCache: cache,
	}
	return ds.unmarshalInto(dst)
}

type decodeState struct {
	reader io.Reader
	*fieldScaleIndicesCache
}

func (ds *decodeState) unmarshalInto(dst any) error {
	rv := reflect.ValueOf(dst)
	if rv.Kind() != reflect.Ptr || rv.IsNil() {
		return fmt.Errorf("%w: %T", ErrUnsupportedDestination, dst)
	}
	return ds.unmarshal(rv.Elem())
}

func (ds *decodeState) unmarshal(dstv reflect.Value) (err error) {
	if dstv.Kind() == reflect.Ptr {
		return ds.decodeOption(dstv)
	}

	if dstv.CanAddr() {
		switch dst := dstv.Addr().Interface().(type) {
		case Unmarshaler:
			return dst.UnmarshalSCALE(ds.reader)
		case VaryingDataTypeSetter:
			return ds.decodeVaryingDataType(dst)
		}
	}

	switch dstv.Kind() {
	case reflect.Bool:
		return ds.decodeBool(dstv)
	case reflect.Int:
		var value uint64
		value, err = ds.decodeUint()
		if err != nil {
			return err
		}
		if value > math.MaxInt64 {
			return fmt.Errorf("%w: %d into %s", errCompactOverflow, value, dstv.Type())
		}
		dstv.SetInt(int64(value))
		return nil
	case reflect.Uint:
		var value uint64
		value, err = ds.decodeUint()
		if err != nil {
			return err
		}
		dstv.SetUint(value)
		return nil
	case reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return ds.decodeFixedWidthInt(dstv)
	case reflect.String:
		var b []byte
		b, err = ds.decodeBytes()
		if err != nil {
			return err
		}
		dstv.SetString(string(b))
		return nil
	case reflect.Slice:
		return ds.decodeSlice(dstv)
	case reflect.Array:
		return ds.decodeArray(dstv)
	case reflect.Struct:
		return ds.decodeStruct(dstv)
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedType, dstv.Type())
	}
}

func (ds *decodeState) readByte() (byte, error) {
	b := make([]byte, 1)
	_, err := io.ReadFull(ds.reader, b)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (ds *decodeState) decodeOption(dstv reflect.Value) (err error) {
	b, err := ds.readByte()
	if err != nil {
		return err
	}

	switch b {
	case 0:
		dstv.Set(reflect.Zero(dstv.Type()))
		return nil
	case 1:
		elem := reflect.New(dstv.Type().Elem())
		err = ds.unmarshal(elem.Elem())
		if err != nil {
			return err
		}
		dstv.Set(elem)
		return nil
	default:
		return fmt.Errorf("%w: %d", errUnsupportedOption, b)
	}
}

func (ds *decodeState) decodeVaryingDataType(dst VaryingDataTypeSetter) (err error) {
	index, err := ds.readByte()
	if err != nil {
		return err
	}

	value, err := dst.ValueAt(uint(index))
	if err != nil {
		return fmt.Errorf("%w: %d", err, index)
	}
	if value == nil {
		return fmt.Errorf("%w: %d", ErrUnknownVaryingDataTypeValue, index)
	}

	elem := reflect.New(reflect.TypeOf(value)).Elem()
	elem.Set(reflect.ValueOf(value))
	err = ds.unmarshal(elem)
	if err != nil {
		return err
	}
	return dst.SetValue(elem.Interface())
}

func (ds *decodeState) decodeBool(dstv reflect.Value) error {
	b, err := ds.readByte()
	if err != nil {
		return err
	}
	switch b {
	case 0:
		dstv.SetBool(false)
	case 1:
		dstv.SetBool(true)
	default:
		return fmt.Errorf("%w: %d", errUnsupportedBool, b)
	}
	return nil
}

// decodeBytes reads a compact length prefixed byte string. The buffer grows with the data
// actually read so a corrupted length cannot force a large allocation.
func (ds *decodeState) decodeBytes() ([]byte, error) {
	length, err := ds.decodeUint()
	if err != nil {
		return nil, err
	}
	if length > math.MaxInt64 {
		return nil, fmt.Errorf("%w: byte length %d", errCompactOverflow, length)
	}

	buffer := bytes.NewBuffer(nil)
	_, err = io.CopyN(buffer, ds.reader, int64(length))
	if err != nil {
		return nil, fmt.Errorf("reading %d bytes: %w", length, err)
	}
	return buffer.Bytes(), nil
}

// decodeSlice decodes a compact length prefixed sequence. An empty sequence decodes to a nil slice.
func (ds *decodeState) decodeSlice(dstv reflect.Value) (err error) {
	if dstv.Type().Elem().Kind() == reflect.Uint8 {
		var b []byte
		b, err = ds.decodeBytes()
		if err != nil {
			return err
		}
		if len(b) == 0 {
			dstv.Set(reflect.Zero(dstv.Type()))
			return nil
		}
		slice := reflect.MakeSlice(dstv.Type(), len(b), len(b))
		for i, value := range b {
			slice.Index(i).SetUint(uint64(value))
		}
		dstv.Set(slice)
		return nil
	}

	length, err := ds.decodeUint()
	if err != nil {
		return err
	}

	if length == 0 {
		dstv.Set(reflect.Zero(dstv.Type()))
		return nil
	}

	slice := reflect.MakeSlice(dstv.Type(), 0, 0)
	for i := uint64(0); i < length; i++ {
		elem := reflect.New(dstv.Type().Elem()).Elem()
		err = ds.unmarshal(elem)
		if err != nil {
			return fmt.Errorf("decoding element %d: %w", i, err)
		}
		slice = reflect.Append(slice, elem)
	}
	dstv.Set(slice)
	return nil
}

func (ds *decodeState) decodeArray(dstv reflect.Value) (err error) {
	if dstv.Type().Elem().Kind() == reflect.Uint8 {
		b := make([]byte, dstv.Len())
		_, err = io.ReadFull(ds.reader, b)
		if err != nil {
			return err
		}
		for i, value := range b {
			dstv.Index(i).SetUint(uint64(value))
		}
		return nil
	}

	for i := 0; i < dstv.Len(); i++ {
		err = ds.unmarshal(dstv.Index(i))
		if err != nil {
			return fmt.Errorf("decoding element %d: %w", i, err)
		}
	}
	return nil
}

func (ds *decodeState) decodeStruct(dstv reflect.Value) (err error) {
	indices, err := ds.fieldScaleIndices(dstv.Type())
	if err != nil {
		return err
	}
	for _, i := range indices {
		err = ds.unmarshal(dstv.Field(i.fieldIndex))
		if err != nil {
			return fmt.Errorf("decoding field %s: %w", dstv.Type().Field(i.fieldIndex).Name, err)
		}
	}
	return nil
}

// decodeFixedWidthInt reads the integer in little endian using the declared width of dstv
func (ds *decodeState) decodeFixedWidthInt(dstv reflect.Value) error {
	buf := make([]byte, dstv.Type().Size())
	_, err := io.ReadFull(ds.reader, buf)
	if err != nil {
		return err
	}

	switch dstv.Kind() {
	case reflect.Int8:
		dstv.SetInt(int64(int8(buf[0])))
	case reflect.Int16:
		dstv.SetInt(int64(int16(binary.LittleEndian.Uint16(buf))))
	case reflect.Int32:
		dstv.SetInt(int64(int32(binary.LittleEndian.Uint32(buf))))
	case reflect.Int64:
		dstv.SetInt(int64(binary.LittleEndian.Uint64(buf)))
	case reflect.Uint8:
		dstv.SetUint(uint64(buf[0]))
	case reflect.Uint16:
		dstv.SetUint(uint64(binary.LittleEndian.Uint16(buf)))
	case reflect.Uint32:
		dstv.SetUint(uint64(binary.LittleEndian.Uint32(buf)))
	case reflect.Uint64:
		dstv.SetUint(binary.LittleEndian.Uint64(buf))
	default:
		return fmt.Errorf("could not decode fixed width integer, invalid type: %s", dstv.Type())
	}
	return nil
}

// decodeUint reads a compact encoded integer, the inverse of encodeUint
func (ds *decodeState) decodeUint() (uint64, error) {
	prefix, err := ds.readByte()
	if err != nil {
		return 0, err
	}

	switch prefix & 0b11 {
	case 0:
		return uint64(prefix >> 2), nil
	case 1:
		next, err := ds.readByte()
		if err != nil {
			return 0, err
		}
		return uint64(binary.LittleEndian.Uint16([]byte{prefix, next}) >> 2), nil
	case 2:
		buf := make([]byte, 4)
		buf[0] = prefix
		_, err = io.ReadFull(ds.reader, buf[1:])
		if err != nil {
			return 0, err
		}
		return uint64(binary.LittleEndian.Uint32(buf) >> 2), nil
	}

	numBytes := int(prefix>>2) + 4
	if numBytes > 8 {
		return 0, fmt.Errorf("%w: %d bytes", errCompactOverflow, numBytes)
	}
	buf := make([]byte, 8)
	_, err = io.ReadFull(ds.reader, buf[:numBytes])
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(buf), nil
}
