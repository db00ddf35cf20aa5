// Copyright 2024 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

// Package database defines the key value store interfaces used by the parachain subsystems.
package database

import "errors"

var (
	// ErrKeyNotFound is returned when a key is not found in the database.
	ErrKeyNotFound = errors.New("key not found")
	// ErrClosed is returned when the database is used after being closed.
	ErrClosed = errors.New("database closed")
)

// Reader reads values from the database.
type Reader interface {
	Get(key []byte) (value []byte, err error)
}

// Writer writes values to the database.
type Writer interface {
	Set(key, value []byte) error
	Delete(key []byte) error
}

// Iterable visits key value pairs in ascending key order.
type Iterable interface {
	// ForEach calls handle for every key starting with the given prefix. Keys are
	// given without the table prefix, if any. Iteration stops at the first error.
	ForEach(prefix []byte, handle func(key, value []byte) error) error
}

// WriteBatch is a batch of writes applied on Flush.
type WriteBatch interface {
	Writer
	Flush() error
	Cancel()
}

// Table is a view of the database where all keys are prefixed.
type Table interface {
	Reader
	Writer
	Iterable
	NewWriteBatch() WriteBatch
}

// Database is a key value store. All methods are safe for concurrent use.
type Database interface {
	Reader
	Writer
	Iterable
	NewWriteBatch() WriteBatch
	NewTable(prefix string) Table
	Close() error
}
