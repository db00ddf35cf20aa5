// Copyright 2024 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

package keystore

import (
	"errors"
	"sync"

	"github.com/ChainSafe/parachain-backing/lib/crypto/sr25519"
)

var errNilKeypair = errors.New("cannot insert nil keypair")

// Name represents a defined keystore name
type Name string

var (
	ParaName Name = "para"
	AsgnName Name = "asgn"
)

// Keystore provides key management functionality
type Keystore interface {
	Name() Name
	Insert(kp *sr25519.Keypair) error
	GetKeypair(pub *sr25519.PublicKey) *sr25519.Keypair
	GetKeypairFromBytes(pub [sr25519.PublicKeyLength]byte) *sr25519.Keypair
	PublicKeys() []*sr25519.PublicKey
	Size() int
}

var _ Keystore = (*BasicKeystore)(nil)

// BasicKeystore holds sr25519 keypairs in memory, indexed by public key.
type BasicKeystore struct {
	name Name
	keys map[[sr25519.PublicKeyLength]byte]*sr25519.Keypair
	lock sync.RWMutex
}

// NewBasicKeystore creates a new BasicKeystore with the given name
func NewBasicKeystore(name Name) *BasicKeystore {
	return &BasicKeystore{
		name: name,
		keys: make(map[[sr25519.PublicKeyLength]byte]*sr25519.Keypair),
	}
}

// Name returns the keystore's name
func (ks *BasicKeystore) Name() Name {
	return ks.name
}

// Size returns the number of keys in the keystore
func (ks *BasicKeystore) Size() int {
	ks.lock.RLock()
	defer ks.lock.RUnlock()
	return len(ks.keys)
}

// Insert adds a keypair to the keystore
func (ks *BasicKeystore) Insert(kp *sr25519.Keypair) error {
	if kp == nil {
		return errNilKeypair
	}

	ks.lock.Lock()
	defer ks.lock.Unlock()
	ks.keys[kp.Public().AsBytes()] = kp
	return nil
}

// GetKeypair returns a keypair corresponding to the given public key, or nil if it doesn't exist
func (ks *BasicKeystore) GetKeypair(pub *sr25519.PublicKey) *sr25519.Keypair {
	if pub == nil {
		return nil
	}
	return ks.GetKeypairFromBytes(pub.AsBytes())
}

// GetKeypairFromBytes returns the keypair whose public key encodes to the given bytes
func (ks *BasicKeystore) GetKeypairFromBytes(pub [sr25519.PublicKeyLength]byte) *sr25519.Keypair {
	ks.lock.RLock()
	defer ks.lock.RUnlock()
	return ks.keys[pub]
}

// PublicKeys returns all public keys in the keystore
func (ks *BasicKeystore) PublicKeys() []*sr25519.PublicKey {
	ks.lock.RLock()
	defer ks.lock.RUnlock()

	srkeys := make([]*sr25519.PublicKey, 0, len(ks.keys))
	for _, kp := range ks.keys {
		srkeys = append(srkeys, kp.Public())
	}
	return srkeys
}
