// Copyright 2024 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

package parachaintypes

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/ChainSafe/parachain-backing/lib/common"
	"github.com/ChainSafe/parachain-backing/lib/crypto/sr25519"
	"github.com/ChainSafe/parachain-backing/pkg/scale"
)

// ParaID is the unique identifier of a parachain.
type ParaID uint32

// BlockNumber is a relay chain block number.
type BlockNumber uint32

// SessionIndex is the index of a session.
type SessionIndex uint32

// ValidatorIndex is the index of a validator in the validator set of a session.
type ValidatorIndex uint32

// CoreIndex is the index of an availability core.
type CoreIndex uint32

// GroupIndex is the index of a validator group.
type GroupIndex uint32

// ValidatorID is the sr25519 public key of a parachain validator.
type ValidatorID [32]byte

// ValidatorSignature is an sr25519 signature issued by a parachain validator.
type ValidatorSignature [64]byte

// String returns the hex representation of the signature
func (s ValidatorSignature) String() string {
	return fmt.Sprintf("0x%x", s[:])
}

// CollatorID is the sr25519 public key of a collator.
type CollatorID [32]byte

// CollatorSignature is the signature of a collator on a candidate descriptor.
type CollatorSignature [64]byte

// HeadData is parachain head data included in the relay chain.
type HeadData struct {
	Data []byte
}

// Hash returns the blake2b hash of the head data bytes.
func (hd HeadData) Hash() (common.Hash, error) {
	return common.Blake2bHash(hd.Data)
}

// ValidationCodeHash is the blake2b hash of parachain validation code.
type ValidationCodeHash common.Hash

// String returns the hex representation of the validation code hash
func (v ValidationCodeHash) String() string {
	return common.Hash(v).String()
}

// ValidationCode is parachain validation code.
type ValidationCode []byte

// Hash returns the blake2b hash of the validation code.
func (vc ValidationCode) Hash() (ValidationCodeHash, error) {
	hash, err := common.Blake2bHash(vc)
	if err != nil {
		return ValidationCodeHash{}, err
	}
	return ValidationCodeHash(hash), nil
}

// PoV represents a Proof-of-Validity block, the data needed to validate a candidate.
type PoV struct {
	BlockData []byte
}

// Hash returns the hash of the SCALE encoded PoV.
func (pov PoV) Hash() (common.Hash, error) {
	return hashSCALE(pov)
}

// PersistedValidationData is the validation data that is persisted for a candidate and
// is needed to reproduce its validation.
type PersistedValidationData struct {
	ParentHead             HeadData
	RelayParentNumber      uint32
	RelayParentStorageRoot common.Hash
	MaxPovSize             uint32
}

// Hash returns the hash of the SCALE encoded persisted validation data.
func (pvd PersistedValidationData) Hash() (common.Hash, error) {
	return hashSCALE(pvd)
}

// UpwardMessage is a message sent from a parachain to the relay chain.
type UpwardMessage []byte

// OutboundHrmpMessage is an HRMP message sent from a parachain to another parachain.
type OutboundHrmpMessage struct {
	Recipient uint32
	Data      []byte
}

// CandidateDescriptor is the unique descriptor of a candidate receipt.
type CandidateDescriptor struct {
	// The ID of the para this is a candidate for.
	ParaID ParaID
	// The hash of the relay-chain block this is executed in the context of.
	RelayParent common.Hash
	// The collator's sr25519 public key.
	Collator CollatorID
	// The blake2-256 hash of the persisted validation data. This is extra data derived from
	// relay-chain state which may vary based on bitfields included before the candidate.
	// Thus it cannot be derived entirely from the relay-parent.
	PersistedValidationDataHash common.Hash
	// The blake2-256 hash of the PoV.
	PovHash common.Hash
	// The root of a block's erasure encoding Merkle tree.
	ErasureRoot common.Hash
	// Signature on blake2-256 of components of this receipt.
	Signature CollatorSignature
	// Hash of the para header that is being generated by this candidate.
	ParaHead common.Hash
	// The blake2-256 hash of the validation code bytes.
	ValidationCodeHash ValidationCodeHash
}

var errInvalidCollatorSignature = errors.New("invalid collator signature")

// CreateSignaturePayload returns the payload the collator signs for the descriptor.
func (cd CandidateDescriptor) CreateSignaturePayload() ([]byte, error) {
	buffer := bytes.NewBuffer(nil)
	encoder := scale.NewEncoder(buffer)
	for _, value := range []any{
		cd.RelayParent,
		cd.ParaID,
		cd.PersistedValidationDataHash,
		cd.PovHash,
		common.Hash(cd.ValidationCodeHash),
	} {
		if err := encoder.Encode(value); err != nil {
			return nil, fmt.Errorf("encoding %T: %w", value, err)
		}
	}
	return buffer.Bytes(), nil
}

// CheckCollatorSignature checks the collator signature over the descriptor's signature payload.
func (cd CandidateDescriptor) CheckCollatorSignature() error {
	publicKey, err := sr25519.NewPublicKey(cd.Collator[:])
	if err != nil {
		return fmt.Errorf("getting collator public key: %w", err)
	}

	payload, err := cd.CreateSignaturePayload()
	if err != nil {
		return fmt.Errorf("creating signature payload: %w", err)
	}

	ok, err := publicKey.Verify(payload, cd.Signature[:])
	if err != nil {
		return fmt.Errorf("verifying collator signature: %w", err)
	}
	if !ok {
		return errInvalidCollatorSignature
	}
	return nil
}

// CandidateCommitments are the commitments made by a parachain candidate.
type CandidateCommitments struct {
	// Messages destined to be interpreted by the Relay chain itself.
	UpwardMessages []UpwardMessage
	// Horizontal messages sent by the parachain.
	HorizontalMessages []OutboundHrmpMessage
	// New validation code, encoded as an option.
	NewValidationCode *ValidationCode
	// The head-data produced as a result of execution.
	HeadData HeadData
	// The number of messages processed from the DMQ.
	ProcessedDownwardMessages uint32
	// The mark which specifies the block number up to which all inbound HRMP messages are processed.
	HrmpWatermark uint32
}

// Hash returns the hash of the SCALE encoded commitments.
func (cc CandidateCommitments) Hash() (common.Hash, error) {
	return hashSCALE(cc)
}

// CandidateReceipt is a receipt containing the candidate descriptor and a hash of the commitments.
type CandidateReceipt struct {
	Descriptor      CandidateDescriptor
	CommitmentsHash common.Hash
}

// Hash returns the hash of the candidate receipt, which identifies the candidate.
func (cr CandidateReceipt) Hash() (common.Hash, error) {
	return hashSCALE(cr)
}

// CommittedCandidateReceipt is a candidate receipt with the full commitments.
type CommittedCandidateReceipt struct {
	Descriptor  CandidateDescriptor
	Commitments CandidateCommitments
}

// ToPlain converts the committed candidate receipt to a plain candidate receipt.
func (ccr CommittedCandidateReceipt) ToPlain() (CandidateReceipt, error) {
	commitmentsHash, err := ccr.Commitments.Hash()
	if err != nil {
		return CandidateReceipt{}, fmt.Errorf("hashing commitments: %w", err)
	}

	return CandidateReceipt{
		Descriptor:      ccr.Descriptor,
		CommitmentsHash: commitmentsHash,
	}, nil
}

// Hash returns the hash of the plain candidate receipt, so a committed receipt and its plain
// counterpart share the same candidate hash.
func (ccr CommittedCandidateReceipt) Hash() (common.Hash, error) {
	plain, err := ccr.ToPlain()
	if err != nil {
		return common.Hash{}, err
	}
	return plain.Hash()
}

// CandidateHash makes it easy to enforce that a hash is a candidate hash on the type level.
type CandidateHash struct {
	Value common.Hash
}

// String returns the hex representation of the candidate hash
func (ch CandidateHash) String() string {
	return ch.Value.String()
}

// GetCandidateHash returns the candidate hash of the given receipt, which can either be a
// plain or a committed candidate receipt.
func GetCandidateHash[T CandidateReceipt | CommittedCandidateReceipt](receipt T) (CandidateHash, error) {
	var (
		hash common.Hash
		err  error
	)

	switch receipt := any(receipt).(type) {
	case CandidateReceipt:
		hash, err = receipt.Hash()
	case CommittedCandidateReceipt:
		hash, err = receipt.Hash()
	}
	if err != nil {
		return CandidateHash{}, fmt.Errorf("hashing candidate receipt: %w", err)
	}
	return CandidateHash{Value: hash}, nil
}

// CandidateHashAndRelayParent is a pair of a candidate hash and its relay parent.
type CandidateHashAndRelayParent struct {
	CandidateHash        CandidateHash
	CandidateRelayParent common.Hash
}

// AvailableData is the data that is made available in the availability store.
type AvailableData struct {
	PoV            PoV
	ValidationData PersistedValidationData
}

func hashSCALE(value any) (common.Hash, error) {
	encoded, err := scale.Marshal(value)
	if err != nil {
		return common.Hash{}, fmt.Errorf("scale encoding %T: %w", value, err)
	}
	return common.Blake2bHash(encoded)
}
