// Copyright 2024 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

package backing

import (
	"errors"
	"fmt"

	provisionermessages "github.com/ChainSafe/parachain-backing/dot/parachain/provisioner/messages"
	parachaintypes "github.com/ChainSafe/parachain-backing/dot/parachain/types"
	"github.com/prysmaticlabs/go-bitfield"
	"github.com/tidwall/btree"
)

var (
	errUnknownStatementKind     = errors.New("unknown statement kind")
	errVoteFromUnknownValidator = errors.New("validity vote from validator outside of the group")
	errCandidateNotInTable      = errors.New("candidate not found in statement table")
)

// Table is the statement table of a relay parent. It keeps the candidates seconded under the
// relay parent along with the validity votes issued for them.
type Table interface {
	getCandidate(parachaintypes.CandidateHash) (*parachaintypes.CommittedCandidateReceipt, error)
	importStatement(*TableContext, parachaintypes.SignedFullStatementWithPVD) (*Summary, error)
	attestedCandidate(parachaintypes.CandidateHash, *TableContext, uint32) (*AttestedCandidate, error)
	drainMisbehaviors() []provisionermessages.ProvisionableDataMisbehaviorReport
}

// Summary represents summary of import of a statement.
type Summary struct {
	// The digest of the candidate referenced.
	Candidate parachaintypes.CandidateHash
	// The group that the candidate is in.
	GroupID parachaintypes.ParaID
	// How many validity votes are currently witnessed.
	ValidityVotes uint64
}

// AttestedCandidate represents an attested-to candidate.
type AttestedCandidate struct {
	// The group ID that the candidate is in.
	GroupID parachaintypes.ParaID
	// The candidate data.
	Candidate parachaintypes.CommittedCandidateReceipt
	// Validity attestations, ordered by validator index.
	ValidityVotes []validityVote
}

// validityVote represents a vote on the validity of a candidate by a validator.
type validityVote struct {
	ValidatorIndex      parachaintypes.ValidatorIndex
	ValidityAttestation parachaintypes.ValidityAttestation
}

// TableContext represents the contextual information associated with a validator and groups
// for a table under a relay-parent.
type TableContext struct {
	validator  *validator
	groups     map[parachaintypes.ParaID][]parachaintypes.ValidatorIndex
	validators []parachaintypes.ValidatorID
}

func (tc *TableContext) isMemberOf(validatorIndex parachaintypes.ValidatorIndex, group parachaintypes.ParaID) bool {
	for _, member := range tc.groups[group] {
		if member == validatorIndex {
			return true
		}
	}
	return false
}

// effectiveMinimumBackingVotes is the number of votes needed to back a candidate in a group of
// the given size.
func effectiveMinimumBackingVotes(groupLen int, minBackingVotes uint32) int {
	if int(minBackingVotes) < groupLen {
		return int(minBackingVotes)
	}
	return groupLen
}

type voteKind byte

const (
	// issued is the implicit validity vote carried by a seconded statement.
	issued voteKind = iota
	// valid is an explicit validity vote.
	valid
)

type tableVote struct {
	kind      voteKind
	signature parachaintypes.ValidatorSignature
}

func (v tableVote) attestation() parachaintypes.ValidityAttestation {
	if v.kind == issued {
		return parachaintypes.NewImplicitAttestation(v.signature)
	}
	return parachaintypes.NewExplicitAttestation(v.signature)
}

type candidateData struct {
	groupID   parachaintypes.ParaID
	candidate parachaintypes.CommittedCandidateReceipt
	// validity votes keyed by validator index, at most one per validator.
	validityVotes *btree.Map[uint32, tableVote]
}

type proposal struct {
	candidateHash parachaintypes.CandidateHash
	signature     parachaintypes.ValidatorSignature
}

type statementTable struct {
	// allowMultipleSeconded lets a validator second more than one candidate, which is the case
	// when prospective parachains are enabled.
	allowMultipleSeconded bool

	proposals            map[parachaintypes.ValidatorIndex][]proposal
	candidateVotes       map[parachaintypes.CandidateHash]*candidateData
	detectedMisbehaviour map[parachaintypes.ValidatorIndex][]parachaintypes.Misbehaviour
	// misbehaviour reporting order, so drained reports are deterministic.
	misbehavingValidators []parachaintypes.ValidatorIndex
}

func newStatementTable(allowMultipleSeconded bool) *statementTable {
	return &statementTable{
		allowMultipleSeconded: allowMultipleSeconded,
		proposals:             make(map[parachaintypes.ValidatorIndex][]proposal),
		candidateVotes:        make(map[parachaintypes.CandidateHash]*candidateData),
		detectedMisbehaviour:  make(map[parachaintypes.ValidatorIndex][]parachaintypes.Misbehaviour),
	}
}

func (table *statementTable) getCandidate(
	candidateHash parachaintypes.CandidateHash,
) (*parachaintypes.CommittedCandidateReceipt, error) {
	data, ok := table.candidateVotes[candidateHash]
	if !ok {
		return nil, fmt.Errorf("%w: %s", errCandidateNotInTable, candidateHash)
	}
	return &data.candidate, nil
}

// importStatement imports a signed statement into the table. It returns a summary of the
// candidate the statement refers to, or nil when the statement was a duplicate, referred to an
// unknown candidate, or was evidence of misbehaviour.
func (table *statementTable) importStatement(
	tableCtx *TableContext, signedStatement parachaintypes.SignedFullStatementWithPVD,
) (*Summary, error) {
	statement := signedStatement.SignedFullStatement
	value, err := statement.Payload.Value()
	if err != nil {
		return nil, fmt.Errorf("getting statement value: %w", err)
	}

	switch value := value.(type) {
	case parachaintypes.Seconded:
		return table.importCandidate(tableCtx, statement.ValidatorIndex,
			parachaintypes.CommittedCandidateReceipt(value), statement.Signature, statement)
	case parachaintypes.Valid:
		return table.validityVote(tableCtx, statement.ValidatorIndex,
			parachaintypes.CandidateHash(value), tableVote{kind: valid, signature: statement.Signature}, statement)
	default:
		return nil, fmt.Errorf("%w: %T", errUnknownStatementKind, value)
	}
}

func (table *statementTable) importCandidate(
	tableCtx *TableContext,
	authority parachaintypes.ValidatorIndex,
	candidate parachaintypes.CommittedCandidateReceipt,
	signature parachaintypes.ValidatorSignature,
	statement parachaintypes.SignedFullStatement,
) (*Summary, error) {
	group := candidate.Descriptor.ParaID
	if !tableCtx.isMemberOf(authority, group) {
		table.reportMisbehaviour(authority, parachaintypes.UnauthorizedStatement{
			Statement: parachaintypes.SignedStatement{
				Statement: statement.Payload,
				Signature: signature,
				Sender:    authority,
			},
		})
		return nil, nil
	}

	candidateHash, err := parachaintypes.GetCandidateHash(candidate)
	if err != nil {
		return nil, err
	}

	existing := table.proposals[authority]
	alreadyProposed := false
	for _, p := range existing {
		if p.candidateHash == candidateHash {
			alreadyProposed = true
			break
		}
	}

	if !alreadyProposed {
		if len(existing) > 0 && !table.allowMultipleSeconded {
			first := existing[0]
			firstCandidate, ok := table.candidateVotes[first.candidateHash]
			if !ok {
				return nil, fmt.Errorf("%w: %s", errCandidateNotInTable, first.candidateHash)
			}
			table.reportMisbehaviour(authority, parachaintypes.MultipleCandidates{
				First: parachaintypes.CommittedCandidateReceiptAndSign{
					CommittedCandidateReceipt: firstCandidate.candidate,
					Signature:                 first.signature,
				},
				Second: parachaintypes.CommittedCandidateReceiptAndSign{
					CommittedCandidateReceipt: candidate,
					Signature:                 signature,
				},
			})
			return nil, nil
		}
		table.proposals[authority] = append(existing, proposal{candidateHash: candidateHash, signature: signature})
	}

	if _, ok := table.candidateVotes[candidateHash]; !ok {
		table.candidateVotes[candidateHash] = &candidateData{
			groupID:       group,
			candidate:     candidate,
			validityVotes: btree.NewMap[uint32, tableVote](0),
		}
	}

	return table.validityVote(tableCtx, authority, candidateHash,
		tableVote{kind: issued, signature: signature}, statement)
}

func (table *statementTable) validityVote(
	tableCtx *TableContext,
	authority parachaintypes.ValidatorIndex,
	candidateHash parachaintypes.CandidateHash,
	vote tableVote,
	statement parachaintypes.SignedFullStatement,
) (*Summary, error) {
	data, ok := table.candidateVotes[candidateHash]
	if !ok {
		return nil, nil
	}

	if !tableCtx.isMemberOf(authority, data.groupID) {
		table.reportMisbehaviour(authority, parachaintypes.UnauthorizedStatement{
			Statement: parachaintypes.SignedStatement{
				Statement: statement.Payload,
				Signature: vote.signature,
				Sender:    authority,
			},
		})
		return nil, nil
	}

	existing, ok := data.validityVotes.Get(uint32(authority))
	if ok {
		if existing == vote {
			return nil, nil
		}
		table.reportMisbehaviour(authority, doubleVote(data, candidateHash, existing, vote))
		return nil, nil
	}

	data.validityVotes.Set(uint32(authority), vote)
	return &Summary{
		Candidate:     candidateHash,
		GroupID:       data.groupID,
		ValidityVotes: uint64(data.validityVotes.Len()),
	}, nil
}

func doubleVote(
	data *candidateData, candidateHash parachaintypes.CandidateHash, existing, vote tableVote,
) parachaintypes.Misbehaviour {
	switch {
	case existing.kind == issued && vote.kind == issued:
		return parachaintypes.OnSeconded{
			Candidate: data.candidate,
			Sign1:     existing.signature,
			Sign2:     vote.signature,
		}
	case existing.kind == valid && vote.kind == valid:
		return parachaintypes.OnValidity{
			CandidateHash: candidateHash,
			Sign1:         existing.signature,
			Sign2:         vote.signature,
		}
	}

	issuedSignature, validSignature := existing.signature, vote.signature
	if existing.kind == valid {
		issuedSignature, validSignature = vote.signature, existing.signature
	}
	return parachaintypes.IssuedAndValidity{
		CommittedCandidateReceiptAndSign: parachaintypes.CommittedCandidateReceiptAndSign{
			CommittedCandidateReceipt: data.candidate,
			Signature:                 issuedSignature,
		},
		CandidateHashAndSign: parachaintypes.CandidateHashAndSign{
			CandidateHash: candidateHash,
			Signature:     validSignature,
		},
	}
}

func (table *statementTable) reportMisbehaviour(
	validatorIndex parachaintypes.ValidatorIndex, misbehaviour parachaintypes.Misbehaviour,
) {
	if _, ok := table.detectedMisbehaviour[validatorIndex]; !ok {
		table.misbehavingValidators = append(table.misbehavingValidators, validatorIndex)
	}
	table.detectedMisbehaviour[validatorIndex] = append(table.detectedMisbehaviour[validatorIndex], misbehaviour)
}

// attestedCandidate returns the candidate with its validity votes if it gathered enough votes to
// be backed, nil otherwise.
func (table *statementTable) attestedCandidate(
	candidateHash parachaintypes.CandidateHash, tableCtx *TableContext, minBackingVotes uint32,
) (*AttestedCandidate, error) {
	data, ok := table.candidateVotes[candidateHash]
	if !ok {
		return nil, nil
	}

	threshold := effectiveMinimumBackingVotes(len(tableCtx.groups[data.groupID]), minBackingVotes)
	if threshold == 0 || data.validityVotes.Len() < threshold {
		return nil, nil
	}

	votes := make([]validityVote, 0, data.validityVotes.Len())
	data.validityVotes.Scan(func(index uint32, vote tableVote) bool {
		votes = append(votes, validityVote{
			ValidatorIndex:      parachaintypes.ValidatorIndex(index),
			ValidityAttestation: vote.attestation(),
		})
		return true
	})

	return &AttestedCandidate{
		GroupID:       data.groupID,
		Candidate:     data.candidate,
		ValidityVotes: votes,
	}, nil
}

func (table *statementTable) drainMisbehaviors() []provisionermessages.ProvisionableDataMisbehaviorReport {
	var reports []provisionermessages.ProvisionableDataMisbehaviorReport
	for _, validatorIndex := range table.misbehavingValidators {
		for _, misbehaviour := range table.detectedMisbehaviour[validatorIndex] {
			reports = append(reports, provisionermessages.ProvisionableDataMisbehaviorReport{
				ValidatorIndex: validatorIndex,
				Misbehaviour:   misbehaviour,
			})
		}
	}

	table.misbehavingValidators = nil
	table.detectedMisbehaviour = make(map[parachaintypes.ValidatorIndex][]parachaintypes.Misbehaviour)
	return reports
}

// toBackedCandidate converts the attested candidate into a backed candidate. The validity votes
// are ordered by the position of their validator in the group, matching the bits set in the
// validator indices bitfield.
func (attested *AttestedCandidate) toBackedCandidate(tableCtx *TableContext) (*parachaintypes.BackedCandidate, error) {
	group := tableCtx.groups[attested.GroupID]
	validatorIndices := bitfield.NewBitlist(uint64(len(group)))
	validityVotes := make([]parachaintypes.ValidityAttestation, 0, len(attested.ValidityVotes))

	matched := 0
	for position, validatorIndex := range group {
		for _, vote := range attested.ValidityVotes {
			if vote.ValidatorIndex != validatorIndex {
				continue
			}
			validatorIndices.SetBitAt(uint64(position), true)
			validityVotes = append(validityVotes, vote.ValidityAttestation)
			matched++
			break
		}
	}

	if matched != len(attested.ValidityVotes) {
		return nil, errVoteFromUnknownValidator
	}

	return &parachaintypes.BackedCandidate{
		Candidate:        attested.Candidate,
		ValidityVotes:    validityVotes,
		ValidatorIndices: validatorIndices,
	}, nil
}
