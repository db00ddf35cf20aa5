// Copyright 2024 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

package backing

import (
	"context"
	"errors"
	"fmt"

	collatorprotocolmessages "github.com/ChainSafe/parachain-backing/dot/parachain/collator-protocol/messages"
	prospectiveparachainsmessages "github.com/ChainSafe/parachain-backing/dot/parachain/prospective-parachains/messages"
	provisionermessages "github.com/ChainSafe/parachain-backing/dot/parachain/provisioner/messages"
	statementdistributionmessages "github.com/ChainSafe/parachain-backing/dot/parachain/statement-distribution/messages"
	parachaintypes "github.com/ChainSafe/parachain-backing/dot/parachain/types"
	"github.com/ChainSafe/parachain-backing/dot/parachain/util"
	"github.com/ChainSafe/parachain-backing/lib/common"
	"golang.org/x/exp/slices"
)

var (
	errValidatorIndexOutOfRange = errors.New("validator index out of range")
	errDisabledValidator        = errors.New("validator is disabled")
	errMissingPVD               = errors.New("seconded statement without persisted validation data")
	errPVDHashMismatch          = errors.New("persisted validation data hash mismatch")
	errRelayParentMismatch      = errors.New("candidate relay parent mismatch")
	errInvalidSignature         = errors.New("invalid statement signature")
)

// pendingStatement is a signed statement on its way to the statement table.
type pendingStatement struct {
	relayParent common.Hash
	statement   parachaintypes.SignedFullStatementWithPVD
	// local is set for statements signed by us.
	local bool
	// membership holds the leaves under which a candidate we second was found admissible.
	membership []common.Hash
}

// pendingIntroduction holds the statements received for a seconded candidate while prospective
// parachains decides whether to accept it.
type pendingIntroduction struct {
	statements []pendingStatement
}

// handleStatementMessage imports a statement gossiped by another validator.
func (cb *CandidateBacking) handleStatementMessage(
	relayParent common.Hash, statement parachaintypes.SignedFullStatementWithPVD,
) {
	rpState, ok := cb.perRelayParent[relayParent]
	if !ok {
		logger.Debugf("received statement for relay parent %s out of view", relayParent)
		return
	}

	if err := rpState.checkStatement(statement); err != nil {
		logger.Debugf("ignoring statement of validator %d at relay parent %s: %s",
			statement.SignedFullStatement.ValidatorIndex, relayParent, err)
		return
	}

	cb.processStatement(pendingStatement{relayParent: relayParent, statement: statement})
}

// checkStatement makes sure a statement comes from an enabled validator of the session and is
// properly signed. A `Seconded` statement must carry the persisted validation data of its
// candidate, which has to be built on the relay parent.
func (rpState *perRelayParentState) checkStatement(statement parachaintypes.SignedFullStatementWithPVD) error {
	signed := statement.SignedFullStatement

	if int(signed.ValidatorIndex) >= len(rpState.tableContext.validators) {
		return fmt.Errorf("%w: %d", errValidatorIndexOutOfRange, signed.ValidatorIndex)
	}
	if rpState.isDisabled(signed.ValidatorIndex) {
		return errDisabledValidator
	}

	value, err := signed.Payload.Value()
	if err != nil {
		return fmt.Errorf("getting statement value: %w", err)
	}

	if seconded, ok := value.(parachaintypes.Seconded); ok {
		if statement.PersistedValidationData == nil {
			return errMissingPVD
		}
		if seconded.Descriptor.RelayParent != rpState.relayParent {
			return fmt.Errorf("%w: %s", errRelayParentMismatch, seconded.Descriptor.RelayParent)
		}

		pvdHash, err := statement.PersistedValidationData.Hash()
		if err != nil {
			return fmt.Errorf("hashing persisted validation data: %w", err)
		}
		if pvdHash != seconded.Descriptor.PersistedValidationDataHash {
			return errPVDHashMismatch
		}
	}

	validatorID := rpState.tableContext.validators[signed.ValidatorIndex]
	valid, err := signed.Payload.VerifySignature(validatorID, rpState.signingContext(), signed.Signature)
	if err != nil {
		return fmt.Errorf("verifying signature: %w", err)
	}
	if !valid {
		return errInvalidSignature
	}
	return nil
}

// processStatement imports a statement into the table of its relay parent. With prospective
// parachains enabled, the first `Seconded` statement for a candidate introduces the candidate to
// prospective parachains, and statements for the candidate are held back until it is accepted.
func (cb *CandidateBacking) processStatement(ps pendingStatement) {
	rpState, ok := cb.perRelayParent[ps.relayParent]
	if !ok {
		logger.Debugf("dropping statement, relay parent %s is out of view", ps.relayParent)
		return
	}

	payload := ps.statement.SignedFullStatement.Payload
	candidateHash, err := payload.CandidateHash()
	if err != nil {
		logger.Warnf("getting candidate hash of statement: %s", err)
		return
	}

	if introduction, ok := cb.awaitingIntroduction[candidateHash]; ok {
		introduction.statements = append(introduction.statements, ps)
		return
	}

	value, err := payload.Value()
	if err != nil {
		logger.Warnf("getting statement value: %s", err)
		return
	}

	if seconded, ok := value.(parachaintypes.Seconded); ok {
		if _, known := cb.perCandidate[candidateHash]; !known {
			candidate := parachaintypes.CommittedCandidateReceipt(seconded)
			if rpState.prospectiveParachainsMode.IsEnabled {
				cb.introduceCandidate(ps, candidateHash, candidate)
				return
			}

			cb.perCandidate[candidateHash] = &perCandidateState{
				persistedValidationData: *ps.statement.PersistedValidationData,
				paraID:                  candidate.Descriptor.ParaID,
				relayParent:             candidate.Descriptor.RelayParent,
			}
		}
	}

	cb.importStatement(rpState, ps)
}

func (cb *CandidateBacking) introduceCandidate(
	ps pendingStatement,
	candidateHash parachaintypes.CandidateHash,
	candidate parachaintypes.CommittedCandidateReceipt,
) {
	cb.awaitingIntroduction[candidateHash] = &pendingIntroduction{statements: []pendingStatement{ps}}

	persistedValidationData := *ps.statement.PersistedValidationData
	request := prospectiveparachainsmessages.IntroduceSecondedCandidateRequest{
		CandidateParaID:         candidate.Descriptor.ParaID,
		CandidateReceipt:        candidate,
		PersistedValidationData: persistedValidationData,
	}

	overseerChan := cb.SubSystemToOverseer
	cb.spawn(func(ctx context.Context) backgroundResult {
		accepted, err := introduceSecondedCandidate(ctx, overseerChan, request)
		if err != nil {
			logger.Debugf("introducing candidate %s to prospective parachains: %s", candidateHash, err)
		}

		return &introductionResult{
			candidateHash:           candidateHash,
			candidateRelayParent:    candidate.Descriptor.RelayParent,
			paraID:                  candidate.Descriptor.ParaID,
			persistedValidationData: persistedValidationData,
			accepted:                accepted,
		}
	})
}

func introduceSecondedCandidate(
	ctx context.Context,
	overseerChan chan<- any,
	request prospectiveparachainsmessages.IntroduceSecondedCandidateRequest,
) (bool, error) {
	msg := prospectiveparachainsmessages.IntroduceSecondedCandidate{
		IntroduceSecondedCandidateRequest: request,
		Response:                          make(chan bool, 1),
	}

	if err := util.SendMessage(ctx, overseerChan, msg); err != nil {
		return false, fmt.Errorf("sending introduce seconded candidate request: %w", err)
	}

	accepted, err := util.ReceiveResponse[bool](ctx, msg.Response)
	if err != nil {
		return false, fmt.Errorf("receiving introduce seconded candidate response: %w", err)
	}
	return accepted, nil
}

func (cb *CandidateBacking) handleIntroductionResult(res *introductionResult) {
	introduction, ok := cb.awaitingIntroduction[res.candidateHash]
	if !ok {
		return
	}
	delete(cb.awaitingIntroduction, res.candidateHash)

	if !res.accepted {
		logger.Debugf("candidate %s rejected by prospective parachains, dropping %d statements",
			res.candidateHash, len(introduction.statements))
		for _, ps := range introduction.statements {
			if ps.local {
				cb.onLocalCandidateRejected(ps)
			}
		}
		return
	}

	if _, ok := cb.perRelayParent[res.candidateRelayParent]; !ok {
		logger.Debugf("candidate %s accepted by prospective parachains, but relay parent %s is out of view",
			res.candidateHash, res.candidateRelayParent)
		return
	}

	cb.perCandidate[res.candidateHash] = &perCandidateState{
		persistedValidationData: res.persistedValidationData,
		paraID:                  res.paraID,
		relayParent:             res.candidateRelayParent,
	}

	for _, ps := range introduction.statements {
		cb.processStatement(ps)
	}
}

// onLocalCandidateRejected reports a candidate we wanted to second back to the collator protocol.
func (cb *CandidateBacking) onLocalCandidateRejected(ps pendingStatement) {
	value, err := ps.statement.SignedFullStatement.Payload.Value()
	if err != nil {
		return
	}
	seconded, ok := value.(parachaintypes.Seconded)
	if !ok {
		return
	}

	candidate := parachaintypes.CommittedCandidateReceipt(seconded)
	if rpState, ok := cb.perRelayParent[ps.relayParent]; ok {
		if candidateHash, err := parachaintypes.GetCandidateHash(candidate); err == nil {
			delete(rpState.awaitingValidation, candidateHash)
		}
	}

	receipt, err := candidate.ToPlain()
	if err != nil {
		logger.Errorf("getting candidate receipt: %s", err)
		return
	}

	cb.metrics.OnCandidateRejected()
	cb.sendToOverseer(collatorprotocolmessages.Invalid{
		Parent:           ps.relayParent,
		CandidateReceipt: receipt,
	})
}

// importStatement imports a statement into the table and reacts to the outcome. Our own
// statements are shared with the network before any backing notification is sent.
func (cb *CandidateBacking) importStatement(rpState *perRelayParentState, ps pendingStatement) {
	summary, err := rpState.table.importStatement(&rpState.tableContext, ps.statement)
	if err != nil {
		logger.Debugf("importing statement of validator %d: %s", ps.statement.SignedFullStatement.ValidatorIndex, err)
		cb.issueNewMisbehaviors(rpState)
		return
	}

	if ps.local {
		cb.sendToOverseer(statementdistributionmessages.Share{
			RelayParent:                rpState.relayParent,
			SignedFullStatementWithPVD: ps.statement,
		})
	}

	cb.postImportStatement(rpState, summary)

	if ps.local {
		cb.onLocalStatementImported(rpState, ps)
		return
	}

	if summary != nil {
		cb.kickOffAttestation(rpState, ps.statement.SignedFullStatement, summary)
	}
}

// postImportStatement notifies the other subsystems once a candidate gathers enough validity
// votes. This happens at most once per candidate and relay parent.
func (cb *CandidateBacking) postImportStatement(rpState *perRelayParentState, summary *Summary) {
	defer cb.issueNewMisbehaviors(rpState)

	if summary == nil || rpState.backed[summary.Candidate] {
		return
	}

	attested, err := rpState.table.attestedCandidate(
		summary.Candidate, &rpState.tableContext, rpState.session.minBackingVotes)
	if err != nil {
		logger.Debugf("getting attested candidate %s: %s", summary.Candidate, err)
		return
	}
	if attested == nil {
		return
	}

	backed, err := attested.toBackedCandidate(&rpState.tableContext)
	if err != nil {
		logger.Errorf("converting attested candidate %s to backed candidate: %s", summary.Candidate, err)
		return
	}

	rpState.backed[summary.Candidate] = true
	cb.metrics.OnCandidateBacked()

	paraID := backed.Candidate.Descriptor.ParaID
	logger.Debugf("candidate %s of para %d backed with %d votes at relay parent %s",
		summary.Candidate, paraID, len(backed.ValidityVotes), rpState.relayParent)

	if rpState.prospectiveParachainsMode.IsEnabled {
		cb.sendToOverseer(prospectiveparachainsmessages.CandidateBacked{
			ParaID:        paraID,
			CandidateHash: summary.Candidate,
		})
		cb.sendToOverseer(collatorprotocolmessages.Backed{
			ParaID:   paraID,
			ParaHead: backed.Candidate.Descriptor.ParaHead,
		})
		cb.sendToOverseer(statementdistributionmessages.Backed(summary.Candidate))
		return
	}

	receipt, err := backed.Candidate.ToPlain()
	if err != nil {
		logger.Errorf("getting candidate receipt of %s: %s", summary.Candidate, err)
		return
	}
	cb.sendToOverseer(provisionermessages.ProvisionableData{
		RelayParent: rpState.relayParent,
		Data:        provisionermessages.ProvisionableDataBackedCandidate(receipt),
	})
}

// issueNewMisbehaviors reports the misbehaviours detected by the table to the provisioner.
func (cb *CandidateBacking) issueNewMisbehaviors(rpState *perRelayParentState) {
	for _, report := range rpState.table.drainMisbehaviors() {
		logger.Debugf("validator %d misbehaved at relay parent %s", report.ValidatorIndex, rpState.relayParent)
		cb.sendToOverseer(provisionermessages.ProvisionableData{
			RelayParent: rpState.relayParent,
			Data:        report,
		})
	}
}

func (cb *CandidateBacking) onLocalStatementImported(rpState *perRelayParentState, ps pendingStatement) {
	value, err := ps.statement.SignedFullStatement.Payload.Value()
	if err != nil {
		return
	}
	seconded, ok := value.(parachaintypes.Seconded)
	if !ok {
		return
	}

	candidate := parachaintypes.CommittedCandidateReceipt(seconded)
	candidateHash, err := parachaintypes.GetCandidateHash(candidate)
	if err != nil {
		logger.Errorf("getting candidate hash: %s", err)
		return
	}

	delete(rpState.awaitingValidation, candidateHash)
	rpState.issuedStatements[candidateHash] = true

	if candidateState, ok := cb.perCandidate[candidateHash]; ok {
		candidateState.secondedLocally = true
	}

	for _, leaf := range ps.membership {
		leafState, ok := cb.perLeaf[leaf]
		if !ok || leafState.prospectiveParachainsMode.IsEnabled {
			continue
		}
		leafState.secondedParas[candidate.Descriptor.ParaID] = true
	}

	cb.metrics.OnCandidateSeconded()
	cb.sendToOverseer(collatorprotocolmessages.Seconded{
		Parent: ps.relayParent,
		Stmt:   ps.statement,
	})
}

// kickOffAttestation validates a candidate seconded by another member of our group, so that we
// can issue a `Valid` statement for it. The PoV is fetched from the validator that seconded it,
// falling back to the validators that vouched for it since.
func (cb *CandidateBacking) kickOffAttestation(
	rpState *perRelayParentState, statement parachaintypes.SignedFullStatement, summary *Summary,
) {
	localValidator := rpState.tableContext.validator
	if localValidator == nil || rpState.assignment == nil || *rpState.assignment != summary.GroupID {
		return
	}

	value, err := statement.Payload.Value()
	if err != nil {
		return
	}

	var attesting *attestingData
	switch value := value.(type) {
	case parachaintypes.Seconded:
		receipt, err := parachaintypes.CommittedCandidateReceipt(value).ToPlain()
		if err != nil {
			logger.Errorf("getting candidate receipt: %s", err)
			return
		}
		attesting = &attestingData{
			candidate:     receipt,
			povHash:       value.Descriptor.PovHash,
			fromValidator: statement.ValidatorIndex,
		}

	case parachaintypes.Valid:
		if statement.ValidatorIndex == localValidator.index {
			return
		}

		existing, ok := rpState.fallbacks[summary.Candidate]
		if !ok {
			return
		}
		if rpState.awaitingValidation[summary.Candidate] {
			if !slices.Contains(existing.backing, statement.ValidatorIndex) {
				existing.backing = append(existing.backing, statement.ValidatorIndex)
			}
			return
		}
		existing.fromValidator = statement.ValidatorIndex
		attesting = existing

	default:
		return
	}

	rpState.fallbacks[summary.Candidate] = attesting

	candidateState, ok := cb.perCandidate[summary.Candidate]
	if !ok {
		logger.Debugf("no persisted validation data known for candidate %s", summary.Candidate)
		return
	}

	cb.kickOffValidationWork(rpState, summary.Candidate, attesting, candidateState.persistedValidationData)
}

func (cb *CandidateBacking) kickOffValidationWork(
	rpState *perRelayParentState,
	candidateHash parachaintypes.CandidateHash,
	attesting *attestingData,
	persistedValidationData parachaintypes.PersistedValidationData,
) {
	if rpState.issuedStatements[candidateHash] || rpState.awaitingValidation[candidateHash] {
		return
	}
	rpState.awaitingValidation[candidateHash] = true

	cb.spawnValidation(&validationJob{
		command:                 attest,
		relayParent:             rpState.relayParent,
		candidateReceipt:        attesting.candidate,
		candidateHash:           candidateHash,
		persistedValidationData: persistedValidationData,
		fromValidator:           attesting.fromValidator,
		numValidators:           uint32(len(rpState.tableContext.validators)),
		executorParams:          rpState.session.executorParams,
	})
}

// signStatement signs the statement with the key of the local validator. Nothing is signed, and
// no error is returned, when we are not a validator at the relay parent.
func (cb *CandidateBacking) signStatement(
	rpState *perRelayParentState, statement parachaintypes.StatementVDT,
) (*parachaintypes.SignedFullStatement, error) {
	localValidator := rpState.tableContext.validator
	if localValidator == nil {
		return nil, nil
	}

	signature, err := statement.Sign(cb.Keystore, rpState.signingContext(), localValidator.id)
	if err != nil {
		return nil, fmt.Errorf("signing statement: %w", err)
	}

	cb.metrics.OnStatementSigned()
	return &parachaintypes.SignedFullStatement{
		Payload:        statement,
		ValidatorIndex: localValidator.index,
		Signature:      *signature,
	}, nil
}
