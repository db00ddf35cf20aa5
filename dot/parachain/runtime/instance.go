// Copyright 2024 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

package runtime

import (
	"errors"

	parachaintypes "github.com/ChainSafe/parachain-backing/dot/parachain/types"
)

// ErrExportFunctionNotFound is returned when the runtime does not expose the requested API.
var ErrExportFunctionNotFound = errors.New("export function not found")

// Minimum ParachainHost API versions exposing the optional runtime calls.
const (
	ExecutorParamsRuntimeRequirement     uint32 = 4
	MinBackingVotesRuntimeRequirement    uint32 = 6
	AsyncBackingRuntimeRequirement       uint32 = 7
	DisabledValidatorsRuntimeRequirement uint32 = 8
	NodeFeaturesRuntimeRequirement       uint32 = 9
)

// RuntimeInstance for runtime methods. An instance is bound to the state of the relay
// chain block it was obtained for.
type RuntimeInstance interface {
	ParachainHostAPIVersion() (uint32, error)
	ParachainHostAsyncBackingParams() (*parachaintypes.AsyncBackingParams, error)
	ParachainHostSessionIndexForChild() (parachaintypes.SessionIndex, error)
	ParachainHostValidators() ([]parachaintypes.ValidatorID, error)
	ParachainHostValidatorGroups() (*parachaintypes.ValidatorGroups, error)
	ParachainHostAvailabilityCores() ([]parachaintypes.CoreState, error)
	ParachainHostMinimumBackingVotes() (uint32, error)
	ParachainHostNodeFeatures() (parachaintypes.NodeFeatures, error)
	ParachainHostSessionExecutorParams(index parachaintypes.SessionIndex) (*parachaintypes.ExecutorParams, error)
	ParachainHostDisabledValidators() ([]parachaintypes.ValidatorIndex, error)
	ParachainHostValidationCodeByHash(
		validationCodeHash parachaintypes.ValidationCodeHash,
	) (*parachaintypes.ValidationCode, error)
}
