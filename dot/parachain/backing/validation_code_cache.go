// Copyright 2024 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

package backing

import (
	"errors"
	"fmt"

	parachaintypes "github.com/ChainSafe/parachain-backing/dot/parachain/types"
	"github.com/ChainSafe/parachain-backing/lib/common"
	lru "github.com/hashicorp/golang-lru/v2"
)

const defaultValidationCodeCacheSize = 16

var errValidationCodeNotFound = errors.New("validation code not found")

// validationCodeCache keeps recently used validation code, keyed by code hash. It is safe for
// concurrent use by validation jobs.
type validationCodeCache struct {
	blockState BlockState
	cache      *lru.Cache[parachaintypes.ValidationCodeHash, parachaintypes.ValidationCode]
}

func newValidationCodeCache(blockState BlockState, size int) (*validationCodeCache, error) {
	if size <= 0 {
		size = defaultValidationCodeCacheSize
	}

	cache, err := lru.New[parachaintypes.ValidationCodeHash, parachaintypes.ValidationCode](size)
	if err != nil {
		return nil, fmt.Errorf("creating lru cache: %w", err)
	}

	return &validationCodeCache{
		blockState: blockState,
		cache:      cache,
	}, nil
}

// get returns the validation code with the given hash, fetching it from the runtime of the relay
// parent on a cache miss.
func (c *validationCodeCache) get(
	relayParent common.Hash, hash parachaintypes.ValidationCodeHash,
) (parachaintypes.ValidationCode, error) {
	if code, ok := c.cache.Get(hash); ok {
		return code, nil
	}

	rt, err := c.blockState.GetRuntime(relayParent)
	if err != nil {
		return nil, fmt.Errorf("getting runtime for relay parent %s: %w", relayParent, err)
	}

	code, err := rt.ParachainHostValidationCodeByHash(hash)
	if err != nil {
		return nil, fmt.Errorf("getting validation code by hash: %w", err)
	}
	if code == nil {
		return nil, fmt.Errorf("%w: %s", errValidationCodeNotFound, hash)
	}

	c.cache.Add(hash, *code)
	return *code, nil
}
