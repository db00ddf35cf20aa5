// Copyright 2024 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

package badger

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func ptrTo[T any](value T) *T { return &value }

func Test_Settings_SetDefaults(t *testing.T) {
	t.Parallel()

	testCases := map[string]struct {
		originalSettings Settings
		expectedSettings Settings
	}{
		"empty settings": {
			expectedSettings: Settings{
				Path:     ".",
				InMemory: ptrTo(false),
			},
		},
		"non-empty settings": {
			originalSettings: Settings{
				Path:     "x",
				InMemory: ptrTo(true),
			},
			expectedSettings: Settings{
				Path:     "x",
				InMemory: ptrTo(true),
			},
		},
	}

	for name, testCase := range testCases {
		testCase := testCase

		t.Run(name, func(t *testing.T) {
			t.Parallel()

			testCase.originalSettings.SetDefaults()
			assert.Equal(t, testCase.expectedSettings, testCase.originalSettings)
		})
	}
}

func Test_Settings_Validate(t *testing.T) {
	t.Parallel()

	// Note we cannot test for a bad path since we would
	// need os.Getcwd() to fail.
	settings := Settings{Path: "."}
	assert.NoError(t, settings.Validate())
}
