// Copyright 2024 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

package backing

//go:generate mockgen -destination=mocks_test.go -package=$GOPACKAGE . BlockState
//go:generate mockgen -destination=mock_runtime_instance_test.go -package $GOPACKAGE github.com/ChainSafe/parachain-backing/dot/parachain/runtime RuntimeInstance
