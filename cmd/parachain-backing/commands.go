// Copyright 2024 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/ChainSafe/parachain-backing/dot/parachain/config"
	"github.com/ChainSafe/parachain-backing/lib/common"
	"github.com/urfave/cli"
)

const defaultConfigPath = "./config.toml"

var errConfigExists = errors.New("config file already exists")

var (
	// ConfigFlag TOML configuration file
	ConfigFlag = cli.StringFlag{
		Name:  "config",
		Value: defaultConfigPath,
		Usage: "TOML configuration file",
	}
	// ForceFlag overwrites an existing configuration file
	ForceFlag = cli.BoolFlag{
		Name:  "force",
		Usage: "overwrite an existing configuration file",
	}
	// BasePathFlag data directory of the availability store
	BasePathFlag = cli.StringFlag{
		Name:  "basepath",
		Usage: "data directory of the availability store",
	}
	// GenesisHashFlag relay chain genesis hash to pin
	GenesisHashFlag = cli.StringFlag{
		Name:  "genesis-hash",
		Usage: "hex encoded relay chain genesis hash the subsystems must run on",
	}
	// MetricsFlag enables the prometheus metrics server
	MetricsFlag = cli.BoolFlag{
		Name:  "metrics",
		Usage: "enable the prometheus metrics server",
	}
)

var initCommand = cli.Command{
	Name:  "init",
	Usage: "write a default configuration file",
	Flags: []cli.Flag{
		ConfigFlag,
		ForceFlag,
		BasePathFlag,
		GenesisHashFlag,
		MetricsFlag,
	},
	Action: initAction,
}

var checkCommand = cli.Command{
	Name:  "check",
	Usage: "validate a configuration file and print it with its defaults applied",
	Flags: []cli.Flag{
		ConfigFlag,
	},
	Action: checkAction,
}

func initAction(ctx *cli.Context) error {
	path := ctx.String(ConfigFlag.Name)

	if _, err := os.Stat(path); err == nil && !ctx.Bool(ForceFlag.Name) {
		return fmt.Errorf("%w: %s", errConfigExists, path)
	}

	cfg := config.Config{}
	if basePath := ctx.String(BasePathFlag.Name); basePath != "" {
		cfg.AvailabilityStore.BasePath = basePath
	}
	if genesisHash := ctx.String(GenesisHashFlag.Name); genesisHash != "" {
		hash, err := common.HexToHash(genesisHash)
		if err != nil {
			return fmt.Errorf("parsing genesis hash: %w", err)
		}
		cfg.Chain.GenesisHash = hash
	}
	cfg.Metrics.Enabled = ctx.Bool(MetricsFlag.Name)
	cfg.SetDefaults()

	if err := cfg.Validate(); err != nil {
		return err
	}

	if err := config.Export(cfg, path); err != nil {
		return fmt.Errorf("exporting configuration: %w", err)
	}

	logger.Infof("configuration written to %s", path)
	return nil
}

func checkAction(ctx *cli.Context) error {
	cfg, err := config.Load(ctx.String(ConfigFlag.Name))
	if err != nil {
		return err
	}

	data, err := config.Marshal(*cfg)
	if err != nil {
		return err
	}

	_, err = ctx.App.Writer.Write(data)
	return err
}
