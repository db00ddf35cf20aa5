// Copyright 2024 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

package main

import (
	"os"

	"github.com/ChainSafe/parachain-backing/internal/log"
	"github.com/urfave/cli"
)

var logger = log.NewFromGlobal(log.AddContext("pkg", "cmd"))

func main() {
	if err := newApp().Run(os.Args); err != nil {
		logger.Critical(err.Error())
		os.Exit(1)
	}
}

func newApp() *cli.App {
	app := cli.NewApp()
	app.Name = "parachain-backing"
	app.Usage = "manage the configuration of the parachain candidate backing subsystems"
	app.HideVersion = true
	app.Commands = []cli.Command{
		initCommand,
		checkCommand,
	}
	return app
}
