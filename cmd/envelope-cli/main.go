package main

import (
	"log"
	"os"

	"github.com/ruteri/envelope-registry/cmd/flags"
	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "envelope-cli",
		Usage: "Manage recipient keys and build, open and submit envelopes",
		Flags: []cli.Flag{
			flags.NodeURLFlag,
			flags.KeyFileFlag,
			flags.LogJsonFlag,
			flags.LogDebugFlag,
			flags.LogUidFlag,
			flags.LogServiceFlagFn("envelope-cli"),
		},
		Commands: []*cli.Command{
			signerKeyCommand,
			keygenCommand,
			registerCommand,
			revokeCommand,
			labelCommand,
			keysCommand,
			buildCommand,
			openCommand,
			validateCommand,
			submitCommand,
			getCommand,
			upgradeCommand,
			paramsCommand,
			updateParamsCommand,
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
