package main

import (
	"os"
	"path"

	"github.com/apex/log"
	"github.com/rancher/wrangler/pkg/signals"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/romcellar/romcellar/pkg/common"

	_ "github.com/romcellar/romcellar/pkg/commands/info"
	_ "github.com/romcellar/romcellar/pkg/commands/inspect"
	_ "github.com/romcellar/romcellar/pkg/commands/install"
	_ "github.com/romcellar/romcellar/pkg/commands/list"
	_ "github.com/romcellar/romcellar/pkg/commands/uninstall"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			// log panics forces exit
			if _, ok := r.(*logrus.Entry); ok {
				os.Exit(1)
			}
			panic(r)
		}
	}()

	app := cli.NewApp()
	app.Name = path.Base(os.Args[0])
	app.Usage = `manage an emulation game library from remote sources`
	app.Description = `download games into per-platform libraries, unpack the ones that are archives and keep a record of what is installed where`
	app.Version = common.AppVersion.Summary

	app.Before = common.Before
	app.Flags = common.Flags()

	app.Commands = common.GetCommands()
	app.CommandNotFound = func(context *cli.Context, command string) {
		log.Fatalf("command %s not found.", command)
	}

	ctx := signals.SetupSignalContext()
	if err := app.RunContext(ctx, os.Args); err != nil {
		log.Error(err.Error())
	}
}
