package uninstall

import (
	"fmt"
	"os"

	"github.com/apex/log"
	clilog "github.com/apex/log/handlers/cli"

	"github.com/urfave/cli/v2"

	"github.com/romcellar/romcellar/pkg/common"
	"github.com/romcellar/romcellar/pkg/config"
	"github.com/romcellar/romcellar/pkg/library"
	"github.com/romcellar/romcellar/pkg/safepath"
)

func Execute(c *cli.Context) error {
	log.SetHandler(clilog.Default)

	cfg, err := config.New(c.String("config"))
	if err != nil {
		return err
	}

	state, err := library.OpenState(cfg.GetStatePath())
	if err != nil {
		return err
	}

	id := c.Args().First()

	record := state.Get(id)
	if record == nil {
		return fmt.Errorf("%s is not installed", id)
	}

	if err := safepath.Validate(record.InstallDir); err != nil {
		return err
	}

	log.Infof("removing %s", record.InstallDir)

	if err := os.RemoveAll(record.InstallDir); err != nil {
		return err
	}

	if err := state.Remove(id); err != nil {
		return err
	}

	log.Infof("%s uninstalled", id)

	return nil
}

func Before(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("expected argument: game")
	}

	return common.Before(c)
}

func init() {
	cmd := &cli.Command{
		Name:        "uninstall",
		Usage:       "uninstall a game",
		Description: `remove a game's install directory and drop it from the install record`,
		Before:      Before,
		Flags:       common.Flags(),
		Action:      Execute,
		Args:        true,
		ArgsUsage:   " game",
	}

	common.RegisterCommand(cmd)
}
