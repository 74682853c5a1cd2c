package list

import (
	"fmt"

	"github.com/apex/log"
	"github.com/urfave/cli/v2"

	"github.com/romcellar/romcellar/pkg/common"
	"github.com/romcellar/romcellar/pkg/config"
	"github.com/romcellar/romcellar/pkg/library"
	"github.com/romcellar/romcellar/pkg/progress"
)

func Execute(c *cli.Context) error {
	cfg, err := config.New(c.String("config"))
	if err != nil {
		return err
	}

	manifest, err := library.LoadManifest(c.Context, cfg.Manifest, cfg.GetCachePath())
	if err != nil {
		return err
	}

	state, err := library.OpenState(cfg.GetStatePath())
	if err != nil {
		return err
	}

	games := manifest.ForPlatform(c.Args().First())
	if len(games) == 0 {
		log.Warnf("no games in manifest")
		return nil
	}

	for _, game := range games {
		marker := " "
		if state.IsInstalled(game.ID) {
			marker = "*"
		}

		size := ""
		if game.Size > 0 {
			size = fmt.Sprintf(" (%s)", progress.FormatBytes(game.Size))
		}

		log.Infof("%s %s/%s: %s%s", marker, game.Platform, game.ID, game.Name, size)
	}

	return nil
}

func init() {
	cmd := &cli.Command{
		Name:        "list",
		Usage:       "list games in the manifest, marking installed ones",
		Description: `list games in the manifest, marking installed ones, optionally for a single platform`,
		Before:      common.Before,
		Flags:       common.Flags(),
		Action:      Execute,
		Args:        true,
		ArgsUsage:   " [platform]",
	}

	common.RegisterCommand(cmd)
}
