package install

import (
	"fmt"

	"github.com/apex/log"
	clilog "github.com/apex/log/handlers/cli"

	"github.com/urfave/cli/v2"

	"github.com/romcellar/romcellar/pkg/common"
	"github.com/romcellar/romcellar/pkg/config"
	"github.com/romcellar/romcellar/pkg/installer"
	"github.com/romcellar/romcellar/pkg/library"
	"github.com/romcellar/romcellar/pkg/progress"
)

func Execute(c *cli.Context) error {
	log.SetHandler(clilog.Default)
	log.SetLevel(log.InfoLevel)

	cfg, err := config.New(c.String("config"))
	if err != nil {
		return err
	}

	if err := cfg.MkdirAll(); err != nil {
		return err
	}

	platformName := c.Args().Get(0)
	gameID := c.Args().Get(1)

	platform, err := cfg.Resolve(platformName)
	if err != nil {
		return err
	}

	state, err := library.OpenState(cfg.GetStatePath())
	if err != nil {
		return err
	}

	game := &library.Game{
		ID:               gameID,
		Platform:         platformName,
		URL:              c.String("url"),
		FileName:         c.String("file-name"),
		HasMultipleFiles: c.Bool("multiple-files"),
	}

	if game.URL == "" {
		manifest, err := library.LoadManifest(c.Context, cfg.Manifest, cfg.GetCachePath())
		if err != nil {
			return err
		}

		game = manifest.Find(platformName, gameID)
		if game == nil {
			return fmt.Errorf("game %s not found for platform %s", gameID, platformName)
		}
	}

	name := game.Name
	if name == "" {
		name = game.ID
	}

	if state.IsInstalled(game.ID) {
		log.Warnf("%s is already installed, reinstalling", game.ID)
	}

	log.Infof("romcellar/%s", common.AppVersion.Summary)
	log.Infof("platform: %s", platformName)
	log.Infof("    game: %s", name)
	log.Infof("     url: %s", game.URL)
	log.Infof(" library: %s", platform.Path)

	inst := installer.New(&installer.Options{Store: state})
	defer inst.Close()

	lastPercent := -1
	sink := progress.SinkFunc(func(e progress.Event) {
		if e.Percent == lastPercent {
			return
		}
		lastPercent = e.Percent
		log.Infof("[%3d%%] %s", e.Percent, e.Status)
	})

	outcome := inst.Run(c.Context, &installer.Request{
		GameID:           game.ID,
		GameName:         game.Name,
		URL:              game.URL,
		DestinationRoot:  platform.Path,
		FileName:         game.StagedName(),
		HasMultipleFiles: game.HasMultipleFiles,
		AutoExtract:      platform.AutoExtract && !c.Bool("no-extract"),
		Extensions:       platform.Extensions,
	}, sink)

	switch outcome.Result {
	case installer.Installed:
		log.Infof("installation complete")
		log.Infof("  dir: %s", outcome.InstallDir)
		if outcome.PrimaryPath != "" {
			log.Infof(" game: %s", outcome.PrimaryPath)
		}
		return nil
	case installer.Cancelled:
		log.Warnf("installation cancelled")
		return nil
	default:
		return outcome.Reason
	}
}

func Before(c *cli.Context) error {
	if c.NArg() != 2 {
		return fmt.Errorf("expected arguments: platform game")
	}

	return common.Before(c)
}

func Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:     "url",
			Usage:    "Install directly from a URL, bypassing the manifest",
			Category: "Source Selection",
		},
		&cli.StringFlag{
			Name:     "file-name",
			Usage:    "Override the staged file name (default is the URL base name)",
			Category: "Source Selection",
		},
		&cli.BoolFlag{
			Name:     "multiple-files",
			Usage:    "Treat the download as a container of multiple game files",
			Category: "Source Selection",
		},
		&cli.BoolFlag{
			Name:  "no-extract",
			Usage: "Disable automatic extraction for this install",
		},
	}
}

func init() {
	cmd := &cli.Command{
		Name:        "install",
		Usage:       "install a game into a platform library",
		Description: `download a game, unpack it when it is an archive and record it as installed`,
		Before:      Before,
		Flags:       append(Flags(), common.Flags()...),
		Action:      Execute,
		Args:        true,
		ArgsUsage:   " platform game",
	}

	common.RegisterCommand(cmd)
}
