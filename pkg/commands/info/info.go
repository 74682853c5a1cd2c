package info

import (
	"fmt"
	"runtime"
	"sort"

	"github.com/apex/log"
	"github.com/urfave/cli/v2"

	"github.com/romcellar/romcellar/pkg/common"
	"github.com/romcellar/romcellar/pkg/config"
)

func Execute(c *cli.Context) error {
	cfg, err := config.New(c.String("config"))
	if err != nil {
		return err
	}

	log.Infof("romcellar/%s", common.AppVersion.Summary)
	fmt.Println("")
	log.Infof("system information")
	log.Infof("     os: %s", runtime.GOOS)
	log.Infof("   arch: %s", runtime.GOARCH)
	fmt.Println("")
	log.Infof("configuration")
	log.Infof("   library: %s", cfg.Path)
	log.Infof("  manifest: %s", cfg.Manifest)
	log.Infof("     cache: %s", cfg.GetCachePath())
	log.Infof("     state: %s", cfg.GetStatePath())
	fmt.Println("")

	if len(cfg.Platforms) == 0 {
		log.Warnf("no platforms configured")
		return nil
	}

	names := make([]string, 0, len(cfg.Platforms))
	for name := range cfg.Platforms {
		names = append(names, name)
	}
	sort.Strings(names)

	log.Infof("platforms")
	for _, name := range names {
		platform, err := cfg.Resolve(name)
		if err != nil {
			return err
		}

		log.Infof("  %s: %s (auto_extract: %t)", name, platform.Path, platform.AutoExtract)
	}

	return nil
}

func Flags() []cli.Flag {
	return []cli.Flag{}
}

func init() {
	cmd := &cli.Command{
		Name:        "info",
		Usage:       "info",
		Description: `general information about romcellar and the rendered configuration`,
		Flags:       append(Flags(), common.Flags()...),
		Action:      Execute,
	}

	common.RegisterCommand(cmd)
}
