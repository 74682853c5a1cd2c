package inspect

import (
	"fmt"

	"github.com/apex/log"
	clilog "github.com/apex/log/handlers/cli"

	"github.com/urfave/cli/v2"

	"github.com/romcellar/romcellar/pkg/archive"
	"github.com/romcellar/romcellar/pkg/common"
	"github.com/romcellar/romcellar/pkg/download"
	"github.com/romcellar/romcellar/pkg/progress"
)

// Execute streams a remote zip and lists its entries without saving
// anything to disk. Only as much of the body is read as the listing needs.
func Execute(c *cli.Context) error {
	log.SetHandler(clilog.Default)

	url := c.Args().First()

	resp, err := download.Fetch(c.Context, nil, url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	entries, err := archive.ListEntries(c.Context, resp.Body)
	if err != nil {
		return err
	}

	if len(entries) == 0 {
		log.Warnf("no entries found")
		return nil
	}

	log.Infof("%d entries in %s", len(entries), url)

	for _, entry := range entries {
		size := "-"
		if entry.Size > 0 {
			size = progress.FormatBytes(entry.Size)
		}

		log.Infof("  %10s  %s", size, entry.Name)
	}

	return nil
}

func Before(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("expected argument: url")
	}

	return common.Before(c)
}

func init() {
	cmd := &cli.Command{
		Name:        "inspect",
		Usage:       "list the entries of a remote zip without installing it",
		Description: `list the entries of a remote zip archive without downloading the whole file`,
		Before:      Before,
		Flags:       common.Flags(),
		Action:      Execute,
		Args:        true,
		ArgsUsage:   " url",
	}

	common.RegisterCommand(cmd)
}
