package common

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

var commands []*cli.Command

// RegisterCommand adds a command to the application. Command packages call
// this from their init functions and main pulls them in with blank imports.
func RegisterCommand(cmd *cli.Command) {
	logrus.Debugf("registering command: %s", cmd.Name)
	commands = append(commands, cmd)
}

// GetCommands returns all registered commands.
func GetCommands() []*cli.Command {
	return commands
}

// Flags are the global flags shared by every command.
func Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Usage:   fmt.Sprintf("specify the configuration file to use, defaults to $HOME/.%s.yaml", NAME),
			EnvVars: []string{"ROMCELLAR_CONFIG"},
		},
		&cli.StringFlag{
			Name:    "log-level",
			Usage:   "Log Level",
			Aliases: []string{"l"},
			EnvVars: []string{"LOGLEVEL"},
			Value:   "info",
		},
		&cli.BoolFlag{
			Name:  "log-caller",
			Usage: "log the caller (aka line number and file)",
		},
	}
}

// Before is the global before hook, it configures the debug logger from the
// global flags.
func Before(c *cli.Context) error {
	formatter := &logrus.TextFormatter{
		DisableTimestamp: true,
	}
	logrus.SetFormatter(formatter)

	level, err := logrus.ParseLevel(c.String("log-level"))
	if err != nil {
		return err
	}
	logrus.SetLevel(level)

	if c.Bool("log-caller") {
		logrus.SetReportCaller(true)
	}

	return nil
}
