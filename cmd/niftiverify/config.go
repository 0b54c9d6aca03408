package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"niftiverify/pkg/config"
)

func configCmd() *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "Create or export configuration files",
		Commands: []*cli.Command{
			{
				Name:      "init",
				Usage:     "Write a configuration file holding the defaults",
				ArgsUsage: "FILE",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "force",
						Usage: "overwrite an existing file",
					},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					path, err := configTarget(cmd)
					if err != nil {
						return err
					}
					if err := config.CreateDefaultConfigFile(path); err != nil {
						return err
					}
					fmt.Fprintf(stdout(cmd), "wrote %s\n", path)
					return nil
				},
			},
			{
				Name:      "save",
				Usage:     "Write the effective configuration, after --config and global flags",
				ArgsUsage: "FILE",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "force",
						Usage: "overwrite an existing file",
					},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					path, err := configTarget(cmd)
					if err != nil {
						return err
					}
					if err := config.SaveConfig(configFrom(ctx), path); err != nil {
						return err
					}
					fmt.Fprintf(stdout(cmd), "wrote %s\n", path)
					return nil
				},
			},
		},
	}
}

// configTarget returns the single FILE argument, refusing to replace an
// existing file unless --force is set.
func configTarget(cmd *cli.Command) (string, error) {
	if cmd.NArg() != 1 {
		return "", fmt.Errorf("%s takes exactly one file", cmd.Name)
	}
	path := cmd.Args().First()
	if _, err := os.Stat(path); err == nil && !cmd.Bool("force") {
		return "", fmt.Errorf("%s already exists, use --force to overwrite", path)
	}
	return path, nil
}
