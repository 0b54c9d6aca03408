package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v3"

	"niftiverify/internal/logger"
	"niftiverify/internal/models"
	"niftiverify/pkg/batch"
	"niftiverify/pkg/report"
	"niftiverify/pkg/store"
	"niftiverify/pkg/synth"
)

func roundtripCmd() *cli.Command {
	return &cli.Command{
		Name:  "roundtrip",
		Usage: "Decode every .nii file in a directory, re-encode it and verify the copy",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "in",
				Aliases: []string{"i"},
				Usage:   "input directory",
			},
			&cli.StringFlag{
				Name:    "out",
				Aliases: []string{"o"},
				Usage:   "output directory for re-encoded copies",
			},
			workersFlag(),
			jsonFlag(),
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			log := logger.FromContext(ctx)
			cfg := configFrom(ctx)

			inDir, outDir := cfg.Batch.InputDir, cfg.Batch.OutputDir
			if cmd.IsSet("in") {
				inDir = cmd.String("in")
			}
			if cmd.IsSet("out") {
				outDir = cmd.String("out")
			}
			if _, err := os.Stat(inDir); err != nil {
				return fmt.Errorf("input directory: %w", err)
			}

			in, err := store.Open(inDir)
			if err != nil {
				return err
			}
			out, err := store.Open(outDir)
			if err != nil {
				return err
			}

			results, summary, err := batch.NewRunner(workers(cmd, cfg.Batch.Workers), log).RunFiles(ctx, in, out)
			if err != nil {
				return err
			}
			return finish(stdout(cmd), cmd.Bool("json"), results, summary)
		},
	}
}

func selftestCmd() *cli.Command {
	return &cli.Command{
		Name:  "selftest",
		Usage: "Round trip synthetic fixtures of every element kind",
		Flags: append(fixtureFlags(),
			&cli.StringFlag{
				Name:  "out",
				Usage: "keep the encoded fixtures in this directory (default: temporary)",
			},
			workersFlag(),
			jsonFlag(),
		),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			log := logger.FromContext(ctx)
			cfg := configFrom(ctx)

			opts, err := generatorOptions(cmd, cfg)
			if err != nil {
				return err
			}
			fixtures, err := synth.NewGenerator(opts).Fixtures()
			if err != nil {
				return err
			}

			outDir := cmd.String("out")
			if outDir == "" {
				tmp, err := os.MkdirTemp("", "niftiverify-*")
				if err != nil {
					return err
				}
				defer os.RemoveAll(tmp)
				outDir = tmp
			}
			out, err := store.Open(outDir)
			if err != nil {
				return err
			}

			results, summary, err := batch.NewRunner(workers(cmd, cfg.Batch.Workers), log).RunFixtures(ctx, fixtures, out)
			if err != nil {
				return err
			}
			return finish(stdout(cmd), cmd.Bool("json"), results, summary)
		},
	}
}

func workers(cmd *cli.Command, fallback int) int {
	if cmd.IsSet("workers") {
		return cmd.Int("workers")
	}
	return fallback
}

// finish prints the run and turns any failed round trip into an error so
// the process exits non-zero.
func finish(w io.Writer, asJSON bool, results []models.Result, s models.RunSummary) error {
	var err error
	if asJSON {
		err = report.WriteJSON(w, report.Run{Summary: s, Results: results})
	} else {
		err = report.WriteResults(w, results, s)
	}
	if err != nil {
		return err
	}
	if s.Failed > 0 {
		return fmt.Errorf("%d of %d round trips failed", s.Failed, s.Total)
	}
	return nil
}
