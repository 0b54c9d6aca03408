package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/urfave/cli/v3"

	"niftiverify/pkg/nifti"
	"niftiverify/pkg/report"
	"niftiverify/pkg/store"
	"niftiverify/pkg/summary"
)

func inspectCmd() *cli.Command {
	return &cli.Command{
		Name:      "inspect",
		Usage:     "Print the header fields and value statistics of a .nii file",
		ArgsUsage: "FILE",
		Flags:     []cli.Flag{jsonFlag()},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.NArg() != 1 {
				return fmt.Errorf("inspect takes exactly one file")
			}
			path := cmd.Args().First()
			b, err := store.ReadFile(path)
			if err != nil {
				return err
			}
			in, err := report.Inspect(b)
			if err != nil {
				return describe(path, err)
			}
			if cmd.Bool("json") {
				return report.WriteJSON(stdout(cmd), in)
			}
			return report.WriteInspection(stdout(cmd), in)
		},
	}
}

// comparison is the JSON output of compare.
type comparison struct {
	Report   nifti.CompareReport `json:"report"`
	Fidelity *summary.Fidelity   `json:"fidelity,omitempty"`
}

func compareCmd() *cli.Command {
	return &cli.Command{
		Name:      "compare",
		Usage:     "Compare two .nii files element by element",
		ArgsUsage: "A.nii B.nii",
		Flags:     []cli.Flag{jsonFlag()},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.NArg() != 2 {
				return fmt.Errorf("compare takes exactly two files")
			}
			a, err := decodeFile(cmd.Args().Get(0))
			if err != nil {
				return err
			}
			b, err := decodeFile(cmd.Args().Get(1))
			if err != nil {
				return err
			}

			c := comparison{Report: nifti.Compare(a, b)}
			if c.Report.ShapesMatch && !c.Report.ValuesMatch {
				if f, err := summary.Measure(a, b); err == nil {
					c.Fidelity = &f
				}
			}

			if cmd.Bool("json") {
				err = report.WriteJSON(stdout(cmd), c)
			} else {
				err = report.WriteCompare(stdout(cmd), c.Report, c.Fidelity)
			}
			if err != nil {
				return err
			}
			if !c.Report.Identical() {
				return errors.New("volumes differ")
			}
			return nil
		},
	}
}

func datatypesCmd() *cli.Command {
	return &cli.Command{
		Name:  "datatypes",
		Usage: "List the supported element kinds and their NIfTI-1 codes",
		Flags: []cli.Flag{jsonFlag()},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.Bool("json") {
				return report.WriteJSON(stdout(cmd), report.DatatypeRows(nifti.Datatypes()))
			}
			return report.WriteDatatypes(stdout(cmd), nifti.Datatypes())
		},
	}
}

func decodeFile(path string) (*nifti.VoxelArray, error) {
	b, err := store.ReadFile(path)
	if err != nil {
		return nil, err
	}
	v, err := nifti.Decode(b)
	if err != nil {
		return nil, describe(path, err)
	}
	return v, nil
}

// describe prefixes a codec error with the file and its stable message.
func describe(path string, err error) error {
	return fmt.Errorf("%s: %s: %w", path, report.Message(nifti.KindOf(err)), err)
}
