package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/urfave/cli/v3"

	"niftiverify/pkg/nifti"
)

func fixtureFlags() []cli.Flag {
	return []cli.Flag{
		&cli.Uint64Flag{
			Name:  "seed",
			Usage: "random seed for fixture contents",
		},
		&cli.StringFlag{
			Name:  "shape",
			Usage: "fixture shape as comma separated sizes, e.g. 25,25,25",
		},
		&cli.StringSliceFlag{
			Name:  "kinds",
			Usage: "element kinds to generate (default: all)",
		},
	}
}

func workersFlag() cli.Flag {
	return &cli.IntFlag{
		Name:    "workers",
		Aliases: []string{"j"},
		Usage:   "number of concurrent round trips",
	}
}

func jsonFlag() cli.Flag {
	return &cli.BoolFlag{
		Name:  "json",
		Usage: "print JSON instead of a table",
	}
}

// parseShape parses "25,25,25" or "25x25x25".
func parseShape(s string) ([]int, error) {
	fields := strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == 'x' || r == ' ' })
	if len(fields) == 0 {
		return nil, fmt.Errorf("empty shape %q", s)
	}
	shape := make([]int, len(fields))
	for i, f := range fields {
		n, err := strconv.Atoi(f)
		if err != nil {
			return nil, fmt.Errorf("invalid shape %q: %w", s, err)
		}
		shape[i] = n
	}
	return shape, nil
}

// parseKinds parses kind names; each value may itself be a comma separated
// list.
func parseKinds(values []string) ([]nifti.ElementKind, error) {
	var kinds []nifti.ElementKind
	for _, v := range values {
		for _, name := range strings.Split(v, ",") {
			if strings.TrimSpace(name) == "" {
				continue
			}
			k, err := nifti.ParseKind(name)
			if err != nil {
				return nil, err
			}
			kinds = append(kinds, k)
		}
	}
	return kinds, nil
}
