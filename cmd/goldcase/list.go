package main

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/goldcase/internal/casegen"
	"github.com/samcharles93/goldcase/internal/shapeinfer"
	"github.com/samcharles93/goldcase/internal/tensorio"
)

func listCmd() *cli.Command {
	var cases bool

	return &cli.Command{
		Name:    "list",
		Aliases: []string{"ls"},
		Usage:   "List generators and operator schemas, or the cases in a directory",
		Flags: []cli.Flag{
			dirFlag("directory written by generate (with --cases)"),
			&cli.BoolFlag{
				Name:        "cases",
				Usage:       "list the cases recorded in the manifest",
				Destination: &cases,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			applyOutputConfig(cmd, cfg)
			tw := tabwriter.NewWriter(cmd.Root().Writer, 0, 0, 2, ' ', 0)
			defer func() { _ = tw.Flush() }()

			if cases {
				m, err := tensorio.ReadManifest(outDir)
				if err != nil {
					return cli.Exit(fmt.Sprintf("error: %v", err), 1)
				}
				_, _ = fmt.Fprintf(tw, "CASE\tOP\tINPUTS\tOUTPUTS\n")
				for _, e := range m.Cases {
					_, _ = fmt.Fprintf(tw, "%s\t%s\t%d\t%d\n", e.Name, e.OpType, e.Inputs, e.Outputs)
				}
				return nil
			}

			_, _ = fmt.Fprintf(tw, "GENERATOR\tOP\tDESCRIPTION\n")
			for _, g := range casegen.Generators() {
				_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\n", g.Name, g.OpType, g.Doc)
			}
			_, _ = fmt.Fprintf(tw, "\nOP\tSINCE\tINPUTS\tOUTPUTS\n")
			for _, s := range shapeinfer.Schemas() {
				_, _ = fmt.Fprintf(tw, "%s\t%d\t%s\t%s\n", s.OpType, s.Since, formalNames(s.Inputs), formalNames(s.Outputs))
			}
			return nil
		},
	}
}

func formalNames(fs []shapeinfer.Formal) string {
	names := make([]string, len(fs))
	for i, f := range fs {
		names[i] = f.Name
		if f.Optional {
			names[i] += "?"
		}
	}
	return strings.Join(names, ", ")
}
