package main

import (
	"context"
	"fmt"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/goldcase/internal/casegen"
	"github.com/samcharles93/goldcase/internal/logger"
	"github.com/samcharles93/goldcase/internal/metrics"
	"github.com/samcharles93/goldcase/internal/tensorio"
	"github.com/samcharles93/goldcase/internal/version"
)

func generateCmd() *cli.Command {
	var force bool

	return &cli.Command{
		Name:    "generate",
		Aliases: []string{"gen"},
		Usage:   "Generate golden cases and write them to disk",
		Flags: []cli.Flag{
			dirFlag("output directory"),
			formatFlag(),
			seedFlag(),
			&cli.StringSliceFlag{
				Name:  "op",
				Usage: "generator to run (repeatable; default: all)",
			},
			&cli.BoolFlag{
				Name:        "force",
				Usage:       "overwrite existing case directories",
				Destination: &force,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			log := logger.FromContext(ctx)
			applyOutputConfig(cmd, cfg)
			if seed < 0 {
				return cli.Exit("error: --seed must not be negative", 1)
			}
			codec, err := tensorio.Lookup(format)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}

			start := time.Now()
			cases, err := casegen.Run(ctx, uint64(seed), cmd.StringSlice("op")...)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			for _, c := range cases {
				metrics.CasesGeneratedTotal.WithLabelValues(c.Node.OpType).Inc()
			}

			m, err := tensorio.WriteCases(ctx, outDir, cases, tensorio.WriteOptions{
				Codec:   codec,
				Seed:    uint64(seed),
				Version: version.String(),
				Force:   force,
			})
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			elapsed := time.Since(start)
			metrics.GenerateDurationSeconds.Observe(elapsed.Seconds())

			log.Info("generated cases",
				"cases", len(m.Cases),
				"dir", outDir,
				"format", m.Format,
				"run_id", m.RunID,
				"took", elapsed.Round(time.Millisecond),
			)
			return nil
		},
	}
}
