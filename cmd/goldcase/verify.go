package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/goldcase/internal/casegen"
	"github.com/samcharles93/goldcase/internal/logger"
	"github.com/samcharles93/goldcase/internal/metrics"
	"github.com/samcharles93/goldcase/internal/tensorio"
)

func verifyCmd() *cli.Command {
	return &cli.Command{
		Name:  "verify",
		Usage: "Re-run exported cases through the reference kernels",
		Flags: []cli.Flag{
			dirFlag("directory written by generate"),
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			log := logger.FromContext(ctx)
			applyOutputConfig(cmd, cfg)

			m, cases, err := tensorio.ReadCases(ctx, outDir)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			log.Debug("loaded manifest", "run_id", m.RunID, "seed", m.Seed, "format", m.Format)

			failed := 0
			for _, c := range cases {
				err := casegen.Check(c)
				metrics.CasesVerifiedTotal.WithLabelValues(c.Node.OpType, metrics.Status(err)).Inc()
				if err != nil {
					failed++
					log.Error("case failed", "case", c.Name, "error", err)
					continue
				}
				log.Debug("case ok", "case", c.Name)
			}
			if failed > 0 {
				return cli.Exit(fmt.Sprintf("error: %d of %d cases failed", failed, len(cases)), 1)
			}
			log.Info("verified cases", "cases", len(cases), "dir", outDir)
			return nil
		},
	}
}
