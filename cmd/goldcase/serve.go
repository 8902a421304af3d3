package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"
	"github.com/urfave/cli/v3"

	"github.com/samcharles93/goldcase/internal/casegen"
	"github.com/samcharles93/goldcase/internal/logger"
	"github.com/samcharles93/goldcase/internal/server"
)

func serveCmd() *cli.Command {
	var (
		addr        string
		readTimeout time.Duration
		inMemory    bool
	)

	return &cli.Command{
		Name:  "serve",
		Usage: "Serve golden cases and the reference evaluator over HTTP",
		Flags: []cli.Flag{
			dirFlag("directory written by generate"),
			seedFlag(),
			&cli.BoolFlag{
				Name:        "generate",
				Usage:       "generate cases in memory instead of loading --out",
				Destination: &inMemory,
			},
			&cli.StringFlag{
				Name:        "addr",
				Usage:       "listen address",
				Value:       "127.0.0.1:8080",
				Destination: &addr,
			},
			&cli.DurationFlag{
				Name:        "read-timeout",
				Usage:       "read header timeout",
				Value:       30 * time.Second,
				Destination: &readTimeout,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			log := logger.FromContext(ctx)
			applyOutputConfig(cmd, cfg)
			applyServeConfig(cmd, cfg, &addr)

			store := server.NewCaseStore()
			if inMemory {
				if seed < 0 {
					return cli.Exit("error: --seed must not be negative", 1)
				}
				cases, err := casegen.Run(ctx, uint64(seed))
				if err != nil {
					return cli.Exit(fmt.Sprintf("error: %v", err), 1)
				}
				store.Replace(nil, cases)
			} else if err := store.Load(ctx, outDir); err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}

			e := echo.New()
			e.Use(middleware.RequestLogger())
			e.Use(middleware.Recover())
			server.NewServer(store).Register(e)

			log.Info("starting server", "address", addr, "cases", store.Len())
			sc := echo.StartConfig{
				Address: addr,
				BeforeServeFunc: func(srv *http.Server) error {
					srv.ReadHeaderTimeout = readTimeout
					return nil
				},
			}
			return sc.Start(ctx, e)
		},
	}
}
