package main

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"
	"github.com/urfave/cli/v3"

	"niftiverify/internal/logger"
	"niftiverify/pkg/server"
)

func serveCmd() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the inspection and round-trip API",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "addr",
				Usage: "listen address",
			},
			&cli.DurationFlag{
				Name:  "read-timeout",
				Usage: "read header timeout",
			},
			&cli.Int64Flag{
				Name:  "max-body",
				Usage: "largest accepted upload in bytes",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			log := logger.FromContext(ctx)
			cfg := configFrom(ctx)

			addr := cfg.Server.Address
			if cmd.IsSet("addr") {
				addr = cmd.String("addr")
			}
			readTimeout := cfg.Server.ReadTimeout
			if cmd.IsSet("read-timeout") {
				readTimeout = cmd.Duration("read-timeout")
			}
			maxBody := cfg.Server.MaxBodyBytes
			if cmd.IsSet("max-body") {
				maxBody = cmd.Int64("max-body")
			}

			e := echo.New()
			e.Use(middleware.RequestLogger())
			e.Use(middleware.Recover())
			server.NewServer(server.Options{MaxBodyBytes: maxBody, Logger: log}).Register(e)

			log.Info("starting server", "address", addr, "maxBodyBytes", maxBody)
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
