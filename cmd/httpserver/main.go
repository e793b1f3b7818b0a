package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/ruteri/event-signin/cmd/flags"
	"github.com/ruteri/event-signin/common"
	"github.com/ruteri/event-signin/httpserver"
	"github.com/ruteri/event-signin/interfaces"
	"github.com/ruteri/event-signin/keys"
	"github.com/ruteri/event-signin/metrics"
	"github.com/ruteri/event-signin/signin"
	"github.com/ruteri/event-signin/storage"
	"github.com/urfave/cli/v2"
)

var flagListenAddr = &cli.StringFlag{
	Name:  "listen-addr",
	Value: "127.0.0.1:8080",
	Usage: "address to listen on for the sign-in form",
}

var flagTemplate = &cli.StringFlag{
	Name:  "template",
	Value: "",
	Usage: "path to the HTML template of the form (built-in template if empty)",
}

func main() {
	app := &cli.App{
		Name:    "signin-server",
		Usage:   "Serve the event sign-in form",
		Version: common.Version,
		Flags: append([]cli.Flag{
			flagListenAddr,
			flagTemplate,
			flags.KeysFileFlag,
			flags.StorageFlag,
			flags.TrustProxyFlag,
		}, flags.CommonFlags...),
		Action: func(cCtx *cli.Context) error {
			logger := flags.SetupLogger(cCtx)
			cfg := flags.ConfigureServer(cCtx, logger, cCtx.String(flagListenAddr.Name))

			var locations []interfaces.StoreLocation
			for _, uri := range cCtx.StringSlice(flags.StorageFlag.Name) {
				location, err := interfaces.NewStoreLocation(uri)
				if err != nil {
					logger.Error("Invalid storage location", "uri", uri, "err", err)
					return err
				}
				locations = append(locations, location)
			}

			store, err := storage.NewStoreFactory(logger).CreateMultiStore(locations)
			if err != nil {
				logger.Error("Failed to create attendance store", "err", err)
				return err
			}
			logger.Info("Attendance store configured", "location", store.LocationURI())

			metricsSrv, err := metrics.New(common.PackageName, cfg.MetricsAddr)
			if err != nil {
				logger.Error("Failed to create metrics server", "err", err)
				return err
			}

			keysFile := cCtx.String(flags.KeysFileFlag.Name)
			signinHandler, err := signin.New(cCtx.String(flagTemplate.Name), keys.NewFileSource(keysFile), metricsSrv.InstrumentStore(store), logger)
			if err != nil {
				logger.Error("Failed to initialize sign-in form", "keysFile", keysFile, "err", err)
				return fmt.Errorf("failed to initialize sign-in form: %w", err)
			}

			server, err := httpserver.New(cfg, httpserver.NewHandler(signinHandler, metricsSrv, logger), metricsSrv)
			if err != nil {
				logger.Error("Failed to create server", "err", err)
				return err
			}

			logger.Info("Starting server")
			server.RunInBackground()

			// Wait for termination signal
			exit := make(chan os.Signal, 1)
			signal.Notify(exit, os.Interrupt, syscall.SIGTERM)

			logger.Info("Server is running, press Ctrl+C to stop")
			<-exit
			logger.Info("Shutdown signal received")

			server.Shutdown()
			logger.Info("Server shutdown complete")

			return nil
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
