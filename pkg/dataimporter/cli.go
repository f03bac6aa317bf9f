package dataimporter

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/busatlas/busatlas/pkg/database"
	"github.com/busatlas/busatlas/pkg/dataimporter/datasets"
	"github.com/busatlas/busatlas/pkg/dataimporter/manager"
	"github.com/busatlas/busatlas/pkg/redis_client"
	"github.com/busatlas/busatlas/pkg/timetable"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	_ "time/tzdata"
)

func RegisterCLI() *cli.Command {
	return &cli.Command{
		Name:  "data-importer",
		Usage: "Download & import timetable datasets",
		Subcommands: []*cli.Command{
			{
				Name:  "dataset",
				Usage: "Import a dataset",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "id",
						Usage:    "ID of the dataset",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "repeat-every",
						Usage:    "Repeat this import every X duration",
						Required: false,
					},
					&cli.BoolFlag{
						Name:  "force",
						Usage: "Import even when the archive is unchanged",
					},
				},
				Action: func(c *cli.Context) error {
					if err := database.Connect(); err != nil {
						return err
					}
					if err := redis_client.Connect(); err != nil {
						log.Fatal().Err(err).Msg("Failed to connect to Redis")
					}

					datasetID := c.String("id")
					forceImport := c.Bool("force")

					repeatEvery := c.String("repeat-every")
					repeat := repeatEvery != ""
					var repeatDuration time.Duration
					if repeat {
						var err error
						repeatDuration, err = time.ParseDuration(repeatEvery)
						if err != nil {
							return err
						}
					}

					dataset, err := manager.GetDataset(datasetID)
					if err != nil {
						return err
					}

					for {
						startTime := time.Now()

						if err := manager.ImportDataset(&dataset, forceImport); err != nil {
							return err
						}
						if !repeat {
							break
						}

						executionDuration := time.Since(startTime)
						log.Info().Msgf("Operation took %s", executionDuration.String())

						waitTime := repeatDuration - executionDuration
						if waitTime.Seconds() > 0 {
							time.Sleep(waitTime)
						}
					}

					return nil
				},
			},
			{
				Name:  "list",
				Usage: "List every registered dataset",
				Action: func(c *cli.Context) error {
					for _, dataset := range datasets.GetRegisteredDataSets() {
						log.Info().
							Str("id", dataset.Identifier).
							Str("format", string(dataset.Format)).
							Str("provider", dataset.Provider.Name).
							Bool("completesource", dataset.CompleteSource).
							Send()
					}
					return nil
				},
			},
			{
				Name:  "bank-holidays",
				Usage: "Refresh the bank holiday table from the gov.uk feed",
				Action: func(c *cli.Context) error {
					if err := database.Connect(); err != nil {
						return err
					}

					holidays, err := timetable.LoadBankHolidays()
					if err != nil {
						return err
					}

					store := database.Store{}
					if err := store.SaveBankHolidays(context.Background(), holidays); err != nil {
						return err
					}

					log.Info().Int("holidays", len(holidays)).Msg("Bank holiday table refreshed")
					return nil
				},
			},
			{
				Name:  "realtime",
				Usage: "Continuously apply every registered realtime dataset",
				Action: func(c *cli.Context) error {
					if err := database.Connect(); err != nil {
						return err
					}
					if err := redis_client.Connect(); err != nil {
						log.Fatal().Err(err).Msg("Failed to connect to Redis")
					}

					for _, dataset := range datasets.GetRegisteredDataSets() {
						if dataset.Format != datasets.DataSetFormatGTFSRealtime {
							continue
						}

						go func(dataset datasets.DataSet) {
							repeatDuration := 2 * time.Minute
							log.Info().
								Str("interval", repeatDuration.String()).
								Str("id", dataset.Identifier).
								Msg("Loaded realtime dataset")

							for {
								startTime := time.Now()

								if err := manager.ImportDataset(&dataset, false); err != nil {
									log.Error().Err(err).Str("id", dataset.Identifier).Msg("Failed to import dataset")
									time.Sleep(1 * time.Minute)
								}

								executionDuration := time.Since(startTime)
								log.Info().Str("id", dataset.Identifier).Msgf("Operation took %s", executionDuration.String())

								waitTime := repeatDuration - executionDuration
								if waitTime.Seconds() > 0 {
									time.Sleep(waitTime)
								}
							}
						}(dataset)
					}

					signals := make(chan os.Signal, 1)
					signal.Notify(signals, syscall.SIGINT)
					defer signal.Stop(signals)

					<-signals // wait for signal
					go func() {
						<-signals // hard exit on second signal (in case shutdown gets stuck)
						os.Exit(1)
					}()

					return nil
				},
			},
		},
	}
}
