package main

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/spf13/cobra"

	"github.com/jcmexdev/order-saga/internal/order-service/adapters/store"
	"github.com/jcmexdev/order-saga/internal/pkg/config"
	"github.com/jcmexdev/order-saga/internal/pkg/telemetry"
)

func newRecoverCmd(configFile *string) *cobra.Command {
	var minAge time.Duration

	cmd := &cobra.Command{
		Use:   "recover",
		Short: "Roll back or complete create sagas left unfinished by a crash",
		Long: "Reads the saga log, completes sagas whose order was committed and " +
			"compensates the rest. Run it while the service is stopped, or with a " +
			"min-age larger than any request can take.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(*configFile)
			if err != nil {
				return err
			}
			if cfg.SagaLog.Path == "" {
				return errors.New("saga_log.path is empty; nothing to recover from")
			}
			if cfg.Store.Driver == store.DriverMemory {
				return errors.New("recover needs a durable order store; store.driver is memory")
			}
			telemetry.InitLogger(cfg.LogLevel)
			telemetry.InstallPropagators()
			if !cmd.Flags().Changed("min-age") {
				minAge = cfg.Recover.MinAge
			}

			c, err := build(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer c.Close()

			report, err := c.orchestrator.Recover(cmd.Context(), minAge)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(report); err != nil {
				return err
			}
			if len(report.CompensationFailed) > 0 || len(report.Errors) > 0 {
				return errors.New("some sagas need manual attention")
			}
			return nil
		},
	}
	cmd.Flags().DurationVar(&minAge, "min-age", time.Minute, "skip sagas with journal activity newer than this")
	return cmd
}
