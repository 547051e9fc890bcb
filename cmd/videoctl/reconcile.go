package main

import (
	"alcyxob/navistream/internal/config"
	"alcyxob/navistream/internal/logging"
	"alcyxob/navistream/internal/reconcile"
	"alcyxob/navistream/internal/repository/mongo"
	"alcyxob/navistream/internal/storage"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func getReconcileCmd() *cobra.Command {
	var (
		configDir   string
		dryRun      bool
		grace       time.Duration
		concurrency int
	)
	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Delete stored objects that have no video record",
		Long: "reconcile lists every object under the upload folder, groups them by public id " +
			"and deletes the groups older than --grace that no video record references.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(configDir)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logger := logging.New(cfg.Log)

			dbClient, err := mongo.ConnectDB(cfg.Database.URI)
			if err != nil {
				return fmt.Errorf("connect to MongoDB: %w", err)
			}
			defer func() {
				if err := mongo.DisconnectDB(dbClient); err != nil {
					logger.Error().Err(err).Msg("failed to disconnect MongoDB")
				}
			}()
			videos := mongo.NewMongoVideoRepository(dbClient.Database(cfg.Database.Name))

			store, err := storage.New(cmd.Context(), cfg.Storage, cfg.S3, logger)
			if err != nil {
				return fmt.Errorf("open storage: %w", err)
			}

			janitor := &reconcile.Janitor{
				Store:       store,
				Records:     videos,
				Folder:      cfg.Upload.Folder,
				GracePeriod: grace,
				DryRun:      dryRun,
				Concurrency: concurrency,
				Log:         logger,
			}
			report, err := janitor.Sweep(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, id := range report.Orphans {
				fmt.Fprintf(out, "%s %s\n", color.YellowString("orphan"), id)
			}
			fmt.Fprintf(out, "scanned %d assets, %d orphaned, deleted %d objects, %d errors\n",
				report.Scanned, len(report.Orphans), report.Deleted, report.Errors)
			if dryRun && len(report.Orphans) > 0 {
				fmt.Fprintln(out, "dry run: nothing was deleted")
			}
			if report.Errors > 0 {
				return fmt.Errorf("%d objects could not be checked or deleted", report.Errors)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&configDir, "config", ".", "directory containing config.yaml")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "report orphans without deleting")
	cmd.Flags().DurationVar(&grace, "grace", time.Hour, "only delete assets older than this")
	cmd.Flags().IntVar(&concurrency, "concurrency", 4, "parallel deletes")
	return cmd
}
