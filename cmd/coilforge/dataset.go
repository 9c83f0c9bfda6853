package main

import (
	"github.com/spf13/cobra"

	"github.com/coilforge/coilforge/internal/application/dataset"
	redisdb "github.com/coilforge/coilforge/internal/infrastructure/database/redis"
	"github.com/coilforge/coilforge/internal/infrastructure/monitoring/logging"
)

func newDatasetCommand(opts *rootOptions) *cobra.Command {
	var (
		study   string
		nDesign int
		mode    string
		noDedup bool
	)

	cmd := &cobra.Command{
		Use:   "dataset",
		Short: "Generate a random design dataset for a study",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(opts)
			if err != nil {
				return err
			}

			if nDesign > 0 {
				a.cfg.Dataset.NDesign = nDesign
			}
			if mode != "" {
				a.cfg.Dataset.Mode = mode
			}

			ctx, stop := signalContext()
			defer stop()

			conn, repo, err := connect(a)
			if err != nil {
				return err
			}
			defer conn.Close()

			client, err := redisdb.NewClient(a.cfg.Redis, a.log)
			if err != nil {
				return err
			}
			defer client.Close()

			release, err := acquireStudyLock(ctx, a, client, study)
			if err != nil {
				return err
			}
			defer release()

			var runOpts []dataset.Option
			if !noDedup {
				cache := redisdb.NewSignatureCache(client, a.cfg.Redis, a.log, a.metrics)
				runOpts = append(runOpts, dataset.WithDedupCache(cache))
			}

			eval, err := newEvaluator(a)
			if err != nil {
				return err
			}

			runner, err := dataset.New(
				a.cfg.Dataset, a.cfg.Generator, a.cfg.Encoding, a.cfg.Board,
				eval, repo, a.log, a.metrics, runOpts...,
			)
			if err != nil {
				return err
			}

			stats, err := runner.Run(ctx, study)
			if err != nil {
				a.log.Error("dataset run failed", logging.String("study", study), logging.Err(err))
				return err
			}
			return printJSON(stats)
		},
	}

	cmd.Flags().StringVarP(&study, "study", "s", "", "study name (required)")
	cmd.Flags().IntVarP(&nDesign, "n-design", "n", 0, "number of designs to keep (overrides config)")
	cmd.Flags().StringVar(&mode, "mode", "", `generation mode: "single" or "iter" (overrides config)`)
	cmd.Flags().BoolVar(&noDedup, "no-dedup", false, "disable the geometry signature cache")
	_ = cmd.MarkFlagRequired("study")

	return cmd
}
