package main

import (
	"github.com/spf13/cobra"

	"github.com/coilforge/coilforge/internal/application/optimize"
	redisdb "github.com/coilforge/coilforge/internal/infrastructure/database/redis"
	"github.com/coilforge/coilforge/internal/infrastructure/monitoring/logging"
)

func newOptimizeCommand(opts *rootOptions) *cobra.Command {
	var (
		study   string
		nGen    int
		popSize int
	)

	cmd := &cobra.Command{
		Use:   "optimize",
		Short: "Optimize a study's geometry with differential evolution",
		Long:  "Runs differential evolution over the encoded design vector, seeding the\ninitial population with the study's best stored designs and archiving\nevery evaluated generation back into the database.",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(opts)
			if err != nil {
				return err
			}

			if nGen > 0 {
				a.cfg.Optimize.NGen = nGen
			}
			if popSize > 0 {
				a.cfg.Optimize.PopSize = popSize
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

			eval, err := newEvaluator(a)
			if err != nil {
				return err
			}

			opt, err := optimize.New(a.cfg.Optimize, eval, repo, repo, a.log, a.metrics)
			if err != nil {
				return err
			}

			res, err := opt.Run(ctx, study)
			if err != nil {
				a.log.Error("optimization failed", logging.String("study", study), logging.Err(err))
				return err
			}

			return printJSON(struct {
				Study       string  `json:"study"`
				BestObj     float64 `json:"best_obj"`
				BestCond    float64 `json:"best_cond"`
				Generations int     `json:"generations"`
				Evals       int64   `json:"evals"`
				Seeded      int     `json:"seeded"`
			}{
				Study:       study,
				BestObj:     res.Best.Obj,
				BestCond:    res.Best.Cond,
				Generations: res.Generations,
				Evals:       res.Evals,
				Seeded:      res.Seeded,
			})
		},
	}

	cmd.Flags().StringVarP(&study, "study", "s", "", "study name (required)")
	cmd.Flags().IntVar(&nGen, "n-gen", 0, "number of generations (overrides config)")
	cmd.Flags().IntVar(&popSize, "pop-size", 0, "population size (overrides config)")
	_ = cmd.MarkFlagRequired("study")

	return cmd
}
