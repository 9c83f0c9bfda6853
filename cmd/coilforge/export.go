package main

import (
	"github.com/spf13/cobra"

	"github.com/coilforge/coilforge/internal/domain/drc"
	"github.com/coilforge/coilforge/internal/domain/encoding"
	"github.com/coilforge/coilforge/internal/infrastructure/export"
	"github.com/coilforge/coilforge/internal/infrastructure/monitoring/logging"
	"github.com/coilforge/coilforge/internal/infrastructure/storage/minio"
)

func newExportCommand(opts *rootOptions) *cobra.Command {
	var (
		study  string
		limit  int
		upload bool
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export a study's best designs as CSV, JSON, and an SVG preview",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(opts)
			if err != nil {
				return err
			}
			if upload {
				a.cfg.Export.Upload = true
			}

			ctx, stop := signalContext()
			defer stop()

			conn, repo, err := connect(a)
			if err != nil {
				return err
			}
			defer conn.Close()

			designs, err := repo.BestDesigns(ctx, study, limit)
			if err != nil {
				return err
			}

			var store export.Uploader
			if a.cfg.Export.Upload {
				s, err := minio.NewStore(a.cfg.MinIO, a.log)
				if err != nil {
					return err
				}
				store = s
			}

			checker, err := drc.NewChecker(a.cfg.Rules, a.cfg.Generator, a.cfg.Encoding, a.cfg.Board)
			if err != nil {
				return err
			}
			codec, err := encoding.NewCodec(a.cfg.Encoding, a.cfg.Board)
			if err != nil {
				return err
			}

			exp, err := export.New(a.cfg.Export, store, a.log, a.metrics,
				export.WithOutline(checker.Outline()),
				export.WithTerminalMasks(codec.MaskSrc(), codec.MaskSink()))
			if err != nil {
				return err
			}

			m, err := exp.ExportStudy(ctx, study, designs)
			if err != nil {
				a.log.Error("export failed", logging.String("study", study), logging.Err(err))
				return err
			}
			return printJSON(m)
		},
	}

	cmd.Flags().StringVarP(&study, "study", "s", "", "study name (required)")
	cmd.Flags().IntVarP(&limit, "limit", "l", 1000, "maximum number of designs to export, best first")
	cmd.Flags().BoolVar(&upload, "upload", false, "push the artifacts to the object store")
	_ = cmd.MarkFlagRequired("study")

	return cmd
}
