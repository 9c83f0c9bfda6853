package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newStudyCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "study",
		Short: "Inspect and manage stored studies",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List all studies",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(opts)
			if err != nil {
				return err
			}
			ctx, stop := signalContext()
			defer stop()

			conn, repo, err := connect(a)
			if err != nil {
				return err
			}
			defer conn.Close()

			studies, err := repo.ListStudies(ctx)
			if err != nil {
				return err
			}
			for _, s := range studies {
				fmt.Printf("%d\t%s\t%s\n", s.ID, s.Name, s.CreatedAt.Format("2006-01-02 15:04:05"))
			}
			return nil
		},
	}

	stats := &cobra.Command{
		Use:   "stats <name>",
		Short: "Show design statistics for one study",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(opts)
			if err != nil {
				return err
			}
			ctx, stop := signalContext()
			defer stop()

			conn, repo, err := connect(a)
			if err != nil {
				return err
			}
			defer conn.Close()

			st, err := repo.Stats(ctx, args[0])
			if err != nil {
				return err
			}
			return printJSON(st)
		},
	}

	rename := &cobra.Command{
		Use:   "rename <old> <new>",
		Short: "Rename a study",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(opts)
			if err != nil {
				return err
			}
			ctx, stop := signalContext()
			defer stop()

			conn, repo, err := connect(a)
			if err != nil {
				return err
			}
			defer conn.Close()

			return repo.RenameStudy(ctx, args[0], args[1])
		},
	}

	var keep int
	trim := &cobra.Command{
		Use:   "trim <name>",
		Short: "Delete all but a study's best designs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(opts)
			if err != nil {
				return err
			}
			ctx, stop := signalContext()
			defer stop()

			conn, repo, err := connect(a)
			if err != nil {
				return err
			}
			defer conn.Close()

			removed, err := repo.TrimStudy(ctx, args[0], keep)
			if err != nil {
				return err
			}
			fmt.Printf("removed %d designs\n", removed)
			return nil
		},
	}
	trim.Flags().IntVar(&keep, "keep", 1000, "number of lowest-objective designs to keep")

	var yes bool
	del := &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a study and all of its designs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return fmt.Errorf("refusing to delete study %q without --yes", args[0])
			}
			a, err := setup(opts)
			if err != nil {
				return err
			}
			ctx, stop := signalContext()
			defer stop()

			conn, repo, err := connect(a)
			if err != nil {
				return err
			}
			defer conn.Close()

			return repo.DeleteStudy(ctx, args[0])
		},
	}
	del.Flags().BoolVar(&yes, "yes", false, "confirm the deletion")

	cmd.AddCommand(list, stats, rename, trim, del)
	return cmd
}
