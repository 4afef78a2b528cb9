package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/Kretzler-Lab/miktmc-uploader-pipeline/internal/journal"
)

func newRunsCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recorded reconciliation runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openJournal(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			runs, err := store.ListRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No runs recorded.")
				return nil
			}

			rows := make([][]string, 0, len(runs))
			for _, run := range runs {
				rows = append(rows, []string{
					run.RunID,
					run.StartedAt.Local().Format(time.RFC3339),
					run.FinishedAt.Sub(run.StartedAt).Round(time.Second).String(),
					run.DefaultStudy,
					yesNo(run.DryRun),
					strconv.Itoa(run.Processed),
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"Run", "Started", "Duration", "Study", "Dry run", "Images"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft, alignLeft, alignRight},
			))
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of runs to list")
	cmd.AddCommand(newRunsShowCommand(ctx))
	return cmd
}

func newRunsShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show the per-image decisions of one run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openJournal(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			images, err := store.RunImages(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if len(images) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "No images recorded for run %s.\n", args[0])
				return nil
			}

			rows := make([][]string, 0, len(images))
			for _, image := range images {
				rows = append(rows, []string{
					image.ImageTag,
					image.BiopsyID,
					image.Decision,
					image.Action,
					image.ErrorMessage,
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"Image", "Biopsy", "Decision", "Action", "Warnings"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignLeft},
			))
			return nil
		},
	}
}

func openJournal(ctx *commandContext) (*journal.Store, error) {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return nil, err
	}
	return journal.Open(cfg.Paths.JournalPath)
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
