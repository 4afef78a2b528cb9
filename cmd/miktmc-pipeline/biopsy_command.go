package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/Kretzler-Lab/miktmc-uploader-pipeline/internal/reconcile"
)

func newBiopsyCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "biopsy <biopsy-id>",
		Short: "Show the registry metadata resolved for one biopsy",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			registry, err := ctx.registryClient()
			if err != nil {
				return err
			}

			resolver := reconcile.NewResolver(registry)
			record, slides, err := resolver.Resolve(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderTable(
				[]string{"Field", "Value"},
				[][]string{
					{"Biopsy ID", record.BiopsyID},
					{"Study ID", record.StudyID},
					{"Organ", record.Organ},
					{"Biopsy date", record.BiopsyDate},
					{"Disease", record.Disease},
					{"NPT patient study ID", record.NeptunePatientID},
					{"CGN patient study ID", record.CureGNPatientID},
					{"Tissue comment", record.TissueComment},
					{"Event type", record.EventType},
					{"Expected slides", strconv.Itoa(record.ExpectedSlideCount)},
					{"Expected EM images", strconv.Itoa(record.ExpectedEMCount)},
				},
				[]columnAlignment{alignLeft, alignLeft},
			))

			if len(slides) == 0 {
				fmt.Fprintln(out, "No slides recorded.")
				return nil
			}

			rows := make([][]string, 0, len(slides))
			for _, slide := range slides {
				rows = append(rows, []string{slide.Barcode, slide.Level, slide.Stain})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Barcode", "Level", "Stain"},
				rows,
				[]columnAlignment{alignLeft, alignRight, alignLeft},
			))
			return nil
		},
	}
}
