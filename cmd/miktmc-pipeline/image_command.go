package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func newImageCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "image <image-pk>",
		Short: "Show a platform image and its attached field values",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pk, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid image pk %q: %w", args[0], err)
			}

			platform, err := ctx.dialPlatform(cmd.Context())
			if err != nil {
				return err
			}
			defer platform.Close()

			img, err := platform.ImageByPK(cmd.Context(), pk)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderTable(
				[]string{"Field", "Value"},
				[][]string{
					{"PK", strconv.FormatInt(img.PK, 10)},
					{"ID", img.ID},
					{"Location", img.Location},
					{"Tag", img.Tag},
					{"Barcode", img.Barcode},
					{"Stain", img.Stain},
				},
				[]columnAlignment{alignLeft, alignLeft},
			))

			if len(img.FieldValues) == 0 {
				fmt.Fprintln(out, "No annotation fields attached.")
				return nil
			}
			rows := make([][]string, 0, len(img.FieldValues))
			for _, fv := range img.FieldValues {
				rows = append(rows, []string{fv.Name, fv.Value})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Annotation", "Value"},
				rows,
				[]columnAlignment{alignLeft, alignLeft},
			))
			return nil
		},
	}
}
