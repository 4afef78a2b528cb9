package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/Kretzler-Lab/miktmc-uploader-pipeline/internal/config"
	"github.com/Kretzler-Lab/miktmc-uploader-pipeline/internal/reconcile"
)

func newCountsCommand(ctx *commandContext) *cobra.Command {
	var studyPK int64
	var em bool

	cmd := &cobra.Command{
		Use:   "counts <biopsy-id>",
		Short: "Compare platform image counts against registry expectations",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			studyPK = countsSourceStudy(cfg, em, studyPK)

			platform, err := ctx.dialPlatform(cmd.Context())
			if err != nil {
				return err
			}
			defer platform.Close()

			registry, err := ctx.registryClient()
			if err != nil {
				return err
			}

			ports := reconcile.Ports{Platform: platform, Registry: registry}
			compare := reconcile.CompareSlideCounts
			kind := "WSI"
			if em {
				compare = reconcile.CompareEMSlideCounts
				kind = "EM"
			}
			comparison, err := compare(cmd.Context(), ports, studyPK, args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderTable(
				[]string{"Biopsy", "Kind", "Platform", "Registry"},
				[][]string{{
					comparison.BiopsyID,
					kind,
					strconv.Itoa(comparison.PlatformCount),
					strconv.Itoa(comparison.RegistryCount),
				}},
				[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight},
			))
			if comparison.Match() {
				fmt.Fprintln(out, "Counts match.")
			} else {
				fmt.Fprintln(out, "Counts differ.")
			}
			return nil
		},
	}

	cmd.Flags().Int64Var(&studyPK, "study-pk", 0, "Study to count images in (defaults to the incoming study, or the intermediate study with --em)")
	cmd.Flags().BoolVar(&em, "em", false, "Compare electron-microscopy counts instead of slide counts")
	return cmd
}

// countsSourceStudy picks the collection to count in when no explicit
// --study-pk was given. WSI images are counted where they arrive; EM images
// are compared in the intermediate area, which is where the pipeline parks
// them.
func countsSourceStudy(cfg *config.Config, em bool, flagValue int64) int64 {
	if flagValue != 0 {
		return flagValue
	}
	if em {
		return cfg.HaloLink.IntermediateStudyPK
	}
	return cfg.HaloLink.IncomingStudyPK
}
