package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"github.com/Kretzler-Lab/miktmc-uploader-pipeline/internal/journal"
	"github.com/Kretzler-Lab/miktmc-uploader-pipeline/internal/reconcile"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var studyPK int64
	var defaultStudy string
	var dryRun bool
	var reportPath string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Reconcile and route every image in the incoming study",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			lock := flock.New(cfg.Paths.LockPath)
			held, err := lock.TryLock()
			if err != nil {
				return fmt.Errorf("acquire run lock: %w", err)
			}
			if !held {
				return errors.New("another reconciliation run is already in progress")
			}
			defer func() { _ = lock.Unlock() }()

			logger, err := ctx.logger()
			if err != nil {
				return err
			}

			if studyPK == 0 {
				studyPK = cfg.HaloLink.IncomingStudyPK
			}
			if studyPK == 0 {
				return errors.New("incoming study is not configured; set halolink.incoming_study_pk or pass --study-pk")
			}
			if defaultStudy == "" {
				defaultStudy = cfg.Pipeline.DefaultStudy
			}
			if cfg.Pipeline.DryRun {
				dryRun = true
			}

			runCtx := cmd.Context()

			platform, err := ctx.dialPlatform(runCtx)
			if err != nil {
				return err
			}
			defer platform.Close()

			registry, err := ctx.registryClient()
			if err != nil {
				return err
			}

			ports := reconcile.Ports{Platform: platform, Registry: registry}
			lookup, err := ctx.connectLookup(runCtx)
			if err != nil {
				logger.Warn("uploader store unavailable, study backfill will use the default study", "error", err)
			} else if lookup != nil {
				defer func() { _ = lookup.Close(runCtx) }()
				ports.Lookup = lookup
			}

			areas := reconcile.Areas{
				IntermediatePK:    cfg.HaloLink.IntermediateStudyPK,
				IntermediateLabel: cfg.HaloLink.IntermediateLabel,
				FinalPK:           cfg.HaloLink.FinalStudyPK,
				FinalLabel:        cfg.HaloLink.FinalLabel,
			}

			session := reconcile.NewSession(ports, areas, logger)
			report, runErr := session.Run(runCtx, reconcile.RunOptions{
				SourceStudyPK: studyPK,
				DefaultStudy:  defaultStudy,
				DryRun:        dryRun,
			})

			out := cmd.OutOrStdout()
			if report != nil && len(report.Outcomes) > 0 {
				target := reportPath
				if target == "" {
					target = filepath.Join(cfg.Paths.ReportDir, "report-"+report.RunID+".csv")
				}
				if err := writeReport(report, target); err != nil {
					if runErr == nil {
						runErr = err
					} else {
						logger.Error("write report failed", "path", target, "error", err)
					}
				} else {
					fmt.Fprintf(out, "Report written to %s\n", target)
				}

				store, err := journal.Open(cfg.Paths.JournalPath)
				if err != nil {
					logger.Error("open journal failed", "path", cfg.Paths.JournalPath, "error", err)
				} else {
					if err := store.RecordRun(runCtx, report); err != nil {
						logger.Error("record run failed", "run_id", report.RunID, "error", err)
					}
					_ = store.Close()
				}
			}

			if runErr != nil {
				return fmt.Errorf("reconciliation run stopped early: %w", runErr)
			}

			fmt.Fprintln(out, headline(out, fmt.Sprintf("Run %s complete", report.RunID)))
			fmt.Fprintln(out, renderTable(
				[]string{"Decision", "Count"},
				decisionRows(report),
				[]columnAlignment{alignLeft, alignRight},
			))
			fmt.Fprintf(out, "Processed %d images (%d registry fetches).\n",
				len(report.Outcomes), session.RegistryFetches())
			return nil
		},
	}

	cmd.Flags().Int64Var(&studyPK, "study-pk", 0, "Source study to reconcile (defaults to halolink.incoming_study_pk)")
	cmd.Flags().StringVar(&defaultStudy, "default-study", "", "Study label used when no lookup result exists")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Compute decisions without attaching or moving anything")
	cmd.Flags().StringVar(&reportPath, "report", "", "Report destination (defaults under the report directory)")
	return cmd
}

func writeReport(report *reconcile.Report, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create report directory: %w", err)
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create report file: %w", err)
	}
	defer file.Close()
	if err := report.WriteCSV(file); err != nil {
		return err
	}
	return file.Close()
}

func decisionRows(report *reconcile.Report) [][]string {
	counts := make(map[string]int)
	order := make([]string, 0, 4)
	for _, outcome := range report.Outcomes {
		key := outcome.Decision.String()
		if _, seen := counts[key]; !seen {
			order = append(order, key)
		}
		counts[key]++
	}
	rows := make([][]string, 0, len(order))
	for _, key := range order {
		rows = append(rows, []string{key, strconv.Itoa(counts[key])})
	}
	return rows
}
