package reconcile

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Kretzler-Lab/miktmc-uploader-pipeline/internal/logging"
	"github.com/Kretzler-Lab/miktmc-uploader-pipeline/internal/services"
)

// RunOptions parameterize a single reconciliation run.
type RunOptions struct {
	SourceStudyPK int64
	DefaultStudy  string
	DryRun        bool
}

// Session orchestrates one reconciliation run over a source collection. It
// owns the per-biopsy cache for the run's full duration; sessions are
// single-use and never shared.
type Session struct {
	ports    Ports
	areas    Areas
	logger   *slog.Logger
	resolver *Resolver
}

// NewSession wires a session against its external collaborators.
func NewSession(ports Ports, areas Areas, logger *slog.Logger) *Session {
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Session{
		ports:    ports,
		areas:    areas,
		logger:   logger,
		resolver: NewResolver(ports.Registry),
	}
}

// RegistryFetches reports the number of registry round trips issued so far.
func (s *Session) RegistryFetches() int {
	return s.resolver.Fetches()
}

// Run processes every image of the source collection exactly once, in
// listing order, and returns the per-run report. Per-image failures are
// recorded on their rows; only session-fatal errors (registry or platform
// transport failures) are returned, together with the partial report built
// so far.
func (s *Session) Run(ctx context.Context, opts RunOptions) (*Report, error) {
	runID := uuid.NewString()
	ctx = services.WithRunID(ctx, runID)
	logger := s.logger.With("run_id", runID, "source_pk", opts.SourceStudyPK, "dry_run", opts.DryRun)

	report := &Report{
		RunID:         runID,
		StartedAt:     time.Now().UTC(),
		SourceStudyPK: opts.SourceStudyPK,
		DefaultStudy:  opts.DefaultStudy,
		DryRun:        opts.DryRun,
	}

	images, err := s.ports.Platform.ImagesInStudy(ctx, opts.SourceStudyPK)
	if err != nil {
		return report, err
	}
	logger.Info("listing fetched", "images", len(images))

	rt := &router{
		platform:     s.ports.Platform,
		lookup:       s.ports.Lookup,
		resolver:     s.resolver,
		areas:        s.areas,
		defaultStudy: strings.TrimSpace(opts.DefaultStudy),
		dryRun:       opts.DryRun,
		logger:       logger,
	}

	for _, img := range images {
		imgCtx := services.WithImageTag(ctx, img.Tag)
		outcome, err := rt.process(imgCtx, img, opts.SourceStudyPK)
		if err != nil {
			// Transport-level failure: nothing after this point can be
			// trusted, abort without claiming completion.
			report.FinishedAt = time.Now().UTC()
			return report, err
		}
		report.Outcomes = append(report.Outcomes, outcome)
		logger.Debug("image reconciled",
			"tag", img.Tag,
			"biopsy_id", outcome.BiopsyID,
			"decision", outcome.Decision.String())
	}

	report.FinishedAt = time.Now().UTC()
	logger.Info("run complete",
		"processed", len(report.Outcomes),
		"registry_fetches", s.resolver.Fetches())
	return report, nil
}
