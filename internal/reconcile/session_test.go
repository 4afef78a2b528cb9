package reconcile_test

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/Kretzler-Lab/miktmc-uploader-pipeline/internal/metadata"
	"github.com/Kretzler-Lab/miktmc-uploader-pipeline/internal/reconcile"
	"github.com/Kretzler-Lab/miktmc-uploader-pipeline/internal/services"
	"github.com/Kretzler-Lab/miktmc-uploader-pipeline/internal/services/halolink"
	"github.com/Kretzler-Lab/miktmc-uploader-pipeline/internal/services/redcap"
	"github.com/Kretzler-Lab/miktmc-uploader-pipeline/internal/services/uploader"
)

var testAreas = reconcile.Areas{
	IntermediatePK:    201,
	IntermediateLabel: "Escrow 1",
	FinalPK:           202,
	FinalLabel:        "Escrow 2",
}

func wsiImage(pk int64, tag, barcode string) halolink.Image {
	return halolink.Image{PK: pk, ID: "img-" + tag, Tag: tag, Barcode: barcode}
}

func TestSessionRoutesCompleteSlideToFinal(t *testing.T) {
	t.Parallel()

	platform := &fakePlatform{images: []halolink.Image{wsiImage(7, "A1_2_BC1.svs", "BC1")}}
	registry := &fakeRegistry{records: map[string][]redcap.Record{
		"A1_2": {biopsyRow("NPT-7", "3", 1, "BC")},
	}}

	session := reconcile.NewSession(reconcile.Ports{Platform: platform, Registry: registry}, testAreas, nil)
	report, err := session.Run(context.Background(), reconcile.RunOptions{
		SourceStudyPK: 100,
		DefaultStudy:  "NEPTUNE",
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(report.Outcomes) != 1 {
		t.Fatalf("got %d outcomes, want 1", len(report.Outcomes))
	}

	outcome := report.Outcomes[0]
	if outcome.Decision != reconcile.DecisionRouteFinal {
		t.Fatalf("Decision = %s, want route-final", outcome.Decision)
	}
	if outcome.Action != "ACTION: Attached available metadata and moved to Escrow 2" {
		t.Fatalf("Action = %q", outcome.Action)
	}

	if len(platform.fieldCalls) != 1 {
		t.Fatalf("got %d field updates, want 1", len(platform.fieldCalls))
	}
	updates := platform.fieldCalls[0].updates
	if len(updates) != 11 {
		t.Fatalf("attach payload has %d fields, want 11", len(updates))
	}
	if updates[0].Field != halolink.FieldStudyID || updates[0].Value != "NEPTUNE" {
		t.Fatalf("first update = %+v, want the study label", updates[0])
	}
	if updates[2].Field != halolink.FieldImageType || updates[2].Value != "WSImage" {
		t.Fatalf("image type update = %+v", updates[2])
	}

	if len(platform.moveCalls) != 1 {
		t.Fatalf("got %d moves, want 1", len(platform.moveCalls))
	}
	move := platform.moveCalls[0]
	if move.imagePK != 7 || move.fromPK != 100 || move.toPK != testAreas.FinalPK {
		t.Fatalf("move = %+v", move)
	}
}

func TestSessionDryRunIssuesNoPlatformWrites(t *testing.T) {
	t.Parallel()

	images := []halolink.Image{wsiImage(7, "A1_2_BC1.svs", "BC1")}
	records := map[string][]redcap.Record{"A1_2": {biopsyRow("NPT-7", "3", 1, "BC")}}
	opts := reconcile.RunOptions{SourceStudyPK: 100, DefaultStudy: "NEPTUNE", DryRun: true}

	runOnce := func() (*reconcile.Report, *fakePlatform) {
		platform := &fakePlatform{images: images}
		registry := &fakeRegistry{records: records}
		session := reconcile.NewSession(reconcile.Ports{Platform: platform, Registry: registry}, testAreas, nil)
		report, err := session.Run(context.Background(), opts)
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
		return report, platform
	}

	report, platform := runOnce()
	if len(platform.fieldCalls) != 0 || len(platform.moveCalls) != 0 {
		t.Fatalf("dry run touched the platform: %d updates, %d moves",
			len(platform.fieldCalls), len(platform.moveCalls))
	}
	outcome := report.Outcomes[0]
	if outcome.Action != "DRY RUN ACTION: Attached available metadata and moved to Escrow 2" {
		t.Fatalf("Action = %q", outcome.Action)
	}

	// Repeated dry runs over unchanged inputs render byte-identical reports.
	var first, second bytes.Buffer
	if err := report.WriteCSV(&first); err != nil {
		t.Fatalf("WriteCSV() error = %v", err)
	}
	secondReport, _ := runOnce()
	if err := secondReport.WriteCSV(&second); err != nil {
		t.Fatalf("WriteCSV() error = %v", err)
	}
	if !bytes.Equal(first.Bytes(), second.Bytes()) {
		t.Fatalf("dry-run reports differ:\n%s\n---\n%s", first.String(), second.String())
	}
}

func TestSessionSkipsUnknownBiopsyAndContinues(t *testing.T) {
	t.Parallel()

	platform := &fakePlatform{images: []halolink.Image{
		wsiImage(7, "Z9_9_BC1.svs", "BC1"),
		wsiImage(8, "A1_2_BC1.svs", "BC1"),
	}}
	registry := &fakeRegistry{records: map[string][]redcap.Record{
		"A1_2": {biopsyRow("NPT-7", "3", 1, "BC")},
	}}

	session := reconcile.NewSession(reconcile.Ports{Platform: platform, Registry: registry}, testAreas, nil)
	report, err := session.Run(context.Background(), reconcile.RunOptions{SourceStudyPK: 100, DefaultStudy: "NEPTUNE"})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(report.Outcomes) != 2 {
		t.Fatalf("got %d outcomes, want 2", len(report.Outcomes))
	}
	skip := report.Outcomes[0]
	if skip.Decision != reconcile.DecisionSkipNotFound {
		t.Fatalf("first decision = %s, want skip-not-found", skip.Decision)
	}
	if skip.Slide.ErrorMessage != "WARNING: Biopsy ID Z9_9 not found." {
		t.Fatalf("warning = %q", skip.Slide.ErrorMessage)
	}
	if report.Outcomes[1].Decision != reconcile.DecisionRouteFinal {
		t.Fatalf("second decision = %s, want route-final", report.Outcomes[1].Decision)
	}
}

func TestSessionSkipsAlreadyAnnotatedWithoutRegistryFetch(t *testing.T) {
	t.Parallel()

	annotated := wsiImage(7, "A1_2_BC1.svs", "BC1")
	annotated.FieldValues = []halolink.FieldValue{{Name: "Disease", Value: "FSGS"}}
	platform := &fakePlatform{images: []halolink.Image{annotated}}
	registry := &fakeRegistry{}

	session := reconcile.NewSession(reconcile.Ports{Platform: platform, Registry: registry}, testAreas, nil)
	report, err := session.Run(context.Background(), reconcile.RunOptions{SourceStudyPK: 100})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	outcome := report.Outcomes[0]
	if outcome.Decision != reconcile.DecisionSkipAlreadyAnnotated {
		t.Fatalf("Decision = %s, want skip-already-annotated", outcome.Decision)
	}
	if outcome.Slide.ErrorMessage != "WARNING: Metadata already exists." {
		t.Fatalf("warning = %q", outcome.Slide.ErrorMessage)
	}
	if registry.calls != 0 {
		t.Fatalf("registry called %d times for an annotated image, want 0", registry.calls)
	}
	// The tag parses, so the skip row still identifies its biopsy.
	if outcome.BiopsyID != "A1_2" {
		t.Fatalf("BiopsyID = %q, want A1_2 on the annotated skip row", outcome.BiopsyID)
	}
	if outcome.Slide.Parent.BiopsyID != "A1_2" {
		t.Fatalf("report row biopsy_id = %q, want A1_2", outcome.Slide.Parent.BiopsyID)
	}
}

func TestSessionLookupHintAppliesToLaterSiblings(t *testing.T) {
	t.Parallel()

	platform := &fakePlatform{images: []halolink.Image{
		wsiImage(7, "A1_2_BC1.svs", "BC1"),
		wsiImage(8, "A1_2_copy01.svs", ""),
	}}
	registry := &fakeRegistry{records: map[string][]redcap.Record{
		"A1_2": {biopsyRow("NPT-7", "3", 1, "BC")},
	}}
	lookup := &fakeLookup{classifications: map[string]uploader.Classification{
		"A1_2_BC1.svs":    {Study: "NEPTUNE"},
		"A1_2_copy01.svs": {Study: "NEPTUNE", PackageType: "Slide Copy"},
	}}

	session := reconcile.NewSession(reconcile.Ports{Platform: platform, Registry: registry, Lookup: lookup}, testAreas, nil)
	report, err := session.Run(context.Background(), reconcile.RunOptions{SourceStudyPK: 100})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(report.Outcomes) != 2 {
		t.Fatalf("got %d outcomes, want 2", len(report.Outcomes))
	}

	// The first sibling backfills the shared study label; the second must
	// still pick up its own package-type hint even though no backfill is
	// needed anymore.
	second := report.Outcomes[1]
	if second.Slide.ImageType != metadata.ImageTypeSlideCopy {
		t.Fatalf("ImageType = %v, want slide copy from the lookup hint", second.Slide.ImageType)
	}
	if second.Slide.Parent.StudyID != "NEPTUNE" {
		t.Fatalf("StudyID = %q, want the backfilled study", second.Slide.Parent.StudyID)
	}
}

func TestSessionBlankBarcodeRoutesIntermediate(t *testing.T) {
	t.Parallel()

	platform := &fakePlatform{images: []halolink.Image{wsiImage(7, "A1_2_BC1.svs", "")}}
	registry := &fakeRegistry{records: map[string][]redcap.Record{
		"A1_2": {biopsyRow("NPT-7", "3", 1, "BC")},
	}}

	session := reconcile.NewSession(reconcile.Ports{Platform: platform, Registry: registry}, testAreas, nil)
	report, err := session.Run(context.Background(), reconcile.RunOptions{SourceStudyPK: 100, DefaultStudy: "NEPTUNE"})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	outcome := report.Outcomes[0]
	if outcome.Decision != reconcile.DecisionRouteIntermediate {
		t.Fatalf("Decision = %s, want route-intermediate", outcome.Decision)
	}
	if outcome.Slide.ErrorMessage != "WARNING: Barcode is blank." {
		t.Fatalf("warning = %q", outcome.Slide.ErrorMessage)
	}
	if outcome.Action != "ACTION: Attached available metadata and moved to Escrow 1" {
		t.Fatalf("Action = %q", outcome.Action)
	}
	if len(platform.moveCalls) != 1 || platform.moveCalls[0].toPK != testAreas.IntermediatePK {
		t.Fatalf("moves = %+v", platform.moveCalls)
	}
}

func TestSessionUnmatchedBarcodeKeepsParentMetadata(t *testing.T) {
	t.Parallel()

	platform := &fakePlatform{images: []halolink.Image{wsiImage(7, "A1_2_BC9.svs", "BC9")}}
	registry := &fakeRegistry{records: map[string][]redcap.Record{
		"A1_2": {biopsyRow("NPT-7", "3", 1, "BC")},
	}}

	session := reconcile.NewSession(reconcile.Ports{Platform: platform, Registry: registry}, testAreas, nil)
	report, err := session.Run(context.Background(), reconcile.RunOptions{SourceStudyPK: 100, DefaultStudy: "NEPTUNE"})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	outcome := report.Outcomes[0]
	if outcome.Decision != reconcile.DecisionRouteIntermediate {
		t.Fatalf("Decision = %s, want route-intermediate", outcome.Decision)
	}
	if outcome.Slide.Parent.Disease != "FSGS" {
		t.Fatalf("parent metadata lost: %+v", outcome.Slide.Parent)
	}
	want := "WARNING: Barcode BC9 not found for biopsy A1_2."
	if outcome.Slide.ErrorMessage != want {
		t.Fatalf("warning = %q, want %q", outcome.Slide.ErrorMessage, want)
	}
}

func TestSessionIntermediateSourceAttachesWithoutMove(t *testing.T) {
	t.Parallel()

	platform := &fakePlatform{images: []halolink.Image{wsiImage(7, "A1_2_BC1.svs", "")}}
	registry := &fakeRegistry{records: map[string][]redcap.Record{
		"A1_2": {biopsyRow("NPT-7", "3", 1, "BC")},
	}}

	session := reconcile.NewSession(reconcile.Ports{Platform: platform, Registry: registry}, testAreas, nil)
	report, err := session.Run(context.Background(), reconcile.RunOptions{
		SourceStudyPK: testAreas.IntermediatePK,
		DefaultStudy:  "NEPTUNE",
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	outcome := report.Outcomes[0]
	if outcome.Action != "ACTION: Attached available metadata" {
		t.Fatalf("Action = %q", outcome.Action)
	}
	if len(platform.fieldCalls) != 1 {
		t.Fatalf("got %d field updates, want 1", len(platform.fieldCalls))
	}
	if len(platform.moveCalls) != 0 {
		t.Fatalf("image already in the intermediate area was moved: %+v", platform.moveCalls)
	}
}

func TestSessionClassifiesNonWSIFromLookupHint(t *testing.T) {
	t.Parallel()

	platform := &fakePlatform{images: []halolink.Image{wsiImage(7, "A1_2_em01.jpg", "")}}
	registry := &fakeRegistry{records: map[string][]redcap.Record{
		"A1_2": {biopsyRow("NPT-7", "3", 1, "BC")},
	}}
	lookup := &fakeLookup{classifications: map[string]uploader.Classification{
		"A1_2_em01.jpg": {Study: "NEPTUNE", PackageType: "Electron Microscopy Imaging"},
	}}

	session := reconcile.NewSession(reconcile.Ports{Platform: platform, Registry: registry, Lookup: lookup}, testAreas, nil)
	report, err := session.Run(context.Background(), reconcile.RunOptions{SourceStudyPK: 100})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	outcome := report.Outcomes[0]
	if outcome.Slide.ImageType != metadata.ImageTypeElectronMicroscopy {
		t.Fatalf("ImageType = %v, want electron microscopy", outcome.Slide.ImageType)
	}
	if outcome.Decision != reconcile.DecisionRouteFinal {
		t.Fatalf("Decision = %s, want route-final (parent metadata is complete)", outcome.Decision)
	}
	if outcome.Slide.Parent.StudyID != "NEPTUNE" {
		t.Fatalf("StudyID = %q, want the lookup result", outcome.Slide.Parent.StudyID)
	}
}

func TestSessionLookupOutageFallsBackToDefaultStudy(t *testing.T) {
	t.Parallel()

	platform := &fakePlatform{images: []halolink.Image{wsiImage(7, "A1_2_BC1.svs", "BC1")}}
	registry := &fakeRegistry{records: map[string][]redcap.Record{
		"A1_2": {biopsyRow("NPT-7", "3", 1, "BC")},
	}}
	lookup := &fakeLookup{err: services.Wrap(services.ErrLookupUnavailable, "uploader", "find", "store offline", nil)}

	session := reconcile.NewSession(reconcile.Ports{Platform: platform, Registry: registry, Lookup: lookup}, testAreas, nil)
	report, err := session.Run(context.Background(), reconcile.RunOptions{SourceStudyPK: 100, DefaultStudy: "NEPTUNE"})
	if err != nil {
		t.Fatalf("Run() error = %v, lookup outages must not be fatal", err)
	}
	if report.Outcomes[0].Slide.Parent.StudyID != "NEPTUNE" {
		t.Fatalf("StudyID = %q, want the default study", report.Outcomes[0].Slide.Parent.StudyID)
	}
}

func TestSessionRegistryOutageAbortsWithPartialReport(t *testing.T) {
	t.Parallel()

	platform := &fakePlatform{images: []halolink.Image{
		wsiImage(7, "A1_2_BC1.svs", "BC1"),
		wsiImage(8, "B3_4_BC1.svs", "BC1"),
	}}
	registry := &fakeRegistry{err: errRegistryDown}

	session := reconcile.NewSession(reconcile.Ports{Platform: platform, Registry: registry}, testAreas, nil)
	report, err := session.Run(context.Background(), reconcile.RunOptions{SourceStudyPK: 100, DefaultStudy: "NEPTUNE"})
	if !errors.Is(err, services.ErrRegistryUnavailable) {
		t.Fatalf("Run() error = %v, want ErrRegistryUnavailable", err)
	}
	if !services.Fatal(err) {
		t.Fatal("registry outage is not classified as session-fatal")
	}
	if len(report.Outcomes) != 0 {
		t.Fatalf("got %d outcomes before the abort, want 0", len(report.Outcomes))
	}
	if report.FinishedAt.IsZero() {
		t.Fatal("aborted report is missing its finish time")
	}
}

func TestSessionUnparsableTagSkips(t *testing.T) {
	t.Parallel()

	platform := &fakePlatform{images: []halolink.Image{wsiImage(7, "nounderscore.svs", "BC1")}}
	registry := &fakeRegistry{}

	session := reconcile.NewSession(reconcile.Ports{Platform: platform, Registry: registry}, testAreas, nil)
	report, err := session.Run(context.Background(), reconcile.RunOptions{SourceStudyPK: 100})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	outcome := report.Outcomes[0]
	if outcome.Decision != reconcile.DecisionSkipNotFound {
		t.Fatalf("Decision = %s, want skip-not-found", outcome.Decision)
	}
	if registry.calls != 0 {
		t.Fatalf("registry called %d times for an unparsable tag, want 0", registry.calls)
	}
}

func TestSessionFetchesEachBiopsyOncePerRun(t *testing.T) {
	t.Parallel()

	platform := &fakePlatform{images: []halolink.Image{
		wsiImage(7, "A1_2_BC1.svs", "BC1"),
		wsiImage(8, "A1_2_BC2.svs", "BC2"),
		wsiImage(9, "A1_2_BC3.svs", "BC3"),
		wsiImage(10, "B3_4_BC1.svs", "BC1"),
	}}
	registry := &fakeRegistry{records: map[string][]redcap.Record{
		"A1_2": {biopsyRow("NPT-7", "3", 3, "BC")},
		"B3_4": {biopsyRow("NPT-8", "1", 1, "BC")},
	}}

	session := reconcile.NewSession(reconcile.Ports{Platform: platform, Registry: registry}, testAreas, nil)
	if _, err := session.Run(context.Background(), reconcile.RunOptions{SourceStudyPK: 100, DefaultStudy: "NEPTUNE"}); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if registry.calls != 2 {
		t.Fatalf("registry called %d times for 2 distinct biopsies, want 2", registry.calls)
	}
	if session.RegistryFetches() != 2 {
		t.Fatalf("RegistryFetches() = %d, want 2", session.RegistryFetches())
	}
}
