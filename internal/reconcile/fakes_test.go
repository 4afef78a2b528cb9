package reconcile_test

import (
	"context"
	"errors"
	"strconv"

	"github.com/Kretzler-Lab/miktmc-uploader-pipeline/internal/services"
	"github.com/Kretzler-Lab/miktmc-uploader-pipeline/internal/services/halolink"
	"github.com/Kretzler-Lab/miktmc-uploader-pipeline/internal/services/redcap"
	"github.com/Kretzler-Lab/miktmc-uploader-pipeline/internal/services/uploader"
)

// fakeRegistry serves canned rows keyed by biopsy identifier and counts
// round trips.
type fakeRegistry struct {
	records map[string][]redcap.Record
	calls   int
	err     error
}

func (f *fakeRegistry) RecordsByBiopsyID(ctx context.Context, biopsyID string) ([]redcap.Record, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.records[biopsyID], nil
}

type fieldCall struct {
	imagePK int64
	updates []halolink.FieldUpdate
}

type moveCall struct {
	imagePK int64
	fromPK  int64
	toPK    int64
}

// fakePlatform lists canned images and records attach/move side effects.
type fakePlatform struct {
	images     []halolink.Image
	listErr    error
	updateErr  error
	moveErr    error
	fieldCalls []fieldCall
	moveCalls  []moveCall
}

func (f *fakePlatform) ImagesInStudy(ctx context.Context, studyPK int64) ([]halolink.Image, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.images, nil
}

func (f *fakePlatform) UpdateFields(ctx context.Context, imagePK int64, updates []halolink.FieldUpdate) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	f.fieldCalls = append(f.fieldCalls, fieldCall{imagePK: imagePK, updates: updates})
	return nil
}

func (f *fakePlatform) MoveImage(ctx context.Context, imagePK, fromStudyPK, toStudyPK int64) error {
	if f.moveErr != nil {
		return f.moveErr
	}
	f.moveCalls = append(f.moveCalls, moveCall{imagePK: imagePK, fromPK: fromStudyPK, toPK: toStudyPK})
	return nil
}

// fakeLookup maps filenames to classifications.
type fakeLookup struct {
	classifications map[string]uploader.Classification
	err             error
}

func (f *fakeLookup) ClassificationByFilename(ctx context.Context, fileName string) (uploader.Classification, bool, error) {
	if f.err != nil {
		return uploader.Classification{}, false, f.err
	}
	cls, ok := f.classifications[fileName]
	return cls, ok, nil
}

var errRegistryDown = services.Wrap(services.ErrRegistryUnavailable, "redcap", "export", "registry offline", errors.New("connection refused"))

// biopsyRow builds a registry row with n barcoded slides named <prefix>1..n.
func biopsyRow(neptuneID, disease string, slides int, barcodePrefix string) redcap.Record {
	row := redcap.Record{
		redcap.FieldSubjectID:      "",
		redcap.FieldNeptuneStudyID: neptuneID,
		redcap.FieldDiseaseCohort:  disease,
		redcap.FieldBiopsyDate:     "2025-04-01",
		redcap.FieldBarcodeCount:   itoa(slides),
		redcap.FieldEMCount:        "2",
	}
	for i := 1; i <= slides; i++ {
		row["slidelevel"+itoa(i)] = itoa(i)
		row["slidestain"+itoa(i)] = "1"
		row["slidebarcode"+itoa(i)] = barcodePrefix + itoa(i)
	}
	return row
}

func itoa(n int) string {
	return strconv.Itoa(n)
}
