package testsupport

import (
	"testing"

	"github.com/Kretzler-Lab/miktmc-uploader-pipeline/internal/config"
	"github.com/Kretzler-Lab/miktmc-uploader-pipeline/internal/journal"
)

// MustOpenJournal opens a journal.Store for tests and registers cleanup.
func MustOpenJournal(t testing.TB, cfg *config.Config) *journal.Store {
	t.Helper()

	store, err := journal.Open(cfg.Paths.JournalPath)
	if err != nil {
		t.Fatalf("journal.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}
