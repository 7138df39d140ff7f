package ledger

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func TestStore_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.json")
	store := NewStore(path)

	l, seq := startedLedger(t)
	appendRun(t, l, seq, attempt("q1", "structured", true))
	appendRun(t, l, seq, attempt("q2", "structured", false))
	if err := l.FinishIteration(seq, time.Now()); err != nil {
		t.Fatalf("finish: %v", err)
	}
	if err := store.Save(l); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded, err := store.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !reflect.DeepEqual(loaded.Entries(), l.Entries()) {
		t.Fatalf("registry mismatch after round trip")
	}
	if len(loaded.Iterations()) != 1 || len(loaded.Iterations()[0].Attempts) != 2 {
		t.Fatalf("iterations mismatch after round trip")
	}
}

func TestStore_AtomicWrite_NoTmpLeftBehind(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.json")
	store := NewStore(path)
	if err := store.Save(New()); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Fatalf("expected tmp file removed, got %v", err)
	}
}

func TestStore_MissingFile_EmptyLedger(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "ledger.json"))
	l, err := store.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(l.Iterations()) != 0 || len(l.Entries()) != 0 {
		t.Fatalf("expected empty ledger")
	}
}

func TestStore_RevisionBumpsOnSave(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.json")
	store := NewStore(path)
	l := New()
	for i := 1; i <= 3; i++ {
		if err := store.Save(l); err != nil {
			t.Fatalf("save %d: %v", i, err)
		}
	}
	loaded, err := store.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.Revision() != 3 {
		t.Fatalf("expected revision 3, got %d", loaded.Revision())
	}
}

func TestStore_OlderSchema_DerivedFieldsRecomputed(t *testing.T) {
	// Version 1 documents stored runs without derived registry fields and
	// finished iterations without summaries.
	old := map[string]any{
		"version": 1,
		"iterations": []map[string]any{{
			"id":          "it-1",
			"sequence":    1,
			"started_at":  time.Now().Add(-time.Hour).Format(time.RFC3339),
			"finished_at": time.Now().Format(time.RFC3339),
			"attempts": []map[string]any{{
				"question_id": "q1",
				"pipeline":    "structured",
				"correct":     false,
				"score":       0.1,
				"latency_ms":  12,
				"timestamp":   time.Now().Format(time.RFC3339),
			}},
		}},
		"registry": map[string]any{
			"q1": map[string]any{
				"runs": []map[string]any{
					{"iteration_id": "it-0", "sequence": 0, "pipeline": "structured", "correct": false},
					{"iteration_id": "it-1", "sequence": 1, "pipeline": "structured", "correct": true},
				},
			},
		},
	}
	data, err := json.Marshal(old)
	if err != nil {
		t.Fatalf("marshal fixture: %v", err)
	}
	path := filepath.Join(t.TempDir(), "ledger.json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	l, err := NewStore(path).Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	entry, ok := l.Entry("q1")
	if !ok {
		t.Fatalf("entry missing after migration")
	}
	if entry.QuestionID != "q1" || entry.PassCount != 1 || entry.Trend != TrendImproving {
		t.Fatalf("derived fields not recomputed: %#v", entry)
	}
	iterations := l.Iterations()
	if iterations[0].Summary == nil {
		t.Fatalf("expected summary backfilled for finished iteration")
	}
}

func TestStore_LockExcludesSecondProcess(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.json")
	first := NewStore(path)
	if err := first.Acquire(); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	defer func() {
		if err := first.Release(); err != nil {
			t.Fatalf("release: %v", err)
		}
	}()

	second := NewStore(path)
	err := second.Acquire()
	if !errors.Is(err, ErrLocked) {
		t.Fatalf("expected ErrLocked, got %v", err)
	}
}
