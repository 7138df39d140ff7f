package ledger

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/gofrs/flock"

	"pipeval/internal/atomicfile"
)

// ErrStorage wraps any failure to persist the ledger. Storage failures are
// fatal to a run: stopping beats silent data loss.
var ErrStorage = errors.New("ledger storage failure")

// ErrLocked reports that another pipeval process holds the ledger lock.
var ErrLocked = errors.New("ledger is locked by another process")

// Store persists a ledger document at a fixed path under a cross-process
// file lock. Saves are write-then-rename, so a crash mid-write never leaves
// a torn document. Only one flush is in flight at a time.
type Store struct {
	path    string
	lock    *flock.Flock
	flushMu sync.Mutex
}

// NewStore creates a store for path. The directory is created on demand.
func NewStore(path string) *Store {
	return &Store{
		path: path,
		lock: flock.New(path + ".lock"),
	}
}

// Acquire takes the cross-process lock. Callers must Release when done.
func (s *Store) Acquire() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("%w: create ledger dir: %v", ErrStorage, err)
	}
	locked, err := s.lock.TryLock()
	if err != nil {
		return fmt.Errorf("%w: acquire lock: %v", ErrStorage, err)
	}
	if !locked {
		return ErrLocked
	}
	return nil
}

// Release drops the cross-process lock.
func (s *Store) Release() error {
	return s.lock.Unlock()
}

// Load reads the ledger from disk. A missing file yields an empty ledger.
// Older schema versions load with missing fields defaulted and derived
// registry fields recomputed.
func (s *Store) Load() (*Ledger, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return New(), nil
		}
		return nil, fmt.Errorf("%w: read ledger: %v", ErrStorage, err)
	}
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: parse ledger: %v", ErrStorage, err)
	}
	migrate(&doc)
	return &Ledger{doc: doc}, nil
}

// Save atomically persists the ledger and bumps its revision counter.
func (s *Store) Save(l *Ledger) error {
	s.flushMu.Lock()
	defer s.flushMu.Unlock()

	l.mu.Lock()
	l.doc.Revision++
	payload, err := json.MarshalIndent(l.doc, "", "  ")
	l.mu.Unlock()
	if err != nil {
		return fmt.Errorf("%w: marshal ledger: %v", ErrStorage, err)
	}
	if err := atomicfile.WriteFile(s.path, payload); err != nil {
		return fmt.Errorf("%w: %v", ErrStorage, err)
	}
	return nil
}

// migrate fills in fields that older schema versions did not persist.
func migrate(doc *document) {
	if doc.Registry == nil {
		doc.Registry = map[string]*Entry{}
	}
	for id, entry := range doc.Registry {
		if entry == nil {
			delete(doc.Registry, id)
			continue
		}
		if entry.QuestionID == "" {
			entry.QuestionID = id
		}
		// Version 1 stored raw runs without derived fields.
		if len(entry.Runs) > 0 {
			recomputeEntry(entry)
		}
	}
	for _, iteration := range doc.Iterations {
		if iteration.Attempts == nil {
			iteration.Attempts = []Attempt{}
		}
		if iteration.Finished() && iteration.Summary == nil {
			iteration.Summary = Summarize(iteration.Attempts)
		}
	}
	doc.Version = schemaVersion
}
