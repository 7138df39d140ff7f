package backlog

import (
	"encoding/json"
	"fmt"
	"os"

	"pipeval/internal/atomicfile"
)

// storeSchemaVersion is the persisted backlog schema.
const storeSchemaVersion = 1

type document struct {
	Version int           `json:"version"`
	Items   []Improvement `json:"items"`
}

// Store persists the backlog as a JSON document with the same atomic-write
// discipline as the ledger store.
type Store struct {
	path string
}

// NewStore creates a store for path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Load reads the backlog from disk. A missing file yields an empty backlog.
func (s *Store) Load() ([]Improvement, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read backlog: %w", err)
	}
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse backlog: %w", err)
	}
	return doc.Items, nil
}

// Save atomically persists the backlog.
func (s *Store) Save(items []Improvement) error {
	doc := document{Version: storeSchemaVersion, Items: items}
	payload, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal backlog: %w", err)
	}
	if err := atomicfile.WriteFile(s.path, payload); err != nil {
		return fmt.Errorf("write backlog: %w", err)
	}
	return nil
}

// Find returns a pointer into items for the given id.
func Find(items []Improvement, id string) (*Improvement, error) {
	for i := range items {
		if items[i].ID == id {
			return &items[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownItem, id)
}
