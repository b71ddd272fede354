// Package tools registers the built-in file assistant tools on an
// in-process tool host.
package tools

import (
	"encoding/json"
	"os"
	"sync"
)

// MetadataStore keeps per-user file categories in a JSON file. The
// whole state is rewritten on every update.
type MetadataStore struct {
	mutex sync.RWMutex
	path  string
	// username -> file name -> category
	categories map[string]map[string]string
}

// NewMetadataStore opens (or creates on first update) the store at path.
func NewMetadataStore(path string) (*MetadataStore, error) {
	s := &MetadataStore{
		path:       path,
		categories: make(map[string]map[string]string),
	}

	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, err
	}
	defer file.Close()

	if err := json.NewDecoder(file).Decode(&s.categories); err != nil {
		return nil, err
	}
	return s, nil
}

// Category returns the stored category for a user's file, if any.
func (s *MetadataStore) Category(username, fileName string) (string, bool) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	category, ok := s.categories[username][fileName]
	return category, ok
}

// SetCategory records the category for a user's file and persists the
// store.
func (s *MetadataStore) SetCategory(username, fileName, category string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.categories[username] == nil {
		s.categories[username] = make(map[string]string)
	}
	s.categories[username][fileName] = category

	file, err := os.Create(s.path)
	if err != nil {
		return err
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	return encoder.Encode(s.categories)
}
