package insights

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Store persists threshold recommendations per event on disk so subsequent
// uploads for the same competition can reuse them.
type Store struct {
	dataDir string
}

// NewStore creates a recommendation store rooted at dataDir.
func NewStore(dataDir string) *Store {
	return &Store{dataDir: dataDir}
}

// Load reads the stored recommendation for an event. A missing file yields
// the default recommendation rather than an error.
func (s *Store) Load(event string) (*Recommendation, error) {
	path := filepath.Join(s.dataDir, fmt.Sprintf("%s-thresholds.json", event))

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return &Recommendation{Initial: 75, Floor: 40, Basis: "defaults: no stored recommendation"}, nil
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open recommendation file: %w", err)
	}
	defer file.Close()

	var rec Recommendation
	if err := json.NewDecoder(file).Decode(&rec); err != nil {
		return nil, fmt.Errorf("failed to decode recommendation: %w", err)
	}
	return &rec, nil
}

// Save writes the recommendation for an event.
func (s *Store) Save(event string, rec *Recommendation) error {
	if err := os.MkdirAll(s.dataDir, 0755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	path := filepath.Join(s.dataDir, fmt.Sprintf("%s-thresholds.json", event))
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create recommendation file: %w", err)
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(rec); err != nil {
		return fmt.Errorf("failed to encode recommendation: %w", err)
	}
	return nil
}
