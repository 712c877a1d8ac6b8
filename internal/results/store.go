// Package results stores verdicts keyed by source photo.
package results

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"photo-critic/internal/model"
)

// Result is one stored evaluation outcome.
type Result struct {
	Source      string        `json:"source"`
	Verdict     model.Verdict `json:"verdict"`
	CostUSD     float64       `json:"cost_usd"`
	Provider    string        `json:"provider"`
	Model       string        `json:"model"`
	PromptVer   string        `json:"prompt_version"`
	EvaluatedAt time.Time     `json:"evaluated_at"`
}

// Store holds results for a run, keyed by source. Re-evaluating a source
// overwrites its previous result, so storage is idempotent per photo.
// Safe for concurrent use: the coordinator writes while observers snapshot.
type Store struct {
	mu   sync.RWMutex
	data map[string]Result
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{data: make(map[string]Result)}
}

// Upsert stores a result, replacing any previous result for the same source.
func (s *Store) Upsert(r Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[r.Source] = r
}

// Get returns the result for a source, if present.
func (s *Store) Get(source string) (Result, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.data[source]
	return r, ok
}

// Len returns the number of stored results.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

// Snapshot returns all results sorted by source.
func (s *Store) Snapshot() []Result {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Result, 0, len(s.data))
	for _, r := range s.data {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Source < out[j].Source
	})
	return out
}

// TotalCost sums the stored per-photo costs.
func (s *Store) TotalCost() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var total float64
	for _, r := range s.data {
		total += r.CostUSD
	}
	return total
}

// WriteJSONL writes every result as one JSON object per line, sorted by
// source. The file is replaced wholesale so repeated exports stay idempotent.
func (s *Store) WriteJSONL(path string) error {
	results := s.Snapshot()

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create results file: %w", err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	for _, r := range results {
		if err := enc.Encode(r); err != nil {
			return fmt.Errorf("write result for %s: %w", r.Source, err)
		}
	}
	return f.Sync()
}
