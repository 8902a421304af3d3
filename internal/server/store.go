package server

import (
	"context"
	"slices"
	"sort"
	"sync"

	"github.com/samcharles93/goldcase/internal/casegen"
	"github.com/samcharles93/goldcase/internal/metrics"
	"github.com/samcharles93/goldcase/internal/tensorio"
)

// CaseStore holds the golden cases a server answers from.
type CaseStore struct {
	mu       sync.RWMutex
	cases    map[string]casegen.Case
	manifest *tensorio.Manifest
}

func NewCaseStore() *CaseStore {
	return &CaseStore{cases: make(map[string]casegen.Case)}
}

// Load replaces the store contents with the cases exported under root.
func (s *CaseStore) Load(ctx context.Context, root string) error {
	m, cases, err := tensorio.ReadCases(ctx, root)
	if err != nil {
		return err
	}
	s.Replace(m, cases)
	return nil
}

// Replace swaps in cases. m may be nil for cases generated in memory.
func (s *CaseStore) Replace(m *tensorio.Manifest, cases []casegen.Case) {
	next := make(map[string]casegen.Case, len(cases))
	for _, c := range cases {
		next[c.Name] = c
	}
	s.mu.Lock()
	s.cases = next
	s.manifest = m
	s.mu.Unlock()
	metrics.CasesLoaded.Set(float64(len(next)))
}

func (s *CaseStore) Get(name string) (casegen.Case, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.cases[name]
	return c, ok
}

// List returns cases sorted by name, optionally restricted to one operator.
func (s *CaseStore) List(opType string) []casegen.Case {
	s.mu.RLock()
	out := make([]casegen.Case, 0, len(s.cases))
	for _, c := range s.cases {
		if opType == "" || c.Node.OpType == opType {
			out = append(out, c)
		}
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (s *CaseStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.cases)
}

// Manifest returns a copy of the manifest the cases were loaded with.
func (s *CaseStore) Manifest() (tensorio.Manifest, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.manifest == nil {
		return tensorio.Manifest{}, false
	}
	m := *s.manifest
	m.Cases = slices.Clone(m.Cases)
	return m, true
}
