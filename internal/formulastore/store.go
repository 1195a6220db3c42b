package formulastore

import "fmt"

// Store is the ordered, id-keyed record collection owned by one workflow.
// It is not safe for concurrent use.
type Store struct {
	records []Formula
	index   map[string]int
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{index: make(map[string]int)}
}

// ReplaceAll swaps the whole collection. Records are validated first; on any
// failure the store is left unchanged.
func (s *Store) ReplaceAll(records []Formula) error {
	if err := ValidateAll(records); err != nil {
		return fmt.Errorf("replace formulas: %w", err)
	}
	next := make([]Formula, 0, len(records))
	index := make(map[string]int, len(records))
	for i, f := range records {
		next = append(next, f.Clone())
		index[f.ID] = i
	}
	s.records = next
	s.index = index
	return nil
}

// Upsert inserts f, or replaces the record with the same id in place.
// It reports whether an existing record was replaced.
func (s *Store) Upsert(f Formula) (bool, error) {
	if err := Validate(f); err != nil {
		return false, fmt.Errorf("upsert formula: %w", err)
	}
	if i, ok := s.index[f.ID]; ok {
		s.records[i] = f.Clone()
		return true, nil
	}
	if s.index == nil {
		s.index = make(map[string]int)
	}
	s.index[f.ID] = len(s.records)
	s.records = append(s.records, f.Clone())
	return false, nil
}

// RemoveByID deletes the record with id. Absent ids are a no-op reporting false.
func (s *Store) RemoveByID(id string) bool {
	i, ok := s.index[id]
	if !ok {
		return false
	}
	s.records = append(s.records[:i], s.records[i+1:]...)
	delete(s.index, id)
	for j := i; j < len(s.records); j++ {
		s.index[s.records[j].ID] = j
	}
	return true
}

// All returns copies of the records in insertion order.
func (s *Store) All() []Formula {
	out := make([]Formula, len(s.records))
	for i, f := range s.records {
		out[i] = f.Clone()
	}
	return out
}

// Get returns a copy of the record with id.
func (s *Store) Get(id string) (Formula, bool) {
	i, ok := s.index[id]
	if !ok {
		return Formula{}, false
	}
	return s.records[i].Clone(), true
}

// Len returns the number of records.
func (s *Store) Len() int { return len(s.records) }
