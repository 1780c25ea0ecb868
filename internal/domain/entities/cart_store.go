package entities

import "fmt"

// CartStore is an ordered mapping from visitor identifier to record.
// Iteration and persistence follow insertion order.
type CartStore struct {
	order   []string
	records map[string]*Counts
}

// NewCartStore creates an empty store
func NewCartStore() *CartStore {
	return &CartStore{records: make(map[string]*Counts)}
}

// Len returns the number of records
func (s *CartStore) Len() int {
	return len(s.order)
}

// Has reports whether id is present
func (s *CartStore) Has(id string) bool {
	_, ok := s.records[id]
	return ok
}

// Get returns a copy of the counts for id
func (s *CartStore) Get(id string) (Counts, bool) {
	c, ok := s.records[id]
	if !ok {
		return Counts{}, false
	}
	return *c, true
}

// Insert appends a new record. Existing identifiers and negative counters are rejected.
func (s *CartStore) Insert(id string, counts Counts) error {
	if id == "" {
		return ErrInvalidVisitorID
	}
	if _, ok := s.records[id]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateVisitor, id)
	}
	if !counts.Valid() {
		return fmt.Errorf("%w: negative counter for %s", ErrInvalidDelta, id)
	}
	c := counts
	s.records[id] = &c
	s.order = append(s.order, id)
	return nil
}

// IDs returns the identifiers in mapping order
func (s *CartStore) IDs() []string {
	ids := make([]string, len(s.order))
	copy(ids, s.order)
	return ids
}

// Records returns a snapshot of all records in mapping order
func (s *CartStore) Records() []VisitorRecord {
	out := make([]VisitorRecord, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, VisitorRecord{ID: id, Counts: *s.records[id]})
	}
	return out
}

// ApplyDelta adds count to the kind counter of record id.
// Unknown kinds leave the store untouched and report DeltaIgnored.
// Unknown ids and deltas that would drive a counter below zero report DeltaInvalid.
func (s *CartStore) ApplyDelta(id string, kind ItemKind, count int) DeltaResult {
	res := DeltaResult{Kind: kind, Count: count}

	if !kind.IsValid() {
		res.Outcome = DeltaIgnored
		res.Err = fmt.Errorf("%w: %q", ErrUnknownItem, string(kind))
		return res
	}

	c, ok := s.records[id]
	if !ok {
		res.Outcome = DeltaInvalid
		res.Err = fmt.Errorf("%w: %s", ErrVisitorNotFound, id)
		return res
	}

	current, _ := c.Get(kind)
	next := current + count
	if next < 0 {
		res.Outcome = DeltaInvalid
		res.Err = fmt.Errorf("%w: %s would become %d", ErrInvalidDelta, kind, next)
		return res
	}

	c.set(kind, next)
	res.Outcome = DeltaApplied
	return res
}
