package analyses

import (
	"context"
	"maps"
	"sync"
)

// MemoryStore keeps records in memory and is safe for concurrent use.
type MemoryStore struct {
	mu    sync.RWMutex
	byID  map[string]Record
	order []string
}

// NewMemoryStore constructs a MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byID: make(map[string]Record)}
}

// Put stores a copy of record, replacing any previous version.
func (s *MemoryStore) Put(ctx context.Context, record Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[record.ID]; !ok {
		s.order = append(s.order, record.ID)
	}
	s.byID[record.ID] = cloneRecord(record)
	return nil
}

// get returns the current version of a record.
func (s *MemoryStore) get(ctx context.Context, id string) (Record, bool) {
	if ctx.Err() != nil {
		return Record{}, false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.byID[id]
	if !ok {
		return Record{}, false
	}
	return cloneRecord(r), true
}

// ListByUser returns the user's records in the order they were first stored.
func (s *MemoryStore) ListByUser(ctx context.Context, userID string) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []Record{}
	for _, id := range s.order {
		if r := s.byID[id]; r.UserID == userID {
			out = append(out, cloneRecord(r))
		}
	}
	return out, nil
}

func cloneRecord(r Record) Record {
	if r.Result != nil {
		r.Result = maps.Clone(r.Result)
	}
	return r
}

var _ Store = (*MemoryStore)(nil)
