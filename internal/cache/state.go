package cache

// State is the persistable form of a Store: entries in LRU order, oldest
// first, plus the raw counters.
type State struct {
	Entries  []Entry  `json:"entries"`
	Counters Counters `json:"counters"`
}

// Export copies the table and counters.
func (s *Store) Export() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys := s.lru.Keys()
	st := State{
		Entries:  make([]Entry, 0, len(keys)),
		Counters: s.counters,
	}
	for _, k := range keys {
		if e, ok := s.lru.Peek(k); ok {
			st.Entries = append(st.Entries, *e)
		}
	}
	return st
}

// Restore replaces the table and counters with st. Entries are re-inserted
// oldest first so recency order survives; if st holds more entries than the
// store's capacity the oldest ones are dropped. Size estimates are
// recomputed rather than trusted.
func (s *Store) Restore(st State) error {
	lru, byPath, err := s.newTable()
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.lru, s.byPath = lru, byPath
	for i := range st.Entries {
		e := st.Entries[i]
		e.SizeBytes = estimateSize(e.Result)
		s.insert(&e)
	}
	s.counters = st.Counters
	return nil
}
