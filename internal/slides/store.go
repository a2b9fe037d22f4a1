package slides

import (
	"errors"
	"sync"
)

var (
	// ErrLastSlide rejects a deletion that would empty the deck.
	ErrLastSlide = errors.New("slides: a deck must keep at least one slide")
	// ErrSlideNotFound indicates the targeted slide id is not in the store.
	ErrSlideNotFound = errors.New("slides: slide not found")
	// ErrEmptyDeck rejects populating a store with zero records.
	ErrEmptyDeck = errors.New("slides: at least one slide is required")
	// ErrDuplicateSlideID rejects records sharing an identifier.
	ErrDuplicateSlideID = errors.New("slides: duplicate slide id")
)

// Store is the shared ordered collection of slide records for one deck. Every
// mutation locates its target by id and replaces that single record with a new
// value, so an asset resolution racing a user edit or deletion can never
// corrupt the deck: at worst it becomes a no-op against a vanished id.
type Store struct {
	mu    sync.RWMutex
	order []string
	byID  map[string]SlideRecord
}

// NewStore builds a store from the initial ordered records.
func NewStore(records []SlideRecord) (*Store, error) {
	if len(records) == 0 {
		return nil, ErrEmptyDeck
	}
	store := &Store{
		order: make([]string, 0, len(records)),
		byID:  make(map[string]SlideRecord, len(records)),
	}
	for _, record := range records {
		if record.ID == "" {
			return nil, ErrSlideNotFound
		}
		if _, exists := store.byID[record.ID]; exists {
			return nil, ErrDuplicateSlideID
		}
		store.order = append(store.order, record.ID)
		store.byID[record.ID] = record.Clone()
	}
	return store, nil
}

// Len reports the number of slides.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}

// Get returns a copy of the record with the given id.
func (s *Store) Get(id string) (SlideRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.byID[id]
	if !ok {
		return SlideRecord{}, false
	}
	return record.Clone(), true
}

// Snapshot returns copies of all records in deck order.
func (s *Store) Snapshot() []SlideRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	records := make([]SlideRecord, 0, len(s.order))
	for _, id := range s.order {
		records = append(records, s.byID[id].Clone())
	}
	return records
}

// MissingAssets returns copies of the records that have no asset and no call in
// flight, in deck order. This is the batch scheduler's work set.
func (s *Store) MissingAssets() []SlideRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var missing []SlideRecord
	for _, id := range s.order {
		record := s.byID[id]
		if record.AssetURL == "" && !record.AssetPending {
			missing = append(missing, record.Clone())
		}
	}
	return missing
}

// Update replaces the record with the given id by the result of transform.
// The transform receives a copy; the returned value keeps the original id
// regardless of what the transform did to it. Returns false when the id is not
// present, which callers resolving stale async results treat as a no-op.
func (s *Store) Update(id string, transform func(SlideRecord) SlideRecord) (SlideRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.byID[id]
	if !ok {
		return SlideRecord{}, false
	}
	updated := transform(current.Clone())
	updated.ID = id
	s.byID[id] = updated.Clone()
	return updated, true
}

// InsertAfter places record behind the slide identified by afterID, or at the
// end of the deck when afterID is empty.
func (s *Store) InsertAfter(afterID string, record SlideRecord) error {
	if record.ID == "" {
		return ErrSlideNotFound
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byID[record.ID]; exists {
		return ErrDuplicateSlideID
	}

	position := len(s.order)
	if afterID != "" {
		found := false
		for i, id := range s.order {
			if id == afterID {
				position = i + 1
				found = true
				break
			}
		}
		if !found {
			return ErrSlideNotFound
		}
	}

	s.order = append(s.order, "")
	copy(s.order[position+1:], s.order[position:])
	s.order[position] = record.ID
	s.byID[record.ID] = record.Clone()
	return nil
}

// Delete removes the record with the given id. Deleting the sole remaining
// slide is rejected so the deck never becomes empty.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[id]; !ok {
		return ErrSlideNotFound
	}
	if len(s.order) <= 1 {
		return ErrLastSlide
	}
	delete(s.byID, id)
	for i, orderedID := range s.order {
		if orderedID == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

// MarkPending flags the record as having an in-flight asset call. It must be
// applied before the network call starts so readers never observe a stale
// "not pending" state for a slide being generated.
func (s *Store) MarkPending(id string) bool {
	_, ok := s.Update(id, func(record SlideRecord) SlideRecord {
		record.AssetPending = true
		return record
	})
	return ok
}

// ResolveAsset records a successful generation: the asset URL is set, the
// pending flag cleared and the layout forced to the mode-appropriate value.
func (s *Store) ResolveAsset(id, assetURL string, layout SlideLayout) bool {
	_, ok := s.Update(id, func(record SlideRecord) SlideRecord {
		record.AssetURL = assetURL
		record.AssetPending = false
		record.Layout = layout
		return record
	})
	return ok
}

// FailAsset records a failed generation: the pending flag is cleared and any
// previously generated asset is preserved.
func (s *Store) FailAsset(id string) bool {
	_, ok := s.Update(id, func(record SlideRecord) SlideRecord {
		record.AssetPending = false
		return record
	})
	return ok
}
