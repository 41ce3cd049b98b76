package overlay

import (
	"slices"
	"sync"
)

// Snapshot is an immutable copy of the store contents.
type Snapshot struct {
	Overlays []TextOverlay
	Selected int
}

// Listener receives the store contents after every effective change.
type Listener func(Snapshot)

type subscription struct {
	id int
	fn Listener
}

// Store owns the ordered overlay collection and the current selection.
// It is safe for concurrent use; readers get copies.
type Store struct {
	mu       sync.RWMutex
	overlays []TextOverlay
	selected int

	subMu  sync.Mutex
	subs   []subscription
	subSeq int
}

// NewStore creates a store seeded with the given overlays. Seeds with a
// positive id keep it and repeats of an id already seeded are dropped.
// Seeds without an id are numbered after the largest seeded id, in the
// order given. Nothing is selected.
func NewStore(seed ...TextOverlay) *Store {
	s := &Store{overlays: make([]TextOverlay, 0, len(seed))}
	var unnumbered []TextOverlay
	for _, o := range seed {
		if o.ID <= None {
			unnumbered = append(unnumbered, o)
			continue
		}
		if s.indexOf(o.ID) >= 0 {
			continue
		}
		s.overlays = append(s.overlays, o.normalize())
	}
	for _, o := range unnumbered {
		o.ID = s.nextIDLocked()
		s.overlays = append(s.overlays, o.normalize())
	}
	return s
}

// NewCampaignStore creates the store a fresh editor starts with: the two
// campaign overlays, with the first one selected.
func NewCampaignStore() *Store {
	s := NewStore(Campaign()...)
	s.selected = 1
	return s
}

// Add appends a new overlay built from fields, selects it and returns its
// id. The id is one more than the largest id present, or 1 when empty.
func (s *Store) Add(fields TextOverlay) int {
	s.mu.Lock()
	id := s.nextIDLocked()
	fields.ID = id
	s.overlays = append(s.overlays, fields.normalize())
	s.selected = id
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.notify(snap)
	return id
}

func (s *Store) nextIDLocked() int {
	maxID := 0
	for _, o := range s.overlays {
		if o.ID > maxID {
			maxID = o.ID
		}
	}
	return maxID + 1
}

// Update merges patch into the overlay with the given id. Unknown ids are
// ignored and leave the store untouched; the return value reports whether
// the id was found.
func (s *Store) Update(id int, patch Patch) bool {
	s.mu.Lock()
	i := s.indexOf(id)
	if i < 0 {
		s.mu.Unlock()
		return false
	}
	patch.apply(&s.overlays[i])
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.notify(snap)
	return true
}

// Remove deletes the overlay with the given id, clearing the selection if
// it pointed there. Unknown ids are ignored.
func (s *Store) Remove(id int) {
	s.mu.Lock()
	i := s.indexOf(id)
	if i < 0 {
		s.mu.Unlock()
		return
	}
	s.overlays = slices.Delete(s.overlays, i, i+1)
	if s.selected == id {
		s.selected = None
	}
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.notify(snap)
}

// Select makes id the current selection. None, or an id that is not in
// the collection, clears it.
func (s *Store) Select(id int) {
	s.mu.Lock()
	if s.indexOf(id) < 0 {
		id = None
	}
	if s.selected == id {
		s.mu.Unlock()
		return
	}
	s.selected = id
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.notify(snap)
}

// Selected returns the selected overlay, if any.
func (s *Store) Selected() (TextOverlay, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := s.indexOf(s.selected); i >= 0 {
		return s.overlays[i], true
	}
	return TextOverlay{}, false
}

// SelectedID returns the selected id or None.
func (s *Store) SelectedID() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.selected
}

// Get returns the overlay with the given id.
func (s *Store) Get(id int) (TextOverlay, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := s.indexOf(id); i >= 0 {
		return s.overlays[i], true
	}
	return TextOverlay{}, false
}

// List returns a copy of the collection in paint order.
func (s *Store) List() []TextOverlay {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.overlays)
}

// Len returns the number of overlays.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.overlays)
}

// Snapshot returns a consistent copy of the collection and selection.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() Snapshot {
	return Snapshot{
		Overlays: slices.Clone(s.overlays),
		Selected: s.selected,
	}
}

func (s *Store) indexOf(id int) int {
	return slices.IndexFunc(s.overlays, func(o TextOverlay) bool {
		return o.ID == id
	})
}

// Subscribe registers fn for change notifications. Listeners run on the
// goroutine that made the change, after the store lock is released. The
// returned function removes the subscription.
func (s *Store) Subscribe(fn Listener) (cancel func()) {
	s.subMu.Lock()
	s.subSeq++
	id := s.subSeq
	s.subs = append(s.subs, subscription{id: id, fn: fn})
	s.subMu.Unlock()

	return func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		s.subs = slices.DeleteFunc(s.subs, func(sub subscription) bool {
			return sub.id == id
		})
	}
}

func (s *Store) notify(snap Snapshot) {
	s.subMu.Lock()
	subs := slices.Clone(s.subs)
	s.subMu.Unlock()

	for _, sub := range subs {
		sub.fn(snap)
	}
}

// Field setters used by property editors. Each is an Update restricted to one
// property, so unknown ids are ignored the same way.

func (s *Store) SetText(id int, text string) bool {
	return s.Update(id, Patch{Text: &text})
}

func (s *Store) SetPosition(id int, x, y float64) bool {
	return s.Update(id, Patch{X: &x, Y: &y})
}

func (s *Store) SetX(id int, x float64) bool {
	return s.Update(id, Patch{X: &x})
}

func (s *Store) SetY(id int, y float64) bool {
	return s.Update(id, Patch{Y: &y})
}

func (s *Store) SetFontSize(id int, size float64) bool {
	return s.Update(id, Patch{FontSize: &size})
}

func (s *Store) SetColor(id int, color string) bool {
	return s.Update(id, Patch{Color: &color})
}

func (s *Store) SetFontWeight(id int, weight FontWeight) bool {
	return s.Update(id, Patch{FontWeight: &weight})
}

func (s *Store) SetFontFamily(id int, family string) bool {
	return s.Update(id, Patch{FontFamily: &family})
}
