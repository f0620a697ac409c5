package pos

import (
	"errors"
	"sync"
)

// ErrNotFound is returned when a sale with the given ID is not found.
var ErrNotFound = errors.New("sale not found")

// ErrEmptyID is returned when trying to store a sale with an empty ID.
var ErrEmptyID = errors.New("empty sale ID")

// ErrDuplicateID is returned when inserting a sale whose ID already exists.
var ErrDuplicateID = errors.New("duplicate sale ID")

// Store is the authoritative in-memory table of sales. It owns every Sale
// record: callers only ever receive copies, and all mutation goes through
// Mutate so that every field of a sale changes inside one critical section.
// Each sale carries its own lock, so operations on different IDs never
// contend with each other.
type Store struct {
	mu sync.RWMutex
	m  map[string]*saleEntry
}

type saleEntry struct {
	mu   sync.Mutex
	sale Sale
}

// NewStore instantiates an empty sales store.
func NewStore() *Store {
	return &Store{
		m: map[string]*saleEntry{},
	}
}

// Insert adds a new sale. Returns ErrEmptyID if the sale has an empty ID and
// ErrDuplicateID if a sale with the same ID is already stored.
func (st *Store) Insert(sale Sale) error {
	if sale.ID == "" {
		return ErrEmptyID
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	if _, exists := st.m[sale.ID]; exists {
		return ErrDuplicateID
	}
	st.m[sale.ID] = &saleEntry{sale: sale}
	return nil
}

// Get retrieves a consistent snapshot of a sale by ID.
// Returns ErrNotFound if the sale is not found.
func (st *Store) Get(id string) (Sale, error) {
	entry, err := st.entry(id)
	if err != nil {
		return Sale{}, err
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	return entry.sale, nil
}

// Mutate applies fn to the stored sale while holding that sale's lock, then
// returns the resulting snapshot. Concurrent Mutate calls on the same ID are
// serialized; if fn returns an error it is propagated along with the snapshot
// as fn left it.
func (st *Store) Mutate(id string, fn func(*Sale) error) (Sale, error) {
	entry, err := st.entry(id)
	if err != nil {
		return Sale{}, err
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	if err := fn(&entry.sale); err != nil {
		return entry.sale, err
	}
	return entry.sale, nil
}

// Len reports how many sales are stored.
func (st *Store) Len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.m)
}

func (st *Store) entry(id string) (*saleEntry, error) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	entry, ok := st.m[id]
	if !ok {
		return nil, ErrNotFound
	}
	return entry, nil
}
