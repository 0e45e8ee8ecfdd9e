package journal

import (
	"context"
	"sync"

	"github.com/AnshRaj112/bookjournal-backend/internal/models"
)

// MemoryRepository is an in-process Repository used in development (STORE=memory) and tests.
type MemoryRepository struct {
	sync.RWMutex
	partitions map[string]map[string]models.Entry
	owner      map[string]string // entry id -> userid
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		partitions: map[string]map[string]models.Entry{},
		owner:      map[string]string{},
	}
}

func (r *MemoryRepository) List(_ context.Context, userID string) ([]models.Entry, error) {
	r.RLock()
	defer r.RUnlock()

	entries := make([]models.Entry, 0, len(r.partitions[userID]))
	for _, e := range r.partitions[userID] {
		entries = append(entries, e)
	}
	SortByDateRead(entries)
	return entries, nil
}

// Add replaces the entry with the same id in the same partition. An id held by another
// partition is rejected, as a unique _id would be.
func (r *MemoryRepository) Add(_ context.Context, entry models.Entry) error {
	r.Lock()
	defer r.Unlock()

	if prev, ok := r.owner[entry.ID]; ok && prev != entry.UserID {
		return ErrDuplicateID
	}
	p, ok := r.partitions[entry.UserID]
	if !ok {
		p = map[string]models.Entry{}
		r.partitions[entry.UserID] = p
	}
	p[entry.ID] = entry
	r.owner[entry.ID] = entry.UserID
	return nil
}

func (r *MemoryRepository) Delete(_ context.Context, entryID, userID string) error {
	r.Lock()
	defer r.Unlock()

	if _, ok := r.partitions[userID][entryID]; !ok {
		return nil
	}
	delete(r.partitions[userID], entryID)
	delete(r.owner, entryID)
	return nil
}

func (r *MemoryRepository) IsAlive(context.Context) (bool, error) {
	return true, nil
}
