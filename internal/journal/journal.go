// Package journal is the only code that talks to the entry store. Every query is
// scoped to a single user partition.
package journal

import (
	"context"
	"errors"
	"slices"
	"strings"

	"github.com/AnshRaj112/bookjournal-backend/internal/models"
)

// SentinelPartition is the reserved partition queried by IsAlive. It never holds user data.
const SentinelPartition = "0"

var (
	// ErrNotConnected is returned when the store cannot be reached.
	ErrNotConnected = errors.New("entry store not connected")
	// ErrNotFound names a missing delete target. Delete treats a missing target as
	// success and does not return it.
	ErrNotFound = errors.New("entry not found")
	// ErrDuplicateID is returned by Add when the id already belongs to another partition.
	ErrDuplicateID = errors.New("entry id used by another partition")
)

// Repository reads and writes journal entries one partition at a time.
type Repository interface {
	List(ctx context.Context, userID string) ([]models.Entry, error)
	Add(ctx context.Context, entry models.Entry) error
	Delete(ctx context.Context, entryID, userID string) error
	IsAlive(ctx context.Context) (bool, error)
}

// SortByDateRead orders entries newest first by comparing DateRead as plain strings.
// "2023/9/1" sorts ahead of "2023/10/1"; this matches what users have always seen.
func SortByDateRead(entries []models.Entry) {
	slices.SortStableFunc(entries, func(a, b models.Entry) int {
		return strings.Compare(b.DateRead, a.DateRead)
	})
}
