// Package memory provides an in-memory visitor store for local runs and tests.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/JakeFAU/parked-domain-tracker/internal/store"
	"github.com/JakeFAU/parked-domain-tracker/internal/visitor"
)

// VisitorStore keeps visitor rows in process memory.
type VisitorStore struct {
	mu       sync.RWMutex
	rows     []store.Row
	nextID   int64
	writeErr error
	readErr  error
}

var _ store.VisitorStore = (*VisitorStore)(nil)

// NewVisitorStore creates an empty store.
func NewVisitorStore() *VisitorStore {
	return &VisitorStore{nextID: 1}
}

// FailWrites makes every InsertVisitor return err until cleared with nil.
func (s *VisitorStore) FailWrites(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writeErr = err
}

// FailReads makes every ListVisitors return err until cleared with nil.
func (s *VisitorStore) FailReads(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.readErr = err
}

// Len returns the number of stored rows.
func (s *VisitorStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rows)
}

// InsertVisitor appends one row.
func (s *VisitorStore) InsertVisitor(ctx context.Context, rec visitor.Record) error {
	if err := ctx.Err(); err != nil {
		return err //nolint:wrapcheck
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.writeErr != nil {
		return s.writeErr
	}
	s.rows = append(s.rows, store.RowFromRecord(s.nextID, rec))
	s.nextID++
	return nil
}

// ListVisitors filters by domain, orders by timestamp descending and pages.
func (s *VisitorStore) ListVisitors(ctx context.Context, q store.Query) ([]store.Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err //nolint:wrapcheck
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.readErr != nil {
		return nil, s.readErr
	}

	matched := make([]store.Row, 0, len(s.rows))
	for _, row := range s.rows {
		if q.Domain == "" || row.Domain == q.Domain {
			matched = append(matched, row)
		}
	}
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].Timestamp > matched[j].Timestamp
	})

	if q.Offset >= len(matched) {
		return []store.Row{}, nil
	}
	end := len(matched)
	if q.Limit >= 0 && q.Offset+q.Limit < end {
		end = q.Offset + q.Limit
	}
	return matched[q.Offset:end], nil
}

// Ping always succeeds.
func (s *VisitorStore) Ping(context.Context) error {
	return nil
}

// Close is a no-op.
func (s *VisitorStore) Close() error {
	return nil
}
