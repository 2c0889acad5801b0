package activity

import (
	"context"
	"sort"
	"sync"
)

// InMemoryRepository is an in-memory implementation of Repository.
type InMemoryRepository struct {
	mu         sync.RWMutex
	activities map[string]*Activity
}

// NewInMemoryRepository creates a new in-memory activity repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		activities: make(map[string]*Activity),
	}
}

// Get retrieves an activity owned by userID.
func (r *InMemoryRepository) Get(_ context.Context, userID, id string) (*Activity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.activities[id]
	if !ok || a.UserID != userID {
		return nil, ErrActivityNotFound
	}
	return a.clone(), nil
}

// List returns the user's activities, newest first.
func (r *InMemoryRepository) List(_ context.Context, userID string, opts ListOptions) (*ListResult, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var items []*Activity
	for _, a := range r.activities {
		if a.UserID == userID {
			items = append(items, a.clone())
		}
	}
	sort.Slice(items, func(i, j int) bool {
		if !items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].CreatedAt.After(items[j].CreatedAt)
		}
		return items[i].ID > items[j].ID
	})

	if opts.Cursor != "" {
		idx := -1
		for i, a := range items {
			if a.ID == opts.Cursor {
				idx = i
				break
			}
		}
		if idx < 0 {
			return nil, ErrInvalidCursor
		}
		items = items[idx+1:]
	}

	limit := ClampLimit(opts.Limit)
	result := &ListResult{Items: items}
	if len(items) > limit {
		result.Items = items[:limit]
		result.NextCursor = items[limit-1].ID
	}
	return result, nil
}

// Create creates a new activity.
func (r *InMemoryRepository) Create(_ context.Context, a *Activity) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.activities[a.ID] = a.clone()
	return nil
}

// Update replaces an existing activity.
func (r *InMemoryRepository) Update(_ context.Context, a *Activity) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.activities[a.ID]
	if !ok || existing.UserID != a.UserID {
		return ErrActivityNotFound
	}
	r.activities[a.ID] = a.clone()
	return nil
}

// Delete removes an activity owned by userID.
func (r *InMemoryRepository) Delete(_ context.Context, userID, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.activities[id]
	if !ok || a.UserID != userID {
		return ErrActivityNotFound
	}
	delete(r.activities, id)
	return nil
}

// Ensure InMemoryRepository implements Repository interface.
var _ Repository = (*InMemoryRepository)(nil)
