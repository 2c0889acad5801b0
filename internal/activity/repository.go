package activity

import "context"

// Pagination bounds.
const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

// Repository defines the interface for activity persistence. Every read and
// write is scoped to the owning user.
type Repository interface {
	// Get retrieves an activity owned by userID.
	// Returns ErrActivityNotFound if it doesn't exist or belongs to someone else.
	Get(ctx context.Context, userID, id string) (*Activity, error)

	// List returns the user's activities, newest first. Cursor is the ID of the
	// last item of the previous page.
	List(ctx context.Context, userID string, opts ListOptions) (*ListResult, error)

	// Create creates a new activity.
	Create(ctx context.Context, a *Activity) error

	// Update replaces an existing activity.
	Update(ctx context.Context, a *Activity) error

	// Delete removes an activity owned by userID.
	Delete(ctx context.Context, userID, id string) error
}

// ClampLimit applies the default and maximum page size.
func ClampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultListLimit
	case limit > MaxListLimit:
		return MaxListLimit
	default:
		return limit
	}
}
