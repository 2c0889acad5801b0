package activity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/paulmach/orb/geojson"
)

// PostgresRepository is a PostgreSQL implementation of Repository.
// The LineString is stored as GeoJSON in a JSONB column.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL activity repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

const activityColumns = `
	id, user_id, name, activity_type,
	distance_km, duration_seconds, start_time, end_time,
	average_pace, calories, start_location, location,
	elevation_gain, surface, notes, route_data,
	created_at, updated_at`

func scanActivity(row pgx.Row) (*Activity, error) {
	var (
		a        Activity
		location []byte
		route    []byte
	)
	err := row.Scan(
		&a.ID,
		&a.UserID,
		&a.Name,
		&a.ActivityType,
		&a.DistanceKm,
		&a.DurationSeconds,
		&a.StartTime,
		&a.EndTime,
		&a.AveragePace,
		&a.Calories,
		&a.StartLocation,
		&location,
		&a.ElevationGain,
		&a.Surface,
		&a.Notes,
		&route,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrActivityNotFound
		}
		return nil, err
	}

	if len(location) > 0 {
		g, err := geojson.UnmarshalGeometry(location)
		if err != nil {
			return nil, fmt.Errorf("decoding location for %s: %w", a.ID, err)
		}
		a.Location = g
	}
	if len(route) > 0 {
		a.RouteData = json.RawMessage(route)
	}
	return &a, nil
}

func encodeJSONB(a *Activity) (location, route []byte, err error) {
	if a.Location != nil {
		location, err = a.Location.MarshalJSON()
		if err != nil {
			return nil, nil, fmt.Errorf("encoding location: %w", err)
		}
	}
	if len(a.RouteData) > 0 {
		route = []byte(a.RouteData)
	}
	return location, route, nil
}

// Get retrieves an activity owned by userID.
func (r *PostgresRepository) Get(ctx context.Context, userID, id string) (*Activity, error) {
	query := `SELECT ` + activityColumns + ` FROM activities WHERE id = $1 AND user_id = $2`
	return scanActivity(r.pool.QueryRow(ctx, query, id, userID))
}

// List returns the user's activities, newest first, using keyset pagination.
func (r *PostgresRepository) List(ctx context.Context, userID string, opts ListOptions) (*ListResult, error) {
	limit := ClampLimit(opts.Limit)
	// Fetch one extra to determine if there are more results
	fetchLimit := limit + 1

	var (
		rows pgx.Rows
		err  error
	)
	if opts.Cursor == "" {
		query := `SELECT ` + activityColumns + `
			FROM activities
			WHERE user_id = $1
			ORDER BY created_at DESC, id DESC
			LIMIT $2`
		rows, err = r.pool.Query(ctx, query, userID, fetchLimit)
	} else {
		var exists bool
		if err := r.pool.QueryRow(ctx,
			`SELECT EXISTS(SELECT 1 FROM activities WHERE id = $1 AND user_id = $2)`,
			opts.Cursor, userID,
		).Scan(&exists); err != nil {
			return nil, err
		}
		if !exists {
			return nil, ErrInvalidCursor
		}

		query := `SELECT ` + activityColumns + `
			FROM activities
			WHERE user_id = $1
			  AND (created_at, id) < (SELECT created_at, id FROM activities WHERE id = $2)
			ORDER BY created_at DESC, id DESC
			LIMIT $3`
		rows, err = r.pool.Query(ctx, query, userID, opts.Cursor, fetchLimit)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*Activity
	for rows.Next() {
		a, err := scanActivity(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	result := &ListResult{Items: items}
	if len(items) > limit {
		result.Items = items[:limit]
		result.NextCursor = items[limit-1].ID
	}
	return result, nil
}

// Create creates a new activity.
func (r *PostgresRepository) Create(ctx context.Context, a *Activity) error {
	location, route, err := encodeJSONB(a)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO activities (` + activityColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
	`
	_, err = r.pool.Exec(ctx, query,
		a.ID,
		a.UserID,
		a.Name,
		a.ActivityType,
		a.DistanceKm,
		a.DurationSeconds,
		a.StartTime,
		a.EndTime,
		a.AveragePace,
		a.Calories,
		a.StartLocation,
		location,
		a.ElevationGain,
		a.Surface,
		a.Notes,
		route,
		a.CreatedAt,
		a.UpdatedAt,
	)
	return err
}

// Update replaces an existing activity.
func (r *PostgresRepository) Update(ctx context.Context, a *Activity) error {
	location, _, err := encodeJSONB(a)
	if err != nil {
		return err
	}

	query := `
		UPDATE activities SET
			name = $3,
			activity_type = $4,
			distance_km = $5,
			duration_seconds = $6,
			start_time = $7,
			end_time = $8,
			average_pace = $9,
			calories = $10,
			location = $11,
			elevation_gain = $12,
			notes = $13,
			updated_at = $14
		WHERE id = $1 AND user_id = $2
	`
	result, err := r.pool.Exec(ctx, query,
		a.ID,
		a.UserID,
		a.Name,
		a.ActivityType,
		a.DistanceKm,
		a.DurationSeconds,
		a.StartTime,
		a.EndTime,
		a.AveragePace,
		a.Calories,
		location,
		a.ElevationGain,
		a.Notes,
		a.UpdatedAt,
	)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrActivityNotFound
	}
	return nil
}

// Delete removes an activity owned by userID.
func (r *PostgresRepository) Delete(ctx context.Context, userID, id string) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM activities WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrActivityNotFound
	}
	return nil
}

// Ensure PostgresRepository implements Repository interface.
var _ Repository = (*PostgresRepository)(nil)
