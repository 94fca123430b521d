package suggest

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"vidtube/db"
)

// SQLStore implements Store over the videos/users tables.
type SQLStore struct {
	DB *db.CompatDB
}

const videoColumns = `id, owner_id, title, description, tags, thumbnail_key,
       duration_seconds, views, published, created_at`

func scanVideo(scan func(dest ...interface{}) error) (*Video, error) {
	var v Video
	var tagsJSON string
	var published int
	if err := scan(&v.ID, &v.OwnerID, &v.Title, &v.Description, &tagsJSON,
		&v.ThumbnailKey, &v.DurationSeconds, &v.Views, &published, &v.CreatedAt); err != nil {
		return nil, err
	}
	v.Published = published == 1
	if err := json.Unmarshal([]byte(tagsJSON), &v.Tags); err != nil {
		v.Tags = nil
	}
	return &v, nil
}

// GetVideo loads one video by id regardless of publication status; the
// engine excludes the seed from candidate pools itself.
func (s *SQLStore) GetVideo(ctx context.Context, id string) (*Video, error) {
	row := s.DB.QueryRowContext(ctx,
		`SELECT `+videoColumns+` FROM videos WHERE id = ?`, id)
	v, err := scanVideo(row.Scan)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get video: %w", err)
	}
	return v, nil
}

// FindPublishedExcluding returns published videos other than excludeID whose
// serialized tag list contains any seed tag or token. Containment on the
// lower-cased JSON text is a deliberate superset: the engine's word-boundary
// re-check is the precise filter. SQLite's lower() only folds ASCII, so
// candidate tags whose only uppercase letters are non-ASCII can escape the
// prefilter; seeds and candidates that agree in case still match.
func (s *SQLStore) FindPublishedExcluding(ctx context.Context, excludeID string, tags, tokens []string, poolSize int) ([]Video, error) {
	patterns := make([]string, 0, len(tags)+len(tokens))
	args := make([]interface{}, 0, len(tags)+len(tokens)+2)
	args = append(args, excludeID)
	for _, t := range append(append([]string{}, tags...), tokens...) {
		patterns = append(patterns, `lower(tags) LIKE ? ESCAPE '\'`)
		args = append(args, "%"+db.LikeEscape(t)+"%")
	}
	if len(patterns) == 0 {
		return nil, nil
	}

	// Fetch a few multiples of the pool so the precise pass has room to
	// discard superset-only hits before the cap.
	args = append(args, poolSize*3)
	query := `SELECT ` + videoColumns + `
		FROM videos
		WHERE published = 1 AND id != ? AND (` + strings.Join(patterns, " OR ") + `)
		LIMIT ?`

	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("find candidates: %w", err)
	}
	defer rows.Close()
	return collectVideos(rows)
}

// SampleRandomPublishedExcluding draws a uniform random sample of published
// videos, no tag condition.
func (s *SQLStore) SampleRandomPublishedExcluding(ctx context.Context, excludeID string, poolSize int) ([]Video, error) {
	rows, err := s.DB.QueryContext(ctx, `SELECT `+videoColumns+`
		FROM videos
		WHERE published = 1 AND id != ?
		ORDER BY `+s.DB.RandomFloat()+`
		LIMIT ?`, excludeID, poolSize)
	if err != nil {
		return nil, fmt.Errorf("sample videos: %w", err)
	}
	defer rows.Close()
	return collectVideos(rows)
}

func collectVideos(rows *sql.Rows) ([]Video, error) {
	var out []Video
	for rows.Next() {
		v, err := scanVideo(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, *v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// ResolveOwners returns display metadata for the given user ids.
func (s *SQLStore) ResolveOwners(ctx context.Context, ownerIDs []string) (map[string]Owner, error) {
	owners := make(map[string]Owner, len(ownerIDs))
	if len(ownerIDs) == 0 {
		return owners, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(ownerIDs)), ", ")
	args := make([]interface{}, len(ownerIDs))
	for i, id := range ownerIDs {
		args[i] = id
	}

	rows, err := s.DB.QueryContext(ctx,
		`SELECT id, display_name, avatar_key FROM users WHERE id IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("resolve owners: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var o Owner
		if err := rows.Scan(&o.ID, &o.DisplayName, &o.AvatarKey); err != nil {
			return nil, err
		}
		owners[o.ID] = o
	}
	return owners, rows.Err()
}
