package playlists

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"

	"vidtube/auth"
	"vidtube/db"
	"vidtube/httputil"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// Handler holds dependencies for playlist endpoints.
type Handler struct {
	DB          *db.CompatDB
	MinioBucket string
}

// PlaylistRequest is the JSON body for creating or editing a playlist.
type PlaylistRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// HandleCreate creates a playlist for the authenticated user.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	userID := r.Context().Value(auth.UserIDKey).(string)
	httputil.MaxBody(r, httputil.DefaultBodyLimit)

	var req PlaylistRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteJSON(w, 400, map[string]string{"error": "invalid request body"})
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		httputil.WriteJSON(w, 400, map[string]string{"error": "name is required"})
		return
	}

	playlistID := uuid.New().String()
	_, err := h.DB.ExecContext(r.Context(),
		`INSERT INTO playlists (id, owner_id, name, description) VALUES (?, ?, ?, ?)`,
		playlistID, userID, name, strings.TrimSpace(req.Description))
	if err != nil {
		httputil.WriteJSON(w, 500, map[string]string{"error": "failed to create playlist"})
		return
	}

	httputil.WriteJSON(w, 201, map[string]interface{}{
		"id": playlistID, "name": name, "description": req.Description,
	})
}

// HandleListMine lists the caller's playlists with video counts.
func (h *Handler) HandleListMine(w http.ResponseWriter, r *http.Request) {
	userID := r.Context().Value(auth.UserIDKey).(string)

	rows, err := h.DB.QueryContext(r.Context(), `
		SELECT p.id, p.name, p.description, p.created_at,
		       (SELECT COUNT(*) FROM playlist_videos pv WHERE pv.playlist_id = p.id)
		FROM playlists p
		WHERE p.owner_id = ?
		ORDER BY p.created_at DESC`, userID)
	if err != nil {
		httputil.WriteJSON(w, 500, map[string]string{"error": "failed to list playlists"})
		return
	}
	defer rows.Close()

	playlists := make([]map[string]interface{}, 0)
	for rows.Next() {
		var id, name, description, createdAt string
		var videoCount int64
		if err := rows.Scan(&id, &name, &description, &createdAt, &videoCount); err != nil {
			continue
		}
		playlists = append(playlists, map[string]interface{}{
			"id": id, "name": name, "description": description,
			"created_at": createdAt, "video_count": videoCount,
		})
	}
	if err := rows.Err(); err != nil {
		log.Printf("HandleListMine: rows iteration error: %v", err)
	}

	httputil.WriteJSON(w, 200, map[string]interface{}{"playlists": playlists, "count": len(playlists)})
}

// HandleGet returns one playlist with its videos in playlist order.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	playlistID := chi.URLParam(r, "id")

	var name, description, ownerID, createdAt string
	err := h.DB.QueryRowContext(r.Context(),
		`SELECT name, description, owner_id, created_at FROM playlists WHERE id = ?`,
		playlistID).Scan(&name, &description, &ownerID, &createdAt)
	if err != nil {
		httputil.WriteJSON(w, 404, map[string]string{"error": "playlist not found"})
		return
	}

	rows, err := h.DB.QueryContext(r.Context(), `
		SELECT v.id, v.title, v.tags, v.thumbnail_key, v.duration_seconds, v.views, pv.position
		FROM playlist_videos pv
		JOIN videos v ON pv.video_id = v.id AND v.published = 1
		WHERE pv.playlist_id = ?
		ORDER BY pv.position ASC, pv.added_at ASC`, playlistID)
	if err != nil {
		httputil.WriteJSON(w, 500, map[string]string{"error": "failed to load playlist"})
		return
	}
	defer rows.Close()

	videos := make([]map[string]interface{}, 0)
	for rows.Next() {
		var id, title, tagsJSON, thumbnailKey string
		var duration float64
		var views, position int64
		if err := rows.Scan(&id, &title, &tagsJSON, &thumbnailKey, &duration, &views, &position); err != nil {
			continue
		}
		var tags []string
		json.Unmarshal([]byte(tagsJSON), &tags)
		videos = append(videos, map[string]interface{}{
			"id": id, "title": title, "tags": tags,
			"thumbnail_url":    httputil.MediaURL(h.MinioBucket, thumbnailKey),
			"duration_seconds": duration, "views": views, "position": position,
		})
	}
	if err := rows.Err(); err != nil {
		log.Printf("HandleGet playlist: rows iteration error: %v", err)
	}

	httputil.WriteJSON(w, 200, map[string]interface{}{
		"id": playlistID, "name": name, "description": description,
		"owner_id": ownerID, "created_at": createdAt, "videos": videos,
	})
}

// HandleUpdate edits the name/description of an owned playlist.
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	userID := r.Context().Value(auth.UserIDKey).(string)
	playlistID := chi.URLParam(r, "id")
	httputil.MaxBody(r, httputil.DefaultBodyLimit)

	var req PlaylistRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteJSON(w, 400, map[string]string{"error": "invalid request body"})
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		httputil.WriteJSON(w, 400, map[string]string{"error": "name is required"})
		return
	}

	res, err := h.DB.ExecContext(r.Context(), `
		UPDATE playlists SET name = ?, description = ?, updated_at = `+h.DB.NowUTC()+`
		WHERE id = ? AND owner_id = ?`,
		name, strings.TrimSpace(req.Description), playlistID, userID)
	if err != nil {
		httputil.WriteJSON(w, 500, map[string]string{"error": "failed to update playlist"})
		return
	}
	if n, _ := res.RowsAffected(); n == 0 {
		httputil.WriteJSON(w, 404, map[string]string{"error": "playlist not found"})
		return
	}

	httputil.WriteJSON(w, 200, map[string]string{"status": "updated"})
}

// HandleDelete removes an owned playlist and its memberships.
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	userID := r.Context().Value(auth.UserIDKey).(string)
	playlistID := chi.URLParam(r, "id")

	res, err := h.DB.ExecContext(r.Context(),
		`DELETE FROM playlists WHERE id = ? AND owner_id = ?`, playlistID, userID)
	if err != nil {
		httputil.WriteJSON(w, 500, map[string]string{"error": "failed to delete playlist"})
		return
	}
	if n, _ := res.RowsAffected(); n == 0 {
		httputil.WriteJSON(w, 404, map[string]string{"error": "playlist not found"})
		return
	}

	httputil.WriteJSON(w, 200, map[string]string{"status": "deleted"})
}

// HandleAddVideo appends a published video to an owned playlist.
func (h *Handler) HandleAddVideo(w http.ResponseWriter, r *http.Request) {
	userID := r.Context().Value(auth.UserIDKey).(string)
	playlistID := chi.URLParam(r, "id")
	videoID := chi.URLParam(r, "videoId")

	var exists int
	if err := h.DB.QueryRowContext(r.Context(),
		`SELECT 1 FROM playlists WHERE id = ? AND owner_id = ?`, playlistID, userID).Scan(&exists); err != nil {
		httputil.WriteJSON(w, 404, map[string]string{"error": "playlist not found"})
		return
	}
	if err := h.DB.QueryRowContext(r.Context(),
		`SELECT 1 FROM videos WHERE id = ? AND published = 1`, videoID).Scan(&exists); err != nil {
		httputil.WriteJSON(w, 404, map[string]string{"error": "video not found"})
		return
	}

	// Position assignment and insert happen in one transaction so two
	// concurrent appends cannot race on MAX(position).
	err := db.WithTx(r.Context(), h.DB, func(conn *db.CompatConn) error {
		var next int64
		if err := conn.QueryRowContext(r.Context(),
			`SELECT COALESCE(MAX(position), 0) + 1 FROM playlist_videos WHERE playlist_id = ?`,
			playlistID).Scan(&next); err != nil {
			return err
		}
		_, err := conn.ExecContext(r.Context(), `
			INSERT INTO playlist_videos (playlist_id, video_id, position)
			VALUES (?, ?, ?)
			ON CONFLICT DO NOTHING`, playlistID, videoID, next)
		return err
	})
	if err != nil {
		httputil.WriteJSON(w, 500, map[string]string{"error": "failed to add video"})
		return
	}

	httputil.WriteJSON(w, 200, map[string]string{"status": "added"})
}

// HandleRemoveVideo removes a video from an owned playlist.
func (h *Handler) HandleRemoveVideo(w http.ResponseWriter, r *http.Request) {
	userID := r.Context().Value(auth.UserIDKey).(string)
	playlistID := chi.URLParam(r, "id")
	videoID := chi.URLParam(r, "videoId")

	var exists int
	if err := h.DB.QueryRowContext(r.Context(),
		`SELECT 1 FROM playlists WHERE id = ? AND owner_id = ?`, playlistID, userID).Scan(&exists); err != nil {
		httputil.WriteJSON(w, 404, map[string]string{"error": "playlist not found"})
		return
	}

	if _, err := h.DB.ExecContext(r.Context(),
		`DELETE FROM playlist_videos WHERE playlist_id = ? AND video_id = ?`,
		playlistID, videoID); err != nil {
		httputil.WriteJSON(w, 500, map[string]string{"error": "failed to remove video"})
		return
	}

	httputil.WriteJSON(w, 200, map[string]string{"status": "removed"})
}
