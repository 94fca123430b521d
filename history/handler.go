package history

import (
	"encoding/json"
	"log"
	"net/http"

	"vidtube/auth"
	"vidtube/db"
	"vidtube/httputil"

	"github.com/go-chi/chi/v5"
)

// Handler holds dependencies for watch-history endpoints.
type Handler struct {
	DB          *db.CompatDB
	MinioBucket string
}

// HandleAdd records (or refreshes) a watch-history entry for a video.
// Rewatching bumps watched_at so the entry moves back to the top.
func (h *Handler) HandleAdd(w http.ResponseWriter, r *http.Request) {
	userID := r.Context().Value(auth.UserIDKey).(string)
	videoID := chi.URLParam(r, "videoId")

	var exists int
	if err := h.DB.QueryRowContext(r.Context(),
		`SELECT 1 FROM videos WHERE id = ?`, videoID).Scan(&exists); err != nil {
		httputil.WriteJSON(w, 404, map[string]string{"error": "video not found"})
		return
	}

	_, err := h.DB.ExecContext(r.Context(), `
		INSERT INTO watch_history (user_id, video_id, watched_at)
		VALUES (?, ?, `+h.DB.NowUTC()+`)
		ON CONFLICT (user_id, video_id) DO UPDATE SET watched_at = `+h.DB.NowUTC(),
		userID, videoID)
	if err != nil {
		httputil.WriteJSON(w, 500, map[string]string{"error": "failed to record watch"})
		return
	}

	httputil.WriteJSON(w, 201, map[string]string{"status": "recorded"})
}

// HandleList lists the caller's watch history, most recent first.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	userID := r.Context().Value(auth.UserIDKey).(string)
	page, limit := httputil.PageParams(r, 20, 100)

	rows, err := h.DB.QueryContext(r.Context(), `
		SELECT v.id, v.title, v.tags, v.thumbnail_key, v.duration_seconds, v.views,
		       wh.watched_at, u.id, u.display_name, u.avatar_key
		FROM watch_history wh
		JOIN videos v ON wh.video_id = v.id
		JOIN users u ON v.owner_id = u.id
		WHERE wh.user_id = ?
		ORDER BY wh.watched_at DESC
		LIMIT ? OFFSET ?`, userID, limit, (page-1)*limit)
	if err != nil {
		httputil.WriteJSON(w, 500, map[string]string{"error": "failed to list history"})
		return
	}
	defer rows.Close()

	history := make([]map[string]interface{}, 0)
	for rows.Next() {
		var id, title, tagsJSON, thumbnailKey, watchedAt string
		var ownerID, ownerName, ownerAvatar string
		var duration float64
		var views int64
		if err := rows.Scan(&id, &title, &tagsJSON, &thumbnailKey, &duration, &views,
			&watchedAt, &ownerID, &ownerName, &ownerAvatar); err != nil {
			continue
		}
		var tags []string
		json.Unmarshal([]byte(tagsJSON), &tags)
		history = append(history, map[string]interface{}{
			"id": id, "title": title, "tags": tags,
			"thumbnail_url":    httputil.MediaURL(h.MinioBucket, thumbnailKey),
			"duration_seconds": duration, "views": views,
			"watched_at":       watchedAt,
			"owner": map[string]interface{}{
				"id": ownerID, "display_name": ownerName,
				"avatar_url": httputil.MediaURL(h.MinioBucket, ownerAvatar),
			},
		})
	}
	if err := rows.Err(); err != nil {
		log.Printf("HandleList history: rows iteration error: %v", err)
	}

	httputil.WriteJSON(w, 200, map[string]interface{}{
		"history": history, "page": page, "limit": limit, "count": len(history),
	})
}

// HandleRemove deletes one watch-history entry.
func (h *Handler) HandleRemove(w http.ResponseWriter, r *http.Request) {
	userID := r.Context().Value(auth.UserIDKey).(string)
	videoID := chi.URLParam(r, "videoId")

	res, err := h.DB.ExecContext(r.Context(),
		`DELETE FROM watch_history WHERE user_id = ? AND video_id = ?`, userID, videoID)
	if err != nil {
		httputil.WriteJSON(w, 500, map[string]string{"error": "failed to remove entry"})
		return
	}
	if n, _ := res.RowsAffected(); n == 0 {
		httputil.WriteJSON(w, 404, map[string]string{"error": "entry not found"})
		return
	}

	httputil.WriteJSON(w, 200, map[string]string{"status": "removed"})
}

// HandleClear deletes the caller's entire watch history.
func (h *Handler) HandleClear(w http.ResponseWriter, r *http.Request) {
	userID := r.Context().Value(auth.UserIDKey).(string)

	if _, err := h.DB.ExecContext(r.Context(),
		`DELETE FROM watch_history WHERE user_id = ?`, userID); err != nil {
		httputil.WriteJSON(w, 500, map[string]string{"error": "failed to clear history"})
		return
	}

	httputil.WriteJSON(w, 200, map[string]string{"status": "cleared"})
}
