package likes

import (
	"encoding/json"
	"log"
	"net/http"

	"vidtube/auth"
	"vidtube/db"
	"vidtube/httputil"

	"github.com/go-chi/chi/v5"
)

// Handler holds dependencies for like endpoints.
type Handler struct {
	DB          *db.CompatDB
	MinioBucket string
}

// toggle flips a like on a target and returns the resulting state and count.
func (h *Handler) toggle(w http.ResponseWriter, r *http.Request, targetType, existsQuery string) {
	userID := r.Context().Value(auth.UserIDKey).(string)
	targetID := chi.URLParam(r, "id")

	var exists int
	if err := h.DB.QueryRowContext(r.Context(), existsQuery, targetID).Scan(&exists); err != nil {
		httputil.WriteJSON(w, 404, map[string]string{"error": targetType + " not found"})
		return
	}

	res, err := h.DB.ExecContext(r.Context(),
		`DELETE FROM likes WHERE user_id = ? AND target_type = ? AND target_id = ?`,
		userID, targetType, targetID)
	if err != nil {
		httputil.WriteJSON(w, 500, map[string]string{"error": "failed to toggle like"})
		return
	}

	liked := false
	if n, _ := res.RowsAffected(); n == 0 {
		if _, err := h.DB.ExecContext(r.Context(),
			`INSERT INTO likes (user_id, target_type, target_id) VALUES (?, ?, ?)`,
			userID, targetType, targetID); err != nil {
			httputil.WriteJSON(w, 500, map[string]string{"error": "failed to toggle like"})
			return
		}
		liked = true
	}

	var count int64
	h.DB.QueryRowContext(r.Context(),
		`SELECT COUNT(*) FROM likes WHERE target_type = ? AND target_id = ?`,
		targetType, targetID).Scan(&count)

	httputil.WriteJSON(w, 200, map[string]interface{}{
		"target_id": targetID, "liked": liked, "likes": count,
	})
}

// HandleToggleVideo toggles the caller's like on a published video.
func (h *Handler) HandleToggleVideo(w http.ResponseWriter, r *http.Request) {
	h.toggle(w, r, "video", `SELECT 1 FROM videos WHERE id = ? AND published = 1`)
}

// HandleToggleComment toggles the caller's like on a comment.
func (h *Handler) HandleToggleComment(w http.ResponseWriter, r *http.Request) {
	h.toggle(w, r, "comment", `SELECT 1 FROM comments WHERE id = ?`)
}

// HandleListLiked lists the caller's liked videos, newest like first.
func (h *Handler) HandleListLiked(w http.ResponseWriter, r *http.Request) {
	userID := r.Context().Value(auth.UserIDKey).(string)
	page, limit := httputil.PageParams(r, 20, 50)

	rows, err := h.DB.QueryContext(r.Context(), `
		SELECT v.id, v.title, v.tags, v.thumbnail_key, v.views, v.created_at, l.created_at
		FROM likes l
		JOIN videos v ON l.target_id = v.id AND v.published = 1
		WHERE l.user_id = ? AND l.target_type = 'video'
		ORDER BY l.created_at DESC
		LIMIT ? OFFSET ?`, userID, limit, (page-1)*limit)
	if err != nil {
		httputil.WriteJSON(w, 500, map[string]string{"error": "failed to list liked videos"})
		return
	}
	defer rows.Close()

	videos := make([]map[string]interface{}, 0)
	for rows.Next() {
		var id, title, tagsJSON, thumbnailKey, createdAt, likedAt string
		var views int64
		if err := rows.Scan(&id, &title, &tagsJSON, &thumbnailKey, &views, &createdAt, &likedAt); err != nil {
			continue
		}
		var tags []string
		json.Unmarshal([]byte(tagsJSON), &tags)
		videos = append(videos, map[string]interface{}{
			"id": id, "title": title, "tags": tags,
			"thumbnail_url": httputil.MediaURL(h.MinioBucket, thumbnailKey),
			"views":         views, "created_at": createdAt, "liked_at": likedAt,
		})
	}
	if err := rows.Err(); err != nil {
		log.Printf("HandleListLiked: rows iteration error: %v", err)
	}

	httputil.WriteJSON(w, 200, map[string]interface{}{
		"videos": videos, "page": page, "limit": limit, "count": len(videos),
	})
}
