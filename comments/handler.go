package comments

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

const maxCommentLen = 2000

// Handler holds dependencies for comment endpoints.
type Handler struct {
	DB          *db.CompatDB
	MinioBucket string
}

// CommentRequest is the JSON body for creating or editing a comment.
type CommentRequest struct {
	Content string `json:"content"`
}

// HandleCreate posts a comment on a published video.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	userID := r.Context().Value(auth.UserIDKey).(string)
	videoID := chi.URLParam(r, "id")
	httputil.MaxBody(r, httputil.DefaultBodyLimit)

	var req CommentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteJSON(w, 400, map[string]string{"error": "invalid request body"})
		return
	}
	content := strings.TrimSpace(req.Content)
	if content == "" {
		httputil.WriteJSON(w, 400, map[string]string{"error": "content is required"})
		return
	}
	if len(content) > maxCommentLen {
		httputil.WriteJSON(w, 400, map[string]string{"error": "comment too long"})
		return
	}

	var exists int
	if err := h.DB.QueryRowContext(r.Context(),
		`SELECT 1 FROM videos WHERE id = ? AND published = 1`, videoID).Scan(&exists); err != nil {
		httputil.WriteJSON(w, 404, map[string]string{"error": "video not found"})
		return
	}

	commentID := uuid.New().String()
	_, err := h.DB.ExecContext(r.Context(),
		`INSERT INTO comments (id, video_id, owner_id, content) VALUES (?, ?, ?, ?)`,
		commentID, videoID, userID, content)
	if err != nil {
		httputil.WriteJSON(w, 500, map[string]string{"error": "failed to post comment"})
		return
	}

	httputil.WriteJSON(w, 201, map[string]interface{}{
		"id": commentID, "video_id": videoID, "content": content,
	})
}

// HandleList lists a video's comments, newest first, with author summaries.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	videoID := chi.URLParam(r, "id")
	page, limit := httputil.PageParams(r, 20, 100)

	rows, err := h.DB.QueryContext(r.Context(), `
		SELECT c.id, c.content, c.created_at, c.updated_at,
		       u.id, u.display_name, u.avatar_key
		FROM comments c
		JOIN users u ON c.owner_id = u.id
		WHERE c.video_id = ?
		ORDER BY c.created_at DESC, c.id ASC
		LIMIT ? OFFSET ?`, videoID, limit, (page-1)*limit)
	if err != nil {
		httputil.WriteJSON(w, 500, map[string]string{"error": "failed to list comments"})
		return
	}
	defer rows.Close()

	comments := make([]map[string]interface{}, 0)
	for rows.Next() {
		var id, content, createdAt, updatedAt string
		var ownerID, ownerName, ownerAvatar string
		if err := rows.Scan(&id, &content, &createdAt, &updatedAt,
			&ownerID, &ownerName, &ownerAvatar); err != nil {
			continue
		}
		comments = append(comments, map[string]interface{}{
			"id": id, "content": content,
			"created_at": createdAt, "updated_at": updatedAt,
			"author": map[string]interface{}{
				"id": ownerID, "display_name": ownerName,
				"avatar_url": httputil.MediaURL(h.MinioBucket, ownerAvatar),
			},
		})
	}
	if err := rows.Err(); err != nil {
		log.Printf("HandleList comments: rows iteration error: %v", err)
	}

	httputil.WriteJSON(w, 200, map[string]interface{}{
		"comments": comments, "page": page, "limit": limit, "count": len(comments),
	})
}

// HandleUpdate edits the caller's own comment.
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	userID := r.Context().Value(auth.UserIDKey).(string)
	commentID := chi.URLParam(r, "id")
	httputil.MaxBody(r, httputil.DefaultBodyLimit)

	var req CommentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteJSON(w, 400, map[string]string{"error": "invalid request body"})
		return
	}
	content := strings.TrimSpace(req.Content)
	if content == "" || len(content) > maxCommentLen {
		httputil.WriteJSON(w, 400, map[string]string{"error": "content must be 1-2000 characters"})
		return
	}

	res, err := h.DB.ExecContext(r.Context(),
		`UPDATE comments SET content = ?, updated_at = `+h.DB.NowUTC()+` WHERE id = ? AND owner_id = ?`,
		content, commentID, userID)
	if err != nil {
		httputil.WriteJSON(w, 500, map[string]string{"error": "failed to update comment"})
		return
	}
	if n, _ := res.RowsAffected(); n == 0 {
		httputil.WriteJSON(w, 404, map[string]string{"error": "comment not found"})
		return
	}

	httputil.WriteJSON(w, 200, map[string]string{"status": "updated"})
}

// HandleDelete removes the caller's own comment.
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	userID := r.Context().Value(auth.UserIDKey).(string)
	commentID := chi.URLParam(r, "id")

	res, err := h.DB.ExecContext(r.Context(),
		`DELETE FROM comments WHERE id = ? AND owner_id = ?`, commentID, userID)
	if err != nil {
		httputil.WriteJSON(w, 500, map[string]string{"error": "failed to delete comment"})
		return
	}
	if n, _ := res.RowsAffected(); n == 0 {
		httputil.WriteJSON(w, 404, map[string]string{"error": "comment not found"})
		return
	}

	httputil.WriteJSON(w, 200, map[string]string{"status": "deleted"})
}
