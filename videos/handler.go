package videos

import (
	"encoding/json"
	"log"
	"net/http"
	"path"
	"strings"
	"time"

	"vidtube/auth"
	"vidtube/db"
	"vidtube/httputil"
	"vidtube/storage"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// Handler holds dependencies for video endpoints.
type Handler struct {
	DB      *db.CompatDB
	Storage *storage.Client
}

const maxVideoUpload = 512 << 20 // 512 MB
const maxImageUpload = 8 << 20

const videoSelect = `
	SELECT v.id, v.title, v.description, v.tags, v.thumbnail_key,
	       v.duration_seconds, v.views, v.published, v.created_at, v.updated_at,
	       u.id, u.display_name, u.avatar_key
	FROM videos v
	JOIN users u ON v.owner_id = u.id`

func (h *Handler) videoRow(scan func(dest ...interface{}) error) (map[string]interface{}, error) {
	var id, title, description, tagsJSON, thumbnailKey, createdAt, updatedAt string
	var ownerID, ownerName, ownerAvatar string
	var duration float64
	var views int64
	var published int

	if err := scan(&id, &title, &description, &tagsJSON, &thumbnailKey,
		&duration, &views, &published, &createdAt, &updatedAt,
		&ownerID, &ownerName, &ownerAvatar); err != nil {
		return nil, err
	}

	var tags []string
	if json.Unmarshal([]byte(tagsJSON), &tags) != nil || tags == nil {
		tags = []string{}
	}

	return map[string]interface{}{
		"id": id, "title": title, "description": description,
		"tags":          tags,
		"thumbnail_key": thumbnailKey,
		"thumbnail_url": httputil.MediaURL(h.Storage.Bucket, thumbnailKey),
		"duration_seconds": duration,
		"views":            views,
		"published":        published == 1,
		"created_at":       createdAt,
		"updated_at":       updatedAt,
		"owner": map[string]interface{}{
			"id": ownerID, "display_name": ownerName,
			"avatar_url": httputil.MediaURL(h.Storage.Bucket, ownerAvatar),
		},
	}, nil
}

// parseTagsField decodes the tags form field, a JSON array of strings.
// Absent or malformed input yields an empty list.
func parseTagsField(raw string) []string {
	var tags []string
	if raw == "" || json.Unmarshal([]byte(raw), &tags) != nil || tags == nil {
		return []string{}
	}
	return tags
}

// HandlePublish creates a video from a multipart upload: title, description,
// tags (JSON array), a video file and a thumbnail file.
func (h *Handler) HandlePublish(w http.ResponseWriter, r *http.Request) {
	userID := r.Context().Value(auth.UserIDKey).(string)

	if err := r.ParseMultipartForm(maxVideoUpload); err != nil {
		httputil.WriteJSON(w, 400, map[string]string{"error": "invalid multipart form"})
		return
	}

	title := strings.TrimSpace(r.FormValue("title"))
	if title == "" {
		httputil.WriteJSON(w, 400, map[string]string{"error": "title is required"})
		return
	}
	description := strings.TrimSpace(r.FormValue("description"))
	tags := parseTagsField(r.FormValue("tags"))

	videoFile, videoHeader, err := r.FormFile("video")
	if err != nil {
		httputil.WriteJSON(w, 400, map[string]string{"error": "video file is required"})
		return
	}
	defer videoFile.Close()

	thumbFile, thumbHeader, err := r.FormFile("thumbnail")
	if err != nil {
		httputil.WriteJSON(w, 400, map[string]string{"error": "thumbnail file is required"})
		return
	}
	defer thumbFile.Close()

	videoID := uuid.New().String()
	videoKey := "videos/" + videoID + path.Ext(videoHeader.Filename)
	thumbKey := "thumbnails/" + videoID + path.Ext(thumbHeader.Filename)

	if err := h.Storage.Upload(r.Context(), videoKey, videoFile, videoHeader.Size,
		videoHeader.Header.Get("Content-Type")); err != nil {
		httputil.WriteJSON(w, 500, map[string]string{"error": "failed to store video"})
		return
	}
	if err := h.Storage.Upload(r.Context(), thumbKey, thumbFile, thumbHeader.Size,
		thumbHeader.Header.Get("Content-Type")); err != nil {
		httputil.WriteJSON(w, 500, map[string]string{"error": "failed to store thumbnail"})
		return
	}

	tagsJSON, _ := json.Marshal(tags)
	_, err = h.DB.ExecContext(r.Context(), `
		INSERT INTO videos (id, owner_id, title, description, video_key, thumbnail_key, tags)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, videoID, userID, title, description, videoKey, thumbKey, string(tagsJSON))
	if err != nil {
		log.Printf("HandlePublish: insert failed: %v", err)
		httputil.WriteJSON(w, 500, map[string]string{"error": "failed to publish video"})
		return
	}

	httputil.WriteJSON(w, 201, map[string]interface{}{
		"id": videoID, "title": title, "tags": tags,
		"thumbnail_url": httputil.MediaURL(h.Storage.Bucket, thumbKey),
		"published":     true,
	})
}

// HandleList lists published videos with optional title/description search
// and created_at/views sorting.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	page, limit := httputil.PageParams(r, 20, 50)

	where := `WHERE v.published = 1`
	args := []interface{}{}

	if q := strings.TrimSpace(r.URL.Query().Get("query")); q != "" {
		where += ` AND (lower(v.title) LIKE ? ESCAPE '\' OR lower(v.description) LIKE ? ESCAPE '\')`
		pattern := "%" + db.LikeEscape(strings.ToLower(q)) + "%"
		args = append(args, pattern, pattern)
	}

	orderCol := "v.created_at"
	if r.URL.Query().Get("sort") == "views" {
		orderCol = "v.views"
	}
	direction := "DESC"
	if r.URL.Query().Get("order") == "asc" {
		direction = "ASC"
	}

	args = append(args, limit, (page-1)*limit)
	rows, err := h.DB.QueryContext(r.Context(), videoSelect+` `+where+`
		ORDER BY `+orderCol+` `+direction+`, v.id ASC
		LIMIT ? OFFSET ?`, args...)
	if err != nil {
		httputil.WriteJSON(w, 500, map[string]string{"error": "failed to list videos"})
		return
	}
	defer rows.Close()

	videos := make([]map[string]interface{}, 0)
	for rows.Next() {
		v, err := h.videoRow(rows.Scan)
		if err != nil {
			continue
		}
		videos = append(videos, v)
	}
	if err := rows.Err(); err != nil {
		log.Printf("HandleList: rows iteration error: %v", err)
	}

	httputil.WriteJSON(w, 200, map[string]interface{}{
		"videos": videos, "page": page, "limit": limit, "count": len(videos),
	})
}

// HandleMyVideos lists the caller's videos, including unpublished ones.
func (h *Handler) HandleMyVideos(w http.ResponseWriter, r *http.Request) {
	userID := r.Context().Value(auth.UserIDKey).(string)
	page, limit := httputil.PageParams(r, 20, 50)

	rows, err := h.DB.QueryContext(r.Context(), videoSelect+`
		WHERE v.owner_id = ?
		ORDER BY v.created_at DESC, v.id ASC
		LIMIT ? OFFSET ?`, userID, limit, (page-1)*limit)
	if err != nil {
		httputil.WriteJSON(w, 500, map[string]string{"error": "failed to list videos"})
		return
	}
	defer rows.Close()

	videos := make([]map[string]interface{}, 0)
	for rows.Next() {
		v, err := h.videoRow(rows.Scan)
		if err != nil {
			continue
		}
		videos = append(videos, v)
	}
	if err := rows.Err(); err != nil {
		log.Printf("HandleMyVideos: rows iteration error: %v", err)
	}

	httputil.WriteJSON(w, 200, map[string]interface{}{
		"videos": videos, "page": page, "limit": limit, "count": len(videos),
	})
}

// HandleGet returns one video. Unpublished videos are only visible to
// their owner.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	videoID := chi.URLParam(r, "id")

	row := h.DB.QueryRowContext(r.Context(), videoSelect+` WHERE v.id = ?`, videoID)
	v, err := h.videoRow(row.Scan)
	if err != nil {
		httputil.WriteJSON(w, 404, map[string]string{"error": "video not found"})
		return
	}

	if published, _ := v["published"].(bool); !published {
		userID, _ := auth.ExtractUserID(r)
		owner := v["owner"].(map[string]interface{})
		if userID == "" || userID != owner["id"] {
			httputil.WriteJSON(w, 404, map[string]string{"error": "video not found"})
			return
		}
	}

	httputil.WriteJSON(w, 200, v)
}

// HandleStream returns a short-lived signed URL for the video object.
func (h *Handler) HandleStream(w http.ResponseWriter, r *http.Request) {
	videoID := chi.URLParam(r, "id")

	var videoKey string
	err := h.DB.QueryRowContext(r.Context(),
		`SELECT video_key FROM videos WHERE id = ? AND published = 1`,
		videoID).Scan(&videoKey)
	if err != nil {
		httputil.WriteJSON(w, 404, map[string]string{"error": "video not found"})
		return
	}

	streamURL, err := h.Storage.PresignedStreamURL(r.Context(), videoKey, 2*time.Hour)
	if err != nil {
		httputil.WriteJSON(w, 500, map[string]string{"error": "failed to generate stream URL"})
		return
	}

	httputil.WriteJSON(w, 200, map[string]string{"url": streamURL})
}

// UpdateMetaRequest is the JSON body for PATCH /api/videos/{id}.
type UpdateMetaRequest struct {
	Title       *string   `json:"title"`
	Description *string   `json:"description"`
	Tags        *[]string `json:"tags"`
}

// HandleUpdateMeta edits title, description and tags of an owned video.
func (h *Handler) HandleUpdateMeta(w http.ResponseWriter, r *http.Request) {
	userID := r.Context().Value(auth.UserIDKey).(string)
	videoID := chi.URLParam(r, "id")
	httputil.MaxBody(r, httputil.DefaultBodyLimit)

	var req UpdateMetaRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteJSON(w, 400, map[string]string{"error": "invalid request body"})
		return
	}

	sets := []string{"updated_at = " + h.DB.NowUTC()}
	args := []interface{}{}
	if req.Title != nil {
		if strings.TrimSpace(*req.Title) == "" {
			httputil.WriteJSON(w, 400, map[string]string{"error": "title must not be empty"})
			return
		}
		sets = append(sets, "title = ?")
		args = append(args, strings.TrimSpace(*req.Title))
	}
	if req.Description != nil {
		sets = append(sets, "description = ?")
		args = append(args, strings.TrimSpace(*req.Description))
	}
	if req.Tags != nil {
		tagsJSON, _ := json.Marshal(*req.Tags)
		sets = append(sets, "tags = ?")
		args = append(args, string(tagsJSON))
	}

	args = append(args, videoID, userID)
	res, err := h.DB.ExecContext(r.Context(),
		`UPDATE videos SET `+strings.Join(sets, ", ")+` WHERE id = ? AND owner_id = ?`, args...)
	if err != nil {
		httputil.WriteJSON(w, 500, map[string]string{"error": "failed to update video"})
		return
	}
	if n, _ := res.RowsAffected(); n == 0 {
		httputil.WriteJSON(w, 404, map[string]string{"error": "video not found"})
		return
	}

	httputil.WriteJSON(w, 200, map[string]string{"status": "updated"})
}

// HandleUpdateThumbnail swaps the thumbnail object of an owned video.
func (h *Handler) HandleUpdateThumbnail(w http.ResponseWriter, r *http.Request) {
	userID := r.Context().Value(auth.UserIDKey).(string)
	videoID := chi.URLParam(r, "id")

	var oldKey string
	err := h.DB.QueryRowContext(r.Context(),
		`SELECT thumbnail_key FROM videos WHERE id = ? AND owner_id = ?`,
		videoID, userID).Scan(&oldKey)
	if err != nil {
		httputil.WriteJSON(w, 404, map[string]string{"error": "video not found"})
		return
	}

	if err := r.ParseMultipartForm(maxImageUpload); err != nil {
		httputil.WriteJSON(w, 400, map[string]string{"error": "invalid multipart form"})
		return
	}
	file, header, err := r.FormFile("thumbnail")
	if err != nil {
		httputil.WriteJSON(w, 400, map[string]string{"error": "thumbnail file is required"})
		return
	}
	defer file.Close()

	newKey := "thumbnails/" + videoID + path.Ext(header.Filename)
	if err := h.Storage.Upload(r.Context(), newKey, file, header.Size,
		header.Header.Get("Content-Type")); err != nil {
		httputil.WriteJSON(w, 500, map[string]string{"error": "failed to store thumbnail"})
		return
	}

	if _, err := h.DB.ExecContext(r.Context(),
		`UPDATE videos SET thumbnail_key = ?, updated_at = `+h.DB.NowUTC()+` WHERE id = ? AND owner_id = ?`,
		newKey, videoID, userID); err != nil {
		httputil.WriteJSON(w, 500, map[string]string{"error": "failed to update thumbnail"})
		return
	}

	if oldKey != "" && oldKey != newKey {
		if err := h.Storage.Remove(r.Context(), oldKey); err != nil {
			log.Printf("HandleUpdateThumbnail: remove old object %s: %v", oldKey, err)
		}
	}

	httputil.WriteJSON(w, 200, map[string]string{
		"thumbnail_url": httputil.MediaURL(h.Storage.Bucket, newKey),
	})
}

// HandleTogglePublish flips the publication flag of an owned video.
func (h *Handler) HandleTogglePublish(w http.ResponseWriter, r *http.Request) {
	userID := r.Context().Value(auth.UserIDKey).(string)
	videoID := chi.URLParam(r, "id")

	res, err := h.DB.ExecContext(r.Context(), `
		UPDATE videos SET published = 1 - published, updated_at = `+h.DB.NowUTC()+`
		WHERE id = ? AND owner_id = ?`, videoID, userID)
	if err != nil {
		httputil.WriteJSON(w, 500, map[string]string{"error": "failed to toggle publish status"})
		return
	}
	if n, _ := res.RowsAffected(); n == 0 {
		httputil.WriteJSON(w, 404, map[string]string{"error": "video not found"})
		return
	}

	var published int
	h.DB.QueryRowContext(r.Context(), `SELECT published FROM videos WHERE id = ?`, videoID).Scan(&published)
	httputil.WriteJSON(w, 200, map[string]interface{}{"id": videoID, "published": published == 1})
}

// HandleDelete removes an owned video row and its stored objects.
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	userID := r.Context().Value(auth.UserIDKey).(string)
	videoID := chi.URLParam(r, "id")

	var videoKey, thumbKey string
	err := h.DB.QueryRowContext(r.Context(),
		`SELECT video_key, thumbnail_key FROM videos WHERE id = ? AND owner_id = ?`,
		videoID, userID).Scan(&videoKey, &thumbKey)
	if err != nil {
		httputil.WriteJSON(w, 404, map[string]string{"error": "video not found"})
		return
	}

	if _, err := h.DB.ExecContext(r.Context(),
		`DELETE FROM videos WHERE id = ? AND owner_id = ?`, videoID, userID); err != nil {
		httputil.WriteJSON(w, 500, map[string]string{"error": "failed to delete video"})
		return
	}

	for _, key := range []string{videoKey, thumbKey} {
		if err := h.Storage.Remove(r.Context(), key); err != nil {
			log.Printf("HandleDelete: remove object %s: %v", key, err)
		}
	}

	httputil.WriteJSON(w, 200, map[string]string{"status": "deleted"})
}

// HandleViewIncrement bumps the view counter of a published video.
// The route carries a per-IP rate limit.
func (h *Handler) HandleViewIncrement(w http.ResponseWriter, r *http.Request) {
	videoID := chi.URLParam(r, "id")

	res, err := h.DB.ExecContext(r.Context(),
		`UPDATE videos SET views = views + 1 WHERE id = ? AND published = 1`, videoID)
	if err != nil {
		httputil.WriteJSON(w, 500, map[string]string{"error": "failed to record view"})
		return
	}
	if n, _ := res.RowsAffected(); n == 0 {
		httputil.WriteJSON(w, 404, map[string]string{"error": "video not found"})
		return
	}

	var views int64
	h.DB.QueryRowContext(r.Context(), `SELECT views FROM videos WHERE id = ?`, videoID).Scan(&views)
	httputil.WriteJSON(w, 200, map[string]interface{}{"id": videoID, "views": views})
}
