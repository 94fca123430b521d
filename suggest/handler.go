package suggest

import (
	"errors"
	"log"
	"net/http"

	"vidtube/httputil"

	"github.com/go-chi/chi/v5"
)

// Handler serves the suggestion endpoint.
type Handler struct {
	Engine      *Engine
	MinioBucket string
}

// HandleSuggested serves GET /api/videos/{id}/suggested.
func (h *Handler) HandleSuggested(w http.ResponseWriter, r *http.Request) {
	seedID := chi.URLParam(r, "id")
	page, limit := httputil.PageParams(r, DefaultLimit, MaxLimit)

	result, err := h.Engine.Suggest(r.Context(), seedID, page, limit)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidSeed):
			httputil.WriteJSON(w, 400, map[string]string{"error": "invalid video id"})
		case errors.Is(err, ErrSeedNotFound):
			httputil.WriteJSON(w, 404, map[string]string{"error": "video not found"})
		default:
			log.Printf("HandleSuggested: %v", err)
			httputil.WriteJSON(w, 500, map[string]string{"error": "failed to load suggestions"})
		}
		return
	}

	videos := make([]map[string]interface{}, 0, len(result.Items))
	for _, c := range result.Items {
		owner := result.Owners[c.OwnerID]
		item := map[string]interface{}{
			"id": c.ID, "title": c.Title, "tags": c.Tags,
			"thumbnail_key": c.ThumbnailKey,
			"thumbnail_url": httputil.MediaURL(h.MinioBucket, c.ThumbnailKey),
			"duration_seconds": c.DurationSeconds,
			"views":            c.Views,
			"published":        c.Published,
			"created_at":       c.CreatedAt,
			"owner": map[string]interface{}{
				"id": owner.ID, "display_name": owner.DisplayName,
				"avatar_url": httputil.MediaURL(h.MinioBucket, owner.AvatarKey),
			},
		}
		if c.MatchCount > 0 {
			item["match_count"] = c.MatchCount
		}
		videos = append(videos, item)
	}

	httputil.WriteJSON(w, 200, map[string]interface{}{
		"videos": videos,
		"page":   result.Page,
		"limit":  result.Limit,
		"count":  len(videos),
	})
}
