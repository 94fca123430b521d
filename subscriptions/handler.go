package subscriptions

import (
	"log"
	"net/http"

	"vidtube/auth"
	"vidtube/db"
	"vidtube/httputil"

	"github.com/go-chi/chi/v5"
)

// Handler holds dependencies for subscription endpoints.
type Handler struct {
	DB          *db.CompatDB
	MinioBucket string
}

// HandleToggle subscribes or unsubscribes the caller to a channel (user).
func (h *Handler) HandleToggle(w http.ResponseWriter, r *http.Request) {
	userID := r.Context().Value(auth.UserIDKey).(string)
	channelID := chi.URLParam(r, "id")

	if channelID == userID {
		httputil.WriteJSON(w, 400, map[string]string{"error": "cannot subscribe to yourself"})
		return
	}

	var exists int
	if err := h.DB.QueryRowContext(r.Context(),
		`SELECT 1 FROM users WHERE id = ?`, channelID).Scan(&exists); err != nil {
		httputil.WriteJSON(w, 404, map[string]string{"error": "channel not found"})
		return
	}

	res, err := h.DB.ExecContext(r.Context(),
		`DELETE FROM subscriptions WHERE subscriber_id = ? AND channel_id = ?`,
		userID, channelID)
	if err != nil {
		httputil.WriteJSON(w, 500, map[string]string{"error": "failed to toggle subscription"})
		return
	}

	subscribed := false
	if n, _ := res.RowsAffected(); n == 0 {
		if _, err := h.DB.ExecContext(r.Context(),
			`INSERT INTO subscriptions (subscriber_id, channel_id) VALUES (?, ?)`,
			userID, channelID); err != nil {
			httputil.WriteJSON(w, 500, map[string]string{"error": "failed to toggle subscription"})
			return
		}
		subscribed = true
	}

	var count int64
	h.DB.QueryRowContext(r.Context(),
		`SELECT COUNT(*) FROM subscriptions WHERE channel_id = ?`, channelID).Scan(&count)

	httputil.WriteJSON(w, 200, map[string]interface{}{
		"channel_id": channelID, "subscribed": subscribed, "subscribers": count,
	})
}

// HandleListSubscribers returns a channel's subscriber count and most
// recent subscribers.
func (h *Handler) HandleListSubscribers(w http.ResponseWriter, r *http.Request) {
	channelID := chi.URLParam(r, "id")

	var count int64
	h.DB.QueryRowContext(r.Context(),
		`SELECT COUNT(*) FROM subscriptions WHERE channel_id = ?`, channelID).Scan(&count)

	rows, err := h.DB.QueryContext(r.Context(), `
		SELECT u.id, u.display_name, u.avatar_key, s.created_at
		FROM subscriptions s
		JOIN users u ON s.subscriber_id = u.id
		WHERE s.channel_id = ?
		ORDER BY s.created_at DESC
		LIMIT 50`, channelID)
	if err != nil {
		httputil.WriteJSON(w, 500, map[string]string{"error": "failed to list subscribers"})
		return
	}
	defer rows.Close()

	subscribers := make([]map[string]interface{}, 0)
	for rows.Next() {
		var id, name, avatarKey, since string
		if err := rows.Scan(&id, &name, &avatarKey, &since); err != nil {
			continue
		}
		subscribers = append(subscribers, map[string]interface{}{
			"id": id, "display_name": name,
			"avatar_url": httputil.MediaURL(h.MinioBucket, avatarKey),
			"since":      since,
		})
	}
	if err := rows.Err(); err != nil {
		log.Printf("HandleListSubscribers: rows iteration error: %v", err)
	}

	httputil.WriteJSON(w, 200, map[string]interface{}{
		"channel_id": channelID, "subscribers": count, "recent": subscribers,
	})
}

// HandleListSubscriptions lists the channels the caller subscribes to.
func (h *Handler) HandleListSubscriptions(w http.ResponseWriter, r *http.Request) {
	userID := r.Context().Value(auth.UserIDKey).(string)

	rows, err := h.DB.QueryContext(r.Context(), `
		SELECT u.id, u.display_name, u.avatar_key, s.created_at,
		       (SELECT COUNT(*) FROM subscriptions s2 WHERE s2.channel_id = u.id)
		FROM subscriptions s
		JOIN users u ON s.channel_id = u.id
		WHERE s.subscriber_id = ?
		ORDER BY s.created_at DESC`, userID)
	if err != nil {
		httputil.WriteJSON(w, 500, map[string]string{"error": "failed to list subscriptions"})
		return
	}
	defer rows.Close()

	channels := make([]map[string]interface{}, 0)
	for rows.Next() {
		var id, name, avatarKey, since string
		var subscribers int64
		if err := rows.Scan(&id, &name, &avatarKey, &since, &subscribers); err != nil {
			continue
		}
		channels = append(channels, map[string]interface{}{
			"id": id, "display_name": name,
			"avatar_url":  httputil.MediaURL(h.MinioBucket, avatarKey),
			"since":       since,
			"subscribers": subscribers,
		})
	}
	if err := rows.Err(); err != nil {
		log.Printf("HandleListSubscriptions: rows iteration error: %v", err)
	}

	httputil.WriteJSON(w, 200, map[string]interface{}{"channels": channels, "count": len(channels)})
}
