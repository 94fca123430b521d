package httputil

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
)

// DefaultBodyLimit is the default maximum request body size (1 MB).
const DefaultBodyLimit int64 = 1 << 20

// WriteJSON sends a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// MaxBody wraps r.Body with a size limit to prevent oversized payloads.
func MaxBody(r *http.Request, n int64) {
	r.Body = http.MaxBytesReader(nil, r.Body, n)
}

// LimitedBodyReader returns an io.Reader capped at DefaultBodyLimit.
func LimitedBodyReader(r *http.Request) io.Reader {
	return io.LimitReader(r.Body, DefaultBodyLimit)
}

// MediaURL builds the browser-facing URL for a MinIO object.
// path = "/storage/{bucket}/{key}" which nginx rewrites to /{bucket}/{key}
// and MinIO resolves as bucket + object-key.
func MediaURL(bucket, key string) string {
	if key == "" {
		return ""
	}
	return "/storage/" + bucket + "/" + key
}

// PageParams reads page and limit query parameters with clamping.
// page defaults to 1 (minimum 1); limit defaults to defLimit and is
// clamped to [1, maxLimit].
func PageParams(r *http.Request, defLimit, maxLimit int) (page, limit int) {
	page = 1
	if n, err := strconv.Atoi(r.URL.Query().Get("page")); err == nil && n > 1 {
		page = n
	}
	limit = defLimit
	if n, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil {
		limit = n
	}
	if limit < 1 {
		limit = 1
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	return page, limit
}
