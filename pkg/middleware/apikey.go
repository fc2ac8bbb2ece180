package middleware

import (
	"crypto/subtle"
	"log/slog"
	"net/http"

	"github.com/utafrali/catalogue/pkg/httputil"
)

// APIKeyHeader carries the shared secret for administrative endpoints.
const APIKeyHeader = "X-API-Key"

// APIKey rejects requests whose X-API-Key header does not match key.
// An empty key disables the check.
func APIKey(key string, l *slog.Logger) func(http.Handler) http.Handler {
	expected := []byte(key)

	return func(next http.Handler) http.Handler {
		if key == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := r.Header.Get(APIKeyHeader)
			if got == "" {
				writeUnauthorized(w, "missing "+APIKeyHeader+" header")
				return
			}
			if subtle.ConstantTimeCompare([]byte(got), expected) != 1 {
				l.WarnContext(r.Context(), "rejected api key",
					slog.String("path", r.URL.Path),
					slog.String("remote_addr", r.RemoteAddr),
				)
				writeUnauthorized(w, "invalid api key")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeUnauthorized(w http.ResponseWriter, message string) {
	httputil.WriteJSON(w, http.StatusUnauthorized, httputil.Response{
		Error: &httputil.ErrorResponse{Code: "UNAUTHORIZED", Message: message},
	})
}
