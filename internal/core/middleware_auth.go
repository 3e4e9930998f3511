package core

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"

	"penpal/internal/types"
)

const (
	// AdminKeyHeader carries the operator key for /v1/admin routes. A Bearer
	// Authorization header is accepted as well.
	AdminKeyHeader = "X-Admin-Key"
	// UserIDHeader carries the caller's user ID, set by the upstream gateway
	// after it authenticates the user.
	UserIDHeader = "X-User-ID"
)

// AdminKeyMiddleware guards operator endpoints with the configured admin key.
//
//   - auth_token_missing: neither X-Admin-Key nor a Bearer token was sent.
//   - auth_token_invalid: the key does not match.
//
// The comparison is constant-time. A server without a configured key rejects
// every admin request.
func (s *Server) AdminKeyMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get(AdminKeyHeader)
		if key == "" {
			key = extractBearerToken(r.Header.Get("Authorization"))
		}
		if key == "" {
			s.writeAuthError(w, r, types.ErrCodeAuthTokenMissing, "Admin key is required")
			return
		}

		want := s.adminKey()
		if want == "" || subtle.ConstantTimeCompare([]byte(key), []byte(want)) != 1 {
			s.Logger.Warn("admin authentication failed",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.String("request_id", types.GetRequestID(r.Context())),
			)
			s.writeAuthError(w, r, types.ErrCodeAuthTokenInvalid, "Invalid admin key")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) adminKey() string {
	if s.Config == nil {
		return ""
	}
	return s.Config.Security.AdminAPIKey.Unmask()
}

// UserIdentityMiddleware copies X-User-ID into the request context. Requests
// without it continue anonymously; handlers that need a caller reject them.
func UserIdentityMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := strings.TrimSpace(r.Header.Get(UserIDHeader)); id != "" {
			r = r.WithContext(types.WithUserID(r.Context(), id))
		}
		next.ServeHTTP(w, r)
	})
}

// RequireUser returns the caller's user ID or writes a 401 and reports false.
func RequireUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	id, ok := types.GetUserID(r.Context())
	if !ok {
		Error(w, r, types.NewAppError(types.ErrCodeAuthTokenMissing,
			UserIDHeader+" header is required", nil))
		return "", false
	}
	return id, true
}

// extractBearerToken parses "Bearer <token>" (case-insensitive scheme per
// RFC 7235). Returns empty string if the format is invalid.
func extractBearerToken(authHeader string) string {
	const prefix = "Bearer "
	if len(authHeader) < len(prefix) {
		return ""
	}
	if !strings.EqualFold(authHeader[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(authHeader[len(prefix):])
}

// writeAuthError writes a 401 Unauthorized JSON response with the given error code.
func (s *Server) writeAuthError(w http.ResponseWriter, r *http.Request, code types.ErrorCode, message string) {
	resp := APIErrorResponse{
		Error: ErrorDetail{
			Code:      string(code),
			Message:   message,
			RequestID: types.GetRequestID(r.Context()),
		},
	}
	JSON(w, r, http.StatusUnauthorized, resp)
}
