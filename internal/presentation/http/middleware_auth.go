package httppresentation

import (
	"crypto/subtle"
	"errors"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/Zhima-Mochi/minishop-checkout/internal/observability"
	"github.com/Zhima-Mochi/minishop-checkout/internal/observability/logctx"
	"github.com/Zhima-Mochi/minishop-checkout/internal/pkg/auth"

	"github.com/golang-jwt/jwt/v5"
)

const (
	headerAPIKey       = "access_token"
	headerWebhookToken = "asaas-access-token"
	bearerPrefix       = "Bearer "
)

var (
	errNoUserID      = errors.New("token does not contain userId")
	errInvalidUserID = errors.New("token userId is not an integer")
)

// requireJWT verifies an HMAC bearer token and stores its userId claim in the context.
func (h *Handler) requireJWT(next http.Handler) http.Handler {
	key := []byte(h.jwtKey)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authz := r.Header.Get("Authorization")
		if !strings.HasPrefix(authz, bearerPrefix) {
			h.unauthorized(w, r, "Missing or invalid Authorization header")
			return
		}
		raw := strings.TrimSpace(strings.TrimPrefix(authz, bearerPrefix))
		if raw == "" || len(key) == 0 {
			h.unauthorized(w, r, "Invalid token")
			return
		}

		claims := jwt.MapClaims{}
		_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) { return key, nil },
			jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"}),
		)
		if err != nil {
			h.unauthorized(w, r, "Invalid or expired token")
			return
		}
		userID, err := userIDClaim(claims["userId"])
		if errors.Is(err, errNoUserID) {
			h.unauthorized(w, r, "Token does not contain userId")
			return
		}
		if err != nil {
			h.unauthorized(w, r, "Invalid or expired token")
			return
		}

		ctx, _ := logctx.Enrich(r.Context(), h.log, observability.F("user_id", userID))
		next.ServeHTTP(w, r.WithContext(auth.WithUserID(ctx, userID)))
	})
}

// userIDClaim accepts an integral numeric claim or a numeric string claim.
func userIDClaim(v any) (int64, error) {
	switch c := v.(type) {
	case float64:
		if c != math.Trunc(c) || c < math.MinInt64 || c >= math.MaxInt64 {
			return 0, errInvalidUserID
		}
		return int64(c), nil
	case string:
		if strings.TrimSpace(c) == "" {
			return 0, errNoUserID
		}
		return strconv.ParseInt(strings.TrimSpace(c), 10, 64)
	default:
		return 0, errNoUserID
	}
}

// requireAPIKey guards service-to-service endpoints with the shared access_token header.
func (h *Handler) requireAPIKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.apiKey == "" {
			h.unauthorized(w, r, "Server API key not configured")
			return
		}
		if !equalSecret(r.Header.Get(headerAPIKey), h.apiKey) {
			h.unauthorized(w, r, "Invalid API key")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requireWebhookToken checks the gateway's callback token when one is configured.
func (h *Handler) requireWebhookToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.webhookToken != "" && !equalSecret(r.Header.Get(headerWebhookToken), h.webhookToken) {
			h.unauthorized(w, r, "Invalid webhook token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// throttleWebhook paces gateway callbacks through the token bucket. Callbacks are always
// acknowledged, so a request that cannot get a token before its deadline is logged and served.
func (h *Handler) throttleWebhook(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.webhookLimit != nil {
			if err := h.webhookLimit.Wait(r.Context()); err != nil {
				logctx.FromOr(r.Context(), h.log).Warn("webhook_throttle_wait_failed",
					observability.F("route", routeFromContext(r.Context())),
					observability.F("error", err),
				)
			}
		}
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) unauthorized(w http.ResponseWriter, r *http.Request, msg string) {
	logctx.FromOr(r.Context(), h.log).Warn("http_unauthorized",
		observability.F("route", routeFromContext(r.Context())),
		observability.F("reason", msg),
	)
	writeError(w, http.StatusUnauthorized, msg)
}

func equalSecret(got, want string) bool {
	return subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}
