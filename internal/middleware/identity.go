package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"storefront/internal/model"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	// SessionCookie carries the guest session token.
	SessionCookie = "session_id"
	// SessionHeader is the header alternative to the session cookie.
	SessionHeader = "X-Session-ID"

	sessionCookieTTL = model.GuestCartTTL
)

type contextKey struct{}

// Principal is the caller identity resolved for a request.
type Principal struct {
	UserID    *int64
	Role      model.Role
	SessionID string
}

// IsUser reports whether the caller is authenticated.
func (p Principal) IsUser() bool {
	return p.UserID != nil
}

// IsAdmin reports whether the caller holds the admin role.
func (p Principal) IsAdmin() bool {
	return p.Role == model.RoleAdmin
}

// CartIdentity returns the cart owner for the principal. Authenticated users
// own their cart by user id; everyone else by session.
func (p Principal) CartIdentity() model.Identity {
	if p.UserID != nil {
		return model.UserIdentity(*p.UserID)
	}
	return model.SessionIdentity(p.SessionID)
}

// Actor converts the principal for order operations.
func (p Principal) Actor() model.Actor {
	return model.Actor{UserID: p.UserID, Role: p.Role}
}

// Claims is the JWT payload accepted by Identity.
type Claims struct {
	Role model.Role `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// WithPrincipal stores p on the context.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, contextKey{}, p)
}

// FromContext returns the principal resolved by Identity.
func FromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(contextKey{}).(Principal)
	return p, ok
}

// IssueToken signs an HS256 token for a user. Used by tests and local tooling.
func IssueToken(secret []byte, userID int64, role model.Role, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(userID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// Identity resolves the caller from a bearer token, else from the session
// cookie or header, else issues a new guest session.
func Identity(secret []byte, logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var p Principal

			if token, ok := bearerToken(r); ok {
				userID, role, err := parseToken(secret, token)
				if err != nil {
					logger.Warn().Err(err).Str("path", r.URL.Path).Msg("invalid bearer token")
					writeError(w, http.StatusUnauthorized, model.ErrCodeUnauthorised, "Invalid or expired token")
					return
				}
				p.UserID = &userID
				p.Role = role
			}

			p.SessionID = sessionFromRequest(r)
			if p.UserID == nil && p.SessionID == "" {
				p.SessionID = uuid.NewString()
				http.SetCookie(w, &http.Cookie{
					Name:     SessionCookie,
					Value:    p.SessionID,
					Path:     "/",
					MaxAge:   int(sessionCookieTTL / time.Second),
					HttpOnly: true,
					SameSite: http.SameSiteLaxMode,
				})
				w.Header().Set(SessionHeader, p.SessionID)
			}

			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
		})
	}
}

// RequireUser rejects requests without an authenticated user.
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, _ := FromContext(r.Context())
		if !p.IsUser() {
			writeError(w, http.StatusUnauthorized, model.ErrCodeUnauthorised, "Authentication required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", false
	}
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	return strings.TrimSpace(token), true
}

func parseToken(secret []byte, raw string) (int64, model.Role, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return 0, "", fmt.Errorf("failed to parse token: %w", err)
	}

	if claims.Subject == "" {
		return 0, "", errors.New("token has no subject")
	}
	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || userID <= 0 {
		return 0, "", fmt.Errorf("invalid subject %q", claims.Subject)
	}

	role := claims.Role
	if role == "" {
		role = model.RoleCustomer
	}
	return userID, role, nil
}

func sessionFromRequest(r *http.Request) string {
	if c, err := r.Cookie(SessionCookie); err == nil && c.Value != "" {
		return c.Value
	}
	return strings.TrimSpace(r.Header.Get(SessionHeader))
}
