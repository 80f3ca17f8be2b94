package middleware

import (
	"context"
	"crypto/subtle"
	"errors"
	"log"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/blockwatch/blockwatch/internal/api"
)

const tokenIssuer = "blockwatch"

// UserClaims is the token payload: the admin username plus registered claims
type UserClaims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// JWTAuthConfig configures the single admin account and token policy
type JWTAuthConfig struct {
	AdminUsername     string
	AdminPasswordHash string // bcrypt
	JWTSecret         string
	JWTExpiryHours    int

	// SkipPaths don't require a token. A trailing '*' matches by prefix.
	SkipPaths []string

	// QueryTokenPaths also accept the token as ?token=, for browser websocket clients.
	QueryTokenPaths []string
}

// JWTAuthMiddleware issues HS256 tokens and guards every route not listed in SkipPaths
type JWTAuthMiddleware struct {
	config JWTAuthConfig
	skip   map[string]bool
	prefix []string
	query  map[string]bool
	now    func() time.Time
}

type userContextKey struct{}

// NewJWTAuthMiddleware defaults the token lifetime to 24 hours
func NewJWTAuthMiddleware(config JWTAuthConfig) *JWTAuthMiddleware {
	if config.JWTExpiryHours <= 0 {
		config.JWTExpiryHours = 24
	}
	m := &JWTAuthMiddleware{
		config: config,
		skip:   make(map[string]bool),
		query:  make(map[string]bool),
		now:    time.Now,
	}
	for _, p := range config.SkipPaths {
		if strings.HasSuffix(p, "*") {
			m.prefix = append(m.prefix, strings.TrimSuffix(p, "*"))
			continue
		}
		m.skip[p] = true
	}
	for _, p := range config.QueryTokenPaths {
		m.query[p] = true
	}
	return m
}

func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(hash), err
}

// CheckPassword reports whether password matches a bcrypt hash
func CheckPassword(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// TokenTTL is how long issued tokens stay valid
func (m *JWTAuthMiddleware) TokenTTL() time.Duration {
	return time.Duration(m.config.JWTExpiryHours) * time.Hour
}

// GenerateToken signs a token for username valid for the configured lifetime
func (m *JWTAuthMiddleware) GenerateToken(username string) (string, error) {
	now := m.now()
	claims := UserClaims{
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   username,
			ExpiresAt: jwt.NewNumericDate(now.Add(m.TokenTTL())),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    tokenIssuer,
		},
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(m.config.JWTSecret))
}

// ValidateToken checks signature, algorithm, issuer and expiry
func (m *JWTAuthMiddleware) ValidateToken(tokenString string) (*UserClaims, error) {
	keyFunc := func(*jwt.Token) (interface{}, error) {
		return []byte(m.config.JWTSecret), nil
	}
	token, err := jwt.ParseWithClaims(tokenString, &UserClaims{}, keyFunc,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*UserClaims)
	if !ok || !token.Valid || claims.Username == "" {
		return nil, errors.New("token has no user")
	}
	return claims, nil
}

// ValidateCredentials compares against the configured admin account
func (m *JWTAuthMiddleware) ValidateCredentials(username, password string) bool {
	if subtle.ConstantTimeCompare([]byte(username), []byte(m.config.AdminUsername)) != 1 {
		return false
	}
	return CheckPassword(password, m.config.AdminPasswordHash)
}

// Wrap rejects requests without a valid token with 401. OPTIONS and skipped paths pass through.
func (m *JWTAuthMiddleware) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions || m.isPublic(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		raw, ok := m.bearer(r)
		if !ok {
			deny(w, "Missing authentication token")
			return
		}
		claims, err := m.ValidateToken(raw)
		if err != nil {
			log.Printf("JWTAuth: Rejected token for %s %s from %s: %v", r.Method, r.URL.Path, r.RemoteAddr, err)
			deny(w, "Invalid or expired token")
			return
		}
		next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), claims.Username)))
	})
}

func (m *JWTAuthMiddleware) isPublic(path string) bool {
	return m.skip[path] || slices.ContainsFunc(m.prefix, func(p string) bool {
		return strings.HasPrefix(path, p)
	})
}

// bearer reads the Authorization header, falling back to ?token= on query token paths
func (m *JWTAuthMiddleware) bearer(r *http.Request) (string, bool) {
	if tok, found := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); found {
		tok = strings.TrimSpace(tok)
		return tok, tok != ""
	}
	if !m.query[r.URL.Path] {
		return "", false
	}
	tok := r.URL.Query().Get("token")
	return tok, tok != ""
}

func deny(w http.ResponseWriter, message string) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="blockwatch"`)
	api.RespondError(w, http.StatusUnauthorized, message)
}

// GetUserFromContext returns the authenticated username, or "" on public routes
func GetUserFromContext(ctx context.Context) string {
	if user, ok := ctx.Value(userContextKey{}).(string); ok {
		return user
	}
	return ""
}

// WithUser returns ctx carrying username as the authenticated user.
func WithUser(ctx context.Context, username string) context.Context {
	return context.WithValue(ctx, userContextKey{}, username)
}
