package handlers

import (
	"log"
	"net/http"

	"github.com/blockwatch/blockwatch/internal/api"
	"github.com/blockwatch/blockwatch/internal/middleware"
	"github.com/blockwatch/blockwatch/internal/utils"
)

// AuthHandler exchanges the admin credentials for a bearer token
type AuthHandler struct {
	tokens *middleware.JWTAuthMiddleware
}

func NewAuthHandler(tokens *middleware.JWTAuthMiddleware) *AuthHandler {
	return &AuthHandler{tokens: tokens}
}

// SetupRoutes mounts /auth/login (public) and /auth/verify (token required)
func (h *AuthHandler) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /auth/login", h.login)
	mux.HandleFunc("GET /auth/verify", h.verify)
}

func (h *AuthHandler) login(w http.ResponseWriter, r *http.Request) {
	var creds api.LoginRequest
	if !api.Bind(w, r, &creds) {
		return
	}
	who := utils.EscapeForLogging(creds.Username, 64)

	if !h.tokens.ValidateCredentials(creds.Username, creds.Password) {
		log.Printf("AuthHandler: Rejected login for %q from %s", who, r.RemoteAddr)
		api.RespondError(w, http.StatusUnauthorized, "Invalid username or password")
		return
	}

	token, err := h.tokens.GenerateToken(creds.Username)
	if err != nil {
		api.RespondInternalError(w, "issue token", err)
		return
	}
	log.Printf("AuthHandler: Issued token to %q from %s", who, r.RemoteAddr)

	api.RespondJSON(w, http.StatusOK, api.LoginResponse{
		Token:     token,
		Username:  creds.Username,
		ExpiresIn: int(h.tokens.TokenTTL().Seconds()),
	})
}

// verify echoes the authenticated user; the JWT middleware has already rejected bad tokens
func (h *AuthHandler) verify(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUserFromContext(r.Context())
	if user == "" {
		api.RespondError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}
	api.RespondJSON(w, http.StatusOK, struct {
		Valid    bool   `json:"valid"`
		Username string `json:"username"`
	}{Valid: true, Username: user})
}
