package auth

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"the-keep/internal/core"
)

const authCookieName = "auth_token"

// Handler provides authentication HTTP handlers
type Handler struct {
	service *Service
	logger  *core.Logger
	limiter *IPRateLimiter
	secure  bool
}

// NewHandler creates a new authentication handler
func NewHandler(service *Service, logger *core.Logger, config *core.Config) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
		limiter: NewIPRateLimiter(config.Auth.LoginRateLimit, config.Auth.LoginRateBurst),
		secure:  config.Server.Env == "production",
	}
}

// LoginRequest represents a login request
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse represents a login response
type LoginResponse struct {
	User  *User  `json:"user"`
	Token *Token `json:"token"`
}

// LoginHandler handles user login
func (h *Handler) LoginHandler(w http.ResponseWriter, r *http.Request) {
	ip := clientIP(r)
	if !h.limiter.Allow(ip) {
		h.logger.Warn("Login rate limit exceeded", "remote", ip)
		core.WriteErrorResponse(w, http.StatusTooManyRequests,
			core.NewRateLimitedError("Too many login attempts, try again later", nil))
		return
	}

	// Parse request
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.WriteErrorResponse(w, http.StatusBadRequest, core.NewAppError(
			core.ErrCodeValidation, "Invalid request body", err))
		return
	}

	// Validate input
	if req.Email == "" || req.Password == "" {
		core.WriteErrorResponse(w, http.StatusBadRequest, core.NewAppError(
			core.ErrCodeValidation, "Email and password are required", nil))
		return
	}

	// Authenticate user
	user, err := h.service.AuthenticateUser(r.Context(), req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidCredentials):
			h.logger.Warn("Failed login attempt", "email", req.Email, "remote", ip)
			core.WriteErrorResponse(w, http.StatusUnauthorized, core.NewAppError(
				core.ErrCodeUnauthorized, "Invalid credentials", err))
		case errors.Is(err, ErrUserNotActivated):
			core.WriteErrorResponse(w, http.StatusForbidden, core.NewAppError(
				core.ErrCodeForbidden, "Account not activated", err))
		default:
			h.logger.Error("Authentication error", "error", err)
			core.WriteErrorResponse(w, http.StatusInternalServerError, core.NewAppError(
				core.ErrCodeInternal, "Authentication failed", err))
		}
		return
	}

	// Create authentication token
	token, err := h.service.CreateAuthenticationToken(r.Context(), user)
	if err != nil {
		h.logger.Error("Token creation error", "error", err)
		core.WriteErrorResponse(w, http.StatusInternalServerError, core.NewAppError(
			core.ErrCodeInternal, "Failed to create authentication token", err))
		return
	}

	setAuthCookie(w, token, h.secure)

	response := LoginResponse{
		User:  user,
		Token: token,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": true,
		"data":    response,
	})

	h.logger.Info("User logged in", "user_id", user.ID, "email", user.Email)
}

// LogoutHandler handles user logout
func (h *Handler) LogoutHandler(w http.ResponseWriter, r *http.Request) {
	// Get user from context
	user := GetUserFromContext(r)
	if user.IsAnonymous() {
		core.WriteErrorResponse(w, http.StatusUnauthorized, core.NewAppError(
			core.ErrCodeUnauthorized, "Not authenticated", nil))
		return
	}

	// Logout user (invalidate tokens)
	err := h.service.LogoutUser(r.Context(), user.ID)
	if err != nil {
		h.logger.Error("Logout error", "error", err)
		core.WriteErrorResponse(w, http.StatusInternalServerError, core.NewAppError(
			core.ErrCodeInternal, "Logout failed", err))
		return
	}

	clearAuthCookie(w, h.secure)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": true,
		"message": "Logged out successfully",
	})

	h.logger.Info("User logged out", "user_id", user.ID, "email", user.Email)
}

// SessionMiddleware resolves the auth cookie into a request user.
func (h *Handler) SessionMiddleware(next http.Handler) http.Handler {
	return WebAuthMiddleware(h.service, h.secure)(next)
}

func setAuthCookie(w http.ResponseWriter, token *Token, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     authCookieName,
		Value:    token.Plaintext,
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteStrictMode,
		Expires:  token.Expiry,
	})
}

func clearAuthCookie(w http.ResponseWriter, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     authCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteStrictMode,
		Expires:  time.Now().Add(-1 * time.Hour), // Expire immediately
		MaxAge:   -1,
	})
}
