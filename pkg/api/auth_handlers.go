package api

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/intellium/patentguard/pkg/auth"
	"github.com/intellium/patentguard/pkg/httputil"
	"github.com/intellium/patentguard/pkg/middleware"
)

// AuthHandlers handles authentication-related HTTP requests
type AuthHandlers struct {
	service *auth.Service
	authMW  *middleware.AuthMiddleware
	limiter *middleware.RateLimiter
}

// NewAuthHandlers creates a new auth handlers instance. limiter may be nil.
func NewAuthHandlers(service *auth.Service, authMW *middleware.AuthMiddleware, limiter *middleware.RateLimiter) *AuthHandlers {
	return &AuthHandlers{
		service: service,
		authMW:  authMW,
		limiter: limiter,
	}
}

// RegisterRoutes registers authentication routes
func (h *AuthHandlers) RegisterRoutes(router *mux.Router) {
	router.Handle("/auth/register", h.limit(middleware.ProfileRegister, http.HandlerFunc(h.register))).Methods("POST")
	router.Handle("/auth/login", h.limit(middleware.ProfileLogin, http.HandlerFunc(h.login))).Methods("POST")
	router.Handle("/auth/refresh", h.limit(middleware.ProfileLogin, http.HandlerFunc(h.refresh))).Methods("POST")

	// Bad or missing tokens are counted against the caller's address before
	// the 401, valid ones against the user
	router.Handle("/auth/me", h.protected(http.HandlerFunc(h.me))).Methods("GET")
	router.Handle("/auth/users/{id:[0-9]+}", h.protected(middleware.RequireSuperuser(http.HandlerFunc(h.getUser)))).Methods("GET")
}

func (h *AuthHandlers) protected(next http.Handler) http.Handler {
	if h.limiter == nil {
		return h.authMW.RequireAuth(next)
	}
	return h.authMW.RequireAuth(next, h.limiter.Limit(middleware.ProfileDefault))
}

func (h *AuthHandlers) limit(profile string, next http.Handler) http.Handler {
	if h.limiter == nil {
		return next
	}
	return h.limiter.Limit(profile)(next)
}

// register handles POST /auth/register
func (h *AuthHandlers) register(w http.ResponseWriter, r *http.Request) {
	var req auth.RegisterRequest
	if err := httputil.ParseJSON(r, &req); err != nil {
		httputil.WriteAPIError(w, r, err)
		return
	}

	var v httputil.Validator
	v.Email("email", req.Email)
	v.Password("password", req.Password)
	v.MaxChars("full_name", req.FullName, httputil.MaxFullNameChars)
	if err := v.Err(); err != nil {
		httputil.WriteAPIError(w, r, err)
		return
	}

	user, err := h.service.Register(r.Context(), req)
	if err != nil {
		httputil.WriteAPIError(w, r, err)
		return
	}

	_ = httputil.WriteCreated(w, user.Public())
}

// login handles POST /auth/login with an OAuth2 password form
func (h *AuthHandlers) login(w http.ResponseWriter, r *http.Request) {
	form, err := httputil.ParseForm(r)
	if err != nil {
		httputil.WriteAPIError(w, r, err)
		return
	}

	var v httputil.Validator
	v.Required("username", form["username"])
	v.Required("password", form["password"])
	if err := v.Err(); err != nil {
		httputil.WriteAPIError(w, r, err)
		return
	}

	result, err := h.service.Login(r.Context(), form["username"], form["password"])
	if err != nil {
		httputil.WriteAPIError(w, r, err)
		return
	}

	_ = httputil.WriteSuccess(w, result)
}

// refresh handles POST /auth/refresh
func (h *AuthHandlers) refresh(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := httputil.ParseJSON(r, &req); err != nil {
		httputil.WriteAPIError(w, r, err)
		return
	}

	var v httputil.Validator
	v.Required("refresh_token", req.RefreshToken)
	if err := v.Err(); err != nil {
		httputil.WriteAPIError(w, r, err)
		return
	}

	result, err := h.service.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		httputil.WriteAPIError(w, r, err)
		return
	}

	_ = httputil.WriteSuccess(w, result)
}

// me handles GET /auth/me
func (h *AuthHandlers) me(w http.ResponseWriter, r *http.Request) {
	user := auth.PrincipalFromContext(r.Context())
	if user == nil {
		httputil.WriteUnauthorized(w, r)
		return
	}
	_ = httputil.WriteSuccess(w, user.Public())
}

// getUser handles GET /auth/users/{id} for superusers
func (h *AuthHandlers) getUser(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		httputil.WriteAPIError(w, r, auth.ErrUserNotFound)
		return
	}

	user, err := h.service.GetUser(r.Context(), id)
	if err != nil {
		httputil.WriteAPIError(w, r, err)
		return
	}

	_ = httputil.WriteSuccess(w, user.Public())
}
