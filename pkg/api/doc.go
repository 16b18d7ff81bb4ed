// Package api provides the HTTP server for the PatentGuard authentication
// service.
//
// Routes are served with gorilla/mux and mounted both at the root and under
// /api:
//
//	POST /auth/register   JSON {email, password, full_name?}   201 public user
//	POST /auth/login      form username, password               200 tokens + user
//	POST /auth/refresh    JSON {refresh_token}                  200 tokens + user
//	GET  /auth/me         Authorization: Bearer <access token>  200 public user
//	GET  /auth/users/{id} Authorization: Bearer, superuser only 200 public user
//
// Service endpoints: GET / (banner), /health, /health/live, /ping and
// /metrics when a Prometheus registry is configured.
//
// Every request passes through request id, access logging, panic recovery,
// CORS and body size limits. Each auth route carries its own rate limit
// profile. Protected routes resolve the principal before they are limited, so
// a valid token spends the user's budget and a missing or bad one spends the
// caller address's budget before it gets its 401.
//
//	server := api.NewServer(cfg, api.Options{
//		Auth:        authService,
//		RateLimiter: limiter,
//		Health:      health,
//		Logger:      logger,
//	})
//	srv := server.HTTPServer()
package api
