// Package middleware provides the request identity resolver and the
// fixed-window rate limiter.
//
// # Authentication
//
//	authMW := middleware.NewAuthMiddleware(authService)
//	router.Handle("/auth/me", authMW.RequireAuth(meHandler, limiter.Limit(middleware.ProfileDefault)))
//
// RequireAuth answers 401 with WWW-Authenticate: Bearer when the token is
// missing or does not resolve. The gates passed to it run before that
// answer, so rejected requests are still rate limited. OptionalAuth rejects
// only on a store outage. Handlers read the principal with
// auth.PrincipalFromContext.
//
// # Rate Limiting
//
// Each route names a profile. A profile is a list of fixed windows, each
// counted independently per identity ("user:<id>" when authenticated,
// "ip:<addr>" otherwise):
//
//	register  5/minute
//	login     10/minute
//	default   100/minute,1000/hour
//
// Counters live in process (MemoryCounter, bounded LRU shards) or in Redis
// (RedisCounter) when several instances share limits:
//
//	limiter, err := middleware.NewRateLimiter(counter, middleware.RateLimiterConfig{
//		Enabled:  true,
//		Profiles: profiles,
//	}, logger, metrics)
//	router.Handle("/auth/login", limiter.Limit(middleware.ProfileLogin)(loginHandler))
//
// Counter errors fail open.
package middleware
