// Package httputil provides the HTTP plumbing shared by PatentGuard handlers.
//
// # Responses
//
// Successful responses are plain JSON:
//
//	httputil.WriteJSON(w, http.StatusOK, data)
//	httputil.WriteCreated(w, user.Public())
//
// Failures go through WriteAPIError, which maps sentinel errors from
// pkg/auth and this package onto a status and the error envelope:
//
//	{"error": "HTTP_401", "message": "Could not validate credentials", "details": null, "path": "/auth/me"}
//
// # Requests
//
//	var req auth.RegisterRequest
//	if err := httputil.ParseJSON(r, &req); err != nil {
//		httputil.WriteAPIError(w, r, err)
//		return
//	}
//
//	var v httputil.Validator
//	v.Email("email", req.Email)
//	v.Password("password", req.Password)
//	if err := v.Err(); err != nil { ... } // 422
//
// # Middleware
//
//	httputil.Chain(
//		httputil.RequestIDMiddleware,
//		httputil.LoggingMiddleware(logger, trustProxy),
//		httputil.RecoveryMiddleware,
//		httputil.MaxBytesMiddleware(1<<20),
//	)
package httputil
