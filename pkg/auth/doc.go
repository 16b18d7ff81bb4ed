// Package auth implements PatentGuard's authentication core.
//
// Passwords are hashed with bcrypt by PasswordHasher. TokenCodec issues and
// verifies HS256 bearer tokens: short-lived access tokens whose subject is the
// account email, and refresh tokens tagged with type=refresh.
//
// Service ties both to a UserStore:
//
//	hasher, _ := auth.NewPasswordHasher(bcrypt.DefaultCost, logger, metrics)
//	tokens, _ := auth.NewTokenCodec(auth.TokenConfig{Secret: secret}, logger, metrics)
//	svc := auth.NewService(store, hasher, tokens, auth.NewAuditLogger(metrics))
//
//	user, err := svc.Register(ctx, auth.RegisterRequest{Email: "a@example.com", Password: "s3cretpass"})
//	res, err := svc.Login(ctx, "a@example.com", "s3cretpass")
//	principal, err := svc.ResolvePrincipal(ctx, res.AccessToken)
//
// Business outcomes are sentinel errors (ErrDuplicateEmail,
// ErrInvalidCredentials, ErrAccountInactive, ErrUnauthorized); store outages
// wrap ErrStoreUnavailable. Tokens are not stored server side, so they cannot
// be revoked before they expire.
//
// The principal resolved for a request travels in the context as an
// AuthContext; downstream code reads it with PrincipalFromContext.
package auth
