package auth

import "errors"

// Business outcomes surfaced to the HTTP boundary, which owns the
// client-facing wording. Internal causes are only logged.
var (
	ErrDuplicateEmail     = errors.New("auth: email already registered")
	ErrInvalidCredentials = errors.New("auth: incorrect email or password")
	ErrAccountInactive    = errors.New("auth: inactive user")
	ErrUnauthorized       = errors.New("auth: could not validate credentials")
	ErrUserNotFound       = errors.New("auth: user not found")

	// ErrInvalidToken is the single outcome of every token decode failure
	ErrInvalidToken = errors.New("auth: invalid token")

	// ErrStoreUnavailable wraps credential store failures
	ErrStoreUnavailable = errors.New("auth: credential store unavailable")

	// ErrPasswordTooLong is returned by Hash for input bcrypt would truncate
	ErrPasswordTooLong = errors.New("auth: password exceeds 72 bytes")
)
