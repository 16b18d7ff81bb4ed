package auth

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/intellium/patentguard/pkg/observability"
	"github.com/intellium/patentguard/pkg/storage"
)

const tracerName = "github.com/intellium/patentguard/pkg/auth"

// Service implements registration, login, token refresh and principal
// resolution over a UserStore.
type Service struct {
	store  UserStore
	hasher *PasswordHasher
	tokens *TokenCodec
	audit  *AuditLogger
	tracer trace.Tracer
}

// NewService wires the auth core. audit may be nil.
func NewService(store UserStore, hasher *PasswordHasher, tokens *TokenCodec, audit *AuditLogger) *Service {
	return &Service{
		store:  store,
		hasher: hasher,
		tokens: tokens,
		audit:  audit,
		tracer: observability.Tracer(tracerName),
	}
}

// WithTracerProvider replaces the global tracer provider. Used by tests.
func (s *Service) WithTracerProvider(tp trace.TracerProvider) *Service {
	s.tracer = tp.Tracer(tracerName)
	return s
}

// Register creates an active, non-privileged account
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*User, error) {
	ctx, span := s.tracer.Start(ctx, "auth.Register")
	defer span.End()

	_, err := s.store.FindByEmail(ctx, req.Email)
	switch {
	case err == nil:
		s.record(ctx, ActionRegister, StatusFailure, &AuditEvent{Email: req.Email, Reason: "duplicate_email"})
		return nil, ErrDuplicateEmail
	case !errors.Is(err, storage.ErrNotFound):
		return nil, s.storeFailure(ctx, ActionRegister, "find user by email", err)
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, err
	}

	user, err := s.store.Insert(ctx, &User{
		Email:        req.Email,
		PasswordHash: hash,
		FullName:     req.FullName,
		IsActive:     true,
	})
	if err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			s.record(ctx, ActionRegister, StatusFailure, &AuditEvent{Email: req.Email, Reason: "duplicate_email"})
			return nil, ErrDuplicateEmail
		}
		return nil, s.storeFailure(ctx, ActionRegister, "insert user", err)
	}

	s.record(ctx, ActionRegister, StatusSuccess, &AuditEvent{UserID: user.ID, Email: user.Email})
	return user, nil
}

// Login verifies credentials and issues an access and refresh token pair.
// Unknown email and wrong password are indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	ctx, span := s.tracer.Start(ctx, "auth.Login")
	defer span.End()

	user, err := s.store.FindByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			return nil, s.storeFailure(ctx, ActionLogin, "find user by email", err)
		}
		s.hasher.VerifyDummy(password)
		s.record(ctx, ActionLogin, StatusFailure, &AuditEvent{Email: email, Reason: "unknown_email"})
		return nil, ErrInvalidCredentials
	}

	if !s.hasher.Verify(password, user.PasswordHash) {
		s.record(ctx, ActionLogin, StatusFailure, &AuditEvent{UserID: user.ID, Email: email, Reason: "wrong_password"})
		return nil, ErrInvalidCredentials
	}

	if !user.IsActive {
		s.record(ctx, ActionLogin, StatusDenied, &AuditEvent{UserID: user.ID, Email: email, Reason: "inactive"})
		return nil, ErrAccountInactive
	}

	access, err := s.tokens.Issue(user.Email, AccessToken, 0)
	if err != nil {
		return nil, err
	}
	refresh, err := s.tokens.Issue(user.Email, RefreshToken, 0)
	if err != nil {
		return nil, err
	}

	s.record(ctx, ActionLogin, StatusSuccess, &AuditEvent{UserID: user.ID, Email: user.Email})
	return s.result(user, access, refresh), nil
}

// Refresh exchanges a valid refresh token for a new access token. The
// refresh token itself is returned unchanged.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*LoginResult, error) {
	ctx, span := s.tracer.Start(ctx, "auth.Refresh")
	defer span.End()

	claims, err := s.tokens.Decode(refreshToken, RefreshToken)
	if err != nil {
		s.record(ctx, ActionRefresh, StatusFailure, &AuditEvent{Reason: "invalid_token"})
		return nil, ErrUnauthorized
	}

	user, err := s.lookupSubject(ctx, ActionRefresh, claims.Subject)
	if err != nil {
		return nil, err
	}

	if !user.IsActive {
		s.record(ctx, ActionRefresh, StatusDenied, &AuditEvent{UserID: user.ID, Email: user.Email, Reason: "inactive"})
		return nil, ErrAccountInactive
	}

	access, err := s.tokens.Issue(user.Email, AccessToken, 0)
	if err != nil {
		return nil, err
	}

	s.record(ctx, ActionRefresh, StatusSuccess, &AuditEvent{UserID: user.ID, Email: user.Email})
	return s.result(user, access, refreshToken), nil
}

// ResolvePrincipal maps an access token to its user. Inactive users are
// still resolved; callers decide what to do with them.
func (s *Service) ResolvePrincipal(ctx context.Context, bearerToken string) (*User, error) {
	ctx, span := s.tracer.Start(ctx, "auth.ResolvePrincipal")
	defer span.End()

	claims, err := s.tokens.Decode(bearerToken, AccessToken)
	if err != nil {
		s.record(ctx, ActionResolve, StatusFailure, &AuditEvent{Reason: "invalid_token"})
		return nil, ErrUnauthorized
	}
	return s.lookupSubject(ctx, ActionResolve, claims.Subject)
}

// EnsureSuperuser creates the bootstrap superuser unless an account with that
// email already exists. created reports whether a new account was inserted.
func (s *Service) EnsureSuperuser(ctx context.Context, email, password string) (*User, bool, error) {
	ctx, span := s.tracer.Start(ctx, "auth.EnsureSuperuser")
	defer span.End()

	existing, err := s.store.FindByEmail(ctx, email)
	switch {
	case err == nil:
		return existing, false, nil
	case !errors.Is(err, storage.ErrNotFound):
		return nil, false, s.storeFailure(ctx, ActionBootstrap, "find user by email", err)
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, false, err
	}

	user, err := s.store.Insert(ctx, &User{
		Email:        email,
		PasswordHash: hash,
		FullName:     "Administrator",
		IsActive:     true,
		IsSuperuser:  true,
	})
	if err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			existing, err := s.store.FindByEmail(ctx, email)
			if err != nil {
				return nil, false, s.storeFailure(ctx, ActionBootstrap, "find user by email", err)
			}
			return existing, false, nil
		}
		return nil, false, s.storeFailure(ctx, ActionBootstrap, "insert user", err)
	}

	s.record(ctx, ActionBootstrap, StatusSuccess, &AuditEvent{UserID: user.ID, Email: user.Email})
	return user, true, nil
}

// GetUser returns the user with the given id
func (s *Service) GetUser(ctx context.Context, id int64) (*User, error) {
	ctx, span := s.tracer.Start(ctx, "auth.GetUser")
	defer span.End()

	user, err := s.store.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, s.storeFailure(ctx, ActionLookup, "find user by id", err)
	}
	return user, nil
}

func (s *Service) lookupSubject(ctx context.Context, action, subject string) (*User, error) {
	user, err := s.store.FindByEmail(ctx, subject)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			s.record(ctx, action, StatusFailure, &AuditEvent{Email: subject, Reason: "unknown_subject"})
			return nil, ErrUnauthorized
		}
		return nil, s.storeFailure(ctx, action, "find user by email", err)
	}
	return user, nil
}

func (s *Service) result(user *User, access, refresh string) *LoginResult {
	return &LoginResult{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    TokenTypeBearer,
		ExpiresIn:    int64(s.tokens.TTL(AccessToken).Seconds()),
		User:         user.Public(),
	}
}

func (s *Service) storeFailure(ctx context.Context, action, op string, err error) error {
	span := trace.SpanFromContext(ctx)
	span.RecordError(err)
	span.SetStatus(codes.Error, op)

	s.record(ctx, action, StatusError, &AuditEvent{Reason: op, Err: err})
	return fmt.Errorf("%s: %w: %w", op, ErrStoreUnavailable, err)
}

func (s *Service) record(ctx context.Context, action, status string, ev *AuditEvent) {
	attrs := []attribute.KeyValue{attribute.String("auth.status", status)}
	if ev.Reason != "" && status != StatusError {
		attrs = append(attrs, attribute.String("auth.reason", ev.Reason))
	}
	trace.SpanFromContext(ctx).SetAttributes(attrs...)

	if s.audit == nil {
		return
	}
	ev.Action = action
	ev.Status = status
	_ = s.audit.LogAction(ctx, ev)
}
