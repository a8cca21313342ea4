package app

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"rentalmgmt/pkg/auth"
	"rentalmgmt/pkg/domain"
	"rentalmgmt/pkg/storage"
	"rentalmgmt/pkg/store"
)

// Config wires the application's collaborators. All of them are required
// except Logger, which defaults to slog's default logger.
type Config struct {
	Store  store.Store
	Blobs  storage.BlobStore
	Tokens *auth.TokenService
	Logger *slog.Logger
}

// App implements the role-scoped operations of the API. Every method takes
// the authenticated actor explicitly; nothing here holds request state.
type App struct {
	store  store.Store
	blobs  storage.BlobStore
	tokens *auth.TokenService
	log    *slog.Logger
}

// New constructs the application.
func New(cfg Config) (*App, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if cfg.Blobs == nil {
		return nil, fmt.Errorf("blob store is required")
	}
	if cfg.Tokens == nil {
		return nil, fmt.Errorf("token service is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &App{
		store:  cfg.Store,
		blobs:  cfg.Blobs,
		tokens: cfg.Tokens,
		log:    logger,
	}, nil
}

// Register creates an account with the requested role and returns it.
func (a *App) Register(username, email, password, role string) (domain.User, error) {
	return a.createUser(username, email, password, role)
}

// Login validates credentials and issues a bearer token. The identifier is
// treated as an email when it contains "@".
func (a *App) Login(identifier, password string) (domain.User, string, error) {
	identifier = strings.TrimSpace(identifier)
	var (
		user domain.User
		ok   bool
		err  error
	)
	if strings.Contains(identifier, "@") {
		// Emails are stored lowercased at registration.
		user, ok, err = a.store.GetUserByEmail(strings.ToLower(identifier))
	} else {
		user, ok, err = a.store.GetUserByUsername(identifier)
	}
	if err != nil {
		return domain.User{}, "", fmt.Errorf("fetch user: %w", err)
	}
	if !ok || !auth.CheckPassword(password, user.PasswordHash) {
		return domain.User{}, "", ErrInvalidCredentials
	}
	token, err := a.tokens.Issue(user)
	if err != nil {
		return domain.User{}, "", fmt.Errorf("issue token: %w", err)
	}
	return user, token, nil
}

// UserFromToken resolves the actor behind a bearer token.
func (a *App) UserFromToken(token string) (domain.User, error) {
	claims, err := a.tokens.Resolve(token)
	if err != nil {
		return domain.User{}, ErrUnauthenticated
	}
	user, ok, err := a.store.GetUserByID(claims.UserID)
	if err != nil {
		return domain.User{}, fmt.Errorf("fetch user: %w", err)
	}
	if !ok {
		return domain.User{}, ErrUnauthenticated
	}
	return user, nil
}

// Logout revokes the presented token until its natural expiry.
func (a *App) Logout(token string) error {
	claims, err := a.tokens.Resolve(token)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidToken) || errors.Is(err, auth.ErrTokenRevoked) {
			return ErrUnauthenticated
		}
		return err
	}
	if err := a.tokens.Revoke(claims); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	return nil
}

// ChangePassword verifies the current password, stores a new hash, and
// revokes the session token the change was made with. The caller has to
// log in again with the new password.
func (a *App) ChangePassword(actor domain.User, token, currentPassword, newPassword string) error {
	if strings.TrimSpace(newPassword) == "" {
		return fmt.Errorf("%w: new password required", ErrValidation)
	}
	if !auth.CheckPassword(currentPassword, actor.PasswordHash) {
		return ErrInvalidCredentials
	}
	hash, err := auth.HashPassword(newPassword)
	if err != nil {
		return err
	}
	actor.PasswordHash = hash
	actor.UpdatedAt = time.Now().UTC()
	if err := a.store.UpdateUser(actor); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	if claims, err := a.tokens.Resolve(token); err == nil {
		if err := a.tokens.Revoke(claims); err != nil {
			a.log.Warn("revoke token after password change failed", "user_id", actor.ID, "error", err)
		}
	}
	return nil
}
