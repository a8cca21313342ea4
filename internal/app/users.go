package app

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"rentalmgmt/internal/policy"
	"rentalmgmt/pkg/auth"
	"rentalmgmt/pkg/domain"
	"rentalmgmt/pkg/store"
)

// UserUpdate carries optional changes; nil fields are left untouched.
type UserUpdate struct {
	Username *string
	Email    *string
	Role     *string
}

// ListUsers returns users the actor may see, optionally filtered by role.
// Admins are unrestricted; owners see owners and tenants only; everyone
// else is denied.
func (a *App) ListUsers(actor domain.User, roleFilter string) ([]domain.User, error) {
	visible, ok := policy.VisibleUserRoles(actor)
	if !ok {
		return nil, ErrForbidden
	}
	if roleFilter != "" {
		role, err := domain.ParseRole(roleFilter)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrInvalidRole, roleFilter)
		}
		if visible != nil && !containsRole(visible, role) {
			return nil, ErrForbidden
		}
		return a.store.ListUsers(role)
	}
	return a.store.ListUsers(visible...)
}

// GetUser retrieves a single user: self, admin, or an owner viewing one of
// their tenants.
func (a *App) GetUser(actor domain.User, id uint) (domain.User, error) {
	target, ok, err := a.store.GetUserByID(id)
	if err != nil {
		return domain.User{}, fmt.Errorf("fetch user: %w", err)
	}
	if !ok {
		return domain.User{}, fmt.Errorf("%w: user", ErrNotFound)
	}
	var ownedTenants map[uint]bool
	if actor.Role == domain.RoleOwner {
		ownedTenants, err = a.ownedTenantIDs(actor.ID)
		if err != nil {
			return domain.User{}, err
		}
	}
	if !policy.CanReadUser(actor, target, ownedTenants) {
		return domain.User{}, ErrForbidden
	}
	return target, nil
}

// CreateUser creates an account on behalf of an administrator.
func (a *App) CreateUser(actor domain.User, username, email, password, role string) (domain.User, error) {
	if !policy.CanManageUsers(actor) {
		return domain.User{}, ErrForbidden
	}
	return a.createUser(username, email, password, role)
}

// UpdateUser applies profile changes. Self or admin; only admins change
// roles; username and email stay unique.
func (a *App) UpdateUser(actor domain.User, id uint, update UserUpdate) (domain.User, error) {
	target, ok, err := a.store.GetUserByID(id)
	if err != nil {
		return domain.User{}, fmt.Errorf("fetch user: %w", err)
	}
	if !ok {
		return domain.User{}, fmt.Errorf("%w: user", ErrNotFound)
	}
	if !policy.CanUpdateUser(actor, target) {
		return domain.User{}, ErrForbidden
	}
	if update.Role != nil && !policy.CanChangeRole(actor) {
		return domain.User{}, ErrForbidden
	}
	if update.Username != nil && *update.Username != target.Username {
		username := strings.TrimSpace(*update.Username)
		if username == "" {
			return domain.User{}, fmt.Errorf("%w: username required", ErrValidation)
		}
		if _, exists, err := a.store.GetUserByUsername(username); err != nil {
			return domain.User{}, fmt.Errorf("check username: %w", err)
		} else if exists {
			return domain.User{}, ErrUsernameExists
		}
		target.Username = username
	}
	if update.Email != nil && *update.Email != target.Email {
		email := strings.TrimSpace(strings.ToLower(*update.Email))
		if email == "" {
			return domain.User{}, fmt.Errorf("%w: email required", ErrValidation)
		}
		if _, exists, err := a.store.GetUserByEmail(email); err != nil {
			return domain.User{}, fmt.Errorf("check email: %w", err)
		} else if exists {
			return domain.User{}, ErrEmailExists
		}
		target.Email = email
	}
	if update.Role != nil {
		role, err := domain.ParseRole(*update.Role)
		if err != nil {
			return domain.User{}, fmt.Errorf("%w: %q", ErrInvalidRole, *update.Role)
		}
		target.Role = role
	}
	target.UpdatedAt = time.Now().UTC()
	if err := a.store.UpdateUser(target); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return domain.User{}, ErrConflict
		}
		return domain.User{}, fmt.Errorf("update user: %w", err)
	}
	return target, nil
}

// DeleteUser removes an account. Admin only, and never the admin's own.
func (a *App) DeleteUser(actor domain.User, id uint) error {
	if !policy.CanManageUsers(actor) {
		return ErrForbidden
	}
	target, ok, err := a.store.GetUserByID(id)
	if err != nil {
		return fmt.Errorf("fetch user: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: user", ErrNotFound)
	}
	if target.ID == actor.ID {
		return ErrAdminSelfDelete
	}
	if err := a.store.DeleteUser(id); err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	a.log.Info("user deleted", "user_id", id, "actor_id", actor.ID)
	return nil
}

func (a *App) createUser(username, email, password, role string) (domain.User, error) {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(strings.ToLower(email))
	if username == "" || email == "" || password == "" {
		return domain.User{}, fmt.Errorf("%w: username, email, and password required", ErrValidation)
	}
	parsed, err := domain.ParseRole(role)
	if err != nil {
		return domain.User{}, fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}
	if _, exists, err := a.store.GetUserByUsername(username); err != nil {
		return domain.User{}, fmt.Errorf("check username: %w", err)
	} else if exists {
		return domain.User{}, ErrUsernameExists
	}
	if _, exists, err := a.store.GetUserByEmail(email); err != nil {
		return domain.User{}, fmt.Errorf("check email: %w", err)
	} else if exists {
		return domain.User{}, ErrEmailExists
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return domain.User{}, err
	}
	now := time.Now().UTC()
	user, err := a.store.CreateUser(domain.User{
		Username:     username,
		Email:        email,
		Role:         parsed,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return domain.User{}, ErrConflict
		}
		return domain.User{}, fmt.Errorf("save user: %w", err)
	}
	return user, nil
}

// ownedTenantIDs collects tenant ids across all of the owner's properties.
func (a *App) ownedTenantIDs(ownerID uint) (map[uint]bool, error) {
	properties, err := a.store.ListPropertiesByOwner(ownerID)
	if err != nil {
		return nil, fmt.Errorf("list owned properties: %w", err)
	}
	ids := make(map[uint]bool)
	for _, p := range properties {
		assignments, err := a.store.ListAssignmentsByProperty(p.ID)
		if err != nil {
			return nil, fmt.Errorf("list assignments: %w", err)
		}
		for _, assignment := range assignments {
			ids[assignment.TenantID] = true
		}
	}
	return ids, nil
}

func containsRole(roles []domain.Role, role domain.Role) bool {
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}
