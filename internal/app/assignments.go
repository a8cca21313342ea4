package app

import (
	"errors"
	"fmt"
	"time"

	"rentalmgmt/internal/policy"
	"rentalmgmt/pkg/domain"
	"rentalmgmt/pkg/store"
)

// AssignOwner sets the property's owner, overwriting any prior owner.
// Admin only; the target must already hold the owner role.
func (a *App) AssignOwner(actor domain.User, propertyID, userID uint) (domain.Property, error) {
	if !policy.CanAdministerProperties(actor) {
		return domain.Property{}, ErrForbidden
	}
	property, ok, err := a.store.GetPropertyByID(propertyID)
	if err != nil {
		return domain.Property{}, fmt.Errorf("fetch property: %w", err)
	}
	if !ok {
		return domain.Property{}, fmt.Errorf("%w: property", ErrNotFound)
	}
	user, ok, err := a.store.GetUserByID(userID)
	if err != nil {
		return domain.Property{}, fmt.Errorf("fetch user: %w", err)
	}
	if !ok {
		return domain.Property{}, fmt.Errorf("%w: user", ErrNotFound)
	}
	if user.Role != domain.RoleOwner {
		return domain.Property{}, fmt.Errorf("%w: user %d is not an owner", ErrInvalidRole, user.ID)
	}
	property.OwnerID = &user.ID
	if err := a.store.UpdateProperty(property); err != nil {
		return domain.Property{}, fmt.Errorf("update property: %w", err)
	}
	return property, nil
}

// AssignTenant links a tenant to a property. Admin or the property's
// current owner. The duplicate check deliberately ignores end dates: an
// ended tenancy still blocks re-assignment until its row is deleted.
func (a *App) AssignTenant(actor domain.User, propertyID, tenantID uint, start time.Time, end *time.Time) (domain.TenantAssignment, error) {
	property, ok, err := a.store.GetPropertyByID(propertyID)
	if err != nil {
		return domain.TenantAssignment{}, fmt.Errorf("fetch property: %w", err)
	}
	if !ok {
		return domain.TenantAssignment{}, fmt.Errorf("%w: property", ErrNotFound)
	}
	if !policy.CanManagePropertyTenants(actor, property) {
		return domain.TenantAssignment{}, ErrForbidden
	}
	user, ok, err := a.store.GetUserByID(tenantID)
	if err != nil {
		return domain.TenantAssignment{}, fmt.Errorf("fetch user: %w", err)
	}
	if !ok {
		return domain.TenantAssignment{}, fmt.Errorf("%w: tenant", ErrNotFound)
	}
	if user.Role != domain.RoleTenant {
		return domain.TenantAssignment{}, fmt.Errorf("%w: user %d is not a tenant", ErrInvalidRole, user.ID)
	}
	if _, exists, err := a.store.FindAssignment(propertyID, tenantID); err != nil {
		return domain.TenantAssignment{}, fmt.Errorf("check assignment: %w", err)
	} else if exists {
		return domain.TenantAssignment{}, fmt.Errorf("%w: tenant already assigned to property", ErrConflict)
	}
	if start.IsZero() {
		start = time.Now().UTC()
	}
	assignment, err := a.store.CreateAssignment(domain.TenantAssignment{
		PropertyID: propertyID,
		TenantID:   tenantID,
		StartDate:  start,
		EndDate:    end,
	})
	if err != nil {
		// A concurrent insert of the same pair loses to the unique index.
		if errors.Is(err, store.ErrDuplicate) {
			return domain.TenantAssignment{}, fmt.Errorf("%w: tenant already assigned to property", ErrConflict)
		}
		return domain.TenantAssignment{}, fmt.Errorf("save assignment: %w", err)
	}
	return assignment, nil
}

// UnassignTenant deletes the assignment row outright; no history is kept.
// Admin or the parent property's current owner.
func (a *App) UnassignTenant(actor domain.User, assignmentID uint) error {
	assignment, ok, err := a.store.GetAssignmentByID(assignmentID)
	if err != nil {
		return fmt.Errorf("fetch assignment: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: assignment", ErrNotFound)
	}
	property, ok, err := a.store.GetPropertyByID(assignment.PropertyID)
	if err != nil {
		return fmt.Errorf("fetch property: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: assignment %d references missing property %d", ErrInconsistent, assignment.ID, assignment.PropertyID)
	}
	if !policy.CanManagePropertyTenants(actor, property) {
		return ErrForbidden
	}
	if err := a.store.DeleteAssignment(assignmentID); err != nil {
		return fmt.Errorf("delete assignment: %w", err)
	}
	return nil
}
