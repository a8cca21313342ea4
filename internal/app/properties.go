package app

import (
	"context"
	"fmt"
	"strings"

	"rentalmgmt/internal/policy"
	"rentalmgmt/pkg/domain"
)

// PropertyInput carries the writable property fields.
type PropertyInput struct {
	Name    string
	Address string
	OwnerID *uint
}

// ListProperties returns all properties for an admin or the actor's own
// properties for an owner. Tenants are denied, not handed an empty list.
func (a *App) ListProperties(actor domain.User) ([]domain.Property, error) {
	if !policy.CanListProperties(actor) {
		return nil, ErrForbidden
	}
	if policy.IsAdmin(actor) {
		return a.store.ListProperties()
	}
	return a.store.ListPropertiesByOwner(actor.ID)
}

// GetProperty retrieves a single property under the three-way visibility
// rule: admin, owner, or an assigned tenant.
func (a *App) GetProperty(actor domain.User, id uint) (domain.Property, error) {
	return a.visibleProperty(actor, id)
}

// CreateProperty inserts a property. Admin only; a preset owner must
// already hold the owner role.
func (a *App) CreateProperty(actor domain.User, input PropertyInput) (domain.Property, error) {
	if !policy.CanAdministerProperties(actor) {
		return domain.Property{}, ErrForbidden
	}
	if err := a.validatePropertyInput(&input); err != nil {
		return domain.Property{}, err
	}
	property, err := a.store.CreateProperty(domain.Property{
		Name:    input.Name,
		Address: input.Address,
		OwnerID: input.OwnerID,
	})
	if err != nil {
		return domain.Property{}, fmt.Errorf("save property: %w", err)
	}
	return property, nil
}

// UpdateProperty replaces the property's writable fields. Admin only.
func (a *App) UpdateProperty(actor domain.User, id uint, input PropertyInput) (domain.Property, error) {
	if !policy.CanAdministerProperties(actor) {
		return domain.Property{}, ErrForbidden
	}
	property, ok, err := a.store.GetPropertyByID(id)
	if err != nil {
		return domain.Property{}, fmt.Errorf("fetch property: %w", err)
	}
	if !ok {
		return domain.Property{}, fmt.Errorf("%w: property", ErrNotFound)
	}
	if err := a.validatePropertyInput(&input); err != nil {
		return domain.Property{}, err
	}
	property.Name = input.Name
	property.Address = input.Address
	property.OwnerID = input.OwnerID
	if err := a.store.UpdateProperty(property); err != nil {
		return domain.Property{}, fmt.Errorf("update property: %w", err)
	}
	return property, nil
}

// DeleteProperty removes the property together with its assignments and
// invoices; stored attachments are cleaned up best-effort first.
func (a *App) DeleteProperty(ctx context.Context, actor domain.User, id uint) error {
	if !policy.CanAdministerProperties(actor) {
		return ErrForbidden
	}
	_, ok, err := a.store.GetPropertyByID(id)
	if err != nil {
		return fmt.Errorf("fetch property: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: property", ErrNotFound)
	}
	invoices, err := a.store.ListInvoicesByProperty(id)
	if err != nil {
		return fmt.Errorf("list invoices: %w", err)
	}
	for _, invoice := range invoices {
		if invoice.FilePath == "" {
			continue
		}
		if err := a.blobs.Delete(ctx, invoice.FilePath); err != nil {
			a.log.Warn("delete attachment failed", "invoice_id", invoice.ID, "error", err)
		}
	}
	if err := a.store.DeleteProperty(id); err != nil {
		return fmt.Errorf("delete property: %w", err)
	}
	a.log.Info("property deleted", "property_id", id, "actor_id", actor.ID)
	return nil
}

func (a *App) validatePropertyInput(input *PropertyInput) error {
	input.Name = strings.TrimSpace(input.Name)
	input.Address = strings.TrimSpace(input.Address)
	if input.Name == "" || input.Address == "" {
		return fmt.Errorf("%w: name and address required", ErrValidation)
	}
	if input.OwnerID != nil {
		owner, ok, err := a.store.GetUserByID(*input.OwnerID)
		if err != nil {
			return fmt.Errorf("fetch owner: %w", err)
		}
		if !ok {
			return fmt.Errorf("%w: owner", ErrNotFound)
		}
		if owner.Role != domain.RoleOwner {
			return fmt.Errorf("%w: user %d is not an owner", ErrInvalidRole, owner.ID)
		}
	}
	return nil
}

// visibleProperty fetches a property and applies the shared three-way
// visibility check used by property reads and all invoice views.
func (a *App) visibleProperty(actor domain.User, id uint) (domain.Property, error) {
	property, ok, err := a.store.GetPropertyByID(id)
	if err != nil {
		return domain.Property{}, fmt.Errorf("fetch property: %w", err)
	}
	if !ok {
		return domain.Property{}, fmt.Errorf("%w: property", ErrNotFound)
	}
	assignments, err := a.store.ListAssignmentsByProperty(id)
	if err != nil {
		return domain.Property{}, fmt.Errorf("list assignments: %w", err)
	}
	if !policy.CanReadProperty(actor, property, assignments) {
		return domain.Property{}, ErrForbidden
	}
	return property, nil
}
