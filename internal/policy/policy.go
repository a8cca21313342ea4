// Package policy holds the stateless access rules for the API. Every
// function is a pure predicate over the actor and the target; callers map
// a false result to a Forbidden outcome before touching the store.
package policy

import "rentalmgmt/pkg/domain"

// IsAdmin reports whether the actor bypasses ownership checks.
func IsAdmin(actor domain.User) bool {
	return actor.Role == domain.RoleAdmin
}

// CanListProperties allows admins (all rows) and owners (their rows).
// Tenants and anything else are denied outright, not given an empty list.
func CanListProperties(actor domain.User) bool {
	return actor.Role == domain.RoleAdmin || actor.Role == domain.RoleOwner
}

// CanReadProperty is the three-way visibility check shared by property
// reads and every invoice view: admin, the property's owner, or any tenant
// with an assignment referencing the property, active or not.
func CanReadProperty(actor domain.User, p domain.Property, assignments []domain.TenantAssignment) bool {
	if IsAdmin(actor) {
		return true
	}
	if p.OwnerID != nil && *p.OwnerID == actor.ID {
		return true
	}
	for _, a := range assignments {
		if a.TenantID == actor.ID {
			return true
		}
	}
	return false
}

// CanAdministerProperties covers create, update, delete, and owner
// assignment. Admin only.
func CanAdministerProperties(actor domain.User) bool {
	return IsAdmin(actor)
}

// CanManagePropertyTenants covers tenant assignment and unassignment, and
// doubles as the invoice mutation rule (upload, delete, tag updates):
// admin or the property's current owner.
func CanManagePropertyTenants(actor domain.User, p domain.Property) bool {
	if IsAdmin(actor) {
		return true
	}
	return p.OwnerID != nil && *p.OwnerID == actor.ID
}

// VisibleUserRoles returns the roles the actor may list. A nil slice with
// ok=true means unrestricted (admin). Owners see owners and tenants only;
// everyone else is denied.
func VisibleUserRoles(actor domain.User) ([]domain.Role, bool) {
	switch actor.Role {
	case domain.RoleAdmin:
		return nil, true
	case domain.RoleOwner:
		return []domain.Role{domain.RoleOwner, domain.RoleTenant}, true
	}
	return nil, false
}

// CanReadUser allows self, admin, or an owner viewing a tenant assigned to
// one of the owner's properties. ownedTenantIDs is the set of tenant ids
// across all of the actor's properties, resolved by the caller.
func CanReadUser(actor, target domain.User, ownedTenantIDs map[uint]bool) bool {
	if actor.ID == target.ID || IsAdmin(actor) {
		return true
	}
	if actor.Role == domain.RoleOwner {
		return ownedTenantIDs[target.ID]
	}
	return false
}

// CanUpdateUser allows the profile owner or an admin.
func CanUpdateUser(actor, target domain.User) bool {
	return actor.ID == target.ID || IsAdmin(actor)
}

// CanChangeRole restricts role changes to admins.
func CanChangeRole(actor domain.User) bool {
	return IsAdmin(actor)
}

// CanManageUsers covers user create and delete. Admin only; the
// self-deletion guard is separate.
func CanManageUsers(actor domain.User) bool {
	return IsAdmin(actor)
}

// CanDeleteTag restricts tag deletion to admins; listing is open to any
// authenticated actor.
func CanDeleteTag(actor domain.User) bool {
	return IsAdmin(actor)
}
