package store

import (
	"errors"

	"rentalmgmt/pkg/domain"
)

// ErrDuplicate is returned when an insert violates a unique constraint.
var ErrDuplicate = errors.New("duplicate key")

// Store defines persistence operations for users, properties, tenant
// assignments, invoices, and tags. Implementations enforce unique
// constraints on usernames, emails, tag names, and the
// (property, tenant) assignment pair.
type Store interface {
	// users
	CreateUser(domain.User) (domain.User, error)
	UpdateUser(domain.User) error
	GetUserByID(id uint) (domain.User, bool, error)
	GetUserByUsername(username string) (domain.User, bool, error)
	GetUserByEmail(email string) (domain.User, bool, error)
	ListUsers(roles ...domain.Role) ([]domain.User, error)
	DeleteUser(id uint) error
	CountUsers() (int64, error)

	// properties
	CreateProperty(domain.Property) (domain.Property, error)
	UpdateProperty(domain.Property) error
	GetPropertyByID(id uint) (domain.Property, bool, error)
	ListProperties() ([]domain.Property, error)
	ListPropertiesByOwner(ownerID uint) ([]domain.Property, error)
	DeleteProperty(id uint) error
	CountProperties() (int64, error)

	// tenant assignments
	CreateAssignment(domain.TenantAssignment) (domain.TenantAssignment, error)
	GetAssignmentByID(id uint) (domain.TenantAssignment, bool, error)
	FindAssignment(propertyID, tenantID uint) (domain.TenantAssignment, bool, error)
	ListAssignmentsByProperty(propertyID uint) ([]domain.TenantAssignment, error)
	ListAssignmentsByTenant(tenantID uint) ([]domain.TenantAssignment, error)
	DeleteAssignment(id uint) error
	CountAssignmentsByProperties(propertyIDs []uint) (int64, error)

	// invoices
	CreateInvoice(domain.Invoice) (domain.Invoice, error)
	GetInvoiceByID(id uint) (domain.Invoice, bool, error)
	ListInvoicesByProperty(propertyID uint) ([]domain.Invoice, error)
	ListInvoicesByProperties(propertyIDs []uint) ([]domain.Invoice, error)
	DeleteInvoice(id uint) error
	CountInvoices() (int64, error)
	SumInvoiceAmountsByProperties(propertyIDs []uint) (float64, error)

	// tags
	ListTags() ([]domain.Tag, error)
	GetTagByID(id uint) (domain.Tag, bool, error)
	FindTagsByNames(names []string) ([]domain.Tag, error)
	CreateTag(name string) (domain.Tag, error)
	DeleteTag(id uint) error
	ReplaceInvoiceTags(invoiceID uint, tagIDs []uint) error
}
