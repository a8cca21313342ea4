package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"rentalmgmt/pkg/domain"
)

// Both implementations run the same suite: the MemoryStore backs service
// tests and must behave like the real database.
func stores(t *testing.T) map[string]Store {
	t.Helper()
	gormStore, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	return map[string]Store{
		"gorm":   gormStore,
		"memory": NewMemoryStore(),
	}
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestUserUniqueness(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			created, err := s.CreateUser(domain.User{Username: "anna", Email: "anna@example.com", Role: domain.RoleOwner, PasswordHash: "x"})
			require.NoError(t, err)
			require.NotZero(t, created.ID)

			_, err = s.CreateUser(domain.User{Username: "anna", Email: "other@example.com", Role: domain.RoleOwner, PasswordHash: "x"})
			require.ErrorIs(t, err, ErrDuplicate)

			_, err = s.CreateUser(domain.User{Username: "other", Email: "anna@example.com", Role: domain.RoleTenant, PasswordHash: "x"})
			require.ErrorIs(t, err, ErrDuplicate)

			byName, ok, err := s.GetUserByUsername("anna")
			require.NoError(t, err)
			require.True(t, ok)
			require.Equal(t, created.ID, byName.ID)
		})
	}
}

func TestListUsersByRoles(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			_, err := s.CreateUser(domain.User{Username: "a", Email: "a@e.com", Role: domain.RoleAdmin, PasswordHash: "x"})
			require.NoError(t, err)
			_, err = s.CreateUser(domain.User{Username: "o", Email: "o@e.com", Role: domain.RoleOwner, PasswordHash: "x"})
			require.NoError(t, err)
			_, err = s.CreateUser(domain.User{Username: "t", Email: "t@e.com", Role: domain.RoleTenant, PasswordHash: "x"})
			require.NoError(t, err)

			visible, err := s.ListUsers(domain.RoleOwner, domain.RoleTenant)
			require.NoError(t, err)
			require.Len(t, visible, 2)
			for _, u := range visible {
				require.NotEqual(t, domain.RoleAdmin, u.Role)
			}

			all, err := s.ListUsers()
			require.NoError(t, err)
			require.Len(t, all, 3)
		})
	}
}

func TestAssignmentDuplicatePair(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			prop, err := s.CreateProperty(domain.Property{Name: "Flat", Address: "Main 1"})
			require.NoError(t, err)
			tenant, err := s.CreateUser(domain.User{Username: "t", Email: "t@e.com", Role: domain.RoleTenant, PasswordHash: "x"})
			require.NoError(t, err)

			end := date(2023, time.June, 30)
			_, err = s.CreateAssignment(domain.TenantAssignment{
				PropertyID: prop.ID,
				TenantID:   tenant.ID,
				StartDate:  date(2023, time.January, 1),
				EndDate:    &end,
			})
			require.NoError(t, err)

			// An ended tenancy still occupies the (property, tenant) pair.
			_, err = s.CreateAssignment(domain.TenantAssignment{
				PropertyID: prop.ID,
				TenantID:   tenant.ID,
				StartDate:  date(2024, time.January, 1),
			})
			require.ErrorIs(t, err, ErrDuplicate)

			_, found, err := s.FindAssignment(prop.ID, tenant.ID)
			require.NoError(t, err)
			require.True(t, found)
		})
	}
}

func TestInvoiceOrderingAndTags(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			prop, err := s.CreateProperty(domain.Property{Name: "Flat", Address: "Main 1"})
			require.NoError(t, err)

			older, err := s.CreateInvoice(domain.Invoice{PropertyID: prop.ID, UploaderID: 1, Amount: 50, IssueDate: date(2024, time.January, 10)})
			require.NoError(t, err)
			newer, err := s.CreateInvoice(domain.Invoice{PropertyID: prop.ID, UploaderID: 1, Amount: 10, IssueDate: date(2024, time.February, 1)})
			require.NoError(t, err)

			rent, err := s.CreateTag("rent")
			require.NoError(t, err)
			water, err := s.CreateTag("water")
			require.NoError(t, err)
			require.NoError(t, s.ReplaceInvoiceTags(older.ID, []uint{rent.ID, water.ID}))

			list, err := s.ListInvoicesByProperty(prop.ID)
			require.NoError(t, err)
			require.Len(t, list, 2)
			require.Equal(t, newer.ID, list[0].ID)
			require.Equal(t, older.ID, list[1].ID)
			require.Len(t, list[1].Tags, 2)

			// Full replace, not merge.
			require.NoError(t, s.ReplaceInvoiceTags(older.ID, []uint{water.ID}))
			got, ok, err := s.GetInvoiceByID(older.ID)
			require.NoError(t, err)
			require.True(t, ok)
			require.Len(t, got.Tags, 1)
			require.Equal(t, "water", got.Tags[0].Name)
		})
	}
}

func TestTagUniquenessAndDelete(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			tag, err := s.CreateTag("rent")
			require.NoError(t, err)
			_, err = s.CreateTag("rent")
			require.ErrorIs(t, err, ErrDuplicate)

			prop, err := s.CreateProperty(domain.Property{Name: "Flat", Address: "Main 1"})
			require.NoError(t, err)
			invoice, err := s.CreateInvoice(domain.Invoice{PropertyID: prop.ID, UploaderID: 1, Amount: 5, IssueDate: date(2024, time.March, 1)})
			require.NoError(t, err)
			require.NoError(t, s.ReplaceInvoiceTags(invoice.ID, []uint{tag.ID}))

			// Deleting the tag unlinks it but keeps the invoice.
			require.NoError(t, s.DeleteTag(tag.ID))
			got, ok, err := s.GetInvoiceByID(invoice.ID)
			require.NoError(t, err)
			require.True(t, ok)
			require.Empty(t, got.Tags)

			tags, err := s.ListTags()
			require.NoError(t, err)
			require.Empty(t, tags)
		})
	}
}

func TestDeletePropertyCascades(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			prop, err := s.CreateProperty(domain.Property{Name: "Flat", Address: "Main 1"})
			require.NoError(t, err)
			tenant, err := s.CreateUser(domain.User{Username: "t", Email: "t@e.com", Role: domain.RoleTenant, PasswordHash: "x"})
			require.NoError(t, err)
			_, err = s.CreateAssignment(domain.TenantAssignment{PropertyID: prop.ID, TenantID: tenant.ID, StartDate: date(2024, time.January, 1)})
			require.NoError(t, err)
			_, err = s.CreateInvoice(domain.Invoice{PropertyID: prop.ID, UploaderID: 1, Amount: 5, IssueDate: date(2024, time.March, 1)})
			require.NoError(t, err)

			require.NoError(t, s.DeleteProperty(prop.ID))

			_, found, err := s.GetPropertyByID(prop.ID)
			require.NoError(t, err)
			require.False(t, found)
			assignments, err := s.ListAssignmentsByProperty(prop.ID)
			require.NoError(t, err)
			require.Empty(t, assignments)
			invoices, err := s.ListInvoicesByProperty(prop.ID)
			require.NoError(t, err)
			require.Empty(t, invoices)
		})
	}
}

func TestDashboardCounters(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			p1, err := s.CreateProperty(domain.Property{Name: "A", Address: "1"})
			require.NoError(t, err)
			p2, err := s.CreateProperty(domain.Property{Name: "B", Address: "2"})
			require.NoError(t, err)
			_, err = s.CreateInvoice(domain.Invoice{PropertyID: p1.ID, UploaderID: 1, Amount: 30, IssueDate: date(2024, time.January, 1)})
			require.NoError(t, err)
			_, err = s.CreateInvoice(domain.Invoice{PropertyID: p2.ID, UploaderID: 1, Amount: 12.5, IssueDate: date(2024, time.January, 2)})
			require.NoError(t, err)

			total, err := s.SumInvoiceAmountsByProperties([]uint{p1.ID, p2.ID})
			require.NoError(t, err)
			require.InDelta(t, 42.5, total, 1e-9)

			only, err := s.SumInvoiceAmountsByProperties([]uint{p2.ID})
			require.NoError(t, err)
			require.InDelta(t, 12.5, only, 1e-9)

			none, err := s.SumInvoiceAmountsByProperties(nil)
			require.NoError(t, err)
			require.Zero(t, none)
		})
	}
}
