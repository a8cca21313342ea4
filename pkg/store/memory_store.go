package store

import (
	"sort"
	"sync"

	"rentalmgmt/pkg/domain"
)

// MemoryStore keeps all rows in-process. It mirrors the GormStore's
// constraint behavior (unique usernames, emails, tag names, assignment
// pairs) and is used by service and server tests.
type MemoryStore struct {
	mu          sync.RWMutex
	nextID      uint
	users       map[uint]domain.User
	properties  map[uint]domain.Property
	assignments map[uint]domain.TenantAssignment
	invoices    map[uint]domain.Invoice
	tags        map[uint]domain.Tag
	invoiceTags map[uint][]uint // invoice id -> tag ids
}

// NewMemoryStore initializes an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:       make(map[uint]domain.User),
		properties:  make(map[uint]domain.Property),
		assignments: make(map[uint]domain.TenantAssignment),
		invoices:    make(map[uint]domain.Invoice),
		tags:        make(map[uint]domain.Tag),
		invoiceTags: make(map[uint][]uint),
	}
}

func (m *MemoryStore) allocID() uint {
	m.nextID++
	return m.nextID
}

// CreateUser inserts a user enforcing username/email uniqueness.
func (m *MemoryStore) CreateUser(u domain.User) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if existing.Username == u.Username || existing.Email == u.Email {
			return domain.User{}, ErrDuplicate
		}
	}
	u.ID = m.allocID()
	m.users[u.ID] = u
	return u, nil
}

// UpdateUser replaces the stored user.
func (m *MemoryStore) UpdateUser(u domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, existing := range m.users {
		if id == u.ID {
			continue
		}
		if existing.Username == u.Username || existing.Email == u.Email {
			return ErrDuplicate
		}
	}
	m.users[u.ID] = u
	return nil
}

// GetUserByID returns a user by id.
func (m *MemoryStore) GetUserByID(id uint) (domain.User, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	return u, ok, nil
}

// GetUserByUsername looks up a user by username.
func (m *MemoryStore) GetUserByUsername(username string) (domain.User, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.users {
		if u.Username == username {
			return u, true, nil
		}
	}
	return domain.User{}, false, nil
}

// GetUserByEmail looks up a user by email.
func (m *MemoryStore) GetUserByEmail(email string) (domain.User, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.users {
		if u.Email == email {
			return u, true, nil
		}
	}
	return domain.User{}, false, nil
}

// ListUsers returns users ordered by id, optionally restricted to roles.
func (m *MemoryStore) ListUsers(roles ...domain.Role) ([]domain.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	allowed := make(map[domain.Role]bool, len(roles))
	for _, role := range roles {
		allowed[role] = true
	}
	res := make([]domain.User, 0, len(m.users))
	for _, u := range m.users {
		if len(roles) > 0 && !allowed[u.Role] {
			continue
		}
		res = append(res, u)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].ID < res[j].ID })
	return res, nil
}

// DeleteUser removes the user, detaches owned properties, and drops the
// user's tenant assignments.
func (m *MemoryStore) DeleteUser(id uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for pid, p := range m.properties {
		if p.OwnerID != nil && *p.OwnerID == id {
			p.OwnerID = nil
			m.properties[pid] = p
		}
	}
	for aid, a := range m.assignments {
		if a.TenantID == id {
			delete(m.assignments, aid)
		}
	}
	delete(m.users, id)
	return nil
}

// CountUsers returns number of users.
func (m *MemoryStore) CountUsers() (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.users)), nil
}

// CreateProperty inserts a property.
func (m *MemoryStore) CreateProperty(p domain.Property) (domain.Property, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p.ID = m.allocID()
	m.properties[p.ID] = p
	return p, nil
}

// UpdateProperty replaces the stored property.
func (m *MemoryStore) UpdateProperty(p domain.Property) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.properties[p.ID] = p
	return nil
}

// GetPropertyByID returns a property by id.
func (m *MemoryStore) GetPropertyByID(id uint) (domain.Property, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.properties[id]
	return p, ok, nil
}

// ListProperties returns all properties ordered by id.
func (m *MemoryStore) ListProperties() ([]domain.Property, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.Property, 0, len(m.properties))
	for _, p := range m.properties {
		res = append(res, p)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].ID < res[j].ID })
	return res, nil
}

// ListPropertiesByOwner returns properties owned by the user.
func (m *MemoryStore) ListPropertiesByOwner(ownerID uint) ([]domain.Property, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.Property, 0)
	for _, p := range m.properties {
		if p.OwnerID != nil && *p.OwnerID == ownerID {
			res = append(res, p)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].ID < res[j].ID })
	return res, nil
}

// DeleteProperty removes the property with its assignments and invoices.
func (m *MemoryStore) DeleteProperty(id uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for aid, a := range m.assignments {
		if a.PropertyID == id {
			delete(m.assignments, aid)
		}
	}
	for iid, inv := range m.invoices {
		if inv.PropertyID == id {
			delete(m.invoices, iid)
			delete(m.invoiceTags, iid)
		}
	}
	delete(m.properties, id)
	return nil
}

// CountProperties returns number of properties.
func (m *MemoryStore) CountProperties() (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.properties)), nil
}

// CreateAssignment inserts a tenant assignment, rejecting duplicate pairs.
func (m *MemoryStore) CreateAssignment(a domain.TenantAssignment) (domain.TenantAssignment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.assignments {
		if existing.PropertyID == a.PropertyID && existing.TenantID == a.TenantID {
			return domain.TenantAssignment{}, ErrDuplicate
		}
	}
	a.ID = m.allocID()
	m.assignments[a.ID] = a
	return a, nil
}

// GetAssignmentByID returns an assignment by id.
func (m *MemoryStore) GetAssignmentByID(id uint) (domain.TenantAssignment, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.assignments[id]
	return a, ok, nil
}

// FindAssignment looks up the row for a (property, tenant) pair.
func (m *MemoryStore) FindAssignment(propertyID, tenantID uint) (domain.TenantAssignment, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, a := range m.assignments {
		if a.PropertyID == propertyID && a.TenantID == tenantID {
			return a, true, nil
		}
	}
	return domain.TenantAssignment{}, false, nil
}

// ListAssignmentsByProperty returns assignments referencing a property.
func (m *MemoryStore) ListAssignmentsByProperty(propertyID uint) ([]domain.TenantAssignment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.TenantAssignment, 0)
	for _, a := range m.assignments {
		if a.PropertyID == propertyID {
			res = append(res, a)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].ID < res[j].ID })
	return res, nil
}

// ListAssignmentsByTenant returns assignments held by a tenant.
func (m *MemoryStore) ListAssignmentsByTenant(tenantID uint) ([]domain.TenantAssignment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.TenantAssignment, 0)
	for _, a := range m.assignments {
		if a.TenantID == tenantID {
			res = append(res, a)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].ID < res[j].ID })
	return res, nil
}

// DeleteAssignment removes the assignment row.
func (m *MemoryStore) DeleteAssignment(id uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.assignments, id)
	return nil
}

// CountAssignmentsByProperties counts assignments across properties.
func (m *MemoryStore) CountAssignmentsByProperties(propertyIDs []uint) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	wanted := make(map[uint]bool, len(propertyIDs))
	for _, id := range propertyIDs {
		wanted[id] = true
	}
	var count int64
	for _, a := range m.assignments {
		if wanted[a.PropertyID] {
			count++
		}
	}
	return count, nil
}

// CreateInvoice inserts an invoice without tag links.
func (m *MemoryStore) CreateInvoice(inv domain.Invoice) (domain.Invoice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inv.ID = m.allocID()
	inv.Tags = nil
	m.invoices[inv.ID] = inv
	return inv, nil
}

// GetInvoiceByID returns an invoice with its tags.
func (m *MemoryStore) GetInvoiceByID(id uint) (domain.Invoice, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	inv, ok := m.invoices[id]
	if !ok {
		return domain.Invoice{}, false, nil
	}
	return m.withTags(inv), true, nil
}

// ListInvoicesByProperty returns a property's invoices, newest issue date first.
func (m *MemoryStore) ListInvoicesByProperty(propertyID uint) ([]domain.Invoice, error) {
	return m.ListInvoicesByProperties([]uint{propertyID})
}

// ListInvoicesByProperties returns invoices across properties, newest issue date first.
func (m *MemoryStore) ListInvoicesByProperties(propertyIDs []uint) ([]domain.Invoice, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	wanted := make(map[uint]bool, len(propertyIDs))
	for _, id := range propertyIDs {
		wanted[id] = true
	}
	res := make([]domain.Invoice, 0)
	for _, inv := range m.invoices {
		if wanted[inv.PropertyID] {
			res = append(res, m.withTags(inv))
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].IssueDate.After(res[j].IssueDate) })
	return res, nil
}

// DeleteInvoice removes the invoice and its tag links.
func (m *MemoryStore) DeleteInvoice(id uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.invoices, id)
	delete(m.invoiceTags, id)
	return nil
}

// CountInvoices returns number of invoices.
func (m *MemoryStore) CountInvoices() (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.invoices)), nil
}

// SumInvoiceAmountsByProperties totals invoice amounts across properties.
func (m *MemoryStore) SumInvoiceAmountsByProperties(propertyIDs []uint) (float64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	wanted := make(map[uint]bool, len(propertyIDs))
	for _, id := range propertyIDs {
		wanted[id] = true
	}
	var total float64
	for _, inv := range m.invoices {
		if wanted[inv.PropertyID] {
			total += inv.Amount
		}
	}
	return total, nil
}

// ListTags returns all tags ordered by name.
func (m *MemoryStore) ListTags() ([]domain.Tag, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.Tag, 0, len(m.tags))
	for _, tag := range m.tags {
		res = append(res, tag)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Name < res[j].Name })
	return res, nil
}

// GetTagByID returns a tag by id.
func (m *MemoryStore) GetTagByID(id uint) (domain.Tag, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	tag, ok := m.tags[id]
	return tag, ok, nil
}

// FindTagsByNames returns existing tags whose name is in the set.
func (m *MemoryStore) FindTagsByNames(names []string) ([]domain.Tag, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	wanted := make(map[string]bool, len(names))
	for _, name := range names {
		wanted[name] = true
	}
	res := make([]domain.Tag, 0)
	for _, tag := range m.tags {
		if wanted[tag.Name] {
			res = append(res, tag)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].ID < res[j].ID })
	return res, nil
}

// CreateTag inserts a tag row, rejecting duplicate names.
func (m *MemoryStore) CreateTag(name string) (domain.Tag, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, tag := range m.tags {
		if tag.Name == name {
			return domain.Tag{}, ErrDuplicate
		}
	}
	tag := domain.Tag{ID: m.allocID(), Name: name}
	m.tags[tag.ID] = tag
	return tag, nil
}

// DeleteTag removes the tag and all its invoice links.
func (m *MemoryStore) DeleteTag(id uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for invoiceID, tagIDs := range m.invoiceTags {
		filtered := tagIDs[:0]
		for _, tagID := range tagIDs {
			if tagID != id {
				filtered = append(filtered, tagID)
			}
		}
		m.invoiceTags[invoiceID] = filtered
	}
	delete(m.tags, id)
	return nil
}

// ReplaceInvoiceTags sets the invoice's tag links to exactly the given tags.
func (m *MemoryStore) ReplaceInvoiceTags(invoiceID uint, tagIDs []uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.invoiceTags[invoiceID] = append([]uint(nil), tagIDs...)
	return nil
}

func (m *MemoryStore) withTags(inv domain.Invoice) domain.Invoice {
	tags := make([]domain.Tag, 0, len(m.invoiceTags[inv.ID]))
	for _, tagID := range m.invoiceTags[inv.ID] {
		if tag, ok := m.tags[tagID]; ok {
			tags = append(tags, tag)
		}
	}
	sort.Slice(tags, func(i, j int) bool { return tags[i].Name < tags[j].Name })
	inv.Tags = tags
	return inv
}
