package store

import (
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"rentalmgmt/pkg/domain"
)

// GormStore implements Store using GORM.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore opens a Postgres database and runs auto-migrations.
func NewGormStore(dsn string) (*GormStore, error) {
	return open(postgres.Open(dsn))
}

// NewSQLiteStore opens a SQLite database and runs auto-migrations.
// Used for local development and store tests.
func NewSQLiteStore(path string) (*GormStore, error) {
	return open(sqlite.Open(path))
}

func open(dialector gorm.Dialector) (*GormStore, error) {
	gormLog := gormlogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	db, err := gorm.Open(dialector, &gorm.Config{Logger: gormLog, TranslateError: true})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := db.AutoMigrate(
		&UserModel{},
		&PropertyModel{},
		&TenantAssignmentModel{},
		&InvoiceModel{},
		&TagModel{},
	); err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}
	return &GormStore{db: db}, nil
}

func translateErr(err error) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicate
	}
	return err
}

// CreateUser inserts a user and returns it with its assigned id.
func (s *GormStore) CreateUser(u domain.User) (domain.User, error) {
	model := userToModel(u)
	model.ID = 0
	if err := s.db.Create(&model).Error; err != nil {
		return domain.User{}, translateErr(err)
	}
	return userFromModel(model), nil
}

// UpdateUser saves all user fields.
func (s *GormStore) UpdateUser(u domain.User) error {
	model := userToModel(u)
	if err := s.db.Save(&model).Error; err != nil {
		return translateErr(err)
	}
	return nil
}

// GetUserByID returns a user by id.
func (s *GormStore) GetUserByID(id uint) (domain.User, bool, error) {
	var model UserModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.User{}, false, nil
		}
		return domain.User{}, false, err
	}
	return userFromModel(model), true, nil
}

// GetUserByUsername looks up a user by username.
func (s *GormStore) GetUserByUsername(username string) (domain.User, bool, error) {
	return s.getUserWhere("username = ?", username)
}

// GetUserByEmail looks up a user by email.
func (s *GormStore) GetUserByEmail(email string) (domain.User, bool, error) {
	return s.getUserWhere("email = ?", email)
}

func (s *GormStore) getUserWhere(query string, args ...any) (domain.User, bool, error) {
	var model UserModel
	if err := s.db.Where(query, args...).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.User{}, false, nil
		}
		return domain.User{}, false, err
	}
	return userFromModel(model), true, nil
}

// ListUsers returns users ordered by id, optionally restricted to roles.
func (s *GormStore) ListUsers(roles ...domain.Role) ([]domain.User, error) {
	tx := s.db.Order("id ASC")
	if len(roles) > 0 {
		values := make([]string, 0, len(roles))
		for _, role := range roles {
			values = append(values, string(role))
		}
		tx = tx.Where("role IN ?", values)
	}
	var models []UserModel
	if err := tx.Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.User, 0, len(models))
	for _, m := range models {
		res = append(res, userFromModel(m))
	}
	return res, nil
}

// DeleteUser removes the user, detaches owned properties, and drops the
// user's tenant assignments.
func (s *GormStore) DeleteUser(id uint) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&PropertyModel{}).Where("owner_id = ?", id).Update("owner_id", nil).Error; err != nil {
			return err
		}
		if err := tx.Delete(&TenantAssignmentModel{}, "tenant_id = ?", id).Error; err != nil {
			return err
		}
		return tx.Delete(&UserModel{}, "id = ?", id).Error
	})
}

// CountUsers returns number of users.
func (s *GormStore) CountUsers() (int64, error) {
	var count int64
	if err := s.db.Model(&UserModel{}).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// CreateProperty inserts a property.
func (s *GormStore) CreateProperty(p domain.Property) (domain.Property, error) {
	model := propertyToModel(p)
	model.ID = 0
	if err := s.db.Create(&model).Error; err != nil {
		return domain.Property{}, translateErr(err)
	}
	return propertyFromModel(model), nil
}

// UpdateProperty saves all property fields, including a nil owner.
func (s *GormStore) UpdateProperty(p domain.Property) error {
	model := propertyToModel(p)
	return s.db.Model(&PropertyModel{}).Where("id = ?", model.ID).
		Select("Name", "Address", "OwnerID").
		Updates(map[string]any{
			"name":     model.Name,
			"address":  model.Address,
			"owner_id": model.OwnerID,
		}).Error
}

// GetPropertyByID returns a property by id.
func (s *GormStore) GetPropertyByID(id uint) (domain.Property, bool, error) {
	var model PropertyModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Property{}, false, nil
		}
		return domain.Property{}, false, err
	}
	return propertyFromModel(model), true, nil
}

// ListProperties returns all properties ordered by id.
func (s *GormStore) ListProperties() ([]domain.Property, error) {
	return s.listProperties()
}

// ListPropertiesByOwner returns properties owned by the user.
func (s *GormStore) ListPropertiesByOwner(ownerID uint) ([]domain.Property, error) {
	return s.listProperties("owner_id = ?", ownerID)
}

func (s *GormStore) listProperties(conds ...any) ([]domain.Property, error) {
	tx := s.db.Order("id ASC")
	if len(conds) > 0 {
		tx = tx.Where(conds[0], conds[1:]...)
	}
	var models []PropertyModel
	if err := tx.Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.Property, 0, len(models))
	for _, m := range models {
		res = append(res, propertyFromModel(m))
	}
	return res, nil
}

// DeleteProperty removes the property with its assignments, invoices, and
// invoice tag links.
func (s *GormStore) DeleteProperty(id uint) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		var invoices []InvoiceModel
		if err := tx.Where("property_id = ?", id).Find(&invoices).Error; err != nil {
			return err
		}
		for _, invoice := range invoices {
			if err := tx.Model(&invoice).Association("Tags").Clear(); err != nil {
				return err
			}
		}
		if err := tx.Delete(&InvoiceModel{}, "property_id = ?", id).Error; err != nil {
			return err
		}
		if err := tx.Delete(&TenantAssignmentModel{}, "property_id = ?", id).Error; err != nil {
			return err
		}
		return tx.Delete(&PropertyModel{}, "id = ?", id).Error
	})
}

// CountProperties returns number of properties.
func (s *GormStore) CountProperties() (int64, error) {
	var count int64
	if err := s.db.Model(&PropertyModel{}).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// CreateAssignment inserts a tenant assignment.
func (s *GormStore) CreateAssignment(a domain.TenantAssignment) (domain.TenantAssignment, error) {
	model := assignmentToModel(a)
	model.ID = 0
	if err := s.db.Create(&model).Error; err != nil {
		return domain.TenantAssignment{}, translateErr(err)
	}
	return assignmentFromModel(model), nil
}

// GetAssignmentByID returns an assignment by id.
func (s *GormStore) GetAssignmentByID(id uint) (domain.TenantAssignment, bool, error) {
	var model TenantAssignmentModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.TenantAssignment{}, false, nil
		}
		return domain.TenantAssignment{}, false, err
	}
	return assignmentFromModel(model), true, nil
}

// FindAssignment looks up the row for a (property, tenant) pair.
// The lookup ignores end dates on purpose: an ended tenancy still occupies
// the pair.
func (s *GormStore) FindAssignment(propertyID, tenantID uint) (domain.TenantAssignment, bool, error) {
	var model TenantAssignmentModel
	err := s.db.Where("property_id = ? AND tenant_id = ?", propertyID, tenantID).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.TenantAssignment{}, false, nil
		}
		return domain.TenantAssignment{}, false, err
	}
	return assignmentFromModel(model), true, nil
}

// ListAssignmentsByProperty returns assignments referencing a property.
func (s *GormStore) ListAssignmentsByProperty(propertyID uint) ([]domain.TenantAssignment, error) {
	return s.listAssignments("property_id = ?", propertyID)
}

// ListAssignmentsByTenant returns assignments held by a tenant.
func (s *GormStore) ListAssignmentsByTenant(tenantID uint) ([]domain.TenantAssignment, error) {
	return s.listAssignments("tenant_id = ?", tenantID)
}

func (s *GormStore) listAssignments(query string, args ...any) ([]domain.TenantAssignment, error) {
	var models []TenantAssignmentModel
	if err := s.db.Where(query, args...).Order("id ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.TenantAssignment, 0, len(models))
	for _, m := range models {
		res = append(res, assignmentFromModel(m))
	}
	return res, nil
}

// DeleteAssignment removes the assignment row outright.
func (s *GormStore) DeleteAssignment(id uint) error {
	return s.db.Delete(&TenantAssignmentModel{}, "id = ?", id).Error
}

// CountAssignmentsByProperties counts assignments across properties.
func (s *GormStore) CountAssignmentsByProperties(propertyIDs []uint) (int64, error) {
	if len(propertyIDs) == 0 {
		return 0, nil
	}
	var count int64
	if err := s.db.Model(&TenantAssignmentModel{}).Where("property_id IN ?", propertyIDs).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// CreateInvoice inserts an invoice without tag links.
func (s *GormStore) CreateInvoice(inv domain.Invoice) (domain.Invoice, error) {
	model := invoiceToModel(inv)
	model.ID = 0
	model.Tags = nil
	if err := s.db.Create(&model).Error; err != nil {
		return domain.Invoice{}, translateErr(err)
	}
	return invoiceFromModel(model), nil
}

// GetInvoiceByID returns an invoice with its tags loaded.
func (s *GormStore) GetInvoiceByID(id uint) (domain.Invoice, bool, error) {
	var model InvoiceModel
	if err := s.db.Preload("Tags").First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Invoice{}, false, nil
		}
		return domain.Invoice{}, false, err
	}
	return invoiceFromModel(model), true, nil
}

// ListInvoicesByProperty returns a property's invoices, newest issue date first.
func (s *GormStore) ListInvoicesByProperty(propertyID uint) ([]domain.Invoice, error) {
	return s.listInvoices("property_id = ?", propertyID)
}

// ListInvoicesByProperties returns invoices across properties, newest issue date first.
func (s *GormStore) ListInvoicesByProperties(propertyIDs []uint) ([]domain.Invoice, error) {
	if len(propertyIDs) == 0 {
		return []domain.Invoice{}, nil
	}
	return s.listInvoices("property_id IN ?", propertyIDs)
}

func (s *GormStore) listInvoices(query string, args ...any) ([]domain.Invoice, error) {
	var models []InvoiceModel
	if err := s.db.Preload("Tags").Where(query, args...).Order("issue_date DESC").Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.Invoice, 0, len(models))
	for _, m := range models {
		res = append(res, invoiceFromModel(m))
	}
	return res, nil
}

// DeleteInvoice removes the invoice and its tag links.
func (s *GormStore) DeleteInvoice(id uint) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		invoice := InvoiceModel{ID: id}
		if err := tx.Model(&invoice).Association("Tags").Clear(); err != nil {
			return err
		}
		return tx.Delete(&InvoiceModel{}, "id = ?", id).Error
	})
}

// CountInvoices returns number of invoices.
func (s *GormStore) CountInvoices() (int64, error) {
	var count int64
	if err := s.db.Model(&InvoiceModel{}).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// SumInvoiceAmountsByProperties totals invoice amounts across properties.
func (s *GormStore) SumInvoiceAmountsByProperties(propertyIDs []uint) (float64, error) {
	if len(propertyIDs) == 0 {
		return 0, nil
	}
	var total float64
	err := s.db.Model(&InvoiceModel{}).
		Where("property_id IN ?", propertyIDs).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&total).Error
	if err != nil {
		return 0, err
	}
	return total, nil
}

// ListTags returns all tags ordered by name.
func (s *GormStore) ListTags() ([]domain.Tag, error) {
	var models []TagModel
	if err := s.db.Order("name ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.Tag, 0, len(models))
	for _, m := range models {
		res = append(res, tagFromModel(m))
	}
	return res, nil
}

// GetTagByID returns a tag by id.
func (s *GormStore) GetTagByID(id uint) (domain.Tag, bool, error) {
	var model TagModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Tag{}, false, nil
		}
		return domain.Tag{}, false, err
	}
	return tagFromModel(model), true, nil
}

// FindTagsByNames returns existing tags whose name is in the set.
func (s *GormStore) FindTagsByNames(names []string) ([]domain.Tag, error) {
	if len(names) == 0 {
		return []domain.Tag{}, nil
	}
	var models []TagModel
	if err := s.db.Where("name IN ?", names).Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.Tag, 0, len(models))
	for _, m := range models {
		res = append(res, tagFromModel(m))
	}
	return res, nil
}

// CreateTag inserts a tag row for a canonical name.
func (s *GormStore) CreateTag(name string) (domain.Tag, error) {
	model := TagModel{Name: name}
	if err := s.db.Create(&model).Error; err != nil {
		return domain.Tag{}, translateErr(err)
	}
	return tagFromModel(model), nil
}

// DeleteTag removes the tag and all its invoice links.
func (s *GormStore) DeleteTag(id uint) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		tag := TagModel{ID: id}
		if err := tx.Model(&tag).Association("Invoices").Clear(); err != nil {
			return err
		}
		return tx.Delete(&TagModel{}, "id = ?", id).Error
	})
}

// ReplaceInvoiceTags sets the invoice's tag links to exactly the given tags.
func (s *GormStore) ReplaceInvoiceTags(invoiceID uint, tagIDs []uint) error {
	tags := make([]TagModel, 0, len(tagIDs))
	for _, id := range tagIDs {
		tags = append(tags, TagModel{ID: id})
	}
	invoice := InvoiceModel{ID: invoiceID}
	return s.db.Model(&invoice).Association("Tags").Replace(&tags)
}

func userToModel(u domain.User) UserModel {
	return UserModel{
		ID:           u.ID,
		Username:     u.Username,
		Email:        u.Email,
		Role:         string(u.Role),
		PasswordHash: u.PasswordHash,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}

func userFromModel(m UserModel) domain.User {
	return domain.User{
		ID:           m.ID,
		Username:     m.Username,
		Email:        m.Email,
		Role:         domain.Role(m.Role),
		PasswordHash: m.PasswordHash,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

func propertyToModel(p domain.Property) PropertyModel {
	return PropertyModel{
		ID:      p.ID,
		Name:    p.Name,
		Address: p.Address,
		OwnerID: p.OwnerID,
	}
}

func propertyFromModel(m PropertyModel) domain.Property {
	return domain.Property{
		ID:      m.ID,
		Name:    m.Name,
		Address: m.Address,
		OwnerID: m.OwnerID,
	}
}

func assignmentToModel(a domain.TenantAssignment) TenantAssignmentModel {
	return TenantAssignmentModel{
		ID:         a.ID,
		PropertyID: a.PropertyID,
		TenantID:   a.TenantID,
		StartDate:  a.StartDate,
		EndDate:    a.EndDate,
	}
}

func assignmentFromModel(m TenantAssignmentModel) domain.TenantAssignment {
	return domain.TenantAssignment{
		ID:         m.ID,
		PropertyID: m.PropertyID,
		TenantID:   m.TenantID,
		StartDate:  m.StartDate,
		EndDate:    m.EndDate,
	}
}

func invoiceToModel(inv domain.Invoice) InvoiceModel {
	tags := make([]TagModel, 0, len(inv.Tags))
	for _, tag := range inv.Tags {
		tags = append(tags, TagModel{ID: tag.ID, Name: tag.Name})
	}
	return InvoiceModel{
		ID:          inv.ID,
		PropertyID:  inv.PropertyID,
		UploaderID:  inv.UploaderID,
		Amount:      inv.Amount,
		IssueDate:   inv.IssueDate,
		Description: inv.Description,
		FilePath:    inv.FilePath,
		Tags:        tags,
		CreatedAt:   inv.CreatedAt,
	}
}

func invoiceFromModel(m InvoiceModel) domain.Invoice {
	tags := make([]domain.Tag, 0, len(m.Tags))
	for _, tag := range m.Tags {
		tags = append(tags, tagFromModel(tag))
	}
	return domain.Invoice{
		ID:          m.ID,
		PropertyID:  m.PropertyID,
		UploaderID:  m.UploaderID,
		Amount:      m.Amount,
		IssueDate:   m.IssueDate,
		Description: m.Description,
		FilePath:    m.FilePath,
		Tags:        tags,
		CreatedAt:   m.CreatedAt,
	}
}

func tagFromModel(m TagModel) domain.Tag {
	return domain.Tag{ID: m.ID, Name: m.Name}
}
