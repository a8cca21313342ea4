package store

import "time"

// GORM models used for persistence.
type UserModel struct {
	ID           uint   `gorm:"primaryKey"`
	Username     string `gorm:"uniqueIndex;not null"`
	Email        string `gorm:"uniqueIndex;not null"`
	Role         string `gorm:"not null;check:role IN ('admin','owner','tenant')"`
	PasswordHash string `gorm:"not null"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (UserModel) TableName() string { return "users" }

type PropertyModel struct {
	ID      uint   `gorm:"primaryKey"`
	Name    string `gorm:"not null;index"`
	Address string `gorm:"not null"`
	OwnerID *uint  `gorm:"index"`
}

func (PropertyModel) TableName() string { return "properties" }

// TenantAssignmentModel carries a composite unique index so concurrent
// duplicate assignments are rejected by the database, not just the
// pre-insert check.
type TenantAssignmentModel struct {
	ID         uint      `gorm:"primaryKey"`
	PropertyID uint      `gorm:"not null;uniqueIndex:idx_property_tenant"`
	TenantID   uint      `gorm:"not null;uniqueIndex:idx_property_tenant"`
	StartDate  time.Time `gorm:"not null"`
	EndDate    *time.Time
}

func (TenantAssignmentModel) TableName() string { return "tenant_assignments" }

type InvoiceModel struct {
	ID          uint      `gorm:"primaryKey"`
	PropertyID  uint      `gorm:"not null;index"`
	UploaderID  uint      `gorm:"not null"`
	Amount      float64   `gorm:"not null;check:amount >= 0"`
	IssueDate   time.Time `gorm:"not null;index"`
	Description string
	FilePath    string
	Tags        []TagModel `gorm:"many2many:invoice_tags"`
	CreatedAt   time.Time
}

func (InvoiceModel) TableName() string { return "invoices" }

type TagModel struct {
	ID       uint           `gorm:"primaryKey"`
	Name     string         `gorm:"uniqueIndex;not null"`
	Invoices []InvoiceModel `gorm:"many2many:invoice_tags"`
}

func (TagModel) TableName() string { return "tags" }
