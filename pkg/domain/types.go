package domain

import (
	"fmt"
	"time"
)

// Role is the closed set of account roles.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleOwner  Role = "owner"
	RoleTenant Role = "tenant"
)

// Roles lists every valid role.
var Roles = []Role{RoleAdmin, RoleOwner, RoleTenant}

// ParseRole validates a free-text role string against the enumeration.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleAdmin, RoleOwner, RoleTenant:
		return Role(s), nil
	}
	return "", fmt.Errorf("invalid role %q", s)
}

// Valid reports whether the role is one of the canonical values.
func (r Role) Valid() bool {
	_, err := ParseRole(string(r))
	return err == nil
}

type User struct {
	ID           uint      `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	Role         Role      `json:"role"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Property references its owner by id only; traversal goes through the store.
type Property struct {
	ID      uint   `json:"id"`
	Name    string `json:"name"`
	Address string `json:"address"`
	OwnerID *uint  `json:"ownerId,omitempty"`
}

// TenantAssignment links one tenant to one property for an interval.
// A nil EndDate means the tenancy is active.
type TenantAssignment struct {
	ID         uint       `json:"id"`
	PropertyID uint       `json:"propertyId"`
	TenantID   uint       `json:"tenantId"`
	StartDate  time.Time  `json:"startDate"`
	EndDate    *time.Time `json:"endDate,omitempty"`
}

type Invoice struct {
	ID          uint      `json:"id"`
	PropertyID  uint      `json:"propertyId"`
	UploaderID  uint      `json:"uploaderId"`
	Amount      float64   `json:"amount"`
	IssueDate   time.Time `json:"issueDate"`
	Description string    `json:"description"`
	FilePath    string    `json:"-"`
	Tags        []Tag     `json:"tags"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Tag names are stored canonical: trimmed and lowercased.
type Tag struct {
	ID   uint   `json:"id"`
	Name string `json:"name"`
}

// MonthBucket is one year-month aggregate of invoice amounts.
type MonthBucket struct {
	Month string  `json:"month"`
	Total float64 `json:"total"`
}
