package app

import (
	"fmt"

	"rentalmgmt/pkg/domain"
)

// DashboardSummary holds the role-specific counters shown on the landing
// view. Only the fields for the caller's role are populated.
type DashboardSummary struct {
	TotalUsers      *int64   `json:"totalUsers,omitempty"`
	TotalProperties *int64   `json:"totalProperties,omitempty"`
	TotalInvoices   *int64   `json:"totalInvoices,omitempty"`
	TotalTenants    *int64   `json:"totalTenants,omitempty"`
	TotalCosts      *float64 `json:"totalCosts,omitempty"`
	ActiveTenancies *int64   `json:"activeTenancies,omitempty"`
	TotalPaid       *float64 `json:"totalPaid,omitempty"`
}

// Dashboard builds the summary for the actor's role. Admins see global
// counts, owners see figures over their portfolio, tenants see their own
// tenancies and spend.
func (a *App) Dashboard(actor domain.User) (DashboardSummary, error) {
	switch actor.Role {
	case domain.RoleAdmin:
		return a.adminDashboard()
	case domain.RoleOwner:
		return a.ownerDashboard(actor)
	case domain.RoleTenant:
		return a.tenantDashboard(actor)
	default:
		return DashboardSummary{}, ErrForbidden
	}
}

func (a *App) adminDashboard() (DashboardSummary, error) {
	users, err := a.store.CountUsers()
	if err != nil {
		return DashboardSummary{}, fmt.Errorf("count users: %w", err)
	}
	properties, err := a.store.CountProperties()
	if err != nil {
		return DashboardSummary{}, fmt.Errorf("count properties: %w", err)
	}
	invoices, err := a.store.CountInvoices()
	if err != nil {
		return DashboardSummary{}, fmt.Errorf("count invoices: %w", err)
	}
	return DashboardSummary{
		TotalUsers:      &users,
		TotalProperties: &properties,
		TotalInvoices:   &invoices,
	}, nil
}

func (a *App) ownerDashboard(actor domain.User) (DashboardSummary, error) {
	properties, err := a.store.ListPropertiesByOwner(actor.ID)
	if err != nil {
		return DashboardSummary{}, fmt.Errorf("list properties: %w", err)
	}
	propertyIDs := make([]uint, 0, len(properties))
	for _, property := range properties {
		propertyIDs = append(propertyIDs, property.ID)
	}
	total := int64(len(properties))
	tenants, err := a.store.CountAssignmentsByProperties(propertyIDs)
	if err != nil {
		return DashboardSummary{}, fmt.Errorf("count tenants: %w", err)
	}
	costs, err := a.store.SumInvoiceAmountsByProperties(propertyIDs)
	if err != nil {
		return DashboardSummary{}, fmt.Errorf("sum invoices: %w", err)
	}
	return DashboardSummary{
		TotalProperties: &total,
		TotalTenants:    &tenants,
		TotalCosts:      &costs,
	}, nil
}

func (a *App) tenantDashboard(actor domain.User) (DashboardSummary, error) {
	assignments, err := a.store.ListAssignmentsByTenant(actor.ID)
	if err != nil {
		return DashboardSummary{}, fmt.Errorf("list assignments: %w", err)
	}
	propertyIDs := make([]uint, 0, len(assignments))
	for _, assignment := range assignments {
		propertyIDs = append(propertyIDs, assignment.PropertyID)
	}
	active := int64(len(assignments))
	paid, err := a.store.SumInvoiceAmountsByProperties(propertyIDs)
	if err != nil {
		return DashboardSummary{}, fmt.Errorf("sum invoices: %w", err)
	}
	return DashboardSummary{
		ActiveTenancies: &active,
		TotalPaid:       &paid,
	}, nil
}
