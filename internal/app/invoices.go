package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"rentalmgmt/internal/policy"
	"rentalmgmt/pkg/domain"
	"rentalmgmt/pkg/store"
)

// presignExpiry bounds how long an attachment download link stays valid.
const presignExpiry = 15 * time.Minute

// UploadInvoiceParams carries everything needed to create an invoice from
// a multipart upload.
type UploadInvoiceParams struct {
	PropertyID  uint
	Filename    string
	ContentType string
	File        io.Reader
	Size        int64
	Amount      float64
	IssueDate   time.Time
	Description string
	Tags        string
}

// UploadInvoice stores the attachment, creates the invoice row with the
// actor as uploader, and links the normalized tags. Admin or the owning
// property's owner; tenant uploads are never permitted.
func (a *App) UploadInvoice(ctx context.Context, actor domain.User, params UploadInvoiceParams) (domain.Invoice, error) {
	property, ok, err := a.store.GetPropertyByID(params.PropertyID)
	if err != nil {
		return domain.Invoice{}, fmt.Errorf("fetch property: %w", err)
	}
	if !ok {
		return domain.Invoice{}, fmt.Errorf("%w: property", ErrNotFound)
	}
	if !policy.CanManagePropertyTenants(actor, property) {
		return domain.Invoice{}, ErrForbidden
	}
	if params.Amount < 0 {
		return domain.Invoice{}, fmt.Errorf("%w: amount must be non-negative", ErrValidation)
	}
	names := NormalizeTags(params.Tags)

	handle, err := a.blobs.Store(ctx, params.PropertyID, params.Filename, params.File, params.Size, params.ContentType)
	if err != nil {
		return domain.Invoice{}, fmt.Errorf("store attachment: %w", err)
	}
	invoice, err := a.store.CreateInvoice(domain.Invoice{
		PropertyID:  params.PropertyID,
		UploaderID:  actor.ID,
		Amount:      params.Amount,
		IssueDate:   params.IssueDate,
		Description: params.Description,
		FilePath:    handle,
		CreatedAt:   time.Now().UTC(),
	})
	if err != nil {
		if cleanupErr := a.blobs.Delete(ctx, handle); cleanupErr != nil {
			a.log.Warn("orphaned attachment cleanup failed", "handle", handle, "error", cleanupErr)
		}
		return domain.Invoice{}, fmt.Errorf("save invoice: %w", err)
	}
	if err := a.attachTags(invoice.ID, names); err != nil {
		// Roll back the insert so no tagless invoice or orphaned
		// attachment survives a failed reconciliation.
		if delErr := a.store.DeleteInvoice(invoice.ID); delErr != nil {
			a.log.Warn("invoice rollback failed", "invoice_id", invoice.ID, "error", delErr)
		}
		if cleanupErr := a.blobs.Delete(ctx, handle); cleanupErr != nil {
			a.log.Warn("orphaned attachment cleanup failed", "handle", handle, "error", cleanupErr)
		}
		return domain.Invoice{}, err
	}
	stored, _, err := a.store.GetInvoiceByID(invoice.ID)
	if err != nil {
		return domain.Invoice{}, fmt.Errorf("reload invoice: %w", err)
	}
	return stored, nil
}

// UpdateInvoiceTags replaces the invoice's tag set wholesale with the
// normalized input; it is not a merge.
func (a *App) UpdateInvoiceTags(actor domain.User, invoiceID uint, rawTags string) (domain.Invoice, error) {
	invoice, property, err := a.invoiceWithProperty(invoiceID)
	if err != nil {
		return domain.Invoice{}, err
	}
	if !policy.CanManagePropertyTenants(actor, property) {
		return domain.Invoice{}, ErrForbidden
	}
	if err := a.attachTags(invoice.ID, NormalizeTags(rawTags)); err != nil {
		return domain.Invoice{}, err
	}
	updated, _, err := a.store.GetInvoiceByID(invoice.ID)
	if err != nil {
		return domain.Invoice{}, fmt.Errorf("reload invoice: %w", err)
	}
	return updated, nil
}

// MyInvoices lists invoices across every property the tenant is assigned
// to, newest issue date first. Tenant role only.
func (a *App) MyInvoices(actor domain.User) ([]domain.Invoice, error) {
	if actor.Role != domain.RoleTenant {
		return nil, ErrForbidden
	}
	assignments, err := a.store.ListAssignmentsByTenant(actor.ID)
	if err != nil {
		return nil, fmt.Errorf("list assignments: %w", err)
	}
	propertyIDs := make([]uint, 0, len(assignments))
	for _, assignment := range assignments {
		propertyIDs = append(propertyIDs, assignment.PropertyID)
	}
	return a.store.ListInvoicesByProperties(propertyIDs)
}

// InvoicesForProperty lists a property's invoices under the three-way
// visibility rule, newest issue date first.
func (a *App) InvoicesForProperty(actor domain.User, propertyID uint) ([]domain.Invoice, error) {
	if _, err := a.visibleProperty(actor, propertyID); err != nil {
		return nil, err
	}
	return a.store.ListInvoicesByProperty(propertyID)
}

// TagsForProperty returns the unique, sorted tag names across a property's
// invoices. Same visibility as the invoice listing.
func (a *App) TagsForProperty(actor domain.User, propertyID uint) ([]string, error) {
	invoices, err := a.InvoicesForProperty(actor, propertyID)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	for _, invoice := range invoices {
		for _, tag := range invoice.Tags {
			seen[tag.Name] = true
		}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// DeleteInvoice removes the invoice and its stored attachment. Admin or
// the owning property's owner.
func (a *App) DeleteInvoice(ctx context.Context, actor domain.User, invoiceID uint) error {
	invoice, property, err := a.invoiceWithProperty(invoiceID)
	if err != nil {
		return err
	}
	if !policy.CanManagePropertyTenants(actor, property) {
		return ErrForbidden
	}
	if invoice.FilePath != "" {
		if err := a.blobs.Delete(ctx, invoice.FilePath); err != nil {
			a.log.Warn("delete attachment failed", "invoice_id", invoice.ID, "error", err)
		}
	}
	if err := a.store.DeleteInvoice(invoiceID); err != nil {
		return fmt.Errorf("delete invoice: %w", err)
	}
	return nil
}

// InvoiceFileURL returns a short-lived download link for the attachment.
// Visibility matches invoice reads.
func (a *App) InvoiceFileURL(ctx context.Context, actor domain.User, invoiceID uint) (string, error) {
	invoice, property, err := a.invoiceWithProperty(invoiceID)
	if err != nil {
		return "", err
	}
	assignments, err := a.store.ListAssignmentsByProperty(property.ID)
	if err != nil {
		return "", fmt.Errorf("list assignments: %w", err)
	}
	if !policy.CanReadProperty(actor, property, assignments) {
		return "", ErrForbidden
	}
	if invoice.FilePath == "" {
		return "", fmt.Errorf("%w: attachment", ErrNotFound)
	}
	url, err := a.blobs.PresignGet(ctx, invoice.FilePath, presignExpiry)
	if err != nil {
		return "", fmt.Errorf("presign attachment: %w", err)
	}
	return url, nil
}

// MonthlySummary groups the property's invoice amounts by year-month and
// returns the buckets most recent first.
func (a *App) MonthlySummary(actor domain.User, propertyID uint) ([]domain.MonthBucket, error) {
	invoices, err := a.InvoicesForProperty(actor, propertyID)
	if err != nil {
		return nil, err
	}
	totals := make(map[string]float64)
	for _, invoice := range invoices {
		totals[invoice.IssueDate.Format("2006-01")] += invoice.Amount
	}
	buckets := make([]domain.MonthBucket, 0, len(totals))
	for month, total := range totals {
		buckets = append(buckets, domain.MonthBucket{Month: month, Total: total})
	}
	sort.Slice(buckets, func(i, j int) bool { return buckets[i].Month > buckets[j].Month })
	return buckets, nil
}

// NormalizeTags parses a free-text, comma-separated tag string into the
// canonical set: trimmed, lowercased, empties dropped, duplicates merged.
// The result is sorted for deterministic storage order.
func NormalizeTags(raw string) []string {
	seen := make(map[string]bool)
	for _, part := range strings.Split(raw, ",") {
		name := strings.ToLower(strings.TrimSpace(part))
		if name != "" {
			seen[name] = true
		}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// attachTags reconciles canonical names against existing Tag rows,
// creating the missing ones, then replaces the invoice's links with
// exactly that set.
func (a *App) attachTags(invoiceID uint, names []string) error {
	existing, err := a.store.FindTagsByNames(names)
	if err != nil {
		return fmt.Errorf("find tags: %w", err)
	}
	byName := make(map[string]domain.Tag, len(existing))
	for _, tag := range existing {
		byName[tag.Name] = tag
	}
	tagIDs := make([]uint, 0, len(names))
	for _, name := range names {
		tag, ok := byName[name]
		if !ok {
			tag, err = a.store.CreateTag(name)
			if err != nil {
				// A concurrent create of the same name loses to the
				// unique constraint.
				if errors.Is(err, store.ErrDuplicate) {
					return fmt.Errorf("%w: tag %q", ErrConflict, name)
				}
				return fmt.Errorf("create tag: %w", err)
			}
		}
		tagIDs = append(tagIDs, tag.ID)
	}
	if err := a.store.ReplaceInvoiceTags(invoiceID, tagIDs); err != nil {
		return fmt.Errorf("link tags: %w", err)
	}
	return nil
}

// invoiceWithProperty loads an invoice and its parent property, raising
// Inconsistency when the invoice has no linked property.
func (a *App) invoiceWithProperty(invoiceID uint) (domain.Invoice, domain.Property, error) {
	invoice, ok, err := a.store.GetInvoiceByID(invoiceID)
	if err != nil {
		return domain.Invoice{}, domain.Property{}, fmt.Errorf("fetch invoice: %w", err)
	}
	if !ok {
		return domain.Invoice{}, domain.Property{}, fmt.Errorf("%w: invoice", ErrNotFound)
	}
	property, ok, err := a.store.GetPropertyByID(invoice.PropertyID)
	if err != nil {
		return domain.Invoice{}, domain.Property{}, fmt.Errorf("fetch property: %w", err)
	}
	if !ok {
		return domain.Invoice{}, domain.Property{}, fmt.Errorf("%w: invoice %d is not linked to a property", ErrInconsistent, invoice.ID)
	}
	return invoice, property, nil
}
