package app

import (
	"fmt"

	"rentalmgmt/internal/policy"
	"rentalmgmt/pkg/domain"
)

// ListTags returns the full tag catalog. Any authenticated user.
func (a *App) ListTags(actor domain.User) ([]domain.Tag, error) {
	return a.store.ListTags()
}

// DeleteTag removes a tag and unlinks it from every invoice. Admin only.
func (a *App) DeleteTag(actor domain.User, tagID uint) error {
	if !policy.CanDeleteTag(actor) {
		return ErrForbidden
	}
	_, ok, err := a.store.GetTagByID(tagID)
	if err != nil {
		return fmt.Errorf("fetch tag: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: tag", ErrNotFound)
	}
	if err := a.store.DeleteTag(tagID); err != nil {
		return fmt.Errorf("delete tag: %w", err)
	}
	return nil
}
