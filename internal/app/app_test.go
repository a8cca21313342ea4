package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"rentalmgmt/pkg/auth"
	"rentalmgmt/pkg/domain"
	"rentalmgmt/pkg/store"
)

// fakeBlobStore keeps attachments in memory and records deletions.
type fakeBlobStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	deleted []string
	seq     int
}

func newFakeBlobStore() *fakeBlobStore {
	return &fakeBlobStore{objects: make(map[string][]byte)}
}

func (f *fakeBlobStore) Store(_ context.Context, propertyID uint, filename string, r io.Reader, _ int64, _ string) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	handle := fmt.Sprintf("%d/%d_%s", propertyID, f.seq, filename)
	f.objects[handle] = data
	return handle, nil
}

func (f *fakeBlobStore) PresignGet(_ context.Context, handle string, _ time.Duration) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.objects[handle]; !ok {
		return "", fmt.Errorf("no such object %q", handle)
	}
	return "https://blobs.test/" + handle, nil
}

func (f *fakeBlobStore) Delete(_ context.Context, handle string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, handle)
	f.deleted = append(f.deleted, handle)
	return nil
}

type fixture struct {
	app   *App
	store *store.MemoryStore
	blobs *fakeBlobStore
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st := store.NewMemoryStore()
	blobs := newFakeBlobStore()
	tokens, err := auth.NewTokenService(auth.TokenServiceOptions{
		Secret:  "test-secret",
		TTL:     time.Hour,
		Revoker: auth.NewMemoryTokenRevoker(),
	})
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}
	a, err := New(Config{Store: st, Blobs: blobs, Tokens: tokens})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return &fixture{app: a, store: st, blobs: blobs}
}

func (f *fixture) user(t *testing.T, username, role string) domain.User {
	t.Helper()
	user, err := f.app.Register(username, username+"@example.com", "pass1234", role)
	if err != nil {
		t.Fatalf("Register(%s): %v", username, err)
	}
	return user
}

func (f *fixture) property(t *testing.T, admin domain.User, name string, ownerID *uint) domain.Property {
	t.Helper()
	property, err := f.app.CreateProperty(admin, PropertyInput{Name: name, Address: name + " street 1", OwnerID: ownerID})
	if err != nil {
		t.Fatalf("CreateProperty(%s): %v", name, err)
	}
	return property
}

func TestRegisterAndLogin(t *testing.T) {
	f := newFixture(t)
	user := f.user(t, "alice", "owner")
	if user.Role != domain.RoleOwner {
		t.Fatalf("role = %q, want owner", user.Role)
	}
	if user.Email != "alice@example.com" {
		t.Fatalf("email = %q", user.Email)
	}

	got, token, err := f.app.Login("alice", "pass1234")
	if err != nil {
		t.Fatalf("Login by username: %v", err)
	}
	if got.ID != user.ID || token == "" {
		t.Fatalf("Login = (%d, %q)", got.ID, token)
	}
	if _, _, err := f.app.Login("alice@example.com", "pass1234"); err != nil {
		t.Fatalf("Login by email: %v", err)
	}
	if _, _, err := f.app.Login("alice", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("bad password err = %v, want ErrInvalidCredentials", err)
	}

	resolved, err := f.app.UserFromToken(token)
	if err != nil {
		t.Fatalf("UserFromToken: %v", err)
	}
	if resolved.Username != "alice" {
		t.Fatalf("resolved user = %q", resolved.Username)
	}
}

func TestLogoutRevokesToken(t *testing.T) {
	f := newFixture(t)
	f.user(t, "alice", "admin")
	_, token, err := f.app.Login("alice", "pass1234")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if err := f.app.Logout(token); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if _, err := f.app.UserFromToken(token); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("revoked token err = %v, want ErrUnauthenticated", err)
	}
}

func TestRegisterRejectsInvalidRole(t *testing.T) {
	f := newFixture(t)
	if _, err := f.app.Register("bob", "bob@example.com", "pass1234", "superuser"); !errors.Is(err, ErrInvalidRole) {
		t.Fatalf("err = %v, want ErrInvalidRole", err)
	}
}

func TestRegisterDuplicateUsernameAndEmail(t *testing.T) {
	f := newFixture(t)
	f.user(t, "alice", "tenant")
	if _, err := f.app.Register("alice", "other@example.com", "pass1234", "tenant"); !errors.Is(err, ErrConflict) {
		t.Fatalf("duplicate username err = %v, want ErrConflict", err)
	}
	if _, err := f.app.Register("alice2", "ALICE@example.com", "pass1234", "tenant"); !errors.Is(err, ErrConflict) {
		t.Fatalf("duplicate email err = %v, want ErrConflict", err)
	}
}

func TestChangePassword(t *testing.T) {
	f := newFixture(t)
	user := f.user(t, "alice", "tenant")
	_, token, err := f.app.Login("alice", "pass1234")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if err := f.app.ChangePassword(user, token, "nope", "newpass99"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("wrong current err = %v", err)
	}
	if err := f.app.ChangePassword(user, token, "pass1234", "newpass99"); err != nil {
		t.Fatalf("ChangePassword: %v", err)
	}
	if _, _, err := f.app.Login("alice", "newpass99"); err != nil {
		t.Fatalf("login with new password: %v", err)
	}
	if _, _, err := f.app.Login("alice", "pass1234"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("old password still works: %v", err)
	}
	// The session the change was made with is revoked.
	if _, err := f.app.UserFromToken(token); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("pre-change token err = %v, want ErrUnauthenticated", err)
	}
}

func TestLoginEmailCaseInsensitive(t *testing.T) {
	f := newFixture(t)
	if _, err := f.app.Register("carol", "Carol@Example.com", "pass1234", "tenant"); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if _, _, err := f.app.Login("Carol@Example.com", "pass1234"); err != nil {
		t.Fatalf("login with email as typed at registration: %v", err)
	}
	if _, _, err := f.app.Login("carol@example.com", "pass1234"); err != nil {
		t.Fatalf("login with lowercased email: %v", err)
	}
}

func TestListUsersVisibility(t *testing.T) {
	f := newFixture(t)
	admin := f.user(t, "root", "admin")
	owner := f.user(t, "olga", "owner")
	tenant := f.user(t, "tom", "tenant")

	all, err := f.app.ListUsers(admin, "")
	if err != nil {
		t.Fatalf("admin ListUsers: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("admin sees %d users, want 3", len(all))
	}

	visible, err := f.app.ListUsers(owner, "")
	if err != nil {
		t.Fatalf("owner ListUsers: %v", err)
	}
	for _, u := range visible {
		if u.Role == domain.RoleAdmin {
			t.Fatalf("owner must not see admin accounts, got %q", u.Username)
		}
	}
	if len(visible) != 2 {
		t.Fatalf("owner sees %d users, want 2", len(visible))
	}

	if _, err := f.app.ListUsers(owner, "admin"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("owner filter=admin err = %v, want ErrForbidden", err)
	}
	if _, err := f.app.ListUsers(admin, "ghost"); !errors.Is(err, ErrInvalidRole) {
		t.Fatalf("unknown filter err = %v, want ErrInvalidRole", err)
	}
	if _, err := f.app.ListUsers(tenant, ""); !errors.Is(err, ErrForbidden) {
		t.Fatalf("tenant ListUsers err = %v, want ErrForbidden", err)
	}

	tenants, err := f.app.ListUsers(owner, "tenant")
	if err != nil {
		t.Fatalf("owner filter=tenant: %v", err)
	}
	if len(tenants) != 1 || tenants[0].ID != tenant.ID {
		t.Fatalf("owner filter=tenant = %+v", tenants)
	}
}

func TestGetUserOwnerSeesOwnTenantsOnly(t *testing.T) {
	f := newFixture(t)
	admin := f.user(t, "root", "admin")
	owner := f.user(t, "olga", "owner")
	mine := f.user(t, "tom", "tenant")
	other := f.user(t, "tim", "tenant")

	property := f.property(t, admin, "Loft", &owner.ID)
	if _, err := f.app.AssignTenant(owner, property.ID, mine.ID, time.Now(), nil); err != nil {
		t.Fatalf("AssignTenant: %v", err)
	}

	if _, err := f.app.GetUser(owner, mine.ID); err != nil {
		t.Fatalf("owner reading assigned tenant: %v", err)
	}
	if _, err := f.app.GetUser(owner, other.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("owner reading foreign tenant err = %v, want ErrForbidden", err)
	}
	if _, err := f.app.GetUser(mine, mine.ID); err != nil {
		t.Fatalf("self read: %v", err)
	}
	if _, err := f.app.GetUser(mine, other.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("tenant reading stranger err = %v, want ErrForbidden", err)
	}
}

func TestUpdateUserRoleChangeAdminOnly(t *testing.T) {
	f := newFixture(t)
	admin := f.user(t, "root", "admin")
	user := f.user(t, "tom", "tenant")

	role := "owner"
	if _, err := f.app.UpdateUser(user, user.ID, UserUpdate{Role: &role}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("self role change err = %v, want ErrForbidden", err)
	}
	updated, err := f.app.UpdateUser(admin, user.ID, UserUpdate{Role: &role})
	if err != nil {
		t.Fatalf("admin role change: %v", err)
	}
	if updated.Role != domain.RoleOwner {
		t.Fatalf("role = %q, want owner", updated.Role)
	}

	taken := "root"
	if _, err := f.app.UpdateUser(admin, user.ID, UserUpdate{Username: &taken}); !errors.Is(err, ErrConflict) {
		t.Fatalf("taken username err = %v, want ErrConflict", err)
	}
}

func TestDeleteUser(t *testing.T) {
	f := newFixture(t)
	admin := f.user(t, "root", "admin")
	owner := f.user(t, "olga", "owner")
	property := f.property(t, admin, "Loft", &owner.ID)

	if err := f.app.DeleteUser(owner, admin.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("non-admin delete err = %v, want ErrForbidden", err)
	}
	if err := f.app.DeleteUser(admin, admin.ID); !errors.Is(err, ErrAdminSelfDelete) {
		t.Fatalf("self delete err = %v, want ErrAdminSelfDelete", err)
	}
	if err := f.app.DeleteUser(admin, owner.ID); err != nil {
		t.Fatalf("DeleteUser: %v", err)
	}
	got, err := f.app.GetProperty(admin, property.ID)
	if err != nil {
		t.Fatalf("GetProperty after owner delete: %v", err)
	}
	if got.OwnerID != nil {
		t.Fatalf("property still references deleted owner %d", *got.OwnerID)
	}
}

func TestPropertyVisibility(t *testing.T) {
	f := newFixture(t)
	admin := f.user(t, "root", "admin")
	owner := f.user(t, "olga", "owner")
	other := f.user(t, "omar", "owner")
	tenant := f.user(t, "tom", "tenant")
	stranger := f.user(t, "sam", "tenant")

	property := f.property(t, admin, "Loft", &owner.ID)
	f.property(t, admin, "Villa", &other.ID)
	if _, err := f.app.AssignTenant(owner, property.ID, tenant.ID, time.Now(), nil); err != nil {
		t.Fatalf("AssignTenant: %v", err)
	}

	all, err := f.app.ListProperties(admin)
	if err != nil || len(all) != 2 {
		t.Fatalf("admin list = %d properties, err %v", len(all), err)
	}
	own, err := f.app.ListProperties(owner)
	if err != nil || len(own) != 1 || own[0].ID != property.ID {
		t.Fatalf("owner list = %+v, err %v", own, err)
	}
	if _, err := f.app.ListProperties(tenant); !errors.Is(err, ErrForbidden) {
		t.Fatalf("tenant list err = %v, want ErrForbidden", err)
	}

	if _, err := f.app.GetProperty(tenant, property.ID); err != nil {
		t.Fatalf("assigned tenant read: %v", err)
	}
	if _, err := f.app.GetProperty(stranger, property.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("stranger read err = %v, want ErrForbidden", err)
	}
	if _, err := f.app.GetProperty(other, property.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("foreign owner read err = %v, want ErrForbidden", err)
	}
	if _, err := f.app.GetProperty(admin, 999); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing property err = %v, want ErrNotFound", err)
	}
}

func TestCreatePropertyValidation(t *testing.T) {
	f := newFixture(t)
	admin := f.user(t, "root", "admin")
	tenant := f.user(t, "tom", "tenant")

	if _, err := f.app.CreateProperty(tenant, PropertyInput{Name: "Loft", Address: "A 1"}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("tenant create err = %v, want ErrForbidden", err)
	}
	if _, err := f.app.CreateProperty(admin, PropertyInput{Name: "  ", Address: "A 1"}); !errors.Is(err, ErrValidation) {
		t.Fatalf("blank name err = %v, want ErrValidation", err)
	}
	missing := uint(404)
	if _, err := f.app.CreateProperty(admin, PropertyInput{Name: "Loft", Address: "A 1", OwnerID: &missing}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing owner err = %v, want ErrNotFound", err)
	}
	if _, err := f.app.CreateProperty(admin, PropertyInput{Name: "Loft", Address: "A 1", OwnerID: &tenant.ID}); !errors.Is(err, ErrInvalidRole) {
		t.Fatalf("tenant as owner err = %v, want ErrInvalidRole", err)
	}
}

func TestAssignOwnerOverwrites(t *testing.T) {
	f := newFixture(t)
	admin := f.user(t, "root", "admin")
	first := f.user(t, "olga", "owner")
	second := f.user(t, "omar", "owner")
	tenant := f.user(t, "tom", "tenant")
	property := f.property(t, admin, "Loft", &first.ID)

	if _, err := f.app.AssignOwner(first, property.ID, second.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("owner assigning owner err = %v, want ErrForbidden", err)
	}
	if _, err := f.app.AssignOwner(admin, property.ID, tenant.ID); !errors.Is(err, ErrInvalidRole) {
		t.Fatalf("tenant as owner err = %v, want ErrInvalidRole", err)
	}
	updated, err := f.app.AssignOwner(admin, property.ID, second.ID)
	if err != nil {
		t.Fatalf("AssignOwner: %v", err)
	}
	if updated.OwnerID == nil || *updated.OwnerID != second.ID {
		t.Fatalf("owner = %v, want %d", updated.OwnerID, second.ID)
	}
}

func TestAssignTenantDuplicateIgnoresEndDate(t *testing.T) {
	f := newFixture(t)
	admin := f.user(t, "root", "admin")
	owner := f.user(t, "olga", "owner")
	tenant := f.user(t, "tom", "tenant")
	property := f.property(t, admin, "Loft", &owner.ID)

	end := time.Date(2024, time.March, 31, 0, 0, 0, 0, time.UTC)
	start := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	if _, err := f.app.AssignTenant(owner, property.ID, tenant.ID, start, &end); err != nil {
		t.Fatalf("AssignTenant: %v", err)
	}
	// The tenancy ended, but the pair still exists and blocks re-assignment.
	if _, err := f.app.AssignTenant(owner, property.ID, tenant.ID, time.Now(), nil); !errors.Is(err, ErrConflict) {
		t.Fatalf("duplicate pair err = %v, want ErrConflict", err)
	}
}

func TestAssignTenantChecksRolesAndPolicy(t *testing.T) {
	f := newFixture(t)
	admin := f.user(t, "root", "admin")
	owner := f.user(t, "olga", "owner")
	other := f.user(t, "omar", "owner")
	tenant := f.user(t, "tom", "tenant")
	property := f.property(t, admin, "Loft", &owner.ID)

	if _, err := f.app.AssignTenant(other, property.ID, tenant.ID, time.Now(), nil); !errors.Is(err, ErrForbidden) {
		t.Fatalf("foreign owner err = %v, want ErrForbidden", err)
	}
	if _, err := f.app.AssignTenant(admin, property.ID, other.ID, time.Now(), nil); !errors.Is(err, ErrInvalidRole) {
		t.Fatalf("owner as tenant err = %v, want ErrInvalidRole", err)
	}
	if _, err := f.app.AssignTenant(admin, 999, tenant.ID, time.Now(), nil); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing property err = %v, want ErrNotFound", err)
	}
	assignment, err := f.app.AssignTenant(admin, property.ID, tenant.ID, time.Time{}, nil)
	if err != nil {
		t.Fatalf("AssignTenant with zero start: %v", err)
	}
	if assignment.StartDate.IsZero() {
		t.Fatal("zero start date should default to now")
	}
}

func TestUnassignTenant(t *testing.T) {
	f := newFixture(t)
	admin := f.user(t, "root", "admin")
	owner := f.user(t, "olga", "owner")
	other := f.user(t, "omar", "owner")
	tenant := f.user(t, "tom", "tenant")
	property := f.property(t, admin, "Loft", &owner.ID)

	assignment, err := f.app.AssignTenant(owner, property.ID, tenant.ID, time.Now(), nil)
	if err != nil {
		t.Fatalf("AssignTenant: %v", err)
	}
	if err := f.app.UnassignTenant(other, assignment.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("foreign owner err = %v, want ErrForbidden", err)
	}
	if err := f.app.UnassignTenant(owner, assignment.ID); err != nil {
		t.Fatalf("UnassignTenant: %v", err)
	}
	if err := f.app.UnassignTenant(owner, assignment.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("double delete err = %v, want ErrNotFound", err)
	}
	// After deletion the pair is free again.
	if _, err := f.app.AssignTenant(owner, property.ID, tenant.ID, time.Now(), nil); err != nil {
		t.Fatalf("re-assign after unassign: %v", err)
	}
}
