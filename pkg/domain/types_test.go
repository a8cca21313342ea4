package domain

import "testing"

func TestParseRole(t *testing.T) {
	for _, valid := range []string{"admin", "owner", "tenant"} {
		role, err := ParseRole(valid)
		if err != nil {
			t.Fatalf("expected %q to parse, got: %v", valid, err)
		}
		if string(role) != valid {
			t.Fatalf("expected role %q, got %q", valid, role)
		}
	}
	for _, invalid := range []string{"", "Admin", "superuser", "tenant "} {
		if _, err := ParseRole(invalid); err == nil {
			t.Fatalf("expected %q to be rejected", invalid)
		}
	}
}

func TestRoleValid(t *testing.T) {
	if !RoleOwner.Valid() {
		t.Fatalf("expected owner to be valid")
	}
	if Role("manager").Valid() {
		t.Fatalf("expected manager to be invalid")
	}
}
