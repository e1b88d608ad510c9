package auth

import "testing"

func TestNormalizeRole(t *testing.T) {
	if role, ok := NormalizeRole("operator"); !ok || role != RoleOperator {
		t.Fatalf("operator not recognized: %q %v", role, ok)
	}
	if _, ok := NormalizeRole("superuser"); ok {
		t.Fatal("unknown tier accepted")
	}
	if _, ok := NormalizeRole(""); ok {
		t.Fatal("empty tier accepted")
	}
}

func TestRoleAtLeast(t *testing.T) {
	if !RoleAtLeast(RoleAdmin, RoleViewer) {
		t.Fatal("admin should satisfy viewer")
	}
	if RoleAtLeast(RoleViewer, RoleOperator) {
		t.Fatal("viewer should not satisfy operator")
	}
	if RoleAtLeast("", RoleViewer) {
		t.Fatal("unknown role should not satisfy viewer")
	}
}
