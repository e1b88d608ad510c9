package access

import (
	"errors"
	"testing"

	"ento-core/internal/fault"
)

func TestRegistryGrantRevoke(t *testing.T) {
	registry := NewRegistry()
	registry.Grant("alice", RoleMinter)
	if !registry.Has("alice", RoleMinter) {
		t.Fatal("expected minter role after grant")
	}
	registry.Revoke("alice", RoleMinter)
	if registry.Has("alice", RoleMinter) {
		t.Fatal("expected role removed after revoke")
	}
}

func TestRequireWrapsAuthorizationFailure(t *testing.T) {
	registry := NewRegistry()
	err := registry.Require("bob", RoleBurner)
	if err == nil {
		t.Fatal("expected authorization failure")
	}
	if !errors.Is(err, fault.ErrAuthorization) {
		t.Fatalf("expected authorization sentinel, got %v", err)
	}
}

func TestNormalizeRole(t *testing.T) {
	if _, ok := NormalizeRole("minter"); !ok {
		t.Fatal("minter should normalize")
	}
	if _, ok := NormalizeRole("superuser"); ok {
		t.Fatal("unknown role should not normalize")
	}
}
