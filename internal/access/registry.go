// Package access holds the shared role registry consulted by every module
// at the top of each mutating call.
package access

import (
	"fmt"
	"sync"

	"ento-core/internal/fault"
)

// Role represents a granted capability.
type Role string

const (
	RoleMinter   Role = "minter"
	RoleBurner   Role = "burner"
	RoleAdmin    Role = "admin"
	RoleExecutor Role = "executor"
)

// NormalizeRole validates and normalizes a role string.
func NormalizeRole(value string) (Role, bool) {
	switch Role(value) {
	case RoleMinter, RoleBurner, RoleAdmin, RoleExecutor:
		return Role(value), true
	default:
		return "", false
	}
}

// Registry is the permission set keyed by account.
type Registry struct {
	mu     sync.RWMutex
	grants map[string]map[Role]struct{}
}

// NewRegistry constructs an empty registry.
func NewRegistry() *Registry {
	return &Registry{grants: make(map[string]map[Role]struct{})}
}

// Grant adds a role to an account.
func (r *Registry) Grant(account string, role Role) {
	if account == "" {
		return
	}
	r.mu.Lock()
	set := r.grants[account]
	if set == nil {
		set = make(map[Role]struct{})
		r.grants[account] = set
	}
	set[role] = struct{}{}
	r.mu.Unlock()
}

// Revoke removes a role from an account.
func (r *Registry) Revoke(account string, role Role) {
	r.mu.Lock()
	if set := r.grants[account]; set != nil {
		delete(set, role)
	}
	r.mu.Unlock()
}

// Has reports whether the account holds the role.
func (r *Registry) Has(account string, role Role) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	set := r.grants[account]
	if set == nil {
		return false
	}
	_, ok := set[role]
	return ok
}

// Require returns an authorization failure unless the account holds the role.
func (r *Registry) Require(account string, role Role) error {
	if !r.Has(account, role) {
		return fmt.Errorf("%w: account %s lacks role %s", fault.ErrAuthorization, account, role)
	}
	return nil
}
