package auth

// Role is the API access tier carried in a bearer token. Viewers read
// balances, quotes, and market state; operators submit purchases, trades,
// meter readings, and governance actions; admins mint, burn, seed pools,
// and export statements.
type Role string

const (
	RoleViewer   Role = "viewer"
	RoleOperator Role = "operator"
	RoleAdmin    Role = "admin"
)

var roleRanks = map[Role]int{
	RoleViewer:   1,
	RoleOperator: 2,
	RoleAdmin:    3,
}

// NormalizeRole maps a token claim onto a known tier; false for anything
// outside the three.
func NormalizeRole(value string) (Role, bool) {
	role := Role(value)
	if _, ok := roleRanks[role]; !ok {
		return "", false
	}
	return role, true
}

// RoleAtLeast reports whether role grants at least the access of required.
// Unknown roles rank below viewer.
func RoleAtLeast(role Role, required Role) bool {
	return roleRanks[role] >= roleRanks[required]
}
