package auth

import "strings"

// UserRole is the user's role
type UserRole string

const (
	// RoleCustomer is the default role for shoppers
	RoleCustomer UserRole = "CUSTOMER"
	// RoleVendor owns a storefront
	RoleVendor UserRole = "VENDOR"
	// RoleAdmin manages the catalog
	RoleAdmin UserRole = "ADMIN"
	// RoleSuperAdmin manages admins
	RoleSuperAdmin UserRole = "SUPERADMIN"
)

// IsValid checks if the role is one of the predefined valid roles
func (r UserRole) IsValid() bool {
	switch r {
	case RoleCustomer, RoleVendor, RoleAdmin, RoleSuperAdmin:
		return true
	default:
		return false
	}
}

// IsAtLeast checks if this role meets the minimum required level
func (r UserRole) IsAtLeast(minRole UserRole) bool {
	roleHierarchy := map[UserRole]int{
		RoleCustomer:   0,
		RoleVendor:     1,
		RoleAdmin:      2,
		RoleSuperAdmin: 3,
	}

	currentLevel, exists := roleHierarchy[r]
	if !exists {
		return false
	}

	minLevel, exists := roleHierarchy[minRole]
	if !exists {
		return false
	}

	return currentLevel >= minLevel
}

// GetAllRoles returns all predefined roles in hierarchical order
func GetAllRoles() []UserRole {
	return []UserRole{
		RoleCustomer,
		RoleVendor,
		RoleAdmin,
		RoleSuperAdmin,
	}
}

// ParseRole safely parses a string into a UserRole type. Empty input
// resolves to RoleCustomer.
func ParseRole(roleStr string) (UserRole, bool) {
	trimmed := strings.ToUpper(strings.TrimSpace(roleStr))
	if trimmed == "" {
		return RoleCustomer, true
	}
	role := UserRole(trimmed)
	if !role.IsValid() {
		return "", false
	}
	return role, true
}
