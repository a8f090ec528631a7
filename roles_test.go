package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseRole(t *testing.T) {
	tests := []struct {
		in     string
		want   UserRole
		wantOK bool
	}{
		{"", RoleCustomer, true},
		{"customer", RoleCustomer, true},
		{" VENDOR ", RoleVendor, true},
		{"superadmin", RoleSuperAdmin, true},
		{"owner", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseRole(tt.in)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestUserRoleIsAtLeast(t *testing.T) {
	assert.True(t, RoleAdmin.IsAtLeast(RoleVendor))
	assert.True(t, RoleVendor.IsAtLeast(RoleVendor))
	assert.False(t, RoleCustomer.IsAtLeast(RoleVendor))
	assert.False(t, UserRole("unknown").IsAtLeast(RoleCustomer))
}
