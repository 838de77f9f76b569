package models

import "github.com/golang-jwt/jwt/v5"

// Checkout permissions
const (
	PermissionCheckoutWrite = "checkout:write"
	PermissionCheckoutRead  = "checkout:read"
	PermissionSettlementRun = "settlement:run"
)

// UserClaims is issued by the external auth service; this service only
// verifies and reads it.
type UserClaims struct {
	jwt.RegisteredClaims
	UserID      uint     `json:"user_id"`
	Email       string   `json:"email"`
	Role        string   `json:"role"`
	Permissions []string `json:"permissions"`
}

// HasPermission checks if the claims include a specific permission
func (c *UserClaims) HasPermission(permission string) bool {
	for _, p := range c.Permissions {
		if p == permission {
			return true
		}
	}
	return false
}

// GetDefaultPermissions returns default permissions based on role
func GetDefaultPermissions(role string) []string {
	switch role {
	case "admin":
		return []string{PermissionCheckoutWrite, PermissionCheckoutRead, PermissionSettlementRun}
	case "student":
		return []string{PermissionCheckoutWrite, PermissionCheckoutRead}
	default:
		return []string{}
	}
}
