package auth

import "github.com/parlour-dev/parlour/backend/internal/domain"

type Tier string

const (
	TierAdminOrAbove   Tier = "admin-or-above"
	TierSuperAdminOnly Tier = "super-admin-only"
)

// Allowed 只依赖传入的角色和等级
func Allowed(role domain.Role, tier Tier) bool {
	switch tier {
	case TierAdminOrAbove:
		return role == domain.RoleAdmin || role == domain.RoleSuperAdmin
	case TierSuperAdminOnly:
		return role == domain.RoleSuperAdmin
	default:
		return false
	}
}
