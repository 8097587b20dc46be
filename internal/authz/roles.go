package authz

import "strings"

type Role string

const (
	RoleStudent     Role = "student"
	RoleEmployer    Role = "employer"
	RoleInstitution Role = "institution"
	RoleAdmin       Role = "admin"
)

func NormalizeRole(role string) Role {
	switch strings.ToLower(strings.TrimSpace(role)) {
	case string(RoleStudent):
		return RoleStudent
	case string(RoleEmployer):
		return RoleEmployer
	case string(RoleInstitution):
		return RoleInstitution
	case string(RoleAdmin):
		return RoleAdmin
	default:
		return ""
	}
}

func HasRole(role string, allowed ...Role) bool {
	if len(allowed) == 0 {
		return false
	}
	current := NormalizeRole(role)
	if current == "" {
		return false
	}
	for _, candidate := range allowed {
		if current == candidate {
			return true
		}
	}
	return false
}

func IsAdmin(role string) bool {
	return NormalizeRole(role) == RoleAdmin
}
