package auth

import "strings"

type Role string

const (
	RolePatient Role = "patient"
	RoleDoctor  Role = "doctor"
)

// ParseRole normaliza el rol recibido del IAM. Devuelve "" si no es conocido.
func ParseRole(s string) Role {
	switch Role(strings.ToLower(strings.TrimSpace(s))) {
	case RolePatient:
		return RolePatient
	case RoleDoctor:
		return RoleDoctor
	default:
		return ""
	}
}

// Claims representa la identidad ya verificada del caller.
type Claims struct {
	UserID string
	Role   Role
	Email  string
}
