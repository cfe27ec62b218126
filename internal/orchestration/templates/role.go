package templates

import "strings"

// Role is the coordination role a worker's label declares (§4.2 role
// prefixes: GENERAL, COLONEL, CAPTAIN, RESEARCH, IMPL, TEST, REVIEW, FIX).
type Role string

// Recognized roles. RoleUnknown means the label carried no recognized
// prefix and the worker is treated as an ordinary unprivileged worker.
const (
	RoleGeneral  Role = "GENERAL"
	RoleColonel  Role = "COLONEL"
	RoleCaptain  Role = "CAPTAIN"
	RoleResearch Role = "RESEARCH"
	RoleImpl     Role = "IMPL"
	RoleTest     Role = "TEST"
	RoleReview   Role = "REVIEW"
	RoleFix      Role = "FIX"
	RoleUnknown  Role = ""
)

var rolePrefixes = []Role{
	RoleGeneral, RoleColonel, RoleCaptain, RoleResearch,
	RoleImpl, RoleTest, RoleReview, RoleFix,
}

// DetectRole extracts the role prefix from a worker label of the form
// "ROLE: description" (case-insensitive), returning RoleUnknown if label
// carries none of the recognized prefixes.
func DetectRole(label string) Role {
	upper := strings.ToUpper(label)
	for _, role := range rolePrefixes {
		if strings.HasPrefix(upper, string(role)+":") {
			return role
		}
	}
	return RoleUnknown
}

// CanDelegate reports whether role is permitted to spawn child workers
// (§4.2: only GENERAL, COLONEL, and CAPTAIN may delegate).
func CanDelegate(role Role) bool {
	switch role {
	case RoleGeneral, RoleColonel, RoleCaptain:
		return true
	default:
		return false
	}
}
