package model

import "strings"

// RolePrefix is prepended to a role name to form the authority granted to a principal.
const RolePrefix = "ROLE_"

// Role is a coarse-grained permission group.
type Role string

const (
	// RolePatient books services for themselves or a relative.
	RolePatient Role = "PATIENT"
	// RoleNurse performs home nursing visits.
	RoleNurse Role = "NURSE"
	// RoleCaregiver provides elderly and child care.
	RoleCaregiver Role = "CAREGIVER"
	// RolePhysiotherapist provides physiotherapy sessions.
	RolePhysiotherapist Role = "PHYSIOTHERAPIST"
	// RoleParamedic staffs ambulance crews.
	RoleParamedic Role = "PARAMEDIC"
	// RoleDispatcher assigns ambulance crews.
	RoleDispatcher Role = "DISPATCHER"
	// RoleAdmin manages accounts and roles.
	RoleAdmin Role = "ADMIN"
)

var knownRoles = map[Role]struct{}{
	RolePatient:         {},
	RoleNurse:           {},
	RoleCaregiver:       {},
	RolePhysiotherapist: {},
	RoleParamedic:       {},
	RoleDispatcher:      {},
	RoleAdmin:           {},
}

// ParseRole normalizes name and checks it against the known roles.
func ParseRole(name string) (Role, bool) {
	role := Role(strings.ToUpper(strings.TrimSpace(name)))
	_, ok := knownRoles[role]
	return role, ok
}

// Authority returns the authority string that grants the role.
func (r Role) Authority() string {
	return RolePrefix + string(r)
}
