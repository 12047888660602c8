package domain

// Capabilities is the permission set granted by a role.
type Capabilities struct {
	ManageTickets  bool
	AssignTickets  bool
	ManageUsers    bool
	DeleteTickets  bool
	ViewAllTickets bool
}

// capabilityMatrix is built once and never mutated.
var capabilityMatrix = map[Role]Capabilities{
	RoleStudent: {},
	RoleStaff: {
		ManageTickets: true,
	},
	RoleICT: {
		ManageTickets: true,
		AssignTickets: true,
	},
	RoleSuperAdmin: {
		ManageTickets:  true,
		AssignTickets:  true,
		ManageUsers:    true,
		DeleteTickets:  true,
		ViewAllTickets: true,
	},
}

// CapabilitiesFor looks up a role. Unknown roles get nothing.
func CapabilitiesFor(role Role) Capabilities {
	return capabilityMatrix[role]
}

// Elevated reports whether the role belongs to the support side (staff, ICT, admins).
func (r Role) Elevated() bool {
	return CapabilitiesFor(r).ManageTickets
}

// RolesWith lists the roles whose capabilities satisfy check, in display order.
func RolesWith(check func(Capabilities) bool) []Role {
	var roles []Role
	for _, role := range Roles {
		if check(capabilityMatrix[role]) {
			roles = append(roles, role)
		}
	}
	return roles
}
