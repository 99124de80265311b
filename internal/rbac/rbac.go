// Package rbac encodes the DoSync permission model: a global system role
// (user < admin) and a per-team role (member < ambassador < owner). System
// admins bypass team-role checks entirely.
package rbac

type SystemRole string
type TeamRole string
type TeamUserAction string

const (
	SystemUser  SystemRole = "user"
	SystemAdmin SystemRole = "admin"
)

const (
	TeamMember     TeamRole = "member"
	TeamAmbassador TeamRole = "ambassador"
	TeamOwner      TeamRole = "owner"
)

const (
	ActionUpgrade   TeamUserAction = "UPGRADE"
	ActionDowngrade TeamUserAction = "DOWNGRADE"
	ActionRemove    TeamUserAction = "REMOVE"
)

var teamRoleRank = map[TeamRole]int{
	TeamMember:     0,
	TeamAmbassador: 1,
	TeamOwner:      2,
}

// Rank returns the team role's position in the lattice; unknown roles rank
// below member.
func Rank(role TeamRole) int {
	rank, ok := teamRoleRank[role]
	if !ok {
		return -1
	}
	return rank
}

// Upgraded returns the next role up the lattice, capping at owner.
func Upgraded(role TeamRole) TeamRole {
	switch role {
	case TeamMember:
		return TeamAmbassador
	default:
		return TeamOwner
	}
}

// Downgraded returns the next role down the lattice, capping at member.
func Downgraded(role TeamRole) TeamRole {
	switch role {
	case TeamOwner:
		return TeamAmbassador
	default:
		return TeamMember
	}
}

// CanManageTeam reports whether the role may edit team metadata or add
// members.
func CanManageTeam(role TeamRole) bool {
	return role == TeamOwner || role == TeamAmbassador
}

// teamUserRule is one row of the permission matrix for teamUserEdit.
type teamUserRule struct {
	actor  TeamRole
	action TeamUserAction
	// allowed decides per target role and whether the actor acts on themself.
	allowed func(target TeamRole, self bool) bool
}

var teamUserRules = []teamUserRule{
	// Owners manage everyone. Promoting to owner is an owner-only privilege.
	{TeamOwner, ActionUpgrade, func(TeamRole, bool) bool { return true }},
	{TeamOwner, ActionDowngrade, func(TeamRole, bool) bool { return true }},
	{TeamOwner, ActionRemove, func(TeamRole, bool) bool { return true }},

	// Ambassadors may only lift members to ambassador, never mint owners.
	{TeamAmbassador, ActionUpgrade, func(target TeamRole, _ bool) bool {
		return target == TeamMember
	}},
	// Ambassadors may step down themselves but not demote others.
	{TeamAmbassador, ActionDowngrade, func(_ TeamRole, self bool) bool {
		return self
	}},
	// Ambassadors may remove themselves or plain members, never an owner.
	{TeamAmbassador, ActionRemove, func(target TeamRole, self bool) bool {
		return self || target == TeamMember
	}},

	// Members may only remove themselves (leave the team).
	{TeamMember, ActionRemove, func(_ TeamRole, self bool) bool {
		return self
	}},
}

// CanTeamUserEdit decides the teamUserEdit permission matrix: whether actor
// may perform action on a user holding the target role. self is true when
// the actor is acting on their own membership. System admins are handled by
// the caller and bypass this matrix.
func CanTeamUserEdit(actor TeamRole, action TeamUserAction, target TeamRole, self bool) bool {
	for _, rule := range teamUserRules {
		if rule.actor == actor && rule.action == action {
			return rule.allowed(target, self)
		}
	}
	return false
}

func NormalizeTeamRole(role string) TeamRole {
	switch TeamRole(role) {
	case TeamMember, TeamAmbassador, TeamOwner:
		return TeamRole(role)
	default:
		return TeamMember
	}
}

func NormalizeSystemRole(role string) SystemRole {
	switch SystemRole(role) {
	case SystemUser, SystemAdmin:
		return SystemRole(role)
	default:
		return SystemUser
	}
}
