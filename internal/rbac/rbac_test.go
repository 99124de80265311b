package rbac

import "testing"

func TestRank(t *testing.T) {
	if Rank(TeamMember) >= Rank(TeamAmbassador) || Rank(TeamAmbassador) >= Rank(TeamOwner) {
		t.Fatal("expected member < ambassador < owner")
	}
	if Rank(TeamRole("bogus")) >= Rank(TeamMember) {
		t.Fatal("unknown role must rank below member")
	}
}

func TestCanManageTeam(t *testing.T) {
	if CanManageTeam(TeamMember) {
		t.Fatal("member must not manage team")
	}
	if !CanManageTeam(TeamAmbassador) || !CanManageTeam(TeamOwner) {
		t.Fatal("ambassador and owner must manage team")
	}
}

func TestCanTeamUserEdit(t *testing.T) {
	cases := []struct {
		name   string
		actor  TeamRole
		action TeamUserAction
		target TeamRole
		self   bool
		allow  bool
	}{
		{name: "owner upgrades member", actor: TeamOwner, action: ActionUpgrade, target: TeamMember, allow: true},
		{name: "owner promotes ambassador to owner", actor: TeamOwner, action: ActionUpgrade, target: TeamAmbassador, allow: true},
		{name: "owner downgrades owner", actor: TeamOwner, action: ActionDowngrade, target: TeamOwner, allow: true},
		{name: "owner removes ambassador", actor: TeamOwner, action: ActionRemove, target: TeamAmbassador, allow: true},

		{name: "ambassador upgrades member", actor: TeamAmbassador, action: ActionUpgrade, target: TeamMember, allow: true},
		{name: "ambassador cannot mint owner", actor: TeamAmbassador, action: ActionUpgrade, target: TeamAmbassador, allow: false},
		{name: "ambassador cannot downgrade others", actor: TeamAmbassador, action: ActionDowngrade, target: TeamMember, allow: false},
		{name: "ambassador steps down", actor: TeamAmbassador, action: ActionDowngrade, target: TeamAmbassador, self: true, allow: true},
		{name: "ambassador removes member", actor: TeamAmbassador, action: ActionRemove, target: TeamMember, allow: true},
		{name: "ambassador removes self", actor: TeamAmbassador, action: ActionRemove, target: TeamAmbassador, self: true, allow: true},
		{name: "ambassador cannot remove owner", actor: TeamAmbassador, action: ActionRemove, target: TeamOwner, allow: false},

		{name: "member cannot upgrade", actor: TeamMember, action: ActionUpgrade, target: TeamMember, allow: false},
		{name: "member cannot downgrade", actor: TeamMember, action: ActionDowngrade, target: TeamMember, allow: false},
		{name: "member cannot remove others", actor: TeamMember, action: ActionRemove, target: TeamMember, allow: false},
		{name: "member leaves team", actor: TeamMember, action: ActionRemove, target: TeamMember, self: true, allow: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := CanTeamUserEdit(tc.actor, tc.action, tc.target, tc.self); got != tc.allow {
				t.Fatalf("CanTeamUserEdit(%q, %q, %q, self=%v) = %v, want %v",
					tc.actor, tc.action, tc.target, tc.self, got, tc.allow)
			}
		})
	}
}

func TestUpgradedDowngraded(t *testing.T) {
	if Upgraded(TeamMember) != TeamAmbassador {
		t.Fatal("member upgrades to ambassador")
	}
	if Upgraded(TeamAmbassador) != TeamOwner {
		t.Fatal("ambassador upgrades to owner")
	}
	if Upgraded(TeamOwner) != TeamOwner {
		t.Fatal("owner upgrade caps at owner")
	}
	if Downgraded(TeamOwner) != TeamAmbassador {
		t.Fatal("owner downgrades to ambassador")
	}
	if Downgraded(TeamAmbassador) != TeamMember {
		t.Fatal("ambassador downgrades to member")
	}
	if Downgraded(TeamMember) != TeamMember {
		t.Fatal("member downgrade caps at member")
	}
}

func TestNormalize(t *testing.T) {
	if NormalizeTeamRole("owner") != TeamOwner {
		t.Fatal("owner should survive normalization")
	}
	if NormalizeTeamRole("sudo") != TeamMember {
		t.Fatal("unknown team role defaults to member")
	}
	if NormalizeSystemRole("admin") != SystemAdmin {
		t.Fatal("admin should survive normalization")
	}
	if NormalizeSystemRole("") != SystemUser {
		t.Fatal("unknown system role defaults to user")
	}
}
