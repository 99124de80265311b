package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"dosync/api/internal/email"
	"dosync/api/internal/rbac"
	"dosync/api/internal/store"
	"dosync/api/internal/util"
)

// TeamWithMembers is the team query result.
type TeamWithMembers struct {
	Team    store.Team
	Members []store.TeamMember
}

// teamRole resolves the session's effective team role. Admins act as owner
// everywhere; non-members get an error.
func (s *Service) teamRole(ctx context.Context, session Session, teamID string) (rbac.TeamRole, error) {
	if session.IsAdmin() {
		return rbac.TeamOwner, nil
	}
	member, err := s.store.GetTeamMember(ctx, teamID, session.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", forbidden("Not a member of this team")
		}
		return "", err
	}
	return rbac.NormalizeTeamRole(member.Role), nil
}

func (s *Service) TeamCreate(ctx context.Context, session Session, name string) (store.Team, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return store.Team{}, invalidInput("team name is required", nil)
	}
	team := store.Team{ID: util.NewID("team"), Name: name}
	if err := s.store.InsertTeam(ctx, team, session.UserID); err != nil {
		return store.Team{}, err
	}
	return s.store.GetTeam(ctx, team.ID)
}

func (s *Service) Team(ctx context.Context, session Session, teamID string) (TeamWithMembers, error) {
	if _, err := s.teamRole(ctx, session, teamID); err != nil {
		return TeamWithMembers{}, err
	}
	team, err := s.store.GetTeam(ctx, teamID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return TeamWithMembers{}, notFound("Team not found")
		}
		return TeamWithMembers{}, err
	}
	members, err := s.store.ListTeamMembers(ctx, teamID)
	if err != nil {
		return TeamWithMembers{}, err
	}
	return TeamWithMembers{Team: team, Members: members}, nil
}

func (s *Service) Teams(ctx context.Context, session Session) ([]store.Team, error) {
	return s.store.ListTeamsForUser(ctx, session.UserID)
}

func (s *Service) TeamEdit(ctx context.Context, session Session, teamID, name string) (store.Team, error) {
	role, err := s.teamRole(ctx, session, teamID)
	if err != nil {
		return store.Team{}, err
	}
	if !rbac.CanManageTeam(role) {
		return store.Team{}, forbidden("Only owners and ambassadors can edit a team")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return store.Team{}, invalidInput("team name is required", nil)
	}
	if err := s.store.UpdateTeamName(ctx, teamID, name); err != nil {
		return store.Team{}, err
	}
	return s.store.GetTeam(ctx, teamID)
}

func (s *Service) TeamDelete(ctx context.Context, session Session, teamID string) error {
	role, err := s.teamRole(ctx, session, teamID)
	if err != nil {
		return err
	}
	if role != rbac.TeamOwner {
		return forbidden("Only owners can delete a team")
	}
	if _, err := s.store.GetTeam(ctx, teamID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return notFound("Team not found")
		}
		return err
	}
	return s.store.DeleteTeam(ctx, teamID)
}

func (s *Service) TeamUserAdd(ctx context.Context, session Session, teamID, emailAddr, role string) (store.TeamMember, error) {
	actorRole, err := s.teamRole(ctx, session, teamID)
	if err != nil {
		return store.TeamMember{}, err
	}
	if !rbac.CanManageTeam(actorRole) {
		return store.TeamMember{}, forbidden("Only owners and ambassadors can add members")
	}

	newRole := rbac.NormalizeTeamRole(role)
	// Minting an owner is an owner-only privilege.
	if newRole == rbac.TeamOwner && actorRole != rbac.TeamOwner {
		return store.TeamMember{}, forbidden("Only owners can add another owner")
	}

	user, err := s.store.GetUserByEmail(ctx, emailAddr)
	if err != nil {
		return store.TeamMember{}, notFound("User not found")
	}
	if user.Status == store.UserArchived {
		return store.TeamMember{}, invalidInput("cannot add an archived user", nil)
	}
	if _, err := s.store.GetTeamMember(ctx, teamID, user.ID); err == nil {
		return store.TeamMember{}, conflict("User is already a member of this team")
	}

	if err := s.store.UpsertTeamMember(ctx, teamID, user.ID, string(newRole)); err != nil {
		return store.TeamMember{}, err
	}

	s.notifyTeamChange(ctx, session, teamID, user, "added you to the team")

	return s.store.GetTeamMember(ctx, teamID, user.ID)
}

// TeamUserEdit dispatches the Upgrade/Downgrade/Remove matrix. Returns the
// resulting membership, or a zero TeamMember for Remove.
func (s *Service) TeamUserEdit(ctx context.Context, session Session, teamID, userID string, action rbac.TeamUserAction) (store.TeamMember, error) {
	actorRole, err := s.teamRole(ctx, session, teamID)
	if err != nil {
		return store.TeamMember{}, err
	}

	target, err := s.store.GetTeamMember(ctx, teamID, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.TeamMember{}, notFound("Team member not found")
		}
		return store.TeamMember{}, err
	}
	targetRole := rbac.NormalizeTeamRole(target.Role)
	self := userID == session.UserID

	if !session.IsAdmin() && !rbac.CanTeamUserEdit(actorRole, action, targetRole, self) {
		return store.TeamMember{}, forbidden(fmt.Sprintf("Not allowed to %s this member", strings.ToLower(string(action))))
	}

	switch action {
	case rbac.ActionUpgrade:
		if targetRole == rbac.TeamOwner {
			return store.TeamMember{}, invalidInput("member already holds the highest role", nil)
		}
		next := rbac.Upgraded(targetRole)
		if err := s.store.UpdateTeamMemberRole(ctx, teamID, userID, string(next)); err != nil {
			return store.TeamMember{}, err
		}
	case rbac.ActionDowngrade:
		if targetRole == rbac.TeamMember {
			return store.TeamMember{}, invalidInput("member already holds the lowest role", nil)
		}
		next := rbac.Downgraded(targetRole)
		if err := s.store.UpdateTeamMemberRole(ctx, teamID, userID, string(next)); err != nil {
			return store.TeamMember{}, err
		}
	case rbac.ActionRemove:
		if err := s.store.RemoveTeamMember(ctx, teamID, userID); err != nil {
			return store.TeamMember{}, err
		}
		if !self {
			if user, err := s.store.GetUserByID(ctx, userID); err == nil {
				s.notifyTeamChange(ctx, session, teamID, user, "removed you from the team")
			}
		}
		return store.TeamMember{TeamID: teamID, UserID: userID}, nil
	default:
		return store.TeamMember{}, invalidInput("unknown action", nil)
	}

	if !self {
		if user, err := s.store.GetUserByID(ctx, userID); err == nil {
			s.notifyTeamChange(ctx, session, teamID, user, "changed your team role")
		}
	}

	return s.store.GetTeamMember(ctx, teamID, userID)
}

func (s *Service) notifyTeamChange(ctx context.Context, session Session, teamID string, user store.User, action string) {
	if s.notify == nil {
		return
	}
	teamName := teamID
	if team, err := s.store.GetTeam(ctx, teamID); err == nil {
		teamName = team.Name
	}
	s.notify.Enqueue(email.Notification{
		To: []string{user.Email},
		Data: email.TaskNotificationData{
			ActorName:  session.FullName,
			TaskTitle:  teamName,
			BucketName: teamName,
			Action:     action,
			TaskURL:    fmt.Sprintf("%s/teams/%s", s.cfg.AppBaseURL, teamID),
		},
	})
}
