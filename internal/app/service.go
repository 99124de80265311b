package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"dosync/api/internal/auth"
	"dosync/api/internal/authpw"
	"dosync/api/internal/config"
	"dosync/api/internal/email"
	"dosync/api/internal/order"
	"dosync/api/internal/rbac"
	"dosync/api/internal/search"
	"dosync/api/internal/session"
	"dosync/api/internal/store"
	"dosync/api/internal/util"

	"github.com/sirupsen/logrus"
)

type Session struct {
	Token        string
	RefreshToken string
	UserID       string
	Email        string
	FullName     string
	Role         string
	JTI          string
	ExpiresAt    time.Time
}

func (s Session) IsAdmin() bool {
	return rbac.NormalizeSystemRole(s.Role) == rbac.SystemAdmin
}

// dataStore is everything the service needs from persistence. Implemented by
// *store.PostgresStore; faked in tests.
type dataStore interface {
	Ping(context.Context) error

	GetUserByID(context.Context, string) (store.User, error)
	GetUserByEmail(context.Context, string) (store.User, error)
	ListUsers(context.Context) ([]store.User, error)
	UpdateUserProfile(ctx context.Context, userID, fullName string) error
	UpdateUserRole(ctx context.Context, userID, role string) error
	UpdateUserStatus(ctx context.Context, userID, status string) error
	CountActiveAdmins(context.Context) (int, error)

	InsertTeam(ctx context.Context, team store.Team, ownerID string) error
	GetTeam(context.Context, string) (store.Team, error)
	UpdateTeamName(ctx context.Context, teamID, name string) error
	DeleteTeam(context.Context, string) error
	ListTeamsForUser(context.Context, string) ([]store.Team, error)
	ListTeamMembers(context.Context, string) ([]store.TeamMember, error)
	GetTeamMember(ctx context.Context, teamID, userID string) (store.TeamMember, error)
	UpsertTeamMember(ctx context.Context, teamID, userID, role string) error
	UpdateTeamMemberRole(ctx context.Context, teamID, userID, role string) error
	RemoveTeamMember(ctx context.Context, teamID, userID string) error

	GetBucket(context.Context, string) (store.Bucket, error)
	RenameBucket(ctx context.Context, bucketID, name string) error
	ListBucketsForUser(context.Context, string) ([]store.Bucket, error)
	ListBucketsForTeam(context.Context, string) ([]store.Bucket, error)
	ListTasksForBuckets(context.Context, []string) ([]store.Task, error)
	CreateBucket(context.Context, store.Bucket) (store.Bucket, error)
	MoveBucket(ctx context.Context, bucketID string, targetScope *order.Scope, targetPosition *int) error
	DeleteBucket(context.Context, string) error

	GetTask(context.Context, string) (store.Task, error)
	CreateTask(context.Context, store.Task) (store.Task, error)
	MoveTask(ctx context.Context, taskID string, targetBucketID *string, targetPosition *int) error
	UpdateTaskFields(ctx context.Context, taskID string, fields store.TaskFields) error
	DeleteTask(context.Context, string) error

	InsertChecklistItem(context.Context, store.ChecklistItem) error
	GetChecklistItem(context.Context, string) (store.ChecklistItem, error)
	SetChecklistItemDone(ctx context.Context, itemID string, done bool) error
	DeleteChecklistItem(context.Context, string) error
	ListChecklistItems(context.Context, string) ([]store.ChecklistItem, error)

	InsertComment(context.Context, store.Comment) error
	GetComment(context.Context, string) (store.Comment, error)
	UpdateComment(ctx context.Context, commentID, body string) error
	DeleteComment(context.Context, string) error
	ListComments(context.Context, string) ([]store.Comment, error)

	Analytics(ctx context.Context, bucketIDs []string, since time.Time) (store.AnalyticsReport, error)
}

// sessionStore holds refresh tokens. Implemented by *session.RedisStore.
type sessionStore interface {
	SaveRefreshSession(ctx context.Context, tokenHash string, user store.User, expiresAt time.Time) error
	LookupRefreshSession(ctx context.Context, tokenHash string) (store.User, error)
	RevokeRefreshSession(ctx context.Context, tokenHash string) error
	Ping(context.Context) error
}

// notifier enqueues task notifications. Implemented by *email.Notifier.
type notifier interface {
	Enqueue(email.Notification)
}

// taskSearcher is the search facade. Implemented by *search.Service.
type taskSearcher interface {
	Search(search.Query) search.Response
	IndexTask(search.TaskRecord)
	DeleteTask(id string)
}

type Service struct {
	cfg      config.Config
	store    dataStore
	sessions sessionStore
	authpw   *authpw.Service
	mailer   *email.Service
	notify   notifier
	search   taskSearcher
	log      *logrus.Logger
}

func New(cfg config.Config, dataStore *store.PostgresStore, sessions *session.RedisStore, mailer *email.Service, notify *email.Notifier, searcher *search.Service, log *logrus.Logger) *Service {
	return &Service{
		cfg:      cfg,
		store:    dataStore,
		sessions: sessions,
		authpw:   authpw.NewService(dataStore),
		mailer:   mailer,
		notify:   notify,
		search:   searcher,
		log:      log,
	}
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func (s *Service) SMTPConfigured() bool {
	return s.mailer != nil && s.mailer.IsConfigured()
}

// Session lifecycle

type SignUpResult struct {
	UserID              string
	VerificationToken   string
	RequiresEmailVerify bool
}

func (s *Service) SignUp(ctx context.Context, emailAddr, password, fullName string) (SignUpResult, error) {
	resp, err := s.authpw.SignUp(ctx, authpw.SignUpRequest{
		Email:    emailAddr,
		Password: password,
		FullName: fullName,
	})
	if err != nil {
		if err.Error() == "email already registered" {
			return SignUpResult{}, conflict("Email already registered")
		}
		return SignUpResult{}, invalidInput(err.Error(), nil)
	}

	if s.SMTPConfigured() {
		verifyURL := fmt.Sprintf("%s/verify-email?token=%s", s.cfg.AppBaseURL, resp.VerificationToken)
		go func() {
			if err := s.mailer.SendVerificationEmail(emailAddr, fullName, verifyURL); err != nil {
				s.log.WithError(err).Warn("send verification email")
			}
		}()
	}

	return SignUpResult{
		UserID:              resp.UserID,
		VerificationToken:   resp.VerificationToken,
		RequiresEmailVerify: resp.RequiresEmailVerify,
	}, nil
}

func (s *Service) SignIn(ctx context.Context, emailAddr, password string) (Session, error) {
	resp, err := s.authpw.SignIn(ctx, authpw.SignInRequest{Email: emailAddr, Password: password})
	if err != nil {
		return Session{}, unauthorized("Invalid email or password")
	}
	if resp.RequiresVerify {
		return Session{}, forbidden("Please verify your email before signing in")
	}
	return s.issueSession(ctx, resp.User)
}

func (s *Service) VerifyEmail(ctx context.Context, token string) error {
	if err := s.authpw.VerifyEmail(ctx, token); err != nil {
		return invalidInput(err.Error(), nil)
	}
	return nil
}

func (s *Service) PasswordResetRequest(ctx context.Context, emailAddr string) (string, error) {
	token, err := s.authpw.RequestPasswordReset(ctx, emailAddr)
	if err != nil {
		return "", err
	}
	if token != "" && s.SMTPConfigured() {
		resetURL := fmt.Sprintf("%s/reset-password?token=%s", s.cfg.AppBaseURL, token)
		user, lookupErr := s.store.GetUserByEmail(ctx, emailAddr)
		name := emailAddr
		if lookupErr == nil {
			name = user.FullName
		}
		go func() {
			if err := s.mailer.SendPasswordResetEmail(emailAddr, name, resetURL); err != nil {
				s.log.WithError(err).Warn("send password reset email")
			}
		}()
	}
	return token, nil
}

func (s *Service) PasswordReset(ctx context.Context, token, newPassword string) error {
	if err := s.authpw.ResetPassword(ctx, authpw.ResetPasswordRequest{
		Token:       token,
		NewPassword: newPassword,
	}); err != nil {
		return invalidInput(err.Error(), nil)
	}
	return nil
}

func (s *Service) issueSession(ctx context.Context, user store.User) (Session, error) {
	now := time.Now()
	expiresAt := now.Add(s.cfg.AccessTTL)
	jti := util.NewID("jti")

	token, err := auth.IssueToken([]byte(s.cfg.JWTSecret), auth.Identity{
		UserID:   user.ID,
		Email:    user.Email,
		FullName: user.FullName,
		Role:     user.Role,
		JTI:      jti,
	}, s.cfg.AccessTTL)
	if err != nil {
		return Session{}, err
	}

	refresh := util.NewID("rft") + util.NewID("")
	refreshExpires := now.Add(s.cfg.RefreshTTL)
	if err := s.sessions.SaveRefreshSession(ctx, auth.HashToken(refresh), user, refreshExpires); err != nil {
		return Session{}, err
	}

	return Session{
		Token:        token,
		RefreshToken: refresh,
		UserID:       user.ID,
		Email:        user.Email,
		FullName:     user.FullName,
		Role:         user.Role,
		JTI:          jti,
		ExpiresAt:    expiresAt,
	}, nil
}

func (s *Service) Refresh(ctx context.Context, refreshToken string) (Session, error) {
	tokenHash := auth.HashToken(refreshToken)
	user, err := s.sessions.LookupRefreshSession(ctx, tokenHash)
	if err != nil {
		return Session{}, unauthorized("Refresh token invalid")
	}
	// Rotate: old refresh token dies with this exchange.
	if err := s.sessions.RevokeRefreshSession(ctx, tokenHash); err != nil {
		return Session{}, err
	}

	// Re-read the user so role and status changes take effect on refresh.
	if fresh, err := s.store.GetUserByID(ctx, user.ID); err == nil {
		if fresh.Status == store.UserArchived {
			return Session{}, unauthorized("Account is archived")
		}
		user = fresh
	}

	return s.issueSession(ctx, user)
}

func (s *Service) SessionFromToken(ctx context.Context, token string) (Session, error) {
	id, err := auth.ParseToken([]byte(s.cfg.JWTSecret), token)
	if err != nil {
		return Session{}, err
	}
	return Session{
		Token:     token,
		UserID:    id.UserID,
		Email:     id.Email,
		FullName:  id.FullName,
		Role:      id.Role,
		JTI:       id.JTI,
		ExpiresAt: id.Expires,
	}, nil
}

func (s *Service) SignOut(ctx context.Context, refreshToken string) error {
	if refreshToken != "" {
		_ = s.sessions.RevokeRefreshSession(ctx, auth.HashToken(refreshToken))
	}
	return nil
}

// Users

func (s *Service) Me(ctx context.Context, session Session) (store.User, error) {
	user, err := s.store.GetUserByID(ctx, session.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.User{}, notFound("User not found")
		}
		return store.User{}, err
	}
	return user, nil
}

func (s *Service) Users(ctx context.Context, session Session) ([]store.User, error) {
	if !session.IsAdmin() {
		return nil, forbidden("Admin role required")
	}
	return s.store.ListUsers(ctx)
}

func (s *Service) UserEdit(ctx context.Context, session Session, userID, fullName string) (store.User, error) {
	if userID == "" {
		userID = session.UserID
	}
	if userID != session.UserID && !session.IsAdmin() {
		return store.User{}, forbidden("Cannot edit another user's profile")
	}
	fullName = strings.TrimSpace(fullName)
	if fullName == "" {
		return store.User{}, invalidInput("fullName is required", nil)
	}
	if _, err := s.store.GetUserByID(ctx, userID); err != nil {
		return store.User{}, notFound("User not found")
	}
	if err := s.store.UpdateUserProfile(ctx, userID, fullName); err != nil {
		return store.User{}, err
	}
	return s.store.GetUserByID(ctx, userID)
}

func (s *Service) UserRoleEdit(ctx context.Context, session Session, userID, role string) (store.User, error) {
	if !session.IsAdmin() {
		return store.User{}, forbidden("Admin role required")
	}
	normalized := rbac.NormalizeSystemRole(role)
	if string(normalized) != role {
		return store.User{}, invalidInput("role must be user or admin", nil)
	}
	target, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return store.User{}, notFound("User not found")
	}

	if target.Role == string(rbac.SystemAdmin) && normalized == rbac.SystemUser {
		admins, err := s.store.CountActiveAdmins(ctx)
		if err != nil {
			return store.User{}, err
		}
		if admins <= 1 {
			return store.User{}, forbidden("Cannot demote the last admin")
		}
	}

	if err := s.store.UpdateUserRole(ctx, userID, string(normalized)); err != nil {
		return store.User{}, err
	}
	return s.store.GetUserByID(ctx, userID)
}

func (s *Service) UserArchive(ctx context.Context, session Session, userID string) (store.User, error) {
	if userID == "" {
		userID = session.UserID
	}
	if userID != session.UserID && !session.IsAdmin() {
		return store.User{}, forbidden("Cannot archive another user")
	}
	target, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return store.User{}, notFound("User not found")
	}

	// The system must always keep at least one active admin.
	if target.Role == string(rbac.SystemAdmin) && target.Status == store.UserActive {
		admins, err := s.store.CountActiveAdmins(ctx)
		if err != nil {
			return store.User{}, err
		}
		if admins <= 1 {
			return store.User{}, forbidden("Cannot archive the last admin")
		}
	}

	if err := s.store.UpdateUserStatus(ctx, userID, store.UserArchived); err != nil {
		return store.User{}, err
	}
	return s.store.GetUserByID(ctx, userID)
}
