package app

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"testing"
	"time"

	"dosync/api/internal/config"
	"dosync/api/internal/order"
	"dosync/api/internal/rbac"
	"dosync/api/internal/store"

	"github.com/sirupsen/logrus"
)

// fakeStore is an in-memory dataStore for service tests.
type fakeStore struct {
	users     map[string]store.User
	teams     map[string]store.Team
	members   map[string]map[string]store.TeamMember
	buckets   map[string]store.Bucket
	tasks     map[string]store.Task
	checklist map[string]store.ChecklistItem
	comments  map[string]store.Comment
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:     map[string]store.User{},
		teams:     map[string]store.Team{},
		members:   map[string]map[string]store.TeamMember{},
		buckets:   map[string]store.Bucket{},
		tasks:     map[string]store.Task{},
		checklist: map[string]store.ChecklistItem{},
		comments:  map[string]store.Comment{},
	}
}

func (f *fakeStore) Ping(context.Context) error { return nil }

func (f *fakeStore) GetUserByID(_ context.Context, id string) (store.User, error) {
	user, ok := f.users[id]
	if !ok {
		return store.User{}, sql.ErrNoRows
	}
	return user, nil
}

func (f *fakeStore) GetUserByEmail(_ context.Context, email string) (store.User, error) {
	for _, user := range f.users {
		if user.Email == email {
			return user, nil
		}
	}
	return store.User{}, sql.ErrNoRows
}

func (f *fakeStore) ListUsers(context.Context) ([]store.User, error) {
	out := make([]store.User, 0, len(f.users))
	for _, user := range f.users {
		out = append(out, user)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeStore) UpdateUserProfile(_ context.Context, userID, fullName string) error {
	user, ok := f.users[userID]
	if !ok {
		return sql.ErrNoRows
	}
	user.FullName = fullName
	f.users[userID] = user
	return nil
}

func (f *fakeStore) UpdateUserRole(_ context.Context, userID, role string) error {
	user, ok := f.users[userID]
	if !ok {
		return sql.ErrNoRows
	}
	user.Role = role
	f.users[userID] = user
	return nil
}

func (f *fakeStore) UpdateUserStatus(_ context.Context, userID, status string) error {
	user, ok := f.users[userID]
	if !ok {
		return sql.ErrNoRows
	}
	user.Status = status
	f.users[userID] = user
	return nil
}

func (f *fakeStore) CountActiveAdmins(context.Context) (int, error) {
	count := 0
	for _, user := range f.users {
		if user.Role == "admin" && user.Status == store.UserActive {
			count++
		}
	}
	return count, nil
}

func (f *fakeStore) InsertTeam(_ context.Context, team store.Team, ownerID string) error {
	f.teams[team.ID] = team
	f.members[team.ID] = map[string]store.TeamMember{
		ownerID: {TeamID: team.ID, UserID: ownerID, Role: string(rbac.TeamOwner)},
	}
	return nil
}

func (f *fakeStore) GetTeam(_ context.Context, id string) (store.Team, error) {
	team, ok := f.teams[id]
	if !ok {
		return store.Team{}, sql.ErrNoRows
	}
	return team, nil
}

func (f *fakeStore) UpdateTeamName(_ context.Context, teamID, name string) error {
	team, ok := f.teams[teamID]
	if !ok {
		return sql.ErrNoRows
	}
	team.Name = name
	f.teams[teamID] = team
	return nil
}

func (f *fakeStore) DeleteTeam(_ context.Context, id string) error {
	delete(f.teams, id)
	delete(f.members, id)
	return nil
}

func (f *fakeStore) ListTeamsForUser(_ context.Context, userID string) ([]store.Team, error) {
	var out []store.Team
	for teamID, members := range f.members {
		if _, ok := members[userID]; ok {
			out = append(out, f.teams[teamID])
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeStore) ListTeamMembers(_ context.Context, teamID string) ([]store.TeamMember, error) {
	var out []store.TeamMember
	for _, member := range f.members[teamID] {
		out = append(out, member)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

func (f *fakeStore) GetTeamMember(_ context.Context, teamID, userID string) (store.TeamMember, error) {
	member, ok := f.members[teamID][userID]
	if !ok {
		return store.TeamMember{}, sql.ErrNoRows
	}
	return member, nil
}

func (f *fakeStore) UpsertTeamMember(_ context.Context, teamID, userID, role string) error {
	if f.members[teamID] == nil {
		f.members[teamID] = map[string]store.TeamMember{}
	}
	f.members[teamID][userID] = store.TeamMember{TeamID: teamID, UserID: userID, Role: role}
	return nil
}

func (f *fakeStore) UpdateTeamMemberRole(_ context.Context, teamID, userID, role string) error {
	member, ok := f.members[teamID][userID]
	if !ok {
		return sql.ErrNoRows
	}
	member.Role = role
	f.members[teamID][userID] = member
	return nil
}

func (f *fakeStore) RemoveTeamMember(_ context.Context, teamID, userID string) error {
	delete(f.members[teamID], userID)
	return nil
}

func (f *fakeStore) GetBucket(_ context.Context, id string) (store.Bucket, error) {
	bucket, ok := f.buckets[id]
	if !ok {
		return store.Bucket{}, sql.ErrNoRows
	}
	return bucket, nil
}

func (f *fakeStore) RenameBucket(_ context.Context, bucketID, name string) error {
	bucket, ok := f.buckets[bucketID]
	if !ok {
		return sql.ErrNoRows
	}
	bucket.Name = name
	f.buckets[bucketID] = bucket
	return nil
}

func (f *fakeStore) ListBucketsForUser(_ context.Context, userID string) ([]store.Bucket, error) {
	var out []store.Bucket
	for _, bucket := range f.buckets {
		if bucket.UserID != nil && *bucket.UserID == userID {
			out = append(out, bucket)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out, nil
}

func (f *fakeStore) ListBucketsForTeam(_ context.Context, teamID string) ([]store.Bucket, error) {
	var out []store.Bucket
	for _, bucket := range f.buckets {
		if bucket.TeamID != nil && *bucket.TeamID == teamID {
			out = append(out, bucket)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out, nil
}

func (f *fakeStore) ListTasksForBuckets(_ context.Context, bucketIDs []string) ([]store.Task, error) {
	wanted := map[string]bool{}
	for _, id := range bucketIDs {
		wanted[id] = true
	}
	var out []store.Task
	for _, task := range f.tasks {
		if wanted[task.BucketID] {
			out = append(out, task)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out, nil
}

func (f *fakeStore) CreateBucket(_ context.Context, bucket store.Bucket) (store.Bucket, error) {
	bucket.Position = len(f.buckets)
	f.buckets[bucket.ID] = bucket
	return bucket, nil
}

func (f *fakeStore) MoveBucket(_ context.Context, bucketID string, _ *order.Scope, position *int) error {
	bucket, ok := f.buckets[bucketID]
	if !ok {
		return sql.ErrNoRows
	}
	if position != nil {
		bucket.Position = *position
	}
	f.buckets[bucketID] = bucket
	return nil
}

func (f *fakeStore) DeleteBucket(_ context.Context, id string) error {
	delete(f.buckets, id)
	for taskID, task := range f.tasks {
		if task.BucketID == id {
			delete(f.tasks, taskID)
		}
	}
	return nil
}

func (f *fakeStore) GetTask(_ context.Context, id string) (store.Task, error) {
	task, ok := f.tasks[id]
	if !ok {
		return store.Task{}, sql.ErrNoRows
	}
	return task, nil
}

func (f *fakeStore) CreateTask(_ context.Context, task store.Task) (store.Task, error) {
	task.Position = len(f.tasks)
	task.CreatedAt = time.Now()
	task.UpdatedAt = task.CreatedAt
	f.tasks[task.ID] = task
	return task, nil
}

func (f *fakeStore) MoveTask(_ context.Context, taskID string, bucketID *string, position *int) error {
	task, ok := f.tasks[taskID]
	if !ok {
		return sql.ErrNoRows
	}
	if bucketID != nil {
		task.BucketID = *bucketID
	}
	if position != nil {
		task.Position = *position
	}
	f.tasks[taskID] = task
	return nil
}

func (f *fakeStore) UpdateTaskFields(_ context.Context, taskID string, fields store.TaskFields) error {
	task, ok := f.tasks[taskID]
	if !ok {
		return sql.ErrNoRows
	}
	if fields.Title != nil {
		task.Title = *fields.Title
	}
	if fields.Description != nil {
		task.Description = *fields.Description
	}
	if fields.DueDate != nil {
		task.DueDate = fields.DueDate
	}
	if fields.ClearDue {
		task.DueDate = nil
	}
	if fields.Completed != nil {
		task.Completed = *fields.Completed
	}
	if fields.AssigneeID != nil {
		task.AssigneeID = fields.AssigneeID
	}
	if fields.ClearAssign {
		task.AssigneeID = nil
	}
	task.UpdatedAt = time.Now()
	f.tasks[taskID] = task
	return nil
}

func (f *fakeStore) DeleteTask(_ context.Context, id string) error {
	delete(f.tasks, id)
	return nil
}

func (f *fakeStore) InsertChecklistItem(_ context.Context, item store.ChecklistItem) error {
	f.checklist[item.ID] = item
	return nil
}

func (f *fakeStore) GetChecklistItem(_ context.Context, id string) (store.ChecklistItem, error) {
	item, ok := f.checklist[id]
	if !ok {
		return store.ChecklistItem{}, sql.ErrNoRows
	}
	return item, nil
}

func (f *fakeStore) SetChecklistItemDone(_ context.Context, itemID string, done bool) error {
	item, ok := f.checklist[itemID]
	if !ok {
		return sql.ErrNoRows
	}
	item.Done = done
	f.checklist[itemID] = item
	return nil
}

func (f *fakeStore) DeleteChecklistItem(_ context.Context, id string) error {
	delete(f.checklist, id)
	return nil
}

func (f *fakeStore) ListChecklistItems(_ context.Context, taskID string) ([]store.ChecklistItem, error) {
	var out []store.ChecklistItem
	for _, item := range f.checklist {
		if item.TaskID == taskID {
			out = append(out, item)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeStore) InsertComment(_ context.Context, comment store.Comment) error {
	comment.CreatedAt = time.Now()
	comment.UpdatedAt = comment.CreatedAt
	f.comments[comment.ID] = comment
	return nil
}

func (f *fakeStore) GetComment(_ context.Context, id string) (store.Comment, error) {
	comment, ok := f.comments[id]
	if !ok {
		return store.Comment{}, sql.ErrNoRows
	}
	return comment, nil
}

func (f *fakeStore) UpdateComment(_ context.Context, commentID, body string) error {
	comment, ok := f.comments[commentID]
	if !ok {
		return sql.ErrNoRows
	}
	comment.Body = body
	comment.UpdatedAt = time.Now()
	f.comments[commentID] = comment
	return nil
}

func (f *fakeStore) DeleteComment(_ context.Context, id string) error {
	delete(f.comments, id)
	return nil
}

func (f *fakeStore) ListComments(_ context.Context, taskID string) ([]store.Comment, error) {
	var out []store.Comment
	for _, comment := range f.comments {
		if comment.TaskID == taskID {
			out = append(out, comment)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeStore) Analytics(_ context.Context, bucketIDs []string, since time.Time) (store.AnalyticsReport, error) {
	wanted := map[string]bool{}
	for _, id := range bucketIDs {
		wanted[id] = true
	}
	var report store.AnalyticsReport
	for _, task := range f.tasks {
		if !wanted[task.BucketID] || task.CreatedAt.Before(since) {
			continue
		}
		report.TotalTasks++
		if task.Completed {
			report.CompletedTasks++
		}
	}
	return report, nil
}

// fakeSessions is an in-memory sessionStore.
type fakeSessions struct {
	sessions map[string]store.User
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{sessions: map[string]store.User{}}
}

func (f *fakeSessions) SaveRefreshSession(_ context.Context, tokenHash string, user store.User, _ time.Time) error {
	f.sessions[tokenHash] = user
	return nil
}

func (f *fakeSessions) LookupRefreshSession(_ context.Context, tokenHash string) (store.User, error) {
	user, ok := f.sessions[tokenHash]
	if !ok {
		return store.User{}, errors.New("refresh session not found")
	}
	return user, nil
}

func (f *fakeSessions) RevokeRefreshSession(_ context.Context, tokenHash string) error {
	delete(f.sessions, tokenHash)
	return nil
}

func (f *fakeSessions) Ping(context.Context) error { return nil }

func newTestService(t *testing.T) (*Service, *fakeStore) {
	t.Helper()
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	fake := newFakeStore()
	return &Service{
		cfg: config.Config{
			JWTSecret:  "test-secret",
			AccessTTL:  time.Minute,
			RefreshTTL: time.Hour,
			AppBaseURL: "http://localhost:3000",
		},
		store:    fake,
		sessions: newFakeSessions(),
		log:      log,
	}, fake
}

func addUser(f *fakeStore, id, role string) store.User {
	user := store.User{
		ID:            id,
		Email:         id + "@example.com",
		FullName:      id,
		Role:          role,
		Status:        store.UserActive,
		EmailVerified: true,
	}
	f.users[id] = user
	return user
}

func sessionFor(user store.User) Session {
	return Session{
		UserID:   user.ID,
		Email:    user.Email,
		FullName: user.FullName,
		Role:     user.Role,
	}
}

func errCode(t *testing.T, err error) string {
	t.Helper()
	var domain *DomainError
	if !errors.As(err, &domain) {
		t.Fatalf("expected a domain error, got %v", err)
	}
	return domain.Code
}

// seedTeam builds a team with an owner, an ambassador and two members.
func seedTeam(f *fakeStore) (teamID string, owner, ambassador, m1, m2 store.User) {
	owner = addUser(f, "owner", "user")
	ambassador = addUser(f, "amb", "user")
	m1 = addUser(f, "m1", "user")
	m2 = addUser(f, "m2", "user")

	teamID = "team_1"
	f.teams[teamID] = store.Team{ID: teamID, Name: "Core"}
	f.members[teamID] = map[string]store.TeamMember{
		owner.ID:      {TeamID: teamID, UserID: owner.ID, Role: "owner"},
		ambassador.ID: {TeamID: teamID, UserID: ambassador.ID, Role: "ambassador"},
		m1.ID:         {TeamID: teamID, UserID: m1.ID, Role: "member"},
		m2.ID:         {TeamID: teamID, UserID: m2.ID, Role: "member"},
	}
	return teamID, owner, ambassador, m1, m2
}

func TestTeamUserEditPermissions(t *testing.T) {
	ctx := context.Background()

	cases := []struct {
		name     string
		actor    string
		action   rbac.TeamUserAction
		target   string
		wantCode string
		wantRole string
	}{
		{name: "member cannot upgrade", actor: "m1", action: rbac.ActionUpgrade, target: "m2", wantCode: "FORBIDDEN"},
		{name: "member cannot remove another member", actor: "m1", action: rbac.ActionRemove, target: "m2", wantCode: "FORBIDDEN"},
		{name: "member can leave", actor: "m1", action: rbac.ActionRemove, target: "m1"},
		{name: "ambassador upgrades member", actor: "amb", action: rbac.ActionUpgrade, target: "m1", wantRole: "ambassador"},
		{name: "ambassador cannot downgrade others", actor: "amb", action: rbac.ActionDowngrade, target: "m1", wantCode: "FORBIDDEN"},
		{name: "ambassador steps down", actor: "amb", action: rbac.ActionDowngrade, target: "amb", wantRole: "member"},
		{name: "ambassador cannot remove owner", actor: "amb", action: rbac.ActionRemove, target: "owner", wantCode: "FORBIDDEN"},
		{name: "owner upgrades member", actor: "owner", action: rbac.ActionUpgrade, target: "m1", wantRole: "ambassador"},
		{name: "owner cannot downgrade below member", actor: "owner", action: rbac.ActionDowngrade, target: "m1", wantCode: "INVALID_INPUT"},
		{name: "owner removes member", actor: "owner", action: rbac.ActionRemove, target: "m2"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc, fake := newTestService(t)
			teamID, _, _, _, _ := seedTeam(fake)

			actor := sessionFor(fake.users[tc.actor])
			result, err := svc.TeamUserEdit(ctx, actor, teamID, tc.target, tc.action)

			if tc.wantCode != "" {
				if err == nil {
					t.Fatalf("expected %s, got member %+v", tc.wantCode, result)
				}
				if code := errCode(t, err); code != tc.wantCode {
					t.Fatalf("code = %s, want %s", code, tc.wantCode)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tc.action == rbac.ActionRemove {
				if _, err := fake.GetTeamMember(ctx, teamID, tc.target); !errors.Is(err, sql.ErrNoRows) {
					t.Fatalf("member %s still present after remove", tc.target)
				}
				return
			}
			if result.Role != tc.wantRole {
				t.Fatalf("role = %s, want %s", result.Role, tc.wantRole)
			}
		})
	}
}

func TestTeamUserEditAdminBypass(t *testing.T) {
	ctx := context.Background()
	svc, fake := newTestService(t)
	teamID, _, _, m1, _ := seedTeam(fake)
	admin := addUser(fake, "root", "admin")

	result, err := svc.TeamUserEdit(ctx, sessionFor(admin), teamID, m1.ID, rbac.ActionUpgrade)
	if err != nil {
		t.Fatalf("admin upgrade failed: %v", err)
	}
	if result.Role != "ambassador" {
		t.Fatalf("role = %s, want ambassador", result.Role)
	}
}

func TestTeamUserAddOwnerMinting(t *testing.T) {
	ctx := context.Background()
	svc, fake := newTestService(t)
	teamID, _, ambassador, _, _ := seedTeam(fake)
	outsider := addUser(fake, "outsider", "user")

	_, err := svc.TeamUserAdd(ctx, sessionFor(ambassador), teamID, outsider.Email, "owner")
	if code := errCode(t, err); code != "FORBIDDEN" {
		t.Fatalf("code = %s, want FORBIDDEN", code)
	}

	member, err := svc.TeamUserAdd(ctx, sessionFor(ambassador), teamID, outsider.Email, "member")
	if err != nil {
		t.Fatalf("ambassador add member failed: %v", err)
	}
	if member.Role != "member" {
		t.Fatalf("role = %s, want member", member.Role)
	}
}

func TestUserArchiveLastAdmin(t *testing.T) {
	ctx := context.Background()
	svc, fake := newTestService(t)
	admin := addUser(fake, "root", "admin")

	_, err := svc.UserArchive(ctx, sessionFor(admin), admin.ID)
	if code := errCode(t, err); code != "FORBIDDEN" {
		t.Fatalf("code = %s, want FORBIDDEN", code)
	}
	if fake.users[admin.ID].Status != store.UserActive {
		t.Fatal("sole admin was archived")
	}

	// With a second active admin the archive goes through.
	addUser(fake, "root2", "admin")
	archived, err := svc.UserArchive(ctx, sessionFor(admin), admin.ID)
	if err != nil {
		t.Fatalf("archive with backup admin failed: %v", err)
	}
	if archived.Status != store.UserArchived {
		t.Fatalf("status = %s, want archived", archived.Status)
	}
}

func TestUserRoleEditLastAdmin(t *testing.T) {
	ctx := context.Background()
	svc, fake := newTestService(t)
	admin := addUser(fake, "root", "admin")
	plain := addUser(fake, "plain", "user")

	if _, err := svc.UserRoleEdit(ctx, sessionFor(plain), admin.ID, "user"); errCode(t, err) != "FORBIDDEN" {
		t.Fatal("non-admin was allowed to change roles")
	}

	if _, err := svc.UserRoleEdit(ctx, sessionFor(admin), admin.ID, "user"); errCode(t, err) != "FORBIDDEN" {
		t.Fatal("sole admin was demoted")
	}

	promoted, err := svc.UserRoleEdit(ctx, sessionFor(admin), plain.ID, "admin")
	if err != nil {
		t.Fatalf("promote failed: %v", err)
	}
	if promoted.Role != "admin" {
		t.Fatalf("role = %s, want admin", promoted.Role)
	}

	// Two admins now, so the original can step down.
	demoted, err := svc.UserRoleEdit(ctx, sessionFor(admin), admin.ID, "user")
	if err != nil {
		t.Fatalf("demote with backup admin failed: %v", err)
	}
	if demoted.Role != "user" {
		t.Fatalf("role = %s, want user", demoted.Role)
	}
}

func TestBucketAccess(t *testing.T) {
	ctx := context.Background()
	svc, fake := newTestService(t)
	alice := addUser(fake, "alice", "user")
	bob := addUser(fake, "bob", "user")
	admin := addUser(fake, "root", "admin")

	aliceID := alice.ID
	fake.buckets["bkt_a"] = store.Bucket{ID: "bkt_a", Name: "Inbox", UserID: &aliceID}
	fake.tasks["tsk_a"] = store.Task{ID: "tsk_a", BucketID: "bkt_a", Title: "Write report"}

	if _, err := svc.Task(ctx, sessionFor(alice), "tsk_a"); err != nil {
		t.Fatalf("owner read failed: %v", err)
	}
	if _, err := svc.Task(ctx, sessionFor(bob), "tsk_a"); errCode(t, err) != "FORBIDDEN" {
		t.Fatal("stranger could read a personal board task")
	}
	if _, err := svc.Task(ctx, sessionFor(admin), "tsk_a"); err != nil {
		t.Fatalf("admin read failed: %v", err)
	}

	teamID, _, _, m1, _ := seedTeam(fake)
	fake.buckets["bkt_t"] = store.Bucket{ID: "bkt_t", Name: "Sprint", TeamID: &teamID}
	fake.tasks["tsk_t"] = store.Task{ID: "tsk_t", BucketID: "bkt_t", Title: "Ship it"}

	if _, err := svc.Task(ctx, sessionFor(m1), "tsk_t"); err != nil {
		t.Fatalf("team member read failed: %v", err)
	}
	if _, err := svc.Task(ctx, sessionFor(bob), "tsk_t"); errCode(t, err) != "FORBIDDEN" {
		t.Fatal("non-member could read a team board task")
	}
}

func TestRefreshRotation(t *testing.T) {
	ctx := context.Background()
	svc, fake := newTestService(t)
	user := addUser(fake, "alice", "user")

	first, err := svc.issueSession(ctx, user)
	if err != nil {
		t.Fatalf("issueSession: %v", err)
	}

	second, err := svc.Refresh(ctx, first.RefreshToken)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if second.RefreshToken == first.RefreshToken {
		t.Fatal("refresh token was not rotated")
	}

	// The exchanged token must be dead.
	if _, err := svc.Refresh(ctx, first.RefreshToken); errCode(t, err) != "UNAUTHORIZED" {
		t.Fatal("stale refresh token was accepted")
	}

	// Archived accounts cannot refresh.
	if err := fake.UpdateUserStatus(ctx, user.ID, store.UserArchived); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Refresh(ctx, second.RefreshToken); errCode(t, err) != "UNAUTHORIZED" {
		t.Fatal("archived account refreshed a session")
	}
}

func TestSessionFromToken(t *testing.T) {
	ctx := context.Background()
	svc, fake := newTestService(t)
	user := addUser(fake, "alice", "user")

	issued, err := svc.issueSession(ctx, user)
	if err != nil {
		t.Fatalf("issueSession: %v", err)
	}

	parsed, err := svc.SessionFromToken(ctx, issued.Token)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if parsed.UserID != user.ID || parsed.Email != user.Email {
		t.Fatalf("parsed identity %+v does not match user %s", parsed, user.ID)
	}

	if _, err := svc.SessionFromToken(ctx, "not-a-token"); err == nil {
		t.Fatal("garbage token parsed")
	}
}

func TestCommentAuthorship(t *testing.T) {
	ctx := context.Background()
	svc, fake := newTestService(t)
	alice := addUser(fake, "alice", "user")
	bob := addUser(fake, "bob", "user")
	admin := addUser(fake, "root", "admin")

	teamID, _, _, _, _ := seedTeam(fake)
	f := fake
	f.members[teamID][alice.ID] = store.TeamMember{TeamID: teamID, UserID: alice.ID, Role: "member"}
	f.members[teamID][bob.ID] = store.TeamMember{TeamID: teamID, UserID: bob.ID, Role: "member"}
	f.buckets["bkt_t"] = store.Bucket{ID: "bkt_t", Name: "Sprint", TeamID: &teamID}
	f.tasks["tsk_t"] = store.Task{ID: "tsk_t", BucketID: "bkt_t", Title: "Ship it"}

	comment, err := svc.CommentAdd(ctx, sessionFor(alice), "tsk_t", "looks good")
	if err != nil {
		t.Fatalf("comment add: %v", err)
	}

	if _, err := svc.CommentEdit(ctx, sessionFor(bob), comment.ID, "hijack"); errCode(t, err) != "FORBIDDEN" {
		t.Fatal("non-author edited a comment")
	}
	if err := svc.CommentDelete(ctx, sessionFor(bob), comment.ID); errCode(t, err) != "FORBIDDEN" {
		t.Fatal("non-author deleted a comment")
	}
	if err := svc.CommentDelete(ctx, sessionFor(admin), comment.ID); err != nil {
		t.Fatalf("admin delete failed: %v", err)
	}
}
