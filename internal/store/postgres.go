package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Users

const userColumns = `id, email, full_name, password_hash, role, status, email_verified, verification_token, created_at`

func scanUser(row *sql.Row) (User, error) {
	var user User
	err := row.Scan(&user.ID, &user.Email, &user.FullName, &user.PasswordHash,
		&user.Role, &user.Status, &user.EmailVerified, &user.VerificationToken, &user.CreatedAt)
	if err != nil {
		return User{}, err
	}
	return user, nil
}

func (s *PostgresStore) CreateUser(ctx context.Context, user User) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, email, full_name, password_hash, role, status, email_verified, verification_token)
		VALUES ($1, LOWER($2), $3, $4, $5, $6, $7, $8)
	`, user.ID, user.Email, user.FullName, user.PasswordHash, user.Role, user.Status, user.EmailVerified, user.VerificationToken)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetUserByID(ctx context.Context, userID string) (User, error) {
	return scanUser(s.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id=$1`, userID))
}

func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (User, error) {
	return scanUser(s.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email=LOWER($1)`, email))
}

func (s *PostgresStore) ListUsers(ctx context.Context) ([]User, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	users := make([]User, 0)
	for rows.Next() {
		var user User
		if err := rows.Scan(&user.ID, &user.Email, &user.FullName, &user.PasswordHash,
			&user.Role, &user.Status, &user.EmailVerified, &user.VerificationToken, &user.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

func (s *PostgresStore) UpdateUserProfile(ctx context.Context, userID, fullName string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE users SET full_name=$2 WHERE id=$1`, userID, fullName)
	if err != nil {
		return fmt.Errorf("update user profile: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateUserRole(ctx context.Context, userID, role string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE users SET role=$2 WHERE id=$1`, userID, role)
	if err != nil {
		return fmt.Errorf("update user role: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateUserStatus(ctx context.Context, userID, status string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE users SET status=$2 WHERE id=$1`, userID, status)
	if err != nil {
		return fmt.Errorf("update user status: %w", err)
	}
	return nil
}

// CountActiveAdmins backs the last-admin protection.
func (s *PostgresStore) CountActiveAdmins(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM users WHERE role='admin' AND status='active'`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count admins: %w", err)
	}
	return count, nil
}

// Password auth collaborators

func (s *PostgresStore) UpdateUserVerificationToken(ctx context.Context, userID, token string, expiresAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE users SET verification_token=$2, verification_expires_at=$3 WHERE id=$1
	`, userID, token, expiresAt)
	if err != nil {
		return fmt.Errorf("set verification token: %w", err)
	}
	return nil
}

func (s *PostgresStore) VerifyUserEmail(ctx context.Context, token string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE users
		SET email_verified=TRUE, verification_token=''
		WHERE verification_token=$1 AND verification_token <> '' AND verification_expires_at > NOW()
	`, token)
	if err != nil {
		return fmt.Errorf("verify email: %w", err)
	}
	affected, _ := result.RowsAffected()
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (s *PostgresStore) UpdateUserPassword(ctx context.Context, userID, passwordHash string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE users SET password_hash=$2 WHERE id=$1`, userID, passwordHash)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return nil
}

func (s *PostgresStore) CreatePasswordReset(ctx context.Context, userID, token string, expiresAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO password_resets (token, user_id, expires_at) VALUES ($1, $2, $3)
	`, token, userID, expiresAt)
	if err != nil {
		return fmt.Errorf("create password reset: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetPasswordReset(ctx context.Context, token string) (string, error) {
	var userID string
	err := s.db.QueryRowContext(ctx, `
		SELECT user_id FROM password_resets
		WHERE token=$1 AND used_at IS NULL AND expires_at > NOW()
	`, token).Scan(&userID)
	if err != nil {
		return "", err
	}
	return userID, nil
}

func (s *PostgresStore) MarkPasswordResetUsed(ctx context.Context, token string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE password_resets SET used_at=NOW() WHERE token=$1`, token)
	if err != nil {
		return fmt.Errorf("mark reset used: %w", err)
	}
	return nil
}

// Teams

func (s *PostgresStore) InsertTeam(ctx context.Context, team Team, ownerID string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO teams (id, name) VALUES ($1, $2)`, team.ID, team.Name); err != nil {
			return fmt.Errorf("insert team: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO team_members (team_id, user_id, role) VALUES ($1, $2, 'owner')`, team.ID, ownerID); err != nil {
			return fmt.Errorf("insert owner membership: %w", err)
		}
		return nil
	})
}

func (s *PostgresStore) GetTeam(ctx context.Context, teamID string) (Team, error) {
	var team Team
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, created_at FROM teams WHERE id=$1`, teamID).
		Scan(&team.ID, &team.Name, &team.CreatedAt)
	if err != nil {
		return Team{}, err
	}
	return team, nil
}

func (s *PostgresStore) UpdateTeamName(ctx context.Context, teamID, name string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE teams SET name=$2 WHERE id=$1`, teamID, name)
	if err != nil {
		return fmt.Errorf("update team: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeleteTeam(ctx context.Context, teamID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM teams WHERE id=$1`, teamID)
	if err != nil {
		return fmt.Errorf("delete team: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListTeamsForUser(ctx context.Context, userID string) ([]Team, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT t.id, t.name, t.created_at
		FROM teams t
		JOIN team_members tm ON tm.team_id = t.id
		WHERE tm.user_id = $1
		ORDER BY t.created_at
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list teams: %w", err)
	}
	defer rows.Close()

	teams := make([]Team, 0)
	for rows.Next() {
		var team Team
		if err := rows.Scan(&team.ID, &team.Name, &team.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan team: %w", err)
		}
		teams = append(teams, team)
	}
	return teams, rows.Err()
}

func (s *PostgresStore) ListTeamMembers(ctx context.Context, teamID string) ([]TeamMember, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT tm.team_id, tm.user_id, tm.role, u.full_name, u.email
		FROM team_members tm
		JOIN users u ON u.id = tm.user_id
		WHERE tm.team_id = $1
		ORDER BY u.full_name
	`, teamID)
	if err != nil {
		return nil, fmt.Errorf("list team members: %w", err)
	}
	defer rows.Close()

	members := make([]TeamMember, 0)
	for rows.Next() {
		var member TeamMember
		if err := rows.Scan(&member.TeamID, &member.UserID, &member.Role, &member.FullName, &member.Email); err != nil {
			return nil, fmt.Errorf("scan team member: %w", err)
		}
		members = append(members, member)
	}
	return members, rows.Err()
}

func (s *PostgresStore) GetTeamMember(ctx context.Context, teamID, userID string) (TeamMember, error) {
	var member TeamMember
	err := s.db.QueryRowContext(ctx, `
		SELECT tm.team_id, tm.user_id, tm.role, u.full_name, u.email
		FROM team_members tm
		JOIN users u ON u.id = tm.user_id
		WHERE tm.team_id = $1 AND tm.user_id = $2
	`, teamID, userID).Scan(&member.TeamID, &member.UserID, &member.Role, &member.FullName, &member.Email)
	if err != nil {
		return TeamMember{}, err
	}
	return member, nil
}

func (s *PostgresStore) UpsertTeamMember(ctx context.Context, teamID, userID, role string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO team_members (team_id, user_id, role)
		VALUES ($1, $2, $3)
		ON CONFLICT (team_id, user_id) DO UPDATE SET role=EXCLUDED.role
	`, teamID, userID, role)
	if err != nil {
		return fmt.Errorf("upsert team member: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateTeamMemberRole(ctx context.Context, teamID, userID, role string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE team_members SET role=$3 WHERE team_id=$1 AND user_id=$2`, teamID, userID, role)
	if err != nil {
		return fmt.Errorf("update member role: %w", err)
	}
	return nil
}

func (s *PostgresStore) RemoveTeamMember(ctx context.Context, teamID, userID string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM team_members WHERE team_id=$1 AND user_id=$2`, teamID, userID)
	if err != nil {
		return fmt.Errorf("remove team member: %w", err)
	}
	return nil
}

// Buckets & tasks (reads; writes live in positions.go)

func (s *PostgresStore) GetBucket(ctx context.Context, bucketID string) (Bucket, error) {
	var bucket Bucket
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, user_id, team_id, position FROM buckets WHERE id=$1
	`, bucketID).Scan(&bucket.ID, &bucket.Name, &bucket.UserID, &bucket.TeamID, &bucket.Position)
	if err != nil {
		return Bucket{}, err
	}
	return bucket, nil
}

func (s *PostgresStore) RenameBucket(ctx context.Context, bucketID, name string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE buckets SET name=$2 WHERE id=$1`, bucketID, name)
	if err != nil {
		return fmt.Errorf("rename bucket: %w", err)
	}
	return nil
}

func (s *PostgresStore) listBuckets(ctx context.Context, query string, arg any) ([]Bucket, error) {
	rows, err := s.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("list buckets: %w", err)
	}
	defer rows.Close()

	buckets := make([]Bucket, 0)
	for rows.Next() {
		var bucket Bucket
		if err := rows.Scan(&bucket.ID, &bucket.Name, &bucket.UserID, &bucket.TeamID, &bucket.Position); err != nil {
			return nil, fmt.Errorf("scan bucket: %w", err)
		}
		buckets = append(buckets, bucket)
	}
	return buckets, rows.Err()
}

func (s *PostgresStore) ListBucketsForUser(ctx context.Context, userID string) ([]Bucket, error) {
	return s.listBuckets(ctx, `
		SELECT id, name, user_id, team_id, position FROM buckets
		WHERE user_id=$1 ORDER BY position
	`, userID)
}

func (s *PostgresStore) ListBucketsForTeam(ctx context.Context, teamID string) ([]Bucket, error) {
	return s.listBuckets(ctx, `
		SELECT id, name, user_id, team_id, position FROM buckets
		WHERE team_id=$1 ORDER BY position
	`, teamID)
}

const taskColumns = `id, bucket_id, title, description, due_date, completed, assignee_id, position, created_at, updated_at`

func (s *PostgresStore) GetTask(ctx context.Context, taskID string) (Task, error) {
	var task Task
	err := s.db.QueryRowContext(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE id=$1`, taskID).
		Scan(&task.ID, &task.BucketID, &task.Title, &task.Description, &task.DueDate,
			&task.Completed, &task.AssigneeID, &task.Position, &task.CreatedAt, &task.UpdatedAt)
	if err != nil {
		return Task{}, err
	}
	return task, nil
}

// ListTasksForBuckets fetches the tasks of all given buckets in one query,
// so bucket lists resolve without a per-bucket round trip.
func (s *PostgresStore) ListTasksForBuckets(ctx context.Context, bucketIDs []string) ([]Task, error) {
	if len(bucketIDs) == 0 {
		return []Task{}, nil
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE bucket_id = ANY($1) ORDER BY bucket_id, position`,
		bucketIDs)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	tasks := make([]Task, 0)
	for rows.Next() {
		var task Task
		if err := rows.Scan(&task.ID, &task.BucketID, &task.Title, &task.Description, &task.DueDate,
			&task.Completed, &task.AssigneeID, &task.Position, &task.CreatedAt, &task.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, task)
	}
	return tasks, rows.Err()
}

func (s *PostgresStore) UpdateTaskFields(ctx context.Context, taskID string, fields TaskFields) error {
	task, err := s.GetTask(ctx, taskID)
	if err != nil {
		return err
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
	_, err = s.db.ExecContext(ctx, `
		UPDATE tasks
		SET title=$2, description=$3, due_date=$4, completed=$5, assignee_id=$6, updated_at=NOW()
		WHERE id=$1
	`, taskID, task.Title, task.Description, task.DueDate, task.Completed, task.AssigneeID)
	if err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	return nil
}

// Checklists

func (s *PostgresStore) InsertChecklistItem(ctx context.Context, item ChecklistItem) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO checklist_items (id, task_id, title, done) VALUES ($1, $2, $3, $4)
	`, item.ID, item.TaskID, item.Title, item.Done)
	if err != nil {
		return fmt.Errorf("insert checklist item: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetChecklistItem(ctx context.Context, itemID string) (ChecklistItem, error) {
	var item ChecklistItem
	err := s.db.QueryRowContext(ctx, `
		SELECT id, task_id, title, done, created_at FROM checklist_items WHERE id=$1
	`, itemID).Scan(&item.ID, &item.TaskID, &item.Title, &item.Done, &item.CreatedAt)
	if err != nil {
		return ChecklistItem{}, err
	}
	return item, nil
}

func (s *PostgresStore) SetChecklistItemDone(ctx context.Context, itemID string, done bool) error {
	_, err := s.db.ExecContext(ctx, `UPDATE checklist_items SET done=$2 WHERE id=$1`, itemID, done)
	if err != nil {
		return fmt.Errorf("toggle checklist item: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeleteChecklistItem(ctx context.Context, itemID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM checklist_items WHERE id=$1`, itemID)
	if err != nil {
		return fmt.Errorf("delete checklist item: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListChecklistItems(ctx context.Context, taskID string) ([]ChecklistItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, task_id, title, done, created_at FROM checklist_items
		WHERE task_id=$1 ORDER BY created_at
	`, taskID)
	if err != nil {
		return nil, fmt.Errorf("list checklist items: %w", err)
	}
	defer rows.Close()

	items := make([]ChecklistItem, 0)
	for rows.Next() {
		var item ChecklistItem
		if err := rows.Scan(&item.ID, &item.TaskID, &item.Title, &item.Done, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan checklist item: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// Comments

func (s *PostgresStore) InsertComment(ctx context.Context, comment Comment) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO comments (id, task_id, author_id, body) VALUES ($1, $2, $3, $4)
	`, comment.ID, comment.TaskID, comment.AuthorID, comment.Body)
	if err != nil {
		return fmt.Errorf("insert comment: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetComment(ctx context.Context, commentID string) (Comment, error) {
	var comment Comment
	err := s.db.QueryRowContext(ctx, `
		SELECT c.id, c.task_id, c.author_id, u.full_name, c.body, c.created_at, c.updated_at
		FROM comments c
		JOIN users u ON u.id = c.author_id
		WHERE c.id=$1
	`, commentID).Scan(&comment.ID, &comment.TaskID, &comment.AuthorID, &comment.AuthorName,
		&comment.Body, &comment.CreatedAt, &comment.UpdatedAt)
	if err != nil {
		return Comment{}, err
	}
	return comment, nil
}

func (s *PostgresStore) UpdateComment(ctx context.Context, commentID, body string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE comments SET body=$2, updated_at=NOW() WHERE id=$1`, commentID, body)
	if err != nil {
		return fmt.Errorf("update comment: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeleteComment(ctx context.Context, commentID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM comments WHERE id=$1`, commentID)
	if err != nil {
		return fmt.Errorf("delete comment: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListComments(ctx context.Context, taskID string) ([]Comment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id, c.task_id, c.author_id, u.full_name, c.body, c.created_at, c.updated_at
		FROM comments c
		JOIN users u ON u.id = c.author_id
		WHERE c.task_id=$1
		ORDER BY c.created_at
	`, taskID)
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	defer rows.Close()

	comments := make([]Comment, 0)
	for rows.Next() {
		var comment Comment
		if err := rows.Scan(&comment.ID, &comment.TaskID, &comment.AuthorID, &comment.AuthorName,
			&comment.Body, &comment.CreatedAt, &comment.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan comment: %w", err)
		}
		comments = append(comments, comment)
	}
	return comments, rows.Err()
}

// Analytics

// Analytics aggregates task and comment counts over the given buckets for
// records created within the window starting at since.
func (s *PostgresStore) Analytics(ctx context.Context, bucketIDs []string, since time.Time) (AnalyticsReport, error) {
	report := AnalyticsReport{Buckets: []BucketStat{}}
	if len(bucketIDs) == 0 {
		return report, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT b.id, b.name,
			COUNT(t.id) FILTER (WHERE t.created_at >= $2),
			COUNT(t.id) FILTER (WHERE t.completed AND t.created_at >= $2),
			COUNT(t.id) FILTER (WHERE NOT t.completed AND t.due_date IS NOT NULL AND t.due_date < NOW())
		FROM buckets b
		LEFT JOIN tasks t ON t.bucket_id = b.id
		WHERE b.id = ANY($1)
		GROUP BY b.id, b.name, b.position
		ORDER BY b.position
	`, bucketIDs, since)
	if err != nil {
		return AnalyticsReport{}, fmt.Errorf("analytics buckets: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var stat BucketStat
		var overdue int
		if err := rows.Scan(&stat.BucketID, &stat.Name, &stat.Total, &stat.Completed, &overdue); err != nil {
			return AnalyticsReport{}, fmt.Errorf("scan analytics: %w", err)
		}
		report.TotalTasks += stat.Total
		report.CompletedTasks += stat.Completed
		report.OverdueTasks += overdue
		report.Buckets = append(report.Buckets, stat)
	}
	if err := rows.Err(); err != nil {
		return AnalyticsReport{}, fmt.Errorf("iterate analytics: %w", err)
	}

	err = s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM comments c
		JOIN tasks t ON t.id = c.task_id
		WHERE t.bucket_id = ANY($1) AND c.created_at >= $2
	`, bucketIDs, since).Scan(&report.Comments)
	if err != nil {
		return AnalyticsReport{}, fmt.Errorf("analytics comments: %w", err)
	}

	return report, nil
}
