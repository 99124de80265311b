package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"dosync/api/internal/email"
	"dosync/api/internal/order"
	"dosync/api/internal/search"
	"dosync/api/internal/store"
	"dosync/api/internal/util"
)

// bucketAccess checks the session may see and mutate the bucket's board.
func (s *Service) bucketAccess(ctx context.Context, session Session, bucket store.Bucket) error {
	switch {
	case bucket.UserID != nil:
		if *bucket.UserID != session.UserID && !session.IsAdmin() {
			return forbidden("Not your board")
		}
		return nil
	case bucket.TeamID != nil:
		_, err := s.teamRole(ctx, session, *bucket.TeamID)
		return err
	default:
		return invalidInput("bucket has no scope", nil)
	}
}

func (s *Service) getBucket(ctx context.Context, session Session, bucketID string) (store.Bucket, error) {
	bucket, err := s.store.GetBucket(ctx, bucketID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.Bucket{}, notFound("Bucket not found")
		}
		return store.Bucket{}, err
	}
	if err := s.bucketAccess(ctx, session, bucket); err != nil {
		return store.Bucket{}, err
	}
	return bucket, nil
}

func (s *Service) getTask(ctx context.Context, session Session, taskID string) (store.Task, store.Bucket, error) {
	task, err := s.store.GetTask(ctx, taskID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.Task{}, store.Bucket{}, notFound("Task not found")
		}
		return store.Task{}, store.Bucket{}, err
	}
	bucket, err := s.getBucket(ctx, session, task.BucketID)
	if err != nil {
		return store.Task{}, store.Bucket{}, err
	}
	return task, bucket, nil
}

// Buckets returns the caller's board (teamID nil) or a team's board, with
// each bucket's tasks attached via a single batched query.
func (s *Service) Buckets(ctx context.Context, session Session, teamID *string) ([]store.Bucket, error) {
	var buckets []store.Bucket
	var err error
	if teamID == nil {
		buckets, err = s.store.ListBucketsForUser(ctx, session.UserID)
	} else {
		if _, roleErr := s.teamRole(ctx, session, *teamID); roleErr != nil {
			return nil, roleErr
		}
		buckets, err = s.store.ListBucketsForTeam(ctx, *teamID)
	}
	if err != nil {
		return nil, err
	}

	ids := make([]string, len(buckets))
	for i, bucket := range buckets {
		ids[i] = bucket.ID
	}
	tasks, err := s.store.ListTasksForBuckets(ctx, ids)
	if err != nil {
		return nil, err
	}

	byBucket := make(map[string][]store.Task, len(buckets))
	for _, task := range tasks {
		byBucket[task.BucketID] = append(byBucket[task.BucketID], task)
	}
	for i := range buckets {
		buckets[i].Tasks = byBucket[buckets[i].ID]
		if buckets[i].Tasks == nil {
			buckets[i].Tasks = []store.Task{}
		}
	}
	return buckets, nil
}

func (s *Service) BucketCreate(ctx context.Context, session Session, name string, teamID *string) (store.Bucket, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return store.Bucket{}, invalidInput("bucket name is required", nil)
	}

	bucket := store.Bucket{ID: util.NewID("bkt"), Name: name}
	if teamID == nil {
		userID := session.UserID
		bucket.UserID = &userID
	} else {
		// Any member may add buckets to the team board.
		if _, err := s.teamRole(ctx, session, *teamID); err != nil {
			return store.Bucket{}, err
		}
		bucket.TeamID = teamID
	}

	created, err := s.store.CreateBucket(ctx, bucket)
	if err != nil {
		return store.Bucket{}, err
	}
	created.Tasks = []store.Task{}
	return created, nil
}

// BucketEditInput carries the optional bucketEdit fields; nil means leave
// unchanged.
type BucketEditInput struct {
	ID        string
	Name      *string
	SortOrder *int
}

func (s *Service) BucketEdit(ctx context.Context, session Session, input BucketEditInput) (store.Bucket, error) {
	bucket, err := s.getBucket(ctx, session, input.ID)
	if err != nil {
		return store.Bucket{}, err
	}

	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return store.Bucket{}, invalidInput("bucket name cannot be empty", nil)
		}
		if err := s.store.RenameBucket(ctx, bucket.ID, name); err != nil {
			return store.Bucket{}, err
		}
	}

	if input.SortOrder != nil {
		var target *order.Scope
		if err := s.store.MoveBucket(ctx, bucket.ID, target, input.SortOrder); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return store.Bucket{}, notFound("Bucket not found")
			}
			return store.Bucket{}, err
		}
	}

	return s.store.GetBucket(ctx, bucket.ID)
}

func (s *Service) BucketDelete(ctx context.Context, session Session, bucketID string) error {
	if _, err := s.getBucket(ctx, session, bucketID); err != nil {
		return err
	}
	tasks, err := s.store.ListTasksForBuckets(ctx, []string{bucketID})
	if err != nil {
		return err
	}
	if err := s.store.DeleteBucket(ctx, bucketID); err != nil {
		return err
	}
	if s.search != nil {
		for _, task := range tasks {
			s.search.DeleteTask(task.ID)
		}
	}
	return nil
}

// Tasks

func (s *Service) Task(ctx context.Context, session Session, taskID string) (store.Task, error) {
	task, _, err := s.getTask(ctx, session, taskID)
	return task, err
}

type TaskCreateInput struct {
	BucketID    string
	Title       string
	Description string
	DueDate     *time.Time
	AssigneeID  *string
}

func (s *Service) TaskCreate(ctx context.Context, session Session, input TaskCreateInput) (store.Task, error) {
	input.Title = strings.TrimSpace(input.Title)
	if input.Title == "" {
		return store.Task{}, invalidInput("task title is required", nil)
	}
	bucket, err := s.getBucket(ctx, session, input.BucketID)
	if err != nil {
		return store.Task{}, err
	}

	if input.AssigneeID != nil {
		if _, err := s.store.GetUserByID(ctx, *input.AssigneeID); err != nil {
			return store.Task{}, notFound("Assignee not found")
		}
	}

	task, err := s.store.CreateTask(ctx, store.Task{
		ID:          util.NewID("tsk"),
		BucketID:    bucket.ID,
		Title:       input.Title,
		Description: input.Description,
		DueDate:     input.DueDate,
		AssigneeID:  input.AssigneeID,
	})
	if err != nil {
		return store.Task{}, err
	}

	s.indexTask(task)
	if input.AssigneeID != nil && *input.AssigneeID != session.UserID {
		s.notifyAssignee(ctx, session, task, bucket, *input.AssigneeID, "assigned you a task")
	}
	return task, nil
}

// TaskEditInput carries the optional taskEdit fields; nil means leave
// unchanged. ClearDue/ClearAssign distinguish "unset" from "untouched".
type TaskEditInput struct {
	ID          string
	BucketID    *string
	SortOrder   *int
	Title       *string
	Description *string
	DueDate     *time.Time
	ClearDue    bool
	Completed   *bool
	AssigneeID  *string
	ClearAssign bool
}

func (s *Service) TaskEdit(ctx context.Context, session Session, input TaskEditInput) (store.Task, error) {
	task, bucket, err := s.getTask(ctx, session, input.ID)
	if err != nil {
		return store.Task{}, err
	}

	if input.Title != nil && strings.TrimSpace(*input.Title) == "" {
		return store.Task{}, invalidInput("task title cannot be empty", nil)
	}
	if input.AssigneeID != nil {
		if _, err := s.store.GetUserByID(ctx, *input.AssigneeID); err != nil {
			return store.Task{}, notFound("Assignee not found")
		}
	}

	// A cross-bucket move needs access to the destination too.
	targetBucket := bucket
	if input.BucketID != nil && *input.BucketID != task.BucketID {
		targetBucket, err = s.getBucket(ctx, session, *input.BucketID)
		if err != nil {
			return store.Task{}, err
		}
	}

	fields := store.TaskFields{
		Title:       input.Title,
		Description: input.Description,
		DueDate:     input.DueDate,
		ClearDue:    input.ClearDue,
		Completed:   input.Completed,
		AssigneeID:  input.AssigneeID,
		ClearAssign: input.ClearAssign,
	}
	if err := s.store.UpdateTaskFields(ctx, task.ID, fields); err != nil {
		return store.Task{}, err
	}

	if input.BucketID != nil || input.SortOrder != nil {
		if err := s.store.MoveTask(ctx, task.ID, input.BucketID, input.SortOrder); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return store.Task{}, notFound("Task not found")
			}
			return store.Task{}, err
		}
	}

	updated, err := s.store.GetTask(ctx, task.ID)
	if err != nil {
		return store.Task{}, err
	}

	s.indexTask(updated)

	assigneeChanged := input.AssigneeID != nil &&
		(task.AssigneeID == nil || *task.AssigneeID != *input.AssigneeID)
	if assigneeChanged && *input.AssigneeID != session.UserID {
		s.notifyAssignee(ctx, session, updated, targetBucket, *input.AssigneeID, "assigned you a task")
	}

	return updated, nil
}

func (s *Service) TaskDelete(ctx context.Context, session Session, taskID string) error {
	task, _, err := s.getTask(ctx, session, taskID)
	if err != nil {
		return err
	}
	if err := s.store.DeleteTask(ctx, task.ID); err != nil {
		return err
	}
	if s.search != nil {
		s.search.DeleteTask(task.ID)
	}
	return nil
}

func (s *Service) indexTask(task store.Task) {
	if s.search == nil {
		return
	}
	s.search.IndexTask(search.TaskRecord{
		ID:          task.ID,
		Title:       task.Title,
		Description: task.Description,
		BucketID:    task.BucketID,
		Completed:   task.Completed,
	})
}

func (s *Service) notifyAssignee(ctx context.Context, session Session, task store.Task, bucket store.Bucket, assigneeID, action string) {
	if s.notify == nil {
		return
	}
	assignee, err := s.store.GetUserByID(ctx, assigneeID)
	if err != nil {
		return
	}
	s.notify.Enqueue(email.Notification{
		To: []string{assignee.Email},
		Data: email.TaskNotificationData{
			ActorName:  session.FullName,
			TaskTitle:  task.Title,
			BucketName: bucket.Name,
			Action:     action,
			TaskURL:    fmt.Sprintf("%s/tasks/%s", s.cfg.AppBaseURL, task.ID),
		},
	})
}

// Checklists

func (s *Service) Checklist(ctx context.Context, session Session, taskID string) ([]store.ChecklistItem, error) {
	if _, _, err := s.getTask(ctx, session, taskID); err != nil {
		return nil, err
	}
	return s.store.ListChecklistItems(ctx, taskID)
}

func (s *Service) ChecklistAdd(ctx context.Context, session Session, taskID, title string) (store.ChecklistItem, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return store.ChecklistItem{}, invalidInput("checklist item title is required", nil)
	}
	if _, _, err := s.getTask(ctx, session, taskID); err != nil {
		return store.ChecklistItem{}, err
	}
	item := store.ChecklistItem{ID: util.NewID("chk"), TaskID: taskID, Title: title}
	if err := s.store.InsertChecklistItem(ctx, item); err != nil {
		return store.ChecklistItem{}, err
	}
	return s.store.GetChecklistItem(ctx, item.ID)
}

func (s *Service) checklistItem(ctx context.Context, session Session, itemID string) (store.ChecklistItem, error) {
	item, err := s.store.GetChecklistItem(ctx, itemID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.ChecklistItem{}, notFound("Checklist item not found")
		}
		return store.ChecklistItem{}, err
	}
	if _, _, err := s.getTask(ctx, session, item.TaskID); err != nil {
		return store.ChecklistItem{}, err
	}
	return item, nil
}

func (s *Service) ChecklistToggle(ctx context.Context, session Session, itemID string) (store.ChecklistItem, error) {
	item, err := s.checklistItem(ctx, session, itemID)
	if err != nil {
		return store.ChecklistItem{}, err
	}
	if err := s.store.SetChecklistItemDone(ctx, itemID, !item.Done); err != nil {
		return store.ChecklistItem{}, err
	}
	return s.store.GetChecklistItem(ctx, itemID)
}

func (s *Service) ChecklistDelete(ctx context.Context, session Session, itemID string) error {
	if _, err := s.checklistItem(ctx, session, itemID); err != nil {
		return err
	}
	return s.store.DeleteChecklistItem(ctx, itemID)
}

// Comments

func (s *Service) Comments(ctx context.Context, session Session, taskID string) ([]store.Comment, error) {
	if _, _, err := s.getTask(ctx, session, taskID); err != nil {
		return nil, err
	}
	return s.store.ListComments(ctx, taskID)
}

func (s *Service) CommentAdd(ctx context.Context, session Session, taskID, body string) (store.Comment, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return store.Comment{}, invalidInput("comment body is required", nil)
	}
	task, bucket, err := s.getTask(ctx, session, taskID)
	if err != nil {
		return store.Comment{}, err
	}

	comment := store.Comment{
		ID:       util.NewID("cmt"),
		TaskID:   taskID,
		AuthorID: session.UserID,
		Body:     body,
	}
	if err := s.store.InsertComment(ctx, comment); err != nil {
		return store.Comment{}, err
	}

	if task.AssigneeID != nil && *task.AssigneeID != session.UserID {
		s.notifyAssignee(ctx, session, task, bucket, *task.AssigneeID, "commented on your task")
	}

	return s.store.GetComment(ctx, comment.ID)
}

func (s *Service) comment(ctx context.Context, session Session, commentID string) (store.Comment, error) {
	comment, err := s.store.GetComment(ctx, commentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.Comment{}, notFound("Comment not found")
		}
		return store.Comment{}, err
	}
	if _, _, err := s.getTask(ctx, session, comment.TaskID); err != nil {
		return store.Comment{}, err
	}
	return comment, nil
}

func (s *Service) CommentEdit(ctx context.Context, session Session, commentID, body string) (store.Comment, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return store.Comment{}, invalidInput("comment body is required", nil)
	}
	comment, err := s.comment(ctx, session, commentID)
	if err != nil {
		return store.Comment{}, err
	}
	if comment.AuthorID != session.UserID && !session.IsAdmin() {
		return store.Comment{}, forbidden("Only the author can edit a comment")
	}
	if err := s.store.UpdateComment(ctx, commentID, body); err != nil {
		return store.Comment{}, err
	}
	return s.store.GetComment(ctx, commentID)
}

func (s *Service) CommentDelete(ctx context.Context, session Session, commentID string) error {
	comment, err := s.comment(ctx, session, commentID)
	if err != nil {
		return err
	}
	if comment.AuthorID != session.UserID && !session.IsAdmin() {
		return forbidden("Only the author can delete a comment")
	}
	return s.store.DeleteComment(ctx, commentID)
}

// Analytics & search

func (s *Service) Analytics(ctx context.Context, session Session, teamID *string, days int) (store.AnalyticsReport, error) {
	if days <= 0 {
		days = 30
	}
	buckets, err := s.Buckets(ctx, session, teamID)
	if err != nil {
		return store.AnalyticsReport{}, err
	}
	ids := make([]string, len(buckets))
	for i, bucket := range buckets {
		ids[i] = bucket.ID
	}
	since := time.Now().AddDate(0, 0, -days)
	return s.store.Analytics(ctx, ids, since)
}

func (s *Service) TaskSearch(ctx context.Context, session Session, query string, teamID *string, limit, offset int) (search.Response, error) {
	if strings.TrimSpace(query) == "" || s.search == nil {
		return search.Response{Results: []search.Result{}, Query: query}, nil
	}
	buckets, err := s.Buckets(ctx, session, teamID)
	if err != nil {
		return search.Response{}, err
	}
	ids := make([]string, len(buckets))
	for i, bucket := range buckets {
		ids[i] = bucket.ID
	}
	return s.search.Search(search.Query{
		Text:      query,
		BucketIDs: ids,
		Limit:     limit,
		Offset:    offset,
	}), nil
}
