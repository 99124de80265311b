package store

import "time"

type User struct {
	ID                string    `json:"id"`
	Email             string    `json:"email"`
	FullName          string    `json:"fullName"`
	PasswordHash      string    `json:"-"`
	Role              string    `json:"role"`
	Status            string    `json:"status"`
	EmailVerified     bool      `json:"emailVerified"`
	VerificationToken string    `json:"-"`
	CreatedAt         time.Time `json:"createdAt"`
}

const (
	UserActive   = "active"
	UserArchived = "archived"
)

type Team struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

type TeamMember struct {
	TeamID   string `json:"teamId"`
	UserID   string `json:"userId"`
	Role     string `json:"role"`
	FullName string `json:"fullName"`
	Email    string `json:"email"`
}

// Bucket is an ordered kanban column. Exactly one of UserID/TeamID is set;
// that discriminator plus Position define the display order within the scope.
type Bucket struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	UserID   *string `json:"userId"`
	TeamID   *string `json:"teamId"`
	Position int     `json:"position"`
	Tasks    []Task  `json:"tasks"`
}

type Task struct {
	ID          string     `json:"id"`
	BucketID    string     `json:"bucketId"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	DueDate     *time.Time `json:"dueDate"`
	Completed   bool       `json:"completed"`
	AssigneeID  *string    `json:"assigneeId"`
	Position    int        `json:"position"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

type ChecklistItem struct {
	ID        string    `json:"id"`
	TaskID    string    `json:"taskId"`
	Title     string    `json:"title"`
	Done      bool      `json:"done"`
	CreatedAt time.Time `json:"createdAt"`
}

type Comment struct {
	ID         string    `json:"id"`
	TaskID     string    `json:"taskId"`
	AuthorID   string    `json:"authorId"`
	AuthorName string    `json:"authorName"`
	Body       string    `json:"body"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

type BucketStat struct {
	BucketID  string `json:"bucketId"`
	Name      string `json:"name"`
	Total     int    `json:"total"`
	Completed int    `json:"completed"`
}

type AnalyticsReport struct {
	TotalTasks     int          `json:"totalTasks"`
	CompletedTasks int          `json:"completedTasks"`
	OverdueTasks   int          `json:"overdueTasks"`
	Comments       int          `json:"comments"`
	Buckets        []BucketStat `json:"buckets"`
}

// TaskFields carries the plain field updates of taskEdit; nil means leave
// unchanged. Repositioning is handled separately by MoveTask.
type TaskFields struct {
	Title       *string
	Description *string
	DueDate     *time.Time
	ClearDue    bool
	Completed   *bool
	AssigneeID  *string
	ClearAssign bool
}
