// Package search provides full-text task search with a Meilisearch primary
// backend and a PostgreSQL fallback.
package search

// Result is a single search hit returned to the caller.
type Result struct {
	TaskID   string `json:"taskId"`
	Title    string `json:"title"`
	Snippet  string `json:"snippet"`
	BucketID string `json:"bucketId"`
}

// Query describes a search request. BucketIDs restricts results to buckets
// the caller can see; an empty list matches nothing.
type Query struct {
	Text      string
	BucketIDs []string
	Limit     int
	Offset    int
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}

// Searcher can execute a full-text search.
type Searcher interface {
	Search(q Query) ([]Result, int, error)
	Healthy() bool
}

// Indexer can push tasks into a search index.
type Indexer interface {
	IndexTask(t TaskRecord) error
	DeleteTask(id string) error
}

// TaskRecord is the data we index for a task.
type TaskRecord struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	BucketID    string `json:"bucketId"`
	Completed   bool   `json:"completed"`
}
