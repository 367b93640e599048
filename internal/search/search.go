package search

// Result is a single comment hit returned to the caller.
type Result struct {
	ID       string `json:"id"`
	ThreadID string `json:"threadId"`
	AuthorID string `json:"authorId"`
	Snippet  string `json:"snippet"`
}

// Query describes a search request over comment content.
type Query struct {
	Text string
	// ThreadID restricts the search to one conversation; empty searches all.
	ThreadID string
	Limit    int
	Offset   int
}

// Response is the envelope returned to callers.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}

// Searcher can execute a full-text search over comments.
type Searcher interface {
	Search(q Query) ([]Result, int, error)
	Healthy() bool
}

// CommentRecord is the data we index per comment.
type CommentRecord struct {
	ID       string `json:"id"`
	ThreadID string `json:"threadId"`
	AuthorID string `json:"authorId"`
	Content  string `json:"content"`
}
