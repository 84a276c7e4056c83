package search

// ResultType identifies the kind of entity in a search result.
type ResultType string

const (
	ResultProject  ResultType = "project"
	ResultReport   ResultType = "report"
	ResultEmployee ResultType = "employee"
)

// Result is a single search hit returned to the caller.
type Result struct {
	Type      ResultType `json:"type"`
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	Snippet   string     `json:"snippet"`
	ProjectID string     `json:"projectId,omitempty"`
	WeekKey   string     `json:"weekKey,omitempty"`
}

// Query describes a search request. AllowedProjects is nil for callers
// who see the whole workspace; otherwise hits outside the set (and all
// employee hits) are filtered out.
type Query struct {
	Text            string
	FilterType      ResultType // empty = all types
	FilterProjectID string
	Limit           int
	Offset          int
	AllowedProjects []string
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

// Indexer can push entities into a search index.
type Indexer interface {
	IndexProject(p ProjectRecord) error
	IndexReport(r ReportRecord) error
	IndexEmployee(e EmployeeRecord) error
	DeleteProject(id string) error
	DeleteReport(id string) error
	DeleteEmployee(id string) error
}

// ProjectRecord is the data we index for a project.
type ProjectRecord struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Goal         string `json:"goal"`
	BusinessCase string `json:"businessCase"`
	Status       string `json:"status"`
}

// ReportRecord is the data we index for a weekly report. Body is the
// concatenated text of the report's list items.
type ReportRecord struct {
	ID          string `json:"id"`
	ProjectID   string `json:"projectId"`
	ProjectName string `json:"projectName"`
	WeekKey     string `json:"weekKey"`
	Body        string `json:"body"`
}

// EmployeeRecord is the data we index for an employee.
type EmployeeRecord struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Location string `json:"location"`
	JobTitle string `json:"jobTitle"`
}
