package search

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// PgFTS implements Searcher using PostgreSQL full-text search as a fallback.
type PgFTS struct {
	db *sql.DB
}

// NewPgFTS creates a PostgreSQL FTS searcher.
func NewPgFTS(db *sql.DB) *PgFTS {
	return &PgFTS{db: db}
}

// Healthy always returns true; if Postgres is down the whole app is down.
func (p *PgFTS) Healthy() bool {
	return true
}

// reportBodySQL aggregates a report's list-item text into one search body.
const reportBodySQL = `
	SELECT string_agg(body, ' ') AS text FROM (
		SELECT body FROM report_status_items i WHERE i.report_id = r.id
		UNION ALL
		SELECT body FROM report_challenge_items i WHERE i.report_id = r.id
		UNION ALL
		SELECT body FROM report_next_step_items i WHERE i.report_id = r.id
	) items`

// Search executes a UNION ALL query across projects, reports, and
// employees using plainto_tsquery and ts_rank, with ts_headline for
// snippets.
func (p *PgFTS) Search(q Query) ([]Result, int, error) {
	if strings.TrimSpace(q.Text) == "" {
		return nil, 0, nil
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}

	tsQuery := "plainto_tsquery('english', $1)"
	args := []any{q.Text}
	argN := 2

	var subQueries []string

	// Projects sub-query
	if q.FilterType == "" || q.FilterType == ResultProject {
		subQueries = append(subQueries, fmt.Sprintf(`
			SELECT 'project'::text AS type, p.id, p.name AS title,
				ts_headline('english', coalesce(p.goal, ''), %s, 'MaxFragments=1,MaxWords=30') AS snippet,
				p.id AS project_id, ''::text AS week_key,
				ts_rank(p.fts, %s) AS rank
			FROM projects p
			WHERE p.fts @@ %s`, tsQuery, tsQuery, tsQuery))
	}

	// Reports sub-query
	if q.FilterType == "" || q.FilterType == ResultReport {
		reportWhere := fmt.Sprintf("to_tsvector('english', coalesce(body.text, '') || ' ' || r.week_key) @@ %s", tsQuery)
		if q.FilterProjectID != "" {
			reportWhere += fmt.Sprintf(" AND r.project_id = $%d", argN)
			args = append(args, q.FilterProjectID)
			argN++
		}
		subQueries = append(subQueries, fmt.Sprintf(`
			SELECT 'report'::text AS type, r.id, p.name || ' ' || r.week_key AS title,
				ts_headline('english', coalesce(body.text, ''), %s, 'MaxFragments=1,MaxWords=30') AS snippet,
				r.project_id, r.week_key,
				ts_rank(to_tsvector('english', coalesce(body.text, '')), %s) AS rank
			FROM reports r
			JOIN projects p ON p.id = r.project_id
			JOIN LATERAL (%s) body ON TRUE
			WHERE %s`, tsQuery, tsQuery, reportBodySQL, reportWhere))
	}

	// Employees sub-query
	if q.FilterType == "" || q.FilterType == ResultEmployee {
		subQueries = append(subQueries, fmt.Sprintf(`
			SELECT 'employee'::text AS type, e.id, e.name AS title,
				ts_headline('english', coalesce(e.job_title, '') || ' ' || e.email, %s, 'MaxFragments=1,MaxWords=30') AS snippet,
				''::text AS project_id, ''::text AS week_key,
				ts_rank(e.fts, %s) AS rank
			FROM employees e
			WHERE e.fts @@ %s`, tsQuery, tsQuery, tsQuery))
	}

	if len(subQueries) == 0 {
		return nil, 0, nil
	}

	// Count query
	countSQL := fmt.Sprintf("SELECT count(*) FROM (%s) sub",
		strings.Join(subQueries, " UNION ALL "))

	// Data query
	dataSQL := fmt.Sprintf(`SELECT type, id, title, snippet, project_id, week_key
		FROM (%s) sub
		ORDER BY rank DESC
		LIMIT %d OFFSET %d`,
		strings.Join(subQueries, " UNION ALL "),
		limit, offset)

	ctx := context.Background()

	var total int
	if err := p.db.QueryRowContext(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("pgfts count: %w", err)
	}

	rows, err := p.db.QueryContext(ctx, dataSQL, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("pgfts query: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		var typ string
		if err := rows.Scan(&typ, &r.ID, &r.Title, &r.Snippet, &r.ProjectID, &r.WeekKey); err != nil {
			return nil, 0, fmt.Errorf("pgfts scan: %w", err)
		}
		r.Type = ResultType(typ)
		results = append(results, r)
	}

	return results, total, rows.Err()
}

// LoadAllRecords returns all searchable records for full reindexing.
func (p *PgFTS) LoadAllRecords(ctx context.Context) ([]ProjectRecord, []ReportRecord, []EmployeeRecord, error) {
	projectRows, err := p.db.QueryContext(ctx, `
		SELECT id, name, COALESCE(goal, ''), COALESCE(business_case, ''), status
		FROM projects
	`)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load projects: %w", err)
	}
	defer projectRows.Close()

	projects := make([]ProjectRecord, 0)
	for projectRows.Next() {
		var record ProjectRecord
		if err := projectRows.Scan(&record.ID, &record.Name, &record.Goal, &record.BusinessCase, &record.Status); err != nil {
			return nil, nil, nil, fmt.Errorf("scan project: %w", err)
		}
		projects = append(projects, record)
	}
	if err := projectRows.Err(); err != nil {
		return nil, nil, nil, fmt.Errorf("iterate projects: %w", err)
	}

	reportRows, err := p.db.QueryContext(ctx, `
		SELECT r.id, r.project_id, p.name, r.week_key, COALESCE(body.text, '')
		FROM reports r
		JOIN projects p ON p.id = r.project_id
		JOIN LATERAL (`+reportBodySQL+`) body ON TRUE
	`)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load reports: %w", err)
	}
	defer reportRows.Close()

	reports := make([]ReportRecord, 0)
	for reportRows.Next() {
		var record ReportRecord
		if err := reportRows.Scan(&record.ID, &record.ProjectID, &record.ProjectName, &record.WeekKey, &record.Body); err != nil {
			return nil, nil, nil, fmt.Errorf("scan report: %w", err)
		}
		reports = append(reports, record)
	}
	if err := reportRows.Err(); err != nil {
		return nil, nil, nil, fmt.Errorf("iterate reports: %w", err)
	}

	employeeRows, err := p.db.QueryContext(ctx, `
		SELECT id, name, email, COALESCE(location, ''), COALESCE(job_title, '')
		FROM employees
	`)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load employees: %w", err)
	}
	defer employeeRows.Close()

	employees := make([]EmployeeRecord, 0)
	for employeeRows.Next() {
		var record EmployeeRecord
		if err := employeeRows.Scan(&record.ID, &record.Name, &record.Email, &record.Location, &record.JobTitle); err != nil {
			return nil, nil, nil, fmt.Errorf("scan employee: %w", err)
		}
		employees = append(employees, record)
	}
	if err := employeeRows.Err(); err != nil {
		return nil, nil, nil, fmt.Errorf("iterate employees: %w", err)
	}

	return projects, reports, employees, nil
}
