package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ochairo/enforcer/internal/domain/entities"
	"github.com/ochairo/enforcer/internal/domain/interfaces/repositories"
)

const projectColumns = "project_id, acronym, business_owner, it_owner, begin_date, end_date"

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProject(row rowScanner) (*entities.Project, error) {
	var (
		p                 entities.Project
		business, itOwner sql.NullString
		begin, end        sql.NullTime
	)
	if err := row.Scan(&p.ID, &p.Acronym, &business, &itOwner, &begin, &end); err != nil {
		return nil, mapError(err)
	}
	p.BusinessOwner = business.String
	p.ITOwner = itOwner.String
	p.BeginDate = timeOrNil(begin)
	p.EndDate = timeOrNil(end)
	return &p, nil
}

func (q *queries) FindProjectByAcronym(ctx context.Context, acronym string) (*entities.Project, error) {
	return scanProject(q.queryRow(ctx,
		"SELECT "+projectColumns+" FROM projects WHERE acronym = ?", acronym))
}

func (q *queries) GetProject(ctx context.Context, id int64) (*entities.Project, error) {
	return scanProject(q.queryRow(ctx,
		"SELECT "+projectColumns+" FROM projects WHERE project_id = ?", id))
}

func (q *queries) GetComponent(ctx context.Context, id int64) (*entities.Component, error) {
	var c entities.Component
	err := q.queryRow(ctx,
		"SELECT component_id, project_id, name FROM components WHERE component_id = ?", id,
	).Scan(&c.ID, &c.ProjectID, &c.Name)
	if err != nil {
		return nil, mapError(err)
	}
	return &c, nil
}

// GetOrCreateProject inserts the project unless the acronym exists, then reads
// back whichever row won
func (q *queries) GetOrCreateProject(ctx context.Context, acronym string, begin time.Time) (*entities.Project, error) {
	p, err := q.FindProjectByAcronym(ctx, acronym)
	if err == nil || !errors.Is(err, repositories.ErrNotFound) {
		return p, err
	}
	if _, err := q.insertIgnore(ctx, "projects", "project_id", "acronym, begin_date", acronym, begin.UTC()); err != nil {
		return nil, fmt.Errorf("insert project: %w", err)
	}
	return q.FindProjectByAcronym(ctx, acronym)
}

func (q *queries) FindComponent(ctx context.Context, projectID int64, name string) (*entities.Component, error) {
	var c entities.Component
	err := q.queryRow(ctx,
		"SELECT component_id, project_id, name FROM components WHERE project_id = ? AND name = ?",
		projectID, name,
	).Scan(&c.ID, &c.ProjectID, &c.Name)
	if err != nil {
		return nil, mapError(err)
	}
	return &c, nil
}

func (q *queries) GetOrCreateComponent(ctx context.Context, projectID int64, name string) (*entities.Component, error) {
	c, err := q.FindComponent(ctx, projectID, name)
	if err == nil || !errors.Is(err, repositories.ErrNotFound) {
		return c, err
	}
	if _, err := q.insertIgnore(ctx, "components", "component_id", "project_id, name", projectID, name); err != nil {
		return nil, fmt.Errorf("insert component: %w", err)
	}
	return q.FindComponent(ctx, projectID, name)
}

func (q *queries) ListProjects(ctx context.Context) ([]*entities.Project, error) {
	rows, err := q.query(ctx, "SELECT "+projectColumns+" FROM projects ORDER BY acronym")
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	var out []*entities.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (q *queries) ListComponents(ctx context.Context, projectID int64) ([]*entities.Component, error) {
	rows, err := q.query(ctx,
		"SELECT component_id, project_id, name FROM components WHERE project_id = ? ORDER BY name", projectID)
	if err != nil {
		return nil, fmt.Errorf("list components: %w", err)
	}
	defer rows.Close()

	var out []*entities.Component
	for rows.Next() {
		var c entities.Component
		if err := rows.Scan(&c.ID, &c.ProjectID, &c.Name); err != nil {
			return nil, fmt.Errorf("scan component: %w", err)
		}
		out = append(out, &c)
	}
	return out, rows.Err()
}

func (q *queries) DeleteComponentsByProject(ctx context.Context, projectID int64) (int64, error) {
	return q.affected(q.exec(ctx, "DELETE FROM components WHERE project_id = ?", projectID))
}

func (q *queries) DeleteProject(ctx context.Context, projectID int64) error {
	n, err := q.affected(q.exec(ctx, "DELETE FROM projects WHERE project_id = ?", projectID))
	if err != nil {
		return err
	}
	if n == 0 {
		return repositories.ErrNotFound
	}
	return nil
}
