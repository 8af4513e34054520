package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/ochairo/enforcer/internal/domain/entities"
	"github.com/ochairo/enforcer/internal/domain/interfaces/repositories"
)

const buildColumns = "build_id, project_id, component_id, component_version, build_ts, infractions, source"

func scanBuild(row rowScanner) (*entities.Build, error) {
	var (
		b                             entities.Build
		version, infractions, source sql.NullString
		ts                            time.Time
	)
	if err := row.Scan(&b.ID, &b.ProjectID, &b.ComponentID, &version, &ts, &infractions, &source); err != nil {
		return nil, mapError(err)
	}
	b.ComponentVersion = version.String
	b.Timestamp = ts.UTC()
	b.Infractions = infractions.String
	b.Source = entities.BuildSource(source.String)
	return &b, nil
}

func (q *queries) CreateBuild(ctx context.Context, b *entities.Build) (int64, error) {
	return q.insert(ctx, "build_id",
		`INSERT INTO builds(project_id, component_id, component_version, build_ts, infractions, source)
		VALUES(?, ?, ?, ?, ?, ?)`,
		b.ProjectID, b.ComponentID, nullString(b.ComponentVersion), b.Timestamp.UTC(),
		nullString(b.Infractions), nullString(string(b.Source)))
}

func (q *queries) AddBuildItem(ctx context.Context, item *entities.BuildItem) (int64, error) {
	return q.insert(ctx, "builditem_id",
		`INSERT INTO build_items(build_id, group_name, artifact_name, version_name, artifact_status_snapshot, allowed)
		VALUES(?, ?, ?, ?, ?, ?)`,
		item.BuildID, item.Group, item.Name, item.Version, nullString(string(item.StatusSnapshot)), item.Allowed)
}

func (q *queries) GetBuild(ctx context.Context, id int64) (*entities.Build, error) {
	return scanBuild(q.queryRow(ctx, "SELECT "+buildColumns+" FROM builds WHERE build_id = ?", id))
}

func (q *queries) ListBuilds(ctx context.Context, filter repositories.BuildFilter) ([]*entities.Build, error) {
	var (
		where []string
		args  []any
	)
	if filter.ProjectID != 0 {
		where = append(where, "project_id = ?")
		args = append(args, filter.ProjectID)
	}
	if filter.ComponentID != 0 {
		where = append(where, "component_id = ?")
		args = append(args, filter.ComponentID)
	}
	query := "SELECT " + buildColumns + " FROM builds"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY build_ts DESC, build_id DESC"

	rows, err := q.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list builds: %w", err)
	}
	defer rows.Close()

	var out []*entities.Build
	for rows.Next() {
		b, err := scanBuild(rows)
		if err != nil {
			return nil, fmt.Errorf("scan build: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (q *queries) ListBuildItems(ctx context.Context, buildID int64) ([]*entities.BuildItem, error) {
	rows, err := q.query(ctx, `SELECT builditem_id, build_id, group_name, artifact_name, version_name,
		artifact_status_snapshot, allowed
		FROM build_items WHERE build_id = ?
		ORDER BY group_name, artifact_name, builditem_id`, buildID)
	if err != nil {
		return nil, fmt.Errorf("list build items: %w", err)
	}
	defer rows.Close()

	var out []*entities.BuildItem
	for rows.Next() {
		var (
			item   entities.BuildItem
			status sql.NullString
		)
		if err := rows.Scan(&item.ID, &item.BuildID, &item.Group, &item.Name, &item.Version, &status, &item.Allowed); err != nil {
			return nil, fmt.Errorf("scan build item: %w", err)
		}
		item.StatusSnapshot = entities.Status(status.String)
		out = append(out, &item)
	}
	return out, rows.Err()
}

// DeleteBuildsByProject removes a project's builds and their items
func (q *queries) DeleteBuildsByProject(ctx context.Context, projectID int64) (int64, error) {
	if _, err := q.exec(ctx,
		"DELETE FROM build_items WHERE build_id IN (SELECT build_id FROM builds WHERE project_id = ?)",
		projectID); err != nil {
		return 0, fmt.Errorf("delete build items: %w", err)
	}
	return q.affected(q.exec(ctx, "DELETE FROM builds WHERE project_id = ?", projectID))
}
