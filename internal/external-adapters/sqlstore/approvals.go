package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/ochairo/enforcer/internal/domain/entities"
	"github.com/ochairo/enforcer/internal/domain/interfaces/repositories"
)

func (q *queries) exists(ctx context.Context, query string, args ...any) (bool, error) {
	var one int
	err := q.queryRow(ctx, query, args...).Scan(&one)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return false, nil
	case err != nil:
		return false, err
	default:
		return true, nil
	}
}

func (q *queries) HasAllowed(ctx context.Context, projectID, artifactID int64) (bool, error) {
	return q.exists(ctx,
		"SELECT 1 FROM allowed_artifacts WHERE project_id = ? AND artifact_id = ? LIMIT 1",
		projectID, artifactID)
}

func (q *queries) HasLicensed(ctx context.Context, projectID, artifactID int64) (bool, error) {
	return q.exists(ctx,
		"SELECT 1 FROM licensed_artifacts WHERE project_id = ? AND artifact_id = ? LIMIT 1",
		projectID, artifactID)
}

func (q *queries) AddAllowed(ctx context.Context, a *entities.AllowedArtifact) (int64, error) {
	return q.insert(ctx, "allowed_artifact_id",
		"INSERT INTO allowed_artifacts(artifact_id, project_id, approval_architect, approval_ts) VALUES(?, ?, ?, ?)",
		a.ArtifactID, a.ProjectID, nullString(a.ApprovalArchitect), nullTime(a.ApprovalTS))
}

func (q *queries) AddLicensed(ctx context.Context, l *entities.LicensedArtifact) (int64, error) {
	return q.insert(ctx, "lic_artifact_id",
		`INSERT INTO licensed_artifacts(artifact_id, project_id, contract, vendor, approval_architect, approval_ts)
		VALUES(?, ?, ?, ?, ?, ?)`,
		l.ArtifactID, l.ProjectID, nullString(l.Contract), nullString(l.Vendor),
		nullString(l.ApprovalArchitect), nullTime(l.ApprovalTS))
}

// approvalWhere renders the filter as a WHERE clause; an empty filter renders nothing
func approvalWhere(f repositories.ApprovalFilter) (string, []any) {
	var (
		where []string
		args  []any
	)
	if f.ProjectID != 0 {
		where = append(where, "project_id = ?")
		args = append(args, f.ProjectID)
	}
	if f.ArtifactID != 0 {
		where = append(where, "artifact_id = ?")
		args = append(args, f.ArtifactID)
	}
	if len(where) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(where, " AND "), args
}

func (q *queries) ListAllowed(ctx context.Context, filter repositories.ApprovalFilter) ([]*entities.AllowedArtifact, error) {
	where, args := approvalWhere(filter)
	rows, err := q.query(ctx, `SELECT allowed_artifact_id, artifact_id, project_id, approval_architect, approval_ts
		FROM allowed_artifacts`+where+" ORDER BY allowed_artifact_id", args...)
	if err != nil {
		return nil, fmt.Errorf("list allowed approvals: %w", err)
	}
	defer rows.Close()

	var out []*entities.AllowedArtifact
	for rows.Next() {
		var (
			a         entities.AllowedArtifact
			architect sql.NullString
			ts        sql.NullTime
		)
		if err := rows.Scan(&a.ID, &a.ArtifactID, &a.ProjectID, &architect, &ts); err != nil {
			return nil, fmt.Errorf("scan allowed approval: %w", err)
		}
		a.ApprovalArchitect = architect.String
		a.ApprovalTS = timeOrNil(ts)
		out = append(out, &a)
	}
	return out, rows.Err()
}

func (q *queries) ListLicensed(ctx context.Context, filter repositories.ApprovalFilter) ([]*entities.LicensedArtifact, error) {
	where, args := approvalWhere(filter)
	rows, err := q.query(ctx, `SELECT lic_artifact_id, artifact_id, project_id, contract, vendor, approval_architect, approval_ts
		FROM licensed_artifacts`+where+" ORDER BY lic_artifact_id", args...)
	if err != nil {
		return nil, fmt.Errorf("list licensed approvals: %w", err)
	}
	defer rows.Close()

	var out []*entities.LicensedArtifact
	for rows.Next() {
		var (
			l                           entities.LicensedArtifact
			contract, vendor, architect sql.NullString
			ts                          sql.NullTime
		)
		if err := rows.Scan(&l.ID, &l.ArtifactID, &l.ProjectID, &contract, &vendor, &architect, &ts); err != nil {
			return nil, fmt.Errorf("scan licensed approval: %w", err)
		}
		l.Contract = contract.String
		l.Vendor = vendor.String
		l.ApprovalArchitect = architect.String
		l.ApprovalTS = timeOrNil(ts)
		out = append(out, &l)
	}
	return out, rows.Err()
}

func (q *queries) DeleteAllowed(ctx context.Context, filter repositories.ApprovalFilter) (int64, error) {
	where, args := approvalWhere(filter)
	if where == "" {
		return 0, fmt.Errorf("refusing to delete every allowed approval")
	}
	return q.affected(q.exec(ctx, "DELETE FROM allowed_artifacts"+where, args...))
}

func (q *queries) DeleteLicensed(ctx context.Context, filter repositories.ApprovalFilter) (int64, error) {
	where, args := approvalWhere(filter)
	if where == "" {
		return 0, fmt.Errorf("refusing to delete every licensed approval")
	}
	return q.affected(q.exec(ctx, "DELETE FROM licensed_artifacts"+where, args...))
}

func (q *queries) CopyAllowedToLicensed(ctx context.Context, artifactID int64) (int64, error) {
	return q.affected(q.exec(ctx, `INSERT INTO licensed_artifacts(artifact_id, project_id, approval_architect, approval_ts)
		SELECT artifact_id, project_id, approval_architect, approval_ts
		FROM allowed_artifacts WHERE artifact_id = ? ORDER BY allowed_artifact_id`, artifactID))
}

func (q *queries) CopyLicensedToAllowed(ctx context.Context, artifactID int64) (int64, error) {
	return q.affected(q.exec(ctx, `INSERT INTO allowed_artifacts(artifact_id, project_id, approval_architect, approval_ts)
		SELECT artifact_id, project_id, approval_architect, approval_ts
		FROM licensed_artifacts WHERE artifact_id = ? ORDER BY lic_artifact_id`, artifactID))
}
