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

const artifactColumns = `artifact_id, group_name, artifact_name, version_name, status, is_vendor_licensed, created_date,
	approval_authorization, approval_date, approval_ts,
	deprecation_authorization, deprecation_date, deprecation_ts,
	retirement_authorization, retirement_date, retirement_ts`

// authorizationColumns scans one authorization triple
type authorizationColumns struct {
	by   sql.NullString
	date sql.NullTime
	ts   sql.NullTime
}

func (c *authorizationColumns) dest() []any {
	return []any{&c.by, &c.date, &c.ts}
}

func (c *authorizationColumns) value() entities.Authorization {
	return entities.Authorization{By: c.by.String, Date: timeOrNil(c.date), Timestamp: timeOrNil(c.ts)}
}

func authorizationArgs(a entities.Authorization) []any {
	return []any{nullString(a.By), nullTime(a.Date), nullTime(a.Timestamp)}
}

func scanArtifact(row rowScanner) (*entities.Artifact, error) {
	var (
		a                                  entities.Artifact
		status                             string
		created                            time.Time
		approval, deprecation, retirement authorizationColumns
	)
	dest := []any{&a.ID, &a.Group, &a.Name, &a.Version, &status, &a.VendorLicensed, &created}
	dest = append(dest, approval.dest()...)
	dest = append(dest, deprecation.dest()...)
	dest = append(dest, retirement.dest()...)
	if err := row.Scan(dest...); err != nil {
		return nil, mapError(err)
	}
	// Unknown labels are kept as-is; the usage resolver denies them.
	a.Status = entities.Status(status)
	a.CreatedDate = created.UTC()
	a.Approval = approval.value()
	a.Deprecation = deprecation.value()
	a.Retirement = retirement.value()
	return &a, nil
}

func (q *queries) FindArtifact(ctx context.Context, c entities.Coordinate) (*entities.Artifact, error) {
	return scanArtifact(q.queryRow(ctx,
		"SELECT "+artifactColumns+" FROM artifacts WHERE group_name = ? AND artifact_name = ? AND version_name = ?",
		c.Group, c.Name, c.Version))
}

func (q *queries) GetArtifact(ctx context.Context, id int64) (*entities.Artifact, error) {
	return scanArtifact(q.queryRow(ctx,
		"SELECT "+artifactColumns+" FROM artifacts WHERE artifact_id = ?", id))
}

func (q *queries) GetArtifactForUpdate(ctx context.Context, id int64) (*entities.Artifact, error) {
	return scanArtifact(q.queryRow(ctx,
		"SELECT "+artifactColumns+" FROM artifacts WHERE artifact_id = ?"+q.dialect.forUpdate, id))
}

// RegisterArtifact inserts a CREATED placeholder unless the coordinate exists.
// A concurrent registration of the same coordinate reads back the other row.
func (q *queries) RegisterArtifact(ctx context.Context, c entities.Coordinate, created time.Time) (*entities.Artifact, bool, error) {
	inserted, err := q.insertIgnore(ctx, "artifacts", "artifact_id",
		"group_name, artifact_name, version_name, status, is_vendor_licensed, created_date",
		c.Group, c.Name, c.Version, string(entities.StatusCreated), false, created.UTC())
	if err != nil {
		return nil, false, fmt.Errorf("insert artifact: %w", err)
	}
	a, err := q.FindArtifact(ctx, c)
	if err != nil {
		return nil, false, err
	}
	return a, inserted, nil
}

func (q *queries) CreateArtifact(ctx context.Context, a *entities.Artifact) (int64, error) {
	args := []any{a.Group, a.Name, a.Version, string(a.Status), a.VendorLicensed, a.CreatedDate.UTC()}
	args = append(args, authorizationArgs(a.Approval)...)
	args = append(args, authorizationArgs(a.Deprecation)...)
	args = append(args, authorizationArgs(a.Retirement)...)
	return q.insert(ctx, "artifact_id", `INSERT INTO artifacts(
		group_name, artifact_name, version_name, status, is_vendor_licensed, created_date,
		approval_authorization, approval_date, approval_ts,
		deprecation_authorization, deprecation_date, deprecation_ts,
		retirement_authorization, retirement_date, retirement_ts)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, args...)
}

func (q *queries) SaveArtifact(ctx context.Context, a *entities.Artifact) error {
	args := []any{a.Group, a.Name, a.Version, string(a.Status), a.VendorLicensed}
	args = append(args, authorizationArgs(a.Approval)...)
	args = append(args, authorizationArgs(a.Deprecation)...)
	args = append(args, authorizationArgs(a.Retirement)...)
	args = append(args, a.ID)

	n, err := q.affected(q.exec(ctx, `UPDATE artifacts SET
		group_name = ?, artifact_name = ?, version_name = ?, status = ?, is_vendor_licensed = ?,
		approval_authorization = ?, approval_date = ?, approval_ts = ?,
		deprecation_authorization = ?, deprecation_date = ?, deprecation_ts = ?,
		retirement_authorization = ?, retirement_date = ?, retirement_ts = ?
		WHERE artifact_id = ?`, args...))
	if err != nil {
		return err
	}
	if n == 0 {
		// MySQL reports zero for an update that changes nothing.
		if _, err := q.GetArtifact(ctx, a.ID); err != nil {
			return err
		}
	}
	return nil
}

func (q *queries) DeleteArtifact(ctx context.Context, id int64) error {
	n, err := q.affected(q.exec(ctx, "DELETE FROM artifacts WHERE artifact_id = ?", id))
	if err != nil {
		return err
	}
	if n == 0 {
		return repositories.ErrNotFound
	}
	return nil
}

func (q *queries) ListArtifacts(ctx context.Context, f repositories.ArtifactFilter) ([]*entities.Artifact, error) {
	var (
		where []string
		args  []any
	)
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(f.Status))
	}
	if f.Approver != "" {
		where = append(where, "approval_authorization = ?")
		args = append(args, f.Approver)
	}
	if f.Group != "" {
		where = append(where, "group_name = ?")
		args = append(args, f.Group)
	}
	if f.Name != "" {
		where = append(where, "artifact_name = ?")
		args = append(args, f.Name)
	}
	if f.ApprovedFrom != nil {
		where = append(where, "approval_date >= ?")
		args = append(args, f.ApprovedFrom.UTC())
	}
	if f.ApprovedTo != nil {
		where = append(where, "approval_date < ?")
		args = append(args, f.ApprovedTo.UTC())
	}
	if f.ProjectID != 0 {
		where = append(where, `(EXISTS (SELECT 1 FROM allowed_artifacts aa
				WHERE aa.artifact_id = artifacts.artifact_id AND aa.project_id = ?)
			OR EXISTS (SELECT 1 FROM licensed_artifacts la
				WHERE la.artifact_id = artifacts.artifact_id AND la.project_id = ?))`)
		args = append(args, f.ProjectID, f.ProjectID)
	}

	query := "SELECT " + artifactColumns + " FROM artifacts"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY group_name, artifact_name, version_name"

	rows, err := q.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list artifacts: %w", err)
	}
	defer rows.Close()

	var out []*entities.Artifact
	for rows.Next() {
		a, err := scanArtifact(rows)
		if err != nil {
			return nil, fmt.Errorf("scan artifact: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
