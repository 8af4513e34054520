package sqlstore

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"text/template"
)

// schemaTemplate is the logical policy schema. Natural keys carry unique
// constraints so concurrent get-or-create calls converge on one row.
// Foreign keys are table constraints; MySQL ignores column-level REFERENCES.
const schemaTemplate = `
CREATE TABLE IF NOT EXISTS projects (
	project_id {{.PK}},
	acronym {{.Key}} NOT NULL,
	business_owner {{.Text}},
	it_owner {{.Text}},
	begin_date {{.TS}},
	end_date {{.TS}},
	CONSTRAINT uq_projects_acronym UNIQUE (acronym)
);
CREATE TABLE IF NOT EXISTS components (
	component_id {{.PK}},
	project_id BIGINT NOT NULL,
	name {{.Key}} NOT NULL,
	CONSTRAINT uq_components_project_name UNIQUE (project_id, name),
	CONSTRAINT fk_components_project FOREIGN KEY (project_id) REFERENCES projects(project_id)
);
CREATE TABLE IF NOT EXISTS artifacts (
	artifact_id {{.PK}},
	group_name {{.Key}} NOT NULL,
	artifact_name {{.Key}} NOT NULL,
	version_name {{.Key}} NOT NULL,
	status VARCHAR(32) NOT NULL,
	is_vendor_licensed {{.Bool}} NOT NULL DEFAULT FALSE,
	created_date {{.TS}} NOT NULL,
	approval_authorization {{.Key}},
	approval_date {{.TS}},
	approval_ts {{.TS}},
	deprecation_authorization {{.Key}},
	deprecation_date {{.TS}},
	deprecation_ts {{.TS}},
	retirement_authorization {{.Key}},
	retirement_date {{.TS}},
	retirement_ts {{.TS}},
	CONSTRAINT uq_artifacts_coordinate UNIQUE (group_name, artifact_name, version_name)
);
CREATE TABLE IF NOT EXISTS allowed_artifacts (
	allowed_artifact_id {{.PK}},
	artifact_id BIGINT NOT NULL,
	project_id BIGINT NOT NULL,
	approval_architect {{.Key}},
	approval_ts {{.TS}},
	CONSTRAINT fk_allowed_artifact FOREIGN KEY (artifact_id) REFERENCES artifacts(artifact_id),
	CONSTRAINT fk_allowed_project FOREIGN KEY (project_id) REFERENCES projects(project_id)
);
CREATE TABLE IF NOT EXISTS licensed_artifacts (
	lic_artifact_id {{.PK}},
	artifact_id BIGINT NOT NULL,
	project_id BIGINT NOT NULL,
	contract {{.Key}},
	vendor {{.Key}},
	approval_architect {{.Key}},
	approval_ts {{.TS}},
	CONSTRAINT fk_licensed_artifact FOREIGN KEY (artifact_id) REFERENCES artifacts(artifact_id),
	CONSTRAINT fk_licensed_project FOREIGN KEY (project_id) REFERENCES projects(project_id)
);
CREATE TABLE IF NOT EXISTS builds (
	build_id {{.PK}},
	project_id BIGINT NOT NULL,
	component_id BIGINT NOT NULL,
	component_version {{.Key}},
	build_ts {{.TS}} NOT NULL,
	infractions {{.Text}},
	source VARCHAR(64),
	CONSTRAINT fk_builds_project FOREIGN KEY (project_id) REFERENCES projects(project_id),
	CONSTRAINT fk_builds_component FOREIGN KEY (component_id) REFERENCES components(component_id)
);
CREATE TABLE IF NOT EXISTS build_items (
	builditem_id {{.PK}},
	build_id BIGINT NOT NULL,
	group_name {{.Key}} NOT NULL,
	artifact_name {{.Key}} NOT NULL,
	version_name {{.Key}} NOT NULL,
	artifact_status_snapshot VARCHAR(32),
	allowed {{.Bool}} NOT NULL,
	CONSTRAINT fk_build_items_build FOREIGN KEY (build_id) REFERENCES builds(build_id)
);
`

// renderSchema returns the schema statements for a dialect
func renderSchema(d dialect) ([]string, error) {
	tpl, err := template.New("schema").Parse(schemaTemplate)
	if err != nil {
		return nil, fmt.Errorf("parse schema template: %w", err)
	}
	buf := new(bytes.Buffer)
	if err := tpl.Execute(buf, d); err != nil {
		return nil, fmt.Errorf("render schema: %w", err)
	}

	var statements []string
	for _, stmt := range strings.Split(buf.String(), ";") {
		if stmt = strings.TrimSpace(stmt); stmt != "" {
			statements = append(statements, stmt)
		}
	}
	return statements, nil
}

// Migrate creates any missing tables. It is safe to run repeatedly.
func (s *Store) Migrate(ctx context.Context) error {
	statements, err := renderSchema(s.dialect)
	if err != nil {
		return err
	}
	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema on %s: %w", s.dialect.Name, err)
		}
	}
	return nil
}
