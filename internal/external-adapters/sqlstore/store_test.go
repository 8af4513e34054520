package sqlstore

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ochairo/enforcer/internal/domain/entities"
	"github.com/ochairo/enforcer/internal/domain/interfaces/repositories"
)

var testNow = time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	ctx := context.Background()
	store, err := Open(ctx, Config{
		Driver: DialectSQLite,
		DSN:    "file:" + filepath.Join(t.TempDir(), "policy.db"),
	}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	require.NoError(t, store.Migrate(ctx))
	return store
}

func TestMigrateIsRepeatable(t *testing.T) {
	store := openTestStore(t)
	require.NoError(t, store.Migrate(context.Background()))
	assert.Equal(t, DialectSQLite, store.Dialect())
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), Config{Driver: "oracle", DSN: "x"}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported database driver")
}

func TestProjectsAndComponents(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	p, err := store.GetOrCreateProject(ctx, "ABC", testNow)
	require.NoError(t, err)
	again, err := store.GetOrCreateProject(ctx, "ABC", testNow.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, p.ID, again.ID)
	require.NotNil(t, again.BeginDate)
	assert.True(t, again.BeginDate.Equal(testNow), "begin date is kept from the first call")

	_, err = store.GetOrCreateProject(ctx, "XYZ", testNow)
	require.NoError(t, err)

	c, err := store.GetOrCreateComponent(ctx, p.ID, "web")
	require.NoError(t, err)
	c2, err := store.GetOrCreateComponent(ctx, p.ID, "web")
	require.NoError(t, err)
	assert.Equal(t, c.ID, c2.ID)
	_, err = store.GetOrCreateComponent(ctx, p.ID, "api")
	require.NoError(t, err)

	projects, err := store.ListProjects(ctx)
	require.NoError(t, err)
	require.Len(t, projects, 2)
	assert.Equal(t, "ABC", projects[0].Acronym)

	components, err := store.ListComponents(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, components, 2)
	assert.Equal(t, "api", components[0].Name)

	byID, err := store.GetProject(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "ABC", byID.Acronym)
	comp, err := store.GetComponent(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "web", comp.Name)
	_, err = store.GetComponent(ctx, 999)
	assert.ErrorIs(t, err, repositories.ErrNotFound)

	_, err = store.FindProjectByAcronym(ctx, "NOPE")
	assert.ErrorIs(t, err, repositories.ErrNotFound)
	_, err = store.FindComponent(ctx, p.ID, "nope")
	assert.ErrorIs(t, err, repositories.ErrNotFound)
}

func TestArtifactRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	approved := testNow.Add(-24 * time.Hour)
	a := &entities.Artifact{
		Coordinate:     entities.Coordinate{Group: "com.x", Name: "lib", Version: "1.0"},
		Status:         entities.StatusGA,
		VendorLicensed: true,
		CreatedDate:    testNow,
		Approval:       entities.Authorization{By: "alice", Date: &approved, Timestamp: &testNow},
	}
	id, err := store.CreateArtifact(ctx, a)
	require.NoError(t, err)

	got, err := store.GetArtifact(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, a.Coordinate, got.Coordinate)
	assert.Equal(t, entities.StatusGA, got.Status)
	assert.True(t, got.VendorLicensed)
	assert.True(t, got.CreatedDate.Equal(testNow))
	assert.Equal(t, "alice", got.Approval.By)
	require.NotNil(t, got.Approval.Date)
	assert.True(t, got.Approval.Date.Equal(approved))
	assert.Nil(t, got.Deprecation.Date)
	assert.Empty(t, got.Retirement.By)

	got.Status = entities.StatusDeprecated
	got.Deprecation = entities.Authorization{By: "bob", Date: &testNow, Timestamp: &testNow}
	require.NoError(t, store.SaveArtifact(ctx, got))

	locked, err := store.GetArtifactForUpdate(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, entities.StatusDeprecated, locked.Status)
	assert.Equal(t, "bob", locked.Deprecation.By)

	_, err = store.CreateArtifact(ctx, a)
	assert.ErrorIs(t, err, repositories.ErrConflict)

	missing := *got
	missing.ID = 999
	assert.ErrorIs(t, store.SaveArtifact(ctx, &missing), repositories.ErrNotFound)

	require.NoError(t, store.DeleteArtifact(ctx, id))
	assert.ErrorIs(t, store.DeleteArtifact(ctx, id), repositories.ErrNotFound)
	_, err = store.FindArtifact(ctx, a.Coordinate)
	assert.ErrorIs(t, err, repositories.ErrNotFound)
}

func TestRegisterArtifactConverges(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	c := entities.Coordinate{Group: "com.new", Name: "lib", Version: "2.0"}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		ids     = make(map[int64]bool)
		created int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a, inserted, err := store.RegisterArtifact(ctx, c, testNow)
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			defer mu.Unlock()
			ids[a.ID] = true
			if inserted {
				created++
			}
			assert.Equal(t, entities.StatusCreated, a.Status)
		}()
	}
	wg.Wait()

	assert.Len(t, ids, 1)
	assert.Equal(t, 1, created)
}

func TestListArtifactsFilters(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	p, err := store.GetOrCreateProject(ctx, "ABC", testNow)
	require.NoError(t, err)

	march := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)
	april := time.Date(2024, 4, 10, 0, 0, 0, 0, time.UTC)
	create := func(name string, status entities.Status, by string, approved *time.Time) int64 {
		id, err := store.CreateArtifact(ctx, &entities.Artifact{
			Coordinate:  entities.Coordinate{Group: "com.x", Name: name, Version: "1.0"},
			Status:      status,
			CreatedDate: testNow,
			Approval:    entities.Authorization{By: by, Date: approved},
		})
		require.NoError(t, err)
		return id
	}
	a := create("a", entities.StatusGA, "alice", &march)
	b := create("b", entities.StatusGA, "bob", &april)
	create("c", entities.StatusCreated, "", nil)

	_, err = store.AddAllowed(ctx, &entities.AllowedArtifact{ProjectID: p.ID, ArtifactID: a})
	require.NoError(t, err)
	_, err = store.AddLicensed(ctx, &entities.LicensedArtifact{ProjectID: p.ID, ArtifactID: b})
	require.NoError(t, err)

	names := func(f repositories.ArtifactFilter) []string {
		t.Helper()
		list, err := store.ListArtifacts(ctx, f)
		require.NoError(t, err)
		var out []string
		for _, x := range list {
			out = append(out, x.Name)
		}
		return out
	}

	from := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, []string{"a", "b", "c"}, names(repositories.ArtifactFilter{}))
	assert.Equal(t, []string{"a", "b"}, names(repositories.ArtifactFilter{Status: entities.StatusGA}))
	assert.Equal(t, []string{"b"}, names(repositories.ArtifactFilter{Approver: "bob"}))
	assert.Equal(t, []string{"a"}, names(repositories.ArtifactFilter{ApprovedFrom: &from, ApprovedTo: &to}))
	assert.Equal(t, []string{"a", "b"}, names(repositories.ArtifactFilter{ProjectID: p.ID}))
	assert.Equal(t, []string{"c"}, names(repositories.ArtifactFilter{Name: "c", Group: "com.x"}))
}

func TestApprovalPartitions(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	p, err := store.GetOrCreateProject(ctx, "ABC", testNow)
	require.NoError(t, err)
	id, err := store.CreateArtifact(ctx, &entities.Artifact{
		Coordinate:  entities.Coordinate{Group: "com.x", Name: "lib", Version: "1.0"},
		Status:      entities.StatusLimited,
		CreatedDate: testNow,
	})
	require.NoError(t, err)

	_, err = store.AddAllowed(ctx, &entities.AllowedArtifact{
		ProjectID: p.ID, ArtifactID: id, ApprovalArchitect: "arch", ApprovalTS: &testNow,
	})
	require.NoError(t, err)

	ok, err := store.HasAllowed(ctx, p.ID, id)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = store.HasLicensed(ctx, p.ID, id)
	require.NoError(t, err)
	assert.False(t, ok)

	n, err := store.CopyAllowedToLicensed(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	licensed, err := store.ListLicensed(ctx, repositories.ApprovalFilter{ArtifactID: id})
	require.NoError(t, err)
	require.Len(t, licensed, 1)
	assert.Equal(t, "arch", licensed[0].ApprovalArchitect)
	assert.Empty(t, licensed[0].Vendor)
	require.NotNil(t, licensed[0].ApprovalTS)
	assert.True(t, licensed[0].ApprovalTS.Equal(testNow))

	_, err = store.DeleteAllowed(ctx, repositories.ApprovalFilter{})
	assert.Error(t, err, "an empty filter must not delete every row")

	n, err = store.DeleteAllowed(ctx, repositories.ApprovalFilter{ProjectID: p.ID, ArtifactID: id})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = store.AddAllowed(ctx, &entities.AllowedArtifact{ProjectID: p.ID, ArtifactID: 999})
	assert.ErrorIs(t, err, repositories.ErrNotFound)
}

func TestBuildsAndItems(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	p, err := store.GetOrCreateProject(ctx, "ABC", testNow)
	require.NoError(t, err)
	c, err := store.GetOrCreateComponent(ctx, p.ID, "web")
	require.NoError(t, err)

	var buildIDs []int64
	for i := 0; i < 2; i++ {
		err := store.WithTx(ctx, func(q repositories.Queries) error {
			id, err := q.CreateBuild(ctx, &entities.Build{
				ProjectID:        p.ID,
				ComponentID:      c.ID,
				ComponentVersion: "1.0",
				Timestamp:        testNow.Add(time.Duration(i) * time.Minute),
				Infractions:      "\tUnauthorized Library Usage: com.x:b:1.0\n",
				Source:           entities.SourceGradle,
			})
			if err != nil {
				return err
			}
			buildIDs = append(buildIDs, id)
			for _, name := range []string{"b", "a"} {
				if _, err := q.AddBuildItem(ctx, &entities.BuildItem{
					BuildID:        id,
					Coordinate:     entities.Coordinate{Group: "com.x", Name: name, Version: "1.0"},
					StatusSnapshot: entities.StatusGA,
					Allowed:        name == "a",
				}); err != nil {
					return err
				}
			}
			return nil
		})
		require.NoError(t, err)
	}

	builds, err := store.ListBuilds(ctx, repositories.BuildFilter{ProjectID: p.ID, ComponentID: c.ID})
	require.NoError(t, err)
	require.Len(t, builds, 2)
	assert.Equal(t, buildIDs[1], builds[0].ID, "newest build first")
	assert.Equal(t, entities.SourceGradle, builds[0].Source)

	got, err := store.GetBuild(ctx, buildIDs[0])
	require.NoError(t, err)
	assert.True(t, got.Timestamp.Equal(testNow))
	assert.True(t, strings.HasPrefix(got.Infractions, "\tUnauthorized"))

	items, err := store.ListBuildItems(ctx, buildIDs[0])
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "a", items[0].Name)
	assert.True(t, items[0].Allowed)
	assert.False(t, items[1].Allowed)

	n, err := store.DeleteBuildsByProject(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	items, err = store.ListBuildItems(ctx, buildIDs[0])
	require.NoError(t, err)
	assert.Empty(t, items)

	_, err = store.GetBuild(ctx, buildIDs[0])
	assert.ErrorIs(t, err, repositories.ErrNotFound)
}

func TestWithTxRollsBack(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	boom := errors.New("boom")

	err := store.WithTx(ctx, func(q repositories.Queries) error {
		if _, err := q.GetOrCreateProject(ctx, "ABC", testNow); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	_, err = store.FindProjectByAcronym(ctx, "ABC")
	assert.ErrorIs(t, err, repositories.ErrNotFound)
}

func TestDeleteProject(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	p, err := store.GetOrCreateProject(ctx, "ABC", testNow)
	require.NoError(t, err)
	_, err = store.GetOrCreateComponent(ctx, p.ID, "web")
	require.NoError(t, err)

	n, err := store.DeleteComponentsByProject(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	require.NoError(t, store.DeleteProject(ctx, p.ID))
	assert.ErrorIs(t, store.DeleteProject(ctx, p.ID), repositories.ErrNotFound)
}

func TestRebind(t *testing.T) {
	q := "SELECT a FROM t WHERE x = ? AND y = ?"
	assert.Equal(t, q, dialects[DialectSQLite].rebind(q))
	assert.Equal(t, q, dialects[DialectMySQL].rebind(q))
	assert.Equal(t, "SELECT a FROM t WHERE x = $1 AND y = $2", dialects[DialectPostgres].rebind(q))
}

func TestInsertIgnoreSyntax(t *testing.T) {
	assert.Equal(t,
		"INSERT INTO projects(acronym, begin_date) VALUES(?, ?) ON DUPLICATE KEY UPDATE project_id = project_id",
		dialects[DialectMySQL].insertIgnore("projects", "project_id", "acronym, begin_date", 2))
	assert.Equal(t, "INSERT INTO projects(acronym) VALUES(?) ON CONFLICT DO NOTHING",
		dialects[DialectPostgres].insertIgnore("projects", "project_id", "acronym", 1))
	for _, d := range dialects {
		assert.NotContains(t, d.insertIgnore("components", "component_id", "project_id, name", 2), "IGNORE",
			"%s must not downgrade foreign key failures", d.Name)
	}
}

func TestGetOrCreateComponentReportsMissingProject(t *testing.T) {
	store := openTestStore(t)
	_, err := store.GetOrCreateComponent(context.Background(), 4242, "web")
	require.ErrorIs(t, err, repositories.ErrNotFound)
	assert.Contains(t, err.Error(), "insert component", "the insert fails, not the reselect")
}

func TestSchemaDeclaresTableForeignKeys(t *testing.T) {
	wantFKs := map[string][]string{
		"components":         {"FOREIGN KEY (project_id) REFERENCES projects(project_id)"},
		"allowed_artifacts":  {"FOREIGN KEY (artifact_id) REFERENCES artifacts(artifact_id)", "FOREIGN KEY (project_id) REFERENCES projects(project_id)"},
		"licensed_artifacts": {"FOREIGN KEY (artifact_id) REFERENCES artifacts(artifact_id)", "FOREIGN KEY (project_id) REFERENCES projects(project_id)"},
		"builds":             {"FOREIGN KEY (project_id) REFERENCES projects(project_id)", "FOREIGN KEY (component_id) REFERENCES components(component_id)"},
		"build_items":        {"FOREIGN KEY (build_id) REFERENCES builds(build_id)"},
	}
	for name, d := range dialects {
		t.Run(name, func(t *testing.T) {
			statements, err := renderSchema(d)
			require.NoError(t, err)
			for _, stmt := range statements {
				assert.NotContains(t, stmt, "NOT NULL REFERENCES", "column-level references are ignored by mysql")
				for table, fks := range wantFKs {
					if !strings.HasPrefix(stmt, "CREATE TABLE IF NOT EXISTS "+table+" (") {
						continue
					}
					for _, fk := range fks {
						assert.Contains(t, stmt, fk)
					}
				}
			}
		})
	}
}

func TestRenderSchemaForEveryDialect(t *testing.T) {
	for name, d := range dialects {
		t.Run(name, func(t *testing.T) {
			statements, err := renderSchema(d)
			require.NoError(t, err)
			require.Len(t, statements, 7)
			for _, stmt := range statements {
				assert.NotContains(t, stmt, "{{")
				assert.True(t, strings.HasPrefix(stmt, "CREATE TABLE IF NOT EXISTS"))
			}
			assert.Contains(t, statements[0], d.PK)
		})
	}
}

func TestMySQLDSNForcesParseTime(t *testing.T) {
	dsn, err := mysqlDSN("enforcer:pw@tcp(db:3306)/governance")
	require.NoError(t, err)
	assert.Contains(t, dsn, "parseTime=true")

	_, err = mysqlDSN("not a dsn")
	assert.Error(t, err)
}

func TestSQLiteDSNAddsPragmas(t *testing.T) {
	assert.Equal(t, "file:x.db?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", sqliteDSN("file:x.db"))
	assert.Equal(t, "file:x.db?mode=rwc&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", sqliteDSN("file:x.db?mode=rwc"))
	assert.Equal(t, "x.db?_pragma=journal_mode(wal)", sqliteDSN("x.db?_pragma=journal_mode(wal)"))
}
