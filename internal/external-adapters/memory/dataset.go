package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/ochairo/enforcer/internal/domain/entities"
	"github.com/ochairo/enforcer/internal/domain/interfaces/repositories"
)

// dataset holds every table as a map of row values keyed by id.
// It implements repositories.Queries without locking; Store serializes access.
type dataset struct {
	nextID     int64
	projects   map[int64]entities.Project
	components map[int64]entities.Component
	artifacts  map[int64]entities.Artifact
	allowed    map[int64]entities.AllowedArtifact
	licensed   map[int64]entities.LicensedArtifact
	builds     map[int64]entities.Build
	items      map[int64]entities.BuildItem
}

var _ repositories.Queries = (*dataset)(nil)

func newDataset() *dataset {
	return &dataset{
		projects:   make(map[int64]entities.Project),
		components: make(map[int64]entities.Component),
		artifacts:  make(map[int64]entities.Artifact),
		allowed:    make(map[int64]entities.AllowedArtifact),
		licensed:   make(map[int64]entities.LicensedArtifact),
		builds:     make(map[int64]entities.Build),
		items:      make(map[int64]entities.BuildItem),
	}
}

func (d *dataset) clone() *dataset {
	return &dataset{
		nextID:     d.nextID,
		projects:   cloneMap(d.projects),
		components: cloneMap(d.components),
		artifacts:  cloneMap(d.artifacts),
		allowed:    cloneMap(d.allowed),
		licensed:   cloneMap(d.licensed),
		builds:     cloneMap(d.builds),
		items:      cloneMap(d.items),
	}
}

func cloneMap[V any](m map[int64]V) map[int64]V {
	out := make(map[int64]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (d *dataset) id() int64 {
	d.nextID++
	return d.nextID
}

// sortedValues returns copies of the map values ordered by id
func sortedValues[V any](m map[int64]V) []V {
	ids := make([]int64, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	out := make([]V, 0, len(ids))
	for _, id := range ids {
		out = append(out, m[id])
	}
	return out
}

func (d *dataset) FindProjectByAcronym(_ context.Context, acronym string) (*entities.Project, error) {
	for _, p := range sortedValues(d.projects) {
		if p.Acronym == acronym {
			return &p, nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (d *dataset) GetProject(_ context.Context, id int64) (*entities.Project, error) {
	p, ok := d.projects[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return &p, nil
}

func (d *dataset) GetComponent(_ context.Context, id int64) (*entities.Component, error) {
	c, ok := d.components[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return &c, nil
}

func (d *dataset) GetOrCreateProject(ctx context.Context, acronym string, begin time.Time) (*entities.Project, error) {
	if p, err := d.FindProjectByAcronym(ctx, acronym); err == nil {
		return p, nil
	}
	p := entities.Project{ID: d.id(), Acronym: acronym, BeginDate: &begin}
	d.projects[p.ID] = p
	return &p, nil
}

func (d *dataset) FindComponent(_ context.Context, projectID int64, name string) (*entities.Component, error) {
	for _, c := range sortedValues(d.components) {
		if c.ProjectID == projectID && c.Name == name {
			return &c, nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (d *dataset) GetOrCreateComponent(ctx context.Context, projectID int64, name string) (*entities.Component, error) {
	if c, err := d.FindComponent(ctx, projectID, name); err == nil {
		return c, nil
	}
	if _, ok := d.projects[projectID]; !ok {
		return nil, fmt.Errorf("project %d: %w", projectID, repositories.ErrNotFound)
	}
	c := entities.Component{ID: d.id(), ProjectID: projectID, Name: name}
	d.components[c.ID] = c
	return &c, nil
}

func (d *dataset) ListProjects(_ context.Context) ([]*entities.Project, error) {
	out := make([]*entities.Project, 0, len(d.projects))
	for _, p := range sortedValues(d.projects) {
		out = append(out, &p)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Acronym < out[j].Acronym })
	return out, nil
}

func (d *dataset) ListComponents(_ context.Context, projectID int64) ([]*entities.Component, error) {
	var out []*entities.Component
	for _, c := range sortedValues(d.components) {
		if c.ProjectID == projectID {
			out = append(out, &c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (d *dataset) DeleteComponentsByProject(_ context.Context, projectID int64) (int64, error) {
	var n int64
	for id, c := range d.components {
		if c.ProjectID == projectID {
			delete(d.components, id)
			n++
		}
	}
	return n, nil
}

func (d *dataset) DeleteProject(_ context.Context, projectID int64) error {
	if _, ok := d.projects[projectID]; !ok {
		return repositories.ErrNotFound
	}
	delete(d.projects, projectID)
	return nil
}

func (d *dataset) FindArtifact(_ context.Context, c entities.Coordinate) (*entities.Artifact, error) {
	for _, a := range sortedValues(d.artifacts) {
		if a.Coordinate == c {
			return &a, nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (d *dataset) GetArtifact(_ context.Context, id int64) (*entities.Artifact, error) {
	a, ok := d.artifacts[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return &a, nil
}

func (d *dataset) GetArtifactForUpdate(ctx context.Context, id int64) (*entities.Artifact, error) {
	return d.GetArtifact(ctx, id)
}

func (d *dataset) RegisterArtifact(ctx context.Context, c entities.Coordinate, created time.Time) (*entities.Artifact, bool, error) {
	if a, err := d.FindArtifact(ctx, c); err == nil {
		return a, false, nil
	}
	a := entities.Artifact{ID: d.id(), Coordinate: c, Status: entities.StatusCreated, CreatedDate: created}
	d.artifacts[a.ID] = a
	return &a, true, nil
}

func (d *dataset) CreateArtifact(ctx context.Context, a *entities.Artifact) (int64, error) {
	if _, err := d.FindArtifact(ctx, a.Coordinate); err == nil {
		return 0, fmt.Errorf("artifact %s: %w", a.Coordinate, repositories.ErrConflict)
	}
	row := *a
	row.ID = d.id()
	d.artifacts[row.ID] = row
	return row.ID, nil
}

func (d *dataset) SaveArtifact(ctx context.Context, a *entities.Artifact) error {
	if _, ok := d.artifacts[a.ID]; !ok {
		return repositories.ErrNotFound
	}
	if other, err := d.FindArtifact(ctx, a.Coordinate); err == nil && other.ID != a.ID {
		return fmt.Errorf("artifact %s: %w", a.Coordinate, repositories.ErrConflict)
	}
	d.artifacts[a.ID] = *a
	return nil
}

func (d *dataset) DeleteArtifact(_ context.Context, id int64) error {
	if _, ok := d.artifacts[id]; !ok {
		return repositories.ErrNotFound
	}
	delete(d.artifacts, id)
	return nil
}

func (d *dataset) ListArtifacts(_ context.Context, filter repositories.ArtifactFilter) ([]*entities.Artifact, error) {
	var out []*entities.Artifact
	for _, a := range sortedValues(d.artifacts) {
		if !d.matches(a, filter) {
			continue
		}
		out = append(out, &a)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Group != out[j].Group {
			return out[i].Group < out[j].Group
		}
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].Version < out[j].Version
	})
	return out, nil
}

func (d *dataset) matches(a entities.Artifact, f repositories.ArtifactFilter) bool {
	if f.Status != "" && a.Status != f.Status {
		return false
	}
	if f.Approver != "" && a.Approval.By != f.Approver {
		return false
	}
	if f.Group != "" && a.Group != f.Group {
		return false
	}
	if f.Name != "" && a.Name != f.Name {
		return false
	}
	if f.ApprovedFrom != nil || f.ApprovedTo != nil {
		if a.Approval.Date == nil {
			return false
		}
		if f.ApprovedFrom != nil && a.Approval.Date.Before(*f.ApprovedFrom) {
			return false
		}
		if f.ApprovedTo != nil && !a.Approval.Date.Before(*f.ApprovedTo) {
			return false
		}
	}
	if f.ProjectID != 0 {
		allowed, _ := d.HasAllowed(context.Background(), f.ProjectID, a.ID)
		licensed, _ := d.HasLicensed(context.Background(), f.ProjectID, a.ID)
		if !allowed && !licensed {
			return false
		}
	}
	return true
}

func (d *dataset) HasAllowed(_ context.Context, projectID, artifactID int64) (bool, error) {
	for _, a := range d.allowed {
		if a.ProjectID == projectID && a.ArtifactID == artifactID {
			return true, nil
		}
	}
	return false, nil
}

func (d *dataset) HasLicensed(_ context.Context, projectID, artifactID int64) (bool, error) {
	for _, l := range d.licensed {
		if l.ProjectID == projectID && l.ArtifactID == artifactID {
			return true, nil
		}
	}
	return false, nil
}

func (d *dataset) AddAllowed(_ context.Context, a *entities.AllowedArtifact) (int64, error) {
	if err := d.checkRefs(a.ProjectID, a.ArtifactID); err != nil {
		return 0, err
	}
	row := *a
	row.ID = d.id()
	d.allowed[row.ID] = row
	return row.ID, nil
}

func (d *dataset) AddLicensed(_ context.Context, l *entities.LicensedArtifact) (int64, error) {
	if err := d.checkRefs(l.ProjectID, l.ArtifactID); err != nil {
		return 0, err
	}
	row := *l
	row.ID = d.id()
	d.licensed[row.ID] = row
	return row.ID, nil
}

func (d *dataset) checkRefs(projectID, artifactID int64) error {
	if _, ok := d.projects[projectID]; !ok {
		return fmt.Errorf("project %d: %w", projectID, repositories.ErrNotFound)
	}
	if _, ok := d.artifacts[artifactID]; !ok {
		return fmt.Errorf("artifact %d: %w", artifactID, repositories.ErrNotFound)
	}
	return nil
}

func approvalMatches(f repositories.ApprovalFilter, projectID, artifactID int64) bool {
	return (f.ProjectID == 0 || f.ProjectID == projectID) &&
		(f.ArtifactID == 0 || f.ArtifactID == artifactID)
}

func (d *dataset) ListAllowed(_ context.Context, filter repositories.ApprovalFilter) ([]*entities.AllowedArtifact, error) {
	var out []*entities.AllowedArtifact
	for _, a := range sortedValues(d.allowed) {
		if approvalMatches(filter, a.ProjectID, a.ArtifactID) {
			out = append(out, &a)
		}
	}
	return out, nil
}

func (d *dataset) ListLicensed(_ context.Context, filter repositories.ApprovalFilter) ([]*entities.LicensedArtifact, error) {
	var out []*entities.LicensedArtifact
	for _, l := range sortedValues(d.licensed) {
		if approvalMatches(filter, l.ProjectID, l.ArtifactID) {
			out = append(out, &l)
		}
	}
	return out, nil
}

func (d *dataset) DeleteAllowed(_ context.Context, filter repositories.ApprovalFilter) (int64, error) {
	if filter == (repositories.ApprovalFilter{}) {
		return 0, fmt.Errorf("refusing to delete every allowed approval")
	}
	var n int64
	for id, a := range d.allowed {
		if approvalMatches(filter, a.ProjectID, a.ArtifactID) {
			delete(d.allowed, id)
			n++
		}
	}
	return n, nil
}

func (d *dataset) DeleteLicensed(_ context.Context, filter repositories.ApprovalFilter) (int64, error) {
	if filter == (repositories.ApprovalFilter{}) {
		return 0, fmt.Errorf("refusing to delete every licensed approval")
	}
	var n int64
	for id, l := range d.licensed {
		if approvalMatches(filter, l.ProjectID, l.ArtifactID) {
			delete(d.licensed, id)
			n++
		}
	}
	return n, nil
}

func (d *dataset) CopyAllowedToLicensed(_ context.Context, artifactID int64) (int64, error) {
	var n int64
	for _, a := range sortedValues(d.allowed) {
		if a.ArtifactID != artifactID {
			continue
		}
		row := entities.LicensedArtifact{
			ID:                d.id(),
			ArtifactID:        a.ArtifactID,
			ProjectID:         a.ProjectID,
			ApprovalArchitect: a.ApprovalArchitect,
			ApprovalTS:        a.ApprovalTS,
		}
		d.licensed[row.ID] = row
		n++
	}
	return n, nil
}

func (d *dataset) CopyLicensedToAllowed(_ context.Context, artifactID int64) (int64, error) {
	var n int64
	for _, l := range sortedValues(d.licensed) {
		if l.ArtifactID != artifactID {
			continue
		}
		row := entities.AllowedArtifact{
			ID:                d.id(),
			ArtifactID:        l.ArtifactID,
			ProjectID:         l.ProjectID,
			ApprovalArchitect: l.ApprovalArchitect,
			ApprovalTS:        l.ApprovalTS,
		}
		d.allowed[row.ID] = row
		n++
	}
	return n, nil
}

func (d *dataset) CreateBuild(_ context.Context, b *entities.Build) (int64, error) {
	if _, ok := d.projects[b.ProjectID]; !ok {
		return 0, fmt.Errorf("project %d: %w", b.ProjectID, repositories.ErrNotFound)
	}
	if _, ok := d.components[b.ComponentID]; !ok {
		return 0, fmt.Errorf("component %d: %w", b.ComponentID, repositories.ErrNotFound)
	}
	row := *b
	row.ID = d.id()
	d.builds[row.ID] = row
	return row.ID, nil
}

func (d *dataset) AddBuildItem(_ context.Context, item *entities.BuildItem) (int64, error) {
	if _, ok := d.builds[item.BuildID]; !ok {
		return 0, fmt.Errorf("build %d: %w", item.BuildID, repositories.ErrNotFound)
	}
	row := *item
	row.ID = d.id()
	d.items[row.ID] = row
	return row.ID, nil
}

func (d *dataset) GetBuild(_ context.Context, id int64) (*entities.Build, error) {
	b, ok := d.builds[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return &b, nil
}

func (d *dataset) ListBuilds(_ context.Context, filter repositories.BuildFilter) ([]*entities.Build, error) {
	var out []*entities.Build
	for _, b := range sortedValues(d.builds) {
		if filter.ProjectID != 0 && b.ProjectID != filter.ProjectID {
			continue
		}
		if filter.ComponentID != 0 && b.ComponentID != filter.ComponentID {
			continue
		}
		out = append(out, &b)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Timestamp.After(out[j].Timestamp)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (d *dataset) ListBuildItems(_ context.Context, buildID int64) ([]*entities.BuildItem, error) {
	var out []*entities.BuildItem
	for _, item := range sortedValues(d.items) {
		if item.BuildID == buildID {
			out = append(out, &item)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Group != out[j].Group {
			return out[i].Group < out[j].Group
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

func (d *dataset) DeleteBuildsByProject(_ context.Context, projectID int64) (int64, error) {
	var n int64
	for id, b := range d.builds {
		if b.ProjectID != projectID {
			continue
		}
		for itemID, item := range d.items {
			if item.BuildID == id {
				delete(d.items, itemID)
			}
		}
		delete(d.builds, id)
		n++
	}
	return n, nil
}
