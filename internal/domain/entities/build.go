package entities

import "time"

// BuildSource tags which build-tool integration recorded a build
type BuildSource string

// Known build sources
const (
	SourceMaven  BuildSource = "MavenEnforcer"
	SourceGradle BuildSource = "GradleEnforcer"
)

// Build is one enforcement run for a component version
type Build struct {
	ID               int64
	ProjectID        int64
	ComponentID      int64
	ComponentVersion string
	Timestamp        time.Time
	Infractions      string
	Source           BuildSource
}

// BuildItem is one evaluated dependency of a build.
// StatusSnapshot is the artifact status observed at evaluation time.
type BuildItem struct {
	ID      int64
	BuildID int64
	Coordinate
	StatusSnapshot Status
	Allowed        bool
}
