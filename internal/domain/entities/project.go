package entities

import "time"

// Project is an application identified by its acronym
type Project struct {
	ID            int64
	Acronym       string
	BusinessOwner string
	ITOwner       string
	BeginDate     *time.Time
	EndDate       *time.Time
}

// Component is a buildable unit within a project
type Component struct {
	ID        int64
	ProjectID int64
	Name      string
}
