package entities

import "time"

// AllowedArtifact grants one project the use of an open-source artifact
type AllowedArtifact struct {
	ID                int64
	ArtifactID        int64
	ProjectID         int64
	ApprovalArchitect string
	ApprovalTS        *time.Time
}

// LicensedArtifact grants one project the use of a vendor-licensed artifact
type LicensedArtifact struct {
	ID                int64
	ArtifactID        int64
	ProjectID         int64
	Contract          string
	Vendor            string
	ApprovalArchitect string
	ApprovalTS        *time.Time
}
