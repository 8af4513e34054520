package services

import "errors"

// Sentinel errors returned by the administrative services
var (
	ErrArtifactNotFound = errors.New("artifact not found")
	ErrProjectNotFound  = errors.New("project not found")
	ErrBuildNotFound    = errors.New("build not found")
	ErrMissingAcronym   = errors.New("missing governance required property: 'acronym'")
	ErrWrongPartition   = errors.New("approval partition does not match artifact licensing")
)
