// Package entities defines core domain models and data structures.
package entities

import (
	"fmt"
	"strings"
	"time"
)

// Status is the lifecycle state of an artifact
type Status string

// Artifact lifecycle states
const (
	StatusCreated           Status = "CREATED"
	StatusLimited           Status = "LIMITED"
	StatusLimitedDeprecated Status = "LIMITED_DEPRECATED"
	StatusGA                Status = "GA"
	StatusDeprecated        Status = "DEPRECATED"
	StatusRetired           Status = "RETIRED"
)

// Statuses lists every known lifecycle state
var Statuses = []Status{
	StatusCreated,
	StatusLimited,
	StatusLimitedDeprecated,
	StatusGA,
	StatusDeprecated,
	StatusRetired,
}

// Valid reports whether s is a known lifecycle state
func (s Status) Valid() bool {
	for _, known := range Statuses {
		if s == known {
			return true
		}
	}
	return false
}

// ParseStatus converts a stored or user supplied label into a Status
func ParseStatus(label string) (Status, error) {
	s := Status(strings.ToUpper(strings.TrimSpace(label)))
	if !s.Valid() {
		return "", fmt.Errorf("unknown artifact status %q", label)
	}
	return s, nil
}

// Coordinate identifies a library by group, name and version
type Coordinate struct {
	Group   string
	Name    string
	Version string
}

// String renders the coordinate as group:name:version
func (c Coordinate) String() string {
	return c.Group + ":" + c.Name + ":" + c.Version
}

// Validate checks that every part of the coordinate is present
func (c Coordinate) Validate() error {
	if c.Group == "" || c.Name == "" || c.Version == "" {
		return fmt.Errorf("incomplete artifact coordinate %q", c.String())
	}
	return nil
}

// Authorization documents who signed off a lifecycle step and when.
// Date is the human-entered effective date, Timestamp the system capture instant.
type Authorization struct {
	By        string
	Date      *time.Time
	Timestamp *time.Time
}

// Artifact is a governed library version
type Artifact struct {
	ID int64
	Coordinate
	Status         Status
	VendorLicensed bool
	CreatedDate    time.Time
	Approval       Authorization
	Deprecation    Authorization
	Retirement     Authorization
}
