package entities

import "time"

// SBOM represents a Software Bill of Materials exported from a build
type SBOM struct {
	BOMFormat    string         `json:"bomFormat"`   // "CycloneDX"
	SpecVersion  string         `json:"specVersion"` // "1.4"
	SerialNumber string         `json:"serialNumber,omitempty"`
	Version      int            `json:"version"`
	Metadata     Metadata       `json:"metadata"`
	Components   []BOMComponent `json:"components"`
}

// BOMComponent represents one library recorded in the SBOM
type BOMComponent struct {
	Type       string     `json:"type"` // "library"
	Group      string     `json:"group,omitempty"`
	Name       string     `json:"name"`
	Version    string     `json:"version,omitempty"`
	PackageURL string     `json:"purl,omitempty"`
	Properties []Property `json:"properties,omitempty"`
}

// Property is a name/value annotation on an SBOM component
type Property struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Metadata contains SBOM generation metadata
type Metadata struct {
	Timestamp  time.Time     `json:"timestamp"`
	Tools      []Tool        `json:"tools,omitempty"`
	Component  *BOMComponent `json:"component,omitempty"`
	Properties []Property    `json:"properties,omitempty"`
}

// Tool represents a tool used to generate the SBOM
type Tool struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}
