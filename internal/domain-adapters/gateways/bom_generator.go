package gateways

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/package-url/packageurl-go"

	"github.com/ochairo/enforcer/internal/domain/entities"
)

// Property names attached to exported BOM components
const (
	PropertyStatus  = "enforcer:status"
	PropertyAllowed = "enforcer:allowed"
	PropertyBuildID = "enforcer:build_id"
	PropertySource  = "enforcer:source"
	PropertyAcronym = "enforcer:acronym"
)

// BOMSubject names the project component a build belongs to
type BOMSubject struct {
	Acronym   string
	Component string
}

// bomGenerator renders recorded builds as CycloneDX documents
type bomGenerator struct {
	toolVersion string
}

// NewBOMGenerator creates a new BOM generator gateway
//
//nolint:revive // unexported-return: Intentionally returns concrete type for testability
func NewBOMGenerator(toolVersion string) *bomGenerator {
	if toolVersion == "" {
		toolVersion = "dev"
	}
	return &bomGenerator{toolVersion: toolVersion}
}

// GenerateBOM builds a CycloneDX 1.4 document from a build and its items.
// The document timestamp is the build timestamp so exports are reproducible.
func (g *bomGenerator) GenerateBOM(_ context.Context, subject BOMSubject, build *entities.Build, items []*entities.BuildItem) (*entities.SBOM, error) {
	if build == nil {
		return nil, fmt.Errorf("build cannot be nil")
	}

	components := make([]entities.BOMComponent, 0, len(items))
	for _, item := range items {
		components = append(components, entities.BOMComponent{
			Type:       "library",
			Group:      item.Group,
			Name:       item.Name,
			Version:    item.Version,
			PackageURL: PackageURL(item.Coordinate),
			Properties: []entities.Property{
				{Name: PropertyStatus, Value: string(item.StatusSnapshot)},
				{Name: PropertyAllowed, Value: strconv.FormatBool(item.Allowed)},
			},
		})
	}

	return &entities.SBOM{
		BOMFormat:   "CycloneDX",
		SpecVersion: "1.4",
		Version:     1,
		Components:  components,
		Metadata: entities.Metadata{
			Timestamp: build.Timestamp.UTC(),
			Tools: []entities.Tool{
				{
					Name:    "enforcer",
					Version: g.toolVersion,
				},
			},
			Component: &entities.BOMComponent{
				Type:    "application",
				Name:    subject.Component,
				Version: build.ComponentVersion,
			},
			Properties: []entities.Property{
				{Name: PropertyAcronym, Value: subject.Acronym},
				{Name: PropertyBuildID, Value: strconv.FormatInt(build.ID, 10)},
				{Name: PropertySource, Value: string(build.Source)},
			},
		},
	}, nil
}

// MarshalBOM renders a BOM as indented JSON with a trailing newline
func MarshalBOM(sbom *entities.SBOM) ([]byte, error) {
	data, err := json.MarshalIndent(sbom, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal BOM: %w", err)
	}
	return append(data, '\n'), nil
}

// PackageURL returns the Maven package URL of a coordinate, percent-encoded
func PackageURL(c entities.Coordinate) string {
	return packageurl.NewPackageURL(packageurl.TypeMaven, c.Group, c.Name, c.Version, nil, "").ToString()
}
