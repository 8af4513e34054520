package gateways

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/ochairo/enforcer/internal/domain/entities"
)

// DefaultGradleConfiguration is the configuration whose declarations are enforced
const DefaultGradleConfiguration = "implementation"

var (
	gradleProjectHeader = regexp.MustCompile(`^(?:Root project|Project) '?:?([^' ]*)'?`)
	gradleSectionHeader = regexp.MustCompile(`^([A-Za-z][\w-]*)(?: - .*)?$`)
	gradleMarkers       = regexp.MustCompile(`\s+\((?:n|\*|c)\)$`)
)

// gradleCollector reads `gradle dependencies` output
type gradleCollector struct {
	configuration string
}

// NewGradleCollector creates a collector for one Gradle configuration.
// An empty configuration uses DefaultGradleConfiguration.
//
//nolint:revive // unexported-return: Intentionally returns concrete type for testability
func NewGradleCollector(configuration string) *gradleCollector {
	if configuration == "" {
		configuration = DefaultGradleConfiguration
	}
	return &gradleCollector{configuration: configuration}
}

// Collect returns the top-level entries of the configuration for every
// project in the report. Project dependencies and constraints are skipped.
func (c *gradleCollector) Collect(r io.Reader) ([]*CollectedModule, error) {
	var (
		modules   []*CollectedModule
		current   *CollectedModule
		inSection bool
		seen      map[entities.Coordinate]bool
	)
	project := ""

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	for lineNo := 1; scanner.Scan(); lineNo++ {
		line := strings.TrimRight(scanner.Text(), " \r")

		if m := gradleProjectHeader.FindStringSubmatch(line); m != nil {
			project = m[1]
			inSection = false
			continue
		}

		if !inSection {
			m := gradleSectionHeader.FindStringSubmatch(line)
			if m == nil || m[1] != c.configuration {
				continue
			}
			inSection = true
			current = &CollectedModule{Name: project}
			modules = append(modules, current)
			seen = make(map[entities.Coordinate]bool)
			continue
		}

		if line == "" {
			inSection = false
			continue
		}

		entry, ok := gradleTopLevelEntry(line)
		if !ok {
			continue
		}
		coord, skip, err := parseGradleDependency(entry)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		if skip || seen[coord] {
			continue
		}
		seen[coord] = true
		current.Dependencies = append(current.Dependencies, coord)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read dependency report: %w", err)
	}
	if len(modules) == 0 {
		return nil, fmt.Errorf("configuration %q not found in dependency report", c.configuration)
	}
	return modules, nil
}

// gradleTopLevelEntry returns the dependency text of a first-level tree line
func gradleTopLevelEntry(line string) (string, bool) {
	for _, marker := range []string{"+--- ", "\\--- "} {
		if strings.HasPrefix(line, marker) {
			return line[len(marker):], true
		}
	}
	return "", false
}

// parseGradleDependency reads group:name:version with Gradle's annotations.
// A conflict resolution arrow selects the resolved version.
func parseGradleDependency(entry string) (entities.Coordinate, bool, error) {
	entry = strings.TrimSuffix(entry, " FAILED")
	if strings.HasSuffix(entry, "(c)") || strings.HasPrefix(entry, "project ") {
		return entities.Coordinate{}, true, nil
	}
	entry = gradleMarkers.ReplaceAllString(entry, "")

	resolved := ""
	if i := strings.Index(entry, " -> "); i >= 0 {
		resolved = strings.TrimSpace(entry[i+len(" -> "):])
		entry = strings.TrimSpace(entry[:i])
	}

	parts := strings.Split(entry, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return entities.Coordinate{}, false, fmt.Errorf("cannot parse dependency %q", entry)
	}
	coord := entities.Coordinate{Group: parts[0], Name: parts[1]}
	if len(parts) == 3 {
		coord.Version = parts[2]
	}
	if resolved != "" {
		coord.Version = resolved
	}
	if coord.Version == "" || strings.HasPrefix(coord.Version, "{") {
		return entities.Coordinate{}, false, fmt.Errorf(
			"dependency %q has no concrete version, enforce a resolved configuration such as runtimeClasspath", entry)
	}
	if err := coord.Validate(); err != nil {
		return entities.Coordinate{}, false, err
	}
	return coord, false, nil
}
