package gateways

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/ochairo/enforcer/internal/domain/entities"
)

// CollectedModule is one buildable module and its direct dependencies as
// reported by a build tool
type CollectedModule struct {
	Name         string
	Version      string
	Coordinate   entities.Coordinate
	Dependencies []entities.Coordinate
}

// DependencyTrail is the path from a module to one dependency, module first
type DependencyTrail []entities.Coordinate

// mavenCollector reads `mvn dependency:tree` output
type mavenCollector struct{}

// NewMavenCollector creates a collector for Maven dependency trees
//
//nolint:revive // unexported-return: Intentionally returns concrete type for testability
func NewMavenCollector() *mavenCollector {
	return &mavenCollector{}
}

// mavenNode is a parsed tree line
type mavenNode struct {
	depth int
	coord entities.Coordinate
}

// Collect parses a dependency tree report. A reactor build yields one module
// per tree. Only direct dependencies are kept.
func (c *mavenCollector) Collect(r io.Reader) ([]*CollectedModule, error) {
	trees, err := c.parseTrees(r)
	if err != nil {
		return nil, err
	}
	modules := make([]*CollectedModule, 0, len(trees))
	for _, tree := range trees {
		root := tree[0].coord
		modules = append(modules, &CollectedModule{
			Name:         root.Name,
			Version:      root.Version,
			Coordinate:   root,
			Dependencies: DirectDependencies(root, mavenTrails(tree)),
		})
	}
	return modules, nil
}

// mavenTrails expands a parsed tree into one trail per dependency node
func mavenTrails(tree []mavenNode) []DependencyTrail {
	var (
		trails []DependencyTrail
		path   []entities.Coordinate
	)
	for _, node := range tree {
		if node.depth > len(path) {
			// A skipped level means a malformed tree; attach to the deepest known parent.
			node.depth = len(path)
		}
		path = append(path[:node.depth], node.coord)
		if node.depth == 0 {
			continue
		}
		trail := make(DependencyTrail, len(path))
		copy(trail, path)
		trails = append(trails, trail)
	}
	return trails
}

// DirectDependencies keeps the dependencies whose trail is exactly the module
// plus the dependency itself, skipping the module and duplicates
func DirectDependencies(self entities.Coordinate, trails []DependencyTrail) []entities.Coordinate {
	seen := make(map[entities.Coordinate]bool)
	var direct []entities.Coordinate
	for _, trail := range trails {
		if len(trail) != 2 {
			continue
		}
		dep := trail[1]
		if dep == self || seen[dep] {
			continue
		}
		seen[dep] = true
		direct = append(direct, dep)
	}
	return direct
}

func (c *mavenCollector) parseTrees(r io.Reader) ([][]mavenNode, error) {
	var (
		trees   [][]mavenNode
		current []mavenNode
	)
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	for lineNo := 1; scanner.Scan(); lineNo++ {
		line := strings.TrimRight(scanner.Text(), " \r")
		line = strings.TrimPrefix(line, "[INFO] ")
		if line == "" {
			continue
		}

		depth, body := mavenDepth(line)
		if depth == 0 {
			coord, ok := parseMavenCoordinate(body, true)
			if !ok {
				continue
			}
			if current != nil {
				trees = append(trees, current)
			}
			current = []mavenNode{{depth: 0, coord: coord}}
			continue
		}

		if current == nil || isOmittedNode(body) {
			continue
		}
		coord, ok := parseMavenCoordinate(body, false)
		if !ok {
			if depth > 1 {
				// transitive lines are never enforced
				continue
			}
			return nil, fmt.Errorf("line %d: cannot parse dependency %q", lineNo, body)
		}
		current = append(current, mavenNode{depth: depth, coord: coord})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read dependency tree: %w", err)
	}
	if current != nil {
		trees = append(trees, current)
	}
	if len(trees) == 0 {
		return nil, fmt.Errorf("no dependency tree found in input")
	}
	return trees, nil
}

// mavenDepth returns the tree depth of a line and the text after the branch marker.
// Each level is drawn three columns wide.
func mavenDepth(line string) (int, string) {
	for _, marker := range []string{"+- ", "\\- "} {
		if i := strings.Index(line, marker); i >= 0 && isTreePrefix(line[:i]) {
			return i/3 + 1, line[i+len(marker):]
		}
	}
	return 0, line
}

// isOmittedNode matches the parenthesised entries written by
// dependency:tree -Dverbose for duplicates and conflict losers
func isOmittedNode(body string) bool {
	return strings.HasPrefix(strings.TrimSpace(body), "(")
}

func isTreePrefix(s string) bool {
	return strings.Trim(s, "| ") == ""
}

// parseMavenCoordinate reads group:artifact:type[:classifier]:version[:scope].
// Module lines carry no scope; a four part dependency is read the same way.
func parseMavenCoordinate(s string, root bool) (entities.Coordinate, bool) {
	if i := strings.Index(s, " ("); i >= 0 {
		s = s[:i]
	}
	s = strings.TrimSpace(s)
	if s == "" || strings.ContainsAny(s, " \t") {
		return entities.Coordinate{}, false
	}
	parts := strings.Split(s, ":")

	var version string
	switch {
	case len(parts) == 4:
		version = parts[3]
	case root && len(parts) == 5:
		version = parts[4]
	case !root && len(parts) == 5:
		version = parts[3]
	case !root && len(parts) == 6:
		version = parts[4]
	default:
		return entities.Coordinate{}, false
	}

	coord := entities.Coordinate{Group: parts[0], Name: parts[1], Version: version}
	if coord.Validate() != nil {
		return entities.Coordinate{}, false
	}
	return coord, true
}
