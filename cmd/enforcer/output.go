package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/ochairo/enforcer/internal/domain/entities"
)

const dateLayout = "2006-01-02"

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

func formatDate(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.UTC().Format(dateLayout)
}

func formatTime(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.UTC().Format(time.RFC3339)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// parseCoordinate reads group:name:version
func parseCoordinate(s string) (entities.Coordinate, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return entities.Coordinate{}, fmt.Errorf("coordinate %q must be group:name:version", s)
	}
	c := entities.Coordinate{Group: parts[0], Name: parts[1], Version: parts[2]}
	return c, c.Validate()
}

// parseDate reads a YYYY-MM-DD date as midnight UTC
func parseDate(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.ParseInLocation(dateLayout, s, time.UTC)
	if err != nil {
		return nil, fmt.Errorf("date %q must be YYYY-MM-DD", s)
	}
	return &t, nil
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%q is not a valid id", s)
	}
	return id, nil
}

func writeArtifactTable(w io.Writer, artifacts []*entities.Artifact) error {
	tw := newTable(w)
	fmt.Fprintln(tw, "ID\tCOORDINATE\tSTATUS\tVENDOR\tAPPROVED BY\tAPPROVED")
	for _, a := range artifacts {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%t\t%s\t%s\n",
			a.ID, a.Coordinate, a.Status, a.VendorLicensed, orDash(a.Approval.By), formatDate(a.Approval.Date))
	}
	return tw.Flush()
}

func writeArtifact(w io.Writer, a *entities.Artifact) error {
	tw := newTable(w)
	fmt.Fprintf(tw, "ID:\t%d\n", a.ID)
	fmt.Fprintf(tw, "Coordinate:\t%s\n", a.Coordinate)
	fmt.Fprintf(tw, "Status:\t%s\n", a.Status)
	fmt.Fprintf(tw, "Vendor licensed:\t%t\n", a.VendorLicensed)
	fmt.Fprintf(tw, "Created:\t%s\n", a.CreatedDate.UTC().Format(time.RFC3339))
	for _, step := range []struct {
		name string
		auth entities.Authorization
	}{
		{"Approval", a.Approval},
		{"Deprecation", a.Deprecation},
		{"Retirement", a.Retirement},
	} {
		if step.auth.By == "" {
			continue
		}
		fmt.Fprintf(tw, "%s:\t%s effective %s (recorded %s)\n",
			step.name, step.auth.By, formatDate(step.auth.Date), formatTime(step.auth.Timestamp))
	}
	return tw.Flush()
}

func writeBuildTable(w io.Writer, builds []*entities.Build) error {
	tw := newTable(w)
	fmt.Fprintln(tw, "ID\tVERSION\tTIMESTAMP\tSOURCE\tRESULT")
	for _, b := range builds {
		result := "passed"
		if b.Infractions != "" {
			result = fmt.Sprintf("failed (%d)", strings.Count(b.Infractions, "\n"))
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n",
			b.ID, orDash(b.ComponentVersion), b.Timestamp.UTC().Format(time.RFC3339), b.Source, result)
	}
	return tw.Flush()
}
