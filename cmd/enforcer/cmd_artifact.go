package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ochairo/enforcer/internal/domain/entities"
	"github.com/ochairo/enforcer/internal/domain/interfaces/repositories"
	"github.com/ochairo/enforcer/internal/domain/services"
)

func newArtifactCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "artifact",
		Short: "Inspect and govern library versions",
	}
	cmd.AddCommand(
		newArtifactShowCmd(a),
		newArtifactListCmd(a),
		newArtifactVersionsCmd(a),
		newArtifactAddCmd(a),
		newArtifactUpdateCmd(a),
		newArtifactDeleteCmd(a),
	)
	return cmd
}

// lookupArtifact accepts an id or a group:name:version coordinate
func lookupArtifact(ctx context.Context, svc *services.ArtifactService, ref string) (*entities.Artifact, error) {
	if strings.Contains(ref, ":") {
		c, err := parseCoordinate(ref)
		if err != nil {
			return nil, err
		}
		return svc.FindArtifact(ctx, c)
	}
	id, err := parseID(ref)
	if err != nil {
		return nil, err
	}
	return svc.GetArtifact(ctx, id)
}

func newArtifactShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id|group:name:version>",
		Short: "Show one artifact",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.artifactService(cmd.Context())
			if err != nil {
				return err
			}
			artifact, err := lookupArtifact(cmd.Context(), svc, args[0])
			if err != nil {
				return err
			}
			return writeArtifact(cmd.OutOrStdout(), artifact)
		},
	}
}

func newArtifactListCmd(a *app) *cobra.Command {
	var flags struct {
		status   string
		approver string
		group    string
		name     string
		from     string
		to       string
		acronym  string
	}
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List artifacts matching every given filter",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			filter := repositories.ArtifactFilter{
				Approver: flags.approver,
				Group:    flags.group,
				Name:     flags.name,
			}
			if flags.status != "" {
				status, err := entities.ParseStatus(flags.status)
				if err != nil {
					return err
				}
				filter.Status = status
			}
			var err error
			if filter.ApprovedFrom, err = parseDate(flags.from); err != nil {
				return err
			}
			if filter.ApprovedTo, err = parseDate(flags.to); err != nil {
				return err
			}

			svc, err := a.artifactService(ctx)
			if err != nil {
				return err
			}
			if flags.acronym != "" {
				store, err := a.policyStore(ctx)
				if err != nil {
					return err
				}
				project, err := store.FindProjectByAcronym(ctx, flags.acronym)
				if errors.Is(err, repositories.ErrNotFound) {
					return fmt.Errorf("%w: %s", services.ErrProjectNotFound, flags.acronym)
				}
				if err != nil {
					return err
				}
				filter.ProjectID = project.ID
			}

			artifacts, err := svc.ListArtifacts(ctx, filter)
			if err != nil {
				return err
			}
			return writeArtifactTable(cmd.OutOrStdout(), artifacts)
		},
	}
	f := cmd.Flags()
	f.StringVar(&flags.status, "status", "", "Lifecycle status")
	f.StringVar(&flags.approver, "approver", "", "Approval authorization holder")
	f.StringVar(&flags.group, "group", "", "Group id")
	f.StringVar(&flags.name, "name", "", "Artifact name")
	f.StringVar(&flags.from, "approved-from", "", "Approval date on or after YYYY-MM-DD")
	f.StringVar(&flags.to, "approved-to", "", "Approval date before YYYY-MM-DD")
	f.StringVar(&flags.acronym, "acronym", "", "Only artifacts approved for this project")
	return cmd
}

func newArtifactVersionsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "versions <group> <name>",
		Short: "List every known version of a library, newest first",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.artifactService(cmd.Context())
			if err != nil {
				return err
			}
			artifacts, err := svc.ListVersions(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			return writeArtifactTable(cmd.OutOrStdout(), artifacts)
		},
	}
}

// authorizationFlags binds the by/date pair of each lifecycle authorization
type authorizationFlags struct {
	status          string
	vendor          bool
	approvedBy      string
	approvalDate    string
	deprecatedBy    string
	deprecationDate string
	retiredBy       string
	retirementDate  string
}

func (f *authorizationFlags) register(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringVar(&f.status, "status", "", "Lifecycle status")
	fs.BoolVar(&f.vendor, "vendor", false, "Artifact is vendor licensed")
	fs.StringVar(&f.approvedBy, "approved-by", "", "Approval authorization")
	fs.StringVar(&f.approvalDate, "approval-date", "", "Approval effective date YYYY-MM-DD")
	fs.StringVar(&f.deprecatedBy, "deprecated-by", "", "Deprecation authorization")
	fs.StringVar(&f.deprecationDate, "deprecation-date", "", "Deprecation effective date YYYY-MM-DD")
	fs.StringVar(&f.retiredBy, "retired-by", "", "Retirement authorization")
	fs.StringVar(&f.retirementDate, "retirement-date", "", "Retirement effective date YYYY-MM-DD")
}

// apply copies the flags the user set onto an artifact
func (f *authorizationFlags) apply(cmd *cobra.Command, artifact *entities.Artifact) error {
	changed := cmd.Flags().Changed
	if changed("status") {
		status, err := entities.ParseStatus(f.status)
		if err != nil {
			return err
		}
		artifact.Status = status
	}
	if changed("vendor") {
		artifact.VendorLicensed = f.vendor
	}

	for _, step := range []struct {
		byFlag, dateFlag string
		by, date         string
		auth             *entities.Authorization
	}{
		{"approved-by", "approval-date", f.approvedBy, f.approvalDate, &artifact.Approval},
		{"deprecated-by", "deprecation-date", f.deprecatedBy, f.deprecationDate, &artifact.Deprecation},
		{"retired-by", "retirement-date", f.retiredBy, f.retirementDate, &artifact.Retirement},
	} {
		if changed(step.byFlag) {
			step.auth.By = step.by
		}
		if changed(step.dateFlag) {
			date, err := parseDate(step.date)
			if err != nil {
				return err
			}
			step.auth.Date = date
		}
	}
	return nil
}

func newArtifactAddCmd(a *app) *cobra.Command {
	var flags authorizationFlags
	cmd := &cobra.Command{
		Use:   "add <group:name:version>",
		Short: "Register an artifact, CREATED unless --status says otherwise",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := parseCoordinate(args[0])
			if err != nil {
				return err
			}
			artifact := &entities.Artifact{Coordinate: c}
			if err := flags.apply(cmd, artifact); err != nil {
				return err
			}

			svc, err := a.artifactService(cmd.Context())
			if err != nil {
				return err
			}
			created, err := svc.CreateArtifact(cmd.Context(), artifact)
			if err != nil {
				return err
			}
			return writeArtifact(cmd.OutOrStdout(), created)
		},
	}
	flags.register(cmd)
	return cmd
}

func newArtifactUpdateCmd(a *app) *cobra.Command {
	var flags authorizationFlags
	cmd := &cobra.Command{
		Use:   "update <id|group:name:version>",
		Short: "Change an artifact's status, licensing or authorizations",
		Long: "Applies a lifecycle transition. Moving to LIMITED or GA needs an approval\n" +
			"authorization, LIMITED_DEPRECATED or DEPRECATED a deprecation authorization and\n" +
			"RETIRED a retirement authorization. Flipping --vendor moves the artifact's\n" +
			"project approvals to the other partition; vendor and contract details are lost.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			svc, err := a.artifactService(ctx)
			if err != nil {
				return err
			}
			current, err := lookupArtifact(ctx, svc, args[0])
			if err != nil {
				return err
			}
			next := *current
			if err := flags.apply(cmd, &next); err != nil {
				return err
			}
			saved, err := svc.UpdateArtifact(ctx, &next)
			if err != nil {
				return err
			}
			return writeArtifact(cmd.OutOrStdout(), saved)
		},
	}
	flags.register(cmd)
	return cmd
}

func newArtifactDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id|group:name:version>",
		Short: "Delete an artifact and every approval of it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			svc, err := a.artifactService(ctx)
			if err != nil {
				return err
			}
			artifact, err := lookupArtifact(ctx, svc, args[0])
			if err != nil {
				return err
			}
			if err := svc.DeleteArtifact(ctx, artifact.ID); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", artifact.Coordinate)
			return nil
		},
	}
}
