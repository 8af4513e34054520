package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ochairo/enforcer/internal/domain/services"
)

func newApprovalCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "approval",
		Short: "Grant and revoke project approvals",
	}
	cmd.AddCommand(newApprovalGrantCmd(a), newApprovalRevokeCmd(a), newApprovalListCmd(a))
	return cmd
}

func newApprovalGrantCmd(a *app) *cobra.Command {
	var grant services.Grant
	cmd := &cobra.Command{
		Use:   "grant <group:name:version>",
		Short: "Approve a LIMITED artifact for one project",
		Long: "Records an approval in the partition matching the artifact's licensing:\n" +
			"AllowedArtifacts for open-source artifacts, LicensedArtifacts for vendor-licensed ones.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := parseCoordinate(args[0])
			if err != nil {
				return err
			}
			grant.Coordinate = c

			svc, err := a.approvalService(cmd.Context())
			if err != nil {
				return err
			}
			if err := svc.Grant(cmd.Context(), grant); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Approved %s for %s\n", c, grant.Acronym)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&grant.Acronym, "acronym", "", "Project acronym (required)")
	f.StringVar(&grant.Architect, "architect", "", "Approving architect (required)")
	f.StringVar(&grant.Vendor, "vendor", "", "Vendor of a licensed artifact")
	f.StringVar(&grant.Contract, "contract", "", "Contract covering a licensed artifact")
	return cmd
}

func newApprovalRevokeCmd(a *app) *cobra.Command {
	var acronym string
	cmd := &cobra.Command{
		Use:   "revoke <group:name:version>",
		Short: "Remove a project's approvals of an artifact",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := parseCoordinate(args[0])
			if err != nil {
				return err
			}
			svc, err := a.approvalService(cmd.Context())
			if err != nil {
				return err
			}
			n, err := svc.Revoke(cmd.Context(), acronym, c)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Revoked %d approval(s) of %s for %s\n", n, c, acronym)
			return nil
		},
	}
	cmd.Flags().StringVar(&acronym, "acronym", "", "Project acronym (required)")
	return cmd
}

func newApprovalListCmd(a *app) *cobra.Command {
	var acronym string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List a project's approvals in both partitions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			svc, err := a.approvalService(ctx)
			if err != nil {
				return err
			}
			approvals, err := svc.List(ctx, acronym)
			if err != nil {
				return err
			}
			artifacts, err := a.artifactService(ctx)
			if err != nil {
				return err
			}

			tw := newTable(cmd.OutOrStdout())
			fmt.Fprintln(tw, "PARTITION\tCOORDINATE\tARCHITECT\tAPPROVED\tVENDOR\tCONTRACT")
			for _, row := range approvals.Allowed {
				artifact, err := artifacts.GetArtifact(ctx, row.ArtifactID)
				if err != nil {
					return err
				}
				fmt.Fprintf(tw, "allowed\t%s\t%s\t%s\t-\t-\n",
					artifact.Coordinate, orDash(row.ApprovalArchitect), formatTime(row.ApprovalTS))
			}
			for _, row := range approvals.Licensed {
				artifact, err := artifacts.GetArtifact(ctx, row.ArtifactID)
				if err != nil {
					return err
				}
				fmt.Fprintf(tw, "licensed\t%s\t%s\t%s\t%s\t%s\n",
					artifact.Coordinate, orDash(row.ApprovalArchitect), formatTime(row.ApprovalTS),
					orDash(row.Vendor), orDash(row.Contract))
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&acronym, "acronym", "", "Project acronym (required)")
	return cmd
}
