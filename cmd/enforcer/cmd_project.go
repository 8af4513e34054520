package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newProjectCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "project",
		Short: "Inspect projects and their build history",
	}
	cmd.AddCommand(newProjectListCmd(a), newProjectComponentsCmd(a), newProjectBuildsCmd(a), newProjectDeleteCmd(a))
	return cmd
}

func newProjectListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List projects",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := a.projectService(cmd.Context())
			if err != nil {
				return err
			}
			projects, err := svc.ListProjects(cmd.Context())
			if err != nil {
				return err
			}
			tw := newTable(cmd.OutOrStdout())
			fmt.Fprintln(tw, "ACRONYM\tBUSINESS OWNER\tIT OWNER\tBEGIN\tEND")
			for _, p := range projects {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
					p.Acronym, orDash(p.BusinessOwner), orDash(p.ITOwner), formatDate(p.BeginDate), formatDate(p.EndDate))
			}
			return tw.Flush()
		},
	}
}

func newProjectComponentsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "components <acronym>",
		Short: "List the components of a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.projectService(cmd.Context())
			if err != nil {
				return err
			}
			components, err := svc.ListComponents(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			for _, c := range components {
				fmt.Fprintln(cmd.OutOrStdout(), c.Name)
			}
			return nil
		},
	}
}

func newProjectBuildsCmd(a *app) *cobra.Command {
	var component string
	cmd := &cobra.Command{
		Use:   "builds <acronym>",
		Short: "List a project's builds, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.projectService(cmd.Context())
			if err != nil {
				return err
			}
			builds, err := svc.ListBuilds(cmd.Context(), args[0], component)
			if err != nil {
				return err
			}
			return writeBuildTable(cmd.OutOrStdout(), builds)
		},
	}
	cmd.Flags().StringVar(&component, "component", "", "Only builds of this component")
	return cmd
}

func newProjectDeleteCmd(a *app) *cobra.Command {
	var confirm bool
	cmd := &cobra.Command{
		Use:   "delete <acronym>",
		Short: "Delete a project with its builds, components and approvals",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !confirm {
				return fmt.Errorf("deleting project %s removes its whole build history, pass --yes to confirm", args[0])
			}
			svc, err := a.projectService(cmd.Context())
			if err != nil {
				return err
			}
			if err := svc.DeleteProject(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted project %s\n", args[0])
			return nil
		},
	}
	cmd.Flags().BoolVar(&confirm, "yes", false, "Confirm the deletion")
	return cmd
}
