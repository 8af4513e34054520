package main

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ochairo/enforcer/internal/domain-adapters/gateways"
	"github.com/ochairo/enforcer/internal/domain/interfaces"
	"github.com/ochairo/enforcer/internal/domain/services"
	"github.com/ochairo/enforcer/internal/external-adapters/gpg"
)

func newBuildCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Inspect and export recorded builds",
	}
	cmd.AddCommand(newBuildShowCmd(a), newBuildExportCmd(a), newBuildVerifyCmd())
	return cmd
}

func newBuildShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show <build-id>",
		Short: "Show a build with every evaluated dependency",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			report, err := a.buildReport(cmd, args[0])
			if err != nil {
				return err
			}
			return writeBuildReport(cmd.OutOrStdout(), report)
		},
	}
}

func newBuildExportCmd(a *app) *cobra.Command {
	var (
		output        string
		signKey       string
		passphraseEnv string
	)
	cmd := &cobra.Command{
		Use:   "export <build-id>",
		Short: "Export a build as a CycloneDX bill of materials",
		Long: "Writes the build as CycloneDX JSON. With --sign-key the document is signed\n" +
			"and an armored detached signature is written next to it as <output>.asc.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			report, err := a.buildReport(cmd, args[0])
			if err != nil {
				return err
			}

			sbom, err := gateways.NewBOMGenerator(version).GenerateBOM(ctx, gateways.BOMSubject{
				Acronym:   report.Project.Acronym,
				Component: report.Component.Name,
			}, report.Build, report.Items)
			if err != nil {
				return err
			}
			data, err := gateways.MarshalBOM(sbom)
			if err != nil {
				return err
			}

			if output == "" || output == "-" {
				if signKey != "" {
					return fmt.Errorf("--sign-key needs an output file")
				}
				_, err = cmd.OutOrStdout().Write(data)
				return err
			}
			if err := os.WriteFile(output, data, 0o600); err != nil {
				return fmt.Errorf("write BOM: %w", err)
			}
			a.logger.Info("exported build",
				interfaces.F("build_id", report.Build.ID),
				interfaces.F("path", output),
				interfaces.F("components", len(sbom.Components)))

			if signKey == "" {
				fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", output)
				return nil
			}
			var passphrase []byte
			if passphraseEnv != "" {
				passphrase = []byte(a.getenv(passphraseEnv))
			}
			signer, err := gpg.NewSignerFromFile(signKey, passphrase)
			if err != nil {
				return err
			}
			var sig bytes.Buffer
			if err := signer.Sign(&sig, bytes.NewReader(data)); err != nil {
				return err
			}
			sigPath := output + ".asc"
			if err := os.WriteFile(sigPath, sig.Bytes(), 0o600); err != nil {
				return fmt.Errorf("write signature: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s and %s (key %s)\n", output, sigPath, signer.Fingerprint())
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVarP(&output, "output", "o", "-", "File to write, - for stdout")
	f.StringVar(&signKey, "sign-key", "", "Armored or binary private key used to sign the export")
	f.StringVar(&passphraseEnv, "passphrase-env", "", "Environment variable holding the key passphrase")
	return cmd
}

func newBuildVerifyCmd() *cobra.Command {
	var keys []string
	cmd := &cobra.Command{
		Use:   "verify <bom> <signature>",
		Short: "Verify the detached signature of an exported bill of materials",
		Args:  cobra.ExactArgs(2),
		// verification needs no configuration or store
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(keys) == 0 {
				return fmt.Errorf("at least one --key is required")
			}
			verifier := gpg.NewVerifier()
			for _, k := range keys {
				if err := verifier.ImportKeyFromFile(k); err != nil {
					return err
				}
			}
			fingerprint, err := verifier.VerifySignatureFromFile(args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Good signature from %s\n", fingerprint)
			return nil
		},
	}
	cmd.Flags().StringArrayVar(&keys, "key", nil, "Public key to trust, repeatable")
	return cmd
}

func (a *app) buildReport(cmd *cobra.Command, arg string) (*services.BuildReport, error) {
	id, err := parseID(arg)
	if err != nil {
		return nil, err
	}
	svc, err := a.projectService(cmd.Context())
	if err != nil {
		return nil, err
	}
	return svc.GetBuild(cmd.Context(), id)
}

func writeBuildReport(w io.Writer, r *services.BuildReport) error {
	tw := newTable(w)
	fmt.Fprintf(tw, "Build:\t%d\n", r.Build.ID)
	fmt.Fprintf(tw, "Project:\t%s\n", r.Project.Acronym)
	fmt.Fprintf(tw, "Component:\t%s %s\n", r.Component.Name, r.Build.ComponentVersion)
	fmt.Fprintf(tw, "Source:\t%s\n", r.Build.Source)
	fmt.Fprintf(tw, "Timestamp:\t%s\n", r.Build.Timestamp.UTC().Format(time.RFC3339))
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintln(w)
	tw = newTable(w)
	fmt.Fprintln(tw, "COORDINATE\tSTATUS\tALLOWED")
	for _, item := range r.Items {
		fmt.Fprintf(tw, "%s\t%s\t%t\n", item.Coordinate, item.StatusSnapshot, item.Allowed)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if r.Build.Infractions != "" {
		fmt.Fprintf(w, "\nInfractions:\n%s", r.Build.Infractions)
		if !strings.HasSuffix(r.Build.Infractions, "\n") {
			fmt.Fprintln(w)
		}
	}
	return nil
}
