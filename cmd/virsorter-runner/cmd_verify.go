package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ochairo/virsorter-runner/internal/domain-adapters/gateways"
	"github.com/ochairo/virsorter-runner/internal/external-adapters/gpg"
)

func newVerifyCmd(_ *app) *cobra.Command {
	var sigFile, keyFile, keysURL, sha256 string

	cmd := &cobra.Command{
		Use:   "verify <report-package.tar.gz>",
		Short: "Verify a downloaded report package or archive",
		Long: `Checks the SHA-256 of a file and/or its detached OpenPGP signature.

Examples:
  # Verify an attached archive against the checksum from its description
  virsorter-runner verify VirSorter_predicted_viral_fasta.tar.gz --sha256 3a7b...

  # Verify the report package signature
  virsorter-runner verify report_1234.tar.gz --sig report_1234.tar.gz.asc --key signing-pub.asc`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			filePath := args[0]
			if sigFile == "" && sha256 == "" {
				return fmt.Errorf("nothing to verify: pass --sig and/or --sha256")
			}

			if sha256 != "" {
				if err := gateways.NewChecksumVerifier().VerifyChecksum(filePath, sha256); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "✓ SHA256 checksum verified")
			}

			if sigFile != "" {
				if keyFile == "" && keysURL == "" {
					return fmt.Errorf("--sig requires --key or --keys-url")
				}

				verifier := gpg.NewVerifier()
				if keyFile != "" {
					if err := verifier.ImportKeyFromFile(keyFile); err != nil {
						return err
					}
				}
				if keysURL != "" {
					if err := verifier.ImportKeysFromURL(cmd.Context(), keysURL); err != nil {
						return err
					}
				}
				if err := verifier.VerifySignatureFromFile(filePath, sigFile); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "✓ GPG signature verified")
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&sigFile, "sig", "", "Detached signature file (.asc)")
	cmd.Flags().StringVar(&keyFile, "key", "", "Public key file, armored or binary")
	cmd.Flags().StringVar(&keysURL, "keys-url", "", "URL of a published armored key file")
	cmd.Flags().StringVar(&sha256, "sha256", "", "Expected SHA-256 hex digest")
	return cmd
}

func newPublicKeyCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "public-key",
		Short: "Print the public half of the configured signing key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !a.cfg.SigningEnabled() {
				return fmt.Errorf("VIRSORTER_SIGNING_KEY is not set")
			}
			signer, err := gpg.LoadSigner(a.cfg.SigningKeyPath, a.cfg.SigningPassphrase)
			if err != nil {
				return err
			}
			return signer.WritePublicKey(cmd.OutOrStdout())
		},
	}
}
