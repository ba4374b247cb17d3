package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/toolgate/toolgate/internal/flow"
)

func newTOTPCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "totp",
		Short: "Manage the TOTP secret for approval resolution",
	}

	var out string
	var label string
	setupCmd := &cobra.Command{
		Use:   "setup",
		Short: "Generate a secret and show the enrollment QR code",
		RunE: func(cmd *cobra.Command, args []string) error {
			secret, err := flow.GenerateTOTPSecret()
			if err != nil {
				return err
			}
			if err := flow.SaveTOTPSecret(out, secret); err != nil {
				return err
			}
			if err := flow.DisplayTOTPSetup(cmd.OutOrStdout(), label, secret); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Secret written to %s\n", out)
			return nil
		},
	}
	setupCmd.Flags().StringVar(&out, "out", "toolgate-totp.secret", "Secret file path")
	setupCmd.Flags().StringVar(&label, "label", "approvals", "Account label in the authenticator app")
	cmd.AddCommand(setupCmd)

	var secretFile string
	verifyCmd := &cobra.Command{
		Use:   "verify CODE",
		Short: "Verify a code against the stored secret",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			secret, err := flow.LoadTOTPSecret(secretFile)
			if err != nil {
				return err
			}
			if !flow.ValidateTOTPCode(args[0], secret) {
				return &ExitError{code: 1, message: "code is not valid"}
			}
			fmt.Fprintln(cmd.OutOrStdout(), "ok")
			return nil
		},
	}
	verifyCmd.Flags().StringVar(&secretFile, "secret-file", "toolgate-totp.secret", "Secret file path")
	cmd.AddCommand(verifyCmd)

	return cmd
}
