package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newApproveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "approve",
		Short: "List/resolve pending confirmations",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List pending confirmations",
		RunE: func(cmd *cobra.Command, args []string) error {
			pending, err := clientFromCmd(cmd).ListApprovals(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd, pending)
		},
	})

	var allow bool
	var deny bool
	var totpCode string
	resolveCmd := &cobra.Command{
		Use:   "resolve CALL_ID",
		Short: "Allow or deny a pending confirmation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if allow == deny {
				return fmt.Errorf("choose exactly one of --allow or --deny")
			}
			decision := "deny"
			if allow {
				decision = "allow"
			}
			if err := clientFromCmd(cmd).ResolveApproval(cmd.Context(), args[0], decision, totpCode); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "ok")
			return nil
		},
	}
	resolveCmd.Flags().BoolVar(&allow, "allow", false, "Allow the call")
	resolveCmd.Flags().BoolVar(&deny, "deny", false, "Deny the call")
	resolveCmd.Flags().StringVar(&totpCode, "totp", "", "TOTP code (when the server requires one)")
	cmd.AddCommand(resolveCmd)

	cmd.AddCommand(&cobra.Command{
		Use:   "cancel CALL_ID",
		Short: "Cancel a pending confirmation, leaving the call cancelled",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := clientFromCmd(cmd).CancelApproval(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "ok")
			return nil
		},
	})

	return cmd
}
