package cli

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/toolgate/toolgate/pkg/types"
)

func newCheckCmd() *cobra.Command {
	var fileWrite bool
	var targetPath string

	cmd := &cobra.Command{
		Use:   "check TOOL [INPUT...]",
		Short: "Dry-run a call against the current rules",
		Long: "Evaluates TOOL with INPUT against the server's current rules without " +
			"creating a tool-call record. Exit code: 0 allow, 1 confirm, 2 deny.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			toolName := args[0]
			input := strings.Join(args[1:], " ")

			res, err := clientFromCmd(cmd).Check(cmd.Context(), toolName, input, fileWrite, targetPath)
			if err != nil {
				return err
			}
			if err := printJSON(cmd, res); err != nil {
				return err
			}
			switch res.Decision {
			case types.DecisionAllow:
				return nil
			case types.DecisionConfirm:
				return &ExitError{code: 1}
			default:
				return &ExitError{code: 2}
			}
		},
	}

	cmd.Flags().BoolVar(&fileWrite, "file-write", false, "Treat the call as a file write")
	cmd.Flags().StringVar(&targetPath, "target", "", "Write target path (with --file-write)")
	return cmd
}
