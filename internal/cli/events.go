package cli

import (
	"net/url"
	"strconv"

	"github.com/spf13/cobra"
)

func newEventsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Query the decision audit trail",
	}

	var sessionID, tool, eventType, decision, since, until string
	var limit, offset int
	var asc bool
	searchCmd := &cobra.Command{
		Use:   "search",
		Short: "Search audited events",
		RunE: func(cmd *cobra.Command, args []string) error {
			q := url.Values{}
			if sessionID != "" {
				q.Set("session_id", sessionID)
			}
			if tool != "" {
				q.Set("tool", tool)
			}
			if eventType != "" {
				q.Set("type", eventType)
			}
			if decision != "" {
				q.Set("decision", decision)
			}
			if since != "" {
				q.Set("since", since)
			}
			if until != "" {
				q.Set("until", until)
			}
			if limit > 0 {
				q.Set("limit", strconv.Itoa(limit))
			}
			if offset > 0 {
				q.Set("offset", strconv.Itoa(offset))
			}
			if asc {
				q.Set("order", "asc")
			}
			evs, err := clientFromCmd(cmd).SearchEvents(cmd.Context(), q)
			if err != nil {
				return err
			}
			return printJSON(cmd, evs)
		},
	}
	searchCmd.Flags().StringVar(&sessionID, "session", "", "Filter by session ID")
	searchCmd.Flags().StringVar(&tool, "tool", "", "Filter by tool name")
	searchCmd.Flags().StringVar(&eventType, "type", "", "Filter by event type (comma-separated)")
	searchCmd.Flags().StringVar(&decision, "decision", "", "Filter by decision kind (allow|deny|confirm)")
	searchCmd.Flags().StringVar(&since, "since", "", "RFC3339 timestamp or ago-duration (e.g. 30m)")
	searchCmd.Flags().StringVar(&until, "until", "", "RFC3339 timestamp or ago-duration")
	searchCmd.Flags().IntVar(&limit, "limit", 0, "Max results")
	searchCmd.Flags().IntVar(&offset, "offset", 0, "Result offset")
	searchCmd.Flags().BoolVar(&asc, "asc", false, "Oldest first")
	cmd.AddCommand(searchCmd)

	return cmd
}
