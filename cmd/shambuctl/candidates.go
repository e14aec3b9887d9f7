package main

import (
	"github.com/spf13/cobra"

	"github.com/shambu-network/shambu/pkg/views"
)

func newCandidatesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "candidates PROFILE_ID QUERY",
		Short: "Search connection candidates for a profile",
		Long:  "Candidates runs the remote search used when adding a connection: full-text over names, the profile itself excluded, at most five results.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(cmd.Context())
			if err != nil {
				return err
			}
			defer e.close()

			view := views.NewConnectionsView(args[0], e.backend.Connections, e.backend.Profiles, e.logger)
			defer view.Close()
			found, err := view.SearchProfiles(cmd.Context(), args[1])
			if err != nil {
				return err
			}
			return printProfiles(cmd.OutOrStdout(), found)
		},
	}
}
