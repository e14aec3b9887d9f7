package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/shambu-network/shambu/pkg/models"
	"github.com/shambu-network/shambu/pkg/views"
)

func newListCmd() *cobra.Command {
	var query, filter string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List profiles ordered by name",
		Long: "List fetches the profile collection once. --filter is passed to the backend; " +
			"--query narrows the fetched list locally by name, email, title or company.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(cmd.Context())
			if err != nil {
				return err
			}
			defer e.close()

			view := views.NewProfileListView(e.backend.Profiles, filter, e.logger)
			defer view.Close()
			if err := view.Fetch(cmd.Context()); err != nil {
				return err
			}
			return printProfiles(cmd.OutOrStdout(), view.Search(query))
		},
	}
	cmd.Flags().StringVarP(&query, "query", "q", "", "Local search text")
	cmd.Flags().StringVarP(&filter, "filter", "f", "", "Backend full-text filter on full name")
	return cmd
}

func printProfiles(out io.Writer, profiles []models.Profile) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tTITLE\tCOMPANY\tCONNECTIONS")
	for _, p := range profiles {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\n", p.ID, p.FullName, p.Title(), p.Company(), len(p.Connections))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(out, "%d profile(s)\n", len(profiles))
	return err
}
