package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newImportCmd() *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "import FILE.yaml",
		Short: "Seed profiles, social profiles and connections from YAML",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fh, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer fh.Close()

			f, err := parseSeed(fh)
			if err != nil {
				return err
			}
			if dryRun {
				if err := f.validate(); err != nil {
					return err
				}
				_, err := fmt.Fprintf(cmd.OutOrStdout(), "%s is valid: %d profile(s), %d connection(s)\n",
					args[0], len(f.Profiles), len(f.Connections))
				return err
			}

			e, err := openEnv(cmd.Context())
			if err != nil {
				return err
			}
			defer e.close()

			s := &seeder{
				profiles:    e.backend.Profiles,
				socials:     e.backend.SocialProfiles,
				connections: e.backend.Connections,
				logger:      e.logger,
			}
			sum, err := s.run(cmd.Context(), f)
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d profile(s), %d social profile(s), %d connection(s)\n",
				sum.Profiles, sum.SocialProfiles, sum.Connections)
			return err
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Validate the file without writing")
	return cmd
}
