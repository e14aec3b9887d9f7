package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/shambu-network/shambu/pkg/realtime"
	"github.com/shambu-network/shambu/pkg/views"
)

func newWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Print the profile list every time a change refreshes it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(cmd.Context())
			if err != nil {
				return err
			}
			defer e.close()
			if e.backend.Source == nil {
				return errors.New("watch requires realtime; set REALTIME_ENABLED=true")
			}

			hub := realtime.NewHub(e.logger)
			view := views.NewProfileListView(e.backend.Profiles, "", e.logger)
			defer view.Close()

			out := cmd.OutOrStdout()
			view.OnRefresh(func() {
				fmt.Fprintf(out, "\n[%s] %s\n", time.Now().Format(time.TimeOnly), view.State())
				if err := printProfiles(out, view.Profiles()); err != nil {
					e.logger.Sugar().Warnf("failed to print profiles: %v", err)
				}
			})

			g, gctx := errgroup.WithContext(cmd.Context())
			g.Go(func() error { return hub.Run(gctx, e.backend.Source) })
			g.Go(func() error { return view.Watch(gctx, hub) })
			return g.Wait()
		},
	}
}
