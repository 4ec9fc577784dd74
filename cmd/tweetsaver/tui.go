package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"tweetsaver/internal/logging"
	"tweetsaver/internal/tui"
)

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Search and save tweets in the terminal",
	Long: `Start the terminal UI against the local saved set.

  Enter   search (in the search box) / save the selected result
  Tab     switch between search, results and saved
  d       delete the selected saved tweet
  r       re-run the last search
  f       follow the last search (when follow is enabled)
  q       quit`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}
		defer a.Close()

		// Log lines would tear the alternate screen.
		if !verbose {
			logging.Setup(logging.Options{Level: "off"})
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		ctrl, err := a.newController(ctx)
		if err != nil {
			return err
		}

		return tui.Run(ctx, tui.ModelConfig{
			Controller:     ctrl,
			FollowInterval: a.followInterval(),
		})
	},
}
