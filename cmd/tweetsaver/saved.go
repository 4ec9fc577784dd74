package main

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"tweetsaver/internal/store"
)

var savedJSON bool

var savedCmd = &cobra.Command{
	Use:   "saved",
	Short: "Inspect and edit the saved set",
}

var savedListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved tweets in save order",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}
		defer a.Close()

		report, err := a.store.LoadAllReport(cmd.Context())
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if savedJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(report.Records)
		}

		if len(report.Records) == 0 {
			fmt.Fprintln(out, "No saved tweets.")
		} else if err := printRecords(out, report.Records, false, a.cfg.GetLocation()); err != nil {
			return err
		}
		if len(report.Skipped) > 0 {
			fmt.Fprintf(out, "%d unreadable entries skipped\n", len(report.Skipped))
		}
		return nil
	},
}

var savedRemoveCmd = &cobra.Command{
	Use:     "rm <id>...",
	Aliases: []string{"remove", "delete"},
	Short:   "Remove saved tweets by id",
	Args:    cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}
		defer a.Close()

		var errs []error
		for _, id := range args {
			if _, err := a.store.Get(cmd.Context(), id); errors.Is(err, store.ErrNotFound) {
				errs = append(errs, fmt.Errorf("%s: not saved", id))
				continue
			}
			if err := a.store.Remove(cmd.Context(), id); err != nil {
				errs = append(errs, err)
				continue
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %s\n", id)
		}
		return errors.Join(errs...)
	},
}

func init() {
	savedListCmd.Flags().BoolVar(&savedJSON, "json", false, "print saved tweets as JSON")

	savedCmd.AddCommand(savedListCmd)
	savedCmd.AddCommand(savedRemoveCmd)
}
