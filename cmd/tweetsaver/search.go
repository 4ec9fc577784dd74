package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"tweetsaver/internal/render"
	"tweetsaver/internal/tweet"
	"tweetsaver/internal/widget"
)

var (
	searchHTML bool
	searchJSON bool
	searchSave []int
)

var searchCmd = &cobra.Command{
	Use:   "search <term>",
	Short: "Search tweets once and print the results",
	Long: `Search tweets once and print the results. --save drops the results at the
given positions into the saved set, exactly like dragging them in the page.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}
		defer a.Close()

		ctx := cmd.Context()
		ctrl, err := a.newController(ctx)
		if err != nil {
			return err
		}

		term := strings.Join(args, " ")
		if err := ctrl.Search(ctx, term); err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		cur := ctrl.Current()
		switch {
		case searchHTML:
			fmt.Fprintln(out, ctrl.Page().ResultsHTML)
		case searchJSON:
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			if err := enc.Encode(cur); err != nil {
				return err
			}
		case len(cur.Records) == 0:
			fmt.Fprintf(out, "No results found for %q\n", cur.Query)
		default:
			if err := printRecords(out, cur.Records, true, a.cfg.GetLocation()); err != nil {
				return err
			}
		}

		for _, i := range searchSave {
			outcome, err := ctrl.Drop(ctx, ctrl.DragStart(i))
			if err != nil {
				return err
			}
			if outcome == widget.DropSaved {
				rec, _ := ctrl.Record(strconv.Itoa(i))
				fmt.Fprintf(out, "saved %s\n", rec.ID)
			} else {
				fmt.Fprintf(out, "not saved [%d]: %s\n", i, outcome)
			}
		}
		return nil
	},
}

// printRecords writes a table of records. withIndex adds the position used
// by --save.
func printRecords(out io.Writer, records []tweet.Record, withIndex bool, loc *time.Location) error {
	now := time.Now()
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	if withIndex {
		fmt.Fprint(w, "#\t")
	}
	fmt.Fprintln(w, "ID\tUSER\tWHEN\tTEXT")
	for _, rec := range records {
		when, ok := render.RelativeDate(rec.CreatedAt, now)
		if !ok {
			when = "-"
			// Older than a month: show the date in the configured zone.
			if t, ok := render.ParseCreatedAt(rec.CreatedAt); ok {
				when = t.In(loc).Format("2006-01-02 15:04")
			}
		}
		if withIndex {
			fmt.Fprintf(w, "%d\t", rec.Index)
		}
		fmt.Fprintf(w, "%s\t@%s\t%s\t%s\n", rec.ID, rec.FromUser, when, truncate(oneLine(rec.Text), 60))
	}
	return w.Flush()
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

func init() {
	searchCmd.Flags().BoolVar(&searchHTML, "html", false, "print the rendered results markup")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "print the normalized result set as JSON")
	searchCmd.Flags().IntSliceVar(&searchSave, "save", nil, "save the results at these positions")
}
