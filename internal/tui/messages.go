package tui

import (
	"time"

	"tweetsaver/internal/tweet"
	"tweetsaver/internal/widget"
)

// BubbleTea message types produced by controller commands

// SearchDoneMsg carries the page after a search completes.
type SearchDoneMsg struct {
	Page    widget.Snapshot
	Results []tweet.Record
	Elapsed time.Duration
	Err     error
}

// SavedMsg carries the saved set after a load, drop or delete.
type SavedMsg struct {
	Page    widget.Snapshot
	Saved   []tweet.Record
	Outcome widget.DropOutcome
	Action  string
	Err     error
}

// FollowTickMsg asks for the followed query to be re-run.
type FollowTickMsg struct{}
