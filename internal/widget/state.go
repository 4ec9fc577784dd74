package widget

// State is the search side of the widget lifecycle.
type State int

const (
	StateIdle State = iota
	StateSearching
	StateDisplaying
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSearching:
		return "searching"
	case StateDisplaying:
		return "displaying"
	default:
		return "unknown"
	}
}

// DragState tracks the drag-and-drop side, orthogonal to State.
type DragState int

const (
	DragNone DragState = iota
	DragDragging
	DragDropped
)

func (d DragState) String() string {
	switch d {
	case DragDragging:
		return "dragging"
	case DragDropped:
		return "dropped"
	default:
		return "none"
	}
}

// DropOutcome says what a drop did.
type DropOutcome int

const (
	DropSaved DropOutcome = iota
	DropBadPayload
	DropMissing
	DropDuplicate
)

func (o DropOutcome) String() string {
	switch o {
	case DropSaved:
		return "saved"
	case DropBadPayload:
		return "bad payload"
	case DropMissing:
		return "missing"
	case DropDuplicate:
		return "duplicate"
	default:
		return "unknown"
	}
}

// Request identifies one issued search.
type Request struct {
	Seq   uint64
	Query string
}

// Snapshot is the page state a front end needs to redraw.
type Snapshot struct {
	State              State
	Query              string
	ResultsHTML        string
	SavedHTML          string
	SavedCount         int
	PlaceholderVisible bool
	Alerts             []string
}
