package sim

import "errors"

// Data errors abort a whole job before or during the bar loop. Routine
// per-bar skips (insufficient funds, contradictory signals, bad bars) are
// never errors; they are reported as BarOutcome variants.
var (
	// ErrNoData is returned when a run is started with an empty bar set.
	ErrNoData = errors.New("no bars loaded")

	// ErrInvalidRange is returned when a requested date range has
	// start >= end.
	ErrInvalidRange = errors.New("invalid date range: start >= end")

	// ErrOutOfOrder is returned when a bar arrives at or before the
	// previous bar's timestamp. The simulator never re-sorts silently;
	// ordering is the caller's contract.
	ErrOutOfOrder = errors.New("bar timestamp not strictly increasing")

	// ErrSignalMismatch is returned when the signal slice does not line
	// up one-to-one with the bar slice.
	ErrSignalMismatch = errors.New("signal count does not match bar count")
)
