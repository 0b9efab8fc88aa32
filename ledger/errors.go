package ledger

import "fmt"

var (
	// ErrUnknownAgent is returned when a snapshot or transfer references an
	// agent id that was never registered with the ledger.
	ErrUnknownAgent = fmt.Errorf("unknown agent")
)
