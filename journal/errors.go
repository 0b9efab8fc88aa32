package journal

import "fmt"

var (
	// ErrNoSnapshot is returned when an agent has no recorded holdings
	// snapshot yet.
	ErrNoSnapshot = fmt.Errorf("no snapshot recorded")
)
