package negotiation

import "fmt"

var (
	// ErrNotFound is returned when no session exists for the given dialogue id.
	ErrNotFound = fmt.Errorf("session not found")
)
