package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound is returned when an operation references an unknown countdown id.
var ErrNotFound = errors.New("countdown not found")

// ValidationError rejects a mutation outright; nothing is applied when it is returned.
// InvalidLeadTimes carries the offending lead-times when a notification schedule
// would produce a fire time that is not strictly in the future.
type ValidationError struct {
	Reason           string
	InvalidLeadTimes []int
}

func (e *ValidationError) Error() string {
	if len(e.InvalidLeadTimes) == 0 {
		return e.Reason
	}
	parts := make([]string, len(e.InvalidLeadTimes))
	for i, m := range e.InvalidLeadTimes {
		parts[i] = fmt.Sprintf("%dm", m)
	}
	return fmt.Sprintf("%s: %s", e.Reason, strings.Join(parts, ", "))
}
