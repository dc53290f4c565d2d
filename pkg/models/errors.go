package models

import "fmt"

// ValidationError reports a remote response that cannot be trusted, such as an
// issue creation answer carrying error indicators.
type ValidationError struct {
	Op     string
	Detail string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: invalid response: %s", e.Op, e.Detail)
}
