package security

import (
	"fmt"
	"time"
)

// Violation records one denied action.
type Violation struct {
	ID         string    `json:"id"`
	Plugin     string    `json:"plugin"`
	Permission string    `json:"permission"`
	Message    string    `json:"message"`
	Timestamp  time.Time `json:"timestamp"`
}

// String returns a one-line description.
func (v Violation) String() string {
	return fmt.Sprintf("%s %s: %s (%s)", v.Timestamp.Format(time.RFC3339), v.Plugin, v.Message, v.Permission)
}
