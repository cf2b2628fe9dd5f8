package core

import "github.com/google/uuid"

// NewID generates a new unique identifier for tasks and correlation.
func NewID() string { return uuid.NewString() }
