package model

import (
	"time"

	"github.com/google/uuid"
)

// Lookup is one queued character resolution belonging to a batch.
type Lookup struct {
	ID         uuid.UUID
	Index      int
	Identifier CharacterIdentifier
	Region     string
	Deadline   time.Time
	Reply      chan<- LookupResult
}

// LookupResult is the outcome of a Lookup, sent on its Reply channel.
type LookupResult struct {
	ID       uuid.UUID
	Index    int
	Overview CharacterOverview
	Err      error
}
