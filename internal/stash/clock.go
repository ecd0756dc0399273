package stash

import (
	"time"

	"github.com/google/uuid"
)

// Clock supplies created_at timestamps and token expiry times.
type Clock interface {
	Now() time.Time
}

// RealClock reports the current time in UTC.
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now().UTC() }

// IDGenerator supplies unique ids for session tokens.
type IDGenerator interface {
	New() string
}

// UUIDGenerator produces random (version 4) UUIDs.
type UUIDGenerator struct{}

func (UUIDGenerator) New() string { return uuid.NewString() }
