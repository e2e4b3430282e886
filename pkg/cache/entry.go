package cache

import (
	"encoding/json"
	"fmt"
	"time"
)

// Entry is the durable record of one session cache. Value and fetch time
// are stored as a single record so they are always written together.
type Entry struct {
	// Value is the JSON encoded cached object. A JSON null means the
	// server confirmed the object is absent.
	Value json.RawMessage `json:"value"`

	// FetchedAt is the epoch milliseconds of the last successful fetch.
	// Zero means nothing has been confirmed yet.
	FetchedAt int64 `json:"fetchedAt"`
}

// NewEntry encodes value as an entry fetched at t. A nil value records a
// confirmed absence.
func NewEntry(value any, t time.Time) (Entry, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return Entry{}, fmt.Errorf("marshal cache value: %w", err)
	}
	return Entry{Value: data, FetchedAt: t.UnixMilli()}, nil
}

// FetchedTime returns FetchedAt as a time.Time. It is the zero time for
// an entry that was never fetched.
func (e Entry) FetchedTime() time.Time {
	if e.FetchedAt == 0 {
		return time.Time{}
	}
	return time.UnixMilli(e.FetchedAt)
}

// IsEmpty reports whether the entry holds no confirmed state.
func (e Entry) IsEmpty() bool {
	return e.FetchedAt == 0
}

// IsAbsent reports whether the entry confirms the object does not exist.
func (e Entry) IsAbsent() bool {
	return e.FetchedAt != 0 && isNull(e.Value)
}

// IsExpired returns true if the entry is older than ttl at now.
// An empty entry is always expired.
func (e Entry) IsExpired(now time.Time, ttl time.Duration) bool {
	if e.IsEmpty() {
		return true
	}
	return now.Sub(e.FetchedTime()) >= ttl
}

// Validate checks that a decoded record is usable.
func (e Entry) Validate() error {
	if e.FetchedAt < 0 {
		return fmt.Errorf("%w: negative fetchedAt %d", ErrInvalidEntry, e.FetchedAt)
	}
	if len(e.Value) > 0 && !json.Valid(e.Value) {
		return fmt.Errorf("%w: value is not valid JSON", ErrInvalidEntry)
	}
	return nil
}

func isNull(data json.RawMessage) bool {
	return len(data) == 0 || string(data) == "null"
}
