package cache

import (
	"errors"
	"testing"
	"time"
)

func TestEntry_IsExpired(t *testing.T) {
	now := time.UnixMilli(1_700_000_000_000)

	tests := []struct {
		name      string
		fetchedAt time.Time
		want      bool
	}{
		{
			name:      "fresh entry",
			fetchedAt: now.Add(-1 * time.Minute),
			want:      false,
		},
		{
			name:      "expired entry",
			fetchedAt: now.Add(-11 * time.Minute),
			want:      true,
		},
		{
			name:      "exactly at ttl",
			fetchedAt: now.Add(-DefaultTTL),
			want:      true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entry := Entry{Value: []byte(`{}`), FetchedAt: tt.fetchedAt.UnixMilli()}
			if got := entry.IsExpired(now, DefaultTTL); got != tt.want {
				t.Errorf("IsExpired() = %v, want %v", got, tt.want)
			}
		})
	}

	if !(Entry{}).IsExpired(now, DefaultTTL) {
		t.Error("empty entry should always be expired")
	}
}

func TestNewEntry(t *testing.T) {
	at := time.UnixMilli(1_700_000_000_123)

	entry, err := NewEntry(map[string]int{"id": 1}, at)
	if err != nil {
		t.Fatalf("NewEntry() error = %v", err)
	}
	if string(entry.Value) != `{"id":1}` {
		t.Errorf("Value = %s", entry.Value)
	}
	if !entry.FetchedTime().Equal(at) {
		t.Errorf("FetchedTime() = %v, want %v", entry.FetchedTime(), at)
	}
	if entry.IsEmpty() || entry.IsAbsent() {
		t.Error("entry with value should be neither empty nor absent")
	}

	type profile struct{ ID string }
	var none *profile
	absent, err := NewEntry(none, at)
	if err != nil {
		t.Fatalf("NewEntry(nil) error = %v", err)
	}
	if !absent.IsAbsent() {
		t.Errorf("NewEntry(nil) = %s, want confirmed absence", absent.Value)
	}
}

func TestEntry_Validate(t *testing.T) {
	tests := []struct {
		name    string
		entry   Entry
		wantErr bool
	}{
		{name: "valid", entry: Entry{Value: []byte(`[1,2]`), FetchedAt: 1}},
		{name: "absent", entry: Entry{Value: []byte(`null`), FetchedAt: 1}},
		{name: "empty", entry: Entry{}},
		{name: "negative timestamp", entry: Entry{Value: []byte(`{}`), FetchedAt: -1}, wantErr: true},
		{name: "broken json", entry: Entry{Value: []byte(`{"id":`), FetchedAt: 1}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.entry.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidEntry) {
				t.Errorf("Validate() error = %v, want ErrInvalidEntry", err)
			}
		})
	}
}
