package gate

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var errNegativeAttempts = errors.New("attempt count is negative")

// AttemptRecord is the durable failure history of one browser.
type AttemptRecord struct {
	FailureCount int
	BlockedUntil *time.Time
}

// attemptPayload is the stored layout: {"attempts": n, "blockedUntil": ms|null}.
type attemptPayload struct {
	Attempts     *int   `json:"attempts"`
	BlockedUntil *int64 `json:"blockedUntil"`
}

// Encode serializes the record into its stored JSON form.
func (r AttemptRecord) Encode() (string, error) {
	attempts := r.FailureCount
	payload := attemptPayload{Attempts: &attempts}
	if r.BlockedUntil != nil {
		ms := r.BlockedUntil.UnixMilli()
		payload.BlockedUntil = &ms
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to encode attempt record: %w", err)
	}
	return string(raw), nil
}

// DecodeAttemptRecord parses a stored record. A missing attempts field reads
// as zero failures; anything that is not a well-formed record is an error.
func DecodeAttemptRecord(raw string) (AttemptRecord, error) {
	var payload attemptPayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return AttemptRecord{}, fmt.Errorf("failed to decode attempt record: %w", err)
	}

	var rec AttemptRecord
	if payload.Attempts != nil {
		if *payload.Attempts < 0 {
			return AttemptRecord{}, errNegativeAttempts
		}
		rec.FailureCount = *payload.Attempts
	}
	if payload.BlockedUntil != nil {
		until := time.UnixMilli(*payload.BlockedUntil)
		rec.BlockedUntil = &until
	}
	return rec, nil
}
