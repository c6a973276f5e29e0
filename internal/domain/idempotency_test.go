package domain

import (
	"testing"
	"time"
)

func TestIdempotencyStatusValid(t *testing.T) {
	tests := []struct {
		name   string
		status IdempotencyStatus
		want   bool
	}{
		{name: "processing", status: IdempotencyStatusProcessing, want: true},
		{name: "done", status: IdempotencyStatusDone, want: true},
		{name: "failed", status: IdempotencyStatusFailed, want: true},
		{name: "invalid", status: IdempotencyStatus("broken"), want: false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.status.Valid(); got != tc.want {
				t.Fatalf("status %q valid=%v, want %v", tc.status, got, tc.want)
			}
		})
	}
}

func TestIdempotencyRecordExpired(t *testing.T) {
	now := time.Now().UTC()

	record := IdempotencyRecord{TTLAt: now.Add(time.Hour)}
	if record.Expired(now) {
		t.Fatal("record with future TTL must not be expired")
	}
	record.TTLAt = now.Add(-time.Minute)
	if !record.Expired(now) {
		t.Fatal("record with past TTL must be expired")
	}
	record.TTLAt = now
	if !record.Expired(now) {
		t.Fatal("record expiring exactly now must be expired")
	}
}

func TestIdempotencyRecordReplayable(t *testing.T) {
	if (IdempotencyRecord{Status: IdempotencyStatusProcessing}).Replayable() {
		t.Fatal("processing record has no stored response to replay")
	}
	if !(IdempotencyRecord{Status: IdempotencyStatusDone}).Replayable() {
		t.Fatal("done record must be replayable")
	}
	if !(IdempotencyRecord{Status: IdempotencyStatusFailed}).Replayable() {
		t.Fatal("failed record must be replayable")
	}
}
